package exception

import "github.com/yanun0323/errors"

var (
	ErrDecode         = errors.New("protocol: response is not valid text")
	ErrInvalidCommand = errors.New("protocol: invalid command")
	ErrUnknownCommand = errors.New("protocol: unknown command")
	ErrEmptyCommand   = errors.New("protocol: empty command")
)
