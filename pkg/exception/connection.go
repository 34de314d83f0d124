package exception

import "github.com/yanun0323/errors"

// TCP errors
var (
	// ErrEmptyAddressTCP is returned when a dial or listen address is empty.
	ErrEmptyAddressTCP = errors.New("tcp: empty address")

	// ErrNilClientTCP is returned when a nil client receiver is used.
	ErrNilClientTCP = errors.New("tcp: nil client")

	// ErrConnectRetriesExhausted is returned when every dial attempt failed.
	ErrConnectRetriesExhausted = errors.New("tcp: connect retries exhausted")

	ErrConnectionClose = errors.New("connection closed")
)
