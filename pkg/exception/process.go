package exception

import "github.com/yanun0323/errors"

// Server-under-test process errors
var (
	ErrExecutableNotFound = errors.New("process: server executable not found")
	ErrProcessNotStarted  = errors.New("process: not started")
	ErrShutdownTimeout    = errors.New("process: did not exit within grace period, killed")
)
