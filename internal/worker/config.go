package worker

import (
	"time"

	"github.com/yanun0323/errors"

	"nrtstress/pkg/exception"
)

const (
	defaultDuration       = time.Second
	defaultReceiveTimeout = time.Second
	defaultReadBufferSize = 2048
	defaultJitterMin      = 50 * time.Millisecond
	defaultJitterMax      = 200 * time.Millisecond
	defaultConnectRetries = 20
	defaultConnectDelay   = 100 * time.Millisecond
)

// Config controls one connection worker.
type Config struct {
	Duration       time.Duration
	ReceiveTimeout time.Duration
	ReadBufferSize int
	JitterMin      time.Duration
	JitterMax      time.Duration
	ConnectRetries int
	ConnectDelay   time.Duration
}

// DefaultConfig returns the stock stress-test timings.
func DefaultConfig() Config {
	return Config{
		Duration:       defaultDuration,
		ReceiveTimeout: defaultReceiveTimeout,
		ReadBufferSize: defaultReadBufferSize,
		JitterMin:      defaultJitterMin,
		JitterMax:      defaultJitterMax,
		ConnectRetries: defaultConnectRetries,
		ConnectDelay:   defaultConnectDelay,
	}
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Duration <= 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "worker Duration must be > 0")
	}
	if c.ReceiveTimeout <= 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "worker ReceiveTimeout must be > 0")
	}
	if c.ReadBufferSize <= 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "worker ReadBufferSize must be > 0")
	}
	if c.JitterMin < 0 || c.JitterMax < c.JitterMin {
		return errors.Wrap(exception.ErrInvalidConfig, "worker jitter range must satisfy 0 <= min <= max")
	}
	if c.ConnectRetries < 1 {
		return errors.Wrap(exception.ErrInvalidConfig, "worker ConnectRetries must be >= 1")
	}
	if c.ConnectDelay < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "worker ConnectDelay must be >= 0")
	}
	return nil
}
