package tcp

import (
	"context"
	"net"
	"time"

	"github.com/yanun0323/errors"

	"nrtstress/pkg/exception"
)

const tcpNetwork = "tcp"

const defaultDialTimeout = 2 * time.Second

// Client dials TCP endpoints using a precomputed address.
type Client struct {
	addr        string
	dialTimeout time.Duration
}

// NewClient creates a client for the provided host:port address.
func NewClient(addr string) (*Client, error) {
	if addr == "" {
		return nil, exception.ErrEmptyAddressTCP
	}
	return &Client{addr: addr, dialTimeout: defaultDialTimeout}, nil
}

// WithDialTimeout overrides the per-attempt dial timeout.
func (c *Client) WithDialTimeout(d time.Duration) *Client {
	if c != nil && d > 0 {
		c.dialTimeout = d
	}
	return c
}

// Addr returns the configured address.
func (c *Client) Addr() string {
	if c == nil {
		return ""
	}
	return c.addr
}

// Dial opens a single TCP connection.
func (c *Client) Dial(ctx context.Context) (net.Conn, error) {
	if c == nil {
		return nil, exception.ErrNilClientTCP
	}
	if c.addr == "" {
		return nil, exception.ErrEmptyAddressTCP
	}
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, tcpNetwork, c.addr)
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	return conn, nil
}

// RetryFunc is invoked after every failed dial attempt (1-based).
type RetryFunc func(attempt int, err error)

// DialRetry dials up to attempts times, sleeping delay between failures.
// It returns exception.ErrConnectRetriesExhausted wrapping the last dial error
// when no attempt succeeds, or the context error when ctx ends first.
func (c *Client) DialRetry(ctx context.Context, attempts int, delay time.Duration, onRetry RetryFunc) (net.Conn, error) {
	if c == nil {
		return nil, exception.ErrNilClientTCP
	}
	if c.addr == "" {
		return nil, exception.ErrEmptyAddressTCP
	}
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := c.Dial(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, errors.Wrapf(exception.ErrConnectRetriesExhausted, "dial %s after %d attempts, last err: %v", c.addr, attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
