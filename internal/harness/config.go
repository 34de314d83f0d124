package harness

import (
	"net"
	"time"

	"github.com/yanun0323/errors"

	"nrtstress/internal/traffic"
	"nrtstress/internal/worker"
	"nrtstress/pkg/exception"
)

const (
	defaultAddr          = "127.0.0.1:8080"
	defaultClients       = 10
	defaultStartupDelay  = 1500 * time.Millisecond
	defaultShutdownGrace = 3 * time.Second
	defaultReportPath    = "nrt_stress_test_log.txt"
)

// Config controls one stress run.
type Config struct {
	Addr          string
	Clients       int
	StartupDelay  time.Duration
	ShutdownGrace time.Duration
	// Seed makes traffic reproducible; worker i uses Seed+i. Zero seeds from the clock.
	Seed        int64
	ReportPath  string
	MetricsAddr string
	Worker      worker.Config
	Traffic     traffic.Config
}

// DefaultConfig returns the stock stress-test configuration.
func DefaultConfig() Config {
	return Config{
		Addr:          defaultAddr,
		Clients:       defaultClients,
		StartupDelay:  defaultStartupDelay,
		ShutdownGrace: defaultShutdownGrace,
		ReportPath:    defaultReportPath,
		Worker:        worker.DefaultConfig(),
		Traffic:       traffic.DefaultConfig(),
	}
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "Addr is empty")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return errors.Wrapf(exception.ErrInvalidConfig, "Addr %q must be host:port", c.Addr)
	}
	if c.Clients < 1 {
		return errors.Wrap(exception.ErrInvalidConfig, "Clients must be >= 1")
	}
	if c.StartupDelay < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "StartupDelay must be >= 0")
	}
	if c.ShutdownGrace <= 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "ShutdownGrace must be > 0")
	}
	if err := c.Worker.Validate(); err != nil {
		return err
	}
	return c.Traffic.Validate()
}
