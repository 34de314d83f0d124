package ops

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	xerrors "github.com/yanun0323/errors"

	"nrtstress/pkg/exception"
)

// Environment variables that override file values.
const (
	EnvHost          = "STRESS_HOST"
	EnvPort          = "STRESS_PORT"
	EnvExec          = "STRESS_EXEC"
	EnvLaunch        = "STRESS_LAUNCH"
	EnvClients       = "STRESS_CLIENTS"
	EnvDuration      = "STRESS_DURATION"
	EnvSymbol        = "STRESS_SYMBOL"
	EnvSeed          = "STRESS_SEED"
	EnvReportPath    = "STRESS_REPORT"
	EnvMetricsAddr   = "STRESS_METRICS_ADDR"
	EnvPostgresDSN   = "STRESS_PG_DSN"
	EnvNATSURL       = "STRESS_NATS_URL"
	EnvNATSSubject   = "STRESS_NATS_SUBJECT"
	EnvPyroscopeAddr = "STRESS_PYROSCOPE"
)

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return xerrors.Wrapf(err, "load env file %s", p)
		}
	}
	return nil
}

// ApplyEnv overrides c with STRESS_* variables from lookup.
// A nil lookup reads the process environment.
func (c *FileConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvHost); ok {
		c.Server.Host = v
	}
	if v, ok := get(EnvPort); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvPort, v)
		}
		c.Server.Port = n
	}
	if v, ok := get(EnvExec); ok {
		c.Server.Exec = v
	}
	if v, ok := get(EnvLaunch); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError(EnvLaunch, v)
		}
		c.Server.Launch = &b
	}
	if v, ok := get(EnvClients); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvClients, v)
		}
		c.Run.Clients = n
	}
	if v, ok := get(EnvDuration); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError(EnvDuration, v)
		}
		c.Run.Duration = Duration(d)
	}
	if v, ok := get(EnvSeed); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return envError(EnvSeed, v)
		}
		c.Run.Seed = n
	}
	if v, ok := get(EnvSymbol); ok {
		c.Traffic.Symbol = v
	}
	if v, ok := get(EnvReportPath); ok {
		c.Run.ReportPath = v
	}
	if v, ok := get(EnvMetricsAddr); ok {
		c.Metrics.Addr = v
	}
	if v, ok := get(EnvPostgresDSN); ok {
		c.Postgres.DSN = v
	}
	if v, ok := get(EnvNATSURL); ok {
		c.NATS.URL = v
	}
	if v, ok := get(EnvNATSSubject); ok {
		c.NATS.Subject = v
	}
	if v, ok := get(EnvPyroscopeAddr); ok {
		c.Pyroscope.Addr = v
	}
	return nil
}

func envError(key, value string) error {
	return xerrors.Wrapf(exception.ErrInvalidConfig, "%s=%q", key, value)
}
