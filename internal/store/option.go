package store

import (
	"cmp"
	"net"
	"net/url"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Option configures where runs are persisted and how they are written.
type Option struct {
	// URL is used verbatim when set; the address fields are ignored.
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Params   map[string]string

	// BatchSize bounds the rows per INSERT for orders and trades.
	BatchSize int
	// MaxOpenConns caps the pool; zero leaves the driver default.
	MaxOpenConns int
	// LogSQL echoes every statement through gorm's logger.
	LogSQL bool
}

// Enabled reports whether a database target was configured.
func (opt Option) Enabled() bool {
	return opt.URL != "" || opt.Host != ""
}

// DSN renders the postgres connection URL.
func (opt Option) DSN() string {
	if opt.URL != "" {
		return opt.URL
	}

	q := url.Values{"sslmode": {cmp.Or(opt.SSLMode, "disable")}}
	for k, v := range opt.Params {
		if k != "" {
			q.Set(k, v)
		}
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cmp.Or(opt.Host, "localhost"), strconv.Itoa(cmp.Or(opt.Port, 5432))),
		RawQuery: q.Encode(),
	}
	switch {
	case opt.User != "" && opt.Password != "":
		u.User = url.UserPassword(opt.User, opt.Password)
	case opt.User != "":
		u.User = url.User(opt.User)
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}
	return u.String()
}

func (opt Option) batchSize() int {
	if opt.BatchSize > 0 {
		return opt.BatchSize
	}
	return defaultBatchSize
}

func (opt Option) gormConfig() *gorm.Config {
	level := logger.Silent
	if opt.LogSQL {
		level = logger.Info
	}
	return &gorm.Config{Logger: logger.Default.LogMode(level)}
}
