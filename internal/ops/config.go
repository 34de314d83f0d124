package ops

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"

	"nrtstress/internal/harness"
	"nrtstress/internal/publish"
	"nrtstress/internal/store"
	"nrtstress/internal/traffic"
	"nrtstress/pkg/exception"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = 8080
	defaultExec = "./server.x"
)

// FileConfig mirrors the JSON or YAML config layout. Zero values fall back to
// the stock stress-test defaults.
type FileConfig struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Run        RunConfig        `json:"run" yaml:"run"`
	Traffic    TrafficConfig    `json:"traffic" yaml:"traffic"`
	Connection ConnectionConfig `json:"connection" yaml:"connection"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
	Postgres   PostgresConfig   `json:"postgres" yaml:"postgres"`
	NATS       NATSConfig       `json:"nats" yaml:"nats"`
	Pyroscope  PyroscopeConfig  `json:"pyroscope" yaml:"pyroscope"`
}

// ServerConfig locates and controls the server-under-test.
type ServerConfig struct {
	Host          string   `json:"host" yaml:"host"`
	Port          int      `json:"port" yaml:"port"`
	Exec          string   `json:"exec" yaml:"exec"`
	Args          []string `json:"args" yaml:"args"`
	Launch        *bool    `json:"launch" yaml:"launch"`
	StartupDelay  Duration `json:"startupDelay" yaml:"startupDelay"`
	ShutdownGrace Duration `json:"shutdownGrace" yaml:"shutdownGrace"`
}

// RunConfig sizes the run.
type RunConfig struct {
	Clients    int      `json:"clients" yaml:"clients"`
	Duration   Duration `json:"duration" yaml:"duration"`
	Seed       int64    `json:"seed" yaml:"seed"`
	ReportPath string   `json:"reportPath" yaml:"reportPath"`
}

// TrafficConfig shapes generated commands.
type TrafficConfig struct {
	Symbol      string             `json:"symbol" yaml:"symbol"`
	OrderTypes  []string           `json:"orderTypes" yaml:"orderTypes"`
	Weights     map[string]float64 `json:"weights" yaml:"weights"`
	QuantityMin int                `json:"quantityMin" yaml:"quantityMin"`
	QuantityMax int                `json:"quantityMax" yaml:"quantityMax"`
	PriceMin    *decimal.Decimal   `json:"priceMin" yaml:"priceMin"`
	PriceMax    *decimal.Decimal   `json:"priceMax" yaml:"priceMax"`
}

// ConnectionConfig tunes each client connection.
type ConnectionConfig struct {
	ConnectRetries int      `json:"connectRetries" yaml:"connectRetries"`
	ConnectDelay   Duration `json:"connectDelay" yaml:"connectDelay"`
	ReceiveTimeout Duration `json:"receiveTimeout" yaml:"receiveTimeout"`
	ReadBufferSize int      `json:"readBufferSize" yaml:"readBufferSize"`
	JitterMin      Duration `json:"jitterMin" yaml:"jitterMin"`
	JitterMax      Duration `json:"jitterMax" yaml:"jitterMax"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// PostgresConfig enables run persistence.
type PostgresConfig struct {
	DSN      string            `json:"dsn" yaml:"dsn"`
	Host     string            `json:"host" yaml:"host"`
	Port     int               `json:"port" yaml:"port"`
	User     string            `json:"user" yaml:"user"`
	Password string            `json:"password" yaml:"password"`
	Database string            `json:"database" yaml:"database"`
	SSLMode  string            `json:"sslMode" yaml:"sslMode"`
	Params   map[string]string `json:"params" yaml:"params"`

	BatchSize    int  `json:"batchSize" yaml:"batchSize"`
	MaxOpenConns int  `json:"maxOpenConns" yaml:"maxOpenConns"`
	LogSQL       bool `json:"logSql" yaml:"logSql"`
}

// NATSConfig enables event publishing.
type NATSConfig struct {
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

// PyroscopeConfig enables continuous profiling.
type PyroscopeConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Harness       harness.Config
	Exec          string
	Args          []string
	Launch        bool
	Postgres      store.Option
	NATSURL       string
	NATSSubject   string
	PyroscopeAddr string
}

// Load reads a JSON or YAML config file, chosen by extension. An empty path
// yields an empty FileConfig.
func Load(path string) (FileConfig, error) {
	var cfg FileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, errors.Wrapf(exception.ErrInvalidConfig, "parse %s: %v", path, err)
	}
	return cfg, nil
}

// Resolve fills defaults and validates the result.
func (c FileConfig) Resolve() (Loaded, error) {
	h := harness.DefaultConfig()

	host := firstNonEmpty(c.Server.Host, defaultHost)
	port := c.Server.Port
	if port == 0 {
		port = defaultPort
	}
	if port < 0 || port > 65535 {
		return Loaded{}, errors.Wrapf(exception.ErrInvalidConfig, "port %d out of range", port)
	}
	h.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	setDuration(&h.StartupDelay, c.Server.StartupDelay)
	setDuration(&h.ShutdownGrace, c.Server.ShutdownGrace)

	if c.Run.Clients != 0 {
		h.Clients = c.Run.Clients
	}
	setDuration(&h.Worker.Duration, c.Run.Duration)
	h.Seed = c.Run.Seed
	h.ReportPath = firstNonEmpty(c.Run.ReportPath, h.ReportPath)
	h.MetricsAddr = c.Metrics.Addr

	tc, err := resolveTraffic(c.Traffic, h.Traffic)
	if err != nil {
		return Loaded{}, err
	}
	h.Traffic = tc

	if c.Connection.ConnectRetries != 0 {
		h.Worker.ConnectRetries = c.Connection.ConnectRetries
	}
	if c.Connection.ReadBufferSize != 0 {
		h.Worker.ReadBufferSize = c.Connection.ReadBufferSize
	}
	setDuration(&h.Worker.ConnectDelay, c.Connection.ConnectDelay)
	setDuration(&h.Worker.ReceiveTimeout, c.Connection.ReceiveTimeout)
	setDuration(&h.Worker.JitterMin, c.Connection.JitterMin)
	setDuration(&h.Worker.JitterMax, c.Connection.JitterMax)

	if err := h.Validate(); err != nil {
		return Loaded{}, err
	}

	launch := true
	if c.Server.Launch != nil {
		launch = *c.Server.Launch
	}
	return Loaded{
		Harness: h,
		Exec:    firstNonEmpty(c.Server.Exec, defaultExec),
		Args:    c.Server.Args,
		Launch:  launch,
		Postgres: store.Option{
			URL:          c.Postgres.DSN,
			Host:         c.Postgres.Host,
			Port:         c.Postgres.Port,
			User:         c.Postgres.User,
			Password:     c.Postgres.Password,
			Database:     c.Postgres.Database,
			SSLMode:      c.Postgres.SSLMode,
			Params:       c.Postgres.Params,
			BatchSize:    c.Postgres.BatchSize,
			MaxOpenConns: c.Postgres.MaxOpenConns,
			LogSQL:       c.Postgres.LogSQL,
		},
		NATSURL:       c.NATS.URL,
		NATSSubject:   firstNonEmpty(c.NATS.Subject, publish.DefaultSubject),
		PyroscopeAddr: c.Pyroscope.Addr,
	}, nil
}

func resolveTraffic(c TrafficConfig, def traffic.Config) (traffic.Config, error) {
	out := def
	out.Symbol = firstNonEmpty(c.Symbol, def.Symbol)
	if len(c.OrderTypes) != 0 {
		out.OrderTypes = c.OrderTypes
	}
	if len(c.Weights) != 0 {
		out.Weights = make(map[traffic.Action]float64, len(c.Weights))
		for name, w := range c.Weights {
			out.Weights[traffic.Action(strings.ToUpper(name))] = w
		}
	}
	if c.QuantityMin != 0 {
		out.QuantityMin = c.QuantityMin
	}
	if c.QuantityMax != 0 {
		out.QuantityMax = c.QuantityMax
	}
	if c.PriceMin != nil {
		out.PriceMin = *c.PriceMin
	}
	if c.PriceMax != nil {
		out.PriceMax = *c.PriceMax
	}
	if err := out.Validate(); err != nil {
		return traffic.Config{}, err
	}
	return out, nil
}

func setDuration(dst *time.Duration, v Duration) {
	if v != 0 {
		*dst = v.Std()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
