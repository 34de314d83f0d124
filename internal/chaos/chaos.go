package chaos

import (
	"math/rand"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"nrtstress/pkg/exception"
)

// garbage is prepended to garbled responses; it is never valid UTF-8.
var garbage = []byte{0xff, 0xfe}

// Config controls fault injection on server responses.
type Config struct {
	Seed       int64
	DropRate   float64
	GarbleRate float64
	MaxDelay   time.Duration
}

// Enabled reports whether any fault is configured.
func (c Config) Enabled() bool {
	return c.DropRate > 0 || c.GarbleRate > 0 || c.MaxDelay > 0
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return errors.Wrap(exception.ErrInvalidConfig, "dropRate must be between 0 and 1")
	}
	if c.GarbleRate < 0 || c.GarbleRate > 1 {
		return errors.Wrap(exception.ErrInvalidConfig, "garbleRate must be between 0 and 1")
	}
	if c.MaxDelay < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "maxDelay must be >= 0")
	}
	return nil
}

// Engine decides the fate of each response. It is safe for concurrent use.
// A nil Engine passes every response through untouched.
type Engine struct {
	cfg Config
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Apply returns the bytes to send, how long to hold them, and false when the
// response should be dropped.
func (e *Engine) Apply(resp []byte) ([]byte, time.Duration, bool) {
	if e == nil {
		return resp, 0, true
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.DropRate > 0 && e.rng.Float64() < e.cfg.DropRate {
		return nil, 0, false
	}
	var delay time.Duration
	if e.cfg.MaxDelay > 0 {
		delay = time.Duration(e.rng.Int63n(e.cfg.MaxDelay.Nanoseconds() + 1))
	}
	if e.cfg.GarbleRate > 0 && e.rng.Float64() < e.cfg.GarbleRate {
		out := make([]byte, 0, len(garbage)+len(resp))
		out = append(out, garbage...)
		out = append(out, resp...)
		return out, delay, true
	}
	return resp, delay, true
}
