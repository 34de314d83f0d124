package harness

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"nrtstress/internal/aggregate"
	"nrtstress/internal/obs"
	"nrtstress/internal/protocol"
	"nrtstress/internal/report"
	"nrtstress/internal/store"
	"nrtstress/internal/traffic"
	"nrtstress/internal/worker"
	"nrtstress/pkg/exception"
	"nrtstress/pkg/tcp"
)

const (
	metricsShutdownTimeout = 2 * time.Second
	persistTimeout         = 10 * time.Second
)

// RunStore persists a finished run.
type RunStore interface {
	SaveRun(ctx context.Context, run *store.Run, orders []protocol.OrderEvent, trades []protocol.TradeEvent) error
}

// EventPublisher receives every captured event and is closed after the run.
type EventPublisher interface {
	aggregate.Sink
	Close() error
}

// Deps are the harness collaborators. Only Launcher is required.
type Deps struct {
	Launcher   Launcher
	Transcript *report.Transcript
	Metrics    *obs.Metrics
	Store      RunStore
	Publisher  EventPublisher
}

// Result is the outcome of a completed run.
type Result struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Orders      []protocol.OrderEvent
	Trades      []protocol.TradeEvent
	Workers     []worker.Result
	Metrics     obs.Snapshot
	ReportPath  string
	ShutdownErr error
}

// Errored counts workers that ended in the Errored state.
func (r Result) Errored() int {
	n := 0
	for _, w := range r.Workers {
		if w.State == worker.Errored {
			n++
		}
	}
	return n
}

// Harness orchestrates one stress run against the server-under-test.
type Harness struct {
	cfg    Config
	deps   Deps
	agg    *aggregate.Aggregator
	client *tcp.Client
}

// New validates cfg and builds a harness.
func New(cfg Config, deps Deps) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Launcher == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "harness launcher")
	}
	client, err := tcp.NewClient(cfg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "client for %s", cfg.Addr)
	}
	if deps.Transcript == nil {
		deps.Transcript = report.NewTranscript()
	}
	if deps.Metrics == nil {
		deps.Metrics = obs.NewMetrics()
	}
	return &Harness{cfg: cfg, deps: deps, agg: aggregate.New(), client: client}, nil
}

// Aggregator exposes the shared event log.
func (h *Harness) Aggregator() *aggregate.Aggregator {
	return h.agg
}

// Run launches the server, drives every worker to a terminal state, stops the
// server and writes the report. Only startup failures are returned as errors;
// a shutdown escalation is reported in Result.ShutdownErr.
func (h *Harness) Run(ctx context.Context) (Result, error) {
	tr := h.deps.Transcript
	res := Result{StartedAt: time.Now()}

	srv, err := h.deps.Launcher.Launch(ctx)
	if err != nil {
		tr.Logf("Error: %v", err)
		logs.Errorf("launch server, err: %+v", err)
		return res, err
	}

	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			if err := srv.Stop(h.cfg.ShutdownGrace); err != nil {
				res.ShutdownErr = err
				logs.Errorf("stop server, err: %+v", err)
			}
		})
	}
	defer stop()

	if h.cfg.MetricsAddr != "" {
		endpoint, err := obs.Serve(h.cfg.MetricsAddr, h.deps.Metrics)
		if err != nil {
			logs.Errorf("serve metrics on %s, err: %+v", h.cfg.MetricsAddr, err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
				defer cancel()
				_ = endpoint.Shutdown(sctx)
			}()
		}
	}

	if !sleep(ctx, h.cfg.StartupDelay) {
		return res, ctx.Err()
	}

	tr.Logf("Starting %d clients...", h.cfg.Clients)
	res.Workers = h.runWorkers(ctx)

	tr.Log("All clients finished. Stopping server...")
	stop()

	res.Orders, res.Trades = h.agg.Snapshot()
	res.Metrics = h.deps.Metrics.Snapshot()
	res.FinishedAt = time.Now()

	outcomes := make([]report.WorkerOutcome, len(res.Workers))
	for i, w := range res.Workers {
		outcomes[i] = w.Outcome()
	}
	report.Write(tr, report.Summary{
		Orders:  res.Orders,
		Trades:  res.Trades,
		Workers: outcomes,
		Metrics: &res.Metrics,
	})

	h.persist(res)
	if h.deps.Publisher != nil {
		if err := h.deps.Publisher.Close(); err != nil {
			logs.Errorf("close publisher, err: %+v", err)
		}
	}

	if h.cfg.ReportPath != "" {
		path, err := tr.WriteFile(h.cfg.ReportPath)
		if err != nil {
			logs.Errorf("write report, err: %+v", err)
		} else {
			res.ReportPath = path
			logs.Infof("Full terminal output saved to: %s", path)
		}
	}
	return res, nil
}

func (h *Harness) runWorkers(ctx context.Context) []worker.Result {
	sink := aggregate.NewFanout(h.agg, h.deps.Metrics, h.deps.Publisher)

	base := h.cfg.Seed
	if base == 0 {
		base = time.Now().UTC().UnixNano()
	}

	results := make([]worker.Result, h.cfg.Clients)
	var wg sync.WaitGroup
	for i := 0; i < h.cfg.Clients; i++ {
		id := i + 1
		gen, err := traffic.NewGenerator(h.cfg.Traffic, base+int64(id))
		if err == nil {
			var w *worker.Worker
			w, err = worker.New(id, h.cfg.Worker, worker.Deps{
				Dialer:     h.client,
				Generator:  gen,
				Sink:       sink,
				Transcript: h.deps.Transcript,
				Metrics:    h.deps.Metrics,
			})
			if err == nil {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = w.Run(ctx)
				}(i)
				continue
			}
		}
		logs.Errorf("[Client %d] create worker, err: %+v", id, err)
		results[i] = worker.Result{ClientID: id, State: worker.Errored, Err: err}
	}
	wg.Wait()
	return results
}

func (h *Harness) persist(res Result) {
	if h.deps.Store == nil {
		return
	}
	run := &store.Run{
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
		ServerAddr:     h.cfg.Addr,
		Clients:        h.cfg.Clients,
		DurationMillis: h.cfg.Worker.Duration.Milliseconds(),
		Symbol:         h.cfg.Traffic.Symbol,
		WorkersDone:    len(res.Workers) - res.Errored(),
		WorkersErrored: res.Errored(),
		CommandsSent:   res.Metrics.TotalSent(),
		Responses:      res.Metrics.Responses,
		Timeouts:       res.Metrics.ReceiveTimeouts,
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := h.deps.Store.SaveRun(ctx, run, res.Orders, res.Trades); err != nil {
		logs.Errorf("persist run, err: %+v", err)
		return
	}
	h.deps.Transcript.Log("Run persisted with id " + strconv.FormatUint(run.ID, 10))
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
