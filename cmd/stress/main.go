package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"nrtstress/internal/harness"
	"nrtstress/internal/obs"
	"nrtstress/internal/ops"
	"nrtstress/internal/publish"
	"nrtstress/internal/report"
	"nrtstress/internal/serverproc"
	"nrtstress/internal/store"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("stress: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON or YAML config")
	envFile := flag.String("env-file", ".env", "Env file loaded before STRESS_* overrides")
	execPath := flag.String("exec", "", "Server executable to launch")
	host := flag.String("host", "", "Server host")
	port := flag.Int("port", 0, "Server port")
	clients := flag.Int("clients", 0, "Number of concurrent clients")
	duration := flag.Duration("duration", 0, "Traffic duration per client")
	symbol := flag.String("symbol", "", "Symbol every order targets")
	reportPath := flag.String("report", "", "Transcript output path")
	seed := flag.Int64("seed", 0, "Traffic seed (0=clock)")
	noLaunch := flag.Bool("no-launch", false, "Attach to an already running server")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	pgDSN := flag.String("pg-dsn", "", "PostgreSQL DSN for run persistence")
	natsURL := flag.String("nats-url", "", "NATS URL for event publishing")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address")
	flag.Parse()

	if err := ops.LoadDotEnv(*envFile); err != nil {
		return err
	}
	fileCfg, err := ops.Load(*configPath)
	if err != nil {
		return err
	}
	if err := fileCfg.ApplyEnv(nil); err != nil {
		return err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "exec":
			fileCfg.Server.Exec = *execPath
		case "host":
			fileCfg.Server.Host = *host
		case "port":
			fileCfg.Server.Port = *port
		case "clients":
			fileCfg.Run.Clients = *clients
		case "duration":
			fileCfg.Run.Duration = ops.Duration(*duration)
		case "symbol":
			fileCfg.Traffic.Symbol = *symbol
		case "report":
			fileCfg.Run.ReportPath = *reportPath
		case "seed":
			fileCfg.Run.Seed = *seed
		case "no-launch":
			launch := !*noLaunch
			fileCfg.Server.Launch = &launch
		case "metrics-addr":
			fileCfg.Metrics.Addr = *metricsAddr
		case "pg-dsn":
			fileCfg.Postgres.DSN = *pgDSN
		case "nats-url":
			fileCfg.NATS.URL = *natsURL
		case "pyroscope":
			fileCfg.Pyroscope.Addr = *pyroscopeAddr
		}
	})

	cfg, err := fileCfg.Resolve()
	if err != nil {
		return err
	}

	if cfg.PyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "nrtstress",
			ServerAddress:   cfg.PyroscopeAddr,
			Tags: map[string]string{
				"target": cfg.Harness.Addr,
			},
			Logger: profilerLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return fmt.Errorf("pyroscope start failed: %w", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sys.Shutdown():
			logs.Info("interrupt received, stopping clients")
			cancel()
		case <-ctx.Done():
		}
	}()

	transcript := report.NewTranscript()
	metrics := obs.NewMetrics()
	deps := harness.Deps{
		Transcript: transcript,
		Metrics:    metrics,
	}

	if cfg.Launch {
		deps.Launcher = harness.ProcessLauncher(serverproc.Launcher{
			Path:       cfg.Exec,
			Args:       cfg.Args,
			Transcript: transcript,
		})
	} else {
		logs.Infof("attaching to running server at %s", cfg.Harness.Addr)
		deps.Launcher = harness.Attach()
	}

	if cfg.Postgres.Enabled() {
		st, err := store.Open(cfg.Postgres)
		if err != nil {
			logs.Errorf("postgres disabled, err: %+v", err)
		} else {
			defer st.Close()
			deps.Store = st
		}
	}

	if cfg.NATSURL != "" {
		pub, err := publish.NewNATS(cfg.NATSURL, cfg.NATSSubject, metrics)
		if err != nil {
			logs.Errorf("nats disabled, err: %+v", err)
		} else {
			deps.Publisher = pub
		}
	}

	h, err := harness.New(cfg.Harness, deps)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := h.Run(ctx)
	if err != nil {
		return err
	}
	if res.ShutdownErr != nil {
		logs.Errorf("server shutdown, err: %+v", res.ShutdownErr)
	}
	logs.Infof("run finished in %s: %d orders, %d trades, %d/%d clients errored",
		time.Since(start).Round(time.Millisecond), len(res.Orders), len(res.Trades), res.Errored(), len(res.Workers))
	return nil
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...interface{})  { logs.Infof(format, args...) }
func (profilerLogger) Debugf(_ string, _ ...interface{})         {}
func (profilerLogger) Errorf(format string, args ...interface{}) { logs.Errorf(format, args...) }
