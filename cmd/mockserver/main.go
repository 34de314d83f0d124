package main

import (
	"context"
	"flag"
	"os"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"nrtstress/internal/chaos"
	"nrtstress/internal/mockserver"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "Listen address")
	seed := flag.Int64("chaos-seed", 0, "Chaos seed (0=clock)")
	dropRate := flag.Float64("drop-rate", 0, "Fraction of responses to drop")
	garbleRate := flag.Float64("garble-rate", 0, "Fraction of responses to corrupt")
	maxDelay := flag.Duration("max-delay", 0, "Maximum random delay before each response")
	flag.Parse()

	srv, err := mockserver.New(*addr)
	if err != nil {
		logs.Errorf("mockserver: %+v", err)
		os.Exit(1)
	}

	chaosCfg := chaos.Config{Seed: *seed, DropRate: *dropRate, GarbleRate: *garbleRate, MaxDelay: *maxDelay}
	if chaosCfg.Enabled() {
		engine, err := chaos.NewEngine(chaosCfg)
		if err != nil {
			logs.Errorf("mockserver: %+v", err)
			os.Exit(1)
		}
		srv.WithChaos(engine)
		logs.Infof("chaos enabled: drop=%.2f garble=%.2f maxDelay=%s", *dropRate, *garbleRate, *maxDelay)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sys.Shutdown()
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		logs.Errorf("mockserver: %+v", err)
		os.Exit(1)
	}
	logs.Info("Server stopped")
}
