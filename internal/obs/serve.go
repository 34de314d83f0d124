package obs

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
)

const metricsPath = "/metrics"

// Endpoint is a running /metrics HTTP server.
type Endpoint struct {
	srv  *http.Server
	addr string
	done chan struct{}
}

// Serve exposes m on addr under /metrics until Shutdown is called.
func Serve(addr string, m *Metrics) (*Endpoint, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(m)); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	e := &Endpoint{
		srv:  &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr: ln.Addr().String(),
		done: make(chan struct{}),
	}
	go func() {
		defer close(e.done)
		if err := e.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("metrics server, err: %+v", err)
		}
	}()
	logs.Infof("metrics listening on http://%s%s", e.addr, metricsPath)
	return e, nil
}

// Addr returns the bound address.
func (e *Endpoint) Addr() string {
	return e.addr
}

// Shutdown stops the server, waiting at most until ctx ends.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	err := e.srv.Shutdown(ctx)
	<-e.done
	return err
}
