package worker

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nrtstress/internal/aggregate"
	"nrtstress/internal/chaos"
	"nrtstress/internal/mockserver"
	"nrtstress/internal/obs"
	"nrtstress/internal/report"
	"nrtstress/internal/traffic"
	"nrtstress/pkg/exception"
	"nrtstress/pkg/tcp"
)

const echoedOrder = "[ORDER] client 1 -> BUY 5 AAPL LIMIT 120.50"

// chunkLog keeps every chunk a test server received, per connection.
type chunkLog struct {
	mu     sync.Mutex
	chunks []string
	closed bool
}

func (c *chunkLog) add(s string) {
	c.mu.Lock()
	c.chunks = append(c.chunks, s)
	c.mu.Unlock()
}

func (c *chunkLog) snapshot() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.chunks))
	copy(out, c.chunks)
	return out, c.closed
}

// startServer runs a loopback server calling reply for every chunk read.
// A nil reply string sends nothing back.
func startServer(t *testing.T, reply func(chunk string) (string, bool)) (string, *chunkLog) {
	t.Helper()
	srv, err := tcp.NewServer("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, srv.Listen())
	t.Cleanup(func() { _ = srv.Close() })

	log := &chunkLog{}
	go func() {
		for {
			conn, err := srv.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				buf := make([]byte, 2048)
				for {
					n, err := conn.Read(buf)
					if err != nil {
						log.mu.Lock()
						log.closed = true
						log.mu.Unlock()
						return
					}
					chunk := string(buf[:n])
					log.add(chunk)
					out, keep := reply(chunk)
					if !keep {
						return
					}
					if out != "" {
						if _, err := conn.Write([]byte(out)); err != nil {
							return
						}
					}
				}
			}(conn)
		}
	}()
	return srv.Addr(), log
}

func fastConfig(d time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Duration = d
	cfg.ReceiveTimeout = 200 * time.Millisecond
	cfg.JitterMin = 5 * time.Millisecond
	cfg.JitterMax = 10 * time.Millisecond
	cfg.ConnectRetries = 3
	cfg.ConnectDelay = 10 * time.Millisecond
	return cfg
}

func newWorker(t *testing.T, id int, addr string, cfg Config, sink Sink, m *obs.Metrics) *Worker {
	t.Helper()
	client, err := tcp.NewClient(addr)
	require.NoError(t, err)
	gen, err := traffic.NewGenerator(traffic.DefaultConfig(), int64(100+id))
	require.NoError(t, err)
	w, err := New(id, cfg, Deps{
		Dialer:     client,
		Generator:  gen,
		Sink:       sink,
		Transcript: report.NewTranscript().Quiet(),
		Metrics:    m,
	})
	require.NoError(t, err)
	return w
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestNewValidation(t *testing.T) {
	_, err := New(0, DefaultConfig(), Deps{})
	require.True(t, errors.Is(err, exception.ErrInvalidArgument))

	_, err = New(1, DefaultConfig(), Deps{})
	require.True(t, errors.Is(err, exception.ErrNilInstance))

	bad := DefaultConfig()
	bad.ReadBufferSize = 0
	_, err = New(1, bad, Deps{})
	require.True(t, errors.Is(err, exception.ErrInvalidConfig))
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		desc   string
		mutate func(*Config)
	}{
		{"zero duration", func(c *Config) { c.Duration = 0 }},
		{"zero receive timeout", func(c *Config) { c.ReceiveTimeout = 0 }},
		{"jitter inverted", func(c *Config) { c.JitterMin, c.JitterMax = time.Second, time.Millisecond }},
		{"negative jitter", func(c *Config) { c.JitterMin = -time.Millisecond }},
		{"no retries", func(c *Config) { c.ConnectRetries = 0 }},
		{"negative delay", func(c *Config) { c.ConnectDelay = -time.Millisecond }},
	}
	require.NoError(t, DefaultConfig().Validate())
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			require.True(t, errors.Is(cfg.Validate(), exception.ErrInvalidConfig))
		})
	}
}

func TestWorkerRecordsEchoedOrder(t *testing.T) {
	addr, _ := startServer(t, func(string) (string, bool) { return echoedOrder, true })
	agg := aggregate.New()
	m := obs.NewMetrics()

	cfg := fastConfig(time.Second)
	w := newWorker(t, 1, addr, cfg, agg, m)
	res := w.Run(context.Background())

	require.Equal(t, Done, res.State)
	require.NoError(t, res.Err)
	assert.Equal(t, Done, w.State())

	orders, trades := agg.Snapshot()
	require.NotEmpty(t, orders)
	assert.Empty(t, trades)
	for _, o := range orders {
		assert.Equal(t, 1, o.ClientID)
		assert.Equal(t, "BUY", string(o.Side))
		assert.Equal(t, 5, o.Quantity)
		assert.Equal(t, "AAPL", o.Symbol)
		assert.Equal(t, "LIMIT", o.OrderType)
		assert.True(t, o.Price.Equal(decimal.RequireFromString("120.50")))
	}
	assert.Equal(t, len(orders), res.Orders)
	assert.Equal(t, res.Sent, res.Received)

	s := m.Snapshot()
	assert.Equal(t, uint64(len(orders)), s.Responses)
	assert.Equal(t, uint64(res.Sent+1), s.TotalSent())
	assert.Equal(t, uint64(1), s.WorkersDone)
}

func TestWorkerRecordsTrade(t *testing.T) {
	addr, _ := startServer(t, func(string) (string, bool) {
		return "[TRADE] 1 bought 3 AAPL from 2 @ 121.00", true
	})
	agg := aggregate.New()
	w := newWorker(t, 1, addr, fastConfig(100*time.Millisecond), agg, nil)
	res := w.Run(context.Background())

	require.Equal(t, Done, res.State)
	_, trades := agg.Snapshot()
	require.NotEmpty(t, trades)
	assert.Equal(t, 1, trades[0].BuyerID)
	assert.Equal(t, 2, trades[0].SellerID)
}

func TestWorkerRetryExhaustionDoesNotAffectOthers(t *testing.T) {
	addr, _ := startServer(t, func(string) (string, bool) { return echoedOrder, true })
	dead := closedAddr(t)
	agg := aggregate.New()
	m := obs.NewMetrics()

	good := newWorker(t, 1, addr, fastConfig(300*time.Millisecond), agg, m)
	bad := newWorker(t, 2, dead, fastConfig(300*time.Millisecond), agg, m)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i, w := range []*Worker{good, bad} {
		wg.Add(1)
		go func(i int, w *Worker) {
			defer wg.Done()
			results[i] = w.Run(context.Background())
		}(i, w)
	}
	wg.Wait()

	assert.Equal(t, Done, results[0].State)
	assert.Positive(t, results[0].Orders)

	assert.Equal(t, Errored, results[1].State)
	require.Error(t, results[1].Err)
	assert.True(t, errors.Is(results[1].Err, exception.ErrConnectRetriesExhausted))
	assert.Zero(t, results[1].Sent)

	s := m.Snapshot()
	assert.Equal(t, uint64(3), s.ConnectRetries)
	assert.Equal(t, uint64(1), s.WorkersDone)
	assert.Equal(t, uint64(1), s.WorkersErrored)
}

func TestWorkerSendsExitThenCloses(t *testing.T) {
	addr, log := startServer(t, func(string) (string, bool) { return "Portfolio: empty", true })
	w := newWorker(t, 1, addr, fastConfig(100*time.Millisecond), aggregate.New(), nil)
	res := w.Run(context.Background())
	require.Equal(t, Done, res.State)

	require.Eventually(t, func() bool {
		_, closed := log.snapshot()
		return closed
	}, 2*time.Second, 10*time.Millisecond)

	chunks, _ := log.snapshot()
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "exit"))
}

func TestWorkerTimeoutIsNotAnError(t *testing.T) {
	addr, _ := startServer(t, func(string) (string, bool) { return "", true })
	cfg := fastConfig(200 * time.Millisecond)
	cfg.ReceiveTimeout = 30 * time.Millisecond
	m := obs.NewMetrics()
	w := newWorker(t, 1, addr, cfg, aggregate.New(), m)

	res := w.Run(context.Background())
	require.Equal(t, Done, res.State)
	assert.Positive(t, res.Timeouts)
	assert.Zero(t, res.Received)
	assert.Equal(t, uint64(res.Timeouts), m.Snapshot().ReceiveTimeouts)
}

func TestWorkerServerCloseEndsErrored(t *testing.T) {
	addr, _ := startServer(t, func(string) (string, bool) { return "", false })
	m := obs.NewMetrics()
	w := newWorker(t, 1, addr, fastConfig(2*time.Second), aggregate.New(), m)

	res := w.Run(context.Background())
	require.Equal(t, Errored, res.State)
	require.Error(t, res.Err)
	assert.Equal(t, uint64(1), m.Snapshot().IOErrors)
}

func TestWorkerCancellationEndsDone(t *testing.T) {
	addr, _ := startServer(t, func(string) (string, bool) { return echoedOrder, true })
	w := newWorker(t, 1, addr, fastConfig(time.Minute), aggregate.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	res := w.Run(ctx)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, Done, res.State)
	assert.NoError(t, res.Err)
}

func TestResultOutcome(t *testing.T) {
	r := Result{ClientID: 3, State: Errored, Err: exception.ErrConnectRetriesExhausted, Sent: 4, Received: 2, Timeouts: 1}
	o := r.Outcome()
	assert.Equal(t, 3, o.ClientID)
	assert.Equal(t, "Errored", o.State)
	assert.Equal(t, 4, o.Sent)
	assert.Equal(t, 1, o.Timeouts)
}

func TestWorkerDiscardsUndecodableResponses(t *testing.T) {
	engine, err := chaos.NewEngine(chaos.Config{Seed: 5, GarbleRate: 1})
	require.NoError(t, err)
	srv, err := mockserver.New("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, srv.WithChaos(engine).Start())
	t.Cleanup(func() { _ = srv.Close() })

	agg := aggregate.New()
	m := obs.NewMetrics()
	w := newWorker(t, 1, srv.Addr(), fastConfig(200*time.Millisecond), agg, m)
	res := w.Run(context.Background())

	require.Equal(t, Done, res.State)
	assert.Positive(t, res.DecodeErrors)
	orders, _ := agg.Snapshot()
	assert.Empty(t, orders)
	assert.Equal(t, uint64(res.DecodeErrors), m.Snapshot().DecodeErrors)
}
