package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"nrtstress/internal/obs"
	"nrtstress/internal/protocol"
	"nrtstress/internal/report"
	"nrtstress/internal/traffic"
	"nrtstress/pkg/exception"
	"nrtstress/pkg/tcp"
)

// Dialer opens the worker's connection with bounded retries.
type Dialer interface {
	DialRetry(ctx context.Context, attempts int, delay time.Duration, onRetry tcp.RetryFunc) (net.Conn, error)
}

// Sink receives the events a worker extracts from responses.
type Sink interface {
	RecordOrder(protocol.OrderEvent)
	RecordTrade(protocol.TradeEvent)
}

// Deps are the collaborators a worker needs. Transcript and Metrics may be nil.
type Deps struct {
	Dialer     Dialer
	Generator  *traffic.Generator
	Sink       Sink
	Transcript *report.Transcript
	Metrics    *obs.Metrics
}

// Result summarizes one finished worker.
type Result struct {
	ClientID     int
	State        State
	Err          error
	Sent         int
	Received     int
	Timeouts     int
	DecodeErrors int
	Orders       int
	Trades       int
}

// Outcome converts the result for the final report.
func (r Result) Outcome() report.WorkerOutcome {
	return report.WorkerOutcome{
		ClientID: r.ClientID,
		State:    r.State.String(),
		Err:      r.Err,
		Sent:     r.Sent,
		Received: r.Received,
		Timeouts: r.Timeouts,
	}
}

// Worker drives one client connection through its lifecycle.
// A worker is single use; Run must be called at most once.
type Worker struct {
	id    int
	cfg   Config
	deps  Deps
	state atomic.Int32
}

// New creates a worker for clientID.
func New(clientID int, cfg Config, deps Deps) (*Worker, error) {
	if clientID < 1 {
		return nil, fmt.Errorf("%w: client id must be >= 1, got %d", exception.ErrInvalidArgument, clientID)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Dialer == nil || deps.Generator == nil || deps.Sink == nil {
		return nil, fmt.Errorf("%w: worker requires dialer, generator and sink", exception.ErrNilInstance)
	}
	return &Worker{id: clientID, cfg: cfg, deps: deps}, nil
}

// ID returns the worker's client id.
func (w *Worker) ID() int {
	return w.id
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// Run connects, exchanges traffic until the duration elapses or ctx ends,
// then closes the connection. It never panics on I/O failure; the error is
// carried in the result.
func (w *Worker) Run(ctx context.Context) Result {
	res := Result{ClientID: w.id}
	w.setState(Connecting)

	dialStart := time.Now()
	conn, err := w.deps.Dialer.DialRetry(ctx, w.cfg.ConnectRetries, w.cfg.ConnectDelay, func(int, error) {
		w.deps.Metrics.IncConnectRetry()
	})
	if err != nil {
		if ctx.Err() != nil {
			return w.finish(res, Done, nil)
		}
		w.deps.Transcript.Logf("[Client %d] ERROR: Could not connect", w.id)
		logs.Errorf("[Client %d] connect failed, err: %+v", w.id, err)
		return w.finish(res, Errored, err)
	}
	w.deps.Metrics.ObserveConnect(time.Since(dialStart))

	w.setState(Active)
	loopErr := w.exchange(ctx, conn, &res)
	if loopErr != nil {
		w.deps.Metrics.IncIOError()
		w.deps.Transcript.Logf("[Client %d] ERROR: %v", w.id, loopErr)
		logs.Errorf("[Client %d] exchange failed, err: %+v", w.id, loopErr)
	}

	w.setState(Closing)
	w.close(conn)

	if loopErr != nil {
		return w.finish(res, Errored, loopErr)
	}
	return w.finish(res, Done, nil)
}

func (w *Worker) finish(res Result, s State, err error) Result {
	w.setState(s)
	res.State = s
	res.Err = err
	w.deps.Metrics.ObserveWorker(s == Errored)
	return res
}

// exchange runs the send/receive loop. A nil return means the duration
// elapsed or ctx was cancelled.
func (w *Worker) exchange(ctx context.Context, conn net.Conn, res *Result) error {
	buf := make([]byte, w.cfg.ReadBufferSize)
	deadline := time.Now().Add(w.cfg.Duration)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return nil
		}

		cmd := w.deps.Generator.Next(w.id)
		payload, err := protocol.Encode(cmd)
		if err != nil {
			return fmt.Errorf("encode command: %w", err)
		}
		sentAt := time.Now()
		if err := w.send(conn, payload); err != nil {
			return fmt.Errorf("send %q: %w", payload, err)
		}
		res.Sent++
		if kind, ok := obs.KindOf(cmd); ok {
			w.deps.Metrics.IncSent(kind)
		}

		if err := conn.SetReadDeadline(time.Now().Add(w.cfg.ReceiveTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, err := conn.Read(buf)
		if n > 0 {
			w.handle(buf[:n], sentAt, res)
		}
		switch {
		case err == nil:
		case isTimeout(err):
			res.Timeouts++
			w.deps.Metrics.IncReceiveTimeout()
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: server closed connection", exception.ErrConnectionClose)
		default:
			return fmt.Errorf("receive: %w", err)
		}

		if !sleep(ctx, w.deps.Generator.Jitter(w.cfg.JitterMin, w.cfg.JitterMax)) {
			return nil
		}
	}
	return nil
}

func (w *Worker) send(conn net.Conn, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(w.cfg.ReceiveTimeout)); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

func (w *Worker) handle(data []byte, sentAt time.Time, res *Result) {
	resp, err := protocol.Decode(data)
	if err != nil {
		res.DecodeErrors++
		w.deps.Metrics.IncDecodeError()
		logs.Errorf("[Client %d] discard response, err: %+v", w.id, err)
		return
	}
	if resp.Empty() {
		return
	}
	res.Received++
	w.deps.Metrics.ObserveResponse(time.Since(sentAt))
	w.deps.Transcript.Logf("[Client %d]: %s", w.id, resp.Text)

	if ev, ok := protocol.ExtractOrderEvent(resp.Text); ok {
		w.deps.Sink.RecordOrder(ev)
		res.Orders++
	}
	if ev, ok := protocol.ExtractTradeEvent(resp.Text); ok {
		w.deps.Sink.RecordTrade(ev)
		res.Trades++
	}
}

// close sends the terminate command best effort, then always closes conn.
func (w *Worker) close(conn net.Conn) {
	payload, _ := protocol.Encode(protocol.Terminate{})
	if err := w.send(conn, payload); err != nil {
		logs.Errorf("[Client %d] send exit, err: %+v", w.id, err)
	} else {
		w.deps.Metrics.IncSent(obs.CommandTerminate)
	}
	if err := conn.Close(); err != nil {
		logs.Errorf("[Client %d] close connection, err: %+v", w.id, err)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// sleep waits d and reports false when ctx ended first.
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
