package obs

import (
	"sync/atomic"
	"time"

	"nrtstress/internal/protocol"
)

// CommandKind classifies a sent command for counting.
type CommandKind int

const (
	CommandOrder CommandKind = iota
	CommandViewPortfolio
	CommandViewMarket
	CommandTerminate
	commandKindCount
)

var commandKindNames = [commandKindCount]string{
	CommandOrder:         "order",
	CommandViewPortfolio: "view_portfolio",
	CommandViewMarket:    "view_market",
	CommandTerminate:     "terminate",
}

func (k CommandKind) String() string {
	if k < 0 || k >= commandKindCount {
		return "unknown"
	}
	return commandKindNames[k]
}

// KindOf maps a command to its counter kind.
func KindOf(cmd protocol.Command) (CommandKind, bool) {
	switch cmd.(type) {
	case protocol.PlaceOrder, *protocol.PlaceOrder:
		return CommandOrder, true
	case protocol.ViewPortfolio, *protocol.ViewPortfolio:
		return CommandViewPortfolio, true
	case protocol.ViewMarket, *protocol.ViewMarket:
		return CommandViewMarket, true
	case protocol.Terminate, *protocol.Terminate:
		return CommandTerminate, true
	}
	return 0, false
}

// Metrics collects lightweight counters and latency stats for a stress run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	commandsSent    [commandKindCount]uint64
	responses       uint64
	receiveTimeouts uint64
	decodeErrors    uint64
	ioErrors        uint64
	connectRetries  uint64
	ordersObserved  uint64
	tradesObserved  uint64
	workersDone     uint64
	workersErrored  uint64
	publishErrors   uint64

	roundTrip LatencyStats
	connect   LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	CommandsSent    map[CommandKind]uint64
	Responses       uint64
	ReceiveTimeouts uint64
	DecodeErrors    uint64
	IOErrors        uint64
	ConnectRetries  uint64
	OrdersObserved  uint64
	TradesObserved  uint64
	WorkersDone     uint64
	WorkersErrored  uint64
	PublishErrors   uint64
	RoundTrip       LatencySnapshot
	Connect         LatencySnapshot
}

// TotalSent sums sent commands over every kind.
func (s Snapshot) TotalSent() uint64 {
	var total uint64
	for _, v := range s.CommandsSent {
		total += v
	}
	return total
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncSent counts one command sent of the given kind.
func (m *Metrics) IncSent(kind CommandKind) {
	if m == nil || kind < 0 || kind >= commandKindCount {
		return
	}
	atomic.AddUint64(&m.commandsSent[kind], 1)
}

// ObserveResponse counts a non-empty response and its round-trip latency.
func (m *Metrics) ObserveResponse(rtt time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.responses, 1)
	m.roundTrip.Observe(rtt)
}

// IncReceiveTimeout records a read that hit its deadline.
func (m *Metrics) IncReceiveTimeout() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.receiveTimeouts, 1)
}

// IncDecodeError records a response that was not valid text.
func (m *Metrics) IncDecodeError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.decodeErrors, 1)
}

// IncIOError records a send or receive failure.
func (m *Metrics) IncIOError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ioErrors, 1)
}

// IncConnectRetry records a failed dial attempt.
func (m *Metrics) IncConnectRetry() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.connectRetries, 1)
}

// ObserveConnect records how long a successful dial took, retries included.
func (m *Metrics) ObserveConnect(d time.Duration) {
	if m == nil {
		return
	}
	m.connect.Observe(d)
}

// IncPublishError records a failed event publish.
func (m *Metrics) IncPublishError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.publishErrors, 1)
}

// ObserveWorker records a worker outcome.
func (m *Metrics) ObserveWorker(errored bool) {
	if m == nil {
		return
	}
	if errored {
		atomic.AddUint64(&m.workersErrored, 1)
		return
	}
	atomic.AddUint64(&m.workersDone, 1)
}

// RecordOrder counts an observed order so Metrics can sit in a sink fanout.
func (m *Metrics) RecordOrder(protocol.OrderEvent) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersObserved, 1)
}

// RecordTrade counts an observed trade.
func (m *Metrics) RecordTrade(protocol.TradeEvent) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.tradesObserved, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	sent := make(map[CommandKind]uint64)
	for i := range m.commandsSent {
		if v := atomic.LoadUint64(&m.commandsSent[i]); v > 0 {
			sent[CommandKind(i)] = v
		}
	}
	return Snapshot{
		CommandsSent:    sent,
		Responses:       atomic.LoadUint64(&m.responses),
		ReceiveTimeouts: atomic.LoadUint64(&m.receiveTimeouts),
		DecodeErrors:    atomic.LoadUint64(&m.decodeErrors),
		IOErrors:        atomic.LoadUint64(&m.ioErrors),
		ConnectRetries:  atomic.LoadUint64(&m.connectRetries),
		OrdersObserved:  atomic.LoadUint64(&m.ordersObserved),
		TradesObserved:  atomic.LoadUint64(&m.tradesObserved),
		WorkersDone:     atomic.LoadUint64(&m.workersDone),
		WorkersErrored:  atomic.LoadUint64(&m.workersErrored),
		PublishErrors:   atomic.LoadUint64(&m.publishErrors),
		RoundTrip:       m.roundTrip.Snapshot(),
		Connect:         m.connect.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		cur := atomic.LoadUint64(&l.min)
		if cur != 0 && nanos >= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, cur, nanos) {
			break
		}
	}

	for {
		cur := atomic.LoadUint64(&l.max)
		if nanos <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, cur, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(sum / count),
	}
}
