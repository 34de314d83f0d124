package aggregate

import (
	"sync"

	"nrtstress/internal/protocol"
)

// Sink receives observed events. Implementations must be safe for concurrent use.
type Sink interface {
	RecordOrder(protocol.OrderEvent)
	RecordTrade(protocol.TradeEvent)
}

// Aggregator is the append-only log of every observed order and trade.
// Entries keep arrival order across workers.
type Aggregator struct {
	mu     sync.Mutex
	orders []protocol.OrderEvent
	trades []protocol.TradeEvent
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// RecordOrder appends an order event.
func (a *Aggregator) RecordOrder(ev protocol.OrderEvent) {
	a.mu.Lock()
	a.orders = append(a.orders, ev)
	a.mu.Unlock()
}

// RecordTrade appends a trade event.
func (a *Aggregator) RecordTrade(ev protocol.TradeEvent) {
	a.mu.Lock()
	a.trades = append(a.trades, ev)
	a.mu.Unlock()
}

// Counts returns the current number of orders and trades.
func (a *Aggregator) Counts() (orders, trades int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.orders), len(a.trades)
}

// Snapshot returns copies of both logs.
func (a *Aggregator) Snapshot() ([]protocol.OrderEvent, []protocol.TradeEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	orders := make([]protocol.OrderEvent, len(a.orders))
	copy(orders, a.orders)
	trades := make([]protocol.TradeEvent, len(a.trades))
	copy(trades, a.trades)
	return orders, trades
}

// Fanout records into every sink in order. Nil sinks are skipped.
type Fanout []Sink

// NewFanout builds a Fanout from the non-nil sinks.
func NewFanout(sinks ...Sink) Fanout {
	out := make(Fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f Fanout) RecordOrder(ev protocol.OrderEvent) {
	for _, s := range f {
		s.RecordOrder(ev)
	}
}

func (f Fanout) RecordTrade(ev protocol.TradeEvent) {
	for _, s := range f {
		s.RecordTrade(ev)
	}
}
