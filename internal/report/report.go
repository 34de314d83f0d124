package report

import (
	"fmt"

	"nrtstress/internal/obs"
	"nrtstress/internal/protocol"
)

// WorkerOutcome is the final state of one connection worker.
type WorkerOutcome struct {
	ClientID int
	State    string
	Err      error
	Sent     int
	Received int
	Timeouts int
}

// Summary is everything the final report prints.
type Summary struct {
	Orders  []protocol.OrderEvent
	Trades  []protocol.TradeEvent
	Workers []WorkerOutcome
	Metrics *obs.Snapshot
}

// Write appends the final report to t: the order log, the trade log, then
// the worker and metrics summaries when present.
func Write(t *Transcript, s Summary) {
	t.Log("")
	t.Log("NRT stress test complete!")
	t.Logf("Total orders processed: %d", len(s.Orders))
	for i, o := range s.Orders {
		t.Log(FormatOrder(i+1, o))
	}

	t.Log("")
	t.Logf("Total trades executed: %d", len(s.Trades))
	for i, tr := range s.Trades {
		t.Log(FormatTrade(i+1, tr))
	}

	if len(s.Workers) != 0 {
		t.Log("")
		done, errored := 0, 0
		for _, w := range s.Workers {
			if w.Err != nil {
				errored++
				t.Logf("Client %d %s sent=%d received=%d timeouts=%d err=%v", w.ClientID, w.State, w.Sent, w.Received, w.Timeouts, w.Err)
				continue
			}
			done++
			t.Logf("Client %d %s sent=%d received=%d timeouts=%d", w.ClientID, w.State, w.Sent, w.Received, w.Timeouts)
		}
		t.Logf("Workers finished: %d done, %d errored", done, errored)
	}

	if s.Metrics != nil {
		m := s.Metrics
		t.Log("")
		t.Logf("Commands sent: %d (order=%d view_portfolio=%d view_market=%d terminate=%d)",
			m.TotalSent(),
			m.CommandsSent[obs.CommandOrder],
			m.CommandsSent[obs.CommandViewPortfolio],
			m.CommandsSent[obs.CommandViewMarket],
			m.CommandsSent[obs.CommandTerminate],
		)
		t.Logf("Responses: %d, receive timeouts: %d, decode errors: %d, io errors: %d, connect retries: %d",
			m.Responses, m.ReceiveTimeouts, m.DecodeErrors, m.IOErrors, m.ConnectRetries)
		if m.RoundTrip.Count != 0 {
			t.Logf("Round trip: count=%d min=%s avg=%s max=%s",
				m.RoundTrip.Count, m.RoundTrip.Min, m.RoundTrip.Avg, m.RoundTrip.Max)
		}
	}
}

// FormatOrder renders one numbered order log entry.
func FormatOrder(n int, o protocol.OrderEvent) string {
	return fmt.Sprintf("%d: Client %d %s %d %s %s @ %s", n, o.ClientID, o.Side, o.Quantity, o.Symbol, o.OrderType, o.Price.String())
}

// FormatTrade renders one numbered trade log entry.
func FormatTrade(n int, tr protocol.TradeEvent) string {
	return fmt.Sprintf("%d: Buyer %d bought %d %s from Seller %d @ %s", n, tr.BuyerID, tr.Quantity, tr.Symbol, tr.SellerID, tr.Price.String())
}
