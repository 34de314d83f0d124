package store

import (
	"time"

	"github.com/shopspring/decimal"

	"nrtstress/internal/protocol"
)

// Run is one stress run summary row.
type Run struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	StartedAt      time.Time
	FinishedAt     time.Time
	ServerAddr     string `gorm:"size:255"`
	Clients        int
	DurationMillis int64
	Symbol         string `gorm:"size:32"`
	OrderCount     int
	TradeCount     int
	WorkersDone    int
	WorkersErrored int
	CommandsSent   uint64
	Responses      uint64
	Timeouts       uint64
}

func (Run) TableName() string { return "stress_runs" }

// Order is one captured order announcement, kept in capture order by Seq.
type Order struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	RunID     uint64 `gorm:"index"`
	Seq       int
	ClientID  int
	Side      string `gorm:"size:4"`
	Quantity  int
	Symbol    string          `gorm:"size:32"`
	OrderType string          `gorm:"size:16"`
	Price     decimal.Decimal `gorm:"type:numeric(20,8)"`
}

func (Order) TableName() string { return "stress_orders" }

// Trade is one captured trade announcement.
type Trade struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	RunID    uint64 `gorm:"index"`
	Seq      int
	BuyerID  int
	SellerID int
	Quantity int
	Symbol   string          `gorm:"size:32"`
	Price    decimal.Decimal `gorm:"type:numeric(20,8)"`
}

func (Trade) TableName() string { return "stress_trades" }

func ordersFromEvents(runID uint64, events []protocol.OrderEvent) []Order {
	out := make([]Order, len(events))
	for i, ev := range events {
		out[i] = Order{
			RunID:     runID,
			Seq:       i + 1,
			ClientID:  ev.ClientID,
			Side:      string(ev.Side),
			Quantity:  ev.Quantity,
			Symbol:    ev.Symbol,
			OrderType: ev.OrderType,
			Price:     ev.Price,
		}
	}
	return out
}

func tradesFromEvents(runID uint64, events []protocol.TradeEvent) []Trade {
	out := make([]Trade, len(events))
	for i, ev := range events {
		out[i] = Trade{
			RunID:    runID,
			Seq:      i + 1,
			BuyerID:  ev.BuyerID,
			SellerID: ev.SellerID,
			Quantity: ev.Quantity,
			Symbol:   ev.Symbol,
			Price:    ev.Price,
		}
	}
	return out
}
