package mockserver

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"nrtstress/internal/protocol"
)

type restingOrder struct {
	clientID int
	quantity int
	price    decimal.Decimal
	seq      uint64
}

// Fill is one match between a buyer and a seller at the resting price.
type Fill struct {
	BuyerID  int
	SellerID int
	Quantity int
	Price    decimal.Decimal
}

// Book is a price-time priority limit book for one symbol.
// It is not safe for concurrent use.
type Book struct {
	symbol string
	bids   []restingOrder // best (highest) first
	asks   []restingOrder // best (lowest) first
	seq    uint64
}

// NewBook creates an empty book.
func NewBook(symbol string) *Book {
	return &Book{symbol: symbol}
}

// Submit matches an incoming order against the opposite side and rests any
// remainder. Fills execute at the resting order's price.
func (b *Book) Submit(clientID int, side protocol.Side, quantity int, price decimal.Decimal) []Fill {
	var fills []Fill
	switch side {
	case protocol.SideBuy:
		for quantity > 0 && len(b.asks) > 0 && b.asks[0].price.LessThanOrEqual(price) {
			best := &b.asks[0]
			qty := min(quantity, best.quantity)
			fills = append(fills, Fill{BuyerID: clientID, SellerID: best.clientID, Quantity: qty, Price: best.price})
			quantity -= qty
			best.quantity -= qty
			if best.quantity == 0 {
				b.asks = b.asks[1:]
			}
		}
		if quantity > 0 {
			b.bids = b.insert(b.bids, restingOrder{clientID: clientID, quantity: quantity, price: price}, func(a, o decimal.Decimal) bool {
				return a.GreaterThan(o)
			})
		}
	case protocol.SideSell:
		for quantity > 0 && len(b.bids) > 0 && b.bids[0].price.GreaterThanOrEqual(price) {
			best := &b.bids[0]
			qty := min(quantity, best.quantity)
			fills = append(fills, Fill{BuyerID: best.clientID, SellerID: clientID, Quantity: qty, Price: best.price})
			quantity -= qty
			best.quantity -= qty
			if best.quantity == 0 {
				b.bids = b.bids[1:]
			}
		}
		if quantity > 0 {
			b.asks = b.insert(b.asks, restingOrder{clientID: clientID, quantity: quantity, price: price}, func(a, o decimal.Decimal) bool {
				return a.LessThan(o)
			})
		}
	}
	return fills
}

// insert places o after every order with an equal or better price.
func (b *Book) insert(side []restingOrder, o restingOrder, better func(a, o decimal.Decimal) bool) []restingOrder {
	b.seq++
	o.seq = b.seq
	i := sort.Search(len(side), func(i int) bool {
		return better(o.price, side[i].price)
	})
	side = append(side, restingOrder{})
	copy(side[i+1:], side[i:])
	side[i] = o
	return side
}

// Depth returns the resting quantity of both sides in priority order.
func (b *Book) Depth() (bids, asks int) {
	for _, o := range b.bids {
		bids += o.quantity
	}
	for _, o := range b.asks {
		asks += o.quantity
	}
	return bids, asks
}

// View renders the book as the server's market view.
func (b *Book) View() string {
	var sb strings.Builder
	sb.WriteString("Market for ")
	sb.WriteString(b.symbol)
	sb.WriteString("\n  Buys: ")
	for _, o := range b.bids {
		sb.WriteString("[")
		sb.WriteString(decimal.NewFromInt(int64(o.quantity)).String())
		sb.WriteString("@")
		sb.WriteString(o.price.String())
		sb.WriteString("] ")
	}
	sb.WriteString("\n  Sells: ")
	for _, o := range b.asks {
		sb.WriteString("[")
		sb.WriteString(decimal.NewFromInt(int64(o.quantity)).String())
		sb.WriteString("@")
		sb.WriteString(o.price.String())
		sb.WriteString("] ")
	}
	sb.WriteString("\n")
	return sb.String()
}
