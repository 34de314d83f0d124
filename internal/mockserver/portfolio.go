package mockserver

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var startingCash = decimal.NewFromInt(10000)

// Portfolio is a client's cash and share holdings.
type Portfolio struct {
	Cash     decimal.Decimal
	Holdings map[string]int
}

func newPortfolio() *Portfolio {
	return &Portfolio{Cash: startingCash, Holdings: make(map[string]int)}
}

func (p *Portfolio) buy(symbol string, qty int, price decimal.Decimal) {
	p.Cash = p.Cash.Sub(price.Mul(decimal.NewFromInt(int64(qty))))
	p.Holdings[symbol] += qty
}

func (p *Portfolio) sell(symbol string, qty int, price decimal.Decimal) {
	p.Cash = p.Cash.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	p.Holdings[symbol] -= qty
}

// View renders the portfolio with holdings sorted by symbol.
func (p *Portfolio) View() string {
	var sb strings.Builder
	sb.WriteString("Portfolio (cash=")
	sb.WriteString(p.Cash.String())
	sb.WriteString("): ")
	symbols := make([]string, 0, len(p.Holdings))
	for sym := range p.Holdings {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		sb.WriteString(sym)
		sb.WriteString("=")
		sb.WriteString(strconv.Itoa(p.Holdings[sym]))
		sb.WriteString(" ")
	}
	return sb.String()
}
