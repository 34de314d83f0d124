package traffic

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"nrtstress/internal/protocol"
)

// Generator draws random commands. It is not safe for concurrent use;
// every worker owns its own.
type Generator struct {
	cfg        Config
	rng        *rand.Rand
	cumulative []float64
	actions    []Action
	total      float64
	priceMin   float64
	priceSpan  float64
}

// NewGenerator validates cfg and seeds a private random source.
// A zero seed means seed from the clock.
func NewGenerator(cfg Config, seed int64) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = time.Now().UTC().UnixNano()
	}
	g := &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
	for _, action := range actionOrder {
		w := cfg.Weights[action]
		if w <= 0 {
			continue
		}
		g.total += w
		g.actions = append(g.actions, action)
		g.cumulative = append(g.cumulative, g.total)
	}
	g.priceMin = cfg.PriceMin.InexactFloat64()
	g.priceSpan = cfg.PriceMax.InexactFloat64() - g.priceMin
	return g, nil
}

// Next returns the next command for clientID.
func (g *Generator) Next(clientID int) protocol.Command {
	switch g.nextAction() {
	case ActionViewPortfolio:
		return protocol.ViewPortfolio{}
	case ActionViewMarket:
		return protocol.ViewMarket{Symbol: g.cfg.Symbol}
	default:
		return g.nextOrder()
	}
}

// Jitter returns a uniform duration in [min, max].
func (g *Generator) Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(g.rng.Int63n(int64(max-min)+1))
}

func (g *Generator) nextAction() Action {
	x := g.rng.Float64() * g.total
	for i, edge := range g.cumulative {
		if x < edge {
			return g.actions[i]
		}
	}
	return g.actions[len(g.actions)-1]
}

func (g *Generator) nextOrder() protocol.PlaceOrder {
	side := protocol.SideBuy
	if g.rng.Intn(2) == 1 {
		side = protocol.SideSell
	}
	qty := g.cfg.QuantityMin + g.rng.Intn(g.cfg.QuantityMax-g.cfg.QuantityMin+1)
	orderType := g.cfg.OrderTypes[g.rng.Intn(len(g.cfg.OrderTypes))]
	return protocol.PlaceOrder{
		Side:      side,
		Quantity:  qty,
		Symbol:    g.cfg.Symbol,
		OrderType: orderType,
		Price:     g.nextPrice(),
	}
}

func (g *Generator) nextPrice() decimal.Decimal {
	price := decimal.NewFromFloat(g.priceMin + g.rng.Float64()*g.priceSpan).Round(2)
	if price.LessThan(g.cfg.PriceMin) {
		return g.cfg.PriceMin.Round(2)
	}
	if price.GreaterThan(g.cfg.PriceMax) {
		return g.cfg.PriceMax.Round(2)
	}
	return price
}
