package traffic

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"nrtstress/internal/protocol"
	"nrtstress/pkg/exception"
)

// Action is a kind of command the generator can draw.
type Action string

const (
	ActionOrder         Action = "ORDER"
	ActionViewPortfolio Action = "VIEW_PORTFOLIO"
	ActionViewMarket    Action = "VIEW_MARKET"
)

var actionOrder = []Action{ActionOrder, ActionViewPortfolio, ActionViewMarket}

var minPrice = decimal.New(1, -2)

// Config controls what traffic is generated.
type Config struct {
	// Weights need not sum to 1; they are normalized.
	Weights     map[Action]float64
	QuantityMin int
	QuantityMax int
	PriceMin    decimal.Decimal
	PriceMax    decimal.Decimal
	// Symbol is shared by every generated order to force contention on one book.
	Symbol     string
	OrderTypes []string
}

// DefaultConfig mirrors the classic mutex stress profile.
func DefaultConfig() Config {
	return Config{
		Weights: map[Action]float64{
			ActionOrder:         0.8,
			ActionViewPortfolio: 0.2,
		},
		QuantityMin: 1,
		QuantityMax: 50,
		PriceMin:    decimal.NewFromInt(90),
		PriceMax:    decimal.NewFromInt(160),
		Symbol:      "AAPL",
		OrderTypes:  []string{"LIMIT"},
	}
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	var total float64
	for action, w := range c.Weights {
		if !knownAction(action) {
			return errors.Wrapf(exception.ErrInvalidConfig, "unknown action %q", action)
		}
		if w < 0 {
			return errors.Wrapf(exception.ErrInvalidConfig, "weight of %s must be >= 0", action)
		}
		total += w
	}
	if total <= 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "action weights must sum to > 0")
	}
	if c.QuantityMin < 1 {
		return errors.Wrap(exception.ErrInvalidConfig, "quantityMin must be >= 1")
	}
	if c.QuantityMax < c.QuantityMin {
		return errors.Wrap(exception.ErrInvalidConfig, "quantityMax must be >= quantityMin")
	}
	if c.PriceMin.LessThan(minPrice) {
		return errors.Wrap(exception.ErrInvalidConfig, "priceMin must be >= 0.01")
	}
	if c.PriceMax.LessThan(c.PriceMin) {
		return errors.Wrap(exception.ErrInvalidConfig, "priceMax must be >= priceMin")
	}
	if !protocol.ValidToken(c.Symbol) {
		return errors.Wrapf(exception.ErrInvalidConfig, "symbol %q must be letters, digits or underscores", c.Symbol)
	}
	if len(c.OrderTypes) == 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "orderTypes is empty")
	}
	for _, ot := range c.OrderTypes {
		if !protocol.ValidToken(ot) {
			return errors.Wrapf(exception.ErrInvalidConfig, "order type %q must be letters, digits or underscores", ot)
		}
	}
	return nil
}

func knownAction(a Action) bool {
	for _, known := range actionOrder {
		if a == known {
			return true
		}
	}
	return false
}
