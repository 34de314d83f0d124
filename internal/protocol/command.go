package protocol

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"nrtstress/pkg/exception"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

const (
	viewPortfolioText = "VIEW PORTFOLIO"
	viewMarketPrefix  = "VIEW MARKET"
	terminateText     = "exit"
)

// Command is a client-to-server instruction.
type Command interface {
	command()
}

// PlaceOrder submits a new order.
type PlaceOrder struct {
	Side      Side
	Quantity  int
	Symbol    string
	OrderType string
	Price     decimal.Decimal
}

// ViewPortfolio asks for the caller's portfolio.
type ViewPortfolio struct{}

// ViewMarket asks for the book of one symbol.
type ViewMarket struct {
	Symbol string
}

// Terminate closes the session.
type Terminate struct{}

func (PlaceOrder) command()    {}
func (ViewPortfolio) command() {}
func (ViewMarket) command()    {}
func (Terminate) command()     {}

// Validate checks the order invariants.
func (o PlaceOrder) Validate() error {
	if !o.Side.Valid() {
		return errors.Wrapf(exception.ErrInvalidCommand, "side %q", o.Side)
	}
	if o.Quantity < 1 {
		return errors.Wrapf(exception.ErrInvalidCommand, "quantity %d must be >= 1", o.Quantity)
	}
	if !o.Price.IsPositive() {
		return errors.Wrapf(exception.ErrInvalidCommand, "price %s must be > 0", o.Price.String())
	}
	if !ValidToken(o.Symbol) {
		return errors.Wrapf(exception.ErrInvalidCommand, "symbol %q", o.Symbol)
	}
	if !ValidToken(o.OrderType) {
		return errors.Wrapf(exception.ErrInvalidCommand, "order type %q", o.OrderType)
	}
	return nil
}

// Encode renders a command as its wire text.
func Encode(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case PlaceOrder:
		if err := c.Validate(); err != nil {
			return nil, err
		}
		buf := make([]byte, 0, 32)
		buf = append(buf, c.Side...)
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, int64(c.Quantity), 10)
		buf = append(buf, ' ')
		buf = append(buf, c.Symbol...)
		buf = append(buf, ' ')
		buf = append(buf, c.OrderType...)
		buf = append(buf, ' ')
		buf = append(buf, c.Price.StringFixed(2)...)
		return buf, nil
	case *PlaceOrder:
		if c == nil {
			return nil, exception.ErrNilInstance
		}
		return Encode(*c)
	case ViewPortfolio, *ViewPortfolio:
		return []byte(viewPortfolioText), nil
	case ViewMarket:
		if !ValidToken(c.Symbol) {
			return nil, errors.Wrapf(exception.ErrInvalidCommand, "market symbol %q", c.Symbol)
		}
		return []byte(viewMarketPrefix + " " + c.Symbol), nil
	case *ViewMarket:
		if c == nil {
			return nil, exception.ErrNilInstance
		}
		return Encode(*c)
	case Terminate, *Terminate:
		return []byte(terminateText), nil
	case nil:
		return nil, exception.ErrEmptyCommand
	default:
		return nil, errors.Wrapf(exception.ErrUnknownCommand, "%T", cmd)
	}
}

// ParseCommand reads one command from its wire text.
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, exception.ErrEmptyCommand
	}
	switch fields[0] {
	case string(SideBuy), string(SideSell):
		if len(fields) != 5 {
			return nil, errors.Wrapf(exception.ErrInvalidCommand, "order needs 5 fields, got %d", len(fields))
		}
		qty, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(exception.ErrInvalidCommand, "quantity %q", fields[1])
		}
		price, err := decimal.NewFromString(fields[4])
		if err != nil {
			return nil, errors.Wrapf(exception.ErrInvalidCommand, "price %q", fields[4])
		}
		o := PlaceOrder{
			Side:      Side(fields[0]),
			Quantity:  qty,
			Symbol:    fields[2],
			OrderType: fields[3],
			Price:     price,
		}
		if err := o.Validate(); err != nil {
			return nil, err
		}
		return o, nil
	case "VIEW":
		if len(fields) == 2 && fields[1] == "PORTFOLIO" {
			return ViewPortfolio{}, nil
		}
		if len(fields) == 3 && fields[1] == "MARKET" {
			return ViewMarket{Symbol: fields[2]}, nil
		}
		return nil, errors.Wrapf(exception.ErrUnknownCommand, "%q", text)
	case terminateText:
		return Terminate{}, nil
	default:
		return nil, errors.Wrapf(exception.ErrUnknownCommand, "%q", text)
	}
}
