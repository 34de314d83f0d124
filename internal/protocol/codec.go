package protocol

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"nrtstress/pkg/exception"
)

// Response is a decoded chunk of server text.
type Response struct {
	Text string
}

// Empty reports whether the response carried no text.
func (r Response) Empty() bool {
	return r.Text == ""
}

// DecodeError is returned when server bytes are not valid text.
type DecodeError struct {
	Size int
}

func (e *DecodeError) Error() string {
	return exception.ErrDecode.Error() + ", size: " + strconv.Itoa(e.Size)
}

func (e *DecodeError) Unwrap() error {
	return exception.ErrDecode
}

// Decode interprets server bytes as UTF-8 text with surrounding space trimmed.
func Decode(b []byte) (Response, error) {
	if !utf8.Valid(b) {
		return Response{}, &DecodeError{Size: len(b)}
	}
	return Response{Text: strings.TrimSpace(string(b))}, nil
}

// OrderEvent is an order announcement seen in a server response.
type OrderEvent struct {
	ClientID  int             `json:"clientId"`
	Side      Side            `json:"side"`
	Quantity  int             `json:"quantity"`
	Symbol    string          `json:"symbol"`
	OrderType string          `json:"orderType"`
	Price     decimal.Decimal `json:"price"`
}

// TradeEvent is a trade announcement seen in a server response.
type TradeEvent struct {
	BuyerID  int             `json:"buyerId"`
	Quantity int             `json:"quantity"`
	Symbol   string          `json:"symbol"`
	SellerID int             `json:"sellerId"`
	Price    decimal.Decimal `json:"price"`
}

// tokenExpr is the grammar of symbols and order types on the wire.
const tokenExpr = `\w+`

var (
	tokenPattern = regexp.MustCompile(`^` + tokenExpr + `$`)
	orderPattern = regexp.MustCompile(`\[ORDER\] client (\d+) -> (BUY|SELL) (\d+) (` + tokenExpr + `) (` + tokenExpr + `) ([\d.]+)`)
	tradePattern = regexp.MustCompile(`\[TRADE\] (\d+) bought (\d+) (` + tokenExpr + `) from (\d+) @ ([\d.]+)`)
)

// ValidToken reports whether s can be sent as a symbol or order type and
// read back from an announcement.
func ValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// ExtractOrderEvent finds the first order announcement in text.
// A missing or malformed announcement yields false.
func ExtractOrderEvent(text string) (OrderEvent, bool) {
	m := orderPattern.FindStringSubmatch(text)
	if m == nil {
		return OrderEvent{}, false
	}
	clientID, err := strconv.Atoi(m[1])
	if err != nil {
		return OrderEvent{}, false
	}
	qty, err := strconv.Atoi(m[3])
	if err != nil {
		return OrderEvent{}, false
	}
	price, err := decimal.NewFromString(m[6])
	if err != nil {
		return OrderEvent{}, false
	}
	return OrderEvent{
		ClientID:  clientID,
		Side:      Side(m[2]),
		Quantity:  qty,
		Symbol:    m[4],
		OrderType: m[5],
		Price:     price,
	}, true
}

// ExtractTradeEvent finds the first trade announcement in text.
// A missing or malformed announcement yields false.
func ExtractTradeEvent(text string) (TradeEvent, bool) {
	m := tradePattern.FindStringSubmatch(text)
	if m == nil {
		return TradeEvent{}, false
	}
	buyer, err := strconv.Atoi(m[1])
	if err != nil {
		return TradeEvent{}, false
	}
	qty, err := strconv.Atoi(m[2])
	if err != nil {
		return TradeEvent{}, false
	}
	seller, err := strconv.Atoi(m[4])
	if err != nil {
		return TradeEvent{}, false
	}
	price, err := decimal.NewFromString(m[5])
	if err != nil {
		return TradeEvent{}, false
	}
	return TradeEvent{
		BuyerID:  buyer,
		Quantity: qty,
		Symbol:   m[3],
		SellerID: seller,
		Price:    price,
	}, true
}

// FormatOrderAnnouncement renders the server-side order line for clientID.
func FormatOrderAnnouncement(clientID int, order []byte) string {
	return "[ORDER] client " + strconv.Itoa(clientID) + " -> " + string(order)
}

// FormatTradeAnnouncement renders the server-side trade line.
func FormatTradeAnnouncement(t TradeEvent) string {
	return "[TRADE] " + strconv.Itoa(t.BuyerID) + " bought " + strconv.Itoa(t.Quantity) + " " +
		t.Symbol + " from " + strconv.Itoa(t.SellerID) + " @ " + t.Price.String()
}
