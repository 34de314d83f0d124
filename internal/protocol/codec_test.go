package protocol

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nrtstress/pkg/exception"
)

func TestEncode(t *testing.T) {
	testCases := []struct {
		desc     string
		cmd      Command
		expected string
	}{
		{
			"limit buy",
			PlaceOrder{Side: SideBuy, Quantity: 5, Symbol: "AAPL", OrderType: "LIMIT", Price: decimal.RequireFromString("120.5")},
			"BUY 5 AAPL LIMIT 120.50",
		},
		{
			"sell pointer",
			&PlaceOrder{Side: SideSell, Quantity: 50, Symbol: "AAPL", OrderType: "LIMIT", Price: decimal.RequireFromString("90")},
			"SELL 50 AAPL LIMIT 90.00",
		},
		{"view portfolio", ViewPortfolio{}, "VIEW PORTFOLIO"},
		{"view market", ViewMarket{Symbol: "AAPL"}, "VIEW MARKET AAPL"},
		{"terminate", Terminate{}, "exit"},
		{"view market pointer", &ViewMarket{Symbol: "MSFT"}, "VIEW MARKET MSFT"},
		{"terminate pointer", &Terminate{}, "exit"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			b, err := Encode(tc.cmd)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(b))
		})
	}
}

func TestEncodeRejectsInvalidOrder(t *testing.T) {
	price := decimal.RequireFromString("100")
	testCases := []struct {
		desc  string
		order PlaceOrder
	}{
		{"zero quantity", PlaceOrder{Side: SideBuy, Quantity: 0, Symbol: "AAPL", OrderType: "LIMIT", Price: price}},
		{"zero price", PlaceOrder{Side: SideBuy, Quantity: 1, Symbol: "AAPL", OrderType: "LIMIT", Price: decimal.Zero}},
		{"negative price", PlaceOrder{Side: SideSell, Quantity: 1, Symbol: "AAPL", OrderType: "LIMIT", Price: decimal.RequireFromString("-1")}},
		{"bad side", PlaceOrder{Side: "HOLD", Quantity: 1, Symbol: "AAPL", OrderType: "LIMIT", Price: price}},
		{"blank symbol", PlaceOrder{Side: SideBuy, Quantity: 1, Symbol: "", OrderType: "LIMIT", Price: price}},
		{"spaced order type", PlaceOrder{Side: SideBuy, Quantity: 1, Symbol: "AAPL", OrderType: "GOOD TILL", Price: price}},
		{"dotted symbol", PlaceOrder{Side: SideBuy, Quantity: 1, Symbol: "BRK.B", OrderType: "LIMIT", Price: price}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Encode(tc.order)
			assert.True(t, errors.Is(err, exception.ErrInvalidCommand), "got %v", err)
		})
	}

	_, err := Encode(nil)
	assert.True(t, errors.Is(err, exception.ErrEmptyCommand), "got %v", err)
}

func TestEncodeParseRoundTrip(t *testing.T) {
	orig := PlaceOrder{Side: SideSell, Quantity: 17, Symbol: "AAPL", OrderType: "LIMIT", Price: decimal.RequireFromString("133.07")}
	b, err := Encode(orig)
	require.NoError(t, err)

	cmd, err := ParseCommand(string(b))
	require.NoError(t, err)
	parsed, ok := cmd.(PlaceOrder)
	require.True(t, ok, "expected PlaceOrder, got %T", cmd)

	assert.Equal(t, orig.Side, parsed.Side)
	assert.Equal(t, orig.Quantity, parsed.Quantity)
	assert.Equal(t, orig.Symbol, parsed.Symbol)
	assert.Equal(t, orig.OrderType, parsed.OrderType)
	assert.True(t, orig.Price.Equal(parsed.Price), "price %s != %s", orig.Price, parsed.Price)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("VIEW PORTFOLIO")
	require.NoError(t, err)
	assert.Equal(t, ViewPortfolio{}, cmd)

	cmd, err = ParseCommand("  VIEW MARKET AAPL\n")
	require.NoError(t, err)
	assert.Equal(t, ViewMarket{Symbol: "AAPL"}, cmd)

	cmd, err = ParseCommand("exit")
	require.NoError(t, err)
	assert.Equal(t, Terminate{}, cmd)

	_, err = ParseCommand("")
	assert.True(t, errors.Is(err, exception.ErrEmptyCommand))

	_, err = ParseCommand("VIEW SOMETHING")
	assert.True(t, errors.Is(err, exception.ErrUnknownCommand))

	_, err = ParseCommand("BUY x AAPL LIMIT 1")
	assert.True(t, errors.Is(err, exception.ErrInvalidCommand))

	_, err = ParseCommand("BUY 1 AAPL LIMIT")
	assert.True(t, errors.Is(err, exception.ErrInvalidCommand))
}

func TestDecode(t *testing.T) {
	resp, err := Decode([]byte("  [ORDER] client 1 -> BUY 5 AAPL LIMIT 120.50\n"))
	require.NoError(t, err)
	assert.Equal(t, "[ORDER] client 1 -> BUY 5 AAPL LIMIT 120.50", resp.Text)

	resp, err = Decode([]byte(" \n"))
	require.NoError(t, err)
	assert.True(t, resp.Empty())

	_, err = Decode([]byte{0xff, 0xfe, 'x'})
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, 3, decodeErr.Size)
	assert.True(t, errors.Is(err, exception.ErrDecode))
}

func TestExtractOrderEvent(t *testing.T) {
	testCases := []struct {
		desc     string
		text     string
		expected OrderEvent
		ok       bool
	}{
		{
			desc:     "exact",
			text:     "[ORDER] client 1 -> BUY 5 AAPL LIMIT 120.50",
			expected: OrderEvent{ClientID: 1, Side: SideBuy, Quantity: 5, Symbol: "AAPL", OrderType: "LIMIT", Price: decimal.RequireFromString("120.50")},
			ok:       true,
		},
		{
			desc:     "embedded after trade",
			text:     "[TRADE] 3 bought 2 AAPL from 4 @ 99\n[ORDER] client 12 -> SELL 40 AAPL LIMIT 99",
			expected: OrderEvent{ClientID: 12, Side: SideSell, Quantity: 40, Symbol: "AAPL", OrderType: "LIMIT", Price: decimal.RequireFromString("99")},
			ok:       true,
		},
		{desc: "portfolio", text: "Portfolio (cash=10000): AAPL=3", ok: false},
		{desc: "empty", text: "", ok: false},
		{desc: "unknown side", text: "[ORDER] client 1 -> HOLD 5 AAPL LIMIT 1.0", ok: false},
		{desc: "malformed price", text: "[ORDER] client 1 -> BUY 5 AAPL LIMIT 1.2.3", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			ev, ok := ExtractOrderEvent(tc.text)
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				return
			}
			assert.Equal(t, tc.expected.ClientID, ev.ClientID)
			assert.Equal(t, tc.expected.Side, ev.Side)
			assert.Equal(t, tc.expected.Quantity, ev.Quantity)
			assert.Equal(t, tc.expected.Symbol, ev.Symbol)
			assert.Equal(t, tc.expected.OrderType, ev.OrderType)
			assert.True(t, tc.expected.Price.Equal(ev.Price), "price %s != %s", tc.expected.Price, ev.Price)
		})
	}
}

func TestExtractTradeEvent(t *testing.T) {
	ev, ok := ExtractTradeEvent("[TRADE] 7 bought 12 AAPL from 3 @ 101.25\n")
	require.True(t, ok)
	assert.Equal(t, 7, ev.BuyerID)
	assert.Equal(t, 12, ev.Quantity)
	assert.Equal(t, "AAPL", ev.Symbol)
	assert.Equal(t, 3, ev.SellerID)
	assert.True(t, decimal.RequireFromString("101.25").Equal(ev.Price))

	_, ok = ExtractTradeEvent("[ORDER] client 1 -> BUY 5 AAPL LIMIT 120.50")
	assert.False(t, ok)

	_, ok = ExtractTradeEvent("[TRADE] 7 bought 12 AAPL to 3 @ 101.25")
	assert.False(t, ok)
}

func TestExtractBothFromOneResponse(t *testing.T) {
	text := "[ORDER] client 2 -> BUY 10 AAPL LIMIT 150\n[TRADE] 2 bought 10 AAPL from 5 @ 149.5"
	_, okOrder := ExtractOrderEvent(text)
	_, okTrade := ExtractTradeEvent(text)
	assert.True(t, okOrder)
	assert.True(t, okTrade)
}

func TestFormatAnnouncementsAreExtractable(t *testing.T) {
	line := FormatOrderAnnouncement(4, []byte("SELL 3 AAPL LIMIT 100.10"))
	ev, ok := ExtractOrderEvent(line)
	require.True(t, ok)
	assert.Equal(t, 4, ev.ClientID)

	trade := TradeEvent{BuyerID: 1, Quantity: 2, Symbol: "AAPL", SellerID: 9, Price: decimal.RequireFromString("100.1")}
	got, ok := ExtractTradeEvent(FormatTradeAnnouncement(trade))
	require.True(t, ok)
	assert.Equal(t, trade.BuyerID, got.BuyerID)
	assert.Equal(t, trade.SellerID, got.SellerID)
	assert.True(t, trade.Price.Equal(got.Price))
}

func TestValidTokenMatchesAnnouncements(t *testing.T) {
	testCases := []struct {
		token string
		valid bool
	}{
		{"AAPL", true},
		{"BRK_B", true},
		{"X1", true},
		{"", false},
		{"BRK B", false},
		{"BRK.B", false},
		{"STOP-LIMIT", false},
	}

	for _, tc := range testCases {
		t.Run(tc.token, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidToken(tc.token))

			order := PlaceOrder{Side: SideBuy, Quantity: 3, Symbol: tc.token, OrderType: "LIMIT", Price: decimal.RequireFromString("101.25")}
			b, err := Encode(order)
			if !tc.valid {
				assert.True(t, errors.Is(err, exception.ErrInvalidCommand), "got %v", err)
				return
			}
			require.NoError(t, err)
			ev, ok := ExtractOrderEvent(FormatOrderAnnouncement(4, b))
			require.True(t, ok)
			assert.Equal(t, tc.token, ev.Symbol)
		})
	}
}
