package mockserver

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nrtstress/internal/protocol"
)

func px(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBookNoCrossRests(t *testing.T) {
	b := NewBook("AAPL")
	assert.Empty(t, b.Submit(1, protocol.SideBuy, 10, px("100")))
	assert.Empty(t, b.Submit(2, protocol.SideSell, 5, px("101")))
	bids, asks := b.Depth()
	assert.Equal(t, 10, bids)
	assert.Equal(t, 5, asks)
}

func TestBookMatchesAtRestingPrice(t *testing.T) {
	b := NewBook("AAPL")
	b.Submit(1, protocol.SideSell, 5, px("100"))

	fills := b.Submit(2, protocol.SideBuy, 3, px("105"))
	require.Len(t, fills, 1)
	assert.Equal(t, 2, fills[0].BuyerID)
	assert.Equal(t, 1, fills[0].SellerID)
	assert.Equal(t, 3, fills[0].Quantity)
	assert.True(t, fills[0].Price.Equal(px("100")))

	bids, asks := b.Depth()
	assert.Equal(t, 0, bids)
	assert.Equal(t, 2, asks)
}

func TestBookPriceThenTimePriority(t *testing.T) {
	b := NewBook("AAPL")
	b.Submit(1, protocol.SideBuy, 2, px("99"))
	b.Submit(2, protocol.SideBuy, 2, px("101"))
	b.Submit(3, protocol.SideBuy, 2, px("101"))

	fills := b.Submit(4, protocol.SideSell, 5, px("98"))
	require.Len(t, fills, 3)
	assert.Equal(t, []int{2, 3, 1}, []int{fills[0].BuyerID, fills[1].BuyerID, fills[2].BuyerID})
	assert.Equal(t, []int{2, 2, 1}, []int{fills[0].Quantity, fills[1].Quantity, fills[2].Quantity})
	assert.True(t, fills[2].Price.Equal(px("99")))

	bids, asks := b.Depth()
	assert.Equal(t, 1, bids)
	assert.Equal(t, 0, asks)
}

func TestBookRemainderRests(t *testing.T) {
	b := NewBook("AAPL")
	b.Submit(1, protocol.SideSell, 2, px("100"))
	fills := b.Submit(2, protocol.SideBuy, 5, px("100"))
	require.Len(t, fills, 1)

	bids, asks := b.Depth()
	assert.Equal(t, 3, bids)
	assert.Equal(t, 0, asks)
	assert.Contains(t, b.View(), "Buys: [3@100]")
}

func TestPortfolioView(t *testing.T) {
	p := newPortfolio()
	p.buy("MSFT", 2, px("10"))
	p.sell("AAPL", 1, px("5.5"))
	assert.Equal(t, "Portfolio (cash=9985.5): AAPL=-1 MSFT=2 ", p.View())
}
