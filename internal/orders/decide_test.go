package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bullpen/internal/model"
	"bullpen/internal/types"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func pos(qty, avg string) *model.Position {
	return &model.Position{Qty: d(qty), AvgCost: d(avg)}
}

func TestWeightedAvgCost(t *testing.T) {
	// 10@100 then 10@120 -> avg 110 over 20
	got := weightedAvgCost(d("10"), d("100"), d("10"), d("120"))
	assert.True(t, got.Equal(d("110")), "got %s", got)

	got = weightedAvgCost(d("0"), d("0"), d("5"), d("42"))
	assert.True(t, got.Equal(d("42")))
}

func TestDecideBuyOpensPosition(t *testing.T) {
	res := decide(types.OrderSideBuy, d("10"), d("9"), d("100"), nil)
	require.False(t, res.Rejected)
	assert.True(t, res.NewCash.Equal(d("10")))
	require.True(t, res.HasPosition)
	assert.True(t, res.Position.Qty.Equal(d("10")))
	assert.True(t, res.Position.AvgCost.Equal(d("9")))
}

func TestDecideBuyAveragesIntoPosition(t *testing.T) {
	res := decide(types.OrderSideBuy, d("10"), d("120"), d("5000"), pos("10", "100"))
	require.False(t, res.Rejected)
	assert.True(t, res.Position.Qty.Equal(d("20")))
	assert.True(t, res.Position.AvgCost.Equal(d("110")))
	assert.True(t, res.NewCash.Equal(d("3800")))
}

func TestDecideBuyInsufficientCash(t *testing.T) {
	// starting_cash=100, 10 shares at 11 -> rejected, nothing moves
	res := decide(types.OrderSideBuy, d("10"), d("11"), d("100"), nil)
	require.True(t, res.Rejected)
	assert.Equal(t, types.RejectInsufficientCash, res.RejectionReason)
	assert.True(t, res.NewCash.Equal(d("100")))
	assert.False(t, res.HasPosition)
}

func TestDecideBuyExactCashFills(t *testing.T) {
	res := decide(types.OrderSideBuy, d("10"), d("10"), d("100"), nil)
	require.False(t, res.Rejected)
	assert.True(t, res.NewCash.Equal(d("0")))
}

func TestDecideSellWithoutPosition(t *testing.T) {
	res := decide(types.OrderSideSell, d("5"), d("200"), d("100"), nil)
	require.True(t, res.Rejected)
	assert.Equal(t, types.RejectInsufficientShares, res.RejectionReason)
	assert.True(t, res.NewCash.Equal(d("100")))
}

func TestDecideSellMoreThanHeld(t *testing.T) {
	res := decide(types.OrderSideSell, d("11"), d("50"), d("0"), pos("10", "40"))
	require.True(t, res.Rejected)
	assert.Equal(t, types.RejectInsufficientShares, res.RejectionReason)
}

func TestDecideSellPartialKeepsAvgCost(t *testing.T) {
	res := decide(types.OrderSideSell, d("4"), d("50"), d("10"), pos("10", "40"))
	require.False(t, res.Rejected)
	assert.True(t, res.NewCash.Equal(d("210")))
	require.True(t, res.HasPosition)
	assert.True(t, res.Position.Qty.Equal(d("6")))
	assert.True(t, res.Position.AvgCost.Equal(d("40")))
	assert.False(t, res.DeletePosition)
}

func TestDecideSellAllDeletesPosition(t *testing.T) {
	res := decide(types.OrderSideSell, d("10"), d("50"), d("0"), pos("10", "40"))
	require.False(t, res.Rejected)
	assert.True(t, res.NewCash.Equal(d("500")))
	assert.True(t, res.DeletePosition)
	assert.False(t, res.HasPosition)
}

// Money conservation: cash plus cost basis changes only by realized
// P&L of filled sells; buys leave the total untouched.
func TestDecideConservesMoneyAcrossSequence(t *testing.T) {
	cash := d("2000")
	var p *model.Position

	total := func() decimal.Decimal {
		if p == nil {
			return cash
		}
		return cash.Add(p.Qty.Mul(p.AvgCost))
	}
	step := func(side types.OrderSide, qty, price string) {
		res := decide(side, d(qty), d(price), cash, p)
		require.False(t, res.Rejected)
		cash = res.NewCash
		if res.DeletePosition {
			p = nil
		} else if res.HasPosition {
			cp := res.Position
			p = &cp
		}
	}

	step(types.OrderSideBuy, "10", "50")
	assert.True(t, total().Equal(d("2000")))
	step(types.OrderSideBuy, "10", "70")
	assert.True(t, total().Equal(d("2000")))
	assert.True(t, p.AvgCost.Equal(d("60")))

	// sell 5 @ 80 realizes 5*(80-60) = 100
	step(types.OrderSideSell, "5", "80")
	assert.True(t, total().Equal(d("2100")))

	// close out at avg cost: no further P&L
	step(types.OrderSideSell, "15", "60")
	assert.Nil(t, p)
	assert.True(t, cash.Equal(d("2100")))
}

func TestDecideRejectionLeavesStateUntouched(t *testing.T) {
	before := pos("3", "25")
	res := decide(types.OrderSideSell, d("5"), d("30"), d("77"), before)
	require.True(t, res.Rejected)
	assert.True(t, res.NewCash.Equal(d("77")))
	assert.True(t, before.Qty.Equal(d("3")))
	assert.True(t, before.AvgCost.Equal(d("25")))
}

func TestValidate(t *testing.T) {
	limit := d("10")
	tests := []struct {
		name       string
		side       types.OrderSide
		typ        types.OrderType
		qty        decimal.Decimal
		limitPrice *decimal.Decimal
		fractional bool
		wantErr    bool
	}{
		{"market buy", types.OrderSideBuy, types.OrderTypeMarket, d("1"), nil, false, false},
		{"limit sell", types.OrderSideSell, types.OrderTypeLimit, d("2"), &limit, false, false},
		{"bad side", types.OrderSide("hold"), types.OrderTypeMarket, d("1"), nil, false, true},
		{"bad type", types.OrderSideBuy, types.OrderType("stop"), d("1"), nil, false, true},
		{"zero qty", types.OrderSideBuy, types.OrderTypeMarket, d("0"), nil, false, true},
		{"negative qty", types.OrderSideBuy, types.OrderTypeMarket, d("-3"), nil, false, true},
		{"fractional blocked", types.OrderSideBuy, types.OrderTypeMarket, d("1.5"), nil, false, true},
		{"fractional allowed", types.OrderSideBuy, types.OrderTypeMarket, d("1.5"), nil, true, false},
		{"limit without price", types.OrderSideBuy, types.OrderTypeLimit, d("1"), nil, false, true},
	}
	for _, tc := range tests {
		err := validate(tc.side, tc.typ, tc.qty, tc.limitPrice, tc.fractional)
		if tc.wantErr {
			assert.Error(t, err, tc.name)
		} else {
			assert.NoError(t, err, tc.name)
		}
	}
}
