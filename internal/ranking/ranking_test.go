package ranking

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMetric(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeMetric(10, 10, 20))
	assert.Equal(t, 1.0, NormalizeMetric(20, 10, 20))
	assert.Equal(t, 0.5, NormalizeMetric(15, 10, 20))
	// degenerate cohort: everyone equal
	assert.Equal(t, 0.5, NormalizeMetric(42, 42, 42))
	// out-of-range inputs clamp
	assert.Equal(t, 0.0, NormalizeMetric(5, 10, 20))
	assert.Equal(t, 1.0, NormalizeMetric(25, 10, 20))
}

func TestCompositeScore(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 1.0, CompositeScore(1, 1, 1, w), 1e-9)
	assert.InDelta(t, 0.5, CompositeScore(0.5, 0.5, 0.5, w), 1e-9)
	assert.InDelta(t, 0.5, CompositeScore(1, 0, 0, w), 1e-9)
	assert.InDelta(t, 0.3, CompositeScore(0, 0, 1, w), 1e-9)
}

func TestTieBreakPnlAbs(t *testing.T) {
	a := Entry{UserID: "a", Score: 0.8, PnlPct: decimal.NewFromInt(10), PnlAbs: decimal.NewFromInt(1000)}
	b := Entry{UserID: "b", Score: 0.8, PnlPct: decimal.NewFromInt(10), PnlAbs: decimal.NewFromInt(2000)}
	got := ApplyTieBreakers([]Entry{a, b})
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].UserID)
	assert.Equal(t, "a", got[1].UserID)
}

func TestTieBreakLadderDownToAccountAge(t *testing.T) {
	base := Entry{
		Score:      0.8,
		PnlPct:     decimal.NewFromInt(10),
		PnlAbs:     decimal.NewFromInt(1000),
		RoomStars:  3,
		TradeCount: 12,
	}
	younger := base
	younger.UserID = "younger"
	younger.AccountAgeDays = 100
	older := base
	older.UserID = "older"
	older.AccountAgeDays = 200

	got := ApplyTieBreakers([]Entry{younger, older})
	assert.Equal(t, "older", got[0].UserID)
}

func TestTieBreakHigherPriorityFieldWins(t *testing.T) {
	// pnlPct only matters when scores are exactly equal
	a := Entry{UserID: "a", Score: 0.9, PnlPct: decimal.NewFromInt(-5)}
	b := Entry{UserID: "b", Score: 0.8, PnlPct: decimal.NewFromInt(50)}
	got := ApplyTieBreakers([]Entry{b, a})
	assert.Equal(t, "a", got[0].UserID)
}

func TestFullTieIsStableAndDeterministic(t *testing.T) {
	a := Entry{UserID: "a", Score: 0.5}
	b := Entry{UserID: "b", Score: 0.5}
	first := ApplyTieBreakers([]Entry{a, b})
	second := ApplyTieBreakers([]Entry{a, b})
	assert.Equal(t, first, second)
	// stable sort keeps input order on a full tie
	assert.Equal(t, "a", first[0].UserID)
}

func TestApplyTieBreakersDoesNotMutateInput(t *testing.T) {
	in := []Entry{
		{UserID: "low", Score: 0.1},
		{UserID: "high", Score: 0.9},
	}
	_ = ApplyTieBreakers(in)
	assert.Equal(t, "low", in[0].UserID)
}
