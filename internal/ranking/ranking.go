// Package ranking turns raw settlement metrics into a tie-broken
// leaderboard ordering.
package ranking

import (
	"sort"

	"github.com/shopspring/decimal"
)

type Weights struct {
	Return float64
	Pnl    float64
	Stars  float64
}

// DefaultWeights is the 0.5/0.2/0.3 blend; callers validate that
// overrides sum to 1, this package does not.
func DefaultWeights() Weights {
	return Weights{Return: 0.5, Pnl: 0.2, Stars: 0.3}
}

// NormalizeMetric scales value linearly into [0,1] over [min,max]. A
// degenerate cohort where min == max yields 0.5 so an all-equal field
// neither rewards nor punishes anyone.
func NormalizeMetric(value, min, max float64) float64 {
	if min == max {
		return 0.5
	}
	n := (value - min) / (max - min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// CompositeScore blends the normalized metrics.
func CompositeScore(normReturn, normPnl, normStars float64, w Weights) float64 {
	return normReturn*w.Return + normPnl*w.Pnl + normStars*w.Stars
}

// Entry is one member's scoring row.
type Entry struct {
	UserID         string
	Score          float64
	PnlPct         decimal.Decimal
	PnlAbs         decimal.Decimal
	RoomStars      int
	TradeCount     int
	AccountAgeDays int64
}

// ApplyTieBreakers orders entries best-first: score desc, then pnlPct,
// pnlAbs, roomStars, tradeCount, accountAge, each consulted only when
// every field before it is exactly equal. The sort is stable, so a
// full tie keeps input order and repeated calls agree.
func ApplyTieBreakers(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.PnlPct.Equal(b.PnlPct) {
			return a.PnlPct.GreaterThan(b.PnlPct)
		}
		if !a.PnlAbs.Equal(b.PnlAbs) {
			return a.PnlAbs.GreaterThan(b.PnlAbs)
		}
		if a.RoomStars != b.RoomStars {
			return a.RoomStars > b.RoomStars
		}
		if a.TradeCount != b.TradeCount {
			return a.TradeCount > b.TradeCount
		}
		if a.AccountAgeDays != b.AccountAgeDays {
			return a.AccountAgeDays > b.AccountAgeDays
		}
		return false
	})
	return out
}
