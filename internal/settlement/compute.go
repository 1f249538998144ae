package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bullpen/internal/model"
	"bullpen/internal/ranking"
)

// MemberMetrics is one member's raw settlement numbers before any
// cross-member normalization.
type MemberMetrics struct {
	UserID         string
	Cash           decimal.Decimal
	PortfolioValue decimal.Decimal
	PnlAbs         decimal.Decimal
	PnlPct         decimal.Decimal
}

// ComputeMetrics values the member's portfolio at the supplied prices.
// Every open position must have a price; settlement does not guess.
func ComputeMetrics(userID string, cash decimal.Decimal, positions []model.Position,
	prices map[string]decimal.Decimal, startingCash decimal.Decimal) (MemberMetrics, error) {

	value := cash
	for _, p := range positions {
		price, ok := prices[p.Symbol]
		if !ok {
			return MemberMetrics{}, fmt.Errorf("no price for %s", p.Symbol)
		}
		value = value.Add(p.Qty.Mul(price))
	}
	pnlAbs := value.Sub(startingCash)
	pnlPct := pnlAbs.Div(startingCash).Mul(decimal.NewFromInt(100))
	return MemberMetrics{
		UserID:         userID,
		Cash:           cash,
		PortfolioValue: value,
		PnlAbs:         pnlAbs,
		PnlPct:         pnlPct,
	}, nil
}

// Rank normalizes the cohort's metrics, blends them into composite
// scores and returns entries ordered best-first with ties broken.
func Rank(metrics []MemberMetrics, stars map[string]int, tradeCounts map[string]int,
	accountAge map[string]int64, w ranking.Weights) []ranking.Entry {

	if len(metrics) == 0 {
		return nil
	}

	minPct, maxPct := metrics[0].PnlPct, metrics[0].PnlPct
	minAbs, maxAbs := metrics[0].PnlAbs, metrics[0].PnlAbs
	minStars, maxStars := stars[metrics[0].UserID], stars[metrics[0].UserID]
	for _, m := range metrics[1:] {
		if m.PnlPct.LessThan(minPct) {
			minPct = m.PnlPct
		}
		if m.PnlPct.GreaterThan(maxPct) {
			maxPct = m.PnlPct
		}
		if m.PnlAbs.LessThan(minAbs) {
			minAbs = m.PnlAbs
		}
		if m.PnlAbs.GreaterThan(maxAbs) {
			maxAbs = m.PnlAbs
		}
		s := stars[m.UserID]
		if s < minStars {
			minStars = s
		}
		if s > maxStars {
			maxStars = s
		}
	}

	entries := make([]ranking.Entry, 0, len(metrics))
	for _, m := range metrics {
		pctF, _ := m.PnlPct.Float64()
		absF, _ := m.PnlAbs.Float64()
		minPctF, _ := minPct.Float64()
		maxPctF, _ := maxPct.Float64()
		minAbsF, _ := minAbs.Float64()
		maxAbsF, _ := maxAbs.Float64()

		score := ranking.CompositeScore(
			ranking.NormalizeMetric(pctF, minPctF, maxPctF),
			ranking.NormalizeMetric(absF, minAbsF, maxAbsF),
			ranking.NormalizeMetric(float64(stars[m.UserID]), float64(minStars), float64(maxStars)),
			w,
		)
		entries = append(entries, ranking.Entry{
			UserID:         m.UserID,
			Score:          score,
			PnlPct:         m.PnlPct,
			PnlAbs:         m.PnlAbs,
			RoomStars:      stars[m.UserID],
			TradeCount:     tradeCounts[m.UserID],
			AccountAgeDays: accountAge[m.UserID],
		})
	}
	return ranking.ApplyTieBreakers(entries)
}
