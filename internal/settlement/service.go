package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bullpen/internal/achievements"
	"bullpen/internal/budget"
	"bullpen/internal/bullpen"
	"bullpen/internal/metrics"
	"bullpen/internal/model"
	"bullpen/internal/orders"
	"bullpen/internal/ranking"
	"bullpen/internal/types"
)

var (
	ErrRoomNotActive     = errors.New("ROOM_NOT_ACTIVE")
	ErrRoomNotCancelable = errors.New("ROOM_NOT_CANCELABLE")
)

type priceResolver interface {
	ResolveAll(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// evaluator is what settlement needs from the achievements service.
type evaluator interface {
	BuildFacts(ctx context.Context, penID string, seasonID *string, userID string, rank int, now time.Time) (achievements.MemberFacts, error)
	EvaluateMember(ctx context.Context, f achievements.MemberFacts) (int, error)
	StarsInPen(ctx context.Context, penID, userID string) (int, error)
}

// Service closes out rooms: it prices every portfolio, awards
// achievements, writes the final leaderboard, returns escrow and moves
// the room to completed.
type Service struct {
	pool      *pgxpool.Pool
	pens      *bullpen.Store
	orders    *orders.Store
	budget    *budget.Service
	snapshots *Store
	quotes    priceResolver
	awards    evaluator
	weights   ranking.Weights
	log       *zap.Logger
}

func NewService(pool *pgxpool.Pool, pens *bullpen.Store, ordersStore *orders.Store,
	budgetSvc *budget.Service, snapshots *Store, quotes priceResolver,
	awards evaluator, weights ranking.Weights, log *zap.Logger) *Service {
	return &Service{
		pool:      pool,
		pens:      pens,
		orders:    ordersStore,
		budget:    budgetSvc,
		snapshots: snapshots,
		quotes:    quotes,
		awards:    awards,
		weights:   weights,
		log:       log.Named("settlement"),
	}
}

type SettleResult struct {
	Success      bool `json:"success"`
	SettledCount int  `json:"settled_count"`
}

type CancelResult struct {
	RefundedCount int `json:"refunded_count"`
}

// SettleRoom closes an active room. Phase one computes every member's
// metrics and runs achievement evaluation; a member whose evaluation
// fails still gets ranked and paid, only their new stars are lost.
// Phase two writes snapshots, pays out escrow and flips the state in
// one transaction, so either the whole settlement lands or none of it.
func (s *Service) SettleRoom(ctx context.Context, penID string) (SettleResult, error) {
	pen, err := s.pens.GetPen(ctx, penID)
	if err != nil {
		return SettleResult{}, err
	}
	if pen.State == types.RoomStateCompleted || pen.State == types.RoomStateArchived {
		// replayed settlement call
		n, err := s.snapshots.CountSnapshots(ctx, penID)
		if err != nil {
			return SettleResult{}, err
		}
		metrics.Settlements.WithLabelValues("replayed").Inc()
		return SettleResult{Success: true, SettledCount: n}, nil
	}
	if pen.State != types.RoomStateActive {
		return SettleResult{}, ErrRoomNotActive
	}

	members, err := s.pens.ListMembers(ctx, penID, []types.MembershipStatus{types.MembershipStatusActive})
	if err != nil {
		return SettleResult{}, err
	}
	positions, err := s.pens.ListPositionsByPen(ctx, penID)
	if err != nil {
		return SettleResult{}, err
	}

	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	prices, err := s.quotes.ResolveAll(ctx, symbols)
	if err != nil {
		metrics.Settlements.WithLabelValues("price_unavailable").Inc()
		return SettleResult{}, fmt.Errorf("resolve settlement prices: %w", err)
	}

	byUser := map[string][]model.Position{}
	for _, p := range positions {
		byUser[p.UserID] = append(byUser[p.UserID], p)
	}

	memberMetrics := make([]MemberMetrics, 0, len(members))
	stars := map[string]int{}
	accountAge := map[string]int64{}
	for _, m := range members {
		mm, err := ComputeMetrics(m.UserID, m.Cash, byUser[m.UserID], prices, pen.StartingCash)
		if err != nil {
			return SettleResult{}, fmt.Errorf("metrics for %s: %w", m.UserID, err)
		}
		memberMetrics = append(memberMetrics, mm)
		if stars[m.UserID], err = s.awards.StarsInPen(ctx, penID, m.UserID); err != nil {
			return SettleResult{}, err
		}
		if accountAge[m.UserID], err = s.snapshots.AccountAgeDays(ctx, m.UserID); err != nil {
			return SettleResult{}, err
		}
	}
	tradeCounts, err := s.orders.CountFilledByUser(ctx, penID)
	if err != nil {
		return SettleResult{}, err
	}

	ranked := Rank(memberMetrics, stars, tradeCounts, accountAge, s.weights)
	now := time.Now().UTC()

	failed := evaluateMembers(ctx, s.awards, s.log, penID, pen.SeasonID, ranked, now)
	if failed > 0 {
		s.log.Warn("achievement evaluation partially failed",
			zap.String("bull_pen_id", penID), zap.Int("failed_members", failed))
	}

	metricsByUser := map[string]MemberMetrics{}
	for _, mm := range memberMetrics {
		metricsByUser[mm.UserID] = mm
	}
	roleByUser := map[string]types.MembershipRole{}
	for _, m := range members {
		roleByUser[m.UserID] = m.Role
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return SettleResult{}, err
	}
	defer tx.Rollback(ctx)

	locked, err := s.pens.GetPenForUpdate(ctx, tx, penID)
	if err != nil {
		return SettleResult{}, err
	}
	if locked.State == types.RoomStateCompleted {
		n, err := s.snapshots.CountSnapshots(ctx, penID)
		if err != nil {
			return SettleResult{}, err
		}
		metrics.Settlements.WithLabelValues("replayed").Inc()
		return SettleResult{Success: true, SettledCount: n}, nil
	}
	if locked.State != types.RoomStateActive {
		return SettleResult{}, ErrRoomNotActive
	}

	for i, e := range ranked {
		// stars re-read post-award so the snapshot reflects what the
		// settlement itself granted
		finalStars, err := s.awards.StarsInPen(ctx, penID, e.UserID)
		if err != nil {
			s.log.Warn("post-award star read failed, snapshot uses pre-award count",
				zap.String("pen_id", penID), zap.String("user_id", e.UserID), zap.Error(err))
			finalStars = e.RoomStars
		}
		mm := metricsByUser[e.UserID]
		err = s.snapshots.InsertSnapshot(ctx, tx, model.LeaderboardSnapshot{
			BullPenID:      penID,
			UserID:         e.UserID,
			SnapshotAt:     now,
			Rank:           i + 1,
			Stars:          finalStars,
			Score:          decimal.NewFromFloat(e.Score),
			PortfolioValue: mm.PortfolioValue,
			PnlAbs:         mm.PnlAbs,
			PnlPct:         mm.PnlPct,
		})
		if err != nil {
			return SettleResult{}, fmt.Errorf("snapshot for %s: %w", e.UserID, err)
		}

		// The host never paid buy-in, so there is no escrow to return.
		if roleByUser[e.UserID] == types.MembershipRoleHost {
			continue
		}
		_, err = s.budget.Credit(ctx, tx, budget.Mutation{
			UserID:         e.UserID,
			Amount:         pen.StartingCash,
			OperationType:  types.OpRoomSettlementPayout,
			IdempotencyKey: fmt.Sprintf("settle:%s:%s", penID, e.UserID),
			BullPenID:      &penID,
			SeasonID:       pen.SeasonID,
		})
		if err != nil {
			return SettleResult{}, fmt.Errorf("payout for %s: %w", e.UserID, err)
		}
	}

	if err := s.pens.UpdatePenState(ctx, tx, penID, types.RoomStateCompleted, nil); err != nil {
		return SettleResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return SettleResult{}, err
	}

	metrics.Settlements.WithLabelValues("settled").Inc()
	s.log.Info("room settled",
		zap.String("bull_pen_id", penID),
		zap.Int("members", len(ranked)))
	return SettleResult{Success: true, SettledCount: len(ranked)}, nil
}

// evaluateMembers runs achievement evaluation for every ranked member.
// A failure is logged and skipped; it never blocks the other members
// or the settlement itself.
func evaluateMembers(ctx context.Context, ev evaluator, log *zap.Logger,
	penID string, seasonID *string, ranked []ranking.Entry, now time.Time) int {

	failed := 0
	for i, e := range ranked {
		facts, err := ev.BuildFacts(ctx, penID, seasonID, e.UserID, i+1, now)
		if err != nil {
			failed++
			log.Warn("achievement facts failed",
				zap.String("bull_pen_id", penID),
				zap.String("user_id", e.UserID),
				zap.Error(err))
			continue
		}
		if _, err := ev.EvaluateMember(ctx, facts); err != nil {
			failed++
			log.Warn("achievement evaluation failed",
				zap.String("bull_pen_id", penID),
				zap.String("user_id", e.UserID),
				zap.Error(err))
		}
	}
	return failed
}

// CancelRoom aborts a room that has not settled and returns every
// buy-in. Refund keys make retried cancellations harmless.
func (s *Service) CancelRoom(ctx context.Context, penID string) (CancelResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CancelResult{}, err
	}
	defer tx.Rollback(ctx)

	pen, err := s.pens.GetPenForUpdate(ctx, tx, penID)
	if err != nil {
		return CancelResult{}, err
	}
	if pen.State == types.RoomStateCompleted || pen.State == types.RoomStateArchived {
		return CancelResult{}, ErrRoomNotCancelable
	}

	members, err := s.pens.ListMembers(ctx, penID,
		[]types.MembershipStatus{types.MembershipStatusPending, types.MembershipStatusActive})
	if err != nil {
		return CancelResult{}, err
	}

	refunded := 0
	for _, m := range members {
		if m.Role == types.MembershipRoleHost {
			continue
		}
		_, err := s.budget.Credit(ctx, tx, budget.Mutation{
			UserID:         m.UserID,
			Amount:         pen.StartingCash,
			OperationType:  types.OpRoomCancelRefund,
			IdempotencyKey: fmt.Sprintf("cancel:%s:%s", penID, m.UserID),
			BullPenID:      &penID,
			SeasonID:       pen.SeasonID,
		})
		if err != nil {
			return CancelResult{}, fmt.Errorf("refund for %s: %w", m.UserID, err)
		}
		refunded++
	}

	// a cancelled room is terminal, same as a settled one
	if err := s.pens.UpdatePenState(ctx, tx, penID, types.RoomStateCompleted, nil); err != nil {
		return CancelResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return CancelResult{}, err
	}

	metrics.Settlements.WithLabelValues("cancelled").Inc()
	s.log.Info("room cancelled",
		zap.String("bull_pen_id", penID),
		zap.Int("refunded", refunded))
	return CancelResult{RefundedCount: refunded}, nil
}

// Leaderboard returns the final standings of a settled room.
func (s *Service) Leaderboard(ctx context.Context, penID string) ([]model.LeaderboardSnapshot, error) {
	if _, err := s.pens.GetPen(ctx, penID); err != nil {
		return nil, err
	}
	return s.snapshots.ListSnapshots(ctx, penID)
}
