package achievements

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bullpen/internal/metrics"
	"bullpen/internal/model"
)

type Service struct {
	store *Store
	log   *zap.Logger
}

func NewService(store *Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log.Named("achievements")}
}

// BuildFacts assembles the evaluation snapshot for one member of a room
// being settled. The current room is counted even though its snapshot
// is not written yet.
func (s *Service) BuildFacts(ctx context.Context, penID string, seasonID *string, userID string, rank int, now time.Time) (MemberFacts, error) {
	f := MemberFacts{
		UserID:    userID,
		BullPenID: penID,
		SeasonID:  seasonID,
		Rank:      rank,
	}

	played, err := s.store.RoomsPlayed(ctx, userID)
	if err != nil {
		return f, fmt.Errorf("rooms played: %w", err)
	}
	f.RoomsPlayed = played + 1

	wins, err := s.store.ConsecutiveWins(ctx, userID)
	if err != nil {
		return f, fmt.Errorf("consecutive wins: %w", err)
	}
	if rank == 1 {
		wins++
	} else {
		wins = 0
	}
	f.ConsecutiveWins = wins

	if seasonID != nil {
		pct, err := s.store.SeasonAvgPercentile(ctx, userID, *seasonID)
		if err != nil {
			return f, fmt.Errorf("season percentile: %w", err)
		}
		f.SeasonAvgPct = pct
	}

	streak, err := s.store.ActivityStreakDays(ctx, userID, now)
	if err != nil {
		return f, fmt.Errorf("activity streak: %w", err)
	}
	f.ActivityStreakDays = streak

	actions, err := s.store.PendingCampaignActions(ctx, userID)
	if err != nil {
		return f, fmt.Errorf("campaign actions: %w", err)
	}
	f.CampaignActions = actions
	return f, nil
}

// EvaluateMember runs the rule catalog against the facts and persists
// the resulting star events. Returns the number of stars newly awarded;
// replays award nothing thanks to the store's conflict handling.
func (s *Service) EvaluateMember(ctx context.Context, f MemberFacts) (int, error) {
	awarded := 0
	campaignStars := 0
	for _, a := range EvaluateRules(f) {
		inserted, err := s.store.InsertStarEvent(ctx, model.StarEvent{
			UserID:     f.UserID,
			ReasonCode: a.ReasonCode,
			BullPenID:  a.BullPenID,
			SeasonID:   a.SeasonID,
			Stars:      a.Stars,
		})
		if err != nil {
			return awarded, fmt.Errorf("award %s: %w", a.ReasonCode, err)
		}
		if !inserted {
			continue
		}
		awarded += a.Stars
		if a.ReasonCode == ReasonCampaignAction {
			campaignStars += a.Stars
		}
		metrics.StarAwards.WithLabelValues(a.ReasonCode).Inc()
		s.log.Info("stars awarded",
			zap.String("user_id", f.UserID),
			zap.String("reason", a.ReasonCode),
			zap.Int("stars", a.Stars))
	}
	if campaignStars > 0 {
		if err := s.store.MarkCampaignActionsRewarded(ctx, f.UserID); err != nil {
			return awarded, fmt.Errorf("mark campaign actions: %w", err)
		}
	}
	return awarded, nil
}

// StarsInPen exposes the per-room star total for ranking inputs.
func (s *Service) StarsInPen(ctx context.Context, penID, userID string) (int, error) {
	return s.store.StarsInPen(ctx, penID, userID)
}
