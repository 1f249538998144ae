package achievements

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"bullpen/internal/model"
)

// Store owns star_events plus the read queries that feed rule facts.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InsertStarEvent awards stars at most once per (user, reason, pen,
// season) tuple. Returns false when the award already exists.
func (s *Store) InsertStarEvent(ctx context.Context, e model.StarEvent) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`insert into star_events (user_id, reason_code, bull_pen_id, season_id, stars, awarded_at)
		 values ($1,$2,$3,$4,$5,$6)
		 on conflict (user_id, reason_code, coalesce(bull_pen_id::text, ''), coalesce(season_id, '')) do nothing`,
		e.UserID, e.ReasonCode, e.BullPenID, e.SeasonID, e.Stars, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// StarsInPen is the member's star total scoped to one room, the value
// that feeds the leaderboard's star metric.
func (s *Store) StarsInPen(ctx context.Context, penID, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"select coalesce(sum(stars), 0) from star_events where user_id = $1 and bull_pen_id = $2",
		userID, penID).Scan(&n)
	return n, err
}

// TotalStars sums every award the user has ever received.
func (s *Store) TotalStars(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"select coalesce(sum(stars), 0) from star_events where user_id = $1",
		userID).Scan(&n)
	return n, err
}

func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]model.StarEvent, error) {
	rows, err := s.pool.Query(ctx,
		`select id, user_id, reason_code, bull_pen_id, season_id, stars, awarded_at
		 from star_events where user_id = $1 order by awarded_at desc limit $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.StarEvent
	for rows.Next() {
		var e model.StarEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.ReasonCode, &e.BullPenID, &e.SeasonID, &e.Stars, &e.AwardedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- fact queries ---

// RoomsPlayed counts settled rooms the user appears in, via leaderboard
// snapshots. The room currently being settled is not yet snapshotted,
// so callers add one for it.
func (s *Store) RoomsPlayed(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"select count(distinct bull_pen_id) from leaderboard_snapshots where user_id = $1",
		userID).Scan(&n)
	return n, err
}

// ConsecutiveWins counts the user's current first-place streak over
// their most recent settled rooms, newest first.
func (s *Store) ConsecutiveWins(ctx context.Context, userID string) (int, error) {
	rows, err := s.pool.Query(ctx,
		"select rank from leaderboard_snapshots where user_id = $1 order by snapshot_at desc limit 20",
		userID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	streak := 0
	for rows.Next() {
		var rank int
		if err := rows.Scan(&rank); err != nil {
			return 0, err
		}
		if rank != 1 {
			break
		}
		streak++
	}
	return streak, rows.Err()
}

// SeasonAvgPercentile averages the user's finishing percentile across
// the season's settled rooms; 100 means no season history.
func (s *Store) SeasonAvgPercentile(ctx context.Context, userID, seasonID string) (float64, error) {
	var pct float64
	err := s.pool.QueryRow(ctx,
		`select coalesce(avg(ls.rank::float8 / c.n * 100), 100)
		 from leaderboard_snapshots ls
		 join (select bull_pen_id, count(*) as n from leaderboard_snapshots group by bull_pen_id) c
		   on c.bull_pen_id = ls.bull_pen_id
		 join bull_pens bp on bp.id = ls.bull_pen_id
		 where ls.user_id = $1 and bp.season_id = $2`,
		userID, seasonID).Scan(&pct)
	return pct, err
}

// ActivityStreakDays counts consecutive UTC days with at least one
// filled order, ending today or yesterday.
func (s *Store) ActivityStreakDays(ctx context.Context, userID string, now time.Time) (int, error) {
	rows, err := s.pool.Query(ctx,
		`select distinct date_trunc('day', filled_at) from bull_pen_orders
		 where user_id = $1 and status = 'filled' and filled_at is not null
		 order by 1 desc limit 60`,
		userID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return 0, err
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return countStreak(days, now), nil
}

// countStreak walks day buckets newest-first. A streak is live when its
// most recent day is today or yesterday.
func countStreak(days []time.Time, now time.Time) int {
	if len(days) == 0 {
		return 0
	}
	today := now.UTC().Truncate(24 * time.Hour)
	head := days[0].UTC().Truncate(24 * time.Hour)
	if today.Sub(head) > 24*time.Hour {
		return 0
	}
	streak := 1
	prev := head
	for _, d := range days[1:] {
		d = d.UTC().Truncate(24 * time.Hour)
		if prev.Sub(d) != 24*time.Hour {
			break
		}
		streak++
		prev = d
	}
	return streak
}

// PendingCampaignActions lists campaign action codes recorded for the
// user that have not yet been converted into stars.
func (s *Store) PendingCampaignActions(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"select action_code from campaign_actions where user_id = $1 and rewarded_at is null order by created_at",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

func (s *Store) MarkCampaignActionsRewarded(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		"update campaign_actions set rewarded_at = $1 where user_id = $2 and rewarded_at is null",
		time.Now().UTC(), userID)
	return err
}
