package settlement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bullpen/internal/model"
)

// Store owns leaderboard_snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) InsertSnapshot(ctx context.Context, tx pgx.Tx, snap model.LeaderboardSnapshot) error {
	_, err := tx.Exec(ctx,
		`insert into leaderboard_snapshots
		 (bull_pen_id, user_id, snapshot_at, rank, stars, score, portfolio_value, pnl_abs, pnl_pct)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		snap.BullPenID, snap.UserID, snap.SnapshotAt, snap.Rank, snap.Stars,
		snap.Score, snap.PortfolioValue, snap.PnlAbs, snap.PnlPct)
	return err
}

func (s *Store) ListSnapshots(ctx context.Context, penID string) ([]model.LeaderboardSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`select bull_pen_id, user_id, snapshot_at, rank, stars, score, portfolio_value, pnl_abs, pnl_pct
		 from leaderboard_snapshots where bull_pen_id = $1 order by rank`,
		penID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.LeaderboardSnapshot
	for rows.Next() {
		var snap model.LeaderboardSnapshot
		if err := rows.Scan(&snap.BullPenID, &snap.UserID, &snap.SnapshotAt, &snap.Rank,
			&snap.Stars, &snap.Score, &snap.PortfolioValue, &snap.PnlAbs, &snap.PnlPct); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) CountSnapshots(ctx context.Context, penID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"select count(*) from leaderboard_snapshots where bull_pen_id = $1", penID).Scan(&n)
	return n, err
}

// AccountAgeDays measures from the budget account's first touch; a
// user with no account yet ages zero days.
func (s *Store) AccountAgeDays(ctx context.Context, userID string) (int64, error) {
	var days float64
	err := s.pool.QueryRow(ctx,
		"select extract(epoch from (now() - created_at)) / 86400 from user_budgets where user_id = $1",
		userID).Scan(&days)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(days), nil
}
