package bullpen

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"bullpen/internal/model"
	"bullpen/internal/types"
)

// Store owns bull_pens, bull_pen_memberships and bull_pen_positions.
// Position rows belong to their room and are removed with it.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const penColumns = `id, name, state, starting_cash, duration_sec, start_time, max_players,
	allow_fractional, approval_required, host_user_id, season_id, created_at, updated_at`

func scanPen(row pgx.Row) (model.BullPen, error) {
	var p model.BullPen
	var state string
	err := row.Scan(&p.ID, &p.Name, &state, &p.StartingCash, &p.DurationSec, &p.StartTime,
		&p.MaxPlayers, &p.AllowFractional, &p.ApprovalRequired, &p.HostUserID, &p.SeasonID,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.State = types.RoomState(state)
	return p, nil
}

func (s *Store) CreatePen(ctx context.Context, tx pgx.Tx, p model.BullPen) (string, error) {
	var id string
	err := tx.QueryRow(ctx,
		`insert into bull_pens
		 (name, state, starting_cash, duration_sec, start_time, max_players,
		  allow_fractional, approval_required, host_user_id, season_id, created_at, updated_at)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) returning id`,
		p.Name, string(p.State), p.StartingCash, p.DurationSec, p.StartTime, p.MaxPlayers,
		p.AllowFractional, p.ApprovalRequired, p.HostUserID, p.SeasonID, p.CreatedAt, p.UpdatedAt,
	).Scan(&id)
	return id, err
}

func (s *Store) GetPen(ctx context.Context, id string) (model.BullPen, error) {
	p, err := scanPen(s.pool.QueryRow(ctx, "select "+penColumns+" from bull_pens where id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *Store) GetPenForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.BullPen, error) {
	p, err := scanPen(tx.QueryRow(ctx, "select "+penColumns+" from bull_pens where id = $1 for update", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *Store) UpdatePenParams(ctx context.Context, tx pgx.Tx, p model.BullPen) error {
	_, err := tx.Exec(ctx,
		`update bull_pens set name = $1, starting_cash = $2, duration_sec = $3, max_players = $4,
		 allow_fractional = $5, approval_required = $6, updated_at = $7 where id = $8`,
		p.Name, p.StartingCash, p.DurationSec, p.MaxPlayers,
		p.AllowFractional, p.ApprovalRequired, time.Now().UTC(), p.ID)
	return err
}

func (s *Store) UpdatePenState(ctx context.Context, tx pgx.Tx, id string, state types.RoomState, startTime *time.Time) error {
	if startTime != nil {
		_, err := tx.Exec(ctx,
			"update bull_pens set state = $1, start_time = $2, updated_at = $3 where id = $4",
			string(state), startTime, time.Now().UTC(), id)
		return err
	}
	_, err := tx.Exec(ctx,
		"update bull_pens set state = $1, updated_at = $2 where id = $3",
		string(state), time.Now().UTC(), id)
	return err
}

// --- memberships ---

const membershipColumns = "bull_pen_id, user_id, role, status, cash, joined_at, updated_at"

func scanMembership(row pgx.Row) (model.Membership, error) {
	var m model.Membership
	var role, status string
	err := row.Scan(&m.BullPenID, &m.UserID, &role, &status, &m.Cash, &m.JoinedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	m.Role = types.MembershipRole(role)
	m.Status = types.MembershipStatus(status)
	return m, nil
}

func (s *Store) InsertMembership(ctx context.Context, tx pgx.Tx, m model.Membership) error {
	_, err := tx.Exec(ctx,
		`insert into bull_pen_memberships (bull_pen_id, user_id, role, status, cash, joined_at, updated_at)
		 values ($1,$2,$3,$4,$5,$6,$7)`,
		m.BullPenID, m.UserID, string(m.Role), string(m.Status), m.Cash, m.JoinedAt, m.UpdatedAt)
	return err
}

func (s *Store) GetMembership(ctx context.Context, penID, userID string) (model.Membership, error) {
	m, err := scanMembership(s.pool.QueryRow(ctx,
		"select "+membershipColumns+" from bull_pen_memberships where bull_pen_id = $1 and user_id = $2",
		penID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return m, ErrMemberNotFound
	}
	return m, err
}

// GetMembershipForUpdate takes the row lock that serializes concurrent
// orders from the same user in the same room.
func (s *Store) GetMembershipForUpdate(ctx context.Context, tx pgx.Tx, penID, userID string) (model.Membership, error) {
	m, err := scanMembership(tx.QueryRow(ctx,
		"select "+membershipColumns+" from bull_pen_memberships where bull_pen_id = $1 and user_id = $2 for update",
		penID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return m, ErrMemberNotFound
	}
	return m, err
}

func (s *Store) UpdateMembershipStatus(ctx context.Context, tx pgx.Tx, penID, userID string, status types.MembershipStatus) error {
	_, err := tx.Exec(ctx,
		"update bull_pen_memberships set status = $1, updated_at = $2 where bull_pen_id = $3 and user_id = $4",
		string(status), time.Now().UTC(), penID, userID)
	return err
}

func (s *Store) UpdateMembershipCash(ctx context.Context, tx pgx.Tx, penID, userID string, cash decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		"update bull_pen_memberships set cash = $1, updated_at = $2 where bull_pen_id = $3 and user_id = $4",
		cash, time.Now().UTC(), penID, userID)
	return err
}

// CountLiveMembers counts seats taken (pending joins hold a seat).
func (s *Store) CountLiveMembers(ctx context.Context, tx pgx.Tx, penID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx,
		"select count(*) from bull_pen_memberships where bull_pen_id = $1 and status in ('pending','active')",
		penID).Scan(&n)
	return n, err
}

func (s *Store) ListMembers(ctx context.Context, penID string, statuses []types.MembershipStatus) ([]model.Membership, error) {
	raw := make([]string, 0, len(statuses))
	for _, st := range statuses {
		raw = append(raw, string(st))
	}
	rows, err := s.pool.Query(ctx,
		"select "+membershipColumns+" from bull_pen_memberships where bull_pen_id = $1 and status = any($2) order by joined_at",
		penID, raw)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- positions ---

func (s *Store) GetPositionForUpdate(ctx context.Context, tx pgx.Tx, penID, userID, symbol string) (model.Position, bool, error) {
	var p model.Position
	err := tx.QueryRow(ctx,
		`select bull_pen_id, user_id, symbol, qty, avg_cost, updated_at
		 from bull_pen_positions where bull_pen_id = $1 and user_id = $2 and symbol = $3 for update`,
		penID, userID, symbol).Scan(&p.BullPenID, &p.UserID, &p.Symbol, &p.Qty, &p.AvgCost, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Position{}, false, nil
	}
	if err != nil {
		return model.Position{}, false, err
	}
	return p, true, nil
}

func (s *Store) UpsertPosition(ctx context.Context, tx pgx.Tx, p model.Position) error {
	_, err := tx.Exec(ctx,
		`insert into bull_pen_positions (bull_pen_id, user_id, symbol, qty, avg_cost, updated_at)
		 values ($1,$2,$3,$4,$5,$6)
		 on conflict (bull_pen_id, user_id, symbol)
		 do update set qty = excluded.qty, avg_cost = excluded.avg_cost, updated_at = excluded.updated_at`,
		p.BullPenID, p.UserID, p.Symbol, p.Qty, p.AvgCost, time.Now().UTC())
	return err
}

func (s *Store) DeletePosition(ctx context.Context, tx pgx.Tx, penID, userID, symbol string) error {
	_, err := tx.Exec(ctx,
		"delete from bull_pen_positions where bull_pen_id = $1 and user_id = $2 and symbol = $3",
		penID, userID, symbol)
	return err
}

func (s *Store) ListPositionsByPen(ctx context.Context, penID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`select bull_pen_id, user_id, symbol, qty, avg_cost, updated_at
		 from bull_pen_positions where bull_pen_id = $1 order by user_id, symbol`,
		penID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Position
	for rows.Next() {
		var p model.Position
		if err := rows.Scan(&p.BullPenID, &p.UserID, &p.Symbol, &p.Qty, &p.AvgCost, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
