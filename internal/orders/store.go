package orders

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bullpen/internal/model"
	"bullpen/internal/types"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InsertOrder persists the terminal order row: filled and rejected
// orders alike are kept as the user's audit trail.
func (s *Store) InsertOrder(ctx context.Context, tx pgx.Tx, o model.Order) (string, error) {
	var id string
	err := tx.QueryRow(ctx,
		`insert into bull_pen_orders
		 (bull_pen_id, user_id, symbol, side, type, qty, limit_price, status,
		  rejection_reason, filled_qty, avg_fill_price, placed_at, filled_at)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) returning id`,
		o.BullPenID, o.UserID, o.Symbol, string(o.Side), string(o.Type), o.Qty, o.LimitPrice,
		string(o.Status), o.RejectionReason, o.FilledQty, o.AvgFillPrice, o.PlacedAt, o.FilledAt,
	).Scan(&id)
	return id, err
}

func (s *Store) ListByUser(ctx context.Context, penID, userID string, limit int) ([]model.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`select id, bull_pen_id, user_id, symbol, side, type, qty, limit_price, status,
		        rejection_reason, filled_qty, avg_fill_price, placed_at, filled_at
		 from bull_pen_orders where bull_pen_id = $1 and user_id = $2
		 order by placed_at desc limit $3`,
		penID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		var o model.Order
		var side, typ, status string
		if err := rows.Scan(&o.ID, &o.BullPenID, &o.UserID, &o.Symbol, &side, &typ, &o.Qty,
			&o.LimitPrice, &status, &o.RejectionReason, &o.FilledQty, &o.AvgFillPrice,
			&o.PlacedAt, &o.FilledAt); err != nil {
			return nil, err
		}
		o.Side = types.OrderSide(side)
		o.Type = types.OrderType(typ)
		o.Status = types.OrderStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountFilledByUser feeds the trade-count tie-breaker at settlement.
func (s *Store) CountFilledByUser(ctx context.Context, penID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`select user_id, count(*) from bull_pen_orders
		 where bull_pen_id = $1 and status = 'filled' group by user_id`,
		penID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var userID string
		var n int
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, err
		}
		out[userID] = n
	}
	return out, rows.Err()
}
