package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"bullpen/internal/types"
)

// BudgetAccount holds a user's real balance. Available and locked are
// materialized running totals; budget log rows are the audit trail,
// never the source of truth for the balance itself.
type BudgetAccount struct {
	UserID    string              `json:"user_id"`
	Available decimal.Decimal     `json:"available_balance"`
	Locked    decimal.Decimal     `json:"locked_balance"`
	Currency  string              `json:"currency"`
	Status    types.AccountStatus `json:"status"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// BudgetLogEntry is an immutable audit row for one balance mutation.
type BudgetLogEntry struct {
	ID             string                `json:"id"`
	UserID         string                `json:"user_id"`
	Direction      types.LedgerDirection `json:"direction"`
	OperationType  types.OperationType   `json:"operation_type"`
	Amount         decimal.Decimal       `json:"amount"`
	BalanceBefore  decimal.Decimal       `json:"balance_before"`
	BalanceAfter   decimal.Decimal       `json:"balance_after"`
	CorrelationID  string                `json:"correlation_id"`
	IdempotencyKey string                `json:"idempotency_key"`
	BullPenID      *string               `json:"bull_pen_id,omitempty"`
	SeasonID       *string               `json:"season_id,omitempty"`
	MovedFrom      *string               `json:"moved_from,omitempty"`
	MovedTo        *string               `json:"moved_to,omitempty"`
	Meta           map[string]string     `json:"meta,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

type BullPen struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	State            types.RoomState `json:"state"`
	StartingCash     decimal.Decimal `json:"starting_cash"`
	DurationSec      int64           `json:"duration_sec"`
	StartTime        *time.Time      `json:"start_time,omitempty"`
	MaxPlayers       int             `json:"max_players"`
	AllowFractional  bool            `json:"allow_fractional"`
	ApprovalRequired bool            `json:"approval_required"`
	HostUserID       string          `json:"host_user_id"`
	SeasonID         *string         `json:"season_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewBullPen validates economic parameters at construction time.
func NewBullPen(name, hostUserID string, startingCash decimal.Decimal, durationSec int64, maxPlayers int) (BullPen, error) {
	if name == "" {
		return BullPen{}, errors.New("name is required")
	}
	if hostUserID == "" {
		return BullPen{}, errors.New("host is required")
	}
	if startingCash.LessThanOrEqual(decimal.Zero) {
		return BullPen{}, errors.New("starting cash must be positive")
	}
	if durationSec <= 0 {
		return BullPen{}, errors.New("duration must be positive")
	}
	if maxPlayers < 2 {
		return BullPen{}, errors.New("max players must be at least 2")
	}
	now := time.Now().UTC()
	return BullPen{
		Name:         name,
		State:        types.RoomStateDraft,
		StartingCash: startingCash,
		DurationSec:  durationSec,
		MaxPlayers:   maxPlayers,
		HostUserID:   hostUserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

type Membership struct {
	BullPenID string                 `json:"bull_pen_id"`
	UserID    string                 `json:"user_id"`
	Role      types.MembershipRole   `json:"role"`
	Status    types.MembershipStatus `json:"status"`
	Cash      decimal.Decimal        `json:"cash"`
	JoinedAt  time.Time              `json:"joined_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

type Position struct {
	BullPenID string          `json:"bull_pen_id"`
	UserID    string          `json:"user_id"`
	Symbol    string          `json:"symbol"`
	Qty       decimal.Decimal `json:"qty"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Order struct {
	ID              string            `json:"id"`
	BullPenID       string            `json:"bull_pen_id"`
	UserID          string            `json:"user_id"`
	Symbol          string            `json:"symbol"`
	Side            types.OrderSide   `json:"side"`
	Type            types.OrderType   `json:"type"`
	Qty             decimal.Decimal   `json:"qty"`
	LimitPrice      *decimal.Decimal  `json:"limit_price,omitempty"`
	Status          types.OrderStatus `json:"status"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	FilledQty       decimal.Decimal   `json:"filled_qty"`
	AvgFillPrice    *decimal.Decimal  `json:"avg_fill_price,omitempty"`
	PlacedAt        time.Time         `json:"placed_at"`
	FilledAt        *time.Time        `json:"filled_at,omitempty"`
}

type LeaderboardSnapshot struct {
	BullPenID      string          `json:"bull_pen_id"`
	UserID         string          `json:"user_id"`
	SnapshotAt     time.Time       `json:"snapshot_at"`
	Rank           int             `json:"rank"`
	Stars          int             `json:"stars"`
	Score          decimal.Decimal `json:"score"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	PnlAbs         decimal.Decimal `json:"pnl_abs"`
	PnlPct         decimal.Decimal `json:"pnl_pct"`
}

// StarEvent records one achievement award. The (user, reason, pen,
// season) tuple is the idempotency key: a second award is a no-op.
type StarEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ReasonCode string    `json:"reason_code"`
	BullPenID  *string   `json:"bull_pen_id,omitempty"`
	SeasonID   *string   `json:"season_id,omitempty"`
	Stars      int       `json:"stars"`
	AwardedAt  time.Time `json:"awarded_at"`
}
