package budget

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bullpen/internal/metrics"
	"bullpen/internal/types"
)

// Service is the budget ledger: every real-balance mutation goes
// through here, inside a transaction, under a row lock, with a
// caller-supplied idempotency key. A replayed key returns the original
// before/after balances without re-applying the effect.
type Service struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewService(pool *pgxpool.Pool, log *zap.Logger) *Service {
	return &Service{pool: pool, log: log}
}

type Mutation struct {
	UserID         string
	Amount         decimal.Decimal
	OperationType  types.OperationType
	IdempotencyKey string
	CorrelationID  string
	BullPenID      *string
	SeasonID       *string
	Meta           map[string]string

	// set internally by Transfer
	movedFrom *string
	movedTo   *string
}

type Result struct {
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	LogID         string          `json:"log_id"`
	Idempotent    bool            `json:"idempotent"`
}

func (s *Service) Credit(ctx context.Context, tx pgx.Tx, m Mutation) (Result, error) {
	return s.mutate(ctx, tx, opCredit, m)
}

func (s *Service) Debit(ctx context.Context, tx pgx.Tx, m Mutation) (Result, error) {
	return s.mutate(ctx, tx, opDebit, m)
}

func (s *Service) Lock(ctx context.Context, tx pgx.Tx, m Mutation) (Result, error) {
	if m.OperationType == "" {
		m.OperationType = types.OpLock
	}
	return s.mutate(ctx, tx, opLock, m)
}

func (s *Service) Unlock(ctx context.Context, tx pgx.Tx, m Mutation) (Result, error) {
	if m.OperationType == "" {
		m.OperationType = types.OpUnlock
	}
	return s.mutate(ctx, tx, opUnlock, m)
}

// Adjust is the admin-only credit or debit. Meta must identify the
// acting admin.
func (s *Service) Adjust(ctx context.Context, tx pgx.Tx, direction types.LedgerDirection, m Mutation) (Result, error) {
	if m.Meta == nil || m.Meta["admin_id"] == "" {
		return Result{}, errors.New("adjust requires meta.admin_id")
	}
	m.OperationType = types.OpAdminAdjust
	if direction == types.LedgerDirectionCredit {
		return s.mutate(ctx, tx, opCredit, m)
	}
	return s.mutate(ctx, tx, opDebit, m)
}

// Transfer atomically debits from and credits to under one correlation
// id. The two log rows derive their keys from the caller's key; the
// ":out" row is the idempotency anchor.
func (s *Service) Transfer(ctx context.Context, tx pgx.Tx, fromUserID, toUserID string, m Mutation) (Result, error) {
	if fromUserID == toUserID {
		return Result{}, ErrSameUser
	}
	if m.IdempotencyKey == "" {
		return Result{}, ErrMissingKey
	}
	if prior, found, err := s.findLog(ctx, tx, m.IdempotencyKey+":out"); err != nil {
		return Result{}, err
	} else if found {
		metrics.BudgetOps.WithLabelValues(string(types.OpTransfer), "true").Inc()
		return prior, nil
	}
	if m.CorrelationID == "" {
		m.CorrelationID = uuid.New().String()
	}
	m.OperationType = types.OpTransfer

	// Lock both accounts in user-id order so concurrent opposite
	// transfers cannot deadlock.
	first, second := fromUserID, toUserID
	if second < first {
		first, second = second, first
	}
	if _, _, _, err := s.lockAccount(ctx, tx, first); err != nil {
		return Result{}, err
	}
	if _, _, _, err := s.lockAccount(ctx, tx, second); err != nil {
		return Result{}, err
	}

	out := m
	out.UserID = fromUserID
	out.IdempotencyKey = m.IdempotencyKey + ":out"
	out.movedFrom, out.movedTo = &fromUserID, &toUserID
	debitRes, err := s.mutateLocked(ctx, tx, opDebit, out)
	if err != nil {
		return Result{}, err
	}
	in := m
	in.UserID = toUserID
	in.IdempotencyKey = m.IdempotencyKey + ":in"
	in.movedFrom, in.movedTo = &fromUserID, &toUserID
	if _, err := s.mutateLocked(ctx, tx, opCredit, in); err != nil {
		return Result{}, err
	}
	metrics.BudgetOps.WithLabelValues(string(types.OpTransfer), "false").Inc()
	return debitRes, nil
}

// Execute runs one named operation in its own transaction; the HTTP
// handler goes through here.
func (s *Service) Execute(ctx context.Context, op string, fromUserID string, direction types.LedgerDirection, m Mutation) (Result, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback(ctx)

	var res Result
	switch op {
	case "credit":
		res, err = s.Credit(ctx, tx, m)
	case "debit":
		res, err = s.Debit(ctx, tx, m)
	case "lock":
		res, err = s.Lock(ctx, tx, m)
	case "unlock":
		res, err = s.Unlock(ctx, tx, m)
	case "adjust":
		res, err = s.Adjust(ctx, tx, direction, m)
	case "transfer":
		res, err = s.Transfer(ctx, tx, fromUserID, m.UserID, m)
	default:
		return Result{}, errors.New("unknown operation")
	}
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Account returns the current materialized balances.
func (s *Service) Account(ctx context.Context, userID string) (available, locked decimal.Decimal, status types.AccountStatus, err error) {
	err = s.pool.QueryRow(ctx,
		"select available_balance, locked_balance, status from user_budgets where user_id = $1",
		userID).Scan(&available, &locked, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, decimal.Zero, types.AccountStatusActive, nil
	}
	return available, locked, status, err
}

// mutate is the single write path: replay check, row lock, balance
// recompute, balance write and log write in the caller's transaction.
func (s *Service) mutate(ctx context.Context, tx pgx.Tx, kind opKind, m Mutation) (Result, error) {
	if m.IdempotencyKey == "" {
		return Result{}, ErrMissingKey
	}
	if prior, found, err := s.findLog(ctx, tx, m.IdempotencyKey); err != nil {
		return Result{}, err
	} else if found {
		metrics.BudgetOps.WithLabelValues(string(m.OperationType), "true").Inc()
		return prior, nil
	}
	if _, _, _, err := s.lockAccount(ctx, tx, m.UserID); err != nil {
		return Result{}, err
	}
	res, err := s.mutateLocked(ctx, tx, kind, m)
	if err != nil {
		return Result{}, err
	}
	metrics.BudgetOps.WithLabelValues(string(m.OperationType), "false").Inc()
	return res, nil
}

// mutateLocked assumes the account row is already locked in tx.
func (s *Service) mutateLocked(ctx context.Context, tx pgx.Tx, kind opKind, m Mutation) (Result, error) {
	var available, locked decimal.Decimal
	var status types.AccountStatus
	err := tx.QueryRow(ctx,
		"select available_balance, locked_balance, status from user_budgets where user_id = $1",
		m.UserID).Scan(&available, &locked, &status)
	if err != nil {
		return Result{}, err
	}
	if status != types.AccountStatusActive {
		return Result{}, ErrAccountNotActive
	}
	newAvailable, newLocked, direction, err := applyBalances(kind, available, locked, m.Amount)
	if err != nil {
		return Result{}, err
	}
	now := time.Now().UTC()
	if m.CorrelationID == "" {
		m.CorrelationID = uuid.New().String()
	}
	var metaJSON []byte
	if len(m.Meta) > 0 {
		metaJSON, _ = json.Marshal(m.Meta)
	}

	// The balance write and its log row land together under a
	// savepoint. A racing request with the same key that lost the
	// unique-index race rolls both back, leaving the outer transaction
	// usable, and returns the winner's committed result instead.
	sp, err := tx.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	if _, err := sp.Exec(ctx,
		"update user_budgets set available_balance = $1, locked_balance = $2, updated_at = $3 where user_id = $4",
		newAvailable, newLocked, now, m.UserID); err != nil {
		_ = sp.Rollback(ctx)
		return Result{}, err
	}
	var logID string
	err = sp.QueryRow(ctx,
		`insert into budget_logs
		 (user_id, direction, operation_type, amount, balance_before, balance_after,
		  correlation_id, idempotency_key, bull_pen_id, season_id, moved_from, moved_to, meta, created_at)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 returning id`,
		m.UserID, string(direction), string(m.OperationType), m.Amount, available, newAvailable,
		m.CorrelationID, m.IdempotencyKey, m.BullPenID, m.SeasonID, m.movedFrom, m.movedTo, metaJSON, now,
	).Scan(&logID)
	if err != nil {
		_ = sp.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			prior, found, ferr := s.findLog(ctx, tx, m.IdempotencyKey)
			if ferr != nil {
				return Result{}, ferr
			}
			if found {
				return prior, nil
			}
		}
		return Result{}, err
	}
	if err := sp.Commit(ctx); err != nil {
		return Result{}, err
	}
	s.log.Debug("budget mutation applied",
		zap.String("user_id", m.UserID),
		zap.String("operation", string(m.OperationType)),
		zap.String("direction", string(direction)),
		zap.String("amount", m.Amount.String()),
	)
	return Result{BalanceBefore: available, BalanceAfter: newAvailable, LogID: logID}, nil
}

// lockAccount takes the row lock, creating the account on first touch.
func (s *Service) lockAccount(ctx context.Context, tx pgx.Tx, userID string) (available, locked decimal.Decimal, status types.AccountStatus, err error) {
	err = tx.QueryRow(ctx,
		"select available_balance, locked_balance, status from user_budgets where user_id = $1 for update",
		userID).Scan(&available, &locked, &status)
	if err == nil {
		return available, locked, status, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, decimal.Zero, "", err
	}
	_, err = tx.Exec(ctx,
		`insert into user_budgets (user_id, available_balance, locked_balance, currency, status, updated_at)
		 values ($1, 0, 0, 'USD', 'active', $2)
		 on conflict (user_id) do nothing`,
		userID, time.Now().UTC())
	if err != nil {
		return decimal.Zero, decimal.Zero, "", err
	}
	err = tx.QueryRow(ctx,
		"select available_balance, locked_balance, status from user_budgets where user_id = $1 for update",
		userID).Scan(&available, &locked, &status)
	return available, locked, status, err
}

func (s *Service) findLog(ctx context.Context, tx pgx.Tx, key string) (Result, bool, error) {
	var res Result
	err := tx.QueryRow(ctx,
		"select id, balance_before, balance_after from budget_logs where idempotency_key = $1",
		key).Scan(&res.LogID, &res.BalanceBefore, &res.BalanceAfter)
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}
	res.Idempotent = true
	return res, true, nil
}
