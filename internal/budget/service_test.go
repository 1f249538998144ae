package budget

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bullpen/internal/types"
)

// fakeDB backs a scripted pgx.Tx so the service's replay and race
// handling can run without Postgres. It honors the handful of
// statements the service issues and nothing more.
type fakeDB struct {
	accounts map[string]*fakeAccount
	logs     map[string]fakeLog
	nextID   int

	// onReplayMiss fires once, right after a replay check for a key
	// comes up empty: it simulates a concurrent request with the same
	// key committing while this one waits on the account row lock.
	onReplayMiss func(db *fakeDB)
}

type fakeAccount struct {
	available decimal.Decimal
	locked    decimal.Decimal
	status    string
}

type fakeLog struct {
	id            string
	balanceBefore decimal.Decimal
	balanceAfter  decimal.Decimal
}

func newFakeDB() *fakeDB {
	return &fakeDB{accounts: map[string]*fakeAccount{}, logs: map[string]fakeLog{}}
}

func (db *fakeDB) snapshot() *fakeDB {
	s := newFakeDB()
	s.nextID = db.nextID
	for k, v := range db.accounts {
		a := *v
		s.accounts[k] = &a
	}
	for k, v := range db.logs {
		s.logs[k] = v
	}
	return s
}

func (db *fakeDB) restore(s *fakeDB) {
	db.accounts = s.accounts
	db.logs = s.logs
	db.nextID = s.nextID
}

type fakeRow struct {
	err  error
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return r.scan(dest...)
}

// fakeTx implements pgx.Tx. Begin opens a savepoint: Rollback restores
// the state captured at Begin, Commit keeps it.
type fakeTx struct {
	db   *fakeDB
	save *fakeDB
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return &fakeTx{db: t.db, save: t.db.snapshot()}, nil
}

func (t *fakeTx) Commit(context.Context) error { return nil }

func (t *fakeTx) Rollback(context.Context) error {
	if t.save != nil {
		t.db.restore(t.save)
	}
	return nil
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db := t.db
	switch {
	case strings.Contains(sql, "from budget_logs where idempotency_key"):
		key := args[0].(string)
		row, ok := db.logs[key]
		if !ok {
			if f := db.onReplayMiss; f != nil {
				db.onReplayMiss = nil
				f(db)
			}
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*string) = row.id
			*dest[1].(*decimal.Decimal) = row.balanceBefore
			*dest[2].(*decimal.Decimal) = row.balanceAfter
			return nil
		}}
	case strings.Contains(sql, "from user_budgets"):
		a, ok := db.accounts[args[0].(string)]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*decimal.Decimal) = a.available
			*dest[1].(*decimal.Decimal) = a.locked
			*dest[2].(*types.AccountStatus) = types.AccountStatus(a.status)
			return nil
		}}
	case strings.Contains(sql, "insert into budget_logs"):
		key := args[7].(string)
		if _, exists := db.logs[key]; exists {
			return fakeRow{err: &pgconn.PgError{Code: "23505"}}
		}
		db.nextID++
		entry := fakeLog{
			id:            fmt.Sprintf("log-%d", db.nextID),
			balanceBefore: args[4].(decimal.Decimal),
			balanceAfter:  args[5].(decimal.Decimal),
		}
		db.logs[key] = entry
		return fakeRow{scan: func(dest ...any) error {
			*dest[0].(*string) = entry.id
			return nil
		}}
	}
	return fakeRow{err: fmt.Errorf("unexpected query: %s", sql)}
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db := t.db
	switch {
	case strings.Contains(sql, "update user_budgets"):
		a := db.accounts[args[3].(string)]
		a.available = args[0].(decimal.Decimal)
		a.locked = args[1].(decimal.Decimal)
		return pgconn.CommandTag{}, nil
	case strings.Contains(sql, "insert into user_budgets"):
		userID := args[0].(string)
		if _, ok := db.accounts[userID]; !ok {
			db.accounts[userID] = &fakeAccount{
				available: decimal.Zero, locked: decimal.Zero, status: "active",
			}
		}
		return pgconn.CommandTag{}, nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected exec: %s", sql)
}

func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, fmt.Errorf("not supported")
}
func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, fmt.Errorf("not supported")
}
func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("not supported")
}
func (t *fakeTx) Conn() *pgx.Conn { return nil }

func newTestService() *Service {
	return NewService(nil, zap.NewNop())
}

func TestCreditReplayReturnsOriginal(t *testing.T) {
	db := newFakeDB()
	tx := &fakeTx{db: db}
	svc := newTestService()
	ctx := context.Background()

	m := Mutation{UserID: "u1", Amount: d("50"), OperationType: types.OpRoomLeaveRefund, IdempotencyKey: "k1"}
	first, err := svc.Credit(ctx, tx, m)
	require.NoError(t, err)
	assert.False(t, first.Idempotent)
	assert.True(t, first.BalanceBefore.Equal(d("0")))
	assert.True(t, first.BalanceAfter.Equal(d("50")))

	second, err := svc.Credit(ctx, tx, m)
	require.NoError(t, err)
	assert.True(t, second.Idempotent)
	assert.Equal(t, first.LogID, second.LogID)
	assert.True(t, second.BalanceAfter.Equal(first.BalanceAfter))

	// applied exactly once
	assert.True(t, db.accounts["u1"].available.Equal(d("50")))
	assert.Len(t, db.logs, 1)
}

func TestDebitReplayReturnsOriginal(t *testing.T) {
	db := newFakeDB()
	tx := &fakeTx{db: db}
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Credit(ctx, tx, Mutation{UserID: "u1", Amount: d("100"), OperationType: types.OpAdminAdjust, IdempotencyKey: "fund"})
	require.NoError(t, err)

	m := Mutation{UserID: "u1", Amount: d("30"), OperationType: types.OpRoomBuyIn, IdempotencyKey: "buy"}
	first, err := svc.Debit(ctx, tx, m)
	require.NoError(t, err)
	assert.True(t, first.BalanceAfter.Equal(d("70")))

	second, err := svc.Debit(ctx, tx, m)
	require.NoError(t, err)
	assert.True(t, second.Idempotent)
	assert.True(t, second.BalanceAfter.Equal(d("70")))
	assert.True(t, db.accounts["u1"].available.Equal(d("70")))
	assert.Len(t, db.logs, 2)
}

func TestTransferReplayReturnsOriginal(t *testing.T) {
	db := newFakeDB()
	tx := &fakeTx{db: db}
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Credit(ctx, tx, Mutation{UserID: "u1", Amount: d("100"), OperationType: types.OpAdminAdjust, IdempotencyKey: "fund"})
	require.NoError(t, err)

	m := Mutation{Amount: d("40"), IdempotencyKey: "t1"}
	first, err := svc.Transfer(ctx, tx, "u1", "u2", m)
	require.NoError(t, err)
	assert.False(t, first.Idempotent)
	assert.True(t, first.BalanceAfter.Equal(d("60")))

	second, err := svc.Transfer(ctx, tx, "u1", "u2", m)
	require.NoError(t, err)
	assert.True(t, second.Idempotent)
	assert.True(t, second.BalanceAfter.Equal(d("60")))

	// one debit row, one credit row, moved exactly once
	assert.True(t, db.accounts["u1"].available.Equal(d("60")))
	assert.True(t, db.accounts["u2"].available.Equal(d("40")))
	assert.Contains(t, db.logs, "t1:out")
	assert.Contains(t, db.logs, "t1:in")
	assert.Len(t, db.logs, 3)
}

func TestTransferToSelfRejected(t *testing.T) {
	svc := newTestService()
	_, err := svc.Transfer(context.Background(), &fakeTx{db: newFakeDB()}, "u1", "u1", Mutation{Amount: d("1"), IdempotencyKey: "t1"})
	assert.ErrorIs(t, err, ErrSameUser)
}

// A request that passes the replay check but loses the unique-index
// race to a concurrent twin must roll back its own balance write and
// return the winner's result, leaving the transaction usable.
func TestLostIdempotencyRaceResolvesToWinner(t *testing.T) {
	db := newFakeDB()
	db.accounts["u1"] = &fakeAccount{available: decimal.Zero, locked: decimal.Zero, status: "active"}
	db.onReplayMiss = func(db *fakeDB) {
		// the twin commits: credit 100 and its log row under our key
		db.logs["k1"] = fakeLog{id: "winner-log", balanceBefore: d("0"), balanceAfter: d("100")}
		db.accounts["u1"].available = d("100")
	}
	tx := &fakeTx{db: db}
	svc := newTestService()

	res, err := svc.Credit(context.Background(), tx, Mutation{
		UserID: "u1", Amount: d("100"), OperationType: types.OpRoomSettlementPayout, IdempotencyKey: "k1",
	})
	require.NoError(t, err)
	assert.True(t, res.Idempotent)
	assert.Equal(t, "winner-log", res.LogID)
	assert.True(t, res.BalanceAfter.Equal(d("100")))

	// the loser's double-apply was undone, not committed on top
	assert.True(t, db.accounts["u1"].available.Equal(d("100")))
	assert.Len(t, db.logs, 1)

	// the transaction is still usable for further statements
	after, err := svc.Credit(context.Background(), tx, Mutation{
		UserID: "u1", Amount: d("10"), OperationType: types.OpRoomLeaveRefund, IdempotencyKey: "k2",
	})
	require.NoError(t, err)
	assert.True(t, after.BalanceAfter.Equal(d("110")))
}
