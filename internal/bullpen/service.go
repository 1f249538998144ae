package bullpen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bullpen/internal/budget"
	"bullpen/internal/model"
	"bullpen/internal/types"
)

// Service drives the room lifecycle. Money side effects bound to
// transitions (buy-in on join, refund on leave/reject/kick) run in the
// same transaction as the membership change.
type Service struct {
	pool   *pgxpool.Pool
	store  *Store
	budget *budget.Service
	log    *zap.Logger
}

func NewService(pool *pgxpool.Pool, store *Store, budgetSvc *budget.Service, log *zap.Logger) *Service {
	return &Service{pool: pool, store: store, budget: budgetSvc, log: log}
}

// Create persists a draft room and seats the host. The host does not
// buy in: their membership cash is game money only.
func (s *Service) Create(ctx context.Context, pen model.BullPen) (model.BullPen, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.BullPen{}, err
	}
	defer tx.Rollback(ctx)

	id, err := s.store.CreatePen(ctx, tx, pen)
	if err != nil {
		return model.BullPen{}, err
	}
	pen.ID = id
	now := time.Now().UTC()
	host := model.Membership{
		BullPenID: id,
		UserID:    pen.HostUserID,
		Role:      types.MembershipRoleHost,
		Status:    types.MembershipStatusActive,
		Cash:      pen.StartingCash,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if err := s.store.InsertMembership(ctx, tx, host); err != nil {
		return model.BullPen{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.BullPen{}, err
	}
	s.log.Info("bull pen created", zap.String("pen_id", id), zap.String("host", pen.HostUserID))
	return pen, nil
}

type UpdateParams struct {
	Name             *string
	StartingCash     *decimal.Decimal
	DurationSec      *int64
	MaxPlayers       *int
	AllowFractional  *bool
	ApprovalRequired *bool
}

// Update edits economic parameters; only draft and scheduled rooms
// accept edits.
func (s *Service) Update(ctx context.Context, penID, callerID string, params UpdateParams) (model.BullPen, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.BullPen{}, err
	}
	defer tx.Rollback(ctx)

	pen, err := s.store.GetPenForUpdate(ctx, tx, penID)
	if err != nil {
		return model.BullPen{}, err
	}
	if pen.HostUserID != callerID {
		return model.BullPen{}, ErrNotHost
	}
	if !Editable(pen.State) {
		return model.BullPen{}, ErrNotEditable
	}
	if params.Name != nil {
		pen.Name = *params.Name
	}
	if params.StartingCash != nil {
		if params.StartingCash.LessThanOrEqual(decimal.Zero) {
			return model.BullPen{}, errInvalid("starting cash must be positive")
		}
		pen.StartingCash = *params.StartingCash
	}
	if params.DurationSec != nil {
		if *params.DurationSec <= 0 {
			return model.BullPen{}, errInvalid("duration must be positive")
		}
		pen.DurationSec = *params.DurationSec
	}
	if params.MaxPlayers != nil {
		if *params.MaxPlayers < 2 {
			return model.BullPen{}, errInvalid("max players must be at least 2")
		}
		pen.MaxPlayers = *params.MaxPlayers
	}
	if params.AllowFractional != nil {
		pen.AllowFractional = *params.AllowFractional
	}
	if params.ApprovalRequired != nil {
		pen.ApprovalRequired = *params.ApprovalRequired
	}
	if err := s.store.UpdatePenParams(ctx, tx, pen); err != nil {
		return model.BullPen{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.BullPen{}, err
	}
	return pen, nil
}

// Transition advances the room exactly one lifecycle step.
func (s *Service) Transition(ctx context.Context, penID string, to types.RoomState) (model.BullPen, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.BullPen{}, err
	}
	defer tx.Rollback(ctx)

	pen, err := s.store.GetPenForUpdate(ctx, tx, penID)
	if err != nil {
		return model.BullPen{}, err
	}
	if !IsValidTransition(pen.State, to) {
		return model.BullPen{}, ErrInvalidStateTransition
	}
	var startTime *time.Time
	if to == types.RoomStateActive && pen.StartTime == nil {
		now := time.Now().UTC()
		startTime = &now
	}
	if err := s.store.UpdatePenState(ctx, tx, penID, to, startTime); err != nil {
		return model.BullPen{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.BullPen{}, err
	}
	pen.State = to
	if startTime != nil {
		pen.StartTime = startTime
	}
	s.log.Info("bull pen transitioned",
		zap.String("pen_id", penID), zap.String("state", string(to)))
	return pen, nil
}

// Join debits the player's real budget by starting_cash and creates
// the membership in the same transaction. idempotencyKey is caller
// supplied so a retried join cannot double-charge.
func (s *Service) Join(ctx context.Context, penID, userID, idempotencyKey string) (model.Membership, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Membership{}, err
	}
	defer tx.Rollback(ctx)

	pen, err := s.store.GetPenForUpdate(ctx, tx, penID)
	if err != nil {
		return model.Membership{}, err
	}
	if !Joinable(pen.State) {
		return model.Membership{}, ErrRoomNotJoinable
	}
	if _, err := s.store.GetMembership(ctx, penID, userID); err == nil {
		return model.Membership{}, ErrAlreadyMember
	} else if err != ErrMemberNotFound {
		return model.Membership{}, err
	}
	seats, err := s.store.CountLiveMembers(ctx, tx, penID)
	if err != nil {
		return model.Membership{}, err
	}
	if seats >= pen.MaxPlayers {
		return model.Membership{}, ErrRoomFull
	}
	if _, err := s.budget.Debit(ctx, tx, budget.Mutation{
		UserID:         userID,
		Amount:         pen.StartingCash,
		OperationType:  types.OpRoomBuyIn,
		IdempotencyKey: idempotencyKey,
		BullPenID:      &penID,
		SeasonID:       pen.SeasonID,
	}); err != nil {
		return model.Membership{}, err
	}
	status := types.MembershipStatusActive
	if pen.ApprovalRequired {
		status = types.MembershipStatusPending
	}
	now := time.Now().UTC()
	member := model.Membership{
		BullPenID: penID,
		UserID:    userID,
		Role:      types.MembershipRolePlayer,
		Status:    status,
		Cash:      pen.StartingCash,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if err := s.store.InsertMembership(ctx, tx, member); err != nil {
		return model.Membership{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Membership{}, err
	}
	s.log.Info("player joined",
		zap.String("pen_id", penID), zap.String("user_id", userID), zap.String("status", string(status)))
	return member, nil
}

// Approve activates a pending membership. Host only.
func (s *Service) Approve(ctx context.Context, penID, hostID, userID string) error {
	return s.resolvePending(ctx, penID, hostID, userID, true, "")
}

// Reject removes a pending membership and refunds the buy-in.
func (s *Service) Reject(ctx context.Context, penID, hostID, userID, idempotencyKey string) error {
	return s.resolvePending(ctx, penID, hostID, userID, false, idempotencyKey)
}

func (s *Service) resolvePending(ctx context.Context, penID, hostID, userID string, approve bool, idempotencyKey string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	pen, err := s.store.GetPenForUpdate(ctx, tx, penID)
	if err != nil {
		return err
	}
	if pen.HostUserID != hostID {
		return ErrNotHost
	}
	member, err := s.store.GetMembershipForUpdate(ctx, tx, penID, userID)
	if err != nil {
		return err
	}
	if member.Status != types.MembershipStatusPending {
		return ErrMemberNotPending
	}
	if approve {
		if err := s.store.UpdateMembershipStatus(ctx, tx, penID, userID, types.MembershipStatusActive); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	if _, err := s.budget.Credit(ctx, tx, budget.Mutation{
		UserID:         userID,
		Amount:         pen.StartingCash,
		OperationType:  types.OpRoomRejectRefund,
		IdempotencyKey: idempotencyKey,
		BullPenID:      &penID,
		SeasonID:       pen.SeasonID,
	}); err != nil {
		return err
	}
	if err := s.store.UpdateMembershipStatus(ctx, tx, penID, userID, types.MembershipStatusKicked); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Kick removes an active player and refunds the buy-in. Host only.
func (s *Service) Kick(ctx context.Context, penID, hostID, userID, idempotencyKey string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	pen, err := s.store.GetPenForUpdate(ctx, tx, penID)
	if err != nil {
		return err
	}
	if pen.HostUserID != hostID {
		return ErrNotHost
	}
	member, err := s.store.GetMembershipForUpdate(ctx, tx, penID, userID)
	if err != nil {
		return err
	}
	if member.Status != types.MembershipStatusActive || member.Role == types.MembershipRoleHost {
		return ErrMemberNotFound
	}
	if _, err := s.budget.Credit(ctx, tx, budget.Mutation{
		UserID:         userID,
		Amount:         pen.StartingCash,
		OperationType:  types.OpRoomKickRefund,
		IdempotencyKey: idempotencyKey,
		BullPenID:      &penID,
		SeasonID:       pen.SeasonID,
	}); err != nil {
		return err
	}
	if err := s.store.UpdateMembershipStatus(ctx, tx, penID, userID, types.MembershipStatusKicked); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Leave credits back the buy-in and marks the membership left. The
// host cannot leave their own room.
func (s *Service) Leave(ctx context.Context, penID, userID, idempotencyKey string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	pen, err := s.store.GetPenForUpdate(ctx, tx, penID)
	if err != nil {
		return err
	}
	member, err := s.store.GetMembershipForUpdate(ctx, tx, penID, userID)
	if err != nil {
		return err
	}
	if member.Role == types.MembershipRoleHost {
		return ErrHostCannotLeave
	}
	if member.Status != types.MembershipStatusActive && member.Status != types.MembershipStatusPending {
		return ErrMemberNotFound
	}
	if _, err := s.budget.Credit(ctx, tx, budget.Mutation{
		UserID:         userID,
		Amount:         pen.StartingCash,
		OperationType:  types.OpRoomLeaveRefund,
		IdempotencyKey: idempotencyKey,
		BullPenID:      &penID,
		SeasonID:       pen.SeasonID,
	}); err != nil {
		return err
	}
	if err := s.store.UpdateMembershipStatus(ctx, tx, penID, userID, types.MembershipStatusLeft); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.log.Info("player left", zap.String("pen_id", penID), zap.String("user_id", userID))
	return nil
}

type invalidParamError string

func (e invalidParamError) Error() string { return string(e) }

func errInvalid(msg string) error { return invalidParamError(msg) }
