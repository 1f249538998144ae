package types

type RoomState string

type MembershipRole string

type MembershipStatus string

type OrderSide string

type OrderType string

type OrderStatus string

type LedgerDirection string

type OperationType string

type AccountStatus string

const (
	RoomStateDraft     RoomState = "draft"
	RoomStateScheduled RoomState = "scheduled"
	RoomStateActive    RoomState = "active"
	RoomStateCompleted RoomState = "completed"
	RoomStateArchived  RoomState = "archived"
)

const (
	MembershipRoleHost   MembershipRole = "host"
	MembershipRolePlayer MembershipRole = "player"
)

const (
	MembershipStatusPending MembershipStatus = "pending"
	MembershipStatusActive  MembershipStatus = "active"
	MembershipStatusKicked  MembershipStatus = "kicked"
	MembershipStatusLeft    MembershipStatus = "left"
)

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

const (
	OrderStatusNew      OrderStatus = "new"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
)

const (
	LedgerDirectionCredit LedgerDirection = "credit"
	LedgerDirectionDebit  LedgerDirection = "debit"
)

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
)

// Operation types recorded on budget log rows.
const (
	OpRoomBuyIn            OperationType = "ROOM_BUY_IN"
	OpRoomLeaveRefund      OperationType = "ROOM_LEAVE_REFUND"
	OpRoomKickRefund       OperationType = "ROOM_KICK_REFUND"
	OpRoomRejectRefund     OperationType = "ROOM_REJECT_REFUND"
	OpRoomCancelRefund     OperationType = "ROOM_CANCEL_REFUND"
	OpRoomSettlementPayout OperationType = "ROOM_SETTLEMENT_PAYOUT"
	OpAdminAdjust          OperationType = "ADMIN_ADJUST"
	OpLock                 OperationType = "LOCK"
	OpUnlock               OperationType = "UNLOCK"
	OpTransfer             OperationType = "TRANSFER"
)

// Rejection reasons carried on persisted order rows. These are business
// outcomes, not system faults: the order endpoint reports them with
// HTTP 200 and status "rejected".
const (
	RejectInsufficientCash   = "INSUFFICIENT_CASH"
	RejectInsufficientShares = "INSUFFICIENT_SHARES"
	RejectPriceUnavailable   = "PRICE_UNAVAILABLE"
)

// Stable error codes surfaced by state and validation failures.
const (
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeSameUser               = "SAME_USER"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeRoomNotTradable        = "ROOM_NOT_TRADABLE"
	CodeNotActiveMember        = "NOT_ACTIVE_MEMBER"
	CodeRoomFull               = "ROOM_FULL"
	CodeHostCannotLeave        = "HOST_CANNOT_LEAVE"
)
