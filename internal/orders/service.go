package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bullpen/internal/bullpen"
	"bullpen/internal/marketdata"
	"bullpen/internal/metrics"
	"bullpen/internal/model"
	"bullpen/internal/types"
)

// Service is the order execution engine. The whole evaluation of one
// order — cash read, position read, accept/reject decision, mutation,
// order row — runs in a single transaction with row locks on the
// membership and position, so two concurrent orders from the same user
// in the same room serialize.
type Service struct {
	pool     *pgxpool.Pool
	store    *Store
	pens     *bullpen.Store
	resolver *marketdata.Resolver
	log      *zap.Logger
}

func NewService(pool *pgxpool.Pool, store *Store, pens *bullpen.Store, resolver *marketdata.Resolver, log *zap.Logger) *Service {
	return &Service{pool: pool, store: store, pens: pens, resolver: resolver, log: log}
}

type PlaceOrderRequest struct {
	BullPenID  string
	UserID     string
	Symbol     string
	Side       types.OrderSide
	Type       types.OrderType
	Qty        decimal.Decimal
	LimitPrice *decimal.Decimal
}

type PlaceOrderResult struct {
	OrderID         string            `json:"orderId"`
	Status          types.OrderStatus `json:"status"`
	FillPrice       *decimal.Decimal  `json:"fillPrice,omitempty"`
	NewCash         decimal.Decimal   `json:"newCash"`
	NewPosition     *model.Position   `json:"newPosition"`
	RejectionReason *string           `json:"rejectionReason,omitempty"`
}

func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	started := time.Now()
	defer func() { metrics.OrderLatency.Observe(time.Since(started).Seconds()) }()

	pen, err := s.pens.GetPen(ctx, req.BullPenID)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if !bullpen.Tradable(pen.State) {
		return PlaceOrderResult{}, ErrRoomNotTradable
	}
	if err := validate(req.Side, req.Type, req.Qty, req.LimitPrice, pen.AllowFractional); err != nil {
		return PlaceOrderResult{}, err
	}
	member, err := s.pens.GetMembership(ctx, req.BullPenID, req.UserID)
	if err != nil {
		if errors.Is(err, bullpen.ErrMemberNotFound) {
			return PlaceOrderResult{}, ErrNotActiveMember
		}
		return PlaceOrderResult{}, err
	}
	if member.Status != types.MembershipStatusActive {
		return PlaceOrderResult{}, ErrNotActiveMember
	}

	// Effective price: the limit price for limit orders, the resolved
	// quote otherwise. A quote outage becomes a persisted rejection,
	// never a guessed price.
	var price decimal.Decimal
	if req.Type == types.OrderTypeLimit {
		price = *req.LimitPrice
	} else {
		quote, err := s.resolver.Resolve(ctx, req.Symbol)
		if err != nil {
			if errors.Is(err, marketdata.ErrPriceUnavailable) {
				return s.persistRejection(ctx, req, member.Cash, types.RejectPriceUnavailable)
			}
			return PlaceOrderResult{}, err
		}
		price = quote.Price
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PlaceOrderResult{}, err
	}
	defer tx.Rollback(ctx)

	locked, err := s.pens.GetMembershipForUpdate(ctx, tx, req.BullPenID, req.UserID)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if locked.Status != types.MembershipStatusActive {
		return PlaceOrderResult{}, ErrNotActiveMember
	}
	var posPtr *model.Position
	pos, hasPos, err := s.pens.GetPositionForUpdate(ctx, tx, req.BullPenID, req.UserID, req.Symbol)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if hasPos {
		posPtr = &pos
	}

	d := decide(req.Side, req.Qty, price, locked.Cash, posPtr)
	now := time.Now().UTC()
	order := model.Order{
		BullPenID:  req.BullPenID,
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Qty:        req.Qty,
		LimitPrice: req.LimitPrice,
		FilledQty:  decimal.Zero,
		PlacedAt:   now,
	}

	if d.Rejected {
		order.Status = types.OrderStatusRejected
		order.RejectionReason = &d.RejectionReason
		orderID, err := s.store.InsertOrder(ctx, tx, order)
		if err != nil {
			return PlaceOrderResult{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return PlaceOrderResult{}, err
		}
		metrics.OrdersPlaced.WithLabelValues("rejected", string(req.Side)).Inc()
		metrics.OrderRejections.WithLabelValues(d.RejectionReason).Inc()
		return PlaceOrderResult{
			OrderID:         orderID,
			Status:          types.OrderStatusRejected,
			NewCash:         locked.Cash,
			NewPosition:     posPtr,
			RejectionReason: &d.RejectionReason,
		}, nil
	}

	if err := s.pens.UpdateMembershipCash(ctx, tx, req.BullPenID, req.UserID, d.NewCash); err != nil {
		return PlaceOrderResult{}, err
	}
	var newPos *model.Position
	if d.DeletePosition {
		if err := s.pens.DeletePosition(ctx, tx, req.BullPenID, req.UserID, req.Symbol); err != nil {
			return PlaceOrderResult{}, err
		}
	} else if d.HasPosition {
		p := d.Position
		p.BullPenID = req.BullPenID
		p.UserID = req.UserID
		p.Symbol = req.Symbol
		if err := s.pens.UpsertPosition(ctx, tx, p); err != nil {
			return PlaceOrderResult{}, err
		}
		newPos = &p
	}

	order.Status = types.OrderStatusFilled
	order.FilledQty = req.Qty
	order.AvgFillPrice = &price
	order.FilledAt = &now
	orderID, err := s.store.InsertOrder(ctx, tx, order)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PlaceOrderResult{}, err
	}
	metrics.OrdersPlaced.WithLabelValues("filled", string(req.Side)).Inc()
	s.log.Info("order filled",
		zap.String("order_id", orderID),
		zap.String("pen_id", req.BullPenID),
		zap.String("user_id", req.UserID),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("qty", req.Qty.String()),
		zap.String("price", price.String()),
	)
	return PlaceOrderResult{
		OrderID:     orderID,
		Status:      types.OrderStatusFilled,
		FillPrice:   &price,
		NewCash:     d.NewCash,
		NewPosition: newPos,
	}, nil
}

// persistRejection records a rejected order outside the money path:
// there is nothing to lock because nothing moves.
func (s *Service) persistRejection(ctx context.Context, req PlaceOrderRequest, cash decimal.Decimal, reason string) (PlaceOrderResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PlaceOrderResult{}, err
	}
	defer tx.Rollback(ctx)

	order := model.Order{
		BullPenID:       req.BullPenID,
		UserID:          req.UserID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Type:            req.Type,
		Qty:             req.Qty,
		LimitPrice:      req.LimitPrice,
		Status:          types.OrderStatusRejected,
		RejectionReason: &reason,
		FilledQty:       decimal.Zero,
		PlacedAt:        time.Now().UTC(),
	}
	orderID, err := s.store.InsertOrder(ctx, tx, order)
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PlaceOrderResult{}, err
	}
	metrics.OrdersPlaced.WithLabelValues("rejected", string(req.Side)).Inc()
	metrics.OrderRejections.WithLabelValues(reason).Inc()
	return PlaceOrderResult{
		OrderID:         orderID,
		Status:          types.OrderStatusRejected,
		NewCash:         cash,
		RejectionReason: &reason,
	}, nil
}
