package orders

import (
	"errors"

	"github.com/shopspring/decimal"

	"bullpen/internal/model"
	"bullpen/internal/types"
)

var (
	ErrRoomNotTradable = errors.New(types.CodeRoomNotTradable)
	ErrNotActiveMember = errors.New(types.CodeNotActiveMember)
)

// decision is the outcome of evaluating one order against the locked
// cash and position state. When Rejected is set nothing else applies:
// cash and position stay untouched.
type decision struct {
	Rejected        bool
	RejectionReason string
	NewCash         decimal.Decimal
	Position        model.Position
	HasPosition     bool
	DeletePosition  bool
}

// weightedAvgCost folds a new lot into an existing average:
// (old_qty*old_avg + qty*price) / (old_qty + qty).
func weightedAvgCost(oldQty, oldAvg, qty, price decimal.Decimal) decimal.Decimal {
	total := oldQty.Add(qty)
	if total.IsZero() {
		return decimal.Zero
	}
	return oldQty.Mul(oldAvg).Add(qty.Mul(price)).Div(total)
}

// decide applies the fill rules for a single order. pos is nil when
// the user holds no position in the symbol.
func decide(side types.OrderSide, qty, price, cash decimal.Decimal, pos *model.Position) decision {
	if side == types.OrderSideBuy {
		cost := qty.Mul(price)
		if cost.GreaterThan(cash) {
			return decision{Rejected: true, RejectionReason: types.RejectInsufficientCash, NewCash: cash}
		}
		d := decision{NewCash: cash.Sub(cost), HasPosition: true}
		if pos == nil {
			d.Position = model.Position{Qty: qty, AvgCost: price}
		} else {
			d.Position = model.Position{
				BullPenID: pos.BullPenID,
				UserID:    pos.UserID,
				Symbol:    pos.Symbol,
				Qty:       pos.Qty.Add(qty),
				AvgCost:   weightedAvgCost(pos.Qty, pos.AvgCost, qty, price),
			}
		}
		return d
	}

	// sell
	if pos == nil || pos.Qty.LessThan(qty) {
		return decision{Rejected: true, RejectionReason: types.RejectInsufficientShares, NewCash: cash}
	}
	d := decision{NewCash: cash.Add(qty.Mul(price))}
	remaining := pos.Qty.Sub(qty)
	if remaining.LessThanOrEqual(decimal.Zero) {
		d.DeletePosition = true
		return d
	}
	d.HasPosition = true
	d.Position = model.Position{
		BullPenID: pos.BullPenID,
		UserID:    pos.UserID,
		Symbol:    pos.Symbol,
		Qty:       remaining,
		AvgCost:   pos.AvgCost,
	}
	return d
}

// validate covers everything rejectable before a transaction opens.
func validate(side types.OrderSide, orderType types.OrderType, qty decimal.Decimal, limitPrice *decimal.Decimal, allowFractional bool) error {
	if side != types.OrderSideBuy && side != types.OrderSideSell {
		return errors.New("invalid side")
	}
	if orderType != types.OrderTypeMarket && orderType != types.OrderTypeLimit {
		return errors.New("invalid type")
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return errors.New("qty must be positive")
	}
	if !allowFractional && !qty.Equal(qty.Truncate(0)) {
		return errors.New("fractional shares not allowed in this room")
	}
	if orderType == types.OrderTypeLimit {
		if limitPrice == nil || limitPrice.LessThanOrEqual(decimal.Zero) {
			return errors.New("limit orders require a positive limit_price")
		}
	}
	return nil
}
