package budget

import (
	"errors"

	"github.com/shopspring/decimal"

	"bullpen/internal/types"
)

var (
	ErrInsufficientFunds = errors.New(types.CodeInsufficientFunds)
	ErrSameUser          = errors.New(types.CodeSameUser)
	ErrAccountNotActive  = errors.New("ACCOUNT_NOT_ACTIVE")
	ErrInvalidAmount     = errors.New("INVALID_AMOUNT")
	ErrMissingKey        = errors.New("MISSING_IDEMPOTENCY_KEY")
)

type opKind int

const (
	opCredit opKind = iota
	opDebit
	opLock
	opUnlock
)

// applyBalances recomputes the materialized balances for one mutation.
// It never produces a negative balance: the caller only writes the
// result when err is nil.
func applyBalances(kind opKind, available, locked, amount decimal.Decimal) (newAvailable, newLocked decimal.Decimal, direction types.LedgerDirection, err error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return available, locked, "", ErrInvalidAmount
	}
	switch kind {
	case opCredit:
		return available.Add(amount), locked, types.LedgerDirectionCredit, nil
	case opDebit:
		if amount.GreaterThan(available) {
			return available, locked, "", ErrInsufficientFunds
		}
		return available.Sub(amount), locked, types.LedgerDirectionDebit, nil
	case opLock:
		if amount.GreaterThan(available) {
			return available, locked, "", ErrInsufficientFunds
		}
		return available.Sub(amount), locked.Add(amount), types.LedgerDirectionDebit, nil
	case opUnlock:
		if amount.GreaterThan(locked) {
			return available, locked, "", ErrInsufficientFunds
		}
		return available.Add(amount), locked.Sub(amount), types.LedgerDirectionCredit, nil
	}
	return available, locked, "", errors.New("unknown operation")
}
