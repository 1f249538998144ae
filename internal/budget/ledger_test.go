package budget

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bullpen/internal/types"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestApplyBalancesCreditDebit(t *testing.T) {
	avail, locked, dir, err := applyBalances(opCredit, d("100"), d("0"), d("25"))
	require.NoError(t, err)
	assert.True(t, avail.Equal(d("125")))
	assert.True(t, locked.Equal(d("0")))
	assert.Equal(t, types.LedgerDirectionCredit, dir)

	avail, locked, dir, err = applyBalances(opDebit, d("125"), d("0"), d("125"))
	require.NoError(t, err)
	assert.True(t, avail.Equal(d("0")))
	assert.True(t, locked.Equal(d("0")))
	assert.Equal(t, types.LedgerDirectionDebit, dir)
}

func TestApplyBalancesDebitOverdraw(t *testing.T) {
	avail, locked, _, err := applyBalances(opDebit, d("100"), d("0"), d("100.01"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	// balances untouched on failure
	assert.True(t, avail.Equal(d("100")))
	assert.True(t, locked.Equal(d("0")))
}

func TestApplyBalancesLockUnlock(t *testing.T) {
	avail, locked, _, err := applyBalances(opLock, d("100"), d("10"), d("40"))
	require.NoError(t, err)
	assert.True(t, avail.Equal(d("60")))
	assert.True(t, locked.Equal(d("50")))

	// total funds conserved by lock/unlock
	assert.True(t, avail.Add(locked).Equal(d("110")))

	avail, locked, _, err = applyBalances(opUnlock, avail, locked, d("50"))
	require.NoError(t, err)
	assert.True(t, avail.Equal(d("110")))
	assert.True(t, locked.Equal(d("0")))
}

func TestApplyBalancesLockBeyondAvailable(t *testing.T) {
	_, _, _, err := applyBalances(opLock, d("30"), d("0"), d("31"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestApplyBalancesUnlockBeyondLocked(t *testing.T) {
	_, _, _, err := applyBalances(opUnlock, d("30"), d("5"), d("6"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestApplyBalancesRejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []string{"0", "-1"} {
		_, _, _, err := applyBalances(opCredit, d("10"), d("0"), d(amount))
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %s", amount)
	}
}
