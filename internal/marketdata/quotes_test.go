package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	price decimal.Decimal
	err   error
	calls int
}

func (f *fakeSource) GetPrice(ctx context.Context, symbol string) (Quote, error) {
	f.calls++
	if f.err != nil {
		return Quote{}, f.err
	}
	return Quote{Symbol: symbol, Price: f.price}, nil
}

func TestResolveServesFreshCache(t *testing.T) {
	src := &fakeSource{price: decimal.NewFromInt(100)}
	r := NewResolver(src, nil, 5*time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	q, err := r.Resolve(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, src.calls)

	// inside the freshness window: no second fetch
	r.now = func() time.Time { return base.Add(4 * time.Second) }
	_, err = r.Resolve(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	// window elapsed: refetch
	r.now = func() time.Time { return base.Add(6 * time.Second) }
	_, err = r.Resolve(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestResolveSourceFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("feed down")}
	r := NewResolver(src, nil, time.Second)

	_, err := r.Resolve(context.Background(), "TSLA")
	require.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestResolveRejectsNonPositivePrice(t *testing.T) {
	src := &fakeSource{price: decimal.Zero}
	r := NewResolver(src, nil, time.Second)

	_, err := r.Resolve(context.Background(), "TSLA")
	require.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestResolveAllDedupesSymbols(t *testing.T) {
	src := &fakeSource{price: decimal.NewFromInt(42)}
	r := NewResolver(src, nil, time.Minute)

	prices, err := r.ResolveAll(context.Background(), []string{"AAPL", "TSLA", "AAPL"})
	require.NoError(t, err)
	assert.Len(t, prices, 2)
	assert.Equal(t, 2, src.calls)
}
