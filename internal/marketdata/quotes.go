package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"bullpen/internal/metrics"
)

var ErrPriceUnavailable = errors.New("price unavailable")

// Quote is one price observation from the market-data collaborator.
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	AsOf   time.Time       `json:"as_of"`
}

// PriceSource is the external quote provider. Fetch failures must
// surface: the order engine rejects rather than guess a price.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (Quote, error)
}

// Resolver serves quotes through a freshness window: a cached quote
// younger than ttl is returned as-is, anything older triggers a fetch.
// The local map is the hot path; redis (optional) shares the cache
// across instances.
type Resolver struct {
	src PriceSource
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	local map[string]Quote
}

func NewResolver(src PriceSource, rdb *redis.Client, ttl time.Duration) *Resolver {
	return &Resolver{
		src:   src,
		rdb:   rdb,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
		local: map[string]Quote{},
	}
}

func (r *Resolver) fresh(q Quote) bool {
	return r.now().Sub(q.AsOf) < r.ttl
}

// Resolve returns a fresh quote for symbol, fetching from the source
// when the cache is stale or empty.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (Quote, error) {
	r.mu.RLock()
	q, ok := r.local[symbol]
	r.mu.RUnlock()
	if ok && r.fresh(q) {
		metrics.QuoteCache.WithLabelValues("hit").Inc()
		return q, nil
	}

	if r.rdb != nil {
		if data, err := r.rdb.Get(ctx, quoteKey(symbol)).Bytes(); err == nil {
			var cached Quote
			if json.Unmarshal(data, &cached) == nil && r.fresh(cached) {
				r.mu.Lock()
				r.local[symbol] = cached
				r.mu.Unlock()
				metrics.QuoteCache.WithLabelValues("hit").Inc()
				return cached, nil
			}
		}
	}

	metrics.QuoteCache.WithLabelValues("miss").Inc()
	fetched, err := r.src.GetPrice(ctx, symbol)
	if err != nil {
		return Quote{}, errors.Join(ErrPriceUnavailable, err)
	}
	if fetched.Price.LessThanOrEqual(decimal.Zero) {
		return Quote{}, ErrPriceUnavailable
	}
	fetched.Symbol = symbol
	if fetched.AsOf.IsZero() {
		fetched.AsOf = r.now()
	}

	r.mu.Lock()
	r.local[symbol] = fetched
	r.mu.Unlock()
	if r.rdb != nil {
		if data, err := json.Marshal(fetched); err == nil {
			r.rdb.Set(ctx, quoteKey(symbol), data, r.ttl)
		}
	}
	return fetched, nil
}

// ResolveAll resolves every symbol or fails; settlement needs a full
// price set before it can score anyone.
func (r *Resolver) ResolveAll(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(symbols))
	for _, sym := range symbols {
		if _, ok := prices[sym]; ok {
			continue
		}
		q, err := r.Resolve(ctx, sym)
		if err != nil {
			return nil, err
		}
		prices[sym] = q.Price
	}
	return prices, nil
}

func quoteKey(symbol string) string {
	return "quote:" + symbol
}
