package quote

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v8"
	"github.com/go-redis/redis/v8"

	"github.com/efreitasn/finance/internal/domain"
)

const localCacheSize = 1000

// CachedProvider memoises quotes for a fixed TTL. It always keeps an
// in-process TinyLFU cache and shares entries through Redis when a ring
// is supplied. Failed lookups are not cached, and a cache backend error
// falls through to next.
type CachedProvider struct {
	next  Provider
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedProvider wraps next. ring may be nil. ttl must be positive.
func NewCachedProvider(next Provider, ring *redis.Ring, ttl time.Duration) *CachedProvider {
	opts := &cache.Options{
		LocalCache: cache.NewTinyLFU(localCacheSize, ttl),
	}
	if ring != nil {
		opts.Redis = ring
	}
	return &CachedProvider{
		next:  next,
		cache: cache.New(opts),
		ttl:   ttl,
	}
}

func (c *CachedProvider) Lookup(ctx context.Context, symbol string) (*domain.Quote, error) {
	var q domain.Quote
	err := c.cache.Once(&cache.Item{
		Ctx:   ctx,
		Key:   "quote:" + symbol,
		Value: &q,
		TTL:   c.ttl,
		Do: func(*cache.Item) (interface{}, error) {
			return c.next.Lookup(ctx, symbol)
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSymbol) {
			return nil, err
		}
		// Redis unavailable: serve uncached.
		return c.next.Lookup(ctx, symbol)
	}
	return &q, nil
}
