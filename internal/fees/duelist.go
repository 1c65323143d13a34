package fees

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Younus004/wisdom/internal/cache"
)

const (
	dueListKey    = "fees:due"
	DefaultDueTTL = 5 * time.Minute
)

// DueListCache holds the computed due list between payments and registrations.
// A list computed across an invalidation is never kept, so a snapshot taken
// before a payment cannot outlive it.
type DueListCache struct {
	cache cache.Cache
	ttl   time.Duration
	gen   atomic.Uint64
}

func NewDueListCache(c cache.Cache, ttl time.Duration) *DueListCache {
	if c == nil {
		c = cache.Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultDueTTL
	}
	return &DueListCache{cache: c, ttl: ttl}
}

// generation is read before computing a list that will be passed to set.
func (d *DueListCache) generation() uint64 {
	return d.gen.Load()
}

func (d *DueListCache) get(ctx context.Context) ([]DueEntry, bool, error) {
	var entries []DueEntry
	ok, err := d.cache.GetJSON(ctx, dueListKey, &entries)
	return entries, ok, err
}

// set stores entries computed at generation gen, unless an invalidation has
// happened since. An invalidation racing the write removes it again.
func (d *DueListCache) set(ctx context.Context, gen uint64, entries []DueEntry) error {
	if d.gen.Load() != gen {
		return nil
	}
	if err := d.cache.SetJSON(ctx, dueListKey, entries, d.ttl); err != nil {
		return err
	}
	if d.gen.Load() != gen {
		return d.cache.Delete(ctx, dueListKey)
	}
	return nil
}

func (d *DueListCache) Invalidate(ctx context.Context) error {
	d.gen.Add(1)
	return d.cache.Delete(ctx, dueListKey)
}
