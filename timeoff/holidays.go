package timeoff

import (
	"context"
	"sync"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// HolidayProvider yields the current holiday set.
type HolidayProvider interface {
	Holidays(ctx context.Context) (generic.HolidaySet, error)
}

// StoreHolidays reads the holidays document on every call.
type StoreHolidays struct {
	Store generic.DocumentStore
}

func (s StoreHolidays) Holidays(ctx context.Context) (generic.HolidaySet, error) {
	raw, err := s.Store.Load(ctx, generic.DocHolidays)
	if err != nil {
		return nil, generic.Persistence("read holidays", err)
	}
	if len(raw) == 0 {
		return generic.HolidaySet{}, nil
	}
	set, err := generic.LoadHolidaySet(raw)
	if err != nil {
		return nil, generic.Persistence("decode holidays", err)
	}
	return set, nil
}

// HolidayCache serves a copy of another provider's set, refreshed on demand.
// Until the first successful refresh it reads through to the source.
type HolidayCache struct {
	source HolidayProvider

	mu          sync.RWMutex
	set         generic.HolidaySet
	refreshedAt time.Time
}

func NewHolidayCache(source HolidayProvider) *HolidayCache {
	return &HolidayCache{source: source}
}

func (c *HolidayCache) Holidays(ctx context.Context) (generic.HolidaySet, error) {
	c.mu.RLock()
	set := c.set
	c.mu.RUnlock()
	if set != nil {
		return set, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set, nil
}

// Refresh reloads from the source. On error the previous set is kept.
func (c *HolidayCache) Refresh(ctx context.Context) error {
	set, err := c.source.Holidays(ctx)
	if err != nil {
		return err
	}
	if set == nil {
		set = generic.HolidaySet{}
	}
	c.mu.Lock()
	c.set = set
	c.refreshedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// Invalidate drops the cached set so the next read goes to the source.
func (c *HolidayCache) Invalidate() {
	c.mu.Lock()
	c.set = nil
	c.mu.Unlock()
}

func (c *HolidayCache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}
