/*
scheduler.go - Periodic holiday refresh

PURPOSE:
  The holiday list belongs to an external collaborator and changes rarely.
  The ledger reads it through a timeoff.HolidayCache; this scheduler keeps
  that cache fresh in the background.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Refreshes once immediately on start
  - A failed refresh keeps the previous set and is logged at warn level

CONFIGURATION:
  - Interval: How often to refresh (default: 1 hour, LEAVE_HOLIDAY_REFRESH)
  - Enabled: Whether the refresher is active (default: true)

USAGE:
  refresher := NewHolidayRefresher(cache, logger)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - timeoff/holidays.go: HolidayCache
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-ledger/timeoff"
)

// HolidayRefresher reloads the holiday cache on an interval.
type HolidayRefresher struct {
	Cache    *timeoff.HolidayCache
	Logger   *zap.Logger
	Interval time.Duration
	Enabled  bool

	// Timeout bounds a single refresh.
	Timeout time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewHolidayRefresher creates a refresher with a one-hour interval.
func NewHolidayRefresher(cache *timeoff.HolidayCache, logger *zap.Logger) *HolidayRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HolidayRefresher{
		Cache:    cache,
		Logger:   logger,
		Interval: time.Hour,
		Enabled:  true,
		Timeout:  10 * time.Second,
	}
}

// Start begins the refresher.
func (hr *HolidayRefresher) Start() {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	if !hr.Enabled || hr.Interval <= 0 {
		hr.Logger.Info("holiday refresher disabled")
		return
	}
	if hr.ticker != nil {
		return
	}

	hr.ticker = time.NewTicker(hr.Interval)
	hr.stop = make(chan struct{})
	hr.wg.Add(1)

	go hr.run()

	hr.Logger.Info("holiday refresher started", zap.Duration("interval", hr.Interval))
}

// Stop stops the refresher and waits for an in-flight refresh.
func (hr *HolidayRefresher) Stop() {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	if hr.ticker != nil {
		hr.ticker.Stop()
		close(hr.stop)
		hr.wg.Wait()
		hr.ticker = nil
		hr.Logger.Info("holiday refresher stopped")
	}
}

func (hr *HolidayRefresher) run() {
	defer hr.wg.Done()

	hr.RunNow()

	for {
		select {
		case <-hr.ticker.C:
			hr.RunNow()
		case <-hr.stop:
			return
		}
	}
}

// RunNow refreshes synchronously. It returns the refresh error, which is
// also logged.
func (hr *HolidayRefresher) RunNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), hr.Timeout)
	defer cancel()

	if err := hr.Cache.Refresh(ctx); err != nil {
		hr.Logger.Warn("holiday refresh failed, keeping previous set", zap.Error(err))
		return err
	}
	hr.Logger.Debug("holidays refreshed", zap.Time("at", hr.Cache.RefreshedAt()))
	return nil
}
