// Package scheduler ties the cycles together: a periodic trigger runs the
// alert scan and the price-watch sweep back to back under a cross-process
// lock, so overlapping fires never double-run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/market-alerts/internal/lock"
	"github.com/aliskhannn/market-alerts/internal/pricewatch"
	"github.com/aliskhannn/market-alerts/internal/scan"
)

type locker interface {
	Acquire(ctx context.Context, timeout time.Duration) (func(), error)
}

type scanRunner interface {
	Run(ctx context.Context) (scan.Stats, error)
}

type watchRunner interface {
	Run(ctx context.Context) (pricewatch.Stats, error)
}

// Result aggregates one full invocation.
type Result struct {
	Scan       scan.Stats       `json:"scan"`
	PriceWatch pricewatch.Stats `json:"price_watch"`
	StartedAt  time.Time        `json:"started_at"`
	Duration   string           `json:"duration"`
}

// Scheduler runs both cycles on a fixed interval and exposes RunOnce for
// manual triggering.
type Scheduler struct {
	lock        locker
	scan        scanRunner
	watch       watchRunner
	interval    time.Duration
	lockTimeout time.Duration
}

// New creates a scheduler.
func New(l locker, s scanRunner, w watchRunner, interval, lockTimeout time.Duration) *Scheduler {
	return &Scheduler{
		lock:        l,
		scan:        s,
		watch:       w,
		interval:    interval,
		lockTimeout: lockTimeout,
	}
}

// RunOnce executes one full invocation under the lock. A lock timeout is
// returned as lock.ErrLockTimeout so callers can tell starvation from a
// cycle failure.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	release, err := s.lock.Acquire(ctx, s.lockTimeout)
	if err != nil {
		return Result{}, fmt.Errorf("acquire scan lock: %w", err)
	}
	defer release()

	start := time.Now()
	result := Result{StartedAt: start}

	scanStats, err := s.scan.Run(ctx)
	if err != nil {
		return result, fmt.Errorf("scan cycle: %w", err)
	}
	result.Scan = scanStats

	watchStats, err := s.watch.Run(ctx)
	if err != nil {
		return result, fmt.Errorf("price-watch cycle: %w", err)
	}
	result.PriceWatch = watchStats

	result.Duration = time.Since(start).String()

	return result, nil
}

// Run fires RunOnce on the configured interval until the context ends.
// Lock starvation is logged loudly; everything else is logged and the loop
// keeps going.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	zlog.Logger.Info().Dur("interval", s.interval).Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			result, err := s.RunOnce(ctx)
			if err != nil {
				if errors.Is(err, lock.ErrLockTimeout) {
					zlog.Logger.Error().Err(err).Msg("scan invocation starved: lock held past timeout")
					continue
				}

				zlog.Logger.Error().Err(err).Msg("scan invocation failed")
				continue
			}

			zlog.Logger.Info().
				Int("alerts_checked", result.Scan.AlertsChecked).
				Int("notifications_sent", result.Scan.NotificationsSent).
				Int("items_checked", result.PriceWatch.ItemsChecked).
				Str("duration", result.Duration).
				Msg("scan invocation finished")
		}
	}
}
