// Package scan runs the alert scan cycle: for every active saved search it
// re-runs the marketplace query, diffs the results against the seen-item
// ledger and dispatches notifications for listings observed for the first
// time. One alert's failure never aborts the batch.
package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/market-alerts/internal/config"
	"github.com/aliskhannn/market-alerts/internal/dispatch"
	"github.com/aliskhannn/market-alerts/internal/metrics"
	"github.com/aliskhannn/market-alerts/internal/model"
)

// Searcher is the external marketplace search capability: given terms and
// filters, return normalized listings. It must be safe to call repeatedly
// for the same input.
type Searcher interface {
	Search(ctx context.Context, source string, terms []string, filters model.SearchFilters) ([]model.Listing, error)
}

type alertStore interface {
	GetActiveAlerts(ctx context.Context) ([]model.Alert, error)
	UpdateLastRun(ctx context.Context, id int64, ts int64) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

type ledger interface {
	MarkSeen(ctx context.Context, userEmail string, alertID int64, source, itemID string, now int64) (bool, error)
}

type dispatcher interface {
	Send(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

// Stats aggregates the outcome of one cycle.
type Stats struct {
	AlertsChecked     int `json:"alerts_checked"`
	NewItems          int `json:"new_items_found"`
	NotificationsSent int `json:"notifications_sent"`
	Errors            int `json:"errors"`
}

// Runner executes scan cycles. Alerts are processed sequentially; the pause
// between sends keeps a burst of new listings from tripping the chat API's
// own rate limits.
type Runner struct {
	alerts     alertStore
	users      userStore
	ledger     ledger
	searcher   Searcher
	dispatcher dispatcher

	interval    time.Duration // minimum time between runs of one alert
	notifyCap   int           // max notifications per alert per cycle
	notifyPause time.Duration
	strategy    retry.Strategy

	now   func() time.Time
	sleep func(time.Duration)
}

// NewRunner creates a scan runner.
func NewRunner(
	alerts alertStore,
	users userStore,
	ledger ledger,
	searcher Searcher,
	d dispatcher,
	sched config.Scheduler,
	strategy retry.Strategy,
) *Runner {
	return &Runner{
		alerts:      alerts,
		users:       users,
		ledger:      ledger,
		searcher:    searcher,
		dispatcher:  d,
		interval:    sched.AlertInterval,
		notifyCap:   sched.NotifyCap,
		notifyPause: sched.NotifyPause,
		strategy:    strategy,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Run executes one full scan cycle over all active alerts and returns the
// aggregate stats. Only a failure to load the alert list is fatal.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	alerts, err := r.alerts.GetActiveAlerts(ctx)
	if err != nil {
		return stats, fmt.Errorf("load active alerts: %w", err)
	}

	zlog.Logger.Info().Int("alerts", len(alerts)).Msg("scan cycle started")

	for _, a := range alerts {
		r.processAlert(ctx, a, &stats)
	}

	zlog.Logger.Info().
		Int("checked", stats.AlertsChecked).
		Int("new_items", stats.NewItems).
		Int("sent", stats.NotificationsSent).
		Int("errors", stats.Errors).
		Msg("scan cycle finished")

	return stats, nil
}

func (r *Runner) processAlert(ctx context.Context, a model.Alert, stats *Stats) {
	cycleStart := r.now().Unix()

	// Cheap pre-filter: skip the alert entirely if it ran recently.
	// Distinct from the per-user notification rate limit.
	if cycleStart-a.LastRunTS < int64(r.interval.Seconds()) {
		zlog.Logger.Debug().Int64("alert_id", a.ID).Msg("alert skipped, ran recently")
		return
	}

	stats.AlertsChecked++
	metrics.AlertsChecked.Inc()

	user, err := r.users.GetByEmail(ctx, a.UserEmail)
	if err != nil {
		zlog.Logger.Warn().Err(err).Int64("alert_id", a.ID).Str("user", a.UserEmail).Msg("alert owner not found")
		r.updateLastRun(ctx, a.ID, cycleStart)
		return
	}

	if !user.TelegramReady() {
		zlog.Logger.Debug().Int64("alert_id", a.ID).Msg("telegram not linked or disabled")
		r.updateLastRun(ctx, a.ID, cycleStart)
		return
	}

	listings, err := r.search(ctx, a)
	if err != nil {
		// The timestamp is bumped anyway so a failing alert is not hammered
		// on every cycle.
		zlog.Logger.Error().Err(err).Int64("alert_id", a.ID).Msg("search failed")
		stats.Errors++
		metrics.ScanErrors.Inc()
		r.updateLastRun(ctx, a.ID, cycleStart)
		return
	}

	newListings := r.diff(ctx, a, listings, cycleStart, stats)

	if len(newListings) > 0 {
		stats.NewItems += len(newListings)
		r.notify(ctx, a, user, newListings, stats)
	}

	r.updateLastRun(ctx, a.ID, cycleStart)
}

// search calls the external capability, retrying transient failures per the
// configured strategy.
func (r *Runner) search(ctx context.Context, a model.Alert) ([]model.Listing, error) {
	var listings []model.Listing

	err := retry.Do(func() error {
		found, err := r.searcher.Search(ctx, a.Source, a.Terms, a.Filters)
		if err != nil {
			return err
		}

		listings = found
		return nil
	}, r.strategy)
	if err != nil {
		return nil, err
	}

	return listings, nil
}

// diff records every listing in the ledger and returns only those this call
// newly recorded. Items beyond the notification cap still end up here, so
// they are seen permanently even when not notified this cycle.
func (r *Runner) diff(ctx context.Context, a model.Alert, listings []model.Listing, now int64, stats *Stats) []model.Listing {
	var newListings []model.Listing

	for _, l := range listings {
		key := l.ItemKey()
		if key == "" {
			continue
		}

		recorded, err := r.ledger.MarkSeen(ctx, a.UserEmail, a.ID, a.Source, key, now)
		if err != nil {
			zlog.Logger.Error().Err(err).Int64("alert_id", a.ID).Str("item", key).Msg("ledger write failed")
			stats.Errors++
			metrics.ScanErrors.Inc()
			continue
		}

		if recorded {
			if l.Source == "" {
				l.Source = a.Source
			}

			newListings = append(newListings, l)
			metrics.NewItems.Inc()
		}
	}

	return newListings
}

// notify dispatches up to notifyCap telegram messages for the alert with a
// fixed pause between sends. The remainder stays seen but unnotified.
func (r *Runner) notify(ctx context.Context, a model.Alert, user model.User, listings []model.Listing, stats *Stats) {
	capped := listings
	if len(capped) > r.notifyCap {
		capped = capped[:r.notifyCap]
	}

	for i, l := range capped {
		res, err := r.dispatcher.Send(ctx, dispatch.Request{
			UserID:   user.ID,
			Type:     model.TypeNewItem,
			Channel:  model.ChannelTelegram,
			Subject:  fmt.Sprintf("New listing for %s", a.Name),
			Content:  formatNewItemMessage(a, l),
			ImageURL: l.ImageURL,
			AlertID:  a.ID,
		})
		if err != nil {
			zlog.Logger.Error().Err(err).Int64("alert_id", a.ID).Msg("dispatch failed")
			stats.Errors++
			metrics.ScanErrors.Inc()
			continue
		}

		if res.Sent {
			stats.NotificationsSent++
			metrics.NotificationsSent.Inc()
		}

		if i < len(capped)-1 {
			r.sleep(r.notifyPause)
		}
	}

	if dropped := len(listings) - len(capped); dropped > 0 {
		zlog.Logger.Info().Int64("alert_id", a.ID).Int("dropped", dropped).Msg("notification cap reached, remainder recorded as seen only")
	}
}

func (r *Runner) updateLastRun(ctx context.Context, alertID, ts int64) {
	if err := r.alerts.UpdateLastRun(ctx, alertID, ts); err != nil {
		zlog.Logger.Error().Err(err).Int64("alert_id", alertID).Msg("failed to update alert timestamp")
	}
}

// formatNewItemMessage builds the chat text for one new listing.
func formatNewItemMessage(a model.Alert, l model.Listing) string {
	var b strings.Builder

	fmt.Fprintf(&b, "New listing for %q (%s)\n\n", a.Name, strings.ToUpper(l.Source))
	fmt.Fprintf(&b, "%s\n", l.Title)

	if l.Price > 0 {
		fmt.Fprintf(&b, "Price: %.2f %s\n", l.Price, l.Currency)
	}
	if l.Condition != "" {
		fmt.Fprintf(&b, "Condition: %s\n", l.Condition)
	}
	if l.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", l.Location)
	}

	fmt.Fprintf(&b, "\n%s", l.URL)

	return b.String()
}
