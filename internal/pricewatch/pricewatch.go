// Package pricewatch runs the price-watch cycle: watched items not checked
// within the staleness window get a fresh price quote, an appended snapshot
// and, when the price dropped, a price-drop alert fan-out. It also serves
// price history and trend summaries off the snapshot time series.
package pricewatch

import (
	"context"
	"fmt"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/market-alerts/internal/dispatch"
	"github.com/aliskhannn/market-alerts/internal/metrics"
	"github.com/aliskhannn/market-alerts/internal/model"
)

// PriceFetcher is the external capability returning the current price of a
// single marketplace item.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, itemID string) (model.PriceQuote, error)
}

type watchStore interface {
	GetDue(ctx context.Context, olderThan time.Time) ([]model.WatchedItem, error)
	RecordSnapshot(ctx context.Context, s model.PriceSnapshot) error
	UpdatePrices(ctx context.Context, id int64, current float64, checkedAt time.Time) error
	History(ctx context.Context, watchedItemID int64, since time.Time) ([]model.PriceSnapshot, error)
}

type priceDropSender interface {
	SendPriceDropAlert(ctx context.Context, item model.WatchedItem, oldPrice, newPrice float64) (dispatch.PriceDropResult, error)
}

// Stats aggregates the outcome of one sweep.
type Stats struct {
	ItemsChecked int `json:"items_checked"`
	AlertsSent   int `json:"alerts_sent"`
	Errors       int `json:"errors"`
}

// Trend summarizes an item's price series over a window.
type Trend struct {
	ItemID        int64                 `json:"item_id"`
	Found         bool                  `json:"found"`
	Current       float64               `json:"current,omitempty"`
	Lowest        float64               `json:"lowest,omitempty"`
	Highest       float64               `json:"highest,omitempty"`
	Direction     string                `json:"direction,omitempty"` // rising, falling or stable
	ChangePercent float64               `json:"change_percent"`
	History       []model.PriceSnapshot `json:"history,omitempty"`
}

// Runner executes price-watch sweeps.
type Runner struct {
	store      watchStore
	fetcher    PriceFetcher
	dispatcher priceDropSender
	staleness  time.Duration

	now func() time.Time
}

// NewRunner creates a price-watch runner.
func NewRunner(store watchStore, fetcher PriceFetcher, d priceDropSender, staleness time.Duration) *Runner {
	return &Runner{
		store:      store,
		fetcher:    fetcher,
		dispatcher: d,
		staleness:  staleness,
		now:        time.Now,
	}
}

// Run sweeps all watched items due for a check. A failure on one item never
// halts the sweep.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	now := r.now()

	items, err := r.store.GetDue(ctx, now.Add(-r.staleness))
	if err != nil {
		return stats, fmt.Errorf("load due watched items: %w", err)
	}

	zlog.Logger.Info().Int("items", len(items)).Msg("price-watch sweep started")

	for _, item := range items {
		if err := r.checkItem(ctx, item, &stats); err != nil {
			zlog.Logger.Error().Err(err).Int64("item_id", item.ID).Msg("price check failed")
			stats.Errors++
		}
	}

	zlog.Logger.Info().
		Int("checked", stats.ItemsChecked).
		Int("alerts_sent", stats.AlertsSent).
		Int("errors", stats.Errors).
		Msg("price-watch sweep finished")

	return stats, nil
}

func (r *Runner) checkItem(ctx context.Context, item model.WatchedItem, stats *Stats) error {
	quote, err := r.fetcher.FetchPrice(ctx, item.ItemID)
	if err != nil {
		return fmt.Errorf("fetch price: %w", err)
	}

	stats.ItemsChecked++
	metrics.PriceChecks.Inc()

	// The snapshot is appended before the alert path so the series stays
	// complete even when dispatch fails.
	if err := r.store.RecordSnapshot(ctx, model.PriceSnapshot{
		WatchedItemID: item.ID,
		Price:         quote.Price,
		Currency:      item.Currency,
		Available:     quote.Available,
		BidCount:      quote.BidCount,
	}); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}

	if err := r.store.UpdatePrices(ctx, item.ID, quote.Price, r.now()); err != nil {
		return fmt.Errorf("update prices: %w", err)
	}

	if quote.Price < item.CurrentPrice && item.NotifyPriceDrop {
		res, err := r.dispatcher.SendPriceDropAlert(ctx, item, item.CurrentPrice, quote.Price)
		if err != nil {
			return fmt.Errorf("send price drop alert: %w", err)
		}

		if res.Sent {
			stats.AlertsSent++
			metrics.PriceDropAlerts.Inc()
		}
	}

	return nil
}

// GetTrend returns the item's price history over the last days together with
// a rising/falling/stable classification at a 5% change threshold.
func (r *Runner) GetTrend(ctx context.Context, watchedItemID int64, days int) (Trend, error) {
	since := r.now().AddDate(0, 0, -days)

	snapshots, err := r.store.History(ctx, watchedItemID, since)
	if err != nil {
		return Trend{}, fmt.Errorf("load price history: %w", err)
	}

	if len(snapshots) == 0 {
		return Trend{ItemID: watchedItemID}, nil
	}

	lowest, highest := snapshots[0].Price, snapshots[0].Price
	for _, s := range snapshots {
		if s.Price < lowest {
			lowest = s.Price
		}
		if s.Price > highest {
			highest = s.Price
		}
	}

	oldest := snapshots[0].Price
	current := snapshots[len(snapshots)-1].Price

	var changePercent float64
	if oldest > 0 {
		changePercent = (current - oldest) / oldest * 100
	}

	direction := "stable"
	switch {
	case changePercent > 5:
		direction = "rising"
	case changePercent < -5:
		direction = "falling"
	}

	return Trend{
		ItemID:        watchedItemID,
		Found:         true,
		Current:       current,
		Lowest:        lowest,
		Highest:       highest,
		Direction:     direction,
		ChangePercent: changePercent,
		History:       snapshots,
	}, nil
}
