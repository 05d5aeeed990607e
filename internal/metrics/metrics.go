// Package metrics exports Prometheus counters for the scan and price-watch
// cycles. Counters are process-wide aggregates; per-user accounting stays in
// the notification log.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsChecked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_alerts_checked_total",
		Help: "Number of alerts examined by scan cycles, past the rate pre-filter.",
	})

	NewItems = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_alerts_new_items_total",
		Help: "Number of listings recorded as newly seen.",
	})

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_alerts_notifications_sent_total",
		Help: "Number of notifications delivered across all channels.",
	})

	ScanErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_alerts_scan_errors_total",
		Help: "Number of per-alert failures during scan cycles.",
	})

	PriceChecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_alerts_price_checks_total",
		Help: "Number of watched-item price checks performed.",
	})

	PriceDropAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_alerts_price_drop_alerts_total",
		Help: "Number of price-drop alerts with at least one delivered channel.",
	})
)
