// Package policy decides whether a single notification may be sent to a
// user right now, based on the user's settings and recent send history.
// The decision is pure over its inputs and is re-evaluated for every
// attempt: each send changes the counts the next check sees.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/aliskhannn/market-alerts/internal/model"
)

type notificationStore interface {
	GetOrCreateSettings(ctx context.Context, userID int64) (model.NotificationSettings, error)
	CountSentSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

// Decision is the outcome of one policy check. Reason is set only when
// sending is not allowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Evaluator applies channel enablement, quiet hours and rate caps in order;
// the first failing check short-circuits.
type Evaluator struct {
	store notificationStore
	now   func() time.Time
}

// NewEvaluator creates a policy evaluator over the given settings/log store.
func NewEvaluator(store notificationStore) *Evaluator {
	return &Evaluator{store: store, now: time.Now}
}

// CanSend reports whether a notification may be delivered to the user on the
// given channel right now.
func (e *Evaluator) CanSend(ctx context.Context, userID int64, channel string) (Decision, error) {
	settings, err := e.store.GetOrCreateSettings(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("get settings: %w", err)
	}

	now := e.now()

	// 1. Channel enablement.
	switch channel {
	case model.ChannelEmail:
		if !settings.EmailEnabled {
			return Decision{Reason: "email disabled"}, nil
		}
	case model.ChannelTelegram:
		if !settings.TelegramEnabled {
			return Decision{Reason: "telegram disabled"}, nil
		}
	default:
		return Decision{Reason: fmt.Sprintf("unknown channel %s", channel)}, nil
	}

	// 2. Quiet hours.
	if settings.QuietHoursEnabled {
		inQuiet, err := inQuietWindow(now, settings.QuietHoursStart, settings.QuietHoursEnd)
		if err != nil {
			return Decision{}, fmt.Errorf("parse quiet hours: %w", err)
		}

		if inQuiet {
			return Decision{Reason: "quiet hours active"}, nil
		}
	}

	// 3. Daily cap, counted from local midnight.
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	dayCount, err := e.store.CountSentSince(ctx, userID, dayStart)
	if err != nil {
		return Decision{}, fmt.Errorf("count daily sends: %w", err)
	}

	if dayCount >= settings.MaxPerDay {
		return Decision{Reason: fmt.Sprintf("daily limit reached (%d)", settings.MaxPerDay)}, nil
	}

	// 4. Hourly cap over the trailing 60 minutes.
	hourCount, err := e.store.CountSentSince(ctx, userID, now.Add(-time.Hour))
	if err != nil {
		return Decision{}, fmt.Errorf("count hourly sends: %w", err)
	}

	if hourCount >= settings.MaxPerHour {
		return Decision{Reason: fmt.Sprintf("hourly limit reached (%d)", settings.MaxPerHour)}, nil
	}

	return Decision{Allowed: true}, nil
}

// inQuietWindow reports whether t falls inside the [start, end] window.
// Windows with start > end wrap midnight: 22:00-08:00 covers late evening
// and early morning.
func inQuietWindow(t time.Time, start, end string) (bool, error) {
	startMin, err := parseClock(start)
	if err != nil {
		return false, err
	}

	endMin, err := parseClock(end)
	if err != nil {
		return false, err
	}

	nowMin := t.Hour()*60 + t.Minute()

	if startMin > endMin {
		return nowMin >= startMin || nowMin <= endMin, nil
	}

	return nowMin >= startMin && nowMin <= endMin, nil
}

// parseClock converts an HH:MM string to minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", s, err)
	}

	return t.Hour()*60 + t.Minute(), nil
}
