package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification statuses. Every attempted send produces exactly one log row
// holding one of these values.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Notification types.
const (
	TypeNewItem       = "new_item"
	TypePriceDrop     = "price_drop"
	TypeAuctionEnding = "auction_ending"
)

// Delivery channels.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// NotificationLog is an append-only audit record of a single delivery attempt.
// It is created with status "pending" before any policy check or transport
// call, so an attempt is auditable even if the process dies mid-send.
type NotificationLog struct {
	ID            uuid.UUID `json:"id"`                      // unique identifier for the attempt
	UserID        int64     `json:"user_id"`                 // recipient user
	Type          string    `json:"type"`                    // e.g. "new_item", "price_drop"
	Channel       string    `json:"channel"`                 // e.g. "email", "telegram"
	Subject       string    `json:"subject"`                 // message subject (email only)
	Content       string    `json:"content"`                 // message body
	WatchedItemID int64     `json:"watched_item_id"`         // optional reference, 0 if none
	AlertID       int64     `json:"alert_id"`                // optional reference, 0 if none
	Status        string    `json:"status"`                  // pending, sent, failed or skipped
	ErrorMessage  string    `json:"error_message,omitempty"` // captured delivery error or skip reason
	SentAt        time.Time `json:"sent_at,omitempty"`       // when delivery succeeded
	CreatedAt     time.Time `json:"created_at"`              // when the attempt was recorded
}

// NotificationSettings holds a user's per-channel notification policy.
// A row is created lazily with defaults on the first policy check.
type NotificationSettings struct {
	UserID int64 `json:"user_id"`

	QuietHoursEnabled bool   `json:"quiet_hours_enabled"`
	QuietHoursStart   string `json:"quiet_hours_start"` // HH:MM, may be later than end (wraps midnight)
	QuietHoursEnd     string `json:"quiet_hours_end"`   // HH:MM

	MaxPerDay  int `json:"max_notifications_per_day"`
	MaxPerHour int `json:"max_notifications_per_hour"`

	EmailEnabled    bool `json:"email_enabled"`
	TelegramEnabled bool `json:"telegram_enabled"`

	OnlyHighPriority    bool `json:"only_high_priority"`
	MinPriceDropPercent int  `json:"min_price_drop_percent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultNotificationSettings returns the settings written when a user has
// no row yet.
func DefaultNotificationSettings(userID int64) NotificationSettings {
	return NotificationSettings{
		UserID:              userID,
		QuietHoursStart:     "22:00",
		QuietHoursEnd:       "08:00",
		MaxPerDay:           50,
		MaxPerHour:          10,
		EmailEnabled:        true,
		TelegramEnabled:     true,
		MinPriceDropPercent: 5,
	}
}

// NotificationStats aggregates log outcomes for a user over a window.
type NotificationStats struct {
	Days    int `json:"days"`
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
