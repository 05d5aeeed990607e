// Package dispatch delivers notifications across channels and records every
// attempt in the notification log. The log row is written before policy is
// evaluated or a transport is called, so an attempt is auditable even if the
// process crashes mid-send.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/market-alerts/internal/model"
	"github.com/aliskhannn/market-alerts/internal/policy"
)

type policyChecker interface {
	CanSend(ctx context.Context, userID int64, channel string) (policy.Decision, error)
}

type logStore interface {
	CreateLog(ctx context.Context, log model.NotificationLog) (uuid.UUID, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	GetOrCreateSettings(ctx context.Context, userID int64) (model.NotificationSettings, error)
}

type userStore interface {
	GetByID(ctx context.Context, id int64) (model.User, error)
}

// EmailTransport sends one email message.
type EmailTransport interface {
	Send(to, subject, body string) error
}

// ChatTransport sends one chat message, optionally with an image.
type ChatTransport interface {
	Send(chatID, text, imageURL string) error
}

// Request describes one notification attempt on one channel.
type Request struct {
	UserID        int64
	Type          string // model.TypeNewItem, model.TypePriceDrop, ...
	Channel       string // model.ChannelEmail or model.ChannelTelegram
	Subject       string
	Content       string
	ImageURL      string // telegram only
	WatchedItemID int64  // optional reference
	AlertID       int64  // optional reference
	Priority      string
}

// Result reports the outcome of one attempt. Delivery failures are captured
// here, never returned as errors.
type Result struct {
	Sent   bool      `json:"sent"`
	Reason string    `json:"reason,omitempty"`
	LogID  uuid.UUID `json:"log_id"`
}

// PriceDropResult is the fan-out outcome of a price-drop alert. Sent is true
// when at least one channel delivered.
type PriceDropResult struct {
	Sent     bool              `json:"sent"`
	Reason   string            `json:"reason,omitempty"`
	Channels map[string]Result `json:"channels,omitempty"`
}

// Dispatcher is the channel-polymorphic sender. It holds its own storage and
// transport references; nothing here is process-global.
type Dispatcher struct {
	logs   logStore
	users  userStore
	policy policyChecker
	email  EmailTransport
	chat   ChatTransport
	now    func() time.Time
}

// New creates a dispatcher.
func New(logs logStore, users userStore, p policyChecker, email EmailTransport, chat ChatTransport) *Dispatcher {
	return &Dispatcher{
		logs:   logs,
		users:  users,
		policy: p,
		email:  email,
		chat:   chat,
		now:    time.Now,
	}
}

// Send performs one notification attempt. Ordering is fixed: pending log row
// first, then policy, then delivery, then the final status. The returned
// error covers storage problems only; transport failures end up in the
// result with status "failed".
func (d *Dispatcher) Send(ctx context.Context, req Request) (Result, error) {
	logID, err := d.logs.CreateLog(ctx, model.NotificationLog{
		UserID:        req.UserID,
		Type:          req.Type,
		Channel:       req.Channel,
		Subject:       req.Subject,
		Content:       req.Content,
		WatchedItemID: req.WatchedItemID,
		AlertID:       req.AlertID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create notification log: %w", err)
	}

	decision, err := d.policy.CanSend(ctx, req.UserID, req.Channel)
	if err != nil {
		reason := fmt.Sprintf("policy check failed: %v", err)
		if err := d.logs.MarkFailed(ctx, logID, reason); err != nil {
			zlog.Logger.Error().Err(err).Str("log_id", logID.String()).Msg("failed to update notification log")
		}

		return Result{Reason: reason, LogID: logID}, nil
	}

	if !decision.Allowed {
		if err := d.logs.MarkSkipped(ctx, logID, decision.Reason); err != nil {
			zlog.Logger.Error().Err(err).Str("log_id", logID.String()).Msg("failed to update notification log")
		}

		return Result{Reason: decision.Reason, LogID: logID}, nil
	}

	if err := d.deliver(ctx, req); err != nil {
		zlog.Logger.Warn().Err(err).
			Int64("user_id", req.UserID).
			Str("channel", req.Channel).
			Msg("notification delivery failed")

		if err := d.logs.MarkFailed(ctx, logID, err.Error()); err != nil {
			zlog.Logger.Error().Err(err).Str("log_id", logID.String()).Msg("failed to update notification log")
		}

		return Result{Reason: err.Error(), LogID: logID}, nil
	}

	if err := d.logs.MarkSent(ctx, logID, d.now()); err != nil {
		zlog.Logger.Error().Err(err).Str("log_id", logID.String()).Msg("failed to update notification log")
	}

	return Result{Sent: true, LogID: logID}, nil
}

// deliver resolves the recipient and invokes the channel transport.
func (d *Dispatcher) deliver(ctx context.Context, req Request) error {
	user, err := d.users.GetByID(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	switch req.Channel {
	case model.ChannelEmail:
		if err := d.email.Send(user.Email, req.Subject, req.Content); err != nil {
			return fmt.Errorf("email transport: %w", err)
		}
	case model.ChannelTelegram:
		if user.TelegramChatID == "" {
			return fmt.Errorf("no telegram chat linked for user %d", req.UserID)
		}

		if err := d.chat.Send(user.TelegramChatID, req.Content, req.ImageURL); err != nil {
			return fmt.Errorf("telegram transport: %w", err)
		}
	default:
		return fmt.Errorf("unknown channel %s", req.Channel)
	}

	return nil
}

// SendPriceDropAlert fans a price-drop event out to email and telegram.
// Channels are isolated: each gets its own log row and one failing channel
// never blocks the other. The alert is suppressed entirely when the user
// only wants high-priority drops and this one is below their threshold.
func (d *Dispatcher) SendPriceDropAlert(ctx context.Context, item model.WatchedItem, oldPrice, newPrice float64) (PriceDropResult, error) {
	settings, err := d.logs.GetOrCreateSettings(ctx, item.UserID)
	if err != nil {
		return PriceDropResult{}, fmt.Errorf("get settings: %w", err)
	}

	dropPercent := (oldPrice - newPrice) / oldPrice * 100

	if settings.OnlyHighPriority && dropPercent < float64(settings.MinPriceDropPercent) {
		return PriceDropResult{
			Reason: fmt.Sprintf("price drop too small (%.1f%% < %d%%)", dropPercent, settings.MinPriceDropPercent),
		}, nil
	}

	subject := fmt.Sprintf("Price drop: %s", truncate(item.Title, 50))
	content := fmt.Sprintf(
		"The price for a watched item dropped:\n\n%q\n\nOld price: %.2f %s\nNew price: %.2f %s\n\nSavings: %.2f %s (%.1f%%)\n\nLink: %s",
		item.Title,
		oldPrice, item.Currency,
		newPrice, item.Currency,
		oldPrice-newPrice, item.Currency, dropPercent,
		item.URL,
	)

	results := make(map[string]Result, 2)

	for _, channel := range []string{model.ChannelEmail, model.ChannelTelegram} {
		res, err := d.Send(ctx, Request{
			UserID:        item.UserID,
			Type:          model.TypePriceDrop,
			Channel:       channel,
			Subject:       subject,
			Content:       content,
			WatchedItemID: item.ID,
			Priority:      "high",
		})
		if err != nil {
			// Storage errors are per-channel too: the other channel still
			// gets its attempt.
			zlog.Logger.Error().Err(err).
				Int64("user_id", item.UserID).
				Str("channel", channel).
				Msg("price drop dispatch failed")

			results[channel] = Result{Reason: err.Error()}
			continue
		}

		results[channel] = res
	}

	return PriceDropResult{
		Sent:     results[model.ChannelEmail].Sent || results[model.ChannelTelegram].Sent,
		Channels: results,
	}, nil
}

// truncate cuts s to at most n runes, never splitting a multi-byte rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
