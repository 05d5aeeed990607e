package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/market-alerts/internal/model"
)

var (
	ErrLogNotFound      = errors.New("notification log not found")
	ErrSettingsNotFound = errors.New("notification settings not found")
)

// Repository provides access to notification settings and the append-only
// notification log. The log doubles as the source of truth for rate-limit
// counting, so log rows are written synchronously with every attempt.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// GetOrCreateSettings returns the user's notification settings, inserting a
// default row first if none exists. The insert uses ON CONFLICT DO NOTHING so
// concurrent first checks for the same user cannot fail.
func (r *Repository) GetOrCreateSettings(ctx context.Context, userID int64) (model.NotificationSettings, error) {
	defaults := model.DefaultNotificationSettings(userID)

	insert := `
		INSERT INTO notification_settings (
		    user_id, quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
		    max_per_day, max_per_hour, email_enabled, telegram_enabled,
		    only_high_priority, min_price_drop_percent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO NOTHING;
    `

	_, err := r.db.ExecContext(ctx, insert,
		defaults.UserID, defaults.QuietHoursEnabled, defaults.QuietHoursStart, defaults.QuietHoursEnd,
		defaults.MaxPerDay, defaults.MaxPerHour, defaults.EmailEnabled, defaults.TelegramEnabled,
		defaults.OnlyHighPriority, defaults.MinPriceDropPercent,
	)
	if err != nil {
		return model.NotificationSettings{}, fmt.Errorf("failed to create default settings: %w", err)
	}

	query := `
		SELECT user_id, quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
		       max_per_day, max_per_hour, email_enabled, telegram_enabled,
		       only_high_priority, min_price_drop_percent
		FROM notification_settings
		WHERE user_id = $1;
    `

	var s model.NotificationSettings
	err = r.db.Master.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID, &s.QuietHoursEnabled, &s.QuietHoursStart, &s.QuietHoursEnd,
		&s.MaxPerDay, &s.MaxPerHour, &s.EmailEnabled, &s.TelegramEnabled,
		&s.OnlyHighPriority, &s.MinPriceDropPercent,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.NotificationSettings{}, ErrSettingsNotFound
		}

		return model.NotificationSettings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	return s, nil
}

// UpdateSettings overwrites the user's notification settings.
func (r *Repository) UpdateSettings(ctx context.Context, s model.NotificationSettings) error {
	query := `
		UPDATE notification_settings
		SET quiet_hours_enabled = $1, quiet_hours_start = $2, quiet_hours_end = $3,
		    max_per_day = $4, max_per_hour = $5, email_enabled = $6, telegram_enabled = $7,
		    only_high_priority = $8, min_price_drop_percent = $9, updated_at = NOW()
		WHERE user_id = $10;
    `

	res, err := r.db.ExecContext(ctx, query,
		s.QuietHoursEnabled, s.QuietHoursStart, s.QuietHoursEnd,
		s.MaxPerDay, s.MaxPerHour, s.EmailEnabled, s.TelegramEnabled,
		s.OnlyHighPriority, s.MinPriceDropPercent, s.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrSettingsNotFound
	}

	return nil
}

// CreateLog inserts a pending log row for an attempt and returns its ID.
func (r *Repository) CreateLog(ctx context.Context, log model.NotificationLog) (uuid.UUID, error) {
	query := `
		INSERT INTO notification_log (
		    user_id, type, channel, subject, content, watched_item_id, alert_id, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
    `

	var id uuid.UUID
	err := r.db.Master.QueryRowContext(ctx, query,
		log.UserID, log.Type, log.Channel, log.Subject, log.Content,
		nullableID(log.WatchedItemID), nullableID(log.AlertID), model.StatusPending,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create notification log: %w", err)
	}

	return id, nil
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE notification_log
		SET status = $1, sent_at = $2
		WHERE id = $3;
    `

	return r.setStatus(ctx, query, model.StatusSent, sentAt, id)
}

// MarkSkipped records a policy rejection with its human-readable reason.
func (r *Repository) MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE notification_log
		SET status = $1, error_message = $2
		WHERE id = $3;
    `

	return r.setStatus(ctx, query, model.StatusSkipped, reason, id)
}

// MarkFailed records a delivery failure with the captured error text.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE notification_log
		SET status = $1, error_message = $2
		WHERE id = $3;
    `

	return r.setStatus(ctx, query, model.StatusFailed, errMsg, id)
}

func (r *Repository) setStatus(ctx context.Context, query, status string, detail interface{}, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, query, status, detail, id)
	if err != nil {
		return fmt.Errorf("failed to update notification log: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrLogNotFound
	}

	return nil
}

// CountSentSince counts log rows with status "sent" for the user created at
// or after the given time. The policy evaluator uses this for the daily and
// hourly caps.
func (r *Repository) CountSentSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `
		SELECT COUNT(id)
		FROM notification_log
		WHERE user_id = $1 AND status = $2 AND created_at >= $3;
    `

	var count int
	err := r.db.Master.QueryRowContext(ctx, query, userID, model.StatusSent, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sent notifications: %w", err)
	}

	return count, nil
}

// Stats aggregates log outcomes for a user since the given time.
func (r *Repository) Stats(ctx context.Context, userID int64, since time.Time) (model.NotificationStats, error) {
	query := `
		SELECT
		    COUNT(id),
		    COUNT(id) FILTER (WHERE status = 'sent'),
		    COUNT(id) FILTER (WHERE status = 'skipped'),
		    COUNT(id) FILTER (WHERE status = 'failed')
		FROM notification_log
		WHERE user_id = $1 AND created_at >= $2;
    `

	var stats model.NotificationStats
	err := r.db.Master.QueryRowContext(ctx, query, userID, since).Scan(
		&stats.Total, &stats.Sent, &stats.Skipped, &stats.Failed,
	)
	if err != nil {
		return model.NotificationStats{}, fmt.Errorf("failed to get notification stats: %w", err)
	}

	return stats, nil
}

// nullableID maps a zero id to NULL so optional references stay clean.
func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
