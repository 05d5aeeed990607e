package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/market-alerts/internal/api/respond"
	"github.com/aliskhannn/market-alerts/internal/model"
	notifrepo "github.com/aliskhannn/market-alerts/internal/repository/notification"
)

type settingsStore interface {
	GetOrCreateSettings(ctx context.Context, userID int64) (model.NotificationSettings, error)
	UpdateSettings(ctx context.Context, s model.NotificationSettings) error
	Stats(ctx context.Context, userID int64, since time.Time) (model.NotificationStats, error)
}

// Handler handles HTTP requests for notification settings and delivery stats.
type Handler struct {
	store     settingsStore
	validator *validator.Validate
}

// NewHandler creates a new notification handler.
func NewHandler(store settingsStore, v *validator.Validate) *Handler {
	return &Handler{store: store, validator: v}
}

// SettingsRequest is the JSON body for updating notification settings.
// Clock fields use "HH:MM".
type SettingsRequest struct {
	QuietHoursEnabled   bool   `json:"quiet_hours_enabled"`
	QuietHoursStart     string `json:"quiet_hours_start" validate:"required,len=5"`
	QuietHoursEnd       string `json:"quiet_hours_end" validate:"required,len=5"`
	MaxPerDay           int    `json:"max_per_day" validate:"gte=1,lte=500"`
	MaxPerHour          int    `json:"max_per_hour" validate:"gte=1,lte=100"`
	EmailEnabled        bool   `json:"email_enabled"`
	TelegramEnabled     bool   `json:"telegram_enabled"`
	OnlyHighPriority    bool   `json:"only_high_priority"`
	MinPriceDropPercent int    `json:"min_price_drop_percent" validate:"gte=0,lte=100"`
}

// GetSettings handles GET requests for a user's notification settings.
// Missing rows are created with defaults, so this never 404s for a valid user.
func (h *Handler) GetSettings(c *ginext.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid user_id"))
		return
	}

	settings, err := h.store.GetOrCreateSettings(c.Request.Context(), userID)
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("user_id", userID).Msg("failed to get notification settings")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, settings)
}

// UpdateSettings handles PUT requests replacing a user's notification settings.
func (h *Handler) UpdateSettings(c *ginext.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid user_id"))
		return
	}

	var req SettingsRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	err = h.store.UpdateSettings(c.Request.Context(), model.NotificationSettings{
		UserID:              userID,
		QuietHoursEnabled:   req.QuietHoursEnabled,
		QuietHoursStart:     req.QuietHoursStart,
		QuietHoursEnd:       req.QuietHoursEnd,
		MaxPerDay:           req.MaxPerDay,
		MaxPerHour:          req.MaxPerHour,
		EmailEnabled:        req.EmailEnabled,
		TelegramEnabled:     req.TelegramEnabled,
		OnlyHighPriority:    req.OnlyHighPriority,
		MinPriceDropPercent: req.MinPriceDropPercent,
	})
	if err != nil {
		if errors.Is(err, notifrepo.ErrSettingsNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("settings not found"))
			return
		}

		zlog.Logger.Error().Err(err).Int64("user_id", userID).Msg("failed to update notification settings")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, "settings updated")
}

// GetStats handles GET requests for a user's delivery outcomes over the last
// N days (default 7).
func (h *Handler) GetStats(c *ginext.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid user_id"))
		return
	}

	days := 7
	if d := c.Query("days"); d != "" {
		days, err = strconv.Atoi(d)
		if err != nil || days <= 0 {
			respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid days"))
			return
		}
	}

	since := time.Now().AddDate(0, 0, -days)

	stats, err := h.store.Stats(c.Request.Context(), userID, since)
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("user_id", userID).Msg("failed to get notification stats")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	stats.Days = days

	respond.OK(c.Writer, stats)
}
