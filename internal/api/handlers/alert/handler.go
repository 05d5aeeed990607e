package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/market-alerts/internal/api/respond"
	"github.com/aliskhannn/market-alerts/internal/model"
	alertrepo "github.com/aliskhannn/market-alerts/internal/repository/alert"
)

// alertStore defines the storage operations the handler depends on.
type alertStore interface {
	CreateAlert(ctx context.Context, a model.Alert) (int64, error)
	GetUserAlerts(ctx context.Context, userEmail string) ([]model.Alert, error)
	Deactivate(ctx context.Context, id int64, userEmail string) error
}

// Handler handles HTTP requests for saved-search alerts.
type Handler struct {
	alerts    alertStore
	validator *validator.Validate
}

// NewHandler creates a new alert handler.
func NewHandler(alerts alertStore, v *validator.Validate) *Handler {
	return &Handler{alerts: alerts, validator: v}
}

// CreateRequest is the JSON body for creating an alert.
type CreateRequest struct {
	UserEmail string              `json:"user_email" validate:"required,email"`
	Name      string              `json:"name" validate:"required"`
	Terms     []string            `json:"terms" validate:"required,min=1"`
	Source    string              `json:"source" validate:"required,oneof=ebay kleinanzeigen amazon"`
	Filters   model.SearchFilters `json:"filters"`
}

// Create handles POST requests to create a new alert.
func (h *Handler) Create(c *ginext.Context) {
	var req CreateRequest

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

	id, err := h.alerts.CreateAlert(c.Request.Context(), model.Alert{
		UserEmail: req.UserEmail,
		Name:      req.Name,
		Terms:     req.Terms,
		Source:    req.Source,
		Filters:   req.Filters,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("user", req.UserEmail).Msg("failed to create alert")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.Created(c.Writer, id)
}

// GetAll handles GET requests listing a user's alerts.
func (h *Handler) GetAll(c *ginext.Context) {
	userEmail := c.Query("user_email")
	if userEmail == "" {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("missing user_email"))
		return
	}

	alerts, err := h.alerts.GetUserAlerts(c.Request.Context(), userEmail)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("user", userEmail).Msg("failed to get alerts")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, alerts)
}

// Deactivate handles DELETE requests. Alerts are switched off, never
// hard-deleted, so the seen-item ledger stays meaningful.
func (h *Handler) Deactivate(c *ginext.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return
	}

	userEmail := c.Query("user_email")
	if userEmail == "" {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("missing user_email"))
		return
	}

	if err := h.alerts.Deactivate(c.Request.Context(), id, userEmail); err != nil {
		if errors.Is(err, alertrepo.ErrAlertNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("alert not found"))
			return
		}

		zlog.Logger.Error().Err(err).Int64("alert_id", id).Msg("failed to deactivate alert")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, "alert deactivated")
}
