package watch

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
	"github.com/aliskhannn/market-alerts/internal/pricewatch"
	watchrepo "github.com/aliskhannn/market-alerts/internal/repository/watch"
)

type watchStore interface {
	Create(ctx context.Context, w model.WatchedItem) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]model.WatchedItem, error)
	UpdateNotifySettings(ctx context.Context, id, userID int64, priceDrop, auctionEnding bool, threshold int) error
	Deactivate(ctx context.Context, id, userID int64) error
}

type trendProvider interface {
	GetTrend(ctx context.Context, watchedItemID int64, days int) (pricewatch.Trend, error)
}

// Handler handles HTTP requests for watched items and their price history.
type Handler struct {
	store     watchStore
	trends    trendProvider
	validator *validator.Validate
}

// NewHandler creates a new watch handler.
func NewHandler(store watchStore, trends trendProvider, v *validator.Validate) *Handler {
	return &Handler{store: store, trends: trends, validator: v}
}

// CreateRequest is the JSON body for adding a watched item.
type CreateRequest struct {
	UserID             int64   `json:"user_id" validate:"required"`
	ItemID             string  `json:"item_id" validate:"required"`
	Title              string  `json:"title" validate:"required"`
	URL                string  `json:"url" validate:"required,url"`
	ImageURL           string  `json:"image_url"`
	Price              float64 `json:"price" validate:"required,gt=0"`
	Currency           string  `json:"currency"`
	NotifyPriceDrop    bool    `json:"notify_price_drop"`
	PriceDropThreshold int     `json:"price_drop_threshold"`
}

// SettingsRequest is the JSON body for changing per-item notify flags.
type SettingsRequest struct {
	UserID              int64 `json:"user_id" validate:"required"`
	NotifyPriceDrop     bool  `json:"notify_price_drop"`
	NotifyAuctionEnding bool  `json:"notify_auction_ending"`
	PriceDropThreshold  int   `json:"price_drop_threshold" validate:"gte=0,lte=100"`
}

// Create handles POST requests to start watching an item.
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

	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}

	threshold := req.PriceDropThreshold
	if threshold == 0 {
		threshold = 5
	}

	id, err := h.store.Create(c.Request.Context(), model.WatchedItem{
		UserID:             req.UserID,
		ItemID:             req.ItemID,
		Title:              req.Title,
		URL:                req.URL,
		ImageURL:           req.ImageURL,
		InitialPrice:       req.Price,
		Currency:           currency,
		NotifyPriceDrop:    req.NotifyPriceDrop,
		PriceDropThreshold: threshold,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("user_id", req.UserID).Msg("failed to create watched item")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.Created(c.Writer, id)
}

// GetAll handles GET requests listing a user's watched items.
func (h *Handler) GetAll(c *ginext.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid user_id"))
		return
	}

	items, err := h.store.ListByUser(c.Request.Context(), userID)
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("user_id", userID).Msg("failed to list watched items")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, items)
}

// UpdateSettings handles PUT requests changing per-item notify flags.
func (h *Handler) UpdateSettings(c *ginext.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return
	}

	var req SettingsRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	err = h.store.UpdateNotifySettings(c.Request.Context(), id, req.UserID, req.NotifyPriceDrop, req.NotifyAuctionEnding, req.PriceDropThreshold)
	if err != nil {
		if errors.Is(err, watchrepo.ErrWatchedItemNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("watched item not found"))
			return
		}

		zlog.Logger.Error().Err(err).Int64("item_id", id).Msg("failed to update watched item settings")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, "settings updated")
}

// Deactivate handles DELETE requests. Watched items are soft-deleted so
// their price history survives.
func (h *Handler) Deactivate(c *ginext.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return
	}

	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid user_id"))
		return
	}

	if err := h.store.Deactivate(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, watchrepo.ErrWatchedItemNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("watched item not found"))
			return
		}

		zlog.Logger.Error().Err(err).Int64("item_id", id).Msg("failed to deactivate watched item")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, "watched item deactivated")
}

// History handles GET requests for an item's price trend.
func (h *Handler) History(c *ginext.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return
	}

	days := 30
	if d := c.Query("days"); d != "" {
		days, err = strconv.Atoi(d)
		if err != nil || days <= 0 {
			respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid days"))
			return
		}
	}

	trend, err := h.trends.GetTrend(c.Request.Context(), id, days)
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("item_id", id).Msg("failed to get price trend")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, trend)
}
