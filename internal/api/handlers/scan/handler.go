package scan

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/market-alerts/internal/api/respond"
	"github.com/aliskhannn/market-alerts/internal/lock"
	"github.com/aliskhannn/market-alerts/internal/scheduler"
)

type cycleRunner interface {
	RunOnce(ctx context.Context) (scheduler.Result, error)
}

// Handler exposes a manual trigger for the scan invocation.
type Handler struct {
	runner cycleRunner
}

// NewHandler creates a new scan handler.
func NewHandler(runner cycleRunner) *Handler {
	return &Handler{runner: runner}
}

// Trigger handles POST requests running one full invocation immediately.
// If another process holds the scan lock past the timeout, the caller gets
// a 409 rather than a half-run cycle.
func (h *Handler) Trigger(c *ginext.Context) {
	result, err := h.runner.RunOnce(c.Request.Context())
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			respond.Fail(c.Writer, http.StatusConflict, fmt.Errorf("another scan is running"))
			return
		}

		zlog.Logger.Error().Err(err).Msg("manual scan failed")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, result)
}
