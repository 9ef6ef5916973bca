package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mcpherson-lab/pubsync/internal/config"
	"github.com/mcpherson-lab/pubsync/internal/domain"
	apperrors "github.com/mcpherson-lab/pubsync/internal/errors"
	"github.com/mcpherson-lab/pubsync/internal/history"
)

// SyncTrigger executes a sync run on demand. member restricts the run to
// one roster member; empty means everyone.
type SyncTrigger func(ctx context.Context, member string, dryRun bool) (*domain.SyncRun, error)

// Handler handles API requests
type Handler struct {
	history *history.Service
	roster  *config.Roster
	sync    SyncTrigger
}

// NewHandler creates a new API handler
func NewHandler(hist *history.Service, roster *config.Roster, sync SyncTrigger) *Handler {
	return &Handler{
		history: hist,
		roster:  roster,
		sync:    sync,
	}
}

// ListRuns returns recent sync runs
// GET /api/v1/runs
func (h *Handler) ListRuns(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 20)

	runs, err := h.history.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": runs,
	})
}

// GetRun returns one sync run
// GET /api/v1/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := h.history.Run(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": run,
	})
}

// ListMembers returns the configured roster
// GET /api/v1/members
func (h *Handler) ListMembers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": h.roster.Members,
	})
}

// GetMemberStats returns per-member lifetime sync totals
// GET /api/v1/members/stats
func (h *Handler) GetMemberStats(c *gin.Context) {
	stats, err := h.history.MemberTotals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stats,
	})
}

type syncRequest struct {
	Member string `json:"member"`
	DryRun bool   `json:"dry_run"`
}

// TriggerSync runs a sync and returns its summary
// POST /api/v1/sync
func (h *Handler) TriggerSync(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "BAD_REQUEST",
					"message": "invalid request body",
				},
			})
			return
		}
	}

	run, err := h.sync(c.Request.Context(), req.Member, req.DryRun)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": run,
	})
}

// HealthCheck returns the health status of the API
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// parseIntQuery parses an integer query parameter with a default value
func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeConfig:
			status = http.StatusBadRequest
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		case apperrors.ErrCodeFetch:
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
	})
}
