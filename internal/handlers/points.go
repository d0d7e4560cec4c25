package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"engagement-service/internal/points"
	"engagement-service/internal/telemetry"
)

// PointsHandler exposes the points engine over HTTP.
type PointsHandler struct {
	svc   *points.Service
	audit *telemetry.AuditEmitter
}

// NewPointsHandler builds a PointsHandler. audit may be nil.
func NewPointsHandler(svc *points.Service, audit *telemetry.AuditEmitter) *PointsHandler {
	return &PointsHandler{svc: svc, audit: audit}
}

// GetPoints returns the paginated points history plus the running total.
func (h *PointsHandler) GetPoints(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	page, limit, ok := parsePagination(c)
	if !ok {
		return
	}

	entries, count, err := h.svc.History(c.Request.Context(), userID, page, limit)
	if err != nil {
		if errors.Is(err, points.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page and limit must be positive"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load points history"})
		return
	}

	total, err := h.svc.TotalPoints(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load total points"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"points":           total,
		"points_breakdown": entries,
		"total_actions":    count,
		"page":             page,
		"total_pages":      (count + limit - 1) / limit,
	})
}

// GetTotalPoints returns the sum of the user's ledger.
func (h *PointsHandler) GetTotalPoints(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	total, err := h.svc.TotalPoints(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load total points"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total_points": total})
}

// AwardPoints awards points to a user for an action. Throttled and
// unknown-action outcomes are reported, not surfaced as failures.
func (h *PointsHandler) AwardPoints(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req struct {
		ActionID string `json:"action_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	award, err := h.svc.Award(c.Request.Context(), userID, req.ActionID)
	switch {
	case errors.Is(err, points.ErrActionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "action not found"})
	case errors.Is(err, points.ErrThrottled):
		c.JSON(http.StatusOK, gin.H{"awarded": false, "reason": "throttled"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to award points"})
	default:
		h.audit.Emit(c.Request.Context(), "INFO",
			fmt.Sprintf("awarded %d points for %s", award.Points, award.ActionID),
			requestIDFromContext(c), auditUserID(userID))
		c.JSON(http.StatusCreated, gin.H{"awarded": true, "point": award})
	}
}

func parsePagination(c *gin.Context) (int, int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return 0, 0, false
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, 0, false
	}
	return page, limit, true
}
