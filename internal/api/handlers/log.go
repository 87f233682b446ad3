package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/relay-crm/core/internal/api/middleware"
	"github.com/relay-crm/core/internal/services"
)

// LogHandler handles audit log query requests
type LogHandler struct {
	logService *services.LogService
}

// NewLogHandler creates a new LogHandler instance
func NewLogHandler(logService *services.LogService) *LogHandler {
	return &LogHandler{logService: logService}
}

// parseTimeQuery reads an optional RFC 3339 timestamp query parameter.
func parseTimeQuery(c *gin.Context, name string) *time.Time {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// QueryLogs returns the current user's audit log entries with filters
// GET /api/logs
func (h *LogHandler) QueryLogs(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "User not authenticated",
			},
		})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	result, err := h.logService.QueryLogs(services.LogQuery{
		UserID:    userID,
		Level:     c.Query("level"),
		Module:    c.Query("module"),
		Action:    c.Query("action"),
		StartTime: parseTimeQuery(c, "start_time"),
		EndTime:   parseTimeQuery(c, "end_time"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to query logs",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"total": result.Total,
			"logs":  result.Logs,
		},
	})
}
