package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

// Pinger is satisfied by the db service.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	log *logger.Logger
	db  Pinger
}

func NewHealthHandler(log *logger.Logger, db Pinger) *HealthHandler {
	return &HealthHandler{log: log.With("handler", "HealthHandler"), db: db}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /health/ready reports not-ready while the audit store is unreachable;
// validations cannot succeed without it.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "db": "not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn("readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "db": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "up"})
}
