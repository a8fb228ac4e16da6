package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/credit/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves liveness and readiness checks
type SystemHandler struct {
	db           Pinger
	readyTimeout time.Duration
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(db Pinger) *SystemHandler {
	return &SystemHandler{
		db:           db,
		readyTimeout: 2 * time.Second,
	}
}

// HealthStatus is the body of the health endpoints
type HealthStatus struct {
	Status string `json:"status" example:"ok"`
}

// Self reports that the process is up
//
//	@ID			self
//	@Summary	Liveness check
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	HealthStatus
//	@Router		/self [get]
func (h *SystemHandler) Self(c *gin.Context) {
	c.JSON(http.StatusOK, HealthStatus{Status: "ok"})
}

// Ready reports whether the database answers a ping
//
//	@ID			ready
//	@Summary	Readiness check
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	HealthStatus
//	@Failure	503	{object}	HealthStatus
//	@Router		/ready [get]
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.readyTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		logger.FromContext(c.Request.Context()).Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, HealthStatus{Status: "unavailable"})
		return
	}
	c.JSON(http.StatusOK, HealthStatus{Status: "ready"})
}

// Register mounts the health endpoints on the engine root
func (h *SystemHandler) Register(engine *gin.Engine) {
	engine.GET("/self", h.Self)
	engine.GET("/ready", h.Ready)
}
