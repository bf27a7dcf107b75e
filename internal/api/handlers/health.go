package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cfldfs/lineup-optimizer/internal/types"
	"github.com/cfldfs/lineup-optimizer/internal/websocket"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	redis   *redis.Client
	wsHub   *websocket.Hub
	service string
	logger  *logrus.Logger
}

// NewHealthHandler creates a new health handler. The redis client may be nil
// when result caching is disabled.
func NewHealthHandler(
	redis *redis.Client,
	wsHub *websocket.Hub,
	service string,
	logger *logrus.Logger,
) *HealthHandler {
	return &HealthHandler{
		redis:   redis,
		wsHub:   wsHub,
		service: service,
		logger:  logger,
	}
}

// GetHealth returns the basic health status. The solver has no external
// dependencies, so a failing cache only degrades the service.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := types.HealthStatus{
		Status:    "ok",
		Service:   h.service,
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			response.Status = "degraded"
			response.Checks["redis"] = "failed: " + err.Error()
		} else {
			response.Checks["redis"] = "ok"
		}
	} else {
		response.Checks["redis"] = "not_configured"
	}

	statusCode := http.StatusOK
	if response.Status == "degraded" {
		statusCode = http.StatusPartialContent
	}

	c.JSON(statusCode, response)
}

// GetReady returns the readiness status. Optimization runs entirely in
// process, so readiness does not depend on the cache.
func (h *HealthHandler) GetReady(c *gin.Context) {
	response := types.HealthStatus{
		Status:    "ready",
		Service:   h.service,
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			response.Checks["redis"] = "failed: " + err.Error()
		} else {
			response.Checks["redis"] = "ok"
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetMetrics returns basic service metrics.
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	metrics := map[string]interface{}{
		"service":               h.service,
		"timestamp":             time.Now(),
		"websocket_connections": h.wsHub.ConnectionCount(),
	}

	if h.redis != nil {
		if keys, err := h.redis.Keys(c.Request.Context(), "optimization:*").Result(); err == nil {
			metrics["cache"] = map[string]interface{}{
				"cached_results": len(keys),
			}
		}
	}

	c.JSON(http.StatusOK, metrics)
}
