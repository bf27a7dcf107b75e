package handlers

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cfldfs/lineup-optimizer/internal/config"
	"github.com/cfldfs/lineup-optimizer/internal/optimizer"
	"github.com/cfldfs/lineup-optimizer/internal/pool"
	"github.com/cfldfs/lineup-optimizer/internal/types"
	"github.com/cfldfs/lineup-optimizer/internal/websocket"
	"github.com/cfldfs/lineup-optimizer/pkg/cache"
	"github.com/cfldfs/lineup-optimizer/pkg/logger"
)

// OptimizationHandler handles lineup optimization endpoints.
type OptimizationHandler struct {
	cache  *cache.ResultCache
	wsHub  *websocket.Hub
	config *config.Config
	logger *logrus.Logger
}

// NewOptimizationHandler creates a new optimization handler.
func NewOptimizationHandler(
	cache *cache.ResultCache,
	wsHub *websocket.Hub,
	config *config.Config,
	logger *logrus.Logger,
) *OptimizationHandler {
	return &OptimizationHandler{
		cache:  cache,
		wsHub:  wsHub,
		config: config,
		logger: logger,
	}
}

// OptimizeLineups handles POST /api/v1/optimize.
func (h *OptimizationHandler) OptimizeLineups(c *gin.Context) {
	var req types.OptimizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	h.applyConfigDefaults(&req.Config)

	if err := h.validateLimits(req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Request exceeds limits",
			Code:  "LIMIT_EXCEEDED",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	requestID := c.Query("request_id")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	optimizationID := uuid.New().String()
	log := logger.WithOptimizationID(optimizationID).WithField("request_id", requestID)

	cacheKey := h.generateCacheKey(req)
	if cached, err := h.cache.Get(c.Request.Context(), cacheKey); err == nil && cached != nil {
		log.WithField("cache_key", cacheKey).Info("Returning cached optimization result")
		c.JSON(http.StatusOK, cached)
		return
	}

	normalized, err := pool.Normalize(req.Players, req.Teams, req.Gameweeks, req.CurrentLineupIDs, log)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, types.ErrorResponse{
			Error: "Player pool cannot produce a valid lineup",
			Code:  "INFEASIBLE_POOL",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
		return
	}
	if err := pool.ValidateCoverage(normalized, req.Config.RosterRequirements); err != nil {
		c.JSON(http.StatusUnprocessableEntity, types.ErrorResponse{
			Error: "Player pool cannot fill every roster slot",
			Code:  "INFEASIBLE_POOL",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.RequestTimeout)
	defer cancel()

	progress := func(update types.ProgressUpdate) {
		h.wsHub.BroadcastToRequest(requestID, update)
	}
	progress(types.ProgressUpdate{
		Type:        "optimization",
		Progress:    0.0,
		Message:     "Starting optimization...",
		CurrentStep: "initialization",
		TotalSteps:  req.Config.NumLineups,
		Timestamp:   time.Now(),
	})

	startTime := time.Now()
	result, err := optimizer.OptimizeLineups(ctx, normalized, optimizer.Config{
		SalaryCap:           req.Config.SalaryCap,
		MaxPerTeam:          req.Config.MaxPerTeam,
		Requirements:        req.Config.RosterRequirements,
		UseCaptain:          req.Config.CaptainEnabled(),
		NumLineups:          req.Config.NumLineups,
		MinDifferentPlayers: req.Config.MinDifferentPlayers,
		SolveTimeout:        h.config.SolveTimeout,
	}, log, progress)
	if err != nil {
		h.respondOptimizationError(c, log, err)
		return
	}

	response := types.OptimizationResponse{
		Lineups: result.Lineups,
		Metadata: types.OptimizationMetadata{
			ExecutionTimeMs:     time.Since(startTime).Milliseconds(),
			PoolSize:            len(normalized),
			CandidatesEvaluated: result.Stats.CandidatesEvaluated,
			SolverInvocations:   result.Stats.SolverInvocations,
			LineupsRequested:    req.Config.NumLineups,
		},
	}

	if err := h.cache.Set(c.Request.Context(), cacheKey, &response, time.Hour); err != nil {
		log.WithError(err).Warn("Failed to cache optimization result")
	}

	progress(types.ProgressUpdate{
		Type:        "optimization",
		Progress:    1.0,
		Message:     fmt.Sprintf("Optimization completed! Generated %d lineups in %v", len(result.Lineups), time.Since(startTime)),
		CurrentStep: "completed",
		TotalSteps:  req.Config.NumLineups,
		Timestamp:   time.Now(),
	})

	log.WithFields(logrus.Fields{
		"lineups_generated":  len(result.Lineups),
		"execution_time":     time.Since(startTime),
		"pool_size":          len(normalized),
		"solver_invocations": result.Stats.SolverInvocations,
	}).Info("Optimization completed successfully")

	c.JSON(http.StatusOK, response)
}

// ValidateOptimizationRequest handles POST /api/v1/optimize/validate. It
// normalizes and checks the pool without running the solver.
func (h *OptimizationHandler) ValidateOptimizationRequest(c *gin.Context) {
	var req types.OptimizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	h.applyConfigDefaults(&req.Config)

	if err := h.validateLimits(req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Request exceeds limits",
			Code:  "LIMIT_EXCEEDED",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	log := h.logger.WithField("endpoint", "validate")
	normalized, err := pool.Normalize(req.Players, req.Teams, req.Gameweeks, req.CurrentLineupIDs, log)
	if err == nil {
		err = pool.ValidateCoverage(normalized, req.Config.RosterRequirements)
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, types.ErrorResponse{
			Error: "Player pool cannot produce a valid lineup",
			Code:  "INFEASIBLE_POOL",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, types.SuccessResponse{
		Message: "Optimization request is valid",
		Data: map[string]interface{}{
			"pool":           pool.Stats(normalized),
			"num_lineups":    req.Config.NumLineups,
			"estimated_time": h.estimateOptimizationTime(normalized, req.Config),
		},
	})
}

// GetCacheStatus returns cache statistics.
func (h *OptimizationHandler) GetCacheStatus(c *gin.Context) {
	status := h.cache.Status(c.Request.Context())
	c.JSON(http.StatusOK, status)
}

// ClearCache handles DELETE /api/v1/optimize/cache, dropping every cached
// optimization response. Used after projection updates, when stale lineups
// are worse than a cold cache.
func (h *OptimizationHandler) ClearCache(c *gin.Context) {
	if err := h.cache.Flush(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Failed to flush optimization cache")
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error: "Failed to clear cache",
			Code:  "CACHE_ERROR",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
		return
	}
	c.JSON(http.StatusOK, types.SuccessResponse{
		Message: "Optimization cache cleared",
	})
}

func (h *OptimizationHandler) respondOptimizationError(c *gin.Context, log *logrus.Entry, err error) {
	log.WithError(err).Error("Optimization failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, optimizer.ErrSolverTimeout):
		c.JSON(http.StatusGatewayTimeout, types.ErrorResponse{
			Error: "Optimization timed out",
			Code:  "OPTIMIZATION_TIMEOUT",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
	case errors.Is(err, optimizer.ErrInfeasibleModel):
		c.JSON(http.StatusUnprocessableEntity, types.ErrorResponse{
			Error: "Constraints cannot be satisfied by the player pool",
			Code:  "INFEASIBLE_POOL",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error: "Optimization failed",
			Code:  "OPTIMIZATION_ERROR",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
	}
}

// applyConfigDefaults fills unset request knobs from the service config
// before the documented fallbacks take over.
func (h *OptimizationHandler) applyConfigDefaults(cfg *types.OptimizationConfig) {
	if cfg.SalaryCap <= 0 {
		cfg.SalaryCap = h.config.SalaryCap
	}
	if cfg.MaxPerTeam <= 0 {
		cfg.MaxPerTeam = h.config.MaxPerTeam
	}
	cfg.ApplyDefaults()
}

func (h *OptimizationHandler) validateLimits(req types.OptimizationRequest) error {
	if req.Config.NumLineups > h.config.MaxLineups {
		return fmt.Errorf("num_lineups exceeds limit of %d", h.config.MaxLineups)
	}
	if poolSize := len(req.Players) + len(req.Teams); poolSize > h.config.MaxPoolSize {
		return fmt.Errorf("player pool exceeds limit of %d", h.config.MaxPoolSize)
	}
	return nil
}

// estimateOptimizationTime gives a rough solve-time estimate: one solver
// call per non-DEF candidate per lineup, a few milliseconds each.
func (h *OptimizationHandler) estimateOptimizationTime(pool []types.Player, cfg types.OptimizationConfig) string {
	candidates := 0
	for _, p := range pool {
		if p.Position != types.PositionDEF {
			candidates++
		}
	}
	solves := cfg.NumLineups
	if cfg.CaptainEnabled() {
		solves *= candidates + 1
	}
	return (time.Duration(solves) * 5 * time.Millisecond).String()
}

func (h *OptimizationHandler) generateCacheKey(req types.OptimizationRequest) string {
	hash := md5.New()
	if data, err := json.Marshal(req); err == nil {
		hash.Write(data)
	}
	return fmt.Sprintf("%x", hash.Sum(nil))
}
