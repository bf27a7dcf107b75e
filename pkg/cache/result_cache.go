package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cfldfs/lineup-optimizer/internal/types"
)

// ResultCache stores optimization responses in redis keyed by request hash.
// A nil receiver or nil client is a valid no-op cache, so the service runs
// unchanged when redis is not configured.
type ResultCache struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewResultCache creates a redis-backed result cache.
func NewResultCache(client *redis.Client, logger *logrus.Logger) *ResultCache {
	return &ResultCache{
		client: client,
		logger: logger,
	}
}

// Set stores an optimization response.
func (c *ResultCache) Set(ctx context.Context, key string, result *types.OptimizationResponse, expiration time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal optimization response: %w", err)
	}

	fullKey := "optimization:" + key
	if err := c.client.Set(ctx, fullKey, data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to cache optimization response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":     fullKey,
		"expiration":    expiration,
		"lineups_count": len(result.Lineups),
	}).Debug("Cached optimization response")

	return nil
}

// Get retrieves an optimization response. A miss returns (nil, nil).
func (c *ResultCache) Get(ctx context.Context, key string) (*types.OptimizationResponse, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	fullKey := "optimization:" + key
	data, err := c.client.Get(ctx, fullKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read optimization response from cache: %w", err)
	}

	var result types.OptimizationResponse
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached optimization response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":     fullKey,
		"lineups_count": len(result.Lineups),
	}).Debug("Retrieved optimization response from cache")

	return &result, nil
}

// Status returns cache statistics for the health endpoints.
func (c *ResultCache) Status(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service":   "result-cache",
		"timestamp": time.Now(),
	}
	if c == nil || c.client == nil {
		status["connected"] = false
		return status
	}
	status["connected"] = true

	if dbSize := c.client.DBSize(ctx); dbSize.Err() == nil {
		status["db_size"] = dbSize.Val()
	}
	if keys, err := c.client.Keys(ctx, "optimization:*").Result(); err == nil {
		status["optimization_keys"] = len(keys)
	}

	return status
}

// Flush clears all cached optimization responses.
func (c *ResultCache) Flush(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}

	keys, err := c.client.Keys(ctx, "optimization:*").Result()
	if err != nil {
		return fmt.Errorf("failed to list optimization keys: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete optimization keys: %w", err)
		}
	}

	c.logger.WithField("deleted_keys", len(keys)).Info("Flushed optimization cache")
	return nil
}
