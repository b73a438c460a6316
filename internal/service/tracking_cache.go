package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sekolahkita/ppdb-api/internal/models"
)

const trackingCacheKeyPrefix = "application:track:"

// TrackingCache caches public application status lookups by tracking
// code. It only ever holds the public status projection; authorization
// and membership data never pass through it. A nil client disables
// caching entirely.
type TrackingCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewTrackingCache constructs the cache. metrics may be nil.
func NewTrackingCache(client *redis.Client, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *TrackingCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackingCache{client: client, ttl: ttl, metrics: metrics, logger: logger}
}

// Get returns the cached view or nil on miss. Cache failures degrade to
// a miss.
func (c *TrackingCache) Get(ctx context.Context, code string) *models.ApplicationStatusView {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, trackingCacheKeyPrefix+code).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("tracking cache read failed", zap.Error(err))
		}
		c.metrics.RecordCacheLookup(false)
		return nil
	}
	var view models.ApplicationStatusView
	if err := json.Unmarshal(raw, &view); err != nil {
		c.metrics.RecordCacheLookup(false)
		return nil
	}
	c.metrics.RecordCacheLookup(true)
	return &view
}

// Set stores the view with the configured TTL.
func (c *TrackingCache) Set(ctx context.Context, code string, view *models.ApplicationStatusView) {
	if c == nil || c.client == nil || view == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, trackingCacheKeyPrefix+code, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("tracking cache write failed", zap.Error(err))
	}
}

// Invalidate drops the entry after a decision changes the status.
func (c *TrackingCache) Invalidate(ctx context.Context, code string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, trackingCacheKeyPrefix+code).Err(); err != nil {
		c.logger.Warn("tracking cache invalidate failed", zap.Error(err))
	}
}
