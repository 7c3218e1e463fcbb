package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultCacheTTL is how long cached preferences are retained. Preference
// edits elsewhere become visible within this window.
const DefaultCacheTTL = 5 * time.Minute

// CachedProvider layers a Redis cache over another Provider. Cache errors
// are never surfaced: on any Redis failure the lookup falls through to the
// inner provider.
type CachedProvider struct {
	rdb    *redis.Client
	inner  Provider
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider wraps inner with a Redis cache. A ttl of zero means
// DefaultCacheTTL.
func NewCachedProvider(rdb *redis.Client, inner Provider, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedProvider{
		rdb:    rdb,
		inner:  inner,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("prefs:%s", userID)
}

func (c *CachedProvider) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	key := cacheKey(userID)

	val, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var p Preferences
		if err := json.Unmarshal([]byte(val), &p); err == nil {
			return &p, nil
		}
		c.logger.Warn("discarding corrupt cached preferences",
			zap.String("user_id", userID),
		)
	} else if err != redis.Nil {
		c.logger.Warn("preference cache read failed",
			zap.Error(err),
			zap.String("user_id", userID),
		)
	}

	p, err := c.inner.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("preference cache write failed",
				zap.Error(err),
				zap.String("user_id", userID),
			)
		}
	}

	return p, nil
}

// Invalidate drops a user's cached preferences.
func (c *CachedProvider) Invalidate(ctx context.Context, userID string) error {
	if err := c.rdb.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate preferences: %w", err)
	}
	return nil
}
