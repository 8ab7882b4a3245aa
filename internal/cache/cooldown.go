// Package cache holds short-lived per-user state in Redis. When no Redis URL
// is configured the cache degrades to a no-op so the bot runs without it.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/redis/go-redis/v9"
)

var logger = log.New("module", "cache")

// Cooldown rate-limits the AI search command per user.
type Cooldown struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCooldown connects to Redis and verifies the connection. An empty URL
// returns a disabled cooldown that allows everything.
func NewCooldown(redisURL string, ttl time.Duration) (*Cooldown, error) {
	if strings.TrimSpace(redisURL) == "" {
		logger.Info("redis not configured, search cooldown disabled")
		return &Cooldown{ttl: ttl}, nil
	}

	opt, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("NewCooldown: failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("NewCooldown: redis connection failed: %w", err)
	}
	logger.Info("redis connection established")
	return &Cooldown{client: client, ttl: ttl}, nil
}

func cooldownKey(userID int64) string {
	return fmt.Sprintf("search_cooldown:%d", userID)
}

// Allow reports whether the user may run a search now. When denied, remaining
// is how long until the cooldown expires. Redis failures fail open.
func (c *Cooldown) Allow(ctx context.Context, userID int64) (bool, time.Duration) {
	if c.client == nil || c.ttl <= 0 {
		return true, 0
	}

	key := cooldownKey(userID)
	set, err := c.client.SetNX(ctx, key, "1", c.ttl).Result()
	if err != nil {
		logger.Warn("cooldown check failed, allowing", "user", userID, "err", err)
		return true, 0
	}
	if set {
		return true, 0
	}

	remaining, err := c.client.TTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		remaining = c.ttl
	}
	return false, remaining
}

// Reset clears the user's cooldown.
func (c *Cooldown) Reset(ctx context.Context, userID int64) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, cooldownKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("Reset: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Cooldown) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
