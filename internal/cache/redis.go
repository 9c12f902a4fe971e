package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/levishimwe/Hadathub/internal/config"
	"github.com/levishimwe/Hadathub/internal/domain"
)

// AvailabilityCache keeps the read-side availability projection in Redis.
// It is never consulted by purchases; admission always reads the ledger
// under the event lock. A disabled cache misses every read.
type AvailabilityCache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
}

func NewAvailabilityCache(cfg *config.RedisConfig) (*AvailabilityCache, error) {
	if cfg == nil || !cfg.Enabled {
		return &AvailabilityCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("client.Ping -> %w", err)
	}

	return NewAvailabilityCacheWithClient(client, cfg.TTL), nil
}

func NewAvailabilityCacheWithClient(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &AvailabilityCache{
		client:  client,
		ttl:     ttl,
		enabled: true,
	}
}

func availabilityKey(eventID string) string {
	return "availability:" + eventID
}

func (c *AvailabilityCache) Get(ctx context.Context, eventID string) (domain.Availability, bool) {
	if !c.enabled {
		return domain.Availability{}, false
	}

	data, err := c.client.Get(ctx, availabilityKey(eventID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("availability cache read", zap.String("event_id", eventID), zap.Error(err))
		}
		return domain.Availability{}, false
	}

	var a domain.Availability
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.Availability{}, false
	}
	return a, true
}

func (c *AvailabilityCache) Set(ctx context.Context, a domain.Availability) {
	if !c.enabled {
		return
	}

	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, availabilityKey(a.EventID), data, c.ttl).Err(); err != nil {
		zap.L().Warn("availability cache write", zap.String("event_id", a.EventID), zap.Error(err))
	}
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, eventID string) {
	if !c.enabled {
		return
	}
	if err := c.client.Del(ctx, availabilityKey(eventID)).Err(); err != nil {
		zap.L().Warn("availability cache invalidate", zap.String("event_id", eventID), zap.Error(err))
	}
}

func (c *AvailabilityCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}
	return c.client.Close()
}
