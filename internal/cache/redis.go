package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	pkmserr "github.com/ashishacharya123/PKMS-sub000/internal/errors"
)

// RedisConfig holds connection parameters for the shared cache tier.
type RedisConfig struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// RedisCache is the shared tier backed by Redis via rueidis.
type RedisCache struct {
	client rueidis.Client
}

// NewRedis connects to the shared cache tier.
func NewRedis(cfg RedisConfig) (*RedisCache, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, pkmserr.CacheUnavailable("connect to shared cache", err)
	}
	return &RedisCache{client: client}, nil
}

// Get returns the cached value for key, reporting presence separately from
// transport errors.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	cmd := c.client.B().Get().Key(key).Build()
	data, err := c.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}
		return nil, false, pkmserr.CacheUnavailable("shared cache get", err)
	}
	return data, true, nil
}

// Set stores value under key with an expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := c.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return pkmserr.CacheUnavailable("shared cache set", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	cmd := c.client.B().Ping().Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return pkmserr.CacheUnavailable("shared cache ping", err)
	}
	return nil
}

// Close shuts down the client.
func (c *RedisCache) Close() {
	c.client.Close()
}

var _ SharedTier = (*RedisCache)(nil)
