package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// MemoryCache is the in-process fallback used when Redis is disabled
type MemoryCache struct {
	cache    *gocache.Cache
	limiters *gocache.Cache
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache:    gocache.New(defaultTTL, cleanupInterval),
		limiters: gocache.New(time.Hour, cleanupInterval),
	}
}

// GetJSON retrieves and unmarshals a JSON value from cache
func (c *MemoryCache) GetJSON(_ context.Context, key string, dest any) error {
	val, found := c.cache.Get(key)
	if !found {
		return ErrCacheMiss
	}
	return json.Unmarshal(val.([]byte), dest)
}

// SetJSON marshals and stores a value in cache
func (c *MemoryCache) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	c.cache.Set(key, data, ttl)
	return nil
}

// Ping always succeeds
func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

// CheckRateLimit applies a token bucket per key refilling limit tokens per window.
// Returns (allowed, remaining, resetTime, error)
func (c *MemoryCache) CheckRateLimit(_ context.Context, key string, limit int64, window time.Duration) (bool, int64, time.Time, error) {
	if limit <= 0 || window <= 0 {
		return false, 0, time.Time{}, fmt.Errorf("%w: limit %d per %s", ErrInvalidRateLimit, limit, window)
	}
	limiter := c.limiter(key, limit, window)

	now := time.Now()
	allowed := limiter.AllowN(now, 1)

	tokens := limiter.TokensAt(now)
	remaining := int64(math.Max(0, math.Floor(tokens)))

	// Time until one full token is available again.
	perToken := time.Duration(float64(window) / float64(limit))
	resetTime := now
	if tokens < 1 {
		resetTime = now.Add(time.Duration((1 - tokens) * float64(perToken)))
	}

	return allowed, remaining, resetTime, nil
}

func (c *MemoryCache) limiter(key string, limit int64, window time.Duration) *rate.Limiter {
	if l, found := c.limiters.Get(key); found {
		return l.(*rate.Limiter)
	}

	every := rate.Every(time.Duration(float64(window) / float64(limit)))
	l := rate.NewLimiter(every, int(limit))

	// Add fails if another request created the limiter first.
	if err := c.limiters.Add(key, l, gocache.DefaultExpiration); err != nil {
		if existing, found := c.limiters.Get(key); found {
			return existing.(*rate.Limiter)
		}
	}
	return l
}
