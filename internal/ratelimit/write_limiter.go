package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/assemblee/assemblee/internal/config"
)

const keyWriteUser = "write:user:%s"

// WriteLimiter throttles mutating requests per user. A nil or disabled
// limiter allows everything.
type WriteLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewWriteLimiter(cfg config.Config) (*WriteLimiter, error) {
	if !cfg.RateLimitEnabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if cfg.WriteRate <= 0 || cfg.WriteBurst <= 0 {
		return nil, errors.New("write rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &WriteLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.WriteRate,
		burst:   cfg.WriteBurst,
	}, nil
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *WriteLimiter) AllowUser(ctx context.Context, userID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWriteUser, strings.TrimSpace(userID)), l.rate, l.burst)
}
