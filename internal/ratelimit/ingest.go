package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pulselens/pulselens/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyEventIngestCompany = "events:ingest:company:%s"

// IngestLimiter throttles event ingestion per company key. Nil when rate
// limiting is disabled; all methods treat nil as allow-everything.
type IngestLimiter struct {
	enabled bool

	bucket *TokenBucket

	rate  float64
	burst int
}

func NewIngestLimiter(cfg config.Config) (*IngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.IngestRate <= 0 || limitCfg.IngestBurst <= 0 {
		return nil, errors.New("event ingest rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &IngestLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.IngestRate,
		burst:   limitCfg.IngestBurst,
	}, nil
}

func (l *IngestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *IngestLimiter) AllowCompany(ctx context.Context, companyID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyEventIngestCompany, strings.TrimSpace(companyID)), l.rate, l.burst)
}
