package cache

// Package cache provides caching functionality for webhook delivery
// deduplication.

import (
	"context"
	"fmt"
	"time"
)

// Provider defines the interface for remembering processed webhook deliveries.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// WebhookKey builds the dedup key for a gateway delivery. Deduplication here
// is best-effort; the conditional order update is the correctness mechanism.
func WebhookKey(gateway, transactionID string) string {
	return fmt.Sprintf("webhook:%s:%s", gateway, transactionID)
}
