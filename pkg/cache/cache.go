package cache

import (
	"context"
	"time"

	"github.com/collectflow/collectflow/pkg/models"
)

// Cache is the key-value side of the cache/notification gateway.
// Get returns ("", nil) when the key does not exist.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Publisher is the notification side of the gateway: named events pushed to
// live observers.
type Publisher interface {
	PublishEvent(ctx context.Context, event models.Event) error
}
