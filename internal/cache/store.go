package cache

import (
	"context"
	"time"
)

// Store is the counter surface shared by the rate limiter backends.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}
