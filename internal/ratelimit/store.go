package ratelimit

import (
	"context"
	"time"

	"github.com/benvon/portfolio-chat/internal/models"
)

// UpdateFunc decides the next state of a counter record.
// current is nil when no record exists for the key. Returning a nil record with a nil
// error leaves storage untouched; returning an error aborts the transaction.
// Implementations must be pure: optimistic stores may call them more than once.
type UpdateFunc func(current *models.RateLimitRecord) (*models.RateLimitRecord, error)

// Store owns the durable counter records.
// Update must run read, fn and write as one atomic unit against the backing store.
type Store interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Pruner is implemented by stores that can drop records whose window started before cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
