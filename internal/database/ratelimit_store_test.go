package database

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/ratelimit"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRateLimitStore_LimiterWindow(t *testing.T) {
	t.Parallel()

	store := NewRateLimitStore(newTestDB(t))
	now := time.UnixMilli(1_700_000_000_000)
	limiter := ratelimit.NewLimiter(store, ratelimit.Config{}, ratelimit.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 1; i <= ratelimit.DefaultMaxRequests; i++ {
		d := limiter.Check(ctx, "203.0.113.9")
		require.True(t, d.Allowed, "request %d", i)
	}
	d := limiter.Check(ctx, "203.0.113.9")
	assert.False(t, d.Allowed)
	assert.Equal(t, ratelimit.ReasonQuotaExceeded, d.Reason)

	rec, err := store.Get(ctx, "203_0_113_9")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, ratelimit.DefaultMaxRequests, rec.Count)
	assert.Equal(t, now.UnixMilli(), rec.WindowStart)

	now = now.Add(ratelimit.DefaultWindow + time.Millisecond)
	d = limiter.Check(ctx, "203.0.113.9")
	assert.True(t, d.Allowed)
	assert.Equal(t, ratelimit.ReasonReset, d.Reason)

	rec, err = store.Get(ctx, "203_0_113_9")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count)
	assert.Equal(t, now.UnixMilli(), rec.WindowStart)
}

func TestRateLimitStore_ConcurrentChecksAdmitExactlyMax(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewLimiter(NewRateLimitStore(newTestDB(t)), ratelimit.Config{})

	var allowed atomic.Int32
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			d := limiter.Check(context.Background(), "198.51.100.4")
			if d.Reason == ratelimit.ReasonStoreError {
				return d.Err
			}
			if d.Allowed {
				allowed.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(ratelimit.DefaultMaxRequests), allowed.Load())
}

func TestRateLimitStore_AbortWritesNothing(t *testing.T) {
	t.Parallel()

	store := NewRateLimitStore(newTestDB(t))
	ctx := context.Background()

	err := store.Update(ctx, "k", func(cur *models.RateLimitRecord) (*models.RateLimitRecord, error) {
		assert.Nil(t, cur)
		return nil, ratelimit.ErrLimitExceeded
	})
	assert.ErrorIs(t, err, ratelimit.ErrLimitExceeded)

	rec, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.Update(ctx, "k", func(*models.RateLimitRecord) (*models.RateLimitRecord, error) {
		return nil, nil
	}))
	rec, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, rec, "a nil next record leaves storage untouched")
}

func TestRateLimitStore_ListDeletePrune(t *testing.T) {
	t.Parallel()

	store := NewRateLimitStore(newTestDB(t))
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	put := func(key string, start time.Time) {
		require.NoError(t, store.Update(ctx, key, func(*models.RateLimitRecord) (*models.RateLimitRecord, error) {
			return &models.RateLimitRecord{Key: key, Count: 1, WindowStart: start.UnixMilli()}, nil
		}))
	}
	put("old", base)
	put("mid", base.Add(30*time.Minute))
	put("new", base.Add(90*time.Minute))

	recs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "new", recs[0].Key)
	assert.Equal(t, "old", recs[2].Key)

	recs, err = store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	ok, err := store.Delete(ctx, "mid")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Delete(ctx, "mid")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.PruneBefore(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec, err := store.Get(ctx, "new")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestRateLimitStore_GarbageCollector(t *testing.T) {
	t.Parallel()

	store := NewRateLimitStore(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, "stale", func(*models.RateLimitRecord) (*models.RateLimitRecord, error) {
		return &models.RateLimitRecord{Count: 5, WindowStart: time.Now().Add(-3 * time.Hour).UnixMilli()}, nil
	}))

	gc := ratelimit.NewGarbageCollector(store, time.Minute, time.Hour, nil)
	n, err := gc.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"insert race", errInsertRaced, true},
		{"pg serialization", &pq.Error{Code: "40001"}, true},
		{"pg deadlock", &pq.Error{Code: "40P01"}, true},
		{"pg syntax", &pq.Error{Code: "42601"}, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql access denied", &mysql.MySQLError{Number: 1045}, false},
		{"quota", ratelimit.ErrLimitExceeded, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}
