package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/portfolio-chat/internal/database"
	"github.com/benvon/portfolio-chat/internal/logger"
	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const (
	// DefaultBurstRate is the per-client short-window rate applied in front of every API route.
	DefaultBurstRate = "5-S"
	burstStorePrefix = "portfolio_chat_burst"
)

// NewBurstStore returns a Redis-backed ulule store when client is set, else an in-process one.
func NewBurstStore(client *redis.Client) (limiter.Store, error) {
	opts := limiter.StoreOptions{Prefix: burstStorePrefix, CleanUpInterval: limiter.DefaultCleanUpInterval}
	if client == nil {
		return memorystore.NewStoreWithOptions(opts), nil
	}
	return redisstore.NewStoreWithOptions(client, opts)
}

// BurstLimiter wraps ulule/limiter and periodically reloads its rate from the database.
// It guards against request floods; the hourly chat quota is enforced separately.
type BurstLimiter struct {
	store       limiter.Store
	repo        database.RatelimitConfigRepositoryInterface
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	once        sync.Once
	mu          sync.RWMutex
	current     *stdlibmw.Middleware
	rate        string
}

// NewBurstLimiter creates a burst limiter over store whose rate is loaded from repo and hot-reloaded.
func NewBurstLimiter(store limiter.Store, repo database.RatelimitConfigRepositoryInterface, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *BurstLimiter {
	if defaultRate == "" {
		defaultRate = DefaultBurstRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BurstLimiter{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
}

// Middleware returns a middleware that wraps next with the currently loaded rate.
// It may be applied any number of times; the rate is loaded on first use.
func (b *BurstLimiter) Middleware() func(http.Handler) http.Handler {
	b.once.Do(func() { b.load(context.Background()) })
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.mu.RLock()
			current := b.current
			b.mu.RUnlock()
			if current == nil {
				next.ServeHTTP(w, r)
				return
			}
			mw := *current
			mw.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
				b.log.Warn("burst_limiter_store_error", zap.String("error", logger.SanitizeError(err)))
				next.ServeHTTP(w, r)
			}
			mw.Handler(next).ServeHTTP(w, r)
		})
	}
}

// Rate returns the formatted rate currently enforced.
func (b *BurstLimiter) Rate() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rate
}

// Start runs the reload loop until ctx is cancelled.
func (b *BurstLimiter) Start(ctx context.Context) {
	if b.interval <= 0 {
		return
	}
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.load(ctx)
		}
	}
}

func (b *BurstLimiter) load(ctx context.Context) {
	rateStr := b.defaultRate
	if b.repo != nil {
		cfg, err := b.repo.Get(ctx)
		switch {
		case err != nil:
			b.log.Warn("failed_to_load_burst_rate_using_default",
				zap.String("error", logger.SanitizeError(err)),
				zap.String("default_rate", b.defaultRate),
			)
		case cfg != nil && cfg.Rate != "":
			rateStr = cfg.Rate
		default:
			if err := b.repo.Set(ctx, &models.RatelimitConfig{Rate: b.defaultRate}); err != nil {
				b.log.Error("failed_to_save_default_burst_rate",
					zap.String("error", logger.SanitizeError(err)),
					zap.String("default_rate", b.defaultRate),
				)
			}
		}
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		b.log.Error("failed_to_parse_burst_rate_using_default",
			zap.String("error", logger.SanitizeError(err)),
			zap.String("rate", rateStr),
			zap.String("default_rate", b.defaultRate),
		)
		rateStr = b.defaultRate
		if rate, err = limiter.NewRateFromFormatted(rateStr); err != nil {
			b.log.Error("failed_to_parse_default_burst_rate", zap.String("error", logger.SanitizeError(err)))
			return
		}
	}

	b.mu.RLock()
	unchanged := b.current != nil && b.rate == rateStr
	b.mu.RUnlock()
	if unchanged {
		return
	}

	mw := stdlibmw.NewMiddleware(limiter.New(b.store, rate),
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithExcludedKey(func(key string) bool { return key == "" }),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			respondErrorJSON(w, r, http.StatusTooManyRequests, "resource-exhausted", "Too many requests. Slow down and try again shortly.", b.log)
		}),
	)

	b.mu.Lock()
	b.current = mw
	b.rate = rateStr
	b.mu.Unlock()

	b.log.Info("burst_rate_loaded", zap.String("rate", rateStr))
}
