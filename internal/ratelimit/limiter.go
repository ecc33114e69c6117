// Package ratelimit implements the per-client chat quota: a sliding-restart window
// counter kept in a shared store and updated through a single atomic transaction.
package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/benvon/portfolio-chat/internal/logger"
	"github.com/benvon/portfolio-chat/internal/metrics"
	"github.com/benvon/portfolio-chat/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultMaxRequests is the number of chat requests accepted per key per window.
	DefaultMaxRequests = 20
	// DefaultWindow is the quota window, anchored at the request that opened it.
	DefaultWindow = time.Hour
)

// Reason tags why a Decision came out the way it did.
type Reason string

const (
	ReasonNoIdentity    Reason = "no-identity"
	ReasonCreated       Reason = "created"
	ReasonReset         Reason = "reset"
	ReasonCounted       Reason = "counted"
	ReasonQuotaExceeded Reason = "quota-exceeded"
	ReasonStoreError    Reason = "store-error"
)

// Decision is the outcome of one quota check.
type Decision struct {
	Allowed     bool
	Reason      Reason
	Key         string
	Count       int
	WindowStart time.Time
	// Err is set only for ReasonStoreError; the request is still allowed.
	Err error
}

// Config sets the quota. Zero values fall back to the defaults.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter decides admission per client identifier.
type Limiter struct {
	store  Store
	max    int
	window time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithLogger sets the logger used to report store failures.
func WithLogger(log *zap.Logger) Option {
	return func(l *Limiter) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLimiter creates a limiter over store.
func NewLimiter(store Store, cfg Config, opts ...Option) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	l := &Limiter{
		store:  store,
		max:    cfg.MaxRequests,
		window: cfg.Window,
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// MaxRequests returns the configured per-window quota.
func (l *Limiter) MaxRequests() int {
	return l.max
}

// Allow reports whether identifier may make another request.
func (l *Limiter) Allow(ctx context.Context, identifier string) bool {
	return l.Check(ctx, identifier).Allowed
}

// Check records one request for identifier and returns the tagged decision.
// A missing identifier and any store failure other than a spent quota both allow the request.
func (l *Limiter) Check(ctx context.Context, identifier string) Decision {
	ctx, span := otel.Tracer("portfolio-chat/ratelimit").Start(ctx, "ratelimit.check")
	defer span.End()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		d := Decision{Allowed: true, Reason: ReasonNoIdentity}
		l.finish(span, d)
		return d
	}

	key := SanitizeKey(identifier)
	now := l.now()
	d := Decision{Key: key}

	err := l.store.Update(ctx, key, l.next(key, now, &d))
	switch {
	case err == nil:
		d.Allowed = true
	case IsLimitExceeded(err):
		d.Allowed = false
		d.Reason = ReasonQuotaExceeded
	default:
		d = Decision{Allowed: true, Reason: ReasonStoreError, Key: key, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		l.log.Error("ratelimit_store_failed_allowing_request",
			zap.String("key", logger.SanitizeClientID(key)),
			zap.Error(err),
		)
	}

	l.finish(span, d)
	return d
}

// next returns the transaction body for one check at time now.
// It fills d on every run so d reflects the attempt that finally committed.
func (l *Limiter) next(key string, now time.Time, d *Decision) UpdateFunc {
	nowMs := now.UnixMilli()
	windowMs := l.window.Milliseconds()

	return func(current *models.RateLimitRecord) (*models.RateLimitRecord, error) {
		switch {
		case current == nil:
			d.Reason, d.Count, d.WindowStart = ReasonCreated, 1, now
			return &models.RateLimitRecord{Key: key, Count: 1, WindowStart: nowMs}, nil

		case nowMs-current.WindowStart > windowMs:
			d.Reason, d.Count, d.WindowStart = ReasonReset, 1, now
			return &models.RateLimitRecord{Key: key, Count: 1, WindowStart: nowMs}, nil

		case current.Count < l.max:
			d.Reason, d.Count, d.WindowStart = ReasonCounted, current.Count+1, current.WindowStartTime()
			return &models.RateLimitRecord{Key: key, Count: current.Count + 1, WindowStart: current.WindowStart}, nil

		default:
			d.Count, d.WindowStart = current.Count, current.WindowStartTime()
			return nil, ErrLimitExceeded
		}
	}
}

func (l *Limiter) finish(span trace.Span, d Decision) {
	span.SetAttributes(
		attribute.String("ratelimit.reason", string(d.Reason)),
		attribute.Bool("ratelimit.allowed", d.Allowed),
		attribute.Int("ratelimit.count", d.Count),
	)
	metrics.ObserveRateLimitDecision(string(d.Reason), d.Allowed)
}
