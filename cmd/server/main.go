package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/portfolio-chat/api/openapi"
	"github.com/benvon/portfolio-chat/internal/config"
	"github.com/benvon/portfolio-chat/internal/database"
	"github.com/benvon/portfolio-chat/internal/handlers"
	"github.com/benvon/portfolio-chat/internal/logger"
	"github.com/benvon/portfolio-chat/internal/metrics"
	"github.com/benvon/portfolio-chat/internal/middleware"
	"github.com/benvon/portfolio-chat/internal/ratelimit"
	"github.com/benvon/portfolio-chat/internal/services/ai"
	"github.com/benvon/portfolio-chat/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	reloadInterval  = time.Minute
	shutdownTimeout = 30 * time.Second
	// requestTimeoutSlack keeps the request deadline past the upstream deadline so upstream
	// timeouts surface as typed chat errors rather than a generic timeout.
	requestTimeoutSlack = 15 * time.Second
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for upstream prompt logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	if err := run(cfg, debugMode, zapLogger); err != nil {
		zapLogger.Error("server_exited_with_error", zap.Error(err))
		_ = logger.Sync(zapLogger)
		os.Exit(1)
	}
	zapLogger.Info("server_exited")
}

func run(cfg *config.Config, debugMode bool, zapLogger *zap.Logger) error {
	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("database_driver", cfg.DatabaseDriver),
		zap.String("rate_limit_backend", cfg.RateLimitBackend),
		zap.Bool("trust_proxy_headers", cfg.TrustProxyHeaders),
		zap.String("upstream_provider", cfg.UpstreamProvider),
		zap.String("upstream_model", cfg.UpstreamModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.InstallPropagator()
	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(ctx, telemetry.Options{
				ServiceName:    logger.ServiceName,
				ServiceVersion: version,
				Endpoint:       cfg.OTELEndpoint,
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	zapLogger.Info("connected_to_database", zap.String("dialect", string(db.Dialect())))

	redisClient, err := connectRedis(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
	}

	store, pruner := counterStore(cfg, db, redisClient)
	limiter := ratelimit.NewLimiter(store, ratelimit.Config{
		MaxRequests: cfg.ChatRateLimitMax,
		Window:      cfg.ChatRateLimitWindow,
	}, ratelimit.WithLogger(zapLogger))
	zapLogger.Info("chat_quota_configured",
		zap.Int("max_requests", limiter.MaxRequests()),
		zap.Duration("window", limiter.Window()),
	)

	model, err := ai.NewDefaultRegistry().GetProvider(cfg.UpstreamProvider, ai.ModelConfig{
		Model:     cfg.UpstreamModel,
		BaseURL:   cfg.UpstreamBaseURL,
		Timeout:   cfg.UpstreamTimeout,
		Logger:    zapLogger,
		DebugMode: debugMode,
	})
	if err != nil {
		return fmt.Errorf("create upstream provider: %w", err)
	}

	settingsRepo := database.NewSettingsRepository(db)
	proxy := ai.NewChatProxy(settingsRepo, model, ai.ProxyOptions{
		Owner:     cfg.AssistantOwner,
		Timeout:   cfg.UpstreamTimeout,
		Logger:    zapLogger,
		DebugMode: debugMode,
	})

	burstStore, err := middleware.NewBurstStore(redisClient)
	if err != nil {
		return fmt.Errorf("create burst limiter store: %w", err)
	}
	burst := middleware.NewBurstLimiter(burstStore, database.NewRatelimitConfigRepository(db), cfg.BurstRate, zapLogger, reloadInterval)
	corsReloader := middleware.NewCORSReloader(database.NewCorsConfigRepository(db), cfg.FrontendURL, zapLogger, reloadInterval)

	deps := map[string]handlers.Pinger{"database": db}
	if redisClient != nil {
		deps["redis"] = redisPinger{redisClient}
	}

	r := newRouter(routerDeps{
		cfg:            cfg,
		log:            zapLogger,
		tracingEnabled: tracingEnabled,
		chat:           handlers.NewChatHandler(limiter, proxy, zapLogger),
		health:         handlers.NewHealthChecker(deps),
		burst:          burst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           corsReloader.Middleware()(r),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 2*requestTimeoutSlack,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		corsReloader.Start(gctx)
		return nil
	})
	g.Go(func() error {
		burst.Start(gctx)
		return nil
	})
	if pruner != nil && cfg.RateLimitGCInterval > 0 {
		gc := ratelimit.NewGarbageCollector(pruner, cfg.RateLimitGCInterval, cfg.ChatRateLimitWindow, zapLogger)
		g.Go(func() error {
			if err := gc.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("rate limit garbage collector: %w", err)
			}
			return nil
		})
		zapLogger.Info("started_rate_limit_garbage_collector",
			zap.Duration("interval", cfg.RateLimitGCInterval),
			zap.Duration("retention", cfg.ChatRateLimitWindow),
		)
	}
	g.Go(func() error {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("server_shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// connectRedis returns a connected client when REDIS_URL is set. Redis is required only
// for the redis counter backend; otherwise an unreachable Redis is logged and skipped.
func connectRedis(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if cfg.RateLimitBackend == config.BackendRedis {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		zapLogger.Warn("redis_unreachable_continuing_without", zap.Error(err))
		return nil, nil
	}
	zapLogger.Info("connected_to_redis")
	return client, nil
}

// counterStore picks the chat quota store. The pruner is nil when the store expires records itself.
func counterStore(cfg *config.Config, db *database.DB, client *redis.Client) (ratelimit.Store, ratelimit.Pruner) {
	switch cfg.RateLimitBackend {
	case config.BackendRedis:
		return ratelimit.NewRedisStore(client, cfg.ChatRateLimitWindow), nil
	case config.BackendMemory:
		s := ratelimit.NewMemoryStore()
		return s, s
	default:
		s := database.NewRateLimitStore(db)
		return s, s
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

type routerDeps struct {
	cfg            *config.Config
	log            *zap.Logger
	tracingEnabled bool
	chat           *handlers.ChatHandler
	health         *handlers.HealthChecker
	burst          *middleware.BurstLimiter
}

// newRouter wires routes and the middleware chain. CORS wraps the router from outside so
// preflights for any path are answered.
func newRouter(d routerDeps) *mux.Router {
	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, outermost first.
	if d.tracingEnabled {
		r.Use(otelmux.Middleware(logger.ServiceName))
	}
	r.Use(middleware.SecurityHeaders(d.cfg.EnableHSTS))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP(d.cfg.TrustProxyHeaders))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(d.cfg.UpstreamTimeout + requestTimeoutSlack))
	r.Use(middleware.ErrorHandler(d.log))
	r.Use(middleware.Audit(d.log))
	r.Use(middleware.Logging(d.log))

	r.HandleFunc("/healthz", d.health.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet) // Legacy endpoint
	r.HandleFunc("/version", versionInfo).Methods(http.MethodGet)
	if d.cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	handlers.NewOpenAPIHandler(openapi.Spec).RegisterRoutes(r)

	// Chat routes sit behind the burst limiter; the hourly quota is checked by the handler.
	limited := r.NewRoute().Subrouter()
	limited.Use(d.burst.Middleware())
	d.chat.RegisterCallableRoutes(limited)
	d.chat.RegisterRoutes(limited.PathPrefix("/api/v1").Subrouter())

	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":"%s"}`, version, time.Now().UTC().Format(time.RFC3339))
}
