// Package main is the entrypoint for the Gatehouse auth server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/cache"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/handler"
	"github.com/gatehouse/gatehouse/internal/metrics"
	"github.com/gatehouse/gatehouse/internal/middleware"
	"github.com/gatehouse/gatehouse/internal/oidc"
	"github.com/gatehouse/gatehouse/internal/repository"
	"github.com/gatehouse/gatehouse/internal/server"
	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/session"
)

// sweepInterval is how often idle in-memory sessions are reclaimed.
const sweepInterval = time.Minute

// credentialStore is implemented by both store drivers.
type credentialStore interface {
	service.CredentialStore
	Ping(ctx context.Context) error
	Close() error
}

// app holds the wired components shared by the router and shutdown hooks.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    credentialStore
	redis    *cache.Cache
	sessions session.Store
	memory   *session.MemoryStore
	recorder *metrics.InMemoryRecorder
	auth     *service.AuthService
	gate     *service.FederatedGate
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	srv := server.New(setupRouter(a), server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first so they close last.
	srv.OnShutdown("credential store", func(context.Context) error { return a.store.Close() })
	if a.redis != nil {
		srv.OnShutdown("redis", func(context.Context) error { return a.redis.Close() })
	}
	if a.memory != nil {
		sweepCtx, stopSweep := context.WithCancel(ctx)
		go a.memory.Run(sweepCtx, sweepInterval, a.recorder.AddSessionsReclaimed)
		srv.OnShutdown("session sweeper", func(context.Context) error {
			stopSweep()
			return nil
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"store", cfg.StoreDriver,
		"hash_algorithm", cfg.HashAlgorithm,
		"federated", cfg.FederatedEnabled(),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newApp connects the stores and builds the services. On error every
// connection opened so far is closed.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, recorder: metrics.NewInMemory()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.store, err = openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		a.redis, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return nil, errors.New("redis unavailable")
		}
		a.sessions = cache.NewSessionStore(a.redis, cfg.SessionIdleTTL)
		logger.Info("connected to Redis")
	} else {
		a.memory = session.NewMemoryStore(cfg.SessionIdleTTL)
		a.sessions = a.memory
		logger.Info("using in-memory session store")
	}

	hasher, err := auth.NewHasher(cfg.HasherConfig())
	if err != nil {
		return nil, fmt.Errorf("hasher: %w", err)
	}

	var provider service.IdentityProvider
	if cfg.FederatedEnabled() {
		p, err := oidc.New(cfg.OIDCConfig())
		if err != nil {
			return nil, fmt.Errorf("identity provider: %w", err)
		}
		provider = p
	}

	a.auth = service.NewAuthService(a.store, hasher, provider, a.recorder, logger)
	a.gate = service.NewFederatedGate(a.store, provider, a.recorder, logger)
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// openStore opens the credential store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (credentialStore, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		repo, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			return nil, errors.New("database unavailable")
		}
		logger.Info("connected to database")
		return repo, nil
	case config.DriverSQLite:
		store, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("opened sqlite store", "path", cfg.SQLitePath)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(a *app) *chi.Mux {
	cfg, logger := a.cfg, a.logger

	h := handler.New()
	healthHandler := handler.NewHealthHandler(a.store, redisChecker(a.redis))
	metricsHandler := handler.NewMetricsHandler(a.recorder)
	authHandler := handler.NewAuthHandler(a.auth, a.gate, logger)
	federatedHandler := handler.NewFederatedHandler(a.gate, logger)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Operational endpoints carry no session.
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(a.sessions, middleware.SessionConfig{
			CookieName: cfg.SessionCookieName,
			Secure:     !cfg.IsDevelopment(),
		}, logger))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.SignUp)
			r.Post("/login", authHandler.Login)
			r.Post("/reset", authHandler.Reset)
			r.Post("/logout", authHandler.Logout)
			r.Get("/session", authHandler.Session)

			r.Route("/federated", func(r chi.Router) {
				r.Get("/start", federatedHandler.Start)
				r.Get("/callback", federatedHandler.Callback)
				r.Post("/disconnect", federatedHandler.Disconnect)
			})
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.RequireAuthenticated)
			r.Get("/me", authHandler.Me)
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

// redisChecker avoids handing a typed nil to the health handler.
func redisChecker(c *cache.Cache) handler.HealthChecker {
	if c == nil {
		return nil
	}
	return c
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
