package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/replydesk/server/internal/auth"
	"github.com/replydesk/server/internal/backend"
	"github.com/replydesk/server/internal/charge"
	"github.com/replydesk/server/internal/config"
	"github.com/replydesk/server/internal/db"
	httphandler "github.com/replydesk/server/internal/http"
	"github.com/replydesk/server/internal/http/handlers"
	"github.com/replydesk/server/internal/logger"
	"github.com/replydesk/server/internal/metrics"
	"github.com/replydesk/server/internal/middleware"
	"github.com/replydesk/server/internal/repo"
	"github.com/replydesk/server/internal/session"
)

func main() {
	// Load .env from CWD (env vars override)
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server exited")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	client := backend.New(cfg.BackendURL, backend.WithObserver(m))

	var database *sql.DB
	if cfg.SessionStore == config.StorePostgres {
		log.Info("database target", "target", cfg.DatabaseTarget())
		var err error
		database, err = db.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()

		if err := db.Migrate(database, log); err != nil {
			return err
		}
	}

	store, closeStore, err := openSessionStore(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeStore()

	var jwtService *auth.JWTService
	if cfg.DevMode {
		log.Warn("DEV_MODE is on: /auth/dev_login mints local tokens")
		jwtService = auth.NewJWTService(cfg.JWTSecret, 0)
	}
	authService := auth.NewService(store, client, jwtService, log)

	registryCfg := charge.RegistryConfig{IdleTTL: cfg.FlowIdleTTL, Observer: m, Logger: log}
	if database != nil {
		registryCfg.Recorder = repo.NewChargeEventRepo(database)
	}
	registry := charge.NewRegistry(registryCfg)
	defer registry.Close()

	loginLimiter := middleware.NewRateLimiter(10*time.Minute, 10)
	defer loginLimiter.Stop()
	chargeLimiter := middleware.NewRateLimiter(time.Minute, 20)
	defer chargeLimiter.Stop()

	router := httphandler.NewRouter(httphandler.RouterDeps{
		Auth:          handlers.NewAuthHandler(authService, log, cfg.CookieSecure),
		Views:         handlers.NewViewHandler(),
		Charge:        handlers.NewChargeHandler(registry, client, log),
		Gatekeeper:    middleware.NewGatekeeper(authService, m, log, cfg.CookieSecure),
		Metrics:       promhttp.Handler(),
		DevMode:       cfg.DevMode,
		LoginLimiter:  loginLimiter,
		ChargeLimiter: chargeLimiter,
	})

	servers := []*http.Server{{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	if purger, ok := store.(repo.SessionRepo); ok {
		g.Go(func() error {
			purgeExpiredSessions(gctx, purger, log)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func openSessionStore(ctx context.Context, cfg *config.Config, database *sql.DB) (session.Store, func(), error) {
	switch cfg.SessionStore {
	case config.StorePostgres:
		return repo.NewSessionRepo(database), func() {}, nil
	case config.StoreRedis:
		client, err := repo.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis: %w", err)
		}
		return repo.NewRedisSessionStore(client), func() { _ = client.Close() }, nil
	default:
		return session.NewMemoryStore(), func() {}, nil
	}
}

// purgeExpiredSessions deletes rows of sessions whose token expired over a day ago
func purgeExpiredSessions(ctx context.Context, sessions repo.SessionRepo, log *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx, time.Now().Add(-24*time.Hour))
			if err != nil {
				log.Error("failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				log.Info("purged expired sessions", "count", n)
			}
		}
	}
}
