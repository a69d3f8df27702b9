package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"camsignal/internal/core/ports"
	"camsignal/internal/core/services"
	httphandlers "camsignal/internal/handlers/http"
	"camsignal/internal/infrastructure/middleware"
	"camsignal/internal/infrastructure/monitoring"
	"camsignal/internal/infrastructure/repositories"
	"camsignal/internal/infrastructure/repositories/memory"
	"camsignal/internal/infrastructure/repositories/sqlstore"
	wsignal "camsignal/internal/infrastructure/signal"
	"camsignal/pkg/config"
	"camsignal/pkg/logger"
	"camsignal/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewSugared(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatalw("server exited with error", "error", err)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "camsignal",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	db, err := sqlstore.Open(cfg.Database.FilePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	users := sqlstore.NewGormUserRepository(db)
	activity := sqlstore.NewGormActivityLog(db)
	sessions := sqlstore.NewGormSessionStore(db)
	settings := sqlstore.NewGormSettingsStore(db)

	throttle := repositories.NewLoginThrottle(cfg, throttleParams(cfg, settings, log), log)

	directory := memory.NewMemoryCameraDirectory()
	registry := memory.NewMemoryRoomRegistry()

	auth := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	userService := services.NewUserService(users, activity, sessions, throttle, auth,
		cfg.Auth.AccessTokenTTL, sessionTTL(settings, cfg.Auth.RefreshTokenTTL), log)

	collector := monitoring.NewPrometheusCollector()

	wsServer := wsignal.NewWebSocketServer(auth, collector, wsignal.Options{
		PingInterval:      cfg.Signal.PingInterval,
		PongTimeout:       cfg.Signal.PongTimeout,
		WriteTimeout:      cfg.Signal.WriteTimeout,
		MaxMessageSize:    cfg.Signal.MaxMessageSize,
		MessagesPerSecond: wsMessageRate(cfg),
		MessageBurst:      cfg.RateLimiting.WebSocket.Burst,
		AllowedOrigins:    cfg.Signal.AllowedOrigins,
	}, log)

	presence := services.NewPresenceCoordinator(registry, directory, wsServer, activity, log)
	wsServer.AttachPresence(presence)

	health := monitoring.NewHealthChecker()
	health.AddCheck("database", func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}, 2*time.Second)

	router := setupRouter(cfg, log, auth, userService, presence, health, collector, wsServer)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("starting signaling server", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	var metricsServer *http.Server
	if cfg.Monitoring.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort),
			Handler: mux,
		}
		g.Go(func() error {
			log.Infow("starting metrics server", "port", cfg.Monitoring.PrometheusPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		pruneExpiredSessions(ctx, sessions, log)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Infow("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warnw("http server shutdown failed", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Warnw("metrics server shutdown failed", "error", err)
			}
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warnw("tracer shutdown failed", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func setupRouter(
	cfg *config.Config,
	log *zap.SugaredLogger,
	auth services.AuthService,
	userService services.UserService,
	presence *services.PresenceCoordinator,
	health *monitoring.HealthChecker,
	collector *monitoring.PrometheusCollector,
	wsServer *wsignal.WebSocketServer,
) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	authHandler := httphandlers.NewAuthHandler(userService, collector)
	authHandler.SetupRoutes(router)

	cameraHandler := httphandlers.NewCameraHandler(presence, health, cfg)
	cameraHandler.SetupRoutes(router, middleware.AuthMiddleware(auth))

	router.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))

	return router
}

// throttleParams reads the lockout thresholds, letting the settings
// table override the config file where a row exists.
func throttleParams(cfg *config.Config, settings ports.SettingsStore, log *zap.SugaredLogger) repositories.ThrottleParams {
	params := repositories.ThrottleParams{
		MaxAttempts: cfg.Security.MaxLoginAttempts,
		Window:      cfg.Security.ThrottleWindow,
		Lockout:     cfg.Security.LockoutDuration,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if raw, err := settings.Get(ctx, "max_login_attempts"); err == nil {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			params.MaxAttempts = n
		}
	}
	if raw, err := settings.Get(ctx, "lockout_duration"); err == nil {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			params.Lockout = time.Duration(secs) * time.Second
		}
	}

	log.Infow("login throttle configured",
		"max_attempts", params.MaxAttempts,
		"window", params.Window,
		"lockout", params.Lockout,
	)
	return params
}

// sessionTTL reads the session lifetime from the settings table,
// falling back to the refresh token lifetime.
func sessionTTL(settings ports.SettingsStore, fallback time.Duration) time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if raw, err := settings.Get(ctx, "session_timeout"); err == nil {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

// pruneExpiredSessions removes stale session audit rows hourly until
// the context is cancelled.
func pruneExpiredSessions(ctx context.Context, sessions ports.SessionStore, log *zap.SugaredLogger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			pruneCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			pruned, err := sessions.PruneExpired(pruneCtx, now)
			cancel()
			if err != nil {
				log.Warnw("session prune failed", "error", err)
			} else if pruned > 0 {
				log.Infow("pruned expired sessions", "count", pruned)
			}
		}
	}
}

func wsMessageRate(cfg *config.Config) float64 {
	if !cfg.RateLimiting.Enabled {
		return 0
	}
	return cfg.RateLimiting.WebSocket.MessagesPerSecond
}
