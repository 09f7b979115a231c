package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/anishmaharjan/kinmel-backend/internal/auth"
	"github.com/anishmaharjan/kinmel-backend/internal/config"
	"github.com/anishmaharjan/kinmel-backend/internal/events"
	"github.com/anishmaharjan/kinmel-backend/internal/health"
	"github.com/anishmaharjan/kinmel-backend/internal/logger"
	"github.com/anishmaharjan/kinmel-backend/internal/metrics"
	appmw "github.com/anishmaharjan/kinmel-backend/internal/middleware"
	"github.com/anishmaharjan/kinmel-backend/internal/notifier"
	"github.com/anishmaharjan/kinmel-backend/internal/order"
	"github.com/anishmaharjan/kinmel-backend/internal/repository"
	"github.com/anishmaharjan/kinmel-backend/internal/sanitizer"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg := config.Load()

	log := logger.New(logger.DefaultConfig())
	slog.SetDefault(log)

	if cfg.JWT.Secret == "" {
		log.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	dbPool, err := setupDatabase(cfg, log)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbPool.Close()

	// Second handle over the same database for the sqlx order repository
	sqlxDB, err := sqlx.Open("pgx", cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open sqlx handle", slog.Any("error", err))
		os.Exit(1)
	}
	defer sqlxDB.Close()
	sqlxDB.SetMaxOpenConns(25)
	sqlxDB.SetMaxIdleConns(5)
	sqlxDB.SetConnMaxLifetime(5 * time.Minute)

	var redisClient redis.UniversalClient
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		log.Info("rate limiter backed by redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		log.Info("rate limiter running in memory")
	}

	// Repositories
	accountRepo := repository.NewAccountRepository(dbPool)
	orderRepo := repository.NewOrderRepository(sqlxDB)

	// Event bus with a bounded per-account audit trail
	eventStore := events.NewStore()
	bus := events.NewBus(eventStore)
	bus.Subscribe(func(e events.Event) {
		log.Info("security event",
			slog.String("type", string(e.Type)),
			slog.String("account_id", e.AccountID),
			slog.String("username", e.Username),
			slog.Any("detail", e.Detail),
		)
	})

	// Notification channels
	emailSender := notifier.NewEmailSender(cfg.Notifier, log)
	smsSender := notifier.NewSMSSender(cfg.Notifier, log)
	notify := notifier.NewRouter(emailSender, smsSender)

	// Core services
	tokenService := auth.NewTokenService(auth.TokenServiceConfig{
		Secret:      cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.TokenExpiry,
		Issuer:      cfg.JWT.Issuer,
	})
	verifier := auth.NewCredentialVerifier(accountRepo, cfg.Security, log)
	otpManager := auth.NewOTPManager(accountRepo, notify, cfg.Security, log)
	passwordManager := auth.NewPasswordManager(accountRepo, cfg.Security, log)

	authService := auth.NewAuthService(
		accountRepo,
		verifier,
		otpManager,
		passwordManager,
		tokenService,
		sanitizer.New(),
		bus,
		log,
	)
	orderService := order.NewOrderService(orderRepo, bus, log)

	// Handlers
	authHandler := auth.NewAuthHandler(authService, cfg.JWT.TokenExpiry, log)
	orderHandler := order.NewOrderHandler(orderService, log)
	healthHandler := health.NewHandler(dbPool, redisClient, Version)

	// Middleware
	requireAuth := appmw.Authenticator(tokenService, log)
	limiter := appmw.NewRateLimiter(redisClient, log)
	authLimiter := limiter.Limit("auth", cfg.RateLimit.AuthLimit, cfg.RateLimit.AuthWindow)
	generalLimiter := limiter.Limit("general", cfg.RateLimit.GeneralLimit, cfg.RateLimit.GeneralWindow)

	// Router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(appmw.RequestLogger(log))
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Overall)
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(generalLimiter)
		auth.RegisterRoutes(r, authHandler, authLimiter, requireAuth)
		order.RegisterRoutes(r, orderHandler, requireAuth)
	})

	// Connection pool gauges
	statsCollector := metrics.NewDBStatsCollector(dbPool, sqlxDB.DB, log)
	statsCollector.Start(15 * time.Second)
	defer statsCollector.Stop()

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", slog.String("addr", addr), slog.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server exited")
}

// setupDatabase creates and configures the pgx connection pool
func setupDatabase(cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("connected to database",
		slog.String("name", cfg.Database.DBName),
		slog.String("host", cfg.Database.Host),
		slog.String("port", cfg.Database.Port),
	)
	return pool, nil
}
