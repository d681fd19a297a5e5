package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"waypost/internal/config"
	"waypost/internal/database"
	"waypost/internal/handlers"
	"waypost/internal/metrics"
	"waypost/internal/repository"
	"waypost/internal/security"
	"waypost/internal/service"
	"waypost/internal/worker"
)

func main() {
	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		slog.Error("failed to initialize database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connection established", slog.String("type", cfg.DatabaseType))

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		slog.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("migrations completed")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	locationRepo := repository.NewLocationRepository(db)

	// Services
	collector := metrics.NewCollector()
	codec := security.NewTokenCodec(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := service.NewAuthService(userRepo, sessionRepo, codec, collector, service.AuthConfig{
		SessionTTL:           cfg.SessionTTL,
		ExtendedSessionTTL:   cfg.ExtendedSessionTTL,
		VerificationTokenTTL: cfg.VerificationTokenTTL,
		ResetTokenTTL:        cfg.ResetTokenTTL,
	})
	locationService := service.NewLocationService(locationRepo)

	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL)
	if err != nil {
		slog.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Background session sweeper
	sweeper := worker.NewSweeper(authService, cfg.SweepInterval)
	go sweeper.Run(ctx)

	// 10 requests per minute per IP on the credential endpoints
	loginLimiter := handlers.NewIPRateLimiter(rate.Limit(10.0/60.0), 10)
	defer loginLimiter.Stop()

	router := handlers.NewRouter(&handlers.RouterDeps{
		AuthService:     authService,
		LocationService: locationService,
		EmailService:    emailService,
		MetricsHandler:  collector.Handler(),
		LoginLimiter:    loginLimiter,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", slog.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}
