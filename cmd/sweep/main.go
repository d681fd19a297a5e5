// Command sweep runs a single session sweep pass and exits. Useful as a
// cron job when the long-running server's internal sweeper is disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"waypost/internal/config"
	"waypost/internal/database"
	"waypost/internal/repository"
	"waypost/internal/security"
	"waypost/internal/service"
)

func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "Maximum time to wait for the sweep")
	flag.Parse()

	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		slog.Error("failed to initialize database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		slog.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// The sweep only touches the sessions table; the token codec is unused
	// but the service constructor requires one.
	authService := service.NewAuthService(
		repository.NewUserRepository(db),
		repository.NewSessionRepository(db),
		security.NewTokenCodec(cfg.JWTSecret, cfg.AccessTokenTTL),
		nil,
		service.AuthConfig{
			SessionTTL:           cfg.SessionTTL,
			ExtendedSessionTTL:   cfg.ExtendedSessionTTL,
			VerificationTokenTTL: cfg.VerificationTokenTTL,
			ResetTokenTTL:        cfg.ResetTokenTTL,
		},
	)

	count, err := authService.SweepSessions(ctx)
	if err != nil {
		slog.Error("sweep failed", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("Swept %d expired or revoked sessions\n", count)
}
