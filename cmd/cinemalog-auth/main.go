package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cinemalog/auth"
	"github.com/cinemalog/auth/config"
	"github.com/cinemalog/auth/persistence"
	"github.com/cinemalog/auth/throttle"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader(config.WithArgs(args))
	cfg, err := loader.Load()
	if err != nil {
		if err == pflag.ErrHelp {
			fmt.Fprintf(os.Stderr, "Usage: cinemalog-auth [flags]\n\n%s", loader.Usage())
			return nil
		}
		return err
	}

	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	root := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	provider := auth.NewSlogProvider(root)
	logger := provider.GetLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, cfg.Persistence.GetPingTimeout())
	db, err := persistence.OpenAndMigrate(openCtx, cfg.Persistence.DSN)
	cancel()
	if err != nil {
		return err
	}
	defer db.Close()

	limiter := auth.NoopLimiter()
	if cfg.Throttle.Enabled() {
		redisLimiter, err := throttle.NewFromURL(cfg.Throttle.RedisURL, cfg.Throttle.MaxAttempts, cfg.Throttle.GetWindow())
		if err != nil {
			return err
		}
		defer redisLimiter.Close()

		if err := redisLimiter.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, login throttling fails open", "error", err)
		}
		limiter = redisLimiter
	}

	svc := newServices(cfg, db, provider, limiter)
	app := newApp(cfg, svc, provider)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", cfg.Server.Addr,
			"environment", cfg.Environment,
			"dialect", persistence.DetectDialect(cfg.Persistence.DSN),
			"owner_configured", cfg.Auth.OwnerEmail != "",
		)
		errCh <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return app.ShutdownWithTimeout(cfg.Server.GetShutdownTimeout())
}
