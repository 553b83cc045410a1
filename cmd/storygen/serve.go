package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	redisinfra "z-novel-storygen/internal/infrastructure/persistence/redis"
	"z-novel-storygen/internal/interfaces/http/handler"
	"z-novel-storygen/internal/interfaces/http/router"
	"z-novel-storygen/pkg/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the story HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, appOptions{
				serviceName: cfg.App.Name + "-api",
				needRedis:   cfg.Security.RateLimit.Enabled,
				enqueue:     cfg.Features.Queue.Enabled,
			})
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			checks := map[string]handler.HealthChecker{}
			handlers := router.Handlers{Story: handler.NewStoryHandler(a.story)}
			if a.pg != nil {
				checks["postgres"] = a.pg
			}
			if a.redis != nil {
				checks["redis"] = a.redis
				handlers.Limiter = redisinfra.NewRateLimiter(a.redis)
			}
			handlers.Health = handler.NewHealthHandler(Version, checks)

			addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      router.New(cfg, handlers).Engine(),
				ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
				WriteTimeout: cfg.Server.HTTP.WriteTimeout,
				IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info(ctx, "http server starting", "addr", addr, "version", Version, "queue", cfg.Features.Queue.Enabled)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
			}

			logger.Info(ctx, "shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error(ctx, "server forced to shutdown", err)
			}
			logger.Info(ctx, "server exited")
			return nil
		},
	}
}
