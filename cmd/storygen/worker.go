package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"z-novel-storygen/internal/config"
	"z-novel-storygen/internal/infrastructure/messaging"
	"z-novel-storygen/pkg/logger"
)

func newWorkerCmd() *cobra.Command {
	var dlqThreshold int64
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume queued story runs from the Redis stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := checkWorkerConfig(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, appOptions{serviceName: cfg.App.Name + "-worker", needRedis: true})
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			stream := cfg.Messaging.RedisStream
			consumer := messaging.NewConsumer(a.redis.Redis(), messaging.ConsumerConfig{
				Stream:        messaging.StreamStoryRun,
				Group:         messaging.ConsumerGroupStoryWorker,
				ConsumerName:  consumerName(),
				BlockTimeout:  stream.BlockTimeout,
				ClaimInterval: stream.ClaimInterval,
				RetryLimit:    stream.RetryLimit,
				Backoff: messaging.BackoffConfig{
					Initial:    stream.RetryBackoff.Initial,
					Max:        stream.RetryBackoff.Max,
					Multiplier: stream.RetryBackoff.Multiplier,
				},
			})
			consumer.RegisterHandler(messaging.TypeStoryRun, a.story.HandleStoryRunMessage)

			if err := consumer.Start(ctx); err != nil {
				return err
			}
			go consumer.MonitorDLQ(ctx, dlqThreshold)

			logger.Info(ctx, "worker started", "stream", messaging.StreamStoryRun)
			<-ctx.Done()
			logger.Info(ctx, "worker shutting down")
			consumer.Stop()
			return nil
		},
	}
	cmd.Flags().Int64Var(&dlqThreshold, "dlq-alert", 10, "warn when the dead-letter stream grows beyond this length")
	return cmd
}

// checkWorkerConfig worker 只能读取共享台账中由 serve 登记的运行
func checkWorkerConfig(cfg *config.Config) error {
	if !cfg.Features.Ledger.Enabled {
		return errors.New("worker requires features.ledger.enabled: queued runs are registered in the shared ledger")
	}
	return nil
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
