package main

import (
	"context"
	"fmt"

	storyapp "z-novel-storygen/internal/application/story"
	"z-novel-storygen/internal/config"
	"z-novel-storygen/internal/domain/repository"
	"z-novel-storygen/internal/infrastructure/llm"
	"z-novel-storygen/internal/infrastructure/messaging"
	"z-novel-storygen/internal/infrastructure/persistence/memory"
	"z-novel-storygen/internal/infrastructure/persistence/postgres"
	redisinfra "z-novel-storygen/internal/infrastructure/persistence/redis"
	"z-novel-storygen/internal/infrastructure/storage"
	einoobs "z-novel-storygen/internal/observability/eino"
	"z-novel-storygen/internal/workflow/pipeline"
	workflowprompt "z-novel-storygen/internal/workflow/prompt"
	"z-novel-storygen/pkg/logger"
	"z-novel-storygen/pkg/tracer"
)

// appOptions 各子命令对基础设施的需求
type appOptions struct {
	serviceName string
	needRedis   bool
	// enqueue 为 true 时 Submit 投递到 Redis Stream，否则进程内执行
	enqueue bool
}

// app 手工装配的依赖图
type app struct {
	cfg      *config.Config
	pg       *postgres.Client
	redis    *redisinfra.Client
	producer *messaging.Producer
	story    *storyapp.Service
	closers  []func(context.Context)
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close(ctx)
		}
	}()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: opts.serviceName,
		Version:     Version,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
		Insecure:    cfg.Observability.Tracing.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, func(ctx context.Context) {
		if err := shutdown(ctx); err != nil {
			logger.Error(ctx, "failed to shutdown tracer", err)
		}
	})

	einoobs.Init()

	var runs repository.StoryRunRepository = memory.NewStoryRunRepository()
	if cfg.Features.Ledger.Enabled {
		a.pg, err = postgres.NewClient(ctx, &cfg.Database.Postgres)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) { _ = a.pg.Close() })
		if cfg.Database.Postgres.AutoMigrate {
			if err := a.pg.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		runs = postgres.NewStoryRunRepository(a.pg)
	}

	if opts.needRedis || opts.enqueue || cfg.Features.Events.Enabled {
		a.redis, err = redisinfra.NewClient(ctx, &cfg.Cache.Redis)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) { _ = a.redis.Close() })
		a.producer = messaging.NewProducer(a.redis.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
	}

	completions := llm.NewCompletionService(llm.NewEinoFactory(&cfg.LLM), &cfg.LLM)
	runner := pipeline.New(completions, storage.NewOSFileWriter(), workflowprompt.NewRegistry(), pipeline.Options{
		OutputDir:      cfg.Pipeline.OutputDir,
		FilePrefix:     cfg.Pipeline.FilePrefix,
		PersistPartial: cfg.Pipeline.PersistPartial,
	})

	var svcOpts []storyapp.Option
	if opts.enqueue {
		svcOpts = append(svcOpts, storyapp.WithJobPublisher(a.producer))
	}
	if cfg.Features.Events.Enabled {
		svcOpts = append(svcOpts, storyapp.WithEventPublisher(a.producer))
	}
	a.story = storyapp.NewService(runner, runs, cfg.Pipeline, svcOpts...)
	return a, nil
}

// Close 逆序释放资源
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}
