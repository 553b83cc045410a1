// Package story 编排故事生成运行：登记台账、分派执行、记录进度
package story

import (
	"context"
	"time"

	"github.com/google/uuid"

	"z-novel-storygen/internal/config"
	"z-novel-storygen/internal/domain/entity"
	"z-novel-storygen/internal/domain/repository"
	"z-novel-storygen/internal/infrastructure/messaging"
	wfmodel "z-novel-storygen/internal/workflow/model"
	workflowport "z-novel-storygen/internal/workflow/port"
	apperrors "z-novel-storygen/pkg/errors"
	"z-novel-storygen/pkg/logger"
	"z-novel-storygen/pkg/metrics"
	"z-novel-storygen/pkg/tracer"
)

// Runner 流水线执行器
type Runner interface {
	RunObserved(ctx context.Context, params wfmodel.RunParams, observer workflowport.StageObserver) (*wfmodel.RunResult, error)
}

// JobPublisher 投递异步生成任务
type JobPublisher interface {
	PublishStoryRun(ctx context.Context, job *messaging.StoryRunMessage) (string, error)
}

// EventPublisher 发布阶段进度事件
type EventPublisher interface {
	PublishStageEvent(ctx context.Context, ev *messaging.StageEventMessage) (string, error)
}

// SubmitRequest 提交参数，零值字段使用配置默认值
type SubmitRequest struct {
	Topic         string
	Investment    float64
	Rounds        int
	ChapterCount  int
	ChapterLength int
	Concurrency   int
}

// Service 故事运行服务
type Service struct {
	runner   Runner
	runs     repository.StoryRunRepository
	jobs     JobPublisher
	events   EventPublisher
	defaults config.PipelineConfig
	newID    func() string
}

// Option 服务选项
type Option func(*Service)

// WithJobPublisher 设置后 Submit 通过队列分派，否则在进程内异步执行
func WithJobPublisher(p JobPublisher) Option {
	return func(s *Service) { s.jobs = p }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService 创建故事运行服务
func NewService(runner Runner, runs repository.StoryRunRepository, defaults config.PipelineConfig, opts ...Option) *Service {
	s := &Service{
		runner:   runner,
		runs:     runs,
		defaults: defaults,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// params 合并请求与默认值
func (s *Service) params(runID string, req SubmitRequest) wfmodel.RunParams {
	p := wfmodel.RunParams{
		RunID:         runID,
		Topic:         req.Topic,
		Investment:    req.Investment,
		Rounds:        req.Rounds,
		ChapterCount:  req.ChapterCount,
		ChapterLength: req.ChapterLength,
		Concurrency:   req.Concurrency,
	}
	if p.Topic == "" {
		p.Topic = s.defaults.DefaultTopic
	}
	if p.Investment == 0 {
		p.Investment = s.defaults.Investment
	}
	if p.Rounds == 0 {
		p.Rounds = s.defaults.Rounds
	}
	if p.ChapterCount == 0 {
		p.ChapterCount = s.defaults.ChapterCount
	}
	if p.ChapterLength == 0 {
		p.ChapterLength = s.defaults.ChapterLength
	}
	if p.Concurrency == 0 {
		p.Concurrency = s.defaults.Concurrency
	}
	return p
}

// register 校验参数并登记一条待执行的运行记录
func (s *Service) register(ctx context.Context, req SubmitRequest) (*entity.StoryRun, error) {
	params := s.params(s.newID(), req)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	run := entity.NewStoryRun(params.RunID, params.Topic, params.ChapterCount, params.ChapterLength, params.Investment, params.Rounds)
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create story run")
	}
	return run, nil
}

// Submit 登记运行并分派执行，立即返回待执行的记录
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*entity.StoryRun, error) {
	run, err := s.register(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx, logger.RunIDKey, run.ID)

	if s.jobs == nil {
		go func() {
			if err := s.ExecuteWith(context.WithoutCancel(ctx), run.ID, req.Concurrency); err != nil {
				logger.Error(ctx, "background story run failed", err)
			}
		}()
		return run, nil
	}

	requestID, _ := ctx.Value(logger.RequestIDKey).(string)
	_, err = s.jobs.PublishStoryRun(ctx, &messaging.StoryRunMessage{
		RunID:         run.ID,
		Topic:         run.Topic,
		Investment:    run.Investment,
		Rounds:        run.Rounds,
		ChapterCount:  run.ChapterCount,
		ChapterLength: run.ChapterLength,
		Concurrency:   req.Concurrency,
		RequestID:     requestID,
		TraceID:       tracer.TraceID(ctx),
	})
	if err != nil {
		appErr := apperrors.Wrap(err, apperrors.CodeMessagingError, "failed to enqueue story run")
		run.Fail(string(appErr.Code), appErr.Error())
		if uerr := s.runs.Update(ctx, run); uerr != nil {
			logger.Error(ctx, "failed to record enqueue failure", uerr)
		}
		return nil, appErr
	}
	logger.Info(ctx, "story run enqueued", "topic", run.Topic)
	return run, nil
}

// Execute 执行已登记的运行。流水线失败记入台账后返回 nil，只有台账读写失败才返回错误
func (s *Service) Execute(ctx context.Context, runID string) error {
	return s.ExecuteWith(ctx, runID, 0)
}

// ExecuteWith 同 Execute，concurrency 非零时覆盖默认扩写并发度
func (s *Service) ExecuteWith(ctx context.Context, runID string, concurrency int) error {
	run, err := s.Get(ctx, runID)
	if err != nil {
		return err
	}
	if run.IsFinished() || run.Status == entity.RunStatusRunning {
		logger.Warn(ctx, "story run already handled, skipping", "run_id", runID, "status", run.Status)
		return nil
	}
	if concurrency == 0 {
		concurrency = s.defaults.Concurrency
	}
	_, err = s.execute(ctx, run, concurrency)
	if err != nil && !run.IsFinished() {
		return err
	}
	return nil
}

// RunNow 登记并同步执行一次运行，返回最终记录与流水线错误
func (s *Service) RunNow(ctx context.Context, req SubmitRequest) (*entity.StoryRun, *wfmodel.RunResult, error) {
	run, err := s.register(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	concurrency := req.Concurrency
	if concurrency == 0 {
		concurrency = s.defaults.Concurrency
	}
	result, err := s.execute(ctx, run, concurrency)
	return run, result, err
}

func (s *Service) execute(ctx context.Context, run *entity.StoryRun, concurrency int) (*wfmodel.RunResult, error) {
	ctx = logger.WithContext(ctx, logger.RunIDKey, run.ID)

	run.Start()
	if err := s.runs.Update(ctx, run); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to start story run")
	}

	metrics.ActiveRuns.Inc()
	start := time.Now()
	defer func() {
		metrics.ActiveRuns.Dec()
		metrics.StoryRunDuration.Observe(time.Since(start).Seconds())
	}()

	observer := &runObserver{svc: s, run: run}
	result, runErr := s.runner.RunObserved(ctx, wfmodel.RunParams{
		RunID:         run.ID,
		Topic:         run.Topic,
		Investment:    run.Investment,
		Rounds:        run.Rounds,
		ChapterCount:  run.ChapterCount,
		ChapterLength: run.ChapterLength,
		Concurrency:   concurrency,
	}, observer)

	if runErr != nil {
		run.Fail(string(apperrors.CodeOf(runErr)), runErr.Error())
		metrics.StoryRunsTotal.WithLabelValues(string(entity.RunStatusFailed)).Inc()
	} else {
		run.Complete(result.ArtifactPath)
		metrics.StoryRunsTotal.WithLabelValues(string(entity.RunStatusCompleted)).Inc()
	}

	if err := s.runs.Update(ctx, run); err != nil {
		logger.Error(ctx, "failed to record story run outcome", err, "status", run.Status)
		if runErr == nil {
			return result, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to record story run outcome")
		}
	}
	if runErr != nil {
		logger.Error(ctx, "story run failed", runErr, "error_code", run.ErrorCode)
		return nil, runErr
	}
	logger.Info(ctx, "story run completed", "artifact", run.ArtifactPath, "duration_ms", run.Duration().Milliseconds())
	return result, nil
}

// Get 查询运行记录
func (s *Service) Get(ctx context.Context, runID string) (*entity.StoryRun, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load story run")
	}
	if run == nil {
		return nil, apperrors.ErrRunNotFound.WithDetail(runID)
	}
	return run, nil
}

// List 分页列出运行记录
func (s *Service) List(ctx context.Context, status entity.RunStatus, pagination repository.Pagination) (*repository.PagedResult[*entity.StoryRun], error) {
	result, err := s.runs.List(ctx, &repository.StoryRunFilter{Status: status}, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list story runs")
	}
	return result, nil
}

// HandleStoryRunMessage 队列消费者的任务处理入口
func (s *Service) HandleStoryRunMessage(ctx context.Context, msg *messaging.Message) error {
	var job messaging.StoryRunMessage
	if err := msg.UnmarshalPayload(&job); err != nil {
		// 载荷损坏无法重试，直接丢弃
		logger.Error(ctx, "invalid story run payload", err, "message_id", msg.ID)
		return nil
	}
	return s.ExecuteWith(ctx, job.RunID, job.Concurrency)
}
