// Package pipeline 驱动一次完整的故事生成：按轮次依次执行大纲、拆分、扩写阶段并持久化文档
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-storygen/internal/domain/entity"
	wfchain "z-novel-storygen/internal/workflow/chain"
	wfmodel "z-novel-storygen/internal/workflow/model"
	wfnode "z-novel-storygen/internal/workflow/node"
	workflowport "z-novel-storygen/internal/workflow/port"
	workflowprompt "z-novel-storygen/internal/workflow/prompt"
	apperrors "z-novel-storygen/pkg/errors"
	"z-novel-storygen/pkg/logger"
	"z-novel-storygen/pkg/metrics"
	"z-novel-storygen/pkg/tracer"
)

// Options 持久化相关配置
type Options struct {
	OutputDir      string
	FilePrefix     string
	PersistPartial bool
	Now            func() time.Time
}

type Pipeline struct {
	completers workflowport.CompleterFactory
	writer     workflowport.ArtifactWriter
	prompts    *workflowprompt.Registry
	opts       Options
}

func New(completers workflowport.CompleterFactory, writer workflowport.ArtifactWriter, prompts *workflowprompt.Registry, opts Options) *Pipeline {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.FilePrefix == "" {
		opts.FilePrefix = "小说"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if prompts == nil {
		prompts = workflowprompt.NewRegistry()
	}
	return &Pipeline{completers: completers, writer: writer, prompts: prompts, opts: opts}
}

// round 一个调度轮次执行一个阶段
type round struct {
	stage entity.Stage
	run   func(ctx context.Context) (preview string, err error)
}

// Run 执行流水线，文档持久化后或出现致命错误时返回
func (p *Pipeline) Run(ctx context.Context, params wfmodel.RunParams) (*wfmodel.RunResult, error) {
	return p.RunObserved(ctx, params, nil)
}

// RunObserved 同 Run，并向 observer 通知阶段进度
func (p *Pipeline) RunObserved(ctx context.Context, params wfmodel.RunParams, observer workflowport.StageObserver) (result *wfmodel.RunResult, err error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if p.completers == nil || p.writer == nil {
		return nil, fmt.Errorf("pipeline dependencies not configured")
	}
	if observer == nil {
		observer = workflowport.NopObserver{}
	}
	if params.RunID != "" {
		ctx = logger.WithContext(ctx, logger.RunIDKey, params.RunID)
	}

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("story.run_id", params.RunID),
		attribute.Int("story.chapter_count", params.ChapterCount),
		attribute.Int("story.chapter_length", params.ChapterLength),
		attribute.Int("story.rounds", params.Rounds),
	))
	defer func() { tracer.End(span, err) }()

	logger.Info(ctx, "pipeline started",
		"topic", params.Topic,
		"investment", params.Investment,
		"rounds", params.Rounds,
		"chapter_count", params.ChapterCount,
		"chapter_length", params.ChapterLength,
	)

	completer := p.completers.NewCompleter(params.Investment)

	var (
		outline wfmodel.Outline
		payload wfmodel.SegmentPayload
	)
	rounds := []round{
		{
			stage: entity.StageOutline,
			run: func(ctx context.Context) (string, error) {
				var err error
				outline, err = wfchain.NewOutlineChain(completer, p.prompts).Generate(ctx, params.Topic, params.ChapterCount)
				return wfnode.Preview(string(outline)), err
			},
		},
		{
			stage: entity.StageSegment,
			run: func(ctx context.Context) (string, error) {
				var err error
				payload, err = wfchain.NewSegmentChain(completer, p.prompts).Segment(ctx, outline)
				return wfnode.Preview(string(payload)), err
			},
		},
		{
			stage: entity.StageChapter,
			run: func(ctx context.Context) (string, error) {
				var err error
				result, err = p.expand(ctx, completer, payload, params, observer)
				if result != nil {
					return result.ArtifactPath, err
				}
				return "", err
			},
		},
	}

	for i, r := range rounds {
		if i >= params.Rounds {
			err = apperrors.ErrRoundsExhausted.WithDetail(
				fmt.Sprintf("%d of %d stages ran, stopped before %s", i, len(rounds), r.stage))
			logger.Warn(ctx, "round limit reached", "rounds", params.Rounds, "next_stage", r.stage)
			return nil, err
		}
		if err = p.runRound(ctx, r, observer); err != nil {
			return nil, err
		}
	}

	result.RunID = params.RunID
	logger.Info(ctx, "pipeline finished",
		"artifact", result.ArtifactPath,
		"chapters", result.Chapters,
		"runes", result.Runes,
	)
	return result, nil
}

func (p *Pipeline) runRound(ctx context.Context, r round, observer workflowport.StageObserver) (err error) {
	ctx = logger.WithContext(ctx, logger.StageKey, string(r.stage))
	ctx, span := tracer.Start(ctx, "pipeline.stage."+string(r.stage))
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		metrics.StoryStageDuration.WithLabelValues(string(r.stage), status).Observe(time.Since(start).Seconds())
		tracer.End(span, err)
	}()

	observer.OnStageStart(ctx, r.stage)
	preview, err := r.run(ctx)
	observer.OnStageEnd(ctx, r.stage, preview, err)
	if err != nil {
		logger.Error(ctx, "stage failed", err)
		return err
	}
	logger.Info(ctx, "stage finished", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// expand 扩写全部章节并一次性写出文档
func (p *Pipeline) expand(ctx context.Context, completer workflowport.Completer, payload wfmodel.SegmentPayload, params wfmodel.RunParams, observer workflowport.StageObserver) (*wfmodel.RunResult, error) {
	chapters := wfchain.NewChapterChain(completer, p.prompts,
		wfchain.WithConcurrency(params.Concurrency),
		wfchain.WithChapterCallback(observer.OnChapter),
	)

	expansion, err := chapters.Expand(ctx, payload, params.ChapterLength)
	if err != nil {
		if expansion != nil {
			p.persistPartial(ctx, expansion)
		}
		return nil, err
	}

	doc := expansion.Document
	name := wfmodel.ArtifactName(p.opts.FilePrefix, p.opts.Now())
	path, err := p.writer.Write(ctx, p.opts.OutputDir, name, doc.Bytes())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to persist document")
	}
	metrics.StoryDocumentRunes.Observe(float64(doc.Runes()))

	return &wfmodel.RunResult{
		ArtifactPath: path,
		Chapters:     doc.Chapters(),
		Separators:   doc.Separators(),
		Runes:        doc.Runes(),
		Message:      fmt.Sprintf("%d chapters written to %s", doc.Chapters(), path),
	}, nil
}

// persistPartial 仅在开启 PersistPartial 时写出已按顺序完成的章节；写入失败只记录日志
func (p *Pipeline) persistPartial(ctx context.Context, expansion *wfchain.Expansion) {
	if !p.opts.PersistPartial || expansion.Document.Chapters() == 0 {
		return
	}
	name := wfmodel.PartialArtifactName(p.opts.FilePrefix, p.opts.Now())
	path, err := p.writer.Write(ctx, p.opts.OutputDir, name, expansion.Document.Bytes())
	if err != nil {
		logger.Error(ctx, "failed to persist partial document", err)
		return
	}
	logger.Warn(ctx, "partial document persisted",
		"path", path,
		"chapters", expansion.Document.Chapters(),
		"total", expansion.Total,
	)
}
