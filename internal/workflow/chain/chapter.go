package chain

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"z-novel-storygen/internal/domain/entity"
	wfmodel "z-novel-storygen/internal/workflow/model"
	wfnode "z-novel-storygen/internal/workflow/node"
	workflowport "z-novel-storygen/internal/workflow/port"
	workflowprompt "z-novel-storygen/internal/workflow/prompt"
	apperrors "z-novel-storygen/pkg/errors"
	"z-novel-storygen/pkg/logger"
	"z-novel-storygen/pkg/metrics"
	"z-novel-storygen/pkg/tracer"
)

// ChapterFunc 每完成一个章节回调一次；并发模式下回调被串行化
type ChapterFunc func(ctx context.Context, chapter wfmodel.ExpandedChapter, total int)

// Expansion 扩写结果。出错时 Document 只包含按顺序连续完成的前缀章节。
type Expansion struct {
	Document wfmodel.Document
	Chapters []wfmodel.ExpandedChapter
	Total    int
}

// ChapterChain 解码章节列表并逐章扩写，按列表顺序折叠为文档
type ChapterChain struct {
	completer   workflowport.Completer
	prompts     *workflowprompt.Registry
	concurrency int
	onChapter   ChapterFunc
}

type ChapterOption func(*ChapterChain)

// WithConcurrency 大于 1 时并发扩写，输出顺序不变
func WithConcurrency(n int) ChapterOption {
	return func(c *ChapterChain) { c.concurrency = n }
}

func WithChapterCallback(fn ChapterFunc) ChapterOption {
	return func(c *ChapterChain) { c.onChapter = fn }
}

func NewChapterChain(completer workflowport.Completer, prompts *workflowprompt.Registry, opts ...ChapterOption) *ChapterChain {
	c := &ChapterChain{completer: completer, prompts: prompts, concurrency: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Expand 解码失败时直接返回错误，不产生任何章节
func (c *ChapterChain) Expand(ctx context.Context, payload wfmodel.SegmentPayload, length int) (*Expansion, error) {
	units, err := wfnode.DecodeChapterUnits(string(payload))
	if err != nil {
		return nil, err
	}
	tasks := wfmodel.NewChapterTasks(units, length)
	logger.Info(ctx, "chapter tasks created", "count", len(tasks), "concurrency", c.concurrency)

	if c.concurrency <= 1 || len(tasks) <= 1 {
		return c.expandSequential(ctx, tasks)
	}
	return c.expandConcurrent(ctx, tasks)
}

func (c *ChapterChain) expandSequential(ctx context.Context, tasks []wfmodel.ChapterTask) (*Expansion, error) {
	out := &Expansion{Total: len(tasks), Chapters: make([]wfmodel.ExpandedChapter, 0, len(tasks))}
	for _, task := range tasks {
		chapter, err := c.expandOne(ctx, task)
		if err != nil {
			return out, err
		}
		out.Chapters = append(out.Chapters, chapter)
		out.Document = out.Document.Append(chapter.Text)
		c.notify(ctx, chapter, len(tasks))
	}
	return out, nil
}

func (c *ChapterChain) expandConcurrent(ctx context.Context, tasks []wfmodel.ChapterTask) (*Expansion, error) {
	results := make([]*wfmodel.ExpandedChapter, len(tasks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, task := range tasks {
		g.Go(func() error {
			chapter, err := c.expandOne(gctx, task)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			results[task.Index] = &chapter
			c.notify(ctx, chapter, len(tasks))
			return nil
		})
	}
	err := g.Wait()

	out := &Expansion{Total: len(tasks), Chapters: make([]wfmodel.ExpandedChapter, 0, len(tasks))}
	for _, r := range results {
		if r == nil {
			break
		}
		out.Chapters = append(out.Chapters, *r)
	}
	out.Document = wfmodel.FoldChapters(out.Chapters)
	return out, err
}

func (c *ChapterChain) expandOne(ctx context.Context, task wfmodel.ChapterTask) (chapter wfmodel.ExpandedChapter, err error) {
	ctx = logger.WithContext(ctx, logger.ChapterIndexKey, task.Index)
	ctx, span := tracer.Start(ctx, "chain.chapter",
		trace.WithAttributes(attribute.Int("chapter.index", task.Index), attribute.Int("chapter.length", task.Length)),
	)
	defer func() { tracer.End(span, err) }()

	prompt, err := c.prompts.Render(ctx, workflowprompt.PromptChapterExpandV1, map[string]any{
		"summary":       task.OutlineContext(),
		"chapter_title": task.Unit,
		"text_length":   task.Length,
	})
	if err != nil {
		return wfmodel.ExpandedChapter{}, err
	}

	resp, err := complete(ctx, c.completer, entity.StageChapter, prompt)
	text := wfnode.NormalizeChapter(resp)
	if err == nil && text == "" {
		// 空章节会让文档以分隔符结尾
		err = apperrors.New(apperrors.CodeLLMCallFailed, "empty chapter text")
	}
	if err != nil {
		metrics.StoryChaptersTotal.WithLabelValues("failed").Inc()
		logger.Error(ctx, "chapter expansion failed", err)
		return wfmodel.ExpandedChapter{}, fmt.Errorf("chapter %d: %w", task.Index+1, err)
	}
	metrics.StoryChaptersTotal.WithLabelValues("completed").Inc()

	return wfmodel.ExpandedChapter{
		Index: task.Index,
		Unit:  task.Unit,
		Text:  text,
	}, nil
}

func (c *ChapterChain) notify(ctx context.Context, chapter wfmodel.ExpandedChapter, total int) {
	if c.onChapter != nil {
		c.onChapter(ctx, chapter, total)
	}
}
