package chain

import (
	"context"
	"strings"

	"z-novel-storygen/internal/domain/entity"
	wfmodel "z-novel-storygen/internal/workflow/model"
	workflowport "z-novel-storygen/internal/workflow/port"
	workflowprompt "z-novel-storygen/internal/workflow/prompt"
	apperrors "z-novel-storygen/pkg/errors"
)

// OutlineChain 根据主题生成大纲；响应不做任何结构校验
type OutlineChain struct {
	completer workflowport.Completer
	prompts   *workflowprompt.Registry
}

func NewOutlineChain(completer workflowport.Completer, prompts *workflowprompt.Registry) *OutlineChain {
	return &OutlineChain{completer: completer, prompts: prompts}
}

func (c *OutlineChain) Generate(ctx context.Context, topic string, chapterCount int) (wfmodel.Outline, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", apperrors.ErrInvalidParam.WithDetail("topic is required")
	}
	if chapterCount <= 0 {
		return "", apperrors.ErrInvalidParam.WithDetail("chapter_count must be positive")
	}

	prompt, err := c.prompts.Render(ctx, workflowprompt.PromptOutlineV1, map[string]any{
		"topic":         topic,
		"chapter_count": chapterCount,
	})
	if err != nil {
		return "", err
	}

	resp, err := complete(ctx, c.completer, entity.StageOutline, prompt)
	if err != nil {
		return "", err
	}
	return wfmodel.Outline(resp), nil
}
