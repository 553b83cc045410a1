// Package chain 实现流水线的三个阶段：大纲生成、大纲拆分、章节扩写
package chain

import (
	"context"
	"fmt"
	"unicode/utf8"

	"z-novel-storygen/internal/domain/entity"
	llmctx "z-novel-storygen/internal/domain/service"
	wfnode "z-novel-storygen/internal/workflow/node"
	workflowport "z-novel-storygen/internal/workflow/port"
	"z-novel-storygen/pkg/logger"
)

// complete 以阶段名标记上下文后调用补全服务；错误原样返回
func complete(ctx context.Context, completer workflowport.Completer, stage entity.Stage, prompt string) (string, error) {
	if completer == nil {
		return "", fmt.Errorf("completer not configured")
	}
	ctx = llmctx.WithWorkflow(ctx, string(stage))
	ctx = logger.WithContext(ctx, logger.StageKey, string(stage))
	resp, err := completer.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	logger.Info(ctx, "completion received",
		"runes", utf8.RuneCountInString(resp),
		"preview", wfnode.Preview(resp),
	)
	return resp, nil
}
