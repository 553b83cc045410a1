package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/compose"

	"z-novel-storygen/internal/domain/entity"
	wfmodel "z-novel-storygen/internal/workflow/model"
	wfnode "z-novel-storygen/internal/workflow/node"
	workflowport "z-novel-storygen/internal/workflow/port"
	workflowprompt "z-novel-storygen/internal/workflow/prompt"
)

// SegmentChain 把大纲拆分为章节列表。
// 只做围栏抽取，不解析 JSON；解码由扩写阶段完成。
type SegmentChain struct {
	completer workflowport.Completer
	prompts   *workflowprompt.Registry

	chainOnce sync.Once
	chain     compose.Runnable[wfmodel.Outline, wfmodel.SegmentPayload]
	chainErr  error
}

func NewSegmentChain(completer workflowport.Completer, prompts *workflowprompt.Registry) *SegmentChain {
	return &SegmentChain{completer: completer, prompts: prompts}
}

func (c *SegmentChain) Segment(ctx context.Context, outline wfmodel.Outline) (wfmodel.SegmentPayload, error) {
	chain, err := c.getChain()
	if err != nil {
		return "", err
	}
	return chain.Invoke(ctx, outline)
}

func (c *SegmentChain) getChain() (compose.Runnable[wfmodel.Outline, wfmodel.SegmentPayload], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *SegmentChain) buildChain(ctx context.Context) (compose.Runnable[wfmodel.Outline, wfmodel.SegmentPayload], error) {
	if c.prompts == nil {
		return nil, fmt.Errorf("prompt registry not configured")
	}
	chain := compose.NewChain[wfmodel.Outline, wfmodel.SegmentPayload]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, outline wfmodel.Outline) (string, error) {
			return c.prompts.Render(ctx, workflowprompt.PromptSegmentV1, map[string]any{
				"content": string(outline),
			})
		}),
		compose.WithNodeName("segment.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, prompt string) (string, error) {
			return complete(ctx, c.completer, entity.StageSegment, prompt)
		}),
		compose.WithNodeName("segment.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, resp string) (wfmodel.SegmentPayload, error) {
			return wfmodel.SegmentPayload(wfnode.ExtractFencedPayload(resp)), nil
		}),
		compose.WithNodeName("segment.extract"),
	)

	return chain.Compile(ctx)
}
