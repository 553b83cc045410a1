package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cloudwego/eino/schema"

	"z-novel-storygen/internal/config"
	llmctx "z-novel-storygen/internal/domain/service"
	workflowport "z-novel-storygen/internal/workflow/port"
	apperrors "z-novel-storygen/pkg/errors"
	"z-novel-storygen/pkg/logger"
	"z-novel-storygen/pkg/metrics"
)

var errEmptyCompletion = errors.New("empty llm response")

// CompletionService 为每次运行创建带独立预算的 EinoCompleter
type CompletionService struct {
	factory  workflowport.ChatModelFactory
	provider string
	retry    config.RetryConfig
	pricing  config.PricingConfig
}

var _ workflowport.CompleterFactory = (*CompletionService)(nil)

func NewCompletionService(factory workflowport.ChatModelFactory, cfg *config.LLMConfig) *CompletionService {
	return &CompletionService{
		factory:  factory,
		provider: cfg.DefaultProvider,
		retry:    cfg.Retry,
		pricing:  cfg.Pricing,
	}
}

func (s *CompletionService) NewCompleter(investment float64) workflowport.Completer {
	return NewEinoCompleter(s.factory, s.provider, s.retry, NewBudget(investment, s.pricing))
}

// EinoCompleter 把提示词作为单条 user 消息发给 ChatModel；上游失败按指数退避重试
type EinoCompleter struct {
	factory  workflowport.ChatModelFactory
	provider string
	retry    config.RetryConfig
	budget   *Budget
}

func NewEinoCompleter(factory workflowport.ChatModelFactory, provider string, retry config.RetryConfig, budget *Budget) *EinoCompleter {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = 500 * time.Millisecond
	}
	if retry.MaxInterval < retry.InitialInterval {
		retry.MaxInterval = retry.InitialInterval
	}
	return &EinoCompleter{factory: factory, provider: provider, retry: retry, budget: budget}
}

func (c *EinoCompleter) Budget() *Budget { return c.budget }

func (c *EinoCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.budget.Check(); err != nil {
		return "", err
	}

	ctx = llmctx.WithProvider(ctx, c.provider)
	chatModel, err := c.factory.Get(ctx, c.provider)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeLLMProviderError, "failed to get chat model")
	}

	workflow := llmctx.WorkflowFromContext(ctx)
	msgs := []*schema.Message{schema.UserMessage(prompt)}

	attempt := 0
	out, err := backoff.Retry(ctx, func() (*schema.Message, error) {
		attempt++
		msg, err := chatModel.Generate(ctx, msgs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			return nil, errEmptyCompletion
		}
		return msg, nil
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.retry.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			metrics.LLMRetriesTotal.WithLabelValues(workflow).Inc()
			logger.Warn(ctx, "llm call failed, retrying",
				"workflow", workflow,
				"provider", c.provider,
				"attempt", attempt,
				"wait", wait.String(),
				"error", err.Error(),
			)
		}),
	)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeLLMCallFailed, fmt.Sprintf("completion failed after %d attempt(s)", attempt))
	}

	if usage := usageOf(out); usage != nil {
		cost := c.budget.Charge(usage.PromptTokens, usage.CompletionTokens)
		logger.Debug(ctx, "llm usage charged",
			"workflow", workflow,
			"prompt_tokens", usage.PromptTokens,
			"completion_tokens", usage.CompletionTokens,
			"cost", cost,
			"spent", c.budget.Spent(),
		)
	}
	return out.Content, nil
}

func (c *EinoCompleter) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval
	return b
}

func usageOf(msg *schema.Message) *schema.TokenUsage {
	if msg == nil || msg.ResponseMeta == nil {
		return nil
	}
	return msg.ResponseMeta.Usage
}
