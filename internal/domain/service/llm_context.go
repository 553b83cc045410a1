// Package service 定义跨层共享的领域服务辅助
package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeyRunID    llmCtxKey = "llm_run_id"
)

const unknown = "unknown"

// WithWorkflow 标记当前 LLM 调用所属的流水线阶段（outline/segment/chapter）
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return withString(ctx, llmCtxKeyWorkflow, workflow)
}

// WithProvider 标记当前 LLM 调用使用的提供商
func WithProvider(ctx context.Context, provider string) context.Context {
	return withString(ctx, llmCtxKeyProvider, provider)
}

// WithRunID 标记当前 LLM 调用所属的运行
func WithRunID(ctx context.Context, runID string) context.Context {
	return withString(ctx, llmCtxKeyRunID, runID)
}

func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	return WithProvider(WithWorkflow(ctx, workflow), provider)
}

func WorkflowFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyWorkflow)
}

func ProviderFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyProvider)
}

func RunIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyRunID)
}

func withString(ctx context.Context, key llmCtxKey, value string) context.Context {
	if ctx == nil {
		return nil
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func stringFromContext(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknown
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}
