package llm

import (
	"fmt"
	"sync"

	"z-novel-storygen/internal/config"
	apperrors "z-novel-storygen/pkg/errors"
	"z-novel-storygen/pkg/metrics"
)

// Budget 单次运行的花费上限，按 token 用量和单价累计
type Budget struct {
	mu      sync.Mutex
	max     float64
	spent   float64
	pricing config.PricingConfig
}

// NewBudget max <= 0 表示不限
func NewBudget(max float64, pricing config.PricingConfig) *Budget {
	return &Budget{max: max, pricing: pricing}
}

// Check 已花费达到上限时返回 CodeBudgetExceeded
func (b *Budget) Check() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max > 0 && b.spent >= b.max {
		return apperrors.ErrBudgetExceeded.WithDetail(fmt.Sprintf("spent $%.4f of $%.4f", b.spent, b.max))
	}
	return nil
}

// Charge 记录一次调用的用量，返回本次花费
func (b *Budget) Charge(promptTokens, completionTokens int) float64 {
	if b == nil {
		return 0
	}
	cost := float64(promptTokens)/1000*b.pricing.PromptPer1K +
		float64(completionTokens)/1000*b.pricing.CompletionPer1K

	b.mu.Lock()
	b.spent += cost
	b.mu.Unlock()

	if cost > 0 {
		metrics.LLMBudgetSpent.Add(cost)
	}
	return cost
}

func (b *Budget) Spent() float64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}

// Remaining 不限额时返回 -1
func (b *Budget) Remaining() float64 {
	if b == nil || b.max <= 0 {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if r := b.max - b.spent; r > 0 {
		return r
	}
	return 0
}
