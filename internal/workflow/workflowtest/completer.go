// Package workflowtest 提供流水线测试用的脚本化补全服务
package workflowtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"z-novel-storygen/internal/domain/entity"
	llmctx "z-novel-storygen/internal/domain/service"
	workflowport "z-novel-storygen/internal/workflow/port"
)

const chapterMarker = "你要完成的章节：\n"

// Call 一次补全调用的记录
type Call struct {
	Stage  string
	Prompt string
}

// ScriptedCompleter 按阶段返回预设响应。未设置的阶段使用默认响应：
// 三章大纲、带围栏的三元素数组、"正文：<章节>"。
type ScriptedCompleter struct {
	Outline func(prompt string) (string, error)
	Segment func(prompt string) (string, error)
	// Chapter 的 n 为第几次章节调用（从 1 开始）
	Chapter func(n int, unit string) (string, error)

	mu          sync.Mutex
	calls       []Call
	chapterN    int
	investments []float64
}

var _ workflowport.Completer = (*ScriptedCompleter)(nil)
var _ workflowport.CompleterFactory = (*ScriptedCompleter)(nil)

func (s *ScriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	stage := llmctx.WorkflowFromContext(ctx)

	s.mu.Lock()
	s.calls = append(s.calls, Call{Stage: stage, Prompt: prompt})
	n := 0
	if stage == string(entity.StageChapter) {
		s.chapterN++
		n = s.chapterN
	}
	s.mu.Unlock()

	switch stage {
	case string(entity.StageOutline):
		if s.Outline != nil {
			return s.Outline(prompt)
		}
		return "1. 灯塔亮起\n\n2. 风暴来临\n\n3. 黎明归航", nil
	case string(entity.StageSegment):
		if s.Segment != nil {
			return s.Segment(prompt)
		}
		return "```json\n[\"1. 灯塔亮起\", \"2. 风暴来临\", \"3. 黎明归航\"]\n```", nil
	case string(entity.StageChapter):
		unit := ChapterUnit(prompt)
		if s.Chapter != nil {
			return s.Chapter(n, unit)
		}
		return "正文：" + unit, nil
	default:
		return "", fmt.Errorf("unexpected stage %q", stage)
	}
}

// NewCompleter 记录投入金额并返回自身
func (s *ScriptedCompleter) NewCompleter(investment float64) workflowport.Completer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.investments = append(s.investments, investment)
	return s
}

func (s *ScriptedCompleter) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// ChapterUnits 按调用顺序返回章节调用对应的章节单元
func (s *ScriptedCompleter) ChapterUnits() []string {
	var units []string
	for _, c := range s.Calls() {
		if c.Stage == string(entity.StageChapter) {
			units = append(units, ChapterUnit(c.Prompt))
		}
	}
	return units
}

func (s *ScriptedCompleter) Investments() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.investments...)
}

// ChapterUnit 从章节扩写提示词中取出目标章节
func ChapterUnit(prompt string) string {
	i := strings.LastIndex(prompt, chapterMarker)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(prompt[i+len(chapterMarker):])
}

// FencedArray 把章节单元包装成带 ```json 围栏的响应
func FencedArray(units ...string) string {
	quoted := make([]string, len(units))
	for i, u := range units {
		quoted[i] = fmt.Sprintf("%q", u)
	}
	return "```json\n[" + strings.Join(quoted, ", ") + "]\n```"
}
