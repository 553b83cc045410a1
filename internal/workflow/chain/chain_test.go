package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-storygen/internal/domain/entity"
	wfmodel "z-novel-storygen/internal/workflow/model"
	workflowprompt "z-novel-storygen/internal/workflow/prompt"
	"z-novel-storygen/internal/workflow/workflowtest"
	apperrors "z-novel-storygen/pkg/errors"
	"z-novel-storygen/pkg/logger"
)

var prompts = workflowprompt.NewRegistry()

func TestOutlineChain_ForwardsResponseUnmodified(t *testing.T) {
	raw := "  这不是编号格式\n\n\n\n第二段也没有编号  "
	fake := &workflowtest.ScriptedCompleter{
		Outline: func(string) (string, error) { return raw, nil },
	}

	outline, err := NewOutlineChain(fake, prompts).Generate(context.Background(), "a lone lighthouse keeper", 3)
	require.NoError(t, err)
	assert.Equal(t, wfmodel.Outline(raw), outline)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, string(entity.StageOutline), calls[0].Stage)
	assert.Contains(t, calls[0].Prompt, "a lone lighthouse keeper")
	assert.Contains(t, calls[0].Prompt, "共 3 章")
}

func TestOutlineChain_RejectsBlankTopicWithoutCalling(t *testing.T) {
	fake := &workflowtest.ScriptedCompleter{}
	_, err := NewOutlineChain(fake, prompts).Generate(context.Background(), "   ", 3)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.CodeOf(err))
	assert.Empty(t, fake.Calls())
}

func TestOutlineChain_PropagatesCompletionError(t *testing.T) {
	upstream := errors.New("quota exceeded")
	fake := &workflowtest.ScriptedCompleter{
		Outline: func(string) (string, error) { return "", upstream },
	}
	_, err := NewOutlineChain(fake, prompts).Generate(context.Background(), "topic", 3)
	assert.ErrorIs(t, err, upstream)
}

func TestSegmentChain_ExtractsFencedPayload(t *testing.T) {
	fake := &workflowtest.ScriptedCompleter{
		Segment: func(string) (string, error) {
			return "结果如下\n" + workflowtest.FencedArray("1. a", "2. b") + "\n完毕", nil
		},
	}

	payload, err := NewSegmentChain(fake, prompts).Segment(context.Background(), "1. a\n\n2. b")
	require.NoError(t, err)
	assert.JSONEq(t, `["1. a", "2. b"]`, string(payload))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, string(entity.StageSegment), calls[0].Stage)
	assert.Contains(t, calls[0].Prompt, "1. a\n\n2. b")
}

func TestSegmentChain_UnfencedResponseIsVerbatim(t *testing.T) {
	raw := `["1. a", "2. b", "3. c"]`
	fake := &workflowtest.ScriptedCompleter{
		Segment: func(string) (string, error) { return raw, nil },
	}

	payload, err := NewSegmentChain(fake, prompts).Segment(context.Background(), "outline")
	require.NoError(t, err)
	assert.Equal(t, wfmodel.SegmentPayload(raw), payload)
}

func TestSegmentChain_PropagatesCompletionError(t *testing.T) {
	fake := &workflowtest.ScriptedCompleter{
		Segment: func(string) (string, error) { return "", errors.New("connection reset") },
	}
	_, err := NewSegmentChain(fake, prompts).Segment(context.Background(), "outline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestChapterChain_SequentialOrderAndFold(t *testing.T) {
	units := []string{"1. 起", "2. 承", "3. 转", "4. 合"}
	fake := &workflowtest.ScriptedCompleter{}

	var notified []int
	chain := NewChapterChain(fake, prompts, WithChapterCallback(func(_ context.Context, c wfmodel.ExpandedChapter, total int) {
		assert.Equal(t, len(units), total)
		notified = append(notified, c.Index)
	}))

	out, err := chain.Expand(context.Background(), wfmodel.SegmentPayload(jsonArray(units)), 600)
	require.NoError(t, err)

	assert.Equal(t, units, fake.ChapterUnits(), "one call per unit, in list order")
	assert.Equal(t, []int{0, 1, 2, 3}, notified)
	require.Len(t, out.Chapters, 4)
	assert.Equal(t, 4, out.Document.Chapters())
	assert.Equal(t, 3, strings.Count(out.Document.String(), wfmodel.ChapterSeparator))
	assert.Equal(t, "正文：1. 起\n\n\n正文：2. 承\n\n\n正文：3. 转\n\n\n正文：4. 合", out.Document.String())

	for _, c := range fake.Calls() {
		assert.Contains(t, c.Prompt, "1. 起\n\n2. 承\n\n3. 转\n\n4. 合", "each task carries the full list")
		assert.Contains(t, c.Prompt, "约 600 字")
	}
}

func TestChapterChain_PermutationPermutesDocument(t *testing.T) {
	expand := func(units []string) string {
		out, err := NewChapterChain(&workflowtest.ScriptedCompleter{}, prompts).
			Expand(context.Background(), wfmodel.SegmentPayload(jsonArray(units)), 100)
		require.NoError(t, err)
		return out.Document.String()
	}

	forward := strings.Split(expand([]string{"甲", "乙", "丙"}), wfmodel.ChapterSeparator)
	permuted := strings.Split(expand([]string{"丙", "甲", "乙"}), wfmodel.ChapterSeparator)
	assert.Equal(t, []string{forward[2], forward[0], forward[1]}, permuted)
}

func TestChapterChain_FailureStopsSequentialExpansion(t *testing.T) {
	boom := errors.New("upstream 503")
	fake := &workflowtest.ScriptedCompleter{
		Chapter: func(n int, unit string) (string, error) {
			if n == 2 {
				return "", boom
			}
			return "正文：" + unit, nil
		},
	}

	out, err := NewChapterChain(fake, prompts).Expand(context.Background(), wfmodel.SegmentPayload(jsonArray([]string{"a", "b", "c"})), 100)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, fake.ChapterUnits(), "third task never starts")
	require.NotNil(t, out)
	assert.Equal(t, 1, out.Document.Chapters())
	assert.Equal(t, "正文：a", out.Document.String())
}

func TestChapterChain_DecodeFailure(t *testing.T) {
	fake := &workflowtest.ScriptedCompleter{}
	out, err := NewChapterChain(fake, prompts).Expand(context.Background(), "第一章\n\n第二章", 100)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, apperrors.CodeDecodeFailed, apperrors.CodeOf(err))
	assert.Empty(t, fake.Calls())
}

func TestChapterChain_EmptyList(t *testing.T) {
	fake := &workflowtest.ScriptedCompleter{}
	out, err := NewChapterChain(fake, prompts).Expand(context.Background(), "[]", 100)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Document.Chapters())
	assert.Equal(t, "", out.Document.String())
	assert.Empty(t, fake.Calls())
}

func TestChapterChain_ConcurrentKeepsUnitOrder(t *testing.T) {
	units := make([]string, 12)
	for i := range units {
		units[i] = fmt.Sprintf("%02d", i+1)
	}
	fake := &workflowtest.ScriptedCompleter{}

	var mu sync.Mutex
	seen := 0
	chain := NewChapterChain(fake, prompts,
		WithConcurrency(4),
		WithChapterCallback(func(context.Context, wfmodel.ExpandedChapter, int) {
			mu.Lock()
			seen++
			mu.Unlock()
		}),
	)
	out, err := chain.Expand(context.Background(), wfmodel.SegmentPayload(jsonArray(units)), 100)
	require.NoError(t, err)

	assert.Equal(t, 12, seen)
	assert.ElementsMatch(t, units, fake.ChapterUnits())
	parts := strings.Split(out.Document.String(), wfmodel.ChapterSeparator)
	require.Len(t, parts, 12)
	for i, p := range parts {
		assert.Equal(t, "正文："+units[i], p)
	}
}

func TestChapterChain_ConcurrentFailureKeepsOrderedPrefix(t *testing.T) {
	boom := errors.New("rate limited")
	fake := &workflowtest.ScriptedCompleter{
		Chapter: func(_ int, unit string) (string, error) {
			if unit == "c" {
				return "", boom
			}
			return "正文：" + unit, nil
		},
	}

	out, err := NewChapterChain(fake, prompts, WithConcurrency(2)).
		Expand(context.Background(), wfmodel.SegmentPayload(jsonArray([]string{"a", "b", "c", "d"})), 100)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, out)
	assert.LessOrEqual(t, out.Document.Chapters(), 2)
	for i, c := range out.Chapters {
		assert.Equal(t, i, c.Index)
	}
}

func TestChapterChain_NormalizesChapterText(t *testing.T) {
	fake := &workflowtest.ScriptedCompleter{
		Chapter: func(int, string) (string, error) { return "\n第一段\n\n\n\n第二段\n\n\n", nil },
	}
	out, err := NewChapterChain(fake, prompts).Expand(context.Background(), `["a", "b"]`, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out.Document.String(), wfmodel.ChapterSeparator))
	assert.Equal(t, "第一段\n\n第二段\n\n\n第一段\n\n第二段", out.Document.String())
}

func TestChapterChain_RejectsBlankChapterText(t *testing.T) {
	fake := &workflowtest.ScriptedCompleter{
		Chapter: func(n int, unit string) (string, error) {
			if n == 3 {
				return "  \n ", nil
			}
			return "正文", nil
		},
	}

	out, err := NewChapterChain(fake, prompts).Expand(context.Background(), `["a", "b", "c"]`, 100)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeLLMCallFailed, apperrors.CodeOf(err))
	require.NotNil(t, out)
	assert.Equal(t, 2, out.Document.Chapters())
	assert.Equal(t, "正文\n\n\n正文", out.Document.String())
	assert.False(t, strings.HasSuffix(out.Document.String(), wfmodel.ChapterSeparator))
}

func TestChapterChain_LogsContextKeysOnce(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "info", "json")
	t.Cleanup(func() { logger.Init("info", "json") })

	fake := &workflowtest.ScriptedCompleter{
		Chapter: func(n int, _ string) (string, error) {
			if n == 2 {
				return "", errors.New("upstream 503")
			}
			return "正文", nil
		},
	}
	ctx := logger.WithContext(context.Background(), logger.StageKey, string(entity.StageChapter))
	_, err := NewChapterChain(fake, prompts).Expand(ctx, `["a", "b"]`, 100)
	require.Error(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.LessOrEqual(t, strings.Count(line, `"stage":`), 1, line)
		assert.LessOrEqual(t, strings.Count(line, `"chapter_index":`), 1, line)
	}
}

func jsonArray(units []string) string {
	fenced := workflowtest.FencedArray(units...)
	return strings.TrimSuffix(strings.TrimPrefix(fenced, "```json"), "```")
}
