package prompt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RenderOutline(t *testing.T) {
	r := NewRegistry()
	out, err := r.Render(context.Background(), PromptOutlineV1, map[string]any{
		"topic":         "a lone lighthouse keeper",
		"chapter_count": 3,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "「a lone lighthouse keeper」")
	assert.Contains(t, out, "共 3 章")
	assert.NotContains(t, out, "{topic}")
}

func TestRegistry_RenderSegment(t *testing.T) {
	r := NewRegistry()
	out, err := r.Render(context.Background(), PromptSegmentV1, map[string]any{
		"content": "1. 开端\n\n2. 结局",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "```json")
	assert.Contains(t, out, "文本数据：\n1. 开端\n\n2. 结局")
}

func TestRegistry_RenderChapter(t *testing.T) {
	r := NewRegistry()
	out, err := r.Render(context.Background(), PromptChapterExpandV1, map[string]any{
		"summary":       "1. 开端\n\n2. 结局",
		"chapter_title": "2. 结局",
		"text_length":   1000,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "约 1000 字")
	assert.Contains(t, out, "你要完成的章节：\n2. 结局")
}

func TestRegistry_CachesTemplates(t *testing.T) {
	r := NewRegistry()
	a, err := r.ChatTemplate(PromptSegmentV1)
	require.NoError(t, err)
	b, err := r.ChatTemplate(PromptSegmentV1)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestRegistry_UnknownPrompt(t *testing.T) {
	_, err := NewRegistry().ChatTemplate(PromptID("nope"))
	require.Error(t, err)

	var nilRegistry *Registry
	_, err = nilRegistry.ChatTemplate(PromptOutlineV1)
	require.Error(t, err)
}
