package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "z-novel-storygen/pkg/errors"
)

func TestExtractFencedPayload(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "fenced block",
			raw:  "好的，结果如下：\n```json\n[\"1. 开端\", \"2. 转折\"]\n```\n希望有帮助",
			want: "\n[\"1. 开端\", \"2. 转折\"]\n",
		},
		{
			name: "no fence returns input verbatim",
			raw:  `["1. a", "2. b"]`,
			want: `["1. a", "2. b"]`,
		},
		{
			name: "greedy up to last fence",
			raw:  "```json\n[\"a\"]\n```\ntext\n```",
			want: "\n[\"a\"]\n```\ntext\n",
		},
		{
			name: "plain fence without json tag is not extracted",
			raw:  "```\n[\"a\"]\n```",
			want: "```\n[\"a\"]\n```",
		},
		{
			name: "empty input",
			raw:  "",
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractFencedPayload(tc.raw))
		})
	}
}

func TestDecodeChapterUnits_PreservesOrder(t *testing.T) {
	units, err := DecodeChapterUnits(ExtractFencedPayload("```json\n[\"3. 结局\", \"1. 开端\", \"2. 转折\"]\n```"))
	require.NoError(t, err)
	assert.Equal(t, []string{"3. 结局", "1. 开端", "2. 转折"}, units)
}

func TestDecodeChapterUnits_EmptyArray(t *testing.T) {
	units, err := DecodeChapterUnits(" [] ")
	require.NoError(t, err)
	assert.NotNil(t, units)
	assert.Empty(t, units)
}

func TestDecodeChapterUnits_RejectsMalformed(t *testing.T) {
	for _, payload := range []string{
		"",
		"null",
		`{"chapters": ["a"]}`,
		`[1, 2, 3]`,
		`["unterminated"`,
		"第一章 开端\n\n第二章 转折",
	} {
		_, err := DecodeChapterUnits(payload)
		require.Error(t, err, payload)
		assert.Equal(t, apperrors.CodeDecodeFailed, apperrors.CodeOf(err), payload)
	}
}
