package node

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// PreviewRunes 诊断日志中展示的生成文本长度（按字符计）
const PreviewRunes = 100

func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// Preview 返回前 PreviewRunes 个字符，用于日志
func Preview(s string) string {
	return TruncateByRunes(s, PreviewRunes)
}

var blankRun = regexp.MustCompile(`\n{3,}`)

// NormalizeChapter 去掉首尾空白并把章节内部连续三个及以上的换行收敛为一个空行，
// 保证章节分隔符只出现在章节之间。
func NormalizeChapter(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return blankRun.ReplaceAllString(strings.TrimSpace(text), "\n\n")
}
