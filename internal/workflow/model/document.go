package model

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// ChapterSeparator 章节之间的分隔符
const ChapterSeparator = "\n\n\n"

const artifactTimeLayout = "2006-01-02_15-04-05"

// Document 累积文档。值类型，Append 返回新值，原值不变。
type Document struct {
	text     string
	chapters int
}

// Append 追加一个章节；除第一章外在其前面加分隔符
func (d Document) Append(chapter string) Document {
	if d.chapters == 0 {
		return Document{text: chapter, chapters: 1}
	}
	return Document{text: d.text + ChapterSeparator + chapter, chapters: d.chapters + 1}
}

// FoldChapters 按顺序折叠章节
func FoldChapters(chapters []ExpandedChapter) Document {
	var doc Document
	for _, c := range chapters {
		doc = doc.Append(c.Text)
	}
	return doc
}

func (d Document) String() string { return d.text }

func (d Document) Bytes() []byte { return []byte(d.text) }

func (d Document) Chapters() int { return d.chapters }

// Separators 已插入的分隔符数量
func (d Document) Separators() int {
	if d.chapters == 0 {
		return 0
	}
	return d.chapters - 1
}

func (d Document) Runes() int { return utf8.RuneCountInString(d.text) }

// ArtifactName 生成 <prefix>-<YYYY-MM-DD_HH-MM-SS>.txt
func ArtifactName(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%s.txt", prefix, at.Format(artifactTimeLayout))
}

// PartialArtifactName 部分结果的文件名
func PartialArtifactName(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%s.partial.txt", prefix, at.Format(artifactTimeLayout))
}
