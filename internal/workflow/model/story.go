package model

import (
	"strings"
)

// Outline 大纲原文，原样在阶段间传递，不做结构校验
type Outline string

// SegmentPayload 拆分阶段抽取出的章节列表文本（期望为 JSON 字符串数组，由扩写阶段解码）
type SegmentPayload string

// ChapterTask 单个章节的扩写任务，创建后不再修改
type ChapterTask struct {
	Index  int
	Units  []string // 完整章节列表，作为跨章节上下文
	Unit   string
	Length int
}

// NewChapterTasks 按数组顺序为每个章节单元构造一个任务
func NewChapterTasks(units []string, length int) []ChapterTask {
	shared := make([]string, len(units))
	copy(shared, units)

	tasks := make([]ChapterTask, 0, len(units))
	for i, u := range units {
		tasks = append(tasks, ChapterTask{
			Index:  i,
			Units:  shared,
			Unit:   u,
			Length: length,
		})
	}
	return tasks
}

// OutlineContext 把完整章节列表渲染为一段一个单元的文本
func (t ChapterTask) OutlineContext() string {
	return strings.Join(t.Units, "\n\n")
}

// ExpandedChapter 一个任务的扩写结果
type ExpandedChapter struct {
	Index int
	Unit  string
	Text  string
}
