// Package entity 定义领域实体
package entity

import (
	"time"
)

// RunStatus 运行状态
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Stage 流水线阶段
type Stage string

const (
	StageOutline Stage = "outline"
	StageSegment Stage = "segment"
	StageChapter Stage = "chapter"
	StagePersist Stage = "persist"
)

// StoryRun 一次故事生成流水线的运行记录
type StoryRun struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Topic         string     `json:"topic" gorm:"type:text;not null"`
	Status        RunStatus  `json:"status" gorm:"type:varchar(16);index;not null"`
	Stage         Stage      `json:"stage,omitempty" gorm:"type:varchar(16)"`
	Progress      int        `json:"progress"` // 0-100
	ChapterCount  int        `json:"chapter_count"`
	ChapterLength int        `json:"chapter_length"`
	ChaptersDone  int        `json:"chapters_done"`
	Investment    float64    `json:"investment"`
	Rounds        int        `json:"rounds"`
	ArtifactPath  string     `json:"artifact_path,omitempty" gorm:"type:text"`
	ErrorCode     string     `json:"error_code,omitempty" gorm:"type:varchar(16)"`
	ErrorMessage  string     `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (StoryRun) TableName() string {
	return "story_runs"
}

// NewStoryRun 创建待执行的运行记录
func NewStoryRun(id, topic string, chapterCount, chapterLength int, investment float64, rounds int) *StoryRun {
	now := time.Now()
	return &StoryRun{
		ID:            id,
		Topic:         topic,
		Status:        RunStatusPending,
		ChapterCount:  chapterCount,
		ChapterLength: chapterLength,
		Investment:    investment,
		Rounds:        rounds,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Start 开始执行
func (r *StoryRun) Start() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
	r.UpdatedAt = now
}

// Advance 推进阶段与进度，进度只增不减
func (r *StoryRun) Advance(stage Stage, progress int) {
	r.Stage = stage
	if progress > 100 {
		progress = 100
	}
	if progress > r.Progress {
		r.Progress = progress
	}
	r.UpdatedAt = time.Now()
}

// ChapterDone 记录一个章节完成；章节阶段占 20%-95% 的进度区间
func (r *StoryRun) ChapterDone(total int) {
	r.ChaptersDone++
	progress := 95
	if total > 0 {
		progress = 20 + r.ChaptersDone*75/total
	}
	r.Advance(StageChapter, progress)
}

// Complete 完成运行
func (r *StoryRun) Complete(artifactPath string) {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.Stage = StagePersist
	r.Progress = 100
	r.ArtifactPath = artifactPath
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// Fail 标记运行失败
func (r *StoryRun) Fail(code, message string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.ErrorCode = code
	r.ErrorMessage = message
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// IsFinished 是否已结束
func (r *StoryRun) IsFinished() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// Duration 返回运行耗时；未开始或未结束时返回 0
func (r *StoryRun) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}
