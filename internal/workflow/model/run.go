package model

import (
	"strings"

	apperrors "z-novel-storygen/pkg/errors"
)

// StageCount 流水线阶段数：大纲、拆分、扩写
const StageCount = 3

// RunParams 一次运行的参数
type RunParams struct {
	RunID         string
	Topic         string
	Investment    float64 // 花费上限（美元），<= 0 不限
	Rounds        int
	ChapterCount  int
	ChapterLength int
	Concurrency   int
}

func (p RunParams) Validate() error {
	switch {
	case strings.TrimSpace(p.Topic) == "":
		return apperrors.ErrInvalidParam.WithDetail("topic is required")
	case p.ChapterCount <= 0:
		return apperrors.ErrInvalidParam.WithDetail("chapter_count must be positive")
	case p.ChapterLength <= 0:
		return apperrors.ErrInvalidParam.WithDetail("chapter_length must be positive")
	case p.Rounds <= 0:
		return apperrors.ErrInvalidParam.WithDetail("rounds must be positive")
	case p.Concurrency < 0:
		return apperrors.ErrInvalidParam.WithDetail("concurrency must not be negative")
	}
	return nil
}

// RunResult 运行结果
type RunResult struct {
	RunID        string `json:"run_id,omitempty"`
	ArtifactPath string `json:"artifact_path"`
	Chapters     int    `json:"chapters"`
	Separators   int    `json:"separators"`
	Runes        int    `json:"runes"`
	Message      string `json:"message"`
}
