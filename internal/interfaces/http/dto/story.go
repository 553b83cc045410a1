package dto

import (
	"time"

	storyapp "z-novel-storygen/internal/application/story"
	"z-novel-storygen/internal/domain/entity"
)

// CreateStoryRequest 提交故事生成请求，省略的字段使用服务端默认值
type CreateStoryRequest struct {
	Topic         string  `json:"topic" binding:"omitempty,max=500"`
	Investment    float64 `json:"investment" binding:"omitempty,gte=0"`
	Rounds        int     `json:"n_round" binding:"omitempty,gte=1"`
	ChapterCount  int     `json:"chapter_count" binding:"omitempty,gte=1,lte=200"`
	ChapterLength int     `json:"chapter_length" binding:"omitempty,gte=1,lte=20000"`
	Concurrency   int     `json:"concurrency" binding:"omitempty,gte=1,lte=32"`
}

func (r *CreateStoryRequest) ToSubmitRequest() storyapp.SubmitRequest {
	return storyapp.SubmitRequest{
		Topic:         r.Topic,
		Investment:    r.Investment,
		Rounds:        r.Rounds,
		ChapterCount:  r.ChapterCount,
		ChapterLength: r.ChapterLength,
		Concurrency:   r.Concurrency,
	}
}

// ListStoriesQuery 运行列表查询参数
type ListStoriesQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=pending running completed failed"`
	Page     int    `form:"page" binding:"omitempty,gte=1"`
	PageSize int    `form:"page_size" binding:"omitempty,gte=1,lte=100"`
}

// StoryRunResponse 运行记录
type StoryRunResponse struct {
	ID            string  `json:"id"`
	Topic         string  `json:"topic"`
	Status        string  `json:"status"`
	Stage         string  `json:"stage,omitempty"`
	Progress      int     `json:"progress"`
	ChapterCount  int     `json:"chapter_count"`
	ChapterLength int     `json:"chapter_length"`
	ChaptersDone  int     `json:"chapters_done"`
	Investment    float64 `json:"investment"`
	Rounds        int     `json:"n_round"`
	ArtifactPath  string  `json:"artifact_path,omitempty"`
	ErrorCode     string  `json:"error_code,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
	CreatedAt     string  `json:"created_at"`
	StartedAt     string  `json:"started_at,omitempty"`
	CompletedAt   string  `json:"completed_at,omitempty"`
}

func ToStoryRunResponse(run *entity.StoryRun) *StoryRunResponse {
	if run == nil {
		return nil
	}
	return &StoryRunResponse{
		ID:            run.ID,
		Topic:         run.Topic,
		Status:        string(run.Status),
		Stage:         string(run.Stage),
		Progress:      run.Progress,
		ChapterCount:  run.ChapterCount,
		ChapterLength: run.ChapterLength,
		ChaptersDone:  run.ChaptersDone,
		Investment:    run.Investment,
		Rounds:        run.Rounds,
		ArtifactPath:  run.ArtifactPath,
		ErrorCode:     run.ErrorCode,
		ErrorMessage:  run.ErrorMessage,
		CreatedAt:     formatTime(&run.CreatedAt),
		StartedAt:     formatTime(run.StartedAt),
		CompletedAt:   formatTime(run.CompletedAt),
	}
}

func ToStoryRunListResponse(runs []*entity.StoryRun) []*StoryRunResponse {
	out := make([]*StoryRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, ToStoryRunResponse(run))
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
