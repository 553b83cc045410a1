package port

import (
	"context"

	"z-novel-storygen/internal/domain/entity"
	wfmodel "z-novel-storygen/internal/workflow/model"
)

// StageObserver 接收流水线进度通知。实现自行处理错误，不得阻断流水线。
type StageObserver interface {
	OnStageStart(ctx context.Context, stage entity.Stage)
	OnStageEnd(ctx context.Context, stage entity.Stage, preview string, err error)
	OnChapter(ctx context.Context, chapter wfmodel.ExpandedChapter, total int)
}

// NopObserver 空实现
type NopObserver struct{}

func (NopObserver) OnStageStart(context.Context, entity.Stage)              {}
func (NopObserver) OnStageEnd(context.Context, entity.Stage, string, error) {}
func (NopObserver) OnChapter(context.Context, wfmodel.ExpandedChapter, int) {}
