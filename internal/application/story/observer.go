package story

import (
	"context"
	"time"

	"z-novel-storygen/internal/domain/entity"
	"z-novel-storygen/internal/infrastructure/messaging"
	wfmodel "z-novel-storygen/internal/workflow/model"
	workflowport "z-novel-storygen/internal/workflow/port"
	"z-novel-storygen/pkg/logger"
)

// 各阶段结束时的进度
var stageProgress = map[entity.Stage]int{
	entity.StageOutline: 10,
	entity.StageSegment: 20,
}

// runObserver 把流水线进度写入台账并发布阶段事件。台账与事件失败只记录日志
type runObserver struct {
	svc *Service
	run *entity.StoryRun
}

var _ workflowport.StageObserver = (*runObserver)(nil)

func (o *runObserver) OnStageStart(ctx context.Context, stage entity.Stage) {
	o.run.Advance(stage, o.run.Progress)
	o.save(ctx)
	o.publish(ctx, &messaging.StageEventMessage{Stage: string(stage), Event: messaging.EventStageStarted})
}

func (o *runObserver) OnStageEnd(ctx context.Context, stage entity.Stage, preview string, err error) {
	ev := &messaging.StageEventMessage{Stage: string(stage), Preview: preview}
	if err != nil {
		ev.Event = messaging.EventStageFailed
		ev.Error = err.Error()
		o.publish(ctx, ev)
		return
	}
	if p, ok := stageProgress[stage]; ok {
		o.run.Advance(stage, p)
		o.save(ctx)
	}
	ev.Event = messaging.EventStageFinished
	o.publish(ctx, ev)
}

func (o *runObserver) OnChapter(ctx context.Context, chapter wfmodel.ExpandedChapter, total int) {
	o.run.ChapterDone(total)
	o.save(ctx)
	o.publish(ctx, &messaging.StageEventMessage{
		Stage:        string(entity.StageChapter),
		Event:        messaging.EventChapterDone,
		ChapterIndex: chapter.Index + 1,
		ChapterTotal: total,
		Preview:      chapter.Unit,
	})
}

func (o *runObserver) save(ctx context.Context) {
	if err := o.svc.runs.Update(ctx, o.run); err != nil {
		logger.Warn(ctx, "failed to update story run progress", "error", err)
	}
}

func (o *runObserver) publish(ctx context.Context, ev *messaging.StageEventMessage) {
	if o.svc.events == nil {
		return
	}
	ev.RunID = o.run.ID
	ev.Progress = o.run.Progress
	ev.At = time.Now()
	if _, err := o.svc.events.PublishStageEvent(ctx, ev); err != nil {
		logger.Warn(ctx, "failed to publish stage event", "error", err, "event", ev.Event)
	}
}
