package story

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-storygen/internal/config"
	"z-novel-storygen/internal/domain/entity"
	"z-novel-storygen/internal/domain/repository"
	"z-novel-storygen/internal/infrastructure/messaging"
	"z-novel-storygen/internal/infrastructure/persistence/memory"
	"z-novel-storygen/internal/infrastructure/storage"
	"z-novel-storygen/internal/workflow/pipeline"
	"z-novel-storygen/internal/workflow/workflowtest"
	apperrors "z-novel-storygen/pkg/errors"
)

var testDefaults = config.PipelineConfig{
	DefaultTopic:  "游戏高手",
	ChapterCount:  3,
	ChapterLength: 500,
	Investment:    3.0,
	Rounds:        3,
	Concurrency:   1,
}

type recordingPublisher struct {
	mu     sync.Mutex
	jobs   []*messaging.StoryRunMessage
	events []*messaging.StageEventMessage
	err    error
}

func (p *recordingPublisher) PublishStoryRun(_ context.Context, job *messaging.StoryRunMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.jobs = append(p.jobs, job)
	return "1-0", nil
}

func (p *recordingPublisher) PublishStageEvent(_ context.Context, ev *messaging.StageEventMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return "1-0", nil
}

func (p *recordingPublisher) eventNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		names = append(names, ev.Stage+":"+ev.Event)
	}
	return names
}

func newTestService(fake *workflowtest.ScriptedCompleter, opts ...Option) (*Service, *memory.StoryRunRepository, afero.Fs) {
	fs := afero.NewMemMapFs()
	runner := pipeline.New(fake, storage.NewFileWriter(fs), nil, pipeline.Options{
		OutputDir: "out",
		Now:       func() time.Time { return time.Date(2026, 10, 19, 9, 30, 15, 0, time.Local) },
	})
	repo := memory.NewStoryRunRepository()
	opts = append([]Option{WithIDGenerator(func() string { return "run-1" })}, opts...)
	return NewService(runner, repo, testDefaults, opts...), repo, fs
}

func TestService_RunNowCompletesAndRecordsProgress(t *testing.T) {
	events := &recordingPublisher{}
	svc, repo, fs := newTestService(&workflowtest.ScriptedCompleter{}, WithEventPublisher(events))

	run, result, err := svc.RunNow(context.Background(), SubmitRequest{Topic: "灯塔"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, 3, result.Chapters)

	stored, err := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	assert.Equal(t, 3, stored.ChaptersDone)
	assert.Equal(t, result.ArtifactPath, stored.ArtifactPath)

	exists, err := afero.Exists(fs, result.ArtifactPath)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Equal(t, []string{
		"outline:stage_started", "outline:stage_finished",
		"segment:stage_started", "segment:stage_finished",
		"chapter:stage_started",
		"chapter:chapter_done", "chapter:chapter_done", "chapter:chapter_done",
		"chapter:stage_finished",
	}, events.eventNames())
}

func TestService_RunNowAppliesDefaults(t *testing.T) {
	fake := &workflowtest.ScriptedCompleter{}
	svc, _, _ := newTestService(fake)

	run, _, err := svc.RunNow(context.Background(), SubmitRequest{})
	require.NoError(t, err)
	assert.Equal(t, "游戏高手", run.Topic)
	assert.Equal(t, 3, run.Rounds)
	assert.Equal(t, []float64{3.0}, fake.Investments())
}

func TestService_RunNowRecordsFailure(t *testing.T) {
	fake := &workflowtest.ScriptedCompleter{
		Segment: func(string) (string, error) { return "no fenced block here", nil },
	}
	svc, repo, _ := newTestService(fake)

	run, result, err := svc.RunNow(context.Background(), SubmitRequest{Topic: "灯塔"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.CodeDecodeFailed, apperrors.CodeOf(err))

	stored, err := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusFailed, stored.Status)
	assert.Equal(t, string(apperrors.CodeDecodeFailed), stored.ErrorCode)
	assert.Empty(t, stored.ArtifactPath)
}

func TestService_RunNowRejectsInvalidRequest(t *testing.T) {
	svc, repo, _ := newTestService(&workflowtest.ScriptedCompleter{})

	_, _, err := svc.RunNow(context.Background(), SubmitRequest{Topic: "灯塔", ChapterLength: -1})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParam))

	page, err := repo.List(context.Background(), nil, repository.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Empty(t, page.Items, "invalid requests are not recorded")
}

func TestService_SubmitEnqueuesJob(t *testing.T) {
	jobs := &recordingPublisher{}
	fake := &workflowtest.ScriptedCompleter{}
	svc, _, _ := newTestService(fake, WithJobPublisher(jobs))

	run, err := svc.Submit(context.Background(), SubmitRequest{Topic: "灯塔", Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusPending, run.Status)

	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, "run-1", jobs.jobs[0].RunID)
	assert.Equal(t, 2, jobs.jobs[0].Concurrency)
	assert.Empty(t, fake.Calls(), "queued runs are not executed in-process")
}

func TestService_SubmitEnqueueFailureMarksRunFailed(t *testing.T) {
	jobs := &recordingPublisher{err: errors.New("redis down")}
	svc, repo, _ := newTestService(&workflowtest.ScriptedCompleter{}, WithJobPublisher(jobs))

	_, err := svc.Submit(context.Background(), SubmitRequest{Topic: "灯塔"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMessagingError, apperrors.CodeOf(err))

	stored, err := repo.GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusFailed, stored.Status)
}

func TestService_SubmitWithoutQueueExecutesInBackground(t *testing.T) {
	svc, repo, _ := newTestService(&workflowtest.ScriptedCompleter{})

	_, err := svc.Submit(context.Background(), SubmitRequest{Topic: "灯塔"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		run, err := repo.GetByID(context.Background(), "run-1")
		return err == nil && run.Status == entity.RunStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_HandleStoryRunMessage(t *testing.T) {
	jobs := &recordingPublisher{}
	svc, repo, _ := newTestService(&workflowtest.ScriptedCompleter{}, WithJobPublisher(jobs))

	_, err := svc.Submit(context.Background(), SubmitRequest{Topic: "灯塔"})
	require.NoError(t, err)
	msg, err := messaging.NewMessage("run-1", messaging.TypeStoryRun, "run-1", jobs.jobs[0])
	require.NoError(t, err)

	require.NoError(t, svc.HandleStoryRunMessage(context.Background(), msg))
	stored, err := repo.GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, stored.Status)

	// 重复投递不会再次执行
	require.NoError(t, svc.HandleStoryRunMessage(context.Background(), msg))
}

func TestService_ExecuteUnknownRun(t *testing.T) {
	svc, _, _ := newTestService(&workflowtest.ScriptedCompleter{})

	err := svc.Execute(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrRunNotFound))
}

func TestService_ExecuteSwallowsRecordedPipelineFailure(t *testing.T) {
	jobs := &recordingPublisher{}
	fake := &workflowtest.ScriptedCompleter{
		Outline: func(string) (string, error) { return "", apperrors.ErrLLMCallFailed },
	}
	svc, repo, _ := newTestService(fake, WithJobPublisher(jobs))

	_, err := svc.Submit(context.Background(), SubmitRequest{Topic: "灯塔"})
	require.NoError(t, err)
	require.NoError(t, svc.Execute(context.Background(), "run-1"))

	stored, err := repo.GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusFailed, stored.Status)
	assert.Equal(t, string(apperrors.CodeLLMCallFailed), stored.ErrorCode)
}

func TestService_ListFiltersByStatus(t *testing.T) {
	ids := []string{"run-a", "run-b"}
	next := 0
	svc, _, _ := newTestService(&workflowtest.ScriptedCompleter{},
		WithJobPublisher(&recordingPublisher{}),
		WithIDGenerator(func() string { id := ids[next]; next++; return id }),
	)

	_, err := svc.Submit(context.Background(), SubmitRequest{Topic: "甲"})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), SubmitRequest{Topic: "乙"})
	require.NoError(t, err)
	require.NoError(t, svc.Execute(context.Background(), "run-a"))

	page, err := svc.List(context.Background(), entity.RunStatusPending, repository.NewPagination(1, 10))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "run-b", page.Items[0].ID)
}
