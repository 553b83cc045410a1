package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoryRun_Lifecycle(t *testing.T) {
	run := NewStoryRun("run-1", "a lone lighthouse keeper", 3, 800, 3.0, 3)
	assert.Equal(t, RunStatusPending, run.Status)
	assert.False(t, run.IsFinished())

	run.Start()
	require.NotNil(t, run.StartedAt)
	assert.Equal(t, RunStatusRunning, run.Status)

	run.Advance(StageOutline, 10)
	run.Advance(StageSegment, 5)
	assert.Equal(t, StageSegment, run.Stage)
	assert.Equal(t, 10, run.Progress, "progress never moves backwards")

	run.ChapterDone(3)
	assert.Equal(t, 45, run.Progress)
	run.ChapterDone(3)
	run.ChapterDone(3)
	assert.Equal(t, 95, run.Progress)
	assert.Equal(t, 3, run.ChaptersDone)

	run.Complete("/tmp/小说-2026-10-19_10-00-00.txt")
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, 100, run.Progress)
	assert.True(t, run.IsFinished())
	assert.GreaterOrEqual(t, run.Duration().Nanoseconds(), int64(0))
}

func TestStoryRun_Fail(t *testing.T) {
	run := NewStoryRun("run-2", "topic", 20, 1000, 0, 3)
	run.Start()
	run.Fail("4007", "malformed model output")

	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "4007", run.ErrorCode)
	assert.True(t, run.IsFinished())
	assert.Empty(t, run.ArtifactPath)
}

func TestStoryRun_DurationZeroBeforeCompletion(t *testing.T) {
	run := NewStoryRun("run-3", "topic", 1, 1, 0, 3)
	assert.Zero(t, run.Duration())
}
