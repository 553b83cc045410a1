package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "z-novel-storygen/pkg/errors"
)

func TestNewChapterTasks(t *testing.T) {
	units := []string{"1. 起", "2. 承", "3. 转"}
	tasks := NewChapterTasks(units, 800)
	require.Len(t, tasks, 3)

	for i, task := range tasks {
		assert.Equal(t, i, task.Index)
		assert.Equal(t, units[i], task.Unit)
		assert.Equal(t, 800, task.Length)
		assert.Equal(t, units, task.Units)
		assert.Equal(t, "1. 起\n\n2. 承\n\n3. 转", task.OutlineContext())
	}

	units[0] = "changed"
	assert.Equal(t, "1. 起", tasks[0].Units[0], "tasks keep their own copy of the list")
}

func TestNewChapterTasks_Empty(t *testing.T) {
	assert.Empty(t, NewChapterTasks(nil, 1000))
}

func TestRunParams_Validate(t *testing.T) {
	valid := RunParams{Topic: "灯塔", Rounds: 3, ChapterCount: 3, ChapterLength: 500, Concurrency: 1}
	require.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(*RunParams){
		"blank topic":      func(p *RunParams) { p.Topic = "  " },
		"zero chapters":    func(p *RunParams) { p.ChapterCount = 0 },
		"negative length":  func(p *RunParams) { p.ChapterLength = -1 },
		"zero rounds":      func(p *RunParams) { p.Rounds = 0 },
		"negative workers": func(p *RunParams) { p.Concurrency = -2 },
	} {
		p := valid
		mutate(&p)
		err := p.Validate()
		require.Error(t, err, name)
		assert.Equal(t, apperrors.CodeInvalidParam, apperrors.CodeOf(err), name)
	}
}
