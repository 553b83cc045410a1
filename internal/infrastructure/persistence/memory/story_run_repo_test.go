package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-storygen/internal/domain/entity"
	"z-novel-storygen/internal/domain/repository"
)

func TestStoryRunRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryRunRepository()

	run := entity.NewStoryRun("r1", "灯塔", 3, 500, 3, 3)
	require.NoError(t, repo.Create(ctx, run))
	require.Error(t, repo.Create(ctx, run), "duplicate id")

	got, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "灯塔", got.Topic)

	got.Topic = "mutated"
	again, _ := repo.GetByID(ctx, "r1")
	assert.Equal(t, "灯塔", again.Topic, "stored value is a copy")

	run.Start()
	require.NoError(t, repo.Update(ctx, run))
	again, _ = repo.GetByID(ctx, "r1")
	assert.Equal(t, entity.RunStatusRunning, again.Status)

	missing, err := repo.GetByID(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, missing)
	require.Error(t, repo.Update(ctx, entity.NewStoryRun("absent", "t", 1, 1, 0, 3)))
}

func TestStoryRunRepository_ListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryRunRepository()
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		run := entity.NewStoryRun(fmt.Sprintf("r%d", i), "t", 1, 1, 0, 3)
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i%2 == 0 {
			run.Complete("out.txt")
		}
		require.NoError(t, repo.Create(ctx, run))
	}

	page, err := repo.List(ctx, nil, repository.NewPagination(1, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "r4", page.Items[0].ID, "newest first")
	assert.Equal(t, "r3", page.Items[1].ID)

	completed, err := repo.List(ctx, &repository.StoryRunFilter{Status: entity.RunStatusCompleted}, repository.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), completed.Total)

	beyond, err := repo.List(ctx, nil, repository.NewPagination(9, 10))
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.NotNil(t, beyond.Items)
}
