// Package memory 提供进程内的仓储实现，用于无数据库的单次运行与测试
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"z-novel-storygen/internal/domain/entity"
	"z-novel-storygen/internal/domain/repository"
)

// StoryRunRepository 以副本形式保存运行记录，调用方修改返回值不会影响已存数据
type StoryRunRepository struct {
	mu   sync.RWMutex
	runs map[string]entity.StoryRun
}

var _ repository.StoryRunRepository = (*StoryRunRepository)(nil)

func NewStoryRunRepository() *StoryRunRepository {
	return &StoryRunRepository{runs: make(map[string]entity.StoryRun)}
}

func (r *StoryRunRepository) Create(_ context.Context, run *entity.StoryRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("story run %s already exists", run.ID)
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *StoryRunRepository) GetByID(_ context.Context, id string) (*entity.StoryRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (r *StoryRunRepository) Update(_ context.Context, run *entity.StoryRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return fmt.Errorf("story run %s not found", run.ID)
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *StoryRunRepository) List(_ context.Context, filter *repository.StoryRunFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.StoryRun], error) {
	r.mu.RLock()
	matched := make([]*entity.StoryRun, 0, len(r.runs))
	for _, run := range r.runs {
		if filter != nil && filter.Status != "" && run.Status != filter.Status {
			continue
		}
		run := run
		matched = append(matched, &run)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := pagination.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pagination.Limit()
	if end > len(matched) {
		end = len(matched)
	}
	return repository.NewPagedResult(matched[start:end], total, pagination), nil
}
