// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-storygen/internal/domain/entity"
)

// StoryRunFilter 运行记录过滤条件
type StoryRunFilter struct {
	Status entity.RunStatus
}

// StoryRunRepository 运行台账仓储接口
type StoryRunRepository interface {
	// Create 创建运行记录
	Create(ctx context.Context, run *entity.StoryRun) error

	// GetByID 根据 ID 获取运行记录，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.StoryRun, error)

	// Update 更新运行记录
	Update(ctx context.Context, run *entity.StoryRun) error

	// List 按创建时间倒序分页列出运行记录
	List(ctx context.Context, filter *StoryRunFilter, pagination Pagination) (*PagedResult[*entity.StoryRun], error)
}
