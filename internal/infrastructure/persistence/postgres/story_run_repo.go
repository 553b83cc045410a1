package postgres

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"z-novel-storygen/internal/domain/entity"
	"z-novel-storygen/internal/domain/repository"
)

// StoryRunRepository 运行台账仓储实现
type StoryRunRepository struct {
	client *Client
}

var _ repository.StoryRunRepository = (*StoryRunRepository)(nil)

func NewStoryRunRepository(client *Client) *StoryRunRepository {
	return &StoryRunRepository{client: client}
}

func (r *StoryRunRepository) Create(ctx context.Context, run *entity.StoryRun) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRunRepository.Create",
		trace.WithAttributes(attribute.String("story.run_id", run.ID)))
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(run).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create story run: %w", err)
	}
	return nil
}

func (r *StoryRunRepository) GetByID(ctx context.Context, id string) (*entity.StoryRun, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRunRepository.GetByID",
		trace.WithAttributes(attribute.String("story.run_id", id)))
	defer span.End()

	var run entity.StoryRun
	if err := r.client.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story run: %w", err)
	}
	return &run, nil
}

func (r *StoryRunRepository) Update(ctx context.Context, run *entity.StoryRun) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRunRepository.Update",
		trace.WithAttributes(attribute.String("story.run_id", run.ID)))
	defer span.End()

	if err := r.client.db.WithContext(ctx).Save(run).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update story run: %w", err)
	}
	return nil
}

func (r *StoryRunRepository) List(ctx context.Context, filter *repository.StoryRunFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.StoryRun], error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRunRepository.List")
	defer span.End()

	filtered := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&entity.StoryRun{})
		if filter != nil && filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		return db
	}
	db := r.client.db.WithContext(ctx)

	var total int64
	if err := db.Scopes(filtered).Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count story runs: %w", err)
	}

	var runs []*entity.StoryRun
	if err := db.Scopes(filtered).
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&runs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list story runs: %w", err)
	}

	return repository.NewPagedResult(runs, total, pagination), nil
}
