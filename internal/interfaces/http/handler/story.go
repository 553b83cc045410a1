// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	storyapp "z-novel-storygen/internal/application/story"
	"z-novel-storygen/internal/domain/entity"
	"z-novel-storygen/internal/domain/repository"
	"z-novel-storygen/internal/interfaces/http/dto"
	"z-novel-storygen/pkg/logger"
)

// StoryService 故事运行服务
type StoryService interface {
	Submit(ctx context.Context, req storyapp.SubmitRequest) (*entity.StoryRun, error)
	Get(ctx context.Context, runID string) (*entity.StoryRun, error)
	List(ctx context.Context, status entity.RunStatus, pagination repository.Pagination) (*repository.PagedResult[*entity.StoryRun], error)
}

// StoryHandler 故事运行处理器
type StoryHandler struct {
	svc StoryService
}

// NewStoryHandler 创建故事运行处理器
func NewStoryHandler(svc StoryService) *StoryHandler {
	return &StoryHandler{svc: svc}
}

// CreateStory 提交故事生成
// @Summary 提交故事生成
// @Description 登记一次运行并异步执行，立即返回运行记录
// @Tags Stories
// @Accept json
// @Produce json
// @Param body body dto.CreateStoryRequest true "生成参数"
// @Success 202 {object} dto.Response[dto.StoryRunResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /v1/stories [post]
func (h *StoryHandler) CreateStory(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	run, err := h.svc.Submit(ctx, req.ToSubmitRequest())
	if err != nil {
		logger.Error(ctx, "failed to submit story run", err)
		dto.AppError(c, err)
		return
	}
	dto.Accepted(c, dto.ToStoryRunResponse(run))
}

// GetStory 查询运行记录
// @Summary 查询运行记录
// @Tags Stories
// @Produce json
// @Param id path string true "运行 ID"
// @Success 200 {object} dto.Response[dto.StoryRunResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/stories/{id} [get]
func (h *StoryHandler) GetStory(c *gin.Context) {
	run, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryRunResponse(run))
}

// ListStories 分页列出运行记录
// @Summary 运行记录列表
// @Tags Stories
// @Produce json
// @Param status query string false "状态过滤"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.StoryRunResponse]
// @Router /v1/stories [get]
func (h *StoryHandler) ListStories(c *gin.Context) {
	ctx := c.Request.Context()

	var q dto.ListStoriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		dto.BadRequest(c, "invalid query: "+err.Error())
		return
	}

	pagination := repository.NewPagination(q.Page, q.PageSize)
	result, err := h.svc.List(ctx, entity.RunStatus(q.Status), pagination)
	if err != nil {
		logger.Error(ctx, "failed to list story runs", err)
		dto.AppError(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToStoryRunListResponse(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, result.Total, result.TotalPages))
}
