package router

import (
	"github.com/gin-gonic/gin"

	"z-novel-storygen/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由；submitLimit 只作用于提交接口
func RegisterV1Routes(v1 *gin.RouterGroup, storyHandler *handler.StoryHandler, submitLimit gin.HandlerFunc) {
	if storyHandler == nil {
		return
	}
	stories := v1.Group("/stories")
	{
		stories.POST("", submitLimit, storyHandler.CreateStory)
		stories.GET("", storyHandler.ListStories)
		stories.GET("/:id", storyHandler.GetStory)
	}
}
