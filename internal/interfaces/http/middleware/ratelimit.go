package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"z-novel-storygen/internal/interfaces/http/dto"
	"z-novel-storygen/pkg/logger"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// KeyFunc 由客户端 IP 与路由生成限流键
	KeyFunc func(clientIP, endpoint string) string
}

// RateLimit 按客户端 IP 与路由限流。limiter 为 nil 时不限流，限流器故障时放行
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.Requests <= 0 {
		cfg.Requests = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(ip, endpoint string) string { return "ratelimit:" + ip + ":" + endpoint }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := cfg.KeyFunc(c.ClientIP(), c.FullPath())

		allowed, err := limiter.Allow(ctx, key, cfg.Requests, cfg.Window)
		if err != nil {
			logger.Warn(ctx, "rate limiter unavailable, request allowed", "error", err)
			c.Next()
			return
		}
		if !allowed {
			dto.Error(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
