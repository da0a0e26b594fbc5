package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"VideoSuggest/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/rueidis"
	"github.com/sirupsen/logrus"
)

// 限流类别
const (
	ClassCreate = "create"
	ClassRead   = "read"
	ClassVote   = "vote"
	ClassAdmin  = "admin"
)

// RateLimiter Redis 固定窗口计数，key = 类别 + 客户端IP + 窗口起点
type RateLimiter struct {
	client rueidis.Client
	cfg    config.RateLimitConfig
	logger *logrus.Logger
	now    func() time.Time
}

func NewRateLimiter(client rueidis.Client, cfg config.RateLimitConfig, logger *logrus.Logger) *RateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RateLimiter{client: client, cfg: cfg, logger: logger, now: time.Now}
}

// For 返回指定类别的限流中间件
func (l *RateLimiter) For(class string) gin.HandlerFunc {
	var limit int
	switch class {
	case ClassCreate:
		limit = l.cfg.Create
	case ClassRead:
		limit = l.cfg.Read
	case ClassVote:
		limit = l.cfg.Vote
	case ClassAdmin:
		limit = l.cfg.Admin
	}
	return l.limit(class, limit)
}

func (l *RateLimiter) limit(class string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.cfg.Enabled || limit <= 0 {
			c.Next()
			return
		}

		now := l.now()
		windowStart := now.Truncate(l.cfg.Window)
		key := fmt.Sprintf("ratelimit:%s:%s:%d", class, c.ClientIP(), windowStart.Unix())
		ctx := c.Request.Context()

		count, err := l.client.Do(ctx, l.client.B().Incr().Key(key).Build()).AsInt64()
		if err != nil {
			// Redis 不可用时放行
			l.logger.WithError(err).WithField("class", class).Warn("限流计数失败，放行请求")
			c.Next()
			return
		}
		if count == 1 {
			ttl := int64(math.Ceil(l.cfg.Window.Seconds()))
			if err := l.client.Do(ctx, l.client.B().Expire().Key(key).Seconds(ttl).Build()).Error(); err != nil {
				l.logger.WithError(err).WithField("key", key).Warn("设置限流窗口过期时间失败")
			}
		}

		if count > int64(limit) {
			retryAfter := int(math.Ceil(windowStart.Add(l.cfg.Window).Sub(now).Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(retryAfter, 1)))
			fail(c, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		c.Next()
	}
}
