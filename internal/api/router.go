package api

import (
	"VideoSuggest/internal/model"

	"github.com/gin-gonic/gin"
)

// Handlers 需要注册路由的全部处理器
type Handlers struct {
	Suggestion *SuggestionHandler
	Video      *VideoHandler
	Job        *JobHandler
	Sync       *SyncHandler
}

// RegisterRoutes 注册 /api 下的全部路由
func RegisterRoutes(r gin.IRouter, h Handlers, limiter *RateLimiter) {
	g := r.Group("/api")

	create := limiter.For(ClassCreate)
	read := limiter.For(ClassRead)
	vote := limiter.For(ClassVote)
	admin := limiter.For(ClassAdmin)

	// 四类文本建议
	for _, kind := range model.TextKinds {
		g.POST("/videos/:video_id/"+kind.Name+"-suggestions", create, h.Suggestion.CreateSuggestion(kind))
		g.GET("/videos/:video_id/"+kind.Name+"-suggestions", read, h.Suggestion.ListSuggestions(kind))
		g.POST("/"+kind.Name+"-suggestions/:suggestion_id/vote", vote, h.Suggestion.VoteSuggestion(kind))
	}

	// 是否相关
	g.GET("/videos/:video_id/related-suggestions", read, h.Suggestion.ListRelated)
	g.POST("/videos/:video_id/related-vote", vote, h.Suggestion.VoteRelated)

	// 视频目录
	g.GET("/videos", read, h.Video.ListVideos)
	g.GET("/videos/count", read, h.Video.CountVideos)
	g.POST("/videos", admin, h.Video.ImportVideos)

	g.GET("/jobs/:job_id", read, h.Job.GetJob)

	// 平台同步
	g.POST("/sync/platform/:platform", admin, h.Sync.SyncPlatformHandler)
	g.GET("/sync/platform/:platform", read, h.Sync.LatestRunHandler)
	g.GET("/platforms/:platform/count", admin, h.Sync.PlatformCountHandler)
}
