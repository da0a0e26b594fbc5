package api

import (
	"fmt"
	"net/http"

	"VideoSuggest/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SyncHandler struct {
	syncService *service.SyncService
	logger      *logrus.Logger
}

func NewSyncHandler(syncService *service.SyncService, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// SyncPlatformHandler 手动触发同步指定平台
// @Summary 同步平台视频
// @Param platform path string true "平台名称（youtube）"
// @Router /api/sync/platform/{platform} [post]
func (h *SyncHandler) SyncPlatformHandler(c *gin.Context) {
	platformName := c.Param("platform")

	saved, err := h.syncService.SyncPlatform(c.Request.Context(), platformName)
	if err != nil {
		writeError(c, h.logger, "同步平台", err)
		return
	}
	respond(c, http.StatusOK, fmt.Sprintf("%s synced", platformName), gin.H{"saved": saved})
}

// LatestRunHandler GET /api/sync/platform/:platform 最近一次同步记录
func (h *SyncHandler) LatestRunHandler(c *gin.Context) {
	run, err := h.syncService.LatestRun(c.Request.Context(), c.Param("platform"))
	if err != nil {
		writeError(c, h.logger, "查询同步记录", err)
		return
	}
	respond(c, http.StatusOK, "latest sync run fetched", run)
}

// PlatformCountHandler GET /api/platforms/:platform/count 平台频道统计中的视频数
func (h *SyncHandler) PlatformCountHandler(c *gin.Context) {
	count, err := h.syncService.PlatformVideoCount(c.Request.Context(), c.Param("platform"))
	if err != nil {
		writeError(c, h.logger, "查询平台视频数", err)
		return
	}
	respond(c, http.StatusOK, "video count fetched successfully", gin.H{"count": count})
}
