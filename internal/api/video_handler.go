package api

import (
	"net/http"
	"strconv"

	"VideoSuggest/internal/model"
	"VideoSuggest/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// VideoHandler 视频目录接口
type VideoHandler struct {
	svc    *service.SuggestionService
	logger *logrus.Logger
}

func NewVideoHandler(svc *service.SuggestionService, logger *logrus.Logger) *VideoHandler {
	return &VideoHandler{svc: svc, logger: logger}
}

// ListVideos GET /api/videos?related_only=true
func (h *VideoHandler) ListVideos(c *gin.Context) {
	relatedOnly, err := strconv.ParseBool(c.DefaultQuery("related_only", "false"))
	if err != nil {
		fail(c, http.StatusBadRequest, "related_only must be a boolean")
		return
	}

	videos, err := h.svc.Catalog(c.Request.Context(), relatedOnly)
	if err != nil {
		writeError(c, h.logger, "查询视频目录", err)
		return
	}
	respond(c, http.StatusOK, "videos fetched", videos)
}

// CountVideos GET /api/videos/count
func (h *VideoHandler) CountVideos(c *gin.Context) {
	total, err := h.svc.CountVideos(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "统计视频数量", err)
		return
	}
	respond(c, http.StatusOK, "video count fetched", gin.H{"count": total})
}

// ImportVideos POST /api/videos，请求体为课程元数据数组
func (h *VideoHandler) ImportVideos(c *gin.Context) {
	var infos []*model.VideoInfo
	if err := c.ShouldBindJSON(&infos); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	jobID, err := h.svc.SubmitVideoImport(c.Request.Context(), infos)
	if err != nil {
		writeError(c, h.logger, "提交视频导入", err)
		return
	}
	accepted(c, "video import submitted", jobID)
}
