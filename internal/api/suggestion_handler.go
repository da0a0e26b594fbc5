package api

import (
	"net/http"
	"strconv"

	"VideoSuggest/internal/model"
	"VideoSuggest/internal/repository"
	"VideoSuggest/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SuggestionHandler 四类文本建议与“是否相关”投票接口
type SuggestionHandler struct {
	svc    *service.SuggestionService
	logger *logrus.Logger
}

func NewSuggestionHandler(svc *service.SuggestionService, logger *logrus.Logger) *SuggestionHandler {
	return &SuggestionHandler{svc: svc, logger: logger}
}

// createSuggestionRequest 兼容旧客户端按类型命名的文本字段
type createSuggestionRequest struct {
	VideoID          string `json:"video_id"`
	Text             string `json:"text"`
	TitleText        string `json:"title_text"`
	DescriptionText  string `json:"description_text"`
	LessonNameText   string `json:"lesson_name_text"`
	LecturerNameText string `json:"lecturer_name_text"`
	IdempotencyKey   string `json:"idempotency_key"`
}

func (r *createSuggestionRequest) text(kind model.Kind) string {
	if r.Text != "" {
		return r.Text
	}
	switch kind {
	case model.KindTitle:
		return r.TitleText
	case model.KindDescription:
		return r.DescriptionText
	case model.KindLessonName:
		return r.LessonNameText
	case model.KindLecturer:
		return r.LecturerNameText
	}
	return ""
}

type voteRequest struct {
	VoterHash string `json:"voter_hash"`
}

type relatedVoteRequest struct {
	IsRelated *bool  `json:"is_related"`
	VoterHash string `json:"voter_hash"`
}

// CreateSuggestion POST /api/videos/:video_id/{kind}-suggestions
func (h *SuggestionHandler) CreateSuggestion(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSuggestionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		key := req.IdempotencyKey
		if key == "" {
			key = c.GetHeader("Idempotency-Key")
		}

		jobID, err := h.svc.SubmitSuggestion(c.Request.Context(), kind.Name, c.Param("video_id"), service.SuggestionInput{
			VideoID:        req.VideoID,
			Text:           req.text(kind),
			IdempotencyKey: key,
		})
		if err != nil {
			writeError(c, h.logger, "提交建议", err)
			return
		}
		accepted(c, "suggestion submitted", jobID)
	}
}

// ListSuggestions GET /api/videos/:video_id/{kind}-suggestions?limit=5
func (h *SuggestionHandler) ListSuggestions(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(repository.DefaultSuggestionLimit)))
		if err != nil {
			fail(c, http.StatusBadRequest, "limit must be an integer")
			return
		}

		list, err := h.svc.TopSuggestions(c.Request.Context(), kind.Name, c.Param("video_id"), limit)
		if err != nil {
			writeError(c, h.logger, "查询建议", err)
			return
		}
		respond(c, http.StatusOK, "suggestions fetched", list)
	}
}

// VoteSuggestion POST /api/{kind}-suggestions/:suggestion_id/vote
func (h *SuggestionHandler) VoteSuggestion(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req voteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		jobID, err := h.svc.SubmitVote(c.Request.Context(), kind.Name, c.Param("suggestion_id"), req.VoterHash)
		if err != nil {
			writeError(c, h.logger, "提交投票", err)
			return
		}
		accepted(c, "vote submitted", jobID)
	}
}

// ListRelated GET /api/videos/:video_id/related-suggestions
func (h *SuggestionHandler) ListRelated(c *gin.Context) {
	options, err := h.svc.RelatedOptions(c.Request.Context(), c.Param("video_id"))
	if err != nil {
		writeError(c, h.logger, "查询相关选项", err)
		return
	}
	respond(c, http.StatusOK, "related suggestions fetched", options)
}

// VoteRelated POST /api/videos/:video_id/related-vote
func (h *SuggestionHandler) VoteRelated(c *gin.Context) {
	var req relatedVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.IsRelated == nil {
		fail(c, http.StatusBadRequest, "is_related is required")
		return
	}

	jobID, err := h.svc.SubmitRelatedVote(c.Request.Context(), c.Param("video_id"), *req.IsRelated, req.VoterHash)
	if err != nil {
		writeError(c, h.logger, "提交相关投票", err)
		return
	}
	accepted(c, "vote submitted", jobID)
}
