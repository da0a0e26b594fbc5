package api

import (
	"net/http"

	"VideoSuggest/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type JobHandler struct {
	svc    *service.SuggestionService
	logger *logrus.Logger
}

func NewJobHandler(svc *service.SuggestionService, logger *logrus.Logger) *JobHandler {
	return &JobHandler{svc: svc, logger: logger}
}

// GetJob GET /api/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	st, err := h.svc.JobStatus(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		writeError(c, h.logger, "查询任务状态", err)
		return
	}
	respond(c, http.StatusOK, "job status fetched", st)
}
