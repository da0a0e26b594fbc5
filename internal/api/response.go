package api

import (
	"errors"
	"net/http"

	"VideoSuggest/internal/model"
	"VideoSuggest/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Response 所有接口统一的返回结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message})
}

// accepted 写接口只返回任务ID，结果通过 GET /jobs/:job_id 查询
func accepted(c *gin.Context, message, jobID string) {
	respond(c, http.StatusAccepted, message, gin.H{"job_id": jobID})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSyncInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError 业务错误原样返回给调用方；存储/队列故障只记录日志，对外给出通用信息
func writeError(c *gin.Context, logger *logrus.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).WithField("path", c.FullPath()).Errorf("%s失败", op)
		fail(c, status, "internal server error")
		return
	}
	logger.WithError(err).WithField("path", c.FullPath()).Debugf("%s被拒绝", op)
	fail(c, status, err.Error())
}
