package interfaces

import (
	"context"
)

// JobEnqueuer 写接口只负责入队，返回任务ID后立即响应，不等待落库
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType string, args interface{}) (string, error)
}
