package model

// PlatformType 视频平台类型枚举
type PlatformType string

const (
	PlatformYouTube PlatformType = "youtube"
)

// 任务状态
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusRetrying   = "retrying"
	JobStatusFinished   = "finished"
	JobStatusFailed     = "failed" // 业务性失败（校验/不存在），不重试
	JobStatusDead       = "dead"   // 重试次数耗尽
)

// 同步执行状态
const (
	SyncStatusRunning = "running"
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)
