package interfaces

import (
	"context"

	"VideoSuggest/internal/model"
)

// PlatformAdapter 所有视频平台必须实现的核心接口
type PlatformAdapter interface {
	GetName() string                                                    // 平台名称
	GetType() model.PlatformType                                        // 平台类型
	FetchVideos(ctx context.Context) ([]*model.PlatformRawVideo, error) // 拉取频道全部视频
	CountVideos(ctx context.Context) (int64, error)                     // 频道统计中的视频总数
	ConvertToDBModel(raw []*model.PlatformRawVideo) []*model.Video      // 转换为数据库模型
}

// PlatformRepository 通用数据库操作接口
type PlatformRepository interface {
	SaveVideos(ctx context.Context, videos []*model.Video) error
}
