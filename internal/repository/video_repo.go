package repository

import (
	"context"
	"errors"
	"fmt"

	"VideoSuggest/internal/interfaces"
	"VideoSuggest/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// videoBatchSize 批量写入视频的单批条数
	videoBatchSize = 100
	// countChunkSize 批量统计票数时 IN 列表的最大长度
	countChunkSize = 500
)

// VideoRepository 视频目录仓储
type VideoRepository struct {
	db *gorm.DB
}

// NewVideoRepository 作为同步任务的通用入库接口使用
func NewVideoRepository(db *gorm.DB) interfaces.PlatformRepository {
	return &VideoRepository{db: db}
}

// NewVideoRepositoryInstance 返回具体类型，供需要目录查询的调用方使用
func NewVideoRepositoryInstance(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// SaveVideos 通用入库逻辑（所有平台共用）：已存在的视频只刷新平台字段，不覆盖人工导入的课程信息
func (r *VideoRepository) SaveVideos(ctx context.Context, videos []*model.Video) error {
	if len(videos) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "video_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "published_at"}),
		}).CreateInBatches(videos, videoBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("保存视频失败: %w", err)
	}
	return nil
}

// SaveVideoInfos 导入课程元数据，按批写入；已存在的视频只更新课程字段
func (r *VideoRepository) SaveVideoInfos(ctx context.Context, infos []*model.VideoInfo) (int, error) {
	videos := make([]*model.Video, 0, len(infos))
	for _, info := range infos {
		if err := info.Validate(); err != nil {
			return 0, err
		}
		videos = append(videos, info.ToVideo())
	}
	if len(videos) == 0 {
		return 0, nil
	}

	for start := 0; start < len(videos); start += videoBatchSize {
		end := min(start+videoBatchSize, len(videos))
		batch := videos[start:end]
		if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "video_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"main_level", "common_sub_level", "specialized_level", "lecture_title", "lesson_name", "batch",
			}),
		}).Create(batch).Error; err != nil {
			return start, fmt.Errorf("导入课程信息失败: %w, 批次起点: %d", err, start)
		}
	}
	return len(videos), nil
}

// CountVideos 视频总数
func (r *VideoRepository) CountVideos(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Video{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("统计视频数量失败: %w", err)
	}
	return total, nil
}

// GetVideo 通过 video_id 获取视频
func (r *VideoRepository) GetVideo(ctx context.Context, videoID string) (*model.Video, error) {
	var v model.Video
	if err := r.db.WithContext(ctx).Where("video_id = ?", videoID).Take(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 视频 %s", model.ErrNotFound, videoID)
		}
		return nil, fmt.Errorf("查询视频失败: %w", err)
	}
	return &v, nil
}

// ListCatalog 按发布时间倒序（无发布时间的排最后）列出视频；relatedOnly 时只保留多数票认为“相关”的视频。
// 过滤与返回的票数来自同一次统计，避免两次查询之间有新投票导致结果自相矛盾
func (r *VideoRepository) ListCatalog(ctx context.Context, relatedOnly bool) ([]*model.CatalogVideo, error) {
	var videos []*model.Video
	if err := r.db.WithContext(ctx).Model(&model.Video{}).
		Order("published_at IS NULL").
		Order("published_at DESC").
		Order("video_id").
		Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("查询视频目录失败: %w", err)
	}

	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.VideoID
	}
	counts, err := r.relatedCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*model.CatalogVideo, 0, len(videos))
	for _, v := range videos {
		c := counts[v.VideoID]
		isRelated := c.related > c.notRelated
		if relatedOnly && !isRelated {
			continue
		}
		out = append(out, &model.CatalogVideo{
			Video:           *v,
			RelatedVotes:    c.related,
			NotRelatedVotes: c.notRelated,
			IsRelated:       isRelated,
		})
	}
	return out, nil
}

type relatedCount struct {
	related    int64
	notRelated int64
}

// relatedCounts 批量统计每个视频“相关/不相关”两个选项的票数
func (r *VideoRepository) relatedCounts(ctx context.Context, videoIDs []string) (map[string]relatedCount, error) {
	counts := make(map[string]relatedCount, len(videoIDs))
	for start := 0; start < len(videoIDs); start += countChunkSize {
		end := min(start+countChunkSize, len(videoIDs))

		var rows []struct {
			VideoID   string
			IsRelated bool
			Total     int64
		}
		if err := r.db.WithContext(ctx).Model(&model.RelatedSuggestion{}).
			Select("video_id, is_related, SUM(approval_count) AS total").
			Where("video_id IN ?", videoIDs[start:end]).
			Group("video_id, is_related").
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("统计相关票数失败: %w", err)
		}
		for _, row := range rows {
			c := counts[row.VideoID]
			if row.IsRelated {
				c.related += row.Total
			} else {
				c.notRelated += row.Total
			}
			counts[row.VideoID] = c
		}
	}
	return counts, nil
}
