package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"VideoSuggest/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetOrCreateRelatedOption 先按 (video_id, is_related) 唯一约束插入（冲突忽略），再读出唯一的那一行。
// 并发首次调用时只有一个插入生效，所有调用方读到同一行。
func (r *suggestionRepository) GetOrCreateRelatedOption(ctx context.Context, videoID string, isRelated bool) (*model.RelatedSuggestion, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, fmt.Errorf("%w: video_id 不能为空", model.ErrValidation)
	}

	option := &model.RelatedSuggestion{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		IsRelated: isRelated,
		CreatedAt: r.now(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}, {Name: "is_related"}},
		DoNothing: true,
	}).Create(option).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("创建相关选项失败: %w, video_id: %s", err, videoID)
	}

	var out model.RelatedSuggestion
	if err := r.db.WithContext(ctx).
		Where("video_id = ? AND is_related = ?", videoID, isRelated).
		Take(&out).Error; err != nil {
		return nil, fmt.Errorf("读取相关选项失败: %w, video_id: %s", err, videoID)
	}
	return &out, nil
}

// ListRelatedOptions “相关”在前，“不相关”在后
func (r *suggestionRepository) ListRelatedOptions(ctx context.Context, videoID string) ([]*model.RelatedSuggestion, error) {
	options := make([]*model.RelatedSuggestion, 0, 2)
	if err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("is_related DESC").
		Find(&options).Error; err != nil {
		return nil, fmt.Errorf("查询相关选项失败: %w, video_id: %s", err, videoID)
	}
	return options, nil
}
