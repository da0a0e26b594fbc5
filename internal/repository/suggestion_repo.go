package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"VideoSuggest/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSuggestionLimit 默认返回的建议条数
const DefaultSuggestionLimit = 5

// errAlreadyVoted 仅用于让事务回滚，对外转换为 model.VoteAlreadyVoted
var errAlreadyVoted = errors.New("already voted")

// SuggestionRepository 建议与投票仓储，四类文本建议与“是否相关”共用一套实现
type SuggestionRepository interface {
	// CreateSuggestion 新建一条建议，approval_count=0；相同文本不去重
	CreateSuggestion(ctx context.Context, kind model.Kind, videoID, text string) (*model.Suggestion, error)
	// CreateSuggestionOnce 带幂等键创建：同一个键重复提交只会得到首次创建的那一条
	CreateSuggestionOnce(ctx context.Context, kind model.Kind, videoID, text, idempotencyKey string) (*model.Suggestion, error)
	// GetSuggestion 按ID读取建议
	GetSuggestion(ctx context.Context, kind model.Kind, id string) (*model.Suggestion, error)
	// ListTopSuggestions 按 approval_count 降序、created_at 降序取前 limit 条，limit<=0 不限
	ListTopSuggestions(ctx context.Context, kind model.Kind, videoID string, limit int) ([]*model.Suggestion, error)
	// RecordVote 记录一票并原子地把 approval_count 加一
	RecordVote(ctx context.Context, kind model.Kind, suggestionID, voterHash string) (model.VoteOutcome, error)
	// GetOrCreateRelatedOption 幂等地确保 (videoID, isRelated) 选项存在并返回
	GetOrCreateRelatedOption(ctx context.Context, videoID string, isRelated bool) (*model.RelatedSuggestion, error)
	// ListRelatedOptions 返回视频的（至多两条）相关/不相关选项
	ListRelatedOptions(ctx context.Context, videoID string) ([]*model.RelatedSuggestion, error)
}

type suggestionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSuggestionRepository 创建 SuggestionRepository 实例
func NewSuggestionRepository(db *gorm.DB) SuggestionRepository {
	return &suggestionRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func validateSuggestion(kind model.Kind, videoID, text string) error {
	if !kind.IsText() {
		return fmt.Errorf("%w: %s 不支持文本建议", model.ErrValidation, kind.Name)
	}
	if strings.TrimSpace(videoID) == "" {
		return fmt.Errorf("%w: video_id 不能为空", model.ErrValidation)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: 建议内容不能为空", model.ErrValidation)
	}
	return nil
}

func (r *suggestionRepository) newSuggestion(videoID, text string) *model.Suggestion {
	return &model.Suggestion{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		Text:      text,
		CreatedAt: r.now(),
	}
}

func insertSuggestion(tx *gorm.DB, kind model.Kind, s *model.Suggestion) error {
	return tx.Table(kind.Table).Create(map[string]interface{}{
		"id":             s.ID,
		"video_id":       s.VideoID,
		kind.TextColumn:  s.Text,
		"approval_count": 0,
		"created_at":     s.CreatedAt,
	}).Error
}

func selectSuggestion(tx *gorm.DB, kind model.Kind) *gorm.DB {
	return tx.Table(kind.Table).
		Select(fmt.Sprintf("id, video_id, %s AS text, approval_count, created_at", kind.TextColumn))
}

// CreateSuggestion 新建建议
func (r *suggestionRepository) CreateSuggestion(ctx context.Context, kind model.Kind, videoID, text string) (*model.Suggestion, error) {
	if err := validateSuggestion(kind, videoID, text); err != nil {
		return nil, err
	}
	s := r.newSuggestion(videoID, text)
	if err := insertSuggestion(r.db.WithContext(ctx), kind, s); err != nil {
		return nil, fmt.Errorf("保存%s建议失败: %w, video_id: %s", kind.Name, err, videoID)
	}
	return s, nil
}

// CreateSuggestionOnce 幂等键登记与建议写入在同一事务内完成
func (r *suggestionRepository) CreateSuggestionOnce(ctx context.Context, kind model.Kind, videoID, text, idempotencyKey string) (*model.Suggestion, error) {
	if idempotencyKey == "" {
		return r.CreateSuggestion(ctx, kind, videoID, text)
	}
	if err := validateSuggestion(kind, videoID, text); err != nil {
		return nil, err
	}

	var out *model.Suggestion
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s := r.newSuggestion(videoID, text)

		// 1. 抢占幂等键，冲突说明同一请求已处理过（或正在另一个事务中处理，提交后再读）
		claim := &model.SuggestionRequest{
			IdempotencyKey: idempotencyKey,
			Kind:           kind.Name,
			SuggestionID:   s.ID,
			CreatedAt:      s.CreatedAt,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(claim)
		if res.Error != nil {
			return fmt.Errorf("登记幂等键失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var existing model.SuggestionRequest
			if err := tx.Where("idempotency_key = ?", idempotencyKey).First(&existing).Error; err != nil {
				return fmt.Errorf("读取幂等键失败: %w", err)
			}
			if existing.Kind != kind.Name {
				return fmt.Errorf("%w: 幂等键已用于%s建议", model.ErrValidation, existing.Kind)
			}
			found, err := r.getSuggestion(tx, kind, existing.SuggestionID)
			if err != nil {
				return err
			}
			out = found
			return nil
		}

		// 2. 首次处理：写入建议
		if err := insertSuggestion(tx, kind, s); err != nil {
			return fmt.Errorf("保存%s建议失败: %w, video_id: %s", kind.Name, err, videoID)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetSuggestion 按ID读取建议
func (r *suggestionRepository) GetSuggestion(ctx context.Context, kind model.Kind, id string) (*model.Suggestion, error) {
	return r.getSuggestion(r.db.WithContext(ctx), kind, id)
}

func (r *suggestionRepository) getSuggestion(tx *gorm.DB, kind model.Kind, id string) (*model.Suggestion, error) {
	var s model.Suggestion
	if err := selectSuggestion(tx, kind).Where("id = ?", id).Take(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s建议 %s", model.ErrNotFound, kind.Name, id)
		}
		return nil, fmt.Errorf("查询%s建议失败: %w", kind.Name, err)
	}
	return &s, nil
}

// ListTopSuggestions 票数相同时新提交的排在前面；最后按 id 保证结果稳定
func (r *suggestionRepository) ListTopSuggestions(ctx context.Context, kind model.Kind, videoID string, limit int) ([]*model.Suggestion, error) {
	if !kind.IsText() {
		return nil, fmt.Errorf("%w: %s 不支持文本建议", model.ErrValidation, kind.Name)
	}
	db := selectSuggestion(r.db.WithContext(ctx), kind).
		Where("video_id = ?", videoID).
		Order("approval_count DESC").
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}

	suggestions := make([]*model.Suggestion, 0)
	if err := db.Find(&suggestions).Error; err != nil {
		return nil, fmt.Errorf("查询%s建议失败: %w, video_id: %s", kind.Name, err, videoID)
	}
	return suggestions, nil
}

// RecordVote 在同一事务内：查重 -> 写投票流水 -> approval_count+1。
// 并发的重复投票由唯一约束兜底，失败方回滚并返回 VoteAlreadyVoted。
func (r *suggestionRepository) RecordVote(ctx context.Context, kind model.Kind, suggestionID, voterHash string) (model.VoteOutcome, error) {
	if strings.TrimSpace(voterHash) == "" {
		return model.VoteAlreadyVoted, fmt.Errorf("%w: voter_hash 不能为空", model.ErrValidation)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 建议必须存在
		var exists int64
		if err := tx.Table(kind.Table).Where("id = ?", suggestionID).Count(&exists).Error; err != nil {
			return fmt.Errorf("查询%s建议失败: %w", kind.Name, err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s建议 %s", model.ErrNotFound, kind.Name, suggestionID)
		}

		// 2. 已投过票直接回滚
		var voted int64
		if err := tx.Table(kind.VoteTable).
			Where(kind.VoteFK+" = ? AND voter_hash = ?", suggestionID, voterHash).
			Count(&voted).Error; err != nil {
			return fmt.Errorf("查询投票记录失败: %w", err)
		}
		if voted > 0 {
			return errAlreadyVoted
		}

		// 3. 写投票流水，唯一约束冲突说明并发请求抢先写入
		res := tx.Table(kind.VoteTable).Clauses(clause.OnConflict{DoNothing: true}).Create(map[string]interface{}{
			"id":         uuid.NewString(),
			kind.VoteFK:  suggestionID,
			"voter_hash": voterHash,
			"created_at": r.now(),
		})
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return errAlreadyVoted
		}
		if res.Error != nil {
			return fmt.Errorf("保存投票记录失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errAlreadyVoted
		}

		// 4. 计数加一
		res = tx.Table(kind.Table).
			Where("id = ?", suggestionID).
			UpdateColumn("approval_count", gorm.Expr("approval_count + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("更新票数失败: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("更新票数影响行数异常: %d", res.RowsAffected)
		}
		return nil
	})

	switch {
	case err == nil:
		return model.VoteAccepted, nil
	case errors.Is(err, errAlreadyVoted):
		return model.VoteAlreadyVoted, nil
	default:
		return model.VoteAlreadyVoted, err
	}
}
