package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"VideoSuggest/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncRunRepository 同步执行记录
type SyncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Start 记录一次同步开始
func (r *SyncRunRepository) Start(ctx context.Context, platform string) (*model.SyncRun, error) {
	run := &model.SyncRun{
		Platform:  platform,
		Status:    model.SyncStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("记录同步开始失败: %w", err)
	}
	return run, nil
}

// Finish 记录同步结束，runErr 非空时标记失败并保存错误信息
func (r *SyncRunRepository) Finish(ctx context.Context, run *model.SyncRun, fetched int, runErr error) error {
	details := map[string]interface{}{"fetched": fetched}
	status := model.SyncStatusSuccess
	if runErr != nil {
		status = model.SyncStatusFailed
		details["error"] = runErr.Error()
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	run.Status = status
	run.Fetched = fetched
	run.Details = datatypes.JSON(raw)
	run.FinishedAt = &now
	if err := r.db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":      status,
		"fetched":     fetched,
		"details":     run.Details,
		"finished_at": now,
	}).Error; err != nil {
		return fmt.Errorf("记录同步结束失败: %w", err)
	}
	return nil
}

// Latest 某平台最近一次同步记录
func (r *SyncRunRepository) Latest(ctx context.Context, platform string) (*model.SyncRun, error) {
	var run model.SyncRun
	if err := r.db.WithContext(ctx).
		Where("platform = ?", platform).
		Order("id DESC").
		Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s 尚无同步记录", model.ErrNotFound, platform)
		}
		return nil, fmt.Errorf("查询同步记录失败: %w", err)
	}
	return &run, nil
}
