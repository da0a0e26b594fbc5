package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"VideoSuggest/internal/interfaces"
	"VideoSuggest/internal/model"
	"VideoSuggest/internal/repository"

	"github.com/sirupsen/logrus"
)

// ErrSyncInProgress 同一平台的同步正在进行
var ErrSyncInProgress = errors.New("该平台同步正在进行中")

// AdapterSource 已启用平台的适配器来源
type AdapterSource interface {
	GetAdapter(platform model.PlatformType) (interfaces.PlatformAdapter, error)
	ListRegisteredPlatforms() []model.PlatformType
}

// SyncService 拉取视频平台数据并写入 videos 表；平台故障只影响本次同步，不影响投票与建议
type SyncService struct {
	adapters AdapterSource
	repo     interfaces.PlatformRepository
	runs     *repository.SyncRunRepository
	logger   *logrus.Logger

	mu      sync.Mutex
	running map[model.PlatformType]bool
}

func NewSyncService(adapters AdapterSource, repo interfaces.PlatformRepository, runs *repository.SyncRunRepository, logger *logrus.Logger) *SyncService {
	return &SyncService{
		adapters: adapters,
		repo:     repo,
		runs:     runs,
		logger:   logger,
		running:  make(map[model.PlatformType]bool),
	}
}

func (s *SyncService) acquire(platform model.PlatformType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[platform] {
		return false
	}
	s.running[platform] = true
	return true
}

func (s *SyncService) release(platform model.PlatformType) {
	s.mu.Lock()
	delete(s.running, platform)
	s.mu.Unlock()
}

// SyncPlatform 通用同步方法（支持所有平台），返回写入的视频数
func (s *SyncService) SyncPlatform(ctx context.Context, platformName string) (int, error) {
	platform := model.PlatformType(platformName)

	// 1. 获取适配器
	adapter, err := s.adapters.GetAdapter(platform)
	if err != nil {
		return 0, err
	}
	if !s.acquire(platform) {
		return 0, ErrSyncInProgress
	}
	defer s.release(platform)

	// 2. 记录开始
	run, err := s.runs.Start(ctx, platformName)
	if err != nil {
		return 0, err
	}

	// 3. 拉取、转换、入库
	saved, syncErr := s.fetchAndSave(ctx, adapter)

	// 4. 记录结果（失败也要落库，便于排查）
	if err := s.runs.Finish(context.WithoutCancel(ctx), run, saved, syncErr); err != nil {
		s.logger.WithError(err).WithField("platform", platformName).Error("记录同步结果失败")
	}
	if syncErr != nil {
		return 0, syncErr
	}

	s.logger.Infof("%s同步完成，共%d个视频", adapter.GetName(), saved)
	return saved, nil
}

func (s *SyncService) fetchAndSave(ctx context.Context, adapter interfaces.PlatformAdapter) (int, error) {
	raw, err := adapter.FetchVideos(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s拉取视频失败: %w", adapter.GetName(), err)
	}
	if len(raw) == 0 {
		s.logger.Warnf("%s未拉取到视频", adapter.GetName())
		return 0, nil
	}

	videos := adapter.ConvertToDBModel(raw)
	if err := s.repo.SaveVideos(ctx, videos); err != nil {
		return 0, fmt.Errorf("%s入库失败: %w", adapter.GetName(), err)
	}
	return len(videos), nil
}

// SyncAll 依次同步所有已启用平台，单个平台失败只记录日志
func (s *SyncService) SyncAll(ctx context.Context) {
	for _, platform := range s.adapters.ListRegisteredPlatforms() {
		if _, err := s.SyncPlatform(ctx, string(platform)); err != nil {
			s.logger.WithError(err).WithField("platform", platform).Error("定时同步失败")
		}
	}
}

// LatestRun 平台最近一次同步记录
func (s *SyncService) LatestRun(ctx context.Context, platformName string) (*model.SyncRun, error) {
	return s.runs.Latest(ctx, platformName)
}

// PlatformVideoCount 平台频道统计中的视频总数
func (s *SyncService) PlatformVideoCount(ctx context.Context, platformName string) (int64, error) {
	adapter, err := s.adapters.GetAdapter(model.PlatformType(platformName))
	if err != nil {
		return 0, err
	}
	return adapter.CountVideos(ctx)
}
