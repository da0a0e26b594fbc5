package service

import (
	"context"
	"fmt"

	"VideoSuggest/internal/config"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler 按 sync.cron 定时同步全部平台
type Scheduler struct {
	cron   *cron.Cron
	sync   *SyncService
	cfg    config.SyncConfig
	logger *logrus.Logger
}

func NewScheduler(syncService *SyncService, cfg config.SyncConfig, logger *logrus.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		sync:   syncService,
		cfg:    cfg,
		logger: logger,
	}
}

// Start 注册定时任务并启动；ctx 取消后进行中的同步随之中止
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Cron, func() {
		s.logger.Info("开始定时同步视频")
		s.sync.SyncAll(ctx)
	}); err != nil {
		return fmt.Errorf("注册同步定时任务失败: %w, cron: %s", err, s.cfg.Cron)
	}
	s.cron.Start()
	s.logger.WithField("cron", s.cfg.Cron).Info("视频同步定时任务已启动")

	if s.cfg.RunAtStartup {
		go s.sync.SyncAll(ctx)
	}
	return nil
}

// Stop 停止调度，返回的 context 在进行中的任务结束后完成
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
