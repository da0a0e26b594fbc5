package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"VideoSuggest/internal/adapter"
	_ "VideoSuggest/internal/adapter/youtube"
	"VideoSuggest/internal/api"
	"VideoSuggest/internal/config"
	"VideoSuggest/internal/database"
	"VideoSuggest/internal/queue"
	"VideoSuggest/internal/repository"
	"VideoSuggest/internal/service"
	"VideoSuggest/internal/worker"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/redis/rueidis"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. 加载配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置文件失败: %v", err)
	}

	// 2. 初始化日志
	logrusLogger := logrus.New()
	logrusLogger.SetLevel(logrus.InfoLevel)
	if cfg.Server.Mode == gin.DebugMode {
		logrusLogger.SetLevel(logrus.DebugLevel)
	}
	logrusLogger.Info("配置文件加载成功")

	// 3. 初始化 PostgreSQL（库不存在则先创建，表结构自动迁移）
	db, err := database.Open(&cfg.Database, logrusLogger)
	if err != nil {
		logrusLogger.Fatalf("初始化数据库失败: %v", err)
	}
	logrusLogger.Info("数据库表结构检查完成（不存在则已创建）")

	// 4. 初始化 Redis（任务队列 + 限流）
	redisClient, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{cfg.Redis.Addr},
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		SelectDB:     cfg.Redis.DB,
		DisableCache: true,
	})
	if err != nil {
		logrusLogger.Fatalf("连接Redis失败: %v", err)
	}
	defer redisClient.Close()
	logrusLogger.Info("Redis连接成功")

	// 5. 仓储、队列与服务
	jobQueue := queue.NewManager(redisClient, cfg.Queue.Name, cfg.Queue.StatusExpiry, logrusLogger, queue.WithLeaseTTL(cfg.Queue.LeaseTTL))
	suggestionRepo := repository.NewSuggestionRepository(db)
	videoRepo := repository.NewVideoRepositoryInstance(db)
	suggestionService := service.NewSuggestionService(suggestionRepo, videoRepo, jobQueue, jobQueue, logrusLogger)

	registry := adapter.NewPlatformRegistry(cfg, logrusLogger)
	syncService := service.NewSyncService(registry, repository.NewVideoRepository(db), repository.NewSyncRunRepository(db), logrusLogger)

	// 6. 配置Gin运行模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	if cfg.Server.PProf {
		pprof.Register(r)
	}
	api.RegisterRoutes(r, api.Handlers{
		Suggestion: api.NewSuggestionHandler(suggestionService, logrusLogger),
		Video:      api.NewVideoHandler(suggestionService, logrusLogger),
		Job:        api.NewJobHandler(suggestionService, logrusLogger),
		Sync:       api.NewSyncHandler(syncService, logrusLogger),
	}, api.NewRateLimiter(redisClient, cfg.RateLimit, logrusLogger))
	logrusLogger.Infof("Gin运行模式: %s", cfg.Server.Mode)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 7. 启动 HTTP 服务、任务消费者与定时同步，收到退出信号后依次停止
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrusLogger.Infof("服务启动成功，端口：%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP服务异常退出: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Worker.Enabled {
		dispatcher := worker.NewDispatcher(suggestionRepo, videoRepo, logrusLogger)
		pool := worker.NewPool(jobQueue, dispatcher, cfg.Worker, logrusLogger)
		g.Go(func() error { return pool.Run(gctx) })
	} else {
		logrusLogger.Warn("本进程未启动任务消费者（worker.enabled=false）")
	}

	scheduler := service.NewScheduler(syncService, cfg.Sync, logrusLogger)
	if err := scheduler.Start(gctx); err != nil {
		logrusLogger.Fatalf("启动同步定时任务失败: %v", err)
	}
	g.Go(func() error {
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logrusLogger.Errorf("服务退出: %v", err)
		os.Exit(1)
	}
	logrusLogger.Info("服务已退出")
}
