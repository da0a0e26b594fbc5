package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/gorm/logger"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`    // 服务器配置
	Database  DatabaseConfig            `mapstructure:"database"`  // PostgreSQL配置
	Redis     RedisConfig               `mapstructure:"redis"`     // Redis配置（任务队列 + 限流）
	Queue     QueueConfig               `mapstructure:"queue"`     // 任务队列配置
	Worker    WorkerConfig              `mapstructure:"worker"`    // 消费者配置
	RateLimit RateLimitConfig           `mapstructure:"ratelimit"` // 接口限流配置
	Sync      SyncConfig                `mapstructure:"sync"`      // 同步调度配置
	Platforms map[string]PlatformConfig `mapstructure:"platforms"` // 视频平台独立配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port  int    `mapstructure:"port"`  // 服务端口
	Mode  string `mapstructure:"mode"`  // Gin运行模式：debug/release/test
	PProf bool   `mapstructure:"pprof"` // 是否注册pprof
}

// DatabaseConfig PostgreSQL数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（URL形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数，耗尽时请求阻塞等待
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	LogLevel        string        `mapstructure:"log_level"`         // SQL日志级别：silent/error/warn/info
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Name         string        `mapstructure:"name"`          // 队列名，对应 Redis key 前缀
	StatusExpiry time.Duration `mapstructure:"status_expiry"` // 任务状态保留时长
	LeaseTTL     time.Duration `mapstructure:"lease_ttl"`     // 消费者租约时长，过期后其未完成任务被其他消费者回收
}

// WorkerConfig 消费者配置
type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`       // 是否在本进程内启动消费者
	Concurrency  int           `mapstructure:"concurrency"`   // 并发消费者数量
	PollInterval time.Duration `mapstructure:"poll_interval"` // 队列为空时的轮询间隔
	MaxAttempts  int           `mapstructure:"max_attempts"`  // 存储失败时的最大尝试次数

	RetryInterval    time.Duration `mapstructure:"retry_interval"`     // 首次重试等待时间
	MaxRetryInterval time.Duration `mapstructure:"max_retry_interval"` // 重试等待时间上限
}

// RateLimitConfig 固定窗口限流配置，key = 接口类别 + 客户端IP
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Window  time.Duration `mapstructure:"window"`
	Create  int           `mapstructure:"create"` // 提交建议
	Read    int           `mapstructure:"read"`   // 查询
	Vote    int           `mapstructure:"vote"`   // 投票
	Admin   int           `mapstructure:"admin"`  // 视频导入/手动同步
}

// SyncConfig 同步调度配置
type SyncConfig struct {
	Cron             string   `mapstructure:"cron"`              // 全局同步Cron表达式
	EnabledPlatforms []string `mapstructure:"enabled_platforms"` // 启用的平台列表
	RunAtStartup     bool     `mapstructure:"run_at_startup"`    // 启动时是否立即同步一次
}

// PlatformConfig 单个视频平台的独立配置
type PlatformConfig struct {
	BaseURL    string `mapstructure:"base_url"`    // API基础地址，留空使用SDK默认地址
	Timeout    int    `mapstructure:"timeout"`     // 请求超时（秒）
	RetryCount int    `mapstructure:"retry_count"` // 单页拉取重试次数
	APIKey     string `mapstructure:"api_key"`     // API Key
	PlaylistID string `mapstructure:"playlist_id"` // 频道上传列表ID
	ChannelID  string `mapstructure:"channel_id"`  // 频道ID
	PageSize   int64  `mapstructure:"page_size"`   // 每页条数（YouTube 最大50）
	Proxy      string `mapstructure:"proxy"`       // 代理地址
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults 配置缺省值，阈值与原服务的限流保持一致
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("queue.name", "suggestions")
	v.SetDefault("queue.status_expiry", 24*time.Hour)
	v.SetDefault("queue.lease_ttl", 30*time.Second)
	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.poll_interval", time.Second)
	v.SetDefault("worker.max_attempts", 5)
	v.SetDefault("worker.retry_interval", 2*time.Second)
	v.SetDefault("worker.max_retry_interval", 5*time.Minute)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.create", 20)
	v.SetDefault("ratelimit.read", 30)
	v.SetDefault("ratelimit.vote", 50)
	v.SetDefault("ratelimit.admin", 10)
	v.SetDefault("sync.cron", "@daily")
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if y, ok := cfg.Platforms["youtube"]; ok {
		if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
			y.APIKey = v
		}
		if v := os.Getenv("YOUTUBE_PROXY"); v != "" {
			y.Proxy = v
		}
		cfg.Platforms["youtube"] = y
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// GORMLogLevel 将配置中的日志级别映射为 gorm 日志级别
func (d *DatabaseConfig) GORMLogLevel() logger.LogLevel {
	switch d.LogLevel {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
