package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"VideoSuggest/internal/adapter"
	"VideoSuggest/internal/config"
	"VideoSuggest/internal/interfaces"
	"VideoSuggest/internal/model"
	"VideoSuggest/internal/utils/httpclient"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const (
	defaultPageSize      = 50 // YouTube 单页上限
	defaultRetryInterval = 500 * time.Millisecond
)

// ErrMissingAPIKey 未配置 YOUTUBE_API_KEY
var ErrMissingAPIKey = errors.New("YouTube API key 未配置")

func init() {
	adapter.Register(model.PlatformYouTube, NewYouTubeAdapter)
}

// Adapter 通过频道上传列表（uploads playlist）拉取全部视频
type Adapter struct {
	cfg           *config.PlatformConfig
	service       *yt.Service
	initErr       error
	logger        *logrus.Logger
	retryInterval time.Duration
}

func NewYouTubeAdapter(cfg *config.PlatformConfig, logger *logrus.Logger) interfaces.PlatformAdapter {
	opts := []option.ClientOption{option.WithHTTPClient(httpclient.NewHTTPClient(cfg, logger))}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimSuffix(cfg.BaseURL, "/")+"/"))
	}

	// 服务创建失败不影响进程启动，推迟到调用时报错
	service, err := yt.NewService(context.Background(), opts...)
	if err != nil {
		logger.WithError(err).Error("创建YouTube客户端失败")
	}
	return &Adapter{
		cfg:           cfg,
		service:       service,
		initErr:       err,
		logger:        logger,
		retryInterval: defaultRetryInterval,
	}
}

func (a *Adapter) GetName() string {
	return "YouTube"
}

func (a *Adapter) GetType() model.PlatformType {
	return model.PlatformYouTube
}

func (a *Adapter) ready() error {
	if a.initErr != nil {
		return fmt.Errorf("YouTube客户端不可用: %w", a.initErr)
	}
	if a.cfg.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (a *Adapter) keyParam() googleapi.CallOption {
	return googleapi.QueryParameter("key", a.cfg.APIKey)
}

// FetchVideos 按页拉取上传列表，直到没有 nextPageToken
func (a *Adapter) FetchVideos(ctx context.Context) ([]*model.PlatformRawVideo, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	pageSize := a.cfg.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}

	var (
		videos    []*model.PlatformRawVideo
		pageToken string
		page      int
	)
	for {
		page++
		var resp *yt.PlaylistItemListResponse
		err := a.withRetry(ctx, func() error {
			call := a.service.PlaylistItems.List([]string{"snippet"}).
				PlaylistId(a.cfg.PlaylistID).
				MaxResults(pageSize).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			resp, err = call.Do(a.keyParam())
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("拉取YouTube播放列表第%d页失败: %w", page, err)
		}

		for _, item := range resp.Items {
			s := item.Snippet
			if s == nil || s.ResourceId == nil || s.ResourceId.VideoId == "" {
				continue
			}
			videos = append(videos, &model.PlatformRawVideo{
				Platform:    model.PlatformYouTube,
				VideoID:     s.ResourceId.VideoId,
				Title:       s.Title,
				PublishedAt: s.PublishedAt,
			})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	a.logger.WithFields(logrus.Fields{"pages": page, "videos": len(videos)}).Info("YouTube视频拉取完成")
	return videos, nil
}

// CountVideos 频道统计中的视频总数
func (a *Adapter) CountVideos(ctx context.Context) (int64, error) {
	if err := a.ready(); err != nil {
		return 0, err
	}
	var resp *yt.ChannelListResponse
	err := a.withRetry(ctx, func() error {
		var err error
		resp, err = a.service.Channels.List([]string{"statistics"}).
			Id(a.cfg.ChannelID).
			Context(ctx).
			Do(a.keyParam())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("查询YouTube频道统计失败: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return 0, fmt.Errorf("%w: 频道 %s", model.ErrNotFound, a.cfg.ChannelID)
	}
	return int64(resp.Items[0].Statistics.VideoCount), nil
}

// ConvertToDBModel 转换为数据库模型，同一批次内按 video_id 去重
func (a *Adapter) ConvertToDBModel(raw []*model.PlatformRawVideo) []*model.Video {
	seen := make(map[string]bool, len(raw))
	videos := make([]*model.Video, 0, len(raw))
	for _, r := range raw {
		if r.VideoID == "" || seen[r.VideoID] {
			continue
		}
		seen[r.VideoID] = true

		publishedAt := r.ParsePublishedAt()
		if publishedAt == nil && r.PublishedAt != "" {
			a.logger.WithField("video_id", r.VideoID).Warnf("发布时间无法解析: %s", r.PublishedAt)
		}
		videos = append(videos, &model.Video{
			VideoID:     r.VideoID,
			Title:       r.Title,
			PublishedAt: publishedAt,
		})
	}
	return videos
}

// withRetry 网络错误、429 与 5xx 重试，其余 4xx（key 无效、配额耗尽等）直接返回
func (a *Adapter) withRetry(ctx context.Context, op func() error) error {
	retries := a.cfg.RetryCount
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(a.retryInterval),
		backoff.WithMaxInterval(10*time.Second),
	), uint64(retries))

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code < http.StatusInternalServerError && apiErr.Code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		a.logger.WithError(err).WithField("attempt", attempt).Warn("YouTube请求失败，准备重试")
		return err
	}, backoff.WithContext(b, ctx))
}
