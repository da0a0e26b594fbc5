package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"VideoSuggest/internal/interfaces"
	"VideoSuggest/internal/model"
	"VideoSuggest/internal/queue"
	"VideoSuggest/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// MaxSuggestionLimit 接口单次返回的建议条数上限
	MaxSuggestionLimit = 100
	maxKeyLength       = 128
)

// JobStatusReader 查询任务状态
type JobStatusReader interface {
	GetStatus(ctx context.Context, id string) (*queue.Status, error)
}

// SuggestionInput 提交建议的请求内容
type SuggestionInput struct {
	VideoID        string
	Text           string
	IdempotencyKey string
}

// SuggestionService 写操作只校验并入队，立即返回任务ID；读操作直接查库
type SuggestionService struct {
	suggestions repository.SuggestionRepository
	videos      *repository.VideoRepository
	jobs        interfaces.JobEnqueuer
	status      JobStatusReader
	logger      *logrus.Logger
}

func NewSuggestionService(
	suggestions repository.SuggestionRepository,
	videos *repository.VideoRepository,
	jobs interfaces.JobEnqueuer,
	status JobStatusReader,
	logger *logrus.Logger,
) *SuggestionService {
	return &SuggestionService{
		suggestions: suggestions,
		videos:      videos,
		jobs:        jobs,
		status:      status,
		logger:      logger,
	}
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", model.ErrValidation, fmt.Sprintf(format, args...))
}

func validateVoterHash(voterHash string) error {
	if strings.TrimSpace(voterHash) == "" {
		return validationf("voter_hash 不能为空")
	}
	if len(voterHash) > maxKeyLength {
		return validationf("voter_hash 过长")
	}
	return nil
}

func (s *SuggestionService) enqueue(ctx context.Context, jobType string, args interface{}) (string, error) {
	id, err := s.jobs.Enqueue(ctx, jobType, args)
	if err != nil {
		s.logger.WithError(err).WithField("job_type", jobType).Error("任务入队失败")
		return "", err
	}
	return id, nil
}

// SubmitSuggestion 提交文本建议；body 中的 video_id 为空时沿用路径中的值，不一致则拒绝
func (s *SuggestionService) SubmitSuggestion(ctx context.Context, kindName, videoID string, in SuggestionInput) (string, error) {
	kind, err := model.ParseKind(kindName)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(videoID) == "" {
		return "", validationf("video_id 不能为空")
	}
	if in.VideoID != "" && in.VideoID != videoID {
		return "", validationf("路径中的 video_id(%s) 与请求体(%s)不一致", videoID, in.VideoID)
	}
	if strings.TrimSpace(in.Text) == "" {
		return "", validationf("建议内容不能为空")
	}
	if len(in.IdempotencyKey) > maxKeyLength {
		return "", validationf("idempotency_key 过长")
	}

	return s.enqueue(ctx, model.JobCreateSuggestion, model.CreateSuggestionArgs{
		Kind:           kind.Name,
		VideoID:        videoID,
		Text:           in.Text,
		IdempotencyKey: in.IdempotencyKey,
	})
}

// SubmitVote 对文本建议投票
func (s *SuggestionService) SubmitVote(ctx context.Context, kindName, suggestionID, voterHash string) (string, error) {
	kind, err := model.ParseKind(kindName)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(suggestionID); err != nil {
		return "", validationf("suggestion_id 不是合法的UUID: %s", suggestionID)
	}
	if err := validateVoterHash(voterHash); err != nil {
		return "", err
	}

	return s.enqueue(ctx, model.JobVoteSuggestion, model.VoteSuggestionArgs{
		Kind:         kind.Name,
		SuggestionID: suggestionID,
		VoterHash:    voterHash,
	})
}

// SubmitRelatedVote 对视频“是否相关”投票，选项在消费时按需创建
func (s *SuggestionService) SubmitRelatedVote(ctx context.Context, videoID string, isRelated bool, voterHash string) (string, error) {
	if strings.TrimSpace(videoID) == "" {
		return "", validationf("video_id 不能为空")
	}
	if err := validateVoterHash(voterHash); err != nil {
		return "", err
	}

	return s.enqueue(ctx, model.JobVoteRelated, model.VoteRelatedArgs{
		VideoID:   videoID,
		IsRelated: isRelated,
		VoterHash: voterHash,
	})
}

// SubmitVideoImport 导入课程元数据，入队前先校验全部条目
func (s *SuggestionService) SubmitVideoImport(ctx context.Context, infos []*model.VideoInfo) (string, error) {
	if len(infos) == 0 {
		return "", validationf("导入列表为空")
	}
	for i, info := range infos {
		if info == nil {
			return "", validationf("第%d条为空", i)
		}
		if err := info.Validate(); err != nil {
			return "", fmt.Errorf("第%d条: %w", i, err)
		}
	}
	return s.enqueue(ctx, model.JobImportVideos, model.ImportVideosArgs{Videos: infos})
}

// TopSuggestions limit 超过上限时截断
func (s *SuggestionService) TopSuggestions(ctx context.Context, kindName, videoID string, limit int) ([]*model.Suggestion, error) {
	kind, err := model.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, validationf("limit 必须大于0")
	}
	return s.suggestions.ListTopSuggestions(ctx, kind, videoID, min(limit, MaxSuggestionLimit))
}

func (s *SuggestionService) RelatedOptions(ctx context.Context, videoID string) ([]*model.RelatedSuggestion, error) {
	return s.suggestions.ListRelatedOptions(ctx, videoID)
}

func (s *SuggestionService) Catalog(ctx context.Context, relatedOnly bool) ([]*model.CatalogVideo, error) {
	return s.videos.ListCatalog(ctx, relatedOnly)
}

func (s *SuggestionService) CountVideos(ctx context.Context) (int64, error) {
	return s.videos.CountVideos(ctx)
}

// JobStatus 查询任务执行结果
func (s *SuggestionService) JobStatus(ctx context.Context, id string) (*queue.Status, error) {
	st, err := s.status.GetStatus(ctx, id)
	if errors.Is(err, queue.ErrJobNotFound) {
		return nil, fmt.Errorf("%w: 任务 %s", model.ErrNotFound, id)
	}
	return st, err
}
