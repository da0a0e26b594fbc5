package worker

import (
	"context"
	"errors"
	"fmt"

	"VideoSuggest/internal/model"
	"VideoSuggest/internal/queue"
	"VideoSuggest/internal/repository"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"
)

// ErrUnknownJob 没有注册处理函数的任务类型
var ErrUnknownJob = errors.New("未知的任务类型")

// Handler 单个任务类型的处理函数，返回值会作为任务结果保存
type Handler func(ctx context.Context, args []byte) (interface{}, error)

// VideoStore 视频目录：导入课程元数据，相关性投票前确认视频存在
type VideoStore interface {
	GetVideo(ctx context.Context, videoID string) (*model.Video, error)
	SaveVideoInfos(ctx context.Context, infos []*model.VideoInfo) (int, error)
}

// Dispatcher 按任务类型分发到仓储操作，每个任务只执行一次仓储调用
type Dispatcher struct {
	suggestions repository.SuggestionRepository
	videos      VideoStore
	logger      *logrus.Logger
	handlers    map[string]Handler
}

// NewDispatcher 注册全部任务类型
func NewDispatcher(suggestions repository.SuggestionRepository, videos VideoStore, logger *logrus.Logger) *Dispatcher {
	d := &Dispatcher{
		suggestions: suggestions,
		videos:      videos,
		logger:      logger,
	}
	d.handlers = map[string]Handler{
		model.JobCreateSuggestion: d.createSuggestion,
		model.JobVoteSuggestion:   d.voteSuggestion,
		model.JobVoteRelated:      d.voteRelated,
		model.JobImportVideos:     d.importVideos,
	}
	return d
}

// Dispatch 执行任务
func (d *Dispatcher) Dispatch(ctx context.Context, job *queue.Job) (interface{}, error) {
	h, ok := d.handlers[job.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, job.Type)
	}
	return h(ctx, job.Args)
}

// decodeArgs 参数无法解析时重试也没有意义，按校验错误处理
func decodeArgs(raw []byte, v interface{}) error {
	if err := sonic.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: 任务参数无法解析: %v", model.ErrValidation, err)
	}
	return nil
}

func (d *Dispatcher) createSuggestion(ctx context.Context, raw []byte) (interface{}, error) {
	var args model.CreateSuggestionArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	kind, err := model.ParseKind(args.Kind)
	if err != nil {
		return nil, err
	}
	return d.suggestions.CreateSuggestionOnce(ctx, kind, args.VideoID, args.Text, args.IdempotencyKey)
}

func (d *Dispatcher) voteSuggestion(ctx context.Context, raw []byte) (interface{}, error) {
	var args model.VoteSuggestionArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	kind, err := model.ParseKind(args.Kind)
	if err != nil {
		return nil, err
	}
	outcome, err := d.suggestions.RecordVote(ctx, kind, args.SuggestionID, args.VoterHash)
	if err != nil {
		return nil, err
	}
	return voteResult(outcome), nil
}

// voteRelated 先确保选项存在再投票；两步之间失败重试是安全的，选项创建本身幂等。
// 目录中不存在的视频返回 ErrNotFound，不会留下选项或投票记录
func (d *Dispatcher) voteRelated(ctx context.Context, raw []byte) (interface{}, error) {
	var args model.VoteRelatedArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if _, err := d.videos.GetVideo(ctx, args.VideoID); err != nil {
		return nil, err
	}
	option, err := d.suggestions.GetOrCreateRelatedOption(ctx, args.VideoID, args.IsRelated)
	if err != nil {
		return nil, err
	}
	outcome, err := d.suggestions.RecordVote(ctx, model.KindRelated, option.ID, args.VoterHash)
	if err != nil {
		return nil, err
	}
	return voteResult(outcome), nil
}

func (d *Dispatcher) importVideos(ctx context.Context, raw []byte) (interface{}, error) {
	var args model.ImportVideosArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	n, err := d.videos.SaveVideoInfos(ctx, args.Videos)
	if err != nil {
		return nil, err
	}
	d.logger.WithField("imported", n).Info("课程信息导入完成")
	return &model.ImportResult{Imported: n}, nil
}

func voteResult(outcome model.VoteOutcome) *model.VoteResult {
	return &model.VoteResult{
		Accepted: outcome == model.VoteAccepted,
		Outcome:  outcome.String(),
	}
}
