package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"VideoSuggest/internal/config"
	"VideoSuggest/internal/database/dbtest"
	"VideoSuggest/internal/model"
	"VideoSuggest/internal/queue"
	"VideoSuggest/internal/repository"
	"VideoSuggest/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	queue       *queue.Manager
	pool        *worker.Pool
	suggestions repository.SuggestionRepository
	videos      *repository.VideoRepository
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newClient(t *testing.T) rueidis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func newQueue(t *testing.T) *queue.Manager {
	t.Helper()
	return queue.NewManager(newClient(t), "test", time.Hour, quietLogger())
}

func setup(t *testing.T, cfg config.WorkerConfig) *fixture {
	t.Helper()
	db := dbtest.New(t)
	q := newQueue(t)
	suggestions := repository.NewSuggestionRepository(db)
	videos := repository.NewVideoRepositoryInstance(db)
	dispatcher := worker.NewDispatcher(suggestions, videos, quietLogger())
	return &fixture{
		queue:       q,
		pool:        worker.NewPool(q, dispatcher, cfg, quietLogger()),
		suggestions: suggestions,
		videos:      videos,
	}
}

func defaultConfig() config.WorkerConfig {
	return config.WorkerConfig{Concurrency: 2, PollInterval: 10 * time.Millisecond, MaxAttempts: 3}
}

// drain 处理队列中的全部任务
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	for {
		processed, err := f.pool.ProcessNext(t.Context())
		require.NoError(t, err)
		if !processed {
			return
		}
	}
}

func TestCreateAndVoteThroughQueue(t *testing.T) {
	t.Parallel()
	f := setup(t, defaultConfig())
	ctx := t.Context()

	createID, err := f.queue.Enqueue(ctx, model.JobCreateSuggestion, model.CreateSuggestionArgs{
		Kind: "title", VideoID: "v1", Text: "Intro to Fiqh",
	})
	require.NoError(t, err)
	f.drain(t)

	st, err := f.queue.GetStatus(ctx, createID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusFinished, st.Status)

	list, err := f.suggestions.ListTopSuggestions(ctx, model.KindTitle, "v1", 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	suggestionID := list[0].ID

	var voteIDs []string
	for _, voter := range []string{"abc", "abc", "xyz"} {
		id, err := f.queue.Enqueue(ctx, model.JobVoteSuggestion, model.VoteSuggestionArgs{
			Kind: "title", SuggestionID: suggestionID, VoterHash: voter,
		})
		require.NoError(t, err)
		voteIDs = append(voteIDs, id)
	}
	f.drain(t)

	wantAccepted := []bool{true, false, true}
	for i, id := range voteIDs {
		st, err := f.queue.GetStatus(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFinished, st.Status)
		var res model.VoteResult
		require.NoError(t, json.Unmarshal(st.Result, &res))
		assert.Equal(t, wantAccepted[i], res.Accepted)
	}

	got, err := f.suggestions.GetSuggestion(ctx, model.KindTitle, suggestionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ApprovalCount)
}

func TestRedeliveredCreateWithKeyIsIdempotent(t *testing.T) {
	t.Parallel()
	f := setup(t, defaultConfig())
	ctx := t.Context()

	args := model.CreateSuggestionArgs{Kind: "lecturer", VideoID: "v1", Text: "Sheikh", IdempotencyKey: "req-1"}
	for range 3 {
		_, err := f.queue.Enqueue(ctx, model.JobCreateSuggestion, args)
		require.NoError(t, err)
	}
	f.drain(t)

	list, err := f.suggestions.ListTopSuggestions(ctx, model.KindLecturer, "v1", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRelatedVoteCreatesOptionLazily(t *testing.T) {
	t.Parallel()
	f := setup(t, defaultConfig())
	ctx := t.Context()
	require.NoError(t, f.videos.SaveVideos(ctx, []*model.Video{{VideoID: "v1", Title: "one"}}))

	for _, voter := range []string{"a", "b", "a"} {
		_, err := f.queue.Enqueue(ctx, model.JobVoteRelated, model.VoteRelatedArgs{
			VideoID: "v1", IsRelated: true, VoterHash: voter,
		})
		require.NoError(t, err)
	}
	_, err := f.queue.Enqueue(ctx, model.JobVoteRelated, model.VoteRelatedArgs{
		VideoID: "v1", IsRelated: false, VoterHash: "c",
	})
	require.NoError(t, err)
	f.drain(t)

	options, err := f.suggestions.ListRelatedOptions(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, int64(2), options[0].ApprovalCount)
	assert.Equal(t, int64(1), options[1].ApprovalCount)
}

func TestRelatedVoteForUnknownVideoFails(t *testing.T) {
	t.Parallel()
	f := setup(t, defaultConfig())
	ctx := t.Context()

	id, err := f.queue.Enqueue(ctx, model.JobVoteRelated, model.VoteRelatedArgs{
		VideoID: "ghost", IsRelated: true, VoterHash: "a",
	})
	require.NoError(t, err)
	f.drain(t)

	st, err := f.queue.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, st.Status)

	options, err := f.suggestions.ListRelatedOptions(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, options)
}

func TestImportVideosJob(t *testing.T) {
	t.Parallel()
	f := setup(t, defaultConfig())
	ctx := t.Context()

	level := model.SpecializedFiqh
	id, err := f.queue.Enqueue(ctx, model.JobImportVideos, model.ImportVideosArgs{
		Videos: []*model.VideoInfo{{VideoID: "v1", SpecializedLevel: &level}, {VideoID: "v2"}},
	})
	require.NoError(t, err)
	f.drain(t)

	st, err := f.queue.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFinished, st.Status)
	assert.JSONEq(t, `{"imported":2}`, string(st.Result))

	total, err := f.videos.CountVideos(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestPermanentFailuresAreNotRetried(t *testing.T) {
	t.Parallel()
	f := setup(t, defaultConfig())
	ctx := t.Context()

	notFound, err := f.queue.Enqueue(ctx, model.JobVoteSuggestion, model.VoteSuggestionArgs{
		Kind: "title", SuggestionID: "00000000-0000-0000-0000-000000000000", VoterHash: "abc",
	})
	require.NoError(t, err)
	badKind, err := f.queue.Enqueue(ctx, model.JobCreateSuggestion, model.CreateSuggestionArgs{
		Kind: "unknown", VideoID: "v1", Text: "t",
	})
	require.NoError(t, err)
	unknownType, err := f.queue.Enqueue(ctx, "no.such.job", map[string]string{})
	require.NoError(t, err)
	f.drain(t)

	for _, id := range []string{notFound, badKind, unknownType} {
		st, err := f.queue.GetStatus(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, st.Status)
		assert.NotEmpty(t, st.Error)
	}

	pending, processing, delayed, err := f.queue.Lengths(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending+processing+delayed)
}

// failingStore 模拟存储层故障
type failingStore struct {
	repository.SuggestionRepository
}

func (failingStore) RecordVote(context.Context, model.Kind, string, string) (model.VoteOutcome, error) {
	return model.VoteAlreadyVoted, errors.New("connection reset")
}

func TestStoreFailureIsRetriedLater(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	cfg := config.WorkerConfig{Concurrency: 1, MaxAttempts: 2, RetryInterval: time.Hour, MaxRetryInterval: time.Hour}
	dispatcher := worker.NewDispatcher(failingStore{}, nil, quietLogger())
	p := worker.NewPool(q, dispatcher, cfg, quietLogger())
	ctx := t.Context()

	id, err := q.Enqueue(ctx, model.JobVoteSuggestion, model.VoteSuggestionArgs{
		Kind: "title", SuggestionID: "s1", VoterHash: "abc",
	})
	require.NoError(t, err)

	processed, err := p.ProcessNext(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	st, err := q.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRetrying, st.Status)
	assert.Equal(t, 1, st.Attempts)

	_, _, delayed, err := q.Lengths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), delayed)

	// 延迟未到，不会被处理
	processed, err = p.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestStoreFailureWithSingleAttemptIsDead(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	cfg := config.WorkerConfig{Concurrency: 1, MaxAttempts: 1}
	p := worker.NewPool(q, worker.NewDispatcher(failingStore{}, nil, quietLogger()), cfg, quietLogger())
	ctx := t.Context()

	id, err := q.Enqueue(ctx, model.JobVoteSuggestion, model.VoteSuggestionArgs{
		Kind: "title", SuggestionID: "s1", VoterHash: "abc",
	})
	require.NoError(t, err)

	processed, err := p.ProcessNext(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	st, err := q.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusDead, st.Status)
	assert.Equal(t, "connection reset", st.Error)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	f := setup(t, defaultConfig())

	id, err := f.queue.Enqueue(t.Context(), model.JobCreateSuggestion, model.CreateSuggestionArgs{
		Kind: "description", VideoID: "v1", Text: "d",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- f.pool.Run(ctx) }()

	require.Eventually(t, func() bool {
		st, err := f.queue.GetStatus(t.Context(), id)
		return err == nil && st.Status == model.JobStatusFinished
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}

	pending, processing, _, err := f.queue.Lengths(t.Context())
	require.NoError(t, err)
	assert.Zero(t, pending+processing)
}

func TestRunLeavesJobsOfLiveConsumers(t *testing.T) {
	t.Parallel()
	db := dbtest.New(t)
	client := newClient(t)
	suggestions := repository.NewSuggestionRepository(db)
	dispatcher := worker.NewDispatcher(suggestions, repository.NewVideoRepositoryInstance(db), quietLogger())

	// 第一个消费者已出队、尚未完成
	busy := queue.NewManager(client, "test", time.Hour, quietLogger())
	id, err := busy.Enqueue(t.Context(), model.JobCreateSuggestion, model.CreateSuggestionArgs{
		Kind: "title", VideoID: "v1", Text: "in flight",
	})
	require.NoError(t, err)
	d, err := busy.Dequeue(t.Context())
	require.NoError(t, err)
	require.NotNil(t, d)

	// 第二个进程启动并运行一段时间
	second := queue.NewManager(client, "test", time.Hour, quietLogger())
	p := worker.NewPool(second, dispatcher, defaultConfig(), quietLogger())
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	st, err := busy.GetStatus(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, st.Status)

	list, err := suggestions.ListTopSuggestions(t.Context(), model.KindTitle, "v1", 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	pending, processing, _, err := busy.Lengths(t.Context())
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, int64(1), processing)
}
