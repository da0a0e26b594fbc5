package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"VideoSuggest/internal/database/dbtest"
	"VideoSuggest/internal/model"
	"VideoSuggest/internal/queue"
	"VideoSuggest/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type enqueued struct {
	jobType string
	args    interface{}
}

// recordingQueue 记录入队的任务
type recordingQueue struct {
	jobs []enqueued
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, jobType string, args interface{}) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, enqueued{jobType: jobType, args: args})
	return "job-1", nil
}

func (q *recordingQueue) GetStatus(_ context.Context, id string) (*queue.Status, error) {
	if id != "job-1" {
		return nil, queue.ErrJobNotFound
	}
	return &queue.Status{ID: id, Status: model.JobStatusQueued}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(t *testing.T) (*SuggestionService, *recordingQueue, repository.SuggestionRepository) {
	t.Helper()
	db := dbtest.New(t)
	q := &recordingQueue{}
	suggestions := repository.NewSuggestionRepository(db)
	svc := NewSuggestionService(suggestions, repository.NewVideoRepositoryInstance(db), q, q, quietLogger())
	return svc, q, suggestions
}

func TestSubmitSuggestion(t *testing.T) {
	t.Parallel()
	svc, q, _ := newTestService(t)
	ctx := t.Context()

	id, err := svc.SubmitSuggestion(ctx, "lesson-name", "v1", SuggestionInput{Text: "Lesson 1", IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, model.JobCreateSuggestion, q.jobs[0].jobType)
	assert.Equal(t, model.CreateSuggestionArgs{
		Kind: "lesson-name", VideoID: "v1", Text: "Lesson 1", IdempotencyKey: "k",
	}, q.jobs[0].args)
}

func TestSubmitSuggestionValidation(t *testing.T) {
	t.Parallel()
	svc, q, _ := newTestService(t)
	ctx := t.Context()

	cases := map[string]struct {
		kind    string
		videoID string
		in      SuggestionInput
	}{
		"unknown kind":    {"related", "v1", SuggestionInput{Text: "x"}},
		"video mismatch":  {"title", "v1", SuggestionInput{VideoID: "v2", Text: "x"}},
		"empty text":      {"title", "v1", SuggestionInput{Text: "  "}},
		"empty video id":  {"title", "", SuggestionInput{Text: "x"}},
		"key too long":    {"title", "v1", SuggestionInput{Text: "x", IdempotencyKey: string(make([]byte, 200))}},
		"misspelled kind": {"titles", "v1", SuggestionInput{Text: "x"}},
	}
	for name, tc := range cases {
		_, err := svc.SubmitSuggestion(ctx, tc.kind, tc.videoID, tc.in)
		assert.ErrorIs(t, err, model.ErrValidation, name)
	}
	assert.Empty(t, q.jobs)
}

func TestSubmitVoteValidation(t *testing.T) {
	t.Parallel()
	svc, q, _ := newTestService(t)
	ctx := t.Context()

	_, err := svc.SubmitVote(ctx, "title", "not-a-uuid", "abc")
	require.ErrorIs(t, err, model.ErrValidation)
	_, err = svc.SubmitVote(ctx, "title", "5f0c6d3e-8a4b-4b8e-9d2a-0d7b1c2e3f40", " ")
	require.ErrorIs(t, err, model.ErrValidation)
	_, err = svc.SubmitRelatedVote(ctx, "v1", true, "")
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, q.jobs)

	_, err = svc.SubmitVote(ctx, "lecturer", "5f0c6d3e-8a4b-4b8e-9d2a-0d7b1c2e3f40", "abc")
	require.NoError(t, err)
	_, err = svc.SubmitRelatedVote(ctx, "v1", false, "abc")
	require.NoError(t, err)
	require.Len(t, q.jobs, 2)
	assert.Equal(t, model.VoteRelatedArgs{VideoID: "v1", IsRelated: false, VoterHash: "abc"}, q.jobs[1].args)
}

func TestSubmitVideoImportValidatesBeforeEnqueue(t *testing.T) {
	t.Parallel()
	svc, q, _ := newTestService(t)
	ctx := t.Context()

	_, err := svc.SubmitVideoImport(ctx, nil)
	require.ErrorIs(t, err, model.ErrValidation)

	bad := model.CommonSubLevel("المستوى الخامس")
	_, err = svc.SubmitVideoImport(ctx, []*model.VideoInfo{{VideoID: "v1"}, {VideoID: "v2", CommonSubLevel: &bad}})
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, q.jobs)
}

func TestSubmitReportsQueueFailure(t *testing.T) {
	t.Parallel()
	svc, q, _ := newTestService(t)
	q.err = errors.New("redis down")

	_, err := svc.SubmitRelatedVote(t.Context(), "v1", true, "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrValidation)
}

func TestTopSuggestionsCapsLimit(t *testing.T) {
	t.Parallel()
	svc, _, suggestions := newTestService(t)
	ctx := t.Context()

	for range MaxSuggestionLimit + 5 {
		_, err := suggestions.CreateSuggestion(ctx, model.KindTitle, "v1", "t")
		require.NoError(t, err)
	}

	list, err := svc.TopSuggestions(ctx, "title", "v1", 1000)
	require.NoError(t, err)
	assert.Len(t, list, MaxSuggestionLimit)

	_, err = svc.TopSuggestions(ctx, "title", "v1", 0)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestJobStatusNotFound(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	_, err := svc.JobStatus(t.Context(), "missing")
	require.ErrorIs(t, err, model.ErrNotFound)

	st, err := svc.JobStatus(t.Context(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, st.Status)
}
