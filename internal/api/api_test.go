package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"VideoSuggest/internal/adapter"
	"VideoSuggest/internal/config"
	"VideoSuggest/internal/database/dbtest"
	"VideoSuggest/internal/model"
	"VideoSuggest/internal/queue"
	"VideoSuggest/internal/repository"
	"VideoSuggest/internal/service"
	"VideoSuggest/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/rueidis"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	pool    *worker.Pool
	queue   *queue.Manager
	videos  *repository.VideoRepository
	limiter *RateLimiter
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

var generousLimits = config.RateLimitConfig{
	Enabled: true, Window: time.Minute, Create: 1000, Read: 1000, Vote: 1000, Admin: 1000,
}

func newTestServer(t *testing.T, limits config.RateLimitConfig) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db := dbtest.New(t)
	mr := miniredis.RunT(t)
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	q := queue.NewManager(client, "test", time.Hour, logger)
	suggestions := repository.NewSuggestionRepository(db)
	videos := repository.NewVideoRepositoryInstance(db)
	svc := service.NewSuggestionService(suggestions, videos, q, q, logger)
	syncSvc := service.NewSyncService(
		adapter.NewPlatformRegistry(&config.Config{}, logger),
		videos, repository.NewSyncRunRepository(db), logger,
	)
	limiter := NewRateLimiter(client, limits, logger)

	r := gin.New()
	RegisterRoutes(r, Handlers{
		Suggestion: NewSuggestionHandler(svc, logger),
		Video:      NewVideoHandler(svc, logger),
		Job:        NewJobHandler(svc, logger),
		Sync:       NewSyncHandler(syncSvc, logger),
	}, limiter)

	pool := worker.NewPool(q, worker.NewDispatcher(suggestions, videos, logger),
		config.WorkerConfig{Concurrency: 1, MaxAttempts: 3}, logger)
	return &testServer{router: r, pool: pool, queue: q, videos: videos, limiter: limiter}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

// drain 同步执行队列中的全部任务
func (s *testServer) drain(t *testing.T) {
	t.Helper()
	for {
		processed, err := s.pool.ProcessNext(t.Context())
		require.NoError(t, err)
		if !processed {
			return
		}
	}
}

func jobID(t *testing.T, env envelope) string {
	t.Helper()
	var data struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.JobID)
	return data.JobID
}

func suggestions(t *testing.T, env envelope) []model.Suggestion {
	t.Helper()
	var list []model.Suggestion
	require.NoError(t, json.Unmarshal(env.Data, &list))
	return list
}

func TestSuggestionSubmitVoteAndRead(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, generousLimits)

	w, env := s.do(t, http.MethodPost, "/api/videos/v1/title-suggestions", `{"video_id":"v1","text":"Intro to Fiqh"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, env.Success)
	createJob := jobID(t, env)
	s.drain(t)

	w, env = s.do(t, http.MethodGet, "/api/jobs/"+createJob, "")
	require.Equal(t, http.StatusOK, w.Code)
	var st queue.Status
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, model.JobStatusFinished, st.Status)

	w, env = s.do(t, http.MethodGet, "/api/videos/v1/title-suggestions", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := suggestions(t, env)
	require.Len(t, list, 1)
	assert.Equal(t, "Intro to Fiqh", list[0].Text)
	assert.Equal(t, int64(0), list[0].ApprovalCount)

	for _, voter := range []string{"abc", "abc", "xyz"} {
		w, _ = s.do(t, http.MethodPost, "/api/title-suggestions/"+list[0].ID+"/vote", `{"voter_hash":"`+voter+`"}`)
		require.Equal(t, http.StatusAccepted, w.Code)
	}
	s.drain(t)

	_, env = s.do(t, http.MethodGet, "/api/videos/v1/title-suggestions?limit=1", "")
	list = suggestions(t, env)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].ApprovalCount)
}

func TestLegacyTextFieldNames(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, generousLimits)

	bodies := map[string]string{
		"title":       `{"title_text":"T"}`,
		"description": `{"description_text":"D"}`,
		"lesson-name": `{"lesson_name_text":"L"}`,
		"lecturer":    `{"lecturer_name_text":"N"}`,
	}
	for kind, body := range bodies {
		w, _ := s.do(t, http.MethodPost, "/api/videos/v1/"+kind+"-suggestions", body)
		require.Equal(t, http.StatusAccepted, w.Code, kind)
	}
	s.drain(t)

	for kind := range bodies {
		_, env := s.do(t, http.MethodGet, "/api/videos/v1/"+kind+"-suggestions", "")
		assert.Len(t, suggestions(t, env), 1, kind)
	}
}

func TestIdempotencyKeyHeader(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, generousLimits)

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/videos/v1/description-suggestions", strings.NewReader(`{"text":"D"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "client-42")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusAccepted, w.Code)
	}
	s.drain(t)

	_, env := s.do(t, http.MethodGet, "/api/videos/v1/description-suggestions", "")
	assert.Len(t, suggestions(t, env), 1)
}

func TestSubmitValidationErrors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, generousLimits)

	cases := []struct {
		name, method, path, body string
	}{
		{"video mismatch", http.MethodPost, "/api/videos/v1/title-suggestions", `{"video_id":"v2","text":"x"}`},
		{"empty text", http.MethodPost, "/api/videos/v1/title-suggestions", `{"text":""}`},
		{"malformed body", http.MethodPost, "/api/videos/v1/title-suggestions", `{"text":`},
		{"bad uuid", http.MethodPost, "/api/lecturer-suggestions/123/vote", `{"voter_hash":"abc"}`},
		{"empty voter", http.MethodPost, "/api/lecturer-suggestions/5f0c6d3e-8a4b-4b8e-9d2a-0d7b1c2e3f40/vote", `{}`},
		{"missing is_related", http.MethodPost, "/api/videos/v1/related-vote", `{"voter_hash":"abc"}`},
		{"bad limit", http.MethodGet, "/api/videos/v1/title-suggestions?limit=abc", ""},
		{"zero limit", http.MethodGet, "/api/videos/v1/title-suggestions?limit=0", ""},
		{"bad related_only", http.MethodGet, "/api/videos?related_only=maybe", ""},
		{"empty import", http.MethodPost, "/api/videos", `[]`},
	}
	for _, tc := range cases {
		w, env := s.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.name)
		assert.False(t, env.Success, tc.name)
		assert.NotEmpty(t, env.Message, tc.name)
	}

	pending, _, _, err := s.queue.Lengths(t.Context())
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRelatedVoteAndCatalog(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, generousLimits)
	ctx := t.Context()

	newer := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.videos.SaveVideos(ctx, []*model.Video{
		{VideoID: "v1", Title: "one", PublishedAt: &older},
		{VideoID: "v2", Title: "two", PublishedAt: &newer},
	}))

	votes := []string{
		`{"is_related":true,"voter_hash":"a"}`,
		`{"is_related":true,"voter_hash":"b"}`,
		`{"is_related":false,"voter_hash":"c"}`,
	}
	for _, body := range votes {
		w, _ := s.do(t, http.MethodPost, "/api/videos/v1/related-vote", body)
		require.Equal(t, http.StatusAccepted, w.Code)
	}
	w, _ := s.do(t, http.MethodPost, "/api/videos/v2/related-vote", `{"is_related":false,"voter_hash":"a"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	s.drain(t)

	_, env := s.do(t, http.MethodGet, "/api/videos/v1/related-suggestions", "")
	var options []model.RelatedSuggestion
	require.NoError(t, json.Unmarshal(env.Data, &options))
	require.Len(t, options, 2)
	assert.True(t, options[0].IsRelated)
	assert.Equal(t, int64(2), options[0].ApprovalCount)

	_, env = s.do(t, http.MethodGet, "/api/videos?related_only=true", "")
	var related []model.CatalogVideo
	require.NoError(t, json.Unmarshal(env.Data, &related))
	require.Len(t, related, 1)
	assert.Equal(t, "v1", related[0].VideoID)
	assert.Equal(t, int64(2), related[0].RelatedVotes)
	assert.Equal(t, int64(1), related[0].NotRelatedVotes)

	_, env = s.do(t, http.MethodGet, "/api/videos", "")
	var all []model.CatalogVideo
	require.NoError(t, json.Unmarshal(env.Data, &all))
	require.Len(t, all, 2)
	assert.Equal(t, "v2", all[0].VideoID)
	assert.False(t, all[0].IsRelated)
}

func TestVideoImportAndCount(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, generousLimits)

	body := `[{"video_id":"v1","main_level":"التمهيدية","lesson_name":"L1"},{"video_id":"v2"}]`
	w, _ := s.do(t, http.MethodPost, "/api/videos", body)
	require.Equal(t, http.StatusAccepted, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/videos", `[{"video_id":"v3","main_level":"unknown"}]`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	s.drain(t)

	_, env := s.do(t, http.MethodGet, "/api/videos/count", "")
	assert.JSONEq(t, `{"count":2}`, string(env.Data))
}

func TestNotFoundResponses(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, generousLimits)

	for _, path := range []string{"/api/jobs/unknown", "/api/sync/platform/youtube", "/api/platforms/youtube/count"} {
		w, env := s.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.False(t, env.Success, path)
	}

	w, _ := s.do(t, http.MethodPost, "/api/sync/platform/youtube", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimitPerClass(t *testing.T) {
	t.Parallel()
	limits := generousLimits
	limits.Read = 2
	s := newTestServer(t, limits)
	s.limiter.now = func() time.Time { return time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC) }

	for range 2 {
		w, _ := s.do(t, http.MethodGet, "/api/videos/count", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, env := s.do(t, http.MethodGet, "/api/videos/count", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	// 其他类别不受影响
	w, _ = s.do(t, http.MethodPost, "/api/videos/v1/title-suggestions", `{"text":"x"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	// 下一个窗口重新计数
	s.limiter.now = func() time.Time { return time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC) }
	w, _ = s.do(t, http.MethodGet, "/api/videos/count", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	t.Parallel()
	limits := generousLimits
	limits.Enabled = false
	limits.Read = 1
	s := newTestServer(t, limits)

	for range 3 {
		w, _ := s.do(t, http.MethodGet, "/api/videos/count", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
}
