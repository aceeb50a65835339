package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/utanutan/youtube-comment-analyzer/internal/domain"
	"github.com/utanutan/youtube-comment-analyzer/internal/queue"
	"github.com/utanutan/youtube-comment-analyzer/internal/storage"
)

func newTestServer(t *testing.T) (*Server, storage.Store, *queue.Memory) {
	t.Helper()

	store := storage.NewMemory()
	q := queue.NewMemory(3)
	logger := zerolog.Nop()

	srv := NewServer(store, q, Options{
		DefaultMaxComments: 500,
		MaxCommentsCeiling: 5000,
		JobRetention:       168 * time.Hour,
	}, &logger)

	return srv, store, q
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	return rec
}

func TestSubmitAccepted(t *testing.T) {
	srv, store, q := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/analyze", `{"videoId":"https://www.youtube.com/watch?v=dQw4w9WgXcQ","maxComments":1000}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	require.Equal(t, "queued", resp.Status)
	require.NotEmpty(t, resp.CreatedAt)

	job, err := store.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.Equal(t, "dQw4w9WgXcQ", job.VideoID)
	require.Equal(t, 1000, job.Params.MaxComments)
	require.Equal(t, "ja", job.Params.Lang)

	d, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, resp.JobID, d.Message().JobID)
	require.Equal(t, "dQw4w9WgXcQ", d.Message().VideoID)
	require.Equal(t, 1000, d.Message().MaxComments)
}

func TestSubmitDefaultsAndClamp(t *testing.T) {
	srv, store, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/analyze", `{"videoId":"dQw4w9WgXcQ"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	job, err := store.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.Equal(t, 500, job.Params.MaxComments)

	rec = do(t, srv, http.MethodPost, "/analyze", `{"videoId":"dQw4w9WgXcQ","maxComments":999999}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	job, err = store.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.Equal(t, 5000, job.Params.MaxComments)
}

func TestSubmitValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{name: "not a url", body: `{"videoId":"not a url"}`},
		{name: "empty", body: `{"videoId":""}`},
		{name: "broken json", body: `{"videoId":`},
		{name: "negative cap", body: `{"videoId":"dQw4w9WgXcQ","maxComments":-5}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/analyze", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, "validation_error", resp["error"])
		})
	}
}

type captureStore struct {
	storage.Store
	created []string
}

func (s *captureStore) Create(ctx context.Context, job *domain.Job) error {
	s.created = append(s.created, job.ID)

	return s.Store.Create(ctx, job)
}

func TestSubmitEnqueueFailureRollsBack(t *testing.T) {
	store := &captureStore{Store: storage.NewMemory()}
	q := queue.NewMemory(3)
	logger := zerolog.Nop()

	srv := NewServer(store, q, Options{
		DefaultMaxComments: 500,
		MaxCommentsCeiling: 5000,
		JobRetention:       168 * time.Hour,
	}, &logger)

	require.NoError(t, q.Close())

	rec := do(t, srv, http.MethodPost, "/analyze", `{"videoId":"dQw4w9WgXcQ"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "internal_error", resp["error"])

	// the record created before the enqueue attempt is rolled back rather
	// than pushed into a terminal state
	require.Len(t, store.created, 1)

	_, err := store.Get(context.Background(), store.created[0])
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatus(t *testing.T) {
	srv, store, _ := newTestServer(t)

	job := domain.NewJob("11111111-1111-1111-1111-111111111111", "dQw4w9WgXcQ", domain.Params{MaxComments: 500, Lang: "ja"}, 168*time.Hour)
	require.NoError(t, store.Create(context.Background(), job))

	rec := do(t, srv, http.MethodGet, "/analyze/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, job.ID, got.ID)
	require.Equal(t, domain.StatusQueued, got.Status)
	require.Nil(t, got.Result)
}

func TestStatusNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/analyze/22222222-2222-2222-2222-222222222222", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "not_found", resp["error"])
}

func TestExportGating(t *testing.T) {
	ctx := context.Background()
	srv, store, _ := newTestServer(t)

	job := domain.NewJob("33333333-3333-3333-3333-333333333333", "dQw4w9WgXcQ", domain.Params{MaxComments: 500, Lang: "ja"}, 168*time.Hour)
	require.NoError(t, store.Create(ctx, job))

	rec := do(t, srv, http.MethodGet, "/analyze/"+job.ID+"/export", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "not_ready", resp["error"])

	running := domain.StatusRunning
	require.NoError(t, store.Update(ctx, job.ID, storage.Patch{Status: &running}))

	completed := domain.StatusCompleted
	require.NoError(t, store.Update(ctx, job.ID, storage.Patch{
		Status: &completed,
		Result: &domain.Result{
			Summary: domain.Summary{TotalComments: 2},
			Comments: []domain.Comment{
				{CommentID: "c1", TextClean: "最高", SentimentLabel: domain.SentimentPositive, SentimentScore: 0.9, PublishedAt: time.Now()},
				{CommentID: "c2", TextClean: "普通", SentimentLabel: domain.SentimentNeutral, SentimentScore: 0.5, PublishedAt: time.Now()},
			},
		},
	}))

	rec = do(t, srv, http.MethodGet, "/analyze/"+job.ID+"/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	require.Contains(t, rec.Header().Get("Content-Disposition"), `comments_dQw4w9WgXcQ.csv`)

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "commentId", records[0][0])
	require.Equal(t, "c1", records[1][0])
}

func TestExportNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/analyze/44444444-4444-4444-4444-444444444444/export", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
