package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/leadscout/internal/types"
)

type fakeDriver struct {
	navigateErr error
	posts       []types.RawPost
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error { return d.navigateErr }

func (d *fakeDriver) Observe(ctx context.Context, instruction string) (string, error) {
	return "page looks fine", nil
}

func (d *fakeDriver) Extract(ctx context.Context, instruction, schema string) ([]types.RawPost, error) {
	return d.posts, nil
}

type fakeSink struct{}

func (fakeSink) Capture(ctx context.Context, jobID, stageName string) (string, error) {
	return "media/" + jobID + "_" + stageName + ".png", nil
}

func samplePosts() []types.RawPost {
	return []types.RawPost{
		{
			Text:         "Looking for automation tools, any recommendations?",
			AuthorHandle: "@alice",
			Likes:        12,
			Replies:      4,
			ThreadURL:    "https://x.com/alice/status/1",
		},
	}
}

// newTestServer builds a server with a fake session factory and one worker
// running in the background. Rate limiting is off unless a test opts in.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	s, err := New(context.Background(), Config{Workers: 1})
	require.NoError(t, err)
	t.Cleanup(s.limiter.Close)

	s.newSession = func(ctx context.Context) (*Session, error) {
		return &Session{
			Driver:  &fakeDriver{posts: samplePosts()},
			Sink:    fakeSink{},
			Cleanup: func() {},
		}, nil
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.runWorker(workerCtx)

	return s
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func submitJob(t *testing.T, s *Server, body string) string {
	t.Helper()
	rec := doRequest(s, http.MethodPost, "/jobs", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp jobSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	return resp.JobID
}

func waitTerminal(t *testing.T, s *Server, jobID string) *types.JobResult {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view, ok := s.store.get(jobID)
		require.True(t, ok)
		if view.Result != nil {
			return view.Result
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal status", jobID)
	return nil
}

func TestSubmitJob_RunsToCompletion(t *testing.T) {
	s := newTestServer(t)

	jobID := submitJob(t, s, `{"keywords": ["automation"], "capture_media": true}`)
	result := waitTerminal(t, s, jobID)

	assert.Equal(t, types.StatusCompleted, result.Status)
	require.Len(t, result.Leads, 1)
	assert.Equal(t, "@alice", result.Leads[0].AuthorHandle)
	assert.Len(t, result.Stages, 5)

	// Terminal lookup returns the full result, thread URL included.
	rec := doRequest(s, http.MethodGet, "/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://x.com/alice/status/1")
}

func TestSubmitJob_DefaultsPriority(t *testing.T) {
	s := newTestServer(t)

	jobID := submitJob(t, s, `{"keywords": ["automation"]}`)
	view, ok := s.store.get(jobID)
	require.True(t, ok)
	assert.NotEmpty(t, view.JobID)
}

func TestSubmitJob_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"no keywords", `{"keywords": []}`},
		{"bad priority", `{"keywords": ["a"], "priority": "urgent"}`},
		{"video without media", `{"keywords": ["a"], "record_video": true}`},
		{"malformed", `{"keywords": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetJob_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelJob_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/jobs/nope/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelJob_AlreadyFinished(t *testing.T) {
	s := newTestServer(t)

	jobID := submitJob(t, s, `{"keywords": ["automation"]}`)
	waitTerminal(t, s, jobID)

	rec := doRequest(s, http.MethodPost, "/jobs/"+jobID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelJob_WhileQueued(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	// No worker running yet, so the job stays queued.
	s, err := New(context.Background(), Config{Workers: 1})
	require.NoError(t, err)
	t.Cleanup(s.limiter.Close)
	s.newSession = func(ctx context.Context) (*Session, error) {
		t.Fatal("cancelled job must not create a session")
		return nil, nil
	}

	jobID := submitJob(t, s, `{"keywords": ["automation"]}`)

	rec := doRequest(s, http.MethodPost, "/jobs/"+jobID+"/cancel", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	// Now let a worker pick it up.
	workerCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.runWorker(workerCtx)

	result := waitTerminal(t, s, jobID)
	assert.Equal(t, types.StatusCancelled, result.Status)
	for _, st := range result.Stages {
		assert.Equal(t, types.OutcomeSkipped, st.Outcome)
	}
}

func TestListJobs(t *testing.T) {
	s := newTestServer(t)

	first := submitJob(t, s, `{"keywords": ["automation"]}`)
	second := submitJob(t, s, `{"keywords": ["workflow"]}`)
	waitTerminal(t, s, first)
	waitTerminal(t, s, second)

	rec := doRequest(s, http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs []jobSummary `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 2)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRateLimit_SubmitDenied(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_SUBMIT_CAPACITY", "1")
	t.Setenv("RATE_LIMIT_SUBMIT_REFILL", "0.001")

	s, err := New(context.Background(), Config{Workers: 1})
	require.NoError(t, err)
	t.Cleanup(s.limiter.Close)

	body := `{"keywords": ["automation"]}`
	rec := doRequest(s, http.MethodPost, "/jobs", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = doRequest(s, http.MethodPost, "/jobs", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestSessionFailure_MarksJobFailed(t *testing.T) {
	s := newTestServer(t)
	s.newSession = func(ctx context.Context) (*Session, error) {
		return nil, assert.AnError
	}

	jobID := submitJob(t, s, `{"keywords": ["automation"]}`)
	result := waitTerminal(t, s, jobID)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Empty(t, result.Leads)
}
