package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mohammad-safakhou/claimcheck/internal/factcheck"
	"github.com/mohammad-safakhou/claimcheck/internal/progress"
	"github.com/mohammad-safakhou/claimcheck/internal/store"
	"github.com/mohammad-safakhou/claimcheck/models"
)

type fakeSubmitter struct {
	hub *progress.Hub
	got []models.JobRequest
}

func (f *fakeSubmitter) Submit(ctx context.Context, req models.JobRequest) (models.Job, error) {
	if !strings.HasPrefix(req.URL, "http") {
		return models.Job{}, models.ErrInvalidRequest
	}
	f.got = append(f.got, req)
	return f.hub.CreateJob(ctx, req.URL, req)
}

type fakeResearcher struct {
	records map[string]models.ResearchResponse
	noStore bool
	last    models.ResearchRequest
}

func (f *fakeResearcher) Research(_ context.Context, req models.ResearchRequest) (models.ResearchResponse, error) {
	f.last = req
	req = req.Normalize("US")
	if err := req.Validate(); err != nil {
		return models.ResearchResponse{}, err
	}
	return models.ResearchResponse{
		SynthesizedVerdict: models.SynthesizedVerdict{Verdict: models.VerdictTrue, ConfidenceScore: 80},
		Statement:          req.Statement,
		Source:             req.Source,
		RecordID:           "rec-new",
	}, nil
}

func (f *fakeResearcher) Record(_ context.Context, id string) (models.ResearchResponse, error) {
	if f.noStore {
		return models.ResearchResponse{}, factcheck.ErrStorageDisabled
	}
	rec, ok := f.records[id]
	if !ok {
		return models.ResearchResponse{}, store.ErrNotFound
	}
	return rec, nil
}

func newTestServer(t *testing.T) (*Server, *progress.Hub, *fakeSubmitter, *fakeResearcher) {
	t.Helper()
	hub := progress.NewHub(progress.NewMemoryJobStore())
	sub := &fakeSubmitter{hub: hub}
	res := &fakeResearcher{records: map[string]models.ResearchResponse{
		"rec-1": {Statement: "The sky is blue", RecordID: "rec-1"},
	}}
	return New(sub, hub, res, WithHeartbeat(time.Second)), hub, sub, res
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealthz(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSubmitJobDefaultsFlags(t *testing.T) {
	srv, _, sub, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodPost, "/api/jobs",
		`{"url":"https://youtu.be/abc","speaker_name":"<b>Jane</b> Doe","research_statements":false}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var body jobAccepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.JobID)
	assert.Equal(t, models.StatusCreated, body.Status)
	assert.Equal(t, "/api/jobs/"+body.JobID+"/stream", body.StreamURL)

	require.Len(t, sub.got, 1)
	assert.True(t, sub.got[0].CleanupAudio)
	assert.False(t, sub.got[0].ResearchStatements)
	assert.Equal(t, "Jane Doe", sub.got[0].SpeakerName)
}

func TestSubmitJobRejectsInvalid(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodPost, "/api/jobs", `{"url":"ftp://x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, errorBody(t, rec))

	rec = do(t, srv.Handler(), http.MethodPost, "/api/jobs", `{"url":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", errorBody(t, rec))
}

func TestGetJob(t *testing.T) {
	srv, hub, _, _ := newTestServer(t)
	ctx := context.Background()
	job, err := hub.CreateJob(ctx, "https://example.com/v", models.JobRequest{URL: "https://example.com/v"})
	require.NoError(t, err)
	_, err = hub.Publish(ctx, job.ID, progress.Update{Status: models.StatusDownloading, Progress: 20, Step: "Downloading"})
	require.NoError(t, err)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/jobs/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.StatusDownloading, got.Status)
	assert.Equal(t, 20, got.Progress)

	rec = do(t, srv.Handler(), http.MethodGet, "/api/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, progress.ErrJobNotFound.Error(), errorBody(t, rec))
}

func readEvents(t *testing.T, body string) []models.ProgressEvent {
	t.Helper()
	var out []models.ProgressEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev models.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		out = append(out, ev)
	}
	return out
}

func TestStreamFinishedJob(t *testing.T) {
	srv, hub, _, _ := newTestServer(t)
	ctx := context.Background()
	job, err := hub.CreateJob(ctx, "https://example.com/v", models.JobRequest{URL: "https://example.com/v"})
	require.NoError(t, err)
	_, err = hub.Publish(ctx, job.ID, progress.Update{Status: models.StatusFailed, Step: "Processing failed", Error: "boom"})
	require.NoError(t, err)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/jobs/"+job.ID+"/stream", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, models.EventConnection, events[0].Type)
	assert.Equal(t, job.ID, events[0].JobID)
	assert.Equal(t, models.EventStatus, events[1].Type)
	assert.Equal(t, models.StatusFailed, events[1].Status)
	assert.Equal(t, "boom", events[1].Error)
}

func TestStreamLiveJob(t *testing.T) {
	srv, hub, _, _ := newTestServer(t)
	ctx := context.Background()
	job, err := hub.CreateJob(ctx, "https://example.com/v", models.JobRequest{URL: "https://example.com/v"})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/jobs/" + job.ID + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	go func() {
		_, _ = hub.Publish(ctx, job.ID, progress.Update{Status: models.StatusDownloading, Progress: 10})
		_, _ = hub.Publish(ctx, job.ID, progress.Update{Status: models.StatusCompleted, Progress: 100})
	}()

	var statuses []models.Status
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev models.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		if ev.Type == models.EventConnection || ev.Type == models.EventHeartbeat {
			continue
		}
		statuses = append(statuses, ev.Status)
	}
	require.NotEmpty(t, statuses)
	assert.Equal(t, models.StatusCompleted, statuses[len(statuses)-1])
	for i := 1; i < len(statuses); i++ {
		assert.GreaterOrEqual(t, statuses[i].Rank(), statuses[i-1].Rank())
	}
}

func TestStreamUnknownJob(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/jobs/nope/stream", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResearchEndpoints(t *testing.T) {
	srv, _, _, res := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodPost, "/api/research",
		`{"statement":"Water boils at 100C at sea level","source":"<i>Professor</i>"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got models.ResearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.VerdictTrue, got.Verdict)
	assert.Equal(t, "Professor", got.Source)
	assert.Equal(t, "rec-new", got.RecordID)

	rec = do(t, srv.Handler(), http.MethodPost, "/api/research", `{"statement":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv.Handler(), http.MethodPost, "/api/research",
		`{"statement":"Inflation halved","datetime":"2024-03-08"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, res.last.StatementDate)
	assert.Equal(t, "2024-03-08", res.last.StatementDate.Format(time.DateOnly))

	rec = do(t, srv.Handler(), http.MethodPost, "/api/research",
		`{"statement":"Inflation halved","datetime":"last spring"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv.Handler(), http.MethodGet, "/api/research/rec-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"research_id":"rec-1"`)

	rec = do(t, srv.Handler(), http.MethodGet, "/api/research/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	res.noStore = true
	rec = do(t, srv.Handler(), http.MethodGet, "/api/research/rec-1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOpenAPIDocument(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/openapi.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Paths map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &doc))
	for _, p := range []string{"/api/jobs", "/api/jobs/{id}", "/api/jobs/{id}/stream", "/api/research", "/api/research/{id}"} {
		assert.Contains(t, doc.Paths, p)
	}
}

func TestDocsPageListsEndpoints(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/api/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "Claimcheck API")
	assert.Contains(t, body, "<td>POST</td><td><code>/api/jobs</code></td><td>Submit a media URL for processing</td><td>202, 400</td>")
	assert.Contains(t, body, "<code>/api/jobs/{id}/stream</code></td><td>Server-sent progress events for a job (SSE)</td>")
	assert.Contains(t, body, "<code>/api/research/{id}</code>")
	assert.Less(t, strings.Index(body, "/api/jobs</code>"), strings.Index(body, "/api/research</code>"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
