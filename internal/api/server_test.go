package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/config"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/imagefetch"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/merge"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/pdftest"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/pipeline"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/render"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/templatestore"
)

const apiKey = "test-key"

const proposalJSON = `{
  "id": "p-7",
  "document_name": "판교 제안",
  "company_name": "에이비씨",
  "created_by": {"name": "이담당"},
  "options": [
    {"id": "a", "name": "A룸", "floor_plan_url": "", "branch": {"name": "판교점"}},
    {"id": "b", "name": "B룸", "branch": {"name": "분당점"}}
  ]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	srv     *Server
	orch    *pipeline.Orchestrator
	store   *templatestore.Local
	printer *pdftest.Printer
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"cover.html":      `<div class="page">{{고객사명}}</div>`,
		"service.html":    `<div class="page">{{회사명}}</div>`,
		"comparison.html": `<div class="page"><table><tr><th>지점</th><td>{{지점명}}</td><td>{{지점명}}</td></tr></table></div>`,
		"detail.html":     `<div class="page">{{옵션명}}</div><div class="page" data-subpage="floor-plan">{{IMAGE_OPTION_PLAN}}</div>`,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	printer := &pdftest.Printer{}
	store, err := templatestore.NewLocal(dir, printer, testLogger())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.APIKey = apiKey
	cfg.TemplateDir = dir
	if mutate != nil {
		mutate(&cfg)
	}

	stats := render.NewStageStats(time.Hour)
	gen := pipeline.NewGenerator(cfg, render.New(store, stats, testLogger()), imagefetch.NewResolver(cfg.ImageOptions(), testLogger()), testLogger())
	orch := pipeline.NewOrchestrator(cfg, gen, testLogger())
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return &testServer{
		srv:     NewServer(orch, store, stats, testLogger(), cfg),
		orch:    orch,
		store:   store,
		printer: printer,
	}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing authorization", decode(t, rec)["error"])

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid api key", decode(t, rec)["error"])
}

func TestRender_ReturnsPDF(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/proposals/render", proposalJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="proposal_p-7.pdf"`, rec.Header().Get("Content-Disposition"))
	// cover + service + 1 comparison + 2 details without floor plans.
	assert.Equal(t, "5", rec.Header().Get("X-Page-Count"))

	n, err := merge.PageCount(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Zero(t, ts.store.Copies())
}

func TestRender_BadRequests(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.MaxBodyBytes = 64 })

	rec := ts.do(http.MethodPost, "/api/proposals/render", `{"id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/proposals/render", `{"id":"p","options":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "proposal has no options", decode(t, rec)["error"])

	rec = ts.do(http.MethodPost, "/api/proposals/render", proposalJSON)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRender_MissingTemplate(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Templates.Detail = "gone" })

	rec := ts.do(http.MethodPost, "/api/proposals/render", proposalJSON)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "template not found")
	assert.Zero(t, ts.store.Copies())
}

func TestJobs_SubmitPollDownload(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/proposals/jobs", proposalJSON)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decode(t, rec)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, fmt.Sprintf("/api/proposals/jobs/%s", jobID), body["poll_url"])

	var status map[string]any
	require.Eventually(t, func() bool {
		rec := ts.do(http.MethodGet, "/api/proposals/jobs/"+jobID, "")
		if rec.Code != http.StatusOK {
			return false
		}
		status = decode(t, rec)
		job := status["job"].(map[string]any)
		return job["status"] == string(pipeline.StatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "/api/proposals/jobs/"+jobID+"/artifact", status["artifact_url"])

	rec = ts.do(http.MethodGet, "/api/proposals/jobs/"+jobID+"/artifact", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-Page-Count"))
}

func TestJobs_NotFoundAndPending(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/proposals/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(http.MethodGet, "/api/proposals/jobs/nope/artifact", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A failed job has no artifact.
	ts = newTestServer(t, func(c *config.Config) { c.Templates.Cover = "gone" })
	rec = ts.do(http.MethodPost, "/api/proposals/jobs", proposalJSON)
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decode(t, rec)["job_id"].(string)
	require.Eventually(t, func() bool {
		job := ts.orch.GetJob(jobID)
		return job != nil && job.Snapshot().Status == pipeline.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	rec = ts.do(http.MethodGet, "/api/proposals/jobs/"+jobID+"/artifact", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "job is failed", decode(t, rec)["error"])
}

func TestListTemplates(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Templates []templatestore.Info `json:"templates"`
		Stages    config.Templates     `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	ids := make([]string, len(body.Templates))
	for i, info := range body.Templates {
		ids[i] = info.ID
	}
	assert.Equal(t, []string{"comparison", "cover", "detail", "service"}, ids)
	assert.Equal(t, "detail", body.Stages.Detail)
}

func TestListTemplates_Unavailable(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.srv = NewServer(ts.orch, nil, nil, testLogger(), config.Config{APIKey: apiKey})

	rec := ts.do(http.MethodGet, "/api/templates", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	rec = ts.do(http.MethodGet, "/api/stats/render", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRenderStats(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/proposals/render", proposalJSON).Code)

	rec := ts.do(http.MethodGet, "/api/stats/render", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Stats render.StageSnapshot `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Stats.All.Count)
	assert.Equal(t, 2, body.Stats.Stages["detail"].Count)
}

func TestWriteGenerateError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&templatestore.QuotaError{Op: "copy", RetryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests},
		{fmt.Errorf("detail: %w", &templatestore.TransientError{Op: "export", StatusCode: 503}), http.StatusBadGateway},
		{fmt.Errorf("cover: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("merge: %w", merge.ErrMerge), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeGenerateError(rec, tt.err)
		assert.Equal(t, tt.code, rec.Code, tt.err.Error())
	}

	rec := httptest.NewRecorder()
	writeGenerateError(rec, &templatestore.QuotaError{RetryAfter: 1500 * time.Millisecond})
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}
