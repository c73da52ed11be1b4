package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealflow-cli/internal/analysis"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/store"
)

// stubBackend implements analysis.Backend with canned responses.
type stubBackend struct {
	screenResults []model.ScreeningResult
	deepResults   []model.CompanyResult
	report        *model.AIReport
	generateCalls int
}

func (s *stubBackend) Screen(ctx context.Context, req analysis.Request) ([]model.ScreeningResult, error) {
	return s.screenResults, nil
}

func (s *stubBackend) DeepDive(ctx context.Context, req analysis.Request) ([]model.CompanyResult, error) {
	return s.deepResults, nil
}

func (s *stubBackend) GenerateReport(ctx context.Context, orgnr string, force bool) (*analysis.GenerateResult, error) {
	s.generateCalls++
	return &analysis.GenerateResult{Report: s.report}, nil
}

func (s *stubBackend) FetchReport(ctx context.Context, orgnr string) (*model.AIReport, error) {
	return nil, nil
}

func (s *stubBackend) ModelVersion() string { return "stub-model" }

func newTestServer(t *testing.T, backend analysis.Backend) *httptest.Server {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	orch := analysis.New(st, backend, analysis.Config{})
	srv := httptest.NewServer(newRouter(orch))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]json.RawMessage {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	var out map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func scorePtr(v float64) *float64 { return &v }

func TestServeHealth(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeAnalysis_EmptySelection(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	resp := postJSON(t, srv.URL+"/api/ai-analysis", analysisRequest{
		AnalysisType: "screening",
		InitiatedBy:  "analyst@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.JSONEq(t, "false", string(body["success"]))
}

func TestServeAnalysis_InvalidType(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	resp := postJSON(t, srv.URL+"/api/ai-analysis", analysisRequest{
		AnalysisType: "shallow",
		Companies:    []model.Company{{Orgnr: "556000001"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
}

func TestServeAnalysis_ScreeningRoundTrip(t *testing.T) {
	backend := &stubBackend{
		screenResults: []model.ScreeningResult{
			{Orgnr: "556000001", CompanyName: "Acme AB", ScreeningScore: scorePtr(91), RiskFlag: model.RiskLow},
		},
	}
	srv := newTestServer(t, backend)

	resp := postJSON(t, srv.URL+"/api/ai-analysis", analysisRequest{
		AnalysisType: "screening",
		Companies:    []model.Company{{Orgnr: "556000001", Name: "Acme AB"}},
		InitiatedBy:  "analyst@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.JSONEq(t, "true", string(body["success"]))

	var run model.AnalysisRun
	require.NoError(t, json.Unmarshal(body["run"], &run))
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, "stub-model", run.ModelVersion)

	var payload model.AnalysisPayload
	require.NoError(t, json.Unmarshal(body["analysis"], &payload))
	require.Len(t, payload.Results, 1)
	assert.Equal(t, "556000001", payload.Results[0].Orgnr)
}

func TestServeAnalysis_RunReplayAndHistory(t *testing.T) {
	backend := &stubBackend{
		screenResults: []model.ScreeningResult{
			{Orgnr: "556000001", ScreeningScore: scorePtr(74), RiskFlag: model.RiskMedium},
		},
	}
	srv := newTestServer(t, backend)

	resp := postJSON(t, srv.URL+"/api/ai-analysis", analysisRequest{
		AnalysisType: "screening",
		Companies:    []model.Company{{Orgnr: "556000001"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	submitted := decodeBody(t, resp)

	var run model.AnalysisRun
	require.NoError(t, json.Unmarshal(submitted["run"], &run))

	// Replay returns the exact persisted payload bytes.
	resp2, err := http.Get(srv.URL + "/api/ai-analysis?runId=" + run.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	replayed := decodeBody(t, resp2)

	expected, err := json.Marshal(run.Payload)
	require.NoError(t, err)
	assert.Equal(t, string(expected), string(replayed["analysis"]))

	// History lists the run.
	resp3, err := http.Get(srv.URL + "/api/ai-analysis?history=1&limit=5")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp3.StatusCode)
	histBody := decodeBody(t, resp3)

	var history []model.AnalysisRun
	require.NoError(t, json.Unmarshal(histBody["history"], &history))
	require.Len(t, history, 1)
	assert.Equal(t, run.ID, history[0].ID)
}

func TestServeAnalysis_UnknownRun(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	resp, err := http.Get(srv.URL + "/api/ai-analysis?runId=nope")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeReport_MissThenGenerate(t *testing.T) {
	backend := &stubBackend{
		report: &model.AIReport{Orgnr: "556000001", BusinessModel: "distribution"},
	}
	srv := newTestServer(t, backend)

	resp, err := http.Get(srv.URL + "/api/ai-report?orgnr=556000001")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp2 := postJSON(t, srv.URL+"/api/ai-report", reportRequest{Orgnr: "556000001"})
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	genBody := decodeBody(t, resp2)
	assert.JSONEq(t, "true", string(genBody["success"]))
	assert.Equal(t, 1, backend.generateCalls)

	// The cache now serves both GET and non-forced POST.
	resp3, err := http.Get(srv.URL + "/api/ai-report?orgnr=556000001")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp3.StatusCode)
	getBody := decodeBody(t, resp3)

	var report model.AIReport
	require.NoError(t, json.Unmarshal(getBody["report"], &report))
	assert.Equal(t, "distribution", report.BusinessModel)

	resp4 := postJSON(t, srv.URL+"/api/ai-report", reportRequest{Orgnr: "556000001"})
	require.Equal(t, http.StatusOK, resp4.StatusCode)
	resp4.Body.Close() //nolint:errcheck
	assert.Equal(t, 1, backend.generateCalls, "non-forced regeneration serves the cache")

	resp5 := postJSON(t, srv.URL+"/api/ai-report", reportRequest{Orgnr: "556000001", ForceRegenerate: true})
	require.Equal(t, http.StatusOK, resp5.StatusCode)
	resp5.Body.Close() //nolint:errcheck
	assert.Equal(t, 2, backend.generateCalls)
}

func TestServeReport_MissingOrgnr(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})

	resp := postJSON(t, srv.URL+"/api/ai-report", reportRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp2, err := http.Get(srv.URL + "/api/ai-report")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	resp2.Body.Close() //nolint:errcheck
}
