package analysis

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/store"
)

// mockBackend is a scriptable Backend for orchestrator tests.
type mockBackend struct {
	mu            sync.Mutex
	screenCalls   int
	deepCalls     int
	generateCalls int
	fetchCalls    int

	screenResults []model.ScreeningResult
	screenErr     error
	lastScreenReq Request

	deepResults []model.CompanyResult
	deepErr     error
	lastDeepReq Request

	generateResult  *GenerateResult
	generateErr     error
	generateStarted chan struct{}
	generateRelease chan struct{}

	// fetchReports is consumed one entry per FetchReport call; nil entries
	// mean "not ready yet". Once exhausted, FetchReport keeps returning
	// not-ready.
	fetchReports []*model.AIReport
	fetchErr     error

	modelVersion string
}

func (m *mockBackend) Screen(ctx context.Context, req Request) ([]model.ScreeningResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screenCalls++
	m.lastScreenReq = req
	return m.screenResults, m.screenErr
}

func (m *mockBackend) DeepDive(ctx context.Context, req Request) ([]model.CompanyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deepCalls++
	m.lastDeepReq = req
	return m.deepResults, m.deepErr
}

func (m *mockBackend) GenerateReport(ctx context.Context, orgnr string, force bool) (*GenerateResult, error) {
	m.mu.Lock()
	m.generateCalls++
	started := m.generateStarted
	release := m.generateRelease
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateResult, m.generateErr
}

func (m *mockBackend) FetchReport(ctx context.Context, orgnr string) (*model.AIReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if len(m.fetchReports) == 0 {
		return nil, nil
	}
	next := m.fetchReports[0]
	m.fetchReports = m.fetchReports[1:]
	return next, nil
}

func (m *mockBackend) ModelVersion() string {
	if m.modelVersion == "" {
		return "mock-model"
	}
	return m.modelVersion
}

func (m *mockBackend) counts() (screen, deep, generate, fetch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screenCalls, m.deepCalls, m.generateCalls, m.fetchCalls
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func floatPtr(v float64) *float64 { return &v }

func testCompanies(orgnrs ...string) []model.Company {
	out := make([]model.Company, len(orgnrs))
	for i, o := range orgnrs {
		out[i] = model.Company{Orgnr: o, Name: "Company " + o}
	}
	return out
}
