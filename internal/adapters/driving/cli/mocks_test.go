package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

type mockIngestion struct {
	mu          sync.Mutex
	uploads     []domain.UploadRequest
	uploadErr   error
	statuses    map[string]*driving.DocumentStatus
	deleted     []string
	regenerated []string
	waited      []string
}

func newMockIngestion() *mockIngestion {
	return &mockIngestion{statuses: make(map[string]*driving.DocumentStatus)}
}

func (m *mockIngestion) Upload(_ context.Context, req domain.UploadRequest) (*domain.UploadReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.uploads = append(m.uploads, req)
	id := "doc-" + req.FileName
	if _, ok := m.statuses[id]; !ok {
		m.statuses[id] = &driving.DocumentStatus{
			DocumentID: id,
			Status:     domain.StatusCompleted,
			Metadata:   map[string]any{domain.MetaChunkCount: 2},
		}
	}
	return &domain.UploadReceipt{DocumentID: id, Status: domain.ReceiptStatusProcessing}, nil
}

func (m *mockIngestion) Status(_ context.Context, id string) (*driving.DocumentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st, nil
}

func (m *mockIngestion) Regenerate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[id]; !ok {
		return domain.ErrNotFound
	}
	m.regenerated = append(m.regenerated, id)
	return nil
}

func (m *mockIngestion) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.statuses, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockIngestion) Wait(ctx context.Context, id string) (*driving.DocumentStatus, error) {
	m.mu.Lock()
	m.waited = append(m.waited, id)
	m.mu.Unlock()
	return m.Status(ctx, id)
}

type mockRetrieval struct {
	results  []domain.SearchResult
	err      error
	queries  []string
	lastOpts domain.SearchOptions
}

func (m *mockRetrieval) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.queries = append(m.queries, query)
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockRetrieval) BatchSearch(
	ctx context.Context, queries []string, opts domain.SearchOptions,
) ([][]domain.SearchResult, error) {
	out := make([][]domain.SearchResult, len(queries))
	for i, q := range queries {
		results, err := m.Search(ctx, q, opts)
		if err != nil {
			return nil, err
		}
		out[i] = results
	}
	return out, nil
}

type mockDocuments struct {
	docs     []domain.Document
	details  map[string]*driving.DocumentDetails
	stats    *domain.KnowledgeBaseStats
	lastOpts domain.ListOptions
}

func (m *mockDocuments) List(_ context.Context, opts domain.ListOptions) ([]domain.Document, error) {
	m.lastOpts = opts
	if opts.Status != "" && !opts.Status.IsValid() {
		return nil, domain.ErrInvalidInput
	}
	return m.docs, nil
}

func (m *mockDocuments) Get(_ context.Context, id string) (*domain.Document, error) {
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocuments) GetDetails(_ context.Context, id string) (*driving.DocumentDetails, error) {
	d, ok := m.details[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (m *mockDocuments) Stats(context.Context) (*domain.KnowledgeBaseStats, error) {
	if m.stats == nil {
		return &domain.KnowledgeBaseStats{}, nil
	}
	return m.stats, nil
}

type mockSettings struct {
	settings    domain.AppSettings
	set         map[string]string
	validateErr error
	provider    domain.AIProvider
	model       string
	apiKey      string
}

func newMockSettings() *mockSettings {
	return &mockSettings{settings: domain.DefaultAppSettings(), set: make(map[string]string)}
}

func (m *mockSettings) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettings) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettings) SetValue(key, value string) error {
	if key == "nope" {
		return domain.ErrInvalidInput
	}
	m.set[key] = value
	return nil
}

func (m *mockSettings) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.provider, m.model, m.apiKey = provider, model, apiKey
	return nil
}

func (m *mockSettings) Validate() error {
	return m.validateErr
}

func (m *mockSettings) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

type mockScheduler struct {
	report *driving.TaskReport
	ran    []string
}

func (m *mockScheduler) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error { return nil }

func (m *mockScheduler) RunNow(_ context.Context, taskID string) (*driving.TaskReport, error) {
	m.ran = append(m.ran, taskID)
	if m.report == nil {
		return &driving.TaskReport{TaskID: taskID, Success: true}, nil
	}
	return m.report, nil
}

type mockWorkers struct {
	started int
	stopped int
}

func (m *mockWorkers) Start(context.Context) error {
	m.started++
	return nil
}

func (m *mockWorkers) Stop() error {
	m.stopped++
	return nil
}

// testServices bundles the mocks installed by setupTestServices.
type testServices struct {
	ingestion *mockIngestion
	retrieval *mockRetrieval
	documents *mockDocuments
	settings  *mockSettings
	scheduler *mockScheduler
	workers   *mockWorkers
}

// setupTestServices installs fresh mocks and restores globals afterwards.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	ts := &testServices{
		ingestion: newMockIngestion(),
		retrieval: &mockRetrieval{},
		documents: &mockDocuments{details: make(map[string]*driving.DocumentDetails)},
		settings:  newMockSettings(),
		scheduler: &mockScheduler{},
		workers:   &mockWorkers{},
	}
	SetServices(&Services{
		Ingestion: ts.ingestion,
		Retrieval: ts.retrieval,
		Documents: ts.documents,
		Settings:  ts.settings,
		Scheduler: ts.scheduler,
		Workers:   ts.workers,
	})
	t.Cleanup(resetCLIState)
	return ts
}

func resetCLIState() {
	SetServices(nil)
	loader = nil
	uploadWait, regenerateWait, statusJSON, listJSON = false, false, false, false
	listStatus, listLimit = "", 0
	searchTopK, searchDocs, searchJSON = 0, nil, false
	versionShort = false
	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetIn(nil)
}

// execute runs the root command with args and returns the combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}
