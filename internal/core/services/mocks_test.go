package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/adapters/driven/blobstore/filesystem"
	"github.com/custodia-labs/kbase/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/memory"
	vectormemory "github.com/custodia-labs/kbase/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/extractors"
	"github.com/custodia-labs/kbase/internal/postprocessors"
	"github.com/custodia-labs/kbase/internal/postprocessors/chunker"
)

var (
	_ driven.VectorIndex      = (*faultyIndex)(nil)
	_ driven.VectorIndex      = (*stubIndex)(nil)
	_ driven.EmbeddingService = (*mockEmbeddingService)(nil)
	_ driven.EmbeddingService = (*gatedEmbedder)(nil)
	_ driven.EmbeddingService = (*topicEmbedder)(nil)
	_ driven.DocumentStore    = (*recordingDocStore)(nil)
	_ driven.SchedulerStore   = (*mockSchedulerStore)(nil)
	_ Maintainer              = (*mockMaintainer)(nil)
)

// --- Ingestion harness ---

type testEnv struct {
	orch  *IngestionOrchestrator
	docs  *recordingDocStore
	index *faultyIndex
	blobs *filesystem.Store
}

type envOption func(*envConfig)

type envConfig struct {
	cfg      domain.IngestionSettings
	pipeline driven.PostProcessorPipeline
	embedder driven.EmbeddingService
	noStart  bool
}

func withChunking(size, overlap int) envOption {
	return func(c *envConfig) {
		c.pipeline = postprocessors.NewPipeline(chunker.New(chunker.WithChunkSize(size), chunker.WithOverlap(overlap)))
	}
}

func withEmbedder(e driven.EmbeddingService) envOption {
	return func(c *envConfig) { c.embedder = e }
}

func withPipeline(p driven.PostProcessorPipeline) envOption {
	return func(c *envConfig) { c.pipeline = p }
}

func withSettings(fn func(*domain.IngestionSettings)) envOption {
	return func(c *envConfig) { fn(&c.cfg) }
}

func withoutStart() envOption {
	return func(c *envConfig) { c.noStart = true }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	blobs, err := filesystem.New(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		docs:  newRecordingDocStore(),
		index: &faultyIndex{VectorIndex: vectormemory.New()},
		blobs: blobs,
	}
	env.orch = env.newOrchestrator(t, opts...)
	return env
}

// newOrchestrator builds an orchestrator over the env's stores, so tests
// can swap pipeline settings while keeping state.
func (e *testEnv) newOrchestrator(t *testing.T, opts ...envOption) *IngestionOrchestrator {
	t.Helper()

	c := &envConfig{
		cfg:      domain.DefaultAppSettings().Ingestion,
		pipeline: postprocessors.NewPipeline(chunker.New()),
		embedder: hashing.NewEmbeddingService(0),
	}
	for _, opt := range opts {
		opt(c)
	}

	o := NewIngestionOrchestrator(
		extractors.NewDefaultRegistry(), c.pipeline, c.embedder,
		e.index, e.docs, e.blobs, c.cfg,
	)
	o.retryBackoff = time.Millisecond
	if !c.noStart {
		require.NoError(t, o.Start(context.Background()))
	}
	t.Cleanup(func() { _ = o.Stop() })
	return o
}

// ingest uploads text as a .txt file and waits for a terminal status.
func (e *testEnv) ingest(t *testing.T, name, text string) *domain.Document {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	receipt, err := e.orch.Upload(ctx, domain.UploadRequest{Data: []byte(text), FileName: name})
	require.NoError(t, err)
	_, err = e.orch.Wait(ctx, receipt.DocumentID)
	require.NoError(t, err)

	doc, err := e.docs.GetDocument(ctx, receipt.DocumentID)
	require.NoError(t, err)
	return doc
}

func (e *testEnv) vectorCount(t *testing.T, documentID string) int {
	t.Helper()
	f := domain.ForDocument(documentID)
	n, err := e.index.VectorIndex.CountByFilter(context.Background(), &f)
	require.NoError(t, err)
	return n
}

// vectorIDs lists every id currently in the index.
func (e *testEnv) vectorIDs(t *testing.T) []string {
	t.Helper()
	q := make([]float32, hashing.DefaultDimensions)
	q[0] = 1
	matches, err := e.index.Query(context.Background(), q, 1000, nil)
	require.NoError(t, err)
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	sort.Strings(ids)
	return ids
}

// --- recordingDocStore ---

// recordingDocStore wraps the memory store and records every status a
// document was saved with.
type recordingDocStore struct {
	*memory.DocumentStore

	mu      sync.Mutex
	history map[string][]domain.Status
	// failStatus makes the next save with that status fail.
	failStatus domain.Status
	// failClearChunks makes every SaveChunks call without chunks fail.
	failClearChunks bool
}

func newRecordingDocStore() *recordingDocStore {
	return &recordingDocStore{
		DocumentStore: memory.NewDocumentStore(),
		history:       make(map[string][]domain.Status),
	}
}

func (s *recordingDocStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	s.mu.Lock()
	if s.failStatus != "" && doc.Status == s.failStatus {
		s.failStatus = ""
		s.mu.Unlock()
		return errors.New("disk full")
	}
	h := s.history[doc.ID]
	if len(h) == 0 || h[len(h)-1] != doc.Status {
		s.history[doc.ID] = append(h, doc.Status)
	}
	s.mu.Unlock()
	return s.DocumentStore.SaveDocument(ctx, doc)
}

func (s *recordingDocStore) SaveChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	fail := s.failClearChunks && len(chunks) == 0
	s.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return s.DocumentStore.SaveChunks(ctx, documentID, chunks)
}

func (s *recordingDocStore) set(fn func(*recordingDocStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *recordingDocStore) statuses(id string) []domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Status(nil), s.history[id]...)
}

// --- faultyIndex ---

// faultyIndex wraps a real index and injects failures.
type faultyIndex struct {
	driven.VectorIndex

	mu sync.Mutex
	// upsertErr is returned after the entries were written.
	upsertErr error
	// failDeletesAfterUpsert makes every delete fail once an upsert happened.
	failDeletesAfterUpsert bool
	failingDeletes         bool
	// countSkew is added to CountByFilter results for a single document.
	countSkew int
}

func (f *faultyIndex) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	if err := f.VectorIndex.Upsert(ctx, entries); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeletesAfterUpsert {
		f.failingDeletes = true
	}
	return f.upsertErr
}

func (f *faultyIndex) DeleteByFilter(ctx context.Context, filter domain.VectorFilter) (int, error) {
	f.mu.Lock()
	failing := f.failingDeletes
	f.mu.Unlock()
	if failing {
		return 0, errors.New("index unreachable")
	}
	return f.VectorIndex.DeleteByFilter(ctx, filter)
}

func (f *faultyIndex) CountByFilter(ctx context.Context, filter *domain.VectorFilter) (int, error) {
	n, err := f.VectorIndex.CountByFilter(ctx, filter)
	if err != nil || filter == nil {
		return n, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return n + f.countSkew, nil
}

func (f *faultyIndex) set(fn func(f *faultyIndex)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// --- stubIndex ---

// stubIndex returns canned matches and records the last query.
type stubIndex struct {
	mu       sync.Mutex
	matches  []domain.VectorMatch
	queryErr error
	total    int

	// matchFor overrides matches when set.
	matchFor func(vector []float32) []domain.VectorMatch

	lastK      int
	lastFilter *domain.VectorFilter
}

func (s *stubIndex) Upsert(context.Context, []domain.VectorEntry) error { return nil }

func (s *stubIndex) Query(_ context.Context, vector []float32, k int, filter *domain.VectorFilter) ([]domain.VectorMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastK = k
	s.lastFilter = filter
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	if s.matchFor != nil {
		return s.matchFor(vector), nil
	}
	out := append([]domain.VectorMatch(nil), s.matches...)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *stubIndex) DeleteByFilter(context.Context, domain.VectorFilter) (int, error) { return 0, nil }

func (s *stubIndex) CountByFilter(context.Context, *domain.VectorFilter) (int, error) {
	return s.total, nil
}

func (s *stubIndex) DocumentIDs(context.Context) ([]string, error) { return nil, nil }

func (s *stubIndex) Close() error { return nil }

// --- mockEmbeddingService ---

type mockEmbeddingService struct {
	embedErr error
	// short drops the last vector of each batch.
	short bool
	// vectorFor overrides the constant embedding when set.
	vectorFor func(text string) []float32
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		if m.vectorFor != nil {
			result[i] = m.vectorFor(text)
		} else {
			result[i] = []float32{1, 0, 0}
		}
	}
	if m.short && len(result) > 0 {
		result = result[:len(result)-1]
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int            { return 3 }
func (m *mockEmbeddingService) ModelName() string          { return "mock-embed" }
func (m *mockEmbeddingService) Ping(context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error               { return nil }

// --- topicEmbedder ---

// topicEmbedder stands in for a semantic model: each topic is one axis and a
// text scores on an axis for every keyword it mentions, so a long passage and
// a short query about the same subject point the same way.
type topicEmbedder struct {
	topics [][]string
}

func newTopicEmbedder() *topicEmbedder {
	return &topicEmbedder{topics: [][]string{
		{"安全", "办公室", "消防", "门禁", "safety"},
		{"天气", "气温", "降雨", "风力", "weather"},
		{"报销", "发票", "预算", "财务", "expense"},
	}}
}

func (e *topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *topicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *topicEmbedder) vector(text string) []float32 {
	// The trailing axis keeps off-topic text from being a zero vector.
	vec := make([]float32, len(e.topics)+1)
	vec[len(e.topics)] = 0.1
	lower := strings.ToLower(text)
	for axis, words := range e.topics {
		for _, w := range words {
			vec[axis] += float32(strings.Count(lower, w))
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / math.Sqrt(norm))
	}
	return vec
}

func (e *topicEmbedder) Dimensions() int            { return len(e.topics) + 1 }
func (e *topicEmbedder) ModelName() string          { return "topic-embed" }
func (e *topicEmbedder) Ping(context.Context) error { return nil }
func (e *topicEmbedder) Close() error               { return nil }

// --- gatedEmbedder ---

// gatedEmbedder delegates to the hashing embedder but blocks every call
// until release is closed, and tracks how many calls overlap.
type gatedEmbedder struct {
	driven.EmbeddingService

	release chan struct{}
	entered chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
	delay     time.Duration
}

func newGatedEmbedder() *gatedEmbedder {
	return &gatedEmbedder{
		EmbeddingService: hashing.NewEmbeddingService(0),
		release:          make(chan struct{}),
		entered:          make(chan struct{}, 64),
	}
}

func (g *gatedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		old := g.maxActive.Load()
		if n <= old || g.maxActive.CompareAndSwap(old, n) {
			break
		}
	}

	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	return g.EmbeddingService.EmbedBatch(ctx, texts)
}

// --- panickingProcessor ---

type panickingPipeline struct{}

func (panickingPipeline) Process(context.Context, string) ([]domain.ChunkSpec, error) {
	panic("boom")
}

// --- mockSchedulerStore ---

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu      sync.RWMutex
	tasks   map[string]*domain.ScheduledTask
	results map[string][]domain.TaskResult
	listErr error
	getErr  error
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task == nil {
		return domain.ErrInvalidInput
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.TaskID] = append([]domain.TaskResult{*result}, m.results[result.TaskID]...)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return append([]domain.TaskResult(nil), results...), nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, _ int) error {
	return nil
}

// --- mockMaintainer ---

type mockMaintainer struct {
	reconciles atomic.Int32
	resumes    atomic.Int32
	report     domain.ReconcileReport
	resumed    int
	err        error
}

func (m *mockMaintainer) Reconcile(context.Context) (*domain.ReconcileReport, error) {
	m.reconciles.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	r := m.report
	return &r, nil
}

func (m *mockMaintainer) ResumeStalled(context.Context) (int, error) {
	m.resumes.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	return m.resumed, nil
}

// seedVectors writes n entries for documentID straight into idx.
func seedVectors(t *testing.T, idx driven.VectorIndex, documentID string, n int) {
	t.Helper()
	entries := make([]domain.VectorEntry, n)
	for i := range entries {
		text := fmt.Sprintf("chunk %d of %s", i, documentID)
		vec := make([]float32, hashing.DefaultDimensions)
		vec[i%len(vec)] = 1
		entries[i] = domain.VectorEntry{
			ID:       domain.VectorID(documentID, i, text),
			Vector:   vec,
			Text:     text,
			Metadata: domain.VectorMetadata{DocumentID: documentID, ChunkIndex: i},
		}
	}
	require.NoError(t, idx.Upsert(context.Background(), entries))
}
