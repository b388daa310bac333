package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
	"github.com/custodia-labs/kbase/internal/metrics"
)

// Ensure IngestionOrchestrator implements the interface.
var _ driving.IngestionOrchestrator = (*IngestionOrchestrator)(nil)

// BlobKeyPrefix is the blob store prefix under which raw uploads are kept.
const BlobKeyPrefix = "documents/"

const (
	deleteAttempts      = 3
	defaultRetryBackoff = 200 * time.Millisecond
	resumeListLimit     = 10000
)

type jobKind int

const (
	jobIngest jobKind = iota
	jobRegenerate
	jobDelete
)

type job struct {
	kind       jobKind
	documentID string

	// done receives the outcome of a delete job.
	done chan error
}

// IngestionOrchestrator runs the extract, chunk, embed and index pipeline on
// a bounded worker pool. At most one job per document id runs at a time;
// later jobs for the same id are parked until the current one finishes.
type IngestionOrchestrator struct {
	extractors driven.ExtractorRegistry
	pipeline   driven.PostProcessorPipeline
	embedder   driven.EmbeddingService
	index      driven.VectorIndex
	docs       driven.DocumentStore
	blobs      driven.BlobStore
	cfg        domain.IngestionSettings

	retryBackoff time.Duration
	now          func() time.Time

	queue  chan job
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	started  bool
	stopped  bool
	backlog  []job
	inFlight map[string]bool
	parked   map[string][]job
	waiters  map[string][]chan struct{}
}

// NewIngestionOrchestrator creates an orchestrator. Zero values in cfg fall
// back to the defaults. Call Start to begin draining the queue.
func NewIngestionOrchestrator(
	extractors driven.ExtractorRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	docs driven.DocumentStore,
	blobs driven.BlobStore,
	cfg domain.IngestionSettings,
) *IngestionOrchestrator {
	cfg = withIngestionDefaults(cfg)
	return &IngestionOrchestrator{
		extractors:   extractors,
		pipeline:     pipeline,
		embedder:     embedder,
		index:        index,
		docs:         docs,
		blobs:        blobs,
		cfg:          cfg,
		retryBackoff: defaultRetryBackoff,
		now:          time.Now,
		queue:        make(chan job, cfg.QueueSize),
		stopCh:       make(chan struct{}),
		inFlight:     make(map[string]bool),
		parked:       make(map[string][]job),
		waiters:      make(map[string][]chan struct{}),
	}
}

func withIngestionDefaults(cfg domain.IngestionSettings) domain.IngestionSettings {
	def := domain.DefaultAppSettings().Ingestion
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = def.MaxFileSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = def.EmbedTimeout
	}
	if cfg.IndexTimeout <= 0 {
		cfg.IndexTimeout = def.IndexTimeout
	}
	return cfg
}

// Start launches the worker pool and re-enqueues documents that a previous
// process left in a non-terminal status. It does not block.
func (o *IngestionOrchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return domain.ErrQueueClosed
	}
	if o.started {
		o.mu.Unlock()
		return nil
	}
	o.started = true
	o.mu.Unlock()

	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker()
	}
	logger.Debug("Ingestion pool started with %d workers", o.cfg.Workers)

	n, err := o.ResumeStalled(ctx)
	if err != nil {
		return fmt.Errorf("resume stalled documents: %w", err)
	}
	if n > 0 {
		logger.Info("Resumed %d unfinished document(s)", n)
	}
	return nil
}

// Stop signals the workers to exit and waits for running attempts to end.
// Queued jobs are dropped; their documents are resumed on the next Start.
func (o *IngestionOrchestrator) Stop() error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	o.stopped = true
	close(o.stopCh)
	o.mu.Unlock()

	o.wg.Wait()
	return nil
}

// Upload validates the request, stores the bytes, records the document as
// Uploaded and queues it. Pipeline failures are recorded on the document.
func (o *IngestionOrchestrator) Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadReceipt, error) {
	if req.Data == nil {
		return nil, fmt.Errorf("%w: missing file data", domain.ErrInvalidInput)
	}
	name := strings.TrimSpace(req.FileName)
	if name == "" {
		return nil, fmt.Errorf("%w: missing file name", domain.ErrInvalidInput)
	}
	ext := req.NormalisedExtension()
	if ext == "" {
		return nil, fmt.Errorf("%w: cannot determine file type of %q", domain.ErrInvalidInput, name)
	}
	if size := int64(len(req.Data)); size > o.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrFileTooLarge, size, o.cfg.MaxFileSize)
	}

	sum := sha256.Sum256(req.Data)
	now := o.now()
	doc := &domain.Document{
		ID:          uuid.NewString(),
		FileName:    filepath.Base(name),
		FileType:    ext,
		Size:        int64(len(req.Data)),
		ContentHash: hex.EncodeToString(sum[:]),
		Status:      domain.StatusUploaded,
		Metadata:    map[string]any{},
		UploadedAt:  now,
		UpdatedAt:   now,
	}
	doc.BlobKey = BlobKeyPrefix + doc.ID

	// Claim the id before the blob exists so the reconcile sweep cannot
	// mistake it for an orphan.
	if !o.claim(doc.ID) {
		return nil, domain.ErrQueueClosed
	}
	if err := o.blobs.Put(ctx, doc.BlobKey, req.Data); err != nil {
		o.finish(doc.ID)
		return nil, fmt.Errorf("store file: %w", err)
	}
	if err := o.docs.SaveDocument(ctx, doc); err != nil {
		_ = o.blobs.Delete(ctx, doc.BlobKey) //nolint:errcheck // best-effort rollback
		o.finish(doc.ID)
		return nil, fmt.Errorf("save document: %w", err)
	}

	o.mu.Lock()
	o.dispatchLocked(job{kind: jobIngest, documentID: doc.ID})
	o.mu.Unlock()

	logger.Info("Accepted %s as %s (%d bytes)", doc.FileName, doc.ID, doc.Size)
	return &domain.UploadReceipt{DocumentID: doc.ID, Status: domain.ReceiptStatusProcessing}, nil
}

// Status returns the current status record.
func (o *IngestionOrchestrator) Status(ctx context.Context, documentID string) (*driving.DocumentStatus, error) {
	doc, err := o.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &driving.DocumentStatus{
		DocumentID:  doc.ID,
		Status:      doc.Status,
		FailedStage: doc.FailedStage,
		Error:       doc.Error,
		Metadata:    doc.Metadata,
		InFlight:    o.IsInFlight(doc.ID),
	}, nil
}

// Regenerate queues a full re-ingestion from the stored bytes.
func (o *IngestionOrchestrator) Regenerate(ctx context.Context, documentID string) error {
	if _, err := o.docs.GetDocument(ctx, documentID); err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if err := o.submit(job{kind: jobRegenerate, documentID: documentID}); err != nil {
		return err
	}
	logger.Info("Queued regeneration of %s", documentID)
	return nil
}

// Delete removes the document's vectors, then its record and chunks, then
// its stored bytes. If an attempt is in flight the delete runs after it
// ends and Delete blocks until then. A cancelled ctx stops the wait but
// not the queued delete.
func (o *IngestionOrchestrator) Delete(ctx context.Context, documentID string) error {
	if _, err := o.docs.GetDocument(ctx, documentID); err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return domain.ErrQueueClosed
	}
	if !o.inFlight[documentID] {
		o.inFlight[documentID] = true
		o.mu.Unlock()
		defer o.finish(documentID)
		return o.deleteDocument(ctx, documentID)
	}
	j := job{kind: jobDelete, documentID: documentID, done: make(chan error, 1)}
	o.parked[documentID] = append(o.parked[documentID], j)
	o.mu.Unlock()

	logger.Info("Delete of %s queued behind running ingestion", documentID)
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopCh:
		return domain.ErrQueueClosed
	}
}

// Wait blocks until the document is terminal with no attempt in flight.
func (o *IngestionOrchestrator) Wait(ctx context.Context, documentID string) (*driving.DocumentStatus, error) {
	for {
		ch := o.watch(documentID)
		st, err := o.Status(ctx, documentID)
		if err != nil {
			o.unwatch(documentID, ch)
			return nil, err
		}
		if st.Status.IsTerminal() && !st.InFlight {
			o.unwatch(documentID, ch)
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			o.unwatch(documentID, ch)
			return st, ctx.Err()
		case <-o.stopCh:
			o.unwatch(documentID, ch)
			return st, domain.ErrQueueClosed
		}
	}
}

// IsInFlight reports whether a job for the document is queued or running.
func (o *IngestionOrchestrator) IsInFlight(documentID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight[documentID]
}

// ResumeStalled re-enqueues documents stuck in a non-terminal status with
// no job in flight. It returns how many were queued.
func (o *IngestionOrchestrator) ResumeStalled(ctx context.Context) (int, error) {
	var n int
	for _, st := range domain.AllStatuses() {
		if st.IsTerminal() {
			continue
		}
		docs, err := o.docs.ListDocuments(ctx, domain.ListOptions{Status: st, Limit: resumeListLimit})
		if err != nil {
			return n, fmt.Errorf("list %s documents: %w", st, err)
		}
		for _, doc := range docs {
			if o.IsInFlight(doc.ID) {
				continue
			}
			if err := o.submit(job{kind: jobIngest, documentID: doc.ID}); err != nil {
				return n, err
			}
			logger.Debug("Resuming %s from %s", doc.ID, st)
			n++
		}
	}
	return n, nil
}

// Reconcile removes vectors whose document no longer exists, leftover
// vectors of failed documents, document records whose stored file is gone
// and stored files with no record.
func (o *IngestionOrchestrator) Reconcile(ctx context.Context) (*domain.ReconcileReport, error) {
	report := &domain.ReconcileReport{}

	ids, err := o.index.DocumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexed documents: %w", err)
	}
	for _, id := range ids {
		doc, err := o.docs.GetDocument(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			n, ok := o.sweepVectors(ctx, id, nil)
			if ok {
				report.OrphanDocuments++
				report.OrphanVectors += n
			}
		case err != nil:
			return report, fmt.Errorf("get document %s: %w", id, err)
		case doc.Status == domain.StatusFailed:
			n, ok := o.sweepVectors(ctx, id, doc)
			if ok {
				report.DebtsCleared++
				report.OrphanVectors += n
			}
		}
	}

	keys, err := o.blobs.List(ctx, BlobKeyPrefix)
	if err != nil {
		return report, fmt.Errorf("list stored files: %w", err)
	}

	docs, err := o.docs.ListDocuments(ctx, domain.ListOptions{Limit: resumeListLimit})
	if err != nil {
		return report, fmt.Errorf("list documents: %w", err)
	}
	stored := make(map[string]bool, len(keys))
	for _, key := range keys {
		stored[key] = true
	}
	for i := range docs {
		doc := &docs[i]
		if doc.BlobKey == "" || stored[doc.BlobKey] || o.IsInFlight(doc.ID) {
			continue
		}
		if o.sweepRecord(ctx, doc) {
			report.MissingBlobs++
		}
	}

	for _, key := range keys {
		id := strings.TrimPrefix(key, BlobKeyPrefix)
		if o.IsInFlight(id) {
			continue
		}
		if _, err := o.docs.GetDocument(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err := o.blobs.Delete(ctx, key); err != nil {
			logger.Warn("Failed to remove orphan file %s: %v", key, err)
			continue
		}
		report.OrphanBlobs++
	}

	if report.Items() > 0 {
		logger.Info("Reconcile removed %d vector(s) across %d orphan document(s), %d file(s), %d record(s) without a file, cleared %d debt(s)",
			report.OrphanVectors, report.OrphanDocuments, report.OrphanBlobs, report.MissingBlobs, report.DebtsCleared)
	}
	return report, nil
}

// sweepVectors deletes every vector of id unless a job holds it. When doc is
// given its reconciliation debt flag is cleared afterwards.
func (o *IngestionOrchestrator) sweepVectors(ctx context.Context, id string, doc *domain.Document) (int, bool) {
	if !o.claim(id) {
		return 0, false
	}
	defer o.finish(id)

	n, err := o.retryDelete(ctx, id)
	if err != nil {
		logger.Warn("Reconcile could not remove vectors of %s: %v", id, err)
		return 0, false
	}
	if doc != nil {
		if _, ok := doc.Metadata[domain.MetaReconciliationDebt]; ok {
			delete(doc.Metadata, domain.MetaReconciliationDebt)
			if err := o.save(ctx, doc); err != nil {
				logger.Warn("Clear reconciliation debt on %s: %v", id, err)
			}
		}
	}
	return n, true
}

// sweepRecord deletes a document whose stored file is missing, together
// with its vectors and chunks. It reports whether the record was removed.
func (o *IngestionOrchestrator) sweepRecord(ctx context.Context, doc *domain.Document) bool {
	if !o.claim(doc.ID) {
		return false
	}
	defer o.finish(doc.ID)

	if _, err := o.blobs.Get(ctx, doc.BlobKey); !errors.Is(err, domain.ErrNotFound) {
		return false
	}
	if err := o.deleteDocument(ctx, doc.ID); err != nil {
		logger.Warn("Reconcile could not remove %s without a stored file: %v", doc.ID, err)
		return false
	}
	return true
}

// Queue management.

func (o *IngestionOrchestrator) worker() {
	defer o.wg.Done()
	for {
		select {
		case <-o.stopCh:
			return
		case j := <-o.queue:
			select {
			case <-o.stopCh:
				return
			default:
			}
			o.refill()
			o.handle(j)
			o.finish(j.documentID)
		}
	}
}

func (o *IngestionOrchestrator) handle(j job) {
	// Attempts are not cancelled mid-pipeline; stage timeouts bound them.
	ctx := context.Background()
	switch j.kind {
	case jobDelete:
		j.done <- o.deleteDocument(ctx, j.documentID)
	case jobRegenerate:
		o.ingest(ctx, j.documentID, true)
	default:
		o.ingest(ctx, j.documentID, false)
	}
}

// claim marks id in flight if nothing holds it.
func (o *IngestionOrchestrator) claim(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped || o.inFlight[id] {
		return false
	}
	o.inFlight[id] = true
	return true
}

// submit queues j, or parks it if a job for the same id is in flight.
func (o *IngestionOrchestrator) submit(j job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return domain.ErrQueueClosed
	}
	if o.inFlight[j.documentID] {
		o.parked[j.documentID] = append(o.parked[j.documentID], j)
		return nil
	}
	o.inFlight[j.documentID] = true
	o.dispatchLocked(j)
	return nil
}

// dispatchLocked hands j to the queue, falling back to the backlog when
// the queue is full. FIFO order is kept across both.
func (o *IngestionOrchestrator) dispatchLocked(j job) {
	if len(o.backlog) == 0 {
		select {
		case o.queue <- j:
			o.reportDepthLocked()
			return
		default:
		}
	}
	o.backlog = append(o.backlog, j)
	o.reportDepthLocked()
}

func (o *IngestionOrchestrator) refill() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refillLocked()
}

func (o *IngestionOrchestrator) refillLocked() {
	for len(o.backlog) > 0 {
		select {
		case o.queue <- o.backlog[0]:
			o.backlog[0] = job{}
			o.backlog = o.backlog[1:]
		default:
			o.reportDepthLocked()
			return
		}
	}
	o.reportDepthLocked()
}

func (o *IngestionOrchestrator) reportDepthLocked() {
	metrics.SetQueueDepth(len(o.queue) + len(o.backlog))
}

// finish releases id, dispatching its next parked job if any, and wakes
// waiters.
func (o *IngestionOrchestrator) finish(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if next := o.parked[id]; len(next) > 0 {
		if len(next) == 1 {
			delete(o.parked, id)
		} else {
			o.parked[id] = next[1:]
		}
		o.dispatchLocked(next[0])
	} else {
		delete(o.inFlight, id)
	}
	o.refillLocked()

	for _, ch := range o.waiters[id] {
		close(ch)
	}
	delete(o.waiters, id)
}

func (o *IngestionOrchestrator) watch(id string) chan struct{} {
	ch := make(chan struct{})
	o.mu.Lock()
	o.waiters[id] = append(o.waiters[id], ch)
	o.mu.Unlock()
	return ch
}

func (o *IngestionOrchestrator) unwatch(id string, ch chan struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	list := o.waiters[id]
	for i, c := range list {
		if c == ch {
			o.waiters[id] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(o.waiters[id]) == 0 {
		delete(o.waiters, id)
	}
}

// Pipeline.

// ingest runs one attempt. Every attempt starts from Uploaded with the
// document's previous vectors and chunks removed.
func (o *IngestionOrchestrator) ingest(ctx context.Context, id string, regenerate bool) {
	doc, err := o.docs.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Debug("Skipping %s: document no longer exists", id)
			return
		}
		logger.Error("Load document %s: %v", id, err)
		return
	}
	if !regenerate && doc.Status.IsTerminal() {
		logger.Debug("Skipping %s: already %s", id, doc.Status)
		return
	}

	if doc.Status != domain.StatusUploaded {
		doc.Status = domain.StatusUploaded
		doc.FailedStage = ""
		doc.Error = ""
		doc.Metadata = map[string]any{}
		if err := o.save(ctx, doc); err != nil {
			logger.Error("Reset %s to %s: %v", id, domain.StatusUploaded, err)
			return
		}
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}

	removed, err := o.retryDelete(ctx, id)
	if err != nil {
		o.fail(ctx, doc, domain.StageIndex, err)
		return
	}
	if removed > 0 {
		logger.Debug("Cleared %d vector(s) of %s before ingestion", removed, id)
	}
	if err := o.docs.SaveChunks(ctx, id, nil); err != nil {
		o.fail(ctx, doc, domain.StageIndex, fmt.Errorf("clear chunks: %w", err))
		return
	}

	o.run(ctx, doc)
}

func (o *IngestionOrchestrator) run(ctx context.Context, doc *domain.Document) {
	started := time.Now()

	// Extract.
	if !o.advance(ctx, doc, domain.StatusParsing) {
		return
	}
	t := time.Now()
	extraction, err := o.extract(ctx, doc)
	metrics.StageObserved(domain.StageExtract, time.Since(t))
	if err != nil {
		o.fail(ctx, doc, domain.StageExtract, err)
		return
	}
	for k, v := range extraction.Metadata {
		doc.Metadata[k] = v
	}
	if !o.advance(ctx, doc, domain.StatusParsed) {
		return
	}

	// Chunk.
	if !o.advance(ctx, doc, domain.StatusChunking) {
		return
	}
	t = time.Now()
	chunks, err := o.chunk(ctx, doc.ID, extraction.Text)
	metrics.StageObserved(domain.StageChunk, time.Since(t))
	if err != nil {
		o.fail(ctx, doc, domain.StageChunk, err)
		return
	}
	if !o.advance(ctx, doc, domain.StatusChunked) {
		return
	}

	// Embed.
	if !o.advance(ctx, doc, domain.StatusEmbedding) {
		return
	}
	t = time.Now()
	vectors, err := o.embed(ctx, chunks)
	metrics.StageObserved(domain.StageEmbed, time.Since(t))
	if err != nil {
		o.fail(ctx, doc, domain.StageEmbed, err)
		return
	}

	// Index.
	if !o.advance(ctx, doc, domain.StatusIndexing) {
		return
	}
	t = time.Now()
	count, err := o.store(ctx, doc, chunks, vectors)
	metrics.StageObserved(domain.StageIndex, time.Since(t))
	if err != nil {
		o.compensate(ctx, doc)
		stage := domain.StageIndex
		if errors.Is(err, domain.ErrCountMismatch) {
			stage = domain.StageCountMismatch
		}
		o.fail(ctx, doc, stage, err)
		return
	}

	doc.Metadata[domain.MetaChunkCount] = len(chunks)
	doc.Metadata[domain.MetaVectorCount] = count
	doc.Metadata[domain.MetaContentLength] = utf8.RuneCountInString(extraction.Text)
	if !o.advance(ctx, doc, domain.StatusCompleted) {
		return
	}
	metrics.IngestionFinished(string(domain.StatusCompleted))
	logger.Info("Indexed %s (%s): %d chunks in %s",
		doc.FileName, doc.ID, len(chunks), time.Since(started).Round(time.Millisecond))
}

func (o *IngestionOrchestrator) extract(ctx context.Context, doc *domain.Document) (*domain.Extraction, error) {
	data, err := o.blobs.Get(ctx, doc.BlobKey)
	if err != nil {
		return nil, fmt.Errorf("load stored file: %w", err)
	}
	extraction, err := o.extractors.Extract(ctx, data, doc.FileType)
	if err != nil {
		return nil, err
	}
	if !extraction.HasContent() || strings.TrimSpace(extraction.Text) == "" {
		return nil, domain.ErrEmptyContent
	}
	return extraction, nil
}

func (o *IngestionOrchestrator) chunk(ctx context.Context, documentID, text string) (chunks []domain.Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			chunks = nil
			err = fmt.Errorf("%w: %v", domain.ErrChunkingFailure, r)
		}
	}()

	specs, err := o.pipeline.Process(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrChunkingFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrChunkingFailure, err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced", domain.ErrChunkingFailure)
	}

	chunks = make([]domain.Chunk, len(specs))
	for i, spec := range specs {
		chunks[i] = domain.Chunk{
			DocumentID:  documentID,
			Index:       i,
			Content:     spec.Text,
			Length:      utf8.RuneCountInString(spec.Text),
			StartOffset: spec.StartOffset,
			EndOffset:   spec.EndOffset,
			VectorID:    domain.VectorID(documentID, i, spec.Text),
		}
	}
	return chunks, nil
}

// embed computes every chunk's vector in batches. Nothing is written to
// the index until all batches succeed.
func (o *IngestionOrchestrator) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += o.cfg.BatchSize {
		end := min(start+o.cfg.BatchSize, len(texts))

		tctx, cancel := context.WithTimeout(ctx, o.cfg.EmbedTimeout)
		batch, err := o.embedder.EmbedBatch(tctx, texts[start:end])
		cancel()
		if err != nil {
			if errors.Is(err, domain.ErrEmbeddingUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: got %d vectors for %d chunks",
				domain.ErrEmbeddingUnavailable, len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// store upserts the vectors, verifies the count and persists the chunks.
// It returns the number of vectors the index holds for the document.
func (o *IngestionOrchestrator) store(
	ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32,
) (int, error) {
	entries := make([]domain.VectorEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.VectorEntry{
			ID:     c.VectorID,
			Vector: vectors[i],
			Text:   c.Content,
			Metadata: domain.VectorMetadata{
				DocumentID: doc.ID,
				ChunkIndex: c.Index,
				ChunkSize:  c.Length,
				UploadTime: doc.UploadedAt,
			},
		}
	}

	tctx, cancel := context.WithTimeout(ctx, o.cfg.IndexTimeout)
	err := o.index.Upsert(tctx, entries)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrIndexWriteFailure) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", domain.ErrIndexWriteFailure, err)
	}

	filter := domain.ForDocument(doc.ID)
	tctx, cancel = context.WithTimeout(ctx, o.cfg.IndexTimeout)
	count, err := o.index.CountByFilter(tctx, &filter)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("%w: count vectors: %w", domain.ErrIndexWriteFailure, err)
	}
	if count != len(chunks) {
		return 0, fmt.Errorf("%w: index holds %d vectors for %d chunks", domain.ErrCountMismatch, count, len(chunks))
	}

	if err := o.docs.SaveChunks(ctx, doc.ID, chunks); err != nil {
		return 0, fmt.Errorf("save chunks: %w", err)
	}
	return count, nil
}

// compensate removes any vectors a failed index stage left behind. If that
// fails too the document carries a reconciliation debt for the sweep.
func (o *IngestionOrchestrator) compensate(ctx context.Context, doc *domain.Document) {
	removed, err := o.retryDelete(ctx, doc.ID)
	if err != nil {
		doc.Metadata[domain.MetaReconciliationDebt] = true
		logger.With("document_id", doc.ID, "reconciliation_debt", true).
			Warnf("Compensating vector delete failed: %v", err)
		return
	}
	logger.Debug("Compensated %d vector(s) of %s", removed, doc.ID)
}

// retryDelete issues DeleteByFilter for one document, retrying with
// exponential backoff.
func (o *IngestionOrchestrator) retryDelete(ctx context.Context, documentID string) (int, error) {
	var lastErr error
	backoff := o.retryBackoff
	for attempt := 1; attempt <= deleteAttempts; attempt++ {
		tctx, cancel := context.WithTimeout(ctx, o.cfg.IndexTimeout)
		n, err := o.index.DeleteByFilter(tctx, domain.ForDocument(documentID))
		cancel()
		if err == nil {
			return n, nil
		}
		lastErr = err
		if attempt == deleteAttempts {
			break
		}
		logger.Debug("Vector delete for %s failed (attempt %d/%d): %v", documentID, attempt, deleteAttempts, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		backoff *= 2
	}
	if errors.Is(lastErr, domain.ErrIndexWriteFailure) {
		return 0, fmt.Errorf("delete vectors after %d attempts: %w", deleteAttempts, lastErr)
	}
	return 0, fmt.Errorf("%w: delete vectors after %d attempts: %w", domain.ErrIndexWriteFailure, deleteAttempts, lastErr)
}

func (o *IngestionOrchestrator) deleteDocument(ctx context.Context, id string) error {
	doc, err := o.docs.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	removed, err := o.retryDelete(ctx, id)
	if err != nil {
		return err
	}
	if err := o.docs.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if doc.BlobKey != "" {
		if err := o.blobs.Delete(ctx, doc.BlobKey); err != nil {
			logger.Warn("Failed to delete stored file %s: %v", doc.BlobKey, err)
		}
	}
	logger.Info("Deleted document %s (%d vectors)", id, removed)
	return nil
}

// advance moves doc to next and persists it. When the move cannot be made
// the document is failed at the stage next belongs to, so no attempt ends
// in a non-terminal status.
func (o *IngestionOrchestrator) advance(ctx context.Context, doc *domain.Document, next domain.Status) bool {
	prev := doc.Status
	if !prev.CanTransition(next) {
		logger.Error("Illegal transition for %s: %s -> %s", doc.ID, prev, next)
		o.fail(ctx, doc, stageOf(next), fmt.Errorf("illegal transition %s -> %s", prev, next))
		return false
	}
	doc.Status = next
	if err := o.save(ctx, doc); err != nil {
		doc.Status = prev
		logger.Error("Persist status %s for %s: %v", next, doc.ID, err)
		if next == domain.StatusCompleted {
			delete(doc.Metadata, domain.MetaChunkCount)
			delete(doc.Metadata, domain.MetaVectorCount)
			o.compensate(ctx, doc)
			if err := o.docs.SaveChunks(ctx, doc.ID, nil); err != nil {
				logger.Warn("Clear chunks of %s: %v", doc.ID, err)
			}
		}
		o.fail(ctx, doc, stageOf(next), fmt.Errorf("persist status %s: %w", next, err))
		return false
	}
	logger.Debug("%s: %s -> %s", doc.ID, prev, next)
	return true
}

// stageOf names the pipeline stage a status belongs to.
func stageOf(st domain.Status) string {
	switch st {
	case domain.StatusParsing, domain.StatusParsed:
		return domain.StageExtract
	case domain.StatusChunking, domain.StatusChunked:
		return domain.StageChunk
	case domain.StatusEmbedding:
		return domain.StageEmbed
	default:
		return domain.StageIndex
	}
}

func (o *IngestionOrchestrator) fail(ctx context.Context, doc *domain.Document, stage string, cause error) {
	doc.Status = domain.StatusFailed
	doc.FailedStage = stage
	doc.Error = domain.FailureReason(cause)
	if err := o.save(ctx, doc); err != nil {
		logger.Error("Persist failure for %s: %v", doc.ID, err)
	}
	metrics.IngestionFinished(string(domain.StatusFailed))
	logger.Warn("Ingestion of %s failed at %s: %s", doc.ID, stage, doc.Error)
}

func (o *IngestionOrchestrator) save(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = o.now()
	return o.docs.SaveDocument(ctx, doc)
}
