// Package watcher uploads files dropped into an inbox directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/logger"
)

// DefaultDebounce is how long a path must be quiet before it is uploaded.
const DefaultDebounce = 500 * time.Millisecond

// Uploader accepts files for ingestion.
type Uploader interface {
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadReceipt, error)
}

// UploadFunc is told about every upload attempt.
type UploadFunc func(path string, receipt *domain.UploadReceipt, err error)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period per path.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// OnUpload registers a callback for upload results.
func OnUpload(fn UploadFunc) Option {
	return func(w *Watcher) {
		w.onUpload = fn
	}
}

// Watcher watches one directory (not recursively) and uploads files that
// are created or rewritten in it.
type Watcher struct {
	dir      string
	uploader Uploader
	debounce time.Duration
	onUpload UploadFunc

	mu      sync.Mutex
	closed  bool
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// New creates a watcher for dir.
func New(dir string, uploader Uploader, opts ...Option) (*Watcher, error) {
	if uploader == nil {
		return nil, errors.New("watcher: uploader is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watcher: %s is not a directory", dir)
	}

	w := &Watcher{
		dir:      dir,
		uploader: uploader,
		debounce: DefaultDebounce,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is cancelled. Uploads still in their quiet period
// are abandoned. A Watcher runs once.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	logger.Info("Watching %s for new documents", w.dir)

	defer w.cancelPending()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if path := w.handleEvent(ev); path != "" {
				w.schedule(ctx, path)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error: %v", err)
		}
	}
}

// handleEvent returns the path to upload for ev, or "" to ignore it.
func (w *Watcher) handleEvent(ev fsnotify.Event) string {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return ""
	}
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return ""
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return ev.Name
}

// schedule (re)starts the quiet-period timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		if w.closed {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()

		defer w.wg.Done()
		w.upload(ctx, path)
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) upload(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// Removed before the quiet period ended.
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		w.report(path, nil, fmt.Errorf("reading %s: %w", path, err))
		return
	}

	receipt, err := w.uploader.Upload(ctx, domain.UploadRequest{
		Data:     data,
		FileName: filepath.Base(path),
	})
	w.report(path, receipt, err)
}

func (w *Watcher) report(path string, receipt *domain.UploadReceipt, err error) {
	if err != nil {
		logger.Warn("upload of %s failed: %v", path, err)
	} else {
		logger.Info("Uploaded %s as %s", path, receipt.DocumentID)
	}
	if w.onUpload != nil {
		w.onUpload(path, receipt, err)
	}
}
