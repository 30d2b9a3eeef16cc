// Package watcher ingests PDFs dropped into watched inbox directories.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/policyqa/pkg/utils"
	"go.uber.org/zap"
)

const (
	defaultDebounce = 400 * time.Millisecond
	queueSize       = 64
)

// IngestFunc ingests the PDF at path.
type IngestFunc func(ctx context.Context, path string) error

type stamp struct {
	size    int64
	modTime time.Time
}

// Inbox watches directories for PDF files and ingests each one once,
// one file at a time. A file is ingested again only if its size or
// modification time changes.
type Inbox struct {
	mu        sync.Mutex
	roots     []string
	rootPaths map[string][]string
	recursive bool
	ingest    IngestFunc
	debounce  time.Duration
	watcher   *fsnotify.Watcher
	pending   map[string]*time.Timer
	seen      map[string]stamp
	queue     chan string
	done      chan struct{}
	workers   sync.WaitGroup
	started   bool
	stopOnce  sync.Once
	logger    *zap.Logger
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Inbox) { w.logger = utils.LoggerOrNop(l) }
}

// WithDebounce sets how long a file must be quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Inbox) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewInbox creates an inbox over roots. Roots that do not exist are created on Start.
func NewInbox(roots []string, recursive bool, ingest IngestFunc, opts ...Option) *Inbox {
	w := &Inbox{
		roots:     append([]string(nil), roots...),
		rootPaths: make(map[string][]string),
		recursive: recursive,
		ingest:    ingest,
		debounce:  defaultDebounce,
		pending:   make(map[string]*time.Timer),
		seen:      make(map[string]stamp),
		queue:     make(chan string, queueSize),
		done:      make(chan struct{}),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Ingestion runs under ctx until ctx is cancelled or Stop is called.
func (w *Inbox) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	for _, root := range w.roots {
		if err := w.watchRootLocked(root); err != nil {
			_ = fw.Close()
			w.watcher = nil
			w.mu.Unlock()
			return err
		}
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("inbox watching", zap.Strings("directories", w.Directories()), zap.Bool("recursive", w.recursive))
	w.workers.Add(1)
	go w.work(ctx)
	go w.run(ctx, fw)
	return nil
}

// Run starts the inbox, queues the PDFs already present and blocks until ctx is done.
func (w *Inbox) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	w.SyncExisting()
	<-ctx.Done()
	w.Stop()
	return nil
}

func (w *Inbox) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watch error", zap.Error(err))
		}
	}
}

func (w *Inbox) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			w.cancelPending(ev.Name)
		}
		return
	}
	if !w.underRoot(ev.Name) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		w.handleNewDirectory(ev.Name)
		return
	}
	if isPDF(ev.Name) {
		w.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
		w.schedule(ev.Name)
	}
}

func (w *Inbox) handleNewDirectory(dir string) {
	w.mu.Lock()
	if w.watcher == nil || !w.recursive {
		w.mu.Unlock()
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("failed to watch directory", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
	w.mu.Unlock()
	w.syncDirectory(dir)
}

// schedule queues path once no further writes arrive within the debounce window.
func (w *Inbox) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.enqueue(path)
	})
}

func (w *Inbox) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Inbox) enqueue(path string) {
	select {
	case w.queue <- path:
	case <-w.done:
	}
}

func (w *Inbox) work(ctx context.Context) {
	defer w.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.queue:
			w.process(ctx, path)
		}
	}
}

func (w *Inbox) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	st := stamp{size: info.Size(), modTime: info.ModTime()}
	w.mu.Lock()
	prev, ok := w.seen[path]
	w.mu.Unlock()
	if ok && prev == st {
		w.logger.Debug("inbox file unchanged; skipping", zap.String("path", path))
		return
	}

	start := time.Now()
	if err := w.ingest(ctx, path); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error("inbox ingestion failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.seen[path] = st
	w.mu.Unlock()
	w.logger.Info("inbox file ingested", zap.String("path", path), zap.Duration("took", time.Since(start)))
}

func (w *Inbox) underRoot(path string) bool {
	clean := filepath.Clean(path)
	for _, root := range w.Directories() {
		if inDir(filepath.Clean(root), clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// AddDirectory starts watching root and optionally queues the PDFs already in it.
func (w *Inbox) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	for _, r := range w.roots {
		if filepath.Clean(r) == abs {
			w.mu.Unlock()
			return nil
		}
	}
	if w.watcher != nil {
		if err := w.watchRootLocked(abs); err != nil {
			w.mu.Unlock()
			return err
		}
	}
	w.roots = append(w.roots, abs)
	w.mu.Unlock()

	w.logger.Info("inbox directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go w.syncDirectory(abs)
	}
	return nil
}

func (w *Inbox) watchRootLocked(root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	var paths []string
	if !w.recursive {
		if err := w.watcher.Add(root); err != nil {
			return err
		}
		w.rootPaths[root] = []string{root}
		return nil
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return err
	}
	w.rootPaths[root] = paths
	return nil
}

// RemoveDirectory stops watching root. Documents already ingested stay in the store.
func (w *Inbox) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := -1
	for i, r := range w.roots {
		if filepath.Clean(r) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if w.watcher != nil {
		for _, p := range w.rootPaths[abs] {
			_ = w.watcher.Remove(p)
		}
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	w.logger.Info("inbox directory removed", zap.String("path", abs))
	return nil
}

// Directories returns the watched roots.
func (w *Inbox) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExisting queues every PDF already present under the watched roots.
func (w *Inbox) SyncExisting() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

func (w *Inbox) syncDirectory(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if isPDF(path) {
			w.enqueue(path)
		}
		return nil
	})
}

// Stop stops watching and waits for the file being ingested, if any.
func (w *Inbox) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	if w.watcher != nil {
		_ = w.watcher.Close()
		w.watcher = nil
	}
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
	w.workers.Wait()
}
