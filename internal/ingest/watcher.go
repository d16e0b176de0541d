// Package ingest watches a drop directory for chapter source files and runs
// builds from them. Upstream text pipelines deliver one JSON document per
// chapter; files are picked up once their size and mtime stop changing.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/inkcast/inkcast-server/internal/logger"
)

// defaultSettleDelay is how long a file must stay unchanged before it is
// considered fully written. Upstream writers stream large chapters, so a
// bare Create event is not enough.
const defaultSettleDelay = 200 * time.Millisecond

// pendingFile tracks a file that may still be changing.
type pendingFile struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// Watcher emits the path of each settled source file dropped into dir.
// Only top-level *.json files are considered; everything else is ignored.
type Watcher struct {
	dir    string
	settle time.Duration
	fsw    *fsnotify.Watcher
	logger *logger.Logger

	mu      sync.Mutex
	pending map[string]*pendingFile

	files chan string
	errs  chan error
}

// NewWatcher creates a watcher over the given drop directory. The directory
// must already exist.
func NewWatcher(dir string, settle time.Duration, log *logger.Logger) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat drop dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("drop path %s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch drop dir: %w", err)
	}

	if settle <= 0 {
		settle = defaultSettleDelay
	}

	return &Watcher{
		dir:     dir,
		settle:  settle,
		fsw:     fsw,
		logger:  log,
		pending: make(map[string]*pendingFile),
		files:   make(chan string, 64),
		errs:    make(chan error, 8),
	}, nil
}

// Files returns the channel of settled source file paths.
func (w *Watcher) Files() <-chan string {
	return w.files
}

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Start processes filesystem events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errs <- err:
			default:
				w.logger.Warn("watcher error dropped", "error", err)
			}
		}
	}
}

// Stop releases the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

// isSourceFile restricts pickup to top-level JSON documents. Hidden files
// and editor temp files never qualify.
func (w *Watcher) isSourceFile(path string) bool {
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return false
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".json")
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.isSourceFile(event.Name) {
		return
	}

	if event.Op&fsnotify.Remove != 0 {
		w.cancelPending(event.Name)
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		w.startSettling(event.Name)
	}
}

// startSettling (re)arms the settle timer for a file.
func (w *Watcher) startSettling(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, exists := w.pending[path]; exists {
		p.timer.Stop()
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		delete(w.pending, path)
		return
	}

	p := &pendingFile{size: info.Size(), modTime: info.ModTime()}
	p.timer = time.AfterFunc(w.settle, func() {
		w.checkSettled(path)
	})
	w.pending[path] = p
}

// checkSettled emits the file if it has stopped changing, otherwise rearms.
func (w *Watcher) checkSettled(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, exists := w.pending[path]
	if !exists {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		return
	}

	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size = info.Size()
		p.modTime = info.ModTime()
		p.timer = time.AfterFunc(w.settle, func() {
			w.checkSettled(path)
		})
		return
	}

	delete(w.pending, path)
	select {
	case w.files <- path:
	default:
		w.logger.Warn("ingest queue full, dropping file event", "path", path)
	}
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, exists := w.pending[path]; exists {
		p.timer.Stop()
		delete(w.pending, path)
	}
}
