// Package watch imports Krisp exports as they appear in a folder. A zip or
// meeting folder is handed over once it has stopped changing for the
// settle period.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	kerrors "github.com/otherjamesbrown/krisp-import/pkg/errors"
	"github.com/otherjamesbrown/krisp-import/pkg/ingest/archive"
	"github.com/otherjamesbrown/krisp-import/pkg/logging"
)

// Defaults for Config.
const (
	DefaultSettle     = 5 * time.Second
	DefaultRetryDelay = 30 * time.Second
	DefaultMaxRetries = 3
)

// Handler imports one settled source. An error for which
// kerrors.IsErrorRetryable holds is retried after the retry delay.
type Handler func(ctx context.Context, path string) error

// Config configures a Watcher.
type Config struct {
	Dir        string
	Settle     time.Duration
	RetryDelay time.Duration
	// MaxRetries of 0 selects DefaultMaxRetries; a negative value disables retries.
	MaxRetries int

	// ImportExisting hands over sources already present at start.
	ImportExisting bool

	Logger logging.Logger
}

// Watcher debounces filesystem events under Dir into handler calls.
type Watcher struct {
	cfg     Config
	handler Handler
	logger  logging.Logger
	fs      *fsnotify.Watcher

	// Owned by the Run goroutine.
	pending  map[string]settleTimer
	attempts map[string]int
	handled  map[string]time.Time
	gen      uint64

	ready chan firing
}

// settleTimer is the pending timer of a source. gen tells a superseded
// firing apart from the current one.
type settleTimer struct {
	timer *time.Timer
	gen   uint64
}

type firing struct {
	path string
	gen  uint64
}

// New creates a watcher on cfg.Dir. Run starts it.
func New(cfg Config, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("watch handler is required: %w", kerrors.ErrValidation)
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", cfg.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory: %w", cfg.Dir, kerrors.ErrValidation)
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	cfg.Dir = filepath.Clean(cfg.Dir)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		handler:  handler,
		logger:   cfg.Logger.With(logging.F("component", "watcher"), logging.F("dir", cfg.Dir)),
		fs:       fw,
		pending:  make(map[string]settleTimer),
		attempts: make(map[string]int),
		handled:  make(map[string]time.Time),
		ready:    make(chan firing, 16),
	}
	if err := w.addTree(cfg.Dir); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimers()

	if w.cfg.ImportExisting {
		entries, err := os.ReadDir(w.cfg.Dir)
		if err != nil {
			return fmt.Errorf("read %s: %w", w.cfg.Dir, err)
		}
		for _, e := range entries {
			path := filepath.Join(w.cfg.Dir, e.Name())
			if src, ok := Candidate(w.cfg.Dir, path, e.IsDir()); ok {
				w.schedule(ctx, src, 0)
			}
		}
	}

	w.logger.Info("Watching for Krisp exports", logging.F("settle", w.cfg.Settle.String()))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", logging.Err(err))

		case f := <-w.ready:
			if w.take(f) {
				w.process(ctx, f.path)
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	info, err := os.Stat(event.Name)
	isDir := err == nil && info.IsDir()
	if isDir && event.Has(fsnotify.Create) && !hidden(filepath.Base(event.Name)) {
		if err := w.addTree(event.Name); err != nil {
			w.logger.Warn("Failed to watch new folder", logging.F("path", event.Name), logging.Err(err))
		}
	}

	src, ok := Candidate(w.cfg.Dir, event.Name, isDir)
	if !ok {
		return
	}
	w.schedule(ctx, src, w.cfg.Settle)
}

// schedule (re)starts the settle timer of src.
func (w *Watcher) schedule(ctx context.Context, src string, delay time.Duration) {
	if pt, ok := w.pending[src]; ok {
		pt.timer.Stop()
	}
	w.gen++
	f := firing{path: src, gen: w.gen}
	w.pending[src] = settleTimer{
		gen: f.gen,
		timer: time.AfterFunc(delay, func() {
			select {
			case w.ready <- f:
			case <-ctx.Done():
			}
		}),
	}
}

// take removes the pending entry f fired for. It reports false when the
// source was rescheduled after f's timer fired.
func (w *Watcher) take(f firing) bool {
	pt, ok := w.pending[f.path]
	if !ok || pt.gen != f.gen {
		return false
	}
	delete(w.pending, f.path)
	return true
}

func (w *Watcher) process(ctx context.Context, src string) {
	info, err := os.Stat(src)
	if err != nil {
		// Removed or renamed away while settling.
		delete(w.attempts, src)
		return
	}
	if last, ok := w.handled[src]; ok && !info.ModTime().After(last) {
		return
	}

	log := w.logger.With(logging.F("source", src))
	log.Info("Importing settled export")

	err = w.handler(ctx, src)
	switch {
	case err == nil:
		w.handled[src] = info.ModTime()
		delete(w.attempts, src)

	case errors.Is(err, context.Canceled):
		return

	case kerrors.IsErrorRetryable(err) && w.attempts[src] < w.cfg.MaxRetries:
		w.attempts[src]++
		log.Warn("Import failed, will retry",
			logging.Err(err),
			logging.F("attempt", w.attempts[src]),
			logging.F("retry_in", w.cfg.RetryDelay.String()))
		w.schedule(ctx, src, w.cfg.RetryDelay)

	default:
		log.Error("Import failed", logging.Err(err))
		w.handled[src] = info.ModTime()
		delete(w.attempts, src)
	}
}

// addTree watches dir and every visible directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) stopTimers() {
	for path, pt := range w.pending {
		pt.timer.Stop()
		delete(w.pending, path)
	}
}

// Candidate maps a changed path under root to the source it belongs to: a
// zip directly under root, or the top-level folder containing the path.
func Candidate(root, path string, isDir bool) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}

	parts := strings.Split(rel, string(filepath.Separator))
	for _, p := range parts {
		if hidden(p) {
			return "", false
		}
	}

	top := filepath.Join(root, parts[0])
	if len(parts) == 1 {
		if isDir || archive.IsZip(path) {
			return top, true
		}
		return "", false
	}
	return top, true
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || name == "__MACOSX"
}
