package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gubarz/cachebust/internal/rewrite"
	"go.uber.org/zap"
)

// Watcher re-runs the rewriter on handler files as they change
type Watcher struct {
	rw       *rewrite.Rewriter
	fsw      *fsnotify.Watcher
	debounce time.Duration
	results  chan rewrite.FileResult
	logger   *zap.Logger

	// Files this watcher rewrote, by the state it left them in. Only the
	// Run goroutine touches it.
	written map[string]fileState
}

type fileState struct {
	mod  time.Time
	size int64
}

func statState(path string) (fileState, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}, false
	}
	return fileState{mod: info.ModTime(), size: info.Size()}, true
}

// New creates a watcher. Results of processed files are delivered on
// Results; when nobody reads them they are dropped.
func New(rw *rewrite.Rewriter, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		rw:       rw,
		fsw:      fsw,
		debounce: debounce,
		results:  make(chan rewrite.FileResult, 100),
		logger:   logger,
		written:  make(map[string]fileState),
	}, nil
}

// Results returns processed files
func (w *Watcher) Results() <-chan rewrite.FileResult {
	return w.results
}

// Close stops watching without running the event loop
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Add watches root and every directory below it that is not excluded
func (w *Watcher) Add(root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", root, rewrite.ErrRootNotFound)
	}
	return w.addTree(root)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.rw.Excluded(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch folder %s: %w", path, err)
		}
		w.logger.Debug("Watching folder", zap.String("path", path))
		return nil
	})
}

// Run processes events until ctx is done. Writes to the same file within
// the debounce interval are processed once.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.results)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return w.fsw.Close()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event) {
				pending[event.Name] = struct{}{}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))

		case <-timer.C:
			w.flush(pending)
			clear(pending)
		}
	}
}

// handleEvent reports whether event names a file to process. New
// directories are added to the watch list.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.rw.Excluded(event.Name) {
				if err := w.addTree(event.Name); err != nil {
					w.logger.Warn("Failed to watch new folder", zap.String("path", event.Name), zap.Error(err))
				}
			}
			return false
		}
	}

	return w.rw.Match(event.Name)
}

func (w *Watcher) flush(pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if w.ownWrite(path) {
			w.logger.Debug("Skipping own write", zap.String("path", path))
			continue
		}

		res, err := w.rw.ProcessFile(path)
		if err != nil {
			w.logger.Warn("Failed to process file", zap.String("path", path), zap.Error(err))
			continue
		}
		if res.Written {
			if st, ok := statState(path); ok {
				w.written[path] = st
			}
		}
		select {
		case w.results <- res:
		default:
		}
	}
}

// ownWrite reports whether path is still exactly as this watcher last wrote
// it. Once the file changes the record is dropped.
func (w *Watcher) ownWrite(path string) bool {
	want, ok := w.written[path]
	if !ok {
		return false
	}
	if got, ok := statState(path); ok && got.mod.Equal(want.mod) && got.size == want.size {
		return true
	}
	delete(w.written, path)
	return false
}
