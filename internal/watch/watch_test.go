package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gubarz/cachebust/internal/inject"
	"github.com/gubarz/cachebust/internal/rewrite"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const handler = `export default async function handler(req, res) {
  if (req.method === 'DELETE') {
    await remove(req.query.id);
    return res.status(200).json({ ok: true });
  }
}
`

func newWatcher(t *testing.T) *Watcher {
	t.Helper()
	engine, err := inject.NewEngine(inject.DefaultRules())
	require.NoError(t, err)
	rw := rewrite.New(afero.NewOsFs(), engine, rewrite.Options{
		Extension: ".js",
		Exclude:   []string{"node_modules"},
	}, nil)
	w, err := New(rw, 50*time.Millisecond, nil)
	require.NoError(t, err)
	return w
}

// next waits for a result for path
func next(t *testing.T, w *Watcher, path string) rewrite.FileResult {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case res, ok := <-w.Results():
			require.True(t, ok, "results closed")
			if res.Path == path {
				return res
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", path)
		}
	}
}

func TestWatcherProcessesChangedFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	sub := filepath.Join(root, "posts")
	require.NoError(t, os.Mkdir(sub, 0o755))

	w := newWatcher(t)
	require.NoError(t, w.Add(root))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Rename a finished file in so the watcher never sees it half written.
	staged := filepath.Join(t.TempDir(), "delete.js")
	require.NoError(t, os.WriteFile(staged, []byte(handler), 0o644))
	path := filepath.Join(sub, "delete.js")
	require.NoError(t, os.Rename(staged, path))

	res := next(t, w, path)
	assert.Equal(t, 1, res.Insertions)
	assert.True(t, res.Written)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "    // 🚫 CACHE BUSTING\n")

	// The watcher's own rewrite must not be processed again.
	quiet := time.After(6 * 50 * time.Millisecond)
wait:
	for {
		select {
		case res := <-w.Results():
			if res.Path == path {
				t.Errorf("expected one result for %s, got another: %+v", path, res)
			}
		case <-quiet:
			break wait
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	w := newWatcher(t)
	defer w.Close()

	root := t.TempDir()
	dir := filepath.Join(root, "node_modules")
	require.NoError(t, os.Mkdir(dir, 0o755))

	assert.False(t, w.handleEvent(fsnotify.Event{Name: filepath.Join(root, "a.ts"), Op: fsnotify.Write}))
	assert.False(t, w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "a.js"), Op: fsnotify.Write}))
	assert.False(t, w.handleEvent(fsnotify.Event{Name: filepath.Join(root, "a.js"), Op: fsnotify.Chmod}))
	assert.False(t, w.handleEvent(fsnotify.Event{Name: dir, Op: fsnotify.Create}))
	assert.True(t, w.handleEvent(fsnotify.Event{Name: filepath.Join(root, "a.js"), Op: fsnotify.Write}))
	assert.Empty(t, w.fsw.WatchList())
}

func TestWatcherAddMissingRoot(t *testing.T) {
	w := newWatcher(t)
	defer w.Close()

	err := w.Add(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, rewrite.ErrRootNotFound)
}

func TestWatcherReprocessesLaterEdit(t *testing.T) {
	w := newWatcher(t)
	defer w.Close()

	path := filepath.Join(t.TempDir(), "create.js")
	require.NoError(t, os.WriteFile(path, []byte(handler), 0o644))

	w.flush(map[string]struct{}{path: {}})
	res := <-w.Results()
	assert.Equal(t, 1, res.Insertions)

	w.flush(map[string]struct{}{path: {}})
	select {
	case res := <-w.Results():
		t.Fatalf("expected own write to be skipped, got %+v", res)
	default:
	}

	// A real edit afterwards is picked up again.
	require.NoError(t, os.WriteFile(path, []byte(handler+"// edited\n"), 0o644))
	w.flush(map[string]struct{}{path: {}})
	select {
	case res := <-w.Results():
		assert.Equal(t, path, res.Path)
		assert.Equal(t, 1, res.Insertions)
	default:
		t.Fatal("expected the edited file to be processed")
	}
}
