package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

type handled struct {
	mu    sync.Mutex
	paths []string
}

func (h *handled) handler(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paths = append(h.paths, path)
	return nil
}

func (h *handled) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.paths...)
}

func startWatcher(t *testing.T, root string, h Handler) {
	t.Helper()

	w, err := New(Options{Root: root, Ext: ".mp4", Settle: 50 * time.Millisecond, Handler: h})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
	})
}

func TestWatcherHandsOverNewMatchingFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	h := &handled{}
	startWatcher(t, root, h.handler)

	video := filepath.Join(root, "new.MP4")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644))

	require.Eventually(t, func() bool {
		return len(h.snapshot()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, []string{video}, h.snapshot())
}

func TestWatcherFollowsNewSubdirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	h := &handled{}
	startWatcher(t, root, h.handler)

	nested := filepath.Join(root, "2026", "october")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	video := filepath.Join(nested, "talk.mp4")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o644))

	require.Eventually(t, func() bool {
		paths := h.snapshot()
		return len(paths) == 1 && paths[0] == video
	}, 5*time.Second, 20*time.Millisecond)
}

func TestHandleEventDebouncesWrites(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	video := filepath.Join(root, "growing.mp4")
	require.NoError(t, os.WriteFile(video, []byte("partial"), 0o644))

	h := &handled{}
	w, err := New(Options{Root: root, Ext: "mp4", Settle: time.Second, Handler: h.handler})
	require.NoError(t, err)
	defer w.fsw.Close()

	start := time.Now()
	w.handleEvent(fsnotify.Event{Name: video, Op: fsnotify.Create}, start)
	w.handleEvent(fsnotify.Event{Name: video, Op: fsnotify.Write}, start.Add(800*time.Millisecond))

	w.flush(context.Background(), start.Add(1500*time.Millisecond))
	require.Empty(t, h.snapshot(), "file still being written")

	w.flush(context.Background(), start.Add(1900*time.Millisecond))
	require.Equal(t, []string{video}, h.snapshot())
	require.Empty(t, w.pending)
}

func TestHandleEventDropsRemovedFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	h := &handled{}
	w, err := New(Options{Root: root, Settle: time.Millisecond, Handler: h.handler})
	require.NoError(t, err)
	defer w.fsw.Close()

	gone := filepath.Join(root, "gone.mp4")
	now := time.Now()
	w.handleEvent(fsnotify.Event{Name: gone, Op: fsnotify.Write}, now)
	w.handleEvent(fsnotify.Event{Name: gone, Op: fsnotify.Remove}, now)
	w.flush(context.Background(), now.Add(time.Second))
	require.Empty(t, h.snapshot())
}

func TestFlushContinuesAfterHandlerError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	first := filepath.Join(root, "a.mp4")
	second := filepath.Join(root, "b.mp4")
	require.NoError(t, os.WriteFile(first, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("b"), 0o644))

	var calls []string
	w, err := New(Options{Root: root, Settle: time.Millisecond, Handler: func(_ context.Context, path string) error {
		calls = append(calls, path)
		return errors.New("extract audio: boom")
	}})
	require.NoError(t, err)
	defer w.fsw.Close()

	now := time.Now()
	w.touch(first, now)
	w.touch(second, now)
	w.flush(context.Background(), now.Add(time.Second))
	require.Equal(t, []string{first, second}, calls)
}

func TestNewRequiresHandlerAndRoot(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Root: t.TempDir()})
	require.EqualError(t, err, "watch handler is required")

	_, err = New(Options{Root: filepath.Join(t.TempDir(), "missing"), Handler: (&handled{}).handler})
	require.Error(t, err)
}

func TestQueuedFilesAreHandedOverOnRun(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	existing := filepath.Join(root, "existing.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("video"), 0o644))

	h := &handled{}
	w, err := New(Options{Root: root, Ext: ".mp4", Settle: 20 * time.Millisecond, Handler: h.handler})
	require.NoError(t, err)

	// Written after the watches exist but before Run starts reading events.
	arrived := filepath.Join(root, "arrived.mp4")
	require.NoError(t, os.WriteFile(arrived, []byte("video"), 0o644))
	w.Queue(existing)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(h.snapshot()) == 2
	}, 5*time.Second, 20*time.Millisecond)
	require.ElementsMatch(t, []string{existing, arrived}, h.snapshot())

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
