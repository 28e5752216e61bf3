package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fmueller/voxbatch/internal/discover"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultSettle = 2 * time.Second

// Handler processes one settled file. Calls never overlap.
type Handler func(ctx context.Context, path string) error

type Options struct {
	Root string
	Ext  string

	// Settle is how long a file must go without write events before it is handed over.
	Settle  time.Duration
	Handler Handler
	Logger  *zap.Logger
}

type Watcher struct {
	root    string
	ext     string
	settle  time.Duration
	handler Handler
	logger  *zap.Logger

	fsw     *fsnotify.Watcher
	pending map[string]time.Time
}

func New(opts Options) (*Watcher, error) {
	if opts.Handler == nil {
		return nil, errors.New("watch handler is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		root:    filepath.Clean(opts.Root),
		ext:     discover.NormalizeExt(opts.Ext),
		settle:  opts.Settle,
		handler: opts.Handler,
		logger:  opts.Logger,
		fsw:     fsw,
		pending: map[string]time.Time{},
	}

	if err := w.addTree(w.root, false); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

// Queue marks path as pending as if it had just been written. It must be
// called before Run.
func (w *Watcher) Queue(path string) {
	w.touch(path, time.Now())
}

// Close releases the underlying watches. Run closes them itself on return.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run blocks until ctx is cancelled, converting new matching files as they settle.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	tick := w.settle / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	w.logger.Info("watching for new files", zap.String("root", w.root), zap.String("ext", w.ext))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			w.handleEvent(event, time.Now())
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, now time.Time) {
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// Files may land in a new directory before its watch is registered.
			if err := w.addTree(event.Name, true); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
		w.touch(event.Name, now)
	case event.Has(fsnotify.Write):
		w.touch(event.Name, now)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(w.pending, event.Name)
	}
}

func (w *Watcher) touch(path string, now time.Time) {
	if !discover.Matches(path, w.ext) {
		return
	}
	if _, seen := w.pending[path]; !seen {
		w.logger.Debug("new file detected", zap.String("path", path))
	}
	w.pending[path] = now
}

func (w *Watcher) flush(ctx context.Context, now time.Time) {
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	for _, path := range ready {
		delete(w.pending, path)
		if ctx.Err() != nil {
			return
		}

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		if err := w.handler(ctx, path); err != nil {
			w.logger.Debug("watched file failed", zap.String("path", path), zap.Error(err))
		}
	}
}

// addTree registers dir and every directory below it. With markExisting,
// matching files already present are queued as pending.
func (w *Watcher) addTree(dir string, markExisting bool) error {
	now := time.Now()
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				if path == dir {
					return fmt.Errorf("watch %s: %w", path, err)
				}
				w.logger.Warn("failed to watch directory", zap.String("path", path), zap.Error(err))
				return fs.SkipDir
			}
			return nil
		}
		if markExisting {
			w.touch(path, now)
		}
		return nil
	})
}
