// Package watch re-runs an action whenever a local directory tree changes.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
)

// DefaultDebounce is how long the tree must be quiet before the action runs.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a directory recursively.
type Watcher struct {
	root     string
	debounce time.Duration
	ignore   func(path string) bool
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnore skips events for paths for which fn returns true.
func WithIgnore(fn func(path string) bool) Option {
	return func(w *Watcher) {
		w.ignore = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher for the directory tree at root.
func New(root string, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		debounce: DefaultDebounce,
		ignore:   func(string) bool { return false },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run calls fn once, then again each time changes beneath the root have
// settled for the debounce interval. It returns nil once ctx is done.
//
// A failing run is logged and watching continues, except for configuration
// and unsupported-operation failures, which no later run can fix; those are
// returned.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return errors.NewIOError("watch", err).WithPath(w.root)
	}
	if !info.IsDir() {
		return errors.NewUnsupportedError("watch", "watch requires a directory").WithPath(w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewIOError("watch", err).WithPath(w.root)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return err
	}

	if err := w.invoke(ctx, fn); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.addRecursive(fsw, event.Name); err != nil {
						w.logger.Warn("cannot watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			if err := w.invoke(ctx, fn); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}
	return !w.ignore(event.Name)
}

func (w *Watcher) invoke(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Err() != nil {
		return nil
	}
	err := fn(ctx)
	switch {
	case err == nil:
		return nil
	case errors.IsCancelled(err):
		return nil
	case errors.IsConfig(err) || errors.IsUnsupported(err):
		return err
	default:
		w.logger.Error("run failed; waiting for further changes", "code", errors.CodeOf(err), "error", err)
		return nil
	}
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.NewIOError("watch", err).WithPath(path)
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			return errors.NewIOError("watch", err).WithPath(path)
		}
		return nil
	})
}
