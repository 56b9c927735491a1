// Package watch re-runs an analysis whenever a log file changes.
//
// Changes are debounced so that a burst of writes triggers a single re-run.
// The parent directory is watched rather than the file itself, so rotation
// (rename or remove followed by a fresh create) is followed transparently.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a re-run.
const DefaultDebounce = 500 * time.Millisecond

// RunFunc performs one full analysis pass.
type RunFunc func(ctx context.Context) error

// Options configures the watcher behavior.
type Options struct {
	FilePath string        // Path to the log file
	Debounce time.Duration // Quiet period before re-running
	Logger   *slog.Logger
	OnChange RunFunc // Called once at start and after each debounced change
}

// Watcher re-runs an analysis when its file changes.
type Watcher struct {
	opts    Options
	path    string
	watcher *fsnotify.Watcher
	runs    int
}

// New creates a new Watcher with the given options.
func New(opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{opts: opts, path: filepath.Clean(opts.FilePath)}
}

// Run performs the initial analysis and then re-runs it after every change.
// It blocks until ctx is cancelled. An error from the initial pass is
// returned; errors from later passes are logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	if w.opts.OnChange == nil {
		return errors.New("watch: OnChange is required")
	}

	if err := w.run(ctx); err != nil {
		return err
	}

	if err := w.setupWatcher(); err != nil {
		return fmt.Errorf("failed to setup watcher: %w", err)
	}
	defer w.watcher.Close()

	return w.watch(ctx)
}

// setupWatcher initializes the fsnotify watcher on the file's directory.
func (w *Watcher) setupWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	return nil
}

func (w *Watcher) watch(ctx context.Context) error {
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}
			if w.relevant(ev) {
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			return fmt.Errorf("watcher error: %w", err)

		case <-timer.C:
			if err := w.run(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.opts.Logger.Warn("re-run failed", "path", w.path, "error", err)
			}
		}
	}
}

// relevant reports whether ev should schedule a re-run.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}

	switch {
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
		return true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.opts.Logger.Info("file rotated, waiting for new file", "path", w.path)
		return false
	}
	return false
}

func (w *Watcher) run(ctx context.Context) error {
	start := time.Now()
	err := w.opts.OnChange(ctx)
	w.runs++
	w.opts.Logger.Info("analysis run", "path", w.path, "run", w.runs, "elapsed", time.Since(start))
	return err
}
