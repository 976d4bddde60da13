package access

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"
)

// Watcher keeps an AllowList in sync with a YAML file. Emails passed as
// static members are always kept in addition to the file contents.
type Watcher struct {
	list   *AllowList
	path   string
	static []string
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewWatcher constructs a watcher for path. It does not touch the filesystem
// until Reload or Start is called.
func NewWatcher(list *AllowList, path string, static []string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		list:   list,
		path:   filepath.Clean(path),
		static: slices.Clone(static),
		logger: logger.With("component", "AllowListWatcher", "path", path),
	}
}

// Reload reads the file and replaces the list. On failure the previous
// members are kept.
func (w *Watcher) Reload() error {
	fromFile, err := ReadFile(w.path)
	if err != nil {
		return err
	}
	members := append(slices.Clone(w.static), fromFile...)
	w.list.Replace(members)
	w.logger.Info("admin allow-list loaded", "members", w.list.Len())
	return nil
}

// Start loads the file once and then reloads it whenever it changes, until
// ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.Reload(); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Editors often replace the file, so watch the directory and filter by name.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.mu.Lock()
	w.watcher = fsw
	w.mu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		return w.run(ctx, fsw)
	}, lifecycle.WithErrorHandler(func(err error) {
		w.logger.Error("allow-list watcher stopped", "error", err)
	}))
	return nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := w.Reload(); err != nil {
				w.logger.Warn("allow-list reload failed, keeping previous members", "error", err)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}
