package infra

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// RuleFileWatcher emits ReloadConfig when the rule file changes. It watches
// the parent directory so editors that replace the file by rename are seen.
// Events are not debounced; the router skips reloads with unchanged content.
type RuleFileWatcher struct {
	path   string
	logger *zap.Logger
}

// NewRuleFileWatcher creates a watcher for path.
func NewRuleFileWatcher(path string, logger *zap.Logger) *RuleFileWatcher {
	return &RuleFileWatcher{path: filepath.Clean(path), logger: logger}
}

// Name implements domain.EventSource.
func (w *RuleFileWatcher) Name() string { return "rulefile" }

// Run implements domain.EventSource.
func (w *RuleFileWatcher) Run(ctx context.Context, sink domain.EventSink) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info("watching rule file", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("rule file changed", zap.String("op", ev.Op.String()))
			if err := sink.Push(domain.ReloadConfig{}); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *RuleFileWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

// Ensure RuleFileWatcher implements domain.EventSource.
var _ domain.EventSource = (*RuleFileWatcher)(nil)
