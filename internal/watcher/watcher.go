// Package watcher tails the scoring-config directory and reports
// debounced change batches so the daemon can reload classification and
// ranking tables without restarting.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/engramhq/engram-mcp/internal/logger"
)

var log = logger.ForComponent("watcher")

// ChangeFunc receives the paths of config files that changed, after
// debouncing. Deletes are included; the reload decides what to do.
type ChangeFunc func(paths []string)

type Watcher struct {
	config    Config
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	onChange  ChangeFunc

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(config Config, onChange ChangeFunc) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:    config,
		fsWatcher: fsWatcher,
		onChange:  onChange,
	}

	w.debouncer = NewDebouncer(config.DebounceWindow, config.MaxBatchSize, w.onFlush)

	return w, nil
}

// Watch registers a directory. Editors replace files rather than write
// them in place, so the directory is watched instead of the file.
func (w *Watcher) Watch(dir string) error {
	log.Info("watching config directory", "path", dir)
	return w.fsWatcher.Add(dir)
}

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)

	go w.handleEvents()
	return nil
}

func (w *Watcher) handleEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			log.Debug("file event", "path", event.Name, "op", event.Op.String())

			fileEvent := w.convertEvent(event)
			if fileEvent != nil {
				w.debouncer.Add(*fileEvent)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) convertEvent(event fsnotify.Event) *FileEvent {
	if w.shouldIgnore(event.Name) {
		return nil
	}

	var eventType EventType

	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventModify
	case event.Has(fsnotify.Remove):
		eventType = EventDelete
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return nil
	}

	return &FileEvent{
		Path:      event.Name,
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

func (w *Watcher) onFlush(events []FileEvent) {
	if len(events) == 0 || w.onChange == nil {
		return
	}

	paths := make([]string, 0, len(events))
	for _, event := range events {
		paths = append(paths, event.Path)
	}

	log.Info("config change detected", "files", len(paths))
	w.onChange(paths)
}

func (w *Watcher) shouldIgnore(path string) bool {
	basename := filepath.Base(path)

	for _, pattern := range w.config.IgnorePatterns {
		if match, _ := doublestar.Match(pattern, path); match {
			return true
		}
		if match, _ := doublestar.Match(pattern, basename); match {
			return true
		}
	}

	return false
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.debouncer.Stop()
	return w.fsWatcher.Close()
}
