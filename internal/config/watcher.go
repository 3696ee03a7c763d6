package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

type WatcherConfig struct {
	Path     string
	Holder   *Holder
	Logger   *slog.Logger
	Debounce time.Duration
}

// Watcher reloads the config file into a Holder when it changes on disk.
// Edits that fail to load or validate are logged and the previous config stays active.
type Watcher struct {
	path     string
	holder   *Holder
	logger   *slog.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending time.Time
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher prepares a watcher for cfg.Path. Nothing is watched until Start.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	path, err := filepath.Abs(ExpandPath(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	d := cfg.Debounce
	if d <= 0 {
		d = defaultDebounce
	}
	return &Watcher{
		path:     path,
		holder:   cfg.Holder,
		logger:   cfg.Logger,
		debounce: d,
		watcher:  fw,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches the directory holding the config file, since editors often
// replace the file by rename. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching config", "path", w.path)
	go w.run(ctx)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("config watcher close", "err", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher", "err", err)
		case <-ticker.C:
			w.mu.Lock()
			due := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if due {
				w.pending = time.Time{}
			}
			w.mu.Unlock()
			if due {
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected, keeping previous settings", "err", err)
		return
	}
	w.holder.Store(cfg)
	w.logger.Info("config reloaded", "path", w.path)
}
