package alerting

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/good-yellow-bee/alertflow/internal/storage"
)

// Watcher hot-reloads a rule file on change, syncing the store and
// invalidating the engine's rule cache. Editors often replace files
// rather than write in place, so the parent directory is watched and
// events are filtered by name.
type Watcher struct {
	path   string
	store  storage.Store
	engine *Engine

	// debounce coalesces the event bursts editors produce on save.
	debounce time.Duration
}

// NewWatcher creates a rule-file watcher.
func NewWatcher(path string, store storage.Store, engine *Engine) *Watcher {
	return &Watcher{
		path:     path,
		store:    store,
		engine:   engine,
		debounce: 250 * time.Millisecond,
	}
}

// Run watches until the context is cancelled. Reload failures keep the
// previous rules and log the error.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("warning: rule file watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	file, err := LoadRuleFile(w.path)
	if err != nil {
		log.Printf("warning: rule file reload failed, keeping previous rules: %v", err)
		return
	}
	if err := SyncRuleFile(ctx, w.store, file, time.Now()); err != nil {
		log.Printf("warning: rule file sync failed: %v", err)
		return
	}
	w.engine.InvalidateRules()
	log.Printf("rule file reloaded: %d notification rules, %d escalation rules",
		len(file.NotificationRules), len(file.EscalationRules))
}
