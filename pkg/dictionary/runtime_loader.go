package dictionary

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bastiangx/kiltman/pkg/trie"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// RuntimeLoader holds the trie being served and swaps it when the file changes.
// Readers always see either the old or the new trie, never a partial one.
type RuntimeLoader struct {
	path    string
	current atomic.Pointer[trie.Flat]
	mu      sync.Mutex // serializes reloads
	loaded  time.Time
}

// NewRuntimeLoader loads path once and returns a loader serving it.
func NewRuntimeLoader(path string) (*RuntimeLoader, error) {
	rl := &RuntimeLoader{path: path}
	if err := rl.Reload(); err != nil {
		return nil, err
	}
	return rl, nil
}

// Trie returns the trie currently served.
func (rl *RuntimeLoader) Trie() *trie.Flat {
	return rl.current.Load()
}

// Path returns the trie file being served.
func (rl *RuntimeLoader) Path() string { return rl.path }

// LoadedAt returns the time of the last successful load.
func (rl *RuntimeLoader) LoadedAt() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.loaded
}

// Reload reads the trie file again. On failure the previous trie stays in place.
func (rl *RuntimeLoader) Reload() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	start := time.Now()
	t, err := LoadTrie(rl.path)
	if err != nil {
		return err
	}
	rl.current.Store(t)
	rl.loaded = time.Now()
	log.Infof("Trie %s ready in %v (%d nodes)", rl.path, time.Since(start).Round(time.Millisecond), t.NodeCount())
	return nil
}

// Watch reloads the trie whenever its file is replaced, until ctx is done. Events are
// debounced so a write followed by a rename triggers one reload.
func (rl *RuntimeLoader) Watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// watch the directory since SaveTrie replaces the file by rename
	dir := filepath.Dir(rl.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target := filepath.Clean(rl.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := rl.Reload(); err != nil {
				log.Errorf("Reload of %s failed, keeping previous trie: %v", rl.path, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Trie watcher error: %v", err)
		}
	}
}
