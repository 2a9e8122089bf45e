package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file whenever it changes and passes every config that
// loads and validates to fn. Invalid edits are logged and skipped. It blocks until
// ctx is done.
func Watch(ctx context.Context, configPath string, debounce time.Duration, fn func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save, so watch the directory rather than the file.
	target := filepath.Clean(configPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", configPath, err)
	}
	log.Debugf("Watching config %s", target)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Config watcher error: %v", err)
		case <-timer.C:
			cfg, err := LoadConfig(target)
			if err != nil {
				log.Warnf("Ignoring config change in %s: %v", target, err)
				continue
			}
			log.Infof("Reloaded config from %s", target)
			fn(cfg)
		}
	}
}
