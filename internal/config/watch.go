package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chatdock/chatdock/internal/devlog"
)

// Watch reloads the settings file on change and calls onChange with the new
// values. Editors rewrite files with several events in a burst, so changes
// are debounced before reloading. Blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	var debounce *time.Timer
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				c, err := LoadFile(path)
				if err != nil {
					devlog.Printf("[Config] reload failed: %v\n", err)
					return
				}
				onChange(c)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			devlog.Printf("[Config] watch error: %v\n", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
