package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"

	"simplexkg/internal/logging"
)

// WatchConfig watches path for changes and logs whenever it is rewritten.
// Hot-reloading a running ingest/query process is out of scope; this exists
// so operators can confirm a config edit landed before the next invocation.
// The returned stop function closes the underlying watcher.
func WatchConfig(path string) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					logging.Boot("config file changed: %s (will take effect on next run)", event.Name)
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.BootError("config watcher error: %v", werr)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
