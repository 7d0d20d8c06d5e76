package store

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the data directory for out-of-band edits to override
// files (support tooling writing directly to disk) and invokes a callback
// with the affected key. Only meaningful for the file backend.
type Watcher struct {
	dir      string
	keys     map[string]string // base filename -> key
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once
	onChange func(key string)

	mu       sync.Mutex
	modTimes map[string]time.Time
}

// NewWatcher watches dir for changes to the given keys' backing files.
func NewWatcher(dir string, keys []string, onChange func(key string)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:      filepath.Clean(dir),
		keys:     make(map[string]string, len(keys)),
		watcher:  watcher,
		stopChan: make(chan struct{}),
		onChange: onChange,
		modTimes: make(map[string]time.Time, len(keys)),
	}
	for _, key := range keys {
		path := FileFor(w.dir, key)
		w.keys[filepath.Base(path)] = key
		if stat, err := os.Stat(path); err == nil {
			w.modTimes[key] = stat.ModTime()
		}
	}
	return w, nil
}

// Start begins watching, falling back to polling when the directory cannot
// be watched natively.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		log.Warn().Err(err).Str("path", w.dir).Msg("Failed to watch data directory; falling back to polling")
		go w.pollForChanges()
		return nil
	}

	go w.watchForChanges()
	log.Info().Str("path", w.dir).Msg("Started watching data directory for override changes")
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		_ = w.watcher.Close()
	})
}

func (w *Watcher) watchForChanges() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			key, tracked := w.keys[filepath.Base(event.Name)]
			if !tracked {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce - atomic writes arrive as create+rename pairs.
			time.Sleep(100 * time.Millisecond)
			log.Info().Str("key", key).Str("event", event.Op.String()).Msg("Detected override file change")
			w.notify(key)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Data directory watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) pollForChanges() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for base, key := range w.keys {
				stat, err := os.Stat(filepath.Join(w.dir, base))
				if err != nil {
					continue
				}
				w.mu.Lock()
				last := w.modTimes[key]
				changed := stat.ModTime().After(last)
				if changed {
					w.modTimes[key] = stat.ModTime()
				}
				w.mu.Unlock()
				if changed {
					log.Info().Str("key", key).Msg("Detected override file change via polling")
					w.notify(key)
				}
			}

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) notify(key string) {
	if w.onChange != nil {
		w.onChange(key)
	}
}
