package files

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"appdeck/pkg/log"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher calls onChange when the watched file is written, created or
// replaced. The parent directory is watched so editors that save through a
// rename are still observed. Bursts of events are coalesced.
type FileWatcher struct {
	filePath string
	debounce time.Duration
	onChange func(string)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(filePath string, onChange func(string)) *FileWatcher {
	return &FileWatcher{
		filePath: filepath.Clean(filePath),
		debounce: 250 * time.Millisecond,
		onChange: onChange,
	}
}

// Start begins watching the file until ctx is cancelled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.filePath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.filePath, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watchLoop(ctx, watcher)
	log.Info("File watcher started", "path", w.filePath)
	return nil
}

// Stop stops watching the file. It is safe to call more than once.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if watcher == nil {
		return
	}
	_ = watcher.Close()
	w.wg.Wait()
	log.Info("File watcher stopped", "path", w.filePath)
}

func (w *FileWatcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			_ = watcher.Close()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.filePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			log.Debug("File changed", "path", w.filePath)
			if w.onChange != nil {
				w.onChange(w.filePath)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn("File watcher error", "path", w.filePath, "error", err)
		}
	}
}

// SetDebounce sets how long to wait for further events before firing.
func (w *FileWatcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// GetFilePath returns the path of the file being watched
func (w *FileWatcher) GetFilePath() string {
	return w.filePath
}
