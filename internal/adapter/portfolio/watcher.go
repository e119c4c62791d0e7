package portfolio

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"portfolio-assistant/internal/domain"
)

// Watch reloads the context whenever a local candidate file is written or
// created. It watches the parent directories (editors often replace files
// rather than writing in place) and debounces bursts of events. Watching
// stops when ctx is cancelled. Watch returns after setup; it fails when no
// candidate is a local file.
func (l *Loader) Watch(ctx context.Context) error {
	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, src := range l.sources {
		if src.remote {
			continue
		}
		abs, err := filepath.Abs(src.target)
		if err != nil {
			continue
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	if len(files) == 0 {
		return domain.NewSubSystemError("portfolio", "Loader.Watch", domain.ErrNotFound, "no local portfolio files to watch")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	added := 0
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			l.logger.Debug("portfolio watch skipped directory", "dir", dir, "error", err)
			continue
		}
		added++
	}
	if added == 0 {
		w.Close()
		return domain.NewSubSystemError("portfolio", "Loader.Watch", domain.ErrNotFound, "no watchable portfolio directories")
	}

	debounce := l.cfg.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	go l.watchLoop(ctx, w, files, debounce)
	l.logger.Info("portfolio watch started", "files", len(files))
	return nil
}

func (l *Loader) watchLoop(ctx context.Context, w *fsnotify.Watcher, files map[string]bool, debounce time.Duration) {
	defer w.Close()

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !files[name] {
				continue
			}
			l.logger.Debug("portfolio file changed", "file", name, "op", event.Op.String())

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if ctx.Err() != nil {
					return
				}
				if err := l.Reload(ctx); err != nil {
					l.logger.Warn("portfolio reload failed, keeping previous context", "error", err)
				}
			})
			mu.Unlock()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Error("portfolio watcher error", "error", err)

		case <-ctx.Done():
			return
		}
	}
}
