package accounts

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events an editor produces on save.
const reloadDelay = 250 * time.Millisecond

// Watch reloads the accounts file whenever it changes until ctx is done.
// The parent directory is watched so that atomic saves (write to a temp file,
// then rename) are seen too.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create accounts watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(l.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	l.logger.InfoContext(ctx, "watching accounts file")

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(reloadDelay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.WarnContext(ctx, "accounts watcher error", "error", err)
		case <-timer.C:
			if _, err := l.Load(ctx); err != nil {
				l.logger.ErrorContext(ctx, "accounts reload failed", "error", err)
			}
		}
	}
}
