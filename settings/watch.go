package settings

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gen1nya/WinMediaSessionProvider/logger"
)

// debounceDelay absorbs the bursts of events editors and atomic renames
// produce for a single logical change.
const debounceDelay = 200 * time.Millisecond

// Watch reloads the settings file whenever it changes on disk and calls
// onChange with the new values. The tray application writes the same
// file, so external edits take effect without a restart. Watch blocks
// until ctx is cancelled.
func (s *Store) Watch(ctx context.Context, onChange func(Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: atomic saves replace the inode.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Base(s.path)
	var debounce *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			loaded, err := s.Load()
			if err != nil {
				logger.Warn("settings reload failed", logger.ErrorField(err))
				continue
			}
			logger.Info("settings file changed",
				logger.Bool("enabled", loaded.Enabled),
				logger.String("device", loaded.DeviceID))
			onChange(loaded)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("settings watcher error", logger.ErrorField(err))
		}
	}
}
