package noteservice

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/notefile"
)

// reconcileDelay debounces the full sync that follows renames.
const reconcileDelay = 200 * time.Millisecond

// EventCallback is called for every note whose file changed on disk.
// Writes made through the Service itself are not reported.
type EventCallback func(c Change)

// Watch runs an fsnotify watcher on the vault root until ctx is cancelled.
// Note files live at the top level, so subdirectories are not watched.
// Rename events trigger a debounced Sync that settles both ends of the move.
func Watch(ctx context.Context, svc *Service, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := svc.Root()
	if err := w.Add(root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	emit := func(c *Change) {
		if c == nil {
			return
		}
		logger.Debug("watcher: note changed", slog.String("note_id", c.NoteID), slog.String("op", c.Kind))
		if cb != nil {
			cb(*c)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			changes, err := svc.Sync()
			if err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
				continue
			}
			for i := range changes {
				emit(&changes[i])
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, ok := notefile.IDOf(filepath.Base(ev.Name))
			if !ok || filepath.Dir(ev.Name) != root {
				continue
			}
			if ev.Op&fsnotify.Rename != 0 {
				scheduleReconcile()
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			c, err := svc.Reload(id)
			if err != nil {
				logger.Warn("watcher: read failed", slog.String("note_id", id), slog.String("error", err.Error()))
				continue
			}
			emit(c)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
