package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vango-dev/urlobserver/internal/errors"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes and passes the new config to fn.
// A file that fails to load is logged and skipped; the previous config
// stays in effect. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file so that editors
// which replace the file on save keep triggering reloads.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, fn func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.New("E101").WithDetail("%s", path).Wrap(err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New("E101").WithDetail("create watcher").Wrap(err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.New("E101").WithDetail("watch %s", filepath.Dir(abs)).Wrap(err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			logger.Warn("config reload failed", "path", path, "error", err)
			return
		}
		logger.Info("config reloaded", "path", path, "routes", len(cfg.Routes))
		fn(cfg)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
			mu.Unlock()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
