package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path on every write and hands each valid configuration to
// apply. Invalid or unreadable intermediate states are skipped; the watch
// runs until ctx is cancelled. The watch is installed on the parent
// directory so editor rename-and-replace saves are picked up.
func Watch(ctx context.Context, path string, apply func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(target)
			if err != nil {
				continue
			}
			apply(cfg)
		case _, ok := <-w.Errors:
			if !ok {
				return nil
			}
		}
	}
}
