package config

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups editor write bursts into one reload.
const DefaultDebounce = 500 * time.Millisecond

// WatchController reloads the controller config whenever path changes and
// hands the result to onChange, once per burst of writes. Files that fail to
// parse are skipped. It blocks until ctx ends.
func WatchController(ctx context.Context, path string, debounce time.Duration, onChange func(ControllerConfig)) error {
	if path == "" {
		path = DefaultControllerPath
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// The directory, not the file: editors replace files by rename.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	reload := func() {
		cfg, err := LoadControllerConfig(abs)
		if err != nil {
			log.Printf("[CONFIG] %v; keeping current settings", err)
			return
		}
		log.Printf("[CONFIG] reloaded %s", abs)
		onChange(cfg)
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || filepath.Base(ev.Name) != filepath.Base(abs) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[CONFIG] watch error: %v", err)
		case <-timer.C:
			reload()
		}
	}
}
