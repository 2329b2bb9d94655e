package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// watchFile calls run once, then again after each change to path, until ctx
// is cancelled. The parent directory is watched so editors that replace the
// file on save are still seen.
func watchFile(ctx context.Context, path string, run func()) error {
	if path == "" {
		return errors.New("--watch needs a data file")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	run()
	log.Info("watching for changes", "file", abs)

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isChange(abs, ev) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(watchDebounce)
			trigger = timer.C
		case <-trigger:
			trigger = nil
			log.Debug("data file changed", "file", abs)
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		}
	}
}

// isChange reports whether ev modifies the watched file. Shapefiles change
// through their sidecar .dbf as well.
func isChange(path string, ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	if name == path {
		return true
	}
	ext := filepath.Ext(path)
	if ext == ".shp" {
		base := path[:len(path)-len(ext)]
		return name == base+".dbf" || name == base+".shx"
	}
	return false
}
