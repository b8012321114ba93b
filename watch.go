// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package fxchain

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/fxchain/backend"
	"github.com/gogpu/fxchain/preset"
)

// reloadDelay coalesces the burst of events an editor produces on save.
const reloadDelay = 100 * time.Millisecond

// Watch builds a chain from the preset at path and rebuilds it whenever the
// preset, one of its shaders or one of its lookup textures changes.
//
// fn receives every chain that was built, or the error that prevented a
// build. The receiver owns the chain and closes the previous one. Watch
// blocks until ctx is done and returns ctx.Err(), or returns early when the
// file watcher fails.
func Watch(ctx context.Context, path string, b backend.Backend, fn func(*FilterChain, error), opts ...Option) error {
	o := buildOptions(opts)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fxchain: watch: %w", err)
	}
	defer w.Close()

	files, err := watchFiles(w, path, nil)
	if err != nil {
		return err
	}
	reload := func() {
		p, err := preset.Load(path)
		if err == nil {
			var watched map[string]bool
			if watched, err = watchFiles(w, path, p); err == nil {
				files = watched
			}
		}
		if err != nil {
			o.logger.Warn("fxchain: reload failed", "preset", path, "err", err)
			fn(nil, err)
			return
		}
		chain, err := New(p, b, opts...)
		if err != nil {
			o.logger.Warn("fxchain: reload failed", "preset", path, "err", err)
			fn(nil, err)
			return
		}
		o.logger.Info("fxchain: preset loaded", "preset", path, "files", len(files))
		fn(chain, nil)
	}
	reload()

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !files[filepath.Clean(ev.Name)] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			o.logger.Debug("fxchain: file changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(reloadDelay)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("fxchain: watch: %w", err)
		case <-timer.C:
			reload()
		}
	}
}

// watchFiles watches the directory of every file the preset depends on and
// returns the set of file names to react to. Directories are watched
// instead of files so that editors replacing a file by rename are noticed.
func watchFiles(w *fsnotify.Watcher, path string, p *preset.Preset) (map[string]bool, error) {
	names := []string{path}
	if p != nil {
		names = append(names, p.Files()...)
	}
	files := make(map[string]bool, len(names))
	dirs := make(map[string]bool)
	for _, name := range names {
		name = filepath.Clean(name)
		files[name] = true
		dir := filepath.Dir(name)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := w.Add(dir); err != nil {
			return nil, fmt.Errorf("fxchain: watch %s: %w", dir, err)
		}
	}
	return files, nil
}
