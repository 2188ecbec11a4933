// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

// Package watch re-invokes a jtmake.Graph's Make whenever a file changes in
// a directory holding an input of one of the graph's rules, via fsnotify. It is a plain
// consumer of the engine's public Make entry point — like package config,
// it never touches staleness internals — modeled on obsidian-cli's
// fsnotify-driven cache invalidation loop (pkg/cache/service.go).
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marcelocantos/jtmake"
)

// Options configures a watch Loop.
type Options struct {
	Targets []string
	Opts    jtmake.Options
	// Debounce coalesces a burst of filesystem events (e.g. an editor's
	// write-then-rename) into a single rebuild. Defaults to 100ms.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Loop watches the directory of every input of every rule in g (not only
// the rules reachable from opts.Targets) and calls g.Make on opts.Targets
// again each time a file in one of those directories is written, created,
// removed or renamed, until ctx is canceled.
func Loop(ctx context.Context, g *jtmake.Graph, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watchedDirs := map[string]bool{}
	for _, r := range g.Rules() {
		for _, in := range r.Inputs {
			dir := filepath.Dir(in.File.Path)
			if watchedDirs[dir] {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				logger.Debug("jtmake/watch: cannot watch directory", "dir", dir, "error", err)
				continue
			}
			watchedDirs[dir] = true
		}
	}

	rebuild := func() {
		sum, err := g.Make(ctx, opts.Targets, opts.Opts)
		if err != nil {
			logger.Error("jtmake/watch: rebuild failed", "error", err)
			return
		}
		logger.Info("jtmake/watch: rebuilt", "updated", sum.Updated, "skipped", sum.Skipped, "failed", sum.Failed)
	}

	rebuild()

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, rebuild)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("jtmake/watch: watcher error", "error", err)
		}
	}
}
