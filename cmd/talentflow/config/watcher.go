// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config whenever the file changes and hands each valid
// new Config to onChange. Invalid edits are logged and skipped, keeping
// the previous configuration in effect.
//
// Watching the directory instead of the file survives the
// rename-and-replace pattern most editors use.
func Watch(ctx context.Context, path string, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					slog.Warn("Config reload skipped", "error", err)
					continue
				}
				slog.Info("Config reloaded", "path", path)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Config watcher error", "error", err)
			}
		}
	}()
	return nil
}
