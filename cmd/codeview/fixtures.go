// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianCodeView/pkg/logging"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/hostbridge"
)

// fixtureFile is the YAML schema for fakehost responses. Lines and
// characters are 1-based, matching what a user reads in an editor
// gutter.
type fixtureFile struct {
	Hovers []struct {
		Path      string `yaml:"path"`
		Line      int    `yaml:"line"`
		Character int    `yaml:"character"` // 0 matches any character
		Markdown  string `yaml:"markdown"`
	} `yaml:"hovers"`

	Decorations []struct {
		Path  string `yaml:"path"`
		Items []struct {
			Line            int    `yaml:"line"`
			After           string `yaml:"after"`
			Color           string `yaml:"color"`
			BackgroundColor string `yaml:"backgroundColor"`
			IsWholeLine     bool   `yaml:"isWholeLine"`
		} `yaml:"items"`
	} `yaml:"decorations"`

	StatusBar []struct {
		Key     string `yaml:"key"`
		Text    string `yaml:"text"`
		Tooltip string `yaml:"tooltip"`
	} `yaml:"statusBar"`
}

type hoverKey struct {
	path string
	line int // 0-indexed
}

// fixtureStore holds the currently loaded fixture set. Reloads swap
// the whole set atomically.
type fixtureStore struct {
	mu          sync.RWMutex
	hovers      map[hoverKey]string
	decorations map[string][]hostbridge.TextDocumentDecoration
	statusItems []hostbridge.StatusBarItem
}

func newFixtureStore() *fixtureStore {
	return &fixtureStore{
		hovers:      make(map[hoverKey]string),
		decorations: make(map[string][]hostbridge.TextDocumentDecoration),
	}
}

// LoadDir reads every .yaml/.yml file in dir and replaces the store's
// contents with the merged result.
func (s *fixtureStore) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read fixtures dir %s: %w", dir, err)
	}

	hovers := make(map[hoverKey]string)
	decorations := make(map[string][]hostbridge.TextDocumentDecoration)
	var statusItems []hostbridge.StatusBarItem

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read fixture %s: %w", name, err)
		}
		var file fixtureFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse fixture %s: %w", name, err)
		}

		for _, h := range file.Hovers {
			hovers[hoverKey{path: h.Path, line: h.Line - 1}] = h.Markdown
		}
		for _, d := range file.Decorations {
			for _, item := range d.Items {
				deco := hostbridge.TextDocumentDecoration{
					Line:            item.Line,
					BackgroundColor: item.BackgroundColor,
					IsWholeLine:     item.IsWholeLine,
				}
				if item.After != "" {
					deco.After = &hostbridge.DecorationAttachment{
						ContentText: item.After,
						Color:       item.Color,
					}
				}
				decorations[d.Path] = append(decorations[d.Path], deco)
			}
		}
		for _, item := range file.StatusBar {
			statusItems = append(statusItems, hostbridge.StatusBarItem{
				Key: item.Key, Text: item.Text, Tooltip: item.Tooltip,
			})
		}
	}

	s.mu.Lock()
	s.hovers = hovers
	s.decorations = decorations
	s.statusItems = statusItems
	s.mu.Unlock()
	return nil
}

func (s *fixtureStore) hoverFor(params hostbridge.QueryParams) *hostbridge.HoverResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	markdown, ok := s.hovers[hoverKey{path: params.FilePath, line: params.Position.Line}]
	if !ok {
		return nil
	}
	return &hostbridge.HoverResult{
		Contents: hostbridge.MarkupContent{Kind: "markdown", Value: markdown},
	}
}

func (s *fixtureStore) decorationsFor(path string) []hostbridge.TextDocumentDecoration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]hostbridge.TextDocumentDecoration(nil), s.decorations[path]...)
}

func (s *fixtureStore) statusBar() []hostbridge.StatusBarItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]hostbridge.StatusBarItem(nil), s.statusItems...)
}

// watchFixtures reloads the store whenever a fixture file changes.
func watchFixtures(ctx context.Context, dir string, store *fixtureStore, log *logging.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fixture watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch fixtures dir %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := store.LoadDir(dir); err != nil {
					log.Warn("fixture reload failed", "error", err)
					continue
				}
				log.Info("fixtures reloaded", "trigger", event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("fixture watcher error", "error", err)
			}
		}
	}()
	return nil
}
