// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package decoration projects per-viewer decoration streams onto line
// anchors in the rendered view. Each stream emission replaces the
// previous decoration state wholesale.
package decoration

import (
	"context"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianCodeView/pkg/logging"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/domview"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/hostbridge"
)

// LineGroup is all decorations targeting one 1-based line, in their
// original emission order.
type LineGroup struct {
	Line        int
	Decorations []hostbridge.TextDocumentDecoration
}

// GroupByLine partitions a flat decoration list into per-line groups,
// sorted by line ascending. Order within a group follows the input.
func GroupByLine(decorations []hostbridge.TextDocumentDecoration) []LineGroup {
	byLine := make(map[int][]hostbridge.TextDocumentDecoration)
	for _, d := range decorations {
		byLine[d.Line] = append(byLine[d.Line], d)
	}

	groups := make([]LineGroup, 0, len(byLine))
	for line, ds := range byLine {
		groups = append(groups, LineGroup{Line: line, Decorations: ds})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Line < groups[j].Line })
	return groups
}

// Renderer owns the anchors of one viewer lifetime at a time.
//
// Thread Safety: safe for concurrent use.
type Renderer struct {
	host hostbridge.Host
	log  *logging.Logger

	mu       sync.Mutex
	lifetime uint64
	view     domview.View
	anchors  map[int]domview.Anchor
}

// NewRenderer creates a renderer. host may be nil; Attach then becomes
// a no-op wiring.
func NewRenderer(host hostbridge.Host, log *logging.Logger) *Renderer {
	if log == nil {
		log = logging.Nop()
	}
	return &Renderer{host: host, log: log, anchors: make(map[int]domview.Anchor)}
}

// Attach subscribes to the viewer's decoration stream and keeps the
// view's anchors in sync with it. Call only once the viewer handle
// exists.
//
// The returned func tears the subscription down and synchronously
// removes every anchor before returning; add it to the viewer's
// subscription bag. A stream error clears all decorations rather than
// leaving stale ones.
func (r *Renderer) Attach(ctx context.Context, view domview.View, handle hostbridge.ViewerHandle) func() {
	if r.host == nil {
		return func() {}
	}

	sub, err := r.host.TextDocumentDecorations(ctx, handle)
	if err != nil {
		r.log.Debug("decoration subscribe failed", "viewer_id", string(handle), "error", err)
		return func() {}
	}

	r.mu.Lock()
	r.lifetime++
	lifetime := r.lifetime
	r.view = view
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case decorations := <-sub.Events():
				r.apply(lifetime, decorations)
			case <-sub.Done():
				// Ended or errored upstream: no stale decorations.
				r.clear(lifetime)
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.Stop()
			<-done
			r.clear(lifetime)
		})
	}
}

// apply replaces the anchor set with one matching the emission.
func (r *Renderer) apply(lifetime uint64, decorations []hostbridge.TextDocumentDecoration) {
	groups := GroupByLine(decorations)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lifetime != lifetime {
		return
	}

	seen := make(map[int]bool, len(groups))
	for _, group := range groups {
		seen[group.Line] = true
		anchor, ok := r.anchors[group.Line]
		if !ok {
			anchor, ok = r.view.MountAnchor(group.Line)
			if !ok {
				r.log.Debug("decoration targets unrendered line", "line", group.Line)
				continue
			}
			r.anchors[group.Line] = anchor
		}
		anchor.Update(itemsOf(group))
	}

	for line, anchor := range r.anchors {
		if !seen[line] {
			anchor.Remove()
			delete(r.anchors, line)
		}
	}
}

// clear removes every anchor of the lifetime synchronously.
func (r *Renderer) clear(lifetime uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lifetime != lifetime {
		return
	}
	for line, anchor := range r.anchors {
		anchor.Remove()
		delete(r.anchors, line)
	}
}

func itemsOf(group LineGroup) []domview.AnchorItem {
	items := make([]domview.AnchorItem, 0, len(group.Decorations))
	for _, d := range group.Decorations {
		item := domview.AnchorItem{BackgroundColor: d.BackgroundColor}
		if d.After != nil {
			item.Text = d.After.ContentText
			item.Color = d.After.Color
		}
		items = append(items, item)
	}
	return items
}
