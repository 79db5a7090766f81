// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domview

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
)

// FakeGrid is an in-memory View over plain text content. Tokens are
// maximal runs of letters, digits and underscores; everything else is
// blank space. Tests drive pointer input through the Simulate methods
// and assert on the anchor event log.
//
// Thread Safety: safe for concurrent use.
type FakeGrid struct {
	mu        sync.Mutex
	lines     []string
	viewport  Viewport
	selection string
	scrolls   []int
	anchors   []*FakeAnchor
	events    []string

	clicks  chan Click
	moves   chan Move
	resizes chan Viewport
}

var _ View = (*FakeGrid)(nil)

// NewFakeGrid builds a grid from newline-separated content.
func NewFakeGrid(content string) *FakeGrid {
	return &FakeGrid{
		lines:    strings.Split(content, "\n"),
		viewport: Viewport{Width: 800, Height: 600},
		clicks:   make(chan Click, 16),
		moves:    make(chan Move, 64),
		resizes:  make(chan Viewport, 16),
	}
}

// SetContent replaces the grid's text, as a snapshot content update
// would.
func (g *FakeGrid) SetContent(content string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lines = strings.Split(content, "\n")
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// CellAt implements View.
func (g *FakeGrid) CellAt(p Point) (Cell, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p.Y < 0 || p.Y >= len(g.lines) || p.X < 0 {
		return Cell{}, false
	}
	line := []rune(g.lines[p.Y])
	cell := Cell{Line: p.Y + 1, Character: p.X}
	if p.X >= len(line) || !isWordChar(line[p.X]) {
		return cell, true
	}

	start, end := p.X, p.X+1
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}
	for end < len(line) && isWordChar(line[end]) {
		end++
	}
	cell.IsToken = true
	cell.Word = string(line[start:end])
	return cell, true
}

// HasLine implements View.
func (g *FakeGrid) HasLine(line int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return line >= 1 && line <= len(g.lines)
}

// ScrollTo implements View.
func (g *FakeGrid) ScrollTo(line int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scrolls = append(g.scrolls, line)
	g.events = append(g.events, fmt.Sprintf("scroll %d", line))
}

// MountAnchor implements View.
func (g *FakeGrid) MountAnchor(line int) (Anchor, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if line < 1 || line > len(g.lines) {
		return nil, false
	}
	anchor := &FakeAnchor{grid: g, line: line}
	g.anchors = append(g.anchors, anchor)
	g.events = append(g.events, fmt.Sprintf("mount %d", line))
	return anchor, true
}

// Viewport implements View.
func (g *FakeGrid) Viewport() Viewport {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.viewport
}

// SelectionText implements View.
func (g *FakeGrid) SelectionText() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selection
}

// Clicks implements View.
func (g *FakeGrid) Clicks() <-chan Click { return g.clicks }

// Moves implements View.
func (g *FakeGrid) Moves() <-chan Move { return g.moves }

// Resizes implements View.
func (g *FakeGrid) Resizes() <-chan Viewport { return g.resizes }

// =============================================================================
// TEST CONTROLS
// =============================================================================

// SimulateClick clicks the 0-indexed (column, row) point.
func (g *FakeGrid) SimulateClick(x, y int, shift bool) {
	g.clicks <- Click{Point: Point{X: x, Y: y}, Shift: shift}
}

// SimulateMove moves the pointer to the 0-indexed (column, row) point.
func (g *FakeGrid) SimulateMove(x, y int) {
	g.moves <- Move{Point: Point{X: x, Y: y}}
}

// SimulateLeave moves the pointer out of the code area.
func (g *FakeGrid) SimulateLeave() {
	g.moves <- Move{Leave: true}
}

// SimulateResize changes the content box and emits a resize event.
func (g *FakeGrid) SimulateResize(vp Viewport) {
	g.mu.Lock()
	g.viewport = vp
	g.mu.Unlock()
	g.resizes <- vp
}

// SetSelectionText fakes a user text selection.
func (g *FakeGrid) SetSelectionText(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selection = text
}

// Scrolls returns the lines scrolled to, in order.
func (g *FakeGrid) Scrolls() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int(nil), g.scrolls...)
}

// LiveAnchors returns the mounted, unremoved anchors grouped by line.
func (g *FakeGrid) LiveAnchors() map[int][]*FakeAnchor {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[int][]*FakeAnchor)
	for _, anchor := range g.anchors {
		if !anchor.removed {
			out[anchor.line] = append(out[anchor.line], anchor)
		}
	}
	return out
}

// LiveAnchorCount returns how many anchors are currently mounted.
func (g *FakeGrid) LiveAnchorCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	count := 0
	for _, anchor := range g.anchors {
		if !anchor.removed {
			count++
		}
	}
	return count
}

// EventLog returns the ordered mount/remove/scroll journal. Tests use
// it to prove teardown ordering (all removes precede the next mounts).
func (g *FakeGrid) EventLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.events...)
}

// FakeAnchor records the content updates applied to one line anchor.
type FakeAnchor struct {
	grid    *FakeGrid
	line    int
	removed bool
	items   []AnchorItem
}

// Line returns the anchor's 1-based line.
func (a *FakeAnchor) Line() int { return a.line }

// Update implements Anchor.
func (a *FakeAnchor) Update(items []AnchorItem) {
	a.grid.mu.Lock()
	defer a.grid.mu.Unlock()
	if a.removed {
		return
	}
	a.items = append([]AnchorItem(nil), items...)
}

// Remove implements Anchor.
func (a *FakeAnchor) Remove() {
	a.grid.mu.Lock()
	defer a.grid.mu.Unlock()
	if a.removed {
		return
	}
	a.removed = true
	a.grid.events = append(a.grid.events, fmt.Sprintf("remove %d", a.line))
}

// Items returns the anchor's current content.
func (a *FakeAnchor) Items() []AnchorItem {
	a.grid.mu.Lock()
	defer a.grid.mu.Unlock()
	return append([]AnchorItem(nil), a.items...)
}

// Removed reports whether the anchor was unmounted.
func (a *FakeAnchor) Removed() bool {
	a.grid.mu.Lock()
	defer a.grid.mu.Unlock()
	return a.removed
}
