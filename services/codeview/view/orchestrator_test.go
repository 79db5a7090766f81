// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package view

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/domview"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/hostbridge"
)

type fakeNav struct {
	mu       sync.Mutex
	loc      document.Location
	pushes   int
	replaces int
}

func (n *fakeNav) Location() document.Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loc
}

func (n *fakeNav) Push(loc document.Location) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loc = loc
	n.pushes++
}

func (n *fakeNav) Replace(loc document.Location) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loc = loc
	n.replaces++
}

func (n *fakeNav) counts() (pushes, replaces int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pushes, n.replaces
}

func (n *fakeNav) hash() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loc.Hash
}

// content has 40 lines of "word here" so far-apart line clicks exist.
var content = strings.TrimSuffix(strings.Repeat("word here\n", 40), "\n")

func snapshotFor(path string) document.Snapshot {
	return document.Snapshot{
		RepoName:     "github.com/acme/widgets",
		Revision:     "main",
		CommitID:     "c0ffee11",
		FilePath:     path,
		LanguageMode: "go",
		Content:      content,
	}
}

type harness struct {
	fake *hostbridge.FakeHost
	nav  *fakeNav
	orch *Orchestrator
	grid *domview.FakeGrid
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	fake := hostbridge.NewFakeHost()
	nav := &fakeNav{loc: document.Location{Path: "/widgets.go"}}
	orch, err := New(cfg, fake, nav, nil)
	require.NoError(t, err)
	t.Cleanup(orch.Shutdown)

	grid := domview.NewFakeGrid(content)
	require.NoError(t, orch.SetSnapshot(context.Background(), snapshotFor("widgets.go"), grid))
	return &harness{fake: fake, nav: nav, orch: orch, grid: grid}
}

func waitNav(t *testing.T, nav *fakeNav, desc string, cond func(pushes, replaces int) bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond(nav.counts()) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	pushes, replaces := nav.counts()
	t.Fatalf("timed out waiting for %s; pushes=%d replaces=%d hash=%q", desc, pushes, replaces, nav.hash())
}

// settle gives the click loop time to (not) act; used for
// zero-update assertions.
func settle() { time.Sleep(30 * time.Millisecond) }

func TestNew_ConfigValidation(t *testing.T) {
	nav := &fakeNav{}
	_, err := New(Config{HistoryReplaceRadius: -1}, nil, nav, nil)
	assert.Error(t, err, "negative radius rejected")

	_, err = New(DefaultConfig(), nil, nil, nil)
	assert.Error(t, err, "navigator required")

	_, err = New(DefaultConfig(), nil, nav, nil)
	assert.NoError(t, err)
}

func TestClick_BlankSpaceNavigatesOnce(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.grid.SimulateClick(4, 2, false) // the space in "word here", line 3
	waitNav(t, h.nav, "one update", func(p, r int) bool { return p+r == 1 })

	settle()
	pushes, replaces := h.nav.counts()
	assert.Equal(t, 1, pushes+replaces, "exactly one location update per blank click")
	assert.Equal(t, "L3", h.nav.hash())
}

func TestClick_TokenDoesNotNavigate(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.grid.SimulateClick(1, 0, false) // inside "word"
	settle()
	pushes, replaces := h.nav.counts()
	assert.Zero(t, pushes+replaces, "token clicks never touch the location")
}

func TestClick_NavigateOnAnyClick(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NavigateOnAnyClick = true
	h := newHarness(t, cfg)

	h.grid.SimulateClick(1, 0, false) // token click navigates in this mode
	waitNav(t, h.nav, "token navigation", func(p, r int) bool { return p+r == 1 })
	assert.Equal(t, "L1:2", h.nav.hash())
}

func TestClick_TextSelectionSuppressesNavigation(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.grid.SetSelectionText("word here")
	h.grid.SimulateClick(4, 2, false)
	settle()
	pushes, replaces := h.nav.counts()
	assert.Zero(t, pushes+replaces, "clicks with a text selection do not navigate")
}

func TestClick_ShiftExtendsToRange(t *testing.T) {
	tests := []struct {
		name        string
		first, then int // 0-indexed rows
		wantHash    string
	}{
		{name: "downward", first: 2, then: 6, wantHash: "L3-7"},
		{name: "upward", first: 6, then: 2, wantHash: "L3-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, DefaultConfig())

			h.grid.SimulateClick(4, tt.first, false)
			waitNav(t, h.nav, "first click", func(p, r int) bool { return p+r == 1 })

			h.grid.SimulateClick(4, tt.then, true)
			waitNav(t, h.nav, "shift click", func(p, r int) bool { return p+r == 2 })
			assert.Equal(t, tt.wantHash, h.nav.hash(), "range is [min,max] regardless of click order")
		})
	}
}

func TestHistory_ReplaceNearPushFar(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	// First click: no previous single-line position, so push.
	h.grid.SimulateClick(4, 0, false)
	waitNav(t, h.nav, "first", func(p, r int) bool { return p == 1 })

	// 10 lines down: within the replace radius.
	h.grid.SimulateClick(4, 10, false)
	waitNav(t, h.nav, "near move", func(p, r int) bool { return r == 1 })
	pushes, _ := h.nav.counts()
	assert.Equal(t, 1, pushes, "near single-line move replaces")

	// 15 lines further: beyond the radius, push.
	h.grid.SimulateClick(4, 25, false)
	waitNav(t, h.nav, "far move", func(p, r int) bool { return p == 2 })
}

func TestHistory_RangesAlwaysPush(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.grid.SimulateClick(4, 2, false)
	waitNav(t, h.nav, "first", func(p, r int) bool { return p == 1 })

	// Shift-click to a nearby line: the result is a range, which must
	// push even though the distance is within the radius.
	h.grid.SimulateClick(4, 3, true)
	waitNav(t, h.nav, "range push", func(p, r int) bool { return p == 2 })
	_, replaces := h.nav.counts()
	assert.Zero(t, replaces)
	assert.Equal(t, "L3-4", h.nav.hash())

	// Leaving a range is also a push.
	h.grid.SimulateClick(4, 3, false)
	waitNav(t, h.nav, "leave range", func(p, r int) bool { return p == 3 })
}

func TestSnapshotChange_TeardownExactlyOnce(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	require.Equal(t, 1, h.fake.LiveViewers())

	gridB := domview.NewFakeGrid(content)
	require.NoError(t, h.orch.SetSnapshot(ctx, snapshotFor("other.go"), gridB))

	assert.Equal(t, 1, h.fake.LiveViewers(), "old viewer removed, new one live")
	removals := 0
	for _, call := range h.fake.Calls() {
		if strings.HasPrefix(call, "removeViewer ") {
			removals++
		}
	}
	assert.Equal(t, 1, removals, "previous viewer released exactly once")

	// A same-identity snapshot is a content update, not a transition.
	require.NoError(t, h.orch.SetSnapshot(ctx, snapshotFor("other.go"), gridB))
	assert.Equal(t, 1, h.fake.LiveViewers())
	removals = 0
	for _, call := range h.fake.Calls() {
		if strings.HasPrefix(call, "removeViewer ") {
			removals++
		}
	}
	assert.Equal(t, 1, removals)
}

func TestSnapshotChange_NoDecorationFlash(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	firstHandle := h.onlyViewer(t)

	h.fake.PublishDecorations(firstHandle, []hostbridge.TextDocumentDecoration{
		{Line: 2, After: &hostbridge.DecorationAttachment{ContentText: "old"}},
	})
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && h.grid.LiveAnchorCount() == 0 {
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, 1, h.grid.LiveAnchorCount())

	gridB := domview.NewFakeGrid(content)
	require.NoError(t, h.orch.SetSnapshot(ctx, snapshotFor("other.go"), gridB))

	// Old grid is clean the moment SetSnapshot returns; nothing ever
	// mounted on the new grid from the old stream.
	assert.Equal(t, 0, h.grid.LiveAnchorCount(), "old viewer's anchors cleared synchronously")
	assert.Equal(t, 0, gridB.LiveAnchorCount())
}

func TestSnapshotChange_LocationPositionSeedsNewViewer(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	// Deep link into the next document: the position parsed from the
	// location becomes the new viewer's initial selection.
	h.nav.Push(document.Location{Path: "/other.go", Hash: "#L5"})
	gridB := domview.NewFakeGrid(content)
	require.NoError(t, h.orch.SetSnapshot(ctx, snapshotFor("other.go"), gridB))

	handle := h.onlyViewer(t)
	sels := h.fake.Selections(handle)
	require.Len(t, sels, 1)
	assert.Equal(t, 4, sels[0].Start.Line)
	assert.Equal(t, []int{5}, gridB.Scrolls(), "new view scrolls to the linked line")
}

// onlyViewer returns the single live viewer's handle.
func (h *harness) onlyViewer(t *testing.T) hostbridge.ViewerHandle {
	t.Helper()
	handle, ok := h.fake.OnlyViewer()
	require.True(t, ok)
	return handle
}

func TestNilHost_DegradesToRawRendering(t *testing.T) {
	nav := &fakeNav{loc: document.Location{Path: "/widgets.go"}}
	orch, err := New(DefaultConfig(), nil, nav, nil)
	require.NoError(t, err)
	defer orch.Shutdown()

	grid := domview.NewFakeGrid(content)
	require.NoError(t, orch.SetSnapshot(context.Background(), snapshotFor("widgets.go"), grid))

	// Clicks still navigate without a host.
	grid.SimulateClick(4, 2, false)
	waitNav(t, nav, "click without host", func(p, r int) bool { return p+r == 1 })
}

func TestKeepPositionOnSnapshotChange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeepPositionOnSnapshotChange = true
	h := newHarness(t, cfg)
	ctx := context.Background()

	h.grid.SimulateClick(4, 4, false)
	waitNav(t, h.nav, "click", func(p, r int) bool { return p+r == 1 })
	require.Equal(t, "L5", h.nav.hash())

	gridB := domview.NewFakeGrid(content)
	require.NoError(t, h.orch.SetSnapshot(ctx, snapshotFor("other.go"), gridB))

	// The kept position is pushed to the new viewer's selections.
	handle := h.onlyViewer(t)
	sels := h.fake.Selections(handle)
	require.Len(t, sels, 1)
	assert.Equal(t, 4, sels[0].Start.Line)
}
