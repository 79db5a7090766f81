// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/domview"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/hostbridge"
)

func testSnapshot() document.Snapshot {
	return document.Snapshot{
		RepoName:     "github.com/acme/widgets",
		Revision:     "main",
		CommitID:     "c0ffee11",
		FilePath:     "widgets.go",
		LanguageMode: "go",
		Content:      "alpha beta\ngamma delta",
	}
}

// waitFor polls the overlay until cond holds or the deadline passes.
func waitFor(t *testing.T, h *Hoverifier, desc string, cond func(Overlay) bool) Overlay {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		overlay := h.Current()
		if cond(overlay) {
			return overlay
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; overlay = %+v", desc, h.Current())
	return Overlay{}
}

func hoverFor(word string) *hostbridge.HoverResult {
	return &hostbridge.HoverResult{Contents: hostbridge.MarkupContent{Kind: "markdown", Value: word}}
}

func TestHoverifier_ShowAndDismiss(t *testing.T) {
	fake := hostbridge.NewFakeHost()
	fake.HoverFunc = func(params hostbridge.QueryParams) (*hostbridge.HoverResult, error) {
		return hoverFor("doc for alpha"), nil
	}
	grid := domview.NewFakeGrid(testSnapshot().Content)
	h := NewHoverifier(fake, nil)

	dispose := h.Hoverify(context.Background(), grid, testSnapshot())
	defer dispose()

	grid.SimulateMove(2, 0) // inside "alpha"
	shown := waitFor(t, h, "shown overlay", func(o Overlay) bool { return o.State == StateShown })
	assert.Equal(t, document.Position{Line: 0, Character: 2}, shown.Position)
	require.NotNil(t, shown.Contents)
	assert.Equal(t, "doc for alpha", shown.Contents.Contents.Value)

	grid.SimulateLeave()
	waitFor(t, h, "idle after leave", func(o Overlay) bool { return o.State == StateIdle })
}

func TestHoverifier_BlankSpaceDismisses(t *testing.T) {
	fake := hostbridge.NewFakeHost()
	fake.HoverFunc = func(params hostbridge.QueryParams) (*hostbridge.HoverResult, error) {
		return hoverFor("x"), nil
	}
	grid := domview.NewFakeGrid(testSnapshot().Content)
	h := NewHoverifier(fake, nil)
	dispose := h.Hoverify(context.Background(), grid, testSnapshot())
	defer dispose()

	grid.SimulateMove(0, 0)
	waitFor(t, h, "shown", func(o Overlay) bool { return o.State == StateShown })

	grid.SimulateMove(5, 0) // the space between alpha and beta
	waitFor(t, h, "idle on blank", func(o Overlay) bool { return o.State == StateIdle })
}

func TestHoverifier_LatestWins(t *testing.T) {
	release := map[string]chan struct{}{
		"alpha": make(chan struct{}),
		"beta":  make(chan struct{}),
	}
	started := make(chan string, 4)

	fake := hostbridge.NewFakeHost()
	fake.HoverFunc = func(params hostbridge.QueryParams) (*hostbridge.HoverResult, error) {
		word := "alpha"
		if params.Position.Character >= 6 {
			word = "beta"
		}
		started <- word
		<-release[word]
		return hoverFor(word), nil
	}

	grid := domview.NewFakeGrid(testSnapshot().Content)
	h := NewHoverifier(fake, nil)
	dispose := h.Hoverify(context.Background(), grid, testSnapshot())
	defer dispose()

	grid.SimulateMove(1, 0) // alpha, generation 1
	require.Equal(t, "alpha", <-started)
	grid.SimulateMove(7, 0) // beta, generation 2
	require.Equal(t, "beta", <-started)

	// Resolve out of order: the newer query first, the stale one after.
	close(release["beta"])
	shown := waitFor(t, h, "beta shown", func(o Overlay) bool { return o.State == StateShown })
	assert.Equal(t, "beta", shown.Contents.Contents.Value)

	close(release["alpha"])
	// The stale alpha response must never replace beta.
	time.Sleep(20 * time.Millisecond)
	current := h.Current()
	assert.Equal(t, StateShown, current.State)
	assert.Equal(t, "beta", current.Contents.Contents.Value)
}

func TestHoverifier_PinSurvivesLeave(t *testing.T) {
	fake := hostbridge.NewFakeHost()
	fake.HoverFunc = func(params hostbridge.QueryParams) (*hostbridge.HoverResult, error) {
		return hoverFor("pinned doc"), nil
	}
	grid := domview.NewFakeGrid(testSnapshot().Content)
	h := NewHoverifier(fake, nil)
	dispose := h.Hoverify(context.Background(), grid, testSnapshot())
	defer dispose()

	grid.SimulateMove(2, 0)
	waitFor(t, h, "shown", func(o Overlay) bool { return o.State == StateShown })

	h.Pin()
	assert.Equal(t, StatePinned, h.Current().State)

	grid.SimulateLeave()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatePinned, h.Current().State, "pinned overlay survives pointer leave")

	h.Close()
	assert.Equal(t, StateIdle, h.Current().State)
}

func TestHoverifier_ProviderErrorIsNoHover(t *testing.T) {
	fake := hostbridge.NewFakeHost()
	calls := 0
	fake.HoverFunc = func(params hostbridge.QueryParams) (*hostbridge.HoverResult, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("provider exploded")
		}
		return hoverFor("recovered"), nil
	}
	grid := domview.NewFakeGrid(testSnapshot().Content)
	h := NewHoverifier(fake, nil)
	dispose := h.Hoverify(context.Background(), grid, testSnapshot())
	defer dispose()

	grid.SimulateMove(2, 0)
	waitFor(t, h, "idle after provider error", func(o Overlay) bool { return o.State == StateIdle })

	// A later position clears the error state entirely.
	grid.SimulateMove(1, 1) // "gamma"
	shown := waitFor(t, h, "recovered hover", func(o Overlay) bool { return o.State == StateShown })
	assert.Equal(t, "recovered", shown.Contents.Contents.Value)
}

func TestHoverifier_NilHostDegrades(t *testing.T) {
	grid := domview.NewFakeGrid(testSnapshot().Content)
	h := NewHoverifier(nil, nil)
	dispose := h.Hoverify(context.Background(), grid, testSnapshot())
	defer dispose()

	grid.SimulateMove(2, 0)
	waitFor(t, h, "idle with no host", func(o Overlay) bool { return o.State == StateIdle })
}

func TestHoverifier_JumpTo(t *testing.T) {
	fake := hostbridge.NewFakeHost()
	fake.HoverFunc = func(params hostbridge.QueryParams) (*hostbridge.HoverResult, error) {
		return hoverFor("jumped"), nil
	}
	grid := domview.NewFakeGrid(testSnapshot().Content)
	h := NewHoverifier(fake, nil)
	dispose := h.Hoverify(context.Background(), grid, testSnapshot())
	defer dispose()

	// Line-only jump: scroll + highlight, no query.
	h.JumpTo(context.Background(), document.LineOnly(1))
	assert.Equal(t, []int{2}, grid.Scrolls())
	assert.Equal(t, 2, h.Current().HighlightedLine)
	assert.Equal(t, StateIdle, h.Current().State)

	// Point jump: also refreshes the overlay.
	h.JumpTo(context.Background(), document.Point(1, 0))
	shown := waitFor(t, h, "hover after point jump", func(o Overlay) bool { return o.State == StateShown })
	assert.Equal(t, "jumped", shown.Contents.Contents.Value)
	assert.Equal(t, 2, shown.HighlightedLine)

	// Jump to an unrendered line is ignored.
	h.JumpTo(context.Background(), document.LineOnly(50))
	assert.Equal(t, []int{2, 2}, grid.Scrolls())
}

func TestHoverifier_DisposeResetsOverlay(t *testing.T) {
	fake := hostbridge.NewFakeHost()
	fake.HoverFunc = func(params hostbridge.QueryParams) (*hostbridge.HoverResult, error) {
		return hoverFor("x"), nil
	}
	grid := domview.NewFakeGrid(testSnapshot().Content)
	h := NewHoverifier(fake, nil)

	updates, cancel := h.StateUpdates()
	defer cancel()
	<-updates // initial snapshot of the read model

	dispose := h.Hoverify(context.Background(), grid, testSnapshot())
	grid.SimulateMove(2, 0)
	waitFor(t, h, "shown", func(o Overlay) bool { return o.State == StateShown })

	dispose()
	assert.Equal(t, Overlay{}, h.Current())
	dispose() // idempotent

	// A second lifetime starts clean.
	dispose2 := h.Hoverify(context.Background(), grid, testSnapshot())
	defer dispose2()
	assert.Equal(t, Overlay{}, h.Current())
}
