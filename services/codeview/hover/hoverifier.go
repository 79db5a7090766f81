// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hover turns pointer movement and position jumps into code
// intelligence overlays. The Hoverifier owns the overlay state machine
// and guarantees that only the most recently issued query can become
// visible, regardless of the order provider responses arrive in.
package hover

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianCodeView/pkg/logging"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/domview"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/hostbridge"
)

// State is the overlay's lifecycle phase.
type State int

const (
	// StateIdle shows no overlay.
	StateIdle State = iota

	// StatePending has a query in flight for the current position.
	StatePending

	// StateShown displays a result that follows the pointer.
	StateShown

	// StatePinned displays a result that survives pointer leave until
	// explicitly closed.
	StatePinned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateShown:
		return "shown"
	case StatePinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// Overlay is the continuously-updated read model consumers render
// from.
type Overlay struct {
	State State

	// Position is the 0-indexed queried position, valid outside Idle.
	Position document.Position

	// HighlightedLine is the 1-based line highlighted by an explicit
	// position jump; 0 when none.
	HighlightedLine int

	Contents    *hostbridge.HoverResult
	Definitions []hostbridge.Location
	Highlights  []hostbridge.DocumentHighlight
}

// Hoverifier drives the overlay for at most one viewer lifetime at a
// time.
//
// Thread Safety: safe for concurrent use.
type Hoverifier struct {
	host hostbridge.Host
	log  *logging.Logger

	mu           sync.Mutex
	overlay      Overlay
	gen          uint64
	lifetime     uint64
	snapshot     document.Snapshot
	view         domview.View
	wired        bool
	listeners    map[int]chan Overlay
	nextListener int
}

// NewHoverifier creates a hoverifier. host may be nil, in which case
// every query resolves to no hover.
func NewHoverifier(host hostbridge.Host, log *logging.Logger) *Hoverifier {
	if log == nil {
		log = logging.Nop()
	}
	return &Hoverifier{
		host:      host,
		log:       log,
		listeners: make(map[int]chan Overlay),
	}
}

// Current returns the overlay read model.
func (h *Hoverifier) Current() Overlay {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.overlay
}

// StateUpdates subscribes to overlay changes. The channel holds only
// the latest value; slow consumers see coalesced updates, never stale
// ones. The returned func cancels the subscription.
func (h *Hoverifier) StateUpdates() (<-chan Overlay, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextListener
	h.nextListener++
	ch := make(chan Overlay, 1)
	ch <- h.overlay
	h.listeners[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

// Hoverify wires one viewer lifetime: pointer moves from view feed the
// state machine and queries run against snapshot. The returned func
// tears the wiring down and resets the overlay; add it to the viewer's
// subscription bag.
//
// Calling Hoverify while a previous lifetime is still wired replaces
// it; the previous dispose func becomes a no-op for overlay state.
func (h *Hoverifier) Hoverify(ctx context.Context, view domview.View, snapshot document.Snapshot) func() {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.view = view
	h.snapshot = snapshot
	h.wired = true
	h.lifetime++
	lifetime := h.lifetime
	h.gen++ // orphan any in-flight queries from the previous lifetime
	h.overlay = Overlay{}
	h.notifyLocked()
	h.mu.Unlock()

	go h.run(ctx, view)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			h.mu.Lock()
			if h.lifetime == lifetime {
				h.wired = false
				h.view = nil
				h.gen++
				h.overlay = Overlay{}
				h.notifyLocked()
			}
			h.mu.Unlock()
		})
	}
}

// JumpTo scrolls the wired view to the state's line, highlights it,
// and refreshes the overlay at the new position. No-op when empty or
// no viewer is wired.
func (h *Hoverifier) JumpTo(ctx context.Context, state document.PositionState) {
	pos, ok := state.PositionOf()
	if !ok {
		return
	}

	h.mu.Lock()
	if !h.wired {
		h.mu.Unlock()
		return
	}
	view := h.view
	h.mu.Unlock()

	line := pos.Line + 1
	if !view.HasLine(line) {
		h.log.Debug("jump target line not rendered", "line", line)
		return
	}
	view.ScrollTo(line)

	h.mu.Lock()
	h.overlay.HighlightedLine = line
	h.notifyLocked()
	h.mu.Unlock()

	// A bare line jump highlights only; a character carries enough
	// intent to refresh the hover.
	if state.Character != nil {
		h.query(ctx, pos, line)
	}
}

// Pin freezes the current overlay so it survives pointer leave.
func (h *Hoverifier) Pin() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.overlay.State == StateShown {
		h.overlay.State = StatePinned
		h.notifyLocked()
	}
}

// Close dismisses the overlay regardless of state.
func (h *Hoverifier) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen++
	highlighted := h.overlay.HighlightedLine
	h.overlay = Overlay{HighlightedLine: highlighted}
	h.notifyLocked()
}

// ===== EVENT LOOP =====

func (h *Hoverifier) run(ctx context.Context, view domview.View) {
	for {
		select {
		case <-ctx.Done():
			return
		case move := <-view.Moves():
			h.handleMove(ctx, view, move)
		}
	}
}

func (h *Hoverifier) handleMove(ctx context.Context, view domview.View, move domview.Move) {
	if move.Leave {
		h.dismissUnlessPinned()
		return
	}

	cell, ok := view.CellAt(move.Point)
	if !ok || !cell.IsToken {
		h.dismissUnlessPinned()
		return
	}

	pos := document.Position{Line: cell.Line - 1, Character: cell.Character}
	h.mu.Lock()
	samePos := h.overlay.State != StateIdle && h.overlay.Position == pos
	pinned := h.overlay.State == StatePinned
	h.mu.Unlock()
	if samePos || pinned {
		return
	}
	h.query(ctx, pos, 0)
}

func (h *Hoverifier) dismissUnlessPinned() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.overlay.State == StatePinned || h.overlay.State == StateIdle {
		return
	}
	h.gen++
	highlighted := h.overlay.HighlightedLine
	h.overlay = Overlay{HighlightedLine: highlighted}
	h.notifyLocked()
}

// query issues a new generation of provider calls for pos. Responses
// belonging to an older generation are discarded on arrival.
func (h *Hoverifier) query(ctx context.Context, pos document.Position, highlightLine int) {
	h.mu.Lock()
	if !h.wired {
		h.mu.Unlock()
		return
	}
	h.gen++
	gen := h.gen
	snapshot := h.snapshot
	h.overlay.State = StatePending
	h.overlay.Position = pos
	h.overlay.Contents = nil
	h.overlay.Definitions = nil
	h.overlay.Highlights = nil
	if highlightLine > 0 {
		h.overlay.HighlightedLine = highlightLine
	}
	h.notifyLocked()
	h.mu.Unlock()

	go h.resolve(ctx, gen, snapshot, pos)
}

func (h *Hoverifier) resolve(ctx context.Context, gen uint64, snapshot document.Snapshot, pos document.Position) {
	var (
		hoverRes   *hostbridge.HoverResult
		defs       []hostbridge.Location
		highlights []hostbridge.DocumentHighlight
	)

	if h.host != nil {
		params := hostbridge.QueryParams{
			RepoName:     snapshot.RepoName,
			Revision:     snapshot.Revision,
			CommitID:     snapshot.CommitID,
			FilePath:     snapshot.FilePath,
			LanguageMode: snapshot.LanguageMode,
			Position:     pos,
		}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			hoverRes, err = h.host.Hover(gctx, params)
			return err
		})
		g.Go(func() error {
			var err error
			defs, err = h.host.Definition(gctx, params)
			return err
		})
		g.Go(func() error {
			var err error
			highlights, err = h.host.DocumentHighlights(gctx, params)
			return err
		})
		if err := g.Wait(); err != nil {
			// Provider failure means no hover here, nothing more.
			h.log.Debug("hover query failed", "path", snapshot.FilePath,
				"line", pos.Line, "character", pos.Character, "error", err)
			hoverRes, defs, highlights = nil, nil, nil
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if gen != h.gen {
		hostbridge.RecordStaleDiscard(ctx, "hover")
		return
	}
	if hoverRes == nil && len(defs) == 0 {
		h.overlay.State = StateIdle
		h.overlay.Contents = nil
		h.overlay.Definitions = nil
		h.overlay.Highlights = nil
	} else {
		h.overlay.State = StateShown
		h.overlay.Contents = hoverRes
		h.overlay.Definitions = defs
		h.overlay.Highlights = highlights
	}
	h.notifyLocked()
}

// notifyLocked pushes the overlay to every listener, keeping only the
// newest value per channel. Callers hold h.mu.
func (h *Hoverifier) notifyLocked() {
	for _, ch := range h.listeners {
		select {
		case <-ch:
		default:
		}
		ch <- h.overlay
	}
}
