// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package view ties the engine together: it owns the active viewer's
// lifetime and routes clicks, snapshots and location changes between
// the document model, the extension host bridge and the overlay
// components.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianCodeView/pkg/logging"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/decoration"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/domview"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/hostbridge"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/hover"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/statusbar"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/viewer"
)

// Config holds the orchestrator's feature flags and tunables. All
// values are injected at construction; there are no ambient globals.
type Config struct {
	// NavigateOnAnyClick makes token clicks navigate like blank-space
	// clicks instead of being reserved for code intelligence.
	NavigateOnAnyClick bool

	// KeepPositionOnSnapshotChange suppresses the selection reset on
	// snapshot identity changes: when the new location carries no
	// position, the previously highlighted line carries over.
	KeepPositionOnSnapshotChange bool

	// VisualLineSelection selects whole lines on click rather than
	// line:character points.
	VisualLineSelection bool

	// HistoryReplaceRadius is the maximum |Δline| for which a
	// single-line move replaces the current history entry rather than
	// pushing a new one.
	HistoryReplaceRadius int `validate:"gte=0,lte=1000"`

	// StatusBarReflowInterval throttles status bar layout recomputes.
	// Zero uses the driver default.
	StatusBarReflowInterval time.Duration `validate:"gte=0"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{HistoryReplaceRadius: 10}
}

// session is one wired viewer lifetime.
type session struct {
	key      document.Key
	snapshot document.Snapshot
	view     domview.View
	bag      *viewer.SubscriptionBag
	reg      *viewer.Registration
}

// Orchestrator is the single owner of "which viewer is active".
// Snapshot transitions are strictly serialized: the previous viewer's
// resources are fully released before the next viewer is wired.
//
// Thread Safety: safe for concurrent use.
type Orchestrator struct {
	cfg       Config
	registrar *viewer.Registrar
	hoverer   *hover.Hoverifier
	decor     *decoration.Renderer
	status    *statusbar.Driver
	nav       Navigator
	log       *logging.Logger

	// desired is bumped per SetSnapshot; a transition observing a newer
	// desired value abandons its work.
	desired atomic.Uint64

	// transitionMu serializes teardown+wire sequences.
	transitionMu sync.Mutex

	mu      sync.Mutex
	current *session
}

// New validates cfg and builds an orchestrator over the given host and
// navigator. host may be nil for degraded, intelligence-free views.
func New(cfg Config, host hostbridge.Host, nav Navigator, log *logging.Logger) (*Orchestrator, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid view config: %w", err)
	}
	if nav == nil {
		return nil, fmt.Errorf("invalid view config: navigator is required")
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{
		cfg:       cfg,
		registrar: viewer.NewRegistrar(host, log),
		hoverer:   hover.NewHoverifier(host, log),
		decor:     decoration.NewRenderer(host, log),
		status:    statusbar.NewDriver(host, cfg.StatusBarReflowInterval, log),
		nav:       nav,
		log:       log,
	}, nil
}

// Hoverifier exposes the overlay read model for rendering.
func (o *Orchestrator) Hoverifier() *hover.Hoverifier { return o.hoverer }

// StatusBar exposes the status bar read model for rendering.
func (o *Orchestrator) StatusBar() *statusbar.Driver { return o.status }

// SetSnapshot makes snapshot the displayed document, rendered through
// view. Same identity means a content update of the live viewer; an
// identity change tears the previous viewer down completely before the
// new one is registered and wired. A transition superseded by a newer
// SetSnapshot abandons its registration on arrival.
func (o *Orchestrator) SetSnapshot(ctx context.Context, snapshot document.Snapshot, view domview.View) error {
	gen := o.desired.Add(1)

	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	if gen != o.desired.Load() {
		return nil // a newer snapshot is already queued behind us
	}

	key := snapshot.Key()
	o.mu.Lock()
	current := o.current
	o.mu.Unlock()

	if current != nil && current.key == key {
		o.mu.Lock()
		current.snapshot = snapshot
		o.mu.Unlock()
		return nil
	}

	// The old lifetime's hover selection resets with its bag; capture
	// the highlighted line first so keep-position mode can carry it.
	prevHighlight := 0
	if current != nil {
		prevHighlight = o.hoverer.Current().HighlightedLine
	}

	// Teardown first. The bag releases the decoration dispose
	// synchronously, so no anchor of the old viewer survives past this
	// line.
	if current != nil {
		current.bag.Release()
		o.mu.Lock()
		o.current = nil
		o.mu.Unlock()
	}

	// The initial selection always derives from the current external
	// location, so a deep link into the next document selects there.
	state := document.ParsePosition(o.nav.Location())
	if state.IsEmpty() && o.cfg.KeepPositionOnSnapshotChange && prevHighlight > 0 {
		state = document.LineOnly(prevHighlight - 1)
	}

	reg, err := o.registrar.Register(ctx, snapshot, state, true)
	if err != nil {
		if errors.Is(err, hostbridge.ErrHostUnavailable) {
			// Raw rendering without intelligence.
			o.wire(ctx, snapshot, key, view, nil, state)
			return nil
		}
		return fmt.Errorf("register viewer for %s: %w", key, err)
	}

	if gen != o.desired.Load() {
		// Superseded while registering: drop interest in the handle.
		reg.Release()
		return nil
	}

	o.wire(ctx, snapshot, key, view, reg, state)
	return nil
}

// wire builds the session bag: hover, decorations, status bar, click
// routing, and finally the registration release itself.
func (o *Orchestrator) wire(ctx context.Context, snapshot document.Snapshot, key document.Key, view domview.View, reg *viewer.Registration, state document.PositionState) {
	bag := viewer.NewSubscriptionBag()
	sess := &session{key: key, snapshot: snapshot, view: view, bag: bag, reg: reg}

	clickCtx, cancelClicks := context.WithCancel(ctx)
	go o.clickLoop(clickCtx, sess)
	bag.Add(cancelClicks)

	bag.Add(o.hoverer.Hoverify(ctx, view, snapshot))
	if reg != nil {
		bag.Add(o.decor.Attach(ctx, view, reg.Handle))
		bag.Add(o.status.Attach(ctx, view, reg.Handle))
		bag.Add(reg.Release)
	} else {
		bag.Add(o.status.Attach(ctx, view, ""))
	}

	o.mu.Lock()
	o.current = sess
	o.mu.Unlock()

	// Surface the carried-over position in the fresh view.
	if !state.IsEmpty() {
		o.hoverer.JumpTo(ctx, state)
	}
}

// Shutdown releases the active viewer, if any.
func (o *Orchestrator) Shutdown() {
	o.desired.Add(1)
	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	o.mu.Lock()
	current := o.current
	o.current = nil
	o.mu.Unlock()
	if current != nil {
		current.bag.Release()
	}
}

// ===== CLICK HANDLING =====

func (o *Orchestrator) clickLoop(ctx context.Context, sess *session) {
	for {
		select {
		case <-ctx.Done():
			return
		case click := <-sess.view.Clicks():
			o.handleClick(ctx, sess, click)
		}
	}
}

// handleClick performs at most one location update per click: exactly
// one for blank-space clicks (or any click in navigate-on-any-click
// mode), none for token clicks or clicks while text is selected.
func (o *Orchestrator) handleClick(ctx context.Context, sess *session, click domview.Click) {
	if sess.view.SelectionText() != "" {
		return
	}

	cell, ok := sess.view.CellAt(click.Point)
	if !ok {
		return
	}
	if cell.IsToken && !o.cfg.NavigateOnAnyClick {
		// Token clicks belong to the hover/definition layer.
		return
	}

	previous := document.ParsePosition(o.nav.Location())
	next := o.clickState(previous, cell, click.Shift)

	loc := document.WithPosition(o.nav.Location(), next)
	if replaceInHistory(previous, next, o.cfg.HistoryReplaceRadius) {
		o.nav.Replace(loc)
	} else {
		o.nav.Push(loc)
	}

	if sess.reg != nil {
		if err := o.registrar.UpdateSelections(ctx, sess.reg, next); err != nil {
			o.log.Debug("selection sync failed", "error", err)
		}
	}
}

// clickState derives the new position state for a click.
func (o *Orchestrator) clickState(previous document.PositionState, cell domview.Cell, shift bool) document.PositionState {
	line := cell.Line - 1

	if shift && previous.IsSingleLine() {
		low, high := *previous.Line, line
		if low > high {
			low, high = high, low
		}
		return document.LineRange(low, high)
	}

	if o.cfg.VisualLineSelection || !cell.IsToken {
		return document.LineOnly(line)
	}
	return document.Point(line, cell.Character)
}

// replaceInHistory decides replace-vs-push: short single-line moves
// replace so line-by-line reading does not flood history; everything
// else, ranges included, pushes.
func replaceInHistory(previous, next document.PositionState, radius int) bool {
	if !previous.IsSingleLine() || !next.IsSingleLine() {
		return false
	}
	delta := *next.Line - *previous.Line
	if delta < 0 {
		delta = -delta
	}
	return delta <= radius
}
