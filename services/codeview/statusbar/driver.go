// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package statusbar maintains the floating status bar's read model:
// the items streamed for the active viewer plus the layout geometry
// derived from the content box.
package statusbar

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianCodeView/pkg/logging"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/domview"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/hostbridge"
)

const (
	// defaultReflowInterval bounds how often resize bursts recompute
	// layout.
	defaultReflowInterval = 100 * time.Millisecond

	// horizontalPadding is kept free on each side of the bar.
	horizontalPadding = 16

	// baseOffset is the bar's distance from the content box bottom.
	baseOffset = 8

	// scrollbarAllowance lifts the bar clear of a horizontal
	// scrollbar.
	scrollbarAllowance = 12
)

// Layout is the floating bar's computed geometry.
type Layout struct {
	// OffsetBottom is the distance from the content box bottom edge.
	OffsetBottom int

	// MaxWidth caps the bar so it never overflows the content box.
	MaxWidth int
}

// Model is the status bar read model. Loading is distinct from "a
// viewer exists but published no items": the former renders a
// placeholder, the latter renders nothing.
type Model struct {
	Loading bool
	Items   []hostbridge.StatusBarItem
	Layout  Layout
}

// Driver follows the active viewer's status bar stream and the view's
// geometry.
//
// Thread Safety: safe for concurrent use.
type Driver struct {
	host     hostbridge.Host
	log      *logging.Logger
	interval time.Duration

	mu           sync.Mutex
	model        Model
	lifetime     uint64
	listeners    map[int]chan Model
	nextListener int

	throttleMu sync.Mutex
	limiter    *rate.Limiter
	trailing   *time.Timer
}

// NewDriver creates a driver in the Loading state. host may be nil;
// Attach then wires only geometry. interval <= 0 uses the default
// reflow throttle.
func NewDriver(host hostbridge.Host, interval time.Duration, log *logging.Logger) *Driver {
	if log == nil {
		log = logging.Nop()
	}
	if interval <= 0 {
		interval = defaultReflowInterval
	}
	return &Driver{
		host:      host,
		log:       log,
		interval:  interval,
		model:     Model{Loading: true},
		listeners: make(map[int]chan Model),
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Current returns the read model.
func (d *Driver) Current() Model {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.model
}

// Updates subscribes to model changes. The channel is buffered; if a
// consumer falls far behind, intermediate values are dropped. The
// returned func cancels the subscription.
func (d *Driver) Updates() (<-chan Model, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextListener
	d.nextListener++
	ch := make(chan Model, 16)
	ch <- d.model
	d.listeners[id] = ch

	return ch, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

// Attach wires the driver to one viewer lifetime: the item stream for
// handle and the view's resize events. Layout is recomputed
// immediately for the new snapshot, then throttled leading+trailing on
// resize bursts.
//
// The returned func detaches and returns the model to Loading; add it
// to the viewer's subscription bag.
func (d *Driver) Attach(ctx context.Context, view domview.View, handle hostbridge.ViewerHandle) func() {
	var sub *hostbridge.Subscription[[]hostbridge.StatusBarItem]
	if d.host != nil {
		var err error
		sub, err = d.host.StatusBarItems(ctx, handle)
		if err != nil {
			d.log.Debug("status bar subscribe failed", "viewer_id", string(handle), "error", err)
			sub = nil
		}
	}

	d.mu.Lock()
	d.lifetime++
	lifetime := d.lifetime
	d.model = Model{Loading: false, Layout: layoutFor(view.Viewport())}
	d.notifyLocked()
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		events := emptyItemStream
		streamDone := neverDone
		if sub != nil {
			events = sub.Events()
			streamDone = sub.Done()
		}
		for {
			select {
			case items := <-events:
				d.setItems(lifetime, items)
			case <-streamDone:
				d.setItems(lifetime, nil)
				streamDone = neverDone
			case vp := <-view.Resizes():
				d.scheduleReflow(lifetime, vp)
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if sub != nil {
				sub.Stop()
			}
			<-done
			// End the lifetime before stopping the trailing timer: a
			// timer that already fired sees a stale lifetime and leaves
			// the detached model alone.
			d.mu.Lock()
			if d.lifetime == lifetime {
				d.lifetime++
				d.model = Model{Loading: true}
				d.notifyLocked()
			}
			d.mu.Unlock()
			d.cancelTrailing()
		})
	}
}

var (
	emptyItemStream <-chan []hostbridge.StatusBarItem = make(chan []hostbridge.StatusBarItem)
	neverDone       <-chan struct{}                   = make(chan struct{})
)

func layoutFor(vp domview.Viewport) Layout {
	layout := Layout{OffsetBottom: baseOffset, MaxWidth: vp.Width - 2*horizontalPadding}
	if layout.MaxWidth < 0 {
		layout.MaxWidth = 0
	}
	if vp.HasHorizontalScrollbar {
		layout.OffsetBottom += scrollbarAllowance
	}
	return layout
}

func (d *Driver) setItems(lifetime uint64, items []hostbridge.StatusBarItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lifetime != lifetime {
		return
	}
	d.model.Items = items
	d.notifyLocked()
}

// scheduleReflow applies the resize immediately when the throttle
// window is open (leading edge) and otherwise arms a trailing timer so
// the final geometry of a burst always lands.
func (d *Driver) scheduleReflow(lifetime uint64, vp domview.Viewport) {
	if d.limiter.Allow() {
		d.applyLayout(lifetime, layoutFor(vp))
		return
	}

	d.throttleMu.Lock()
	defer d.throttleMu.Unlock()
	if d.trailing != nil {
		d.trailing.Stop()
	}
	d.trailing = time.AfterFunc(d.interval, func() {
		d.applyLayout(lifetime, layoutFor(vp))
	})
}

func (d *Driver) cancelTrailing() {
	d.throttleMu.Lock()
	defer d.throttleMu.Unlock()
	if d.trailing != nil {
		d.trailing.Stop()
		d.trailing = nil
	}
}

func (d *Driver) applyLayout(lifetime uint64, layout Layout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lifetime != lifetime {
		return
	}
	d.model.Layout = layout
	d.notifyLocked()
}

// notifyLocked fans the model out without blocking. Callers hold d.mu.
func (d *Driver) notifyLocked() {
	for _, ch := range d.listeners {
		select {
		case ch <- d.model:
		default:
		}
	}
}
