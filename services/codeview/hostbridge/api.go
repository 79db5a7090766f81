// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hostbridge

import (
	"context"
	"sync"

	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
)

// Host is the extension host API consumed by the engine.
//
// The remote API object is shared read-only across all engine
// components; only the orchestrator creates and removes viewers.
// Implementations must be safe for concurrent use.
type Host interface {
	// AddTextDocumentIfNotExists makes the document known to the host.
	// Re-adding an identical (uri, languageId, text) triple is a no-op.
	AddTextDocumentIfNotExists(ctx context.Context, doc TextDocumentItem) error

	// AddViewerIfNotExists registers a viewer for a known document and
	// returns its handle.
	AddViewerIfNotExists(ctx context.Context, params ViewerParams) (ViewerHandle, error)

	// RemoveViewer unregisters a viewer. Removing an unknown handle is
	// an error the caller is expected to log and swallow.
	RemoveViewer(ctx context.Context, handle ViewerHandle) error

	// SetEditorSelections updates the viewer's selection set.
	SetEditorSelections(ctx context.Context, handle ViewerHandle, selections []document.Range) error

	// Hover resolves hover content at a position. A (nil, nil) return
	// means no provider had content for the position.
	Hover(ctx context.Context, params QueryParams) (*HoverResult, error)

	// Definition resolves definition targets at a position.
	Definition(ctx context.Context, params QueryParams) ([]Location, error)

	// DocumentHighlights resolves highlight spans for the symbol at a
	// position.
	DocumentHighlights(ctx context.Context, params QueryParams) ([]DocumentHighlight, error)

	// TextDocumentDecorations opens the per-viewer decoration push
	// stream. Each emission replaces the previous decoration set
	// wholesale.
	TextDocumentDecorations(ctx context.Context, handle ViewerHandle) (*Subscription[[]TextDocumentDecoration], error)

	// StatusBarItems opens the per-viewer status bar push stream.
	StatusBarItems(ctx context.Context, handle ViewerHandle) (*Subscription[[]StatusBarItem], error)
}

// Subscription is a push stream of T.
//
// Consumers select on Events and Done together. Done is closed when
// the stream ends for any reason: explicit Stop, a stream error on the
// host side, or connection loss. Consumers treat Done as "clear
// state", never as "keep last value".
type Subscription[T any] struct {
	ch     chan T
	done   chan struct{}
	mu     sync.Mutex
	closed bool
	onStop func()
}

// NewSubscription creates a subscription with the given buffer size.
// onStop, if non-nil, runs exactly once when the subscription stops.
func NewSubscription[T any](buffer int, onStop func()) *Subscription[T] {
	return &Subscription[T]{
		ch:     make(chan T, buffer),
		done:   make(chan struct{}),
		onStop: onStop,
	}
}

// Events returns the receive side of the stream.
func (s *Subscription[T]) Events() <-chan T {
	return s.ch
}

// Done is closed when the stream ends.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Emit delivers a value to the subscriber, blocking while the buffer
// is full. Returns false if the subscription has stopped.
func (s *Subscription[T]) Emit(value T) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- value:
		return true
	case <-s.done:
		return false
	}
}

// setOnStop installs the stop hook after construction. No-op when the
// subscription already stopped (the remote end won the race; there is
// nothing left to unsubscribe).
func (s *Subscription[T]) setOnStop(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.onStop = fn
}

// Stop ends the stream. Safe to call multiple times and concurrently
// with Emit.
func (s *Subscription[T]) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	onStop := s.onStop
	s.mu.Unlock()

	if onStop != nil {
		onStop()
	}
}
