// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package viewer

import (
	"context"
	"fmt"

	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianCodeView/pkg/logging"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/hostbridge"
)

// removeTimeout bounds best-effort viewer removal during teardown.
const removeTimeout = 5 * time.Second

// Registration is the result of announcing a viewer to the extension
// host. Release removes the viewer again; it is safe to call more than
// once and may be called after the host connection has dropped.
type Registration struct {
	// Handle identifies the viewer on the host for follow-up calls
	// (selections, decoration and status bar subscriptions).
	Handle hostbridge.ViewerHandle

	// Snapshot is the document the viewer was registered against.
	Snapshot document.Snapshot

	release func()
}

// Release removes the viewer from the host. Errors during removal are
// logged, not returned: teardown must not fail.
func (r *Registration) Release() {
	if r.release != nil {
		r.release()
	}
}

// Registrar announces viewers to an extension host. A nil or absent
// host degrades registration to ErrHostUnavailable rather than
// panicking, so callers can run code views without code intelligence.
type Registrar struct {
	host hostbridge.Host
	log  *logging.Logger
}

// NewRegistrar creates a registrar. host may be nil.
func NewRegistrar(host hostbridge.Host, log *logging.Logger) *Registrar {
	if log == nil {
		log = logging.Nop()
	}
	return &Registrar{host: host, log: log}
}

// Register announces the snapshot's document and a code editor viewer
// for it. The viewer add waits on the document add since the host
// rejects viewers for unknown resources.
//
// The initial selections come from state; an empty state registers a
// viewer with no selections.
func (r *Registrar) Register(ctx context.Context, snapshot document.Snapshot, state document.PositionState, isActive bool) (*Registration, error) {
	if r.host == nil {
		return nil, hostbridge.ErrHostUnavailable
	}

	uri := snapshot.URI()
	err := r.host.AddTextDocumentIfNotExists(ctx, hostbridge.TextDocumentItem{
		URI:        uri,
		LanguageID: snapshot.LanguageMode,
		Text:       snapshot.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("add text document %s: %w", uri, err)
	}

	handle, err := r.host.AddViewerIfNotExists(ctx, hostbridge.ViewerParams{
		Type:       hostbridge.ViewerTypeCodeEditor,
		Resource:   uri,
		Selections: state.Selections(),
		IsActive:   isActive,
	})
	if err != nil {
		return nil, fmt.Errorf("add viewer for %s: %w", uri, err)
	}

	r.log.Debug("viewer registered", "uri", uri, "viewer_id", string(handle))
	return &Registration{
		Handle:   handle,
		Snapshot: snapshot,
		release:  r.releaseFunc(handle, uri),
	}, nil
}

// RegisterAll registers a viewer per snapshot concurrently. Only the
// viewer at activeIndex is marked active. On any failure the viewers
// already registered are released and the first error is returned.
//
// Diff views use this to announce base and head sides together.
func (r *Registrar) RegisterAll(ctx context.Context, snapshots []document.Snapshot, state document.PositionState, activeIndex int) ([]*Registration, error) {
	if r.host == nil {
		return nil, hostbridge.ErrHostUnavailable
	}

	regs := make([]*Registration, len(snapshots))
	g, gctx := errgroup.WithContext(ctx)
	for i, snapshot := range snapshots {
		i, snapshot := i, snapshot
		g.Go(func() error {
			reg, err := r.Register(gctx, snapshot, state, i == activeIndex)
			if err != nil {
				return err
			}
			regs[i] = reg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, reg := range regs {
			if reg != nil {
				reg.Release()
			}
		}
		return nil, err
	}
	return regs, nil
}

// UpdateSelections propagates a position change to an existing viewer.
func (r *Registrar) UpdateSelections(ctx context.Context, reg *Registration, state document.PositionState) error {
	if r.host == nil {
		return hostbridge.ErrHostUnavailable
	}
	if reg == nil || reg.Handle.IsZero() {
		return hostbridge.ErrUnknownViewer
	}
	if err := r.host.SetEditorSelections(ctx, reg.Handle, state.Selections()); err != nil {
		return fmt.Errorf("set selections on %s: %w", reg.Handle, err)
	}
	return nil
}

func (r *Registrar) releaseFunc(handle hostbridge.ViewerHandle, uri string) func() {
	return func() {
		// Removal is best-effort: the connection may already be gone.
		ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
		defer cancel()
		if err := r.host.RemoveViewer(ctx, handle); err != nil {
			r.log.Debug("viewer removal failed", "uri", uri, "viewer_id", string(handle), "error", err)
		}
	}
}
