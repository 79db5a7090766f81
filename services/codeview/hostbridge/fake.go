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
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
)

// FakeHost is an in-memory Host for tests and the development CLI.
//
// Provider behavior is scripted through the exported function fields;
// unset providers return empty results. Every call is journaled for
// assertions.
//
// Thread Safety: safe for concurrent use.
type FakeHost struct {
	// HoverFunc scripts hover responses. May block to simulate slow
	// providers.
	HoverFunc func(params QueryParams) (*HoverResult, error)

	// DefinitionFunc scripts definition responses.
	DefinitionFunc func(params QueryParams) ([]Location, error)

	// HighlightsFunc scripts document highlight responses.
	HighlightsFunc func(params QueryParams) ([]DocumentHighlight, error)

	// OnAddViewer, when set, runs before a viewer is registered. Tests
	// use it to stall registration and race identity changes.
	OnAddViewer func(params ViewerParams)

	mu            sync.Mutex
	documents     map[string]TextDocumentItem
	docAddCalls   map[string]int
	viewers       map[ViewerHandle]ViewerParams
	selections    map[ViewerHandle][]document.Range
	removals      map[ViewerHandle]int
	decorSubs     map[ViewerHandle][]*Subscription[[]TextDocumentDecoration]
	statusSubs    map[ViewerHandle][]*Subscription[[]StatusBarItem]
	calls         []string
	nextViewerSeq int
}

var _ Host = (*FakeHost)(nil)

// NewFakeHost creates an empty fake host.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		documents:   make(map[string]TextDocumentItem),
		docAddCalls: make(map[string]int),
		viewers:     make(map[ViewerHandle]ViewerParams),
		selections:  make(map[ViewerHandle][]document.Range),
		removals:    make(map[ViewerHandle]int),
		decorSubs:   make(map[ViewerHandle][]*Subscription[[]TextDocumentDecoration]),
		statusSubs:  make(map[ViewerHandle][]*Subscription[[]StatusBarItem]),
	}
}

// AddTextDocumentIfNotExists implements Host. Re-adding an identical
// triple leaves document state untouched.
func (f *FakeHost) AddTextDocumentIfNotExists(ctx context.Context, doc TextDocumentItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "addTextDocument "+doc.URI)
	f.docAddCalls[doc.URI]++

	if existing, ok := f.documents[doc.URI]; ok && existing == doc {
		return nil
	}
	f.documents[doc.URI] = doc
	return nil
}

// AddViewerIfNotExists implements Host.
func (f *FakeHost) AddViewerIfNotExists(ctx context.Context, params ViewerParams) (ViewerHandle, error) {
	if f.OnAddViewer != nil {
		f.OnAddViewer(params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "addViewer "+params.Resource)
	if _, ok := f.documents[params.Resource]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDocument, params.Resource)
	}

	f.nextViewerSeq++
	handle := ViewerHandle(fmt.Sprintf("viewer-%d-%s", f.nextViewerSeq, uuid.NewString()[:8]))
	f.viewers[handle] = params
	f.selections[handle] = params.Selections
	return handle, nil
}

// RemoveViewer implements Host. Streams for the viewer end when it is
// removed, mirroring real host behavior.
func (f *FakeHost) RemoveViewer(ctx context.Context, handle ViewerHandle) error {
	f.mu.Lock()
	f.calls = append(f.calls, "removeViewer "+string(handle))
	f.removals[handle]++
	_, ok := f.viewers[handle]
	delete(f.viewers, handle)
	delete(f.selections, handle)
	decorSubs := f.decorSubs[handle]
	statusSubs := f.statusSubs[handle]
	delete(f.decorSubs, handle)
	delete(f.statusSubs, handle)
	f.mu.Unlock()

	for _, sub := range decorSubs {
		sub.Stop()
	}
	for _, sub := range statusSubs {
		sub.Stop()
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownViewer, handle)
	}
	return nil
}

// SetEditorSelections implements Host.
func (f *FakeHost) SetEditorSelections(ctx context.Context, handle ViewerHandle, selections []document.Range) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "setSelections "+string(handle))
	if _, ok := f.viewers[handle]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownViewer, handle)
	}
	f.selections[handle] = selections
	return nil
}

// Hover implements Host.
func (f *FakeHost) Hover(ctx context.Context, params QueryParams) (*HoverResult, error) {
	f.journal("hover %s:%d:%d", params.FilePath, params.Position.Line, params.Position.Character)
	if f.HoverFunc == nil {
		return nil, nil
	}
	return f.HoverFunc(params)
}

// Definition implements Host.
func (f *FakeHost) Definition(ctx context.Context, params QueryParams) ([]Location, error) {
	f.journal("definition %s:%d:%d", params.FilePath, params.Position.Line, params.Position.Character)
	if f.DefinitionFunc == nil {
		return nil, nil
	}
	return f.DefinitionFunc(params)
}

// DocumentHighlights implements Host.
func (f *FakeHost) DocumentHighlights(ctx context.Context, params QueryParams) ([]DocumentHighlight, error) {
	f.journal("highlights %s:%d:%d", params.FilePath, params.Position.Line, params.Position.Character)
	if f.HighlightsFunc == nil {
		return nil, nil
	}
	return f.HighlightsFunc(params)
}

// TextDocumentDecorations implements Host.
func (f *FakeHost) TextDocumentDecorations(ctx context.Context, handle ViewerHandle) (*Subscription[[]TextDocumentDecoration], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.viewers[handle]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownViewer, handle)
	}
	sub := NewSubscription[[]TextDocumentDecoration](8, nil)
	f.decorSubs[handle] = append(f.decorSubs[handle], sub)
	return sub, nil
}

// StatusBarItems implements Host.
func (f *FakeHost) StatusBarItems(ctx context.Context, handle ViewerHandle) (*Subscription[[]StatusBarItem], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.viewers[handle]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownViewer, handle)
	}
	sub := NewSubscription[[]StatusBarItem](8, nil)
	f.statusSubs[handle] = append(f.statusSubs[handle], sub)
	return sub, nil
}

// =============================================================================
// TEST CONTROLS
// =============================================================================

// PublishDecorations pushes a decoration set to every open decoration
// stream of the viewer.
func (f *FakeHost) PublishDecorations(handle ViewerHandle, decorations []TextDocumentDecoration) {
	f.mu.Lock()
	subs := append([]*Subscription[[]TextDocumentDecoration](nil), f.decorSubs[handle]...)
	f.mu.Unlock()
	for _, sub := range subs {
		sub.Emit(decorations)
	}
}

// PublishStatusBarItems pushes a status bar item set to every open
// status stream of the viewer.
func (f *FakeHost) PublishStatusBarItems(handle ViewerHandle, items []StatusBarItem) {
	f.mu.Lock()
	subs := append([]*Subscription[[]StatusBarItem](nil), f.statusSubs[handle]...)
	f.mu.Unlock()
	for _, sub := range subs {
		sub.Emit(items)
	}
}

// FailDecorationStreams ends every open decoration stream of the
// viewer, simulating a provider error.
func (f *FakeHost) FailDecorationStreams(handle ViewerHandle) {
	f.mu.Lock()
	subs := f.decorSubs[handle]
	delete(f.decorSubs, handle)
	f.mu.Unlock()
	for _, sub := range subs {
		sub.Stop()
	}
}

// Calls returns a copy of the call journal.
func (f *FakeHost) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// DocumentAddCalls returns how many times the URI was (re)added.
func (f *FakeHost) DocumentAddCalls(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docAddCalls[uri]
}

// Document returns the stored document for a URI.
func (f *FakeHost) Document(uri string) (TextDocumentItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[uri]
	return doc, ok
}

// ViewerResource returns the resource URI the viewer was registered
// against.
func (f *FakeHost) ViewerResource(handle ViewerHandle) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	params, ok := f.viewers[handle]
	return params.Resource, ok
}

// OnlyViewer returns the handle of the single live viewer, or false
// when there are zero or several.
func (f *FakeHost) OnlyViewer() (ViewerHandle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.viewers) != 1 {
		return "", false
	}
	for handle := range f.viewers {
		return handle, true
	}
	return "", false
}

// LiveViewers returns the number of currently registered viewers.
func (f *FakeHost) LiveViewers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.viewers)
}

// RemovalCount returns how many times RemoveViewer was called for the
// handle.
func (f *FakeHost) RemovalCount(handle ViewerHandle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removals[handle]
}

// Selections returns the viewer's current selections.
func (f *FakeHost) Selections(handle ViewerHandle) []document.Range {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]document.Range(nil), f.selections[handle]...)
}

func (f *FakeHost) journal(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}
