// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domview abstracts the rendered code view's layout behind
// narrow projection interfaces. The engine never touches a real DOM;
// embedders implement View over their rendering layer, and tests use
// FakeGrid.
package domview

// Point is a coordinate in the view's layout space. For text grids,
// X is the 0-indexed column and Y the 0-indexed row.
type Point struct {
	X int
	Y int
}

// Cell is a resolved location within the rendered code.
type Cell struct {
	// Line is the 1-based line number of the cell's row.
	Line int

	// Character is the 0-indexed character offset within the line.
	Character int

	// IsToken reports whether the cell sits on a hoverable syntax
	// token rather than blank space or punctuation.
	IsToken bool

	// Word is the full token text when IsToken is set.
	Word string
}

// Click is a pointer click within the code area.
type Click struct {
	Point Point

	// Shift is set when the shift key was held.
	Shift bool
}

// Move is a pointer movement. Leave marks the pointer exiting the code
// area; Point is meaningless then.
type Move struct {
	Point Point
	Leave bool
}

// Viewport describes the content box the status bar floats over.
type Viewport struct {
	Width  int
	Height int

	// HasHorizontalScrollbar is set when a horizontal scrollbar eats
	// into the content box height.
	HasHorizontalScrollbar bool
}

// AnchorItem is one presentational fragment inside a line anchor.
type AnchorItem struct {
	Text            string
	Color           string
	BackgroundColor string
}

// Anchor is a mounted per-line overlay slot adjacent to a code row.
type Anchor interface {
	// Update replaces the anchor's content in place.
	Update(items []AnchorItem)

	// Remove unmounts the anchor. Further Update calls are no-ops.
	Remove()
}

// View is the layout projection of one rendered code view.
//
// Implementations must be safe for concurrent use; the engine reads
// layout from several goroutines.
type View interface {
	// CellAt resolves a layout point to a cell. ok is false when the
	// point misses the code area entirely, meaning no interaction is
	// possible there.
	CellAt(p Point) (Cell, bool)

	// HasLine reports whether the 1-based line is rendered.
	HasLine(line int) bool

	// ScrollTo brings the 1-based line into view.
	ScrollTo(line int)

	// MountAnchor creates an overlay anchor adjacent to the 1-based
	// line's row. Returns false when the line is not rendered.
	MountAnchor(line int) (Anchor, bool)

	// Viewport returns the current content box.
	Viewport() Viewport

	// SelectionText returns the user's current text selection, empty
	// when nothing is selected.
	SelectionText() string

	// Clicks streams pointer clicks inside the code area.
	Clicks() <-chan Click

	// Moves streams pointer movements and leaves.
	Moves() <-chan Move

	// Resizes streams content box changes.
	Resizes() <-chan Viewport
}
