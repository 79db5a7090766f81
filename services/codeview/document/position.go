// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import "errors"

// ErrCharacterWithoutLine reports a PositionState that carries a
// character offset with no line.
var ErrCharacterWithoutLine = errors.New("position has character but no line")

// Position is a point in a document. Line and Character are 0-indexed;
// the 1-indexed convention exists only at the location-descriptor
// boundary (see location.go).
type Position struct {
	// Line is the 0-indexed line number.
	Line int `json:"line"`

	// Character is the 0-indexed character offset within the line.
	Character int `json:"character"`
}

// Range is a span between two positions. End is exclusive.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// PositionState is the cursor or selection derived from an external
// location descriptor. All fields are optional; absent fields are nil.
// Values are 0-indexed.
//
// Invariant: Character != nil implies Line != nil. EndCharacter != nil
// implies EndLine != nil.
type PositionState struct {
	Line         *int
	Character    *int
	EndLine      *int
	EndCharacter *int
}

// IsEmpty reports whether the state carries no position at all.
func (p PositionState) IsEmpty() bool {
	return p.Line == nil
}

// IsRange reports whether the state spans more than a single point.
func (p PositionState) IsRange() bool {
	return p.EndLine != nil
}

// IsSingleLine reports whether the state is a plain position on one
// line (the only shape eligible for history-entry replacement).
func (p PositionState) IsSingleLine() bool {
	return p.Line != nil && p.EndLine == nil
}

// Validate checks the character-requires-line invariant.
func (p PositionState) Validate() error {
	if p.Character != nil && p.Line == nil {
		return ErrCharacterWithoutLine
	}
	if p.EndCharacter != nil && p.EndLine == nil {
		return ErrCharacterWithoutLine
	}
	return nil
}

// Selections converts the state into the selection ranges sent to the
// extension host when registering a viewer. An empty state yields nil;
// a plain position yields one zero-width range.
func (p PositionState) Selections() []Range {
	if p.IsEmpty() {
		return nil
	}
	start := Position{Line: *p.Line}
	if p.Character != nil {
		start.Character = *p.Character
	}
	end := start
	if p.EndLine != nil {
		end = Position{Line: *p.EndLine}
		if p.EndCharacter != nil {
			end.Character = *p.EndCharacter
		}
	}
	return []Range{{Start: start, End: end}}
}

// PositionOf returns the primary position, or false when empty.
func (p PositionState) PositionOf() (Position, bool) {
	if p.Line == nil {
		return Position{}, false
	}
	pos := Position{Line: *p.Line}
	if p.Character != nil {
		pos.Character = *p.Character
	}
	return pos, true
}

// LineOnly returns a state selecting just the given 0-indexed line.
func LineOnly(line int) PositionState {
	return PositionState{Line: &line}
}

// LineRange returns a state selecting the inclusive line span
// [start, end], both 0-indexed.
func LineRange(start, end int) PositionState {
	return PositionState{Line: &start, EndLine: &end}
}

// Point returns a state at the given 0-indexed line and character.
func Point(line, character int) PositionState {
	return PositionState{Line: &line, Character: &character}
}

// Equal reports field-wise equality of two states.
func (p PositionState) Equal(other PositionState) bool {
	return intPtrEqual(p.Line, other.Line) &&
		intPtrEqual(p.Character, other.Character) &&
		intPtrEqual(p.EndLine, other.EndLine) &&
		intPtrEqual(p.EndCharacter, other.EndCharacter)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
