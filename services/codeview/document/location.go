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

import (
	"fmt"
	"strconv"
	"strings"
)

// Location is the opaque external location descriptor the engine reads
// positions from and writes positions to. The engine never interprets
// Path or Search; only the Hash fragment carries position information.
type Location struct {
	Path   string
	Search string
	Hash   string
}

// ParsePosition extracts the PositionState encoded in the location's
// hash fragment.
//
// The recognized fragment grammar, 1-indexed at this boundary:
//
//	#L{line}[:{character}][-{endLine}[:{endCharacter}]]
//
// Additional '&'-separated fragment segments (e.g. "&tab=references")
// are ignored. Malformed position segments parse as the empty state;
// parsing never fails.
func ParsePosition(loc Location) PositionState {
	for _, segment := range hashSegments(loc.Hash) {
		if !strings.HasPrefix(segment, "L") {
			continue
		}
		if state, ok := parsePositionSegment(segment); ok {
			return state
		}
		// A malformed L-segment is treated as no position rather than
		// falling through to later segments.
		return PositionState{}
	}
	return PositionState{}
}

// FormatPosition renders the state as a hash position segment
// ("L12:3-15:9" forms), or "" for the empty state. Output is 1-indexed.
func FormatPosition(state PositionState) string {
	if state.IsEmpty() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "L%d", *state.Line+1)
	if state.Character != nil {
		fmt.Fprintf(&b, ":%d", *state.Character+1)
	}
	if state.EndLine != nil {
		fmt.Fprintf(&b, "-%d", *state.EndLine+1)
		if state.EndCharacter != nil {
			fmt.Fprintf(&b, ":%d", *state.EndCharacter+1)
		}
	}
	return b.String()
}

// WithPosition returns a copy of loc whose hash encodes state, keeping
// any non-position fragment segments. The position segment always
// comes first, matching how locations are rendered elsewhere.
func WithPosition(loc Location, state PositionState) Location {
	var rest []string
	for _, segment := range hashSegments(loc.Hash) {
		if strings.HasPrefix(segment, "L") {
			if _, ok := parsePositionSegment(segment); ok {
				continue
			}
		}
		rest = append(rest, segment)
	}

	var segments []string
	if formatted := FormatPosition(state); formatted != "" {
		segments = append(segments, formatted)
	}
	segments = append(segments, rest...)

	out := loc
	out.Hash = strings.Join(segments, "&")
	return out
}

func hashSegments(hash string) []string {
	hash = strings.TrimPrefix(hash, "#")
	if hash == "" {
		return nil
	}
	return strings.Split(hash, "&")
}

// parsePositionSegment parses one "L..." segment. Returns false when
// the segment is not a well-formed position.
func parsePositionSegment(segment string) (PositionState, bool) {
	body := strings.TrimPrefix(segment, "L")
	if body == "" {
		return PositionState{}, false
	}

	startPart := body
	endPart := ""
	if idx := strings.IndexByte(body, '-'); idx >= 0 {
		startPart = body[:idx]
		endPart = body[idx+1:]
		// An explicit '-' with nothing after it is malformed, not a
		// line-only position.
		if endPart == "" {
			return PositionState{}, false
		}
	}

	line, character, ok := parsePoint(startPart)
	if !ok {
		return PositionState{}, false
	}

	state := PositionState{Line: line, Character: character}
	if endPart != "" {
		endLine, endCharacter, ok := parsePoint(endPart)
		if !ok {
			return PositionState{}, false
		}
		state.EndLine = endLine
		state.EndCharacter = endCharacter
	}
	return state, true
}

// parsePoint parses "line[:character]" with 1-indexed input, returning
// 0-indexed pointers.
func parsePoint(s string) (line, character *int, ok bool) {
	linePart := s
	charPart := ""
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		linePart = s[:idx]
		charPart = s[idx+1:]
		// A trailing ':' is malformed, not "no character".
		if charPart == "" {
			return nil, nil, false
		}
	}

	l, err := strconv.Atoi(linePart)
	if err != nil || l < 1 {
		return nil, nil, false
	}
	l--
	line = &l

	if charPart != "" {
		c, err := strconv.Atoi(charPart)
		if err != nil || c < 1 {
			return nil, nil, false
		}
		c--
		character = &c
	}
	return line, character, true
}
