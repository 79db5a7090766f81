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

import "testing"

func TestParsePosition(t *testing.T) {
	t.Run("line only", func(t *testing.T) {
		state := ParsePosition(Location{Hash: "#L12"})
		if state.Line == nil || *state.Line != 11 {
			t.Fatalf("Line = %v, want 11", state.Line)
		}
		if state.Character != nil || state.EndLine != nil {
			t.Errorf("unexpected extra fields: %+v", state)
		}
	})

	t.Run("line and character", func(t *testing.T) {
		state := ParsePosition(Location{Hash: "#L12:3"})
		if state.Line == nil || *state.Line != 11 {
			t.Fatalf("Line = %v, want 11", state.Line)
		}
		if state.Character == nil || *state.Character != 2 {
			t.Fatalf("Character = %v, want 2", state.Character)
		}
	})

	t.Run("full range", func(t *testing.T) {
		state := ParsePosition(Location{Hash: "#L12:3-15:9"})
		if state.EndLine == nil || *state.EndLine != 14 {
			t.Fatalf("EndLine = %v, want 14", state.EndLine)
		}
		if state.EndCharacter == nil || *state.EndCharacter != 8 {
			t.Fatalf("EndCharacter = %v, want 8", state.EndCharacter)
		}
	})

	t.Run("line range without characters", func(t *testing.T) {
		state := ParsePosition(Location{Hash: "#L3-7"})
		if state.Line == nil || *state.Line != 2 {
			t.Fatalf("Line = %v, want 2", state.Line)
		}
		if state.EndLine == nil || *state.EndLine != 6 {
			t.Fatalf("EndLine = %v, want 6", state.EndLine)
		}
		if state.Character != nil || state.EndCharacter != nil {
			t.Errorf("unexpected characters: %+v", state)
		}
	})

	t.Run("ignores non-position segments", func(t *testing.T) {
		state := ParsePosition(Location{Hash: "#L5&tab=references"})
		if state.Line == nil || *state.Line != 4 {
			t.Fatalf("Line = %v, want 4", state.Line)
		}
	})

	t.Run("malformed fragments parse as empty", func(t *testing.T) {
		for _, hash := range []string{"", "#", "#L", "#Labc", "#L0", "#L5:", "#L5:0", "#L5-", "#L5-x", "#tab=references"} {
			state := ParsePosition(Location{Hash: hash})
			if !state.IsEmpty() {
				t.Errorf("hash %q: expected empty state, got %+v", hash, state)
			}
		}
	})
}

func TestFormatPosition_RoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		state PositionState
		want  string
	}{
		{"line only", LineOnly(11), "L12"},
		{"line and character", Point(11, 2), "L12:3"},
		{"line range", LineRange(2, 6), "L3-7"},
		{
			"full range",
			PositionState{Line: intPtr(11), Character: intPtr(2), EndLine: intPtr(14), EndCharacter: intPtr(8)},
			"L12:3-15:9",
		},
		{"empty", PositionState{}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			formatted := FormatPosition(tc.state)
			if formatted != tc.want {
				t.Fatalf("FormatPosition = %q, want %q", formatted, tc.want)
			}
			parsed := ParsePosition(Location{Hash: "#" + formatted})
			if !parsed.Equal(tc.state) {
				t.Errorf("round trip: got %+v, want %+v", parsed, tc.state)
			}
		})
	}
}

func TestWithPosition(t *testing.T) {
	t.Run("replaces position and keeps other segments", func(t *testing.T) {
		loc := Location{Path: "/r/f.go", Hash: "#L3&tab=references"}
		out := WithPosition(loc, LineOnly(9))
		if out.Hash != "L10&tab=references" {
			t.Errorf("Hash = %q", out.Hash)
		}
		if out.Path != loc.Path {
			t.Errorf("Path changed: %q", out.Path)
		}
	})

	t.Run("empty state clears the position segment", func(t *testing.T) {
		out := WithPosition(Location{Hash: "#L3&tab=references"}, PositionState{})
		if out.Hash != "tab=references" {
			t.Errorf("Hash = %q", out.Hash)
		}
	})

	t.Run("writes position into an empty hash", func(t *testing.T) {
		out := WithPosition(Location{}, Point(0, 0))
		if out.Hash != "L1:1" {
			t.Errorf("Hash = %q", out.Hash)
		}
	})
}

func intPtr(v int) *int { return &v }
