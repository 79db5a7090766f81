// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevel_String(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestLogger_Sink(t *testing.T) {
	t.Run("entries at or above level reach the sink", func(t *testing.T) {
		sink := NewBufferedSink()
		logger := New(Config{Level: LevelInfo, Quiet: true, Service: "test", Sink: sink})

		logger.Debug("filtered out")
		logger.Info("kept", "key", "value")
		logger.Error("also kept")

		entries := sink.Entries()
		if len(entries) != 2 {
			t.Fatalf("got %d entries, want 2", len(entries))
		}
		if entries[0].Message != "kept" {
			t.Errorf("first entry = %q, want %q", entries[0].Message, "kept")
		}
		if entries[0].Attrs["key"] != "value" {
			t.Errorf("attrs not carried: %v", entries[0].Attrs)
		}
		if entries[0].Service != "test" {
			t.Errorf("service = %q, want %q", entries[0].Service, "test")
		}
	})

	t.Run("With carries attributes to the sink", func(t *testing.T) {
		sink := NewBufferedSink()
		logger := New(Config{Level: LevelInfo, Quiet: true, Sink: sink})

		child := logger.With("viewer_id", "v1")
		child.Info("wired")

		entries := sink.Entries()
		if len(entries) != 1 {
			t.Fatalf("got %d entries, want 1", len(entries))
		}
	})
}

func TestLogger_FileOutput(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelInfo, LogDir: dir, Service: "filetest", Quiet: true})

	logger.Info("persisted message", "n", 1)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "filetest_*.log"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one log file, got %v (err %v)", matches, err)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "persisted message") {
		t.Errorf("log file missing message: %s", data)
	}
	if !strings.Contains(string(data), `"service":"filetest"`) {
		t.Errorf("log file missing service attribute: %s", data)
	}
}

func TestLogger_CloseIdempotent(t *testing.T) {
	logger := New(Config{Level: LevelInfo, LogDir: t.TempDir(), Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	got := expandPath("~/logs")
	if got != filepath.Join(home, "logs") {
		t.Errorf("expandPath = %q", got)
	}
	if expandPath("/var/log") != "/var/log" {
		t.Errorf("absolute path should be unchanged")
	}
}
