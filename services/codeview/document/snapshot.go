// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package document defines the immutable document model for the code
// view engine: file snapshots, zero-indexed positions and ranges, and
// the codec between positions and external location descriptors.
package document

import "fmt"

// Snapshot is an immutable view of a single file: its identity within
// the code host plus its rendered content.
//
// Two snapshots describe the same logical document when their Keys are
// equal. A snapshot with an equal Key but different Content or
// RenderedHTML is a content update of the same document; a snapshot
// with a different Key always forces a full viewer teardown/recreate.
type Snapshot struct {
	// RepoName is the repository, e.g. "github.com/acme/widget".
	RepoName string

	// Revision is the user-visible revision (branch, tag, or commit).
	Revision string

	// CommitID is the resolved 40-character commit hash.
	CommitID string

	// FilePath is the path within the repository.
	FilePath string

	// LanguageMode is the language identifier, e.g. "go".
	LanguageMode string

	// Content is the raw file text.
	Content string

	// RenderedHTML is the syntax-highlighted rendering of Content.
	RenderedHTML string
}

// Key identifies a logical document: the tuple that decides viewer
// lifetime boundaries.
type Key struct {
	RepoName string
	Revision string
	FilePath string
}

// Key returns the snapshot's identity tuple.
func (s *Snapshot) Key() Key {
	return Key{RepoName: s.RepoName, Revision: s.Revision, FilePath: s.FilePath}
}

// URI returns the document URI used with the extension host:
//
//	git://{repo}?{commit}#{path}
func (s *Snapshot) URI() string {
	return fmt.Sprintf("git://%s?%s#%s", s.RepoName, s.CommitID, s.FilePath)
}

// String returns a short human-readable identity, for logs.
func (k Key) String() string {
	return fmt.Sprintf("%s@%s:%s", k.RepoName, k.Revision, k.FilePath)
}
