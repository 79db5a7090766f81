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
	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
)

// =============================================================================
// VIEWER & DOCUMENT TYPES
// =============================================================================

// ViewerHandle is the opaque identifier the host assigns to a
// registered viewer. The zero value is "no viewer".
type ViewerHandle string

// IsZero reports whether the handle identifies no viewer.
func (h ViewerHandle) IsZero() bool { return h == "" }

// ViewerType identifies the kind of viewer being registered.
const ViewerTypeCodeEditor = "CodeEditor"

// TextDocumentItem carries a document's identity and content to the host.
type TextDocumentItem struct {
	// URI is the document URI, e.g. "git://repo?commit#path".
	URI string `json:"uri"`

	// LanguageID is the language identifier, e.g. "go".
	LanguageID string `json:"languageId"`

	// Text is the full document content.
	Text string `json:"text"`
}

// ViewerParams describes a viewer registration.
type ViewerParams struct {
	// Type is the viewer kind; always ViewerTypeCodeEditor here.
	Type string `json:"type"`

	// Resource is the URI of the viewed document.
	Resource string `json:"resource"`

	// Selections is the initial selection set, possibly empty.
	Selections []document.Range `json:"selections"`

	// IsActive marks the viewer as the user's active one.
	IsActive bool `json:"isActive"`
}

// QueryParams keys a provider query: the document identity plus the
// position being asked about.
type QueryParams struct {
	RepoName     string            `json:"repoName"`
	Revision     string            `json:"revision"`
	CommitID     string            `json:"commitId"`
	FilePath     string            `json:"filePath"`
	LanguageMode string            `json:"languageMode"`
	Position     document.Position `json:"position"`
}

// =============================================================================
// PROVIDER RESULT TYPES
// =============================================================================

// MarkupContent is provider-supplied documentation content.
type MarkupContent struct {
	// Kind is "plaintext" or "markdown".
	Kind string `json:"kind"`

	// Value is the content.
	Value string `json:"value"`
}

// HoverResult is the result of a hover query. A nil result means no
// hover is available at the position.
type HoverResult struct {
	// Contents is the hover content.
	Contents MarkupContent `json:"contents"`

	// Range is the token span the hover applies to, when known.
	Range *document.Range `json:"range,omitempty"`
}

// Location is a definition target.
type Location struct {
	// URI is the target document URI.
	URI string `json:"uri"`

	// Range is the target span.
	Range document.Range `json:"range"`
}

// HighlightKind classifies a document highlight.
type HighlightKind int

// Highlight kinds.
const (
	HighlightText  HighlightKind = 1
	HighlightRead  HighlightKind = 2
	HighlightWrite HighlightKind = 3
)

// DocumentHighlight marks a span to be visually highlighted alongside
// the hovered token (all occurrences of the symbol).
type DocumentHighlight struct {
	Range document.Range `json:"range"`
	Kind  HighlightKind  `json:"kind,omitempty"`
}

// =============================================================================
// DECORATION & STATUS BAR TYPES
// =============================================================================

// TextDocumentDecoration is a styling/content augmentation attached to
// one source line. Line is 1-based, matching rendered line numbers.
type TextDocumentDecoration struct {
	// Line is the 1-based target line.
	Line int `json:"line"`

	// BackgroundColor applied to the whole line, when IsWholeLine.
	BackgroundColor string `json:"backgroundColor,omitempty"`

	// Border is a CSS-style border shorthand.
	Border string `json:"border,omitempty"`

	// IsWholeLine extends styling across the full line width.
	IsWholeLine bool `json:"isWholeLine,omitempty"`

	// After is optional content attached after the line text.
	After *DecorationAttachment `json:"after,omitempty"`
}

// DecorationAttachment is content rendered after a decorated line.
type DecorationAttachment struct {
	ContentText  string `json:"contentText,omitempty"`
	Color        string `json:"color,omitempty"`
	LinkURL      string `json:"linkURL,omitempty"`
	HoverMessage string `json:"hoverMessage,omitempty"`
}

// StatusBarItem is one entry of a viewer's status bar.
type StatusBarItem struct {
	// Key orders and deduplicates items.
	Key string `json:"key"`

	// Text is the visible label.
	Text string `json:"text"`

	// Tooltip is shown on hover, when set.
	Tooltip string `json:"tooltip,omitempty"`

	// Command is an opaque command identifier invoked on click.
	Command string `json:"command,omitempty"`
}
