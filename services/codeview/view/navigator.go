// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package view

import "github.com/AleutianAI/AleutianCodeView/services/codeview/document"

// Navigator abstracts the embedder's location and history layer. The
// engine never owns browser history; it only reads the current
// location and asks for push or replace transitions.
type Navigator interface {
	// Location returns the current location descriptor.
	Location() document.Location

	// Push navigates to loc, creating a new history entry.
	Push(loc document.Location)

	// Replace navigates to loc, replacing the current history entry.
	Replace(loc document.Location)
}
