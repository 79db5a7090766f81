// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hostbridge implements the asynchronous boundary between the
// code view engine and the out-of-process extension host.
//
// The extension host is the component that resolves semantic providers
// (hover, definition, document highlights, decorations, status bar
// items) for a document. It is reachable only through message passing:
// request/response calls plus independent push streams per viewer.
//
// # Layers
//
//   - Host: the typed API the rest of the engine consumes. Everything
//     above this package depends on the interface, never the wire.
//   - Client: Host implemented over a Conn (JSON-RPC 2.0 on a message
//     transport, request/response correlation by ID, push streams as
//     server notifications).
//   - Serve: the inverse adapter, exposing any Host implementation to
//     remote clients. The development fake host is served this way.
//   - FakeHost: in-memory Host used by tests and the dev CLI.
//
// # Cancellation
//
// The transport supports no hard cancellation of in-flight calls.
// Callers abandon interest via context and discard stale results at
// resolution time; see the viewer and hover packages.
package hostbridge
