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
	"errors"
	"fmt"
)

// Sentinel errors for extension host operations.
var (
	// ErrHostUnavailable indicates no extension host connection exists.
	// Features degrade silently when this is returned.
	ErrHostUnavailable = errors.New("extension host unavailable")

	// ErrConnClosed indicates the host connection has been closed.
	ErrConnClosed = errors.New("host connection closed")

	// ErrUnknownViewer indicates the host does not know the viewer handle.
	ErrUnknownViewer = errors.New("unknown viewer")

	// ErrUnknownDocument indicates a viewer referenced an unregistered document.
	ErrUnknownDocument = errors.New("unknown document")

	// ErrStreamClosed indicates a push stream subscription has ended.
	ErrStreamClosed = errors.New("stream closed")

	// ErrInvalidMessage indicates a wire message could not be parsed.
	ErrInvalidMessage = errors.New("invalid host message")
)

// JSON-RPC error codes used on the wire.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32099
	CodeUnknownViewer  = -32010
)

// HostError is an error returned by the extension host via JSON-RPC.
type HostError struct {
	// Code is the JSON-RPC error code.
	Code int

	// Message is the error message from the host.
	Message string

	// Data contains optional additional data.
	Data interface{}
}

// Error implements the error interface.
func (e *HostError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("host error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("host error %d: %s", e.Code, e.Message)
}

// IsMethodNotFound returns true if the host does not implement the method.
func (e *HostError) IsMethodNotFound() bool {
	return e.Code == CodeMethodNotFound
}

// IsUnknownViewer returns true if the host rejected the viewer handle.
func (e *HostError) IsUnknownViewer() bool {
	return e.Code == CodeUnknownViewer
}
