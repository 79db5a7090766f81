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
	"context"
	"encoding/json"
	"time"

	"github.com/AleutianAI/AleutianCodeView/pkg/logging"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
)

// Client implements Host over a Conn.
//
// Thread Safety: safe for concurrent use; the underlying Conn
// serializes writes.
type Client struct {
	conn *Conn
	log  *logging.Logger
}

var _ Host = (*Client)(nil)

// NewClient wraps an established connection. The caller owns the
// connection lifecycle (ReadLoop, Close).
func NewClient(conn *Conn, log *logging.Logger) *Client {
	if log == nil {
		log = logging.Nop()
	}
	return &Client{conn: conn, log: log}
}

// AddTextDocumentIfNotExists implements Host.
func (c *Client) AddTextDocumentIfNotExists(ctx context.Context, doc TextDocumentItem) error {
	return c.call(ctx, methodAddTextDocument, doc, nil)
}

// AddViewerIfNotExists implements Host.
func (c *Client) AddViewerIfNotExists(ctx context.Context, params ViewerParams) (ViewerHandle, error) {
	var result struct {
		ViewerID string `json:"viewerId"`
	}
	if err := c.call(ctx, methodAddViewer, params, &result); err != nil {
		return "", err
	}
	return ViewerHandle(result.ViewerID), nil
}

// RemoveViewer implements Host.
func (c *Client) RemoveViewer(ctx context.Context, handle ViewerHandle) error {
	return c.call(ctx, methodRemoveViewer, viewerRef{ViewerID: string(handle)}, nil)
}

// SetEditorSelections implements Host.
func (c *Client) SetEditorSelections(ctx context.Context, handle ViewerHandle, selections []document.Range) error {
	params := struct {
		ViewerID   string           `json:"viewerId"`
		Selections []document.Range `json:"selections"`
	}{string(handle), selections}
	return c.call(ctx, methodSetSelections, params, nil)
}

// Hover implements Host. A missing result decodes as nil.
func (c *Client) Hover(ctx context.Context, params QueryParams) (*HoverResult, error) {
	var result *HoverResult
	if err := c.call(ctx, methodHover, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Definition implements Host.
func (c *Client) Definition(ctx context.Context, params QueryParams) ([]Location, error) {
	var result []Location
	if err := c.call(ctx, methodDefinition, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DocumentHighlights implements Host.
func (c *Client) DocumentHighlights(ctx context.Context, params QueryParams) ([]DocumentHighlight, error) {
	var result []DocumentHighlight
	if err := c.call(ctx, methodDocumentHighlights, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// TextDocumentDecorations implements Host.
func (c *Client) TextDocumentDecorations(ctx context.Context, handle ViewerHandle) (*Subscription[[]TextDocumentDecoration], error) {
	return openClientStream[[]TextDocumentDecoration](ctx, c, methodSubscribeDecoration, handle, "decorations")
}

// StatusBarItems implements Host.
func (c *Client) StatusBarItems(ctx context.Context, handle ViewerHandle) (*Subscription[[]StatusBarItem], error) {
	return openClientStream[[]StatusBarItem](ctx, c, methodSubscribeStatusBar, handle, "statusBar")
}

type viewerRef struct {
	ViewerID string `json:"viewerId"`
}

func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	ctx, span := startCallSpan(ctx, method)
	defer span.End()

	start := time.Now()
	err := c.conn.Call(ctx, method, params, result)
	recordCall(ctx, method, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// openClientStream subscribes to a per-viewer push stream and pumps
// decoded payloads into a typed Subscription. Undecodable payloads are
// logged and dropped; the stream itself stays alive.
func openClientStream[T any](ctx context.Context, c *Client, method string, handle ViewerHandle, kind string) (*Subscription[T], error) {
	sub := NewSubscription[T](8, nil)
	streamID, err := c.conn.OpenStream(ctx, method, viewerRef{ViewerID: string(handle)}, func(payload json.RawMessage, end bool, errMsg string) {
		if end {
			if errMsg != "" {
				c.log.Warn("host stream ended with error", "kind", kind, "viewer_id", handle, "error", errMsg)
			}
			sub.Stop()
			return
		}
		var value T
		if err := json.Unmarshal(payload, &value); err != nil {
			c.log.Warn("dropping undecodable stream payload", "kind", kind, "error", err)
			return
		}
		recordStreamEmission(context.Background(), kind)
		sub.Emit(value)
	})
	if err != nil {
		return nil, err
	}

	sub.setOnStop(func() {
		c.conn.CloseStream(streamID)
	})
	return sub, nil
}
