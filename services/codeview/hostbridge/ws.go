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
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianCodeView/pkg/logging"
)

// wsTransport adapts a gorilla websocket connection to Transport.
// Conn serializes writers, satisfying gorilla's single-writer rule.
type wsTransport struct {
	ws *websocket.Conn
}

// NewWebSocketTransport wraps an established websocket connection.
func NewWebSocketTransport(ws *websocket.Conn) Transport {
	return &wsTransport{ws: ws}
}

func (t *wsTransport) WriteMessage(data []byte) error {
	return t.ws.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.ws.ReadMessage()
	return data, err
}

func (t *wsTransport) Close() error {
	return t.ws.Close()
}

// Dial connects to an extension host websocket endpoint and starts the
// connection's read loop. The returned Client degrades every call with
// ErrConnClosed once the connection drops; callers own Close.
func Dial(ctx context.Context, url string, log *logging.Logger) (*Client, *Conn, error) {
	if log == nil {
		log = logging.Nop()
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial extension host %s: %w", url, err)
	}

	conn := NewConn(NewWebSocketTransport(ws), log)
	go func() {
		if err := conn.ReadLoop(context.Background()); err != nil && !errors.Is(err, ErrConnClosed) {
			log.Warn("host connection lost", "url", url, "error", err)
		}
	}()

	return NewClient(conn, log), conn, nil
}
