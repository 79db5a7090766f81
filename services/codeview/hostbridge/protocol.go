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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/AleutianCodeView/pkg/logging"
)

// JSONRPCVersion is the protocol version on the wire.
const JSONRPCVersion = "2.0"

// Wire method names.
const (
	methodAddTextDocument     = "textDocument/addIfNotExists"
	methodAddViewer           = "viewer/addIfNotExists"
	methodRemoveViewer        = "viewer/remove"
	methodSetSelections       = "viewer/setSelections"
	methodHover               = "codeIntel/hover"
	methodDefinition          = "codeIntel/definition"
	methodDocumentHighlights  = "codeIntel/documentHighlights"
	methodSubscribeDecoration = "viewer/decorations/subscribe"
	methodSubscribeStatusBar  = "viewer/statusBar/subscribe"
	methodStreamUnsubscribe   = "stream/unsubscribe"
	methodStreamEmit          = "stream/emit"
	methodStreamEnd           = "stream/end"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// message is the JSON-RPC envelope for requests, responses, and
// notifications. Websocket transports delimit messages, so no
// Content-Length framing is needed.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type streamEnvelope struct {
	StreamID string          `json:"streamId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type subscribeResult struct {
	StreamID string `json:"streamId"`
}

// Transport is a delimited bidirectional message channel, such as a
// websocket connection.
type Transport interface {
	// WriteMessage sends one message. Must be safe for use by one
	// writer at a time; Conn serializes writers.
	WriteMessage(data []byte) error

	// ReadMessage blocks for the next message.
	ReadMessage() ([]byte, error)

	// Close tears the transport down, unblocking ReadMessage.
	Close() error
}

// RequestHandler serves incoming requests on a Conn. Used by Serve;
// client-only connections leave it nil and incoming requests are
// rejected with method-not-found.
type RequestHandler func(ctx context.Context, method string, params json.RawMessage) (interface{}, error)

// =============================================================================
// CONNECTION
// =============================================================================

// Conn is a JSON-RPC 2.0 connection with request/response correlation
// and push-stream demultiplexing.
//
// Thread Safety: safe for concurrent use. Multiple goroutines may
// issue calls and notifications simultaneously; ReadLoop must run in
// exactly one goroutine.
type Conn struct {
	transport Transport
	log       *logging.Logger

	writeMu sync.Mutex
	nextID  atomic.Int64
	closed  atomic.Bool

	pendingMu sync.Mutex
	pending   map[int64]chan message

	streamsMu sync.Mutex
	streams   map[string]func(payload json.RawMessage, end bool, errMsg string)

	handlerMu sync.RWMutex
	handler   RequestHandler
}

// NewConn wraps a transport in a connection. Call ReadLoop in a
// goroutine before issuing requests.
func NewConn(transport Transport, log *logging.Logger) *Conn {
	if log == nil {
		log = logging.Nop()
	}
	return &Conn{
		transport: transport,
		log:       log,
		pending:   make(map[int64]chan message),
		streams:   make(map[string]func(json.RawMessage, bool, string)),
	}
}

// SetHandler installs the server-side request handler. Must be called
// before ReadLoop starts serving traffic that contains requests.
func (c *Conn) SetHandler(handler RequestHandler) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// Call sends a request and decodes the response result into result
// (ignored when result is nil).
//
// Outputs: ErrConnClosed when the connection is down, *HostError when
// the peer answered with a JSON-RPC error, or a context error.
func (c *Conn) Call(ctx context.Context, method string, params, result interface{}) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if c.closed.Load() {
		return ErrConnClosed
	}

	id := c.nextID.Add(1)
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}

	respCh := make(chan message, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(message{JSONRPC: JSONRPCVersion, ID: id, Method: method, Params: raw}); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp, ok := <-respCh:
		if !ok {
			return ErrConnClosed
		}
		if resp.Error != nil {
			return &HostError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("%w: decode result: %v", ErrInvalidMessage, err)
			}
		}
		return nil
	}
}

// Notify sends a notification (no response expected).
func (c *Conn) Notify(method string, params interface{}) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	return c.write(message{JSONRPC: JSONRPCVersion, Method: method, Params: raw})
}

// OpenStream issues a subscribe request and registers a sink for the
// stream's push notifications. The sink receives each payload in read
// order; end=true is delivered exactly once, after which no more
// payloads arrive.
func (c *Conn) OpenStream(ctx context.Context, method string, params interface{}, sink func(payload json.RawMessage, end bool, errMsg string)) (streamID string, err error) {
	var sub subscribeResult
	if err := c.Call(ctx, method, params, &sub); err != nil {
		return "", err
	}
	if sub.StreamID == "" {
		return "", fmt.Errorf("%w: empty stream id", ErrInvalidMessage)
	}

	c.streamsMu.Lock()
	c.streams[sub.StreamID] = sink
	c.streamsMu.Unlock()
	return sub.StreamID, nil
}

// CloseStream unregisters a stream sink and tells the peer to stop
// emitting. Best-effort; errors are logged only.
func (c *Conn) CloseStream(streamID string) {
	c.streamsMu.Lock()
	delete(c.streams, streamID)
	c.streamsMu.Unlock()

	if err := c.Notify(methodStreamUnsubscribe, streamEnvelope{StreamID: streamID}); err != nil {
		c.log.Debug("stream unsubscribe failed", "stream_id", streamID, "error", err)
	}
}

// ReadLoop reads and dispatches messages until the transport fails or
// ctx is cancelled. Always returns a non-nil error; after it returns
// the connection is closed and all pending calls have failed.
func (c *Conn) ReadLoop(ctx context.Context) error {
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, err := c.transport.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return ErrConnClosed
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("dropping unparseable host message", "error", err)
			continue
		}
		c.dispatch(ctx, msg)
	}
}

// Close tears down the connection: the transport is closed, pending
// calls fail with ErrConnClosed, and every stream sink receives its
// end signal.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.transport.Close()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	c.streamsMu.Lock()
	sinks := make([]func(json.RawMessage, bool, string), 0, len(c.streams))
	for id, sink := range c.streams {
		sinks = append(sinks, sink)
		delete(c.streams, id)
	}
	c.streamsMu.Unlock()

	for _, sink := range sinks {
		sink(nil, true, ErrConnClosed.Error())
	}
	return err
}

func (c *Conn) dispatch(ctx context.Context, msg message) {
	switch {
	case msg.Method == methodStreamEmit || msg.Method == methodStreamEnd:
		c.dispatchStream(msg)

	case msg.Method != "" && msg.ID != 0:
		// Incoming request; only connections with a handler serve these.
		go c.serveRequest(ctx, msg)

	case msg.Method != "":
		// Notification. Offered to the handler; result and error are
		// discarded per JSON-RPC semantics.
		c.handlerMu.RLock()
		handler := c.handler
		c.handlerMu.RUnlock()
		if handler == nil {
			c.log.Debug("ignoring notification", "method", msg.Method)
			return
		}
		go func() {
			if _, err := handler(ctx, msg.Method, msg.Params); err != nil {
				c.log.Debug("notification handler failed", "method", msg.Method, "error", err)
			}
		}()

	case msg.ID != 0:
		c.pendingMu.Lock()
		ch, ok := c.pending[msg.ID]
		c.pendingMu.Unlock()
		if ok {
			select {
			case ch <- msg:
			default:
			}
		}

	default:
		c.log.Warn("dropping message with neither id nor method")
	}
}

func (c *Conn) dispatchStream(msg message) {
	var env streamEnvelope
	if err := json.Unmarshal(msg.Params, &env); err != nil {
		c.log.Warn("bad stream envelope", "error", err)
		return
	}

	c.streamsMu.Lock()
	sink, ok := c.streams[env.StreamID]
	if msg.Method == methodStreamEnd {
		delete(c.streams, env.StreamID)
	}
	c.streamsMu.Unlock()

	if !ok {
		// Emissions racing a local unsubscribe are expected; drop them.
		return
	}
	if msg.Method == methodStreamEnd {
		sink(nil, true, env.Error)
		return
	}
	sink(env.Payload, false, "")
}

func (c *Conn) serveRequest(ctx context.Context, msg message) {
	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()

	resp := message{JSONRPC: JSONRPCVersion, ID: msg.ID}
	if handler == nil {
		resp.Error = &wireError{Code: CodeMethodNotFound, Message: "no handler for " + msg.Method}
	} else {
		result, err := handler(ctx, msg.Method, msg.Params)
		if err != nil {
			resp.Error = toWireError(err)
		} else if raw, merr := json.Marshal(result); merr != nil {
			resp.Error = &wireError{Code: CodeInternalError, Message: merr.Error()}
		} else {
			resp.Result = raw
		}
	}

	if err := c.write(resp); err != nil {
		c.log.Debug("response write failed", "method", msg.Method, "error", err)
	}
}

func (c *Conn) write(msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.transport.WriteMessage(data)
}

func marshalParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return raw, nil
}

func toWireError(err error) *wireError {
	var hostErr *HostError
	if errors.As(err, &hostErr) {
		return &wireError{Code: hostErr.Code, Message: hostErr.Message, Data: hostErr.Data}
	}
	if errors.Is(err, ErrUnknownViewer) {
		return &wireError{Code: CodeUnknownViewer, Message: err.Error()}
	}
	return &wireError{Code: CodeServerError, Message: err.Error()}
}
