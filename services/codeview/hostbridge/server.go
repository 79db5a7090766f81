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
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianCodeView/pkg/logging"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
)

// Serve exposes a Host implementation to the remote peer of conn,
// translating incoming JSON-RPC requests into Host calls and pumping
// Host subscriptions out as push-stream notifications.
//
// Serve blocks until the connection fails or ctx is cancelled. All
// stream pumps are stopped before it returns.
func Serve(ctx context.Context, conn *Conn, host Host, log *logging.Logger) error {
	if log == nil {
		log = logging.Nop()
	}
	srv := &server{conn: conn, host: host, log: log, pumps: make(map[string]func())}
	conn.SetHandler(srv.handle)

	err := conn.ReadLoop(ctx)
	srv.stopAll()
	return err
}

// server holds per-connection serving state: one pump goroutine per
// open push stream.
type server struct {
	conn *Conn
	host Host
	log  *logging.Logger

	mu    sync.Mutex
	pumps map[string]func() // streamID -> stop
}

func (s *server) handle(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case methodAddTextDocument:
		var doc TextDocumentItem
		if err := unmarshalParams(params, &doc); err != nil {
			return nil, err
		}
		return struct{}{}, s.host.AddTextDocumentIfNotExists(ctx, doc)

	case methodAddViewer:
		var viewerParams ViewerParams
		if err := unmarshalParams(params, &viewerParams); err != nil {
			return nil, err
		}
		handle, err := s.host.AddViewerIfNotExists(ctx, viewerParams)
		if err != nil {
			return nil, err
		}
		return map[string]string{"viewerId": string(handle)}, nil

	case methodRemoveViewer:
		var ref viewerRef
		if err := unmarshalParams(params, &ref); err != nil {
			return nil, err
		}
		return struct{}{}, s.host.RemoveViewer(ctx, ViewerHandle(ref.ViewerID))

	case methodSetSelections:
		var req struct {
			ViewerID   string           `json:"viewerId"`
			Selections []document.Range `json:"selections"`
		}
		if err := unmarshalParams(params, &req); err != nil {
			return nil, err
		}
		return struct{}{}, s.host.SetEditorSelections(ctx, ViewerHandle(req.ViewerID), req.Selections)

	case methodHover:
		var query QueryParams
		if err := unmarshalParams(params, &query); err != nil {
			return nil, err
		}
		return s.host.Hover(ctx, query)

	case methodDefinition:
		var query QueryParams
		if err := unmarshalParams(params, &query); err != nil {
			return nil, err
		}
		return s.host.Definition(ctx, query)

	case methodDocumentHighlights:
		var query QueryParams
		if err := unmarshalParams(params, &query); err != nil {
			return nil, err
		}
		return s.host.DocumentHighlights(ctx, query)

	case methodSubscribeDecoration:
		return s.subscribe(ctx, params, func(handle ViewerHandle) (streamPump, error) {
			sub, err := s.host.TextDocumentDecorations(ctx, handle)
			if err != nil {
				return streamPump{}, err
			}
			return pumpOf(sub), nil
		})

	case methodSubscribeStatusBar:
		return s.subscribe(ctx, params, func(handle ViewerHandle) (streamPump, error) {
			sub, err := s.host.StatusBarItems(ctx, handle)
			if err != nil {
				return streamPump{}, err
			}
			return pumpOf(sub), nil
		})

	case methodStreamUnsubscribe:
		var env streamEnvelope
		if err := unmarshalParams(params, &env); err != nil {
			return nil, err
		}
		s.stopPump(env.StreamID)
		return struct{}{}, nil

	default:
		return nil, &HostError{Code: CodeMethodNotFound, Message: "unknown method " + method}
	}
}

// streamPump abstracts a typed Subscription for the pump loop: next
// blocks for the next JSON-encoded payload, done signals stream end.
type streamPump struct {
	next func() (json.RawMessage, bool)
	stop func()
}

func pumpOf[T any](sub *Subscription[T]) streamPump {
	return streamPump{
		next: func() (json.RawMessage, bool) {
			select {
			case value := <-sub.Events():
				raw, err := json.Marshal(value)
				if err != nil {
					return nil, false
				}
				return raw, true
			case <-sub.Done():
				return nil, false
			}
		},
		stop: sub.Stop,
	}
}

func (s *server) subscribe(ctx context.Context, params json.RawMessage, open func(ViewerHandle) (streamPump, error)) (interface{}, error) {
	var ref viewerRef
	if err := unmarshalParams(params, &ref); err != nil {
		return nil, err
	}

	pump, err := open(ViewerHandle(ref.ViewerID))
	if err != nil {
		return nil, err
	}

	streamID := uuid.NewString()
	s.mu.Lock()
	s.pumps[streamID] = pump.stop
	s.mu.Unlock()

	go s.runPump(streamID, pump)
	return subscribeResult{StreamID: streamID}, nil
}

func (s *server) runPump(streamID string, pump streamPump) {
	for {
		payload, ok := pump.next()
		if !ok {
			break
		}
		if err := s.conn.Notify(methodStreamEmit, streamEnvelope{StreamID: streamID, Payload: payload}); err != nil {
			s.log.Debug("stream emit failed", "stream_id", streamID, "error", err)
			break
		}
	}

	s.stopPump(streamID)
	if err := s.conn.Notify(methodStreamEnd, streamEnvelope{StreamID: streamID}); err != nil {
		s.log.Debug("stream end notify failed", "stream_id", streamID, "error", err)
	}
}

func (s *server) stopPump(streamID string) {
	s.mu.Lock()
	stop, ok := s.pumps[streamID]
	delete(s.pumps, streamID)
	s.mu.Unlock()
	if ok {
		stop()
	}
}

func (s *server) stopAll() {
	s.mu.Lock()
	stops := make([]func(), 0, len(s.pumps))
	for id, stop := range s.pumps {
		stops = append(stops, stop)
		delete(s.pumps, id)
	}
	s.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

func unmarshalParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("%w: missing params", ErrInvalidMessage)
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}
