// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AleutianAI/AleutianCodeView/services/codeview/hostbridge"
)

var (
	flagListen   string
	flagFixtures string
)

var fakehostCmd = &cobra.Command{
	Use:   "fakehost",
	Short: "Run a scriptable extension host for development",
	Long: `Serves a websocket extension host backed by YAML fixtures.

The endpoint layout:

  /ws       websocket, JSON-RPC extension host protocol
  /healthz  liveness probe
  /metrics  Prometheus metrics

Fixture files in the --fixtures directory are hot-reloaded on change.`,
	RunE: runFakehost,
}

func init() {
	fakehostCmd.Flags().StringVar(&flagListen, "listen", ":7411", "Listen address")
	fakehostCmd.Flags().StringVar(&flagFixtures, "fixtures", "", "Directory of YAML fixture files (optional)")
}

// fixtureHost layers fixture-driven streams over the in-memory fake:
// new decoration and status bar subscriptions immediately receive the
// fixture payload for the viewer's file.
type fixtureHost struct {
	*hostbridge.FakeHost
	store *fixtureStore
}

func newFixtureHost(store *fixtureStore) *fixtureHost {
	fake := hostbridge.NewFakeHost()
	fake.HoverFunc = func(params hostbridge.QueryParams) (*hostbridge.HoverResult, error) {
		return store.hoverFor(params), nil
	}
	return &fixtureHost{FakeHost: fake, store: store}
}

func (h *fixtureHost) TextDocumentDecorations(ctx context.Context, handle hostbridge.ViewerHandle) (*hostbridge.Subscription[[]hostbridge.TextDocumentDecoration], error) {
	sub, err := h.FakeHost.TextDocumentDecorations(ctx, handle)
	if err != nil {
		return nil, err
	}
	if uri, ok := h.ViewerResource(handle); ok {
		if decorations := h.store.decorationsFor(fragmentPath(uri)); len(decorations) > 0 {
			sub.Emit(decorations)
		}
	}
	return sub, nil
}

func (h *fixtureHost) StatusBarItems(ctx context.Context, handle hostbridge.ViewerHandle) (*hostbridge.Subscription[[]hostbridge.StatusBarItem], error) {
	sub, err := h.FakeHost.StatusBarItems(ctx, handle)
	if err != nil {
		return nil, err
	}
	if items := h.store.statusBar(); len(items) > 0 {
		sub.Emit(items)
	}
	return sub, nil
}

// fragmentPath extracts the file path from a "git://repo?rev#path"
// resource URI.
func fragmentPath(resource string) string {
	if idx := strings.IndexByte(resource, '#'); idx >= 0 {
		return resource[idx+1:]
	}
	return resource
}

func runFakehost(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := newFixtureStore()
	if flagFixtures != "" {
		if err := store.LoadDir(flagFixtures); err != nil {
			return err
		}
		if err := watchFixtures(ctx, flagFixtures, store, log); err != nil {
			return err
		}
		log.Info("fixtures loaded", "dir", flagFixtures)
	}

	exporter, err := promexporter.New()
	if err != nil {
		return err
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("codeview-fakehost"),
	))
	if err != nil {
		return err
	}
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	))

	host := newFixtureHost(store)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("codeview-fakehost"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}
		connLog := log.With("remote", c.Request.RemoteAddr)
		connLog.Info("host connection opened")
		conn := hostbridge.NewConn(hostbridge.NewWebSocketTransport(ws), connLog)
		if err := hostbridge.Serve(ctx, conn, host, connLog); err != nil {
			connLog.Debug("host connection closed", "error", err)
		}
	})

	srv := &http.Server{Addr: flagListen, Handler: router}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Info("fakehost listening", "addr", flagListen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
