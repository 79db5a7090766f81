// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package viewer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/hostbridge"
)

func testSnapshot(path string) document.Snapshot {
	return document.Snapshot{
		RepoName:     "github.com/acme/widgets",
		Revision:     "main",
		CommitID:     "c0ffee11c0ffee11c0ffee11c0ffee11c0ffee11",
		FilePath:     path,
		LanguageMode: "go",
		Content:      "package widgets\n",
	}
}

func TestRegistrar_Register(t *testing.T) {
	fake := hostbridge.NewFakeHost()
	registrar := NewRegistrar(fake, nil)
	ctx := context.Background()
	snapshot := testSnapshot("widgets.go")

	line := 7
	state := document.PositionState{Line: &line}
	reg, err := registrar.Register(ctx, snapshot, state, true)
	require.NoError(t, err)
	require.False(t, reg.Handle.IsZero())

	doc, ok := fake.Document(snapshot.URI())
	require.True(t, ok, "document announced before viewer")
	assert.Equal(t, snapshot.Content, doc.Text)
	assert.Equal(t, "go", doc.LanguageID)
	assert.Equal(t, 1, fake.LiveViewers())

	sels := fake.Selections(reg.Handle)
	require.Len(t, sels, 1)
	assert.Equal(t, 7, sels[0].Start.Line)
	assert.Equal(t, sels[0].Start, sels[0].End, "plain position maps to a zero-width selection")
}

func TestRegistrar_RegisterNilHost(t *testing.T) {
	registrar := NewRegistrar(nil, nil)
	_, err := registrar.Register(context.Background(), testSnapshot("a.go"), document.PositionState{}, true)
	assert.ErrorIs(t, err, hostbridge.ErrHostUnavailable)
}

func TestRegistrar_ReleaseRemovesViewer(t *testing.T) {
	fake := hostbridge.NewFakeHost()
	registrar := NewRegistrar(fake, nil)
	ctx := context.Background()

	reg, err := registrar.Register(ctx, testSnapshot("a.go"), document.PositionState{}, true)
	require.NoError(t, err)

	reg.Release()
	assert.Equal(t, 0, fake.LiveViewers())
	assert.Equal(t, 1, fake.RemovalCount(reg.Handle))

	// Double release is tolerated; the second host call fails quietly.
	reg.Release()
	assert.Equal(t, 2, fake.RemovalCount(reg.Handle))
}

func TestRegistrar_RegisterAll(t *testing.T) {
	fake := hostbridge.NewFakeHost()
	registrar := NewRegistrar(fake, nil)
	ctx := context.Background()

	snapshots := []document.Snapshot{testSnapshot("base.go"), testSnapshot("head.go")}
	regs, err := registrar.RegisterAll(ctx, snapshots, document.PositionState{}, 1)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, 2, fake.LiveViewers())
	assert.NotEqual(t, regs[0].Handle, regs[1].Handle)

	for _, reg := range regs {
		reg.Release()
	}
	assert.Equal(t, 0, fake.LiveViewers())
}

func TestRegistrar_UpdateSelections(t *testing.T) {
	fake := hostbridge.NewFakeHost()
	registrar := NewRegistrar(fake, nil)
	ctx := context.Background()

	reg, err := registrar.Register(ctx, testSnapshot("a.go"), document.PositionState{}, true)
	require.NoError(t, err)

	err = registrar.UpdateSelections(ctx, reg, document.Point(3, 5))
	require.NoError(t, err)

	sels := fake.Selections(reg.Handle)
	require.Len(t, sels, 1)
	assert.Equal(t, document.Position{Line: 3, Character: 5}, sels[0].Start)

	err = registrar.UpdateSelections(ctx, nil, document.PositionState{})
	assert.ErrorIs(t, err, hostbridge.ErrUnknownViewer)
}
