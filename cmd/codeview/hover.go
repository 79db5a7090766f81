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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCodeView/services/codeview/document"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/hostbridge"
	"github.com/AleutianAI/AleutianCodeView/services/codeview/viewer"
)

var (
	flagHost      string
	flagRepo      string
	flagRev       string
	flagCommit    string
	flagPath      string
	flagFile      string
	flagLang      string
	flagLine      int
	flagCharacter int
	flagTimeout   time.Duration
)

var hoverCmd = &cobra.Command{
	Use:   "hover",
	Short: "Register a viewer and issue one hover query",
	Long: `Reads file content from --file or stdin, announces it to the
extension host, registers a viewer and prints the hover result at
--line:--character (1-based).`,
	RunE: runHover,
}

func init() {
	hoverCmd.Flags().StringVar(&flagHost, "host", "ws://localhost:7411/ws", "Extension host websocket URL")
	hoverCmd.Flags().StringVar(&flagRepo, "repo", "", "Repository name")
	hoverCmd.Flags().StringVar(&flagRev, "rev", "HEAD", "Revision")
	hoverCmd.Flags().StringVar(&flagCommit, "commit", "", "Resolved commit ID (defaults to --rev)")
	hoverCmd.Flags().StringVar(&flagPath, "path", "", "File path within the repository")
	hoverCmd.Flags().StringVar(&flagFile, "file", "", "Read content from this file instead of stdin")
	hoverCmd.Flags().StringVar(&flagLang, "lang", "go", "Language mode")
	hoverCmd.Flags().IntVar(&flagLine, "line", 1, "1-based line")
	hoverCmd.Flags().IntVar(&flagCharacter, "character", 1, "1-based character")
	hoverCmd.Flags().DurationVar(&flagTimeout, "timeout", 15*time.Second, "Overall deadline")
	_ = hoverCmd.MarkFlagRequired("repo")
	_ = hoverCmd.MarkFlagRequired("path")
}

func runHover(cmd *cobra.Command, args []string) error {
	if flagLine < 1 || flagCharacter < 1 {
		return fmt.Errorf("--line and --character are 1-based and must be >= 1")
	}

	content, err := readContent()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	client, conn, err := hostbridge.Dial(ctx, flagHost, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	commit := flagCommit
	if commit == "" {
		commit = flagRev
	}
	snapshot := document.Snapshot{
		RepoName:     flagRepo,
		Revision:     flagRev,
		CommitID:     commit,
		FilePath:     flagPath,
		LanguageMode: flagLang,
		Content:      string(content),
	}

	registrar := viewer.NewRegistrar(client, log)
	state := document.Point(flagLine-1, flagCharacter-1)
	reg, err := registrar.Register(ctx, snapshot, state, true)
	if err != nil {
		return fmt.Errorf("register viewer: %w", err)
	}
	defer reg.Release()

	pos, _ := state.PositionOf()
	hover, err := client.Hover(ctx, hostbridge.QueryParams{
		RepoName:     snapshot.RepoName,
		Revision:     snapshot.Revision,
		CommitID:     snapshot.CommitID,
		FilePath:     snapshot.FilePath,
		LanguageMode: snapshot.LanguageMode,
		Position:     pos,
	})
	if err != nil {
		return fmt.Errorf("hover query: %w", err)
	}

	if hover == nil {
		fmt.Printf("no hover at %s:%d:%d\n", flagPath, flagLine, flagCharacter)
		return nil
	}
	fmt.Println(hover.Contents.Value)
	return nil
}

func readContent() ([]byte, error) {
	if flagFile != "" {
		data, err := os.ReadFile(flagFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", flagFile, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return data, nil
}
