// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command codeview bundles development tooling for the code view
// engine: a scriptable fake extension host and a hover probe that
// exercises the full bridge from the command line.
//
// Usage:
//
//	codeview fakehost --listen :7411 --fixtures ./fixtures
//	cat main.go | codeview hover --host ws://localhost:7411/ws \
//	  --repo github.com/acme/widgets --rev main --path main.go --line 12 --character 5
package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCodeView/pkg/logging"
)

var (
	flagLogLevel string
	flagLogJSON  bool
	flagLogDir   string
	flagQuiet    bool

	log *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:           "codeview",
	Short:         "Development tools for the code view intelligence engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logging.New(logging.Config{
			Level:   parseLevel(flagLogLevel),
			LogDir:  flagLogDir,
			Service: "codeview",
			JSON:    flagLogJSON || !isatty.IsTerminal(os.Stderr.Fd()),
			Quiet:   flagQuiet,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Close()
		}
	},
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Force JSON log output (default when stderr is not a TTY)")
	rootCmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "", "Also write JSON logs to this directory")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "Suppress stderr logging")

	rootCmd.AddCommand(fakehostCmd)
	rootCmd.AddCommand(hoverCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error("command failed", "error", err)
		}
		os.Exit(1)
	}
}
