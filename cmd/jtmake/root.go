// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcelocantos/jtmake"
	"github.com/marcelocantos/jtmake/config"
)

var rootCmd = &cobra.Command{
	Use:           "jtmake",
	Short:         "jtmake - a memoizing build graph for programs, not shell scripts",
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "file", "f", "jtmake.yaml", "rule graph file")
}

// loadGraph parses configPath into a jtmake.Graph, with the CLI's built-in
// "shell" method as the only method its rules can reference.
func loadGraph(ctx context.Context) (*jtmake.Graph, error) {
	return config.Load(configPath, shellMethods(ctx))
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
