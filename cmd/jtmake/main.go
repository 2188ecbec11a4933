// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

// Command jtmake drives a jtmake.Graph loaded from a declarative YAML rule
// file, replacing the teacher's flag-based, Makefile-text-driven cmd/mk.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(color.Error, color.RedString("error:"), err)
		os.Exit(1)
	}
}
