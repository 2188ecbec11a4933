// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print every rule and its dependencies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(cmd.Context())
		if err != nil {
			return err
		}
		rules := g.Rules()
		for i, r := range rules {
			fmt.Printf("%s %s\n", color.CyanString("#%d", i), r.Name)
			for _, out := range r.Outputs {
				fmt.Printf("    -> %s%s\n", out.Path, sizeSuffix(out.Path))
			}
			for _, d := range r.DepRules {
				fmt.Printf("    depends on #%d (%s)\n", d, rules[d].Name)
			}
		}
		return nil
	},
}

func sizeSuffix(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(" (%s)", humanize.Bytes(uint64(info.Size())))
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
