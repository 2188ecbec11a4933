// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/marcelocantos/jtmake"
)

var whyCmd = &cobra.Command{
	Use:   "why <target>",
	Short: "Explain whether a target is up to date, and why",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(cmd.Context())
		if err != nil {
			return err
		}
		idx, ok := g.Resolve(args[0])
		if !ok {
			return fmt.Errorf("no rule produces %q", args[0])
		}
		rule := g.Rules()[idx]

		status, reason, err := jtmake.Explain(rule, jtmake.NewHashCache())
		if err != nil {
			return err
		}

		verdict := color.GreenString(status.String())
		if status == jtmake.ShouldUpdate {
			verdict = color.YellowString(status.String())
		}
		fmt.Printf("%s: %s\n  %s\n", rule.Name, verdict, reason)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whyCmd)
}
