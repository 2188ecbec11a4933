// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/marcelocantos/jtmake"
	"github.com/marcelocantos/jtmake/metrics"
)

var buildConfig struct {
	dryRun    bool
	keepGoing bool
	njobs     int
	verbose   bool
	withMetrics bool
}

var buildCmd = &cobra.Command{
	Use:     "build [targets...]",
	Aliases: []string{"b"},
	Short:   "Build one or more targets, skipping rules that are already up to date",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g, err := loadGraph(ctx)
		if err != nil {
			return err
		}

		opts := jtmake.Options{
			DryRun:    buildConfig.dryRun,
			KeepGoing: buildConfig.keepGoing,
			Njobs:     buildConfig.njobs,
			Logger:    newLogger(buildConfig.verbose),
		}
		if buildConfig.withMetrics {
			opts.Observer = metrics.Adapter{}
		}

		start := time.Now()
		sum, buildErr := g.Make(ctx, args, opts)
		elapsed := time.Since(start)

		fmt.Printf("%s total=%d updated=%s skipped=%d failed=%s (%s)\n",
			verdictBanner(buildErr == nil),
			sum.Total,
			color.GreenString("%d", sum.Updated),
			sum.Skipped,
			failedColor(sum.Failed),
			elapsed.Round(time.Millisecond))

		return buildErr
	},
}

func verdictBanner(ok bool) string {
	if ok {
		return color.GreenString("build ok")
	}
	return color.RedString("build failed")
}

func failedColor(n int) string {
	if n == 0 {
		return "0"
	}
	return color.RedString("%d", n)
}

func init() {
	buildCmd.Flags().BoolVarP(&buildConfig.dryRun, "dry-run", "n", false, "report what would run, without running it")
	buildCmd.Flags().BoolVarP(&buildConfig.keepGoing, "keep-going", "k", false, "keep building independent targets after a failure")
	buildCmd.Flags().IntVarP(&buildConfig.njobs, "jobs", "j", 1, "maximum number of concurrent rule methods")
	buildCmd.Flags().BoolVarP(&buildConfig.verbose, "verbose", "v", false, "log debug-level rule state transitions")
	buildCmd.Flags().BoolVar(&buildConfig.withMetrics, "metrics", false, "record Prometheus metrics for this run")
	rootCmd.AddCommand(buildCmd)
}
