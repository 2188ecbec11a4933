// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/marcelocantos/jtmake"
	"github.com/marcelocantos/jtmake/metrics"
	"github.com/marcelocantos/jtmake/watch"
)

var watchConfig struct {
	njobs      int
	keepGoing  bool
	verbose    bool
	metricsAddr string
}

var watchCmd = &cobra.Command{
	Use:   "watch [targets...]",
	Short: "Rebuild targets whenever one of their inputs changes on disk",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g, err := loadGraph(ctx)
		if err != nil {
			return err
		}

		if watchConfig.metricsAddr != "" {
			server := &http.Server{Addr: watchConfig.metricsAddr, Handler: metrics.Handler()}
			go func() {
				_ = server.ListenAndServe()
			}()
			fmt.Printf("serving metrics on %s\n", watchConfig.metricsAddr)
		}

		return watch.Loop(ctx, g, watch.Options{
			Targets: args,
			Opts: jtmake.Options{
				Njobs:     watchConfig.njobs,
				KeepGoing: watchConfig.keepGoing,
				Logger:    newLogger(watchConfig.verbose),
				Observer:  metrics.Adapter{},
			},
		})
	},
}

func init() {
	watchCmd.Flags().IntVarP(&watchConfig.njobs, "jobs", "j", 1, "maximum number of concurrent rule methods")
	watchCmd.Flags().BoolVarP(&watchConfig.keepGoing, "keep-going", "k", true, "keep building independent targets after a failure")
	watchCmd.Flags().BoolVarP(&watchConfig.verbose, "verbose", "v", false, "log debug-level rule state transitions")
	watchCmd.Flags().StringVar(&watchConfig.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while watching (e.g. :9090)")
	rootCmd.AddCommand(watchCmd)
}
