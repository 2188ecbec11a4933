// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelocantos/jtmake"
)

func TestLoopRebuildsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(src, []byte("v1"), 0o644))

	var runs int32
	method := func(r *jtmake.Rule) error {
		atomic.AddInt32(&runs, 1)
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return os.WriteFile(r.Outputs[0].Path, data, 0o644)
	}

	r, err := jtmake.NewRule("copy", []jtmake.File{jtmake.NewPlainFile(out)},
		[]jtmake.Input{{Key: jtmake.NestKey{0}, File: jtmake.NewPlainFile(src)}},
		method, nil, nil, jtmake.NewStrHashMemo(nil, nil))
	require.NoError(t, err)
	g, err := jtmake.NewGraph([]*jtmake.Rule{r})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Loop(ctx, g, Options{
			Targets:  []string{out},
			Opts:     jtmake.Options{Njobs: 1},
			Debounce: 10 * time.Millisecond,
		})
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 1
	}, 2*time.Second, 10*time.Millisecond, "initial build never ran")

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(src, []byte("v2"), 0o644))
	require.NoError(t, os.Chtimes(src, future, future))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2
	}, 2*time.Second, 10*time.Millisecond, "watch loop never rebuilt after file change")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not return after context cancellation")
	}
}
