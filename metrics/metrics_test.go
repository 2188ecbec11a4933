// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelocantos/jtmake"
)

func TestAdapterObservesRuleOutcomes(t *testing.T) {
	Reset()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0o644))

	method := func(r *jtmake.Rule) error {
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

	sum, err := g.Make(context.Background(), []string{out}, jtmake.Options{Njobs: 1, Observer: Adapter{}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)
	body := rec.Body.String()
	assert.Contains(t, body, "jtmake_rules_total")
	assert.Contains(t, body, `rule="copy"`)
	assert.Contains(t, body, `outcome="updated"`)
	assert.True(t, strings.Contains(body, "jtmake_build_duration_seconds"))
	assert.True(t, strings.Contains(body, "jtmake_stale_check_duration_seconds"))
}

func TestObserveStaleCheckAndBuildDirectly(t *testing.T) {
	Reset()
	ObserveStaleCheck("r", 5*time.Millisecond)
	ObserveBuild(10 * time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `rule="r"`)
}
