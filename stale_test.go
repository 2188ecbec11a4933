// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package jtmake

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFileAt(t *testing.T, path string, content string, at time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatal(err)
	}
}

func noopMethod(r *Rule) error {
	for _, out := range r.Outputs {
		if err := os.WriteFile(out.Path, []byte("out"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func TestStaleCheckColdBuild(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	writeFileAt(t, in, "x", time.Now())

	r, _ := NewRule("r", []File{NewPlainFile(out)}, []Input{{Key: NestKey{"x"}, File: NewPlainFile(in)}}, noopMethod, nil, nil, NewStrHashMemo(nil, nil))

	status, err := staleCheck(r, false, false, NewHashCache())
	if err != nil {
		t.Fatal(err)
	}
	if status != ShouldUpdate {
		t.Errorf("status = %v, want ShouldUpdate (missing output)", status)
	}
}

func TestStaleCheckUpToDateAfterRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	past := time.Now().Add(-time.Hour)
	writeFileAt(t, in, "x", past)

	r, _ := NewRule("r", []File{NewPlainFile(out)}, []Input{{Key: NestKey{"x"}, File: NewPlainFile(in)}}, noopMethod, nil, nil, NewStrHashMemo(nil, nil))
	cache := NewHashCache()

	if err := r.method(r); err != nil {
		t.Fatal(err)
	}
	postprocess(r, true, cache)

	status, err := staleCheck(r, false, false, cache)
	if err != nil {
		t.Fatal(err)
	}
	if status != UpToDate {
		t.Errorf("status = %v, want UpToDate", status)
	}
}

func TestStaleCheckPlainInputTouch(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	past := time.Now().Add(-time.Hour)
	writeFileAt(t, in, "x", past)
	writeFileAt(t, out, "y", past.Add(time.Minute))

	r, _ := NewRule("r", []File{NewPlainFile(out)}, []Input{{Key: NestKey{"x"}, File: NewPlainFile(in)}}, noopMethod, nil, nil, NewStrHashMemo(nil, nil))
	cache := NewHashCache()
	postprocess(r, true, cache)

	// Confirm up to date first.
	status, err := staleCheck(r, false, false, cache)
	if err != nil || status != UpToDate {
		t.Fatalf("expected UpToDate before touch, got %v %v", status, err)
	}

	writeFileAt(t, in, "x2", time.Now().Add(time.Hour))
	status, err = staleCheck(r, false, false, cache)
	if err != nil {
		t.Fatal(err)
	}
	if status != ShouldUpdate {
		t.Errorf("status = %v, want ShouldUpdate after touching plain input", status)
	}
}

func TestStaleCheckValueInputSameBytes(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	past := time.Now().Add(-time.Hour)
	writeFileAt(t, in, "same-bytes", past)
	writeFileAt(t, out, "y", past.Add(time.Minute))

	r, _ := NewRule("r", []File{NewPlainFile(out)}, []Input{{Key: NestKey{"x"}, File: NewValueFile(in)}}, noopMethod, nil, nil, NewStrHashMemo(nil, nil))
	cache := NewHashCache()
	postprocess(r, true, cache)

	// Rewrite identical content with a newer mtime: content hash matches,
	// so the rule should remain up to date (spec §8 scenario 4).
	writeFileAt(t, in, "same-bytes", time.Now().Add(time.Hour))
	status, err := staleCheck(r, false, false, cache)
	if err != nil {
		t.Fatal(err)
	}
	if status != UpToDate {
		t.Errorf("status = %v, want UpToDate for unchanged value-file bytes", status)
	}
}

func TestStaleCheckValueInputChangedBytes(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	past := time.Now().Add(-time.Hour)
	writeFileAt(t, in, "v1", past)
	writeFileAt(t, out, "y", past.Add(time.Minute))

	r, _ := NewRule("r", []File{NewPlainFile(out)}, []Input{{Key: NestKey{"x"}, File: NewValueFile(in)}}, noopMethod, nil, nil, NewStrHashMemo(nil, nil))
	cache := NewHashCache()
	postprocess(r, true, cache)

	writeFileAt(t, in, "v2", time.Now().Add(time.Hour))
	status, err := staleCheck(r, false, false, cache)
	if err != nil {
		t.Fatal(err)
	}
	if status != ShouldUpdate {
		t.Errorf("status = %v, want ShouldUpdate for changed value-file bytes", status)
	}
}

func TestStaleCheckKeyedMemoForgery(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	key := []byte("0123456789abcdef0123456789abcdef")

	memo, err := NewKeyedMemo([]any{"v1"}, nil, key)
	if err != nil {
		t.Fatal(err)
	}
	r, _ := NewRule("r", []File{NewPlainFile(out)}, nil, noopMethod, nil, nil, memo)
	cache := NewHashCache()
	if err := r.method(r); err != nil {
		t.Fatal(err)
	}
	postprocess(r, true, cache)

	status, err := staleCheck(r, false, false, cache)
	if err != nil || status != UpToDate {
		t.Fatalf("expected UpToDate right after recording, got %v %v", status, err)
	}

	// Forge the metadata's args field.
	rec, ok := loadMetadata(r.MetadataPath())
	if !ok {
		t.Fatal("expected metadata to be present")
	}
	rec.Args = "deadbeef"
	if err := saveMetadata(r.MetadataPath(), rec); err != nil {
		t.Fatal(err)
	}

	status, err = staleCheck(r, false, false, cache)
	if err != nil {
		t.Fatal(err)
	}
	if status != ShouldUpdate {
		t.Errorf("status = %v, want ShouldUpdate after MAC mismatch", status)
	}
}

func TestStaleCheckMissingInputNonDryFails(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	missing := filepath.Join(dir, "missing.txt")
	r, _ := NewRule("r", []File{NewPlainFile(out)}, []Input{{Key: NestKey{"x"}, File: NewPlainFile(missing)}}, noopMethod, nil, nil, NewStrHashMemo(nil, nil))

	_, err := staleCheck(r, false, false, NewHashCache())
	if err == nil {
		t.Fatal("expected MissingInput error")
	}
	if k, ok := KindOf(err); !ok || k != KindMissingInput {
		t.Errorf("kind = %v, want KindMissingInput", k)
	}
}

func TestStaleCheckMissingInputDrySucceeds(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	missing := filepath.Join(dir, "missing.txt")
	r, _ := NewRule("r", []File{NewPlainFile(out)}, []Input{{Key: NestKey{"x"}, File: NewPlainFile(missing)}}, noopMethod, nil, nil, NewStrHashMemo(nil, nil))

	status, err := staleCheck(r, false, true, NewHashCache())
	if err != nil {
		t.Fatal(err)
	}
	if status != ShouldUpdate {
		t.Errorf("status = %v, want ShouldUpdate in dry run", status)
	}
}

func TestStaleCheckZeroMtimeOutputFailureMarker(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	writeFileAt(t, out, "y", time.Unix(0, 0))

	r, _ := NewRule("r", []File{NewPlainFile(out)}, nil, noopMethod, nil, nil, NewStrHashMemo(nil, nil))
	status, err := staleCheck(r, false, false, NewHashCache())
	if err != nil {
		t.Fatal(err)
	}
	if status != ShouldUpdate {
		t.Errorf("status = %v, want ShouldUpdate for zero-mtime output", status)
	}
}

func TestExplainMatchesStaleCheckVerdict(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	past := time.Now().Add(-time.Hour)
	writeFileAt(t, in, "x", past)

	r, _ := NewRule("r", []File{NewPlainFile(out)}, []Input{{Key: NestKey{"x"}, File: NewPlainFile(in)}}, noopMethod, nil, nil, NewStrHashMemo(nil, nil))
	cache := NewHashCache()

	status, reason, err := Explain(r, cache)
	if err != nil {
		t.Fatal(err)
	}
	if status != ShouldUpdate || reason == "" {
		t.Errorf("status = %v reason = %q, want ShouldUpdate with a non-empty reason", status, reason)
	}

	if err := r.method(r); err != nil {
		t.Fatal(err)
	}
	postprocess(r, true, cache)

	status, reason, err = Explain(r, cache)
	if err != nil {
		t.Fatal(err)
	}
	if status != UpToDate {
		t.Errorf("status = %v, want UpToDate after a run, reason = %q", status, reason)
	}
}

func TestStaleCheckDryRunParentPropagation(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	past := time.Now().Add(-time.Hour)
	writeFileAt(t, out, "y", past)

	r, _ := NewRule("r", []File{NewPlainFile(out)}, nil, noopMethod, nil, nil, NewStrHashMemo(nil, nil))
	cache := NewHashCache()
	postprocess(r, true, cache)

	status, err := staleCheck(r, true, true, cache)
	if err != nil {
		t.Fatal(err)
	}
	if status != ShouldUpdate {
		t.Errorf("status = %v, want ShouldUpdate when a parent is updating during a dry run", status)
	}
}
