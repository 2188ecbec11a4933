// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package jtmake

import "testing"

func TestNewEngineKeyedRequiresKey(t *testing.T) {
	_, err := NewEngine(EngineOptions{MemoKind: KeyedKind})
	if err == nil {
		t.Fatal("expected error constructing keyed engine without a key")
	}
}

func TestNewEngineStrHashRejectsKey(t *testing.T) {
	_, err := NewEngine(EngineOptions{MemoKind: StrHashKind, PickleKey: []byte("x")})
	if err == nil {
		t.Fatal("expected error supplying a key under str_hash")
	}
}

func TestNewEngineRejectsDirnameAndPrefix(t *testing.T) {
	_, err := NewEngine(EngineOptions{Dirname: "a", Prefix: "b"})
	if err == nil {
		t.Fatal("expected error when both dirname and prefix are set")
	}
}

func TestEngineResolvePath(t *testing.T) {
	e, err := NewEngine(EngineOptions{Dirname: "/build"})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := e.ResolvePath("out.txt"), "/build/out.txt"; got != want {
		t.Errorf("ResolvePath = %q, want %q", got, want)
	}
}

func TestEngineNewRuleUsesConfiguredMemo(t *testing.T) {
	e, err := NewEngine(EngineOptions{MemoKind: KeyedKind, PickleKey: []byte("0123456789abcdef")})
	if err != nil {
		t.Fatal(err)
	}
	r, err := e.NewRule("r", []File{NewPlainFile("/tmp/out")}, nil, noopMethod, []any{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.memo.(*KeyedMemo); !ok {
		t.Errorf("expected KeyedMemo, got %T", r.memo)
	}
}
