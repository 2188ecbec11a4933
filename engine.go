// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package jtmake

import (
	"fmt"
	"path/filepath"
)

// MemoKind selects which argument-memoization strategy an Engine's rules
// use (spec §6).
type MemoKind int

const (
	// StrHashKind hashes a canonical textual form of the arguments.
	StrHashKind MemoKind = iota
	// KeyedKind authenticates the canonical bytes with a caller-supplied
	// HMAC key.
	KeyedKind
)

// EngineOptions are the front-end-supplied construction options from
// spec §6: memo_kind, pickle_key (required iff memo_kind is keyed),
// and dirname xor prefix for resolving rule output paths.
type EngineOptions struct {
	MemoKind MemoKind
	// PickleKey is required iff MemoKind == KeyedKind; raw bytes or a hex
	// string decoded via DecodeKey. Supplying it under StrHashKind is a
	// construction error.
	PickleKey []byte

	// Dirname xor Prefix: exactly one may be set.
	Dirname string
	Prefix  string
}

// Engine binds a MemoKind/key pair and a path resolution policy, producing
// Rule values whose memo variant matches the front end's configuration.
type Engine struct {
	opts EngineOptions
}

// NewEngine validates opts and returns a ready-to-use Engine.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.MemoKind == KeyedKind && len(opts.PickleKey) == 0 {
		return nil, newErr(KindInvalidKey, "", fmt.Errorf("memo_kind=keyed requires a pickle_key"))
	}
	if opts.MemoKind == StrHashKind && len(opts.PickleKey) != 0 {
		return nil, fmt.Errorf("pickle_key supplied under memo_kind=str_hash")
	}
	if opts.Dirname != "" && opts.Prefix != "" {
		return nil, fmt.Errorf("dirname and prefix are mutually exclusive")
	}
	return &Engine{opts: opts}, nil
}

// ResolvePath applies the engine's dirname/prefix policy to a rule-relative
// path. An absolute path is returned unchanged.
func (e *Engine) ResolvePath(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	switch {
	case e.opts.Dirname != "":
		return filepath.Join(e.opts.Dirname, relPath)
	case e.opts.Prefix != "":
		return e.opts.Prefix + relPath
	default:
		return relPath
	}
}

// NewMemo builds the memo variant matching the engine's configuration.
func (e *Engine) NewMemo(args []any, kwargs map[string]any) (Memo, error) {
	switch e.opts.MemoKind {
	case KeyedKind:
		return NewKeyedMemo(args, kwargs, e.opts.PickleKey)
	default:
		return NewStrHashMemo(args, kwargs), nil
	}
}

// NewRule builds a Rule through the engine, binding the memo variant
// configured at construction time.
func (e *Engine) NewRule(name string, outputs []File, inputs []Input, method Method, args []any, kwargs map[string]any) (*Rule, error) {
	memo, err := e.NewMemo(args, kwargs)
	if err != nil {
		return nil, err
	}
	return NewRule(name, outputs, inputs, method, args, kwargs, memo)
}
