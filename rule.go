// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package jtmake

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Method is the user-supplied procedure a Rule runs when stale. It receives
// the rule that invoked it so it can read its own outputs/inputs.
type Method func(r *Rule) error

// Input pairs a nest key with the file it names inside a rule's argument
// tree.
type Input struct {
	Key  NestKey
	File File
}

// Rule is a DAG node producing one or more output files from zero or more
// input files via a user-supplied method. Rules are immutable once
// constructed; the graph that owns them assigns DepRules.
type Rule struct {
	Name    string
	Outputs []File
	Inputs  []Input

	// DepRules holds the indices (within the owning Graph's rule slice) of
	// every rule that produces one of this rule's inputs. Built by the
	// Graph, not by NewRule — a standalone Rule has no notion of index.
	DepRules []int

	method Method
	args   []any
	kwargs map[string]any
	memo   Memo
}

// NewRule constructs a rule. memo is bound once, at construction, from args
// and kwargs, per spec §3's immutability invariant. outputs must be
// non-empty.
func NewRule(name string, outputs []File, inputs []Input, method Method, args []any, kwargs map[string]any, memo Memo) (*Rule, error) {
	if len(outputs) == 0 {
		return nil, newErr(KindInvalidRule, name, fmt.Errorf("rule %q has no outputs", name))
	}
	return &Rule{
		Name:    name,
		Outputs: outputs,
		Inputs:  inputs,
		method:  method,
		args:    args,
		kwargs:  kwargs,
		memo:    memo,
	}, nil
}

// Kwarg returns the named keyword argument the rule was constructed with,
// or nil if it was not supplied. Front ends use this to pass method
// configuration (e.g. a shell command string) without widening Method's
// signature.
func (r *Rule) Kwarg(key string) any {
	return r.kwargs[key]
}

// valueInputs returns only the value-file inputs, in declared order.
func (r *Rule) valueInputs() []Input {
	var out []Input
	for _, in := range r.Inputs {
		if in.File.IsValue() {
			out = append(out, in)
		}
	}
	return out
}

// MetadataPath is the derived (never stored) path of the rule's persisted
// metadata record: dirname(outputs[0])/.jtcmake/basename(outputs[0]).
func (r *Rule) MetadataPath() string {
	first := r.Outputs[0].Path
	dir := filepath.Dir(first)
	base := filepath.Base(first)
	return filepath.Join(dir, ".jtcmake", base)
}

// DescribeCall renders the method's invocation for -why/verbose logging,
// grounded on jtcmake's print_method debug helper (group_tree/misc.py). It
// never participates in staleness decisions.
func (r *Rule) DescribeCall() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(", r.Name)
	for i, a := range r.args {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", a)
	}
	for k, v := range r.kwargs {
		if len(r.args) > 0 || sb.Len() > len(r.Name)+1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", k, v)
	}
	sb.WriteString(")")
	return sb.String()
}
