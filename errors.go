// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package jtmake

import "fmt"

// Kind tags the category of an engine error so callers can branch on it
// without string matching.
type Kind int

const (
	_ Kind = iota
	// KindMissingInput: a non-dry run found an input that does not exist.
	KindMissingInput
	// KindInvalidInputMtime: a non-dry run found an input with mtime 0 (the
	// failure marker).
	KindInvalidInputMtime
	// KindUnmemoizableArgument: argument canonicalization refused a value.
	KindUnmemoizableArgument
	// KindInvalidKey: keyed memo construction got a non-hex string or bad key.
	KindInvalidKey
	// KindMemoCompareFailed: reading or comparing a stored memo payload failed.
	KindMemoCompareFailed
	// KindCycleDetected: the requested target set's closure contains a cycle.
	KindCycleDetected
	// KindDuplicateOutput: two rules claim the same output path.
	KindDuplicateOutput
	// KindRuleMethodFailed: the user-supplied method raised/returned failure.
	KindRuleMethodFailed
	// KindInvalidRule: a rule was constructed with a structurally invalid
	// shape, e.g. zero outputs.
	KindInvalidRule
)

func (k Kind) String() string {
	switch k {
	case KindMissingInput:
		return "MissingInput"
	case KindInvalidInputMtime:
		return "InvalidInputMtime"
	case KindUnmemoizableArgument:
		return "UnmemoizableArgument"
	case KindInvalidKey:
		return "InvalidKey"
	case KindMemoCompareFailed:
		return "MemoCompareFailed"
	case KindCycleDetected:
		return "CycleDetected"
	case KindDuplicateOutput:
		return "DuplicateOutput"
	case KindRuleMethodFailed:
		return "RuleMethodFailed"
	case KindInvalidRule:
		return "InvalidRule"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type the engine returns for the error kinds
// above. It carries a Kind so callers can use errors.As and branch,
// plus an optional Target naming the rule output involved.
type Error struct {
	Kind   Kind
	Target string
	Err    error
}

func (e *Error) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, target string, err error) *Error {
	return &Error{Kind: kind, Target: target, Err: err}
}

// Is reports whether target is an *Error of the same Kind, so that
// errors.Is(err, &Error{Kind: KindX}) matches any error of that kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf returns the Kind of err if it (or something it wraps) is an *Error,
// and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind, true
	}
	return 0, false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
