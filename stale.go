// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package jtmake

import "fmt"

func errNotExist(path string) error { return fmt.Errorf("input %q does not exist", path) }
func errZeroMtime(path string) error {
	return fmt.Errorf("input %q has mtime of 0, which is reserved to mark failed outputs", path)
}

// Status is the stale-check engine's verdict for a rule.
type Status int

const (
	// UpToDate means the rule need not run.
	UpToDate Status = iota
	// ShouldUpdate means the rule must run.
	ShouldUpdate
)

func (s Status) String() string {
	if s == ShouldUpdate {
		return "SHOULD_UPDATE"
	}
	return "UP_TO_DATE"
}

// staleCheck implements spec §4.3's ten-step algorithm. parUpdated reports
// whether any dependency of r updated in this run; dryRun relaxes
// unreadable/missing-input conditions to ShouldUpdate instead of failing.
func staleCheck(r *Rule, parUpdated, dryRun bool, cache *HashCache) (Status, error) {
	// 1. Input existence.
	for _, in := range r.Inputs {
		if !in.File.Exists() {
			if dryRun {
				return ShouldUpdate, nil
			}
			return 0, newErr(KindMissingInput, in.File.Path, errNotExist(in.File.Path))
		}
	}

	// 2. Input mtime-zero.
	for _, in := range r.Inputs {
		mt, err := in.File.Mtime()
		if err != nil {
			if dryRun {
				return ShouldUpdate, nil
			}
			return 0, newErr(KindMissingInput, in.File.Path, err)
		}
		if mt == 0 {
			if dryRun {
				return ShouldUpdate, nil
			}
			return 0, newErr(KindInvalidInputMtime, in.File.Path, errZeroMtime(in.File.Path))
		}
	}

	// 3. Dry-run parent propagation.
	if dryRun && parUpdated {
		return ShouldUpdate, nil
	}

	// 4. Output existence.
	for _, out := range r.Outputs {
		if !out.Exists() {
			return ShouldUpdate, nil
		}
	}

	// 5. Output mtime-zero / oldest output.
	oldestY, err := oldestMtime(r.Outputs)
	if err != nil {
		return ShouldUpdate, nil
	}
	if oldestY <= 0 {
		return ShouldUpdate, nil
	}

	// 6. Plain-input mtime; collect value-file candidates.
	var candidates []Input
	for _, in := range r.Inputs {
		mt, err := in.File.Mtime()
		if err != nil {
			return ShouldUpdate, nil
		}
		if mt > oldestY {
			if in.File.IsValue() {
				candidates = append(candidates, in)
			} else {
				return ShouldUpdate, nil
			}
		}
	}

	// 7. Metadata presence.
	rec, ok := loadMetadata(r.MetadataPath())
	if !ok {
		return ShouldUpdate, nil
	}

	// 8. Value-file content check.
	stored := make(map[string]vfileEntry, len(rec.VFiles))
	for _, v := range rec.VFiles {
		stored[v.Key.String()] = v
	}
	for _, in := range candidates {
		entry, ok := stored[in.Key.String()]
		if !ok {
			return ShouldUpdate, nil
		}
		mt, err := in.File.Mtime()
		if err != nil {
			return ShouldUpdate, nil
		}
		if mt == entry.Mtime {
			continue // fast path: bytes unchanged since last recorded mtime
		}
		h, err := cache.Hash(in.File)
		if err != nil {
			return ShouldUpdate, nil
		}
		if h != entry.Hash {
			return ShouldUpdate, nil
		}
	}

	// 9. Argument memo.
	eq, err := r.memo.Equals(rec.Args)
	if err != nil {
		return 0, newErr(KindMemoCompareFailed, r.MetadataPath(), err)
	}
	if !eq {
		return ShouldUpdate, nil
	}

	// 10. Up to date.
	return UpToDate, nil
}

// Explain reports the same verdict as staleCheck along with a short
// human-readable reason, for the CLI's "why" subcommand. It mirrors the
// teacher's separate WhyStale routine (state.go) rather than threading a
// reason string through the hot staleCheck path.
func Explain(r *Rule, cache *HashCache) (Status, string, error) {
	for _, in := range r.Inputs {
		if !in.File.Exists() {
			return 0, "", newErr(KindMissingInput, in.File.Path, errNotExist(in.File.Path))
		}
		mt, err := in.File.Mtime()
		if err != nil {
			return 0, "", newErr(KindMissingInput, in.File.Path, err)
		}
		if mt == 0 {
			return 0, "", newErr(KindInvalidInputMtime, in.File.Path, errZeroMtime(in.File.Path))
		}
	}

	for _, out := range r.Outputs {
		if !out.Exists() {
			return ShouldUpdate, fmt.Sprintf("output %q does not exist", out.Path), nil
		}
	}

	oldestY, err := oldestMtime(r.Outputs)
	if err != nil || oldestY <= 0 {
		return ShouldUpdate, "an output has an unreadable or zero mtime", nil
	}

	var candidates []Input
	for _, in := range r.Inputs {
		mt, err := in.File.Mtime()
		if err != nil {
			return ShouldUpdate, fmt.Sprintf("input %q is unreadable", in.File.Path), nil
		}
		if mt > oldestY {
			if in.File.IsValue() {
				candidates = append(candidates, in)
			} else {
				return ShouldUpdate, fmt.Sprintf("plain input %q is newer than the oldest output", in.File.Path), nil
			}
		}
	}

	rec, ok := loadMetadata(r.MetadataPath())
	if !ok {
		return ShouldUpdate, "no recorded metadata from a prior run", nil
	}

	stored := make(map[string]vfileEntry, len(rec.VFiles))
	for _, v := range rec.VFiles {
		stored[v.Key.String()] = v
	}
	for _, in := range candidates {
		entry, ok := stored[in.Key.String()]
		if !ok {
			return ShouldUpdate, fmt.Sprintf("value input %v is not in recorded metadata", in.Key), nil
		}
		mt, err := in.File.Mtime()
		if err != nil {
			return ShouldUpdate, fmt.Sprintf("value input %q is unreadable", in.File.Path), nil
		}
		if mt == entry.Mtime {
			continue
		}
		h, err := cache.Hash(in.File)
		if err != nil || h != entry.Hash {
			return ShouldUpdate, fmt.Sprintf("value input %v changed content since last run", in.Key), nil
		}
	}

	eq, err := r.memo.Equals(rec.Args)
	if err != nil {
		return 0, "", newErr(KindMemoCompareFailed, r.MetadataPath(), err)
	}
	if !eq {
		return ShouldUpdate, "call arguments changed since last run", nil
	}

	return UpToDate, "inputs, outputs and arguments are unchanged since last run", nil
}

func oldestMtime(outputs []File) (float64, error) {
	var oldest float64
	for i, f := range outputs {
		mt, err := f.Mtime()
		if err != nil {
			return 0, err
		}
		if i == 0 || mt < oldest {
			oldest = mt
		}
	}
	return oldest, nil
}
