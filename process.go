// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package jtmake

import (
	"os"
	"path/filepath"
	"time"
)

// preprocess ensures the parent directory of every output exists.
// Directory-creation errors are suppressed here — they resurface when the
// method itself tries to write (spec §4.4), matching jtcmake's
// best-effort os.makedirs in rule.py's preprocess.
func preprocess(r *Rule) {
	for _, out := range r.Outputs {
		dir := filepath.Dir(out.Path)
		_ = os.MkdirAll(dir, 0o755)
	}
}

// postprocess records a successful run's new metadata, or marks a failed
// run's outputs invalid and removes stale metadata. Errors from the
// failure path are swallowed: this is a best-effort marker, not part of
// the contract (spec §4.4).
func postprocess(r *Rule, success bool, cache *HashCache) {
	if success {
		rec := metadataRecord{Args: mustPayload(r.memo)}
		for _, in := range r.valueInputs() {
			h, err := cache.Hash(in.File)
			if err != nil {
				continue
			}
			mt, err := in.File.Mtime()
			if err != nil {
				continue
			}
			rec.VFiles = append(rec.VFiles, vfileEntry{Key: in.Key, Hash: h, Mtime: mt})
		}
		_ = saveMetadata(r.MetadataPath(), rec)
		return
	}

	zero := time.Unix(0, 0)
	for _, out := range r.Outputs {
		if out.Exists() {
			_ = os.Chtimes(out.Path, zero, zero)
		}
	}
	_ = deleteMetadata(r.MetadataPath())
}

func mustPayload(m Memo) string {
	p, err := m.Payload()
	if err != nil {
		return ""
	}
	return p
}
