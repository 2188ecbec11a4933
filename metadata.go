// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package jtmake

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// vfileEntry is one row of a metadata record's "vfiles" table: a nest key,
// the content hash recorded at the previous successful run, and the mtime
// captured at that moment (a fast-path cache only, never authoritative).
type vfileEntry struct {
	Key   NestKey `json:"key"`
	Hash  string  `json:"hash"`
	Mtime float64 `json:"mtime"`
}

// metadataRecord is the persisted per-rule record, written as
// "<output_dir>/.jtcmake/<output_basename>" (spec §3, §6).
type metadataRecord struct {
	VFiles []vfileEntry `json:"vfiles"`
	Args   string       `json:"args"`
}

// on-disk wire shape: vfiles entries serialize as 3-tuples, not objects,
// per spec §6's "[nest_key_list, hex_digest, float_mtime]" wire format.
type wireRecord struct {
	VFiles [][3]any `json:"vfiles"`
	Args   string   `json:"args"`
}

func (r metadataRecord) toWire() wireRecord {
	w := wireRecord{Args: r.Args}
	for _, v := range r.VFiles {
		w.VFiles = append(w.VFiles, [3]any{[]any(v.Key), v.Hash, v.Mtime})
	}
	return w
}

func (w wireRecord) fromWire() (metadataRecord, bool) {
	rec := metadataRecord{Args: w.Args}
	for _, tuple := range w.VFiles {
		keyList, ok := tuple[0].([]any)
		if !ok {
			return metadataRecord{}, false
		}
		hashStr, ok := tuple[1].(string)
		if !ok {
			return metadataRecord{}, false
		}
		mtime, ok := tuple[2].(float64)
		if !ok {
			return metadataRecord{}, false
		}
		rec.VFiles = append(rec.VFiles, vfileEntry{Key: NestKey(keyList), Hash: hashStr, Mtime: mtime})
	}
	return rec, true
}

// loadMetadata reads and parses the metadata record at path. A reader that
// encounters malformed JSON or a missing field treats the record as
// absent, per spec §6, returning ok=false rather than an error.
func loadMetadata(path string) (metadataRecord, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return metadataRecord{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return metadataRecord{}, false
	}
	for _, name := range []string{"vfiles", "args"} {
		if _, ok := fields[name]; !ok {
			return metadataRecord{}, false
		}
	}
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return metadataRecord{}, false
	}
	rec, ok := w.fromWire()
	if !ok {
		return metadataRecord{}, false
	}
	return rec, true
}

// saveMetadata writes rec atomically: a UUID-suffixed temp file in the same
// directory, then rename over the target path. The UUID suffix (rather
// than a PID suffix) keeps concurrent njobs>1 workers racing to update
// sibling outputs from colliding on the temp name before the rename lands.
func saveMetadata(path string, rec metadataRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(rec.toWire())
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// deleteMetadata removes the metadata record at path, if present. Errors
// are swallowed by the caller (postprocess on failure is best-effort).
func deleteMetadata(path string) error {
	return os.Remove(path)
}
