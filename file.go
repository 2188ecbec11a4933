// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package jtmake

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileKind tags whether a File is compared by mtime alone or by mtime and
// content hash.
type FileKind int

const (
	// Plain files are compared by modification time only.
	Plain FileKind = iota
	// Value files are compared by modification time and content hash.
	Value
)

// File identifies a filesystem path participating in a Rule's inputs or
// outputs. Equality is by Path; a File is immutable once constructed.
type File struct {
	Path string
	Kind FileKind
}

// NewPlainFile returns a File compared by mtime only.
func NewPlainFile(path string) File {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return File{Path: abs, Kind: Plain}
}

// NewValueFile returns a File compared by mtime and content hash.
func NewValueFile(path string) File {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return File{Path: abs, Kind: Value}
}

// IsValue reports whether f is a value file.
func (f File) IsValue() bool { return f.Kind == Value }

// Exists reports whether the file currently exists.
func (f File) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}

// Mtime returns the file's modification time as a float64 of seconds since
// the Unix epoch, matching the precision the metadata record persists.
func (f File) Mtime() (float64, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return 0, err
	}
	return mtimeSeconds(info.ModTime()), nil
}

func mtimeSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Hash returns the SHA-256 content digest of a value file's bytes as a hex
// string. Calling Hash on a Plain file still works (it simply hashes the
// bytes) but staleness checks only ever call it on Value files. A missing
// or unreadable file fails with KindMissingInput wrapping the underlying
// os error.
func (f File) Hash() (string, error) {
	h, err := hashFile(f.Path)
	if err != nil {
		return "", newErr(KindMissingInput, f.Path, err)
	}
	return h, nil
}

func hashFile(path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fh.Close()
	h := sha256.New()
	if _, err := io.Copy(h, fh); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashCache memoizes content hashes keyed by (path, mtime, size) so that a
// value file whose mtime and size are unchanged is not re-read; any change
// of mtime or size re-reads the file. Safe for
// concurrent use by multiple scheduler workers.
type HashCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	mtime time.Time
	size  int64
	hash  string
}

// NewHashCache returns an empty, ready-to-use HashCache.
func NewHashCache() *HashCache {
	return &HashCache{entries: make(map[string]cacheEntry)}
}

// Hash returns the content hash of the value file at f.Path, serving a
// cached digest when the file's mtime and size have not changed since the
// last call.
func (c *HashCache) Hash(f File) (string, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return "", newErr(KindMissingInput, f.Path, err)
	}
	mtime := info.ModTime()
	size := info.Size()

	c.mu.Lock()
	if e, ok := c.entries[f.Path]; ok && e.mtime.Equal(mtime) && e.size == size {
		c.mu.Unlock()
		return e.hash, nil
	}
	c.mu.Unlock()

	h, err := hashFile(f.Path)
	if err != nil {
		return "", newErr(KindMissingInput, f.Path, err)
	}

	c.mu.Lock()
	c.entries[f.Path] = cacheEntry{mtime: mtime, size: size, hash: h}
	c.mu.Unlock()

	return h, nil
}

// Invalidate drops any cached digest for f, forcing the next Hash call to
// re-read the file regardless of mtime/size.
func (c *HashCache) Invalidate(f File) {
	c.mu.Lock()
	delete(c.entries, f.Path)
	c.mu.Unlock()
}
