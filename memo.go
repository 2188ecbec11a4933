// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package jtmake

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// NestKey names an input slot inside a rule's possibly-nested argument
// structure. Two nest keys are equal iff their component sequences are
// equal element-wise. Components must be strings or ints so that the key
// round-trips through the canonical JSON-like serialization.
type NestKey []any

// Equal reports whether k and other name the same slot.
func (k NestKey) Equal(other NestKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if fmt.Sprint(k[i]) != fmt.Sprint(other[i]) {
			return false
		}
	}
	return true
}

func (k NestKey) canon() (any, error) {
	out := make([]any, len(k))
	for i, c := range k {
		switch v := c.(type) {
		case string, int, int64, float64, bool:
			out[i] = v
		default:
			return nil, newErr(KindUnmemoizableArgument, "", fmt.Errorf("nest key component %v is not a scalar", c))
		}
	}
	return out, nil
}

// string form used as a map key when matching stored vfile hashes against
// a rule's current inputs.
func (k NestKey) String() string {
	b, _ := json.Marshal(k)
	return string(b)
}

// Memo is a fingerprint of a rule's arguments, compared against a
// previously stored payload to decide whether the arguments changed.
type Memo interface {
	// Payload returns the memo's current value, persisted verbatim in the
	// metadata record's "args" field.
	Payload() (string, error)
	// Equals compares the memo's current payload against a payload loaded
	// from a metadata record.
	Equals(stored string) (bool, error)
}

// canonicalize implements the single canonicalization routine backing both
// memo variants and the vfiles nest-key encoding (spec §9). Every accepted
// type is listed explicitly; everything else is rejected.
func canonicalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string:
		return x, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x, nil
	case float32:
		return canonicalizeFloat(float64(x))
	case float64:
		return canonicalizeFloat(x)
	case File:
		return []any{"file", x.Path}, nil
	case NestKey:
		return x.canon()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			c, err := canonicalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		type kv struct {
			k string
			v any
		}
		pairs := make([]kv, 0, len(x))
		for k, val := range x {
			c, err := canonicalize(val)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, kv{k, c})
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })
		out := make([]any, len(pairs))
		for i, p := range pairs {
			out[i] = []any{p.k, p.v}
		}
		return out, nil
	default:
		return nil, newErr(KindUnmemoizableArgument, "", fmt.Errorf("value of type %T is not memoizable", v))
	}
}

func canonicalizeFloat(f float64) (any, error) {
	if f != f || f > maxFiniteFloat || f < -maxFiniteFloat {
		return nil, newErr(KindUnmemoizableArgument, "", fmt.Errorf("non-finite float %v", f))
	}
	return f, nil
}

const maxFiniteFloat = 1.7976931348623157e+308

// canonicalBytes renders args/kwargs as deterministic canonical JSON.
func canonicalBytes(args []any, kwargs map[string]any) ([]byte, error) {
	ca, err := canonicalize(toAnySlice(args))
	if err != nil {
		return nil, err
	}
	ck, err := canonicalize(toAnyMap(kwargs))
	if err != nil {
		return nil, err
	}
	return json.Marshal([]any{ca, ck})
}

func toAnySlice(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}

func toAnyMap(kwargs map[string]any) map[string]any {
	if kwargs == nil {
		return map[string]any{}
	}
	return kwargs
}

// StrHashMemo canonicalizes args/kwargs to a deterministic textual form and
// SHA-256 hashes it; the payload is the hex digest. Equals is plain string
// equality.
type StrHashMemo struct {
	args   []any
	kwargs map[string]any
}

// NewStrHashMemo constructs a string-hash memo over args and kwargs.
func NewStrHashMemo(args []any, kwargs map[string]any) *StrHashMemo {
	return &StrHashMemo{args: args, kwargs: kwargs}
}

func (m *StrHashMemo) Payload() (string, error) {
	b, err := canonicalBytes(m.args, m.kwargs)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:]), nil
}

func (m *StrHashMemo) Equals(stored string) (bool, error) {
	cur, err := m.Payload()
	if err != nil {
		return false, err
	}
	return cur == stored, nil
}

// KeyedMemo canonicalizes args/kwargs and authenticates the canonical bytes
// with HMAC-SHA256 under a caller-supplied key; the payload is the hex MAC.
// This binds trust in a stored "unchanged" verdict to possession of the
// key, closing the forgery hole a reflective/pickled canonicalization would
// otherwise open (spec §4.2).
type KeyedMemo struct {
	args   []any
	kwargs map[string]any
	key    []byte
}

// NewKeyedMemo constructs a keyed memo. key is the raw key bytes, used as
// given (a hex string is decoded first with DecodeKey); an empty key fails
// construction with KindInvalidKey. Per spec
// §4.2 the payload is HMAC-SHA256(key, canonical_bytes) over the raw key
// material directly — crypto/hmac already implements RFC 2104 and accepts
// keys of any length, so there is no derivation step to perform.
func NewKeyedMemo(args []any, kwargs map[string]any, key []byte) (*KeyedMemo, error) {
	if len(key) == 0 {
		return nil, newErr(KindInvalidKey, "", fmt.Errorf("empty key"))
	}
	return &KeyedMemo{args: args, kwargs: kwargs, key: key}, nil
}

// DecodeKey decodes a hex-encoded key string into raw key bytes, for front
// ends that cannot carry raw bytes; a string that is not valid hex fails
// with KindInvalidKey.
func DecodeKey(raw string) ([]byte, error) {
	if b, err := hex.DecodeString(raw); err == nil {
		return b, nil
	}
	return nil, newErr(KindInvalidKey, "", fmt.Errorf("key %q is not valid hex", raw))
}

func (m *KeyedMemo) Payload() (string, error) {
	b, err := canonicalBytes(m.args, m.kwargs)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, m.key)
	mac.Write(b)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func (m *KeyedMemo) Equals(stored string) (bool, error) {
	cur, err := m.Payload()
	if err != nil {
		return false, err
	}
	curBytes, err1 := hex.DecodeString(cur)
	storedBytes, err2 := hex.DecodeString(stored)
	if err1 != nil || err2 != nil {
		return false, nil
	}
	return subtle.ConstantTimeCompare(curBytes, storedBytes) == 1, nil
}
