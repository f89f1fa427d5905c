// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"encoding/binary"
	"math"

	"github.com/luxfi/mettatron/value"
)

// Canonical trie tag bytes. Values are deliberately kept in 0x00-0x0F so
// that the reserved tag range the spec warns about (0x40-0x7F, spec.md
// §4.1(iii)) is never emitted by the encoder itself — only atom/string
// payload bytes (which are always length-prefixed, never scanned as
// text) may fall in that range, and the decoder never needs to treat
// them as tags.
const (
	tagNil byte = iota
	tagUnit
	tagBoolFalse
	tagBoolTrue
	tagLong
	tagFloat
	tagString
	tagURI
	tagAtom
	tagVariable // wildcard: variable *name* is deliberately NOT encoded
	tagError
	tagTyped
	tagSExprOpen
)

// MalformedPatternError is returned when a pattern nests deeper than
// maxPatternDepth (spec.md §4.2 failure modes).
type MalformedPatternError struct {
	Depth int
}

func (e *MalformedPatternError) Error() string {
	return "store: malformed pattern (nesting exceeds implementation limit)"
}

const maxPatternDepth = 512

// EncodePattern produces the canonical, head-first byte path used both
// as a trie key and as the ground-fact fast-path key. Variables encode
// to a bare wildcard tag (their name is discarded) so that rules with
// the same shape but differently-named variables share trie nodes; this
// is what makes the ground/general split honest — a query containing a
// variable can never collide with ground facts sharing its prefix.
func EncodePattern(v value.V) ([]byte, error) {
	var buf []byte
	if err := encodeInto(&buf, v, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// IsGround reports whether v contains no Variable. The fresh "$" marker
// is a KindVariable value too, so a value containing it is not ground.
func IsGround(v value.V) bool {
	switch v.Kind() {
	case value.KindVariable:
		return false
	case value.KindSExpr:
		for _, it := range v.Items() {
			if !IsGround(it) {
				return false
			}
		}
		return true
	case value.KindTyped:
		val, typ := v.TypedParts()
		return IsGround(val) && IsGround(typ)
	case value.KindError:
		_, payload := v.ErrorParts()
		return IsGround(payload)
	default:
		return true
	}
}

func encodeInto(buf *[]byte, v value.V, depth int) error {
	if depth > maxPatternDepth {
		return &MalformedPatternError{Depth: depth}
	}
	switch v.Kind() {
	case value.KindNil:
		*buf = append(*buf, tagNil)
	case value.KindUnit:
		*buf = append(*buf, tagUnit)
	case value.KindBool:
		if v.AsBool() {
			*buf = append(*buf, tagBoolTrue)
		} else {
			*buf = append(*buf, tagBoolFalse)
		}
	case value.KindLong:
		*buf = append(*buf, tagLong)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.AsLong()))
		*buf = append(*buf, tmp[:]...)
	case value.KindFloat:
		*buf = append(*buf, tagFloat)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v.AsFloat()))
		*buf = append(*buf, tmp[:]...)
	case value.KindString:
		*buf = append(*buf, tagString)
		appendLenPrefixed(buf, []byte(v.AsString()))
	case value.KindURI:
		*buf = append(*buf, tagURI)
		appendLenPrefixed(buf, []byte(v.AsString()))
	case value.KindAtom:
		*buf = append(*buf, tagAtom)
		appendLenPrefixed(buf, []byte(v.AsString()))
	case value.KindVariable:
		*buf = append(*buf, tagVariable)
	case value.KindError:
		*buf = append(*buf, tagError)
		msg, payload := v.ErrorParts()
		appendLenPrefixed(buf, []byte(msg))
		if err := encodeInto(buf, payload, depth+1); err != nil {
			return err
		}
	case value.KindTyped:
		*buf = append(*buf, tagTyped)
		val, typ := v.TypedParts()
		if err := encodeInto(buf, val, depth+1); err != nil {
			return err
		}
		if err := encodeInto(buf, typ, depth+1); err != nil {
			return err
		}
	case value.KindSExpr:
		*buf = append(*buf, tagSExprOpen)
		items := v.Items()
		appendVarint(buf, uint64(len(items)))
		for _, it := range items {
			if err := encodeInto(buf, it, depth+1); err != nil {
				return err
			}
		}
	default:
		*buf = append(*buf, tagNil)
	}
	return nil
}

func appendLenPrefixed(buf *[]byte, b []byte) {
	appendVarint(buf, uint64(len(b)))
	*buf = append(*buf, b...)
}

func appendVarint(buf *[]byte, n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	w := binary.PutUvarint(tmp[:], n)
	*buf = append(*buf, tmp[:w]...)
}
