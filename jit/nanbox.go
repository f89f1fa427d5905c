// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package jit implements Tiers 2/3: compiling hot bytecode chunks to
// native code over NaN-boxed values (spec.md §4.5). Nondeterminism and
// rule dispatch are never lowered to native code — such chunks are
// refused and stay on the VM (spec.md: "a deliberate trade: correctness
// of backtracking is preserved by the battle-tested VM").
package jit

import (
	"math"

	"github.com/luxfi/mettatron/value"
)

// Tag occupies the upper 16 bits of a quiet-NaN-boxed 64-bit word; the
// lower 48 bits carry payload or pointer (spec.md §4.5).
type Tag uint16

const (
	TagLong Tag = iota
	TagBool
	TagNil
	TagUnit
	TagHeap // pointer to a boxed value.V, for variants nan-boxing can't inline
	TagError
	TagAtom
	TagVariable
)

// quietNaNBase has every quiet-NaN bit set in the exponent/mantissa-flag
// region; payload bits below it are free for tagging as long as the
// pattern remains a NaN under IEEE-754 double semantics.
const quietNaNBase uint64 = 0x7FF8_0000_0000_0000

// tagShift places Tag in bits 48-50 of the boxed word, leaving 48 bits of
// payload — enough for a sign-extended int48 or a heap pointer on every
// real 64-bit target.
const tagShift = 48
const payloadMask = (uint64(1) << tagShift) - 1

// Box encodes v into a single NaN-boxed uint64, or reports ok=false if v
// cannot be held inline: only a Long within the int48 range, Bool, Nil,
// Unit and Atom are boxed here (spec.md §4.5 Stage 1); callers must bail
// to the VM in that case.
func Box(v value.V) (boxed uint64, ok bool) {
	switch v.Kind() {
	case value.KindLong:
		n := v.AsLong()
		if n < -(1<<47) || n >= 1<<47 {
			return 0, false
		}
		return boxWithPayload(TagLong, uint64(n)&payloadMask), true
	case value.KindBool:
		p := uint64(0)
		if v.AsBool() {
			p = 1
		}
		return boxWithPayload(TagBool, p), true
	case value.KindNil:
		return boxWithPayload(TagNil, 0), true
	case value.KindUnit:
		return boxWithPayload(TagUnit, 0), true
	case value.KindAtom:
		return boxWithPayload(TagAtom, uint64(v.AtomID())&payloadMask), true
	default:
		return 0, false
	}
}

func boxWithPayload(t Tag, payload uint64) uint64 {
	return quietNaNBase | (uint64(t) << tagShift) | (payload & payloadMask)
}

// Unbox extracts the tag, and for non-Float/non-Heap tags, the payload.
// Non-NaN bit patterns are ordinary IEEE doubles (not a tagged value at
// all) and Unbox reports ok=false for them — the JIT treats any non-NaN
// word as a raw Float.
func Unbox(word uint64) (tag Tag, payload uint64, ok bool) {
	if word&quietNaNBase != quietNaNBase {
		return 0, 0, false
	}
	tag = Tag((word >> tagShift) & 0x7)
	payload = word & payloadMask
	return tag, payload, true
}

// UnboxToValue reconstructs a value.V from a boxed word for the tags
// representable without a heap pointer. Heap-tagged words require the
// caller to dereference the pointer carried in payload themselves — this
// package never performs unsafe pointer arithmetic on Go's behalf.
func UnboxToValue(word uint64) (value.V, bool) {
	if isFloatBits(word) {
		return value.Float(math.Float64frombits(word)), true
	}
	tag, payload, ok := Unbox(word)
	if !ok {
		return value.V{}, false
	}
	switch tag {
	case TagLong:
		return value.Long(signExtend48(payload)), true
	case TagBool:
		return value.Bool(payload != 0), true
	case TagNil:
		return value.Nil, true
	case TagUnit:
		return value.Unit, true
	default:
		return value.V{}, false
	}
}

func isFloatBits(word uint64) bool {
	return word&quietNaNBase != quietNaNBase
}

// signExtend48 sign-extends a 48-bit two's-complement payload to int64.
func signExtend48(payload uint64) int64 {
	const signBit = uint64(1) << 47
	if payload&signBit != 0 {
		return int64(payload | ^payloadMask)
	}
	return int64(payload)
}

// BoxFloat encodes an ordinary (non-NaN) float64 directly as its IEEE
// bit pattern — floats need no tag since any non-quiet-NaN pattern is
// unambiguous.
func BoxFloat(f float64) uint64 {
	return math.Float64bits(f)
}
