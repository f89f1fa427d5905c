// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/mettatron/value"
)

// Snapshot/Restore implement the byte-faithful persistence contract of
// spec.md §6. The format is a header tag, a varint atom table (names as
// length-prefixed UTF-8 bytes), a varint count of rules, and for each
// rule a varint length plus that rule's pattern, body and optional guard
// in the tagged value encoding below (not the raw trie-path bytes, which
// lose variable names). There is deliberately no canonical text form — per
// spec.md §4.1(iii), re-encoding atoms through a surface-syntax printer
// would misinterpret bytes in the trie encoding's reserved tag range, so
// this walker only ever reads/writes raw length-prefixed bytes, never
// text. That satisfies testable property 9 (reserved-byte safety) by
// construction: every payload is varint-length-prefixed, so a 0x40-0x7F
// content byte is never mistaken for a tag.
const snapshotHeaderTag byte = 0xF1

// value-level tags. Kept distinct from the trie path tags in encode.go:
// a snapshot must round-trip variable *names* and rule bodies/guards,
// which the lossy trie-index encoding intentionally discards.
const (
	vTagNil byte = iota
	vTagUnit
	vTagBoolFalse
	vTagBoolTrue
	vTagLong
	vTagFloat
	vTagString
	vTagURI
	vTagAtom
	vTagVariable
	vTagFreshVarMarker
	vTagError
	vTagTyped
	vTagSExpr
)

type atomTable struct {
	index map[string]uint32
	names []string
}

func newAtomTable() *atomTable {
	return &atomTable{index: make(map[string]uint32)}
}

func (t *atomTable) idFor(name string) uint32 {
	if id, ok := t.index[name]; ok {
		return id
	}
	id := uint32(len(t.names))
	t.index[name] = id
	t.names = append(t.names, name)
	return id
}

func collectAtoms(v value.V, t *atomTable) {
	switch v.Kind() {
	case value.KindAtom:
		t.idFor(v.AsString())
	case value.KindSExpr:
		for _, it := range v.Items() {
			collectAtoms(it, t)
		}
	case value.KindTyped:
		val, typ := v.TypedParts()
		collectAtoms(val, t)
		collectAtoms(typ, t)
	case value.KindError:
		_, payload := v.ErrorParts()
		collectAtoms(payload, t)
	}
}

// Snapshot serializes env into the opaque binary format described above.
func Snapshot(env Environment) []byte {
	rules := env.IterRules()

	tbl := newAtomTable()
	for _, r := range rules {
		collectAtoms(r.Pattern, tbl)
		collectAtoms(r.Body, tbl)
		if r.Guard != nil {
			collectAtoms(*r.Guard, tbl)
		}
	}

	var buf []byte
	buf = append(buf, snapshotHeaderTag)
	appendVarint(&buf, uint64(len(tbl.names)))
	for _, name := range tbl.names {
		appendLenPrefixed(&buf, []byte(name))
	}

	appendVarint(&buf, uint64(len(rules)))
	for _, r := range rules {
		var path []byte
		writeValue(&path, r.Pattern, tbl)
		writeValue(&path, r.Body, tbl)
		if r.Guard != nil {
			path = append(path, 1)
			writeValue(&path, *r.Guard, tbl)
		} else {
			path = append(path, 0)
		}
		appendLenPrefixed(&buf, path)
	}
	return buf
}

var ErrCorruptSnapshot = errors.New("store: corrupt snapshot")

// Restore reconstructs an Environment from Snapshot's output. interner is
// used to resolve atom names back to process-wide AtomIDs (the on-disk
// atom table is process-independent by design).
func Restore(data []byte, interner *value.Interner) (Environment, error) {
	env := New()
	if len(data) == 0 {
		return env, nil
	}
	r := &byteReader{buf: data}
	tag, ok := r.readByte()
	if !ok || tag != snapshotHeaderTag {
		return Environment{}, errors.Wrap(ErrCorruptSnapshot, "bad header tag")
	}

	nAtoms, ok := r.readUvarint()
	if !ok {
		return Environment{}, errors.Wrap(ErrCorruptSnapshot, "atom table count")
	}
	names := make([]string, nAtoms)
	for i := range names {
		b, ok := r.readLenPrefixed()
		if !ok {
			return Environment{}, errors.Wrap(ErrCorruptSnapshot, "atom table entry")
		}
		names[i] = string(b)
	}

	nRules, ok := r.readUvarint()
	if !ok {
		return Environment{}, errors.Wrap(ErrCorruptSnapshot, "rule count")
	}
	for i := uint64(0); i < nRules; i++ {
		raw, ok := r.readLenPrefixed()
		if !ok {
			return Environment{}, errors.Wrap(ErrCorruptSnapshot, "rule entry")
		}
		rr := &byteReader{buf: raw}
		pattern, err := readValue(rr, names, interner)
		if err != nil {
			return Environment{}, err
		}
		body, err := readValue(rr, names, interner)
		if err != nil {
			return Environment{}, err
		}
		hasGuard, ok := rr.readByte()
		if !ok {
			return Environment{}, errors.Wrap(ErrCorruptSnapshot, "guard marker")
		}
		var guard *value.V
		if hasGuard == 1 {
			g, err := readValue(rr, names, interner)
			if err != nil {
				return Environment{}, err
			}
			guard = &g
		}
		env, err = env.Insert(pattern, body, guard)
		if err != nil {
			return Environment{}, err
		}
	}
	return env, nil
}

func writeValue(buf *[]byte, v value.V, tbl *atomTable) {
	switch v.Kind() {
	case value.KindNil:
		*buf = append(*buf, vTagNil)
	case value.KindUnit:
		*buf = append(*buf, vTagUnit)
	case value.KindBool:
		if v.AsBool() {
			*buf = append(*buf, vTagBoolTrue)
		} else {
			*buf = append(*buf, vTagBoolFalse)
		}
	case value.KindLong:
		*buf = append(*buf, vTagLong)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.AsLong()))
		*buf = append(*buf, tmp[:]...)
	case value.KindFloat:
		*buf = append(*buf, vTagFloat)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v.AsFloat()))
		*buf = append(*buf, tmp[:]...)
	case value.KindString:
		*buf = append(*buf, vTagString)
		appendLenPrefixed(buf, []byte(v.AsString()))
	case value.KindURI:
		*buf = append(*buf, vTagURI)
		appendLenPrefixed(buf, []byte(v.AsString()))
	case value.KindAtom:
		*buf = append(*buf, vTagAtom)
		appendVarint(buf, uint64(tbl.idFor(v.AsString())))
	case value.KindVariable:
		if v.IsFreshVarMarker() {
			*buf = append(*buf, vTagFreshVarMarker)
		} else {
			*buf = append(*buf, vTagVariable)
			appendLenPrefixed(buf, []byte(v.VariableName()))
		}
	case value.KindError:
		*buf = append(*buf, vTagError)
		msg, payload := v.ErrorParts()
		appendLenPrefixed(buf, []byte(msg))
		writeValue(buf, payload, tbl)
	case value.KindTyped:
		*buf = append(*buf, vTagTyped)
		val, typ := v.TypedParts()
		writeValue(buf, val, tbl)
		writeValue(buf, typ, tbl)
	case value.KindSExpr:
		*buf = append(*buf, vTagSExpr)
		items := v.Items()
		appendVarint(buf, uint64(len(items)))
		for _, it := range items {
			writeValue(buf, it, tbl)
		}
	}
}

func readValue(r *byteReader, names []string, interner *value.Interner) (value.V, error) {
	tag, ok := r.readByte()
	if !ok {
		return value.V{}, errors.Wrap(ErrCorruptSnapshot, "value tag")
	}
	switch tag {
	case vTagNil:
		return value.Nil, nil
	case vTagUnit:
		return value.Unit, nil
	case vTagBoolFalse:
		return value.False, nil
	case vTagBoolTrue:
		return value.True, nil
	case vTagLong:
		b, ok := r.readN(8)
		if !ok {
			return value.V{}, errors.Wrap(ErrCorruptSnapshot, "long payload")
		}
		return value.Long(int64(binary.BigEndian.Uint64(b))), nil
	case vTagFloat:
		b, ok := r.readN(8)
		if !ok {
			return value.V{}, errors.Wrap(ErrCorruptSnapshot, "float payload")
		}
		return value.Float(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
	case vTagString:
		b, ok := r.readLenPrefixed()
		if !ok {
			return value.V{}, errors.Wrap(ErrCorruptSnapshot, "string payload")
		}
		return value.Str(string(b)), nil
	case vTagURI:
		b, ok := r.readLenPrefixed()
		if !ok {
			return value.V{}, errors.Wrap(ErrCorruptSnapshot, "uri payload")
		}
		return value.URI(string(b)), nil
	case vTagAtom:
		id, ok := r.readUvarint()
		if !ok || id >= uint64(len(names)) {
			return value.V{}, errors.Wrap(ErrCorruptSnapshot, "atom id")
		}
		return value.NewAtom(interner, names[id]), nil
	case vTagVariable:
		b, ok := r.readLenPrefixed()
		if !ok {
			return value.V{}, errors.Wrap(ErrCorruptSnapshot, "variable payload")
		}
		v, err := value.NewVariable(string(b))
		if err != nil {
			return value.V{}, errors.Wrap(err, "restore: invalid variable")
		}
		return v, nil
	case vTagFreshVarMarker:
		return value.FreshVarMarker, nil
	case vTagError:
		msg, ok := r.readLenPrefixed()
		if !ok {
			return value.V{}, errors.Wrap(ErrCorruptSnapshot, "error message")
		}
		payload, err := readValue(r, names, interner)
		if err != nil {
			return value.V{}, err
		}
		return value.NewError(string(msg), payload), nil
	case vTagTyped:
		val, err := readValue(r, names, interner)
		if err != nil {
			return value.V{}, err
		}
		typ, err := readValue(r, names, interner)
		if err != nil {
			return value.V{}, err
		}
		return value.Typed(val, typ), nil
	case vTagSExpr:
		n, ok := r.readUvarint()
		if !ok {
			return value.V{}, errors.Wrap(ErrCorruptSnapshot, "sexpr count")
		}
		items := make([]value.V, n)
		for i := range items {
			it, err := readValue(r, names, interner)
			if err != nil {
				return value.V{}, err
			}
			items[i] = it
		}
		return value.SExpr(items...), nil
	default:
		return value.V{}, errors.Wrap(ErrCorruptSnapshot, "unknown value tag")
	}
}

// byteReader is a minimal cursor over a byte slice; kept local rather
// than pulling in bytes.Reader so EOF handling stays boolean (matching
// the rest of this package's error style of explicit ok bools during
// decode, escalated to errors only at the call boundary).
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) readByte() (byte, bool) {
	if r.pos >= len(r.buf) {
		return 0, false
	}
	b := r.buf[r.pos]
	r.pos++
	return b, true
}

func (r *byteReader) readN(n int) ([]byte, bool) {
	if r.pos+n > len(r.buf) {
		return nil, false
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

func (r *byteReader) readUvarint() (uint64, bool) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, false
	}
	r.pos += n
	return v, true
}

func (r *byteReader) readLenPrefixed() ([]byte, bool) {
	n, ok := r.readUvarint()
	if !ok {
		return nil, false
	}
	return r.readN(int(n))
}
