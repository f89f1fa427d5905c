// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package value implements the universal tagged value used by every
// tier of the MeTTaTron engine: the interpreter, the bytecode VM, and
// the JIT all construct, compare, and rewrite the same V.
package value

import (
	"fmt"
	"math"
	"strings"
)

// Kind discriminates the variants of V. Kept as a small int so it packs
// into the NaN-box tag space used by the jit package.
type Kind uint8

const (
	KindNil Kind = iota
	KindUnit
	KindBool
	KindLong
	KindFloat
	KindString
	KindURI
	KindAtom
	KindVariable
	KindError
	KindTyped
	KindSExpr
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "Nil"
	case KindUnit:
		return "Unit"
	case KindBool:
		return "Bool"
	case KindLong:
		return "Long"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindURI:
		return "Uri"
	case KindAtom:
		return "Atom"
	case KindVariable:
		return "Variable"
	case KindError:
		return "Error"
	case KindTyped:
		return "Typed"
	case KindSExpr:
		return "SExpr"
	default:
		return "Unknown"
	}
}

// V is the sum type shared by every tier. Only the fields relevant to
// Kind are meaningful; this mirrors a closed tagged union without
// resorting to an interface (which would force a heap allocation and
// dynamic dispatch on every literal).
type V struct {
	kind Kind

	boolean bool
	long    int64
	float64 float64

	// str holds String/URI bytes, and the Atom/Variable name prior to
	// interning resolution (AtomID is authoritative once interned).
	str string

	// atomID is the interned identity of an Atom. Zero is invalid;
	// interning never assigns it (the smallest ID it assigns is 64).
	atomID AtomID

	// err holds the (message, payload) pair for Error values.
	errMsg     string
	errPayload *V

	// typed holds the (value, type) pair for Typed values.
	typedVal  *V
	typedType *V

	// items holds SExpr elements.
	items []V
}

// Nil, Unit, and True/False are process-wide singletons by value (Go
// structs compare fine since they carry no pointers for these variants).
var (
	Nil  = V{kind: KindNil}
	Unit = V{kind: KindUnit}
	True = V{kind: KindBool, boolean: true}
	False = V{kind: KindBool, boolean: false}
)

func Bool(b bool) V {
	if b {
		return True
	}
	return False
}

func Long(n int64) V { return V{kind: KindLong, long: n} }

func Float(f float64) V { return V{kind: KindFloat, float64: f} }

func Str(s string) V { return V{kind: KindString, str: s} }

func URI(s string) V { return V{kind: KindURI, str: s} }

// SExpr constructs an ordered expression. A copy of items is taken so
// callers may reuse their backing slice.
func SExpr(items ...V) V {
	cp := make([]V, len(items))
	copy(cp, items)
	return V{kind: KindSExpr, items: cp}
}

func NewError(msg string, payload V) V {
	p := payload
	return V{kind: KindError, errMsg: msg, errPayload: &p}
}

func Typed(val, typ V) V {
	v, t := val, typ
	return V{kind: KindTyped, typedVal: &v, typedType: &t}
}

// Kind returns the variant discriminant.
func (v V) Kind() Kind { return v.kind }

func (v V) IsNil() bool  { return v.kind == KindNil }
func (v V) IsUnit() bool { return v.kind == KindUnit }
func (v V) IsError() bool { return v.kind == KindError }

func (v V) AsBool() bool    { return v.boolean }
func (v V) AsLong() int64   { return v.long }
func (v V) AsFloat() float64 { return v.float64 }
func (v V) AsString() string { return v.str }
func (v V) AtomID() AtomID   { return v.atomID }
func (v V) Items() []V       { return v.items }

func (v V) ErrorParts() (msg string, payload V) {
	if v.errPayload == nil {
		return v.errMsg, Nil
	}
	return v.errMsg, *v.errPayload
}

func (v V) TypedParts() (val, typ V) {
	if v.typedVal == nil || v.typedType == nil {
		return Nil, Nil
	}
	return *v.typedVal, *v.typedType
}

// literalAmpersand is the reserved operator atom "&": it must survive
// rewriting untouched (spec.md §3, regression scenario (d)).
const literalAmpersand = "&"

// NewAtom interns name in tbl and returns the Atom value. A bare "$" is
// never produced here; Variable owns that sigil.
func NewAtom(tbl *Interner, name string) V {
	id := tbl.Intern(name)
	return V{kind: KindAtom, str: name, atomID: id}
}

// IsLiteralOperator reports whether this Atom is the reserved "&" used by
// (match & self ...) forms.
func (v V) IsLiteralOperator() bool {
	return v.kind == KindAtom && v.str == literalAmpersand
}

// NewVariable constructs a Variable from a name that must begin with "$".
// A bare "$" (len(name) == 1) is NOT a bindable variable per spec.md §3;
// callers should route that case to FreshVarMarker instead.
func NewVariable(name string) (V, error) {
	if len(name) < 2 || name[0] != '$' {
		return V{}, fmt.Errorf("value: %q is not a valid variable (must be $ followed by a name)", name)
	}
	return V{kind: KindVariable, str: name}, nil
}

// FreshVarMarker is the distinct non-bindable value produced when surface
// syntax contains a bare "$". It shares KindVariable with real variables
// and is told apart from them by its name "$" (IsFreshVarMarker).
var FreshVarMarker = V{kind: KindVariable, str: "$"}

func (v V) IsFreshVarMarker() bool {
	return v.kind == KindVariable && v.str == "$"
}

func (v V) VariableName() string { return v.str }

// Equal implements the structural equality used by the rule store. Float
// equality is bitwise (NaN == NaN structurally) per spec.md §4.1(ii); the
// `==` grounded comparison uses FloatIEEEEqual instead.
func Equal(a, b V) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil, KindUnit:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindLong:
		return a.long == b.long
	case KindFloat:
		return math.Float64bits(a.float64) == math.Float64bits(b.float64)
	case KindString, KindURI:
		return a.str == b.str
	case KindAtom:
		return a.atomID == b.atomID
	case KindVariable:
		return a.str == b.str
	case KindError:
		am, ap := a.ErrorParts()
		bm, bp := b.ErrorParts()
		return am == bm && Equal(ap, bp)
	case KindTyped:
		av, at := a.TypedParts()
		bv, bt := b.TypedParts()
		return Equal(av, bv) && Equal(at, bt)
	case KindSExpr:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FloatIEEEEqual implements the MeTTa-visible `==` semantics for floats,
// where NaN never equals anything including itself.
func FloatIEEEEqual(a, b V) bool {
	if a.kind == KindFloat && b.kind == KindFloat {
		return a.float64 == b.float64
	}
	return Equal(a, b)
}

// String renders a debug representation. It is NOT the surface-syntax
// printer (that lives outside this repository, spec.md §1); this is only
// for logs and the CLI --dump flags.
func (v V) String() string {
	switch v.kind {
	case KindNil:
		return "Nil"
	case KindUnit:
		return "()"
	case KindBool:
		if v.boolean {
			return "True"
		}
		return "False"
	case KindLong:
		return fmt.Sprintf("%d", v.long)
	case KindFloat:
		return fmt.Sprintf("%g", v.float64)
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindURI:
		return fmt.Sprintf("<uri:%s>", v.str)
	case KindAtom:
		return v.str
	case KindVariable:
		return v.str
	case KindError:
		msg, payload := v.ErrorParts()
		return fmt.Sprintf("(Error %q %s)", msg, payload.String())
	case KindTyped:
		val, typ := v.TypedParts()
		return fmt.Sprintf("(: %s %s)", val.String(), typ.String())
	case KindSExpr:
		parts := make([]string, len(v.items))
		for i, it := range v.items {
			parts[i] = it.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	default:
		return "<invalid>"
	}
}
