// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import "github.com/luxfi/mettatron/value"

// Unify performs two-sided structural unification between a and b,
// binding variables on either side. Occurs-check is omitted unless
// occursCheck is true (spec.md §4.2: "MeTTa programs are idiomatically
// non-circular; a real occurs-check would be a correctness improvement
// worth enabling via a flag").
//
// The bare "$" fresh-variable marker unifies with anything but never
// produces a binding, matching spec.md §3's "not a bindable variable."
func Unify(a, b value.V, occursCheck bool) (Bindings, bool) {
	var bindings Bindings
	if !unify(a, b, &bindings, occursCheck) {
		return nil, false
	}
	return bindings, true
}

func resolve(v value.V, bindings Bindings) value.V {
	for v.Kind() == value.KindVariable && !v.IsFreshVarMarker() {
		val, ok := bindings.Lookup(v.VariableName())
		if !ok {
			break
		}
		v = val
	}
	return v
}

func unify(a, b value.V, bindings *Bindings, occursCheck bool) bool {
	a = resolve(a, *bindings)
	b = resolve(b, *bindings)

	if a.IsFreshVarMarker() || b.IsFreshVarMarker() {
		return true
	}
	if a.Kind() == value.KindVariable {
		return bindVar(a.VariableName(), b, bindings, occursCheck)
	}
	if b.Kind() == value.KindVariable {
		return bindVar(b.VariableName(), a, bindings, occursCheck)
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch a.Kind() {
	case value.KindSExpr:
		ai, bi := a.Items(), b.Items()
		if len(ai) != len(bi) {
			return false
		}
		for i := range ai {
			if !unify(ai[i], bi[i], bindings, occursCheck) {
				return false
			}
		}
		return true
	case value.KindTyped:
		av, at := a.TypedParts()
		bv, bt := b.TypedParts()
		return unify(av, bv, bindings, occursCheck) && unify(at, bt, bindings, occursCheck)
	case value.KindError:
		am, ap := a.ErrorParts()
		bm, bp := b.ErrorParts()
		return am == bm && unify(ap, bp, bindings, occursCheck)
	default:
		return value.Equal(a, b)
	}
}

func bindVar(name string, val value.V, bindings *Bindings, occursCheck bool) bool {
	if existing, ok := bindings.Lookup(name); ok {
		return unify(existing, val, bindings, occursCheck)
	}
	if occursCheck && occurs(name, val, *bindings) {
		return false
	}
	*bindings = append(*bindings, Binding{Name: name, Value: val})
	return true
}

func occurs(name string, v value.V, bindings Bindings) bool {
	v = resolve(v, bindings)
	switch v.Kind() {
	case value.KindVariable:
		return !v.IsFreshVarMarker() && v.VariableName() == name
	case value.KindSExpr:
		for _, it := range v.Items() {
			if occurs(name, it, bindings) {
				return true
			}
		}
		return false
	case value.KindTyped:
		val, typ := v.TypedParts()
		return occurs(name, val, bindings) || occurs(name, typ, bindings)
	case value.KindError:
		_, payload := v.ErrorParts()
		return occurs(name, payload, bindings)
	default:
		return false
	}
}

// Substitute rewrites v by replacing every bound variable with its
// binding, recursively. Unbound variables (and the fresh "$" marker)
// pass through unchanged. Used by interp/vm to materialize a rule body
// after a successful match.
func Substitute(v value.V, bindings Bindings) value.V {
	switch v.Kind() {
	case value.KindVariable:
		if v.IsFreshVarMarker() {
			return v
		}
		if val, ok := bindings.Lookup(v.VariableName()); ok {
			return Substitute(val, bindings)
		}
		return v
	case value.KindSExpr:
		items := v.Items()
		out := make([]value.V, len(items))
		for i, it := range items {
			out[i] = Substitute(it, bindings)
		}
		return value.SExpr(out...)
	case value.KindTyped:
		val, typ := v.TypedParts()
		return value.Typed(Substitute(val, bindings), Substitute(typ, bindings))
	case value.KindError:
		msg, payload := v.ErrorParts()
		return value.NewError(msg, Substitute(payload, bindings))
	default:
		return v
	}
}
