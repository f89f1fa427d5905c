// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBareDollarIsNotAVariable(t *testing.T) {
	_, err := NewVariable("$")
	require.Error(t, err)
	require.True(t, FreshVarMarker.IsFreshVarMarker())
}

func TestVariableRequiresTail(t *testing.T) {
	v, err := NewVariable("$x")
	require.NoError(t, err)
	require.Equal(t, KindVariable, v.Kind())
	require.Equal(t, "$x", v.VariableName())
}

func TestNaNStructuralEquality(t *testing.T) {
	nan := Float(math.NaN())
	require.True(t, Equal(nan, nan), "structural equality must treat NaN == NaN so NaN-keyed facts are retrievable")
	require.False(t, FloatIEEEEqual(nan, nan), "IEEE equality must keep NaN != NaN")
}

func TestSExprDistinctFromUnit(t *testing.T) {
	require.False(t, Equal(SExpr(), Unit))
}

func TestAmpersandSurvivesAsLiteralAtom(t *testing.T) {
	tbl := NewInterner()
	amp := NewAtom(tbl, "&")
	require.True(t, amp.IsLiteralOperator())
	_, err := NewVariable("&")
	require.Error(t, err)
}

func TestAtomEqualityIsByInternedIdentity(t *testing.T) {
	tbl := NewInterner()
	a1 := NewAtom(tbl, "foo")
	a2 := NewAtom(tbl, "foo")
	b := NewAtom(tbl, "bar")
	require.True(t, Equal(a1, a2))
	require.False(t, Equal(a1, b))
	require.Equal(t, a1.AtomID(), a2.AtomID())
}

func TestInternerRoundTrip(t *testing.T) {
	tbl := NewInterner()
	id := tbl.Intern("double")
	name, ok := tbl.Lookup(id)
	require.True(t, ok)
	require.Equal(t, "double", name)
}

func TestErrorValueEquality(t *testing.T) {
	e1 := NewError("div-by-zero", Long(0))
	e2 := NewError("div-by-zero", Long(0))
	e3 := NewError("div-by-zero", Long(1))
	require.True(t, Equal(e1, e2))
	require.False(t, Equal(e1, e3))
}
