// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mettatron/interp"
	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/value"
)

func TestCompileAndRunArithmeticDirective(t *testing.T) {
	interner := value.NewInterner()
	expr := value.SExpr(value.NewAtom(interner, "+"), value.Long(1), value.Long(2))

	chunk, err := Compile(expr, "test")
	require.NoError(t, err)
	require.False(t, chunk.ContainsNondeterminism)
	require.False(t, chunk.ContainsRuleDispatch)

	m := New(interp.New(interner))
	results, _, err := m.Run(chunk, store.New(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, value.Equal(results[0], value.Long(3)))
}

func TestCompileAndRunSuperpose(t *testing.T) {
	interner := value.NewInterner()
	expr := value.SExpr(
		value.NewAtom(interner, "superpose"),
		value.SExpr(value.Long(1), value.Long(2), value.Long(3)),
	)
	chunk, err := Compile(expr, "test")
	require.NoError(t, err)
	require.True(t, chunk.ContainsNondeterminism)

	m := New(interp.New(interner))
	results, _, err := m.Run(chunk, store.New(), nil)
	require.NoError(t, err)
	require.Equal(t, []value.V{value.Long(1), value.Long(2), value.Long(3)}, results)
}

func TestCompileAndRunRuleCallDelegatesToInterp(t *testing.T) {
	interner := value.NewInterner()
	in := interp.New(interner)
	env := store.New()

	x, err := value.NewVariable("$x")
	require.NoError(t, err)
	define := value.SExpr(
		value.NewAtom(interner, "="),
		value.SExpr(value.NewAtom(interner, "double"), x),
		value.SExpr(value.NewAtom(interner, "*"), x, value.Long(2)),
	)
	_, env, err = in.Eval(env, define)
	require.NoError(t, err)

	call := value.SExpr(value.NewAtom(interner, "double"), value.Long(21))
	chunk, err := Compile(call, "test")
	require.NoError(t, err)
	require.True(t, chunk.ContainsRuleDispatch)
	require.False(t, chunk.JITEligible())

	m := New(in)
	results, _, err := m.Run(chunk, env, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, value.Equal(results[0], value.Long(42)))
}

func TestCompileUnsupportedFormFallsBack(t *testing.T) {
	interner := value.NewInterner()
	expr := value.SExpr(
		value.NewAtom(interner, "catch"),
		value.SExpr(value.NewAtom(interner, "/"), value.Long(1), value.Long(0)),
		value.Long(0),
	)
	_, err := Compile(expr, "test")
	require.ErrorIs(t, err, ErrUnsupportedForm)
}

func TestHotnessPromotesAtThresholds(t *testing.T) {
	h := newHotness()
	require.Equal(t, TierCold, h.State())

	var crossedWarm, crossedHot bool
	for i := 0; i < 10; i++ {
		_, crossedWarm, crossedHot = h.RecordExecution(10, 100)
	}
	require.True(t, crossedWarm)
	require.False(t, crossedHot)
	require.Equal(t, TierWarming, h.State())

	for i := 0; i < 90; i++ {
		_, _, crossedHot = h.RecordExecution(10, 100)
	}
	require.True(t, crossedHot)
}
