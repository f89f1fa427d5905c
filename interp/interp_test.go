// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/value"
)

func TestArithmeticDirective(t *testing.T) {
	interner := value.NewInterner()
	in := New(interner)
	env := store.New()

	expr := value.SExpr(value.NewAtom(interner, "+"), value.Long(1), value.Long(2))
	results, _, err := in.Eval(env, expr)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, value.Equal(results[0], value.Long(3)))
}

func TestRuleDefinitionThenUse(t *testing.T) {
	interner := value.NewInterner()
	in := New(interner)
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
	require.Equal(t, 1, env.Len())

	call := value.SExpr(value.NewAtom(interner, "double"), value.Long(21))
	results, _, err := in.Eval(env, call)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, value.Equal(results[0], value.Long(42)))
}

func TestSuperposeYieldsOrderedAlternatives(t *testing.T) {
	interner := value.NewInterner()
	in := New(interner)
	env := store.New()

	expr := value.SExpr(
		value.NewAtom(interner, "superpose"),
		value.SExpr(value.Long(1), value.Long(2), value.Long(3)),
	)
	results, _, err := in.Eval(env, expr)
	require.NoError(t, err)
	require.Equal(t, []value.V{value.Long(1), value.Long(2), value.Long(3)}, results)
}

func TestMatchSurvivesAmpersandThroughRewriting(t *testing.T) {
	interner := value.NewInterner()
	in := New(interner)
	env := store.New()

	roomA := value.NewAtom(interner, "room_a")
	roomB := value.NewAtom(interner, "room_b")
	connected := value.SExpr(value.NewAtom(interner, "connected"), roomA, roomB)

	var err error
	env, err = env.InsertFact(connected)
	require.NoError(t, err)

	f, err := value.NewVariable("$f")
	require.NoError(t, err)
	tt, err := value.NewVariable("$t")
	require.NoError(t, err)

	define := value.SExpr(
		value.NewAtom(interner, "="),
		value.SExpr(value.NewAtom(interner, "is-connected"), f, tt),
		value.SExpr(
			value.NewAtom(interner, "match"),
			value.NewAtom(interner, "&"),
			value.NewAtom(interner, "self"),
			value.SExpr(value.NewAtom(interner, "connected"), f, tt),
			value.True,
		),
	)
	_, env, err = in.Eval(env, define)
	require.NoError(t, err)

	call := value.SExpr(value.NewAtom(interner, "is-connected"), roomA, roomB)
	results, _, err := in.Eval(env, call)
	require.NoError(t, err)
	require.Equal(t, []value.V{value.True}, results)
}

func TestCatchRecoversFromDivisionByZero(t *testing.T) {
	interner := value.NewInterner()
	in := New(interner)
	env := store.New()

	a, err := value.NewVariable("$a")
	require.NoError(t, err)
	b, err := value.NewVariable("$b")
	require.NoError(t, err)

	define := value.SExpr(
		value.NewAtom(interner, "="),
		value.SExpr(value.NewAtom(interner, "safe-div"), a, b),
		value.SExpr(
			value.NewAtom(interner, "catch"),
			value.SExpr(value.NewAtom(interner, "/"), a, b),
			value.Long(0),
		),
	)
	_, env, err = in.Eval(env, define)
	require.NoError(t, err)

	call := value.SExpr(value.NewAtom(interner, "safe-div"), value.Long(10), value.Long(0))
	results, _, err := in.Eval(env, call)
	require.NoError(t, err)
	require.Equal(t, []value.V{value.Long(0)}, results)
}

func TestIfDistributesOverNonDeterministicCondition(t *testing.T) {
	interner := value.NewInterner()
	in := New(interner)
	env := store.New()

	expr := value.SExpr(
		value.NewAtom(interner, "if"),
		value.SExpr(value.NewAtom(interner, "superpose"), value.SExpr(value.True, value.False)),
		value.Long(1),
		value.Long(2),
	)
	results, _, err := in.Eval(env, expr)
	require.NoError(t, err)
	require.Equal(t, []value.V{value.Long(1), value.Long(2)}, results)
}

func TestCollapseReifiesResultsIntoSingletonList(t *testing.T) {
	interner := value.NewInterner()
	in := New(interner)
	env := store.New()

	expr := value.SExpr(
		value.NewAtom(interner, "collapse"),
		value.SExpr(value.NewAtom(interner, "superpose"), value.SExpr(value.Long(1), value.Long(2))),
	)
	results, _, err := in.Eval(env, expr)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, value.KindSExpr, results[0].Kind())
	require.Equal(t, []value.V{value.Long(1), value.Long(2)}, results[0].Items())
}

func TestUnknownRuleIsSelfEvaluating(t *testing.T) {
	interner := value.NewInterner()
	in := New(interner)
	env := store.New()

	expr := value.SExpr(value.NewAtom(interner, "unknown-op"), value.Long(1))
	results, _, err := in.Eval(env, expr)
	require.NoError(t, err)
	require.Equal(t, []value.V{expr}, results)
}
