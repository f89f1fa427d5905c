// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mettatron/value"
)

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	interner := value.NewInterner()
	env, err := New().InsertFact(value.NewAtom(interner, "foo"))
	require.NoError(t, err)

	clone := env.Clone()
	clone, err = clone.InsertFact(value.NewAtom(interner, "bar"))
	require.NoError(t, err)

	require.Equal(t, 1, env.Len())
	require.Equal(t, 2, clone.Len())
}

func TestCloneSharesStorageUntilWrite(t *testing.T) {
	interner := value.NewInterner()
	env, err := New().InsertFact(value.NewAtom(interner, "shared"))
	require.NoError(t, err)

	a := env.Clone()
	b := env.Clone()
	require.Equal(t, a.root, b.root)

	a, err = a.InsertFact(value.NewAtom(interner, "only-a"))
	require.NoError(t, err)
	require.NotEqual(t, a.root, b.root)
	require.Equal(t, 1, b.Len())
	require.Equal(t, 2, a.Len())
}

func TestGroundFastPathMatchesGeneralMatch(t *testing.T) {
	interner := value.NewInterner()
	fact := value.SExpr(value.NewAtom(interner, "age"), value.NewAtom(interner, "alice"), value.Long(30))
	env, err := New().InsertFact(fact)
	require.NoError(t, err)

	ok, err := env.HasGroundFact(fact)
	require.NoError(t, err)
	require.True(t, ok)

	results, err := env.Match(fact, MatchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	absent := value.SExpr(value.NewAtom(interner, "age"), value.NewAtom(interner, "bob"), value.Long(30))
	ok, err = env.HasGroundFact(absent)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	interner := value.NewInterner()
	x, err := value.NewVariable("$x")
	require.NoError(t, err)

	env := New()
	env, err = env.InsertFact(value.SExpr(value.NewAtom(interner, "likes"), value.NewAtom(interner, "alice"), value.NewAtom(interner, "bob")))
	require.NoError(t, err)
	guard := value.True
	env, err = env.Insert(
		value.SExpr(value.NewAtom(interner, "double"), x),
		value.SExpr(value.NewAtom(interner, "*"), x, value.Long(2)),
		&guard,
	)
	require.NoError(t, err)

	data := Snapshot(env)
	require.NotEmpty(t, data)

	restored, err := Restore(data, interner)
	require.NoError(t, err)
	require.Equal(t, env.Len(), restored.Len())

	rules := restored.IterRules()
	require.Len(t, rules, 2)
	require.True(t, value.Equal(rules[0].Pattern, value.SExpr(value.NewAtom(interner, "likes"), value.NewAtom(interner, "alice"), value.NewAtom(interner, "bob"))))
	require.NotNil(t, rules[1].Guard)
}

func TestSnapshotPreservesReservedRangeBytes(t *testing.T) {
	interner := value.NewInterner()
	// 0x5A ('Z') falls in the spec's reserved tag byte range (0x40-0x7F);
	// an atom containing it must round-trip untouched since all payload
	// bytes are length-prefixed, never scanned as tags.
	weird := string([]byte{0x40, 0x5A, 0x7F})
	env, err := New().InsertFact(value.NewAtom(interner, weird))
	require.NoError(t, err)

	data := Snapshot(env)
	restored, err := Restore(data, interner)
	require.NoError(t, err)

	rules := restored.IterRules()
	require.Len(t, rules, 1)
	require.Equal(t, weird, rules[0].Pattern.AsString())
}

func TestUnifyBareFreshVariableNeverBinds(t *testing.T) {
	bindings, ok := Unify(value.FreshVarMarker, value.Long(42), false)
	require.True(t, ok)
	require.Empty(t, bindings)
}

func TestUnifyNamedVariableBindsAndSubstitutes(t *testing.T) {
	interner := value.NewInterner()
	x, err := value.NewVariable("$x")
	require.NoError(t, err)

	pattern := value.SExpr(value.NewAtom(interner, "f"), x, x)
	query := value.SExpr(value.NewAtom(interner, "f"), value.Long(7), value.Long(7))

	bindings, ok := Unify(query, pattern, false)
	require.True(t, ok)
	got, found := bindings.Lookup("$x")
	require.True(t, found)
	require.True(t, value.Equal(got, value.Long(7)))

	substituted := Substitute(pattern, bindings)
	require.True(t, value.Equal(substituted, query))
}

func TestUnifyOccursCheckRejectsCircularBinding(t *testing.T) {
	interner := value.NewInterner()
	x, err := value.NewVariable("$x")
	require.NoError(t, err)

	circular := value.SExpr(value.NewAtom(interner, "f"), x)
	_, ok := Unify(x, circular, true)
	require.False(t, ok)

	_, ok = Unify(x, circular, false)
	require.True(t, ok)
}

func TestRemoveIsIdempotentAndDoesNotCloneOnNoOp(t *testing.T) {
	interner := value.NewInterner()
	fact := value.NewAtom(interner, "solo")
	env, err := New().InsertFact(fact)
	require.NoError(t, err)

	absent := value.NewAtom(interner, "missing")
	after, err := env.Remove(absent)
	require.NoError(t, err)
	require.Equal(t, env.root, after.root)

	after, err = env.Remove(fact)
	require.NoError(t, err)
	require.Equal(t, 0, after.Len())
	require.Equal(t, 1, env.Len())
}
