// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mettatron/value"
	"github.com/luxfi/mettatron/vm"
)

func TestBoxUnboxRoundTripsLong(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 12345, -12345, 1 << 40, -(1 << 40)} {
		word, ok := Box(value.Long(n))
		require.True(t, ok)
		back, ok := UnboxToValue(word)
		require.True(t, ok)
		require.Equal(t, n, back.AsLong())
	}
}

func TestBoxUnboxRoundTripsBoolNilUnit(t *testing.T) {
	for _, v := range []value.V{value.Bool(true), value.Bool(false), value.Nil, value.Unit} {
		word, ok := Box(v)
		require.True(t, ok)
		back, ok := UnboxToValue(word)
		require.True(t, ok)
		require.True(t, value.Equal(v, back))
	}
}

func TestUnboxRejectsOrdinaryFloatAsNonTagged(t *testing.T) {
	word := BoxFloat(3.5)
	_, _, ok := Unbox(word)
	require.False(t, ok)
	back, ok := UnboxToValue(word)
	require.True(t, ok)
	require.Equal(t, value.KindFloat, back.Kind())
	require.Equal(t, 3.5, back.AsFloat())
}

func TestJumpTargetsFindsIfBranchDestination(t *testing.T) {
	interner := value.NewInterner()
	expr := value.SExpr(
		value.NewAtom(interner, "if"),
		value.Bool(true),
		value.Long(1),
		value.Long(2),
	)
	chunk, err := vm.Compile(expr, "test")
	require.NoError(t, err)

	targets := JumpTargets(chunk.Code)
	require.True(t, targets.Any())
}

func TestCacheInsertAndGetRoundTrips(t *testing.T) {
	cache, err := NewCache()
	require.NoError(t, err)
	defer cache.Close()

	hash := HashBytecode([]byte{1, 2, 3})
	compiled := &CompiledChunk{ContentHash: hash, CodeSize: 3}
	cache.Insert(hash, compiled)
	cache.store.Wait()

	got, ok := cache.Get(hash)
	require.True(t, ok)
	require.Equal(t, hash, got.ContentHash)
}

func TestFromChunkRefusesNondeterministicChunk(t *testing.T) {
	interner := value.NewInterner()
	expr := value.SExpr(
		value.NewAtom(interner, "superpose"),
		value.SExpr(value.Long(1), value.Long(2)),
	)
	chunk, err := vm.Compile(expr, "nondet")
	require.NoError(t, err)

	_, ok := FromChunk(chunk)
	require.False(t, ok)
}

func TestFromChunkLowersPureArithmetic(t *testing.T) {
	interner := value.NewInterner()
	expr := value.SExpr(
		value.NewAtom(interner, "+"),
		value.Long(1),
		value.Long(2),
	)
	chunk, err := vm.Compile(expr, "arith")
	require.NoError(t, err)
	require.True(t, chunk.JITEligible())

	prog, ok := FromChunk(chunk)
	require.True(t, ok)
	require.NotEmpty(t, prog.Code)
}

func TestTryCompileAndRunFallsBackWithoutCgo(t *testing.T) {
	interner := value.NewInterner()
	expr := value.SExpr(
		value.NewAtom(interner, "+"),
		value.Long(1),
		value.Long(2),
	)
	chunk, err := vm.Compile(expr, "arith")
	require.NoError(t, err)

	v, ok := TryCompileAndRun(nil, chunk)
	if Available() {
		require.True(t, ok)
		require.True(t, value.Equal(v, value.Long(3)))
	} else {
		require.False(t, ok)
	}
}

func TestFromChunkLowersIfWithComparison(t *testing.T) {
	interner := value.NewInterner()
	expr := value.SExpr(
		value.NewAtom(interner, "if"),
		value.SExpr(value.NewAtom(interner, "<"), value.Long(1), value.Long(2)),
		value.Long(40),
		value.Long(2),
	)
	chunk, err := vm.Compile(expr, "if-lt")
	require.NoError(t, err)
	require.True(t, chunk.JITEligible())

	prog, ok := FromChunk(chunk)
	require.True(t, ok)
	require.NotEmpty(t, prog.Code)

	foundJump := false
	for _, ins := range prog.Code {
		if ins.Op == stage1JumpIfFalse || ins.Op == stage1Jump {
			foundJump = true
		}
	}
	require.True(t, foundJump)
}

func TestLookupOrCompileCachesAcrossIdenticalChunks(t *testing.T) {
	cache, err := NewCache()
	require.NoError(t, err)
	defer cache.Close()

	interner := value.NewInterner()
	expr := value.SExpr(
		value.NewAtom(interner, "+"),
		value.Long(40),
		value.Long(2),
	)
	chunkA, err := vm.Compile(expr, "a")
	require.NoError(t, err)
	chunkB, err := vm.Compile(expr, "b")
	require.NoError(t, err)

	ccA, ok := LookupOrCompile(cache, chunkA)
	require.True(t, ok)
	cache.store.Wait()

	ccB, ok := LookupOrCompile(cache, chunkB)
	require.True(t, ok)
	require.Equal(t, ccA.ContentHash, ccB.ContentHash)
	require.Same(t, ccA, ccB)
}

func TestContextTransferUnboxesStack(t *testing.T) {
	word, ok := Box(value.Long(7))
	require.True(t, ok)
	ctx := &Context{Stack: []uint64{word}}
	values, ok := ctx.Transfer()
	require.True(t, ok)
	require.Len(t, values, 1)
	require.Equal(t, int64(7), values[0].AsLong())
}
