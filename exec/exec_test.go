// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/mettatron/config"
	"github.com/luxfi/mettatron/interp"
	"github.com/luxfi/mettatron/value"
	"github.com/luxfi/mettatron/vm"
)

func newTestExecutor() (*Executor, *value.Interner) {
	interner := value.NewInterner()
	return New(interp.New(interner), config.Default()), interner
}

func TestCompileProducesEmptyEnvAndNoOutputs(t *testing.T) {
	interner := value.NewInterner()
	state, err := Compile(interner, "!(+ 1 2)")
	require.NoError(t, err)
	require.Len(t, state.Pending, 1)
	require.Empty(t, state.Outputs)
}

func TestRunStateEvaluatesDirectiveAndRecordsOutput(t *testing.T) {
	ex, interner := newTestExecutor()
	compiled, err := Compile(interner, "!(+ 1 2)")
	require.NoError(t, err)

	state, err := RunState(ex, RuntimeState{Env: compiled.Env}, compiled)
	require.NoError(t, err)
	require.Len(t, state.Outputs, 1)
	require.True(t, value.Equal(state.Outputs[0], value.Long(3)))
}

func TestRunStateAppliesRuleDefinitionWithoutRecordingOutput(t *testing.T) {
	ex, interner := newTestExecutor()
	compiled, err := Compile(interner, "(= (double $x) (* $x 2)) !(double 21)")
	require.NoError(t, err)

	state, err := RunState(ex, RuntimeState{Env: compiled.Env}, compiled)
	require.NoError(t, err)
	require.Len(t, state.Outputs, 1)
	require.True(t, value.Equal(state.Outputs[0], value.Long(42)))
}

func TestRunStateComposesAcrossTwoCalls(t *testing.T) {
	ex, interner := newTestExecutor()
	first, err := Compile(interner, "!(+ 1 1)")
	require.NoError(t, err)
	accumulated, err := RunState(ex, RuntimeState{Env: first.Env}, first)
	require.NoError(t, err)

	p := func(src string) RuntimeState {
		s, err := Compile(interner, src)
		require.NoError(t, err)
		return s
	}
	second := p("!(+ 2 2)")
	final, err := RunState(ex, accumulated, second)
	require.NoError(t, err)
	require.Len(t, final.Outputs, 2)
	require.True(t, value.Equal(final.Outputs[0], value.Long(2)))
	require.True(t, value.Equal(final.Outputs[1], value.Long(4)))
}

func TestRunStateBatchesIndependentDirectivesOutOfOrderButPublishesInOrder(t *testing.T) {
	ex, interner := newTestExecutor()
	compiled, err := Compile(interner, "!(+ 1 1) !(+ 2 2) !(+ 3 3)")
	require.NoError(t, err)

	state, err := RunState(ex, RuntimeState{Env: compiled.Env}, compiled)
	require.NoError(t, err)
	require.Equal(t, []value.V{value.Long(2), value.Long(4), value.Long(6)}, state.Outputs)
}

func TestRunStateAsyncResolves(t *testing.T) {
	ex, interner := newTestExecutor()
	compiled, err := Compile(interner, "!(+ 5 5)")
	require.NoError(t, err)

	result := <-RunStateAsync(ex, RuntimeState{Env: compiled.Env}, compiled)
	require.NoError(t, result.Err)
	require.Len(t, result.State.Outputs, 1)
	require.True(t, value.Equal(result.State.Outputs[0], value.Long(10)))
}

func TestEvalDirectiveFallsBackToTier0ForUnsupportedForm(t *testing.T) {
	ex, interner := newTestExecutor()
	compiled, err := Compile(interner, "!(catch (/ 1 0) 0)")
	require.NoError(t, err)

	state, err := RunState(ex, RuntimeState{Env: compiled.Env}, compiled)
	require.NoError(t, err)
	require.Len(t, state.Outputs, 1)
	require.True(t, value.Equal(state.Outputs[0], value.Long(0)))
}

func TestRunChunkPromotesAcrossHotnessThresholds(t *testing.T) {
	interner := value.NewInterner()
	ex := New(interp.New(interner), config.PoolConfig{
		MaxWorkers: 1, WarmThreshold: 2, HotThreshold: 3, JITEnabled: true,
	})
	compiled, err := Compile(interner, "!(+ 1 2)")
	require.NoError(t, err)
	inner, ok := isDirective(compiled.Pending[0])
	require.True(t, ok)
	chunk, err := vm.Compile(inner, "test")
	require.NoError(t, err)

	var env = compiled.Env
	for i := 0; i < 5; i++ {
		_, env, err = ex.RunChunk(context.Background(), chunk, env, nil)
		require.NoError(t, err)
	}
	state := chunk.Hotness.State()
	require.True(t, state == vm.TierJitted || state == vm.TierFailed, "state %s", state)
}
