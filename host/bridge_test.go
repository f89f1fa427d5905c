// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/luxfi/mettatron/exec"
	"github.com/luxfi/mettatron/host/hostmock"
	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/value"
)

var errCustom = errors.New("custom")

func TestStateToHostValueAndBackRoundTrips(t *testing.T) {
	interner := value.NewInterner()
	bridge := New(interner)

	x, err := value.NewVariable("$x")
	require.NoError(t, err)
	env := store.New()
	env, err = env.Insert(
		value.SExpr(value.NewAtom(interner, "double"), x),
		value.SExpr(value.NewAtom(interner, "*"), x, value.Long(2)),
		nil,
	)
	require.NoError(t, err)

	state := exec.RuntimeState{
		Pending: []value.V{value.SExpr(value.NewAtom(interner, "double"), value.Long(21))},
		Env:     env,
		Outputs: []value.V{value.Long(42), value.Bool(true), value.Nil, value.Str("hi")},
	}

	hostValue, err := bridge.StateToHostValue(state)
	require.NoError(t, err)

	back, err := bridge.StateFromHostValue(hostValue)
	require.NoError(t, err)

	require.Len(t, back.Outputs, len(state.Outputs))
	for i := range state.Outputs {
		require.True(t, value.Equal(state.Outputs[i], back.Outputs[i]))
	}
	require.Equal(t, store.Snapshot(state.Env), store.Snapshot(back.Env))
}

func TestValueToStructRoundTripsEverySimpleKind(t *testing.T) {
	interner := value.NewInterner()
	bridge := New(interner)

	values := []value.V{
		value.Nil, value.Unit, value.True, value.False,
		value.Long(-7), value.Float(3.25), value.Str("s"), value.URI("proto://x"),
		value.NewAtom(interner, "foo"),
		value.NewError("Boom", value.Long(1)),
		value.Typed(value.Long(1), value.NewAtom(interner, "Int")),
		value.SExpr(value.Long(1), value.Long(2)),
	}

	for _, v := range values {
		s, err := bridge.valueToStruct(v)
		require.NoError(t, err)
		back, err := bridge.structToValue(s)
		require.NoError(t, err)
		require.True(t, value.Equal(v, back), "mismatch for %v", v)
	}
}

func TestVariableAndFreshVarMarkerRoundTrip(t *testing.T) {
	interner := value.NewInterner()
	bridge := New(interner)

	x, err := value.NewVariable("$x")
	require.NoError(t, err)

	for _, v := range []value.V{x, value.FreshVarMarker} {
		s, err := bridge.valueToStruct(v)
		require.NoError(t, err)
		back, err := bridge.structToValue(s)
		require.NoError(t, err)
		require.True(t, value.Equal(v, back))
	}
}

func TestPublishStateCallsSinkWithConvertedValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := hostmock.NewMockSink(ctrl)

	interner := value.NewInterner()
	bridge := New(interner)
	state := exec.RuntimeState{Env: store.New(), Outputs: []value.V{value.Long(1)}}

	sink.EXPECT().Publish(gomock.Any(), gomock.AssignableToTypeOf(&structpb.Struct{})).Return(nil)

	err := bridge.PublishState(context.Background(), sink, state)
	require.NoError(t, err)
}

func TestPublishStatePropagatesSinkError(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := hostmock.NewMockSink(ctrl)

	interner := value.NewInterner()
	bridge := New(interner)
	state := exec.RuntimeState{Env: store.New()}

	wantErr := errCustom
	sink.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(wantErr)

	err := bridge.PublishState(context.Background(), sink, state)
	require.ErrorIs(t, err, wantErr)
}
