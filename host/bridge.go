// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package host bridges the core's RuntimeState to a host-ecosystem
// structured value (spec.md §6 "host integration"): a typed, map-like
// representation built on google.golang.org/protobuf's structpb, the
// same value-interchange shape the wider protobuf ecosystem uses for
// dynamic/untyped data.
package host

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/luxfi/mettatron/exec"
	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/value"
)

// Sink is the host-side receiver a foreign runtime implements to accept
// converted RuntimeState values — the other end of the "host integration"
// contract in spec.md §6. Kept as a small interface so embedding
// applications can supply whatever transport (IPC, FFI callback, channel)
// fits their runtime.
type Sink interface {
	Publish(ctx context.Context, state *structpb.Struct) error
}

// Bridge converts between exec.RuntimeState and structpb.Struct. The env
// field is carried as the raw snapshot bytes (spec.md §4.1: "the
// serialize/deserialize path for the environment must be byte-faithful
// ... must not re-encode atoms through the surface-syntax printer"), so
// Bridge never attempts to reconstruct env from a host value's
// field-by-field structure — only from the opaque bytes it emitted.
type Bridge struct {
	interner *value.Interner
}

func New(interner *value.Interner) *Bridge {
	return &Bridge{interner: interner}
}

// StateToHostValue converts state into a structpb.Struct with three
// fields: "pending" (list), "env" (the raw snapshot bytes, base64-coded
// by structpb's own string encoding of []byte is not used here —
// structpb has no byte type, so env travels as a list of numbers to stay
// byte-faithful without a lossy string reinterpretation), and "outputs"
// (list).
func (b *Bridge) StateToHostValue(state exec.RuntimeState) (*structpb.Struct, error) {
	pendingList, err := b.valuesToList(state.Pending)
	if err != nil {
		return nil, err
	}
	outputsList, err := b.valuesToList(state.Outputs)
	if err != nil {
		return nil, err
	}
	envBytes := store.Snapshot(state.Env)
	envList, err := bytesToList(envBytes)
	if err != nil {
		return nil, err
	}

	return structpb.NewStruct(map[string]interface{}{
		"pending": pendingList.AsInterface(),
		"env":     envList.AsInterface(),
		"outputs": outputsList.AsInterface(),
	})
}

// PublishState converts state and hands it to sink, for callers bridging
// a RuntimeState out to an embedding host process.
func (b *Bridge) PublishState(ctx context.Context, sink Sink, state exec.RuntimeState) error {
	hostValue, err := b.StateToHostValue(state)
	if err != nil {
		return fmt.Errorf("host: converting state: %w", err)
	}
	return sink.Publish(ctx, hostValue)
}

// StateFromHostValue reconstructs a RuntimeState from a structpb.Struct
// produced by StateToHostValue. The env field is restored strictly from
// its raw bytes via store.Restore, never inferred from any other field,
// preserving the byte-faithfulness contract in both directions.
func (b *Bridge) StateFromHostValue(s *structpb.Struct) (exec.RuntimeState, error) {
	fields := s.GetFields()

	envBytes, err := listToBytes(fields["env"])
	if err != nil {
		return exec.RuntimeState{}, fmt.Errorf("host: decoding env field: %w", err)
	}
	env, err := store.Restore(envBytes, b.interner)
	if err != nil {
		return exec.RuntimeState{}, fmt.Errorf("host: restoring environment: %w", err)
	}

	pending, err := b.listToValues(fields["pending"])
	if err != nil {
		return exec.RuntimeState{}, fmt.Errorf("host: decoding pending field: %w", err)
	}
	outputs, err := b.listToValues(fields["outputs"])
	if err != nil {
		return exec.RuntimeState{}, fmt.Errorf("host: decoding outputs field: %w", err)
	}

	return exec.RuntimeState{Pending: pending, Env: env, Outputs: outputs}, nil
}

func bytesToList(data []byte) (*structpb.Value, error) {
	nums := make([]interface{}, len(data))
	for i, b := range data {
		nums[i] = float64(b)
	}
	return structpb.NewList(nums)
}

func listToBytes(v *structpb.Value) ([]byte, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("host: expected list value for env bytes")
	}
	out := make([]byte, len(list.GetValues()))
	for i, n := range list.GetValues() {
		out[i] = byte(n.GetNumberValue())
	}
	return out, nil
}
