// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jit

import (
	"github.com/luxfi/mettatron/value"
	"github.com/luxfi/mettatron/vm"
)

// Reason enumerates why native code handed execution back to the VM
// (spec.md §4.5).
type Reason int

const (
	ReasonNone Reason = iota
	ReasonTypeGuardFailed
	ReasonRuntimeCallRequired
	ReasonNondeterminism
	ReasonRuleDispatch
	ReasonBackendFailure
)

func (r Reason) String() string {
	switch r {
	case ReasonTypeGuardFailed:
		return "type_guard_failed"
	case ReasonRuntimeCallRequired:
		return "runtime_call_required"
	case ReasonNondeterminism:
		return "nondeterminism"
	case ReasonRuleDispatch:
		return "rule_dispatch"
	case ReasonBackendFailure:
		return "backend_failure"
	default:
		return "none"
	}
}

// ClassifyBailout reports why chunk can't run natively, for the caller's
// bailout diagnostics (spec.md §4.5's bailout protocol). It never needs
// to inspect a live native Context, since every reason here is decided
// before native code ever runs: JITEligible/FromChunk refuse such chunks
// at lowering time rather than bailing mid-execution.
func ClassifyBailout(chunk *vm.Chunk) Reason {
	switch {
	case chunk.ContainsNondeterminism:
		return ReasonNondeterminism
	case chunk.ContainsRuleDispatch:
		return ReasonRuleDispatch
	default:
		return ReasonBackendFailure
	}
}

// Context is the per-thread structure the native call ABI passes by
// pointer (spec.md §4.5 Stage 2). Stack holds NaN-boxed operand words,
// which Transfer un-boxes into value.V form. Executor.RunChunk builds a
// Context with an empty Stack when native execution declines, then re-runs
// the whole chunk on the VM from its first instruction; BailoutIP is not
// read anywhere, and execution never resumes mid-chunk.
type Context struct {
	Stack       []uint64
	Bailout     bool
	BailoutIP   int
	BailoutKind Reason
}

// Transfer converts ctx.Stack into VM-form values (testable property 6:
// "bailout transparency"). The executor records only how many values it
// got; it does not push them onto a VM stack.
func (ctx *Context) Transfer() ([]value.V, bool) {
	out := make([]value.V, 0, len(ctx.Stack))
	for _, word := range ctx.Stack {
		v, ok := UnboxToValue(word)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
