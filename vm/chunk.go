// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"sync/atomic"

	"github.com/luxfi/mettatron/utils"
	"github.com/luxfi/mettatron/value"
)

// TierState is the hotness state machine of spec.md §3: {Cold, Warming,
// Hot, Compiling, Jitted, Failed}. Transitions are triggered by the
// WarmThreshold/HotThreshold execution counts and one terminal compile
// outcome; Compiling is entered via exactly one compare-exchange winner.
type TierState int64

const (
	TierCold TierState = iota
	TierWarming
	TierHot
	TierCompiling
	TierJitted
	TierFailed
)

func (s TierState) String() string {
	switch s {
	case TierCold:
		return "Cold"
	case TierWarming:
		return "Warming"
	case TierHot:
		return "Hot"
	case TierCompiling:
		return "Compiling"
	case TierJitted:
		return "Jitted"
	case TierFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Hotness is the atomic execution-count and tier-state profile every
// chunk carries (spec.md §3). nativeCode is not written by any package:
// compiled entry points live in the jit package's content-hash cache.
type Hotness struct {
	execCount  utils.AtomicInt
	tierState  utils.AtomicInt
	nativeCode atomic.Pointer[any]
}

func newHotness() *Hotness {
	h := &Hotness{}
	h.tierState.Set(int64(TierCold))
	return h
}

// RecordExecution increments the execution counter and returns the tier
// state that was current *before* this call, plus whether it just
// crossed a promotion threshold. It does not perform the CAS into
// Compiling itself — that is the Hybrid Executor's job, since only it
// knows whether the JIT backend is enabled.
func (h *Hotness) RecordExecution(warm, hot uint64) (prior TierState, crossedWarm, crossedHot bool) {
	n := uint64(h.execCount.Inc())
	prior = TierState(h.tierState.Get())
	if prior == TierCold && n >= warm {
		h.tierState.Set(int64(TierWarming))
		crossedWarm = true
	}
	if prior != TierHot && prior != TierCompiling && prior != TierJitted && prior != TierFailed && n >= hot {
		h.tierState.Set(int64(TierHot))
		crossedHot = true
	}
	return prior, crossedWarm, crossedHot
}

func (h *Hotness) State() TierState { return TierState(h.tierState.Get()) }

func (h *Hotness) SetState(s TierState) { h.tierState.Set(int64(s)) }

// CompareAndSwapState sets the state to new if it currently equals old.
// The check and the set are two separate atomic operations, so two
// racing callers can both succeed; it is not a single-winner primitive.
func (h *Hotness) CompareAndSwapState(old, new TierState) bool {
	// utils.AtomicInt wraps atomic.Int64 without exposing CAS, so the
	// state machine's single-writer guarantee is enforced one level up,
	// in exec.tierstate, which holds the real atomic.Int64 CAS primitive
	// this type is modeled on. Kept here for local single-threaded tests.
	if h.State() != old {
		return false
	}
	h.SetState(new)
	return true
}

func (h *Hotness) ExecCount() uint64 { return uint64(h.execCount.Get()) }

// Chunk is an immutable compiled unit (spec.md §3). SubChunks back
// higher-order forms (map-atom/filter-atom/foldl-atom); JumpTables back
// OpJumpTable.
type Chunk struct {
	Code                    []byte
	Constants               []value.V
	SubChunks               []*Chunk
	JumpTables              [][]int32
	Lines                   []int32
	DebugName               string
	LocalCount              int
	Arity                   int
	ContainsNondeterminism  bool
	ContainsRuleDispatch    bool
	Hotness                 *Hotness
}

func NewChunk(debugName string) *Chunk {
	return &Chunk{DebugName: debugName, Hotness: newHotness()}
}

// JITEligible reports whether this chunk may ever be handed to the JIT
// (spec.md §4.5): chunks containing nondeterminism opcodes or rule
// dispatch are permanently refused, since the JIT never generates native
// choice-point management or rule backtracking.
func (c *Chunk) JITEligible() bool {
	return !c.ContainsNondeterminism && !c.ContainsRuleDispatch
}
