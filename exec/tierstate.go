// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exec

import (
	"sync"
	"sync/atomic"

	"github.com/luxfi/mettatron/vm"
)

// tierCAS holds the real single-winner Hot->Compiling compare-and-swap
// that vm.Hotness.CompareAndSwapState documents as belonging here: only
// the executor knows whether the JIT backend is enabled for this run, so
// only the executor is allowed to initiate compilation. Exactly one
// goroutine racing this call wins; the rest continue running the chunk on
// the VM for this call (spec.md §4.6: "losers execute in VM; winner
// publishes to native_ptr or marks Failed").
type tierCAS struct {
	word atomic.Int64
}

func newTierCAS(initial vm.TierState) *tierCAS {
	c := &tierCAS{}
	c.word.Store(int64(initial))
	return c
}

func (c *tierCAS) load() vm.TierState {
	return vm.TierState(c.word.Load())
}

func (c *tierCAS) compareAndSwap(old, new vm.TierState) bool {
	return c.word.CompareAndSwap(int64(old), int64(new))
}

// tierRegistry keys a tierCAS per chunk by pointer identity, since
// vm.Chunk itself only exposes Hotness.SetState/State for single-threaded
// tests (vm/chunk.go's CompareAndSwapState comment). The registry makes
// the real atomic winner-take-all promotion available without changing
// vm.Chunk's public surface.
type tierRegistry struct {
	mu    sync.Mutex
	byPtr map[*vm.Chunk]*tierCAS
}

func newTierRegistry() *tierRegistry {
	return &tierRegistry{byPtr: make(map[*vm.Chunk]*tierCAS)}
}

func (r *tierRegistry) casFor(chunk *vm.Chunk) *tierCAS {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byPtr[chunk]; ok {
		return c
	}
	c := newTierCAS(chunk.Hotness.State())
	r.byPtr[chunk] = c
	return c
}

// tryEnterCompiling attempts the Hot->Compiling transition for chunk.
// Returns true exactly once per chunk's lifetime (the single winner).
func (r *tierRegistry) tryEnterCompiling(chunk *vm.Chunk) bool {
	cas := r.casFor(chunk)
	if !cas.compareAndSwap(vm.TierHot, vm.TierCompiling) {
		return false
	}
	chunk.Hotness.SetState(vm.TierCompiling)
	return true
}

// finishCompiling records the outcome and syncs the chunk's visible state.
func (r *tierRegistry) finishCompiling(chunk *vm.Chunk, success bool) {
	cas := r.casFor(chunk)
	final := vm.TierFailed
	if success {
		final = vm.TierJitted
	}
	cas.compareAndSwap(vm.TierCompiling, final)
	chunk.Hotness.SetState(final)
}
