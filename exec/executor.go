// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package exec implements the Hybrid Executor of spec.md §4.6: it reads a
// chunk's hotness, selects a tier, invokes it, and handles JIT bailout
// back to the VM.
package exec

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/luxfi/mettatron/config"
	"github.com/luxfi/mettatron/interp"
	"github.com/luxfi/mettatron/jit"
	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/value"
	"github.com/luxfi/mettatron/vm"
)

// TierObserver is invoked when a chunk is promoted to the JIT and on
// every JIT bailout (spec.md §8 scenario (f): hotness-driven promotion
// must be "observable through instrumentation hooks only"). kind is one
// of "promoted" or "bailout"; from/to name vm.TierState values. Other
// state changes (Cold to Warming, Warming to Hot, a failed compile) are
// not reported.
type TierObserver func(chunk *vm.Chunk, kind, from, to string)

// Executor runs chunks against the tiered pipeline described in spec.md
// §4.6, promoting hot chunks to the JIT (when enabled) and falling back
// to the VM on bailout or compile failure.
type Executor struct {
	cfg      config.PoolConfig
	in       *interp.Interp
	tiers    *tierRegistry
	metrics  *Metrics
	observer TierObserver
	cache    *jit.Cache
}

// New builds an Executor over interner-scoped interpreter in, using cfg's
// thresholds and JIT toggle. It also allocates the content-hash-keyed JIT
// chunk cache (spec.md §4.5: "1024 chunks / 64 MB code") that RunChunk and
// maybeCompile both consult, so chunks sharing identical bytecode share one
// native entry point instead of each re-lowering it. A construction failure
// (e.g. exhausted ristretto counters) is non-fatal: cache stays nil and the
// JIT path simply lowers fresh on every call.
func New(in *interp.Interp, cfg config.PoolConfig) *Executor {
	cache, _ := jit.NewCache()
	return &Executor{
		cfg:     cfg,
		in:      in,
		tiers:   newTierRegistry(),
		metrics: NewMetrics(),
		cache:   cache,
	}
}

// Metrics exposes the executor's counters for callers that want to
// publish them (e.g. a CLI debug endpoint).
func (e *Executor) Metrics() *Metrics { return e.metrics }

// SetTierObserver registers a callback fired on every tier promotion and
// JIT bailout. Passing nil disables observation.
func (e *Executor) SetTierObserver(obs TierObserver) { e.observer = obs }

func (e *Executor) notify(chunk *vm.Chunk, kind, from, to string) {
	if e.observer != nil {
		e.observer(chunk, kind, from, to)
	}
}

// RunChunk executes chunk against env, implementing spec.md §4.6's
// record-execution / tier-select / invoke / bailout loop.
func (e *Executor) RunChunk(ctx context.Context, chunk *vm.Chunk, env store.Environment, cancelled *bool) ([]value.V, store.Environment, error) {
	_, span := otel.Tracer("mettatron/exec").Start(ctx, "Executor.RunChunk",
		trace.WithAttributes(attribute.String("chunk", chunk.DebugName)),
	)
	defer span.End()

	prior, crossedWarm, crossedHot := chunk.Hotness.RecordExecution(e.cfg.WarmThreshold, e.cfg.HotThreshold)
	_ = crossedWarm

	if e.cfg.JITEnabled && chunk.Hotness.State() == vm.TierJitted {
		if v, ok := jit.TryCompileAndRun(e.cache, chunk); ok {
			e.metrics.JITDirectives.Inc()
			span.SetAttributes(attribute.String("tier", "jit"))
			return []value.V{v}, env, nil
		}
		// Bailout: native code declined or failed; fall through to the VM.
		// ClassifyBailout explains why up front, since FromChunk refuses an
		// ineligible chunk entirely rather than aborting mid-execution — this
		// design never produces a live jit.Context to Transfer() a partial
		// native stack from, so the reported stack is always empty.
		reason := jit.ClassifyBailout(chunk)
		bailoutCtx := &jit.Context{Bailout: true, BailoutKind: reason}
		transferred, _ := bailoutCtx.Transfer()
		e.metrics.Bailouts.Inc()
		e.notify(chunk, "bailout", vm.TierJitted.String(), vm.TierHot.String())
		span.SetAttributes(
			attribute.String("bailout_reason", reason.String()),
			attribute.Int("bailout_transferred", len(transferred)),
		)
		span.SetStatus(codes.Error, "jit bailout")
	}

	if e.cfg.JITEnabled && crossedHot && prior != vm.TierHot && chunk.JITEligible() {
		e.maybeCompile(chunk)
	}

	e.metrics.Tier1Directives.Inc()
	span.SetAttributes(attribute.String("tier", "vm"))
	// A fresh VM per call: vm.VM carries a mutable operand stack, binding
	// frames, and choice-point stack as receiver fields, so two directives
	// running concurrently (spec.md §5's batched parallelism) must never
	// share one instance.
	return vm.New(e.in).Run(chunk, env, cancelled)
}

// maybeCompile attempts the single-winner Hot->Compiling transition and,
// on winning, tries the JIT backend once. Losers return immediately and
// the caller proceeds on the VM for this call, exactly as spec.md §4.6
// describes.
func (e *Executor) maybeCompile(chunk *vm.Chunk) {
	if !e.tiers.tryEnterCompiling(chunk) {
		return
	}
	_, ok := jit.LookupOrCompile(e.cache, chunk)
	success := ok && jit.Available()
	e.tiers.finishCompiling(chunk, success)
	if success {
		e.metrics.Promotions.Inc()
		e.notify(chunk, "promoted", vm.TierHot.String(), vm.TierJitted.String())
	} else {
		e.metrics.CompileFailures.Inc()
	}
}

// EvalTier0 runs expr directly on the Tier 0 interpreter, bypassing the
// bytecode VM entirely — used for directives the bytecode compiler
// refuses (vm.ErrUnsupportedForm), per spec.md §4.6's implicit contract
// that every directive runs on *some* tier.
func (e *Executor) EvalTier0(env store.Environment, expr value.V) ([]value.V, store.Environment, error) {
	e.metrics.Tier0Directives.Inc()
	return e.in.Eval(env, expr)
}

// EvalDirective compiles expr to bytecode when possible and runs it
// through the tiered pipeline; falls back to Tier 0 when the compiler
// refuses the form (spec.md §4.4's compiler scoping is intentional, not
// an error condition for callers of the executor).
func (e *Executor) EvalDirective(ctx context.Context, env store.Environment, expr value.V, cancelled *bool) ([]value.V, store.Environment, error) {
	chunk, err := vm.Compile(expr, "directive")
	if err != nil {
		return e.EvalTier0(env, expr)
	}
	return e.RunChunk(ctx, chunk, env, cancelled)
}
