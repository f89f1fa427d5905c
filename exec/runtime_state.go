// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exec

import (
	"github.com/luxfi/mettatron/parse"
	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/value"
)

// RuntimeState is the immutable value callers thread through compile/
// run_state (spec.md §6): `pending` forms not yet evaluated, `env` the
// rule store handle, and `outputs` the accumulated directive results.
// Every method returns a new RuntimeState rather than mutating receiver
// fields, matching the store's own copy-on-write contract.
type RuntimeState struct {
	Pending []value.V
	Env     store.Environment
	Outputs []value.V
}

// CompileError wraps a parse failure so callers can distinguish it from
// a runtime error value produced during evaluation (spec.md §7).
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string { return "exec: compile failed: " + e.Err.Error() }
func (e *CompileError) Unwrap() error { return e.Err }

// Compile parses source into a fresh RuntimeState with an empty
// environment and no outputs (spec.md §6: "compile parses source and
// returns {pending: expressions, env: empty, outputs: []}").
func Compile(interner *value.Interner, source string) (RuntimeState, error) {
	p := parse.New(interner)
	forms, err := p.ParseProgram(source)
	if err != nil {
		return RuntimeState{}, &CompileError{Err: err}
	}
	return RuntimeState{Pending: forms, Env: store.New()}, nil
}

// isDirective reports whether form is a `!expr` wrapper, i.e. an
// evaluate-and-record directive rather than a bare top-level form whose
// result (if any) is discarded once its environment effect is applied.
func isDirective(form value.V) (value.V, bool) {
	if form.Kind() != value.KindSExpr {
		return value.V{}, false
	}
	items := form.Items()
	if len(items) != 2 || items[0].Kind() != value.KindAtom {
		return value.V{}, false
	}
	if items[0].AsString() != "!" {
		return value.V{}, false
	}
	return items[1], true
}

// RunState evaluates compiled.Pending against accumulated.Env, returning
// {pending: [], env: accumulated.env ⊕ new rules, outputs: accumulated.outputs
// ++ new outputs} (spec.md §6). Directives run through the Hybrid
// Executor's tiered pipeline, batched per spec.md §5: independent runs of
// consecutive `!expr` directives may execute in parallel; any bare
// top-level form (rule def, fact, type assertion) is a sequential batch
// boundary, since only rule-defining forms are guaranteed independence-
// safe to analyze and the spec requires at minimum that `=` forms act
// as one.
func RunState(ex *Executor, accumulated, compiled RuntimeState) (RuntimeState, error) {
	env := accumulated.Env
	outputs := append([]value.V{}, accumulated.Outputs...)

	batch := newBatchPlanner(ex, env)
	for _, form := range compiled.Pending {
		if inner, ok := isDirective(form); ok {
			batch.addDirective(inner)
			continue
		}
		// Bare top-level forms (rule defs, fact/type assertions) are
		// applied for their environment effect only; their results are
		// not recorded in outputs. The directives queued before one are
		// run and recorded first.
		flushed, err := batch.flush()
		if err != nil {
			return RuntimeState{}, err
		}
		outputs = append(outputs, flushed...)
		if _, err := batch.flushAndRunSequential(form); err != nil {
			return RuntimeState{}, err
		}
	}
	newOutputs, err := batch.flush()
	if err != nil {
		return RuntimeState{}, err
	}
	outputs = append(outputs, newOutputs...)

	return RuntimeState{Pending: nil, Env: batch.env, Outputs: outputs}, nil
}

// RunStateAsync runs RunState on a worker goroutine, returning a channel
// that receives exactly one result (spec.md §6's run_state_async, a
// Future<Result<RuntimeState, RunError>>).
func RunStateAsync(ex *Executor, accumulated, compiled RuntimeState) <-chan RunStateResult {
	out := make(chan RunStateResult, 1)
	go func() {
		state, err := RunState(ex, accumulated, compiled)
		out <- RunStateResult{State: state, Err: err}
		close(out)
	}()
	return out
}

// RunStateResult is the resolved value of RunStateAsync's future.
type RunStateResult struct {
	State RuntimeState
	Err   error
}
