// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exec

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/value"
)

// batchPlanner accumulates consecutive independent `!expr` directives
// into one parallel batch and runs bare top-level forms (rule
// definitions, fact/type assertions) sequentially as a batch boundary
// (spec.md §5: "rule-defining forms enforce batch boundaries and execute
// sequentially").
type batchPlanner struct {
	ex      *Executor
	env     store.Environment
	pending []value.V
}

func newBatchPlanner(ex *Executor, env store.Environment) *batchPlanner {
	return &batchPlanner{ex: ex, env: env}
}

func (b *batchPlanner) addDirective(expr value.V) {
	b.pending = append(b.pending, expr)
}

// flush runs every queued directive as one parallel batch and returns
// their results re-sorted into program order (spec.md §5: "across
// independent directives in a batch, execution is unordered;
// eval_outputs is re-sorted into program order before publication").
func (b *batchPlanner) flush() ([]value.V, error) {
	if len(b.pending) == 0 {
		return nil, nil
	}
	directives := b.pending
	b.pending = nil
	return b.runBatch(directives)
}

// flushAndRunSequential runs any pending parallel batch and discards its
// results (RunState flushes and records them before calling this), then
// applies form by itself: a rule definition (`=`) or type assertion (`:`)
// is evaluated and its environment effect folded back in, and any other
// bare form is stored in the environment as a fact.
func (b *batchPlanner) flushAndRunSequential(form value.V) ([]value.V, error) {
	if _, err := b.flush(); err != nil {
		return nil, err
	}
	items := form.Items()
	if form.Kind() != value.KindSExpr || len(items) == 0 || items[0].Kind() != value.KindAtom ||
		(items[0].AsString() != "=" && items[0].AsString() != ":") {
		newEnv, err := b.env.InsertFact(form)
		if err != nil {
			return nil, err
		}
		b.env = newEnv
		return nil, nil
	}
	results, newEnv, err := b.ex.EvalDirective(context.Background(), b.env, form, nil)
	if err != nil {
		return nil, err
	}
	b.env = newEnv
	return results, nil
}

// runBatch evaluates directives concurrently, each against its own
// cloned environment handle (the rule store's reference-counted clone is
// O(1) and lock-free for readers — spec.md §5's shared-resource policy).
// Because a batch by construction contains no rule-defining forms, every
// clone observes the same rules; only the caller's single authoritative
// env advances afterward, since none of these directives can mutate it.
func (b *batchPlanner) runBatch(directives []value.V) ([]value.V, error) {
	results := make([][]value.V, len(directives))
	maxWorkers := b.ex.cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(maxWorkers)
	cancelled := new(bool)
	for i, expr := range directives {
		i, expr := i, expr
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ErrCancelled
			default:
			}
			r, _, err := b.ex.EvalDirective(ctx, b.env.Clone(), expr, cancelled)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]value.V, 0, len(directives))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
