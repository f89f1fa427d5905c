// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package interp implements Tier 0: a recursive rewriter over value.V that
// evaluates expressions directly against a rule-store Environment, with no
// compilation step. It is the reference semantics every other tier (the
// bytecode VM, the JIT) must reproduce exactly (spec.md §4.3, testable
// property 5).
package interp

import (
	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/value"
)

// Interp holds the process-wide atom table needed to construct builtin
// error atoms and special-form heads without re-interning on every call.
type Interp struct {
	interner *value.Interner
	heads    specialHeads
}

func New(interner *value.Interner) *Interp {
	return &Interp{interner: interner, heads: newSpecialHeads()}
}

// Eval rewrites expr against env, returning every result produced by
// non-deterministic branching, in left-to-right order (spec.md §4.3).
// env is returned updated when expr is a top-level rule/type definition;
// otherwise it is returned unchanged. err is reserved for catastrophic,
// non-recoverable failures (stack overflow, a corrupt store) — ordinary
// evaluation failures come back as value.V Error results, never as err.
func (in *Interp) Eval(env store.Environment, expr value.V) ([]value.V, store.Environment, error) {
	return in.eval(env, expr, 0)
}

const maxEvalDepth = 4096

func (in *Interp) eval(env store.Environment, expr value.V, depth int) ([]value.V, store.Environment, error) {
	if depth > maxEvalDepth {
		return nil, env, errStackOverflow
	}

	switch expr.Kind() {
	case value.KindNil, value.KindUnit, value.KindBool, value.KindLong, value.KindFloat,
		value.KindString, value.KindURI, value.KindVariable, value.KindError, value.KindTyped:
		return []value.V{expr}, env, nil
	case value.KindAtom:
		return []value.V{expr}, env, nil
	case value.KindSExpr:
		return in.evalSExpr(env, expr, depth)
	default:
		return []value.V{expr}, env, nil
	}
}

func (in *Interp) evalSExpr(env store.Environment, expr value.V, depth int) ([]value.V, store.Environment, error) {
	items := expr.Items()
	if len(items) == 0 {
		return []value.V{expr}, env, nil
	}
	head := items[0]

	if head.Kind() == value.KindAtom && !head.IsLiteralOperator() {
		if handled, results, newEnv, err := in.tryForm(env, head.AsString(), items[1:], depth); handled {
			return results, newEnv, err
		}
		if results, ok, err := in.tryBuiltin(env, head.AsString(), items[1:], depth); ok {
			return results, env, err
		}
	}

	return in.dispatchRules(env, expr, depth)
}

// dispatchRules looks up expr's head in the rule store, evaluating every
// matching rule's body under its match bindings and concatenating results
// in stable insertion order (spec.md §4.3, §4.2). If nothing matches, expr
// is returned unevaluated — a MeTTa expression with no applicable rule is
// ordinary data, not an error.
func (in *Interp) dispatchRules(env store.Environment, expr value.V, depth int) ([]value.V, store.Environment, error) {
	results, err := env.Match(expr, store.MatchOptions{})
	if err != nil {
		return nil, env, err
	}
	if len(results) == 0 {
		return []value.V{expr}, env, nil
	}

	var out []value.V
	for _, m := range results {
		if m.Rule.Guard != nil {
			guardExpr := store.Substitute(*m.Rule.Guard, m.Bindings)
			guardResults, _, err := in.eval(env, guardExpr, depth+1)
			if err != nil {
				return nil, env, err
			}
			if !anyTrue(guardResults) {
				continue
			}
		}
		body := store.Substitute(m.Rule.Body, m.Bindings)
		bodyResults, _, err := in.eval(env, body, depth+1)
		if err != nil {
			return nil, env, err
		}
		out = append(out, bodyResults...)
	}
	if out == nil {
		return []value.V{expr}, env, nil
	}
	return out, env, nil
}

func anyTrue(results []value.V) bool {
	for _, r := range results {
		if r.Kind() == value.KindBool && r.AsBool() {
			return true
		}
	}
	return false
}

func allErrors(results []value.V) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.IsError() {
			return false
		}
	}
	return true
}

// cartesianEvalArgs evaluates each argument to its own non-deterministic
// result list, then returns every combination (cartesian product) in
// left-to-right order — so `(+ (superpose (1 2)) 10)` yields [11, 12].
func (in *Interp) cartesianEvalArgs(env store.Environment, args []value.V, depth int) ([][]value.V, store.Environment, error) {
	perArg := make([][]value.V, len(args))
	for i, a := range args {
		results, newEnv, err := in.eval(env, a, depth+1)
		if err != nil {
			return nil, env, err
		}
		env = newEnv
		perArg[i] = results
	}
	return cartesianProduct(perArg), env, nil
}

func cartesianProduct(lists [][]value.V) [][]value.V {
	combos := [][]value.V{{}}
	for _, list := range lists {
		var next [][]value.V
		for _, combo := range combos {
			for _, v := range list {
				entry := append(append([]value.V(nil), combo...), v)
				next = append(next, entry)
			}
		}
		combos = next
	}
	return combos
}
