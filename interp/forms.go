// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package interp

import (
	"github.com/luxfi/mettatron/set"
	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/value"
)

// specialHeads caches the reserved head names recognized by tryForm. It
// carries no state beyond the set itself; kept as a type so Interp can
// grow per-instance configuration (e.g. a disabled-forms allowlist) later
// without changing tryForm's signature.
type specialHeads struct {
	names set.Set[string]
}

func newSpecialHeads() specialHeads {
	names := set.Of(
		"if", "case", "let", "match",
		"quote", "unquote", "eval",
		"collapse", "superpose", "catch",
		":", "=",
	)
	return specialHeads{names: names}
}

// tryForm dispatches to a special-form handler when name names one. The
// bool return reports whether name was in fact a special form at all;
// callers fall through to builtin/rule dispatch when it is false.
func (in *Interp) tryForm(env store.Environment, name string, args []value.V, depth int) (bool, []value.V, store.Environment, error) {
	if !in.heads.names.Contains(name) {
		return false, nil, env, nil
	}
	switch name {
	case "if":
		r, e, err := in.formIf(env, args, depth)
		return true, r, e, err
	case "case":
		r, e, err := in.formCase(env, args, depth)
		return true, r, e, err
	case "let":
		r, e, err := in.formLet(env, args, depth)
		return true, r, e, err
	case "match":
		r, e, err := in.formMatch(env, args, depth)
		return true, r, e, err
	case "quote":
		r, e, err := in.formQuote(env, args)
		return true, r, e, err
	case "unquote":
		r, e, err := in.formUnquote(env, args, depth)
		return true, r, e, err
	case "eval":
		r, e, err := in.formEval(env, args, depth)
		return true, r, e, err
	case "collapse":
		r, e, err := in.formCollapse(env, args, depth)
		return true, r, e, err
	case "superpose":
		r, e, err := in.formSuperpose(env, args, depth)
		return true, r, e, err
	case "catch":
		r, e, err := in.formCatch(env, args, depth)
		return true, r, e, err
	case ":":
		r, e, err := in.formTypeAssert(env, args)
		return true, r, e, err
	case "=":
		r, e, err := in.formDefineRule(env, args)
		return true, r, e, err
	default:
		return false, nil, env, nil
	}
}

func (in *Interp) formIf(env store.Environment, args []value.V, depth int) ([]value.V, store.Environment, error) {
	if len(args) != 3 {
		return []value.V{arityError("if", 3, len(args))}, env, nil
	}
	condResults, env, err := in.eval(env, args[0], depth+1)
	if err != nil {
		return nil, env, err
	}
	var out []value.V
	for _, cond := range condResults {
		if cond.Kind() != value.KindBool {
			out = append(out, typeError("if: condition is not Bool"))
			continue
		}
		branch := args[2]
		if cond.AsBool() {
			branch = args[1]
		}
		results, newEnv, err := in.eval(env, branch, depth+1)
		if err != nil {
			return nil, env, err
		}
		env = newEnv
		out = append(out, results...)
	}
	return out, env, nil
}

// formCase evaluates expr then tries each (pattern body) clause in order,
// taking the first whose pattern unifies. The literal atom "%void%" is a
// catch-all, matching any value without binding.
func (in *Interp) formCase(env store.Environment, args []value.V, depth int) ([]value.V, store.Environment, error) {
	if len(args) != 2 {
		return []value.V{arityError("case", 2, len(args))}, env, nil
	}
	exprResults, env, err := in.eval(env, args[0], depth+1)
	if err != nil {
		return nil, env, err
	}
	clauses := args[1].Items()

	var out []value.V
	for _, subject := range exprResults {
		matched := false
		for _, clause := range clauses {
			parts := clause.Items()
			if len(parts) != 2 {
				continue
			}
			pattern, body := parts[0], parts[1]
			if pattern.Kind() == value.KindAtom && pattern.AsString() == "%void%" {
				results, newEnv, err := in.eval(env, body, depth+1)
				if err != nil {
					return nil, env, err
				}
				env = newEnv
				out = append(out, results...)
				matched = true
				break
			}
			bindings, ok := store.Unify(subject, pattern, false)
			if !ok {
				continue
			}
			results, newEnv, err := in.eval(env, store.Substitute(body, bindings), depth+1)
			if err != nil {
				return nil, env, err
			}
			env = newEnv
			out = append(out, results...)
			matched = true
			break
		}
		if !matched {
			out = append(out, runtimeError("NoMatchingCase", "case: no clause matched"))
		}
	}
	return out, env, nil
}

func (in *Interp) formLet(env store.Environment, args []value.V, depth int) ([]value.V, store.Environment, error) {
	if len(args) != 3 {
		return []value.V{arityError("let", 3, len(args))}, env, nil
	}
	pattern := args[0]
	valResults, env, err := in.eval(env, args[1], depth+1)
	if err != nil {
		return nil, env, err
	}

	var out []value.V
	for _, v := range valResults {
		bindings, ok := store.Unify(v, pattern, false)
		if !ok {
			out = append(out, runtimeError("LetBindFailed", "let: value did not match pattern"))
			continue
		}
		results, newEnv, err := in.eval(env, store.Substitute(args[2], bindings), depth+1)
		if err != nil {
			return nil, env, err
		}
		env = newEnv
		out = append(out, results...)
	}
	return out, env, nil
}

// formMatch implements (match & self pattern template): query the store
// directly (facts and rule heads share the same trie) and substitute
// template with each match's bindings, evaluating it (spec.md §8(d)).
func (in *Interp) formMatch(env store.Environment, args []value.V, depth int) ([]value.V, store.Environment, error) {
	if len(args) != 4 {
		return []value.V{arityError("match", 4, len(args))}, env, nil
	}
	// args[0], args[1] (the space, "& self") are accepted but not yet
	// multi-space aware; every query runs against env itself.
	pattern, template := args[2], args[3]

	matches, err := env.Match(pattern, store.MatchOptions{})
	if err != nil {
		return nil, env, err
	}
	var out []value.V
	for _, m := range matches {
		instantiated := store.Substitute(template, m.Bindings)
		results, newEnv, err := in.eval(env, instantiated, depth+1)
		if err != nil {
			return nil, env, err
		}
		env = newEnv
		out = append(out, results...)
	}
	return out, env, nil
}

func (in *Interp) formQuote(env store.Environment, args []value.V) ([]value.V, store.Environment, error) {
	if len(args) != 1 {
		return []value.V{arityError("quote", 1, len(args))}, env, nil
	}
	return []value.V{args[0]}, env, nil
}

func (in *Interp) formUnquote(env store.Environment, args []value.V, depth int) ([]value.V, store.Environment, error) {
	if len(args) != 1 {
		return []value.V{arityError("unquote", 1, len(args))}, env, nil
	}
	return in.eval(env, args[0], depth+1)
}

func (in *Interp) formEval(env store.Environment, args []value.V, depth int) ([]value.V, store.Environment, error) {
	if len(args) != 1 {
		return []value.V{arityError("eval", 1, len(args))}, env, nil
	}
	return in.eval(env, args[0], depth+1)
}

// formCollapse reifies e's full, possibly-multi-valued result into a
// single SExpr list, returned as the sole result (spec.md §4.3).
func (in *Interp) formCollapse(env store.Environment, args []value.V, depth int) ([]value.V, store.Environment, error) {
	if len(args) != 1 {
		return []value.V{arityError("collapse", 1, len(args))}, env, nil
	}
	results, env, err := in.eval(env, args[0], depth+1)
	if err != nil {
		return nil, env, err
	}
	return []value.V{value.SExpr(results...)}, env, nil
}

// formSuperpose flattens its literal SExpr argument's alternatives, each
// evaluated independently, into one non-deterministic result list
// (spec.md §8(c)).
func (in *Interp) formSuperpose(env store.Environment, args []value.V, depth int) ([]value.V, store.Environment, error) {
	if len(args) != 1 {
		return []value.V{arityError("superpose", 1, len(args))}, env, nil
	}
	alternatives := args[0]
	if alternatives.Kind() != value.KindSExpr {
		return []value.V{typeError("superpose: argument is not a list")}, env, nil
	}
	var out []value.V
	for _, alt := range alternatives.Items() {
		results, newEnv, err := in.eval(env, alt, depth+1)
		if err != nil {
			return nil, env, err
		}
		env = newEnv
		out = append(out, results...)
	}
	return out, env, nil
}

// formCatch evaluates e; if every result is an Error, it instead evaluates
// and returns default_'s results (spec.md §4.3, §8(e)).
func (in *Interp) formCatch(env store.Environment, args []value.V, depth int) ([]value.V, store.Environment, error) {
	if len(args) != 2 {
		return []value.V{arityError("catch", 2, len(args))}, env, nil
	}
	results, env, err := in.eval(env, args[0], depth+1)
	if err != nil {
		return nil, env, err
	}
	if allErrors(results) {
		return in.eval(env, args[1], depth+1)
	}
	return results, env, nil
}

// formTypeAssert stores a `(: atom type)` declaration as a fact and
// returns Unit, matching how top-level `=` definitions behave.
func (in *Interp) formTypeAssert(env store.Environment, args []value.V) ([]value.V, store.Environment, error) {
	if len(args) != 2 {
		return []value.V{arityError(":", 2, len(args))}, env, nil
	}
	typed := value.Typed(args[0], args[1])
	newEnv, err := env.InsertFact(typed)
	if err != nil {
		return nil, env, err
	}
	return []value.V{value.Unit}, newEnv, nil
}

// formDefineRule handles the top-level `(= pattern body [guard])` form,
// inserting a new rule and yielding Unit (spec.md §8(b)).
func (in *Interp) formDefineRule(env store.Environment, args []value.V) ([]value.V, store.Environment, error) {
	if len(args) != 2 && len(args) != 3 {
		return []value.V{arityError("=", 2, len(args))}, env, nil
	}
	var guard *value.V
	if len(args) == 3 {
		g := args[2]
		guard = &g
	}
	newEnv, err := env.Insert(args[0], args[1], guard)
	if err != nil {
		return nil, env, err
	}
	return []value.V{value.Unit}, newEnv, nil
}
