// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store implements the copy-on-write rule-store environment:
// a prefix trie over canonical byte-encoded patterns, O(1) cloneable,
// with single-writer/many-reader mutation semantics (spec.md §4.2).
package store

import (
	"sort"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/mettatron/value"
)

// rule is the stored (pattern, body, guard) triple, plus a monotonic
// sequence number used to reproduce insertion order on iteration. seq is
// assigned once, at Insert time, and never changes — so relative order
// among rules already present in an Environment is stable regardless of
// what other, unrelated Environment handles insert afterwards.
type rule struct {
	seq     uint64
	pattern value.V
	body    value.V
	guard   *value.V
}

// Rule is the externally visible, read-only view of a stored rule.
type Rule struct {
	Pattern value.V
	Body    value.V
	Guard   *value.V
}

func (r *rule) export() Rule {
	return Rule{Pattern: r.pattern, Body: r.body, Guard: r.guard}
}

// Environment is an immutable handle onto a rule store. The zero value
// is a valid, empty environment. Cloning is O(1): it only copies the
// root pointer and the shared sequence counter (spec.md testable
// property 1).
type Environment struct {
	root *node
	seq  *uint64 // shared monotonic counter across the clone lineage
}

// New returns an empty environment.
func New() Environment {
	var seq uint64
	return Environment{seq: &seq}
}

// Clone returns a new handle sharing all of env's storage. Runs in time
// independent of the number of rules (property 1): it is a single
// pointer copy plus one atomic increment.
func (env Environment) Clone() Environment {
	if env.root != nil {
		atomic.AddInt32(&env.root.refcount, 1)
	}
	return env
}

func (env Environment) nextSeq() uint64 {
	if env.seq == nil {
		// an Environment constructed via the zero value rather than New();
		// treat as its own independent lineage.
		var s uint64
		env.seq = &s
	}
	return atomic.AddUint64(env.seq, 1) - 1
}

var ErrMalformedPattern = errors.New("store: malformed pattern")

// Insert adds a rule or fact, returning a new Environment handle. The
// original handle is left observably unchanged (property 2): the
// copy-on-write walk clones only the nodes on the path whose refcount
// exceeds 1.
func (env Environment) Insert(pattern, body value.V, guard *value.V) (Environment, error) {
	path, err := EncodePattern(pattern)
	if err != nil {
		return env, errors.Wrapf(ErrMalformedPattern, "insert: %v", err)
	}

	newRoot := ensureOwnedRoot(env.root)
	cur := newRoot
	for _, b := range path {
		cur = ensureOwnedChild(cur.children, b)
	}
	cur.rules = append(cur.rules, &rule{
		seq:     env.nextSeq(),
		pattern: pattern,
		body:    body,
		guard:   guard,
	})

	return Environment{root: newRoot, seq: env.seq}, nil
}

// InsertFact is a convenience for (= fact True).
func (env Environment) InsertFact(fact value.V) (Environment, error) {
	return env.Insert(fact, value.True, nil)
}

// Remove deletes every rule whose pattern equals (structurally) pattern.
// It is idempotent: removing an absent pattern returns env unchanged
// without cloning anything, and a removal either fully succeeds or the
// store is left exactly as it was (spec.md §4.2 failure modes).
func (env Environment) Remove(pattern value.V) (Environment, error) {
	path, err := EncodePattern(pattern)
	if err != nil {
		return env, errors.Wrapf(ErrMalformedPattern, "remove: %v", err)
	}

	existing := descend(env.root, path)
	if existing == nil || !hasPattern(existing.rules, pattern) {
		return env, nil // idempotent no-op, no clone
	}

	newRoot := ensureOwnedRoot(env.root)
	cur := newRoot
	for _, b := range path {
		cur = ensureOwnedChild(cur.children, b)
	}
	filtered := cur.rules[:0:0]
	for _, r := range cur.rules {
		if !value.Equal(r.pattern, pattern) {
			filtered = append(filtered, r)
		}
	}
	cur.rules = filtered

	return Environment{root: newRoot, seq: env.seq}, nil
}

func hasPattern(rules []*rule, pattern value.V) bool {
	for _, r := range rules {
		if value.Equal(r.pattern, pattern) {
			return true
		}
	}
	return false
}

// HasGroundFact implements the O(|path|) fast path for variable-free
// queries (spec.md §4.2, testable property 4). It encodes expr into a
// freshly allocated byte path before descending, so it is not
// allocation-free. It is only
// valid to call with a ground expr; callers must check IsGround first
// (Match handles the general case).
func (env Environment) HasGroundFact(expr value.V) (bool, error) {
	path, err := EncodePattern(expr)
	if err != nil {
		return false, errors.Wrapf(ErrMalformedPattern, "has_ground_fact: %v", err)
	}
	n := descend(env.root, path)
	return n != nil && len(n.rules) > 0, nil
}

// Binding is a single variable->value pair produced by unification.
type Binding struct {
	Name  string
	Value value.V
}

// Bindings is an ordered set of variable bindings (order of first bind).
type Bindings []Binding

// Lookup returns the bound value for name, if any.
func (b Bindings) Lookup(name string) (value.V, bool) {
	for _, bd := range b {
		if bd.Name == name {
			return bd.Value, true
		}
	}
	return value.V{}, false
}

// Match yields every rule whose head pattern unifies with query, along
// with the bindings produced, in stable insertion order (spec.md §4.2:
// "the store must yield them stably"). Occurs-check is omitted by
// default per spec.md §4.2, but MatchOptions.OccursCheck enables it —
// the spec explicitly calls this out as "worth enabling via a flag."
type MatchOptions struct {
	OccursCheck bool
}

type MatchResult struct {
	Bindings Bindings
	Rule     Rule
}

func (env Environment) Match(query value.V, opts MatchOptions) ([]MatchResult, error) {
	var candidates []*rule
	walkAll(env.root, func(r *rule) { candidates = append(candidates, r) })
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].seq < candidates[j].seq })

	var out []MatchResult
	for _, r := range candidates {
		bindings, ok := Unify(query, r.pattern, opts.OccursCheck)
		if !ok {
			continue
		}
		if r.guard != nil {
			// Guard evaluation is the interpreter's job (it needs the
			// rewriting engine); the store only reports the guard
			// expression back to the caller via Rule.Guard so interp/vm
			// can evaluate it under bindings before accepting the match.
			_ = r.guard
		}
		out = append(out, MatchResult{Bindings: bindings, Rule: r.export()})
	}
	return out, nil
}

// IterRules yields every stored rule in stable insertion order, for
// debugging and serialization.
func (env Environment) IterRules() []Rule {
	var all []*rule
	walkAll(env.root, func(r *rule) { all = append(all, r) })
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]Rule, len(all))
	for i, r := range all {
		out[i] = r.export()
	}
	return out
}

// Len reports the number of stored rules. O(n); intended for tests and
// metrics, not hot paths.
func (env Environment) Len() int {
	n := 0
	walkAll(env.root, func(*rule) { n++ })
	return n
}
