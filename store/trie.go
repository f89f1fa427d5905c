// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import "sync/atomic"

// node is one level of the rule-store trie, one path byte per edge
// (spec.md §4.2). refcount tracks how many parents — either another
// node's children map or an Environment handle — currently reference
// this node. Insert/Remove always clone the root, then clone a node below
// it only when refcount > 1 ("make_mut"), leaving every unmodified
// subtree shared between environment handles.
//
// Go's garbage collector reclaims node memory once the last pointer to
// it disappears, so refcount here is purely a copy-on-write signal, not
// a manual allocator as it would be in a systems language without a
// collector. That is the one place this port deliberately diverges from
// a literal translation of "atomic reference counts are the ownership
// primitive" (spec.md §9) — documented as an Open Question resolution
// in DESIGN.md.
type node struct {
	refcount int32
	children map[byte]*node
	rules    []*rule
}

func newEmptyNode() *node {
	return &node{refcount: 1, children: make(map[byte]*node)}
}

// shallowClone duplicates n's own structure (children map header, rules
// slice) without deep-copying grandchildren; every grandchild instead
// gains one more referencing parent.
func (n *node) shallowClone() *node {
	clone := &node{
		refcount: 1,
		children: make(map[byte]*node, len(n.children)),
		rules:    append([]*rule(nil), n.rules...),
	}
	for b, child := range n.children {
		clone.children[b] = child
		atomic.AddInt32(&child.refcount, 1)
	}
	return clone
}

// ensureOwnedRoot returns a node that is safe to mutate in place: a fresh
// empty node for a nil root, otherwise a clone of root. The handle being
// written keeps its own reference to root, so root itself is never
// mutated.
func ensureOwnedRoot(root *node) *node {
	if root == nil {
		return newEmptyNode()
	}
	return root.shallowClone()
}

// ensureOwnedChild returns a uniquely-owned node at children[b], cloning
// (and installing the clone back into children) if the existing child is
// shared, or creating an empty node if none exists yet. The caller must
// already own children exclusively (i.e. its parent node has already
// been through ensureOwnedRoot/ensureOwnedChild).
func ensureOwnedChild(children map[byte]*node, b byte) *node {
	child := children[b]
	if child == nil {
		child = newEmptyNode()
		children[b] = child
		return child
	}
	if atomic.LoadInt32(&child.refcount) > 1 {
		clone := child.shallowClone()
		atomic.AddInt32(&child.refcount, -1)
		children[b] = clone
		return clone
	}
	return child
}

// descend performs a read-only walk of path from n, never cloning.
// Returns nil if the path does not exist.
func descend(n *node, path []byte) *node {
	cur := n
	for _, b := range path {
		if cur == nil {
			return nil
		}
		cur = cur.children[b]
	}
	return cur
}

// walkAll visits every rule reachable from n in a head-first (pre-order)
// DFS, the natural order for a trie whose edges are byte-encoded
// head-first serializations.
func walkAll(n *node, visit func(*rule)) {
	if n == nil {
		return
	}
	for _, r := range n.rules {
		visit(r)
	}
	// map iteration order is randomized by Go; since callers re-sort by
	// rule.seq for anything observable, traversal order here need not be
	// deterministic on its own.
	for _, child := range n.children {
		walkAll(child, visit)
	}
}
