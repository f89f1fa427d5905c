// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package value

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// AtomID is the dense integer identity assigned to an interned atom
// name. Equality on Atom values is by AtomID, not by string compare
// (spec.md §4.1).
type AtomID uint32

// Interner is the process-wide, append-only atom table (spec.md §5):
// readers never block, writers take a short mutex on insertion only
// when the name has not been seen before. A bucketed read path keyed by
// an xxhash of the name lets repeated lookups of already-interned atoms
// skip the mutex entirely via the shards' RLock.
type Interner struct {
	shards [internShardCount]internShard
}

const internShardCount = 64

type internShard struct {
	mu      sync.RWMutex
	byName  map[string]AtomID
	byID    []string
}

// NewInterner returns an empty, ready-to-use atom table.
func NewInterner() *Interner {
	tbl := &Interner{}
	for i := range tbl.shards {
		tbl.shards[i].byName = make(map[string]AtomID)
	}
	return tbl
}

func (t *Interner) shardFor(name string) *internShard {
	h := xxhash.Sum64String(name)
	return &t.shards[h%internShardCount]
}

// Intern returns the AtomID for name, allocating a fresh one the first
// time it is seen. The global ID is synthesized from the shard index and
// the shard-local slot so that two shards never collide.
func (t *Interner) Intern(name string) AtomID {
	s := t.shardFor(name)

	s.mu.RLock()
	if id, ok := s.byName[name]; ok {
		s.mu.RUnlock()
		return id
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[name]; ok {
		return id
	}
	s.byID = append(s.byID, name)
	shardIdx := AtomID(0)
	for i := range t.shards {
		if &t.shards[i] == s {
			shardIdx = AtomID(i)
			break
		}
	}
	id := AtomID(len(s.byID))*internShardCount + shardIdx
	s.byName[name] = id
	return id
}

// Lookup resolves an AtomID back to its name. Returns false if the ID was
// never assigned by this table.
func (t *Interner) Lookup(id AtomID) (string, bool) {
	if id == 0 {
		return "", false
	}
	shardIdx := uint32(id) % internShardCount
	slot := uint32(id) / internShardCount
	s := &t.shards[shardIdx]

	s.mu.RLock()
	defer s.mu.RUnlock()
	if slot == 0 || int(slot) > len(s.byID) {
		return "", false
	}
	return s.byID[slot-1], true
}

// Len returns the number of distinct atoms interned so far. Intended for
// debug/metrics only; it is not synchronized across shards so it is a
// momentary estimate under concurrent writers.
func (t *Interner) Len() int {
	n := 0
	for i := range t.shards {
		t.shards[i].mu.RLock()
		n += len(t.shards[i].byName)
		t.shards[i].mu.RUnlock()
	}
	return n
}
