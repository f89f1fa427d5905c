// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jit

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"

	"github.com/luxfi/mettatron/vm"
)

// CompiledChunk is the native artifact produced by lowering a chunk's
// bytecode once and keyed by its content hash, so two chunks compiled
// from identical bytecode (spec.md §4.5: "1024 chunks / 64 MB code")
// share one native entry point instead of re-lowering redundantly.
type CompiledChunk struct {
	ContentHash uint64
	CodeSize    int
	// Entry runs the lowered program through Run. LookupOrCompile always
	// sets it; in a build without cgo (compile_nocgo.go) Run returns
	// ErrNativeUnsupported.
	Entry func(ctx *Context) (resultWord uint64, err error)
}

// Cache is the bounded LRU described in spec.md §4.5: "1024 chunks /
// 64 MB code", keyed by a content hash of the chunk's bytecode.
type Cache struct {
	store *ristretto.Cache[uint64, *CompiledChunk]
}

const (
	defaultMaxChunks  = 1024
	defaultMaxCodeMiB = 64
)

func NewCache() (*Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[uint64, *CompiledChunk]{
		NumCounters: defaultMaxChunks * 10,
		MaxCost:     int64(defaultMaxCodeMiB) << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{store: store}, nil
}

// HashBytecode computes the content-hash cache key for a chunk's
// instruction stream.
func HashBytecode(code []byte) uint64 {
	return xxhash.Sum64(code)
}

func (c *Cache) Get(hash uint64) (*CompiledChunk, bool) {
	return c.store.Get(hash)
}

func (c *Cache) Insert(hash uint64, compiled *CompiledChunk) {
	c.store.Set(hash, compiled, int64(compiled.CodeSize))
}

func (c *Cache) Close() {
	c.store.Close()
}

// LookupOrCompile returns chunk's native entry point, consulting cache by
// content hash before lowering (spec.md §4.5's hot-path cache lookup). A
// miss lowers chunk via FromChunk once and inserts the result, so every
// later chunk sharing identical bytecode is a single cache.Get away from
// its entry point instead of repeating FromChunk. cache may be nil (exec.New
// leaves it nil when NewCache fails), in which case every call lowers
// fresh with no caching at all.
func LookupOrCompile(cache *Cache, chunk *vm.Chunk) (*CompiledChunk, bool) {
	hash := HashBytecode(chunk.Code)
	if cache != nil {
		if cc, ok := cache.Get(hash); ok {
			return cc, true
		}
	}
	prog, ok := FromChunk(chunk)
	if !ok {
		return nil, false
	}
	cc := &CompiledChunk{
		ContentHash: hash,
		CodeSize:    len(chunk.Code),
		Entry: func(ctx *Context) (uint64, error) {
			return Run(prog)
		},
	}
	if cache != nil {
		cache.Insert(hash, cc)
	}
	return cc, true
}
