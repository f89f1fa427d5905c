// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jit

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"

	"github.com/luxfi/mettatron/vm"
)

// JumpTargets walks code once, discovering every instruction offset that
// is the destination of a jump (spec.md §4.5: "a pre-pass that walks the
// bytecode discovering jump targets, creating one native block per
// target and inserting block parameters on merges"). The bitset marks
// targets by byte offset; FromChunk checks every lowered jump's
// destination against it and builds no native blocks from it.
func JumpTargets(code []byte) *bitset.BitSet {
	targets := bitset.New(uint(len(code)) + 1)
	ip := 0
	for ip < len(code) {
		op := vm.Op(code[ip])
		width := jumpImmediateWidth(op)
		instrStart := ip
		ip++
		switch op {
		case vm.OpJump, vm.OpJumpIfFalse, vm.OpJumpIfTrue:
			off := int16(binary.BigEndian.Uint16(code[ip : ip+2]))
			dest := ip + 2 + int(off)
			if dest >= 0 && dest <= len(code) {
				targets.Set(uint(dest))
			}
		}
		ip += advanceWidth(op, width)
		_ = instrStart
	}
	return targets
}

// jumpImmediateWidth and advanceWidth mirror vm.immediateWidth's table;
// duplicated here (rather than exported from vm) because the pre-pass
// only needs to know how far to skip, not the VM's full opcode semantics,
// and the jit package should not need to reach into vm internals beyond
// its public Op type.
func jumpImmediateWidth(op vm.Op) int {
	switch op {
	case vm.OpJump, vm.OpJumpIfFalse, vm.OpJumpIfTrue:
		return 2
	default:
		return 0
	}
}

func advanceWidth(op vm.Op, jumpWidth int) int {
	switch op {
	case vm.OpPushConst, vm.OpMakeSExpr, vm.OpLoadBinding, vm.OpStoreBinding, vm.OpJumpTable, vm.OpCallForm:
		return 2
	case vm.OpJump, vm.OpJumpIfFalse, vm.OpJumpIfTrue:
		return 2
	case vm.OpFork:
		return 1
	default:
		return 0
	}
}
