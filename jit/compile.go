// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jit

import (
	"encoding/binary"

	"github.com/luxfi/mettatron/value"
	"github.com/luxfi/mettatron/vm"
)

// isStage1Op reports whether op is one of the pure primitives this
// backend lowers inline (spec.md §4.5 Stage 1: arithmetic, comparison,
// boolean, stack, and the control flow `if` compiles to). Division,
// trig, environment access, and anything rule/nondeterminism-related is
// Stage 2 territory or unmodeled here and falls outside this set.
func isStage1Op(op vm.Op) bool {
	switch op {
	case vm.OpPushConst, vm.OpPop,
		vm.OpAdd, vm.OpSub, vm.OpMul,
		vm.OpLt, vm.OpGt, vm.OpLe, vm.OpGe, vm.OpEq, vm.OpNe,
		vm.OpNot,
		vm.OpJump, vm.OpJumpIfFalse, vm.OpJumpIfTrue,
		vm.OpReturn:
		return true
	default:
		return false
	}
}

// mapOffsetsToInstructions walks code once, assigning each Stage-1-
// eligible instruction's byte offset to its position in the eventual
// Stage1Program.Code slice — the mapping a jump's relative byte offset
// must resolve through to become a Stage1 instruction index. Reports
// ok=false as soon as it meets any instruction isStage1Op refuses,
// mirroring the op set FromChunk's own lowering loop accepts.
func mapOffsetsToInstructions(code []byte) (map[int]int, bool) {
	offsetToIndex := make(map[int]int)
	ip := 0
	idx := 0
	for ip < len(code) {
		op := vm.Op(code[ip])
		if !isStage1Op(op) {
			return nil, false
		}
		offsetToIndex[ip] = idx
		width := jumpImmediateWidth(op)
		ip++
		ip += advanceWidth(op, width)
		idx++
	}
	return offsetToIndex, true
}

func jumpStage1Op(op vm.Op) uint8 {
	switch op {
	case vm.OpJumpIfFalse:
		return stage1JumpIfFalse
	case vm.OpJumpIfTrue:
		return stage1JumpIfTrue
	default:
		return stage1Jump
	}
}

func compareStage1Op(op vm.Op) uint8 {
	switch op {
	case vm.OpLt:
		return stage1Lt
	case vm.OpGt:
		return stage1Gt
	case vm.OpLe:
		return stage1Le
	case vm.OpGe:
		return stage1Ge
	case vm.OpEq:
		return stage1Eq
	default:
		return stage1Ne
	}
}

// FromChunk translates chunk's bytecode into a Stage1Program, or reports
// ok=false if chunk contains anything beyond Stage 1's pure primitives
// (spec.md §4.5: "Stage 1 handles pure primitives... Stage 2 needs a
// runtime call for pow, large constants, or anything touching the
// environment"). Nondeterminism and rule dispatch are refused earlier, by
// Chunk.JITEligible, so FromChunk only needs to reject arithmetic beyond
// add/sub/mul/comparison, non-Long constants, and control flow beyond the
// two-way jumps `if` compiles to.
func FromChunk(chunk *vm.Chunk) (Stage1Program, bool) {
	if !chunk.JITEligible() {
		return Stage1Program{}, false
	}
	consts := make([]uint64, 0, len(chunk.Constants))
	for _, c := range chunk.Constants {
		boxed, ok := Box(c)
		if !ok || c.Kind() != value.KindLong {
			return Stage1Program{}, false
		}
		consts = append(consts, boxed)
	}

	// JumpTargets discovers every jump destination up front (spec.md
	// §4.5's pre-pass); a jump resolving anywhere JumpTargets didn't
	// mark is refused rather than trusted, since that means the
	// destination isn't a real instruction boundary in this chunk.
	targets := JumpTargets(chunk.Code)
	offsetToIndex, ok := mapOffsetsToInstructions(chunk.Code)
	if !ok {
		return Stage1Program{}, false
	}

	prog := Stage1Program{Constants: consts}
	code := chunk.Code
	ip := 0
	for ip < len(code) {
		op := vm.Op(code[ip])
		ip++
		switch op {
		case vm.OpPushConst:
			idx := int(code[ip])<<8 | int(code[ip+1])
			ip += 2
			prog.Code = append(prog.Code, stage1Op{Op: stage1Push, Operand: uint16(idx)})
		case vm.OpPop:
			prog.Code = append(prog.Code, stage1Op{Op: stage1Pop})
		case vm.OpAdd:
			prog.Code = append(prog.Code, stage1Op{Op: stage1Add})
		case vm.OpSub:
			prog.Code = append(prog.Code, stage1Op{Op: stage1Sub})
		case vm.OpMul:
			prog.Code = append(prog.Code, stage1Op{Op: stage1Mul})
		case vm.OpLt, vm.OpGt, vm.OpLe, vm.OpGe, vm.OpEq, vm.OpNe:
			prog.Code = append(prog.Code, stage1Op{Op: compareStage1Op(op)})
		case vm.OpNot:
			prog.Code = append(prog.Code, stage1Op{Op: stage1Not})
		case vm.OpJump, vm.OpJumpIfFalse, vm.OpJumpIfTrue:
			off := int16(binary.BigEndian.Uint16(code[ip : ip+2]))
			dest := ip + 2 + int(off)
			if dest < 0 || dest > len(code) || !targets.Test(uint(dest)) {
				return Stage1Program{}, false
			}
			destIdx, ok := offsetToIndex[dest]
			if !ok {
				return Stage1Program{}, false
			}
			ip += 2
			prog.Code = append(prog.Code, stage1Op{Op: jumpStage1Op(op), Operand: uint16(destIdx)})
		case vm.OpReturn:
			prog.Code = append(prog.Code, stage1Op{Op: stage1Return})
		default:
			// Anything else — division, trig, environment ops, rule
			// dispatch, nondeterminism — is Stage 2 territory or simply
			// unmodeled by this inline backend; bail to the VM.
			return Stage1Program{}, false
		}
	}
	return prog, true
}

// TryCompileAndRun attempts the full Stage 1 native path for chunk:
// consult cache (inserting on a miss), run the resulting entry point, and
// unbox the result. Any failure — lowering refusal, backend
// unavailability, or a Stage 2 runtime call the inline backend doesn't
// implement — returns ok=false, and the caller falls back to the
// bytecode VM (spec.md §4.5 bailout protocol; testable property 6). cache
// may be nil, in which case every call lowers fresh.
func TryCompileAndRun(cache *Cache, chunk *vm.Chunk) (value.V, bool) {
	if !Available() {
		return value.V{}, false
	}
	cc, ok := LookupOrCompile(cache, chunk)
	if !ok {
		return value.V{}, false
	}
	word, err := cc.Entry(nil)
	if err != nil {
		return value.V{}, false
	}
	v, ok := UnboxToValue(word)
	if !ok {
		return value.V{}, false
	}
	return v, true
}
