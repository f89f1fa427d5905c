// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

//go:build cgo
// +build cgo

package jit

/*
#include <stdint.h>
#include <stdlib.h>

// A Stage 1 native chunk is a flat array of (op, operand) pairs operating
// on a small fixed stack of NaN-boxed uint64 words — only the "pure
// primitives" spec.md §4.5 describes for Stage 1: stack push/pop,
// arithmetic, comparison, boolean, return. Anything else bails before
// ever reaching this function.
typedef struct {
	uint8_t  op;
	uint16_t operand;
} mt_instr_t;

#define MT_OP_PUSH            0
#define MT_OP_POP             1
#define MT_OP_ADD             2
#define MT_OP_SUB             3
#define MT_OP_MUL             4
#define MT_OP_LT              5
#define MT_OP_GT              6
#define MT_OP_LE              7
#define MT_OP_GE              8
#define MT_OP_EQ              9
#define MT_OP_NE              10
#define MT_OP_NOT             11
#define MT_OP_JUMP            12
#define MT_OP_JUMP_IF_FALSE   13
#define MT_OP_JUMP_IF_TRUE    14
#define MT_OP_RETURN          15

// NaN-box layout mirrored from nanbox.go: a quiet-NaN word with a 3-bit
// tag in bits 48-50 and a 48-bit payload below it. FromChunk only ever
// feeds TagLong constants into arithmetic ops, so the arithmetic below
// unboxes both operands as sign-extended int48s, computes in int64, and
// re-boxes the sum/difference/product as TagLong — never operating on
// the raw boxed words (those aren't arithmetic-safe: two boxed Longs
// summed as raw uint64s overflow out of the quiet-NaN tag bits and are
// misread as an IEEE float by UnboxToValue).
#define MT_QUIET_NAN_BASE ((uint64_t)0x7FF8000000000000ULL)
#define MT_TAG_SHIFT 48
#define MT_PAYLOAD_MASK ((((uint64_t)1) << MT_TAG_SHIFT) - 1)
#define MT_TAG_LONG ((uint64_t)0)
#define MT_TAG_BOOL ((uint64_t)1)

static int64_t mt_unbox_long(uint64_t word) {
	uint64_t payload = word & MT_PAYLOAD_MASK;
	uint64_t sign_bit = ((uint64_t)1) << 47;
	if (payload & sign_bit) {
		return (int64_t)(payload | ~MT_PAYLOAD_MASK);
	}
	return (int64_t)payload;
}

static uint64_t mt_box_long(int64_t v) {
	return MT_QUIET_NAN_BASE | (MT_TAG_LONG << MT_TAG_SHIFT) | (((uint64_t)v) & MT_PAYLOAD_MASK);
}

static int mt_unbox_bool(uint64_t word) {
	return (int)(word & MT_PAYLOAD_MASK);
}

static uint64_t mt_box_bool(int b) {
	return MT_QUIET_NAN_BASE | (MT_TAG_BOOL << MT_TAG_SHIFT) | ((uint64_t)(b != 0));
}

static int mt_run_stage1(const mt_instr_t *code, int n, const uint64_t *consts,
                          uint64_t *stack, int *sp, uint64_t *result) {
	int i;
	for (i = 0; i < n; i++) {
		mt_instr_t ins = code[i];
		switch (ins.op) {
		case MT_OP_PUSH:
			stack[(*sp)++] = consts[ins.operand];
			break;
		case MT_OP_ADD: {
			int64_t b = mt_unbox_long(stack[--(*sp)]);
			int64_t a = mt_unbox_long(stack[--(*sp)]);
			stack[(*sp)++] = mt_box_long(a + b);
			break;
		}
		case MT_OP_SUB: {
			int64_t b = mt_unbox_long(stack[--(*sp)]);
			int64_t a = mt_unbox_long(stack[--(*sp)]);
			stack[(*sp)++] = mt_box_long(a - b);
			break;
		}
		case MT_OP_MUL: {
			int64_t b = mt_unbox_long(stack[--(*sp)]);
			int64_t a = mt_unbox_long(stack[--(*sp)]);
			stack[(*sp)++] = mt_box_long(a * b);
			break;
		}
		case MT_OP_POP:
			(*sp)--;
			break;
		case MT_OP_LT: {
			int64_t b = mt_unbox_long(stack[--(*sp)]);
			int64_t a = mt_unbox_long(stack[--(*sp)]);
			stack[(*sp)++] = mt_box_bool(a < b);
			break;
		}
		case MT_OP_GT: {
			int64_t b = mt_unbox_long(stack[--(*sp)]);
			int64_t a = mt_unbox_long(stack[--(*sp)]);
			stack[(*sp)++] = mt_box_bool(a > b);
			break;
		}
		case MT_OP_LE: {
			int64_t b = mt_unbox_long(stack[--(*sp)]);
			int64_t a = mt_unbox_long(stack[--(*sp)]);
			stack[(*sp)++] = mt_box_bool(a <= b);
			break;
		}
		case MT_OP_GE: {
			int64_t b = mt_unbox_long(stack[--(*sp)]);
			int64_t a = mt_unbox_long(stack[--(*sp)]);
			stack[(*sp)++] = mt_box_bool(a >= b);
			break;
		}
		case MT_OP_EQ: {
			int64_t b = mt_unbox_long(stack[--(*sp)]);
			int64_t a = mt_unbox_long(stack[--(*sp)]);
			stack[(*sp)++] = mt_box_bool(a == b);
			break;
		}
		case MT_OP_NE: {
			int64_t b = mt_unbox_long(stack[--(*sp)]);
			int64_t a = mt_unbox_long(stack[--(*sp)]);
			stack[(*sp)++] = mt_box_bool(a != b);
			break;
		}
		case MT_OP_NOT: {
			int a = mt_unbox_bool(stack[--(*sp)]);
			stack[(*sp)++] = mt_box_bool(!a);
			break;
		}
		case MT_OP_JUMP:
			i = (int)ins.operand - 1;
			break;
		case MT_OP_JUMP_IF_FALSE: {
			// peeks, does not pop: the bytecode compiler always follows
			// this with an explicit Pop on both branches (vm/compiler.go
			// compileIf), mirroring vm.OpJumpIfFalse's own stack contract.
			int cond = mt_unbox_bool(stack[(*sp) - 1]);
			if (!cond) {
				i = (int)ins.operand - 1;
			}
			break;
		}
		case MT_OP_JUMP_IF_TRUE: {
			int cond = mt_unbox_bool(stack[(*sp) - 1]);
			if (cond) {
				i = (int)ins.operand - 1;
			}
			break;
		}
		case MT_OP_RETURN:
			*result = stack[(*sp) - 1];
			return 0;
		default:
			return -1;
		}
	}
	return -1;
}
*/
import "C"

import (
	"errors"
	"unsafe"

	"github.com/klauspost/cpuid/v2"
)

// ErrNativeUnsupported is returned by Run when the chunk needs a Stage 2
// runtime call (pow, large constants, environment access) that this
// inline native backend doesn't implement — the caller bails to the VM.
var ErrNativeUnsupported = errors.New("jit: chunk requires a stage 2 runtime call")

// stage1Op mirrors the encoding mt_run_stage1 understands; compile_cgo.go
// translates a Stage1Program into this tiny instruction set and calls into
// the C loop above rather than interpreting in Go, exercising the cgo path
// the way the teacher's native-consensus backend does (cgo_consensus.go).
type stage1Op struct {
	Op      uint8
	Operand uint16
}

const (
	stage1Push uint8 = iota
	stage1Pop
	stage1Add
	stage1Sub
	stage1Mul
	stage1Lt
	stage1Gt
	stage1Le
	stage1Ge
	stage1Eq
	stage1Ne
	stage1Not
	stage1Jump
	stage1JumpIfFalse
	stage1JumpIfTrue
	stage1Return
)

// Stage1Program is the subset of a Chunk this backend can lower: pushes,
// arithmetic, comparison, boolean negation, and the two-way jumps `if`
// compiles to — no runtime calls, environment access, or rule dispatch
// (spec.md §4.5 Stage 1).
type Stage1Program struct {
	Code      []stage1Op
	Constants []uint64
}

// Available reports whether this build was compiled with cgo and the
// running CPU has the baseline 64-bit integer arithmetic feature set the
// inline native backend assumes — the same "feature gate before handing
// work to native code" role the teacher's cgoAvailable() plays for its
// own cgo consensus backend. On x86-64 that's SSE2, present on every
// target Go itself supports; on other architectures cpuid reports no
// features at all, so the gate also keeps unported arches off the
// native path.
func Available() bool { return cpuid.CPU.Supports(cpuid.SSE2) }

// Run executes prog natively via the inline C interpreter above, returning
// the boxed result word. It never runs nondeterministic or rule-dispatch
// code — Stage1Program construction refuses those forms upstream in the
// bytecode compiler (Chunk.JITEligible).
func Run(prog Stage1Program) (uint64, error) {
	if len(prog.Code) == 0 {
		return 0, ErrNativeUnsupported
	}
	cCode := make([]C.mt_instr_t, len(prog.Code))
	for i, ins := range prog.Code {
		cCode[i] = C.mt_instr_t{op: C.uint8_t(ins.Op), operand: C.uint16_t(ins.Operand)}
	}
	cConsts := make([]C.uint64_t, len(prog.Constants))
	for i, v := range prog.Constants {
		cConsts[i] = C.uint64_t(v)
	}
	stack := make([]C.uint64_t, 256)
	var sp C.int
	var result C.uint64_t

	var codePtr *C.mt_instr_t
	if len(cCode) > 0 {
		codePtr = (*C.mt_instr_t)(unsafe.Pointer(&cCode[0]))
	}
	var constPtr *C.uint64_t
	if len(cConsts) > 0 {
		constPtr = (*C.uint64_t)(unsafe.Pointer(&cConsts[0]))
	}

	rc := C.mt_run_stage1(codePtr, C.int(len(cCode)), constPtr, &stack[0], &sp, &result)
	if rc != 0 {
		return 0, ErrNativeUnsupported
	}
	return uint64(result), nil
}
