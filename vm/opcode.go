// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

// Op is a single bytecode instruction opcode: one byte followed by 0, 1,
// 2, or 4 bytes of immediates in network byte order (spec.md §4.4). The
// set below is a working subset of the ~200-opcode set the spec
// describes. The VM's step loop executes the stack, constant, binding-
// frame, jump, OpHasGroundFact, OpDispatchRules, arithmetic, comparison,
// boolean, nondeterminism, OpDebugPrint and OpReturn opcodes. OpInsertRule,
// OpInsertFact, OpJumpTable, OpUnify, OpTryRule, OpNextRule, OpCallForm,
// the trig, classification and type opcodes, and OpSnapshotEnv/
// OpRestoreEnv have no case there and yield an InvalidOpcode error; the
// compiler never emits them, and forms it does not lower run on the
// interpreter.
type Op byte

const (
	// --- stack ---
	OpNop Op = iota
	OpPop
	OpDup

	// --- constants ---
	OpPushConst  // u16 index into Chunk.Constants
	OpMakeSExpr  // u16 n: pop n values, push SExpr(values...)

	// --- variables / binding frames ---
	OpPushBindingFrame
	OpPopBindingFrame
	OpLoadBinding   // u16 index into Chunk.Constants holding the variable name atom
	OpStoreBinding  // u16 index into Chunk.Constants holding the variable name atom

	// --- environment ---
	OpHasGroundFact
	OpInsertRule
	OpInsertFact

	// --- control flow ---
	OpJump         // i16 relative
	OpJumpIfFalse  // i16 relative; leaves tested value on stack
	OpJumpIfTrue   // i16 relative; leaves tested value on stack
	OpJumpTable    // u16 index into Chunk.JumpTables

	// --- pattern matching ---
	OpUnify // pops pattern, query; pushes Bool and merges bindings on success

	// --- rule dispatch ---
	OpDispatchRules // pops expr; pushes a match cursor
	OpTryRule       // applies current cursor entry, jumps to its body
	OpNextRule      // advances cursor, backtracks on exhaustion

	// --- special forms (lowered forms that don't reduce to the above) ---
	OpCallForm // u16 index into Chunk.SubChunks: map-atom/filter-atom/foldl-atom callback

	// --- grounded arithmetic ---
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	// --- grounded comparison ---
	OpLt
	OpGt
	OpLe
	OpGe
	OpEq
	OpNe

	// --- trig (not executed by the VM; see the Op comment) ---
	OpSin
	OpCos
	OpPow

	// --- classification ---
	OpIsLong
	OpIsFloat
	OpIsString
	OpIsSExpr

	// --- boolean ---
	OpAnd
	OpOr
	OpNot

	// --- type ---
	OpTypeAssert // pops (value, type); pushes Typed

	// --- nondeterminism ---
	OpFork    // u8 n alternatives
	OpYield   // saves top-of-stack into the results buffer, backtracks
	OpFail    // backtracks without emitting
	OpCollect // packages the results buffer as a single SExpr
	OpCut     // discards all choice points

	// --- trie bridge ---
	OpSnapshotEnv
	OpRestoreEnv

	// --- debug ---
	OpDebugPrint

	OpReturn
)

// immediateWidth reports how many bytes of immediate operand follow op in
// the instruction stream.
func immediateWidth(op Op) int {
	switch op {
	case OpPushConst, OpMakeSExpr, OpLoadBinding, OpStoreBinding, OpJumpTable, OpCallForm:
		return 2
	case OpJump, OpJumpIfFalse, OpJumpIfTrue:
		return 2
	case OpFork:
		return 1
	default:
		return 0
	}
}
