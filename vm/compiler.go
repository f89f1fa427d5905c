// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"encoding/binary"
	"errors"

	"github.com/luxfi/mettatron/value"
)

// ErrUnsupportedForm is returned by Compile when expr uses a construct
// this pass of the bytecode compiler does not lower. The Hybrid Executor
// treats it as "stay on Tier 0" rather than a compile failure that aborts
// the directive — spec.md never requires every expression be JIT/VM
// eligible, only that whichever tier runs it produces the same result.
//
// This compiler lowers literals, the grounded arithmetic/comparison/
// boolean builtins, `if`, `superpose` of a literal-only alternative list,
// and plain rule-store calls. The remaining special forms (`case`, `let`,
// `match`, `quote`, `unquote`, `eval`, `collapse`, `catch`, `:`, `=`) stay
// interpreter-only in this pass — each would need either a reentrant
// callback chunk (superpose of non-literal alternatives, map-atom-style
// callbacks) or incremental nested-body compilation (rule bodies
// resolved only at match time) to lower correctly, which is future work
// tracked in DESIGN.md rather than attempted here under budget.
var ErrUnsupportedForm = errors.New("vm: expression uses a form this compiler pass does not lower")

var arithOps = map[string]Op{"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod}
var compareOps = map[string]Op{"<": OpLt, ">": OpGt, "<=": OpLe, ">=": OpGe, "==": OpEq, "!=": OpNe}
var boolOps = map[string]Op{"and": OpAnd, "or": OpOr}

type compiler struct {
	chunk *Chunk
}

// Compile lowers expr into a Chunk, or returns ErrUnsupportedForm.
func Compile(expr value.V, debugName string) (*Chunk, error) {
	c := &compiler{chunk: NewChunk(debugName)}
	if err := c.compileExpr(expr); err != nil {
		return nil, err
	}
	c.emit(OpReturn)
	return c.chunk, nil
}

func (c *compiler) addConst(v value.V) uint16 {
	for i, existing := range c.chunk.Constants {
		if value.Equal(existing, v) {
			return uint16(i)
		}
	}
	c.chunk.Constants = append(c.chunk.Constants, v)
	return uint16(len(c.chunk.Constants) - 1)
}

func (c *compiler) emit(op Op) {
	c.chunk.Code = append(c.chunk.Code, byte(op))
}

func (c *compiler) emitU16(op Op, n uint16) {
	c.emit(op)
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], n)
	c.chunk.Code = append(c.chunk.Code, buf[:]...)
}

func (c *compiler) compileExpr(expr value.V) error {
	switch expr.Kind() {
	case value.KindNil, value.KindUnit, value.KindBool, value.KindLong, value.KindFloat,
		value.KindString, value.KindURI, value.KindAtom, value.KindVariable, value.KindError, value.KindTyped:
		c.emitU16(OpPushConst, c.addConst(expr))
		return nil
	case value.KindSExpr:
		return c.compileSExpr(expr)
	default:
		return ErrUnsupportedForm
	}
}

func (c *compiler) compileSExpr(expr value.V) error {
	items := expr.Items()
	if len(items) == 0 {
		c.emitU16(OpPushConst, c.addConst(expr))
		return nil
	}
	head := items[0]
	if head.Kind() == value.KindAtom {
		name := head.AsString()
		switch name {
		case "case", "let", "match", "quote", "unquote", "eval", "collapse", "catch", ":", "=":
			return ErrUnsupportedForm
		}
		if op, ok := arithOps[name]; ok && len(items) == 3 {
			return c.compileBinary(op, items[1], items[2])
		}
		if op, ok := compareOps[name]; ok && len(items) == 3 {
			return c.compileBinary(op, items[1], items[2])
		}
		if op, ok := boolOps[name]; ok && len(items) == 3 {
			return c.compileBinary(op, items[1], items[2])
		}
		if name == "not" && len(items) == 2 {
			if err := c.compileExpr(items[1]); err != nil {
				return err
			}
			c.emit(OpNot)
			return nil
		}
		if name == "if" && len(items) == 4 {
			return c.compileIf(items[1], items[2], items[3])
		}
		if name == "superpose" && len(items) == 2 {
			return c.compileSuperpose(items[1])
		}
	}
	return c.compileRuleCall(expr)
}

func (c *compiler) compileBinary(op Op, lhs, rhs value.V) error {
	if err := c.compileExpr(lhs); err != nil {
		return err
	}
	if err := c.compileExpr(rhs); err != nil {
		return err
	}
	c.emit(op)
	return nil
}

// compileIf emits: <cond> jump_if_false else; pop; <then> jump end; else:
// pop; <else_branch> end:
func (c *compiler) compileIf(cond, then, elseBranch value.V) error {
	if err := c.compileExpr(cond); err != nil {
		return err
	}
	c.emit(OpJumpIfFalse)
	jumpToElse := c.reserveI16()

	c.emit(OpPop)
	if err := c.compileExpr(then); err != nil {
		return err
	}
	c.emit(OpJump)
	jumpToEnd := c.reserveI16()

	c.patchI16(jumpToElse, len(c.chunk.Code)-jumpToElse-2)
	c.emit(OpPop)
	if err := c.compileExpr(elseBranch); err != nil {
		return err
	}
	c.patchI16(jumpToEnd, len(c.chunk.Code)-jumpToEnd-2)
	return nil
}

// compileSuperpose only lowers alternative lists made entirely of
// self-evaluating literals: Fork's alternatives are plain values, not
// code to run, so a non-literal alternative falls back to ErrUnsupportedForm.
func (c *compiler) compileSuperpose(alternatives value.V) error {
	if alternatives.Kind() != value.KindSExpr {
		return ErrUnsupportedForm
	}
	items := alternatives.Items()
	if len(items) == 0 || len(items) > 255 {
		return ErrUnsupportedForm
	}
	for _, item := range items {
		if !isLiteral(item) {
			return ErrUnsupportedForm
		}
	}
	// doFork pops n values off the stack and assigns the i-th pop to
	// alts[n-1-i] (it walks the alternatives slice from the top down),
	// so the first-pushed (bottom-most) value lands at alts[0]. Pushing
	// items in their natural order here makes alts[i] == items[i].
	for _, item := range items {
		c.emitU16(OpPushConst, c.addConst(item))
	}
	c.emit(OpFork)
	c.chunk.Code = append(c.chunk.Code, byte(len(items)))
	c.chunk.ContainsNondeterminism = true
	return nil
}

func isLiteral(v value.V) bool {
	switch v.Kind() {
	case value.KindSExpr:
		return false
	default:
		return true
	}
}

// compileRuleCall builds the expression as a runtime SExpr value (with
// each argument compiled/evaluated first) and hands it to OpDispatchRules,
// which delegates matched-body evaluation to the shared Tier 0
// interpreter (see DESIGN.md).
func (c *compiler) compileRuleCall(expr value.V) error {
	items := expr.Items()
	for _, item := range items {
		if err := c.compileExpr(item); err != nil {
			return err
		}
	}
	c.emitU16(OpMakeSExpr, uint16(len(items)))
	c.chunk.ContainsRuleDispatch = true
	c.emit(OpDispatchRules)
	return nil
}

func (c *compiler) reserveI16() int {
	pos := len(c.chunk.Code)
	c.chunk.Code = append(c.chunk.Code, 0, 0)
	return pos
}

func (c *compiler) patchI16(pos, offset int) {
	binary.BigEndian.PutUint16(c.chunk.Code[pos:pos+2], uint16(int16(offset)))
}
