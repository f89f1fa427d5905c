// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vm implements Tier 1: a stack machine executing compiled
// Chunks (spec.md §4.4). It shares the choice-point model with the JIT's
// bailout protocol and must be pointwise result-equivalent with the Tier
// 0 interpreter (spec.md testable property 5).
package vm

import (
	"encoding/binary"

	"github.com/luxfi/mettatron/interp"
	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/value"
)

const maxValueStack = 65536

// VM executes a single Chunk to completion, yielding every non-
// deterministic result produced (spec.md §4.4). Rule dispatch opcodes
// delegate matched-rule-body evaluation to the shared Tier 0 interpreter
// rather than a separately compiled nested cursor — see DESIGN.md for why
// this scoping is deliberate, not a shortcut.
type VM struct {
	interp *interp.Interp

	stack        []value.V
	bindings     bindingStack
	choicePoints choicePointStack
	results      []value.V

	env   store.Environment
	chunk *Chunk
	ip    int

	// cancelled is checked at every dispatch boundary (spec.md §5); the
	// executor arms it from a timer or explicit cancellation request.
	cancelled *bool
}

func New(in *interp.Interp) *VM {
	return &VM{interp: in}
}

// Run executes chunk against env, returning every result produced by
// nondeterministic branching, in order, plus the environment (updated if
// a rule/type definition executed within chunk).
func (m *VM) Run(chunk *Chunk, env store.Environment, cancelled *bool) ([]value.V, store.Environment, error) {
	m.stack = m.stack[:0]
	m.bindings = bindingStack{}
	m.choicePoints = choicePointStack{}
	m.results = nil
	m.env = env
	m.chunk = chunk
	m.ip = 0
	m.cancelled = cancelled

	for {
		sig, result, err := m.step()
		if err != nil {
			return nil, m.env, err
		}
		switch sig {
		case sigContinue:
			continue
		case sigReturn:
			m.results = append(m.results, result)
			if !m.backtrack() {
				return m.results, m.env, nil
			}
		case sigBacktrackNoEmit:
			if !m.backtrack() {
				return m.results, m.env, nil
			}
		case sigHalt:
			return m.results, m.env, nil
		}
	}
}

type signal int

const (
	sigContinue signal = iota
	sigReturn
	sigBacktrackNoEmit
	sigHalt
)

func (m *VM) push(v value.V) bool {
	if len(m.stack) >= maxValueStack {
		return false
	}
	m.stack = append(m.stack, v)
	return true
}

func (m *VM) pop() (value.V, bool) {
	if len(m.stack) == 0 {
		return value.V{}, false
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, true
}

func (m *VM) top() (value.V, bool) {
	if len(m.stack) == 0 {
		return value.V{}, false
	}
	return m.stack[len(m.stack)-1], true
}

// backtrack restores the most recent choice point's state and continues
// from its next remaining alternative. Returns false if no choice point
// remains (the whole evaluation is exhausted).
func (m *VM) backtrack() bool {
	for {
		cp, ok := m.choicePoints.pop()
		if !ok {
			return false
		}
		if len(cp.remaining) == 0 {
			continue
		}
		alt := cp.remaining[0]
		remaining := cp.remaining[1:]

		m.stack = append([]value.V(nil), cp.savedStack...)
		m.bindings.restore(cp.savedFrames)
		m.ip = cp.ip

		if len(remaining) > 0 {
			m.choicePoints.push(choicePoint{
				savedStack:  cp.savedStack,
				savedFrames: cp.savedFrames,
				ip:          cp.ip,
				remaining:   remaining,
			})
		}

		if alt.constant != nil {
			m.push(*alt.constant)
		} else if alt.rule != nil {
			m.applyRuleAlternative(*alt.rule)
		}
		return true
	}
}

// applyRuleAlternative evaluates one matched rule's (guarded) body via
// the shared Tier 0 interpreter and pushes its first result, queuing any
// further results as additional choice-point alternatives.
func (m *VM) applyRuleAlternative(match store.MatchResult) {
	if match.Rule.Guard != nil {
		guardExpr := store.Substitute(*match.Rule.Guard, match.Bindings)
		guardResults, _, err := m.interp.Eval(m.env, guardExpr)
		if err != nil || !anyTrue(guardResults) {
			m.push(vmError("GuardFailed", "rule guard did not hold"))
			return
		}
	}
	body := store.Substitute(match.Rule.Body, match.Bindings)
	results, newEnv, err := m.interp.Eval(m.env, body)
	m.env = newEnv
	if err != nil {
		m.push(vmError("SystemError", err.Error()))
		return
	}
	m.pushResultsAsChoicePoint(results)
}

func (m *VM) pushResultsAsChoicePoint(results []value.V) {
	if len(results) == 0 {
		m.push(value.Nil)
		return
	}
	if len(results) == 1 {
		m.push(results[0])
		return
	}
	alts := make([]alternative, len(results))
	for i, r := range results {
		v := r
		alts[i] = alternative{constant: &v}
	}
	m.choicePoints.push(choicePoint{
		savedStack:  append([]value.V(nil), m.stack...),
		savedFrames: m.bindings.snapshot(),
		ip:          m.ip,
		remaining:   alts[1:],
	})
	m.push(results[0])
}

func anyTrue(results []value.V) bool {
	for _, r := range results {
		if r.Kind() == value.KindBool && r.AsBool() {
			return true
		}
	}
	return false
}

// step executes exactly one instruction.
func (m *VM) step() (signal, value.V, error) {
	if m.cancelled != nil && *m.cancelled {
		return sigReturn, vmError("Cancelled", "evaluation cancelled"), nil
	}
	if m.ip >= len(m.chunk.Code) {
		top, ok := m.top()
		if !ok {
			return sigHalt, value.V{}, nil
		}
		return sigReturn, top, nil
	}

	op := Op(m.chunk.Code[m.ip])
	m.ip++

	switch op {
	case OpNop:
		return sigContinue, value.V{}, nil
	case OpReturn:
		top, ok := m.top()
		if !ok {
			return sigBacktrackNoEmit, value.V{}, nil
		}
		return sigReturn, top, nil
	case OpPop:
		m.pop()
		return sigContinue, value.V{}, nil
	case OpDup:
		v, ok := m.top()
		if !ok {
			m.push(errStackUnderflow())
			return sigContinue, value.V{}, nil
		}
		m.push(v)
		return sigContinue, value.V{}, nil
	case OpPushConst:
		idx := m.readU16()
		m.push(m.chunk.Constants[idx])
		return sigContinue, value.V{}, nil
	case OpMakeSExpr:
		n := int(m.readU16())
		items := make([]value.V, n)
		for i := n - 1; i >= 0; i-- {
			v, ok := m.pop()
			if !ok {
				m.push(errStackUnderflow())
				return sigContinue, value.V{}, nil
			}
			items[i] = v
		}
		m.push(value.SExpr(items...))
		return sigContinue, value.V{}, nil
	case OpPushBindingFrame:
		m.bindings.push()
		return sigContinue, value.V{}, nil
	case OpPopBindingFrame:
		m.bindings.pop()
		return sigContinue, value.V{}, nil
	case OpLoadBinding:
		idx := m.readU16()
		name := m.chunk.Constants[idx].AsString()
		if v, ok := m.bindings.load(name); ok {
			m.push(v)
		} else {
			m.push(errInvalidBinding(name))
		}
		return sigContinue, value.V{}, nil
	case OpStoreBinding:
		idx := m.readU16()
		name := m.chunk.Constants[idx].AsString()
		v, ok := m.pop()
		if !ok {
			m.push(errStackUnderflow())
			return sigContinue, value.V{}, nil
		}
		m.bindings.store(name, v)
		return sigContinue, value.V{}, nil
	case OpJump:
		off := m.readI16()
		m.ip += int(off)
		return sigContinue, value.V{}, nil
	case OpJumpIfFalse:
		off := m.readI16()
		v, ok := m.top()
		if ok && v.Kind() == value.KindBool && !v.AsBool() {
			m.ip += int(off)
		}
		return sigContinue, value.V{}, nil
	case OpJumpIfTrue:
		off := m.readI16()
		v, ok := m.top()
		if ok && v.Kind() == value.KindBool && v.AsBool() {
			m.ip += int(off)
		}
		return sigContinue, value.V{}, nil
	case OpHasGroundFact:
		v, ok := m.pop()
		if !ok {
			m.push(errStackUnderflow())
			return sigContinue, value.V{}, nil
		}
		found, err := m.env.HasGroundFact(v)
		if err != nil {
			m.push(errTypeError(err.Error()))
		} else {
			m.push(value.Bool(found))
		}
		return sigContinue, value.V{}, nil
	case OpDispatchRules:
		expr, ok := m.pop()
		if !ok {
			m.push(errStackUnderflow())
			return sigContinue, value.V{}, nil
		}
		results, newEnv, err := m.interp.Eval(m.env, expr)
		m.env = newEnv
		if err != nil {
			return sigReturn, value.V{}, err
		}
		m.pushResultsAsChoicePoint(results)
		return sigContinue, value.V{}, nil
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		m.binaryArith(op)
		return sigContinue, value.V{}, nil
	case OpLt, OpGt, OpLe, OpGe, OpEq, OpNe:
		m.binaryCompare(op)
		return sigContinue, value.V{}, nil
	case OpAnd, OpOr:
		m.binaryBool(op)
		return sigContinue, value.V{}, nil
	case OpNot:
		v, ok := m.pop()
		if !ok || v.Kind() != value.KindBool {
			m.push(errTypeError("not: operand is not Bool"))
		} else {
			m.push(value.Bool(!v.AsBool()))
		}
		return sigContinue, value.V{}, nil
	case OpFork:
		n := int(m.chunk.Code[m.ip])
		m.ip++
		m.doFork(n)
		return sigContinue, value.V{}, nil
	case OpYield:
		v, ok := m.pop()
		if !ok {
			v = value.Nil
		}
		m.results = append(m.results, v)
		return sigBacktrackNoEmit, value.V{}, nil
	case OpFail:
		return sigBacktrackNoEmit, value.V{}, nil
	case OpCollect:
		collected := append([]value.V(nil), m.results...)
		m.results = nil
		m.push(value.SExpr(collected...))
		return sigContinue, value.V{}, nil
	case OpCut:
		m.choicePoints.cut()
		return sigContinue, value.V{}, nil
	case OpDebugPrint:
		return sigContinue, value.V{}, nil
	default:
		return sigReturn, errInvalidOpcode(byte(op)), nil
	}
}

// doFork pops n alternatives (pushed by the compiler in natural order;
// popping fills the slice from the back, so the first alternative ends up
// first in the slice) and establishes a choice point; the first
// alternative continues immediately.
func (m *VM) doFork(n int) {
	alts := make([]alternative, n)
	for i := n - 1; i >= 0; i-- {
		v, ok := m.pop()
		if !ok {
			v = errStackUnderflow()
		}
		val := v
		alts[i] = alternative{constant: &val}
	}
	if n == 0 {
		return
	}
	if n > 1 {
		m.choicePoints.push(choicePoint{
			savedStack:  append([]value.V(nil), m.stack...),
			savedFrames: m.bindings.snapshot(),
			ip:          m.ip,
			remaining:   alts[1:],
		})
	}
	m.push(*alts[0].constant)
}

func (m *VM) readU16() uint16 {
	v := binary.BigEndian.Uint16(m.chunk.Code[m.ip : m.ip+2])
	m.ip += 2
	return v
}

func (m *VM) readI16() int16 {
	return int16(m.readU16())
}
