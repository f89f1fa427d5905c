// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	safemath "github.com/luxfi/mettatron/utils/math"
	"github.com/luxfi/mettatron/value"
)

func (m *VM) binaryOperands() (value.V, value.V, bool) {
	b, ok := m.pop()
	if !ok {
		m.push(errStackUnderflow())
		return value.V{}, value.V{}, false
	}
	a, ok := m.pop()
	if !ok {
		m.push(errStackUnderflow())
		return value.V{}, value.V{}, false
	}
	return a, b, true
}

func (m *VM) binaryArith(op Op) {
	a, b, ok := m.binaryOperands()
	if !ok {
		return
	}
	if a.Kind() == value.KindLong && b.Kind() == value.KindLong {
		x, y := a.AsLong(), b.AsLong()
		switch op {
		case OpAdd:
			r, err := safemath.AddInt64(x, y)
			if err != nil {
				m.push(errIntegerOverflow("+ overflow"))
				return
			}
			m.push(value.Long(r))
		case OpSub:
			r, err := safemath.SubInt64(x, y)
			if err != nil {
				m.push(errIntegerOverflow("- overflow"))
				return
			}
			m.push(value.Long(r))
		case OpMul:
			r, err := safemath.MulInt64(x, y)
			if err != nil {
				m.push(errIntegerOverflow("* overflow"))
				return
			}
			m.push(value.Long(r))
		case OpDiv:
			if y == 0 {
				m.push(errDivisionByZero())
				return
			}
			m.push(value.Long(x / y))
		case OpMod:
			if y == 0 {
				m.push(errDivisionByZero())
				return
			}
			m.push(value.Long(x % y))
		}
		return
	}
	if isNumeric(a) && isNumeric(b) {
		x, y := asFloat(a), asFloat(b)
		switch op {
		case OpAdd:
			m.push(value.Float(x + y))
		case OpSub:
			m.push(value.Float(x - y))
		case OpMul:
			m.push(value.Float(x * y))
		case OpDiv:
			if y == 0 {
				m.push(errDivisionByZero())
				return
			}
			m.push(value.Float(x / y))
		case OpMod:
			m.push(errTypeError("mod: requires Long operands"))
		}
		return
	}
	m.push(errTypeError("arithmetic: operands are not numeric"))
}

func (m *VM) binaryCompare(op Op) {
	a, b, ok := m.binaryOperands()
	if !ok {
		return
	}
	switch op {
	case OpEq:
		m.push(value.Bool(value.FloatIEEEEqual(a, b)))
		return
	case OpNe:
		m.push(value.Bool(!value.FloatIEEEEqual(a, b)))
		return
	}
	if !isNumeric(a) || !isNumeric(b) {
		m.push(errTypeError("comparison: operands are not numeric"))
		return
	}
	x, y := asFloat(a), asFloat(b)
	switch op {
	case OpLt:
		m.push(value.Bool(x < y))
	case OpGt:
		m.push(value.Bool(x > y))
	case OpLe:
		m.push(value.Bool(x <= y))
	case OpGe:
		m.push(value.Bool(x >= y))
	}
}

func (m *VM) binaryBool(op Op) {
	a, b, ok := m.binaryOperands()
	if !ok {
		return
	}
	if a.Kind() != value.KindBool || b.Kind() != value.KindBool {
		m.push(errTypeError("boolean op: operands are not Bool"))
		return
	}
	if op == OpAnd {
		m.push(value.Bool(a.AsBool() && b.AsBool()))
	} else {
		m.push(value.Bool(a.AsBool() || b.AsBool()))
	}
}

func isNumeric(v value.V) bool {
	return v.Kind() == value.KindLong || v.Kind() == value.KindFloat
}

func asFloat(v value.V) float64 {
	if v.Kind() == value.KindLong {
		return float64(v.AsLong())
	}
	return v.AsFloat()
}
