// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package interp

import (
	"github.com/luxfi/mettatron/set"
	"github.com/luxfi/mettatron/store"
	safemath "github.com/luxfi/mettatron/utils/math"
	"github.com/luxfi/mettatron/value"
)

// builtinHeads are the reserved atoms handled as grounded operations
// (spec.md §4.3): "handled when the head is a reserved atom and arguments
// have evaluated to matching primitive types." Anything else with this
// head falls through to rule-store dispatch.
var builtinHeads = set.Of(
	"+", "-", "*", "/", "%",
	"<", ">", "<=", ">=", "==", "!=",
	"and", "or", "not",
	"car-atom", "cdr-atom", "cons-atom", "size-atom",
)

// tryBuiltin evaluates args (cartesian over their non-deterministic result
// lists) and applies name if it is a reserved grounded operation. The
// second return reports whether name was handled at all.
func (in *Interp) tryBuiltin(env store.Environment, name string, args []value.V, depth int) ([]value.V, bool, error) {
	if !builtinHeads.Contains(name) {
		return nil, false, nil
	}
	combos, _, err := in.cartesianEvalArgs(env, args, depth)
	if err != nil {
		return nil, true, err
	}
	out := make([]value.V, 0, len(combos))
	for _, combo := range combos {
		out = append(out, applyBuiltin(name, combo))
	}
	return out, true, nil
}

func applyBuiltin(name string, args []value.V) value.V {
	switch name {
	case "+", "-", "*", "/", "%":
		return applyArith(name, args)
	case "<", ">", "<=", ">=", "==", "!=":
		return applyCompare(name, args)
	case "and", "or", "not":
		return applyBoolean(name, args)
	case "car-atom":
		return applyCarAtom(args)
	case "cdr-atom":
		return applyCdrAtom(args)
	case "cons-atom":
		return applyConsAtom(args)
	case "size-atom":
		return applySizeAtom(args)
	default:
		return typeError("unknown grounded operation " + name)
	}
}

func applyArith(name string, args []value.V) value.V {
	if len(args) != 2 {
		return arityError(name, 2, len(args))
	}
	a, b := args[0], args[1]
	if a.Kind() == value.KindLong && b.Kind() == value.KindLong {
		x, y := a.AsLong(), b.AsLong()
		switch name {
		case "+":
			r, err := safemath.AddInt64(x, y)
			if err != nil {
				return integerOverflow("+ overflow")
			}
			return value.Long(r)
		case "-":
			r, err := safemath.SubInt64(x, y)
			if err != nil {
				return integerOverflow("- overflow")
			}
			return value.Long(r)
		case "*":
			r, err := safemath.MulInt64(x, y)
			if err != nil {
				return integerOverflow("* overflow")
			}
			return value.Long(r)
		case "/":
			if y == 0 {
				return divisionByZero()
			}
			return value.Long(x / y)
		case "%":
			if y == 0 {
				return divisionByZero()
			}
			return value.Long(x % y)
		}
	}
	if isNumeric(a) && isNumeric(b) {
		x, y := asFloat(a), asFloat(b)
		switch name {
		case "+":
			return value.Float(x + y)
		case "-":
			return value.Float(x - y)
		case "*":
			return value.Float(x * y)
		case "/":
			if y == 0 {
				return divisionByZero()
			}
			return value.Float(x / y)
		case "%":
			return typeError(name + ": modulo requires Long operands")
		}
	}
	return typeError(name + ": operands are not numeric")
}

func applyCompare(name string, args []value.V) value.V {
	if len(args) != 2 {
		return arityError(name, 2, len(args))
	}
	a, b := args[0], args[1]
	if name == "==" {
		return value.Bool(value.FloatIEEEEqual(a, b))
	}
	if name == "!=" {
		return value.Bool(!value.FloatIEEEEqual(a, b))
	}
	if !isNumeric(a) || !isNumeric(b) {
		return typeError(name + ": operands are not numeric")
	}
	x, y := asFloat(a), asFloat(b)
	switch name {
	case "<":
		return value.Bool(x < y)
	case ">":
		return value.Bool(x > y)
	case "<=":
		return value.Bool(x <= y)
	case ">=":
		return value.Bool(x >= y)
	}
	return typeError("unreachable comparison " + name)
}

func applyBoolean(name string, args []value.V) value.V {
	switch name {
	case "not":
		if len(args) != 1 || args[0].Kind() != value.KindBool {
			return typeError("not: operand is not Bool")
		}
		return value.Bool(!args[0].AsBool())
	case "and", "or":
		if len(args) != 2 || args[0].Kind() != value.KindBool || args[1].Kind() != value.KindBool {
			return typeError(name + ": operands are not Bool")
		}
		if name == "and" {
			return value.Bool(args[0].AsBool() && args[1].AsBool())
		}
		return value.Bool(args[0].AsBool() || args[1].AsBool())
	default:
		return typeError("unreachable boolean op " + name)
	}
}

func applyCarAtom(args []value.V) value.V {
	if len(args) != 1 || args[0].Kind() != value.KindSExpr || len(args[0].Items()) == 0 {
		return typeError("car-atom: operand is not a non-empty list")
	}
	return args[0].Items()[0]
}

func applyCdrAtom(args []value.V) value.V {
	if len(args) != 1 || args[0].Kind() != value.KindSExpr || len(args[0].Items()) == 0 {
		return typeError("cdr-atom: operand is not a non-empty list")
	}
	items := args[0].Items()
	return value.SExpr(items[1:]...)
}

func applyConsAtom(args []value.V) value.V {
	if len(args) != 2 || args[1].Kind() != value.KindSExpr {
		return typeError("cons-atom: second operand is not a list")
	}
	tail := args[1].Items()
	head := make([]value.V, 0, len(tail)+1)
	head = append(head, args[0])
	head = append(head, tail...)
	return value.SExpr(head...)
}

func applySizeAtom(args []value.V) value.V {
	if len(args) != 1 || args[0].Kind() != value.KindSExpr {
		return typeError("size-atom: operand is not a list")
	}
	return value.Long(int64(len(args[0].Items())))
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
