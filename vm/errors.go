// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import "github.com/luxfi/mettatron/value"

// Opcode-level failures are all reported as value.V Error values, never
// as panics (spec.md §4.4).
func vmError(kind, detail string) value.V {
	return value.NewError(kind, value.Str(detail))
}

func errTypeError(detail string) value.V          { return vmError("TypeError", detail) }
func errDivisionByZero() value.V                  { return vmError("DivisionByZero", "division by zero") }
func errStackOverflow() value.V                   { return vmError("StackOverflow", "value stack overflow") }
func errStackUnderflow() value.V                  { return vmError("StackUnderflow", "value stack underflow") }
func errInvalidOpcode(op byte) value.V            { return vmError("InvalidOpcode", string(rune(op))) }
func errUnsupportedOperation(detail string) value.V { return vmError("UnsupportedOperation", detail) }
func errIntegerOverflow(detail string) value.V    { return vmError("IntegerOverflow", detail) }
func errInvalidBinding(name string) value.V       { return vmError("InvalidBinding", name) }
func errBindingFrameOverflow() value.V            { return vmError("BindingFrameOverflow", "binding frame stack overflow") }
