// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package interp

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/mettatron/value"
)

// errStackOverflow is a system error (spec.md §7): it aborts the current
// directive rather than being surfaced as a V::Error result, since an
// interpreter that has recursed this deep cannot trust its own stack to
// construct a well-formed error value.
var errStackOverflow = errors.New("interp: stack overflow")

// runtimeError constructs a first-class V::Error result — spec.md §4.3:
// "an Error value is a first-class result; it does not unwind."
func runtimeError(kind, detail string) value.V {
	return value.NewError(kind, value.Str(detail))
}

func typeError(detail string) value.V { return runtimeError("TypeError", detail) }

func divisionByZero() value.V { return runtimeError("DivisionByZero", "division by zero") }

func unboundVariable(name string) value.V { return runtimeError("UnboundVariable", name) }

func arityError(form string, want, got int) value.V {
	return runtimeError("ArityError", fmt.Sprintf("%s: want %d args, got %d", form, want, got))
}

func integerOverflow(detail string) value.V { return runtimeError("IntegerOverflow", detail) }
