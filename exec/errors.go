// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package exec

import "github.com/cockroachdb/errors"

// System errors (spec.md §7): raised rather than returned as first-class
// V::Error values, because they describe the executor failing to
// complete a directive at all, not a value produced by evaluation.
var (
	ErrCancelled         = errors.New("exec: evaluation cancelled")
	ErrJITBackendFailure = errors.New("exec: jit compilation backend failed")
	ErrStoreCorrupt      = errors.New("exec: rule store snapshot is corrupt")
)
