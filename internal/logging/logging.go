// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging adapts github.com/luxfi/mettatron/log for the
// engine's tiers — a thin constructor layer, never a reimplementation of
// the logging facade itself.
package logging

import (
	"github.com/luxfi/log"

	mettatronlog "github.com/luxfi/mettatron/log"
)

// NewNoOp returns a logger that discards everything, for library
// embedding and unit tests.
func NewNoOp() log.Logger {
	return mettatronlog.NewNoOpLogger()
}

// NewComponent returns a logger tagged with a component name so log
// lines can be filtered per subsystem. Only the CLI (cmd/mettatron)
// calls it; the interp, vm, jit and exec packages take no logger.
func NewComponent(base log.Logger, name string) log.Logger {
	if base == nil {
		base = NewNoOp()
	}
	return base.With("component", name)
}
