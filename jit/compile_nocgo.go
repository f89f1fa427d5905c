// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

//go:build !cgo
// +build !cgo

package jit

import "errors"

// ErrNativeUnsupported is returned by Run on builds without cgo, where
// there is no native backend at all — every chunk bails to the VM.
var ErrNativeUnsupported = errors.New("jit: chunk requires a stage 2 runtime call")

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

// Stage1Program mirrors compile_cgo.go's type so callers building one
// compile identically regardless of the cgo build tag.
type Stage1Program struct {
	Code      []stage1Op
	Constants []uint64
}

// Available reports false: this build has no native backend, so the
// executor should never attempt promotion past Tier 1 (spec.md §4.5
// allows a pure-VM deployment; JIT is an optimization, not a requirement).
func Available() bool { return false }

// Run always fails on a no-cgo build.
func Run(prog Stage1Program) (uint64, error) {
	return 0, ErrNativeUnsupported
}
