// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Choice points are the VM's nondeterminism primitive (spec.md §3, §4.4).
// The teacher's `poll` package (removed from this tree — see DESIGN.md)
// modeled exactly this shape for a different domain: a bounded set of
// outstanding alternatives with an interface boundary between "the thing
// being decided" and "the decision process driving it." This package
// keeps that same three-part shape: a bounded stack of saved states, each
// holding its own remaining-alternatives cursor.
package vm

import (
	"errors"

	"github.com/luxfi/mettatron/store"
	"github.com/luxfi/mettatron/value"
)

// alternative is one outstanding branch of a choice point: either a
// plain constant (from `fork`) or a rule match (from `dispatch_rules`).
type alternative struct {
	constant *value.V
	rule     *store.MatchResult
}

// choicePoint is a snapshot sufficient to restart an alternative: stack
// contents, binding-frame chain, bytecode IP, and the remaining
// alternatives (spec.md §3).
type choicePoint struct {
	savedStack  []value.V
	savedFrames []*BindingFrame
	ip          int
	remaining   []alternative
}

const maxChoicePoints = 4096

var errChoicePointOverflow = errors.New("vm: choice point stack overflow")

// choicePointStack is the bounded choice-point stack (spec.md §4.4: "e.g.
// 4k").
type choicePointStack struct {
	points []choicePoint
}

func (s *choicePointStack) push(cp choicePoint) error {
	if len(s.points) >= maxChoicePoints {
		return errChoicePointOverflow
	}
	s.points = append(s.points, cp)
	return nil
}

func (s *choicePointStack) pop() (choicePoint, bool) {
	if len(s.points) == 0 {
		return choicePoint{}, false
	}
	cp := s.points[len(s.points)-1]
	s.points = s.points[:len(s.points)-1]
	return cp, true
}

// cut discards every outstanding choice point (Prolog-style `!`).
func (s *choicePointStack) cut() {
	s.points = nil
}

func (s *choicePointStack) len() int { return len(s.points) }
