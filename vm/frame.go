// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import "github.com/luxfi/mettatron/value"

// BindingFrame is a name->value map representing pattern variables in
// scope (spec.md §3). Frames form a stack; load_binding searches from
// innermost out.
type BindingFrame struct {
	values map[string]value.V
}

func newBindingFrame() *BindingFrame {
	return &BindingFrame{values: make(map[string]value.V)}
}

func (f *BindingFrame) clone() *BindingFrame {
	cp := make(map[string]value.V, len(f.values))
	for k, v := range f.values {
		cp[k] = v
	}
	return &BindingFrame{values: cp}
}

// bindingStack is the VM's binding-frame stack: unbounded, scoped by the
// dedicated push_binding_frame/pop_binding_frame opcodes.
type bindingStack struct {
	frames []*BindingFrame
}

func (s *bindingStack) push() {
	s.frames = append(s.frames, newBindingFrame())
}

func (s *bindingStack) pop() bool {
	if len(s.frames) == 0 {
		return false
	}
	s.frames = s.frames[:len(s.frames)-1]
	return true
}

func (s *bindingStack) store(name string, v value.V) bool {
	if len(s.frames) == 0 {
		return false
	}
	s.frames[len(s.frames)-1].values[name] = v
	return true
}

// load searches from innermost frame out, matching spec.md §3's
// load_binding semantics.
func (s *bindingStack) load(name string) (value.V, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].values[name]; ok {
			return v, true
		}
	}
	return value.V{}, false
}

// snapshot captures the frame chain for a choice point; frames are
// cloned so a later backtrack restoring this snapshot cannot observe
// mutations made after the snapshot was taken.
func (s *bindingStack) snapshot() []*BindingFrame {
	cp := make([]*BindingFrame, len(s.frames))
	for i, f := range s.frames {
		cp[i] = f.clone()
	}
	return cp
}

func (s *bindingStack) restore(snapshot []*BindingFrame) {
	s.frames = snapshot
}
