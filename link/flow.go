// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package link

import (
	"github.com/gogpu/fxchain/internal/spirv"
)

// use is one operand slot that mentions an id.
type use struct {
	inst int
	pos  int
}

// valueFlow indexes the uses of ids inside the functions reachable from an
// entry point. Literal operands are indexed too, which can only make a
// value look more used than it is.
type valueFlow struct {
	m       *spirv.Module
	uses    map[uint32][]use
	structs map[uint32]bool
}

func newValueFlow(m *spirv.Module, entry uint32) *valueFlow {
	f := &valueFlow{
		m:       m,
		uses:    make(map[uint32][]use),
		structs: make(map[uint32]bool),
	}

	type span struct{ start, end int }
	funcs := make(map[uint32]span)
	for i := 0; i < len(m.Instructions); i++ {
		op := m.Instructions[i].Opcode
		if op == spirv.OpTypeStruct {
			if id, ok := spirv.ResultID(m.Instructions[i]); ok {
				f.structs[id] = true
			}
			continue
		}
		if op != spirv.OpFunction {
			continue
		}
		id, _ := spirv.ResultID(m.Instructions[i])
		j := i
		for j < len(m.Instructions) && m.Instructions[j].Opcode != spirv.OpFunctionEnd {
			j++
		}
		funcs[id] = span{i, j}
		i = j
	}

	visited := map[uint32]bool{entry: true}
	queue := []uint32{entry}
	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]
		s, ok := funcs[fn]
		if !ok {
			continue
		}
		for i := s.start; i < s.end; i++ {
			inst := m.Instructions[i]
			first := 0
			if _, ok := spirv.ResultID(inst); ok {
				first = 2
			}
			for pos := first; pos < len(inst.Operands); pos++ {
				id := inst.Operands[pos]
				f.uses[id] = append(f.uses[id], use{inst: i, pos: pos})
			}
			if inst.Opcode == spirv.OpFunctionCall && len(inst.Operands) >= 3 {
				callee := inst.Operands[2]
				if !visited[callee] {
					visited[callee] = true
					queue = append(queue, callee)
				}
			}
		}
	}
	return f
}

// referenced reports whether any reachable instruction mentions id.
func (f *valueFlow) referenced(id uint32) bool {
	return len(f.uses[id]) > 0
}

// variableLive reports whether a value loaded from the variable can reach
// a consumer. Any use other than a plain load counts as live.
func (f *valueFlow) variableLive(id uint32) bool {
	for _, u := range f.uses[id] {
		inst := f.m.Instructions[u.inst]
		if inst.Opcode != spirv.OpLoad || u.pos != 2 {
			return true
		}
		if f.valueLive(inst.Operands[1], nil) {
			return true
		}
	}
	return false
}

// valueLive reports whether the part of value id at the composite index
// path can reach a consumer. An empty path means the whole value.
func (f *valueFlow) valueLive(id uint32, path []uint32) bool {
	for _, u := range f.uses[id] {
		inst := f.m.Instructions[u.inst]
		ops := inst.Operands
		switch inst.Opcode {
		case spirv.OpCompositeConstruct:
			if !f.structs[ops[0]] {
				return true
			}
			member := uint32(u.pos - 2)
			if f.valueLive(ops[1], append([]uint32{member}, path...)) {
				return true
			}
		case spirv.OpCompositeExtract:
			if u.pos != 2 {
				return true
			}
			indices := ops[3:]
			switch {
			case hasPrefix(path, indices):
				if f.valueLive(ops[1], path[len(indices):]) {
					return true
				}
			case hasPrefix(indices, path):
				return true
			}
		case spirv.OpCompositeInsert:
			if u.pos != 3 {
				return true
			}
			if hasPrefix(path, ops[4:]) {
				continue
			}
			if f.valueLive(ops[1], path) {
				return true
			}
		case spirv.OpCopyObject:
			if f.valueLive(ops[1], path) {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// hasPrefix reports whether prefix is a prefix of s.
func hasPrefix(s, prefix []uint32) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i, v := range prefix {
		if s[i] != v {
			return false
		}
	}
	return true
}
