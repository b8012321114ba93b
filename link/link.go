// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package link trims the interface between a vertex and a fragment SPIR-V
// module.
//
// A fragment input is unused when no value loaded from it reaches a
// consumer in a function reachable from the fragment entry point. Loads
// that only feed a struct whose member is never extracted do not count.
// Unused inputs that are never referenced are deleted; inputs that are
// still loaded are demoted to Private storage. The vertex outputs feeding
// unused inputs are demoted to Private storage too, so drivers do not
// allocate interpolators for them. Function bodies are left untouched
// except for the result type of access chains rooted at a demoted variable.
package link

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/fxchain/internal/spirv"
)

var (
	// ErrNoEntryPoint is returned when a module lacks the expected entry point.
	ErrNoEntryPoint = errors.New("link: entry point not found")
)

// Policy configures interface trimming.
type Policy struct {
	// KeepIfBound keeps an unused fragment input when the vertex stage
	// writes the same location. The zero value removes unused inputs
	// regardless of the vertex side.
	KeepIfBound bool
}

// Result holds the linked modules.
type Result struct {
	Vertex   []uint32
	Fragment []uint32

	// Removed lists the locations of fragment inputs that were removed.
	Removed []uint32
	// Demoted lists the locations of vertex outputs moved to Private storage.
	Demoted []uint32
}

// Link links a vertex and fragment module pair. The inputs are not modified.
func Link(vertex, fragment []uint32, policy Policy) (*Result, error) {
	vm, err := spirv.Parse(vertex)
	if err != nil {
		return nil, fmt.Errorf("link: vertex: %w", err)
	}
	fm, err := spirv.Parse(fragment)
	if err != nil {
		return nil, fmt.Errorf("link: fragment: %w", err)
	}

	fragEP, ok := findEntryPoint(fm, spirv.ExecutionModelFragment)
	if !ok {
		return nil, fmt.Errorf("%w: fragment", ErrNoEntryPoint)
	}
	if _, ok := findEntryPoint(vm, spirv.ExecutionModelVertex); !ok {
		return nil, fmt.Errorf("%w: vertex", ErrNoEntryPoint)
	}

	inputs := locatedVariables(fm, spirv.StorageClassInput)
	outputs := make(map[uint32]uint32)
	for id, loc := range locatedVariables(vm, spirv.StorageClassOutput) {
		outputs[loc] = id
	}
	flow := newValueFlow(fm, fragEP.Function)

	ids := make([]uint32, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uint32) int { return int(inputs[a]) - int(inputs[b]) })

	res := &Result{}
	remove := make(map[uint32]bool)
	demoteInputs := make(map[uint32]bool)
	demote := make(map[uint32]bool)
	for _, id := range ids {
		if flow.variableLive(id) {
			continue
		}
		loc := inputs[id]
		out, bound := outputs[loc]
		if bound && policy.KeepIfBound {
			continue
		}
		if flow.referenced(id) {
			demoteInputs[id] = true
		} else {
			remove[id] = true
		}
		res.Removed = append(res.Removed, loc)
		if bound {
			demote[out] = true
			res.Demoted = append(res.Demoted, loc)
		}
	}

	if len(remove) > 0 {
		removeVariables(fm, remove)
	}
	if len(demoteInputs) > 0 {
		demoteVariables(fm, demoteInputs)
	}
	if len(demote) > 0 {
		demoteVariables(vm, demote)
	}
	res.Vertex = vm.Words()
	res.Fragment = fm.Words()
	return res, nil
}

func findEntryPoint(m *spirv.Module, model uint32) (spirv.EntryPoint, bool) {
	for _, ep := range m.EntryPoints() {
		if ep.ExecutionModel == model {
			return ep, true
		}
	}
	return spirv.EntryPoint{}, false
}

// locatedVariables returns variables of the storage class that carry a
// Location decoration, keyed by id.
func locatedVariables(m *spirv.Module, storage uint32) map[uint32]uint32 {
	locations := make(map[uint32]uint32)
	for _, inst := range m.Instructions {
		if inst.Opcode == spirv.OpDecorate && len(inst.Operands) >= 3 && inst.Operands[1] == spirv.DecorationLocation {
			locations[inst.Operands[0]] = inst.Operands[2]
		}
	}
	vars := make(map[uint32]uint32)
	for _, inst := range m.Instructions {
		if inst.Opcode != spirv.OpVariable || len(inst.Operands) < 3 || inst.Operands[2] != storage {
			continue
		}
		if loc, ok := locations[inst.Operands[1]]; ok {
			vars[inst.Operands[1]] = loc
		}
	}
	return vars
}

// removeVariables deletes variables together with their debug names,
// decorations and entry point interface slots.
func removeVariables(m *spirv.Module, ids map[uint32]bool) {
	out := m.Instructions[:0:0]
	for _, inst := range m.Instructions {
		switch inst.Opcode {
		case spirv.OpVariable:
			if ids[inst.Operands[1]] {
				continue
			}
		case spirv.OpName, spirv.OpMemberName, spirv.OpDecorate, spirv.OpMemberDecorate:
			if len(inst.Operands) > 0 && ids[inst.Operands[0]] {
				continue
			}
		}
		out = append(out, inst)
	}
	m.Instructions = out
	dropFromInterfaces(m, ids)
}

func dropFromInterfaces(m *spirv.Module, ids map[uint32]bool) {
	for _, ep := range m.EntryPoints() {
		inst := &m.Instructions[ep.Index]
		ops := slices.Clone(inst.Operands[:ep.InterfaceStart])
		for _, id := range inst.Operands[ep.InterfaceStart:] {
			if !ids[id] {
				ops = append(ops, id)
			}
		}
		inst.Operands = ops
	}
}

type pointerKey struct {
	storage uint32
	pointee uint32
}

// demoteVariables moves interface variables to Private storage. Their
// decorations are dropped and their debug names are kept.
func demoteVariables(m *spirv.Module, ids map[uint32]bool) {
	pointees := make(map[uint32]pointerKey)
	pointerIndex := make(map[uint32]int)
	existing := make(map[pointerKey]uint32)
	for i, inst := range m.Instructions {
		if inst.Opcode != spirv.OpTypePointer || len(inst.Operands) < 3 {
			continue
		}
		key := pointerKey{storage: inst.Operands[1], pointee: inst.Operands[2]}
		pointees[inst.Operands[0]] = key
		pointerIndex[inst.Operands[0]] = i
		if _, ok := existing[key]; !ok {
			existing[key] = inst.Operands[0]
		}
	}

	inserts := make(map[int][]spirv.Instruction)
	privatePointer := func(ptr uint32) uint32 {
		key := pointerKey{storage: spirv.StorageClassPrivate, pointee: pointees[ptr].pointee}
		if id, ok := existing[key]; ok {
			return id
		}
		id := m.NewID()
		at := pointerIndex[ptr]
		inserts[at] = append(inserts[at], spirv.Instruction{
			Opcode:   spirv.OpTypePointer,
			Operands: []uint32{id, key.storage, key.pointee},
		})
		existing[key] = id
		return id
	}

	derived := make(map[uint32]bool, len(ids))
	for id := range ids {
		derived[id] = true
	}
	for i := range m.Instructions {
		inst := &m.Instructions[i]
		switch inst.Opcode {
		case spirv.OpVariable:
			if ids[inst.Operands[1]] {
				inst.Operands[0] = privatePointer(inst.Operands[0])
				inst.Operands[2] = spirv.StorageClassPrivate
			}
		case spirv.OpAccessChain, spirv.OpInBoundsAccessChain:
			if len(inst.Operands) >= 3 && derived[inst.Operands[2]] {
				inst.Operands[0] = privatePointer(inst.Operands[0])
				derived[inst.Operands[1]] = true
			}
		}
	}

	out := make([]spirv.Instruction, 0, len(m.Instructions)+len(inserts))
	for i, inst := range m.Instructions {
		if (inst.Opcode == spirv.OpDecorate || inst.Opcode == spirv.OpMemberDecorate) &&
			len(inst.Operands) > 0 && ids[inst.Operands[0]] {
			continue
		}
		out = append(out, inst)
		out = append(out, inserts[i]...)
	}
	m.Instructions = out
	dropFromInterfaces(m, ids)
}
