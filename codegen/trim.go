// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"slices"

	"github.com/gogpu/naga/ir"
)

// trimInputs drops the members of the fragment entry point's struct
// arguments whose location is listed in removed, and renumbers every member
// access and constructor of those structs. The module is left unchanged
// when a dropped member is read or a member access cannot be typed.
//
// m must be a prepared copy: Types is owned by m, while EntryPoints and
// Functions are cloned here before they are written.
func trimInputs(m *ir.Module, removed []uint32) {
	if len(removed) == 0 || len(m.EntryPoints) != 1 {
		return
	}
	drop := make(map[uint32]bool, len(removed))
	for _, loc := range removed {
		drop[loc] = true
	}

	// remaps maps a struct type to the new index of each member, -1 when
	// the member is dropped.
	remaps := make(map[ir.TypeHandle][]int)
	for _, arg := range m.EntryPoints[0].Function.Arguments {
		if arg.Binding != nil || int(arg.Type) >= len(m.Types) {
			continue
		}
		st, ok := m.Types[arg.Type].Inner.(ir.StructType)
		if !ok {
			continue
		}
		idx := make([]int, len(st.Members))
		next, dropped := 0, false
		for i, member := range st.Members {
			if loc, ok := location(member.Binding); ok && drop[loc] {
				idx[i] = -1
				dropped = true
				continue
			}
			idx[i] = next
			next++
		}
		if dropped {
			remaps[arg.Type] = idx
		}
	}
	if len(remaps) == 0 {
		return
	}
	for _, e := range m.GlobalExpressions {
		if c, ok := e.Kind.(ir.ExprCompose); ok && remaps[c.Type] != nil {
			return
		}
	}

	entry, ok := remapMembers(m, &m.EntryPoints[0].Function, remaps)
	if !ok {
		return
	}
	funcs := make([][]ir.Expression, len(m.Functions))
	for i := range m.Functions {
		if funcs[i], ok = remapMembers(m, &m.Functions[i], remaps); !ok {
			return
		}
	}

	m.EntryPoints = slices.Clone(m.EntryPoints)
	m.EntryPoints[0].Function.Expressions = entry
	m.Functions = slices.Clone(m.Functions)
	for i := range m.Functions {
		m.Functions[i].Expressions = funcs[i]
	}
	for th, idx := range remaps {
		st := m.Types[th].Inner.(ir.StructType)
		members := make([]ir.StructMember, 0, len(st.Members))
		for i, member := range st.Members {
			if idx[i] >= 0 {
				members = append(members, member)
			}
		}
		st.Members = members
		m.Types[th].Inner = st
	}
}

// remapMembers returns fn's expressions with member indices and
// constructor components of the remapped structs rewritten. It reports
// false when a dropped member is accessed or an access base has no type.
func remapMembers(m *ir.Module, fn *ir.Function, remaps map[ir.TypeHandle][]int) ([]ir.Expression, bool) {
	out := slices.Clone(fn.Expressions)
	for h, e := range fn.Expressions {
		switch k := e.Kind.(type) {
		case ir.ExprAccessIndex:
			th, ok := baseStruct(m, fn, k.Base)
			if !ok {
				return nil, false
			}
			idx := remaps[th]
			if idx == nil {
				continue
			}
			if int(k.Index) >= len(idx) || idx[k.Index] < 0 {
				return nil, false
			}
			k.Index = uint32(idx[k.Index])
			out[h].Kind = k
		case ir.ExprCompose:
			idx := remaps[k.Type]
			if idx == nil {
				continue
			}
			if len(k.Components) != len(idx) {
				return nil, false
			}
			components := make([]ir.ExpressionHandle, 0, len(k.Components))
			for i, c := range k.Components {
				if idx[i] >= 0 {
					components = append(components, c)
				}
			}
			k.Components = components
			out[h].Kind = k
		}
	}
	return out, true
}

// baseStruct resolves the type handle a member access applies to, looking
// through one level of pointer. ok is false when the base cannot be typed;
// a base that is not a struct yields a handle with no remap.
func baseStruct(m *ir.Module, fn *ir.Function, base ir.ExpressionHandle) (ir.TypeHandle, bool) {
	var res ir.TypeResolution
	if int(base) < len(fn.ExpressionTypes) {
		res = fn.ExpressionTypes[base]
	}
	if res.Handle == nil && res.Value == nil {
		var err error
		if res, err = ir.ResolveExpressionType(m, fn, base); err != nil {
			return 0, false
		}
	}

	if res.Handle != nil {
		h := *res.Handle
		if int(h) >= len(m.Types) {
			return 0, false
		}
		if p, ok := m.Types[h].Inner.(ir.PointerType); ok {
			return p.Base, true
		}
		return h, true
	}
	switch v := res.Value.(type) {
	case ir.PointerType:
		return v.Base, true
	case nil:
		return 0, false
	}
	return noType, true
}

// noType is a handle no module type uses.
const noType = ^ir.TypeHandle(0)

func location(b *ir.Binding) (uint32, bool) {
	if b == nil {
		return 0, false
	}
	lb, ok := (*b).(ir.LocationBinding)
	return lb.Location, ok
}
