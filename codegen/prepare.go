// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"slices"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/fxchain/compile"
	"github.com/gogpu/fxchain/reflection"
)

// prefixes holds the instance and type name prefixes of the vertex and
// fragment stages.
var prefixes = [2][2]string{
	{"vertex", "Vertex"},
	{"fragment", "Fragment"},
}

type slotKind uint8

const (
	slotBuffer slotKind = iota
	slotTexture
	slotSampler
)

type slot struct {
	binding uint32
	kind    slotKind
}

// bindingPlan lists every group 0 slot of the pass after push constants
// have been assigned a slot.
type bindingPlan []slot

func newBindingPlan(refl *reflection.ShaderReflection, ctx *Context) bindingPlan {
	var plan bindingPlan
	if refl.UBO != nil {
		plan = append(plan, slot{refl.UBO.Binding, slotBuffer})
	}
	if ctx.HasPushBinding {
		plan = append(plan, slot{ctx.PushBinding, slotBuffer})
	}
	for _, t := range ctx.Textures {
		plan = append(plan, slot{t.Binding, slotTexture})
	}
	for _, s := range ctx.Samplers {
		plan = append(plan, slot{s.Binding, slotSampler})
	}
	return plan
}

// sideTables records texture and sampler bindings and picks the push
// constant slot for targets without push constants.
func sideTables(c *compile.Compilation, refl *reflection.ShaderReflection, target Target) Context {
	var ctx Context
	for _, key := range refl.SortedTextures() {
		t := refl.Meta.Textures[key]
		ctx.Textures = append(ctx.Textures, Resource{Name: t.Name, Binding: t.Binding})
		if t.HasSampler {
			ctx.Samplers = append(ctx.Samplers, Resource{Name: t.Name + reflection.SamplerSuffix, Binding: t.Sampler})
		}
	}
	byBinding := func(a, b Resource) int { return int(a.Binding) - int(b.Binding) }
	slices.SortFunc(ctx.Textures, byBinding)
	slices.SortFunc(ctx.Samplers, byBinding)

	if refl.PushConstant != nil && (target == HLSL || target == MSL) {
		ctx.PushBinding, ctx.HasPushBinding = refl.FreeBinding(), true
	}
	for i, s := range []*compile.Stage{c.Vertex, c.Fragment} {
		for _, h := range s.Globals {
			switch s.Module.GlobalVariables[h].Space {
			case ir.SpaceUniform:
				ctx.UBO[i] = prefixes[i][0] + "_ubo"
			case ir.SpacePushConstant:
				ctx.Push[i] = prefixes[i][0] + "_push"
			}
		}
	}
	return ctx
}

// prepare returns a copy of the stage module with canonical constant block
// names and target-specific bindings. The source module is not modified.
func prepare(s *compile.Stage, stage int, target Target, ctx *Context) *ir.Module {
	m := *s.Module
	m.Types = slices.Clone(s.Module.Types)
	m.GlobalVariables = slices.Clone(s.Module.GlobalVariables)

	textOnly := target == GLSL || target == GLSLES
	instance, typ := prefixes[stage][0], prefixes[stage][1]
	for _, h := range s.Globals {
		gv := &m.GlobalVariables[h]
		switch gv.Space {
		case ir.SpaceUniform:
			gv.Name = instance + "_ubo"
			m.Types[gv.Type].Name = typ + "UBO"
			if textOnly {
				gv.Binding = nil
			}
		case ir.SpacePushConstant:
			gv.Name = instance + "_push"
			m.Types[gv.Type].Name = typ + "Push"
			gv.Space = ir.SpaceUniform
			gv.Binding = nil
			if ctx.HasPushBinding {
				gv.Binding = &ir.ResourceBinding{Group: 0, Binding: ctx.PushBinding}
			}
		}
	}
	return &m
}
