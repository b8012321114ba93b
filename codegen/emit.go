// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"fmt"
	"maps"
	"math"
	"strings"

	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
)

// emitter generates source for one stage of a prepared module. fragment is
// the prepared fragment module when m holds the vertex stage, nil otherwise.
type emitter interface {
	emit(m *ir.Module, ep ir.EntryPoint, fragment *ir.Module, plan bindingPlan, ctx *Context) (string, error)
}

func emitterFor(t Target) (emitter, error) {
	switch t {
	case GLSL:
		return glslEmitter{version: glsl.Version330}, nil
	case GLSLES:
		return glslEmitter{version: glsl.VersionES300}, nil
	case HLSL:
		return hlslEmitter{}, nil
	case MSL:
		return mslEmitter{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, t)
}

type glslEmitter struct {
	version glsl.Version
}

func (e glslEmitter) emit(m *ir.Module, ep ir.EntryPoint, _ *ir.Module, _ bindingPlan, _ *Context) (string, error) {
	src, _, err := glsl.Compile(m, glsl.Options{
		LangVersion:        e.version,
		EntryPoint:         ep.Name,
		ForceHighPrecision: true,
	})
	return src, err
}

// HLSL sampler heap names and registers.
const (
	hlslSamplerHeap        = "nagaSamplerHeap"
	hlslSamplerIndexBuffer = "nagaGroup0SamplerIndexArray"
)

var (
	hlslSamplerHeapTarget = hlsl.BindTarget{Space: 0, Register: 0}
	hlslCompareHeapTarget = hlsl.BindTarget{Space: 1, Register: 0}
	hlslIndexBufferTarget = hlsl.BindTarget{Space: 1, Register: 0}
)

type hlslEmitter struct{}

func (hlslEmitter) emit(m *ir.Module, ep ir.EntryPoint, fragment *ir.Module, plan bindingPlan, ctx *Context) (string, error) {
	opts := hlsl.DefaultOptions()
	opts.EntryPoint = ep.Name
	opts.SamplerHeapTargets = hlsl.SamplerHeapBindTargets{
		StandardSamplers:   hlslSamplerHeapTarget,
		ComparisonSamplers: hlslCompareHeapTarget,
	}
	opts.SamplerBufferBindingMap = map[uint32]hlsl.BindTarget{0: hlslIndexBufferTarget}
	samplers := 0
	for _, s := range plan {
		target := hlsl.BindTarget{Space: 0, Register: s.binding}
		if s.kind == slotSampler {
			target.Register = uint32(samplers)
			samplers++
		}
		opts.BindingMap[hlsl.ResourceBinding{Group: 0, Binding: s.binding}] = target
	}
	if fragment != nil && len(fragment.EntryPoints) == 1 {
		opts.FragmentEntryPoint = &hlsl.FragmentEntryPoint{
			Module:   fragment,
			Function: &fragment.EntryPoints[0].Function,
		}
	}

	src, info, err := hlsl.Compile(m, opts)
	if err != nil {
		return "", err
	}
	if ctx.Registers == nil {
		ctx.Registers = make(map[string]string)
	}
	if info != nil {
		maps.Copy(ctx.Registers, info.RegisterBindings)
	}
	if strings.Contains(src, hlslSamplerIndexBuffer) {
		ctx.Registers[hlslSamplerHeap] = hlslRegister("s", hlslSamplerHeapTarget)
		ctx.Registers[hlslSamplerIndexBuffer] = hlslRegister("t", hlslIndexBufferTarget)
		for i, s := range ctx.Samplers {
			ctx.Registers[s.Name] = fmt.Sprintf("%s[%s[%d]]", hlslSamplerHeap, hlslSamplerIndexBuffer, i)
		}
	}
	return src, nil
}

// hlslRegister formats a register declaration the way the HLSL writer does.
func hlslRegister(class string, t hlsl.BindTarget) string {
	if t.Space == 0 {
		return fmt.Sprintf("register(%s%d)", class, t.Register)
	}
	return fmt.Sprintf("register(%s%d, space%d)", class, t.Register, t.Space)
}

type mslEmitter struct{}

func (mslEmitter) emit(m *ir.Module, ep ir.EntryPoint, _ *ir.Module, plan bindingPlan, _ *Context) (string, error) {
	resources := make(map[ir.ResourceBinding]msl.BindTarget, len(plan))
	for _, s := range plan {
		if s.binding > math.MaxUint8 {
			return "", fmt.Errorf("%w: %d", ErrBindingRange, s.binding)
		}
		idx := uint8(s.binding)
		key := ir.ResourceBinding{Group: 0, Binding: s.binding}
		t := resources[key]
		switch s.kind {
		case slotBuffer:
			t.Buffer = &idx
		case slotTexture:
			t.Texture = &idx
		case slotSampler:
			t.Sampler = &msl.BindSamplerTarget{Slot: idx}
		}
		resources[key] = t
	}

	opts := msl.DefaultOptions()
	opts.LangVersion = msl.Version2_1
	opts.PerEntryPointMap = map[string]msl.EntryPointResources{
		ep.Name: {Resources: resources},
	}
	src, _, err := msl.CompileWithPipeline(m, opts, msl.PipelineOptions{
		EntryPoint: &msl.EntryPointSelector{Stage: ep.Stage, Name: ep.Name},
	})
	return src, err
}
