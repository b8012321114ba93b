// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package codegen emits backend shader programs for a linked and reflected
// pass.
//
// Every text target is generated from a private copy of the pass IR in
// which constant blocks carry canonical names (vertex_ubo, fragment_ubo,
// vertex_push, fragment_push) and push constants are lowered to uniform
// blocks for targets that lack them. Fragment struct inputs removed by the
// linker are dropped from that copy as well. The SPIRV target returns the
// linked binaries unchanged.
//
// HLSL samplers are read from a sampler heap through a per-group index
// buffer. Sampler i of a pass, in binding order, reads slot i of the index
// buffer; the heap and the index buffer registers are recorded in
// Context.Registers next to the texture and constant buffer registers.
package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/fxchain/compile"
	"github.com/gogpu/fxchain/link"
	"github.com/gogpu/fxchain/reflection"
)

var (
	// ErrUnknownTarget is returned for a Target outside the supported set.
	ErrUnknownTarget = errors.New("codegen: unknown target")

	// ErrBindingRange is returned when a binding does not fit a target's
	// slot range.
	ErrBindingRange = errors.New("codegen: binding out of range")
)

// Target is a shader dialect.
type Target uint8

const (
	SPIRV Target = iota
	GLSL
	GLSLES
	HLSL
	MSL
)

var targetNames = [...]string{
	SPIRV:  "spirv",
	GLSL:   "glsl",
	GLSLES: "glsl-es",
	HLSL:   "hlsl",
	MSL:    "msl",
}

// Targets returns every supported target.
func Targets() []Target {
	return []Target{SPIRV, GLSL, GLSLES, HLSL, MSL}
}

func (t Target) String() string {
	if int(t) < len(targetNames) {
		return targetNames[t]
	}
	return fmt.Sprintf("target(%d)", t)
}

// MarshalText implements encoding.TextMarshaler.
func (t Target) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// ParseTarget parses a target name as printed by String.
func ParseTarget(s string) (Target, error) {
	for t, name := range targetNames {
		if strings.EqualFold(s, name) {
			return Target(t), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTarget, s)
}

// Extension returns the conventional file extension for the target.
func (t Target) Extension() string {
	switch t {
	case SPIRV:
		return ".spv"
	case GLSL, GLSLES:
		return ".glsl"
	case HLSL:
		return ".hlsl"
	case MSL:
		return ".metal"
	}
	return ""
}

// Resource is a named binding recorded from the original shader.
type Resource struct {
	Name    string `json:"name"`
	Binding uint32 `json:"binding"`
}

// Context carries the binding decisions made while generating a program.
type Context struct {
	// UBO holds the canonical uniform block names of the vertex and
	// fragment stages, empty when a stage has none.
	UBO [2]string `json:"ubo"`
	// Push holds the canonical push constant block names.
	Push [2]string `json:"push"`
	// PushBinding is the slot the push constant block was moved to. It is
	// valid when HasPushBinding is set.
	PushBinding    uint32 `json:"push_binding"`
	HasPushBinding bool   `json:"has_push_binding"`
	// Textures and Samplers list the original bindings, in binding order.
	Textures []Resource `json:"textures"`
	Samplers []Resource `json:"samplers"`
	// Registers maps HLSL resource names to register declarations.
	Registers map[string]string `json:"registers,omitempty"`
	// EntryPoints holds the vertex and fragment entry point names.
	EntryPoints [2]string `json:"entry_points"`
}

// Output is the generated program of one pass.
type Output struct {
	Target        Target   `json:"target"`
	Vertex        string   `json:"vertex,omitempty"`
	Fragment      string   `json:"fragment,omitempty"`
	VertexSPIRV   []uint32 `json:"-"`
	FragmentSPIRV []uint32 `json:"-"`
	Context       Context  `json:"context"`
}

// Error reports a generation failure.
type Error struct {
	Pass   int
	Target Target
	Stage  ir.ShaderStage
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codegen: pass %d %s %s stage: %v", e.Pass, e.Target, compile.StageName(e.Stage), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Compile generates the program of c for target. linked supplies the
// binaries for the SPIRV target and the fragment inputs to drop for text
// targets; refl supplies binding decisions.
func Compile(c *compile.Compilation, linked *link.Result, refl *reflection.ShaderReflection, target Target) (*Output, error) {
	out := &Output{Target: target}
	if target == SPIRV {
		out.VertexSPIRV = linked.Vertex
		out.FragmentSPIRV = linked.Fragment
		out.Context = sideTables(c, refl, target)
		out.Context.EntryPoints = entryPoints(c)
		return out, nil
	}

	e, err := emitterFor(target)
	if err != nil {
		return nil, err
	}
	out.Context = sideTables(c, refl, target)
	out.Context.EntryPoints = entryPoints(c)
	plan := newBindingPlan(refl, &out.Context)

	stages := []*compile.Stage{c.Vertex, c.Fragment}
	var modules [2]*ir.Module
	for i, s := range stages {
		if len(s.Module.EntryPoints) != 1 {
			return nil, &Error{Pass: c.Pass, Target: target, Stage: s.Stage, Err: reflection.ErrInvalidEntryPointCount}
		}
		modules[i] = prepare(s, i, target, &out.Context)
	}
	trimInputs(modules[1], linked.Removed)

	dst := [2]*string{&out.Vertex, &out.Fragment}
	for i, s := range stages {
		var fragment *ir.Module
		if i == 0 {
			fragment = modules[1]
		}
		src, err := e.emit(modules[i], modules[i].EntryPoints[0], fragment, plan, &out.Context)
		if err != nil {
			return nil, &Error{Pass: c.Pass, Target: target, Stage: s.Stage, Err: err}
		}
		*dst[i] = src
	}
	return out, nil
}

func entryPoints(c *compile.Compilation) [2]string {
	var names [2]string
	for i, s := range []*compile.Stage{c.Vertex, c.Fragment} {
		if ep, ok := s.EntryPoint(); ok {
			names[i] = ep.Name
		}
	}
	return names
}
