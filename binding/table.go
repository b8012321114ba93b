// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package binding resolves a pass's reflected semantics into uniform writes
// and texture bindings once per frame.
//
// A Table is built once per pass from its ShaderReflection and walked in a
// fixed order by Apply. Steps whose semantic the pass does not use are
// absent from the table, so Apply never needs to check for them.
package binding

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/fxchain/preset"
	"github.com/gogpu/fxchain/reflection"
	"github.com/gogpu/fxchain/render"
	"github.com/gogpu/fxchain/scaling"
	"github.com/gogpu/fxchain/semantics"
)

// UniformBinder writes uniforms straight into a native API. BindUniform
// returns false to let the value fall back to Storage.
type UniformBinder interface {
	BindUniform(loc UniformLocation, v Value) bool
}

// TextureBinder binds a texture and its sampler state.
type TextureBinder interface {
	BindTexture(b reflection.TextureBinding, tex InputTexture) error
}

// Hooks are the backend callbacks used by Apply. Either may be nil.
type Hooks struct {
	Uniforms UniformBinder
	Textures TextureBinder
}

// InputTexture is a texture with the sampler state it is read with.
type InputTexture struct {
	Texture render.Texture
	Filter  gputypes.FilterMode
	Wrap    gputypes.AddressMode
}

// Size returns the texture size, or zero for a missing texture.
func (t InputTexture) Size() scaling.Size {
	if t.Texture == nil {
		return scaling.Size{}
	}
	return scaling.Size{Width: t.Texture.Width(), Height: t.Texture.Height()}
}

// Frame holds the per-frame values a Table reads.
type Frame struct {
	MVP               [16]float32
	OutputSize        scaling.Size
	FinalViewportSize scaling.Size
	FrameCount        uint32
	FrameDirection    int32
	Rotation          uint32
	TotalSubFrames    uint32
	CurrentSubFrame   uint32

	Original InputTexture
	Source   InputTexture
	// OriginalHistory[j] is the input j frames ago. Index 0 is ignored and
	// Original is used instead.
	OriginalHistory []InputTexture
	PassOutputs     []InputTexture
	PassFeedback    []InputTexture
	LUTs            []InputTexture

	// Parameters holds runtime parameter values. Missing names use the
	// declared default.
	Parameters map[string]float32
}

func (f *Frame) texture(key reflection.TextureKey) InputTexture {
	at := func(list []InputTexture, i int) InputTexture {
		if i < 0 || i >= len(list) {
			return InputTexture{}
		}
		return list[i]
	}
	switch key.Semantics {
	case semantics.Original:
		return f.Original
	case semantics.Source:
		return f.Source
	case semantics.OriginalHistory:
		if key.Index == 0 {
			return f.Original
		}
		return at(f.OriginalHistory, key.Index)
	case semantics.PassOutput:
		return at(f.PassOutputs, key.Index)
	case semantics.PassFeedback:
		return at(f.PassFeedback, key.Index)
	case semantics.User:
		return at(f.LUTs, key.Index)
	}
	return InputTexture{}
}

type stepKind uint8

const (
	stepUniform stepKind = iota
	stepTexture
)

type step struct {
	kind    stepKind
	loc     UniformLocation
	texture reflection.TextureBinding
	key     reflection.TextureKey
	// initial is the declared default of a parameter step.
	initial float32
}

// Table is the fixed binding order of one pass.
type Table struct {
	pass  int
	steps []step
}

// NewTable builds the binding order for refl. params supplies parameter
// defaults; parameters missing from params default to zero.
func NewTable(refl *reflection.ShaderReflection, params []preset.Parameter) *Table {
	t := &Table{pass: refl.Pass}
	meta := &refl.Meta

	for _, u := range semantics.BuiltinUniques {
		if v, ok := meta.Unique[u]; ok {
			t.addUniform(SemanticBinding{Semantic: u}, v, 0)
		}
	}

	t.addTextures(meta, semantics.Original, 1)
	t.addTextures(meta, semantics.Source, 1)
	t.addTextures(meta, semantics.OriginalHistory, refl.MaxIndex(semantics.OriginalHistory)+1)
	t.addTextures(meta, semantics.PassOutput, refl.Pass)
	t.addTextures(meta, semantics.PassFeedback, refl.Pass)

	names := make([]string, 0, len(meta.Parameters))
	for name := range meta.Parameters {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		var initial float32
		if i := slices.IndexFunc(params, func(p preset.Parameter) bool { return p.ID == name }); i >= 0 {
			initial = params[i].Initial
		}
		t.addUniform(ParameterBinding{Name: name}, meta.Parameters[name], initial)
	}

	t.addTextures(meta, semantics.User, refl.MaxIndex(semantics.User)+1)
	return t
}

func (t *Table) addUniform(b UniformBinding, v reflection.VariableMeta, initial float32) {
	t.steps = append(t.steps, step{
		kind:    stepUniform,
		loc:     UniformLocation{Binding: b, Name: v.Name, Offset: v.Offset, Stage: v.Stage},
		initial: initial,
	})
}

// addTextures adds the texture and size steps of indices [0, n).
func (t *Table) addTextures(meta *reflection.BindingMeta, s semantics.TextureSemantic, n int) {
	for i := range n {
		key := semantics.Texture(s, i)
		if tb, ok := meta.Textures[key]; ok {
			t.steps = append(t.steps, step{kind: stepTexture, texture: tb, key: key})
		}
		if v, ok := meta.TextureSizes[key]; ok {
			t.addUniform(TextureSizeBinding{Semantic: key}, v, 0)
		}
	}
}

// Len returns the number of steps.
func (t *Table) Len() int { return len(t.steps) }

// Order returns a description of every step in application order.
func (t *Table) Order() []string {
	out := make([]string, len(t.steps))
	for i, s := range t.steps {
		if s.kind == stepTexture {
			out[i] = s.key.String()
		} else {
			out[i] = s.loc.Binding.String()
		}
	}
	return out
}

// Apply writes every uniform and binds every texture of the table for f.
// Missing textures are skipped.
func (t *Table) Apply(storage *Storage, f *Frame, hooks Hooks) error {
	for _, s := range t.steps {
		if s.kind == stepTexture {
			tex := f.texture(s.key)
			if tex.Texture == nil || hooks.Textures == nil {
				continue
			}
			if err := hooks.Textures.BindTexture(s.texture, tex); err != nil {
				return fmt.Errorf("binding: pass %d %s: %w", t.pass, s.key, err)
			}
			continue
		}

		v := t.value(s, f)
		if hooks.Uniforms != nil && hooks.Uniforms.BindUniform(s.loc, v) {
			continue
		}
		storage.Write(s.loc.Offset, v)
	}
	return nil
}

func (t *Table) value(s step, f *Frame) Value {
	switch b := s.loc.Binding.(type) {
	case ParameterBinding:
		if v, ok := f.Parameters[b.Name]; ok {
			return Float(v)
		}
		return Float(s.initial)
	case TextureSizeBinding:
		size := f.texture(b.Semantic).Size()
		return Size(size.Width, size.Height)
	case SemanticBinding:
		switch b.Semantic {
		case semantics.MVP:
			return Mat4(f.MVP)
		case semantics.Output:
			return Size(f.OutputSize.Width, f.OutputSize.Height)
		case semantics.FinalViewport:
			return Size(f.FinalViewportSize.Width, f.FinalViewportSize.Height)
		case semantics.FrameCount:
			return Uint(f.FrameCount)
		case semantics.FrameDirection:
			return Int(f.FrameDirection)
		case semantics.Rotation:
			return Uint(f.Rotation)
		case semantics.TotalSubFrames:
			return Uint(f.TotalSubFrames)
		case semantics.CurrentSubFrame:
			return Uint(f.CurrentSubFrame)
		}
	}
	return Value{}
}
