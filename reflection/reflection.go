// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package reflection extracts and validates the uniform and texture
// interface of a compiled vertex and fragment pair.
//
// Reflection resolves every uniform member and texture against
// semantics.ShaderSemantics, checks that both stages agree on offsets, sizes
// and bindings, and produces a ShaderReflection that the binding engine
// consumes at frame time.
package reflection

import (
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/fxchain/semantics"
)

// MemberOffset is the byte offset of a uniform in the uniform buffer, the
// push constant block, or both.
type MemberOffset struct {
	UBO    uint32 `json:"ubo"`
	Push   uint32 `json:"push"`
	InUBO  bool   `json:"in_ubo"`
	InPush bool   `json:"in_push"`
}

// Offset returns the offset within block.
func (o MemberOffset) Offset(b Block) (uint32, bool) {
	switch b {
	case BlockUBO:
		return o.UBO, o.InUBO
	case BlockPush:
		return o.Push, o.InPush
	}
	return 0, false
}

func (o *MemberOffset) set(b Block, off uint32) {
	switch b {
	case BlockUBO:
		o.UBO, o.InUBO = off, true
	case BlockPush:
		o.Push, o.InPush = off, true
	}
}

// VariableMeta describes one reflected uniform.
type VariableMeta struct {
	Name   string                 `json:"name"`
	Offset MemberOffset           `json:"offset"`
	Size   uint32                 `json:"size"`
	Stage  semantics.BindingStage `json:"stage"`
}

// TextureBinding describes one reflected texture and its sampler.
type TextureBinding struct {
	Name       string                 `json:"name"`
	Binding    uint32                 `json:"binding"`
	Sampler    uint32                 `json:"sampler"`
	HasSampler bool                   `json:"has_sampler"`
	Stage      semantics.BindingStage `json:"stage"`
}

// TextureKey identifies a texture semantic.
type TextureKey = semantics.Semantic[semantics.TextureSemantic]

// BindingMeta holds every reflected semantic of a pass.
type BindingMeta struct {
	Parameters   map[string]VariableMeta                   `json:"parameters"`
	Unique       map[semantics.UniqueSemantic]VariableMeta `json:"unique"`
	TextureSizes map[TextureKey]VariableMeta               `json:"texture_sizes"`
	Textures     map[TextureKey]TextureBinding             `json:"textures"`
}

func newBindingMeta() BindingMeta {
	return BindingMeta{
		Parameters:   make(map[string]VariableMeta),
		Unique:       make(map[semantics.UniqueSemantic]VariableMeta),
		TextureSizes: make(map[TextureKey]VariableMeta),
		Textures:     make(map[TextureKey]TextureBinding),
	}
}

// BufferReflection describes the uniform buffer of a pass.
type BufferReflection struct {
	Binding uint32                 `json:"binding"`
	Size    uint32                 `json:"size"`
	Stage   semantics.BindingStage `json:"stage"`
}

// PushReflection describes the push constant block of a pass.
type PushReflection struct {
	Size  uint32                 `json:"size"`
	Stage semantics.BindingStage `json:"stage"`
}

// ShaderReflection is the validated interface of one pass. It is immutable
// after Reflect returns.
type ShaderReflection struct {
	Pass         int               `json:"pass"`
	UBO          *BufferReflection `json:"ubo,omitempty"`
	PushConstant *PushReflection   `json:"push_constant,omitempty"`
	Meta         BindingMeta       `json:"meta"`
}

// MaxIndex returns the highest index referenced for a texture semantic,
// counting both textures and size uniforms, or -1 if none.
func (r *ShaderReflection) MaxIndex(s semantics.TextureSemantic) int {
	idx := -1
	for k := range r.Meta.Textures {
		if k.Semantics == s {
			idx = max(idx, k.Index)
		}
	}
	for k := range r.Meta.TextureSizes {
		if k.Semantics == s {
			idx = max(idx, k.Index)
		}
	}
	return idx
}

// References reports whether the pass uses the texture or size of t.
func (r *ShaderReflection) References(t TextureKey) bool {
	_, tex := r.Meta.Textures[t]
	_, size := r.Meta.TextureSizes[t]
	return tex || size
}

// Bindings returns every binding slot used by the pass in ascending order.
func (r *ShaderReflection) Bindings() []uint32 {
	var out []uint32
	if r.UBO != nil {
		out = append(out, r.UBO.Binding)
	}
	for _, t := range r.Meta.Textures {
		out = append(out, t.Binding)
		if t.HasSampler {
			out = append(out, t.Sampler)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// FreeBinding returns the first binding slot above every slot in use.
func (r *ShaderReflection) FreeBinding() uint32 {
	b := r.Bindings()
	if len(b) == 0 {
		return 0
	}
	return b[len(b)-1] + 1
}

// LayoutEntries returns bind group layout entries for the uniform buffer,
// textures and samplers, sorted by binding.
func (r *ShaderReflection) LayoutEntries() []gputypes.BindGroupLayoutEntry {
	var entries []gputypes.BindGroupLayoutEntry
	if r.UBO != nil {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    r.UBO.Binding,
			Visibility: r.UBO.Stage.Visibility(),
			Buffer: &gputypes.BufferBindingLayout{
				Type:           gputypes.BufferBindingTypeUniform,
				MinBindingSize: uint64(r.UBO.Size),
			},
		})
	}
	for _, t := range r.Meta.Textures {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    t.Binding,
			Visibility: t.Stage.Visibility(),
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
		if t.HasSampler {
			entries = append(entries, gputypes.BindGroupLayoutEntry{
				Binding:    t.Sampler,
				Visibility: t.Stage.Visibility(),
				Sampler: &gputypes.SamplerBindingLayout{
					Type: gputypes.SamplerBindingTypeFiltering,
				},
			})
		}
	}
	slices.SortFunc(entries, func(a, b gputypes.BindGroupLayoutEntry) int {
		return int(a.Binding) - int(b.Binding)
	})
	return entries
}

// CheckCausality rejects references to the output or feedback of the
// current or a later pass.
func (r *ShaderReflection) CheckCausality() error {
	keys := make([]TextureKey, 0, len(r.Meta.Textures)+len(r.Meta.TextureSizes))
	for k := range r.Meta.Textures {
		keys = append(keys, k)
	}
	for k := range r.Meta.TextureSizes {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareTextureKeys)
	for _, k := range keys {
		if k.Semantics != semantics.PassOutput && k.Semantics != semantics.PassFeedback {
			continue
		}
		if k.Index >= r.Pass {
			name := k.Semantics.TextureName(k.Index)
			if t, ok := r.Meta.Textures[k]; ok {
				name = t.Name
			} else if v, ok := r.Meta.TextureSizes[k]; ok {
				name = v.Name
			}
			return &Error{Kind: NonCausalFilterChain, Pass: r.Pass, Name: name, Target: k.Index}
		}
	}
	return nil
}

func compareTextureKeys(a, b TextureKey) int {
	if a.Semantics != b.Semantics {
		return int(a.Semantics) - int(b.Semantics)
	}
	return a.Index - b.Index
}

// SortedTextures returns the texture keys of the pass in semantic order.
func (r *ShaderReflection) SortedTextures() []TextureKey {
	keys := make([]TextureKey, 0, len(r.Meta.Textures))
	for k := range r.Meta.Textures {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareTextureKeys)
	return keys
}
