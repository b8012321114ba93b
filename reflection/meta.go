// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package reflection

import (
	"strings"

	"github.com/gogpu/naga/ir"

	"github.com/gogpu/fxchain/compile"
	"github.com/gogpu/fxchain/semantics"
)

// SamplerSuffix is appended to a texture name to form its sampler name.
const SamplerSuffix = "Sampler"

type resource struct {
	name    string
	binding *ir.ResourceBinding
	typ     ir.TypeHandle
}

type stageResources struct {
	stage    semantics.BindingStage
	module   *ir.Module
	ubo      []resource
	push     []resource
	textures []resource
	samplers []resource
}

func collect(stage semantics.BindingStage, s *compile.Stage) *stageResources {
	r := &stageResources{stage: stage, module: s.Module}
	for _, h := range s.Globals {
		gv := &s.Module.GlobalVariables[h]
		res := resource{name: gv.Name, binding: gv.Binding, typ: gv.Type}
		switch gv.Space {
		case ir.SpaceUniform:
			r.ubo = append(r.ubo, res)
		case ir.SpacePushConstant:
			r.push = append(r.push, res)
		case ir.SpaceHandle:
			switch s.Module.Types[gv.Type].Inner.(type) {
			case ir.ImageType:
				r.textures = append(r.textures, res)
			case ir.SamplerType:
				r.samplers = append(r.samplers, res)
			}
		}
	}
	return r
}

type reflector struct {
	pass int
	sem  *semantics.ShaderSemantics
	out  *ShaderReflection
	// bindings maps each used binding slot to the resource name holding it.
	bindings map[uint32]string
}

// Reflect validates the resource interface of c against sem and returns the
// merged reflection of both stages. The fragment stage is walked first, so
// the Expected side of a mismatch comes from the fragment stage.
func Reflect(pass int, c *compile.Compilation, sem *semantics.ShaderSemantics) (*ShaderReflection, error) {
	r := &reflector{
		pass:     pass,
		sem:      sem,
		out:      &ShaderReflection{Pass: pass, Meta: newBindingMeta()},
		bindings: make(map[uint32]string),
	}

	stages := []*stageResources{
		collect(semantics.StageFragment, c.Fragment),
		collect(semantics.StageVertex, c.Vertex),
	}
	entryPoints := []int{len(c.Fragment.Module.EntryPoints), len(c.Vertex.Module.EntryPoints)}

	for _, s := range stages {
		if n := len(s.ubo); n > 1 {
			return nil, r.fail(InvalidUniformBufferCount, s.stage, "", uint32(n))
		}
		if n := len(s.push); n > 1 {
			return nil, r.fail(InvalidPushBufferCount, s.stage, "", uint32(n))
		}
	}
	for i, s := range stages {
		for _, res := range append(append([]resource(nil), s.ubo...), s.textures...) {
			if res.binding != nil && res.binding.Group != 0 {
				return nil, r.fail(InvalidDescriptorSet, s.stage, res.name, res.binding.Group)
			}
		}
		for _, res := range s.samplers {
			if res.binding != nil && res.binding.Group != 0 {
				return nil, r.fail(InvalidDescriptorSet, s.stage, res.name, res.binding.Group)
			}
		}
		if entryPoints[i] != 1 {
			return nil, r.fail(InvalidEntryPointCount, s.stage, "", uint32(entryPoints[i]))
		}
	}

	for _, s := range stages {
		if len(s.ubo) == 1 {
			if err := r.reflectUBO(s, s.ubo[0]); err != nil {
				return nil, err
			}
		}
		if len(s.push) == 1 {
			if err := r.reflectPush(s, s.push[0]); err != nil {
				return nil, err
			}
		}
	}
	for _, s := range stages {
		if err := r.reflectTextures(s); err != nil {
			return nil, err
		}
	}
	if err := r.out.CheckCausality(); err != nil {
		return nil, err
	}
	return r.out, nil
}

func (r *reflector) fail(kind ErrorKind, stage semantics.BindingStage, name string, received uint32) error {
	return &Error{Kind: kind, Pass: r.pass, Stage: stage, Name: name, Received: received}
}

func (r *reflector) claim(stage semantics.BindingStage, name string, binding uint32) error {
	if owner, ok := r.bindings[binding]; ok && owner != name {
		return r.fail(BindingInUse, stage, name, binding)
	}
	r.bindings[binding] = name
	return nil
}

func (r *reflector) reflectUBO(s *stageResources, res resource) error {
	st, ok := s.module.Types[res.typ].Inner.(ir.StructType)
	if !ok {
		return r.fail(InvalidTypeForSemantic, s.stage, res.name, 0)
	}
	var binding uint32
	if res.binding != nil {
		binding = res.binding.Binding
	}
	if ubo := r.out.UBO; ubo != nil {
		if ubo.Binding != binding {
			return &Error{Kind: MismatchedUniformBuffer, Pass: r.pass, Stage: s.stage, Name: res.name, Block: BlockUBO, Expected: ubo.Binding, Received: binding}
		}
		ubo.Size = max(ubo.Size, st.Span)
		ubo.Stage |= s.stage
	} else {
		if err := r.claim(s.stage, uboOwner, binding); err != nil {
			return err
		}
		r.out.UBO = &BufferReflection{Binding: binding, Size: st.Span, Stage: s.stage}
	}
	return r.reflectMembers(s, st, BlockUBO)
}

// uboOwner names the uniform buffer in the binding claim table so both
// stages may share its slot.
const uboOwner = "\x00ubo"

func (r *reflector) reflectPush(s *stageResources, res resource) error {
	st, ok := s.module.Types[res.typ].Inner.(ir.StructType)
	if !ok {
		return r.fail(InvalidTypeForSemantic, s.stage, res.name, 0)
	}
	if pcb := r.out.PushConstant; pcb != nil {
		pcb.Size = max(pcb.Size, st.Span)
		pcb.Stage |= s.stage
	} else {
		r.out.PushConstant = &PushReflection{Size: st.Span, Stage: s.stage}
	}
	return r.reflectMembers(s, st, BlockPush)
}

func (r *reflector) reflectMembers(s *stageResources, st ir.StructType, block Block) error {
	for _, m := range st.Members {
		sem, ok := r.sem.Uniform(m.Name)
		if !ok {
			return &Error{Kind: UnknownSemantics, Pass: r.pass, Stage: s.stage, Name: m.Name, Block: block}
		}
		inner := s.module.Types[m.Type].Inner
		if !validType(sem, inner) {
			return &Error{Kind: InvalidTypeForSemantic, Pass: r.pass, Stage: s.stage, Name: m.Name, Block: block}
		}
		size := typeSize(inner)

		var meta VariableMeta
		var exists bool
		switch u := sem.(type) {
		case semantics.Semantic[semantics.UniqueSemantic]:
			if u.Semantics == semantics.FloatParameter {
				meta, exists = r.out.Meta.Parameters[m.Name]
			} else {
				meta, exists = r.out.Meta.Unique[u.Semantics]
			}
		case semantics.Semantic[semantics.TextureSemantic]:
			meta, exists = r.out.Meta.TextureSizes[u]
		}

		if exists {
			if off, in := meta.Offset.Offset(block); in && off != m.Offset {
				return &Error{Kind: MismatchedOffset, Pass: r.pass, Stage: s.stage, Name: m.Name, Block: block, Expected: off, Received: m.Offset}
			}
			if meta.Size != size {
				return &Error{Kind: MismatchedSize, Pass: r.pass, Stage: s.stage, Name: m.Name, Block: block, Expected: meta.Size, Received: size}
			}
		} else {
			meta = VariableMeta{Name: m.Name, Size: size}
		}
		meta.Offset.set(block, m.Offset)
		meta.Stage |= s.stage

		switch u := sem.(type) {
		case semantics.Semantic[semantics.UniqueSemantic]:
			if u.Semantics == semantics.FloatParameter {
				r.out.Meta.Parameters[m.Name] = meta
			} else {
				r.out.Meta.Unique[u.Semantics] = meta
			}
		case semantics.Semantic[semantics.TextureSemantic]:
			r.out.Meta.TextureSizes[u] = meta
		}
	}
	return nil
}

func (r *reflector) reflectTextures(s *stageResources) error {
	textures := make(map[string]TextureKey, len(s.textures))
	for _, res := range s.textures {
		key, ok := r.sem.Texture(res.name)
		if !ok {
			return r.fail(UnknownSemantics, s.stage, res.name, 0)
		}
		img := s.module.Types[res.typ].Inner.(ir.ImageType)
		if img.Dim != ir.Dim2D || img.Arrayed || img.Multisampled || img.Class != ir.ImageClassSampled {
			return r.fail(InvalidTypeForSemantic, s.stage, res.name, 0)
		}
		binding := bindingOf(res)
		if tb, ok := r.out.Meta.Textures[key]; ok {
			if tb.Binding != binding {
				return &Error{Kind: MismatchedTextureBinding, Pass: r.pass, Stage: s.stage, Name: res.name, Expected: tb.Binding, Received: binding}
			}
			tb.Stage |= s.stage
			r.out.Meta.Textures[key] = tb
		} else {
			if err := r.claim(s.stage, res.name, binding); err != nil {
				return err
			}
			r.out.Meta.Textures[key] = TextureBinding{Name: res.name, Binding: binding, Stage: s.stage}
		}
		textures[res.name] = key
	}

	for _, res := range s.samplers {
		texName, found := strings.CutSuffix(res.name, SamplerSuffix)
		key, ok := textures[texName]
		if !found || !ok {
			return r.fail(UnknownSemantics, s.stage, res.name, 0)
		}
		binding := bindingOf(res)
		tb := r.out.Meta.Textures[key]
		if tb.HasSampler {
			if tb.Sampler != binding {
				return &Error{Kind: MismatchedTextureBinding, Pass: r.pass, Stage: s.stage, Name: res.name, Expected: tb.Sampler, Received: binding}
			}
			continue
		}
		if err := r.claim(s.stage, res.name, binding); err != nil {
			return err
		}
		tb.Sampler, tb.HasSampler = binding, true
		r.out.Meta.Textures[key] = tb
	}
	return nil
}

func bindingOf(res resource) uint32 {
	if res.binding == nil {
		return 0
	}
	return res.binding.Binding
}

func validType(sem semantics.UniformSemantic, inner ir.TypeInner) bool {
	switch u := sem.(type) {
	case semantics.Semantic[semantics.TextureSemantic]:
		return isVec4f(inner)
	case semantics.Semantic[semantics.UniqueSemantic]:
		switch u.Semantics {
		case semantics.MVP:
			m, ok := inner.(ir.MatrixType)
			return ok && m.Columns == ir.Vec4 && m.Rows == ir.Vec4 && isF32(m.Scalar)
		case semantics.Output, semantics.FinalViewport:
			return isVec4f(inner)
		case semantics.FrameCount, semantics.Rotation, semantics.TotalSubFrames, semantics.CurrentSubFrame:
			s, ok := inner.(ir.ScalarType)
			return ok && s.Kind == ir.ScalarUint && s.Width == 4
		case semantics.FrameDirection:
			s, ok := inner.(ir.ScalarType)
			return ok && s.Kind == ir.ScalarSint && s.Width == 4
		case semantics.FloatParameter:
			s, ok := inner.(ir.ScalarType)
			return ok && isF32(s)
		}
	}
	return false
}

func isF32(s ir.ScalarType) bool { return s.Kind == ir.ScalarFloat && s.Width == 4 }

func isVec4f(inner ir.TypeInner) bool {
	v, ok := inner.(ir.VectorType)
	return ok && v.Size == ir.Vec4 && isF32(v.Scalar)
}

// typeSize returns the byte size of a host-shareable type.
func typeSize(inner ir.TypeInner) uint32 {
	switch t := inner.(type) {
	case ir.ScalarType:
		return uint32(t.Width)
	case ir.VectorType:
		return uint32(t.Size) * uint32(t.Scalar.Width)
	case ir.MatrixType:
		rows := uint32(t.Rows)
		if rows == 3 {
			rows = 4
		}
		return uint32(t.Columns) * rows * uint32(t.Scalar.Width)
	case ir.ArrayType:
		if t.Size.Constant == nil {
			return 0
		}
		return *t.Size.Constant * t.Stride
	case ir.StructType:
		return t.Span
	case ir.AtomicType:
		return uint32(t.Scalar.Width)
	}
	return 0
}
