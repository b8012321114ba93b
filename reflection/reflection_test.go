// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package reflection

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxchain/compile"
	"github.com/gogpu/fxchain/semantics"
)

const (
	tyF32 ir.TypeHandle = iota
	tyU32
	tyI32
	tyVec4
	tyMat4
	tySampler
	tyTexture
	tyBlock
	tyPush
)

func moduleTypes(block, push []ir.StructMember) []ir.Type {
	f32 := ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	return []ir.Type{
		{Inner: f32},
		{Inner: ir.ScalarType{Kind: ir.ScalarUint, Width: 4}},
		{Inner: ir.ScalarType{Kind: ir.ScalarSint, Width: 4}},
		{Inner: ir.VectorType{Size: ir.Vec4, Scalar: f32}},
		{Inner: ir.MatrixType{Columns: ir.Vec4, Rows: ir.Vec4, Scalar: f32}},
		{Inner: ir.SamplerType{}},
		{Inner: ir.ImageType{Dim: ir.Dim2D, Class: ir.ImageClassSampled}},
		{Name: "Block", Inner: ir.StructType{Members: block, Span: span(block)}},
		{Name: "Push", Inner: ir.StructType{Members: push, Span: span(push)}},
	}
}

func span(members []ir.StructMember) uint32 {
	var end uint32
	types := map[ir.TypeHandle]uint32{tyF32: 4, tyU32: 4, tyI32: 4, tyVec4: 16, tyMat4: 64}
	for _, m := range members {
		end = max(end, m.Offset+types[m.Type])
	}
	return (end + 15) &^ 15
}

func member(name string, typ ir.TypeHandle, offset uint32) ir.StructMember {
	return ir.StructMember{Name: name, Type: typ, Offset: offset}
}

type global struct {
	name    string
	space   ir.AddressSpace
	group   uint32
	binding uint32
	typ     ir.TypeHandle
}

func ubo(binding uint32) global {
	return global{name: "params", space: ir.SpaceUniform, binding: binding, typ: tyBlock}
}

func push() global {
	return global{name: "push", space: ir.SpacePushConstant, typ: tyPush}
}

func texture(name string, binding uint32) global {
	return global{name: name, space: ir.SpaceHandle, binding: binding, typ: tyTexture}
}

func sampler(name string, binding uint32) global {
	return global{name: name, space: ir.SpaceHandle, binding: binding, typ: tySampler}
}

type stageDesc struct {
	block, push []ir.StructMember
	globals     []global
	entryPoints int
}

func buildStage(stage ir.ShaderStage, d stageDesc) *compile.Stage {
	m := &ir.Module{
		Types: moduleTypes(d.block, d.push),
	}
	n := d.entryPoints
	if n == 0 {
		n = 1
	}
	for range n {
		m.EntryPoints = append(m.EntryPoints, ir.EntryPoint{
			Name:     "main",
			Stage:    stage,
			Function: ir.Function{Name: "main"},
		})
	}
	s := &compile.Stage{Stage: stage, Module: m}
	for i, g := range d.globals {
		gv := ir.GlobalVariable{Name: g.name, Space: g.space, Type: g.typ}
		if g.space != ir.SpacePushConstant {
			gv.Binding = &ir.ResourceBinding{Group: g.group, Binding: g.binding}
		}
		m.GlobalVariables = append(m.GlobalVariables, gv)
		s.Globals = append(s.Globals, ir.GlobalVariableHandle(i))
	}
	return s
}

func compilation(pass int, vertex, fragment stageDesc) *compile.Compilation {
	return &compile.Compilation{
		Pass:     pass,
		Name:     "test",
		Vertex:   buildStage(ir.StageVertex, vertex),
		Fragment: buildStage(ir.StageFragment, fragment),
	}
}

func testSemantics(t *testing.T) *semantics.ShaderSemantics {
	t.Helper()
	sem, err := semantics.Build([]semantics.PassInfo{
		{Alias: "First", Parameters: []string{"strength"}},
		{Parameters: []string{"strength"}},
	}, []string{"Noise"})
	require.NoError(t, err)
	return sem
}

func mvpVertex() stageDesc {
	return stageDesc{
		block:   []ir.StructMember{member("MVP", tyMat4, 0)},
		globals: []global{ubo(0)},
	}
}

func sourceFragment() stageDesc {
	return stageDesc{
		block: []ir.StructMember{
			member("SourceSize", tyVec4, 0),
			member("OutputSize", tyVec4, 16),
			member("FrameCount", tyU32, 32),
			member("strength", tyF32, 36),
		},
		globals: []global{ubo(0), texture("Source", 1), sampler("SourceSampler", 2)},
	}
}

func TestReflectMergesStages(t *testing.T) {
	refl, err := Reflect(0, compilation(0, mvpVertex(), sourceFragment()), testSemantics(t))
	require.NoError(t, err)

	require.NotNil(t, refl.UBO)
	assert.Equal(t, uint32(0), refl.UBO.Binding)
	assert.Equal(t, uint32(64), refl.UBO.Size)
	assert.Equal(t, semantics.StageVertex|semantics.StageFragment, refl.UBO.Stage)
	assert.Nil(t, refl.PushConstant)

	mvp := refl.Meta.Unique[semantics.MVP]
	assert.Equal(t, semantics.StageVertex, mvp.Stage)
	assert.Equal(t, uint32(64), mvp.Size)
	assert.Equal(t, MemberOffset{UBO: 0, InUBO: true}, mvp.Offset)

	fc := refl.Meta.Unique[semantics.FrameCount]
	assert.Equal(t, MemberOffset{UBO: 32, InUBO: true}, fc.Offset)
	assert.Equal(t, uint32(4), fc.Size)

	src := semantics.Texture(semantics.Source, 0)
	assert.Equal(t, MemberOffset{UBO: 0, InUBO: true}, refl.Meta.TextureSizes[src].Offset)
	assert.Equal(t, VariableMeta{
		Name:   "strength",
		Offset: MemberOffset{UBO: 36, InUBO: true},
		Size:   4,
		Stage:  semantics.StageFragment,
	}, refl.Meta.Parameters["strength"])
	assert.Equal(t, TextureBinding{
		Name:       "Source",
		Binding:    1,
		Sampler:    2,
		HasSampler: true,
		Stage:      semantics.StageFragment,
	}, refl.Meta.Textures[src])

	assert.Equal(t, []uint32{0, 1, 2}, refl.Bindings())
	assert.Equal(t, uint32(3), refl.FreeBinding())
}

func TestReflectMismatchedOffset(t *testing.T) {
	vertex := stageDesc{
		block:   []ir.StructMember{member("SourceSize", tyVec4, 0)},
		globals: []global{ubo(0)},
	}
	fragment := stageDesc{
		block: []ir.StructMember{
			member("OutputSize", tyVec4, 0),
			member("SourceSize", tyVec4, 16),
		},
		globals: []global{ubo(0)},
	}
	_, err := Reflect(0, compilation(0, vertex, fragment), testSemantics(t))
	require.ErrorIs(t, err, ErrMismatchedOffset)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, MismatchedOffset, rerr.Kind)
	assert.Equal(t, "SourceSize", rerr.Name)
	assert.Equal(t, uint32(16), rerr.Expected)
	assert.Equal(t, uint32(0), rerr.Received)
	assert.Equal(t, semantics.StageVertex, rerr.Stage)
	assert.Equal(t, BlockUBO, rerr.Block)
}

func TestReflectPushAndUBO(t *testing.T) {
	vertex := stageDesc{
		block:   []ir.StructMember{member("MVP", tyMat4, 0), member("FrameCount", tyU32, 64)},
		globals: []global{ubo(0)},
	}
	fragment := stageDesc{
		push:    []ir.StructMember{member("FrameCount", tyU32, 0), member("FrameDirection", tyI32, 4)},
		globals: []global{push()},
	}
	refl, err := Reflect(0, compilation(0, vertex, fragment), testSemantics(t))
	require.NoError(t, err)
	require.NotNil(t, refl.PushConstant)
	assert.Equal(t, uint32(16), refl.PushConstant.Size)
	assert.Equal(t, semantics.StageFragment, refl.PushConstant.Stage)

	fc := refl.Meta.Unique[semantics.FrameCount]
	assert.Equal(t, MemberOffset{UBO: 64, Push: 0, InUBO: true, InPush: true}, fc.Offset)
	assert.Equal(t, semantics.StageVertex|semantics.StageFragment, fc.Stage)
}

func TestReflectErrors(t *testing.T) {
	tests := []struct {
		name     string
		pass     int
		vertex   stageDesc
		fragment stageDesc
		want     error
	}{
		{
			name:   "mismatched ubo binding",
			vertex: mvpVertex(),
			fragment: stageDesc{
				block:   []ir.StructMember{member("OutputSize", tyVec4, 0)},
				globals: []global{ubo(3)},
			},
			want: ErrMismatchedUniformBuffer,
		},
		{
			name:   "unknown member",
			vertex: mvpVertex(),
			fragment: stageDesc{
				block:   []ir.StructMember{member("Bogus", tyF32, 0)},
				globals: []global{ubo(0)},
			},
			want: ErrUnknownSemantics,
		},
		{
			name:   "float frame count",
			vertex: mvpVertex(),
			fragment: stageDesc{
				block:   []ir.StructMember{member("FrameCount", tyF32, 0)},
				globals: []global{ubo(0)},
			},
			want: ErrInvalidTypeForSemantic,
		},
		{
			name:   "scalar size uniform",
			vertex: mvpVertex(),
			fragment: stageDesc{
				block:   []ir.StructMember{member("SourceSize", tyF32, 0)},
				globals: []global{ubo(0)},
			},
			want: ErrInvalidTypeForSemantic,
		},
		{
			name: "two uniform buffers",
			vertex: stageDesc{
				block:   []ir.StructMember{member("MVP", tyMat4, 0)},
				globals: []global{ubo(0), {name: "other", space: ir.SpaceUniform, binding: 1, typ: tyBlock}},
			},
			fragment: sourceFragment(),
			want:     ErrInvalidUniformBufferCount,
		},
		{
			name:     "two push blocks",
			vertex:   stageDesc{push: []ir.StructMember{member("FrameCount", tyU32, 0)}, globals: []global{push(), push()}},
			fragment: sourceFragment(),
			want:     ErrInvalidPushBufferCount,
		},
		{
			name:   "descriptor set",
			vertex: mvpVertex(),
			fragment: stageDesc{
				globals: []global{{name: "Source", space: ir.SpaceHandle, group: 1, binding: 1, typ: tyTexture}},
			},
			want: ErrInvalidDescriptorSet,
		},
		{
			name:     "entry points",
			vertex:   mvpVertex(),
			fragment: stageDesc{entryPoints: 2},
			want:     ErrInvalidEntryPointCount,
		},
		{
			name:     "binding in use",
			vertex:   mvpVertex(),
			fragment: stageDesc{globals: []global{texture("Source", 0)}},
			want:     ErrBindingInUse,
		},
		{
			name:     "texture binding differs",
			vertex:   stageDesc{globals: []global{texture("Original", 1)}},
			fragment: stageDesc{globals: []global{texture("Original", 2)}},
			want:     ErrMismatchedTextureBinding,
		},
		{
			name:     "orphan sampler",
			vertex:   mvpVertex(),
			fragment: stageDesc{globals: []global{sampler("NoiseSampler", 3)}},
			want:     ErrUnknownSemantics,
		},
		{
			name:     "unknown texture",
			vertex:   mvpVertex(),
			fragment: stageDesc{globals: []global{texture("Mystery", 1)}},
			want:     ErrUnknownSemantics,
		},
		{
			name:     "self reference",
			pass:     1,
			vertex:   mvpVertex(),
			fragment: stageDesc{globals: []global{texture("PassOutput1", 1)}},
			want:     ErrNonCausalFilterChain,
		},
		{
			name:   "forward feedback size",
			pass:   0,
			vertex: mvpVertex(),
			fragment: stageDesc{
				block:   []ir.StructMember{member("FirstFeedbackSize", tyVec4, 0)},
				globals: []global{ubo(0)},
			},
			want: ErrNonCausalFilterChain,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reflect(tt.pass, compilation(tt.pass, tt.vertex, tt.fragment), testSemantics(t))
			if !errors.Is(err, tt.want) {
				t.Errorf("Reflect() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReflectCausalReferences(t *testing.T) {
	fragment := stageDesc{
		block: []ir.StructMember{member("FirstSize", tyVec4, 0)},
		globals: []global{
			ubo(0),
			texture("First", 1),
			texture("PassFeedback0", 2),
			texture("Noise", 3),
			sampler("NoiseSampler", 4),
		},
	}
	refl, err := Reflect(1, compilation(1, mvpVertex(), fragment), testSemantics(t))
	require.NoError(t, err)

	out := semantics.Texture(semantics.PassOutput, 0)
	assert.True(t, refl.References(out))
	assert.Equal(t, "FirstSize", refl.Meta.TextureSizes[out].Name)
	assert.Equal(t, 0, refl.MaxIndex(semantics.PassFeedback))
	assert.Equal(t, -1, refl.MaxIndex(semantics.OriginalHistory))
	assert.Equal(t, []TextureKey{
		semantics.Texture(semantics.PassOutput, 0),
		semantics.Texture(semantics.PassFeedback, 0),
		semantics.Texture(semantics.User, 0),
	}, refl.SortedTextures())

	var rerr *Error
	bad := *refl
	bad.Pass = 0
	require.True(t, errors.As(bad.CheckCausality(), &rerr))
	assert.Equal(t, 0, rerr.Target)
	assert.Equal(t, "First", rerr.Name)
}

func TestReflectDeterministic(t *testing.T) {
	sem := testSemantics(t)
	var first []byte
	for i := range 5 {
		refl, err := Reflect(0, compilation(0, mvpVertex(), sourceFragment()), sem)
		require.NoError(t, err)
		b, err := json.Marshal(refl)
		require.NoError(t, err)
		if i == 0 {
			first = b
			continue
		}
		assert.Equal(t, string(first), string(b))
	}
}

func TestLayoutEntries(t *testing.T) {
	refl, err := Reflect(0, compilation(0, mvpVertex(), sourceFragment()), testSemantics(t))
	require.NoError(t, err)

	entries := refl.LayoutEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, uint32(0), entries[0].Binding)
	require.NotNil(t, entries[0].Buffer)
	assert.Equal(t, gputypes.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, uint64(64), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, gputypes.ShaderStageVertex|gputypes.ShaderStageFragment, entries[0].Visibility)

	require.NotNil(t, entries[1].Texture)
	assert.Equal(t, uint32(1), entries[1].Binding)
	assert.Equal(t, gputypes.ShaderStageFragment, entries[1].Visibility)
	require.NotNil(t, entries[2].Sampler)
	assert.Equal(t, uint32(2), entries[2].Binding)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: MismatchedOffset, Pass: 2, Stage: semantics.StageVertex, Name: "SourceSize", Block: BlockUBO, Expected: 16}
	assert.Equal(t,
		`reflection: member offset differs between stages: pass 2 vertex stage "SourceSize" in ubo: expected 16, received 0`,
		err.Error())
}
