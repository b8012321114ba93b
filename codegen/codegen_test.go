// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package codegen

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/naga/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxchain/compile"
	"github.com/gogpu/fxchain/internal/shadertest"
	"github.com/gogpu/fxchain/link"
	"github.com/gogpu/fxchain/reflection"
	"github.com/gogpu/fxchain/semantics"
)

func passthrough(t *testing.T) (*compile.Compilation, *link.Result, *reflection.ShaderReflection) {
	t.Helper()
	c, err := compile.Compile(0, shadertest.Source("pass", shadertest.Passthrough, shadertest.StrengthParameter), compile.Options{})
	require.NoError(t, err)
	linked, err := link.Link(c.Vertex.SPIRV, c.Fragment.SPIRV, link.Policy{})
	require.NoError(t, err)
	sem, err := semantics.Build([]semantics.PassInfo{{Parameters: []string{"strength"}}}, nil)
	require.NoError(t, err)
	refl, err := reflection.Reflect(0, c, sem)
	require.NoError(t, err)
	return c, linked, refl
}

func TestCompileGLSL(t *testing.T) {
	c, linked, refl := passthrough(t)
	before := c.Vertex.Module.GlobalVariables[0].Name

	out, err := Compile(c, linked, refl, GLSL)
	require.NoError(t, err)
	assert.Equal(t, GLSL, out.Target)
	assert.Contains(t, out.Vertex, "vertex_ubo")
	assert.Contains(t, out.Vertex, "VertexUBO")
	assert.Contains(t, out.Fragment, "fragment_ubo")
	assert.NotContains(t, out.Vertex, "layout(binding = 0) uniform")
	assert.Equal(t, [2]string{"vertex_ubo", "fragment_ubo"}, out.Context.UBO)
	assert.Equal(t, []Resource{{Name: "Source", Binding: 1}}, out.Context.Textures)
	assert.Equal(t, []Resource{{Name: "SourceSampler", Binding: 2}}, out.Context.Samplers)
	assert.False(t, out.Context.HasPushBinding)

	// The compiled IR is shared with other targets and must be untouched.
	assert.Equal(t, before, c.Vertex.Module.GlobalVariables[0].Name)
}

func TestCompileTargets(t *testing.T) {
	c, linked, refl := passthrough(t)
	for _, target := range []Target{GLSLES, HLSL, MSL} {
		t.Run(target.String(), func(t *testing.T) {
			out, err := Compile(c, linked, refl, target)
			require.NoError(t, err)
			assert.NotEmpty(t, out.Vertex)
			assert.NotEmpty(t, out.Fragment)
			assert.Nil(t, out.VertexSPIRV)
		})
	}
}

func TestCompileHLSLRegisters(t *testing.T) {
	c, linked, refl := passthrough(t)
	out, err := Compile(c, linked, refl, HLSL)
	require.NoError(t, err)

	regs := out.Context.Registers
	assert.Equal(t, "register(b0)", regs["fragment_ubo"])
	assert.Equal(t, "register(t1)", regs["Source"])
	assert.Equal(t, "register(s0)", regs["nagaSamplerHeap"])
	assert.Equal(t, "register(t0, space1)", regs["nagaGroup0SamplerIndexArray"])
	assert.Equal(t, "nagaSamplerHeap[nagaGroup0SamplerIndexArray[0]]", regs["SourceSampler"])

	assert.Contains(t, out.Fragment, "SamplerState nagaSamplerHeap[2048]: register(s0, space0);")
	assert.Contains(t, out.Fragment, "StructuredBuffer<uint> nagaGroup0SamplerIndexArray : register(t0, space1);")
	assert.Contains(t, out.Fragment, "static const SamplerState SourceSampler = nagaSamplerHeap[nagaGroup0SamplerIndexArray[0]];")
}

func TestCompileDropsRemovedInputs(t *testing.T) {
	c, linked, refl := passthrough(t)
	require.Equal(t, []uint32{1}, linked.Removed)

	glsl, err := Compile(c, linked, refl, GLSL)
	require.NoError(t, err)
	assert.Contains(t, glsl.Fragment, "_vs2fs_location0")
	assert.NotContains(t, glsl.Fragment, "_vs2fs_location1")

	hlsl, err := Compile(c, linked, refl, HLSL)
	require.NoError(t, err)
	assert.NotContains(t, hlslStruct(t, hlsl.Vertex, "VertexOutput_vs_main"), "LOC1")
	assert.Contains(t, hlslStruct(t, hlsl.Vertex, "VertexOutput_vs_main"), "LOC0")
	assert.NotContains(t, hlsl.Fragment, "LOC1")

	// The compiled IR keeps every member.
	ep, ok := c.Fragment.EntryPoint()
	require.True(t, ok)
	st := c.Fragment.Module.Types[ep.Function.Arguments[0].Type].Inner.(ir.StructType)
	assert.Len(t, st.Members, 3)
}

// hlslStruct returns the body of the named struct declaration in src.
func hlslStruct(t *testing.T, src, name string) string {
	t.Helper()
	start := strings.Index(src, "struct "+name+" {")
	require.GreaterOrEqual(t, start, 0, "struct %s not found", name)
	end := strings.Index(src[start:], "};")
	require.Greater(t, end, 0)
	return src[start : start+end]
}

func TestTrimInputsRemapsAccesses(t *testing.T) {
	loc := func(n uint32) *ir.Binding {
		var b ir.Binding = ir.LocationBinding{Location: n}
		return &b
	}
	f32 := ir.TypeHandle(0)
	io := ir.TypeHandle(1)
	m := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
			{Name: "In", Inner: ir.StructType{Members: []ir.StructMember{
				{Name: "a", Type: f32, Binding: loc(0)},
				{Name: "b", Type: f32, Binding: loc(1)},
				{Name: "c", Type: f32, Binding: loc(2)},
			}}},
		},
		EntryPoints: []ir.EntryPoint{{
			Name:  "main",
			Stage: ir.StageFragment,
			Function: ir.Function{
				Arguments: []ir.FunctionArgument{{Name: "in", Type: io}},
				Expressions: []ir.Expression{
					{Kind: ir.ExprFunctionArgument{Index: 0}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 2}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 0}},
					{Kind: ir.ExprCompose{Type: io, Components: []ir.ExpressionHandle{2, 2, 1}}},
				},
				ExpressionTypes: []ir.TypeResolution{
					{Handle: &io},
					{Handle: &f32},
					{Handle: &f32},
					{Handle: &io},
				},
			},
		}},
	}
	orig := m.EntryPoints
	types := slices.Clone(m.Types)

	trimInputs(m, []uint32{1})

	members := m.Types[io].Inner.(ir.StructType).Members
	require.Len(t, members, 2)
	assert.Equal(t, "a", members[0].Name)
	assert.Equal(t, "c", members[1].Name)

	exprs := m.EntryPoints[0].Function.Expressions
	assert.Equal(t, ir.ExprAccessIndex{Base: 0, Index: 1}, exprs[1].Kind)
	assert.Equal(t, ir.ExprAccessIndex{Base: 0, Index: 0}, exprs[2].Kind)
	assert.Equal(t, ir.ExprCompose{Type: io, Components: []ir.ExpressionHandle{2, 1}}, exprs[3].Kind)

	// The caller's entry points and member list are not written.
	assert.Equal(t, ir.ExprAccessIndex{Base: 0, Index: 2}, orig[0].Function.Expressions[1].Kind)
	assert.Len(t, types[io].Inner.(ir.StructType).Members, 3)
}

func TestTrimInputsKeepsReadMember(t *testing.T) {
	var b ir.Binding = ir.LocationBinding{Location: 1}
	f32 := ir.TypeHandle(0)
	io := ir.TypeHandle(1)
	m := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
			{Inner: ir.StructType{Members: []ir.StructMember{{Name: "b", Type: f32, Binding: &b}}}},
		},
		EntryPoints: []ir.EntryPoint{{
			Stage: ir.StageFragment,
			Function: ir.Function{
				Arguments: []ir.FunctionArgument{{Type: io}},
				Expressions: []ir.Expression{
					{Kind: ir.ExprFunctionArgument{Index: 0}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 0}},
				},
				ExpressionTypes: []ir.TypeResolution{{Handle: &io}, {Handle: &f32}},
			},
		}},
	}

	trimInputs(m, []uint32{1})
	assert.Len(t, m.Types[io].Inner.(ir.StructType).Members, 1)
	assert.Equal(t, ir.ExprAccessIndex{Base: 0, Index: 0}, m.EntryPoints[0].Function.Expressions[1].Kind)
}

func TestCompileSPIRV(t *testing.T) {
	c, linked, refl := passthrough(t)
	out, err := Compile(c, linked, refl, SPIRV)
	require.NoError(t, err)
	assert.Equal(t, linked.Vertex, out.VertexSPIRV)
	assert.Equal(t, linked.Fragment, out.FragmentSPIRV)
	assert.Empty(t, out.Vertex)
}

func TestCompileUnknownTarget(t *testing.T) {
	c, linked, refl := passthrough(t)
	_, err := Compile(c, linked, refl, Target(99))
	assert.True(t, errors.Is(err, ErrUnknownTarget))
}

func TestParseTarget(t *testing.T) {
	for _, target := range Targets() {
		got, err := ParseTarget(target.String())
		require.NoError(t, err)
		assert.Equal(t, target, got)
	}
	got, err := ParseTarget("GLSL-ES")
	require.NoError(t, err)
	assert.Equal(t, GLSLES, got)

	_, err = ParseTarget("wgsl")
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestPushBindingPlacement(t *testing.T) {
	refl := &reflection.ShaderReflection{
		UBO:          &reflection.BufferReflection{Binding: 0, Size: 64},
		PushConstant: &reflection.PushReflection{Size: 16},
		Meta: reflection.BindingMeta{Textures: map[reflection.TextureKey]reflection.TextureBinding{
			semantics.Texture(semantics.Source, 0): {Name: "Source", Binding: 1, Sampler: 4, HasSampler: true},
		}},
	}
	c := &compile.Compilation{Vertex: &compile.Stage{}, Fragment: &compile.Stage{}}

	ctx := sideTables(c, refl, HLSL)
	assert.True(t, ctx.HasPushBinding)
	assert.Equal(t, uint32(5), ctx.PushBinding)
	assert.Equal(t, bindingPlan{
		{0, slotBuffer},
		{5, slotBuffer},
		{1, slotTexture},
		{4, slotSampler},
	}, newBindingPlan(refl, &ctx))

	ctx = sideTables(c, refl, GLSL)
	assert.False(t, ctx.HasPushBinding)
}
