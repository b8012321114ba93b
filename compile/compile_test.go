// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compile_test

import (
	"errors"
	"testing"

	"github.com/gogpu/naga/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxchain/compile"
	"github.com/gogpu/fxchain/internal/shadertest"
	"github.com/gogpu/fxchain/internal/spirv"
)

func TestCompileSplitsStages(t *testing.T) {
	c, err := compile.Compile(0, shadertest.Source("pass", shadertest.Passthrough), compile.Options{})
	require.NoError(t, err)

	assert.Equal(t, "pass", c.Name)
	for _, s := range []*compile.Stage{c.Vertex, c.Fragment} {
		ep, ok := s.EntryPoint()
		require.True(t, ok)
		assert.Equal(t, s.Stage, ep.Stage)
		require.NotEmpty(t, s.SPIRV)
		assert.Equal(t, uint32(spirv.Magic), s.SPIRV[0])
	}

	names := func(s *compile.Stage) []string {
		var out []string
		for _, h := range s.Globals {
			out = append(out, s.Module.GlobalVariables[h].Name)
		}
		return out
	}
	assert.Equal(t, []string{"params"}, names(c.Vertex))
	assert.ElementsMatch(t, []string{"params", "Source", "SourceSampler"}, names(c.Fragment))
}

func TestCompileSPIRVParses(t *testing.T) {
	c, err := compile.Compile(0, shadertest.Source("pass", shadertest.Passthrough), compile.Options{Debug: true})
	require.NoError(t, err)

	m, err := spirv.Parse(c.Fragment.SPIRV)
	require.NoError(t, err)
	eps := m.EntryPoints()
	require.Len(t, eps, 1)
	assert.Equal(t, uint32(spirv.ExecutionModelFragment), eps[0].ExecutionModel)
	assert.Equal(t, "fs_main", eps[0].Name)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		phase string
	}{
		{"empty", "", "parse"},
		{"syntax", shadertest.Broken, "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compile.Compile(3, shadertest.Source("bad", tt.src), compile.Options{})
			var cerr *compile.Error
			require.True(t, errors.As(err, &cerr), "error = %v", err)
			assert.Equal(t, 3, cerr.Pass)
			assert.Equal(t, "bad", cerr.Name)
			assert.Equal(t, tt.phase, cerr.Phase)
			assert.NotEmpty(t, cerr.Diagnostics)
		})
	}

	_, err := compile.Compile(0, shadertest.Source("empty", ""), compile.Options{})
	assert.ErrorIs(t, err, compile.ErrEmptySource)
}

func TestReachableGlobalsFollowsCalls(t *testing.T) {
	// main calls helper, which reads global 1; global 0 is only read by an
	// uncalled function.
	m := &ir.Module{
		GlobalVariables: []ir.GlobalVariable{{Name: "dead"}, {Name: "live"}, {Name: "direct"}},
		Functions: []ir.Function{
			{
				Name:        "helper",
				Expressions: []ir.Expression{{Kind: ir.ExprGlobalVariable{Variable: 1}}},
			},
			{
				Name:        "unused",
				Expressions: []ir.Expression{{Kind: ir.ExprGlobalVariable{Variable: 0}}},
			},
		},
		EntryPoints: []ir.EntryPoint{{
			Name:  "main",
			Stage: ir.StageFragment,
			Function: ir.Function{
				Name:        "main",
				Expressions: []ir.Expression{{Kind: ir.ExprGlobalVariable{Variable: 2}}},
				Body: []ir.Statement{
					{Kind: ir.StmtBlock{Block: ir.Block{
						{Kind: ir.StmtCall{Function: 0}},
					}}},
				},
			},
		}},
	}
	assert.Equal(t, []ir.GlobalVariableHandle{1, 2}, compile.ReachableGlobals(m))
}

func TestReachableGlobalsFromSource(t *testing.T) {
	src := shadertest.Source("helper", `
@group(0) @binding(0) var Source: texture_2d<f32>;
@group(0) @binding(1) var SourceSampler: sampler;
@group(0) @binding(2) var Unused: texture_2d<f32>;

fn fetch(uv: vec2<f32>) -> vec4<f32> {
	return textureSample(Source, SourceSampler, uv);
}

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
	return vec4<f32>(f32(i), 0.0, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) p: vec4<f32>) -> @location(0) vec4<f32> {
	return fetch(p.xy);
}
`)
	c, err := compile.Compile(0, src, compile.Options{})
	require.NoError(t, err)

	var names []string
	m := c.Fragment.Module
	for _, h := range compile.ReachableGlobals(m) {
		names = append(names, m.GlobalVariables[h].Name)
	}
	assert.Contains(t, names, "Source")
	assert.Contains(t, names, "SourceSampler")
	assert.NotContains(t, names, "Unused")
}

func TestStageName(t *testing.T) {
	assert.Equal(t, "vertex", compile.StageName(ir.StageVertex))
	assert.Equal(t, "fragment", compile.StageName(ir.StageFragment))
	assert.Equal(t, "compute", compile.StageName(ir.StageCompute))
}
