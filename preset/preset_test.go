// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package preset

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxchain/scaling"
)

const tomlPreset = `
[[passes]]
shader = "shaders/first.wgsl"
alias = "First"

  [[passes.parameters]]
  id = "strength"
  description = "Effect strength"
  initial = 0.5
  minimum = 0.0
  maximum = 1.0
  step = 0.05

[[passes]]
name = "blur"
vertex = "shaders/blur.vert.wgsl"
fragment = "shaders/blur.frag.wgsl"
scale_x = { type = "viewport", factor = 0.5 }
scale_y = { type = "absolute", size = 240 }
mipmap_input = true
float_framebuffer = true
frame_count_mod = 60
wrap = "repeat"
filter = "nearest"

[[textures]]
name = "Noise"
path = "lut/noise.png"
wrap = "mirror_repeat"
mipmap = true

[parameters]
strength = 0.75
`

const yamlPreset = `
passes:
  - shader: shaders/first.wgsl
    alias: First
    scale:
      type: original
      factor: 2
    parameters:
      - id: strength
        initial: 0.5
        minimum: 0
        maximum: 1
        step: 0.05
textures:
  - name: Noise
    path: lut/noise.png
parameters:
  strength: 0.25
`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"presets/chain.toml":             {Data: []byte(tomlPreset)},
		"presets/chain.yaml":             {Data: []byte(yamlPreset)},
		"presets/shaders/first.wgsl":     {Data: []byte("// first")},
		"presets/shaders/blur.vert.wgsl": {Data: []byte("// vertex")},
		"presets/shaders/blur.frag.wgsl": {Data: []byte("// fragment")},
		"presets/broken.toml":            {Data: []byte("[[passes]]\nalias = \"x\"\n")},
		"presets/exclusive.toml":         {Data: []byte("[[passes]]\nshader = \"a\"\nvertex = \"b\"\n")},
		"presets/badwrap.toml":           {Data: []byte("[[passes]]\nshader = \"shaders/first.wgsl\"\nwrap = \"sideways\"\n")},
		"presets/empty.toml":             {Data: []byte("")},
		"presets/absolute.toml":          {Data: []byte("[[passes]]\nshader = \"shaders/first.wgsl\"\nscale = { type = \"absolute\" }\n")},
		"presets/unknown.ini":            {Data: []byte("")},
	}
}

func TestLoadTOML(t *testing.T) {
	p, err := LoadFS(testFS(), "presets/chain.toml")
	require.NoError(t, err)
	require.Len(t, p.Passes, 2)

	first := p.Passes[0]
	assert.Equal(t, "first", first.Source.Name)
	assert.Equal(t, "// first", first.Source.Vertex)
	assert.Equal(t, first.Source.Vertex, first.Source.Fragment)
	assert.Equal(t, "First", first.Config.Alias)
	assert.Equal(t, scaling.Uniform(scaling.Input, 1), first.Config.Scale)
	assert.Equal(t, gputypes.AddressModeClampToEdge, first.Config.Wrap)
	assert.Equal(t, gputypes.FilterModeLinear, first.Config.Filter)
	assert.Equal(t, []string{"presets/shaders/first.wgsl"}, first.Files)
	require.Len(t, first.Source.Parameters, 1)
	assert.Equal(t, Parameter{
		ID: "strength", Description: "Effect strength",
		Initial: 0.5, Minimum: 0, Maximum: 1, Step: 0.05,
	}, first.Source.Parameters[0])

	blur := p.Passes[1]
	assert.Equal(t, "blur", blur.Source.Name)
	assert.Equal(t, "// vertex", blur.Source.Vertex)
	assert.Equal(t, "// fragment", blur.Source.Fragment)
	assert.Equal(t, scaling.Axis{Type: scaling.Viewport, Factor: 0.5}, blur.Config.Scale.X)
	assert.Equal(t, scaling.Axis{Type: scaling.Absolute, Absolute: 240}, blur.Config.Scale.Y)
	assert.True(t, blur.Config.MipmapInput)
	assert.True(t, blur.Config.FloatFramebuffer)
	assert.Equal(t, uint32(60), blur.Config.FrameCountMod)
	assert.Equal(t, gputypes.AddressModeRepeat, blur.Config.Wrap)
	assert.Equal(t, gputypes.FilterModeNearest, blur.Config.Filter)

	require.Len(t, p.Textures, 1)
	assert.Equal(t, TextureConfig{
		Name: "Noise", Path: "presets/lut/noise.png",
		Wrap: gputypes.AddressModeMirrorRepeat, Filter: gputypes.FilterModeLinear, Mipmap: true,
	}, p.Textures[0])
	assert.Equal(t, map[string]float32{"strength": 0.75}, p.Parameters)

	assert.Equal(t, []string{
		"presets/shaders/first.wgsl",
		"presets/shaders/blur.vert.wgsl",
		"presets/shaders/blur.frag.wgsl",
		"presets/lut/noise.png",
	}, p.Files())
}

func TestLoadYAML(t *testing.T) {
	p, err := LoadFS(testFS(), "presets/chain.yaml")
	require.NoError(t, err)
	require.Len(t, p.Passes, 1)
	assert.Equal(t, scaling.Uniform(scaling.Original, 2), p.Passes[0].Config.Scale)
	assert.Equal(t, map[string]float32{"strength": 0.25}, p.Parameters)
	require.Len(t, p.ShaderParameters(), 1)
	assert.Equal(t, float32(0.5), p.ShaderParameters()[0].Initial)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		want error
	}{
		{"missing shader", "presets/broken.toml", ErrInvalidPreset},
		{"exclusive sources", "presets/exclusive.toml", ErrInvalidPreset},
		{"bad wrap", "presets/badwrap.toml", ErrInvalidPreset},
		{"no passes", "presets/empty.toml", ErrInvalidPreset},
		{"absolute without size", "presets/absolute.toml", ErrInvalidPreset},
		{"unknown format", "presets/unknown.ini", ErrUnknownFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFS(testFS(), tt.file)
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadFS(%q) error = %v, want %v", tt.file, err, tt.want)
			}
		})
	}
}

func TestParameterClamp(t *testing.T) {
	p := Parameter{Minimum: 0, Maximum: 1}
	assert.Equal(t, float32(0), p.Clamp(-1))
	assert.Equal(t, float32(1), p.Clamp(2))
	assert.Equal(t, float32(0.5), p.Clamp(0.5))

	unbounded := Parameter{Minimum: 1, Maximum: 0}
	assert.Equal(t, float32(42), unbounded.Clamp(42))
}

func TestShaderParametersFirstWins(t *testing.T) {
	p := &Preset{Passes: []Pass{
		{Source: ShaderSource{Parameters: []Parameter{{ID: "a", Initial: 1}, {ID: "b"}}}},
		{Source: ShaderSource{Parameters: []Parameter{{ID: "a", Initial: 2}, {ID: "c"}}}},
	}}
	params := p.ShaderParameters()
	require.Len(t, params, 3)
	assert.Equal(t, "a", params[0].ID)
	assert.Equal(t, float32(1), params[0].Initial)
	assert.Equal(t, "c", params[2].ID)
}
