// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shadertest holds WGSL shaders shared by tests.
package shadertest

import (
	"github.com/gogpu/fxchain/preset"
)

// Passthrough samples Source through a full-screen triangle. It declares the
// parameter "strength" and reads MVP, SourceSize and FrameCount.
const Passthrough = `
struct Params {
    MVP: mat4x4<f32>,
    SourceSize: vec4<f32>,
    FrameCount: u32,
    strength: f32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var Source: texture_2d<f32>;
@group(0) @binding(2) var SourceSampler: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
    @location(1) unused: vec4<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    var out: VertexOutput;
    out.position = params.MVP * vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
    out.uv = uv;
    out.unused = vec4<f32>(1.0, 0.0, 0.0, 1.0);
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let color = textureSample(Source, SourceSampler, in.uv);
    return color * params.strength;
}
`

// History blends Source with OriginalHistory2 and the feedback of pass 0.
const History = `
struct Params {
    MVP: mat4x4<f32>,
    OriginalHistorySize2: vec4<f32>,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var Source: texture_2d<f32>;
@group(0) @binding(2) var SourceSampler: sampler;
@group(0) @binding(3) var OriginalHistory2: texture_2d<f32>;
@group(0) @binding(4) var OriginalHistory2Sampler: sampler;
@group(0) @binding(5) var PassFeedback0: texture_2d<f32>;
@group(0) @binding(6) var PassFeedback0Sampler: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    var out: VertexOutput;
    out.position = params.MVP * vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let a = textureSample(Source, SourceSampler, in.uv);
    let b = textureSample(OriginalHistory2, OriginalHistory2Sampler, in.uv);
    let c = textureSample(PassFeedback0, PassFeedback0Sampler, in.uv);
    return (a + b + c) / 3.0;
}
`

// Forward reads the output of pass 1 and is invalid at pass 0 or 1.
const Forward = `
@group(0) @binding(0) var PassOutput1: texture_2d<f32>;
@group(0) @binding(1) var PassOutput1Sampler: sampler;

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    return vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    return textureSample(PassOutput1, PassOutput1Sampler, pos.xy);
}
`

// Broken does not parse.
const Broken = `
@fragment
fn fs_main( -> @location(0) vec4<f32> {
`

// StrengthParameter is the parameter declared for Passthrough.
var StrengthParameter = preset.Parameter{
	ID:          "strength",
	Description: "Effect strength",
	Initial:     0.5,
	Minimum:     0,
	Maximum:     1,
	Step:        0.05,
}

// Source returns a single-unit shader source for wgsl.
func Source(name, wgsl string, params ...preset.Parameter) *preset.ShaderSource {
	return &preset.ShaderSource{
		Name:       name,
		Vertex:     wgsl,
		Fragment:   wgsl,
		Parameters: params,
	}
}
