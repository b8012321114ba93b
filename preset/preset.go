// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package preset describes a multi-pass shader chain: the shader source of
// every pass, its framebuffer configuration, lookup textures and parameter
// overrides.
package preset

import (
	"io/fs"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/fxchain/scaling"
)

// Parameter is a user-tunable float declared by a pass shader.
type Parameter struct {
	ID          string  `toml:"id" yaml:"id" json:"id"`
	Description string  `toml:"description" yaml:"description" json:"description,omitempty"`
	Initial     float32 `toml:"initial" yaml:"initial" json:"initial"`
	Minimum     float32 `toml:"minimum" yaml:"minimum" json:"minimum"`
	Maximum     float32 `toml:"maximum" yaml:"maximum" json:"maximum"`
	Step        float32 `toml:"step" yaml:"step" json:"step"`
}

// Clamp limits v to the declared range. A range with Maximum < Minimum is
// treated as unbounded.
func (p Parameter) Clamp(v float32) float32 {
	if p.Maximum < p.Minimum {
		return v
	}
	return min(max(v, p.Minimum), p.Maximum)
}

// ShaderSource is the preprocessed shader of one pass. Vertex and Fragment
// hold WGSL text; they are usually the same compilation unit containing
// both entry points.
type ShaderSource struct {
	Name       string
	Vertex     string
	Fragment   string
	Parameters []Parameter
	// Format is the declared output format. Undefined inherits the input
	// format.
	Format gputypes.TextureFormat
}

// PassConfig holds the framebuffer configuration of one pass.
type PassConfig struct {
	Alias            string
	Scale            scaling.Rule
	MipmapInput      bool
	FloatFramebuffer bool
	SRGBFramebuffer  bool
	// FrameCountMod wraps FrameCount when non-zero.
	FrameCountMod uint32
	// Wrap and Filter configure sampling of this pass's input.
	Wrap   gputypes.AddressMode
	Filter gputypes.FilterMode
}

// Pass is one shader invocation of the chain.
type Pass struct {
	Config PassConfig
	Source ShaderSource
	// Files lists the files the source was read from.
	Files []string
}

// TextureConfig declares a lookup texture.
type TextureConfig struct {
	Name   string
	Path   string
	Wrap   gputypes.AddressMode
	Filter gputypes.FilterMode
	Mipmap bool
}

// Preset is a loaded chain description.
type Preset struct {
	Passes   []Pass
	Textures []TextureConfig
	// Parameters overrides declared parameter initial values.
	Parameters map[string]float32
	// FS is the file system the preset was read from. Nil means the
	// operating system.
	FS fs.FS
}

// ShaderParameters returns the parameters of every pass, first declaration
// wins.
func (p *Preset) ShaderParameters() []Parameter {
	seen := make(map[string]bool)
	var out []Parameter
	for _, pass := range p.Passes {
		for _, param := range pass.Source.Parameters {
			if seen[param.ID] {
				continue
			}
			seen[param.ID] = true
			out = append(out, param)
		}
	}
	return out
}

// Files returns every file the preset depends on, shader sources first.
func (p *Preset) Files() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, pass := range p.Passes {
		for _, f := range pass.Files {
			add(f)
		}
	}
	for _, t := range p.Textures {
		add(t.Path)
	}
	return out
}
