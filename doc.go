// Package fxchain compiles and runs multi-pass shader presets.
//
// # Overview
//
// A preset describes a chain of WGSL shader passes. Each pass reads the
// original frame, the previous pass, earlier pass outputs, the previous
// frame's outputs, earlier input frames and lookup textures, and writes a
// framebuffer sized by its scale rule. The last pass renders into the
// caller's viewport.
//
// fxchain compiles every pass to SPIR-V, links the stage interfaces,
// reflects the semantic uniforms and textures, and generates SPIR-V, GLSL,
// GLSL ES, HLSL or MSL for the backend. At runtime it binds the semantic
// values of every pass each frame.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/fxchain"
//		"github.com/gogpu/fxchain/backend/wgpu"
//	)
//
//	b, err := wgpu.New(provider)
//	chain, err := fxchain.Load("crt.toml", b)
//	defer chain.Close()
//
//	for frame := uint64(0); ; frame++ {
//		err := chain.Frame(frame, fxchain.Viewport{Target: swapchain}, input, nil)
//	}
//
// # Offline compilation
//
// Compile produces the generated programs of every pass without a device;
// cmd/fxc uses it to dump reflection and target sources.
//
// # Backends
//
// The backend package defines the contract. backend/wgpu renders through a
// gogpu/wgpu HAL device; backend/recording runs on the CPU and records every
// draw for tests and tooling.
//
// # Hot reload
//
// Watch rebuilds a chain whenever the preset or one of its files changes.
package fxchain

// Version information.
const (
	// Version is the current version of the library.
	Version = "0.1.0"
)
