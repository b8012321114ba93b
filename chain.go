// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package fxchain

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/fxchain/backend"
	"github.com/gogpu/fxchain/binding"
	"github.com/gogpu/fxchain/codegen"
	"github.com/gogpu/fxchain/history"
	"github.com/gogpu/fxchain/lut"
	"github.com/gogpu/fxchain/preset"
	"github.com/gogpu/fxchain/scaling"
)

// Chain errors.
var (
	// ErrClosed is returned by Frame after Close.
	ErrClosed = errors.New("fxchain: chain closed")

	// ErrPassCount is returned by SetEnabledPasses for a count beyond the
	// number of passes.
	ErrPassCount = errors.New("fxchain: enabled pass count out of range")
)

// pass is the runtime state of one compiled pass.
type pass struct {
	compiled *CompiledPass
	table    *binding.Table
	storage  *binding.Storage
	program  backend.Program
}

// FilterChain renders a compiled preset on a backend.
//
// A FilterChain owns every framebuffer, history slot, lookup texture and
// program it creates. It is not safe for concurrent use; Frame, the
// parameter methods and Close must be called from one goroutine at a time.
type FilterChain struct {
	backend  backend.Backend
	compiled *Compiled
	log      *slog.Logger

	passes   []*pass
	scale    []scaling.Pass
	history  *history.Ring
	feedback *history.Feedback
	luts     []*lut.Texture

	params   map[string]float32
	declared map[string]preset.Parameter
	enabled  int
	closed   bool
}

// Load reads the preset at path and builds a chain on b.
func Load(path string, b backend.Backend, opts ...Option) (*FilterChain, error) {
	p, err := preset.Load(path)
	if err != nil {
		return nil, err
	}
	return New(p, b, opts...)
}

// New compiles p for the target of b and creates every resource the chain
// needs. On error every resource created so far is released.
func New(p *preset.Preset, b backend.Backend, opts ...Option) (*FilterChain, error) {
	o := buildOptions(opts)
	compiled, err := compilePreset(p, []codegen.Target{b.Target()}, o)
	if err != nil {
		return nil, err
	}
	return newChain(compiled, b, o)
}

func newChain(compiled *Compiled, b backend.Backend, o options) (_ *FilterChain, err error) {
	p := compiled.Preset
	c := &FilterChain{
		backend:  b,
		compiled: compiled,
		log:      o.logger,
		history:  history.NewRing(compiled.HistoryDepth),
		feedback: history.NewFeedback(len(compiled.Passes)),
		params:   make(map[string]float32),
		declared: make(map[string]preset.Parameter),
		enabled:  len(compiled.Passes),
	}
	defer func() {
		if err != nil {
			c.release()
		}
	}()

	for _, param := range p.ShaderParameters() {
		c.declared[param.ID] = param
		c.params[param.ID] = param.Initial
	}
	for _, values := range []map[string]float32{p.Parameters, o.parameters} {
		for id, v := range values {
			if decl, ok := c.declared[id]; ok {
				c.params[id] = decl.Clamp(v)
			}
		}
	}

	if c.luts, err = lut.Load(b, p.FS, p.Textures); err != nil {
		return nil, err
	}

	params := p.ShaderParameters()
	for _, cp := range compiled.Passes {
		prog, err := b.NewProgram(backend.ProgramDescriptor{
			Label:      cp.Pass.Source.Name,
			Pass:       cp.Index,
			Output:     cp.Outputs[b.Target()],
			Reflection: cp.Reflection,
			Format:     scaling.Format(scalingPass(cp.Pass), gputypes.TextureFormatUndefined),
		})
		if err != nil {
			return nil, fmt.Errorf("fxchain: pass %d: %w", cp.Index, err)
		}
		c.scale = append(c.scale, scalingPass(cp.Pass))
		c.passes = append(c.passes, &pass{
			compiled: cp,
			table:    binding.NewTable(cp.Reflection, params),
			storage:  binding.NewStorage(cp.Reflection),
			program:  prog,
		})
	}

	o.logger.Info("fxchain: chain created",
		"backend", b.Kind(),
		"passes", len(c.passes),
		"luts", len(c.luts),
		"parameters", len(c.params),
	)
	return c, nil
}

func scalingPass(p *preset.Pass) scaling.Pass {
	return scaling.Pass{
		Rule:        p.Config.Scale,
		MipmapInput: p.Config.MipmapInput,
		Float:       p.Config.FloatFramebuffer,
		SRGB:        p.Config.SRGBFramebuffer,
		Format:      p.Source.Format,
	}
}

// Compiled returns the compilation the chain was built from.
func (c *FilterChain) Compiled() *Compiled { return c.compiled }

// Parameter returns the current value of a parameter. It reports false
// for a name no pass declares.
func (c *FilterChain) Parameter(name string) (float32, bool) {
	v, ok := c.params[name]
	return v, ok
}

// SetParameter sets a parameter, clamped to its declared range, and
// returns the previous value. It reports false and changes nothing for a
// name no pass declares.
func (c *FilterChain) SetParameter(name string, v float32) (float32, bool) {
	decl, ok := c.declared[name]
	if !ok {
		return 0, false
	}
	old := c.params[name]
	c.params[name] = decl.Clamp(v)
	return old, true
}

// Parameters returns the declared parameters with their current values as
// Initial, sorted by id.
func (c *FilterChain) Parameters() []preset.Parameter {
	out := make([]preset.Parameter, 0, len(c.declared))
	for _, id := range slices.Sorted(maps.Keys(c.declared)) {
		p := c.declared[id]
		p.Initial = c.params[id]
		out = append(out, p)
	}
	return out
}

// PassCount returns the number of passes in the chain.
func (c *FilterChain) PassCount() int { return len(c.passes) }

// EnabledPasses returns how many leading passes Frame renders.
func (c *FilterChain) EnabledPasses() int { return c.enabled }

// SetEnabledPasses limits Frame to the first n passes. The last enabled
// pass renders into the viewport.
func (c *FilterChain) SetEnabledPasses(n int) error {
	if n < 0 || n > len(c.passes) {
		return fmt.Errorf("%w: %d of %d", ErrPassCount, n, len(c.passes))
	}
	c.enabled = n
	return nil
}

// Close releases every resource owned by the chain. The backend itself is
// not closed.
func (c *FilterChain) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.release()
}

func (c *FilterChain) release() {
	for _, p := range c.passes {
		p.program.Destroy()
	}
	c.passes = nil
	for _, l := range c.luts {
		l.Destroy()
	}
	c.luts = nil
	c.history.Destroy()
	c.feedback.Destroy()
}
