// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package fxchain

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/fxchain/codegen"
	"github.com/gogpu/fxchain/compile"
	"github.com/gogpu/fxchain/history"
	"github.com/gogpu/fxchain/internal/cache"
	"github.com/gogpu/fxchain/link"
	"github.com/gogpu/fxchain/preset"
	"github.com/gogpu/fxchain/reflection"
	"github.com/gogpu/fxchain/semantics"
)

// ErrNoPasses is returned for a preset without passes.
var ErrNoPasses = errors.New("fxchain: preset has no passes")

// passArtifacts are the preset-independent results of compiling one pass.
// They are shared between compilations and never modified.
type passArtifacts struct {
	compilation *compile.Compilation
	linked      *link.Result
	reflection  *reflection.ShaderReflection
	outputs     map[codegen.Target]*codegen.Output
}

// artifacts caches compiled passes across presets and reloads.
var artifacts = cache.New[[sha256.Size]byte, *passArtifacts](256)

// CompiledPass holds every artifact produced for one pass.
type CompiledPass struct {
	Index       int
	Pass        *preset.Pass
	Compilation *compile.Compilation
	Linked      *link.Result
	Reflection  *reflection.ShaderReflection
	Outputs     map[codegen.Target]*codegen.Output
}

// Compiled is a fully compiled preset.
type Compiled struct {
	Preset    *preset.Preset
	Semantics *semantics.ShaderSemantics
	Passes    []*CompiledPass
	// HistoryDepth is the number of input frames the passes read.
	HistoryDepth int
}

// Reflections returns the reflection of every pass in order.
func (c *Compiled) Reflections() []*reflection.ShaderReflection {
	out := make([]*reflection.ShaderReflection, len(c.Passes))
	for i, p := range c.Passes {
		out[i] = p.Reflection
	}
	return out
}

// Compile compiles every pass of p for each target. Passes are compiled in
// parallel; the first error cancels the rest and no partial result is
// returned.
func Compile(p *preset.Preset, targets []codegen.Target, opts ...Option) (*Compiled, error) {
	return compilePreset(p, targets, buildOptions(opts))
}

func compilePreset(p *preset.Preset, targets []codegen.Target, o options) (*Compiled, error) {
	if len(p.Passes) == 0 {
		return nil, ErrNoPasses
	}
	sem, err := buildSemantics(p)
	if err != nil {
		return nil, err
	}

	targets = slices.Compact(slices.Sorted(slices.Values(targets)))
	chainKey := chainDigest(p, targets, o)

	passes := make([]*CompiledPass, len(p.Passes))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range p.Passes {
		g.Go(func() error {
			cp, err := compilePass(i, &p.Passes[i], sem, targets, chainKey, o)
			if err != nil {
				return err
			}
			passes[i] = cp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Compiled{Preset: p, Semantics: sem, Passes: passes}
	for _, cp := range passes {
		if err := cp.Reflection.CheckCausality(); err != nil {
			return nil, err
		}
	}
	out.HistoryDepth = history.Depth(out.Reflections())
	o.logger.Info("fxchain: preset compiled",
		"passes", len(passes),
		"targets", len(targets),
		"history_depth", out.HistoryDepth,
	)
	return out, nil
}

func buildSemantics(p *preset.Preset) (*semantics.ShaderSemantics, error) {
	infos := make([]semantics.PassInfo, len(p.Passes))
	for i, pass := range p.Passes {
		infos[i].Alias = pass.Config.Alias
		for _, param := range pass.Source.Parameters {
			infos[i].Parameters = append(infos[i].Parameters, param.ID)
		}
	}
	luts := make([]string, len(p.Textures))
	for i, t := range p.Textures {
		luts[i] = t.Name
	}
	return semantics.Build(infos, luts)
}

func compilePass(i int, pass *preset.Pass, sem *semantics.ShaderSemantics, targets []codegen.Target, chainKey [sha256.Size]byte, o options) (*CompiledPass, error) {
	key := passDigest(chainKey, i, &pass.Source)
	a, ok := artifacts.Get(key)
	if ok {
		o.logger.Debug("fxchain: pass cached", "pass", i, "name", pass.Source.Name)
	} else {
		var err error
		if a, err = buildPass(i, pass, sem, targets, o); err != nil {
			return nil, err
		}
		artifacts.Set(key, a)
	}
	return &CompiledPass{
		Index:       i,
		Pass:        pass,
		Compilation: a.compilation,
		Linked:      a.linked,
		Reflection:  a.reflection,
		Outputs:     a.outputs,
	}, nil
}

func buildPass(i int, pass *preset.Pass, sem *semantics.ShaderSemantics, targets []codegen.Target, o options) (*passArtifacts, error) {
	c, err := compile.Compile(i, &pass.Source, compile.Options{Debug: o.debugNames, Logger: o.logger})
	if err != nil {
		return nil, err
	}
	linked, err := link.Link(c.Vertex.SPIRV, c.Fragment.SPIRV, o.linkPolicy)
	if err != nil {
		return nil, fmt.Errorf("fxchain: pass %d: %w", i, err)
	}
	refl, err := reflection.Reflect(i, c, sem)
	if err != nil {
		return nil, err
	}

	a := &passArtifacts{
		compilation: c,
		linked:      linked,
		reflection:  refl,
		outputs:     make(map[codegen.Target]*codegen.Output, len(targets)),
	}
	for _, t := range targets {
		out, err := codegen.Compile(c, linked, refl, t)
		if err != nil {
			return nil, err
		}
		a.outputs[t] = out
	}
	o.logger.Debug("fxchain: pass compiled",
		"pass", i,
		"name", pass.Source.Name,
		"removed_inputs", len(linked.Removed),
		"demoted_outputs", len(linked.Demoted),
	)
	return a, nil
}

// chainDigest hashes everything outside a pass's own source that changes
// its compilation: the names every pass and lookup texture contribute to
// the semantics, the targets and the options.
func chainDigest(p *preset.Preset, targets []codegen.Target, o options) [sha256.Size]byte {
	h := sha256.New()
	str := func(s string) {
		h.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(s))))
		h.Write([]byte(s))
	}
	for _, pass := range p.Passes {
		str(pass.Config.Alias)
		for _, param := range pass.Source.Parameters {
			str(param.ID)
		}
		str("")
	}
	for _, t := range p.Textures {
		str(t.Name)
	}
	for _, t := range targets {
		str(t.String())
	}
	str(fmt.Sprint(o.debugNames, o.linkPolicy.KeepIfBound))
	var out [sha256.Size]byte
	h.Sum(out[:0])
	return out
}

func passDigest(chainKey [sha256.Size]byte, i int, src *preset.ShaderSource) [sha256.Size]byte {
	h := sha256.New()
	h.Write(chainKey[:])
	h.Write(binary.LittleEndian.AppendUint64(nil, uint64(i)))
	for _, s := range []string{src.Name, src.Vertex, src.Fragment} {
		h.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(s))))
		h.Write([]byte(s))
	}
	var out [sha256.Size]byte
	h.Sum(out[:0])
	return out
}
