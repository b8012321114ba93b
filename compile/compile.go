// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package compile turns WGSL shader sources into per-stage naga IR modules
// and SPIR-V binaries.
package compile

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"github.com/gogpu/fxchain/preset"
)

// ErrEmptySource is returned when a stage has no source text.
var ErrEmptySource = errors.New("compile: empty shader source")

// Error reports a compiler failure for one stage. Diagnostics holds the
// message produced by the shader compiler, unmodified.
type Error struct {
	Pass        int
	Name        string
	Stage       ir.ShaderStage
	Phase       string
	Diagnostics string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("compile: pass %d (%s) %s stage: %s: %s", e.Pass, e.Name, StageName(e.Stage), e.Phase, e.Diagnostics)
}

func (e *Error) Unwrap() error { return e.Err }

// StageName returns "vertex", "fragment" or "compute".
func StageName(s ir.ShaderStage) string {
	switch s {
	case ir.StageVertex:
		return "vertex"
	case ir.StageFragment:
		return "fragment"
	case ir.StageCompute:
		return "compute"
	}
	return fmt.Sprintf("stage(%d)", s)
}

// Options configures compilation.
type Options struct {
	// Debug keeps OpName and OpMemberName in the SPIR-V output.
	Debug bool
	// Logger receives per-stage diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// Stage is one compiled shader stage.
type Stage struct {
	Stage ir.ShaderStage
	// Module holds only the entry points of this stage.
	Module *ir.Module
	// Globals lists the global variables reachable from the entry points,
	// sorted by handle.
	Globals []ir.GlobalVariableHandle
	// SPIRV is the binary for Module. It is nil when the stage does not have
	// exactly one entry point.
	SPIRV []uint32
}

// EntryPoint returns the single entry point of the stage.
func (s *Stage) EntryPoint() (ir.EntryPoint, bool) {
	if len(s.Module.EntryPoints) != 1 {
		return ir.EntryPoint{}, false
	}
	return s.Module.EntryPoints[0], true
}

// Compilation is the compiled vertex and fragment pair of one pass.
type Compilation struct {
	Pass     int
	Name     string
	Vertex   *Stage
	Fragment *Stage
}

// Compile compiles both stages of src.
func Compile(pass int, src *preset.ShaderSource, opts Options) (*Compilation, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	c := &Compilation{Pass: pass, Name: src.Name}

	vertMod, err := frontend(pass, src.Name, ir.StageVertex, src.Vertex)
	if err != nil {
		return nil, err
	}
	fragMod := vertMod
	if src.Fragment != src.Vertex {
		if fragMod, err = frontend(pass, src.Name, ir.StageFragment, src.Fragment); err != nil {
			return nil, err
		}
	}

	if c.Vertex, err = buildStage(pass, src.Name, ir.StageVertex, vertMod, opts); err != nil {
		return nil, err
	}
	if c.Fragment, err = buildStage(pass, src.Name, ir.StageFragment, fragMod, opts); err != nil {
		return nil, err
	}

	log.Debug("compile: pass compiled",
		"pass", pass,
		"name", src.Name,
		"vertex_words", len(c.Vertex.SPIRV),
		"fragment_words", len(c.Fragment.SPIRV),
	)
	return c, nil
}

// frontend parses, lowers and validates WGSL source.
func frontend(pass int, name string, stage ir.ShaderStage, source string) (*ir.Module, error) {
	fail := func(phase string, err error) error {
		return &Error{Pass: pass, Name: name, Stage: stage, Phase: phase, Diagnostics: err.Error(), Err: err}
	}
	if source == "" {
		return nil, fail("parse", ErrEmptySource)
	}
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fail("parse", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fail("lower", err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fail("validate", err)
	}
	if len(verrs) > 0 {
		return nil, fail("validate", &verrs[0])
	}
	return module, nil
}

func buildStage(pass int, name string, stage ir.ShaderStage, src *ir.Module, opts Options) (*Stage, error) {
	module := *src
	module.EntryPoints = nil
	for _, ep := range src.EntryPoints {
		if ep.Stage == stage {
			module.EntryPoints = append(module.EntryPoints, ep)
		}
	}

	s := &Stage{Stage: stage, Module: &module, Globals: ReachableGlobals(&module)}
	if len(module.EntryPoints) != 1 {
		return s, nil
	}

	words, err := GenerateSPIRV(&module, opts.Debug)
	if err != nil {
		return nil, &Error{Pass: pass, Name: name, Stage: stage, Phase: "spirv", Diagnostics: err.Error(), Err: err}
	}
	s.SPIRV = words
	return s, nil
}

// GenerateSPIRV emits a SPIR-V 1.3 binary as little-endian words.
func GenerateSPIRV(module *ir.Module, debug bool) ([]uint32, error) {
	b, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3, Debug: debug})
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words, nil
}

// ReachableGlobals returns the globals referenced by the module's entry
// points or by any function they reach.
func ReachableGlobals(m *ir.Module) []ir.GlobalVariableHandle {
	seen := make(map[ir.FunctionHandle]bool)
	var queue []ir.FunctionHandle
	enqueue := func(fh ir.FunctionHandle) {
		if !seen[fh] {
			seen[fh] = true
			queue = append(queue, fh)
		}
	}

	globals := make(map[ir.GlobalVariableHandle]bool)
	visit := func(fn *ir.Function) {
		for _, expr := range fn.Expressions {
			switch k := expr.Kind.(type) {
			case ir.ExprGlobalVariable:
				globals[k.Variable] = true
			case ir.ExprCallResult:
				enqueue(k.Function)
			}
		}
		walkCalls(fn.Body, enqueue)
	}

	for i := range m.EntryPoints {
		visit(&m.EntryPoints[i].Function)
	}
	for len(queue) > 0 {
		fh := queue[0]
		queue = queue[1:]
		if int(fh) < len(m.Functions) {
			visit(&m.Functions[fh])
		}
	}

	out := make([]ir.GlobalVariableHandle, 0, len(globals))
	for h := range globals {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

func walkCalls(block ir.Block, fn func(ir.FunctionHandle)) {
	for _, st := range block {
		switch k := st.Kind.(type) {
		case ir.StmtCall:
			fn(k.Function)
		case ir.StmtBlock:
			walkCalls(k.Block, fn)
		case ir.StmtIf:
			walkCalls(k.Accept, fn)
			walkCalls(k.Reject, fn)
		case ir.StmtSwitch:
			for _, c := range k.Cases {
				walkCalls(c.Body, fn)
			}
		case ir.StmtLoop:
			walkCalls(k.Body, fn)
			walkCalls(k.Continuing, fn)
		}
	}
}
