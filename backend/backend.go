package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/fxchain/binding"
	"github.com/gogpu/fxchain/codegen"
	"github.com/gogpu/fxchain/reflection"
	"github.com/gogpu/fxchain/render"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend cannot run
	// on the provided device.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("backend: closed")

	// ErrUnsupported is returned for programs that use a feature the backend
	// does not implement.
	ErrUnsupported = errors.New("backend: unsupported feature")

	// ErrTargetMismatch is returned when a program was generated for a
	// different target than the backend consumes.
	ErrTargetMismatch = errors.New("backend: program target mismatch")
)

// Kind names a backend implementation.
type Kind uint8

const (
	// Recording is the CPU backend that records every draw.
	Recording Kind = iota
	// WGPU renders through a gogpu/wgpu HAL device.
	WGPU
)

var kindNames = [...]string{
	Recording: "recording",
	WGPU:      "wgpu",
}

// Kinds returns every backend kind.
func Kinds() []Kind { return []Kind{Recording, WGPU} }

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind parses a backend name as printed by String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBackendNotAvailable, s)
}

// Backend turns generated programs into draws.
//
// A Backend is used from one goroutine at a time.
type Backend interface {
	render.Device

	// Kind returns the backend implementation.
	Kind() Kind

	// Target returns the shader dialect the backend consumes.
	Target() codegen.Target

	// NewProgram builds a pipeline for one pass.
	NewProgram(desc ProgramDescriptor) (Program, error)

	// Close releases all backend resources.
	Close()
}

// ProgramDescriptor describes the pipeline of one pass.
type ProgramDescriptor struct {
	Label      string
	Pass       int
	Output     *codegen.Output
	Reflection *reflection.ShaderReflection
	// Format is the format of the textures the program renders to.
	Format gputypes.TextureFormat
}

// Validate checks the descriptor against the backend target.
func (d *ProgramDescriptor) Validate(target codegen.Target) error {
	if d.Output == nil || d.Reflection == nil {
		return fmt.Errorf("backend: pass %d: program without output or reflection", d.Pass)
	}
	if d.Output.Target != target {
		return fmt.Errorf("%w: pass %d is %s, backend consumes %s", ErrTargetMismatch, d.Pass, d.Output.Target, target)
	}
	return nil
}

// Program is the pipeline of one pass. Textures are bound through
// BindTexture before each Draw. A Program may also implement
// binding.UniformBinder.
type Program interface {
	binding.TextureBinder

	// Draw renders a full-screen triangle into call.Target.
	Draw(call DrawCall) error

	// Destroy releases the pipeline.
	Destroy()
}

// DrawCall is one pass execution.
type DrawCall struct {
	Pass   int
	Target render.Texture
	// UBO and Push are the uniform bytes written by the binding engine.
	UBO  []byte
	Push []byte
}

// Hooks returns the binding hooks of p.
func Hooks(p Program) binding.Hooks {
	h := binding.Hooks{Textures: p}
	if u, ok := p.(binding.UniformBinder); ok {
		h.Uniforms = u
	}
	return h
}
