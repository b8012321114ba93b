// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package recording is a CPU backend that keeps textures as images and
// records every draw.
//
// A Draw does not run the pass shader. It resamples the texture bound at the
// lowest binding into the target, so pixels flow through a chain the way a
// pass-through shader would move them. Draws are captured as Commands that
// tests and tools can inspect.
//
// The backend is not safe for concurrent use.
package recording

import (
	"fmt"
	"image"
	"maps"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"

	"github.com/gogpu/fxchain/backend"
	"github.com/gogpu/fxchain/binding"
	"github.com/gogpu/fxchain/codegen"
	"github.com/gogpu/fxchain/reflection"
	"github.com/gogpu/fxchain/render"
)

// Option configures a Backend.
type Option func(*Backend)

// WithTarget selects the shader dialect the backend asks the chain for.
// The default is codegen.SPIRV.
func WithTarget(t codegen.Target) Option {
	return func(b *Backend) { b.target = t }
}

// Backend is the recording backend.
type Backend struct {
	target   codegen.Target
	commands []Command
	textures int
	live     map[*Texture]struct{}
	failures map[int]error
	closed   bool
}

// New returns a recording backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		target:   codegen.SPIRV,
		live:     make(map[*Texture]struct{}),
		failures: make(map[int]error),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind returns backend.Recording.
func (b *Backend) Kind() backend.Kind { return backend.Recording }

// Target returns the configured shader dialect.
func (b *Backend) Target() codegen.Target { return b.target }

// FailPass makes every draw of pass fail with err. A nil err clears it.
func (b *Backend) FailPass(pass int, err error) {
	if err == nil {
		delete(b.failures, pass)
		return
	}
	b.failures[pass] = err
}

// Commands returns the draws recorded so far.
func (b *Backend) Commands() []Command { return b.commands }

// Reset forgets recorded draws.
func (b *Backend) Reset() { b.commands = b.commands[:0] }

// LiveTextures returns the number of textures created and not destroyed.
func (b *Backend) LiveTextures() int { return len(b.live) }

// Close releases every texture.
func (b *Backend) Close() {
	for t := range b.live {
		t.Destroy()
	}
	b.closed = true
}

// Texture is a CPU texture with one image per mip level.
type Texture struct {
	ID     int
	Label  string
	levels []*image.RGBA
	format gputypes.TextureFormat
	owner  *Backend
}

func (t *Texture) Width() uint32                  { return uint32(t.levels[0].Rect.Dx()) }
func (t *Texture) Height() uint32                 { return uint32(t.levels[0].Rect.Dy()) }
func (t *Texture) Format() gputypes.TextureFormat { return t.format }
func (t *Texture) MipLevels() uint32              { return uint32(len(t.levels)) }

// Image returns mip level 0.
func (t *Texture) Image() *image.RGBA { return t.levels[0] }

// Level returns mip level i.
func (t *Texture) Level(i int) *image.RGBA { return t.levels[i] }

// Destroy releases the texture.
func (t *Texture) Destroy() {
	if t.owner != nil {
		delete(t.owner.live, t)
	}
}

// NewTexture wraps img as a texture owned by b, for use as a chain input.
func (b *Backend) NewTexture(label string, img *image.RGBA) *Texture {
	b.textures++
	t := &Texture{
		ID:     b.textures,
		Label:  label,
		levels: []*image.RGBA{img},
		format: gputypes.TextureFormatRGBA8Unorm,
		owner:  b,
	}
	b.live[t] = struct{}{}
	return t
}

// CreateTexture implements render.Device.
func (b *Backend) CreateTexture(desc render.TextureDescriptor) (render.Texture, error) {
	if b.closed {
		return nil, backend.ErrClosed
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("recording: texture %q: zero size", desc.Label)
	}
	levels := max(desc.MipLevelCount, 1)
	b.textures++
	t := &Texture{ID: b.textures, Label: desc.Label, format: desc.Format, owner: b}
	w, h := int(desc.Width), int(desc.Height)
	for range levels {
		t.levels = append(t.levels, image.NewRGBA(image.Rect(0, 0, w, h)))
		w, h = max(w/2, 1), max(h/2, 1)
	}
	b.live[t] = struct{}{}
	return t, nil
}

func (b *Backend) own(tex render.Texture) (*Texture, error) {
	t, ok := tex.(*Texture)
	if !ok || t.owner != b {
		return nil, render.ErrForeignTexture
	}
	return t, nil
}

// WriteTexture implements render.Device.
func (b *Backend) WriteTexture(dst render.Texture, img *image.RGBA) error {
	t, err := b.own(dst)
	if err != nil {
		return err
	}
	if !img.Rect.Size().Eq(t.levels[0].Rect.Size()) {
		return fmt.Errorf("recording: write %v into %dx%d texture", img.Rect.Size(), t.Width(), t.Height())
	}
	draw.Copy(t.levels[0], image.Point{}, img, img.Rect, draw.Src, nil)
	return nil
}

// CopyTexture implements render.Device.
func (b *Backend) CopyTexture(dst, src render.Texture) error {
	d, err := b.own(dst)
	if err != nil {
		return err
	}
	s, err := b.own(src)
	if err != nil {
		return err
	}
	return b.WriteTexture(d, s.levels[0])
}

// GenerateMipmaps implements render.Device with a box filter.
func (b *Backend) GenerateMipmaps(tex render.Texture) error {
	t, err := b.own(tex)
	if err != nil {
		return err
	}
	for i := 1; i < len(t.levels); i++ {
		dst := t.levels[i]
		scaled := imaging.Resize(t.levels[0], dst.Rect.Dx(), dst.Rect.Dy(), imaging.Box)
		draw.Copy(dst, image.Point{}, scaled, scaled.Rect, draw.Src, nil)
	}
	return nil
}

// Bound is a texture bound for a draw.
type Bound struct {
	Name      string
	TextureID int
	Label     string
	Width     uint32
	Height    uint32
	Filter    gputypes.FilterMode
	Wrap      gputypes.AddressMode
}

// Command is one recorded draw.
type Command struct {
	Pass     int
	Program  string
	TargetID int
	Target   string
	Width    uint32
	Height   uint32
	UBO      []byte
	Push     []byte
	// Textures maps bindings to the textures bound at draw time.
	Textures map[uint32]Bound
}

// Program records texture bindings and draws.
type Program struct {
	owner  *Backend
	label  string
	pass   int
	refl   *reflection.ShaderReflection
	output *codegen.Output
	bound  map[uint32]binding.InputTexture
	names  map[uint32]string
}

// NewProgram implements backend.Backend.
func (b *Backend) NewProgram(desc backend.ProgramDescriptor) (backend.Program, error) {
	if b.closed {
		return nil, backend.ErrClosed
	}
	if err := desc.Validate(b.target); err != nil {
		return nil, err
	}
	return &Program{
		owner:  b,
		label:  desc.Label,
		pass:   desc.Pass,
		refl:   desc.Reflection,
		output: desc.Output,
		bound:  make(map[uint32]binding.InputTexture),
		names:  make(map[uint32]string),
	}, nil
}

// Output returns the generated program the pipeline was built from.
func (p *Program) Output() *codegen.Output { return p.output }

// BindTexture implements binding.TextureBinder.
func (p *Program) BindTexture(b reflection.TextureBinding, tex binding.InputTexture) error {
	if _, err := p.owner.own(tex.Texture); err != nil {
		return fmt.Errorf("recording: bind %s: %w", b.Name, err)
	}
	p.bound[b.Binding] = tex
	p.names[b.Binding] = b.Name
	return nil
}

// Draw implements backend.Program.
func (p *Program) Draw(call backend.DrawCall) error {
	defer clear(p.bound)
	if err := p.owner.failures[p.pass]; err != nil {
		return err
	}
	target, err := p.owner.own(call.Target)
	if err != nil {
		return fmt.Errorf("recording: pass %d target: %w", p.pass, err)
	}

	cmd := Command{
		Pass:     p.pass,
		Program:  p.label,
		TargetID: target.ID,
		Target:   target.Label,
		Width:    target.Width(),
		Height:   target.Height(),
		UBO:      slices.Clone(call.UBO),
		Push:     slices.Clone(call.Push),
		Textures: make(map[uint32]Bound, len(p.bound)),
	}
	for slot, tex := range p.bound {
		t := tex.Texture.(*Texture)
		cmd.Textures[slot] = Bound{
			Name:      p.names[slot],
			TextureID: t.ID,
			Label:     t.Label,
			Width:     t.Width(),
			Height:    t.Height(),
			Filter:    tex.Filter,
			Wrap:      tex.Wrap,
		}
	}
	p.owner.commands = append(p.owner.commands, cmd)

	slots := slices.Sorted(maps.Keys(p.bound))
	if len(slots) == 0 {
		return nil
	}
	src := p.bound[slots[0]]
	filter := imaging.Linear
	if src.Filter == gputypes.FilterModeNearest {
		filter = imaging.NearestNeighbor
	}
	scaled := imaging.Resize(src.Texture.(*Texture).Image(), int(cmd.Width), int(cmd.Height), filter)
	draw.Copy(target.levels[0], image.Point{}, scaled, scaled.Rect, draw.Src, nil)
	return nil
}

// Destroy implements backend.Program.
func (p *Program) Destroy() { clear(p.bound) }

var (
	_ backend.Backend = (*Backend)(nil)
	_ backend.Program = (*Program)(nil)
)
