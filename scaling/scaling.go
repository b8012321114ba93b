// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package scaling computes framebuffer sizes, formats and mip requirements
// for every pass of a chain.
package scaling

import (
	"fmt"
	"math/bits"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
)

// ScaleType selects what a scale factor multiplies.
type ScaleType uint8

const (
	// Input scales the output of the previous pass.
	Input ScaleType = iota
	// Absolute uses a fixed size in pixels.
	Absolute
	// Viewport scales the final viewport.
	Viewport
	// Original scales the chain input.
	Original
)

var scaleTypeNames = [...]string{Input: "input", Absolute: "absolute", Viewport: "viewport", Original: "original"}

func (t ScaleType) String() string {
	if int(t) < len(scaleTypeNames) {
		return scaleTypeNames[t]
	}
	return fmt.Sprintf("ScaleType(%d)", t)
}

// ParseScaleType parses the lower-case name of a scale type.
func ParseScaleType(s string) (ScaleType, error) {
	for i, n := range scaleTypeNames {
		if n == s {
			return ScaleType(i), nil
		}
	}
	return 0, fmt.Errorf("scaling: unknown scale type %q", s)
}

// Axis is the scale rule of one axis.
type Axis struct {
	Type ScaleType
	// Factor multiplies the reference size. Zero means 1.
	Factor float32
	// Absolute is the size in pixels when Type is Absolute.
	Absolute uint32
}

func (a Axis) factor() float32 {
	if a.Factor == 0 {
		return 1
	}
	return a.Factor
}

// Rule holds the scale rules of both axes.
type Rule struct {
	X, Y Axis
}

// Uniform returns a rule applying the same type and factor to both axes.
func Uniform(t ScaleType, factor float32) Rule {
	a := Axis{Type: t, Factor: factor}
	return Rule{X: a, Y: a}
}

// Size is a framebuffer size in pixels.
type Size struct {
	Width, Height uint32
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Scale computes one axis of an output size. The result is rounded to the
// nearest integer and is never less than 1.
func Scale(a Axis, source, viewport, original uint32) uint32 {
	var ref uint32
	switch a.Type {
	case Absolute:
		return max(a.Absolute, 1)
	case Viewport:
		ref = viewport
	case Original:
		ref = original
	default:
		ref = source
	}
	v := math32.Round(float32(ref) * a.factor())
	if v < 1 {
		return 1
	}
	return uint32(v)
}

// Apply computes an output size from both axis rules.
func (r Rule) Apply(source, viewport, original Size) Size {
	return Size{
		Width:  Scale(r.X, source.Width, viewport.Width, original.Width),
		Height: Scale(r.Y, source.Height, viewport.Height, original.Height),
	}
}

// Pass is the scaling configuration of one pass.
type Pass struct {
	Rule        Rule
	MipmapInput bool
	Float       bool
	SRGB        bool
	// Format is the format declared by the shader, Undefined if none.
	Format gputypes.TextureFormat
}

// Target is the planned framebuffer of one pass.
type Target struct {
	Size   Size
	Format gputypes.TextureFormat
	// MipLevels is 1 unless the next pass samples this output with mipmaps.
	MipLevels uint32
	// FeedbackSize is the size of the feedback framebuffer.
	FeedbackSize Size
}

// Plan computes framebuffer targets for passes. The running source size
// starts at original and advances to each pass's output size.
func Plan(passes []Pass, original, viewport Size, input gputypes.TextureFormat) []Target {
	targets := make([]Target, len(passes))
	source := original
	for i, p := range passes {
		size := p.Rule.Apply(source, viewport, original)
		t := Target{
			Size:         size,
			Format:       Format(p, input),
			MipLevels:    1,
			FeedbackSize: p.Rule.Apply(source, viewport, original),
		}
		if i+1 < len(passes) && passes[i+1].MipmapInput {
			t.MipLevels = MipLevels(size)
		}
		targets[i] = t
		source = size
	}
	return targets
}

// Format picks the framebuffer format of a pass. Float wins over sRGB, and
// a declared shader format wins over the input format.
func Format(p Pass, input gputypes.TextureFormat) gputypes.TextureFormat {
	switch {
	case p.Float:
		return gputypes.TextureFormatRGBA16Float
	case p.SRGB:
		return gputypes.TextureFormatRGBA8UnormSrgb
	case p.Format != gputypes.TextureFormatUndefined:
		return p.Format
	case input != gputypes.TextureFormatUndefined:
		return input
	}
	return gputypes.TextureFormatRGBA8Unorm
}

// MipLevels returns the length of a full mip chain for size.
func MipLevels(size Size) uint32 {
	m := max(size.Width, size.Height)
	if m == 0 {
		return 1
	}
	return uint32(bits.Len32(m))
}
