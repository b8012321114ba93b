// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package semantics

import (
	"fmt"
	"strconv"
	"strings"
)

// UniqueSemantic is a uniform role that exists at most once per pass.
type UniqueSemantic uint8

const (
	// MVP is the model-view-projection matrix (mat4x4<f32>).
	MVP UniqueSemantic = iota
	// Output is the size of the pass render target (vec4<f32>).
	Output
	// FinalViewport is the size of the final viewport (vec4<f32>).
	FinalViewport
	// FrameCount is the frame counter, after FrameCountMod (u32).
	FrameCount
	// FrameDirection is 1 for forward playback, -1 for rewind (i32).
	FrameDirection
	// Rotation is the number of 90 degree rotations of the viewport (u32).
	Rotation
	// TotalSubFrames is the number of sub-frames per frame (u32).
	TotalSubFrames
	// CurrentSubFrame is the index of the current sub-frame (u32).
	CurrentSubFrame
	// FloatParameter is a user parameter declared by the preset (f32).
	FloatParameter
)

var uniqueNames = [...]string{
	MVP:             "MVP",
	Output:          "OutputSize",
	FinalViewport:   "FinalViewportSize",
	FrameCount:      "FrameCount",
	FrameDirection:  "FrameDirection",
	Rotation:        "Rotation",
	TotalSubFrames:  "TotalSubFrames",
	CurrentSubFrame: "CurrentSubFrame",
	FloatParameter:  "FloatParameter",
}

// BuiltinUniques lists the unique semantics that are not parameters, in
// binding order.
var BuiltinUniques = []UniqueSemantic{
	MVP, Output, FinalViewport, FrameCount, FrameDirection, Rotation, TotalSubFrames, CurrentSubFrame,
}

// String returns the uniform member name bound to the semantic.
func (s UniqueSemantic) String() string {
	if int(s) < len(uniqueNames) {
		return uniqueNames[s]
	}
	return "UniqueSemantic(" + strconv.Itoa(int(s)) + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (s UniqueSemantic) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TextureSemantic is the role of a sampled texture.
type TextureSemantic uint8

const (
	// Original is the input of the first pass.
	Original TextureSemantic = iota
	// Source is the input of the current pass.
	Source
	// OriginalHistory is the chain input from Index frames ago.
	OriginalHistory
	// PassOutput is the output of pass Index in this frame.
	PassOutput
	// PassFeedback is the output of pass Index in the previous frame.
	PassFeedback
	// User is the lookup texture with index Index.
	User
)

var textureNames = [...]string{
	Original:        "Original",
	Source:          "Source",
	OriginalHistory: "OriginalHistory",
	PassOutput:      "PassOutput",
	PassFeedback:    "PassFeedback",
	User:            "User",
}

// TextureSemantics lists every texture semantic in binding order.
var TextureSemantics = []TextureSemantic{Original, Source, OriginalHistory, PassOutput, PassFeedback, User}

func (s TextureSemantic) String() string {
	if int(s) < len(textureNames) {
		return textureNames[s]
	}
	return "TextureSemantic(" + strconv.Itoa(int(s)) + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (s TextureSemantic) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Indexed reports whether the semantic is an array addressed by index.
func (s TextureSemantic) Indexed() bool {
	return s != Original && s != Source
}

// TextureName returns the builtin texture name, e.g. "PassOutput2".
func (s TextureSemantic) TextureName(index int) string {
	if !s.Indexed() {
		return s.String()
	}
	return s.String() + strconv.Itoa(index)
}

// SizeName returns the builtin size uniform name, e.g. "PassOutputSize2".
func (s TextureSemantic) SizeName(index int) string {
	if !s.Indexed() {
		return s.String() + "Size"
	}
	return s.String() + "Size" + strconv.Itoa(index)
}

// Semantic pairs a semantic with its array index.
type Semantic[T UniqueSemantic | TextureSemantic] struct {
	Semantics T
	Index     int
}

func (s Semantic[T]) uniformSemantic() {}

// String returns the semantic followed by its index, e.g. "PassOutput[1]".
func (s Semantic[T]) String() string {
	return fmt.Sprintf("%v[%d]", s.Semantics, s.Index)
}

// MarshalText implements encoding.TextMarshaler so semantics can key JSON
// objects.
func (s Semantic[T]) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UniformSemantic is either a Semantic[UniqueSemantic] or a
// Semantic[TextureSemantic] naming the size companion of a texture.
type UniformSemantic interface {
	uniformSemantic()
}

// Texture returns a texture semantic with the given index.
func Texture(s TextureSemantic, index int) Semantic[TextureSemantic] {
	return Semantic[TextureSemantic]{Semantics: s, Index: index}
}

// Unique returns a unique semantic.
func Unique(s UniqueSemantic) Semantic[UniqueSemantic] {
	return Semantic[UniqueSemantic]{Semantics: s}
}

// parseBuiltinUniform resolves names that are valid in every preset.
func parseBuiltinUniform(name string) (UniformSemantic, bool) {
	for _, u := range BuiltinUniques {
		if name == u.String() {
			return Unique(u), true
		}
	}
	for _, t := range TextureSemantics {
		prefix := t.String() + "Size"
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := name[len(prefix):]
		if !t.Indexed() {
			if rest == "" {
				return Texture(t, 0), true
			}
			continue
		}
		if idx, ok := parseIndex(rest); ok {
			return Texture(t, idx), true
		}
	}
	return nil, false
}

// parseBuiltinTexture resolves texture names that are valid in every preset.
func parseBuiltinTexture(name string) (Semantic[TextureSemantic], bool) {
	for _, t := range TextureSemantics {
		if !t.Indexed() {
			if name == t.String() {
				return Texture(t, 0), true
			}
			continue
		}
		if rest, ok := strings.CutPrefix(name, t.String()); ok {
			if idx, ok := parseIndex(rest); ok {
				return Texture(t, idx), true
			}
		}
	}
	return Semantic[TextureSemantic]{}, false
}

func parseIndex(s string) (int, bool) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
