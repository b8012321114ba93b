// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package binding

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/fxchain/reflection"
	"github.com/gogpu/fxchain/semantics"
)

// UniformBinding identifies what a uniform step writes. It is one of
// ParameterBinding, SemanticBinding or TextureSizeBinding.
type UniformBinding interface {
	fmt.Stringer
	uniformBinding()
}

// ParameterBinding is a user parameter.
type ParameterBinding struct {
	Name string
}

// SemanticBinding is a builtin uniform such as MVP or FrameCount.
type SemanticBinding struct {
	Semantic semantics.UniqueSemantic
}

// TextureSizeBinding is the size uniform of a texture semantic.
type TextureSizeBinding struct {
	Semantic reflection.TextureKey
}

func (ParameterBinding) uniformBinding()   {}
func (SemanticBinding) uniformBinding()    {}
func (TextureSizeBinding) uniformBinding() {}

func (b ParameterBinding) String() string   { return "parameter " + b.Name }
func (b SemanticBinding) String() string    { return b.Semantic.String() }
func (b TextureSizeBinding) String() string { return b.Semantic.String() + " size" }

// UniformLocation is where a uniform lives, handed to a UniformBinder.
type UniformLocation struct {
	Binding UniformBinding
	Name    string
	Offset  reflection.MemberOffset
	Stage   semantics.BindingStage
}

// ValueKind is the shape of a Value.
type ValueKind uint8

const (
	KindFloat ValueKind = iota
	KindUint
	KindInt
	KindVec4
	KindMat4
)

// Value is a uniform value. Only the field selected by Kind is meaningful.
type Value struct {
	Kind  ValueKind
	Float float32
	Uint  uint32
	Int   int32
	Vec4  [4]float32
	Mat4  [16]float32
}

// Float returns a float value.
func Float(v float32) Value { return Value{Kind: KindFloat, Float: v} }

// Uint returns an unsigned integer value.
func Uint(v uint32) Value { return Value{Kind: KindUint, Uint: v} }

// Int returns a signed integer value.
func Int(v int32) Value { return Value{Kind: KindInt, Int: v} }

// Vec4 returns a four component vector value.
func Vec4(x, y, z, w float32) Value { return Value{Kind: KindVec4, Vec4: [4]float32{x, y, z, w}} }

// Mat4 returns a matrix value.
func Mat4(m [16]float32) Value { return Value{Kind: KindMat4, Mat4: m} }

// Size returns a size vector [w, h, 0, 0].
func Size(width, height uint32) Value {
	return Vec4(float32(width), float32(height), 0, 0)
}

// Len returns the encoded size in bytes.
func (v Value) Len() int {
	switch v.Kind {
	case KindVec4:
		return 16
	case KindMat4:
		return 64
	}
	return 4
}

// AppendBytes appends the little-endian encoding of v to b.
func (v Value) AppendBytes(b []byte) []byte {
	le := binary.LittleEndian
	switch v.Kind {
	case KindFloat:
		return le.AppendUint32(b, math.Float32bits(v.Float))
	case KindUint:
		return le.AppendUint32(b, v.Uint)
	case KindInt:
		return le.AppendUint32(b, uint32(v.Int))
	case KindVec4:
		for _, f := range v.Vec4 {
			b = le.AppendUint32(b, math.Float32bits(f))
		}
	case KindMat4:
		for _, f := range v.Mat4 {
			b = le.AppendUint32(b, math.Float32bits(f))
		}
	}
	return b
}
