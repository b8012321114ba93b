// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package spirv decodes and re-encodes SPIR-V binaries at the instruction
// level. It understands only the opcodes needed to rewrite stage interfaces.
package spirv

import (
	"errors"
	"fmt"
)

// Magic is the SPIR-V magic number in host word order.
const Magic = 0x07230203

// HeaderWords is the number of words in the module header.
const HeaderWords = 5

// Opcodes used by the linker.
const (
	OpName                = 5
	OpMemberName          = 6
	OpEntryPoint          = 15
	OpTypeStruct          = 30
	OpTypePointer         = 32
	OpFunction            = 54
	OpFunctionEnd         = 56
	OpFunctionCall        = 57
	OpVariable            = 59
	OpLoad                = 61
	OpStore               = 62
	OpAccessChain         = 65
	OpInBoundsAccessChain = 66
	OpDecorate            = 71
	OpMemberDecorate      = 72
	OpCompositeConstruct  = 80
	OpCompositeExtract    = 81
	OpCompositeInsert     = 82
	OpCopyObject          = 83
)

// StorageClass values.
const (
	StorageClassUniformConstant = 0
	StorageClassInput           = 1
	StorageClassUniform         = 2
	StorageClassOutput          = 3
	StorageClassPrivate         = 6
	StorageClassFunction        = 7
	StorageClassPushConstant    = 9
)

// Decoration values.
const (
	DecorationBuiltIn  = 11
	DecorationLocation = 30
	DecorationBinding  = 33
	DecorationSet      = 34
)

// Execution models.
const (
	ExecutionModelVertex   = 0
	ExecutionModelFragment = 4
)

var (
	// ErrInvalidModule is returned for binaries that are not SPIR-V.
	ErrInvalidModule = errors.New("spirv: invalid module")
)

// Instruction is one decoded instruction.
type Instruction struct {
	Opcode   uint16
	Operands []uint32
}

// Module is a decoded SPIR-V binary.
type Module struct {
	Header       [HeaderWords]uint32
	Instructions []Instruction
}

// Parse decodes a SPIR-V word stream.
func Parse(words []uint32) (*Module, error) {
	if len(words) < HeaderWords {
		return nil, fmt.Errorf("%w: %d words", ErrInvalidModule, len(words))
	}
	if words[0] != Magic {
		return nil, fmt.Errorf("%w: magic %#08x", ErrInvalidModule, words[0])
	}
	m := &Module{}
	copy(m.Header[:], words[:HeaderWords])

	for pos := HeaderWords; pos < len(words); {
		count := int(words[pos] >> 16)
		op := uint16(words[pos] & 0xffff)
		if count == 0 || pos+count > len(words) {
			return nil, fmt.Errorf("%w: bad instruction length %d at word %d", ErrInvalidModule, count, pos)
		}
		operands := make([]uint32, count-1)
		copy(operands, words[pos+1:pos+count])
		m.Instructions = append(m.Instructions, Instruction{Opcode: op, Operands: operands})
		pos += count
	}
	return m, nil
}

// Words encodes the module.
func (m *Module) Words() []uint32 {
	n := HeaderWords
	for _, inst := range m.Instructions {
		n += 1 + len(inst.Operands)
	}
	out := make([]uint32, 0, n)
	out = append(out, m.Header[:]...)
	for _, inst := range m.Instructions {
		out = append(out, uint32(len(inst.Operands)+1)<<16|uint32(inst.Opcode))
		out = append(out, inst.Operands...)
	}
	return out
}

// Bound returns the id bound from the header.
func (m *Module) Bound() uint32 { return m.Header[3] }

// NewID allocates a fresh result id.
func (m *Module) NewID() uint32 {
	id := m.Header[3]
	m.Header[3]++
	return id
}

// NewModule returns an empty module with a SPIR-V 1.3 header.
func NewModule(bound uint32) *Module {
	return &Module{Header: [HeaderWords]uint32{Magic, 0x00010300, 0, bound, 0}}
}

// String packs s into a null-terminated little-endian literal.
func String(s string) []uint32 {
	b := append([]byte(s), 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return out
}

// DecodeString reads a literal string from the start of words and returns
// it with the number of words it occupies.
func DecodeString(words []uint32) (string, int) {
	var b []byte
	for i, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(b), i + 1
			}
			b = append(b, c)
		}
	}
	return string(b), len(words)
}

// EntryPoint is a decoded OpEntryPoint.
type EntryPoint struct {
	Index          int
	ExecutionModel uint32
	Function       uint32
	Name           string
	// InterfaceStart is the operand index of the first interface id.
	InterfaceStart int
}

// Interface returns the interface ids of the entry point.
func (e EntryPoint) Interface(m *Module) []uint32 {
	return m.Instructions[e.Index].Operands[e.InterfaceStart:]
}

// EntryPoints returns every OpEntryPoint in module order.
func (m *Module) EntryPoints() []EntryPoint {
	var eps []EntryPoint
	for i, inst := range m.Instructions {
		if inst.Opcode != OpEntryPoint || len(inst.Operands) < 3 {
			continue
		}
		name, n := DecodeString(inst.Operands[2:])
		eps = append(eps, EntryPoint{
			Index:          i,
			ExecutionModel: inst.Operands[0],
			Function:       inst.Operands[1],
			Name:           name,
			InterfaceStart: 2 + n,
		})
	}
	return eps
}

// ResultID returns the result id defined by inst, if the opcode is one this
// package knows to define an id.
func ResultID(inst Instruction) (uint32, bool) {
	switch inst.Opcode {
	case OpTypePointer, OpTypeStruct:
		if len(inst.Operands) < 1 {
			return 0, false
		}
		return inst.Operands[0], true
	case OpFunction, OpFunctionCall, OpVariable, OpLoad, OpAccessChain, OpInBoundsAccessChain,
		OpCompositeConstruct, OpCompositeExtract, OpCompositeInsert, OpCopyObject:
		if len(inst.Operands) < 2 {
			return 0, false
		}
		return inst.Operands[1], true
	}
	return 0, false
}
