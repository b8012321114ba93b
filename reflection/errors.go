// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package reflection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/fxchain/semantics"
)

// Reflection errors. *Error values match these through errors.Is.
var (
	ErrInvalidUniformBufferCount = errors.New("reflection: more than one uniform buffer")
	ErrInvalidPushBufferCount    = errors.New("reflection: more than one push constant block")
	ErrInvalidDescriptorSet      = errors.New("reflection: resource outside bind group 0")
	ErrInvalidEntryPointCount    = errors.New("reflection: stage must have exactly one entry point")
	ErrUnknownSemantics          = errors.New("reflection: unknown semantic")
	ErrInvalidTypeForSemantic    = errors.New("reflection: invalid type for semantic")
	ErrMismatchedUniformBuffer   = errors.New("reflection: uniform buffer binding differs between stages")
	ErrMismatchedOffset          = errors.New("reflection: member offset differs between stages")
	ErrMismatchedSize            = errors.New("reflection: member size differs between stages")
	ErrBindingInUse              = errors.New("reflection: binding already in use")
	ErrMismatchedTextureBinding  = errors.New("reflection: texture binding differs between stages")
	ErrNonCausalFilterChain      = errors.New("reflection: pass references a later pass")
)

// ErrorKind classifies an Error.
type ErrorKind uint8

const (
	InvalidUniformBufferCount ErrorKind = iota + 1
	InvalidPushBufferCount
	InvalidDescriptorSet
	InvalidEntryPointCount
	UnknownSemantics
	InvalidTypeForSemantic
	MismatchedUniformBuffer
	MismatchedOffset
	MismatchedSize
	BindingInUse
	MismatchedTextureBinding
	NonCausalFilterChain
)

var kindErrors = map[ErrorKind]error{
	InvalidUniformBufferCount: ErrInvalidUniformBufferCount,
	InvalidPushBufferCount:    ErrInvalidPushBufferCount,
	InvalidDescriptorSet:      ErrInvalidDescriptorSet,
	InvalidEntryPointCount:    ErrInvalidEntryPointCount,
	UnknownSemantics:          ErrUnknownSemantics,
	InvalidTypeForSemantic:    ErrInvalidTypeForSemantic,
	MismatchedUniformBuffer:   ErrMismatchedUniformBuffer,
	MismatchedOffset:          ErrMismatchedOffset,
	MismatchedSize:            ErrMismatchedSize,
	BindingInUse:              ErrBindingInUse,
	MismatchedTextureBinding:  ErrMismatchedTextureBinding,
	NonCausalFilterChain:      ErrNonCausalFilterChain,
}

// Block names the constant block a member lives in.
type Block uint8

const (
	BlockNone Block = iota
	BlockUBO
	BlockPush
)

func (b Block) String() string {
	switch b {
	case BlockUBO:
		return "ubo"
	case BlockPush:
		return "push"
	}
	return ""
}

// Error is a reflection failure with enough context to locate the faulting
// pass, stage and member.
type Error struct {
	Kind  ErrorKind
	Pass  int
	Stage semantics.BindingStage
	// Name is the member, texture or sampler name involved.
	Name  string
	Block Block
	// Expected and Received carry offsets, sizes, bindings or counts
	// depending on Kind.
	Expected uint32
	Received uint32
	// Target is the referenced pass index for NonCausalFilterChain.
	Target int
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(kindErrors[e.Kind].Error())
	fmt.Fprintf(&b, ": pass %d", e.Pass)
	if e.Stage != semantics.StageNone {
		fmt.Fprintf(&b, " %s stage", e.Stage)
	}
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	if e.Block != BlockNone {
		fmt.Fprintf(&b, " in %s", e.Block)
	}
	switch e.Kind {
	case MismatchedOffset, MismatchedSize, MismatchedUniformBuffer, MismatchedTextureBinding:
		fmt.Fprintf(&b, ": expected %d, received %d", e.Expected, e.Received)
	case InvalidDescriptorSet:
		fmt.Fprintf(&b, ": group %d", e.Received)
	case InvalidEntryPointCount, InvalidUniformBufferCount, InvalidPushBufferCount:
		fmt.Fprintf(&b, ": found %d", e.Received)
	case BindingInUse:
		fmt.Fprintf(&b, ": binding %d", e.Received)
	case NonCausalFilterChain:
		fmt.Fprintf(&b, ": target pass %d", e.Target)
	}
	return b.String()
}

// Unwrap returns the sentinel error for the kind.
func (e *Error) Unwrap() error { return kindErrors[e.Kind] }
