// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package semantics

import (
	"strings"

	"github.com/gogpu/gputypes"
)

// BindingStage is a set of shader stages that reference a resource.
type BindingStage uint8

const (
	StageVertex BindingStage = 1 << iota
	StageFragment

	StageNone BindingStage = 0
)

// Has reports whether all stages in o are set in s.
func (s BindingStage) Has(o BindingStage) bool { return s&o == o }

// Visibility converts the set to WebGPU shader stage flags.
func (s BindingStage) Visibility() gputypes.ShaderStage {
	var v gputypes.ShaderStage
	if s.Has(StageVertex) {
		v |= gputypes.ShaderStageVertex
	}
	if s.Has(StageFragment) {
		v |= gputypes.ShaderStageFragment
	}
	return v
}

func (s BindingStage) String() string {
	if s == StageNone {
		return "none"
	}
	var parts []string
	if s.Has(StageVertex) {
		parts = append(parts, "vertex")
	}
	if s.Has(StageFragment) {
		parts = append(parts, "fragment")
	}
	return strings.Join(parts, "|")
}

// MarshalText implements encoding.TextMarshaler.
func (s BindingStage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
