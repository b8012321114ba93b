// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package binding

import (
	"github.com/gogpu/fxchain/reflection"
)

// Storage is the host-side backing store of a pass's uniform buffer and push
// constant block.
type Storage struct {
	ubo  []byte
	push []byte
	buf  []byte
}

// NewStorage allocates storage sized for refl.
func NewStorage(refl *reflection.ShaderReflection) *Storage {
	s := &Storage{buf: make([]byte, 0, 64)}
	if refl.UBO != nil {
		s.ubo = make([]byte, refl.UBO.Size)
	}
	if refl.PushConstant != nil {
		s.push = make([]byte, refl.PushConstant.Size)
	}
	return s
}

// UBO returns the uniform buffer bytes.
func (s *Storage) UBO() []byte { return s.ubo }

// Push returns the push constant bytes.
func (s *Storage) Push() []byte { return s.push }

// Write encodes v at every block offset set in off. Bytes outside
// [offset, offset+v.Len()) are never touched.
func (s *Storage) Write(off reflection.MemberOffset, v Value) {
	s.buf = v.AppendBytes(s.buf[:0])
	if off.InUBO {
		writeAt(s.ubo, off.UBO, s.buf)
	}
	if off.InPush {
		writeAt(s.push, off.Push, s.buf)
	}
}

func writeAt(dst []byte, off uint32, src []byte) {
	if int(off) >= len(dst) {
		return
	}
	copy(dst[off:], src)
}
