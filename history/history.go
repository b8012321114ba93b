// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package history keeps previous chain inputs and previous pass outputs
// alive across frames.
package history

import (
	"fmt"

	"github.com/gogpu/fxchain/reflection"
	"github.com/gogpu/fxchain/render"
	"github.com/gogpu/fxchain/scaling"
	"github.com/gogpu/fxchain/semantics"
)

// Depth returns the number of input frames the passes read: the highest
// OriginalHistory index referenced by a texture or size uniform, plus one.
// Depth is 1 when no pass reads history.
func Depth(refls []*reflection.ShaderReflection) int {
	depth := 1
	for _, r := range refls {
		depth = max(depth, r.MaxIndex(semantics.OriginalHistory)+1)
	}
	return depth
}

// Ring holds the depth-1 previous inputs. The current input is OriginalHistory0
// and is never stored.
type Ring struct {
	slots []*render.Framebuffer
	// spare receives the next input and replaces the oldest slot once the
	// copy succeeded.
	spare *render.Framebuffer
	// head is the slot holding the input one frame ago.
	head int
	// filled counts slots holding a recorded frame.
	filled int
}

// NewRing returns a ring for the given depth.
func NewRing(depth int) *Ring {
	r := &Ring{}
	for i := range max(depth-1, 0) {
		r.slots = append(r.slots, render.NewFramebuffer(fmt.Sprintf("history %d", i+1)))
	}
	if len(r.slots) > 0 {
		r.spare = render.NewFramebuffer("history spare")
	}
	return r
}

// Depth returns the depth the ring was created with.
func (r *Ring) Depth() int { return len(r.slots) + 1 }

// Get returns the input j frames ago. It returns false for j == 0, for j
// beyond the ring and for frames not yet recorded; callers use the current
// input in that case.
func (r *Ring) Get(j int) (render.Texture, bool) {
	if j <= 0 || j > len(r.slots) || j > r.filled {
		return nil, false
	}
	return r.slots[(r.head+j-1)%len(r.slots)].Texture(), true
}

// Push records input as the newest frame. The input is copied into a spare
// framebuffer that then takes the place of the oldest slot, so a failed
// push leaves the recorded frames as they were. Framebuffers are
// reallocated only when the input size or format differs.
func (r *Ring) Push(dev render.Device, input render.Texture) error {
	if len(r.slots) == 0 {
		return nil
	}
	size := scaling.Size{Width: input.Width(), Height: input.Height()}
	if _, err := r.spare.Scale(dev, size, input.Format(), 1); err != nil {
		return err
	}
	if err := dev.CopyTexture(r.spare.Texture(), input); err != nil {
		return fmt.Errorf("history: copy input: %w", err)
	}
	oldest := (r.head + len(r.slots) - 1) % len(r.slots)
	r.slots[oldest], r.spare = r.spare, r.slots[oldest]
	r.head = oldest
	r.filled = min(r.filled+1, len(r.slots))
	return nil
}

// Truncate forgets all but the n most recent frames. Textures are kept for
// reuse.
func (r *Ring) Truncate(n int) {
	r.filled = min(r.filled, max(n, 0))
}

// Destroy releases every slot.
func (r *Ring) Destroy() {
	for _, fb := range r.slots {
		fb.Destroy()
	}
	if r.spare != nil {
		r.spare.Destroy()
	}
}

// Feedback holds the output and feedback framebuffers of every pass. After a
// frame, Swap makes this frame's outputs the next frame's feedback.
type Feedback struct {
	Outputs  []*render.Framebuffer
	Feedback []*render.Framebuffer
}

// NewFeedback allocates empty framebuffers for n passes.
func NewFeedback(n int) *Feedback {
	f := &Feedback{
		Outputs:  make([]*render.Framebuffer, n),
		Feedback: make([]*render.Framebuffer, n),
	}
	for i := range n {
		f.Outputs[i] = render.NewFramebuffer(fmt.Sprintf("pass %d output", i))
		f.Feedback[i] = render.NewFramebuffer(fmt.Sprintf("pass %d feedback", i))
	}
	return f
}

// Swap exchanges the output and feedback arrays.
func (f *Feedback) Swap() {
	f.Outputs, f.Feedback = f.Feedback, f.Outputs
}

// Destroy releases every framebuffer.
func (f *Feedback) Destroy() {
	for i := range f.Outputs {
		f.Outputs[i].Destroy()
		f.Feedback[i].Destroy()
	}
}
