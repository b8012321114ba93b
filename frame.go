// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package fxchain

import (
	"errors"
	"fmt"

	"github.com/gogpu/fxchain/backend"
	"github.com/gogpu/fxchain/binding"
	"github.com/gogpu/fxchain/render"
	"github.com/gogpu/fxchain/scaling"
)

// ErrNoTexture is returned by Frame without an input or target texture.
var ErrNoTexture = errors.New("fxchain: frame needs an input and a target texture")

// IdentityMVP is the MVP used when FrameOptions.MVP is nil.
var IdentityMVP = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// Viewport is where the last enabled pass renders.
type Viewport struct {
	Target render.Texture
	// Size is the final viewport size reported to shaders and used by
	// viewport scaling. Zero uses the target size.
	Size scaling.Size
}

func (v Viewport) size() scaling.Size {
	if v.Size.Width != 0 && v.Size.Height != 0 {
		return v.Size
	}
	return scaling.Size{Width: v.Target.Width(), Height: v.Target.Height()}
}

// FrameOptions holds the optional per-frame values. The zero value plays
// forward with an identity MVP.
type FrameOptions struct {
	// ClearHistory drops every recorded input before this frame.
	ClearHistory bool
	// FrameDirection is 1 or -1. Zero means 1.
	FrameDirection int32
	Rotation       uint32
	// TotalSubFrames and CurrentSubFrame default to 1.
	TotalSubFrames  uint32
	CurrentSubFrame uint32
	// MVP overrides IdentityMVP.
	MVP *[16]float32
}

func (o *FrameOptions) frame() binding.Frame {
	f := binding.Frame{
		MVP:             IdentityMVP,
		FrameDirection:  1,
		TotalSubFrames:  1,
		CurrentSubFrame: 1,
	}
	if o == nil {
		return f
	}
	if o.MVP != nil {
		f.MVP = *o.MVP
	}
	if o.FrameDirection != 0 {
		f.FrameDirection = o.FrameDirection
	}
	if o.TotalSubFrames != 0 {
		f.TotalSubFrames = o.TotalSubFrames
	}
	if o.CurrentSubFrame != 0 {
		f.CurrentSubFrame = o.CurrentSubFrame
	}
	f.Rotation = o.Rotation
	return f
}

// Frame renders the enabled passes from input into viewport.Target.
//
// Every pass but the last renders into its own framebuffer, sized by its
// scale rule; the last enabled pass renders into the viewport target. On
// success the input is recorded in the history and this frame's outputs
// become the next frame's feedback. When a pass fails or the input cannot
// be recorded, history and feedback are left as they were.
func (c *FilterChain) Frame(frameCount uint64, viewport Viewport, input render.Texture, opts *FrameOptions) error {
	if c.closed {
		return ErrClosed
	}
	if input == nil || viewport.Target == nil {
		return ErrNoTexture
	}
	clearHistory := opts != nil && opts.ClearHistory
	n := c.enabled

	if n > 0 {
		if err := c.render(frameCount, viewport, input, opts); err != nil {
			return err
		}
	}

	if err := c.history.Push(c.backend, input); err != nil {
		return fmt.Errorf("fxchain: record history: %w", err)
	}
	if clearHistory {
		c.history.Truncate(1)
	}
	c.feedback.Swap()
	return nil
}

func (c *FilterChain) render(frameCount uint64, viewport Viewport, input render.Texture, opts *FrameOptions) error {
	n := c.enabled
	original := scaling.Size{Width: input.Width(), Height: input.Height()}
	final := viewport.size()
	plan := scaling.Plan(c.scale[:n], original, final, input.Format())

	f := opts.frame()
	f.FinalViewportSize = final
	f.Parameters = c.params
	f.OriginalHistory = c.historyInputs(input, opts != nil && opts.ClearHistory)
	f.PassOutputs = make([]binding.InputTexture, len(c.passes))
	if err := c.prepareFeedback(plan, &f); err != nil {
		return err
	}
	f.LUTs = make([]binding.InputTexture, len(c.luts))
	for i, l := range c.luts {
		f.LUTs[i] = l.Input()
	}

	for i, p := range c.passes[:n] {
		cfg := p.compiled.Pass.Config
		f.Original = binding.InputTexture{Texture: input, Filter: cfg.Filter, Wrap: cfg.Wrap}
		f.Source = f.Original
		if i > 0 {
			f.Source.Texture = c.feedback.Outputs[i-1].Texture()
		}
		f.FrameCount = uint32(frameCount)
		if cfg.FrameCountMod != 0 {
			f.FrameCount = uint32(frameCount % uint64(cfg.FrameCountMod))
		}

		target := viewport.Target
		if i < n-1 {
			fb := c.feedback.Outputs[i]
			resized, err := fb.Scale(c.backend, plan[i].Size, plan[i].Format, plan[i].MipLevels)
			if err != nil {
				return fmt.Errorf("fxchain: pass %d: %w", i, err)
			}
			if resized {
				c.log.Debug("fxchain: framebuffer allocated",
					"pass", i,
					"size", plan[i].Size,
					"format", plan[i].Format,
					"mip_levels", plan[i].MipLevels,
				)
			}
			target = fb.Texture()
		}
		f.OutputSize = scaling.Size{Width: target.Width(), Height: target.Height()}

		if err := p.table.Apply(p.storage, &f, backend.Hooks(p.program)); err != nil {
			return fmt.Errorf("fxchain: pass %d: %w", i, err)
		}
		if err := p.program.Draw(backend.DrawCall{
			Pass:   i,
			Target: target,
			UBO:    p.storage.UBO(),
			Push:   p.storage.Push(),
		}); err != nil {
			return fmt.Errorf("fxchain: pass %d: %w", i, err)
		}

		if i < n-1 {
			if plan[i].MipLevels > 1 {
				if err := c.backend.GenerateMipmaps(target); err != nil {
					return fmt.Errorf("fxchain: pass %d: mipmaps: %w", i, err)
				}
			}
			// Later passes sample this output with its own sampler state.
			f.PassOutputs[i] = binding.InputTexture{Texture: target, Filter: cfg.Filter, Wrap: cfg.Wrap}
		}
	}
	return nil
}

// historyInputs returns the inputs of previous frames, indexed by age.
// Frames not yet recorded read the current input.
func (c *FilterChain) historyInputs(input render.Texture, cleared bool) []binding.InputTexture {
	cfg := c.passes[0].compiled.Pass.Config
	out := make([]binding.InputTexture, c.history.Depth())
	for j := range out {
		tex := input
		if !cleared {
			if t, ok := c.history.Get(j); ok {
				tex = t
			}
		}
		out[j] = binding.InputTexture{Texture: tex, Filter: cfg.Filter, Wrap: cfg.Wrap}
	}
	return out
}

// prepareFeedback fills f.PassFeedback. A feedback framebuffer that was
// never rendered is allocated at its planned size so that it samples as
// transparent black.
func (c *FilterChain) prepareFeedback(plan []scaling.Target, f *binding.Frame) error {
	f.PassFeedback = make([]binding.InputTexture, len(c.passes))
	for j, fb := range c.feedback.Feedback {
		if j >= len(plan)-1 {
			break
		}
		if fb.Texture() == nil {
			if _, err := fb.Scale(c.backend, plan[j].FeedbackSize, plan[j].Format, 1); err != nil {
				return fmt.Errorf("fxchain: pass %d feedback: %w", j, err)
			}
		}
		cfg := c.passes[j].compiled.Pass.Config
		f.PassFeedback[j] = binding.InputTexture{Texture: fb.Texture(), Filter: cfg.Filter, Wrap: cfg.Wrap}
	}
	return nil
}
