// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/fxchain/scaling"
)

// Framebuffer is an exclusively owned render target that is reallocated only
// when its size, format or mip count changes.
type Framebuffer struct {
	Label   string
	texture Texture
}

// NewFramebuffer returns an empty framebuffer. The texture is created on the
// first call to Scale.
func NewFramebuffer(label string) *Framebuffer {
	return &Framebuffer{Label: label}
}

// Texture returns the current texture, or nil before the first Scale.
func (f *Framebuffer) Texture() Texture { return f.texture }

// Size returns the current size.
func (f *Framebuffer) Size() scaling.Size {
	if f.texture == nil {
		return scaling.Size{}
	}
	return scaling.Size{Width: f.texture.Width(), Height: f.texture.Height()}
}

// Scale makes sure the framebuffer has the given size, format and mip count.
// It reports whether a new texture was allocated.
func (f *Framebuffer) Scale(dev Device, size scaling.Size, format gputypes.TextureFormat, mipLevels uint32) (bool, error) {
	mipLevels = max(mipLevels, 1)
	if t := f.texture; t != nil &&
		t.Width() == size.Width && t.Height() == size.Height &&
		t.Format() == format && t.MipLevels() == mipLevels {
		return false, nil
	}

	desc := DefaultTextureDescriptor(size.Width, size.Height, format)
	desc.Label = f.Label
	desc.MipLevelCount = mipLevels
	tex, err := dev.CreateTexture(desc)
	if err != nil {
		return false, fmt.Errorf("render: scale %s to %dx%d: %w", f.Label, size.Width, size.Height, err)
	}
	if f.texture != nil {
		f.texture.Destroy()
	}
	f.texture = tex
	return true, nil
}

// Destroy releases the texture.
func (f *Framebuffer) Destroy() {
	if f.texture != nil {
		f.texture.Destroy()
		f.texture = nil
	}
}
