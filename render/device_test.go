// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/fxchain/scaling"
)

func TestNullDeviceHandle(t *testing.T) {
	var handle DeviceHandle = NullDeviceHandle{}

	if handle.Device() != nil {
		t.Error("NullDeviceHandle.Device() should return nil")
	}
	if handle.Queue() != nil {
		t.Error("NullDeviceHandle.Queue() should return nil")
	}
	if handle.Adapter() != nil {
		t.Error("NullDeviceHandle.Adapter() should return nil")
	}
	if handle.SurfaceFormat() != gputypes.TextureFormatUndefined {
		t.Error("NullDeviceHandle.SurfaceFormat() should return Undefined")
	}
	if info := handle.AdapterInfo(); info.Type != gpucontext.AdapterTypeUnknown || info.Name != "" {
		t.Errorf("NullDeviceHandle.AdapterInfo() = %+v, want unknown adapter", info)
	}

	acceptProvider := func(_ gpucontext.DeviceProvider) {}
	acceptProvider(handle)
}

func TestTextureDescriptorDefault(t *testing.T) {
	desc := DefaultTextureDescriptor(256, 128, gputypes.TextureFormatRGBA8Unorm)

	if desc.Width != 256 || desc.Height != 128 {
		t.Errorf("size = %dx%d, want 256x128", desc.Width, desc.Height)
	}
	if desc.MipLevelCount != 1 {
		t.Errorf("MipLevelCount = %d, want 1", desc.MipLevelCount)
	}
	if desc.Format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format = %v, want RGBA8Unorm", desc.Format)
	}
	if desc.Usage != FramebufferUsage {
		t.Errorf("Usage = %v, want FramebufferUsage", desc.Usage)
	}
}

func TestFramebufferUsage(t *testing.T) {
	for _, u := range []TextureUsage{
		TextureUsageCopySrc, TextureUsageCopyDst,
		TextureUsageTextureBinding, TextureUsageRenderAttachment,
	} {
		if FramebufferUsage&u == 0 {
			t.Errorf("FramebufferUsage missing %b", u)
		}
	}
}

type texture struct {
	desc      TextureDescriptor
	destroyed bool
}

func (t *texture) Width() uint32                  { return t.desc.Width }
func (t *texture) Height() uint32                 { return t.desc.Height }
func (t *texture) Format() gputypes.TextureFormat { return t.desc.Format }
func (t *texture) MipLevels() uint32              { return t.desc.MipLevelCount }
func (t *texture) Destroy()                       { t.destroyed = true }

type device struct {
	created int
	fail    error
}

func (d *device) CreateTexture(desc TextureDescriptor) (Texture, error) {
	if d.fail != nil {
		return nil, d.fail
	}
	d.created++
	return &texture{desc: desc}, nil
}

func (d *device) WriteTexture(Texture, *image.RGBA) error { return nil }
func (d *device) CopyTexture(_, _ Texture) error          { return nil }
func (d *device) GenerateMipmaps(Texture) error           { return nil }

func TestFramebufferScale(t *testing.T) {
	dev := &device{}
	fb := NewFramebuffer("pass 0")
	if fb.Texture() != nil || fb.Size() != (scaling.Size{}) {
		t.Fatal("new framebuffer should be empty")
	}

	size := scaling.Size{Width: 64, Height: 32}
	tests := []struct {
		name    string
		size    scaling.Size
		format  gputypes.TextureFormat
		mips    uint32
		resized bool
	}{
		{"first", size, gputypes.TextureFormatRGBA8Unorm, 1, true},
		{"same", size, gputypes.TextureFormatRGBA8Unorm, 1, false},
		{"zero mips means one", size, gputypes.TextureFormatRGBA8Unorm, 0, false},
		{"format", size, gputypes.TextureFormatRGBA16Float, 1, true},
		{"mips", size, gputypes.TextureFormatRGBA16Float, 7, true},
		{"size", scaling.Size{Width: 32, Height: 32}, gputypes.TextureFormatRGBA16Float, 7, true},
	}
	for _, tt := range tests {
		prev := fb.Texture()
		resized, err := fb.Scale(dev, tt.size, tt.format, tt.mips)
		if err != nil {
			t.Fatalf("%s: Scale() error = %v", tt.name, err)
		}
		if resized != tt.resized {
			t.Errorf("%s: Scale() = %v, want %v", tt.name, resized, tt.resized)
		}
		if resized && prev != nil && !prev.(*texture).destroyed {
			t.Errorf("%s: replaced texture not destroyed", tt.name)
		}
		if fb.Size() != tt.size {
			t.Errorf("%s: Size() = %v, want %v", tt.name, fb.Size(), tt.size)
		}
	}
	if dev.created != 4 {
		t.Errorf("created %d textures, want 4", dev.created)
	}

	last := fb.Texture().(*texture)
	if last.desc.Label != "pass 0" {
		t.Errorf("Label = %q", last.desc.Label)
	}
	fb.Destroy()
	if !last.destroyed || fb.Texture() != nil {
		t.Error("Destroy() did not release the texture")
	}
}

func TestFramebufferScaleError(t *testing.T) {
	boom := errors.New("out of memory")
	fb := NewFramebuffer("pass 1")
	_, err := fb.Scale(&device{fail: boom}, scaling.Size{Width: 4, Height: 4}, gputypes.TextureFormatRGBA8Unorm, 1)
	if !errors.Is(err, boom) {
		t.Errorf("Scale() error = %v, want wrapped device error", err)
	}
	if fb.Texture() != nil {
		t.Error("failed Scale() should leave the framebuffer empty")
	}
}
