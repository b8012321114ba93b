// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"image"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// ErrForeignTexture is returned when a texture created by one device is
// handed to another.
var ErrForeignTexture = errors.New("render: texture belongs to another device")

// DeviceHandle provides GPU device access from the host application.
//
// The host owns the device; backends receive it and never create one. This
// keeps filter chain textures in the same device as the host's swapchain so
// the final pass can render straight into the host's target.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider.
type DeviceHandle = gpucontext.DeviceProvider

// TextureDescriptor describes parameters for creating a texture.
type TextureDescriptor struct {
	// Label is an optional debug label for the texture.
	Label string

	Width  uint32
	Height uint32

	// MipLevelCount is the number of mipmap levels. Zero means one.
	MipLevelCount uint32

	// Format is the texture pixel format.
	Format gputypes.TextureFormat

	// Usage specifies how the texture will be used.
	Usage TextureUsage
}

// TextureUsage specifies how a texture can be used.
// These flags can be combined with bitwise OR.
type TextureUsage uint32

const (
	// TextureUsageCopySrc allows the texture to be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << iota

	// TextureUsageCopyDst allows the texture to be used as a copy destination.
	TextureUsageCopyDst

	// TextureUsageTextureBinding allows the texture to be sampled.
	TextureUsageTextureBinding

	// TextureUsageRenderAttachment allows the texture to be a pass target.
	TextureUsageRenderAttachment
)

// FramebufferUsage is the usage of every texture a filter chain renders to.
const FramebufferUsage = TextureUsageCopySrc | TextureUsageCopyDst |
	TextureUsageTextureBinding | TextureUsageRenderAttachment

// Texture represents a GPU texture resource.
type Texture interface {
	// Width returns the texture width in pixels.
	Width() uint32

	// Height returns the texture height in pixels.
	Height() uint32

	// Format returns the texture pixel format.
	Format() gputypes.TextureFormat

	// MipLevels returns the number of mip levels.
	MipLevels() uint32

	// Destroy releases resources associated with this texture.
	Destroy()
}

// Device creates and fills textures. Backends implement it on top of their
// native API.
type Device interface {
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// WriteTexture uploads img into mip level 0 of dst. img must match the
	// texture size.
	WriteTexture(dst Texture, img *image.RGBA) error

	// CopyTexture copies mip level 0 of src into dst, which must have the
	// same size.
	CopyTexture(dst, src Texture) error

	// GenerateMipmaps fills mip levels 1..n of tex from level 0.
	GenerateMipmaps(tex Texture) error
}

// DefaultTextureDescriptor returns a single-level framebuffer descriptor.
func DefaultTextureDescriptor(width, height uint32, format gputypes.TextureFormat) TextureDescriptor {
	return TextureDescriptor{
		Width:         width,
		Height:        height,
		MipLevelCount: 1,
		Format:        format,
		Usage:         FramebufferUsage,
	}
}

// NullDeviceHandle is a DeviceHandle that provides nil implementations.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo reports an unknown adapter for the null device.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Type: gpucontext.AdapterTypeUnknown}
}

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

var _ DeviceHandle = NullDeviceHandle{}
