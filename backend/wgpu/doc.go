// Package wgpu renders filter chains through a gogpu/wgpu HAL device.
//
// The device is owned by the host. New accepts any provider that exposes the
// HAL device and queue:
//
//	type halProvider interface {
//		HalDevice() any
//		HalQueue() any
//	}
//
// Every pass is built from its linked SPIR-V. The bind group layout comes
// from the pass reflection, so the WGSL bindings a preset author wrote are
// the bindings the pipeline uses. Passes are drawn as one full-screen
// triangle generated from the vertex index; no vertex buffer is bound.
//
// Texture copies and mipmap generation use an internal blit pipeline per
// texture format.
//
// Push constant blocks are not supported. Programs that declare one fail
// with backend.ErrUnsupported.
package wgpu
