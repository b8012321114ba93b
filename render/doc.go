// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render defines the textures and devices a filter chain renders
// with.
//
// # Key Principle
//
// fxchain RECEIVES a GPU device from the host application, it does NOT create
// its own. Backends wrap the host's DeviceHandle and implement Device, so
// the last pass of a chain can render straight into the host's swapchain
// texture.
//
// # Core Types
//
//   - DeviceHandle: GPU device access from the host application
//   - Device: texture creation, upload, copy and mipmap generation
//   - Texture: a 2D texture with a mip chain
//   - Framebuffer: an owned render target reallocated only on size, format
//     or mip count changes
//
// # Thread Safety
//
// Devices and framebuffers are NOT thread-safe. A chain and its backend are
// used from a single goroutine.
package render
