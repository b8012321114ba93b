// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package semantics defines the logical roles of shader uniforms and
// textures, independent of where a shader places them.
//
// Builtin names resolve without configuration:
//
//	MVP, OutputSize, FinalViewportSize, FrameCount, FrameDirection,
//	Rotation, TotalSubFrames, CurrentSubFrame
//	Original, Source, OriginalHistoryN, PassOutputN, PassFeedbackN, UserN
//	OriginalSize, SourceSize, OriginalHistorySizeN, PassOutputSizeN, ...
//
// Preset-specific names (parameters, pass aliases, lookup textures) are
// added by Build.
package semantics
