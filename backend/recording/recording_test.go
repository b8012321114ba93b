// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package recording

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxchain/backend"
	"github.com/gogpu/fxchain/binding"
	"github.com/gogpu/fxchain/codegen"
	"github.com/gogpu/fxchain/reflection"
	"github.com/gogpu/fxchain/render"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func program(t *testing.T, b *Backend, pass int) backend.Program {
	t.Helper()
	p, err := b.NewProgram(backend.ProgramDescriptor{
		Label:      "pass",
		Pass:       pass,
		Output:     &codegen.Output{Target: b.Target()},
		Reflection: &reflection.ShaderReflection{Pass: pass},
	})
	require.NoError(t, err)
	return p
}

func TestCreateTexture(t *testing.T) {
	b := New()
	tex, err := b.CreateTexture(render.TextureDescriptor{Width: 8, Height: 4, MipLevelCount: 4, Format: gputypes.TextureFormatRGBA8Unorm})
	require.NoError(t, err)
	assert.Equal(t, uint32(8), tex.Width())
	assert.Equal(t, uint32(4), tex.Height())
	assert.Equal(t, uint32(4), tex.MipLevels())
	assert.Equal(t, image.Rect(0, 0, 1, 1), tex.(*Texture).Level(3).Rect)
	assert.Equal(t, 1, b.LiveTextures())

	tex.Destroy()
	assert.Equal(t, 0, b.LiveTextures())

	_, err = b.CreateTexture(render.TextureDescriptor{Width: 0, Height: 4})
	assert.Error(t, err)
}

func TestWriteAndCopy(t *testing.T) {
	b := New()
	red := color.RGBA{R: 255, A: 255}
	src := b.NewTexture("input", solid(4, 4, red))
	dst, err := b.CreateTexture(render.DefaultTextureDescriptor(4, 4, gputypes.TextureFormatRGBA8Unorm))
	require.NoError(t, err)

	require.NoError(t, b.CopyTexture(dst, src))
	assert.Equal(t, red, dst.(*Texture).Image().RGBAAt(2, 2))

	require.Error(t, b.WriteTexture(dst, solid(2, 2, red)), "size mismatch")
	assert.ErrorIs(t, b.CopyTexture(dst, New().NewTexture("other", solid(4, 4, red))), render.ErrForeignTexture)
}

func TestGenerateMipmaps(t *testing.T) {
	b := New()
	tex, err := b.CreateTexture(render.TextureDescriptor{Width: 4, Height: 4, MipLevelCount: 3})
	require.NoError(t, err)
	blue := color.RGBA{B: 255, A: 255}
	require.NoError(t, b.WriteTexture(tex, solid(4, 4, blue)))
	require.NoError(t, b.GenerateMipmaps(tex))
	assert.Equal(t, blue, tex.(*Texture).Level(2).RGBAAt(0, 0))
}

func TestDrawRecordsAndResamples(t *testing.T) {
	b := New()
	green := color.RGBA{G: 255, A: 255}
	src := b.NewTexture("input", solid(4, 4, green))
	lut := b.NewTexture("lut", solid(2, 2, color.RGBA{A: 255}))
	target, err := b.CreateTexture(render.TextureDescriptor{Label: "out", Width: 8, Height: 8})
	require.NoError(t, err)

	p := program(t, b, 0)
	require.NoError(t, p.BindTexture(reflection.TextureBinding{Name: "Noise", Binding: 3},
		binding.InputTexture{Texture: lut, Filter: gputypes.FilterModeLinear}))
	require.NoError(t, p.BindTexture(reflection.TextureBinding{Name: "Source", Binding: 1},
		binding.InputTexture{Texture: src, Filter: gputypes.FilterModeNearest, Wrap: gputypes.AddressModeRepeat}))

	ubo := []byte{1, 2, 3, 4}
	require.NoError(t, p.Draw(backend.DrawCall{Pass: 0, Target: target, UBO: ubo}))
	ubo[0] = 9

	cmds := b.Commands()
	require.Len(t, cmds, 1)
	cmd := cmds[0]
	assert.Equal(t, "out", cmd.Target)
	assert.Equal(t, uint32(8), cmd.Width)
	assert.Equal(t, []byte{1, 2, 3, 4}, cmd.UBO, "uniforms are snapshotted")
	require.Len(t, cmd.Textures, 2)
	assert.Equal(t, "Source", cmd.Textures[1].Name)
	assert.Equal(t, gputypes.AddressModeRepeat, cmd.Textures[1].Wrap)
	assert.Equal(t, "lut", cmd.Textures[3].Label)

	assert.Equal(t, green, target.(*Texture).Image().RGBAAt(7, 7), "lowest binding is resampled")

	require.NoError(t, p.Draw(backend.DrawCall{Target: target}))
	assert.Empty(t, b.Commands()[1].Textures, "bindings reset after a draw")

	b.Reset()
	assert.Empty(t, b.Commands())
}

func TestFailPass(t *testing.T) {
	b := New()
	target, err := b.CreateTexture(render.TextureDescriptor{Width: 1, Height: 1})
	require.NoError(t, err)
	p := program(t, b, 2)

	boom := errors.New("boom")
	b.FailPass(2, boom)
	assert.ErrorIs(t, p.Draw(backend.DrawCall{Target: target}), boom)
	assert.Empty(t, b.Commands())

	b.FailPass(2, nil)
	assert.NoError(t, p.Draw(backend.DrawCall{Target: target}))
}

func TestNewProgramTarget(t *testing.T) {
	b := New(WithTarget(codegen.GLSL))
	assert.Equal(t, codegen.GLSL, b.Target())
	assert.Equal(t, backend.Recording, b.Kind())

	_, err := b.NewProgram(backend.ProgramDescriptor{
		Output:     &codegen.Output{Target: codegen.SPIRV},
		Reflection: &reflection.ShaderReflection{},
	})
	assert.ErrorIs(t, err, backend.ErrTargetMismatch)
}

func TestClose(t *testing.T) {
	b := New()
	_, err := b.CreateTexture(render.TextureDescriptor{Width: 2, Height: 2})
	require.NoError(t, err)
	b.Close()
	assert.Equal(t, 0, b.LiveTextures())

	_, err = b.CreateTexture(render.TextureDescriptor{Width: 2, Height: 2})
	assert.ErrorIs(t, err, backend.ErrClosed)
}
