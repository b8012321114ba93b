// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package lut_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/gogpu/fxchain/backend/recording"
	"github.com/gogpu/fxchain/lut"
	"github.com/gogpu/fxchain/preset"
)

func encode(t *testing.T, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := range 2 {
		for x := range 4 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 60), G: uint8(y * 200), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, enc(&buf, img))
	return buf.Bytes()
}

func pngBytes(t *testing.T) []byte {
	return encode(t, func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })
}

func bmpBytes(t *testing.T) []byte {
	return encode(t, func(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) })
}

func TestDecode(t *testing.T) {
	for name, data := range map[string][]byte{"png": pngBytes(t), "bmp": bmpBytes(t)} {
		t.Run(name, func(t *testing.T) {
			img, err := lut.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 4, 2), img.Rect)
			assert.Equal(t, color.RGBA{R: 180, G: 200, A: 255}, img.RGBAAt(3, 1))
		})
	}

	_, err := lut.Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"luts/noise.png": {Data: pngBytes(t)},
		"luts/grade.bmp": {Data: bmpBytes(t)},
	}
	dev := recording.New()
	cfgs := []preset.TextureConfig{
		{Name: "Noise", Path: "luts/noise.png", Wrap: gputypes.AddressModeRepeat, Filter: gputypes.FilterModeNearest},
		{Name: "Grade", Path: "luts/grade.bmp", Mipmap: true},
	}
	luts, err := lut.Load(dev, fsys, cfgs)
	require.NoError(t, err)
	require.Len(t, luts, 2)

	assert.Equal(t, "Noise", luts[0].Name)
	assert.Equal(t, uint32(1), luts[0].Texture.MipLevels())
	in := luts[0].Input()
	assert.Equal(t, gputypes.AddressModeRepeat, in.Wrap)
	assert.Equal(t, gputypes.FilterModeNearest, in.Filter)
	assert.Equal(t, uint32(4), in.Size().Width)

	assert.Equal(t, uint32(3), luts[1].Texture.MipLevels())
	assert.Equal(t, color.RGBA{R: 180, G: 200, A: 255}, luts[1].Texture.(*recording.Texture).Image().RGBAAt(3, 1))
	assert.Equal(t, 2, dev.LiveTextures())

	for _, l := range luts {
		l.Destroy()
	}
	assert.Equal(t, 0, dev.LiveTextures())
}

func TestLoadReleasesOnError(t *testing.T) {
	fsys := fstest.MapFS{"a.png": {Data: pngBytes(t)}}
	dev := recording.New()
	_, err := lut.Load(dev, fsys, []preset.TextureConfig{
		{Name: "A", Path: "a.png"},
		{Name: "B", Path: "missing.png"},
	})
	require.Error(t, err)
	assert.Equal(t, 0, dev.LiveTextures())
}
