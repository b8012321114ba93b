// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package lut loads the lookup textures a preset declares and uploads them
// to a device.
//
// PNG, JPEG, GIF, BMP, TIFF and WebP files are accepted.
package lut

import (
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"

	"github.com/gogpu/fxchain/binding"
	"github.com/gogpu/fxchain/preset"
	"github.com/gogpu/fxchain/render"
	"github.com/gogpu/fxchain/scaling"
)

// Decode reads an image and converts it to RGBA.
func Decode(r io.Reader) (*image.RGBA, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(out, image.Point{}, img, b, draw.Src, nil)
	return out
}

// ReadFile decodes the image at name in fsys. A nil fsys reads from the
// operating system.
func ReadFile(fsys fs.FS, name string) (*image.RGBA, error) {
	var (
		f   io.ReadCloser
		err error
	)
	if fsys == nil {
		f, err = os.Open(name)
	} else {
		f, err = fsys.Open(name)
	}
	if err != nil {
		return nil, fmt.Errorf("lut: %w", err)
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("lut: decode %s: %w", name, err)
	}
	return img, nil
}

// Texture is an uploaded lookup texture.
type Texture struct {
	Name    string
	Texture render.Texture
	Wrap    gputypes.AddressMode
	Filter  gputypes.FilterMode
}

// Input returns the texture with its sampler state.
func (t *Texture) Input() binding.InputTexture {
	return binding.InputTexture{Texture: t.Texture, Wrap: t.Wrap, Filter: t.Filter}
}

// Destroy releases the texture.
func (t *Texture) Destroy() {
	if t.Texture != nil {
		t.Texture.Destroy()
		t.Texture = nil
	}
}

// Upload creates a texture for img on dev. When cfg.Mipmap is set the
// texture gets a full mip chain.
func Upload(dev render.Device, cfg preset.TextureConfig, img *image.RGBA) (*Texture, error) {
	size := scaling.Size{Width: uint32(img.Rect.Dx()), Height: uint32(img.Rect.Dy())}
	levels := uint32(1)
	if cfg.Mipmap {
		levels = scaling.MipLevels(size)
	}
	desc := render.DefaultTextureDescriptor(size.Width, size.Height, gputypes.TextureFormatRGBA8Unorm)
	desc.Label = cfg.Name
	desc.MipLevelCount = levels

	tex, err := dev.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("lut: %s: %w", cfg.Name, err)
	}
	if err := dev.WriteTexture(tex, img); err != nil {
		tex.Destroy()
		return nil, fmt.Errorf("lut: %s: upload: %w", cfg.Name, err)
	}
	if levels > 1 {
		if err := dev.GenerateMipmaps(tex); err != nil {
			tex.Destroy()
			return nil, fmt.Errorf("lut: %s: mipmaps: %w", cfg.Name, err)
		}
	}
	return &Texture{Name: cfg.Name, Texture: tex, Wrap: cfg.Wrap, Filter: cfg.Filter}, nil
}

// Load reads and uploads every texture in cfgs, in order. On error the
// textures uploaded so far are released.
func Load(dev render.Device, fsys fs.FS, cfgs []preset.TextureConfig) ([]*Texture, error) {
	out := make([]*Texture, 0, len(cfgs))
	for _, cfg := range cfgs {
		t, err := load(dev, fsys, cfg)
		if err != nil {
			for _, t := range out {
				t.Destroy()
			}
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func load(dev render.Device, fsys fs.FS, cfg preset.TextureConfig) (*Texture, error) {
	img, err := ReadFile(fsys, cfg.Path)
	if err != nil {
		return nil, err
	}
	return Upload(dev, cfg, img)
}
