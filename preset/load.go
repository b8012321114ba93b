// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package preset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/fxchain/scaling"
)

var (
	// ErrUnknownFormat is returned for preset files that are neither TOML
	// nor YAML.
	ErrUnknownFormat = errors.New("preset: unknown file format")

	// ErrInvalidPreset is returned for structurally invalid presets.
	ErrInvalidPreset = errors.New("preset: invalid preset")
)

// Format is the encoding of a preset file.
type Format uint8

const (
	FormatTOML Format = iota
	FormatYAML
)

// FormatOf picks the encoding from a file extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
}

type scaleFile struct {
	Type   string  `toml:"type" yaml:"type"`
	Factor float32 `toml:"factor" yaml:"factor"`
	Size   uint32  `toml:"size" yaml:"size"`
}

type passFile struct {
	Name             string      `toml:"name" yaml:"name"`
	Shader           string      `toml:"shader" yaml:"shader"`
	Vertex           string      `toml:"vertex" yaml:"vertex"`
	Fragment         string      `toml:"fragment" yaml:"fragment"`
	Alias            string      `toml:"alias" yaml:"alias"`
	Scale            *scaleFile  `toml:"scale" yaml:"scale"`
	ScaleX           *scaleFile  `toml:"scale_x" yaml:"scale_x"`
	ScaleY           *scaleFile  `toml:"scale_y" yaml:"scale_y"`
	MipmapInput      bool        `toml:"mipmap_input" yaml:"mipmap_input"`
	FloatFramebuffer bool        `toml:"float_framebuffer" yaml:"float_framebuffer"`
	SRGBFramebuffer  bool        `toml:"srgb_framebuffer" yaml:"srgb_framebuffer"`
	FrameCountMod    uint32      `toml:"frame_count_mod" yaml:"frame_count_mod"`
	Wrap             string      `toml:"wrap" yaml:"wrap"`
	Filter           string      `toml:"filter" yaml:"filter"`
	Format           string      `toml:"format" yaml:"format"`
	Parameters       []Parameter `toml:"parameters" yaml:"parameters"`
}

type textureFile struct {
	Name   string `toml:"name" yaml:"name"`
	Path   string `toml:"path" yaml:"path"`
	Wrap   string `toml:"wrap" yaml:"wrap"`
	Filter string `toml:"filter" yaml:"filter"`
	Mipmap bool   `toml:"mipmap" yaml:"mipmap"`
}

type presetFile struct {
	Passes     []passFile         `toml:"passes" yaml:"passes"`
	Textures   []textureFile      `toml:"textures" yaml:"textures"`
	Parameters map[string]float32 `toml:"parameters" yaml:"parameters"`
}

// reader abstracts the file system a preset is read from.
type reader struct {
	read func(name string) ([]byte, error)
	join func(elem ...string) string
}

// Load reads a preset file and the shader sources it references. Relative
// paths are resolved against the directory of the preset.
func Load(name string) (*Preset, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("preset: %w", err)
	}
	r := reader{read: os.ReadFile, join: filepath.Join}
	return r.parse(data, format, filepath.Dir(name))
}

// LoadFS reads a preset from fsys. Paths in the preset are relative to the
// directory of name within fsys.
func LoadFS(fsys fs.FS, name string) (*Preset, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("preset: %w", err)
	}
	return Parse(data, format, fsys, path.Dir(name))
}

// Parse decodes a preset and reads its shader sources from fsys relative to
// dir.
func Parse(data []byte, format Format, fsys fs.FS, dir string) (*Preset, error) {
	r := reader{
		read: func(name string) ([]byte, error) { return fs.ReadFile(fsys, name) },
		join: path.Join,
	}
	p, err := r.parse(data, format, dir)
	if err != nil {
		return nil, err
	}
	p.FS = fsys
	return p, nil
}

func (r reader) parse(data []byte, format Format, dir string) (*Preset, error) {
	var f presetFile
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("preset: decode toml: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("preset: decode yaml: %w", err)
		}
	default:
		return nil, ErrUnknownFormat
	}

	if len(f.Passes) == 0 {
		return nil, fmt.Errorf("%w: no passes", ErrInvalidPreset)
	}

	p := &Preset{Parameters: f.Parameters}
	for i, pf := range f.Passes {
		pass, err := r.buildPass(i, pf, dir)
		if err != nil {
			return nil, err
		}
		p.Passes = append(p.Passes, pass)
	}
	for i, tf := range f.Textures {
		tc, err := r.buildTexture(i, tf, dir)
		if err != nil {
			return nil, err
		}
		p.Textures = append(p.Textures, tc)
	}
	return p, nil
}

func (r reader) buildPass(i int, pf passFile, dir string) (Pass, error) {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: pass %d: %s", ErrInvalidPreset, i, fmt.Sprintf(format, args...))
	}

	var pass Pass
	var vertexFile, fragmentFile string
	switch {
	case pf.Shader != "" && (pf.Vertex != "" || pf.Fragment != ""):
		return pass, fail("shader and vertex/fragment are exclusive")
	case pf.Shader != "":
		vertexFile, fragmentFile = pf.Shader, pf.Shader
	case pf.Vertex != "" && pf.Fragment != "":
		vertexFile, fragmentFile = pf.Vertex, pf.Fragment
	default:
		return pass, fail("missing shader")
	}

	vertexPath, fragmentPath := r.join(dir, vertexFile), r.join(dir, fragmentFile)
	vertex, err := r.read(vertexPath)
	if err != nil {
		return pass, fmt.Errorf("preset: pass %d: %w", i, err)
	}
	fragment := vertex
	if fragmentFile != vertexFile {
		if fragment, err = r.read(fragmentPath); err != nil {
			return pass, fmt.Errorf("preset: pass %d: %w", i, err)
		}
	}

	format, err := ParseTextureFormat(pf.Format)
	if err != nil {
		return pass, fail("%v", err)
	}
	name := pf.Name
	if name == "" {
		name = strings.TrimSuffix(path.Base(fragmentFile), path.Ext(fragmentFile))
	}
	pass.Source = ShaderSource{
		Name:       name,
		Vertex:     string(vertex),
		Fragment:   string(fragment),
		Parameters: pf.Parameters,
		Format:     format,
	}
	pass.Files = []string{vertexPath}
	if fragmentPath != vertexPath {
		pass.Files = append(pass.Files, fragmentPath)
	}

	cfg := PassConfig{
		Alias:            pf.Alias,
		MipmapInput:      pf.MipmapInput,
		FloatFramebuffer: pf.FloatFramebuffer,
		SRGBFramebuffer:  pf.SRGBFramebuffer,
		FrameCountMod:    pf.FrameCountMod,
	}
	x, y := pf.ScaleX, pf.ScaleY
	if x == nil {
		x = pf.Scale
	}
	if y == nil {
		y = pf.Scale
	}
	if cfg.Scale.X, err = buildAxis(x); err != nil {
		return pass, fail("scale_x: %v", err)
	}
	if cfg.Scale.Y, err = buildAxis(y); err != nil {
		return pass, fail("scale_y: %v", err)
	}
	if cfg.Wrap, err = ParseWrap(pf.Wrap); err != nil {
		return pass, fail("%v", err)
	}
	if cfg.Filter, err = ParseFilter(pf.Filter); err != nil {
		return pass, fail("%v", err)
	}
	pass.Config = cfg

	for _, param := range pf.Parameters {
		if param.ID == "" {
			return pass, fail("parameter without id")
		}
	}
	return pass, nil
}

func buildAxis(s *scaleFile) (scaling.Axis, error) {
	if s == nil {
		return scaling.Axis{Type: scaling.Input, Factor: 1}, nil
	}
	t := scaling.Input
	if s.Type != "" {
		var err error
		if t, err = scaling.ParseScaleType(s.Type); err != nil {
			return scaling.Axis{}, err
		}
	}
	a := scaling.Axis{Type: t, Factor: s.Factor}
	if t == scaling.Absolute {
		if s.Size == 0 {
			return scaling.Axis{}, errors.New("absolute scale needs a size")
		}
		a.Absolute = s.Size
		a.Factor = 0
	} else if a.Factor == 0 {
		a.Factor = 1
	}
	return a, nil
}

func (r reader) buildTexture(i int, tf textureFile, dir string) (TextureConfig, error) {
	if tf.Name == "" || tf.Path == "" {
		return TextureConfig{}, fmt.Errorf("%w: texture %d: name and path are required", ErrInvalidPreset, i)
	}
	wrap, err := ParseWrap(tf.Wrap)
	if err != nil {
		return TextureConfig{}, fmt.Errorf("%w: texture %q: %v", ErrInvalidPreset, tf.Name, err)
	}
	filter, err := ParseFilter(tf.Filter)
	if err != nil {
		return TextureConfig{}, fmt.Errorf("%w: texture %q: %v", ErrInvalidPreset, tf.Name, err)
	}
	return TextureConfig{
		Name:   tf.Name,
		Path:   r.join(dir, tf.Path),
		Wrap:   wrap,
		Filter: filter,
		Mipmap: tf.Mipmap,
	}, nil
}

// ParseWrap parses an address mode. The empty string is clamp_to_edge.
func ParseWrap(s string) (gputypes.AddressMode, error) {
	switch strings.ToLower(s) {
	case "", "clamp_to_edge", "clamp_to_border":
		return gputypes.AddressModeClampToEdge, nil
	case "repeat":
		return gputypes.AddressModeRepeat, nil
	case "mirror_repeat", "mirrored_repeat":
		return gputypes.AddressModeMirrorRepeat, nil
	}
	return 0, fmt.Errorf("unknown wrap mode %q", s)
}

// ParseFilter parses a filter mode. The empty string is linear.
func ParseFilter(s string) (gputypes.FilterMode, error) {
	switch strings.ToLower(s) {
	case "", "linear":
		return gputypes.FilterModeLinear, nil
	case "nearest":
		return gputypes.FilterModeNearest, nil
	}
	return 0, fmt.Errorf("unknown filter mode %q", s)
}

// ParseTextureFormat parses a WebGPU texture format name. The empty string
// is Undefined.
func ParseTextureFormat(s string) (gputypes.TextureFormat, error) {
	switch strings.ToLower(s) {
	case "":
		return gputypes.TextureFormatUndefined, nil
	case "rgba8unorm":
		return gputypes.TextureFormatRGBA8Unorm, nil
	case "rgba8unorm-srgb":
		return gputypes.TextureFormatRGBA8UnormSrgb, nil
	case "bgra8unorm":
		return gputypes.TextureFormatBGRA8Unorm, nil
	case "rgba16float":
		return gputypes.TextureFormatRGBA16Float, nil
	case "r8unorm":
		return gputypes.TextureFormatR8Unorm, nil
	}
	return 0, fmt.Errorf("unknown texture format %q", s)
}
