package wgpu

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fxchain/backend"
	"github.com/gogpu/fxchain/binding"
	"github.com/gogpu/fxchain/reflection"
)

// Entry points of the blit shader.
const (
	vertexEntry   = "vs_main"
	fragmentEntry = "fs_main"
)

// blitShader copies binding 0 through a full-screen triangle.
const blitShader = `
@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var srcSampler: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    var out: VertexOutput;
    out.position = vec4<f32>(uv.x * 2.0 - 1.0, 1.0 - uv.y * 2.0, 0.0, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(src, srcSampler, in.uv);
}
`

func fullScreenPipeline(label string, layout hal.PipelineLayout, vs, fs hal.ShaderModule, vsEntry, fsEntry string, format gputypes.TextureFormat) *hal.RenderPipelineDescriptor {
	return &hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: vsEntry,
		},
		Fragment: &hal.FragmentState{
			Module:     fs,
			EntryPoint: fsEntry,
			Targets: []gputypes.ColorTargetState{{
				Format:    format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
}

// blitCache holds one blit pipeline per target format.
type blitCache struct {
	device    hal.Device
	shader    hal.ShaderModule
	layout    hal.BindGroupLayout
	pipeLay   hal.PipelineLayout
	sampler   hal.Sampler
	pipelines map[gputypes.TextureFormat]hal.RenderPipeline
}

func newBlitCache(device hal.Device) *blitCache {
	return &blitCache{device: device, pipelines: make(map[gputypes.TextureFormat]hal.RenderPipeline)}
}

func (c *blitCache) init() error {
	if c.shader != nil {
		return nil
	}
	shader, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "blit_shader",
		Source: hal.ShaderSource{WGSL: blitShader},
	})
	if err != nil {
		return fmt.Errorf("compile blit shader: %w", err)
	}
	layout, err := c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "blit_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		c.device.DestroyShaderModule(shader)
		return fmt.Errorf("create blit layout: %w", err)
	}
	pipeLay, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "blit_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		c.device.DestroyBindGroupLayout(layout)
		c.device.DestroyShaderModule(shader)
		return fmt.Errorf("create blit pipeline layout: %w", err)
	}
	sampler, err := c.device.CreateSampler(samplerDescriptor("blit_sampler", gputypes.AddressModeClampToEdge, gputypes.FilterModeLinear))
	if err != nil {
		c.device.DestroyPipelineLayout(pipeLay)
		c.device.DestroyBindGroupLayout(layout)
		c.device.DestroyShaderModule(shader)
		return fmt.Errorf("create blit sampler: %w", err)
	}
	c.shader, c.layout, c.pipeLay, c.sampler = shader, layout, pipeLay, sampler
	return nil
}

func (c *blitCache) pipeline(format gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	if p, ok := c.pipelines[format]; ok {
		return p, nil
	}
	p, err := c.device.CreateRenderPipeline(fullScreenPipeline("blit_pipeline", c.pipeLay, c.shader, c.shader, vertexEntry, fragmentEntry, format))
	if err != nil {
		return nil, fmt.Errorf("create blit pipeline: %w", err)
	}
	c.pipelines[format] = p
	return p, nil
}

func (c *blitCache) blit(b *Backend, format gputypes.TextureFormat, dst, src hal.TextureView, label string) error {
	pipeline, err := c.pipeline(format)
	if err != nil {
		return err
	}
	bg, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label + "_bind",
		Layout: c.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: src.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: c.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create %s bind group: %w", label, err)
	}
	defer c.device.DestroyBindGroup(bg)

	return b.submit(label, dst, func(rp hal.RenderPassEncoder) {
		rp.SetPipeline(pipeline)
		rp.SetBindGroup(0, bg, nil)
		rp.Draw(3, 1, 0, 0)
	})
}

func (c *blitCache) destroy() {
	for _, p := range c.pipelines {
		c.device.DestroyRenderPipeline(p)
	}
	clear(c.pipelines)
	if c.shader == nil {
		return
	}
	c.device.DestroySampler(c.sampler)
	c.device.DestroyPipelineLayout(c.pipeLay)
	c.device.DestroyBindGroupLayout(c.layout)
	c.device.DestroyShaderModule(c.shader)
	c.shader = nil
}

// samplerKey identifies a sampler state.
type samplerKey struct {
	wrap   gputypes.AddressMode
	filter gputypes.FilterMode
}

// Program is the render pipeline of one pass.
type Program struct {
	owner *Backend
	label string
	pass  int
	refl  *reflection.ShaderReflection

	vertex      hal.ShaderModule
	fragment    hal.ShaderModule
	entryPoints [2]string
	layout      hal.BindGroupLayout
	pipeLay     hal.PipelineLayout
	pipelines   map[gputypes.TextureFormat]hal.RenderPipeline
	samplers    map[samplerKey]hal.Sampler
	ubo         hal.Buffer

	bound map[uint32]binding.InputTexture
}

// NewProgram implements backend.Backend.
func (b *Backend) NewProgram(desc backend.ProgramDescriptor) (backend.Program, error) {
	if b.closed {
		return nil, backend.ErrClosed
	}
	if err := desc.Validate(b.Target()); err != nil {
		return nil, err
	}
	if desc.Reflection.PushConstant != nil {
		return nil, fmt.Errorf("%w: pass %d declares a push constant block", backend.ErrUnsupported, desc.Pass)
	}

	p := &Program{
		owner:       b,
		label:       desc.Label,
		pass:        desc.Pass,
		refl:        desc.Reflection,
		entryPoints: desc.Output.Context.EntryPoints,
		pipelines:   make(map[gputypes.TextureFormat]hal.RenderPipeline),
		samplers:    make(map[samplerKey]hal.Sampler),
		bound:       make(map[uint32]binding.InputTexture),
	}
	if err := p.init(desc); err != nil {
		p.Destroy()
		return nil, fmt.Errorf("wgpu: pass %d: %w", desc.Pass, err)
	}
	if _, err := p.pipeline(desc.Format); err != nil {
		p.Destroy()
		return nil, fmt.Errorf("wgpu: pass %d: %w", desc.Pass, err)
	}
	b.log.Debug("wgpu: program created", "pass", desc.Pass, "label", desc.Label, "bindings", len(desc.Reflection.Bindings()))
	return p, nil
}

func (p *Program) init(desc backend.ProgramDescriptor) error {
	d := p.owner.device
	var err error
	if p.vertex, err = d.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.label + " vertex",
		Source: hal.ShaderSource{SPIRV: desc.Output.VertexSPIRV},
	}); err != nil {
		return fmt.Errorf("create vertex module: %w", err)
	}
	if p.fragment, err = d.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.label + " fragment",
		Source: hal.ShaderSource{SPIRV: desc.Output.FragmentSPIRV},
	}); err != nil {
		return fmt.Errorf("create fragment module: %w", err)
	}
	if p.layout, err = d.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   p.label + " layout",
		Entries: p.refl.LayoutEntries(),
	}); err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	if p.pipeLay, err = d.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            p.label + " pipeline layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.layout},
	}); err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	if u := p.refl.UBO; u != nil {
		if p.ubo, err = d.CreateBuffer(&hal.BufferDescriptor{
			Label: p.label + " ubo",
			Size:  uint64(u.Size),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		}); err != nil {
			return fmt.Errorf("create uniform buffer: %w", err)
		}
	}
	return nil
}

func (p *Program) pipeline(format gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if rp, ok := p.pipelines[format]; ok {
		return rp, nil
	}
	rp, err := p.owner.device.CreateRenderPipeline(fullScreenPipeline(p.label, p.pipeLay, p.vertex, p.fragment, p.entryPoints[0], p.entryPoints[1], format))
	if err != nil {
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}
	p.pipelines[format] = rp
	return rp, nil
}

func (p *Program) sampler(wrap gputypes.AddressMode, filter gputypes.FilterMode) (hal.Sampler, error) {
	key := samplerKey{wrap, filter}
	if s, ok := p.samplers[key]; ok {
		return s, nil
	}
	s, err := p.owner.device.CreateSampler(samplerDescriptor(p.label+" sampler", wrap, filter))
	if err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	p.samplers[key] = s
	return s, nil
}

// BindTexture implements binding.TextureBinder.
func (p *Program) BindTexture(b reflection.TextureBinding, tex binding.InputTexture) error {
	if _, err := p.owner.own(tex.Texture); err != nil {
		return fmt.Errorf("wgpu: bind %s: %w", b.Name, err)
	}
	p.bound[b.Binding] = tex
	return nil
}

// entries builds the bind group entries of the next draw.
func (p *Program) entries() ([]gputypes.BindGroupEntry, error) {
	var out []gputypes.BindGroupEntry
	if u := p.refl.UBO; u != nil {
		out = append(out, gputypes.BindGroupEntry{
			Binding:  u.Binding,
			Resource: gputypes.BufferBinding{Buffer: p.ubo.NativeHandle(), Offset: 0, Size: uint64(u.Size)},
		})
	}
	for _, key := range p.refl.SortedTextures() {
		tb := p.refl.Meta.Textures[key]
		tex, ok := p.bound[tb.Binding]
		if !ok {
			return nil, fmt.Errorf("texture %s not bound", tb.Name)
		}
		out = append(out, gputypes.BindGroupEntry{
			Binding:  tb.Binding,
			Resource: gputypes.TextureViewBinding{TextureView: tex.Texture.(*Texture).View().NativeHandle()},
		})
		if !tb.HasSampler {
			continue
		}
		s, err := p.sampler(tex.Wrap, tex.Filter)
		if err != nil {
			return nil, err
		}
		out = append(out, gputypes.BindGroupEntry{
			Binding:  tb.Sampler,
			Resource: gputypes.SamplerBinding{Sampler: s.NativeHandle()},
		})
	}
	slices.SortFunc(out, func(a, b gputypes.BindGroupEntry) int { return int(a.Binding) - int(b.Binding) })
	return out, nil
}

// Draw implements backend.Program.
func (p *Program) Draw(call backend.DrawCall) error {
	defer clear(p.bound)
	target, err := p.owner.own(call.Target)
	if err != nil {
		return fmt.Errorf("wgpu: pass %d target: %w", p.pass, err)
	}
	pipeline, err := p.pipeline(target.format)
	if err != nil {
		return fmt.Errorf("wgpu: pass %d: %w", p.pass, err)
	}
	if p.ubo != nil && len(call.UBO) > 0 {
		if err := p.owner.queue.WriteBuffer(p.ubo, 0, call.UBO); err != nil {
			return fmt.Errorf("wgpu: pass %d: write uniforms: %w", p.pass, err)
		}
	}
	entries, err := p.entries()
	if err != nil {
		return fmt.Errorf("wgpu: pass %d: %w", p.pass, err)
	}
	bg, err := p.owner.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.label + " bind",
		Layout:  p.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("wgpu: pass %d: create bind group: %w", p.pass, err)
	}
	defer p.owner.device.DestroyBindGroup(bg)

	err = p.owner.submit(p.label, target.levels[0], func(rp hal.RenderPassEncoder) {
		rp.SetPipeline(pipeline)
		rp.SetBindGroup(0, bg, nil)
		rp.Draw(3, 1, 0, 0)
	})
	if err != nil {
		return fmt.Errorf("wgpu: pass %d: %w", p.pass, err)
	}
	return nil
}

// Destroy implements backend.Program.
func (p *Program) Destroy() {
	d := p.owner.device
	for _, rp := range p.pipelines {
		d.DestroyRenderPipeline(rp)
	}
	clear(p.pipelines)
	for _, s := range p.samplers {
		d.DestroySampler(s)
	}
	clear(p.samplers)
	if p.ubo != nil {
		d.DestroyBuffer(p.ubo)
		p.ubo = nil
	}
	if p.pipeLay != nil {
		d.DestroyPipelineLayout(p.pipeLay)
		p.pipeLay = nil
	}
	if p.layout != nil {
		d.DestroyBindGroupLayout(p.layout)
		p.layout = nil
	}
	if p.fragment != nil {
		d.DestroyShaderModule(p.fragment)
		p.fragment = nil
	}
	if p.vertex != nil {
		d.DestroyShaderModule(p.vertex)
		p.vertex = nil
	}
}

var _ backend.Program = (*Program)(nil)
