package wgpu

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fxchain/backend"
	"github.com/gogpu/fxchain/codegen"
	"github.com/gogpu/fxchain/render"
)

// submitTimeout bounds the wait for one submission.
const submitTimeout = 5 * time.Second

const pollInterval = 100 * time.Microsecond

// ErrNoHAL is returned when a device provider does not expose HAL types.
var ErrNoHAL = errors.New("wgpu: provider does not expose HAL device and queue")

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger for device diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// Backend renders through a HAL device owned by the host.
type Backend struct {
	device hal.Device
	queue  hal.Queue
	log    *slog.Logger

	blits  *blitCache
	closed bool
}

// New creates a backend from a device provider. provider must implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
func New(provider any, opts ...Option) (*Backend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %w", backend.ErrBackendNotAvailable, ErrNoHAL)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	return NewWithDevice(device, queue, opts...), nil
}

// NewWithDevice creates a backend from a HAL device and queue.
func NewWithDevice(device hal.Device, queue hal.Queue, opts ...Option) *Backend {
	b := &Backend{
		device: device,
		queue:  queue,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.blits = newBlitCache(device)
	return b
}

// Kind returns backend.WGPU.
func (b *Backend) Kind() backend.Kind { return backend.WGPU }

// Target returns codegen.SPIRV.
func (b *Backend) Target() codegen.Target { return codegen.SPIRV }

// Close releases the blit pipelines. Textures and programs are released by
// their owners.
func (b *Backend) Close() {
	if b.closed {
		return
	}
	b.blits.destroy()
	b.closed = true
}

// Texture is a HAL texture with a view over all mip levels and one view per
// level for rendering.
type Texture struct {
	owner  *Backend
	tex    hal.Texture
	view   hal.TextureView
	levels []hal.TextureView
	width  uint32
	height uint32
	format gputypes.TextureFormat
	// external textures are not destroyed by the backend.
	external bool
}

func (t *Texture) Width() uint32                  { return t.width }
func (t *Texture) Height() uint32                 { return t.height }
func (t *Texture) Format() gputypes.TextureFormat { return t.format }
func (t *Texture) MipLevels() uint32              { return uint32(max(len(t.levels), 1)) }

// View returns the sampling view.
func (t *Texture) View() hal.TextureView { return t.view }

// Destroy releases the texture and its views. It does nothing for wrapped
// textures.
func (t *Texture) Destroy() {
	if t.external || t.tex == nil {
		return
	}
	d := t.owner.device
	for _, v := range t.levels {
		d.DestroyTextureView(v)
	}
	d.DestroyTextureView(t.view)
	d.DestroyTexture(t.tex)
	t.tex, t.view, t.levels = nil, nil, nil
}

// WrapTexture adapts a host texture and view, for example a decoded video
// frame or the swapchain image, so it can be used as a chain input or
// viewport target. The host keeps ownership.
func (b *Backend) WrapTexture(tex hal.Texture, view hal.TextureView, width, height uint32, format gputypes.TextureFormat) *Texture {
	return &Texture{
		owner:    b,
		tex:      tex,
		view:     view,
		levels:   []hal.TextureView{view},
		width:    width,
		height:   height,
		format:   format,
		external: true,
	}
}

func textureUsage(u render.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u&render.TextureUsageCopySrc != 0 {
		out |= gputypes.TextureUsageCopySrc
	}
	if u&render.TextureUsageCopyDst != 0 {
		out |= gputypes.TextureUsageCopyDst
	}
	if u&render.TextureUsageTextureBinding != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u&render.TextureUsageRenderAttachment != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}

// CreateTexture implements render.Device.
func (b *Backend) CreateTexture(desc render.TextureDescriptor) (render.Texture, error) {
	if b.closed {
		return nil, backend.ErrClosed
	}
	levels := max(desc.MipLevelCount, 1)
	usage := desc.Usage
	if usage == 0 {
		usage = render.FramebufferUsage
	}
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: levels,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         textureUsage(usage),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture %q: %w", desc.Label, err)
	}
	t := &Texture{owner: b, tex: tex, width: desc.Width, height: desc.Height, format: desc.Format}

	t.view, err = b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + " view",
		Format:        desc.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: levels,
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create view %q: %w", desc.Label, err)
	}
	for i := range levels {
		v, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:         fmt.Sprintf("%s mip %d", desc.Label, i),
			Format:        desc.Format,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			BaseMipLevel:  i,
			MipLevelCount: 1,
		})
		if err != nil {
			t.Destroy()
			return nil, fmt.Errorf("wgpu: create mip view %q: %w", desc.Label, err)
		}
		t.levels = append(t.levels, v)
	}
	b.log.Debug("wgpu: texture created", "label", desc.Label, "width", desc.Width, "height", desc.Height, "levels", levels)
	return t, nil
}

func (b *Backend) own(tex render.Texture) (*Texture, error) {
	t, ok := tex.(*Texture)
	if !ok || t.owner != b {
		return nil, render.ErrForeignTexture
	}
	return t, nil
}

// WriteTexture implements render.Device.
func (b *Backend) WriteTexture(dst render.Texture, img *image.RGBA) error {
	t, err := b.own(dst)
	if err != nil {
		return err
	}
	w, h := uint32(img.Rect.Dx()), uint32(img.Rect.Dy())
	if w != t.width || h != t.height {
		return fmt.Errorf("wgpu: write %dx%d into %dx%d texture", w, h, t.width, t.height)
	}
	err = b.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		img.Pix,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(img.Stride), RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("wgpu: write texture: %w", err)
	}
	return nil
}

// CopyTexture implements render.Device by drawing src into dst.
func (b *Backend) CopyTexture(dst, src render.Texture) error {
	d, err := b.own(dst)
	if err != nil {
		return err
	}
	s, err := b.own(src)
	if err != nil {
		return err
	}
	return b.blits.blit(b, d.format, d.levels[0], s.view, "copy")
}

// GenerateMipmaps implements render.Device by blitting each level into the
// next.
func (b *Backend) GenerateMipmaps(tex render.Texture) error {
	t, err := b.own(tex)
	if err != nil {
		return err
	}
	for i := 1; i < len(t.levels); i++ {
		if err := b.blits.blit(b, t.format, t.levels[i], t.levels[i-1], "mipmap"); err != nil {
			return fmt.Errorf("wgpu: mip %d: %w", i, err)
		}
	}
	return nil
}

// submit encodes one render pass into target, runs record inside it and
// waits for the GPU.
func (b *Backend) submit(label string, target hal.TextureView, record func(hal.RenderPassEncoder)) error {
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	record(rp)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	idx, err := b.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return b.waitSubmission(idx)
}

// waitSubmission polls the queue until idx completes or submitTimeout
// elapses.
func (b *Backend) waitSubmission(idx uint64) error {
	deadline := time.Now().Add(submitTimeout)
	for b.queue.PollCompleted() < idx {
		if time.Now().After(deadline) {
			return fmt.Errorf("wait for GPU: submission %d not completed after %v", idx, submitTimeout)
		}
		time.Sleep(pollInterval)
	}
	return nil
}

func samplerDescriptor(label string, wrap gputypes.AddressMode, filter gputypes.FilterMode) *hal.SamplerDescriptor {
	return &hal.SamplerDescriptor{
		Label:        label,
		AddressModeU: wrap,
		AddressModeV: wrap,
		AddressModeW: wrap,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: filter,
	}
}

var _ backend.Backend = (*Backend)(nil)
