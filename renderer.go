package reel

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/google/uuid"
)

// Renderer draws FrameInfos. A render server owns exactly one renderer at a
// time and calls it from a single goroutine.
type Renderer interface {
	// RenderFrame draws f and returns the result.
	RenderFrame(f *FrameInfo) (RenderOutput, error)
	// Clear fills the target with the background color.
	Clear() error
	// SetSharingContext hands the renderer a GPU context to share resources
	// with. nil detaches it.
	SetSharingContext(ctx SharingContext)
	// TakeContext detaches and returns the current sharing context so it can
	// be handed to a replacement renderer.
	TakeContext() SharingContext
}

// SharingContext is an opaque handle to a GPU context owned by the host
// application. reel never inspects it; it only carries it between
// renderers.
type SharingContext any

// RendererFactory creates a renderer of the given pixel size and
// background, attached to ctx.
type RendererFactory func(width, height int, background Color, ctx SharingContext) (Renderer, error)

// RenderOutput is *ImageOutput or *TextureOutput.
type RenderOutput interface {
	Size() (width, height int)
}

// ImageOutput is a CPU-side frame. Pixels holds straight (not
// premultiplied) RGBA, row-major with no padding. Outputs served from the
// render cache are shared; treat Pixels as read-only.
type ImageOutput struct {
	Width, Height int
	Pixels        []byte
}

func (o *ImageOutput) Size() (int, int) { return o.Width, o.Height }

// NRGBA wraps the pixels as an image without copying.
func (o *ImageOutput) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    o.Pixels,
		Stride: 4 * o.Width,
		Rect:   image.Rect(0, 0, o.Width, o.Height),
	}
}

// EncodePNG writes the frame as PNG.
func (o *ImageOutput) EncodePNG(w io.Writer) error {
	return png.Encode(w, o.NRGBA())
}

// WritePNG encodes the frame to a PNG file at path.
func (o *ImageOutput) WritePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := o.EncodePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// TextureOutput is a frame left on the GPU, identified by a handle that is
// meaningful to the sharing context it was rendered in.
type TextureOutput struct {
	ID            uint64
	Width, Height int
}

func (o *TextureOutput) Size() (int, int) { return o.Width, o.Height }

// AssetCache gives renderers and converters read access to loaded media.
// reel never evicts entries.
type AssetCache interface {
	Image(path string) (image.Image, bool)
	Audio(id uuid.UUID) ([]byte, bool)
}
