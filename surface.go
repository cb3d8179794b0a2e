package reel

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// Surface is an offscreen canvas a renderer draws frames into. It is owned
// by one renderer and not safe for concurrent use.
type Surface struct {
	image *ebiten.Image
	w, h  int
}

// NewSurface creates an offscreen canvas of the given size.
func NewSurface(w, h int) *Surface {
	return &Surface{
		image: ebiten.NewImage(w, h),
		w:     w,
		h:     h,
	}
}

// Image returns the underlying *ebiten.Image for direct drawing.
func (s *Surface) Image() *ebiten.Image {
	return s.image
}

// Width returns the surface width in pixels.
func (s *Surface) Width() int {
	return s.w
}

// Height returns the surface height in pixels.
func (s *Surface) Height() int {
	return s.h
}

// Clear fills the surface with transparent black.
func (s *Surface) Clear() {
	s.image.Clear()
}

// Fill fills the entire surface with c.
func (s *Surface) Fill(c Color) {
	s.image.Fill(c)
}

// DrawImage draws src through the affine matrix m at the given opacity.
func (s *Surface) DrawImage(src *ebiten.Image, m [6]float64, opacity float64, blend BlendMode) {
	drawImage(s.image, src, m, opacity, blend)
}

// Resize replaces the backing image with a cleared one of the new size.
// Resizing to the current size is a no-op.
func (s *Surface) Resize(w, h int) {
	if s.image != nil && w == s.w && h == s.h {
		return
	}
	if s.image != nil {
		s.image.Deallocate()
	}
	s.image = ebiten.NewImage(w, h)
	s.w = w
	s.h = h
}

// Dispose releases the backing image. The surface must not be used after.
func (s *Surface) Dispose() {
	if s.image != nil {
		s.image.Deallocate()
		s.image = nil
	}
}

// ReadPixels copies the surface to the CPU as straight-alpha RGBA.
func (s *Surface) ReadPixels() *ImageOutput {
	pix := make([]byte, 4*s.w*s.h)
	s.image.ReadPixels(pix)
	unpremultiply(pix)
	return &ImageOutput{Width: s.w, Height: s.h, Pixels: pix}
}

// unpremultiply converts premultiplied RGBA to straight alpha in place.
func unpremultiply(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		a := pix[i+3]
		if a == 0 || a == 255 {
			continue
		}
		pix[i] = uint8(min(int(pix[i])*255/int(a), 255))
		pix[i+1] = uint8(min(int(pix[i+1])*255/int(a), 255))
		pix[i+2] = uint8(min(int(pix[i+2])*255/int(a), 255))
	}
}

// geoM converts a [6]float64 affine matrix into an ebiten.GeoM.
func geoM(m [6]float64) ebiten.GeoM {
	var g ebiten.GeoM
	g.SetElement(0, 0, m[0])
	g.SetElement(1, 0, m[1])
	g.SetElement(0, 1, m[2])
	g.SetElement(1, 1, m[3])
	g.SetElement(0, 2, m[4])
	g.SetElement(1, 2, m[5])
	return g
}

// --- Layer pool ---

// layerPool keeps offscreen images for per-object effect layers, keyed by
// exact size. A renderer draws every layer at its target size, so after
// the first frame acquire and release do not allocate.
type layerPool struct {
	buckets map[uint64][]*ebiten.Image
}

func layerKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// acquire returns a cleared image of exactly w by h pixels.
func (p *layerPool) acquire(w, h int) *ebiten.Image {
	key := layerKey(w, h)
	if stack := p.buckets[key]; len(stack) > 0 {
		img := stack[len(stack)-1]
		p.buckets[key] = stack[:len(stack)-1]
		img.Clear()
		return img
	}
	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, w, h),
		&ebiten.NewImageOptions{Unmanaged: true},
	)
}

// release returns img to the pool. nil is ignored.
func (p *layerPool) release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	key := layerKey(b.Dx(), b.Dy())
	p.buckets[key] = append(p.buckets[key], img)
}

// size reports how many images are pooled.
func (p *layerPool) size() int {
	n := 0
	for _, stack := range p.buckets {
		n += len(stack)
	}
	return n
}

// dispose deallocates every pooled image.
func (p *layerPool) dispose() {
	for key, stack := range p.buckets {
		for _, img := range stack {
			img.Deallocate()
		}
		delete(p.buckets, key)
	}
}
