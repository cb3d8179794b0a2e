package reel

import (
	"math"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// Filter is an image effect applied to one frame object's rendered layer.
type Filter interface {
	// Apply renders src into dst with the filter effect.
	Apply(src, dst *ebiten.Image)
	// Padding returns the extra pixels the effect may draw outside the
	// source's opaque area (blur radius, outline thickness).
	Padding() int
}

// --- Kage shader sources ---
// All shaders use //kage:unit pixels. Ebitengine images are premultiplied;
// shaders un-premultiply before processing and re-premultiply the output.

const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	r = clamp(r, 0, 1)
	g = clamp(g, 0, 1)
	b = clamp(b, 0, 1)
	a = clamp(a, 0, 1)
	return vec4(r*a, g*a, b*a, a)
}
`

const pixelOutlineShaderSrc = `//kage:unit pixels
package main

var OutlineColor vec4

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		return c
	}
	if imageSrc0At(src + vec2(1, 0)).a > 0 ||
		imageSrc0At(src + vec2(-1, 0)).a > 0 ||
		imageSrc0At(src + vec2(0, 1)).a > 0 ||
		imageSrc0At(src + vec2(0, -1)).a > 0 {
		return OutlineColor
	}
	return vec4(0)
}
`

// lazyShader compiles a built-in shader on first use. Export workers may
// hit it from several goroutines.
type lazyShader struct {
	src    string
	once   sync.Once
	shader *ebiten.Shader
}

func (l *lazyShader) get() *ebiten.Shader {
	l.once.Do(func() {
		s, err := ebiten.NewShader([]byte(l.src))
		if err != nil {
			panic("reel: failed to compile built-in shader: " + err.Error())
		}
		l.shader = s
	})
	return l.shader
}

var (
	colorMatrixShader  = &lazyShader{src: colorMatrixShaderSrc}
	pixelOutlineShader = &lazyShader{src: pixelOutlineShaderSrc}
)

// premultiplied converts c to premultiplied float components scaled by alpha.
func premultiplied(c Color, alpha float64) [4]float32 {
	a := float64(c.A) / 255 * alpha
	return [4]float32{
		float32(float64(c.R) / 255 * a),
		float32(float64(c.G) / 255 * a),
		float32(float64(c.B) / 255 * a),
		float32(a),
	}
}

// --- ColorMatrixFilter ---

// ColorMatrixFilter applies a 4x5 color matrix in row-major order:
// [R_r, R_g, R_b, R_a, R_offset, G_r, ...].
type ColorMatrixFilter struct {
	Matrix    [20]float64
	matrixF32 [20]float32
	uniforms  map[string]any
	shaderOp  ebiten.DrawRectShaderOptions
}

// NewColorMatrixFilter creates a color matrix filter initialized to the identity.
func NewColorMatrixFilter() *ColorMatrixFilter {
	f := &ColorMatrixFilter{uniforms: make(map[string]any, 1)}
	f.uniforms["Matrix"] = f.matrixF32[:]
	f.Matrix[0] = 1
	f.Matrix[6] = 1
	f.Matrix[12] = 1
	f.Matrix[18] = 1
	return f
}

// SetBrightness offsets each channel by b in [-1, 1].
func (f *ColorMatrixFilter) SetBrightness(b float64) {
	f.Matrix = [20]float64{
		1, 0, 0, 0, b,
		0, 1, 0, 0, b,
		0, 0, 1, 0, b,
		0, 0, 0, 1, 0,
	}
}

// SetContrast scales around mid-grey. c=1 is unchanged, 0 is flat grey.
func (f *ColorMatrixFilter) SetContrast(c float64) {
	t := (1.0 - c) / 2.0
	f.Matrix = [20]float64{
		c, 0, 0, 0, t,
		0, c, 0, 0, t,
		0, 0, c, 0, t,
		0, 0, 0, 1, 0,
	}
}

// SetSaturation blends toward luminance. s=1 is unchanged, 0 is greyscale.
func (f *ColorMatrixFilter) SetSaturation(s float64) {
	sr := (1 - s) * 0.299
	sg := (1 - s) * 0.587
	sb := (1 - s) * 0.114
	f.Matrix = [20]float64{
		sr + s, sg, sb, 0, 0,
		sr, sg + s, sb, 0, 0,
		sr, sg, sb + s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

func (f *ColorMatrixFilter) Apply(src, dst *ebiten.Image) {
	for i, v := range f.Matrix {
		f.matrixF32[i] = float32(v)
	}
	bounds := src.Bounds()
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), colorMatrixShader.get(), &f.shaderOp)
}

func (f *ColorMatrixFilter) Padding() int { return 0 }

// --- BlurFilter ---

// BlurFilter applies a Kawase blur through repeated half-size downscales
// and linear upscales.
type BlurFilter struct {
	Radius int
	temps  []*ebiten.Image
	imgOp  ebiten.DrawImageOptions
}

// NewBlurFilter creates a blur filter with the given radius in pixels.
func NewBlurFilter(radius int) *BlurFilter {
	return &BlurFilter{Radius: max(radius, 0)}
}

// blurPasses is the number of downscale passes for a radius.
func blurPasses(radius int) int {
	if radius <= 0 {
		return 0
	}
	return max(int(math.Ceil(math.Log2(float64(radius)))), 1)
}

func (f *BlurFilter) Apply(src, dst *ebiten.Image) {
	op := &f.imgOp
	passes := blurPasses(f.Radius)
	if passes == 0 {
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.Filter = ebiten.FilterNearest
		dst.DrawImage(src, op)
		return
	}

	srcBounds := src.Bounds()
	w, h := srcBounds.Dx(), srcBounds.Dy()
	for len(f.temps) < passes {
		f.temps = append(f.temps, nil)
	}
	for i := passes; i < len(f.temps); i++ {
		if f.temps[i] != nil {
			f.temps[i].Deallocate()
			f.temps[i] = nil
		}
	}
	f.temps = f.temps[:passes]

	current := src
	for i := range passes {
		w = max(w/2, 1)
		h = max(h/2, 1)
		if f.temps[i] == nil || f.temps[i].Bounds().Dx() != w || f.temps[i].Bounds().Dy() != h {
			if f.temps[i] != nil {
				f.temps[i].Deallocate()
			}
			f.temps[i] = ebiten.NewImage(w, h)
		} else {
			f.temps[i].Clear()
		}
		scaleInto(op, current, f.temps[i])
		current = f.temps[i]
	}
	for i := passes - 2; i >= 0; i-- {
		f.temps[i].Clear()
		scaleInto(op, current, f.temps[i])
		current = f.temps[i]
	}
	scaleInto(op, current, dst)
}

// scaleInto draws src stretched over dst with linear filtering.
func scaleInto(op *ebiten.DrawImageOptions, src, dst *ebiten.Image) {
	op.GeoM.Reset()
	op.ColorScale.Reset()
	sb, db := src.Bounds(), dst.Bounds()
	op.GeoM.Scale(float64(db.Dx())/float64(sb.Dx()), float64(db.Dy())/float64(sb.Dy()))
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(src, op)
}

func (f *BlurFilter) Padding() int { return f.Radius }

// --- OutlineFilter ---

// OutlineFilter draws the source at 8 offsets tinted with Color, then the
// original on top. With Dilate set the offsets keep the source colors,
// which grows the shape instead of outlining it.
type OutlineFilter struct {
	Thickness int
	Color     Color
	Dilate    bool
	imgOp     ebiten.DrawImageOptions
}

// NewOutlineFilter creates an outline filter.
func NewOutlineFilter(thickness int, c Color) *OutlineFilter {
	return &OutlineFilter{Thickness: max(thickness, 0), Color: c}
}

// NewDilateFilter grows opaque areas by radius pixels.
func NewDilateFilter(radius int) *OutlineFilter {
	return &OutlineFilter{Thickness: max(radius, 0), Dilate: true}
}

func (f *OutlineFilter) Apply(src, dst *ebiten.Image) {
	t := float64(f.Thickness)
	offsets := [8][2]float64{
		{-t, 0}, {t, 0}, {0, -t}, {0, t},
		{-t, -t}, {t, -t}, {-t, t}, {t, t},
	}
	op := &f.imgOp
	if t > 0 {
		pm := premultiplied(f.Color, 1)
		for _, off := range offsets {
			op.GeoM.Reset()
			op.ColorScale.Reset()
			op.GeoM.Translate(off[0], off[1])
			if !f.Dilate {
				op.ColorScale.Scale(pm[0], pm[1], pm[2], pm[3])
			}
			dst.DrawImage(src, op)
		}
	}
	op.GeoM.Reset()
	op.ColorScale.Reset()
	dst.DrawImage(src, op)
}

func (f *OutlineFilter) Padding() int { return f.Thickness }

// --- PixelOutlineFilter ---

// PixelOutlineFilter draws a 1-pixel outline around non-transparent pixels.
type PixelOutlineFilter struct {
	Color    Color
	colorF32 [4]float32
	uniforms map[string]any
	shaderOp ebiten.DrawRectShaderOptions
}

// NewPixelOutlineFilter creates a 1-pixel outline filter.
func NewPixelOutlineFilter(c Color) *PixelOutlineFilter {
	f := &PixelOutlineFilter{Color: c, uniforms: make(map[string]any, 1)}
	f.uniforms["OutlineColor"] = f.colorF32[:]
	return f
}

func (f *PixelOutlineFilter) Apply(src, dst *ebiten.Image) {
	f.colorF32 = premultiplied(f.Color, 1)
	bounds := src.Bounds()
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), pixelOutlineShader.get(), &f.shaderOp)
}

func (f *PixelOutlineFilter) Padding() int { return 1 }

// --- DropShadowFilter ---

// DropShadowFilter draws a blurred, tinted copy of the source offset by
// Distance along Angle (degrees, clockwise from +x) beneath the original.
type DropShadowFilter struct {
	Color    Color
	Distance float64
	Angle    float64
	blur     BlurFilter
	shadow   *ebiten.Image
	imgOp    ebiten.DrawImageOptions
}

// NewDropShadowFilter creates a drop shadow. softness is the blur radius.
func NewDropShadowFilter(c Color, distance, angle float64, softness int) *DropShadowFilter {
	return &DropShadowFilter{Color: c, Distance: distance, Angle: angle, blur: BlurFilter{Radius: max(softness, 0)}}
}

// offset returns the shadow displacement in pixels.
func (f *DropShadowFilter) offset() (float64, float64) {
	sin, cos := math.Sincos(f.Angle * math.Pi / 180)
	return cos * f.Distance, sin * f.Distance
}

func (f *DropShadowFilter) Apply(src, dst *ebiten.Image) {
	b := src.Bounds()
	if f.shadow == nil || f.shadow.Bounds().Dx() != b.Dx() || f.shadow.Bounds().Dy() != b.Dy() {
		if f.shadow != nil {
			f.shadow.Deallocate()
		}
		f.shadow = ebiten.NewImage(b.Dx(), b.Dy())
	} else {
		f.shadow.Clear()
	}
	op := &f.imgOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.GeoM.Translate(f.offset())
	pm := premultiplied(f.Color, 1)
	op.ColorScale.Scale(pm[0], pm[1], pm[2], pm[3])
	f.shadow.DrawImage(src, op)

	f.blur.Apply(f.shadow, dst)
	op.GeoM.Reset()
	op.ColorScale.Reset()
	dst.DrawImage(src, op)
}

func (f *DropShadowFilter) Padding() int {
	return f.blur.Radius + int(math.Ceil(math.Abs(f.Distance)))
}

// --- Effect mapping ---

// filterFor builds the filter for one effect snapshot. Unknown effect types
// report false. scale converts pixel-valued properties to target pixels.
func filterFor(e *EffectSnapshot, scale float64) (Filter, bool) {
	px := func(name string, def float64) int {
		return int(math.Round(e.Number(name, def) * scale))
	}
	switch strings.TrimPrefix(strings.TrimPrefix(e.Type, "effect."), "filters.") {
	case "blur":
		r := e.Number("radius", 0)
		r = max(r, e.Number("radius_x", 0), e.Number("radius_y", 0))
		return NewBlurFilter(int(math.Round(r * scale))), true
	case "dilate":
		return NewDilateFilter(px("radius", 1)), true
	case "outline":
		return NewOutlineFilter(px("thickness", 1), e.Color("color", ColorBlack)), true
	case "pixel_outline":
		return NewPixelOutlineFilter(e.Color("color", ColorBlack)), true
	case "brightness":
		f := NewColorMatrixFilter()
		f.SetBrightness(e.Number("amount", 0))
		return f, true
	case "contrast":
		f := NewColorMatrixFilter()
		f.SetContrast(e.Number("amount", 1))
		return f, true
	case "saturation":
		f := NewColorMatrixFilter()
		f.SetSaturation(e.Number("amount", 1))
		return f, true
	case "color_matrix":
		f := NewColorMatrixFilter()
		if items, ok := e.Properties["matrix"].AsArray(); ok && len(items) == 20 {
			for i, it := range items {
				f.Matrix[i], _ = it.AsFloat()
			}
		}
		return f, true
	case "drop_shadow":
		return NewDropShadowFilter(
			e.Color("color", Color{0, 0, 0, 128}),
			e.Number("distance", 4)*scale,
			e.Number("angle", 45),
			px("softness", 4),
		), true
	}
	return nil, false
}

// filtersFor maps an effect chain to filters in application order,
// skipping effect types this backend does not implement.
func filtersFor(effects []EffectSnapshot, scale float64) []Filter {
	var out []Filter
	for i := range effects {
		f, ok := filterFor(&effects[i], scale)
		if !ok {
			logger().Debug("reel: effect not supported by renderer", "type", effects[i].Type)
			continue
		}
		out = append(out, f)
	}
	return out
}

// applyFilters runs a filter chain on src, ping-ponging between two pooled
// scratch images. src is never written. release returns the scratch images
// to the pool once the result has been drawn.
func applyFilters(filters []Filter, src *ebiten.Image, pool *layerPool) (result *ebiten.Image, release func()) {
	if len(filters) == 0 {
		return src, func() {}
	}
	b := src.Bounds()
	a := pool.acquire(b.Dx(), b.Dy())
	var c *ebiten.Image
	current, next := src, a
	for i, f := range filters {
		f.Apply(current, next)
		current = next
		if i == len(filters)-1 {
			break
		}
		if next == a {
			if c == nil {
				c = pool.acquire(b.Dx(), b.Dy())
			} else {
				c.Clear()
			}
			next = c
		} else {
			a.Clear()
			next = a
		}
	}
	return current, func() {
		pool.release(a)
		pool.release(c)
	}
}
