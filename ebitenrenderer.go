package reel

import (
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// EbitenOptions configures renderers made by NewEbitenRendererFactory.
type EbitenOptions struct {
	// Assets supplies images and video frames. Optional.
	Assets AssetCache
	// Fonts resolves font families. nil gives every renderer its own book
	// holding only the fallback face.
	Fonts *FontBook
}

// NewEbitenRendererFactory returns a RendererFactory for a RenderServer.
func NewEbitenRendererFactory(opts EbitenOptions) RendererFactory {
	return func(w, h int, bg Color, ctx SharingContext) (Renderer, error) {
		r, err := NewEbitenRenderer(w, h, bg, ctx, opts)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// EbitenRenderer draws frames into an offscreen ebiten surface. Output is
// read back as an *ImageOutput unless the sharing context is a
// *TextureRegistry, in which case frames are published as textures.
type EbitenRenderer struct {
	surface *Surface
	bg      Color
	ctx     SharingContext
	assets  AssetCache
	fonts   *FontBook
	pool    layerPool
	now     float64

	images  map[string]*ebiten.Image
	paths   map[string]ShapePath      // nil value: path failed to parse
	shaders map[string]*ebiten.Shader // nil value: shader failed to compile
}

// NewEbitenRenderer creates a renderer with a w by h surface.
func NewEbitenRenderer(w, h int, bg Color, ctx SharingContext, opts EbitenOptions) (*EbitenRenderer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("reel: renderer size must be positive, got %dx%d", w, h)
	}
	fonts := opts.Fonts
	if fonts == nil {
		var err error
		if fonts, err = NewFontBook(); err != nil {
			return nil, err
		}
	}
	return &EbitenRenderer{
		surface: NewSurface(w, h),
		bg:      bg,
		ctx:     ctx,
		assets:  opts.Assets,
		fonts:   fonts,
		images:  make(map[string]*ebiten.Image),
		paths:   make(map[string]ShapePath),
		shaders: make(map[string]*ebiten.Shader),
	}, nil
}

// Measurer returns the renderer's font book for use by a FrameEvaluator.
func (r *EbitenRenderer) Measurer() TextMeasurer { return r.fonts }

// Clear fills the surface with the background color.
func (r *EbitenRenderer) Clear() error {
	r.surface.Fill(r.bg)
	return nil
}

func (r *EbitenRenderer) SetSharingContext(ctx SharingContext) { r.ctx = ctx }

func (r *EbitenRenderer) TakeContext() SharingContext {
	ctx := r.ctx
	r.ctx = nil
	return ctx
}

// Dispose releases every GPU image the renderer holds. A RenderServer
// calls it on the renderer it replaces.
func (r *EbitenRenderer) Dispose() {
	r.surface.Dispose()
	r.pool.dispose()
	for k, img := range r.images {
		img.Deallocate()
		delete(r.images, k)
	}
}

// RenderFrame draws f. The frame's target size must match the surface.
func (r *EbitenRenderer) RenderFrame(f *FrameInfo) (RenderOutput, error) {
	if f == nil {
		return nil, fmt.Errorf("reel: render of nil frame")
	}
	w, h := f.TargetSize()
	if w != r.surface.Width() || h != r.surface.Height() {
		return nil, fmt.Errorf("reel: frame is %dx%d but the renderer is %dx%d", w, h, r.surface.Width(), r.surface.Height())
	}
	r.now = f.NowTime
	r.surface.Fill(r.bg)
	base, scale := frameBase(f)
	for i := range f.Objects {
		r.drawObject(&f.Objects[i], base, scale)
	}
	return r.output(), nil
}

func (r *EbitenRenderer) output() RenderOutput {
	if reg, ok := r.ctx.(*TextureRegistry); ok {
		img := ebiten.NewImage(r.surface.Width(), r.surface.Height())
		img.DrawImage(r.surface.Image(), nil)
		return &TextureOutput{ID: reg.publish(img), Width: r.surface.Width(), Height: r.surface.Height()}
	}
	return r.surface.ReadPixels()
}

// frameBase maps composition pixels to target pixels: the region origin
// moves to (0, 0) and everything is scaled by the render scale.
func frameBase(f *FrameInfo) ([6]float64, float64) {
	s := f.RenderScale
	if s <= 0 {
		s = 1
	}
	m := [6]float64{s, 0, 0, s, 0, 0}
	if f.Region != nil {
		m[4] = -f.Region.X * s
		m[5] = -f.Region.Y * s
	}
	return m, s
}

func (r *EbitenRenderer) drawObject(o *FrameObject, base [6]float64, scale float64) {
	if o.Content == nil {
		return
	}
	common := o.Content.Common()
	own := applyEffectors(common.Transform, common.Effectors)
	alpha := o.Opacity * worldOpacity(o.Parents, own)
	if alpha <= 0 {
		return
	}
	m := multiplyAffine(base, worldMatrix(o.Parents, own))

	// Objects with effects draw opaque into a layer that is filtered and
	// then composited with the object's opacity and blend mode.
	dst, drawAlpha, blend := r.surface.Image(), alpha, o.BlendMode
	filters := filtersFor(common.Effects, scale)
	var layer *ebiten.Image
	if len(filters) > 0 {
		layer = r.pool.acquire(r.surface.Width(), r.surface.Height())
		dst, drawAlpha, blend = layer, 1, BlendNormal
	}

	if len(common.Decorators) > 0 {
		if b, ok := r.localBounds(o.Content); ok {
			for _, bp := range backplates(common.Decorators, b) {
				fillPath(dst, buildPath(bp.Path, m), bp.Color, drawAlpha, blend)
			}
		}
	}

	switch c := o.Content.(type) {
	case *TextContent:
		r.drawText(dst, c, m, drawAlpha, blend)
	case *ShapeContent:
		r.drawShape(dst, c, m, drawAlpha, blend)
	case *ImageContent:
		if img, ok := r.image(c.FilePath); ok {
			drawImage(dst, img, m, drawAlpha, blend)
		}
	case *VideoContent:
		r.drawVideo(dst, c, m, drawAlpha, blend)
	case *SkSLContent:
		r.drawShader(dst, c, m, drawAlpha, blend)
	}

	if layer != nil {
		result, release := applyFilters(filters, layer, &r.pool)
		r.surface.DrawImage(result, identityAffine, alpha, o.BlendMode)
		release()
		r.pool.release(layer)
	}
}

// localBounds is the content's extent before its transform.
func (r *EbitenRenderer) localBounds(c FrameContent) (Rect, bool) {
	switch c := c.(type) {
	case *TextContent:
		w, h := r.fonts.MeasureText(c.Text, c.Font, c.Size)
		return Rect{Width: w, Height: h}, w > 0 && h > 0
	case *ShapeContent:
		if p, ok := r.path(c.Path); ok {
			return p.Bounds()
		}
	case *ImageContent:
		if img, ok := r.image(c.FilePath); ok {
			b := img.Bounds()
			return Rect{Width: float64(b.Dx()), Height: float64(b.Dy())}, true
		}
	case *VideoContent:
		if r.assets != nil {
			if img, ok := r.assets.Image(VideoFrameKey(c.FilePath, c.FrameNumber)); ok {
				b := img.Bounds()
				return Rect{Width: float64(b.Dx()), Height: float64(b.Dy())}, true
			}
		}
	case *SkSLContent:
		return Rect{Width: c.Resolution.X, Height: c.Resolution.Y}, c.Resolution.X > 0 && c.Resolution.Y > 0
	}
	return Rect{}, false
}

// --- Text ---

// ringOffsets are the 8 directions text is repeated in to thicken it.
func ringOffsets(t float64) [8]Vec2 {
	return [8]Vec2{
		{-t, 0}, {t, 0}, {0, -t}, {0, t},
		{-t, -t}, {t, -t}, {-t, t}, {t, t},
	}
}

// drawText paints each style in order. Strokes and positive fill offsets
// are drawn as copies of the glyphs spread around the original.
func (r *EbitenRenderer) drawText(dst *ebiten.Image, c *TextContent, m [6]float64, alpha float64, blend BlendMode) {
	if c.Text == "" || c.Size <= 0 {
		return
	}
	face := r.fonts.Face(c.Font, c.Size)
	lh := lineHeight(face)
	styles := c.Styles
	if len(styles) == 0 {
		styles = []DrawStyle{{Kind: StyleFill, Color: c.Color}}
	}
	for _, st := range styles {
		spread := st.Offset
		if st.Kind == StyleStroke {
			spread = st.Width/2 + st.Offset
		}
		if spread > 0 {
			for _, d := range ringOffsets(spread) {
				drawTextAt(dst, c.Text, face, lh, m, d, st.Color, alpha, blend)
			}
		}
		if st.Kind == StyleFill {
			drawTextAt(dst, c.Text, face, lh, m, Vec2{}, st.Color, alpha, blend)
		}
	}
}

func drawTextAt(dst *ebiten.Image, s string, face *text.GoTextFace, lh float64, m [6]float64, d Vec2, c Color, alpha float64, blend BlendMode) {
	op := &text.DrawOptions{}
	op.GeoM = geoM(multiplyAffine(m, [6]float64{1, 0, 0, 1, d.X, d.Y}))
	op.ColorScale.ScaleWithColor(c)
	op.ColorScale.ScaleAlpha(float32(alpha))
	op.Blend = blend.EbitenBlend()
	op.LineSpacing = lh
	text.Draw(dst, s, face, op)
}

// --- Shapes ---

func (r *EbitenRenderer) path(d string) (ShapePath, bool) {
	if p, ok := r.paths[d]; ok {
		return p, p != nil
	}
	p, err := ParseSVGPath(d)
	if err != nil {
		logger().Warn("reel: invalid shape path", "err", err)
		p = nil
	}
	r.paths[d] = p
	return p, p != nil
}

func (r *EbitenRenderer) drawShape(dst *ebiten.Image, c *ShapeContent, m [6]float64, alpha float64, blend BlendMode) {
	p, ok := r.path(c.Path)
	if !ok {
		return
	}
	var lines []polyline
	if len(c.PathEffects) > 0 {
		lines = applyPathEffects(p, c.PathEffects)
	}
	outline := func() *vector.Path {
		if lines != nil {
			return buildPolylinePath(lines, m)
		}
		return buildPath(p, m)
	}
	k := matrixScale(m)
	styles := c.Styles
	if len(styles) == 0 {
		styles = []DrawStyle{DefaultFill}
	}
	for _, st := range styles {
		switch st.Kind {
		case StyleFill:
			r.fillOffset(dst, outline(), st.Color, st.Offset*k, alpha, blend)
		case StyleStroke:
			w := (st.Width + 2*st.Offset) * k
			if w <= 0 {
				continue
			}
			vp := outline()
			if len(st.DashArray) > 0 {
				dl := lines
				if dl == nil {
					dl = flatten(p)
				}
				vp = buildPolylinePath(dashPolylines(dl, st.DashArray, st.DashOffset), m)
			}
			strokePath(dst, vp, w, st.Cap, st.Join, st.Miter, st.Color, alpha, blend)
		}
	}
}

// fillOffset fills vp grown (offset > 0) or eroded (offset < 0) by offset
// target pixels.
func (r *EbitenRenderer) fillOffset(dst *ebiten.Image, vp *vector.Path, c Color, offset, alpha float64, blend BlendMode) {
	switch {
	case offset == 0:
		fillPath(dst, vp, c, alpha, blend)
	case offset > 0:
		fillPath(dst, vp, c, alpha, blend)
		strokePath(dst, vp, 2*offset, CapRound, JoinRound, 4, c, alpha, blend)
	default:
		b := dst.Bounds()
		layer := r.pool.acquire(b.Dx(), b.Dy())
		fillPath(layer, vp, c, 1, BlendNormal)
		eraseStroke(layer, vp, -2*offset)
		drawImage(dst, layer, identityAffine, alpha, blend)
		r.pool.release(layer)
	}
}

// matrixScale is the uniform scale factor of m, used for stroke widths.
func matrixScale(m [6]float64) float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

func transformed(m [6]float64, v Vec2) (float32, float32) {
	x, y := transformPoint(m, v.X, v.Y)
	return float32(x), float32(y)
}

// buildPath converts p to a vector path in target pixels. Affine maps keep
// Bézier curves exact, so control points are transformed directly.
func buildPath(p ShapePath, m [6]float64) *vector.Path {
	var vp vector.Path
	for _, seg := range p {
		switch seg.Op {
		case OpMoveTo:
			vp.MoveTo(transformed(m, seg.Pts[0]))
		case OpLineTo:
			vp.LineTo(transformed(m, seg.Pts[0]))
		case OpQuadTo:
			cx, cy := transformed(m, seg.Pts[0])
			ex, ey := transformed(m, seg.Pts[1])
			vp.QuadTo(cx, cy, ex, ey)
		case OpCubicTo:
			c1x, c1y := transformed(m, seg.Pts[0])
			c2x, c2y := transformed(m, seg.Pts[1])
			ex, ey := transformed(m, seg.Pts[2])
			vp.CubicTo(c1x, c1y, c2x, c2y, ex, ey)
		case OpClose:
			vp.Close()
		}
	}
	return &vp
}

func buildPolylinePath(lines []polyline, m [6]float64) *vector.Path {
	var vp vector.Path
	for _, pl := range lines {
		if len(pl.Pts) == 0 {
			continue
		}
		vp.MoveTo(transformed(m, pl.Pts[0]))
		for _, pt := range pl.Pts[1:] {
			vp.LineTo(transformed(m, pt))
		}
		if pl.Closed {
			vp.Close()
		}
	}
	return &vp
}

var (
	whitePixelOnce  sync.Once
	whitePixelImage *ebiten.Image
)

// whitePixel is the 1x1 source image for untextured triangles.
func whitePixel() *ebiten.Image {
	whitePixelOnce.Do(func() {
		whitePixelImage = ebiten.NewImage(1, 1)
		whitePixelImage.Fill(color.White)
	})
	return whitePixelImage
}

// colorVertices paints every vertex with c at alpha and points it at the
// center of the white pixel. Vertex colors are straight alpha.
func colorVertices(vs []ebiten.Vertex, c Color, alpha float64) {
	r, g, b := float32(c.R)/255, float32(c.G)/255, float32(c.B)/255
	a := float32(float64(c.A) / 255 * alpha)
	for i := range vs {
		vs[i].SrcX, vs[i].SrcY = 0.5, 0.5
		vs[i].ColorR, vs[i].ColorG, vs[i].ColorB, vs[i].ColorA = r, g, b, a
	}
}

func fillPath(dst *ebiten.Image, vp *vector.Path, c Color, alpha float64, blend BlendMode) {
	vs, is := vp.AppendVerticesAndIndicesForFilling(nil, nil)
	if len(is) == 0 {
		return
	}
	colorVertices(vs, c, alpha)
	dst.DrawTriangles(vs, is, whitePixel(), &ebiten.DrawTrianglesOptions{
		AntiAlias: true,
		FillRule:  ebiten.FillRuleNonZero,
		Blend:     blend.EbitenBlend(),
	})
}

func strokeVertices(vp *vector.Path, width float64, capType CapType, join JoinType, miter float64) ([]ebiten.Vertex, []uint16) {
	op := &vector.StrokeOptions{
		Width:      float32(width),
		LineCap:    lineCap(capType),
		LineJoin:   lineJoin(join),
		MiterLimit: float32(miter),
	}
	return vp.AppendVerticesAndIndicesForStroke(nil, nil, op)
}

func strokePath(dst *ebiten.Image, vp *vector.Path, width float64, capType CapType, join JoinType, miter float64, c Color, alpha float64, blend BlendMode) {
	vs, is := strokeVertices(vp, width, capType, join, miter)
	if len(is) == 0 {
		return
	}
	colorVertices(vs, c, alpha)
	dst.DrawTriangles(vs, is, whitePixel(), &ebiten.DrawTrianglesOptions{
		AntiAlias: true,
		Blend:     blend.EbitenBlend(),
	})
}

// eraseStroke clears a band of the given width along vp.
func eraseStroke(dst *ebiten.Image, vp *vector.Path, width float64) {
	vs, is := strokeVertices(vp, width, CapRound, JoinRound, 4)
	if len(is) == 0 {
		return
	}
	colorVertices(vs, ColorBlack, 1)
	dst.DrawTriangles(vs, is, whitePixel(), &ebiten.DrawTrianglesOptions{
		AntiAlias: true,
		Blend:     ebiten.BlendDestinationOut,
	})
}

func lineCap(c CapType) vector.LineCap {
	switch c {
	case CapRound:
		return vector.LineCapRound
	case CapButt:
		return vector.LineCapButt
	}
	return vector.LineCapSquare
}

func lineJoin(j JoinType) vector.LineJoin {
	switch j {
	case JoinBevel:
		return vector.LineJoinBevel
	case JoinMiter:
		return vector.LineJoinMiter
	}
	return vector.LineJoinRound
}

// --- Images, video, shaders ---

// image returns the GPU copy of an asset image, uploading it on first use.
func (r *EbitenRenderer) image(path string) (*ebiten.Image, bool) {
	if img, ok := r.images[path]; ok {
		return img, true
	}
	if r.assets == nil {
		return nil, false
	}
	src, ok := r.assets.Image(path)
	if !ok {
		return nil, false
	}
	img := ebiten.NewImageFromImage(src)
	r.images[path] = img
	return img, true
}

func drawImage(dst, img *ebiten.Image, m [6]float64, alpha float64, blend BlendMode) {
	var op ebiten.DrawImageOptions
	op.GeoM = geoM(m)
	op.ColorScale.ScaleAlpha(float32(alpha))
	op.Blend = blend.EbitenBlend()
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(img, &op)
}

// drawVideo draws the frame the asset cache holds under VideoFrameKey.
// Frames are uploaded per draw and not kept on the GPU.
func (r *EbitenRenderer) drawVideo(dst *ebiten.Image, c *VideoContent, m [6]float64, alpha float64, blend BlendMode) {
	if r.assets == nil {
		return
	}
	src, ok := r.assets.Image(VideoFrameKey(c.FilePath, c.FrameNumber))
	if !ok {
		logger().Debug("reel: video frame not available", "path", c.FilePath, "frame", c.FrameNumber)
		return
	}
	img := ebiten.NewImageFromImage(src)
	drawImage(dst, img, m, alpha, blend)
	img.Deallocate()
}

// shader compiles and caches a Kage program. Compile errors are logged
// once per source.
func (r *EbitenRenderer) shader(src string) (*ebiten.Shader, bool) {
	if s, ok := r.shaders[src]; ok {
		return s, s != nil
	}
	s, err := ebiten.NewShader([]byte(src))
	if err != nil {
		logger().Warn("reel: shader failed to compile", "err", err)
		s = nil
	}
	r.shaders[src] = s
	return s, s != nil
}

// drawShader runs a shader clip over its resolution. The program sees
// Resolution (vec2, pixels) and Time (seconds) uniforms.
func (r *EbitenRenderer) drawShader(dst *ebiten.Image, c *SkSLContent, m [6]float64, alpha float64, blend BlendMode) {
	w, h := int(c.Resolution.X), int(c.Resolution.Y)
	if w <= 0 || h <= 0 || c.Shader == "" {
		return
	}
	s, ok := r.shader(c.Shader)
	if !ok {
		return
	}
	op := &ebiten.DrawRectShaderOptions{}
	op.GeoM = geoM(m)
	op.ColorScale.ScaleAlpha(float32(alpha))
	op.Blend = blend.EbitenBlend()
	op.Uniforms = map[string]any{
		"Resolution": []float32{float32(c.Resolution.X), float32(c.Resolution.Y)},
		"Time":       float32(r.now),
	}
	dst.DrawRectShader(w, h, s, op)
}
