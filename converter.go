package reel

import (
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// EntityConverter turns an active clip into a FrameObject. Implementations
// must be stateless: one converter serves every clip of its kind, possibly
// from several goroutines.
type EntityConverter interface {
	// Convert builds the clip's frame object. ok is false when the clip
	// cannot be drawn at this frame; the clip is then dropped.
	Convert(ctx *ConvertContext, clip *Clip, frame int64) (obj FrameObject, ok bool)
	// Bounds returns the clip's canvas-space bounding box at frame.
	Bounds(ctx *ConvertContext, clip *Clip, frame int64) (Rect, bool)
}

// TextMeasurer measures a text run. Renderers that can shape text provide
// one so that text bounds match what is drawn.
type TextMeasurer interface {
	MeasureText(text, font string, size float64) (width, height float64)
}

// ConvertContext is what converters see: the composition being evaluated,
// the property evaluators and optional measurement helpers.
type ConvertContext struct {
	Composition *Composition
	Evaluators  *EvaluatorRegistry
	Measurer    TextMeasurer // optional
	Assets      AssetCache   // optional
}

// LocalTime maps a timeline frame to clip-local seconds.
func (ctx *ConvertContext) LocalTime(clip *Clip, frame int64) float64 {
	compFPS := ctx.Composition.FPS
	clipFPS := clip.FPS
	if clipFPS <= 0 {
		clipFPS = compFPS
	}
	return float64(clip.SourceBeginFrame)/clipFPS + float64(frame-clip.InFrame)/compFPS
}

// Value evaluates the named property at t. ok is false when it is absent.
func (ctx *ConvertContext) Value(pm *PropertyMap, name string, t float64) (Value, bool) {
	return ctx.Evaluators.EvaluateNamed(pm, name, t, ctx.Composition.FPS)
}

// Number evaluates a numeric property. A missing property yields def
// quietly; a non-numeric one yields def with a warning.
func (ctx *ConvertContext) Number(pm *PropertyMap, name string, t, def float64) float64 {
	v, ok := ctx.Value(pm, name, t)
	if !ok {
		return def
	}
	if f, ok := v.AsFloat(); ok {
		return f
	}
	logger().Warn("reel: property is not numeric, using default",
		"property", name, "value", v.String(), "t", t, "default", def)
	return def
}

// Vec2 evaluates a point property given as a Vec2, a {x, y} Map or a
// two-number Array. The scalar properties name_x and name_y override the
// components when present.
func (ctx *ConvertContext) Vec2(pm *PropertyMap, name string, t float64, def Vec2) Vec2 {
	out := def
	if v, ok := ctx.Value(pm, name, t); ok {
		switch v.Kind() {
		case KindVec2:
			out, _ = v.AsVec2()
		case KindMap:
			m, _ := v.AsMap()
			if x, ok := m["x"]; ok {
				if f, ok := x.AsFloat(); ok {
					out.X = f
				}
			}
			if y, ok := m["y"]; ok {
				if f, ok := y.AsFloat(); ok {
					out.Y = f
				}
			}
		case KindArray:
			arr, _ := v.AsArray()
			if len(arr) >= 2 {
				x, okX := arr[0].AsFloat()
				y, okY := arr[1].AsFloat()
				if okX && okY {
					out = Vec2{x, y}
				}
			}
		}
	}
	if v, ok := ctx.Value(pm, name+"_x", t); ok {
		if f, ok := v.AsFloat(); ok {
			out.X = f
		}
	}
	if v, ok := ctx.Value(pm, name+"_y", t); ok {
		if f, ok := v.AsFloat(); ok {
			out.Y = f
		}
	}
	return out
}

// Color evaluates a color property given as a Color or a {r, g, b, a} Map
// of 0-255 channels. A Map without "a" keeps def's alpha.
func (ctx *ConvertContext) Color(pm *PropertyMap, name string, t float64, def Color) Color {
	v, ok := ctx.Value(pm, name, t)
	if !ok {
		return def
	}
	if c, ok := v.AsColor(); ok {
		return c
	}
	if m, ok := v.AsMap(); ok {
		return mapToColor(m, def.A)
	}
	return def
}

func mapToColor(m map[string]Value, defAlpha uint8) Color {
	channel := func(key string, def uint8) uint8 {
		v, ok := m[key]
		if !ok {
			return def
		}
		f, ok := v.AsFloat()
		if !ok {
			return def
		}
		return uint8(math.Max(0, math.Min(255, math.Trunc(f))))
	}
	return Color{R: channel("r", 0), G: channel("g", 0), B: channel("b", 0), A: channel("a", defAlpha)}
}

// RequireString evaluates a property that must be a string. Anything else
// is logged and reported as missing.
func (ctx *ConvertContext) RequireString(pm *PropertyMap, name string, t float64, kind ClipKind) (string, bool) {
	v, ok := ctx.Value(pm, name, t)
	if ok {
		if s, ok := v.AsString(); ok {
			return s, true
		}
	}
	logger().Warn("reel: invalid or missing property, skipping clip",
		"kind", kind.String(), "property", name, "value", v.String(), "present", ok)
	return "", false
}

// OptionalString evaluates a string property, or returns def.
func (ctx *ConvertContext) OptionalString(pm *PropertyMap, name string, t float64, def string) string {
	if v, ok := ctx.Value(pm, name, t); ok {
		if s, ok := v.AsString(); ok {
			return s
		}
	}
	return def
}

// OptionalBool evaluates a boolean property, or returns def.
func (ctx *ConvertContext) OptionalBool(pm *PropertyMap, name string, t float64, def bool) bool {
	if v, ok := ctx.Value(pm, name, t); ok {
		if b, ok := v.AsBool(); ok {
			return b
		}
	}
	return def
}

// Transform builds the clip's placement at t from position, scale (percent),
// anchor, rotation (degrees) and opacity (percent). A compositing.transform
// node wired to the clip supplies any of these it defines.
func (ctx *ConvertContext) Transform(clip *Clip, t float64) Transform {
	pm := clip.Properties
	if id := ctx.Composition.ResolveClipContext(clip.ID).Transform; id != uuid.Nil {
		if g, ok := ctx.Composition.GraphNode(id); ok {
			pm = overlayProperties(clip.Properties, g.Properties)
		}
	}
	return ctx.transformFrom(pm, t)
}

func (ctx *ConvertContext) transformFrom(pm *PropertyMap, t float64) Transform {
	scale := ctx.Vec2(pm, "scale", t, Vec2{100, 100})
	return Transform{
		Position: ctx.Vec2(pm, "position", t, Vec2{}),
		Scale:    Vec2{scale.X / 100, scale.Y / 100},
		Anchor:   ctx.Vec2(pm, "anchor", t, Vec2{}),
		Rotation: ctx.Number(pm, "rotation", t, 0),
		Opacity:  ctx.Number(pm, "opacity", t, 100) / 100,
	}
}

// overlayProperties returns base with every property of top laid over it.
func overlayProperties(base, top *PropertyMap) *PropertyMap {
	out := base.Clone()
	for name, p := range top.All() {
		out.Set(name, p)
	}
	return out
}

// Styles evaluates the clip's style instances followed by any style.* graph
// nodes attached to it. Unknown style types are skipped.
func (ctx *ConvertContext) Styles(clip *Clip, t float64) []DrawStyle {
	var out []DrawStyle
	for _, in := range clip.Styles {
		if s, ok := ctx.drawStyle(in.ID, in.Type, in.Properties, t); ok {
			out = append(out, s)
		}
	}
	for _, id := range ctx.Composition.ResolveClipContext(clip.ID).Styles {
		if g, ok := ctx.Composition.GraphNode(id); ok {
			if s, ok := ctx.drawStyle(g.ID, g.TypeID, g.Properties, t); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func (ctx *ConvertContext) drawStyle(id uuid.UUID, typ string, pm *PropertyMap, t float64) (DrawStyle, bool) {
	s := DrawStyle{
		ID:     id,
		Color:  ctx.Color(pm, "color", t, ColorBlack),
		Offset: ctx.Number(pm, "offset", t, 0),
	}
	switch strings.TrimPrefix(typ, prefixStyle) {
	case "fill":
		s.Kind = StyleFill
	case "stroke":
		s.Kind = StyleStroke
		s.Width = ctx.Number(pm, "width", t, 1)
		s.Miter = ctx.Number(pm, "miter", t, 4)
		s.DashOffset = ctx.Number(pm, "dash_offset", t, 0)
		s.Cap = parseCap(ctx.OptionalString(pm, "cap", t, ""))
		s.Join = parseJoin(ctx.OptionalString(pm, "join", t, ""))
		if v, ok := ctx.Value(pm, "dash_array", t); ok {
			s.DashArray = floats(v)
		}
	default:
		return DrawStyle{}, false
	}
	return s, true
}

func parseCap(s string) CapType {
	switch s {
	case "round":
		return CapRound
	case "butt":
		return CapButt
	}
	return CapSquare
}

func parseJoin(s string) JoinType {
	switch s {
	case "bevel":
		return JoinBevel
	case "miter":
		return JoinMiter
	}
	return JoinRound
}

// floats flattens a numeric Array value.
func floats(v Value) []float64 {
	arr, ok := v.AsArray()
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, item := range arr {
		if f, ok := item.AsFloat(); ok {
			out = append(out, f)
		}
	}
	return out
}

// snapshot evaluates every property of an instance at t.
func (ctx *ConvertContext) snapshot(id uuid.UUID, typ string, pm *PropertyMap, t float64) EffectSnapshot {
	props := make(map[string]Value, pm.Len())
	evalCtx := EvalContext{Properties: pm, FPS: ctx.Composition.FPS}
	for name, p := range pm.All() {
		props[name] = ctx.Evaluators.Evaluate(p, t, evalCtx)
	}
	return EffectSnapshot{ID: id, Type: typ, Properties: props}
}

func (ctx *ConvertContext) snapshots(instances []Instance, graph []uuid.UUID, t float64) []EffectSnapshot {
	var out []EffectSnapshot
	for _, in := range instances {
		out = append(out, ctx.snapshot(in.ID, in.Type, in.Properties, t))
	}
	for _, id := range graph {
		if g, ok := ctx.Composition.GraphNode(id); ok {
			out = append(out, ctx.snapshot(g.ID, g.TypeID, g.Properties, t))
		}
	}
	return out
}

// Common evaluates the transform, effects, effectors and decorators shared
// by every content kind.
func (ctx *ConvertContext) Common(clip *Clip, t float64) ContentCommon {
	gc := ctx.Composition.ResolveClipContext(clip.ID)
	return ContentCommon{
		Transform:  ctx.Transform(clip, t),
		Effects:    ctx.snapshots(clip.Effects, gc.Effects, t),
		Effectors:  ctx.snapshots(clip.Effectors, gc.Effectors, t),
		Decorators: ctx.snapshots(clip.Decorators, gc.Decorators, t),
	}
}

// PathEffects evaluates the clip's path_effects Array. Entries that are not
// recognised path effect maps are logged and skipped.
func (ctx *ConvertContext) PathEffects(pm *PropertyMap, t float64) []PathEffect {
	v, ok := ctx.Value(pm, "path_effects", t)
	if !ok {
		return nil
	}
	arr, ok := v.AsArray()
	if !ok {
		return nil
	}
	var out []PathEffect
	for _, item := range arr {
		pe, ok := parsePathEffect(item)
		if !ok {
			logger().Warn("reel: failed to parse path effect", "value", item.String())
			continue
		}
		out = append(out, pe)
	}
	return out
}

func (ctx *ConvertContext) canvasBounds(clip *Clip, t float64, local Rect) Rect {
	return transformRect(ctx.Transform(clip, t).Matrix(), local)
}

// ConverterRegistry maps clip kinds to converters.
type ConverterRegistry struct {
	mu         sync.RWMutex
	converters map[ClipKind]EntityConverter
}

// NewConverterRegistry returns an empty registry.
func NewConverterRegistry() *ConverterRegistry {
	return &ConverterRegistry{converters: make(map[ClipKind]EntityConverter)}
}

// NewDefaultConverterRegistry returns a registry with the text, shape,
// image, video and sksl converters installed.
func NewDefaultConverterRegistry() *ConverterRegistry {
	r := NewConverterRegistry()
	r.Register(ClipText, TextConverter{})
	r.Register(ClipShape, ShapeConverter{})
	r.Register(ClipImage, ImageConverter{})
	r.Register(ClipVideo, VideoConverter{})
	r.Register(ClipSkSL, SkSLConverter{})
	return r
}

// Register installs c for kind, replacing any previous converter.
func (r *ConverterRegistry) Register(kind ClipKind, c EntityConverter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters[kind] = c
}

// Lookup returns the converter for kind.
func (r *ConverterRegistry) Lookup(kind ClipKind) (EntityConverter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.converters[kind]
	return c, ok
}

// Convert dispatches to the clip's converter. A kind with no converter is
// logged and dropped.
func (r *ConverterRegistry) Convert(ctx *ConvertContext, clip *Clip, frame int64) (FrameObject, bool) {
	c, ok := r.Lookup(clip.Kind)
	if !ok {
		logger().Warn("reel: no converter registered, dropping clip", "kind", clip.Kind.String(), "clip", clip.ID)
		return FrameObject{}, false
	}
	return c.Convert(ctx, clip, frame)
}

// Bounds dispatches to the clip's converter.
func (r *ConverterRegistry) Bounds(ctx *ConvertContext, clip *Clip, frame int64) (Rect, bool) {
	c, ok := r.Lookup(clip.Kind)
	if !ok {
		return Rect{}, false
	}
	return c.Bounds(ctx, clip, frame)
}

// TextConverter draws the "text" property.
type TextConverter struct{}

const (
	DefaultFontFamily = "Arial"
	DefaultFontSize   = 12.0
)

func (TextConverter) Convert(ctx *ConvertContext, clip *Clip, frame int64) (FrameObject, bool) {
	t := ctx.LocalTime(clip, frame)
	pm := clip.Properties
	text, ok := ctx.RequireString(pm, "text", t, ClipText)
	if !ok {
		return FrameObject{}, false
	}
	return FrameObject{ClipID: clip.ID, Content: &TextContent{
		ContentCommon: ctx.Common(clip, t),
		Text:          text,
		Font:          ctx.OptionalString(pm, "font_family", t, DefaultFontFamily),
		Size:          ctx.Number(pm, "size", t, DefaultFontSize),
		Color:         ctx.Color(pm, "color", t, ColorBlack),
		Styles:        ctx.Styles(clip, t),
	}}, true
}

func (TextConverter) Bounds(ctx *ConvertContext, clip *Clip, frame int64) (Rect, bool) {
	t := ctx.LocalTime(clip, frame)
	pm := clip.Properties
	text, ok := ctx.RequireString(pm, "text", t, ClipText)
	if !ok {
		return Rect{}, false
	}
	font := ctx.OptionalString(pm, "font_family", t, DefaultFontFamily)
	size := ctx.Number(pm, "size", t, DefaultFontSize)
	var w, h float64
	if ctx.Measurer != nil {
		w, h = ctx.Measurer.MeasureText(text, font, size)
	} else {
		w, h = estimateText(text, size)
	}
	return ctx.canvasBounds(clip, t, Rect{Width: w, Height: h}), true
}

// estimateText approximates a run's size when no measurer is available.
func estimateText(text string, size float64) (float64, float64) {
	lines := strings.Split(text, "\n")
	widest := 0
	for _, l := range lines {
		widest = max(widest, len([]rune(l)))
	}
	return 0.6 * size * float64(widest), 1.2 * size * float64(len(lines))
}

// ShapeConverter draws the SVG "path" property.
type ShapeConverter struct{}

func (ShapeConverter) Convert(ctx *ConvertContext, clip *Clip, frame int64) (FrameObject, bool) {
	t := ctx.LocalTime(clip, frame)
	pm := clip.Properties
	path, ok := ctx.RequireString(pm, "path", t, ClipShape)
	if !ok {
		return FrameObject{}, false
	}
	return FrameObject{ClipID: clip.ID, Content: &ShapeContent{
		ContentCommon: ctx.Common(clip, t),
		Path:          path,
		Styles:        ctx.Styles(clip, t),
		PathEffects:   ctx.PathEffects(pm, t),
	}}, true
}

// shapeFallbackBounds is used when the path does not parse.
var shapeFallbackBounds = Rect{Width: 100, Height: 100}

func (ShapeConverter) Bounds(ctx *ConvertContext, clip *Clip, frame int64) (Rect, bool) {
	t := ctx.LocalTime(clip, frame)
	path, ok := ctx.RequireString(clip.Properties, "path", t, ClipShape)
	if !ok {
		return Rect{}, false
	}
	local := shapeFallbackBounds
	if sp, err := ParseSVGPath(path); err == nil {
		if r, ok := sp.Bounds(); ok {
			local = r
		}
	}
	return ctx.canvasBounds(clip, t, local), true
}

// ImageConverter draws the still image at "file_path".
type ImageConverter struct{}

func (ImageConverter) Convert(ctx *ConvertContext, clip *Clip, frame int64) (FrameObject, bool) {
	t := ctx.LocalTime(clip, frame)
	path, ok := ctx.RequireString(clip.Properties, "file_path", t, ClipImage)
	if !ok {
		return FrameObject{}, false
	}
	return FrameObject{ClipID: clip.ID, Content: &ImageContent{
		ContentCommon: ctx.Common(clip, t),
		FilePath:      path,
	}}, true
}

func (ImageConverter) Bounds(ctx *ConvertContext, clip *Clip, frame int64) (Rect, bool) {
	t := ctx.LocalTime(clip, frame)
	path, ok := ctx.RequireString(clip.Properties, "file_path", t, ClipImage)
	if !ok || ctx.Assets == nil {
		return Rect{}, false
	}
	img, ok := ctx.Assets.Image(path)
	if !ok {
		return Rect{}, false
	}
	b := img.Bounds()
	return ctx.canvasBounds(clip, t, Rect{Width: float64(b.Dx()), Height: float64(b.Dy())}), true
}

// VideoConverter draws one frame of the video at "file_path".
type VideoConverter struct{}

// SourceFrame maps a timeline frame to a frame number in the clip's source.
func SourceFrame(comp *Composition, clip *Clip, frame int64) int64 {
	clipFPS := clip.FPS
	if clipFPS <= 0 {
		clipFPS = comp.FPS
	}
	elapsed := float64(frame-clip.InFrame) / comp.FPS
	return clip.SourceBeginFrame + int64(math.Round(elapsed*clipFPS))
}

func (VideoConverter) Convert(ctx *ConvertContext, clip *Clip, frame int64) (FrameObject, bool) {
	t := ctx.LocalTime(clip, frame)
	path, ok := ctx.RequireString(clip.Properties, "file_path", t, ClipVideo)
	if !ok {
		return FrameObject{}, false
	}
	return FrameObject{ClipID: clip.ID, Content: &VideoContent{
		ContentCommon: ctx.Common(clip, t),
		FilePath:      path,
		FrameNumber:   SourceFrame(ctx.Composition, clip, frame),
	}}, true
}

func (VideoConverter) Bounds(*ConvertContext, *Clip, int64) (Rect, bool) {
	return Rect{}, false
}

// SkSLConverter runs the fragment shader in "shader" over the whole
// composition.
type SkSLConverter struct{}

func (SkSLConverter) Convert(ctx *ConvertContext, clip *Clip, frame int64) (FrameObject, bool) {
	t := ctx.LocalTime(clip, frame)
	shader, ok := ctx.RequireString(clip.Properties, "shader", t, ClipSkSL)
	if !ok {
		return FrameObject{}, false
	}
	return FrameObject{ClipID: clip.ID, Content: &SkSLContent{
		ContentCommon: ctx.Common(clip, t),
		Shader:        shader,
		Resolution:    Vec2{float64(ctx.Composition.Width), float64(ctx.Composition.Height)},
	}}, true
}

func (SkSLConverter) Bounds(ctx *ConvertContext, clip *Clip, frame int64) (Rect, bool) {
	t := ctx.LocalTime(clip, frame)
	local := Rect{Width: float64(ctx.Composition.Width), Height: float64(ctx.Composition.Height)}
	return ctx.canvasBounds(clip, t, local), true
}
