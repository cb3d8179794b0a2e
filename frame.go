package reel

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FrameInfo is the render-ready snapshot of one composition frame. Two
// FrameInfos with the same Key render identically.
type FrameInfo struct {
	Width           int
	Height          int
	BackgroundColor Color
	ColorProfile    string
	RenderScale     float64
	NowTime         float64 // seconds
	Region          *Region
	Objects         []FrameObject
}

// TargetSize returns the pixel size to render at: the region if set,
// otherwise the full frame, scaled by RenderScale and rounded.
func (f *FrameInfo) TargetSize() (int, int) {
	w, h := float64(f.Width), float64(f.Height)
	if f.Region != nil {
		w, h = f.Region.Width, f.Region.Height
	}
	scale := f.RenderScale
	if scale <= 0 {
		scale = 1
	}
	return int(math.Round(w * scale)), int(math.Round(h * scale))
}

// Key returns a canonical string covering every field. Equal keys mean
// equal frames; the render cache is keyed by it.
func (f *FrameInfo) Key() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(f.Width))
	sb.WriteByte('x')
	sb.WriteString(strconv.Itoa(f.Height))
	sb.WriteString(" bg=")
	sb.WriteString(f.BackgroundColor.String())
	sb.WriteString(" cp=")
	sb.WriteString(strconv.Quote(f.ColorProfile))
	sb.WriteString(" s=")
	writeFloat(&sb, f.RenderScale)
	sb.WriteString(" t=")
	writeFloat(&sb, f.NowTime)
	if r := f.Region; r != nil {
		sb.WriteString(" r=")
		writeFloats(&sb, r.X, r.Y, r.Width, r.Height)
	}
	for i := range f.Objects {
		sb.WriteString("\n")
		f.Objects[i].writeKey(&sb)
	}
	return sb.String()
}

func writeFloats(sb *strings.Builder, fs ...float64) {
	sb.WriteByte('(')
	for i, f := range fs {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeFloat(sb, canonFloat(f))
	}
	sb.WriteByte(')')
}

// FrameObject is one drawable in a frame, built fresh on every evaluation.
type FrameObject struct {
	ClipID  uuid.UUID
	Content FrameContent

	// Parents are the transforms of enclosing composition clips, outermost
	// first.
	Parents []Transform
	// BlendMode and Opacity come from the enclosing tracks.
	BlendMode BlendMode
	Opacity   float64

	// Properties is a snapshot of the clip's properties at evaluation time.
	Properties *PropertyMap
}

func (o *FrameObject) writeKey(sb *strings.Builder) {
	sb.WriteString(o.ClipID.String())
	sb.WriteString(" blend=")
	sb.WriteString(o.BlendMode.String())
	sb.WriteString(" a=")
	writeFloat(sb, canonFloat(o.Opacity))
	for _, p := range o.Parents {
		sb.WriteString(" p=")
		p.writeKey(sb)
	}
	sb.WriteByte(' ')
	if o.Content != nil {
		o.Content.writeKey(sb)
	}
}

// FrameContent is the payload of a FrameObject: *TextContent,
// *ShapeContent, *ImageContent, *VideoContent or *SkSLContent.
type FrameContent interface {
	Kind() ClipKind
	Common() *ContentCommon
	writeKey(sb *strings.Builder)
}

// ContentCommon holds what every content kind carries.
type ContentCommon struct {
	Transform  Transform
	Effects    []EffectSnapshot
	Effectors  []EffectSnapshot
	Decorators []EffectSnapshot
}

func (c *ContentCommon) Common() *ContentCommon { return c }

func (c *ContentCommon) writeKey(sb *strings.Builder) {
	sb.WriteString(" xf=")
	c.Transform.writeKey(sb)
	for _, group := range [][]EffectSnapshot{c.Effects, c.Effectors, c.Decorators} {
		sb.WriteString(" [")
		for i := range group {
			group[i].writeKey(sb)
		}
		sb.WriteByte(']')
	}
}

func (t Transform) writeKey(sb *strings.Builder) {
	writeFloats(sb, t.Position.X, t.Position.Y, t.Scale.X, t.Scale.Y,
		t.Anchor.X, t.Anchor.Y, t.Rotation, t.Opacity)
}

// EffectSnapshot is an effect, effector or decorator with its properties
// evaluated at the frame's local time.
type EffectSnapshot struct {
	ID         uuid.UUID
	Type       string
	Properties map[string]Value
}

func (e *EffectSnapshot) writeKey(sb *strings.Builder) {
	sb.WriteString(strconv.Quote(e.Type))
	MapValue(e.Properties).writeKey(sb)
	sb.WriteByte(';')
}

// Number returns a numeric property of the snapshot, or def.
func (e *EffectSnapshot) Number(name string, def float64) float64 {
	if f, ok := e.Properties[name].AsFloat(); ok {
		if _, present := e.Properties[name]; present {
			return f
		}
	}
	return def
}

// Color returns a color property of the snapshot, accepting a Color or a
// map of 0-255 channels, or def.
func (e *EffectSnapshot) Color(name string, def Color) Color {
	v, ok := e.Properties[name]
	if !ok {
		return def
	}
	if c, ok := v.AsColor(); ok {
		return c
	}
	if m, ok := v.AsMap(); ok {
		return mapToColor(m, 255)
	}
	return def
}

// Text returns a string property of the snapshot, or def.
func (e *EffectSnapshot) Text(name, def string) string {
	if s, ok := e.Properties[name].AsString(); ok {
		return s
	}
	return def
}

// TextContent draws a run of text.
type TextContent struct {
	ContentCommon
	Text   string
	Font   string
	Size   float64
	Color  Color
	Styles []DrawStyle
}

func (*TextContent) Kind() ClipKind { return ClipText }

func (c *TextContent) writeKey(sb *strings.Builder) {
	sb.WriteString("text ")
	sb.WriteString(strconv.Quote(c.Text))
	sb.WriteString(strconv.Quote(c.Font))
	writeFloats(sb, c.Size)
	sb.WriteString(c.Color.String())
	writeStylesKey(sb, c.Styles)
	c.ContentCommon.writeKey(sb)
}

// ShapeContent draws an SVG path.
type ShapeContent struct {
	ContentCommon
	Path        string
	Styles      []DrawStyle
	PathEffects []PathEffect
}

func (*ShapeContent) Kind() ClipKind { return ClipShape }

func (c *ShapeContent) writeKey(sb *strings.Builder) {
	sb.WriteString("shape ")
	sb.WriteString(strconv.Quote(c.Path))
	writeStylesKey(sb, c.Styles)
	for _, pe := range c.PathEffects {
		pe.writeKey(sb)
	}
	c.ContentCommon.writeKey(sb)
}

// ImageContent draws a still image from disk.
type ImageContent struct {
	ContentCommon
	FilePath string
}

func (*ImageContent) Kind() ClipKind { return ClipImage }

func (c *ImageContent) writeKey(sb *strings.Builder) {
	sb.WriteString("image ")
	sb.WriteString(strconv.Quote(c.FilePath))
	c.ContentCommon.writeKey(sb)
}

// VideoContent draws one frame of a video file.
type VideoContent struct {
	ContentCommon
	FilePath    string
	FrameNumber int64
}

func (*VideoContent) Kind() ClipKind { return ClipVideo }

func (c *VideoContent) writeKey(sb *strings.Builder) {
	sb.WriteString("video ")
	sb.WriteString(strconv.Quote(c.FilePath))
	sb.WriteString(strconv.FormatInt(c.FrameNumber, 10))
	c.ContentCommon.writeKey(sb)
}

// SkSLContent runs a fragment shader over Resolution.
type SkSLContent struct {
	ContentCommon
	Shader     string
	Resolution Vec2
}

func (*SkSLContent) Kind() ClipKind { return ClipSkSL }

func (c *SkSLContent) writeKey(sb *strings.Builder) {
	sb.WriteString("sksl ")
	sb.WriteString(strconv.Quote(c.Shader))
	writeFloats(sb, c.Resolution.X, c.Resolution.Y)
	c.ContentCommon.writeKey(sb)
}

// StyleKind selects fill or stroke painting.
type StyleKind uint8

const (
	StyleFill StyleKind = iota
	StyleStroke
)

// CapType is the stroke end cap.
type CapType uint8

const (
	CapSquare CapType = iota
	CapRound
	CapButt
)

// JoinType is the stroke corner join.
type JoinType uint8

const (
	JoinRound JoinType = iota
	JoinBevel
	JoinMiter
)

// DrawStyle is one paint pass over a text run or shape.
type DrawStyle struct {
	ID     uuid.UUID
	Kind   StyleKind
	Color  Color
	Offset float64

	// Stroke only.
	Width      float64
	Cap        CapType
	Join       JoinType
	Miter      float64
	DashArray  []float64
	DashOffset float64
}

// DefaultFill is the style applied when a shape has none.
var DefaultFill = DrawStyle{Kind: StyleFill, Color: ColorWhite}

func (s DrawStyle) writeKey(sb *strings.Builder) {
	sb.WriteString(strconv.Itoa(int(s.Kind)))
	sb.WriteString(s.Color.String())
	writeFloats(sb, s.Offset, s.Width, float64(s.Cap), float64(s.Join), s.Miter, s.DashOffset)
	writeFloats(sb, s.DashArray...)
}

func writeStylesKey(sb *strings.Builder, styles []DrawStyle) {
	sb.WriteString(" {")
	for _, s := range styles {
		s.writeKey(sb)
		sb.WriteByte(';')
	}
	sb.WriteByte('}')
}

// PathEffectKind names a path modifier.
type PathEffectKind uint8

const (
	PathDash PathEffectKind = iota
	PathCorner
	PathDiscrete
	PathTrim
)

var pathEffectNames = [...]string{"dash", "corner", "discrete", "trim"}

func (k PathEffectKind) String() string {
	if int(k) < len(pathEffectNames) {
		return pathEffectNames[k]
	}
	return "path_effect(" + strconv.Itoa(int(k)) + ")"
}

// PathEffect modifies a shape's outline before painting. Fields apply per
// kind: Intervals and Phase to dash, Radius to corner, SegLength, Deviation
// and Seed to discrete, Start and End (0..1) to trim.
type PathEffect struct {
	Kind      PathEffectKind
	Intervals []float64
	Phase     float64
	Radius    float64
	SegLength float64
	Deviation float64
	Seed      uint64
	Start     float64
	End       float64
}

func (pe PathEffect) writeKey(sb *strings.Builder) {
	sb.WriteString(pe.Kind.String())
	writeFloats(sb, pe.Phase, pe.Radius, pe.SegLength, pe.Deviation, pe.Start, pe.End)
	sb.WriteString("seed=")
	sb.WriteString(strconv.FormatUint(pe.Seed, 10))
	writeFloats(sb, pe.Intervals...)
}

// parsePathEffect reads a path effect from a Map value such as
// {type: "dash", intervals: [4, 2], phase: 0}.
func parsePathEffect(v Value) (PathEffect, bool) {
	m, ok := v.AsMap()
	if !ok {
		return PathEffect{}, false
	}
	typ, _ := m["type"].AsString()
	kind := slices.Index(pathEffectNames[:], strings.ToLower(typ))
	if kind < 0 {
		return PathEffect{}, false
	}
	num := func(name string, def float64) float64 {
		if f, ok := m[name].AsFloat(); ok {
			if _, present := m[name]; present {
				return f
			}
		}
		return def
	}
	pe := PathEffect{
		Kind:      PathEffectKind(kind),
		Phase:     num("phase", 0),
		Radius:    num("radius", 0),
		SegLength: num("seg_length", 0),
		Deviation: num("deviation", 0),
		Seed:      uint64(num("seed", 0)),
		Start:     num("start", 0),
		End:       num("end", 1),
	}
	if arr, ok := m["intervals"].AsArray(); ok {
		for _, item := range arr {
			if f, ok := item.AsFloat(); ok {
				pe.Intervals = append(pe.Intervals, f)
			}
		}
	}
	return pe, true
}
