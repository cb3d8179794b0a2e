package reel

import (
	"image"
	"math"
	"testing"

	"github.com/hajimehoshi/ebiten/v2/vector"
)

func newTestEbitenRenderer(t *testing.T, w, h int, ctx SharingContext, assets AssetCache) *EbitenRenderer {
	t.Helper()
	r, err := NewEbitenRenderer(w, h, ColorBlack, ctx, EbitenOptions{Assets: assets, Fonts: newTestFontBook(t)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Dispose)
	return r
}

func TestNewEbitenRendererRejectsEmptySize(t *testing.T) {
	for _, size := range [][2]int{{0, 10}, {10, 0}, {-1, -1}} {
		if _, err := NewEbitenRenderer(size[0], size[1], ColorBlack, nil, EbitenOptions{}); err == nil {
			t.Errorf("%dx%d accepted", size[0], size[1])
		}
	}
}

func TestEbitenRendererFactory(t *testing.T) {
	factory := NewEbitenRendererFactory(EbitenOptions{Fonts: newTestFontBook(t)})
	r, err := factory(32, 16, ColorWhite, "ctx")
	if err != nil {
		t.Fatal(err)
	}
	er := r.(*EbitenRenderer)
	defer er.Dispose()
	if er.surface.Width() != 32 || er.surface.Height() != 16 || er.bg != ColorWhite {
		t.Errorf("renderer = %dx%d %v", er.surface.Width(), er.surface.Height(), er.bg)
	}
	if got := er.TakeContext(); got != "ctx" {
		t.Errorf("TakeContext = %v, want ctx", got)
	}
	if got := er.TakeContext(); got != nil {
		t.Errorf("second TakeContext = %v, want nil", got)
	}
	if _, err := factory(0, 0, ColorWhite, nil); err == nil {
		t.Error("factory accepted an empty size")
	}
}

func TestEbitenRendererSizeMismatch(t *testing.T) {
	r := newTestEbitenRenderer(t, 64, 32, nil, nil)
	f := &FrameInfo{Width: 128, Height: 64, RenderScale: 1}
	if _, err := r.RenderFrame(f); err == nil {
		t.Error("mismatched frame rendered")
	}
	if _, err := r.RenderFrame(nil); err == nil {
		t.Error("nil frame rendered")
	}
	// A half-scale render of the larger frame matches the surface.
	f.RenderScale = 0.5
	reg := NewTextureRegistry()
	r.SetSharingContext(reg)
	if _, err := r.RenderFrame(f); err != nil {
		t.Errorf("scaled frame: %v", err)
	}
}

func TestFrameBase(t *testing.T) {
	f := &FrameInfo{Width: 100, Height: 100, RenderScale: 2, Region: &Region{X: 10, Y: 20, Width: 50, Height: 50}}
	m, s := frameBase(f)
	if s != 2 {
		t.Errorf("scale = %v, want 2", s)
	}
	if x, y := transformPoint(m, 10, 20); x != 0 || y != 0 {
		t.Errorf("region origin maps to (%v, %v), want (0, 0)", x, y)
	}
	if x, y := transformPoint(m, 60, 70); x != 100 || y != 100 {
		t.Errorf("region corner maps to (%v, %v), want (100, 100)", x, y)
	}

	_, s = frameBase(&FrameInfo{RenderScale: 0})
	if s != 1 {
		t.Errorf("zero render scale = %v, want 1", s)
	}
}

func TestMatrixScale(t *testing.T) {
	m := Transform{Scale: Vec2{3, 3}, Rotation: 40, Opacity: 1}.Matrix()
	if got := matrixScale(m); math.Abs(got-3) > 1e-9 {
		t.Errorf("matrixScale = %v, want 3", got)
	}
}

func TestLineCapJoinMapping(t *testing.T) {
	if lineCap(CapRound) != vector.LineCapRound || lineCap(CapButt) != vector.LineCapButt || lineCap(CapSquare) != vector.LineCapSquare {
		t.Error("cap mapping wrong")
	}
	if lineJoin(JoinMiter) != vector.LineJoinMiter || lineJoin(JoinBevel) != vector.LineJoinBevel || lineJoin(JoinRound) != vector.LineJoinRound {
		t.Error("join mapping wrong")
	}
}

func TestColorVertices(t *testing.T) {
	var p vector.Path
	p.MoveTo(0, 0)
	p.LineTo(10, 0)
	p.LineTo(10, 10)
	p.Close()
	vs, is := p.AppendVerticesAndIndicesForFilling(nil, nil)
	if len(vs) == 0 || len(is) == 0 {
		t.Fatal("no vertices")
	}
	colorVertices(vs, Color{255, 0, 0, 128}, 0.5)
	for _, v := range vs {
		if v.ColorR != 1 || v.ColorG != 0 || v.SrcX != 0.5 {
			t.Fatalf("vertex = %+v", v)
		}
		if math.Abs(float64(v.ColorA)-128.0/255*0.5) > 1e-6 {
			t.Fatalf("alpha = %v", v.ColorA)
		}
	}
}

func TestLocalBounds(t *testing.T) {
	assets := NewFileAssets("")
	assets.AddImage("pic.png", image.NewNRGBA(image.Rect(0, 0, 30, 20)))
	assets.AddImage(VideoFrameKey("v.mp4", 2), image.NewNRGBA(image.Rect(0, 0, 16, 9)))
	r := newTestEbitenRenderer(t, 8, 8, nil, assets)

	tests := []struct {
		name    string
		content FrameContent
		want    Rect
	}{
		{"shape", &ShapeContent{Path: "M 5 5 L 25 5 L 25 15 Z"}, Rect{X: 5, Y: 5, Width: 20, Height: 10}},
		{"image", &ImageContent{FilePath: "pic.png"}, Rect{Width: 30, Height: 20}},
		{"video", &VideoContent{FilePath: "v.mp4", FrameNumber: 2}, Rect{Width: 16, Height: 9}},
		{"sksl", &SkSLContent{Resolution: Vec2{64, 32}}, Rect{Width: 64, Height: 32}},
	}
	for _, tt := range tests {
		got, ok := r.localBounds(tt.content)
		if !ok || got != tt.want {
			t.Errorf("%s: bounds = %+v, %v, want %+v", tt.name, got, ok, tt.want)
		}
	}

	if _, ok := r.localBounds(&ImageContent{FilePath: "missing.png"}); ok {
		t.Error("missing image has bounds")
	}
	w, h := r.fonts.MeasureText("Hi", "", 20)
	got, ok := r.localBounds(&TextContent{Text: "Hi", Size: 20})
	if !ok || got != (Rect{Width: w, Height: h}) {
		t.Errorf("text bounds = %+v, %v", got, ok)
	}
}

func TestPathCacheRemembersFailures(t *testing.T) {
	r := newTestEbitenRenderer(t, 8, 8, nil, nil)
	if _, ok := r.path("M 0 0 L 10"); ok {
		t.Error("truncated path parsed")
	}
	if p, cached := r.paths["M 0 0 L 10"]; !cached || p != nil {
		t.Error("failure not cached")
	}
	if _, ok := r.path("M 0 0 L 10 10"); !ok {
		t.Error("valid path rejected")
	}
}

func TestShaderCacheRemembersFailures(t *testing.T) {
	r := newTestEbitenRenderer(t, 8, 8, nil, nil)
	src := "this is not kage"
	if _, ok := r.shader(src); ok {
		t.Fatal("invalid shader compiled")
	}
	if s, cached := r.shaders[src]; !cached || s != nil {
		t.Error("failure not cached")
	}
}

func TestEbitenRendererPublishesTextures(t *testing.T) {
	assets := NewFileAssets("")
	assets.AddImage("pic.png", image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	reg := NewTextureRegistry()
	r := newTestEbitenRenderer(t, 64, 32, reg, assets)

	circle := "M 10 0 A 10 10 0 1 1 -10 0 A 10 10 0 1 1 10 0 Z"
	f := &FrameInfo{
		Width: 64, Height: 32, RenderScale: 1,
		Objects: []FrameObject{
			{
				Opacity: 1,
				Content: &ShapeContent{
					ContentCommon: ContentCommon{
						Transform:  Transform{Position: Vec2{32, 16}, Scale: Vec2{1, 1}, Opacity: 1},
						Effects:    []EffectSnapshot{snapshot("effect.blur", map[string]Value{"radius": NumberValue(2)})},
						Decorators: []EffectSnapshot{snapshot("decorator.backplate", nil)},
					},
					Path: circle,
					Styles: []DrawStyle{
						{Kind: StyleFill, Color: ColorWhite, Offset: -1},
						{Kind: StyleStroke, Color: ColorBlack, Width: 2, DashArray: []float64{3, 2}},
					},
					PathEffects: []PathEffect{{Kind: PathCorner, Radius: 2}},
				},
			},
			{
				Opacity:   0.5,
				BlendMode: BlendAdd,
				Content: &TextContent{
					ContentCommon: ContentCommon{Transform: IdentityTransform},
					Text:          "reel",
					Size:          12,
					Styles:        []DrawStyle{{Kind: StyleStroke, Width: 2, Color: ColorBlack}, {Kind: StyleFill, Color: ColorWhite}},
				},
			},
			{
				Opacity: 1,
				Content: &ImageContent{ContentCommon: ContentCommon{Transform: IdentityTransform}, FilePath: "pic.png"},
			},
			{
				// Fully transparent objects are skipped.
				Opacity: 0,
				Content: &ImageContent{ContentCommon: ContentCommon{Transform: IdentityTransform}, FilePath: "pic.png"},
			},
		},
	}
	out, err := r.RenderFrame(f)
	if err != nil {
		t.Fatal(err)
	}
	tex, ok := out.(*TextureOutput)
	if !ok {
		t.Fatalf("output = %T, want *TextureOutput", out)
	}
	if tex.ID != 1 || tex.Width != 64 || tex.Height != 32 {
		t.Errorf("output = %+v", tex)
	}
	if img, ok := reg.Lookup(tex.ID); !ok || img.Bounds().Dx() != 64 {
		t.Error("texture not published")
	}
	if _, cached := r.images["pic.png"]; !cached {
		t.Error("image not uploaded once")
	}
	if r.pool.size() == 0 {
		t.Error("effect layers not returned to the pool")
	}
}
