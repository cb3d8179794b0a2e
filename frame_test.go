package reel

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func sampleFrame() *FrameInfo {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	return &FrameInfo{
		Width:           640,
		Height:          360,
		BackgroundColor: ColorBlack,
		ColorProfile:    "sRGB",
		RenderScale:     1,
		NowTime:         1.5,
		Objects: []FrameObject{{
			ClipID:  id,
			Opacity: 1,
			Content: &TextContent{
				ContentCommon: ContentCommon{Transform: IdentityTransform},
				Text:          "hello",
				Font:          "Arial",
				Size:          12,
				Color:         ColorWhite,
			},
		}},
	}
}

func TestFrameKeyStable(t *testing.T) {
	a, b := sampleFrame(), sampleFrame()
	if a.Key() != b.Key() {
		t.Fatal("equal frames have different keys")
	}
	// The properties snapshot is not part of the key.
	b.Objects[0].Properties = NewPropertyMap().SetConstant("x", NumberValue(1))
	if a.Key() != b.Key() {
		t.Error("properties snapshot changed the key")
	}
}

func TestFrameKeyDistinguishes(t *testing.T) {
	base := sampleFrame().Key()
	mutations := map[string]func(f *FrameInfo){
		"width":      func(f *FrameInfo) { f.Width = 641 },
		"background": func(f *FrameInfo) { f.BackgroundColor = ColorWhite },
		"time":       func(f *FrameInfo) { f.NowTime = 2 },
		"scale":      func(f *FrameInfo) { f.RenderScale = 0.5 },
		"region":     func(f *FrameInfo) { f.Region = &Region{Width: 10, Height: 10} },
		"text":       func(f *FrameInfo) { f.Objects[0].Content.(*TextContent).Text = "bye" },
		"opacity":    func(f *FrameInfo) { f.Objects[0].Opacity = 0.5 },
		"blend":      func(f *FrameInfo) { f.Objects[0].BlendMode = BlendAdd },
		"transform": func(f *FrameInfo) {
			f.Objects[0].Content.Common().Transform.Rotation = 45
		},
		"effect": func(f *FrameInfo) {
			c := f.Objects[0].Content.Common()
			c.Effects = append(c.Effects, EffectSnapshot{Type: "effect.blur",
				Properties: map[string]Value{"radius": NumberValue(3)}})
		},
		"parents": func(f *FrameInfo) {
			f.Objects[0].Parents = []Transform{IdentityTransform}
		},
	}
	for name, mutate := range mutations {
		f := sampleFrame()
		mutate(f)
		if f.Key() == base {
			t.Errorf("%s: key unchanged", name)
		}
	}
}

func TestFrameTargetSize(t *testing.T) {
	tests := []struct {
		name  string
		frame FrameInfo
		w, h  int
	}{
		{"full", FrameInfo{Width: 1920, Height: 1080, RenderScale: 1}, 1920, 1080},
		{"half", FrameInfo{Width: 1920, Height: 1080, RenderScale: 0.5}, 960, 540},
		{"rounded", FrameInfo{Width: 101, Height: 51, RenderScale: 0.5}, 51, 26},
		{"zero scale", FrameInfo{Width: 100, Height: 50}, 100, 50},
		{"region", FrameInfo{Width: 1920, Height: 1080, RenderScale: 2,
			Region: &Region{X: 10, Y: 10, Width: 100, Height: 40}}, 200, 80},
	}
	for _, tt := range tests {
		w, h := tt.frame.TargetSize()
		if w != tt.w || h != tt.h {
			t.Errorf("%s: TargetSize = %dx%d, want %dx%d", tt.name, w, h, tt.w, tt.h)
		}
	}
}

func TestParsePathEffect(t *testing.T) {
	dash := MapValue(map[string]Value{
		"type":      StringValue("dash"),
		"intervals": ArrayValue(NumberValue(4), IntegerValue(2)),
		"phase":     NumberValue(1),
	})
	pe, ok := parsePathEffect(dash)
	if !ok || pe.Kind != PathDash || pe.Phase != 1 || len(pe.Intervals) != 2 || pe.Intervals[1] != 2 {
		t.Errorf("dash = %+v, %v", pe, ok)
	}

	trim, ok := parsePathEffect(MapValue(map[string]Value{"type": StringValue("Trim"), "start": NumberValue(0.25)}))
	if !ok || trim.Kind != PathTrim || trim.Start != 0.25 || trim.End != 1 {
		t.Errorf("trim = %+v, %v", trim, ok)
	}

	for _, bad := range []Value{
		NumberValue(1),
		MapValue(map[string]Value{"type": StringValue("wobble")}),
		MapValue(map[string]Value{}),
	} {
		if _, ok := parsePathEffect(bad); ok {
			t.Errorf("parsePathEffect(%s) ok", bad)
		}
	}
}

func TestPathEffectKindString(t *testing.T) {
	if PathDiscrete.String() != "discrete" {
		t.Errorf("String = %q", PathDiscrete.String())
	}
	if !strings.HasPrefix(PathEffectKind(9).String(), "path_effect(") {
		t.Errorf("unknown kind String = %q", PathEffectKind(9).String())
	}
}

func TestFrameKeyDistinguishesLargeSeeds(t *testing.T) {
	frame := func(seed uint64) *FrameInfo {
		return &FrameInfo{
			Width: 64, Height: 64, RenderScale: 1,
			Objects: []FrameObject{{
				Opacity: 1,
				Content: &ShapeContent{
					ContentCommon: ContentCommon{Transform: IdentityTransform},
					Path:          "M 0 0 L 10 10",
					PathEffects:   []PathEffect{{Kind: PathDiscrete, SegLength: 4, Deviation: 2, Seed: seed}},
				},
			}},
		}
	}
	// Both seeds round to the same float64.
	a, b := uint64(1)<<60, uint64(1)<<60+1
	if frame(a).Key() == frame(b).Key() {
		t.Errorf("seeds %d and %d share a key", a, b)
	}
}
