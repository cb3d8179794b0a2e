package reel

import (
	"math"
	"testing"
)

// --- Effectors ---

func TestApplyEffectorsTransform(t *testing.T) {
	base := IdentityTransform
	base.Position = Vec2{10, 20}
	got := applyEffectors(base, []EffectSnapshot{
		snapshot("effector.transform", map[string]Value{
			"tx":       NumberValue(5),
			"ty":       NumberValue(-5),
			"scale_x":  NumberValue(2),
			"rotation": NumberValue(30),
		}),
	})
	if got.Position != (Vec2{15, 15}) {
		t.Errorf("Position = %v, want (15, 15)", got.Position)
	}
	if got.Scale != (Vec2{2, 1}) {
		t.Errorf("Scale = %v, want (2, 1)", got.Scale)
	}
	if got.Rotation != 30 {
		t.Errorf("Rotation = %v, want 30", got.Rotation)
	}
}

func TestApplyEffectorsOpacityModes(t *testing.T) {
	tests := []struct {
		mode  string
		start float64
		value float64
		want  float64
	}{
		{"Set", 0.8, 25, 0.25},
		{"Add", 0.8, 50, 1},
		{"Multiply", 0.8, 50, 0.4},
		{"", 0.8, 10, 0.1},
	}
	for _, tt := range tests {
		base := IdentityTransform
		base.Opacity = tt.start
		props := map[string]Value{"opacity": NumberValue(tt.value)}
		if tt.mode != "" {
			props["mode"] = StringValue(tt.mode)
		}
		got := applyEffectors(base, []EffectSnapshot{snapshot("effector.opacity", props)})
		if math.Abs(got.Opacity-tt.want) > 1e-9 {
			t.Errorf("mode %q: Opacity = %v, want %v", tt.mode, got.Opacity, tt.want)
		}
	}
}

func TestApplyEffectorsInOrder(t *testing.T) {
	base := IdentityTransform
	got := applyEffectors(base, []EffectSnapshot{
		snapshot("effector.opacity", map[string]Value{"opacity": NumberValue(50)}),
		snapshot("effector.opacity", map[string]Value{"opacity": NumberValue(50), "mode": StringValue("multiply")}),
		snapshot("effector.wiggle", nil),
	})
	if math.Abs(got.Opacity-0.25) > 1e-9 {
		t.Errorf("Opacity = %v, want 0.25", got.Opacity)
	}
}

// --- Backplates ---

func TestBackplateDefaults(t *testing.T) {
	plates := backplates([]EffectSnapshot{snapshot("decorator.backplate", nil)}, Rect{X: 0, Y: 0, Width: 100, Height: 20})
	if len(plates) != 1 {
		t.Fatalf("len = %d, want 1", len(plates))
	}
	p := plates[0]
	if p.Color != (Color{0, 0, 0, 128}) {
		t.Errorf("Color = %v, want #00000080", p.Color)
	}
	b, ok := p.Path.Bounds()
	if !ok {
		t.Fatal("backplate path has no bounds")
	}
	want := Rect{X: -4, Y: -4, Width: 108, Height: 28}
	if b != want {
		t.Errorf("bounds = %+v, want %+v", b, want)
	}
}

func TestBackplateShapes(t *testing.T) {
	bounds := Rect{Width: 40, Height: 40}
	tests := []struct {
		shape string
		ops   int
	}{
		{"rect", 5},
		{"rounded_rect", 10},
		{"circle", 6},
	}
	for _, tt := range tests {
		d := snapshot("decorator.backplate", map[string]Value{
			"shape":   StringValue(tt.shape),
			"radius":  NumberValue(6),
			"padding": NumberValue(0),
			"color":   ColorValue(ColorWhite),
		})
		plates := backplates([]EffectSnapshot{d}, bounds)
		if got := len(plates[0].Path); got != tt.ops {
			t.Errorf("%s: %d segments, want %d", tt.shape, got, tt.ops)
		}
		if plates[0].Color != ColorWhite {
			t.Errorf("%s: Color = %v, want white", tt.shape, plates[0].Color)
		}
	}
}

func TestBackplateSkipsOtherDecorators(t *testing.T) {
	plates := backplates([]EffectSnapshot{snapshot("decorator.sparkle", nil)}, Rect{Width: 10, Height: 10})
	if len(plates) != 0 {
		t.Errorf("len = %d, want 0", len(plates))
	}
}

func TestRoundedRectRadiusClamped(t *testing.T) {
	p := roundedRectPath(Rect{Width: 10, Height: 4}, 50)
	b, _ := p.Bounds()
	if b != (Rect{Width: 10, Height: 4}) {
		t.Errorf("bounds = %+v, want the input rect", b)
	}
	// The first point sits one clamped radius (2) from the left edge.
	if got := p[0].Pts[0]; got != (Vec2{2, 0}) {
		t.Errorf("start = %v, want (2, 0)", got)
	}
}
