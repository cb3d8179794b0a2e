package reel

import (
	"encoding/json"
	"math"
	"testing"

	"gopkg.in/yaml.v3"
)

func allEasings() []Easing {
	var out []Easing
	for k := EaseLinear; k < easeKindCount; k++ {
		out = append(out, Ease(k))
	}
	out = append(out,
		Back(EaseOutBack, 3),
		Elastic(EaseOutElastic, 0.5),
		Bounce(EaseOutBounce, 7.5625, 2.75),
		CubicBezier(0.42, 0, 0.58, 1),
		CubicBezier(0.1, 0.9, 0.2, 1.4),
		Back(EaseInBack, 0),
		BezierCurve(Vec2{0.2, 0.8}, Vec2{0.5, -0.3}, Vec2{0.9, 1.2}),
		ExpressionEasing("t * t"),
	)
	return out
}

func TestEasingEndpoints(t *testing.T) {
	for _, e := range allEasings() {
		if e.Kind == EaseConstant {
			continue
		}
		if got := e.Apply(0); got != 0 {
			t.Errorf("%v: f(0) = %v, want 0", e.Kind, got)
		}
		if got := e.Apply(1); got != 1 {
			t.Errorf("%v: f(1) = %v, want 1", e.Kind, got)
		}
	}
}

func TestEasingConstantHolds(t *testing.T) {
	e := Ease(EaseConstant)
	for _, p := range []float64{0, 0.3, 0.999, 1} {
		if got := e.Apply(p); got != 0 {
			t.Errorf("constant f(%v) = %v, want 0", p, got)
		}
	}
}

func TestEasingClampsOutOfRange(t *testing.T) {
	e := Ease(EaseInQuad)
	if got := e.Apply(-0.5); got != 0 {
		t.Errorf("f(-0.5) = %v, want 0", got)
	}
	if got := e.Apply(2); got != 1 {
		t.Errorf("f(2) = %v, want 1", got)
	}
	if got := e.Apply(math.NaN()); got != 0 {
		t.Errorf("f(NaN) = %v, want 0", got)
	}
}

func TestEasingMidpoints(t *testing.T) {
	tests := []struct {
		e    Easing
		p    float64
		want float64
	}{
		{Linear, 0.5, 0.5},
		{Ease(EaseInQuad), 0.5, 0.25},
		{Ease(EaseOutQuad), 0.5, 0.75},
		{Ease(EaseInCubic), 0.5, 0.125},
		{Ease(EaseInOutCubic), 0.5, 0.5},
		{Ease(EaseInOutSine), 0.5, 0.5},
		{Ease(EaseOutBounce), 0.5, 0.765625},
		{CubicBezier(0, 0, 1, 1), 0.3, 0.3},
	}
	for _, tt := range tests {
		if got := tt.e.Apply(tt.p); math.Abs(got-tt.want) > 1e-4 {
			t.Errorf("%v f(%v) = %v, want %v", tt.e.Kind, tt.p, got, tt.want)
		}
	}
}

func TestEasingBackOvershoots(t *testing.T) {
	if got := Ease(EaseInBack).Apply(0.2); got >= 0 {
		t.Errorf("in_back should dip below 0 early, got %v", got)
	}
	if got := Ease(EaseOutBack).Apply(0.8); got <= 1 {
		t.Errorf("out_back should exceed 1 late, got %v", got)
	}
	soft := Back(EaseOutBack, 0.5).Apply(0.8)
	hard := Back(EaseOutBack, 4).Apply(0.8)
	if hard <= soft {
		t.Errorf("larger overshoot should overshoot more: %v <= %v", hard, soft)
	}
}

func TestEasingBezierMonotoneForMonotoneControls(t *testing.T) {
	e := CubicBezier(0.25, 0.1, 0.25, 1)
	prev := 0.0
	for i := 1; i <= 100; i++ {
		got := e.Apply(float64(i) / 100)
		if got+1e-9 < prev {
			t.Fatalf("bezier not monotone at %d: %v < %v", i, got, prev)
		}
		prev = got
	}
}

func TestParseEasingKindRoundTrip(t *testing.T) {
	for k := EaseLinear; k < easeKindCount; k++ {
		got, err := ParseEasingKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseEasingKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseEasingKind("wobble"); err == nil {
		t.Error("expected error for unknown easing")
	}
}

func TestEasingYAMLForms(t *testing.T) {
	var e Easing
	if err := yaml.Unmarshal([]byte(`in_out_cubic`), &e); err != nil {
		t.Fatalf("bare name: %v", err)
	}
	if !e.Equal(Ease(EaseInOutCubic)) {
		t.Errorf("bare name decoded to %+v", e)
	}

	if err := yaml.Unmarshal([]byte("kind: out_back\novershoot: 2.5\n"), &e); err != nil {
		t.Fatalf("mapping: %v", err)
	}
	if !e.Equal(Back(EaseOutBack, 2.5)) {
		t.Errorf("mapping decoded to %+v", e)
	}

	data, err := yaml.Marshal(CubicBezier(0.1, 0.2, 0.3, 0.4))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Easing
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, data)
	}
	if !back.Equal(CubicBezier(0.1, 0.2, 0.3, 0.4)) {
		t.Errorf("round trip = %+v", back)
	}
}

func TestEasingJSONKindIsName(t *testing.T) {
	data, err := json.Marshal(Ease(EaseOutQuad))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"kind":"out_quad"}` {
		t.Errorf("json = %s", data)
	}
}

func TestEasingExplicitZeroParameters(t *testing.T) {
	// Zero overshoot reduces Back to a plain cubic.
	if got := Back(EaseInBack, 0).Apply(0.5); math.Abs(got-0.125) > 1e-12 {
		t.Errorf("in_back c1=0 f(0.5) = %v, want 0.125", got)
	}
	if got := Back(EaseOutBack, 0).Apply(0.5); math.Abs(got-0.875) > 1e-12 {
		t.Errorf("out_back c1=0 f(0.5) = %v, want 0.875", got)
	}
	// Ease fills in the default overshoot.
	c1 := DefaultBackOvershoot
	want := (c1+1)*0.125 - c1*0.25
	if got := Ease(EaseInBack).Apply(0.5); math.Abs(got-want) > 1e-12 {
		t.Errorf("in_back default f(0.5) = %v, want %v", got, want)
	}
	// A zero elastic period must not divide by zero.
	if got := Elastic(EaseOutElastic, 0).Apply(0.5); math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("out_elastic period=0 f(0.5) = %v", got)
	}
}

func TestEasingExplicitZeroSurvivesFiles(t *testing.T) {
	in := Back(EaseInBack, 0)
	data, err := yaml.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var y Easing
	if err := yaml.Unmarshal(data, &y); err != nil {
		t.Fatal(err)
	}
	if !y.Equal(in) {
		t.Errorf("yaml round trip = %+v, want %+v\n%s", y, in, data)
	}

	js, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var j Easing
	if err := json.Unmarshal(js, &j); err != nil {
		t.Fatal(err)
	}
	if !j.Equal(in) {
		t.Errorf("json round trip = %+v, want %+v (%s)", j, in, js)
	}

	// Parameters left out of a file take the defaults.
	if err := yaml.Unmarshal([]byte("kind: in_bounce\n"), &y); err != nil {
		t.Fatal(err)
	}
	if !y.Equal(Ease(EaseInBounce)) {
		t.Errorf("defaults = %+v", y)
	}
	if err := json.Unmarshal([]byte(`"out_elastic"`), &j); err != nil {
		t.Fatal(err)
	}
	if !j.Equal(Ease(EaseOutElastic)) {
		t.Errorf("json name = %+v", j)
	}
}

func TestEasingBezierCurve(t *testing.T) {
	if got := BezierCurve().Apply(0.3); got != 0.3 {
		t.Errorf("no points f(0.3) = %v, want 0.3", got)
	}
	// Control points on the diagonal keep the curve linear.
	diag := BezierCurve(Vec2{0.25, 0.25}, Vec2{0.5, 0.5}, Vec2{0.75, 0.75})
	for _, p := range []float64{0.1, 0.4, 0.9} {
		if got := diag.Apply(p); math.Abs(got-p) > 1e-5 {
			t.Errorf("diagonal f(%v) = %v", p, got)
		}
	}
	// A single control point is a quadratic: x(u) = u when the point sits at
	// x = 0.5, so y = 2u(1-u)*y1 + u².
	quad := BezierCurve(Vec2{0.5, 1})
	if got, want := quad.Apply(0.5), 2*0.25*1+0.25; math.Abs(got-want) > 1e-5 {
		t.Errorf("quadratic f(0.5) = %v, want %v", got, want)
	}

	e := BezierCurve(Vec2{0.1, 0.9}, Vec2{0.6, 0.2})
	data, err := yaml.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var back Easing
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(e) {
		t.Errorf("round trip = %+v\n%s", back, data)
	}
}

func TestEasingExpression(t *testing.T) {
	e := ExpressionEasing("math.Pow(t, 3)")
	if got := e.Apply(0.5); math.Abs(got-0.125) > 1e-12 {
		t.Errorf("f(0.5) = %v, want 0.125", got)
	}
	// Broken scripts fall back to linear progress.
	for _, src := range []string{"not go", `"text"`, "math.NaN()"} {
		if got := ExpressionEasing(src).Apply(0.4); got != 0.4 {
			t.Errorf("%q f(0.4) = %v, want 0.4", src, got)
		}
	}

	js, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	if string(js) != `{"kind":"expression","script":"math.Pow(t, 3)"}` {
		t.Errorf("json = %s", js)
	}
}
