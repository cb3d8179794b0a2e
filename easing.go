package reel

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/tanema/gween/ease"
	"gopkg.in/yaml.v3"
)

// EasingKind names an easing curve.
type EasingKind uint8

const (
	EaseLinear EasingKind = iota
	EaseConstant
	EaseInSine
	EaseOutSine
	EaseInOutSine
	EaseInQuad
	EaseOutQuad
	EaseInOutQuad
	EaseInCubic
	EaseOutCubic
	EaseInOutCubic
	EaseInQuart
	EaseOutQuart
	EaseInOutQuart
	EaseInQuint
	EaseOutQuint
	EaseInOutQuint
	EaseInExpo
	EaseOutExpo
	EaseInOutExpo
	EaseInCirc
	EaseOutCirc
	EaseInOutCirc
	EaseInBack
	EaseOutBack
	EaseInOutBack
	EaseInElastic
	EaseOutElastic
	EaseInOutElastic
	EaseInBounce
	EaseOutBounce
	EaseInOutBounce
	EaseBezier
	EaseBezierCurve
	EaseExpression
	easeKindCount
)

var easingNames = [easeKindCount]string{
	"linear", "constant",
	"in_sine", "out_sine", "in_out_sine",
	"in_quad", "out_quad", "in_out_quad",
	"in_cubic", "out_cubic", "in_out_cubic",
	"in_quart", "out_quart", "in_out_quart",
	"in_quint", "out_quint", "in_out_quint",
	"in_expo", "out_expo", "in_out_expo",
	"in_circ", "out_circ", "in_out_circ",
	"in_back", "out_back", "in_out_back",
	"in_elastic", "out_elastic", "in_out_elastic",
	"in_bounce", "out_bounce", "in_out_bounce",
	"bezier", "bezier_curve", "expression",
}

// String returns the snake_case name used in project files.
func (k EasingKind) String() string {
	if k < easeKindCount {
		return easingNames[k]
	}
	return fmt.Sprintf("easing(%d)", k)
}

// ParseEasingKind maps a project-file name back to an EasingKind.
func ParseEasingKind(s string) (EasingKind, error) {
	for i, name := range easingNames {
		if name == s {
			return EasingKind(i), nil
		}
	}
	return EaseLinear, fmt.Errorf("reel: unknown easing %q", s)
}

// gweenCurves maps the standard polynomial/trig curves to gween's
// implementations. Parametric kinds are evaluated locally.
var gweenCurves = map[EasingKind]ease.TweenFunc{
	EaseInSine:     ease.InSine,
	EaseOutSine:    ease.OutSine,
	EaseInOutSine:  ease.InOutSine,
	EaseInQuad:     ease.InQuad,
	EaseOutQuad:    ease.OutQuad,
	EaseInOutQuad:  ease.InOutQuad,
	EaseInCubic:    ease.InCubic,
	EaseOutCubic:   ease.OutCubic,
	EaseInOutCubic: ease.InOutCubic,
	EaseInQuart:    ease.InQuart,
	EaseOutQuart:   ease.OutQuart,
	EaseInOutQuart: ease.InOutQuart,
	EaseInQuint:    ease.InQuint,
	EaseOutQuint:   ease.OutQuint,
	EaseInOutQuint: ease.InOutQuint,
	EaseInExpo:     ease.InExpo,
	EaseOutExpo:    ease.OutExpo,
	EaseInOutExpo:  ease.InOutExpo,
	EaseInCirc:     ease.InCirc,
	EaseOutCirc:    ease.OutCirc,
	EaseInOutCirc:  ease.InOutCirc,
}

// Default parameters filled in by Ease and by decoding when a project file
// leaves a parameter out.
const (
	DefaultBackOvershoot       = 1.70158
	DefaultElasticPeriod       = 3.0
	DefaultInOutElasticPeriod  = 4.5
	DefaultBounceAmplitude     = 7.5625
	DefaultBounceDurationScale = 2.75
)

// Easing shapes normalized progress between two keyframes. The zero value is
// linear. Parameter fields apply only to their kind and are used as given,
// so a zero Overshoot makes Back a plain cubic. Ease fills in the defaults.
type Easing struct {
	Kind EasingKind

	// Overshoot is the Back overshoot (c1).
	Overshoot float64
	// Period is the Elastic period; the angular frequency is 2π/Period. A
	// zero period falls back to the default.
	Period float64
	// Amplitude and DurationFactor are the Bounce n1 and d1 constants.
	Amplitude      float64
	DurationFactor float64

	// X1, Y1, X2, Y2 are the inner control points of a cubic Bezier running
	// from (0,0) to (1,1), as in CSS cubic-bezier().
	X1, Y1, X2, Y2 float64

	// Points are the inner control points of a BezierCurve easing of any
	// degree, running from (0,0) to (1,1).
	Points []Vec2

	// Script is the source of an Expression easing. It sees t as the
	// segment's normalized progress in [0, 1] and must return the eased
	// progress as a number.
	Script string
}

// Linear is the identity easing.
var Linear = Easing{Kind: EaseLinear}

// Ease returns an Easing of the given kind with default parameters.
func Ease(kind EasingKind) Easing {
	e := Easing{Kind: kind}
	switch kind {
	case EaseInBack, EaseOutBack, EaseInOutBack:
		e.Overshoot = DefaultBackOvershoot
	case EaseInElastic, EaseOutElastic:
		e.Period = DefaultElasticPeriod
	case EaseInOutElastic:
		e.Period = DefaultInOutElasticPeriod
	case EaseInBounce, EaseOutBounce, EaseInOutBounce:
		e.Amplitude = DefaultBounceAmplitude
		e.DurationFactor = DefaultBounceDurationScale
	}
	return e
}

// Back returns a Back easing with the given overshoot.
func Back(kind EasingKind, overshoot float64) Easing {
	return Easing{Kind: kind, Overshoot: overshoot}
}

// Elastic returns an Elastic easing with the given period.
func Elastic(kind EasingKind, period float64) Easing {
	return Easing{Kind: kind, Period: period}
}

// Bounce returns a Bounce easing with the given amplitude and duration factor.
func Bounce(kind EasingKind, amplitude, durationFactor float64) Easing {
	return Easing{Kind: kind, Amplitude: amplitude, DurationFactor: durationFactor}
}

// CubicBezier returns a Bezier easing through the two control points.
func CubicBezier(x1, y1, x2, y2 float64) Easing {
	return Easing{Kind: EaseBezier, X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// BezierCurve returns an easing along the Bezier curve from (0,0) through
// the control points to (1,1). Without points it is linear.
func BezierCurve(points ...Vec2) Easing {
	return Easing{Kind: EaseBezierCurve, Points: slices.Clone(points)}
}

// ExpressionEasing returns an easing computed by a script. See
// Easing.Script.
func ExpressionEasing(script string) Easing {
	return Easing{Kind: EaseExpression, Script: script}
}

// Equal reports whether e and o describe the same curve.
func (e Easing) Equal(o Easing) bool {
	return e.Kind == o.Kind &&
		e.Overshoot == o.Overshoot && e.Period == o.Period &&
		e.Amplitude == o.Amplitude && e.DurationFactor == o.DurationFactor &&
		e.X1 == o.X1 && e.Y1 == o.Y1 && e.X2 == o.X2 && e.Y2 == o.Y2 &&
		slices.Equal(e.Points, o.Points) && e.Script == o.Script
}

// clone copies the control points so the result shares no memory with e.
func (e Easing) clone() Easing {
	e.Points = slices.Clone(e.Points)
	return e
}

// Apply maps progress p in [0, 1] to eased progress. Inputs outside [0, 1]
// are clamped. Every kind returns exactly 0 at p=0 and 1 at p=1, except
// Constant, which holds 0 until the next keyframe takes over.
func (e Easing) Apply(p float64) float64 {
	if e.Kind == EaseConstant {
		return 0
	}
	if p <= 0 || math.IsNaN(p) {
		return 0
	}
	if p >= 1 {
		return 1
	}

	if fn, ok := gweenCurves[e.Kind]; ok {
		return float64(fn(float32(p), 0, 1, 1))
	}

	switch e.Kind {
	case EaseInBack:
		c1 := e.Overshoot
		c3 := c1 + 1
		return c3*p*p*p - c1*p*p
	case EaseOutBack:
		c1 := e.Overshoot
		c3 := c1 + 1
		q := p - 1
		return 1 + c3*q*q*q + c1*q*q
	case EaseInOutBack:
		c2 := e.Overshoot * 1.525
		if p < 0.5 {
			return (4 * p * p * ((c2+1)*2*p - c2)) / 2
		}
		q := 2*p - 2
		return (q*q*((c2+1)*q+c2) + 2) / 2

	case EaseInElastic:
		c4 := 2 * math.Pi / e.period(DefaultElasticPeriod)
		return -math.Pow(2, 10*p-10) * math.Sin((p*10-10.75)*c4)
	case EaseOutElastic:
		c4 := 2 * math.Pi / e.period(DefaultElasticPeriod)
		return math.Pow(2, -10*p)*math.Sin((p*10-0.75)*c4) + 1
	case EaseInOutElastic:
		c5 := 2 * math.Pi / e.period(DefaultInOutElasticPeriod)
		if p < 0.5 {
			return -(math.Pow(2, 20*p-10) * math.Sin((20*p-11.125)*c5)) / 2
		}
		return (math.Pow(2, -20*p+10)*math.Sin((20*p-11.125)*c5))/2 + 1

	case EaseInBounce:
		return 1 - e.bounceOut(1-p)
	case EaseOutBounce:
		return e.bounceOut(p)
	case EaseInOutBounce:
		if p < 0.5 {
			return (1 - e.bounceOut(1-2*p)) / 2
		}
		return (1 + e.bounceOut(2*p-1)) / 2

	case EaseBezier:
		return bezierEase(e.X1, e.Y1, e.X2, e.Y2, p)
	case EaseBezierCurve:
		return bezierCurveEase(e.Points, p)
	case EaseExpression:
		return scriptEase(e.Script, p)
	}
	return p
}

// period guards the Elastic frequency against a zero period.
func (e Easing) period(def float64) float64 {
	if e.Period == 0 {
		return def
	}
	return e.Period
}

// bounceOut is the piecewise-parabolic bounce. With the defaults it reaches
// exactly 1 at t=1.
func (e Easing) bounceOut(t float64) float64 {
	n1, d1 := e.Amplitude, e.DurationFactor
	if d1 == 0 {
		return n1 * t * t
	}
	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}

// bezierEase solves x(u) = p for the curve parameter u with Newton's method
// (falling back to bisection when the slope vanishes) and returns y(u).
func bezierEase(x1, y1, x2, y2, p float64) float64 {
	x1 = clamp01(x1)
	x2 = clamp01(x2)

	bez := func(a, b, u float64) float64 {
		v := 1 - u
		return 3*v*v*u*a + 3*v*u*u*b + u*u*u
	}
	slope := func(a, b, u float64) float64 {
		v := 1 - u
		return 3*v*v*a + 6*v*u*(b-a) + 3*u*u*(1-b)
	}

	const eps = 1e-7
	u := p
	for range 8 {
		x := bez(x1, x2, u) - p
		if math.Abs(x) < eps {
			return bez(y1, y2, u)
		}
		d := slope(x1, x2, u)
		if math.Abs(d) < 1e-6 {
			break
		}
		u -= x / d
	}

	lo, hi := 0.0, 1.0
	u = p
	for range 64 {
		x := bez(x1, x2, u)
		if math.Abs(x-p) < eps {
			break
		}
		if x < p {
			lo = u
		} else {
			hi = u
		}
		u = (lo + hi) / 2
	}
	return bez(y1, y2, u)
}

// MarshalText implements encoding.TextMarshaler.
func (k EasingKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EasingKind) UnmarshalText(b []byte) error {
	kind, err := ParseEasingKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// bezierCurveEase solves x(u) = p by bisection on the curve from (0,0)
// through pts to (1,1) and returns y(u). Control x values are clamped to
// [0, 1] so x(u) stays within the unit square.
func bezierCurveEase(pts []Vec2, p float64) float64 {
	if len(pts) == 0 {
		return p
	}
	ctrl := make([]Vec2, 0, len(pts)+2)
	ctrl = append(ctrl, Vec2{})
	for _, pt := range pts {
		ctrl = append(ctrl, Vec2{clamp01(pt.X), pt.Y})
	}
	ctrl = append(ctrl, Vec2{1, 1})

	work := make([]Vec2, len(ctrl))
	at := func(u float64) Vec2 {
		copy(work, ctrl)
		for n := len(work) - 1; n > 0; n-- {
			for i := range n {
				work[i] = Vec2{work[i].X + (work[i+1].X-work[i].X)*u, work[i].Y + (work[i+1].Y-work[i].Y)*u}
			}
		}
		return work[0]
	}

	lo, hi := 0.0, 1.0
	u := p
	for range 64 {
		x := at(u).X
		if math.Abs(x-p) < 1e-7 {
			break
		}
		if x < p {
			lo = u
		} else {
			hi = u
		}
		u = (lo + hi) / 2
	}
	return at(u).Y
}

// easingScripts runs Expression easings. Easings are plain values with no
// registry at hand, so they share one evaluator and its compiled programs.
var easingScripts = NewExpressionEvaluator(DefaultExpressionTimeout)

// scriptEase runs src with t bound to p. Failures and non-finite results
// fall back to linear progress.
func scriptEase(src string, p float64) float64 {
	v, err := easingScripts.Eval(src, p)
	if err != nil {
		logger().Warn("reel: easing expression failed", "source", src, "t", p, "err", err)
		return p
	}
	f, ok := v.AsFloat()
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		logger().Warn("reel: easing expression did not return a number", "source", src, "result", v.String())
		return p
	}
	return f
}

// easingDoc is the file form of an Easing. Pointer fields tell an explicit
// zero apart from a parameter left out; only the kind's own parameters are
// written.
type easingDoc struct {
	Kind           EasingKind `yaml:"kind" json:"kind"`
	Overshoot      *float64   `yaml:"overshoot,omitempty" json:"overshoot,omitempty"`
	Period         *float64   `yaml:"period,omitempty" json:"period,omitempty"`
	Amplitude      *float64   `yaml:"amplitude,omitempty" json:"amplitude,omitempty"`
	DurationFactor *float64   `yaml:"duration_factor,omitempty" json:"duration_factor,omitempty"`
	X1             *float64   `yaml:"x1,omitempty" json:"x1,omitempty"`
	Y1             *float64   `yaml:"y1,omitempty" json:"y1,omitempty"`
	X2             *float64   `yaml:"x2,omitempty" json:"x2,omitempty"`
	Y2             *float64   `yaml:"y2,omitempty" json:"y2,omitempty"`
	Points         []Vec2     `yaml:"points,omitempty" json:"points,omitempty"`
	Script         string     `yaml:"script,omitempty" json:"script,omitempty"`
}

func (e Easing) doc() easingDoc {
	d := easingDoc{Kind: e.Kind}
	switch e.Kind {
	case EaseInBack, EaseOutBack, EaseInOutBack:
		d.Overshoot = &e.Overshoot
	case EaseInElastic, EaseOutElastic, EaseInOutElastic:
		d.Period = &e.Period
	case EaseInBounce, EaseOutBounce, EaseInOutBounce:
		d.Amplitude, d.DurationFactor = &e.Amplitude, &e.DurationFactor
	case EaseBezier:
		d.X1, d.Y1, d.X2, d.Y2 = &e.X1, &e.Y1, &e.X2, &e.Y2
	case EaseBezierCurve:
		d.Points = e.Points
	case EaseExpression:
		d.Script = e.Script
	}
	return d
}

// easing starts from the kind's defaults and applies the parameters present
// in the file.
func (d easingDoc) easing() Easing {
	e := Ease(d.Kind)
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&e.Overshoot, d.Overshoot)
	set(&e.Period, d.Period)
	set(&e.Amplitude, d.Amplitude)
	set(&e.DurationFactor, d.DurationFactor)
	set(&e.X1, d.X1)
	set(&e.Y1, d.Y1)
	set(&e.X2, d.X2)
	set(&e.Y2, d.Y2)
	e.Points = d.Points
	e.Script = d.Script
	return e
}

// MarshalYAML writes the kind and the kind's parameters.
func (e Easing) MarshalYAML() (any, error) { return e.doc(), nil }

// UnmarshalYAML accepts either a bare kind name ("in_out_cubic") or a
// mapping with parameters. Parameters left out take their defaults.
func (e *Easing) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		kind, err := ParseEasingKind(node.Value)
		if err != nil {
			return err
		}
		*e = Ease(kind)
		return nil
	}
	var d easingDoc
	if err := node.Decode(&d); err != nil {
		return fmt.Errorf("reel: decode easing: %w", err)
	}
	*e = d.easing()
	return nil
}

// MarshalJSON writes the kind and the kind's parameters.
func (e Easing) MarshalJSON() ([]byte, error) { return json.Marshal(e.doc()) }

// UnmarshalJSON accepts a kind name string or an object with parameters.
func (e *Easing) UnmarshalJSON(b []byte) error {
	var name string
	if json.Unmarshal(b, &name) == nil {
		kind, err := ParseEasingKind(name)
		if err != nil {
			return err
		}
		*e = Ease(kind)
		return nil
	}
	var d easingDoc
	if err := json.Unmarshal(b, &d); err != nil {
		return fmt.Errorf("reel: decode easing: %w", err)
	}
	*e = d.easing()
	return nil
}
