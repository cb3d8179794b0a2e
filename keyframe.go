package reel

import (
	"math"
	"slices"
	"sort"
)

// KeyframeEvaluator interpolates *KeyframeProperty values.
type KeyframeEvaluator struct{}

func (KeyframeEvaluator) Evaluate(p Property, t float64, _ EvalContext) Value {
	kp, ok := p.(*KeyframeProperty)
	if !ok {
		logger().Warn("reel: keyframe evaluator given another property kind", "evaluator", p.EvaluatorKey())
		return NumberValue(0)
	}
	return kp.ValueAt(t)
}

// ValueAt returns the interpolated value at time t. Times before the first
// keyframe or after the last clamp to the end values. With no keyframes, or
// a NaN time, the result is Number(0).
func (p *KeyframeProperty) ValueAt(t float64) Value {
	kfs := p.Keyframes
	if len(kfs) == 0 || math.IsNaN(t) {
		return NumberValue(0)
	}
	if !slices.IsSortedFunc(kfs, func(a, b Keyframe) int { return cmpFloat(a.Time, b.Time) }) {
		kfs = slices.Clone(kfs)
		slices.SortStableFunc(kfs, func(a, b Keyframe) int { return cmpFloat(a.Time, b.Time) })
	}

	if t <= kfs[0].Time {
		return kfs[0].Value
	}
	last := kfs[len(kfs)-1]
	if t >= last.Time {
		return last.Value
	}

	// kfs[i-1].Time <= t < kfs[i].Time
	i := sort.Search(len(kfs), func(i int) bool { return kfs[i].Time > t })
	k0, k1 := kfs[i-1], kfs[i]

	var progress float64
	if span := k1.Time - k0.Time; span > keyframeTimeEpsilon {
		progress = clamp01((t - k0.Time) / span)
	}
	return interpolate(k0.Value, k1.Value, k0.Easing.Apply(progress), p.Interpolation)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// interpolate blends a toward b by t. Kinds that cannot blend, or mismatched
// kinds, hold a.
func interpolate(a, b Value, t float64, mode Interpolation) Value {
	if af, ok := a.AsFloat(); ok {
		if bf, ok := b.AsFloat(); ok {
			return NumberValue(lerp(af, bf, t))
		}
		return a
	}
	if a.kind != b.kind {
		return a
	}

	switch a.kind {
	case KindColor:
		if mode == InterpolateHSV {
			return ColorValue(lerpColorHSV(a.c, b.c, t))
		}
		return ColorValue(lerpColor(a.c, b.c, t))
	case KindVec2, KindVec3, KindVec4:
		out := a
		for i := range a.vecLen() {
			out.f[i] = canonFloat(lerp(a.f[i], b.f[i], t))
		}
		return out
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return a
		}
		items := make([]Value, len(a.arr))
		for i := range a.arr {
			items[i] = interpolate(a.arr[i], b.arr[i], t, mode)
		}
		return ArrayValue(items...)
	case KindMap:
		m := make(map[string]Value, len(a.m))
		for k, av := range a.m {
			if bv, ok := b.m[k]; ok {
				m[k] = interpolate(av, bv, t, mode)
			} else {
				m[k] = av
			}
		}
		return MapValue(m)
	}
	return a
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

func lerpColor(a, b Color, t float64) Color {
	return Color{
		R: channel(lerp(float64(a.R), float64(b.R), t)),
		G: channel(lerp(float64(a.G), float64(b.G), t)),
		B: channel(lerp(float64(a.B), float64(b.B), t)),
		A: channel(lerp(float64(a.A), float64(b.A), t)),
	}
}

// lerpColorHSV blends hue along the shorter arc. Alpha stays linear.
func lerpColorHSV(a, b Color, t float64) Color {
	h0, s0, v0 := rgbToHSV(a)
	h1, s1, v1 := rgbToHSV(b)

	// An achromatic end has no meaningful hue; borrow the other one.
	if s0 == 0 {
		h0 = h1
	}
	if s1 == 0 {
		h1 = h0
	}
	dh := h1 - h0
	if dh > 180 {
		dh -= 360
	} else if dh < -180 {
		dh += 360
	}
	h := math.Mod(h0+dh*t+360, 360)

	c := hsvToRGB(h, lerp(s0, s1, t), lerp(v0, v1, t))
	c.A = channel(lerp(float64(a.A), float64(b.A), t))
	return c
}

// rgbToHSV returns hue in degrees [0,360) and saturation/value in [0,1].
func rgbToHSV(c Color) (h, s, v float64) {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	maxc := math.Max(r, math.Max(g, b))
	minc := math.Min(r, math.Min(g, b))
	v = maxc
	d := maxc - minc
	if maxc > 0 {
		s = d / maxc
	}
	if d == 0 {
		return 0, s, v
	}
	switch maxc {
	case r:
		h = math.Mod((g-b)/d, 6)
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func hsvToRGB(h, s, v float64) Color {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return Color{
		R: channel((r + m) * 255),
		G: channel((g + m) * 255),
		B: channel((b + m) * 255),
		A: 255,
	}
}
