package reel

import (
	"encoding/json"
	"errors"
	"math"
	"slices"
	"testing"

	"gopkg.in/yaml.v3"
)

func keyframeTimes(p *KeyframeProperty) []float64 {
	var out []float64
	for _, kf := range p.Keyframes {
		out = append(out, kf.Time)
	}
	return out
}

func TestKeyframesSortedAndUnique(t *testing.T) {
	p := Keyframes(
		Keyframe{Time: 2, Value: NumberValue(20)},
		Keyframe{Time: 0, Value: NumberValue(0)},
		Keyframe{Time: 1, Value: NumberValue(10)},
		Keyframe{Time: 2, Value: NumberValue(99)},
	)
	if got := keyframeTimes(p); !slices.Equal(got, []float64{0, 1, 2}) {
		t.Fatalf("times = %v, want [0 1 2]", got)
	}
	if f, _ := p.Keyframes[2].Value.AsNumber(); f != 99 {
		t.Errorf("duplicate time should keep the last value, got %v", f)
	}
}

func TestKeyframeUpsert(t *testing.T) {
	p := Keyframes(Keyframe{Time: 0, Value: NumberValue(0)}, Keyframe{Time: 2, Value: NumberValue(2)})

	i, inserted := p.Upsert(1, NumberValue(1), Linear)
	if !inserted || i != 1 {
		t.Errorf("Upsert(1) = %d, %v; want 1, true", i, inserted)
	}
	i, inserted = p.Upsert(2, NumberValue(5), Ease(EaseInQuad))
	if inserted || i != 2 {
		t.Errorf("Upsert(2) = %d, %v; want 2, false", i, inserted)
	}
	if p.Keyframes[2].Easing.Kind != EaseInQuad {
		t.Errorf("easing not replaced: %v", p.Keyframes[2].Easing.Kind)
	}
	if p.Len() != 3 {
		t.Errorf("Len = %d, want 3", p.Len())
	}
}

func TestKeyframeUpdateAt(t *testing.T) {
	p := Keyframes(
		Keyframe{Time: 0, Value: NumberValue(0)},
		Keyframe{Time: 1, Value: NumberValue(1)},
		Keyframe{Time: 2, Value: NumberValue(2)},
	)

	v := NumberValue(7)
	if err := p.UpdateAt(1, nil, &v, nil); err != nil {
		t.Fatal(err)
	}
	if f, _ := p.Keyframes[1].Value.AsNumber(); f != 7 {
		t.Errorf("value = %v, want 7", f)
	}

	// Move the first keyframe past the others.
	nt := 3.0
	if err := p.UpdateAt(0, &nt, nil, nil); err != nil {
		t.Fatal(err)
	}
	if got := keyframeTimes(p); !slices.Equal(got, []float64{1, 2, 3}) {
		t.Errorf("times = %v, want [1 2 3]", got)
	}

	// Moving onto an occupied time replaces the occupant.
	nt = 2
	if err := p.UpdateAt(0, &nt, nil, nil); err != nil {
		t.Fatal(err)
	}
	if got := keyframeTimes(p); !slices.Equal(got, []float64{2, 3}) {
		t.Errorf("times = %v, want [2 3]", got)
	}
	if f, _ := p.Keyframes[0].Value.AsNumber(); f != 7 {
		t.Errorf("moved keyframe value = %v, want 7", f)
	}

	err := p.UpdateAt(5, nil, nil, nil)
	if !errors.Is(err, ErrProject) {
		t.Errorf("out-of-range update error = %v, want ErrProject", err)
	}
}

func TestKeyframeRejectsNaNTime(t *testing.T) {
	p := Keyframes(Keyframe{Time: 0}, Keyframe{Time: 1}, Keyframe{Time: 2})
	if i, inserted := p.Upsert(math.NaN(), NumberValue(5), Linear); i != -1 || inserted {
		t.Errorf("Upsert(NaN) = %d, %v, want -1, false", i, inserted)
	}
	nan := math.NaN()
	if err := p.UpdateAt(1, &nan, nil, nil); !errors.Is(err, ErrProject) {
		t.Errorf("UpdateAt(NaN) = %v, want ErrProject", err)
	}
	if got := keyframeTimes(p); !slices.Equal(got, []float64{0, 1, 2}) {
		t.Errorf("times = %v, want [0 1 2]", got)
	}
	if got := Keyframes(Keyframe{Time: math.NaN()}, Keyframe{Time: 3}); got.Len() != 1 {
		t.Errorf("Keyframes kept %d keyframes, want 1", got.Len())
	}

	var pm PropertyMap
	doc := "x:\n  evaluator: keyframe\n  keyframes:\n    - time: .nan\n      value: {type: number, value: 1}\n"
	if err := yaml.Unmarshal([]byte(doc), &pm); !errors.Is(err, ErrProject) {
		t.Errorf("decoding a NaN keyframe time: err = %v, want ErrProject", err)
	}
}

func TestKeyframeRemove(t *testing.T) {
	p := Keyframes(Keyframe{Time: 0}, Keyframe{Time: 1}, Keyframe{Time: 2})
	if err := p.RemoveAt(0); err != nil {
		t.Fatal(err)
	}
	if !p.RemoveAtTime(2) {
		t.Error("RemoveAtTime(2) = false")
	}
	if p.RemoveAtTime(5) {
		t.Error("RemoveAtTime(5) = true for missing time")
	}
	if got := keyframeTimes(p); !slices.Equal(got, []float64{1}) {
		t.Errorf("times = %v, want [1]", got)
	}
	if err := p.RemoveAt(-1); !errors.Is(err, ErrProject) {
		t.Errorf("RemoveAt(-1) = %v, want ErrProject", err)
	}
}

func TestPropertyCloneIsDeep(t *testing.T) {
	p := Keyframes(Keyframe{Time: 0, Value: ArrayValue(NumberValue(1))})
	c := p.Clone().(*KeyframeProperty)
	c.Upsert(1, NumberValue(2), Linear)
	if p.Len() != 1 {
		t.Errorf("clone shares keyframes: original Len = %d", p.Len())
	}
}

func TestPropertyMapKeepsInsertionOrder(t *testing.T) {
	pm := NewPropertyMap().
		SetConstant("text", StringValue("hi")).
		SetConstant("size", NumberValue(12)).
		SetConstant("color", ColorValue(ColorBlack))
	pm.SetConstant("text", StringValue("replaced"))

	if got := pm.Names(); !slices.Equal(got, []string{"text", "size", "color"}) {
		t.Errorf("Names = %v", got)
	}
	if !pm.Delete("size") || pm.Delete("size") {
		t.Error("Delete should succeed once")
	}
	if pm.Len() != 2 {
		t.Errorf("Len = %d, want 2", pm.Len())
	}
	if s, _ := pm.ConstantValue("text"); !s.Equal(StringValue("replaced")) {
		t.Errorf("text = %v", s)
	}
}

func TestPropertyMapNilIsEmpty(t *testing.T) {
	var pm *PropertyMap
	if pm.Len() != 0 || pm.Names() != nil {
		t.Error("nil map should be empty")
	}
	if _, ok := pm.Get("x"); ok {
		t.Error("Get on nil map should miss")
	}
	if got := pm.ConstantNumber("x", 3); got != 3 {
		t.Errorf("ConstantNumber default = %v, want 3", got)
	}
	for range pm.All() {
		t.Error("All on nil map yielded")
	}
}

func TestPropertyMapUpsert(t *testing.T) {
	pm := NewPropertyMap()

	// Missing and constant properties become constants.
	pm.Upsert("opacity", 1, NumberValue(50), Linear)
	pm.Upsert("opacity", 2, NumberValue(60), Linear)
	if got := pm.ConstantNumber("opacity", 0); got != 60 {
		t.Errorf("opacity = %v, want constant 60", got)
	}

	// Animated properties get a keyframe.
	pm.Set("x", Keyframes(Keyframe{Time: 0, Value: NumberValue(0)}))
	pm.Upsert("x", 1, NumberValue(10), Linear)
	p, _ := pm.Get("x")
	kp, ok := p.(*KeyframeProperty)
	if !ok {
		t.Fatalf("x became %T", p)
	}
	if got := keyframeTimes(kp); !slices.Equal(got, []float64{0, 1}) {
		t.Errorf("x times = %v", got)
	}
}

func TestPropertyMapAddKeyframeKeepsConstantAtZero(t *testing.T) {
	pm := NewPropertyMap().SetConstant("x", NumberValue(5))
	kp := pm.AddKeyframe("x", 2, NumberValue(9), Linear)

	if got := keyframeTimes(kp); !slices.Equal(got, []float64{0, 2}) {
		t.Fatalf("times = %v, want [0 2]", got)
	}
	if f, _ := kp.Keyframes[0].Value.AsNumber(); f != 5 {
		t.Errorf("time-0 value = %v, want 5", f)
	}
	if p, _ := pm.Get("x"); p != Property(kp) {
		t.Error("map should hold the new keyframe property")
	}

	kp = pm.AddKeyframe("y", 1, NumberValue(1), Linear)
	if kp.Len() != 1 {
		t.Errorf("new property has %d keyframes, want 1", kp.Len())
	}
}

func samplePropertyMap() *PropertyMap {
	kp := Keyframes(
		Keyframe{Time: 0, Value: ColorValue(ColorBlack)},
		Keyframe{Time: 1, Value: ColorValue(ColorWhite), Easing: Ease(EaseOutQuad)},
	)
	kp.Interpolation = InterpolateHSV
	return NewPropertyMap().
		SetConstant("zeta", NumberValue(1)).
		Set("alpha", kp).
		Set("wobble", Expression("math.Sin(t)"))
}

func assertSamplePropertyMap(t *testing.T, got *PropertyMap) {
	t.Helper()
	if names := got.Names(); !slices.Equal(names, []string{"zeta", "alpha", "wobble"}) {
		t.Errorf("order = %v", names)
	}
	p, _ := got.Get("alpha")
	kp, ok := p.(*KeyframeProperty)
	if !ok {
		t.Fatalf("alpha = %T", p)
	}
	if kp.Interpolation != InterpolateHSV || kp.Len() != 2 || kp.Keyframes[1].Easing.Kind != EaseOutQuad {
		t.Errorf("alpha = %+v", kp)
	}
	p, _ = got.Get("wobble")
	if ep, ok := p.(*ExpressionProperty); !ok || ep.Source != "math.Sin(t)" {
		t.Errorf("wobble = %#v", p)
	}
}

func TestPropertyMapYAMLRoundTrip(t *testing.T) {
	data, err := yaml.Marshal(samplePropertyMap())
	if err != nil {
		t.Fatal(err)
	}
	got := NewPropertyMap()
	if err := yaml.Unmarshal(data, got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, data)
	}
	assertSamplePropertyMap(t, got)
}

func TestPropertyMapJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(samplePropertyMap())
	if err != nil {
		t.Fatal(err)
	}
	got := NewPropertyMap()
	if err := json.Unmarshal(data, got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, data)
	}
	assertSamplePropertyMap(t, got)
}

func TestPropertyMapRejectsUnknownEvaluator(t *testing.T) {
	pm := NewPropertyMap()
	err := yaml.Unmarshal([]byte("x:\n  evaluator: noise\n"), pm)
	if !errors.Is(err, ErrPlugin) {
		t.Errorf("err = %v, want ErrPlugin", err)
	}
}
