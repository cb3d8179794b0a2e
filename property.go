package reel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"slices"

	"cogentcore.org/core/base/keylist"
	"gopkg.in/yaml.v3"
)

// Evaluator keys for the built-in property kinds.
const (
	EvaluatorConstant   = "constant"
	EvaluatorKeyframe   = "keyframe"
	EvaluatorExpression = "expression"
)

// keyframeTimeEpsilon is the tolerance under which two keyframe times are
// considered the same instant.
const keyframeTimeEpsilon = 1e-6

// Property is a time-varying value. The built-in kinds are
// *ConstantProperty, *KeyframeProperty and *ExpressionProperty; each carries
// only the attributes its evaluator reads. EvaluatorKey selects the
// PropertyEvaluator in an EvaluatorRegistry.
type Property interface {
	EvaluatorKey() string
	Clone() Property
}

// ConstantProperty always evaluates to Value.
type ConstantProperty struct {
	Value Value
}

// Constant returns a constant property.
func Constant(v Value) *ConstantProperty { return &ConstantProperty{Value: v} }

func (p *ConstantProperty) EvaluatorKey() string { return EvaluatorConstant }

func (p *ConstantProperty) Clone() Property { return &ConstantProperty{Value: p.Value.Clone()} }

// ExpressionProperty evaluates script source with the local time bound to t.
type ExpressionProperty struct {
	Source string
}

// Expression returns an expression property.
func Expression(src string) *ExpressionProperty { return &ExpressionProperty{Source: src} }

func (p *ExpressionProperty) EvaluatorKey() string { return EvaluatorExpression }

func (p *ExpressionProperty) Clone() Property { return &ExpressionProperty{Source: p.Source} }

// Interpolation selects how Color keyframes blend. Other value kinds always
// interpolate linearly.
type Interpolation uint8

const (
	InterpolateLinear Interpolation = iota // per-channel RGBA
	InterpolateHSV                         // hue/saturation/value, shortest hue arc
)

// MarshalText implements encoding.TextMarshaler.
func (m Interpolation) MarshalText() ([]byte, error) {
	if m == InterpolateHSV {
		return []byte("hsv"), nil
	}
	return []byte("linear"), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Interpolation) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "linear":
		*m = InterpolateLinear
	case "hsv":
		*m = InterpolateHSV
	default:
		return fmt.Errorf("reel: unknown interpolation %q", b)
	}
	return nil
}

// Keyframe is one sample of an animated property. Time is in source-local
// seconds. Easing shapes the segment that starts at this keyframe.
type Keyframe struct {
	Time   float64 `yaml:"time" json:"time"`
	Value  Value   `yaml:"value" json:"value"`
	Easing Easing  `yaml:"easing" json:"easing"`
}

// KeyframeProperty interpolates between keyframes. Keyframes are kept sorted
// by time with at most one keyframe per instant; use the editing methods
// rather than appending to Keyframes directly.
type KeyframeProperty struct {
	Keyframes     []Keyframe    `yaml:"keyframes" json:"keyframes"`
	Interpolation Interpolation `yaml:"interpolation,omitempty" json:"interpolation,omitempty"`
}

// Keyframes returns a keyframe property holding kfs, sorted. When several
// keyframes share a time the last one wins.
func Keyframes(kfs ...Keyframe) *KeyframeProperty {
	p := &KeyframeProperty{}
	for _, kf := range kfs {
		p.Upsert(kf.Time, kf.Value, kf.Easing)
	}
	return p
}

func (p *KeyframeProperty) EvaluatorKey() string { return EvaluatorKeyframe }

func (p *KeyframeProperty) Clone() Property {
	kfs := make([]Keyframe, len(p.Keyframes))
	for i, kf := range p.Keyframes {
		kf.Value = kf.Value.Clone()
		kf.Easing = kf.Easing.clone()
		kfs[i] = kf
	}
	return &KeyframeProperty{Keyframes: kfs, Interpolation: p.Interpolation}
}

// Len returns the number of keyframes.
func (p *KeyframeProperty) Len() int { return len(p.Keyframes) }

// IndexAt returns the index of the keyframe at time t, or -1.
func (p *KeyframeProperty) IndexAt(t float64) int {
	for i, kf := range p.Keyframes {
		if math.Abs(kf.Time-t) <= keyframeTimeEpsilon {
			return i
		}
	}
	return -1
}

// Upsert replaces the keyframe at time t, or inserts a new one in sorted
// position. It returns the keyframe's index and whether it was inserted. A
// NaN time has no place in the order and is ignored with index -1.
func (p *KeyframeProperty) Upsert(t float64, v Value, e Easing) (int, bool) {
	if math.IsNaN(t) {
		return -1, false
	}
	if i := p.IndexAt(t); i >= 0 {
		p.Keyframes[i].Value = v
		p.Keyframes[i].Easing = e
		return i, false
	}
	i, _ := slices.BinarySearchFunc(p.Keyframes, t, func(kf Keyframe, t float64) int {
		switch {
		case kf.Time < t:
			return -1
		case kf.Time > t:
			return 1
		}
		return 0
	})
	p.Keyframes = slices.Insert(p.Keyframes, i, Keyframe{Time: t, Value: v, Easing: e})
	return i, true
}

// UpdateAt changes the keyframe at index. Nil arguments leave that field
// unchanged. Moving a keyframe onto the time of another replaces the other.
func (p *KeyframeProperty) UpdateAt(index int, t *float64, v *Value, e *Easing) error {
	if index < 0 || index >= len(p.Keyframes) {
		return projectErrorf("update keyframe", "index %d out of range [0,%d)", index, len(p.Keyframes))
	}
	if t != nil && math.IsNaN(*t) {
		return projectErrorf("update keyframe", "time is NaN")
	}
	kf := p.Keyframes[index]
	if v != nil {
		kf.Value = *v
	}
	if e != nil {
		kf.Easing = *e
	}
	if t == nil {
		p.Keyframes[index] = kf
		return nil
	}
	p.Keyframes = slices.Delete(p.Keyframes, index, index+1)
	p.Upsert(*t, kf.Value, kf.Easing)
	return nil
}

// RemoveAt deletes the keyframe at index.
func (p *KeyframeProperty) RemoveAt(index int) error {
	if index < 0 || index >= len(p.Keyframes) {
		return projectErrorf("remove keyframe", "index %d out of range [0,%d)", index, len(p.Keyframes))
	}
	p.Keyframes = slices.Delete(p.Keyframes, index, index+1)
	return nil
}

// RemoveAtTime deletes the keyframe at time t and reports whether one existed.
func (p *KeyframeProperty) RemoveAtTime(t float64) bool {
	i := p.IndexAt(t)
	if i < 0 {
		return false
	}
	p.Keyframes = slices.Delete(p.Keyframes, i, i+1)
	return true
}

// --- PropertyMap ---

// PropertyMap is an ordered name→Property map owned by a clip, graph node or
// effect/style/effector/decorator instance. Iteration follows insertion
// order. Read methods are safe on a nil map.
type PropertyMap struct {
	list *keylist.List[string, Property]
}

// NewPropertyMap returns an empty map.
func NewPropertyMap() *PropertyMap {
	return &PropertyMap{list: keylist.New[string, Property]()}
}

func (pm *PropertyMap) ensure() {
	if pm.list == nil {
		pm.list = keylist.New[string, Property]()
	}
}

// Len returns the number of properties.
func (pm *PropertyMap) Len() int {
	if pm == nil || pm.list == nil {
		return 0
	}
	return pm.list.Len()
}

// Get returns the property stored under name.
func (pm *PropertyMap) Get(name string) (Property, bool) {
	if pm == nil || pm.list == nil {
		return nil, false
	}
	return pm.list.AtTry(name)
}

// Set stores p under name, keeping the original position if name exists.
func (pm *PropertyMap) Set(name string, p Property) *PropertyMap {
	pm.ensure()
	pm.list.Set(name, p)
	return pm
}

// SetConstant is shorthand for Set(name, Constant(v)).
func (pm *PropertyMap) SetConstant(name string, v Value) *PropertyMap {
	return pm.Set(name, Constant(v))
}

// Delete removes name and reports whether it was present.
func (pm *PropertyMap) Delete(name string) bool {
	if pm == nil || pm.list == nil {
		return false
	}
	return pm.list.DeleteByKey(name)
}

// Names returns the property names in order.
func (pm *PropertyMap) Names() []string {
	if pm == nil || pm.list == nil {
		return nil
	}
	return slices.Clone(pm.list.Keys)
}

// All iterates the properties in order.
func (pm *PropertyMap) All() iter.Seq2[string, Property] {
	return func(yield func(string, Property) bool) {
		if pm == nil || pm.list == nil {
			return
		}
		for i, name := range pm.list.Keys {
			if !yield(name, pm.list.Values[i]) {
				return
			}
		}
	}
}

// Clone returns a deep copy.
func (pm *PropertyMap) Clone() *PropertyMap {
	out := NewPropertyMap()
	for name, p := range pm.All() {
		out.list.Add(name, p.Clone())
	}
	return out
}

// ConstantValue returns the value of a constant property.
func (pm *PropertyMap) ConstantValue(name string) (Value, bool) {
	p, ok := pm.Get(name)
	if !ok {
		return Value{}, false
	}
	cp, ok := p.(*ConstantProperty)
	if !ok {
		return Value{}, false
	}
	return cp.Value, true
}

// ConstantNumber returns a constant Number or Integer property as float64,
// or def when the property is missing, animated or non-numeric.
func (pm *PropertyMap) ConstantNumber(name string, def float64) float64 {
	v, ok := pm.ConstantValue(name)
	if !ok {
		return def
	}
	if f, ok := v.AsFloat(); ok {
		return f
	}
	return def
}

// Upsert applies an edit at time t: an animated property gets a keyframe
// upserted, anything else is replaced by a constant.
func (pm *PropertyMap) Upsert(name string, t float64, v Value, e Easing) {
	if p, ok := pm.Get(name); ok {
		if kp, ok := p.(*KeyframeProperty); ok {
			kp.Upsert(t, v, e)
			return
		}
	}
	pm.Set(name, Constant(v))
}

// AddKeyframe adds a keyframe to name. A constant property becomes animated
// with its previous value kept as a keyframe at time 0. Missing or
// expression properties are replaced by a single-keyframe property.
func (pm *PropertyMap) AddKeyframe(name string, t float64, v Value, e Easing) *KeyframeProperty {
	p, _ := pm.Get(name)
	switch p := p.(type) {
	case *KeyframeProperty:
		p.Upsert(t, v, e)
		return p
	case *ConstantProperty:
		kp := Keyframes(Keyframe{Time: 0, Value: p.Value, Easing: Linear})
		kp.Upsert(t, v, e)
		pm.Set(name, kp)
		return kp
	default:
		kp := Keyframes(Keyframe{Time: t, Value: v, Easing: e})
		pm.Set(name, kp)
		return kp
	}
}

// --- Serialization ---

type propertyDoc struct {
	Evaluator     string        `yaml:"evaluator" json:"evaluator"`
	Value         *Value        `yaml:"value,omitempty" json:"value,omitempty"`
	Keyframes     []Keyframe    `yaml:"keyframes,omitempty" json:"keyframes,omitempty"`
	Interpolation Interpolation `yaml:"interpolation,omitempty" json:"interpolation,omitempty"`
	Expression    string        `yaml:"expression,omitempty" json:"expression,omitempty"`
}

func toPropertyDoc(p Property) (propertyDoc, error) {
	switch p := p.(type) {
	case *ConstantProperty:
		v := p.Value
		return propertyDoc{Evaluator: EvaluatorConstant, Value: &v}, nil
	case *KeyframeProperty:
		return propertyDoc{Evaluator: EvaluatorKeyframe, Keyframes: p.Keyframes, Interpolation: p.Interpolation}, nil
	case *ExpressionProperty:
		return propertyDoc{Evaluator: EvaluatorExpression, Expression: p.Source}, nil
	}
	return propertyDoc{}, fmt.Errorf("reel: cannot serialize property kind %q: %w", p.EvaluatorKey(), ErrPlugin)
}

func (d propertyDoc) property() (Property, error) {
	switch d.Evaluator {
	case EvaluatorConstant:
		if d.Value == nil {
			return Constant(NumberValue(0)), nil
		}
		return Constant(*d.Value), nil
	case EvaluatorKeyframe:
		for _, kf := range d.Keyframes {
			if math.IsNaN(kf.Time) {
				return nil, projectErrorf("decode keyframes", "keyframe time is NaN")
			}
		}
		kp := Keyframes(d.Keyframes...)
		kp.Interpolation = d.Interpolation
		return kp, nil
	case EvaluatorExpression:
		return Expression(d.Expression), nil
	}
	return nil, fmt.Errorf("reel: unknown property evaluator %q: %w", d.Evaluator, ErrPlugin)
}

// MarshalYAML writes the map as an ordered YAML mapping.
func (pm *PropertyMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for name, p := range pm.All() {
		doc, err := toPropertyDoc(p)
		if err != nil {
			return nil, err
		}
		var val yaml.Node
		if err := val.Encode(doc); err != nil {
			return nil, fmt.Errorf("reel: encode property %q: %w", name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}, &val)
	}
	return node, nil
}

// UnmarshalYAML reads an ordered YAML mapping.
func (pm *PropertyMap) UnmarshalYAML(node *yaml.Node) error {
	pm.list = keylist.New[string, Property]()
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("reel: properties: want mapping, got YAML kind %d", node.Kind)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var doc propertyDoc
		if err := node.Content[i+1].Decode(&doc); err != nil {
			return fmt.Errorf("reel: decode property %q: %w", name, err)
		}
		p, err := doc.property()
		if err != nil {
			return fmt.Errorf("reel: property %q: %w", name, err)
		}
		pm.list.Set(name, p)
	}
	return nil
}

// MarshalJSON writes the map as a JSON object in insertion order.
func (pm *PropertyMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for name, p := range pm.All() {
		doc, err := toPropertyDoc(p)
		if err != nil {
			return nil, err
		}
		k, _ := json.Marshal(name)
		v, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("reel: encode property %q: %w", name, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving key order.
func (pm *PropertyMap) UnmarshalJSON(data []byte) error {
	pm.list = keylist.New[string, Property]()
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reel: decode properties: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("reel: decode properties: want object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reel: decode properties: %w", err)
		}
		name, _ := tok.(string)
		var doc propertyDoc
		if err := dec.Decode(&doc); err != nil {
			return fmt.Errorf("reel: decode property %q: %w", name, err)
		}
		p, err := doc.property()
		if err != nil {
			return fmt.Errorf("reel: property %q: %w", name, err)
		}
		pm.list.Set(name, p)
	}
	_, err = dec.Token()
	return err
}
