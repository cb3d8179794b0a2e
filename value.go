package reel

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValueKind identifies which payload a Value carries.
type ValueKind uint8

const (
	KindNumber  ValueKind = iota // float64
	KindInteger                  // int64
	KindBoolean                  // bool
	KindString                   // string
	KindColor                    // Color
	KindVec2                     // Vec2
	KindVec3                     // Vec3
	KindVec4                     // Vec4
	KindArray                    // []Value
	KindMap                      // map[string]Value
)

var valueKindNames = [...]string{
	"number", "integer", "boolean", "string", "color",
	"vec2", "vec3", "vec4", "array", "map",
}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func parseValueKind(s string) (ValueKind, error) {
	for i, name := range valueKindNames {
		if name == s {
			return ValueKind(i), nil
		}
	}
	return 0, fmt.Errorf("reel: unknown value type %q", s)
}

// Value is the typed union flowing through properties, keyframes, pins and
// frame snapshots. The zero Value is Number(0).
//
// Floats are canonicalised on construction (NaN and -0 become 0), which makes
// every Value totally ordered by Compare and hashable through Key.
type Value struct {
	kind ValueKind
	f    [4]float64 // Number uses f[0]; VecN uses f[:N]
	i    int64
	b    bool
	s    string
	c    Color
	arr  []Value
	m    map[string]Value
}

func canonFloat(f float64) float64 {
	if math.IsNaN(f) || f == 0 {
		return 0
	}
	return f
}

// NumberValue returns a Number value.
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, f: [4]float64{canonFloat(f)}}
}

// IntegerValue returns an Integer value.
func IntegerValue(i int64) Value { return Value{kind: KindInteger, i: i} }

// BoolValue returns a Boolean value.
func BoolValue(b bool) Value { return Value{kind: KindBoolean, b: b} }

// StringValue returns a String value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// ColorValue returns a Color value.
func ColorValue(c Color) Value { return Value{kind: KindColor, c: c} }

// Vec2Value returns a Vec2 value.
func Vec2Value(x, y float64) Value {
	return Value{kind: KindVec2, f: [4]float64{canonFloat(x), canonFloat(y)}}
}

// Vec3Value returns a Vec3 value.
func Vec3Value(x, y, z float64) Value {
	return Value{kind: KindVec3, f: [4]float64{canonFloat(x), canonFloat(y), canonFloat(z)}}
}

// Vec4Value returns a Vec4 value.
func Vec4Value(x, y, z, w float64) Value {
	return Value{kind: KindVec4, f: [4]float64{canonFloat(x), canonFloat(y), canonFloat(z), canonFloat(w)}}
}

// ArrayValue returns an Array value holding items. The slice is not copied.
func ArrayValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// MapValue returns a Map value. The map is not copied.
func MapValue(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

// Kind reports which payload v carries.
func (v Value) Kind() ValueKind { return v.kind }

// AsNumber returns the payload of a Number value.
func (v Value) AsNumber() (float64, bool) {
	return v.f[0], v.kind == KindNumber
}

// AsFloat returns a Number or Integer payload as float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.f[0], true
	case KindInteger:
		return float64(v.i), true
	}
	return 0, false
}

// AsInteger returns the payload of an Integer value.
func (v Value) AsInteger() (int64, bool) { return v.i, v.kind == KindInteger }

// AsBool returns the payload of a Boolean value.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBoolean }

// AsString returns the payload of a String value.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsColor returns the payload of a Color value.
func (v Value) AsColor() (Color, bool) { return v.c, v.kind == KindColor }

// AsVec2 returns the payload of a Vec2 value.
func (v Value) AsVec2() (Vec2, bool) {
	return Vec2{v.f[0], v.f[1]}, v.kind == KindVec2
}

// AsVec3 returns the payload of a Vec3 value.
func (v Value) AsVec3() (Vec3, bool) {
	return Vec3{v.f[0], v.f[1], v.f[2]}, v.kind == KindVec3
}

// AsVec4 returns the payload of a Vec4 value.
func (v Value) AsVec4() (Vec4, bool) {
	return Vec4{v.f[0], v.f[1], v.f[2], v.f[3]}, v.kind == KindVec4
}

// AsArray returns the items of an Array value. Callers must not mutate them.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// AsMap returns the entries of a Map value. Callers must not mutate them.
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// vecLen returns the component count for Vec kinds, 0 otherwise.
func (v Value) vecLen() int {
	switch v.kind {
	case KindVec2:
		return 2
	case KindVec3:
		return 3
	case KindVec4:
		return 4
	}
	return 0
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		return ArrayValue(items...)
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			m[k] = item.Clone()
		}
		return MapValue(m)
	}
	return v
}

// Compare orders values by kind and then by payload. It returns -1, 0 or +1.
// Maps compare by their sorted keys, then by the values under those keys.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case KindNumber:
		return cmp.Compare(a.f[0], b.f[0])
	case KindInteger:
		return cmp.Compare(a.i, b.i)
	case KindBoolean:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindColor:
		if c := cmp.Compare(a.c.R, b.c.R); c != 0 {
			return c
		}
		if c := cmp.Compare(a.c.G, b.c.G); c != 0 {
			return c
		}
		if c := cmp.Compare(a.c.B, b.c.B); c != 0 {
			return c
		}
		return cmp.Compare(a.c.A, b.c.A)
	case KindVec2, KindVec3, KindVec4:
		for i := 0; i < a.vecLen(); i++ {
			if c := cmp.Compare(a.f[i], b.f[i]); c != 0 {
				return c
			}
		}
		return 0
	case KindArray:
		return slices.CompareFunc(a.arr, b.arr, Compare)
	case KindMap:
		ak, bk := sortedKeys(a.m), sortedKeys(b.m)
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if c := strings.Compare(ak[i], bk[i]); c != 0 {
				return c
			}
			if c := Compare(a.m[ak[i]], b.m[bk[i]]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(ak), len(bk))
	}
	return 0
}

// Equal reports whether a and b hold the same kind and payload.
func (v Value) Equal(other Value) bool { return Compare(v, other) == 0 }

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Key returns a canonical string encoding of v. Two values have the same key
// exactly when they are Equal, so keys are usable as map and cache keys.
func (v Value) Key() string {
	var sb strings.Builder
	v.writeKey(&sb)
	return sb.String()
}

// String returns the canonical key form, for logs.
func (v Value) String() string { return v.Key() }

func writeFloat(sb *strings.Builder, f float64) {
	sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}

func (v Value) writeKey(sb *strings.Builder) {
	switch v.kind {
	case KindNumber:
		sb.WriteString("n:")
		writeFloat(sb, v.f[0])
	case KindInteger:
		sb.WriteString("i:")
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindBoolean:
		sb.WriteString("b:")
		sb.WriteString(strconv.FormatBool(v.b))
	case KindString:
		sb.WriteString("s:")
		sb.WriteString(strconv.Quote(v.s))
	case KindColor:
		sb.WriteString("c:")
		sb.WriteString(v.c.String())
	case KindVec2, KindVec3, KindVec4:
		sb.WriteString(v.kind.String())
		sb.WriteString(":(")
		for i := 0; i < v.vecLen(); i++ {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeFloat(sb, v.f[i])
		}
		sb.WriteByte(')')
	case KindArray:
		sb.WriteString("a:[")
		for i, item := range v.arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.writeKey(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteString("m:{")
		for i, k := range sortedKeys(v.m) {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte('=')
			v.m[k].writeKey(sb)
		}
		sb.WriteByte('}')
	}
}

// ValueOf converts a plain Go value (as produced by a script or a decoded
// document) into a Value. It reports false for unsupported types.
func ValueOf(x any) (Value, bool) {
	switch x := x.(type) {
	case Value:
		return x, true
	case float64:
		return NumberValue(x), true
	case float32:
		return NumberValue(float64(x)), true
	case int:
		return IntegerValue(int64(x)), true
	case int8:
		return IntegerValue(int64(x)), true
	case int16:
		return IntegerValue(int64(x)), true
	case int32:
		return IntegerValue(int64(x)), true
	case int64:
		return IntegerValue(x), true
	case uint8:
		return IntegerValue(int64(x)), true
	case uint16:
		return IntegerValue(int64(x)), true
	case uint32:
		return IntegerValue(int64(x)), true
	case bool:
		return BoolValue(x), true
	case string:
		return StringValue(x), true
	case Color:
		return ColorValue(x), true
	case Vec2:
		return Vec2Value(x.X, x.Y), true
	case Vec3:
		return Vec3Value(x.X, x.Y, x.Z), true
	case Vec4:
		return Vec4Value(x.X, x.Y, x.Z, x.W), true
	case nil:
		return Value{}, false
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			item, ok := ValueOf(rv.Index(i).Interface())
			if !ok {
				return Value{}, false
			}
			items[i] = item
		}
		return ArrayValue(items...), true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, false
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			item, ok := ValueOf(iter.Value().Interface())
			if !ok {
				return Value{}, false
			}
			m[iter.Key().String()] = item
		}
		return MapValue(m), true
	}
	return Value{}, false
}

// --- Serialized projection ---
//
// Every value serializes as {type: <kind>, value: <payload>}. Colors are
// [r, g, b, a] and vectors are plain number lists; arrays and maps nest.

type valueDoc struct {
	Type  string `json:"type" yaml:"type"`
	Value any    `json:"value" yaml:"value"`
}

func (v Value) payload() any {
	switch v.kind {
	case KindNumber:
		return v.f[0]
	case KindInteger:
		return v.i
	case KindBoolean:
		return v.b
	case KindString:
		return v.s
	case KindColor:
		return []int{int(v.c.R), int(v.c.G), int(v.c.B), int(v.c.A)}
	case KindVec2, KindVec3, KindVec4:
		return slices.Clone(v.f[:v.vecLen()])
	case KindArray:
		return v.arr
	case KindMap:
		return v.m
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueDoc{Type: v.kind.String(), Value: v.payload()})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var doc struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("reel: decode value: %w", err)
	}
	return v.decodePayload(doc.Type, func(out any) error {
		return json.Unmarshal(doc.Value, out)
	})
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return valueDoc{Type: v.kind.String(), Value: v.payload()}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var doc struct {
		Type  string    `yaml:"type"`
		Value yaml.Node `yaml:"value"`
	}
	if err := node.Decode(&doc); err != nil {
		return fmt.Errorf("reel: decode value: %w", err)
	}
	return v.decodePayload(doc.Type, doc.Value.Decode)
}

// decodePayload decodes the payload for the named kind with decode and
// stores the result in v.
func (v *Value) decodePayload(typ string, decode func(any) error) error {
	kind, err := parseValueKind(typ)
	if err != nil {
		return err
	}
	wrap := func(err error) error {
		return fmt.Errorf("reel: decode %s value: %w", kind, err)
	}

	switch kind {
	case KindNumber:
		var f float64
		if err := decode(&f); err != nil {
			return wrap(err)
		}
		*v = NumberValue(f)
	case KindInteger:
		var i int64
		if err := decode(&i); err != nil {
			return wrap(err)
		}
		*v = IntegerValue(i)
	case KindBoolean:
		var b bool
		if err := decode(&b); err != nil {
			return wrap(err)
		}
		*v = BoolValue(b)
	case KindString:
		var s string
		if err := decode(&s); err != nil {
			return wrap(err)
		}
		*v = StringValue(s)
	case KindColor:
		var ch []int
		if err := decode(&ch); err != nil {
			return wrap(err)
		}
		if len(ch) != 4 {
			return wrap(fmt.Errorf("want 4 channels, got %d", len(ch)))
		}
		var c [4]uint8
		for i, x := range ch {
			if x < 0 || x > 255 {
				return wrap(fmt.Errorf("channel %d out of range: %d", i, x))
			}
			c[i] = uint8(x)
		}
		*v = ColorValue(Color{c[0], c[1], c[2], c[3]})
	case KindVec2, KindVec3, KindVec4:
		var f []float64
		if err := decode(&f); err != nil {
			return wrap(err)
		}
		n := int(kind-KindVec2) + 2
		if len(f) != n {
			return wrap(fmt.Errorf("want %d components, got %d", n, len(f)))
		}
		var out Value
		out.kind = kind
		for i := range n {
			out.f[i] = canonFloat(f[i])
		}
		*v = out
	case KindArray:
		var items []Value
		if err := decode(&items); err != nil {
			return wrap(err)
		}
		*v = ArrayValue(items...)
	case KindMap:
		var m map[string]Value
		if err := decode(&m); err != nil {
			return wrap(err)
		}
		*v = MapValue(m)
	}
	return nil
}
