// Package dynamic implements the tagged variant value type that flows
// through expression evaluation, contexts and custom properties.
package dynamic

import (
	"fmt"
	"math"
	"time"

	"github.com/mitchellh/copystructure"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies which variant of Value is active.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindInt
	KindDouble
	KindBool
	KindString
	KindDateTime
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindDateTime:
		return "datetime"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// epsilon bounds numeric equality, matching single-precision tolerance.
const epsilon = 1e-6

// Map preserves insertion order, since configuration-derived maps (e.g.
// getBucket's weight table) must be walked in authoring order.
type Map = *orderedmap.OrderedMap[string, Value]

// Value is a sum type over int64/float64/bool/string/time.Time/list/map,
// plus the Null and Undefined sentinels described in spec §3. Exactly one
// of the backing fields is meaningful, selected by kind.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
	t    time.Time
	list []Value
	m    Map
}

// Undefined denotes "no such property"; it is distinct from Null.
func Undefined() Value { return Value{kind: KindUndefined} }

// Null denotes "property exists, value absent".
func Null() Value { return Value{kind: KindNull} }

func Int(i int64) Value        { return Value{kind: KindInt, i: i} }
func Double(f float64) Value   { return Value{kind: KindDouble, f: f} }
func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func String(s string) Value    { return Value{kind: KindString, s: s} }
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t} }

func List(vs ...Value) Value {
	cp := make([]Value, len(vs))
	copy(cp, vs)
	return Value{kind: KindList, list: cp}
}

func NewMap() Map {
	return orderedmap.New[string, Value]()
}

func MapValue(m Map) Value {
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind       { return v.kind }
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsInt() bool       { return v.kind == KindInt }
func (v Value) IsDouble() bool    { return v.kind == KindDouble }
func (v Value) IsBool() bool      { return v.kind == KindBool }
func (v Value) IsString() bool    { return v.kind == KindString }
func (v Value) IsDateTime() bool  { return v.kind == KindDateTime }
func (v Value) IsList() bool      { return v.kind == KindList }
func (v Value) IsMap() bool       { return v.kind == KindMap }
func (v Value) IsNumeric() bool   { return v.kind == KindInt || v.kind == KindDouble }

// AsInt unwraps an Int variant; ok is false for any other kind.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsDouble unwraps a numeric variant as float64.
func (v Value) AsDouble() (float64, bool) {
	switch v.kind {
	case KindDouble:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsDateTime() (time.Time, bool) {
	if v.kind != KindDateTime {
		return time.Time{}, false
	}
	return v.t, true
}

func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

func (v Value) AsMap() (Map, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// String renders the value for logging and for the evaluator's string
// coercion of operator results.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindDouble:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindString:
		return v.s
	case KindDateTime:
		return v.t.Format(time.RFC3339)
	case KindList:
		return fmt.Sprintf("%v", v.list)
	case KindMap:
		return fmt.Sprintf("%v", v.m)
	default:
		return ""
	}
}

// Equal implements spec §3 equality: Null==Null, Undefined==Undefined,
// numeric compares within epsilon across int/double, strings byte-equal,
// booleans by value, date-times by instant, everything else unequal.
func Equal(a, b Value) bool {
	if a.kind == KindUndefined && b.kind == KindUndefined {
		return true
	}
	if a.kind == KindNull && b.kind == KindNull {
		return true
	}
	if a.IsNumeric() && b.IsNumeric() {
		af, _ := a.AsDouble()
		bf, _ := b.AsDouble()
		return math.Abs(af-bf) < epsilon
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindDateTime:
		return a.t.Equal(b.t)
	default:
		return false
	}
}

// DeepCopy returns a value whose List/Map contents share no backing
// storage with v. copystructure walks exported-field struct/slice/map
// graphs; Value's fields are unexported, so DeepCopy recurses by kind
// instead and does not use copystructure at all. Host-supplied values
// are cloned with copystructure by DeepCopyAny.
func (v Value) DeepCopy() Value {
	switch v.kind {
	case KindList:
		out := make([]Value, len(v.list))
		for i, e := range v.list {
			out[i] = e.DeepCopy()
		}
		return Value{kind: KindList, list: out}
	case KindMap:
		out := NewMap()
		for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
			out.Set(pair.Key, pair.Value.DeepCopy())
		}
		return Value{kind: KindMap, m: out}
	default:
		return v
	}
}

// DeepCopyAny clones an arbitrary host-supplied value (e.g. the payload
// of a property generator) before it is wrapped into a Value, so the
// engine never aliases caller-owned memory.
func DeepCopyAny(v any) (any, error) {
	return copystructure.Copy(v)
}
