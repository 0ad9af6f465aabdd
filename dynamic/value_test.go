package dynamic_test

import (
	"testing"
	"time"

	"github.com/alextanhongpin/rox/dynamic"
	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b dynamic.Value
		want bool
	}{
		{"undefined==undefined", dynamic.Undefined(), dynamic.Undefined(), true},
		{"null==null", dynamic.Null(), dynamic.Null(), true},
		{"null!=undefined", dynamic.Null(), dynamic.Undefined(), false},
		{"int==double within epsilon", dynamic.Int(2), dynamic.Double(2.0000001), true},
		{"int!=double far", dynamic.Int(2), dynamic.Double(3), false},
		{"string byte-equal", dynamic.String("a"), dynamic.String("a"), true},
		{"string case sensitive", dynamic.String("a"), dynamic.String("A"), false},
		{"bool by value", dynamic.Bool(true), dynamic.Bool(true), true},
		{"bool mismatch", dynamic.Bool(true), dynamic.Bool(false), false},
		{"string vs int never equal", dynamic.String("1"), dynamic.Int(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dynamic.Equal(tt.a, tt.b))
		})
	}
}

func TestDeepCopyList(t *testing.T) {
	inner := dynamic.List(dynamic.String("a"), dynamic.Int(1))
	outer := dynamic.List(inner)

	cp := outer.DeepCopy()
	cpList, _ := cp.AsList()
	cpInnerList, _ := cpList[0].AsList()

	// Mutating the copy's backing array must not affect the original.
	cpInnerList[0] = dynamic.String("mutated")

	origList, _ := outer.AsList()
	origInnerList, _ := origList[0].AsList()
	got, _ := origInnerList[0].AsString()
	assert.Equal(t, "a", got)
}

func TestDeepCopyMap(t *testing.T) {
	m := dynamic.NewMap()
	m.Set("k", dynamic.String("v"))
	v := dynamic.MapValue(m)

	cp := v.DeepCopy()
	cpMap, _ := cp.AsMap()
	cpMap.Set("k", dynamic.String("changed"))

	origMap, _ := v.AsMap()
	orig, _ := origMap.Get("k")
	got, _ := orig.AsString()
	assert.Equal(t, "v", got)
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, dynamic.Int(1).IsNumeric())
	assert.True(t, dynamic.Double(1).IsNumeric())
	assert.False(t, dynamic.String("1").IsNumeric())
	assert.True(t, dynamic.DateTime(time.Now()).IsDateTime())
}

func TestString(t *testing.T) {
	assert.Equal(t, "true", dynamic.Bool(true).String())
	assert.Equal(t, "false", dynamic.Bool(false).String())
	assert.Equal(t, "42", dynamic.Int(42).String())
	assert.Equal(t, "undefined", dynamic.Undefined().String())
	assert.Equal(t, "null", dynamic.Null().String())
}
