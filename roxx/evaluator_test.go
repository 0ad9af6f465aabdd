package roxx_test

import (
	"testing"
	"time"

	"github.com/alextanhongpin/rox/dynamic"
	"github.com/alextanhongpin/rox/rcontext"
	"github.com/alextanhongpin/rox/roxx"
	"github.com/stretchr/testify/assert"
)

func eval(t *testing.T, expr string, ctx *rcontext.Context) roxx.Result {
	t.Helper()
	e := roxx.New()
	return e.Evaluate(expr, &roxx.EvaluationContext{Context: ctx})
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{`"hello world"`, "hello world"},
		{"true", "true"},
		{"false", "false"},
		{"42", "42"},
		{"3.14", "3.14"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r := eval(t, tt.expr, rcontext.Empty())
			got, ok := r.String()
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUndefinedResultIsNull(t *testing.T) {
	r := eval(t, "undefined", rcontext.Empty())
	assert.True(t, r.IsNull())

	r = eval(t, "", rcontext.Empty())
	assert.True(t, r.IsNull())
}

func TestEscapedStringRoundTrip(t *testing.T) {
	original := `say "hi" \ bye`
	quoted := roxx.Quote(original)
	r := eval(t, quoted, rcontext.Empty())
	got, ok := r.String()
	assert.True(t, ok)
	assert.Equal(t, original, got)
}

func TestComparisonOperators(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{`"a" "a" eq`, true},
		{`"a" "b" eq`, false},
		{`"a" "b" ne`, true},
		{"1 2 lt", true},
		{"2 1 lt", false},
		{"2 2 lte", true},
		{"3 2 gt", true},
		{"2 2 gte", true},
		{"true false and", false},
		{"true false or", true},
		{"true not", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r := eval(t, tt.expr, rcontext.Empty())
			got, ok := r.Bool()
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArithmetic(t *testing.T) {
	r := eval(t, "2 3 plus", rcontext.Empty())
	got, ok := r.Double()
	assert.True(t, ok)
	assert.Equal(t, 5.0, got)
}

func TestIfThen(t *testing.T) {
	r := eval(t, `true "yes" "no" ifThen`, rcontext.Empty())
	got, _ := r.String()
	assert.Equal(t, "yes", got)

	r = eval(t, `false "yes" "no" ifThen`, rcontext.Empty())
	got, _ = r.String()
	assert.Equal(t, "no", got)
}

func TestInOperator(t *testing.T) {
	e := roxx.New()
	e.RegisterOperator("pushHaystack", func(ec *roxx.EvaluationContext, s roxx.Stack) {
		s.Push(dynamic.List(dynamic.String("a"), dynamic.String("b")))
	})
	ec := &roxx.EvaluationContext{Context: rcontext.Empty()}

	r := e.Evaluate(`"a" pushHaystack in`, ec)
	got, ok := r.Bool()
	assert.True(t, ok)
	assert.True(t, got)

	r = e.Evaluate(`"c" pushHaystack in`, ec)
	got, ok = r.Bool()
	assert.True(t, ok)
	assert.False(t, got)
}

func TestPropertyResolution(t *testing.T) {
	ctx := rcontext.New(map[string]dynamic.Value{
		"country": dynamic.String("US"),
	})
	r := eval(t, `"country" property`, ctx)
	got, ok := r.String()
	assert.True(t, ok)
	assert.Equal(t, "US", got)
}

func TestPropertyMissingIsUndefined(t *testing.T) {
	r := eval(t, `"missing" property`, rcontext.Empty())
	assert.True(t, r.IsNull())
}

func TestStringOperators(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{`"hello world" "world" containsString`, true},
		{`"hello world" "hello" startsWith`, true},
		{`"hello world" "world" endsWith`, true},
		{`"hello world" "nope" containsString`, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r := eval(t, tt.expr, rcontext.Empty())
			got, ok := r.Bool()
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchOperator(t *testing.T) {
	r := eval(t, `"Hello123" "^[a-z]+[0-9]+$" "i" match`, rcontext.Empty())
	got, ok := r.Bool()
	assert.True(t, ok)
	assert.True(t, got)
}

func TestSemverOperators(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{`"1.2.3" "1.2.3" semverEq`, true},
		{`"1.2.3" "1.2.4" semverLt`, true},
		{`"2.0.0" "1.9.9" semverGt`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r := eval(t, tt.expr, rcontext.Empty())
			got, ok := r.Bool()
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateTimeOperators(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	b := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	r := eval(t, roxx.Quote(a)+" "+roxx.Quote(b)+" dateTimeStringLt", rcontext.Empty())
	got, ok := r.Bool()
	assert.True(t, ok)
	assert.True(t, got)
}

func TestNowIsNondeterministicOperator(t *testing.T) {
	e := roxx.New()
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	r1 := e.Evaluate("now", &roxx.EvaluationContext{Context: rcontext.Empty(), Now: func() time.Time { return t1 }})
	r2 := e.Evaluate("now", &roxx.EvaluationContext{Context: rcontext.Empty(), Now: func() time.Time { return t2 }})

	v1, _ := r1.Int()
	v2, _ := r2.Int()
	assert.NotEqual(t, v1, v2)
}

func TestDeterminismExcludingNow(t *testing.T) {
	e := roxx.New()
	ctx := rcontext.New(map[string]dynamic.Value{"a": dynamic.Int(1)})
	ec := &roxx.EvaluationContext{Context: ctx}

	r1 := e.Evaluate(`"a" property 1 eq`, ec)
	r2 := e.Evaluate(`"a" property 1 eq`, ec)

	b1, _ := r1.Bool()
	b2, _ := r2.Bool()
	assert.Equal(t, b1, b2)
}

func TestUnknownTokenPushesString(t *testing.T) {
	r := eval(t, "bogusOperator", rcontext.Empty())
	got, ok := r.String()
	assert.True(t, ok)
	assert.Equal(t, "bogusOperator", got)
}

func TestWrongArityDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		r := eval(t, "eq", rcontext.Empty())
		assert.True(t, r.IsNull())
	})
}

func TestRegisterOperator(t *testing.T) {
	e := roxx.New()
	e.RegisterOperator("double", func(ec *roxx.EvaluationContext, s roxx.Stack) {
		v, _ := s.Pop()
		n, _ := v.AsDouble()
		s.Push(dynamic.Double(n * 2))
	})

	r := e.Evaluate("21 double", &roxx.EvaluationContext{Context: rcontext.Empty()})
	got, ok := r.Double()
	assert.True(t, ok)
	assert.Equal(t, 42.0, got)
}
