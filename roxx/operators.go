package roxx

import (
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"github.com/alextanhongpin/rox/dynamic"
	"github.com/alextanhongpin/rox/property"
	"github.com/alextanhongpin/rox/rcontext"
	"golang.org/x/mod/semver"
)

// TargetGroupResolver evaluates a referenced target group's condition
// against a context, for the isInTargetGroup operator (spec §4.C4). It
// is an interface, not a direct import of the model package, to keep
// roxx free of a dependency on the configuration model.
type TargetGroupResolver interface {
	ResolveTargetGroup(id string, ctx *rcontext.Context) (bool, bool)
}

// StickinessBucketer computes the deterministic weighted bucket choice
// for the getBucket operator (spec §4.C6). It is an interface so roxx
// never imports the bucket package directly; bucket, in turn, has no
// reason to import roxx.
type StickinessBucketer interface {
	Bucket(experimentID, stickinessKey string, weights dynamic.Map) (string, bool)
}

// EvaluationContext carries everything an expression may read. Lookups
// through it never mutate the repository, context, or dynamic-properties
// rule (spec §4.C2 "must not mutate").
type EvaluationContext struct {
	Context               *rcontext.Context
	Properties            *property.Repository
	DynamicPropertiesRule func(name string, ctx *rcontext.Context) dynamic.Value
	TargetGroups          TargetGroupResolver
	Bucketer              StickinessBucketer

	// FlagName, ExperimentID and StickinessPropertyName describe the
	// flag/experiment being evaluated. Of the built-in operators only
	// getBucket reads any of them (ExperimentID); the other two are
	// available to host-registered operators.
	FlagName                string
	ExperimentID            string
	StickinessPropertyName  string
	Now                     func() time.Time
}

func (ec *EvaluationContext) now() time.Time {
	if ec == nil || ec.Now == nil {
		return time.Now()
	}
	return ec.Now()
}

// resolveProperty implements spec §4.C2 "property" operator precedence:
// custom property (literal or generator) -> context -> dynamic
// properties rule -> Undefined.
func (ec *EvaluationContext) resolveProperty(name string) dynamic.Value {
	if ec == nil {
		return dynamic.Undefined()
	}
	if ec.Properties != nil {
		if p, ok := ec.Properties.Get(name); ok {
			return p.Resolve(ec.Context)
		}
	}
	if v, ok := ec.Context.Get(name); ok {
		return v
	}
	if ec.DynamicPropertiesRule != nil {
		return ec.DynamicPropertiesRule(name, ec.Context)
	}
	return dynamic.Undefined()
}

// OperatorFunc executes one operator against the shared stack. It must
// never panic for caller-visible reasons; malformed operands push
// Undefined (spec §4.C2 "error semantics").
type OperatorFunc func(ec *EvaluationContext, s Stack)

func defaultOperators() map[string]OperatorFunc {
	return map[string]OperatorFunc{
		"eq":  opEq,
		"ne":  opNe,
		"and": opAnd,
		"or":  opOr,
		"not": opNot,
		"ifThen": opIfThen,
		"in":     opIn,

		"lt":    numCompare(func(a, b float64) bool { return a < b }),
		"lte":   numCompare(func(a, b float64) bool { return a <= b }),
		"gt":    numCompare(func(a, b float64) bool { return a > b }),
		"gte":   numCompare(func(a, b float64) bool { return a >= b }),
		"plus":  numArith(func(a, b float64) float64 { return a + b }),
		"minus": numArith(func(a, b float64) float64 { return a - b }),
		"mult":  numArith(func(a, b float64) float64 { return a * b }),
		"div":   numArith(func(a, b float64) float64 { return a / b }),

		"concat":         opConcat,
		"b64d":           opB64d,
		"match":          opMatch,
		"containsString": strCompare(strings.Contains),
		"startsWith":     strCompare(strings.HasPrefix),
		"endsWith":       strCompare(strings.HasSuffix),

		"semverEq":  semverCompare(func(c int) bool { return c == 0 }),
		"semverNe":  semverCompare(func(c int) bool { return c != 0 }),
		"semverLt":  semverCompare(func(c int) bool { return c < 0 }),
		"semverLte": semverCompare(func(c int) bool { return c <= 0 }),
		"semverGt":  semverCompare(func(c int) bool { return c > 0 }),
		"semverGte": semverCompare(func(c int) bool { return c >= 0 }),

		"now":                 opNow,
		"dateTimeStringEq":    dateCompare(func(c int) bool { return c == 0 }),
		"dateTimeStringLt":    dateCompare(func(c int) bool { return c < 0 }),
		"dateTimeStringLte":   dateCompare(func(c int) bool { return c <= 0 }),
		"dateTimeStringGt":    dateCompare(func(c int) bool { return c > 0 }),
		"dateTimeStringGte":   dateCompare(func(c int) bool { return c >= 0 }),

		"property":  opProperty,
		"undefined": opUndefined,

		"getBucket":       opGetBucket,
		"isInTargetGroup": opIsInTargetGroup,
	}
}

func opEq(ec *EvaluationContext, s Stack) {
	b, bok := s.Pop()
	a, aok := s.Pop()
	if !aok || !bok {
		s.Push(dynamic.Undefined())
		return
	}
	s.Push(dynamic.Bool(dynamic.Equal(a, b)))
}

func opNe(ec *EvaluationContext, s Stack) {
	b, bok := s.Pop()
	a, aok := s.Pop()
	if !aok || !bok {
		s.Push(dynamic.Undefined())
		return
	}
	s.Push(dynamic.Bool(!dynamic.Equal(a, b)))
}

func boolOf(v dynamic.Value) (bool, bool) {
	return v.AsBool()
}

func opAnd(ec *EvaluationContext, s Stack) {
	bv, _ := s.Pop()
	av, _ := s.Pop()
	a, aok := boolOf(av)
	b, bok := boolOf(bv)
	if !aok || !bok {
		s.Push(dynamic.Undefined())
		return
	}
	s.Push(dynamic.Bool(a && b))
}

func opOr(ec *EvaluationContext, s Stack) {
	bv, _ := s.Pop()
	av, _ := s.Pop()
	a, aok := boolOf(av)
	b, bok := boolOf(bv)
	if !aok || !bok {
		s.Push(dynamic.Undefined())
		return
	}
	s.Push(dynamic.Bool(a || b))
}

func opNot(ec *EvaluationContext, s Stack) {
	av, _ := s.Pop()
	a, ok := boolOf(av)
	if !ok {
		s.Push(dynamic.Undefined())
		return
	}
	s.Push(dynamic.Bool(!a))
}

func opIfThen(ec *EvaluationContext, s Stack) {
	elseV, _ := s.Pop()
	thenV, _ := s.Pop()
	condV, _ := s.Pop()
	cond, ok := boolOf(condV)
	if !ok {
		s.Push(dynamic.Undefined())
		return
	}
	if cond {
		s.Push(thenV)
		return
	}
	s.Push(elseV)
}

func opIn(ec *EvaluationContext, s Stack) {
	haystackV, _ := s.Pop()
	needle, _ := s.Pop()
	list, ok := haystackV.AsList()
	if !ok {
		s.Push(dynamic.Undefined())
		return
	}
	for _, item := range list {
		if dynamic.Equal(item, needle) {
			s.Push(dynamic.Bool(true))
			return
		}
	}
	s.Push(dynamic.Bool(false))
}

func numCompare(cmp func(a, b float64) bool) OperatorFunc {
	return func(ec *EvaluationContext, s Stack) {
		bv, _ := s.Pop()
		av, _ := s.Pop()
		a, aok := av.AsDouble()
		b, bok := bv.AsDouble()
		if !aok || !bok {
			s.Push(dynamic.Undefined())
			return
		}
		s.Push(dynamic.Bool(cmp(a, b)))
	}
}

func numArith(fn func(a, b float64) float64) OperatorFunc {
	return func(ec *EvaluationContext, s Stack) {
		bv, _ := s.Pop()
		av, _ := s.Pop()
		a, aok := av.AsDouble()
		b, bok := bv.AsDouble()
		if !aok || !bok {
			s.Push(dynamic.Undefined())
			return
		}
		s.Push(dynamic.Double(fn(a, b)))
	}
}

func opConcat(ec *EvaluationContext, s Stack) {
	bv, _ := s.Pop()
	av, _ := s.Pop()
	a, aok := av.AsString()
	b, bok := bv.AsString()
	if !aok || !bok {
		s.Push(dynamic.Undefined())
		return
	}
	s.Push(dynamic.String(a + b))
}

func opB64d(ec *EvaluationContext, s Stack) {
	v, _ := s.Pop()
	str, ok := v.AsString()
	if !ok {
		s.Push(dynamic.Undefined())
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		s.Push(dynamic.Undefined())
		return
	}
	s.Push(dynamic.String(string(decoded)))
}

func opMatch(ec *EvaluationContext, s Stack) {
	flagsV, _ := s.Pop()
	patternV, _ := s.Pop()
	inputV, _ := s.Pop()

	input, iok := inputV.AsString()
	pattern, pok := patternV.AsString()
	flags, fok := flagsV.AsString()
	if !iok || !pok || !fok {
		s.Push(dynamic.Undefined())
		return
	}

	expr := pattern
	if strings.Contains(flags, "i") {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		s.Push(dynamic.Undefined())
		return
	}
	s.Push(dynamic.Bool(re.MatchString(input)))
}

func strCompare(fn func(s, substr string) bool) OperatorFunc {
	return func(ec *EvaluationContext, s Stack) {
		bv, _ := s.Pop()
		av, _ := s.Pop()
		a, aok := av.AsString()
		b, bok := bv.AsString()
		if !aok || !bok {
			s.Push(dynamic.Undefined())
			return
		}
		s.Push(dynamic.Bool(fn(a, b)))
	}
}

func normalizeSemver(v string) string {
	if v == "" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

func semverCompare(accept func(cmp int) bool) OperatorFunc {
	return func(ec *EvaluationContext, s Stack) {
		bv, _ := s.Pop()
		av, _ := s.Pop()
		a, aok := av.AsString()
		b, bok := bv.AsString()
		if !aok || !bok {
			s.Push(dynamic.Undefined())
			return
		}
		na, nb := normalizeSemver(a), normalizeSemver(b)
		if !semver.IsValid(na) || !semver.IsValid(nb) {
			s.Push(dynamic.Undefined())
			return
		}
		s.Push(dynamic.Bool(accept(semver.Compare(na, nb))))
	}
}

func opNow(ec *EvaluationContext, s Stack) {
	s.Push(dynamic.Int(ec.now().Unix()))
}

func dateCompare(accept func(cmp int) bool) OperatorFunc {
	return func(ec *EvaluationContext, s Stack) {
		bv, _ := s.Pop()
		av, _ := s.Pop()
		a, aok := av.AsString()
		b, bok := bv.AsString()
		if !aok || !bok {
			s.Push(dynamic.Undefined())
			return
		}
		at, aerr := time.Parse(time.RFC3339, a)
		bt, berr := time.Parse(time.RFC3339, b)
		if aerr != nil || berr != nil {
			s.Push(dynamic.Undefined())
			return
		}
		switch {
		case at.Before(bt):
			s.Push(dynamic.Bool(accept(-1)))
		case at.After(bt):
			s.Push(dynamic.Bool(accept(1)))
		default:
			s.Push(dynamic.Bool(accept(0)))
		}
	}
}

func opProperty(ec *EvaluationContext, s Stack) {
	nameV, _ := s.Pop()
	name, ok := nameV.AsString()
	if !ok {
		s.Push(dynamic.Undefined())
		return
	}
	s.Push(ec.resolveProperty(name))
}

func opUndefined(ec *EvaluationContext, s Stack) {
	s.Push(dynamic.Undefined())
}

func opGetBucket(ec *EvaluationContext, s Stack) {
	weightsV, _ := s.Pop()
	keyV, _ := s.Pop()

	weights, wok := weightsV.AsMap()
	key, kok := keyV.AsString()
	if !wok || !kok || ec.Bucketer == nil {
		s.Push(dynamic.Undefined())
		return
	}
	label, ok := ec.Bucketer.Bucket(ec.ExperimentID, key, weights)
	if !ok {
		s.Push(dynamic.Undefined())
		return
	}
	s.Push(dynamic.String(label))
}

func opIsInTargetGroup(ec *EvaluationContext, s Stack) {
	idV, _ := s.Pop()
	id, ok := idV.AsString()
	if !ok || ec.TargetGroups == nil {
		s.Push(dynamic.Undefined())
		return
	}
	result, found := ec.TargetGroups.ResolveTargetGroup(id, ec.Context)
	if !found {
		s.Push(dynamic.Undefined())
		return
	}
	s.Push(dynamic.Bool(result))
}
