// Package roxx implements the postfix rule-expression language: the
// tokenizer, value stack, operator table and evaluator described in
// spec §4.C2. It is the hardest subsystem in the engine and the one
// every flag decision ultimately runs through.
package roxx

import (
	"strconv"

	"github.com/alextanhongpin/rox/dynamic"
)

// Evaluator tokenizes and executes roxx expressions against an
// EvaluationContext. It is safe for concurrent use: Evaluate allocates
// a fresh stack per call and the operator table is read-only after
// construction (extensions are registered once, before concurrent
// evaluation begins, mirroring how the host installs experiments).
type Evaluator struct {
	operators map[string]OperatorFunc
}

// New returns an Evaluator preloaded with the built-in operator
// catalogue (spec §4.C2).
func New() *Evaluator {
	return &Evaluator{operators: defaultOperators()}
}

// RegisterOperator installs or replaces a named operator, for host or
// SDK extensions (spec: "extensions are registered by name, target
// closure, and handler").
func (e *Evaluator) RegisterOperator(name string, fn OperatorFunc) {
	e.operators[name] = fn
}

func (e *Evaluator) isOperator(name string) bool {
	_, ok := e.operators[name]
	return ok
}

// Result exposes the top-of-stack value coerced to whichever primitive
// type the caller asks for. A Null or Undefined top produces a null
// result across every accessor.
type Result struct {
	value dynamic.Value
}

func (r Result) IsNull() bool {
	return r.value.IsNull() || r.value.IsUndefined()
}

func (r Result) Raw() dynamic.Value { return r.value }

func (r Result) String() (string, bool) {
	if r.IsNull() {
		return "", false
	}
	return r.value.String(), true
}

func (r Result) Bool() (bool, bool) {
	if r.IsNull() {
		return false, false
	}
	if b, ok := r.value.AsBool(); ok {
		return b, true
	}
	return false, false
}

func (r Result) Int() (int64, bool) {
	if r.IsNull() {
		return 0, false
	}
	if i, ok := r.value.AsInt(); ok {
		return i, true
	}
	if f, ok := r.value.AsDouble(); ok {
		return int64(f), true
	}
	if str, ok := r.value.AsString(); ok {
		if i, err := strconv.ParseInt(str, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func (r Result) Double() (float64, bool) {
	if r.IsNull() {
		return 0, false
	}
	if f, ok := r.value.AsDouble(); ok {
		return f, true
	}
	if str, ok := r.value.AsString(); ok {
		if f, err := strconv.ParseFloat(str, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Evaluate tokenizes expr and executes it against ec. It always
// terminates and always returns exactly one Result (spec §8 "for every
// well-formed expression E and context C, evaluate(E, C) terminates and
// returns exactly one EvaluationResult"); it never panics across this
// boundary.
func (e *Evaluator) Evaluate(expr string, ec *EvaluationContext) (result Result) {
	defer func() {
		if recover() != nil {
			result = Result{value: dynamic.Undefined()}
		}
	}()

	stack := newValueStack()
	for _, tok := range tokenize(expr, e.isOperator) {
		if tok.kind == tokenOperator {
			op, ok := e.operators[tok.text]
			if !ok {
				stack.Push(dynamic.Undefined())
				continue
			}
			op(ec, stack)
			continue
		}
		stack.Push(literalValue(tok))
	}

	top, ok := stack.Peek()
	if !ok {
		return Result{value: dynamic.Undefined()}
	}
	return Result{value: top}
}
