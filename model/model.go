// Package model holds the configuration-derived target-group and
// experiment repositories (spec §4.C4): parsed, swapped atomically on
// every successful fetch, and consulted by flag evaluation and by the
// isInTargetGroup operator.
package model

import (
	"sync/atomic"

	"github.com/alextanhongpin/rox/rcontext"
	"github.com/alextanhongpin/rox/roxx"
)

// TargetGroup is a named boolean expression reusable by reference
// inside other expressions via isInTargetGroup.
type TargetGroup struct {
	ID        string
	Condition string
}

// Experiment binds a rule expression to one or more flags. Condition
// evaluates to a string (the chosen variant) or Undefined to fall
// through to the flag's default.
type Experiment struct {
	ID                     string
	Name                   string
	Archived               bool
	StickinessPropertyName string
	Labels                 []string
	FlagNames              []string
	Condition              string
}

// generation is the immutable, atomically-swapped set of target groups
// and experiments produced by one successful configuration load (spec
// §4.C4 "on each successful configuration load the repositories
// atomically swap their contents").
type generation struct {
	targetGroups map[string]TargetGroup
	experiments  []Experiment
	byFlagName   map[string][]Experiment
}

func newGeneration(groups []TargetGroup, experiments []Experiment) *generation {
	g := &generation{
		targetGroups: make(map[string]TargetGroup, len(groups)),
		experiments:  experiments,
		byFlagName:   make(map[string][]Experiment),
	}
	for _, tg := range groups {
		g.targetGroups[tg.ID] = tg
	}
	for _, exp := range experiments {
		if exp.Archived {
			continue
		}
		for _, flagName := range exp.FlagNames {
			g.byFlagName[flagName] = append(g.byFlagName[flagName], exp)
		}
	}
	return g
}

// Repository holds the current generation of target groups and
// experiments. Readers call Current() once per evaluation and see
// either the full old set or the full new set, never a mix (spec
// §4.C4, §5).
type Repository struct {
	current   atomic.Pointer[generation]
	evaluator *roxx.Evaluator
}

// NewRepository returns an empty Repository backed by evaluator for
// resolving isInTargetGroup and experiment conditions.
func NewRepository(evaluator *roxx.Evaluator) *Repository {
	r := &Repository{evaluator: evaluator}
	r.current.Store(newGeneration(nil, nil))
	return r
}

// Apply atomically publishes a new generation, replacing the one
// readers currently observe.
func (r *Repository) Apply(groups []TargetGroup, experiments []Experiment) {
	r.current.Store(newGeneration(groups, experiments))
}

// ExperimentsForFlag returns every non-archived experiment currently
// bound to flagName, in configuration order.
func (r *Repository) ExperimentsForFlag(flagName string) []Experiment {
	g := r.current.Load()
	return g.byFlagName[flagName]
}

// ResolveTargetGroup implements roxx.TargetGroupResolver: it evaluates
// the referenced target group's condition against ctx. found is false
// when no such group exists in the current generation.
func (r *Repository) ResolveTargetGroup(id string, ctx *rcontext.Context) (bool, bool) {
	g := r.current.Load()
	tg, ok := g.targetGroups[id]
	if !ok {
		return false, false
	}
	result := r.evaluator.Evaluate(tg.Condition, &roxx.EvaluationContext{
		Context:      ctx,
		TargetGroups: r,
	})
	b, ok := result.Bool()
	if !ok {
		return false, true
	}
	return b, true
}

// AllExperiments returns every experiment in the current generation,
// for diagnostics and for the "every registered flag's bound experiment
// is... one of the experiments in the new payload" invariant (spec §8).
func (r *Repository) AllExperiments() []Experiment {
	g := r.current.Load()
	out := make([]Experiment, len(g.experiments))
	copy(out, g.experiments)
	return out
}
