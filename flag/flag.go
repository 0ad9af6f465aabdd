// Package flag implements the flag repository and read-time evaluation
// pipeline (spec §4.C5): registration, experiment binding, the
// override/freeze/experiment/default precedence chain, impression
// emission, and type conversion.
package flag

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alextanhongpin/rox/dynamic"
	"github.com/alextanhongpin/rox/freeze"
	"github.com/alextanhongpin/rox/model"
	"github.com/alextanhongpin/rox/override"
	"github.com/alextanhongpin/rox/property"
	"github.com/alextanhongpin/rox/rcontext"
	"github.com/alextanhongpin/rox/roxx"
)

// Type identifies a flag's value domain (spec §3 Flag).
type Type int

const (
	TypeBool Type = iota
	TypeInt
	TypeDouble
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// ReportingValue is the decision an evaluation produced, reported to the
// impression handler and to analytics (spec §3). ExperimentID is empty
// when the flag was not bound to an experiment (default value served).
type ReportingValue struct {
	Name         string
	Value        string
	Targeting    bool
	ExperimentID string
}

// ImpressionFunc observes one ReportingValue, with the context it was
// computed against. It must not block the caller for long; the rox
// client wires it to the user handler plus the analytics queue (C12).
type ImpressionFunc func(rv ReportingValue, ctx *rcontext.Context)

// Flag is the opaque handle returned by registration. Its zero value is
// not usable; obtain one from Repository.Register.
type Flag struct {
	name           string
	typ            Type
	defaultValue   string
	allowedOptions map[string]struct{} // nil means unrestricted

	mu                 sync.Mutex
	freezeScope        freeze.Scope
	frozen             bool
	frozenValue        string
	frozenTargeting    bool
	frozenExperimentID string
}

func (f *Flag) Name() string         { return f.name }
func (f *Flag) Type() Type           { return f.typ }
func (f *Flag) DefaultValue() string { return f.defaultValue }

// Namespace is the dot-separated prefix before the flag's last segment.
func (f *Flag) Namespace() string {
	i := strings.LastIndexByte(f.name, '.')
	if i < 0 {
		return ""
	}
	return f.name[:i]
}

// Freeze arms scope for this flag. The next read after arming becomes
// the frozen decision; it does not retroactively freeze an already
// decided value.
func (f *Flag) Freeze(scope freeze.Scope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freezeScope = scope
	if scope == freeze.None {
		f.frozen = false
	}
}

// Unfreeze clears any stored frozen decision without changing the
// configured freeze scope; the next read decides fresh and, if the
// scope is still armed, re-freezes on that decision.
func (f *Flag) Unfreeze() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frozen = false
}

func (f *Flag) allows(value string) bool {
	if f.allowedOptions == nil {
		return true
	}
	_, ok := f.allowedOptions[value]
	return ok
}

func optionSet(defaultValue string, options []string) map[string]struct{} {
	if len(options) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(options)+1)
	for _, o := range options {
		set[o] = struct{}{}
	}
	set[defaultValue] = struct{}{}
	return set
}

// AddedListener observes every newly registered flag (spec §4.C5
// "registration emits a 'flag added' event").
type AddedListener func(f *Flag)

// Option configures a Repository at construction.
type Option func(*Repository)

// WithBucketer wires the stickiness bucketer consulted by getBucket
// inside bound experiment expressions (spec §4.C6).
func WithBucketer(b roxx.StickinessBucketer) Option {
	return func(r *Repository) { r.bucketer = b }
}

// WithDynamicPropertiesRule installs the fallback resolver consulted by
// the "property" operator when a name is neither a custom property nor
// present in the context (spec §4.C2/C3).
func WithDynamicPropertiesRule(fn func(name string, ctx *rcontext.Context) dynamic.Value) Option {
	return func(r *Repository) { r.dynamicPropertiesRule = fn }
}

// WithImpressionHandler installs the sink invoked on every non-override
// read, including reads served from a frozen decision (spec §4.C12).
func WithImpressionHandler(fn ImpressionFunc) Option {
	return func(r *Repository) { r.impression = fn }
}

// WithDefaultFreeze sets the freeze scope newly registered flags start
// with, absent a per-flag override at registration.
func WithDefaultFreeze(scope freeze.Scope) Option {
	return func(r *Repository) { r.defaultFreeze = scope }
}

// WithClock overrides the time source used for the evaluator's "now"
// operator and for diagnostics; tests use it to pin time.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// Repository owns every registered flag, the evaluation pipeline that
// turns a read into a ReportingValue, and the collaborators that
// pipeline consults.
type Repository struct {
	models     *model.Repository
	evaluator  *roxx.Evaluator
	properties *property.Repository
	overrides  *override.Repository

	bucketer              roxx.StickinessBucketer
	dynamicPropertiesRule func(name string, ctx *rcontext.Context) dynamic.Value
	impression            ImpressionFunc
	defaultFreeze         freeze.Scope
	now                   func() time.Time

	mu            sync.RWMutex
	flags         map[string]*Flag
	globalContext *rcontext.Context
	listeners     []AddedListener
}

// NewRepository wires a flag Repository to its required collaborators.
func NewRepository(models *model.Repository, evaluator *roxx.Evaluator, properties *property.Repository, overrides *override.Repository, opts ...Option) *Repository {
	r := &Repository{
		models:     models,
		evaluator:  evaluator,
		properties: properties,
		overrides:  overrides,
		now:        time.Now,
		flags:      make(map[string]*Flag),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnAdded registers a listener invoked on every first-time registration.
func (r *Repository) OnAdded(l AddedListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Register installs a flag under name, or returns the existing handle if
// name was already registered (spec §4.C5 "idempotent on name"). options
// may be empty, meaning any string an experiment produces is accepted;
// a TypeBool flag always accepts only "true" and "false", whatever
// options says.
func (r *Repository) Register(name string, typ Type, defaultValue string, options []string) (*Flag, error) {
	if name == "" {
		return nil, fmt.Errorf("flag: name must not be empty")
	}

	r.mu.Lock()
	if existing, ok := r.flags[name]; ok {
		r.mu.Unlock()
		return existing, nil
	}

	allowed := optionSet(defaultValue, options)
	if typ == TypeBool {
		allowed = map[string]struct{}{"true": {}, "false": {}}
	}
	if allowed != nil {
		if _, ok := allowed[defaultValue]; !ok {
			r.mu.Unlock()
			return nil, fmt.Errorf("flag: default value %q for %q is not a member of its allowed options", defaultValue, name)
		}
	}

	f := &Flag{
		name:           name,
		typ:            typ,
		defaultValue:   defaultValue,
		allowedOptions: allowed,
		freezeScope:    r.defaultFreeze,
	}
	r.flags[name] = f
	listeners := append([]AddedListener(nil), r.listeners...)
	r.mu.Unlock()

	for _, l := range listeners {
		l(f)
	}
	return f, nil
}

// Get returns the flag registered under name, if any.
func (r *Repository) Get(name string) (*Flag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flags[name]
	return f, ok
}

// Names returns every registered flag name.
func (r *Repository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.flags))
	for name := range r.flags {
		out = append(out, name)
	}
	return out
}

// Namespace returns every registered flag whose name falls under prefix
// (either equal to it or dot-separated beneath it).
func (r *Repository) Namespace(prefix string) []*Flag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Flag
	for name, f := range r.flags {
		if name == prefix || strings.HasPrefix(name, prefix+".") {
			out = append(out, f)
		}
	}
	return out
}

// SetContext installs the global context merged under every per-call
// local context (spec §3 "merged(global, local) queries local first").
func (r *Repository) SetContext(ctx *rcontext.Context) {
	r.mu.Lock()
	r.globalContext = ctx
	r.mu.Unlock()
}

func (r *Repository) mergedContext(local *rcontext.Context) *rcontext.Context {
	r.mu.RLock()
	global := r.globalContext
	r.mu.RUnlock()
	if local == nil {
		local = rcontext.Empty()
	}
	if global == nil {
		global = rcontext.Empty()
	}
	return rcontext.Merged(local, global)
}

// stickinessFallback is consulted when an experiment does not declare
// its own stickiness property (spec §4.C6).
const stickinessFallback = "rox.distinct_id"

// decide runs steps 3-4 of the evaluation path: build the evaluation
// context, consult the bound experiment (if any), and fall back to the
// default when there is none, the result is Undefined, or the result is
// outside the flag's allowed options.
func (r *Repository) decide(f *Flag, ctx *rcontext.Context) (value string, targeting bool, experimentID string) {
	experiments := r.models.ExperimentsForFlag(f.name)
	if len(experiments) == 0 {
		return f.defaultValue, false, ""
	}
	exp := experiments[0]

	stickinessProperty := exp.StickinessPropertyName
	if stickinessProperty == "" {
		stickinessProperty = stickinessFallback
	}

	ec := &roxx.EvaluationContext{
		Context:                ctx,
		Properties:             r.properties,
		DynamicPropertiesRule:  r.dynamicPropertiesRule,
		TargetGroups:           r.models,
		Bucketer:               r.bucketer,
		FlagName:               f.name,
		ExperimentID:           exp.ID,
		StickinessPropertyName: stickinessProperty,
		Now:                    r.now,
	}

	result := r.evaluator.Evaluate(exp.Condition, ec)
	str, ok := result.String()
	if !ok || !f.allows(str) {
		return f.defaultValue, false, ""
	}
	return str, true, exp.ID
}

func (r *Repository) emit(rv ReportingValue, ctx *rcontext.Context) {
	if r.impression != nil {
		r.impression(rv, ctx)
	}
}

// GetValue runs the full read pipeline (spec §4.C5 steps 1-6): override,
// then cached freeze, then a fresh decision which may itself freeze.
func (r *Repository) GetValue(f *Flag, localCtx *rcontext.Context) ReportingValue {
	if v, ok := r.overrides.Get(f.name); ok {
		return ReportingValue{Name: f.name, Value: v, Targeting: false}
	}

	ctx := r.mergedContext(localCtx)

	f.mu.Lock()
	if f.frozen {
		rv := ReportingValue{Name: f.name, Value: f.frozenValue, Targeting: f.frozenTargeting, ExperimentID: f.frozenExperimentID}
		f.mu.Unlock()
		r.emit(rv, ctx)
		return rv
	}
	scope := f.freezeScope
	f.mu.Unlock()

	value, targeting, experimentID := r.decide(f, ctx)

	if scope != freeze.None {
		f.mu.Lock()
		if !f.frozen {
			f.frozen = true
			f.frozenValue = value
			f.frozenTargeting = targeting
			f.frozenExperimentID = experimentID
		}
		f.mu.Unlock()
	}

	rv := ReportingValue{Name: f.name, Value: value, Targeting: targeting, ExperimentID: experimentID}
	r.emit(rv, ctx)
	return rv
}

// PeekCurrentValue computes steps 3-4 without consulting override or
// freeze and without emitting an impression (spec §4.C5).
func (r *Repository) PeekCurrentValue(f *Flag, localCtx *rcontext.Context) (string, bool) {
	ctx := r.mergedContext(localCtx)
	value, targeting, _ := r.decide(f, ctx)
	return value, targeting
}

// PeekOriginalValue computes steps 3-4 ignoring override and freeze and
// without emitting an impression; it computes exactly what
// PeekCurrentValue computes, since no separate "original, pre-fetch"
// snapshot is kept once a generation swap has happened. See DESIGN.md
// for this Open Question's resolution.
func (r *Repository) PeekOriginalValue(f *Flag, localCtx *rcontext.Context) (string, bool) {
	ctx := r.mergedContext(localCtx)
	value, targeting, _ := r.decide(f, ctx)
	return value, targeting
}

// ParseBool converts a decision string to bool per spec §4.C5 step 7.
func ParseBool(value string, defaultValue bool) bool {
	switch value {
	case "true":
		return true
	case "false":
		return false
	default:
		return defaultValue
	}
}

// ParseInt converts a decimal decision string to int per spec §4.C5 step
// 7, falling back to defaultValue on parse failure.
func ParseInt(value string, defaultValue int) int {
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

// ParseDouble converts a decision string to float64 per spec §4.C5 step
// 7, falling back to defaultValue on parse failure.
func ParseDouble(value string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
