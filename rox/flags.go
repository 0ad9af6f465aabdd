package rox

import (
	"github.com/alextanhongpin/rox/flag"
	"github.com/alextanhongpin/rox/freeze"
	"github.com/alextanhongpin/rox/rcontext"
)

type flagConfig struct {
	freeze    freeze.Scope
	hasFreeze bool
}

// FlagOption configures a single flag at registration (spec §4.C5
// "each with an optional freeze scope and options set").
type FlagOption func(*flagConfig)

// WithFlagFreeze arms scope on the flag as soon as it is registered,
// overriding the client-wide DefaultFreeze for this flag only.
func WithFlagFreeze(scope freeze.Scope) FlagOption {
	return func(c *flagConfig) { c.freeze, c.hasFreeze = scope, true }
}

func applyFlagOptions(opts []FlagOption) flagConfig {
	var c flagConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// BoolFlag is the handle AddFlag returns (spec §6).
type BoolFlag struct {
	repo *flag.Repository
	f    *flag.Flag
}

// Value runs the full read pipeline and coerces the result to bool
// (spec §4.C5 step 7).
func (b *BoolFlag) Value(ctx *rcontext.Context) bool {
	rv := b.repo.GetValue(b.f, ctx)
	return flag.ParseBool(rv.Value, flag.ParseBool(b.f.DefaultValue(), false))
}

// Freeze arms scope for this flag (spec §4.C5).
func (b *BoolFlag) Freeze(scope freeze.Scope) { b.f.Freeze(scope) }

// Unfreeze clears any cached frozen decision.
func (b *BoolFlag) Unfreeze() { b.f.Unfreeze() }

// Name returns the flag's registered name.
func (b *BoolFlag) Name() string { return b.f.Name() }

// IntFlag is the handle AddInt returns.
type IntFlag struct {
	repo *flag.Repository
	f    *flag.Flag
}

func (i *IntFlag) Value(ctx *rcontext.Context) int {
	rv := i.repo.GetValue(i.f, ctx)
	return flag.ParseInt(rv.Value, flag.ParseInt(i.f.DefaultValue(), 0))
}

func (i *IntFlag) Freeze(scope freeze.Scope) { i.f.Freeze(scope) }
func (i *IntFlag) Unfreeze()                 { i.f.Unfreeze() }
func (i *IntFlag) Name() string              { return i.f.Name() }

// DoubleFlag is the handle AddDouble returns.
type DoubleFlag struct {
	repo *flag.Repository
	f    *flag.Flag
}

func (d *DoubleFlag) Value(ctx *rcontext.Context) float64 {
	rv := d.repo.GetValue(d.f, ctx)
	return flag.ParseDouble(rv.Value, flag.ParseDouble(d.f.DefaultValue(), 0))
}

func (d *DoubleFlag) Freeze(scope freeze.Scope) { d.f.Freeze(scope) }
func (d *DoubleFlag) Unfreeze()                 { d.f.Unfreeze() }
func (d *DoubleFlag) Name() string              { return d.f.Name() }

// StringFlag is the handle AddString returns.
type StringFlag struct {
	repo *flag.Repository
	f    *flag.Flag
}

func (s *StringFlag) Value(ctx *rcontext.Context) string {
	rv := s.repo.GetValue(s.f, ctx)
	return rv.Value
}

func (s *StringFlag) Freeze(scope freeze.Scope) { s.f.Freeze(scope) }
func (s *StringFlag) Unfreeze()                 { s.f.Unfreeze() }
func (s *StringFlag) Name() string              { return s.f.Name() }
