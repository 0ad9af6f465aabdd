package rox

import (
	"time"

	"github.com/alextanhongpin/rox/dynamic"
	"github.com/alextanhongpin/rox/property"
	"github.com/alextanhongpin/rox/rcontext"
)

// distinctIDContextKey is the plain context entry a host supplies via
// SetContext to identify the current user/device; the reserved
// "rox.distinct_id" property forwards to it so expressions see it under
// its reserved name (spec §3 "Reserved names beginning with rox. are
// pre-registered at setup"). The impression reporter does not go through
// this property: it reads a "rox.distinct_id" context entry directly, so
// a context carrying only "distinctId" yields an empty distinct_id in
// analytics events.
// The configuration model never declares a key named this way itself,
// so there is no ambiguity between a host-supplied property and this
// forwarding.
const distinctIDContextKey = "distinctId"

const (
	platform = "go"
	lang     = "go"
)

// registerReservedProperties installs the rox.* properties spec §3
// lists as pre-registered at setup: literals sourced from Options, and
// generators for values that change per read (rox.now) or per call
// (rox.distinct_id, forwarded from the local context).
func registerReservedProperties(repo *property.Repository, opts Options, now func() time.Time) {
	repo.Add(property.Computed("rox.now", property.DateTime, func(ctx *rcontext.Context) dynamic.Value {
		return dynamic.DateTime(now())
	}))
	repo.Add(property.Computed("rox.distinct_id", property.String, func(ctx *rcontext.Context) dynamic.Value {
		return ctx.GetOrUndefined(distinctIDContextKey)
	}))
	repo.Add(property.LiteralString("rox.platform", platform))
	repo.Add(property.LiteralString("rox.lang", lang))
	repo.Add(property.LiteralString("rox.app_release", opts.Version))
}
