// Package rcontext models the ephemeral fact mapping (spec §3 Context)
// that accompanies a single evaluation: a read-only, composable
// name-to-value lookup the evaluator and property repository consult.
package rcontext

import "github.com/alextanhongpin/rox/dynamic"

// Context is a name->value mapping supplied by the host, either set
// process-wide via SetContext or passed per-read. It never mutates once
// built; Merged composes two contexts without touching either.
type Context struct {
	values map[string]dynamic.Value
}

// New builds a Context from a plain map. The map is copied so later
// caller-side mutation of m cannot leak into the engine.
func New(m map[string]dynamic.Value) *Context {
	c := &Context{values: make(map[string]dynamic.Value, len(m))}
	for k, v := range m {
		c.values[k] = v
	}
	return c
}

// Empty returns a Context with no entries.
func Empty() *Context {
	return &Context{values: map[string]dynamic.Value{}}
}

// Get returns the value bound to key, or ok=false when absent. Callers
// that need evaluator semantics (absent -> Undefined) should use
// GetOrUndefined instead.
func (c *Context) Get(key string) (dynamic.Value, bool) {
	if c == nil {
		return dynamic.Value{}, false
	}
	v, ok := c.values[key]
	return v, ok
}

// GetOrUndefined returns the bound value, or dynamic.Undefined() when
// the context has no such key, matching "a context query returning
// nothing yields Undefined to the evaluator" (spec §3).
func (c *Context) GetOrUndefined(key string) dynamic.Value {
	v, ok := c.Get(key)
	if !ok {
		return dynamic.Undefined()
	}
	return v
}

// merged is a Context that queries local first, then falls back to
// global. Neither underlying Context is mutated.
type merged struct {
	local, global *Context
}

// Merged composes two contexts: a lookup consults local first, then
// global. Passing a nil local or global is valid and behaves as Empty.
func Merged(local, global *Context) *Context {
	out := &Context{values: map[string]dynamic.Value{}}
	if global != nil {
		for k, v := range global.values {
			out.values[k] = v
		}
	}
	if local != nil {
		for k, v := range local.values {
			out.values[k] = v
		}
	}
	return out
}
