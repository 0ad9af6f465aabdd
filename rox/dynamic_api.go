package rox

import (
	"strconv"
	"sync"

	"github.com/alextanhongpin/rox/flag"
	"github.com/alextanhongpin/rox/rcontext"
)

// dynamicFlags materializes a flag.Flag on first access by name,
// reusing it on every later access (spec §4.C11 "on first access to a
// name the engine materializes a flag with the given default and
// type").
type dynamicFlags struct {
	repo *flag.Repository

	mu    sync.Mutex
	names map[string]struct{}
}

func newDynamicFlags(repo *flag.Repository) *dynamicFlags {
	return &dynamicFlags{repo: repo, names: make(map[string]struct{})}
}

func (d *dynamicFlags) materializeBool(name string, defaultValue bool) *flag.Flag {
	return d.materialize(name, flag.TypeBool, strconv.FormatBool(defaultValue), nil)
}

func (d *dynamicFlags) materializeInt(name string, defaultValue int) *flag.Flag {
	return d.materialize(name, flag.TypeInt, strconv.Itoa(defaultValue), nil)
}

func (d *dynamicFlags) materializeDouble(name string, defaultValue float64) *flag.Flag {
	return d.materialize(name, flag.TypeDouble, strconv.FormatFloat(defaultValue, 'g', -1, 64), nil)
}

func (d *dynamicFlags) materializeString(name string, defaultValue string) *flag.Flag {
	return d.materialize(name, flag.TypeString, defaultValue, nil)
}

func (d *dynamicFlags) materialize(name string, typ flag.Type, defaultValue string, options []string) *flag.Flag {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.names[name]; ok {
		if f, ok := d.repo.Get(name); ok {
			return f
		}
	}
	f, err := d.repo.Register(name, typ, defaultValue, options)
	if err != nil {
		// Registration fails only for an empty name or a default outside
		// the allowed options (an existing name returns its handle without
		// error); the dynamic API has no way to surface that to a caller
		// expecting a bare value, so fall back to whatever is already
		// registered under name.
		if existing, ok := d.repo.Get(name); ok {
			return existing
		}
	}
	d.names[name] = struct{}{}
	return f
}

// GetBool implements the dynamic API (spec §4.C11) for bool flags.
func (c *Client) GetBool(name string, defaultValue bool, ctx *rcontext.Context) bool {
	f := c.dynamic.materializeBool(name, defaultValue)
	rv := c.flags.GetValue(f, ctx)
	return flag.ParseBool(rv.Value, defaultValue)
}

// GetInt implements the dynamic API for int flags.
func (c *Client) GetInt(name string, defaultValue int, ctx *rcontext.Context) int {
	f := c.dynamic.materializeInt(name, defaultValue)
	rv := c.flags.GetValue(f, ctx)
	return flag.ParseInt(rv.Value, defaultValue)
}

// GetDouble implements the dynamic API for double flags.
func (c *Client) GetDouble(name string, defaultValue float64, ctx *rcontext.Context) float64 {
	f := c.dynamic.materializeDouble(name, defaultValue)
	rv := c.flags.GetValue(f, ctx)
	return flag.ParseDouble(rv.Value, defaultValue)
}

// GetString implements the dynamic API for string flags.
func (c *Client) GetString(name string, defaultValue string, ctx *rcontext.Context) string {
	f := c.dynamic.materializeString(name, defaultValue)
	rv := c.flags.GetValue(f, ctx)
	return rv.Value
}
