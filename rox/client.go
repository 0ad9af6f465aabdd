package rox

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/event"
	"golang.org/x/exp/slog"

	"github.com/alextanhongpin/rox/analytics"
	"github.com/alextanhongpin/rox/bucket"
	"github.com/alextanhongpin/rox/config"
	"github.com/alextanhongpin/rox/dynamic"
	"github.com/alextanhongpin/rox/flag"
	"github.com/alextanhongpin/rox/model"
	"github.com/alextanhongpin/rox/notify"
	"github.com/alextanhongpin/rox/override"
	"github.com/alextanhongpin/rox/property"
	"github.com/alextanhongpin/rox/rcontext"
	"github.com/alextanhongpin/rox/roxerrors"
	"github.com/alextanhongpin/rox/roxx"
	"github.com/alextanhongpin/rox/security"
	"github.com/alextanhongpin/rox/storage"
	"github.com/alextanhongpin/rox/telemetry"
	"github.com/alextanhongpin/rox/types/states"
)

// Client is one fully wired engine instance (spec §4.C10): the
// evaluation pipeline (model, roxx, property, override, flag
// repositories), the configuration pipeline (parser, fetcher, push
// notification reader), the analytics queue, and the lifecycle state
// machine that orders their startup and teardown.
type Client struct {
	opts Options

	apiKey    string
	lifecycle *states.StateMachine[StateCode]
	logCtx    context.Context

	models     *model.Repository
	evaluator  *roxx.Evaluator
	properties *property.Repository
	overrides  *override.Repository
	flags      *flag.Repository
	dynamic    *dynamicFlags

	parser  *config.Parser
	fetcher *config.Fetcher
	pusher  *notify.Client

	queue    *analytics.Queue
	reporter *analytics.Reporter

	telemetry *telemetry.MultiHandler
}

// Setup brings up a new Client against apiKey (spec §4.C10). It
// validates the key, wires every collaborator, performs one
// synchronous initial fetch, and starts the periodic fetcher and (if
// configured) push notification reader. The returned StateCode is
// Initialized on success, or one of the error terminals
// (EmptyApiKey/InvalidApiKey/GenericSetupFailure) on failure — the
// Client is unusable in the error case and should be discarded.
func Setup(ctx context.Context, apiKey string, opts ...Option) (*Client, StateCode, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, EmptyApiKey, roxerrors.ErrEmptyAPIKey
	}
	if strings.ContainsAny(apiKey, " \t\r\n") {
		return nil, InvalidApiKey, roxerrors.ErrInvalidAPIKey
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, GenericSetupFailure, err
	}

	c := &Client{
		opts:      o,
		apiKey:    apiKey,
		lifecycle: newLifecycle(),
	}
	if err := c.lifecycle.Execute("setup"); err != nil {
		return nil, GenericSetupFailure, err
	}

	c.logCtx = c.installTelemetry(ctx, o)

	c.evaluator = roxx.New()
	c.models = model.NewRepository(c.evaluator)

	c.queue = analytics.NewQueue(shipperOrDefault(o.AnalyticsShipper))
	c.queue.Start(c.logCtx)
	c.reporter = analytics.NewReporter(o.ImpressionHandler, c.queue)

	c.properties = property.NewRepository()
	c.properties.OnAdded(func(p property.Property) { c.reporter.TrackProperty(p.Name) })
	registerReservedProperties(c.properties, o, time.Now)

	var overridesEntry storage.Entry
	if o.Store != nil {
		overridesEntry = o.Store.Entry(storage.EntryOverrides)
	}
	c.overrides = override.New(overridesEntry)
	if overridesEntry != nil {
		if err := c.overrides.Load(ctx); err != nil {
			event.Log(c.logCtx, "failed to load persisted overrides", event.String("error", err.Error()))
		}
	}

	c.flags = flag.NewRepository(c.models, c.evaluator, c.properties, c.overrides,
		flag.WithBucketer(bucket.New()),
		flag.WithDynamicPropertiesRule(o.DynamicPropertiesRule),
		flag.WithImpressionHandler(c.reporter.Report),
		flag.WithDefaultFreeze(o.DefaultFreeze),
		flag.WithClock(time.Now),
	)
	c.dynamic = newDynamicFlags(c.flags)

	verifier, err := newVerifier(c.logCtx, o)
	if err != nil {
		return nil, GenericSetupFailure, err
	}
	c.parser = &config.Parser{Verifier: verifier, APIKey: apiKey}

	fetcherOpts := []config.Option{
		config.WithOnFetched(c.onFetched),
	}
	if o.Store != nil {
		fetcherOpts = append(fetcherOpts, config.WithStore(o.Store))
	}
	if o.RoxyURL != "" {
		fetcherOpts = append(fetcherOpts, config.WithRoxyURL(o.RoxyURL))
	}
	if o.FetchInterval > 0 {
		fetcherOpts = append(fetcherOpts, config.WithFetchInterval(o.FetchInterval))
	}
	c.fetcher = config.NewFetcher(apiKey, c.parser, c.models, fetcherOpts...)

	if o.NotificationURL != "" {
		c.pusher = notify.New(o.NotificationURL, nil)
		c.pusher.On("configuration-updated", func(notify.Event) {
			c.fetcher.Fetch(c.logCtx)
		})
		c.pusher.Start(c.logCtx)
	}

	res := c.fetcher.Bootstrap(ctx)
	c.fetcher.Start(c.logCtx)

	if err := c.lifecycle.Execute("initial-fetch-completed"); err != nil {
		return nil, GenericSetupFailure, err
	}
	if res.Status == config.ErrorFetchedFailed && res.Err != nil {
		event.Log(c.logCtx, "initial fetch failed, continuing with defaults", event.String("error", res.Err.Error()))
	}

	return c, Initialized, nil
}

// installTelemetry wires the slog sink into a MultiHandler and attaches
// it to ctx as the golang.org/x/exp/event exporter every subsequent
// event.Log call in this Client's lifetime reads from (spec §4.C10
// "initialize logger").
func (c *Client) installTelemetry(ctx context.Context, o Options) context.Context {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h, _ := telemetry.NewSlogHandler(logger, nil)
	c.telemetry = &telemetry.MultiHandler{Log: h}
	return event.WithExporter(ctx, event.NewExporter(c.telemetry, nil))
}

func (c *Client) onFetched(res config.Result) {
	if c.opts.ConfigurationFetchedHandler != nil {
		c.opts.ConfigurationFetchedHandler(res)
	}
}

func newVerifier(ctx context.Context, o Options) (*security.Verifier, error) {
	if o.DisableSignatureVerification {
		event.Log(ctx,"signature verification disabled, development use only")
		return security.NewDisabledVerifier(), nil
	}
	return security.NewVerifier(o.CertPEM)
}

func shipperOrDefault(s analytics.Shipper) analytics.Shipper {
	if s != nil {
		return s
	}
	return analytics.NewStdoutShipper()
}

// Shutdown tears the Client down in reverse dependency order (spec
// §4.C10): stop accepting new configuration, flush pending impressions,
// then release the evaluation pipeline. It is safe to call once; a
// second call returns the transition error from the lifecycle machine.
func (c *Client) Shutdown(ctx context.Context) error {
	if err := c.lifecycle.Execute("shutdown"); err != nil {
		return err
	}

	c.fetcher.Stop()
	if c.pusher != nil {
		c.pusher.Stop()
	}
	c.queue.Stop(ctx)
	if err := c.telemetry.Close(); err != nil {
		event.Log(c.logCtx, "telemetry shutdown error", event.String("error", err.Error()))
	}

	return c.lifecycle.Execute("teardown-complete")
}

// State reports the client's current lifecycle state.
func (c *Client) State() StateCode { return c.lifecycle.State() }

// Fetch triggers an immediate out-of-band configuration refetch (spec
// §4.C7).
func (c *Client) Fetch(ctx context.Context) {
	c.fetcher.Fetch(ctx)
}

// SetContext installs the global context merged under every per-call
// local context (spec §4.C2).
func (c *Client) SetContext(values map[string]dynamic.Value) {
	c.flags.SetContext(rcontext.New(values))
}

// SetCustomStringProperty registers a literal custom property.
func (c *Client) SetCustomStringProperty(name, value string) {
	c.properties.Add(property.LiteralString(name, value))
}

// SetCustomComputedStringProperty registers a computed custom property,
// re-evaluated on every read that references it.
func (c *Client) SetCustomComputedStringProperty(name string, fn func(ctx *rcontext.Context) string) {
	c.properties.Add(property.Computed(name, property.String, func(ctx *rcontext.Context) dynamic.Value {
		return dynamic.String(fn(ctx))
	}))
}

// SetOverride pins name to value until ClearOverride or process
// restart without persistence configured (spec §4.C6).
func (c *Client) SetOverride(ctx context.Context, name, value string) error {
	return c.overrides.Set(ctx, name, value)
}

// ClearOverride removes a single override.
func (c *Client) ClearOverride(ctx context.Context, name string) error {
	return c.overrides.Clear(ctx, name)
}

// AddFlag registers a bool flag and returns its handle (spec §4.C5).
func (c *Client) AddFlag(name string, defaultValue bool, opts ...FlagOption) (*BoolFlag, error) {
	f, err := c.flags.Register(name, flag.TypeBool, strconv.FormatBool(defaultValue), nil)
	if err != nil {
		return nil, err
	}
	applyFreeze(f, opts)
	return &BoolFlag{repo: c.flags, f: f}, nil
}

// AddInt registers an int flag and returns its handle.
func (c *Client) AddInt(name string, defaultValue int, options []int, opts ...FlagOption) (*IntFlag, error) {
	f, err := c.flags.Register(name, flag.TypeInt, strconv.Itoa(defaultValue), formatInts(options))
	if err != nil {
		return nil, err
	}
	applyFreeze(f, opts)
	return &IntFlag{repo: c.flags, f: f}, nil
}

// AddDouble registers a double flag and returns its handle.
func (c *Client) AddDouble(name string, defaultValue float64, options []float64, opts ...FlagOption) (*DoubleFlag, error) {
	f, err := c.flags.Register(name, flag.TypeDouble, strconv.FormatFloat(defaultValue, 'g', -1, 64), formatDoubles(options))
	if err != nil {
		return nil, err
	}
	applyFreeze(f, opts)
	return &DoubleFlag{repo: c.flags, f: f}, nil
}

// AddString registers a string flag and returns its handle.
func (c *Client) AddString(name string, defaultValue string, options []string, opts ...FlagOption) (*StringFlag, error) {
	f, err := c.flags.Register(name, flag.TypeString, defaultValue, options)
	if err != nil {
		return nil, err
	}
	applyFreeze(f, opts)
	return &StringFlag{repo: c.flags, f: f}, nil
}

func applyFreeze(f *flag.Flag, opts []FlagOption) {
	cfg := applyFlagOptions(opts)
	if cfg.hasFreeze {
		f.Freeze(cfg.freeze)
	}
}

func formatInts(values []int) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}

func formatDoubles(values []float64) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

// PeekCurrentValue reads a flag's value the way a normal read would,
// without emitting an impression (spec §4.C5 "peek" variants).
func (c *Client) PeekCurrentValue(f *BoolFlag, ctx *rcontext.Context) bool {
	value, _ := c.flags.PeekCurrentValue(f.f, ctx)
	return flag.ParseBool(value, flag.ParseBool(f.f.DefaultValue(), false))
}

// PeekOriginalValue reads a flag's value as if no override were set,
// without emitting an impression.
func (c *Client) PeekOriginalValue(f *BoolFlag, ctx *rcontext.Context) bool {
	value, _ := c.flags.PeekOriginalValue(f.f, ctx)
	return flag.ParseBool(value, flag.ParseBool(f.f.DefaultValue(), false))
}
