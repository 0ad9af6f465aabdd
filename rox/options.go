package rox

import (
	"time"

	validator "github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"github.com/alextanhongpin/rox/analytics"
	"github.com/alextanhongpin/rox/config"
	"github.com/alextanhongpin/rox/dynamic"
	"github.com/alextanhongpin/rox/flag"
	"github.com/alextanhongpin/rox/freeze"
	"github.com/alextanhongpin/rox/rcontext"
	"github.com/alextanhongpin/rox/storage"
)

// ImpressionHandler observes every non-override, non-peek evaluation
// (spec §4.C12 step 1).
type ImpressionHandler = flag.ImpressionFunc

// ConfigurationFetchedHandler observes the outcome of every fetch (spec
// §4.C7/§4.C10 "register internal state listeners").
type ConfigurationFetchedHandler = func(config.Result)

// DynamicPropertiesRule is the fallback resolver consulted by the
// "property" operator once a name is neither a custom property nor
// present in the context (spec §4.C2/§4.C3).
type DynamicPropertiesRule = func(name string, ctx *rcontext.Context) dynamic.Value

var validate = validator.New()

// Options carries every setting spec §6 recognizes, plus the ambient
// stack's own additions (Logger, AnalyticsShipper, Store).
type Options struct {
	DevModeKey                    string
	Version                       string        `validate:"omitempty"`
	FetchInterval                 time.Duration `validate:"omitempty,min=0"`
	RoxyURL                       string        `validate:"omitempty,url"`
	NotificationURL               string        `validate:"omitempty,url"`
	DefaultFreeze                 freeze.Scope
	DisableSignatureVerification  bool
	ImpressionHandler             ImpressionHandler
	ConfigurationFetchedHandler   ConfigurationFetchedHandler
	DynamicPropertiesRule         DynamicPropertiesRule

	// Store is the persistence collaborator holding the last accepted
	// configuration payload and overrides (spec §6 storage_config);
	// analytics events are kept in memory only and never written to it.
	// A nil Store disables persistence: overrides and the last fetched
	// configuration do not survive a restart.
	Store storage.Store

	// CertPEM overrides the X.509 certificate configuration payload
	// signatures are checked against. Empty falls back to
	// security.DefaultCertificatePEM, the vendor's trust anchor; set
	// this only to pin a different certificate (e.g. a private relay's
	// own signing key). DisableSignatureVerification bypasses the check
	// entirely regardless of this field.
	CertPEM []byte

	// Logger renders Log-kind telemetry events; a nil Logger falls back
	// to slog.Default().
	Logger *slog.Logger

	// AnalyticsShipper ships impression events produced by the analytics
	// queue; a nil Shipper defaults to analytics.NewStdoutShipper().
	AnalyticsShipper analytics.Shipper
}

// Option configures Options at Setup.
type Option func(*Options)

func WithDevModeKey(key string) Option   { return func(o *Options) { o.DevModeKey = key } }
func WithVersion(version string) Option  { return func(o *Options) { o.Version = version } }
func WithRoxyURL(url string) Option      { return func(o *Options) { o.RoxyURL = url } }
func WithNotificationURL(url string) Option {
	return func(o *Options) { o.NotificationURL = url }
}
func WithDefaultFreeze(scope freeze.Scope) Option {
	return func(o *Options) { o.DefaultFreeze = scope }
}
func WithDisableSignatureVerification() Option {
	return func(o *Options) { o.DisableSignatureVerification = true }
}
func WithImpressionHandler(fn ImpressionHandler) Option {
	return func(o *Options) { o.ImpressionHandler = fn }
}
func WithConfigurationFetchedHandler(fn ConfigurationFetchedHandler) Option {
	return func(o *Options) { o.ConfigurationFetchedHandler = fn }
}
func WithDynamicPropertiesRule(fn DynamicPropertiesRule) Option {
	return func(o *Options) { o.DynamicPropertiesRule = fn }
}
func WithStore(store storage.Store) Option { return func(o *Options) { o.Store = store } }
func WithCertPEM(pem []byte) Option         { return func(o *Options) { o.CertPEM = pem } }
func WithLogger(logger *slog.Logger) Option { return func(o *Options) { o.Logger = logger } }
func WithAnalyticsShipper(s analytics.Shipper) Option {
	return func(o *Options) { o.AnalyticsShipper = s }
}

// WithFetchInterval sets the periodic fetch cadence; config.Fetcher
// floors it at config.MinFetchInterval.
func WithFetchInterval(d time.Duration) Option {
	return func(o *Options) { o.FetchInterval = d }
}

func newOptions(opts []Option) (Options, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := validate.Struct(&o); err != nil {
		return o, err
	}
	return o, nil
}
