package config

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/exp/event"
	"golang.org/x/sync/singleflight"

	"github.com/alextanhongpin/rox/model"
	"github.com/alextanhongpin/rox/roxerrors"
	"github.com/alextanhongpin/rox/storage"
)

// MinFetchInterval is the floor spec §4.C7 places on the periodic fetch
// interval: "every fetch_interval seconds, floor 30".
const MinFetchInterval = 30 * time.Second

const defaultTimeout = 30 * time.Second

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithNetworkURL(url string) Option        { return func(f *Fetcher) { f.networkURL = url } }
func WithRoxyURL(url string) Option           { return func(f *Fetcher) { f.roxyURL = url } }
func WithEmbedded(data []byte) Option         { return func(f *Fetcher) { f.embedded = data } }
func WithStore(store storage.Store) Option    { return func(f *Fetcher) { f.store = store } }
func WithHTTPClient(c *http.Client) Option    { return func(f *Fetcher) { f.httpClient = c } }
func WithTimeout(d time.Duration) Option      { return func(f *Fetcher) { f.timeout = d } }

// WithFetchInterval sets the periodic fetch cadence, floored at
// MinFetchInterval.
func WithFetchInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		if d < MinFetchInterval {
			d = MinFetchInterval
		}
		f.fetchInterval = d
	}
}

// WithOnFetched registers the configuration-fetched handler (spec
// §4.C10 setup step "register internal state listeners").
func WithOnFetched(fn func(Result)) Option {
	return func(f *Fetcher) { f.onFetched = fn }
}

// Fetcher resolves the current configuration from the highest-priority
// available source, applies it to models, and keeps it fresh via a
// periodic loop and an on-demand Fetch trigger (spec §4.C7).
type Fetcher struct {
	apiKey     string
	networkURL string
	roxyURL    string
	embedded   []byte
	store      storage.Store
	httpClient *http.Client
	timeout    time.Duration

	parser *Parser
	models *model.Repository

	fetchInterval time.Duration
	onFetched     func(Result)

	breaker *circuitBreaker
	group   singleflight.Group

	mu             sync.Mutex
	lastSignedDate int64
	lastHash       [md5.Size]byte
	haveApplied    bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewFetcher builds a Fetcher for apiKey, applying successful loads to
// models through parser.
func NewFetcher(apiKey string, parser *Parser, models *model.Repository, opts ...Option) *Fetcher {
	f := &Fetcher{
		apiKey:        apiKey,
		parser:        parser,
		models:        models,
		httpClient:    http.DefaultClient,
		timeout:       defaultTimeout,
		fetchInterval: MinFetchInterval,
		breaker:       newCircuitBreaker(5, 30*time.Second),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) configEntry() storage.Entry {
	if f.store == nil {
		return nil
	}
	return f.store.Entry(storage.ConfigEntryName(f.apiKey))
}

// Bootstrap performs the synchronous initial fetch described in spec
// §4.C10 "perform one synchronous initial fetch", trying sources in
// precedence order and applying the first one that parses.
func (f *Fetcher) Bootstrap(ctx context.Context) Result {
	if f.roxyURL != "" {
		return f.applyFrom(ctx, f.fetchRoxy, AppliedFromNetwork)
	}

	if res := f.applyFrom(ctx, f.fetchNetwork, AppliedFromNetwork); res.Status != ErrorFetchedFailed {
		return res
	}
	if res := f.applyFrom(ctx, f.fetchPersisted, AppliedFromLocalStorage); res.Status != ErrorFetchedFailed {
		return res
	}
	if res := f.applyFrom(ctx, f.fetchEmbedded, AppliedFromEmbedded); res.Status != ErrorFetchedFailed {
		return res
	}

	res := Result{Status: ErrorFetchedFailed, Err: roxerrors.ErrUnknownError}
	f.report(ctx, res)
	return res
}

// Fetch triggers an immediate out-of-band fetch (spec §4.C7 "fetch()
// triggers an immediate fetch"), coalescing concurrent calls into one
// network round-trip via singleflight.
func (f *Fetcher) Fetch(ctx context.Context) Result {
	v, err, _ := f.group.Do(f.apiKey, func() (any, error) {
		fetched := false
		fetch := func(ctx context.Context) ([]byte, error) {
			b, err := f.fetchNetwork(ctx)
			fetched = err == nil
			return b, err
		}
		res := f.applyFrom(ctx, fetch, AppliedFromNetwork)
		if !fetched {
			f.report(ctx, res)
		}
		return res, nil
	})
	if err != nil {
		return Result{Status: ErrorFetchedFailed, Err: err}
	}
	return v.(Result)
}

// Start launches the periodic fetch loop; call Stop to terminate it.
func (f *Fetcher) Start(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.fetchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-f.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.Fetch(ctx)
			}
		}
	}()
}

// Stop terminates the periodic loop and waits for it to exit.
func (f *Fetcher) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
	f.wg.Wait()
}

type source func(ctx context.Context) ([]byte, error)

func (f *Fetcher) applyFrom(ctx context.Context, fetch source, onSuccess Status) Result {
	raw, err := fetch(ctx)
	if err != nil {
		return Result{Status: ErrorFetchedFailed, Err: err}
	}

	parsed, err := f.parser.Parse(raw)
	if err != nil {
		res := Result{Status: ErrorFetchedFailed, Err: err}
		f.report(ctx, res)
		return res
	}

	f.mu.Lock()
	if f.haveApplied && parsed.SignedDate < f.lastSignedDate {
		f.mu.Unlock()
		// Replay guard (spec §4.C7): older payloads are silently
		// dropped, not an error.
		return Result{Status: onSuccess, HasChanges: false}
	}
	hasChanges := !f.haveApplied || parsed.ContentHash != f.lastHash
	f.lastSignedDate = parsed.SignedDate
	f.lastHash = parsed.ContentHash
	f.haveApplied = true
	f.mu.Unlock()

	f.models.Apply(parsed.TargetGroups, parsed.Experiments)

	if entry := f.configEntry(); entry != nil {
		_ = entry.Write(ctx, string(raw))
	}

	res := Result{Status: onSuccess, HasChanges: hasChanges}
	f.report(ctx, res)
	return res
}

func (f *Fetcher) report(ctx context.Context, res Result) {
	if f.onFetched != nil {
		f.onFetched(res)
	}
	labels := []event.Label{
		event.String("status", res.Status.String()),
		event.Bool("has_changes", res.HasChanges),
	}
	if res.Err != nil {
		labels = append(labels, event.String("error", res.Err.Error()))
	}
	event.Log(ctx, "configuration fetch", labels...)
}

func (f *Fetcher) fetchNetwork(ctx context.Context) ([]byte, error) {
	if f.networkURL == "" {
		return nil, fmt.Errorf("%w: no network url configured", roxerrors.ErrNetworkError)
	}
	if !f.breaker.Allow() {
		return nil, fmt.Errorf("%w: circuit open", roxerrors.ErrNetworkError)
	}

	b, err := f.httpGet(ctx, f.networkURL)
	if err != nil {
		f.breaker.RecordFailure()
		return nil, fmt.Errorf("%w: %v", roxerrors.ErrNetworkError, err)
	}
	f.breaker.RecordSuccess()
	return b, nil
}

func (f *Fetcher) fetchRoxy(ctx context.Context) ([]byte, error) {
	if f.roxyURL == "" {
		return nil, fmt.Errorf("%w: no roxy url configured", roxerrors.ErrNetworkError)
	}
	b, err := f.httpGet(ctx, f.roxyURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", roxerrors.ErrNetworkError, err)
	}
	return b, nil
}

func (f *Fetcher) fetchPersisted(ctx context.Context) ([]byte, error) {
	entry := f.configEntry()
	if entry == nil {
		return nil, errors.New("config: no storage configured")
	}
	v, ok, err := entry.Read(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("config: no persisted configuration")
	}
	return []byte(v), nil
}

func (f *Fetcher) fetchEmbedded(ctx context.Context) ([]byte, error) {
	if len(f.embedded) == 0 {
		return nil, errors.New("config: no embedded configuration")
	}
	return f.embedded, nil
}

func (f *Fetcher) httpGet(ctx context.Context, url string) ([]byte, error) {
	timeout := f.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}
