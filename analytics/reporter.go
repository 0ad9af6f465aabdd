package analytics

import (
	"sync"
	"time"

	"github.com/alextanhongpin/rox/flag"
	"github.com/alextanhongpin/rox/rcontext"
)

// DistinctIDProperty is the reserved context key an analytics event's
// distinct_id is read from (spec §3 "rox.distinct_id").
const DistinctIDProperty = "rox.distinct_id"

// Reporter implements spec §4.C12's two-step impression reporter: a
// synchronous call into the host's handler, followed by enqueueing an
// analytics event. It is installed as a flag.ImpressionFunc.
type Reporter struct {
	Handler flag.ImpressionFunc
	Queue   *Queue
	Now     func() time.Time

	mu              sync.Mutex
	knownProperties map[string]struct{}
}

// NewReporter builds a Reporter. handler may be nil, meaning the host
// did not register one. queue may be nil, meaning analytics shipping is
// disabled.
func NewReporter(handler flag.ImpressionFunc, queue *Queue) *Reporter {
	return &Reporter{
		Handler:         handler,
		Queue:           queue,
		Now:             time.Now,
		knownProperties: make(map[string]struct{}),
	}
}

// TrackProperty records name as a custom property the host has
// registered. It is meant to be wired as property.Repository's
// "added" listener, so the impression/analytics subsystem learns which
// properties exist (spec §4.C3) without polling the repository.
func (r *Reporter) TrackProperty(name string) {
	r.mu.Lock()
	r.knownProperties[name] = struct{}{}
	r.mu.Unlock()
}

// KnownProperties returns every property name TrackProperty has seen.
func (r *Reporter) KnownProperties() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.knownProperties))
	for name := range r.knownProperties {
		out = append(out, name)
	}
	return out
}

// Report satisfies flag.ImpressionFunc.
func (r *Reporter) Report(rv flag.ReportingValue, ctx *rcontext.Context) {
	if r.Handler != nil {
		r.Handler(rv, ctx)
	}
	if r.Queue == nil {
		return
	}

	var distinctID string
	if v, ok := ctx.Get(DistinctIDProperty); ok {
		distinctID = v.String()
	}

	now := r.Now
	if now == nil {
		now = time.Now
	}
	r.Queue.Enqueue(NewEvent(rv.Name, rv.Value, distinctID, rv.ExperimentID, now()))
}
