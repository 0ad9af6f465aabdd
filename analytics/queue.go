package analytics

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/event"
)

const (
	defaultCapacity      = 5000
	defaultBatchSize     = 200
	defaultFlushInterval = 5 * time.Second
)

// QueueOption configures a Queue at construction.
type QueueOption func(*Queue)

// WithCapacity bounds the number of buffered events; the default is
// 5000. A non-positive value is ignored.
func WithCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithBatchSize sets how many events are shipped per Shipper.Ship call.
func WithBatchSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.batchSize = n
		}
	}
}

// WithFlushInterval sets how often a partially-filled batch is flushed
// even if it has not reached batchSize.
func WithFlushInterval(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.flushInterval = d
		}
	}
}

// Queue is the bounded MPSC buffer described by spec §4.C12/§5: many
// evaluating goroutines enqueue, a single background goroutine drains
// and ships. It holds its buffer as a plain slice behind a mutex rather
// than a channel because a channel has no way to evict its oldest
// element on overflow; Enqueue never blocks the caller.
type Queue struct {
	shipper       Shipper
	capacity      int
	batchSize     int
	flushInterval time.Duration

	mu     sync.Mutex
	buf    []Event
	notify chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewQueue returns a Queue shipping drained batches to shipper. shipper
// must not be nil.
func NewQueue(shipper Shipper, opts ...QueueOption) *Queue {
	q := &Queue{
		shipper:       shipper,
		capacity:      defaultCapacity,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		notify:        make(chan struct{}, 1),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends ev, dropping the oldest buffered event and logging a
// warning when the queue is at capacity (spec §4.C12 "queue is bounded;
// on overflow the oldest event is dropped and a warning is logged").
// Enqueue never blocks.
func (q *Queue) Enqueue(ev Event) {
	var dropped Event
	var didDrop bool

	q.mu.Lock()
	if len(q.buf) >= q.capacity {
		dropped = q.buf[0]
		q.buf = q.buf[1:]
		didDrop = true
	}
	q.buf = append(q.buf, ev)
	q.mu.Unlock()

	if didDrop {
		event.Log(context.Background(), "analytics queue overflow, dropping oldest event",
			event.String("error", "queue at capacity"),
			event.String("flag", dropped.Flag))
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil
	}
	n := len(q.buf)
	if n > q.batchSize {
		n = q.batchSize
	}
	batch := make([]Event, n)
	copy(batch, q.buf[:n])
	q.buf = q.buf[n:]
	return batch
}

func (q *Queue) drainAll() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.buf
	q.buf = nil
	return batch
}

func (q *Queue) ship(ctx context.Context, batch []Event) {
	if len(batch) == 0 {
		return
	}
	if err := q.shipper.Ship(ctx, batch); err != nil {
		event.Log(ctx, "analytics shipper failed", event.String("error", err.Error()), event.Int64("events", int64(len(batch))))
	}
}

// Start runs the drain/ship loop in a background goroutine until Stop
// is called.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.loop(ctx)
	}()
}

func (q *Queue) loop(ctx context.Context) {
	ticker := time.NewTicker(q.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			return
		case <-ctx.Done():
			return
		case <-q.notify:
			for {
				batch := q.drain()
				if batch == nil {
					break
				}
				q.ship(ctx, batch)
			}
		case <-ticker.C:
			q.ship(ctx, q.drain())
		}
	}
}

// Stop terminates the background loop and flushes every remaining
// buffered event synchronously before returning (spec §4.C10 "Shutdown
// ... flushes the impression/analytics queue").
func (q *Queue) Stop(ctx context.Context) {
	q.stopOnce.Do(func() { close(q.stop) })
	q.wg.Wait()
	q.ship(ctx, q.drainAll())
}
