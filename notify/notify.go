// Package notify implements the push notification client (spec
// §4.C8): a long-lived Server-Sent Events reader that triggers an
// unscheduled configuration refetch.
//
// No repo in the reference corpus ships a complete SSE client whose
// exact API surface can be confirmed from source (the one candidate,
// launchdarkly/eventsource, appears only as a go.mod manifest entry
// with no accompanying source to ground an import on), and the spec
// itself pins the wire-level dispatch algorithm field-by-field. This
// package therefore parses the stream directly against net/http and
// bufio.Scanner rather than risk an unverified third-party API.
package notify

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/event"
)

const defaultRetry = 3 * time.Second

// Event is one dispatched Server-Sent Event.
type Event struct {
	Name string
	Data string
	ID   string
}

// Handler is invoked for every dispatched event whose Name is
// subscribed to.
type Handler func(Event)

// Client is a cancellable, auto-reconnecting SSE reader.
type Client struct {
	url        string
	httpClient *http.Client
	handlers   map[string]Handler

	mu          sync.Mutex
	lastEventID string
	retry       time.Duration
	cancel      context.CancelFunc

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New returns a Client that reads url and dispatches to the handlers
// registered via On.
func New(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:        url,
		httpClient: httpClient,
		handlers:   make(map[string]Handler),
		retry:      defaultRetry,
		cancel:     func() {},
		stop:       make(chan struct{}),
	}
}

// On subscribes handler to events named eventName (spec §4.C8
// "configuration-updated").
func (c *Client) On(eventName string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventName] = handler
}

// Start runs the read/reconnect loop in a background goroutine. Call
// Stop to terminate it.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(ctx)
	}()
}

// Stop requests the loop to terminate and waits for it to exit. A
// pending long-poll blocks on resp.Body.Read, which the stop/default
// select between scanner.Scan calls never observes, so Stop also
// cancels the request context to unblock that read directly (spec §5
// "a pending long-poll must terminate within one reconnect interval").
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		cancel()
	})
	c.wg.Wait()
}

func (c *Client) loop(ctx context.Context) {
	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := c.connectAndRead(ctx); err != nil {
			event.Log(ctx, "notification stream disconnected", event.String("error", err.Error()))
		}

		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		case <-time.After(c.currentRetry()):
		}
	}
}

func (c *Client) currentRetry() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retry
}

func (c *Client) connectAndRead(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if id := c.currentLastEventID(); id != "" {
		req.Header.Set("Last-Event-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		// Cancel the loop's context so it logs this error and exits
		// instead of reconnecting.
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("notify: unexpected content-type %q, stopping", ct)
	}

	return c.dispatchLoop(resp)
}

func (c *Client) currentLastEventID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

// dispatchLoop parses the stream per the SSE spec: `event:`/`data:`/
// `id:`/`retry:` fields accumulate into a pending event, a `:`-prefixed
// line is a comment, and a blank line dispatches the accumulated event
// and resets the buffers (spec §4.C8).
func (c *Client) dispatchLoop(resp *http.Response) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var pending Event
	var dataLines []string

	dispatch := func() {
		if pending.Name == "" && len(dataLines) == 0 {
			return
		}
		pending.Data = strings.Join(dataLines, "\n")
		c.dispatch(pending)
		pending = Event{}
		dataLines = nil
	}

	for scanner.Scan() {
		select {
		case <-c.stop:
			return nil
		default:
		}

		line := scanner.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
			// comment, ignored
		case strings.HasPrefix(line, "event:"):
			pending.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "id:"):
			id := strings.TrimSpace(strings.TrimPrefix(line, "id:"))
			pending.ID = id
			c.mu.Lock()
			c.lastEventID = id
			c.mu.Unlock()
		case strings.HasPrefix(line, "retry:"):
			if ms, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "retry:"))); err == nil && ms > 0 {
				c.mu.Lock()
				c.retry = time.Duration(ms) * time.Millisecond
				c.mu.Unlock()
			}
		}
	}
	return scanner.Err()
}

func (c *Client) dispatch(ev Event) {
	c.mu.Lock()
	h, ok := c.handlers[ev.Name]
	c.mu.Unlock()
	if ok && h != nil {
		h(ev)
	}
}
