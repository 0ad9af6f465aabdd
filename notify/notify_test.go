package notify_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alextanhongpin/rox/notify"
)

func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, body)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}))
}

func TestClientDispatchesSubscribedEvent(t *testing.T) {
	srv := sseServer(t, "event: configuration-updated\nid: 1\ndata: {\"changed\":true}\n\n")
	defer srv.Close()

	c := notify.New(srv.URL, srv.Client())

	var mu sync.Mutex
	var got notify.Event
	done := make(chan struct{})
	c.On("configuration-updated", func(ev notify.Event) {
		mu.Lock()
		got = ev
		mu.Unlock()
		close(done)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "configuration-updated", got.Name)
	require.Equal(t, "1", got.ID)
	require.Equal(t, `{"changed":true}`, got.Data)
}

func TestClientIgnoresUnsubscribedEvent(t *testing.T) {
	srv := sseServer(t, "event: other\ndata: noop\n\n")
	defer srv.Close()

	c := notify.New(srv.URL, srv.Client())
	called := false
	c.On("configuration-updated", func(ev notify.Event) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()
	c.Stop()

	require.False(t, called)
}

func TestClientStopTerminatesPromptly(t *testing.T) {
	srv := sseServer(t, "")
	defer srv.Close()

	c := notify.New(srv.URL, srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	start := time.Now()
	c.Stop()
	require.Less(t, time.Since(start), 2*time.Second)
}

// idleSSEServer accepts the connection, declares an event-stream, and
// then blocks until the request context is cancelled, so the reader
// sees an open connection with no data rather than a quick EOF.
func idleSSEServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
}

func TestClientStopTerminatesPromptlyOnIdleConnection(t *testing.T) {
	srv := idleSSEServer(t)
	defer srv.Close()

	c := notify.New(srv.URL, srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	// Let connectAndRead actually establish the connection and block
	// inside scanner.Scan before we ask it to stop.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	c.Stop()
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestClientRejectsNonEventStreamContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("not sse"))
	}))
	defer srv.Close()

	c := notify.New(srv.URL, srv.Client())
	called := false
	c.On("configuration-updated", func(ev notify.Event) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()
	c.Stop()

	require.False(t, called)
}
