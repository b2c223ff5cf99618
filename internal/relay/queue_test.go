package relay

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// collectorStub is a test double for the remote collector.
type collectorStub struct {
	mu        sync.Mutex
	failures  int // number of initial requests to refuse
	attempts  int
	delivered [][]byte
	auth      []string
}

func (c *collectorStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.attempts++
		c.auth = append(c.auth, r.Header.Get("Authorization"))
		if c.attempts <= c.failures {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		c.delivered = append(c.delivered, body)
		w.WriteHeader(http.StatusOK)
	}
}

func (c *collectorStub) stats() (attempts int, delivered [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts, append([][]byte(nil), c.delivered...)
}

func newTestQueue(url string, token string) *DeliveryQueue {
	return NewDeliveryQueue(QueueConfig{
		URL:            url,
		Token:          func() string { return token },
		SendTimeout:    2 * time.Second,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met within timeout")
}

func TestDeliveryQueue_RetriesUntilSuccess(t *testing.T) {
	stub := &collectorStub{failures: 2}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	q := newTestQueue(srv.URL, "secret")
	defer q.Close()

	payload := []byte(`{"reason":"test"}`)
	if !q.Enqueue(payload) {
		t.Fatal("Enqueue refused on an open queue")
	}

	waitFor(t, 3*time.Second, func() bool {
		_, delivered := stub.stats()
		return len(delivered) == 1
	})

	attempts, delivered := stub.stats()
	if attempts != 3 {
		t.Errorf("Expected 3 attempts (2 failures + 1 success), got %d", attempts)
	}
	if len(delivered) != 1 || string(delivered[0]) != string(payload) {
		t.Errorf("Expected exactly one net delivery of the payload, got %d", len(delivered))
	}
}

func TestDeliveryQueue_PreservesFIFOOrder(t *testing.T) {
	stub := &collectorStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	q := newTestQueue(srv.URL, "")
	defer q.Close()

	q.Enqueue([]byte("first"))
	q.Enqueue([]byte("second"))
	q.Enqueue([]byte("third"))

	waitFor(t, 3*time.Second, func() bool {
		_, delivered := stub.stats()
		return len(delivered) == 3
	})

	_, delivered := stub.stats()
	for i, want := range []string{"first", "second", "third"} {
		if string(delivered[i]) != want {
			t.Errorf("Delivery %d: expected %q, got %q", i, want, delivered[i])
		}
	}
}

func TestDeliveryQueue_BearerTokenHeader(t *testing.T) {
	stub := &collectorStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	q := newTestQueue(srv.URL, "hunter2")
	defer q.Close()

	q.Enqueue([]byte(`{}`))
	waitFor(t, 2*time.Second, func() bool {
		_, delivered := stub.stats()
		return len(delivered) == 1
	})

	stub.mu.Lock()
	auth := stub.auth[0]
	stub.mu.Unlock()
	if auth != "Bearer hunter2" {
		t.Errorf("Expected bearer token header, got %q", auth)
	}
}

func TestDeliveryQueue_CloseRejectsNewWork(t *testing.T) {
	stub := &collectorStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	q := newTestQueue(srv.URL, "")
	q.Close()

	if q.Enqueue([]byte(`{}`)) {
		t.Error("Enqueue must refuse after Close")
	}
}

func TestDeliveryQueue_CloseStopsRetryLoop(t *testing.T) {
	// A collector that always fails keeps one payload in retry; Close must
	// still return promptly.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	q := newTestQueue(srv.URL, "")
	q.Enqueue([]byte(`{}`))
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		q.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return while a payload was retrying")
	}
}
