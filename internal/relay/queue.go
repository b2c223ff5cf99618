package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// QueueConfig holds delivery queue settings.
type QueueConfig struct {
	// URL is the collector endpoint payloads are POSTed to.
	URL string

	// Token returns the current API bearer token. Looked up per attempt so
	// configuration changes apply without restart.
	Token func() string

	// SendTimeout bounds a single send attempt. Default 10s.
	SendTimeout time.Duration

	// InitialBackoff is the delay before the first retry. Default 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential retry delay. Default 30s.
	MaxBackoff time.Duration

	// Client overrides the HTTP client, used by tests.
	Client *http.Client
}

// DeliveryQueue is an unbounded FIFO of serialized payloads with a single
// background sender. A payload is retried in place with capped exponential
// backoff and jitter until the collector accepts it or the queue shuts down,
// so accepted payloads are never silently dropped and sends never overlap.
//
// The original relay requeued failed payloads with no delay, which turns a
// collector outage into a busy loop; the backoff here replaces that.
type DeliveryQueue struct {
	cfg    QueueConfig
	client *http.Client

	mu     sync.Mutex
	items  [][]byte
	closed bool

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDeliveryQueue creates the queue and starts its sender goroutine.
func NewDeliveryQueue(cfg QueueConfig) *DeliveryQueue {
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.SendTimeout}
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &DeliveryQueue{
		cfg:    cfg,
		client: client,
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go q.process(ctx)
	return q
}

// Enqueue appends a payload to the tail. Returns false once the queue has
// been closed; callers must not treat that payload as sent.
func (q *DeliveryQueue) Enqueue(payload []byte) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, payload)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of payloads waiting for delivery.
func (q *DeliveryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// process drains the queue sequentially, blocking while it is empty.
func (q *DeliveryQueue) process(ctx context.Context) {
	defer close(q.done)

	for {
		payload, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		if err := q.deliver(ctx, payload); err != nil {
			// Only shutdown ends the retry loop.
			log.Printf("[DeliveryQueue] Abandoning payload on shutdown: %v", err)
			return
		}
	}
}

func (q *DeliveryQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	payload := q.items[0]
	q.items = q.items[1:]
	return payload, true
}

// deliver posts one payload, retrying with backoff until success or ctx is
// cancelled.
func (q *DeliveryQueue) deliver(ctx context.Context, payload []byte) error {
	backoff := retry.WithCappedDuration(q.cfg.MaxBackoff,
		retry.WithJitter(q.cfg.InitialBackoff/4, retry.NewExponential(q.cfg.InitialBackoff)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := q.attempt(ctx, payload); err != nil {
			log.Printf("[DeliveryQueue] Send failed, will retry: %v", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// attempt performs a single POST to the collector.
func (q *DeliveryQueue) attempt(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.SendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if token := q.cfg.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("collector responded with %d: %s", resp.StatusCode, body)
	}

	log.Printf("[DeliveryQueue] Collector accepted payload: %d", resp.StatusCode)
	return nil
}

// Close stops accepting new payloads, lets the in-flight attempt finish or
// fail, and terminates the sender. Payloads still queued at shutdown are
// dropped.
func (q *DeliveryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	select {
	case <-q.done:
	case <-time.After(q.cfg.SendTimeout):
		log.Printf("[DeliveryQueue] Sender did not stop within %v", q.cfg.SendTimeout)
	}
}
