package prices

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrNotLoaded is returned for mover queries before the first successful
// dataset refresh.
var ErrNotLoaded = errors.New("price data not loaded yet")

// dataset is one complete fetch of baseline, historical snapshots, and item
// metadata.
type dataset struct {
	baseline map[int]int
	day      map[int]int
	week     map[int]int
	month    map[int]int
	year     map[int]int
	meta     map[int]ItemMeta
}

// Refresher keeps a mover dataset warm: one fetch on start, then periodic
// refreshes. A failed refresh keeps the previous dataset.
type Refresher struct {
	client   *Client
	interval time.Duration

	mu   sync.RWMutex
	data *dataset

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRefresher creates a refresher. A zero interval defaults to 1 hour.
func NewRefresher(client *Client, interval time.Duration) *Refresher {
	if interval == 0 {
		interval = time.Hour
	}
	return &Refresher{
		client:   client,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start fetches the initial dataset in the background and begins the refresh
// loop.
func (r *Refresher) Start() {
	r.ticker = time.NewTicker(r.interval)
	log.Printf("[PriceRefresher] Started - interval: %v", r.interval)

	go func() {
		r.refresh()
		for {
			select {
			case <-r.ticker.C:
				r.refresh()
			case <-r.stopCh:
				log.Printf("[PriceRefresher] Stopped")
				return
			}
		}
	}()
}

// refresh fetches a full dataset. Each series is independent: a failed
// fetch aborts only that series and the rest of the dataset still loads.
func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	baseline, err := r.client.FetchLatest(ctx)
	if err != nil {
		log.Printf("[PriceRefresher] Failed to fetch latest prices: %v", err)
		return
	}

	meta, err := r.client.FetchItemMeta(ctx)
	if err != nil {
		log.Printf("[PriceRefresher] Failed to fetch item metadata: %v", err)
		return
	}

	now := time.Now()
	d := &dataset{
		baseline: baseline,
		meta:     meta,
		day:      r.fetchWindow(ctx, "1h", now, 24*time.Hour, time.Hour),
		week:     r.fetchWindow(ctx, "1h", now, 7*24*time.Hour, time.Hour),
		month:    r.fetchWindow(ctx, "24h", now, 30*24*time.Hour, 24*time.Hour),
		year:     r.fetchWindow(ctx, "24h", now, 365*24*time.Hour, 24*time.Hour),
	}

	r.mu.Lock()
	r.data = d
	r.mu.Unlock()
	log.Printf("[PriceRefresher] Dataset refreshed: %d items, %d with metadata", len(baseline), len(meta))
}

func (r *Refresher) fetchWindow(ctx context.Context, bucket string, now time.Time, offset, step time.Duration) map[int]int {
	snapshot, err := r.client.FetchAveraged(ctx, bucket, WindowTimestamp(now, offset, step))
	if err != nil {
		log.Printf("[PriceRefresher] Failed to fetch %s snapshot (-%v): %v", bucket, offset, err)
		return map[int]int{}
	}
	return snapshot
}

// Movers answers a mover query against the current dataset.
func (r *Refresher) Movers(timeRange string, filter MoverFilter) ([]Mover, error) {
	r.mu.RLock()
	d := r.data
	r.mu.RUnlock()

	if d == nil {
		return nil, ErrNotLoaded
	}

	var snapshot map[int]int
	switch timeRange {
	case "week":
		snapshot = d.week
	case "month":
		snapshot = d.month
	case "year":
		snapshot = d.year
	default:
		snapshot = d.day
	}

	return ComputeMovers(d.baseline, snapshot, d.meta, filter), nil
}

// Stop ends the refresh loop.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		if r.ticker != nil {
			r.ticker.Stop()
		}
		close(r.stopCh)
	})
}
