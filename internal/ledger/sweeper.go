package ledger

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweeper periodically drops expired buy-window records. Expired records are
// already invisible to reads, so sweeping is purely housekeeping for the map
// and the store.
type Sweeper struct {
	ledger   *Ledger
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSweeper creates a sweeper for the ledger. A zero interval defaults to
// 30 minutes.
func NewSweeper(l *Ledger, interval time.Duration) *Sweeper {
	if interval == 0 {
		interval = 30 * time.Minute
	}
	return &Sweeper{
		ledger:   l,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start() {
	s.ticker = time.NewTicker(s.interval)
	log.Printf("[Sweeper] Started - interval: %v", s.interval)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if removed := s.ledger.CleanupExpired(ctx, time.Now()); removed > 0 {
					log.Printf("[Sweeper] Removed %d expired buy-window records", removed)
				}
				cancel()
			case <-s.stopCh:
				log.Printf("[Sweeper] Stopped")
				return
			}
		}
	}()
}

// Stop ends the sweep loop.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}
