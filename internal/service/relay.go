package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ge-offer-relay/internal/ledger"
	"ge-offer-relay/internal/model"
	"ge-offer-relay/internal/relay"
	"ge-offer-relay/internal/tracker"
)

// RelayOptions holds the tunables of the relay pipeline.
type RelayOptions struct {
	// Debounce is the coalescer quiet interval. Default 200ms.
	Debounce time.Duration

	// LoginGrace drops offer events this close after login; the upstream
	// client replays stale slot state right after logging in. Default 3s.
	LoginGrace time.Duration

	// Token returns the current API token. An empty token disables the
	// pipeline entirely: events are dropped, nothing is sent.
	Token func() string
}

// RelayService owns the event-to-delivery pipeline: slot diffing, buy-window
// accounting, debounced payload building, dedup, and hand-off to the
// delivery queue.
type RelayService struct {
	opts   RelayOptions
	track  *tracker.SlotTracker
	ledger *ledger.Ledger
	queue  *relay.DeliveryQueue
	coal   *relay.Coalescer
	dedup  *relay.DedupGate

	mu        sync.Mutex
	identity  *model.Identity
	loginTime time.Time
}

// NewRelayService wires the pipeline and starts its coalescer.
func NewRelayService(opts RelayOptions, track *tracker.SlotTracker, l *ledger.Ledger, queue *relay.DeliveryQueue) *RelayService {
	if opts.LoginGrace == 0 {
		opts.LoginGrace = 3 * time.Second
	}
	if opts.Token == nil {
		opts.Token = func() string { return "" }
	}

	s := &RelayService{
		opts:   opts,
		track:  track,
		ledger: l,
		queue:  queue,
		dedup:  relay.NewDedupGate(),
	}
	s.coal = relay.NewCoalescer(opts.Debounce, s.flush)
	return s
}

// HandleSession processes a login or logout of the upstream account.
func (s *RelayService) HandleSession(ev model.SessionEvent, now time.Time) error {
	switch ev.Event {
	case "login":
		if ev.PlayerName == "" {
			return fmt.Errorf("login event missing playerName")
		}
		s.mu.Lock()
		s.identity = &model.Identity{PlayerName: ev.PlayerName, AccountHash: ev.AccountHash}
		s.loginTime = now
		s.mu.Unlock()
		log.Printf("[RelayService] Account logged in: %s (grace period started)", ev.PlayerName)
	case "logout":
		s.mu.Lock()
		s.identity = nil
		s.mu.Unlock()
		s.track.Reset()
		log.Printf("[RelayService] Account logged out")
	default:
		return fmt.Errorf("unknown session event %q", ev.Event)
	}
	return nil
}

// HandleOfferEvent processes one slot-change event: diff the snapshot,
// record any purchase delta, and schedule a debounced send. Events are
// dropped while logged out, during the post-login grace period, or when no
// API token is configured.
func (s *RelayService) HandleOfferEvent(ctx context.Context, snap model.OfferSnapshot, now time.Time) error {
	s.mu.Lock()
	loggedIn := s.identity != nil
	loginTime := s.loginTime
	s.mu.Unlock()

	if !loggedIn || s.opts.Token() == "" {
		return nil
	}
	if now.Sub(loginTime) < s.opts.LoginGrace {
		log.Printf("[RelayService] Ignoring offer event during login grace period")
		return nil
	}

	delta, err := s.track.Observe(snap)
	if err != nil {
		return err
	}
	if delta > 0 {
		s.ledger.RecordPurchase(ctx, snap.ItemID, delta, now)
	}

	s.coal.Notify(fmt.Sprintf("Slot updated: %d", snap.Slot))
	return nil
}

// flush is the coalescer callback: build the snapshot payload and hand it to
// the delivery queue unless it matches the last one queued.
func (s *RelayService) flush(reason string) {
	s.mu.Lock()
	ident := s.identity
	s.mu.Unlock()

	now := time.Now()
	_, canonical, err := relay.BuildPayload(reason, ident, s.track.Snapshot(), s.ledger.SnapshotActive(now))
	if err != nil {
		// Identity went away between the event and the fire; skip this
		// cycle, the next event reschedules.
		log.Printf("[RelayService] Skipping send: %v", err)
		return
	}

	if !s.dedup.ShouldSend(canonical) {
		return
	}
	if s.queue.Enqueue(canonical) {
		s.dedup.MarkQueued(canonical)
	}
}

// LedgerEntries returns the active buy-window records, for the debug API.
func (s *RelayService) LedgerEntries(now time.Time) []model.BuyLimitEntry {
	return s.ledger.SnapshotActive(now)
}

// PendingDeliveries returns the number of payloads awaiting delivery.
func (s *RelayService) PendingDeliveries() int {
	return s.queue.Pending()
}

// Stop shuts the pipeline down in order: no more scheduled fires, then no
// more deliveries.
func (s *RelayService) Stop() {
	s.coal.Stop()
	s.queue.Close()
}
