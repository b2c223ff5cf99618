package ledger

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"ge-offer-relay/internal/model"
	"ge-offer-relay/internal/repository"
)

// Ledger tracks, per item, the quantity bought within the current rolling
// 4-hour window. The in-memory map is authoritative; an optional store makes
// records survive restarts. All operations are mutually exclusive since
// purchase events and snapshot reads arrive on different goroutines.
type Ledger struct {
	mu      sync.Mutex
	records map[int]*model.BuyWindowRecord
	store   repository.BuyWindowStore // nil for memory-only operation

	// storeMu serializes store writes in record-update order; it is taken
	// while mu is still held so a later snapshot can never be overwritten
	// by an earlier one.
	storeMu sync.Mutex
}

// New creates a ledger. If store is non-nil, previously persisted records
// are loaded; records that already expired are dropped on load.
func New(ctx context.Context, store repository.BuyWindowStore) (*Ledger, error) {
	l := &Ledger{
		records: make(map[int]*model.BuyWindowRecord),
		store:   store,
	}

	if store != nil {
		stored, err := store.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		restored := 0
		for _, rec := range stored {
			if rec.Expired(now) {
				continue
			}
			r := rec
			l.records[rec.ItemID] = &r
			restored++
		}
		if restored > 0 {
			log.Printf("[Ledger] Restored %d active buy-window records", restored)
		}
	}

	return l, nil
}

// RecordPurchase adds quantity to the item's current window, opening a new
// window when none exists or the previous one expired. Additions never move
// the window start. Non-positive quantities are ignored.
func (l *Ledger) RecordPurchase(ctx context.Context, itemID, quantity int, now time.Time) {
	if quantity <= 0 {
		return
	}

	l.mu.Lock()
	rec, ok := l.records[itemID]
	if !ok || rec.Expired(now) {
		rec = &model.BuyWindowRecord{
			ItemID:         itemID,
			FirstBuy:       now,
			QuantityBought: quantity,
		}
		l.records[itemID] = rec
	} else {
		rec.QuantityBought += quantity
	}
	saved := *rec
	if l.store == nil {
		l.mu.Unlock()
		return
	}
	l.storeMu.Lock()
	l.mu.Unlock()

	err := l.store.Upsert(ctx, saved)
	l.storeMu.Unlock()
	if err != nil {
		log.Printf("[Ledger] Failed to persist buy window for item %d: %v", itemID, err)
	}
}

// Active returns the item's record if it has a live window at the given
// instant. Expired records are treated as absent without being removed.
func (l *Ledger) Active(itemID int, now time.Time) (model.BuyWindowRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[itemID]
	if !ok || rec.Expired(now) {
		return model.BuyWindowRecord{}, false
	}
	return *rec, true
}

// SnapshotActive returns all live records as payload entries, sorted by item
// ID so the serialized form is stable.
func (l *Ledger) SnapshotActive(now time.Time) []model.BuyLimitEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]model.BuyLimitEntry, 0, len(l.records))
	for _, rec := range l.records {
		if rec.Expired(now) {
			continue
		}
		entries = append(entries, model.BuyLimitEntry{
			ItemID:            rec.ItemID,
			QuantityBought:    rec.QuantityBought,
			FirstBuyTimestamp: rec.FirstBuy.UnixMilli(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ItemID < entries[j].ItemID })
	return entries
}

// CleanupExpired drops expired records from memory and the store, returning
// how many were removed.
func (l *Ledger) CleanupExpired(ctx context.Context, now time.Time) int {
	l.mu.Lock()
	var expired []int
	for itemID, rec := range l.records {
		if rec.Expired(now) {
			expired = append(expired, itemID)
		}
	}
	for _, itemID := range expired {
		delete(l.records, itemID)
	}
	if len(expired) == 0 || l.store == nil {
		l.mu.Unlock()
		return len(expired)
	}
	l.storeMu.Lock()
	l.mu.Unlock()

	err := l.store.Delete(ctx, expired)
	l.storeMu.Unlock()
	if err != nil {
		log.Printf("[Ledger] Failed to purge expired buy windows: %v", err)
	}
	return len(expired)
}
