package tracker

import (
	"fmt"
	"sync"

	"ge-offer-relay/internal/model"
)

// SlotTracker keeps the last observed snapshot of each trading-offer slot
// and turns successive raw snapshots into incremental purchase quantities.
// All access is serialized; the upstream event callback and the payload
// build run on different goroutines.
type SlotTracker struct {
	mu    sync.Mutex
	slots [model.SlotCount]*model.OfferSnapshot
}

// New creates a tracker with all slots empty.
func New() *SlotTracker {
	return &SlotTracker{}
}

// Observe records a new snapshot for its slot and returns the purchase
// quantity it contributes on top of what was already counted.
//
// Non-buy states contribute nothing but still replace the stored snapshot
// (EMPTY clears it). A snapshot for a slot with no prior observation, or
// whose item differs from the prior one, is a new purchase run and
// contributes its full quantitySold. Otherwise only a positive increase in
// quantitySold counts; duplicates and out-of-order events yield zero.
func (t *SlotTracker) Observe(snap model.OfferSnapshot) (int, error) {
	if snap.Slot < 0 || snap.Slot >= model.SlotCount {
		return 0, fmt.Errorf("slot %d out of range [0,%d)", snap.Slot, model.SlotCount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	delta := 0
	if snap.State.IsBuy() {
		prev := t.slots[snap.Slot]
		if prev != nil && prev.ItemID == snap.ItemID {
			if snap.QuantitySold > prev.QuantitySold {
				delta = snap.QuantitySold - prev.QuantitySold
			}
		} else {
			delta = snap.QuantitySold
		}
	}

	if snap.State == model.StateEmpty {
		t.slots[snap.Slot] = nil
	} else {
		stored := snap
		t.slots[snap.Slot] = &stored
	}

	return delta, nil
}

// Snapshot returns the current state of all slots in slot order, with
// cleared slots rendered as EMPTY.
func (t *SlotTracker) Snapshot() []model.SlotPayload {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.SlotPayload, model.SlotCount)
	for i, snap := range t.slots {
		if snap == nil {
			out[i] = model.SlotPayload{Slot: i, State: string(model.StateEmpty)}
			continue
		}
		out[i] = model.SlotPayload{
			Slot:          i,
			State:         string(snap.State),
			ItemID:        snap.ItemID,
			QuantitySold:  snap.QuantitySold,
			TotalQuantity: snap.TotalQuantity,
			Price:         snap.Price,
		}
	}
	return out
}

// Reset clears every slot, used when the upstream account logs out.
func (t *SlotTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		t.slots[i] = nil
	}
}
