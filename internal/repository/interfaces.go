package repository

import (
	"context"

	"ge-offer-relay/internal/model"
)

// BuyWindowStore persists buy-window records across restarts. The in-memory
// ledger stays authoritative; store writes are best-effort and a failed
// write never blocks the event pipeline.
type BuyWindowStore interface {
	// Upsert inserts or replaces the record for its item.
	Upsert(ctx context.Context, rec model.BuyWindowRecord) error

	// LoadAll returns every stored record, expired ones included; the
	// caller filters on load.
	LoadAll(ctx context.Context) ([]model.BuyWindowRecord, error)

	// Delete removes the records for the given items.
	Delete(ctx context.Context, itemIDs []int) error

	// Close closes the underlying connection.
	Close() error
}
