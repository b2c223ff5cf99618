package model

import "time"

// BuyWindowLength is the rolling accounting period for buy limits.
const BuyWindowLength = 4 * time.Hour

// BuyWindowRecord accumulates the quantity bought of one item within the
// current rolling window. FirstBuy never changes for the lifetime of a
// window; only expiry starts a new record.
type BuyWindowRecord struct {
	ItemID         int
	FirstBuy       time.Time
	QuantityBought int
}

// Expired reports whether the record's window has passed at the given
// instant. The boundary is exclusive: a record aged exactly the window
// length is still active.
func (r BuyWindowRecord) Expired(now time.Time) bool {
	return now.Sub(r.FirstBuy) > BuyWindowLength
}
