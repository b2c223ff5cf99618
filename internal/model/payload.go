package model

// SlotPayload is one slot entry of an outbound payload. Item fields are
// omitted for EMPTY slots, matching the collector's schema.
type SlotPayload struct {
	Slot          int    `json:"slot"`
	State         string `json:"state"`
	ItemID        int    `json:"itemId,omitempty"`
	QuantitySold  int    `json:"quantitySold,omitempty"`
	TotalQuantity int    `json:"totalQuantity,omitempty"`
	Price         int    `json:"price,omitempty"`
}

// BuyLimitEntry is one active buy-window record in an outbound payload.
type BuyLimitEntry struct {
	ItemID            int   `json:"itemId"`
	QuantityBought    int   `json:"quantityBought"`
	FirstBuyTimestamp int64 `json:"firstBuyTimestamp"` // unix millis
}

// Payload is the consolidated snapshot relayed to the collector. Field order
// is fixed by the struct, and BuyLimits are sorted by item ID before
// marshalling, so identical state always produces identical bytes. The
// delivery pipeline relies on that for dedup.
type Payload struct {
	Reason      string          `json:"reason"`
	PlayerName  string          `json:"playerName"`
	AccountHash int64           `json:"accountHash"`
	Offers      []SlotPayload   `json:"offers"`
	BuyLimits   []BuyLimitEntry `json:"buyLimits"`
}
