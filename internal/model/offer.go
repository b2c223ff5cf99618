package model

// SlotCount is the number of trading-offer slots tracked per account.
const SlotCount = 8

// OfferState is the lifecycle tag of a trading-offer slot.
type OfferState string

const (
	StateEmpty          OfferState = "EMPTY"
	StateBuying         OfferState = "BUYING"
	StateBought         OfferState = "BOUGHT"
	StateCancelledBuy   OfferState = "CANCELLED_BUY"
	StateSelling        OfferState = "SELLING"
	StateSold           OfferState = "SOLD"
	StateCancelledSell  OfferState = "CANCELLED_SELL"
)

// IsBuy reports whether the state counts toward buy-limit accounting.
func (s OfferState) IsBuy() bool {
	return s == StateBuying || s == StateBought
}

// OfferSnapshot is the raw state of a single slot as reported by the
// upstream event source.
type OfferSnapshot struct {
	Slot          int        `json:"slot"`
	State         OfferState `json:"state"`
	ItemID        int        `json:"itemId"`
	QuantitySold  int        `json:"quantitySold"`
	TotalQuantity int        `json:"totalQuantity"`
	Price         int        `json:"price"`
}

// SessionEvent reports a login or logout of the upstream account.
type SessionEvent struct {
	Event       string `json:"event"` // "login" or "logout"
	PlayerName  string `json:"playerName"`
	AccountHash int64  `json:"accountHash"`
}

// Identity is the account identity attached to outbound payloads.
// It is only available while the upstream account is logged in.
type Identity struct {
	PlayerName  string
	AccountHash int64
}
