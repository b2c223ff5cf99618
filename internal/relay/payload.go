package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"ge-offer-relay/internal/model"
)

// ErrIdentityUnavailable is returned when a payload is requested before the
// upstream account identity is known. The caller skips the send cycle; the
// next triggering event retries naturally.
var ErrIdentityUnavailable = errors.New("account identity unavailable")

// BuildPayload assembles the canonical outbound snapshot from the current
// slot states and active buy-window entries. The returned bytes are
// deterministic for identical inputs: field order is fixed by the struct and
// buyLimits arrive pre-sorted from the ledger.
func BuildPayload(reason string, ident *model.Identity, offers []model.SlotPayload, limits []model.BuyLimitEntry) (*model.Payload, []byte, error) {
	if ident == nil || ident.PlayerName == "" {
		return nil, nil, ErrIdentityUnavailable
	}
	if len(offers) != model.SlotCount {
		return nil, nil, fmt.Errorf("expected %d slot states, got %d", model.SlotCount, len(offers))
	}

	if limits == nil {
		limits = []model.BuyLimitEntry{}
	}

	p := &model.Payload{
		Reason:      reason,
		PlayerName:  ident.PlayerName,
		AccountHash: ident.AccountHash,
		Offers:      offers,
		BuyLimits:   limits,
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize payload: %w", err)
	}
	return p, data, nil
}
