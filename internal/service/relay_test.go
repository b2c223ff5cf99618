package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ge-offer-relay/internal/ledger"
	"ge-offer-relay/internal/model"
	"ge-offer-relay/internal/relay"
	"ge-offer-relay/internal/tracker"
)

// collectorStub captures payloads POSTed by the delivery queue.
type collectorStub struct {
	mu       sync.Mutex
	payloads []model.Payload
}

func (c *collectorStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p model.Payload
		if err := json.Unmarshal(body, &p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.payloads = append(c.payloads, p)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (c *collectorStub) received() []model.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Payload(nil), c.payloads...)
}

func newTestPipeline(t *testing.T, url string) *RelayService {
	t.Helper()

	l, err := ledger.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}

	queue := relay.NewDeliveryQueue(relay.QueueConfig{
		URL:            url,
		Token:          func() string { return "test-token" },
		SendTimeout:    2 * time.Second,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	})

	svc := NewRelayService(RelayOptions{
		Debounce:   30 * time.Millisecond,
		LoginGrace: 3 * time.Second,
		Token:      func() string { return "test-token" },
	}, tracker.New(), l, queue)
	t.Cleanup(svc.Stop)

	return svc
}

func TestPipeline_BurstProducesSingleConsolidatedPayload(t *testing.T) {
	stub := &collectorStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	svc := newTestPipeline(t, srv.URL)
	ctx := context.Background()

	login := time.Now().Add(-time.Minute)
	if err := svc.HandleSession(model.SessionEvent{Event: "login", PlayerName: "Lindor", AccountHash: 99}, login); err != nil {
		t.Fatalf("HandleSession failed: %v", err)
	}

	// Slot 0 fills in a burst: EMPTY -> BUYING(0) -> BUYING(5) -> BOUGHT(10).
	now := time.Now()
	events := []model.OfferSnapshot{
		{Slot: 0, State: model.StateEmpty},
		{Slot: 0, State: model.StateBuying, ItemID: 4151, QuantitySold: 0, TotalQuantity: 10, Price: 1_250_000},
		{Slot: 0, State: model.StateBuying, ItemID: 4151, QuantitySold: 5, TotalQuantity: 10, Price: 1_250_000},
		{Slot: 0, State: model.StateBought, ItemID: 4151, QuantitySold: 10, TotalQuantity: 10, Price: 1_250_000},
	}
	for i, ev := range events {
		if err := svc.HandleOfferEvent(ctx, ev, now.Add(time.Duration(i)*10*time.Millisecond)); err != nil {
			t.Fatalf("HandleOfferEvent %d failed: %v", i, err)
		}
	}

	// One debounced flush, one delivery.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(stub.received()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond) // room for an (incorrect) second send

	payloads := stub.received()
	if len(payloads) != 1 {
		t.Fatalf("Expected exactly 1 outbound payload, got %d", len(payloads))
	}

	p := payloads[0]
	if p.PlayerName != "Lindor" || p.AccountHash != 99 {
		t.Errorf("Unexpected identity: %s/%d", p.PlayerName, p.AccountHash)
	}
	if p.Reason != "Slot updated: 0" {
		t.Errorf("Unexpected reason: %q", p.Reason)
	}
	if len(p.Offers) != model.SlotCount {
		t.Fatalf("Expected %d offers, got %d", model.SlotCount, len(p.Offers))
	}
	if p.Offers[0].State != "BOUGHT" || p.Offers[0].ItemID != 4151 || p.Offers[0].QuantitySold != 10 {
		t.Errorf("Unexpected slot 0: %+v", p.Offers[0])
	}
	if len(p.BuyLimits) != 1 || p.BuyLimits[0].ItemID != 4151 || p.BuyLimits[0].QuantityBought != 10 {
		t.Errorf("Unexpected buyLimits: %+v", p.BuyLimits)
	}
}

func TestPipeline_DuplicateStateIsNotResent(t *testing.T) {
	stub := &collectorStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	svc := newTestPipeline(t, srv.URL)
	ctx := context.Background()

	svc.HandleSession(model.SessionEvent{Event: "login", PlayerName: "Lindor", AccountHash: 1}, time.Now().Add(-time.Minute))

	ev := model.OfferSnapshot{Slot: 0, State: model.StateBuying, ItemID: 4151, QuantitySold: 5}
	svc.HandleOfferEvent(ctx, ev, time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(stub.received()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if len(stub.received()) != 1 {
		t.Fatalf("Expected first payload to be delivered, got %d", len(stub.received()))
	}

	// The exact same event again: no state change, identical canonical
	// payload, suppressed by the dedup gate.
	svc.HandleOfferEvent(ctx, ev, time.Now())
	time.Sleep(150 * time.Millisecond)

	if got := len(stub.received()); got != 1 {
		t.Errorf("Expected duplicate state to be suppressed, got %d payloads", got)
	}
}

func TestPipeline_ChangedFieldIsResent(t *testing.T) {
	stub := &collectorStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	svc := newTestPipeline(t, srv.URL)
	ctx := context.Background()

	svc.HandleSession(model.SessionEvent{Event: "login", PlayerName: "Lindor", AccountHash: 1}, time.Now().Add(-time.Minute))

	svc.HandleOfferEvent(ctx, model.OfferSnapshot{Slot: 0, State: model.StateBuying, ItemID: 4151, QuantitySold: 5, TotalQuantity: 10}, time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(stub.received()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if len(stub.received()) != 1 {
		t.Fatalf("Expected first payload to be delivered, got %d", len(stub.received()))
	}

	// One field changed: a genuinely new payload, must pass the dedup gate.
	svc.HandleOfferEvent(ctx, model.OfferSnapshot{Slot: 0, State: model.StateBuying, ItemID: 4151, QuantitySold: 6, TotalQuantity: 10}, time.Now())

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(stub.received()) < 2 {
		time.Sleep(10 * time.Millisecond)
	}

	payloads := stub.received()
	if len(payloads) != 2 {
		t.Fatalf("Expected the changed payload to be delivered, got %d payloads", len(payloads))
	}
	if got := payloads[1].Offers[0].QuantitySold; got != 6 {
		t.Errorf("Expected second payload to carry quantitySold 6, got %d", got)
	}
	if len(payloads[1].BuyLimits) != 1 || payloads[1].BuyLimits[0].QuantityBought != 6 {
		t.Errorf("Unexpected buyLimits in second payload: %+v", payloads[1].BuyLimits)
	}
}

func TestPipeline_DropsEventsDuringLoginGrace(t *testing.T) {
	stub := &collectorStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	svc := newTestPipeline(t, srv.URL)
	ctx := context.Background()

	now := time.Now()
	svc.HandleSession(model.SessionEvent{Event: "login", PlayerName: "Lindor", AccountHash: 1}, now)

	// Events within the 3s grace period are replayed stale state; dropped.
	ev := model.OfferSnapshot{Slot: 0, State: model.StateBuying, ItemID: 4151, QuantitySold: 5}
	svc.HandleOfferEvent(ctx, ev, now.Add(time.Second))

	time.Sleep(150 * time.Millisecond)
	if got := len(stub.received()); got != 0 {
		t.Errorf("Expected no payloads for grace-period events, got %d", got)
	}
	if got := len(svc.LedgerEntries(now.Add(time.Second))); got != 0 {
		t.Errorf("Expected no ledger entries for grace-period events, got %d", got)
	}
}

func TestPipeline_LoggedOutEventsIgnored(t *testing.T) {
	stub := &collectorStub{}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	svc := newTestPipeline(t, srv.URL)
	ctx := context.Background()

	ev := model.OfferSnapshot{Slot: 0, State: model.StateBuying, ItemID: 4151, QuantitySold: 5}
	if err := svc.HandleOfferEvent(ctx, ev, time.Now()); err != nil {
		t.Fatalf("HandleOfferEvent failed: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if got := len(stub.received()); got != 0 {
		t.Errorf("Expected no payloads while logged out, got %d", got)
	}
}

func TestHandleSession_RejectsBadEvents(t *testing.T) {
	svc := newTestPipeline(t, "http://127.0.0.1:0")

	if err := svc.HandleSession(model.SessionEvent{Event: "login"}, time.Now()); err == nil {
		t.Error("Expected error for login without playerName")
	}
	if err := svc.HandleSession(model.SessionEvent{Event: "reboot"}, time.Now()); err == nil {
		t.Error("Expected error for unknown event type")
	}
}
