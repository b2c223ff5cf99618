package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"ge-offer-relay/internal/model"
	"ge-offer-relay/internal/service"
	"ge-offer-relay/pkg/apierror"
	"ge-offer-relay/pkg/response"
)

// EventsHandler receives slot-change and session events from the upstream
// event source and feeds them into the relay pipeline.
type EventsHandler struct {
	svc *service.RelayService
}

// NewEventsHandler creates an events handler.
func NewEventsHandler(svc *service.RelayService) *EventsHandler {
	return &EventsHandler{svc: svc}
}

// SessionChanged handles POST /api/v1/session
func (h *EventsHandler) SessionChanged(w http.ResponseWriter, r *http.Request) {
	var ev model.SessionEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		response.Error(w, apierror.BadRequest("invalid session event body"))
		return
	}

	if err := h.svc.HandleSession(ev, time.Now()); err != nil {
		response.Error(w, apierror.BadRequest(err.Error()))
		return
	}

	response.Accepted(w, map[string]string{"event": ev.Event})
}

// OfferChanged handles POST /api/v1/events/offer
func (h *EventsHandler) OfferChanged(w http.ResponseWriter, r *http.Request) {
	var snap model.OfferSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		response.Error(w, apierror.BadRequest("invalid offer event body"))
		return
	}
	if snap.State == "" {
		response.Error(w, apierror.BadRequest("offer event missing state"))
		return
	}

	if err := h.svc.HandleOfferEvent(r.Context(), snap, time.Now()); err != nil {
		response.Error(w, apierror.BadRequest(err.Error()))
		return
	}

	response.Accepted(w, map[string]int{"slot": snap.Slot})
}

// GetLedger handles GET /api/v1/ledger - debug view of the active
// buy-window records.
func (h *EventsHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.svc.LedgerEntries(time.Now()))
}
