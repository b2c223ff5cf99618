package handler

import (
	"errors"
	"net/http"
	"strconv"

	"ge-offer-relay/internal/prices"
	"ge-offer-relay/pkg/apierror"
	"ge-offer-relay/pkg/response"
)

// MarketHandler serves market-mover queries from the price dataset.
type MarketHandler struct {
	refresher *prices.Refresher
}

// NewMarketHandler creates a market handler. refresher may be nil when the
// prices feature is disabled.
func NewMarketHandler(refresher *prices.Refresher) *MarketHandler {
	return &MarketHandler{refresher: refresher}
}

// GetMovers handles GET /api/v1/movers?range=day&perf=top&min=1&max=100000
func (h *MarketHandler) GetMovers(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		response.Error(w, apierror.NotFound("price data is disabled"))
		return
	}

	q := r.URL.Query()

	filter := prices.MoverFilter{Direction: prices.TopPerformers}
	if q.Get("perf") == "under" {
		filter.Direction = prices.Underperformers
	}
	if v := q.Get("min"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.Error(w, apierror.BadRequest("min must be a non-negative integer"))
			return
		}
		filter.MinPrice = n
	}
	if v := q.Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.Error(w, apierror.BadRequest("max must be a non-negative integer"))
			return
		}
		filter.MaxPrice = n
	}
	if filter.MaxPrice != 0 && filter.MinPrice > filter.MaxPrice {
		response.Error(w, apierror.BadRequest("min must not exceed max"))
		return
	}

	movers, err := h.refresher.Movers(q.Get("range"), filter)
	if err != nil {
		if errors.Is(err, prices.ErrNotLoaded) {
			response.Error(w, apierror.Unavailable("price data not loaded yet"))
			return
		}
		response.Error(w, apierror.InternalError(err.Error()))
		return
	}

	response.OK(w, movers)
}
