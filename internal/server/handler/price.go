package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/goldsphere/goldsphere/internal/domain"
	"github.com/goldsphere/goldsphere/internal/platform/metalprices"
)

// PriceHandler serves the cached spot prices.
type PriceHandler struct {
	prices domain.PriceCache
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler backed by the price cache.
func NewPriceHandler(prices domain.PriceCache, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		prices: prices,
		logger: logger,
	}
}

// GetSpotPrices returns the latest cached spot price per metal. Metals not
// yet polled are omitted.
// GET /api/prices
func (h *PriceHandler) GetSpotPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.prices.GetPrices(r.Context(), metalprices.Metals)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get spot prices failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get spot prices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prices":    prices,
		"currency":  "USD",
		"unit":      "troy_ounce",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
