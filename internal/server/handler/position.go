package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/goldsphere/goldsphere/internal/domain"
	"github.com/goldsphere/goldsphere/internal/platform/metalprices"
	"github.com/goldsphere/goldsphere/internal/service"
)

// PositionService defines the methods that the position handler requires.
type PositionService interface {
	GetPosition(ctx context.Context, p domain.Principal, id string) (domain.Position, error)
	ListPositions(ctx context.Context, p domain.Principal, userID string, opts domain.ListOpts) ([]domain.Position, error)
	Portfolio(ctx context.Context, p domain.Principal, userID string, metals []string) (service.PortfolioSummary, error)
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns the authenticated user's positions. Admins may pass
// ?user_id= to list another user's positions.
// GET /api/positions?user_id=...&limit=50&offset=0
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = p.ID
	}

	positions, err := h.positions.ListPositions(r.Context(), p, userID, parseListOpts(r))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetPosition returns a single position.
// GET /api/positions/{id}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing position id")
		return
	}

	pos, err := h.positions.GetPosition(r.Context(), p, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "position not found")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "forbidden")
		default:
			h.logger.ErrorContext(r.Context(), "handler: get position failed",
				slog.String("position_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to get position")
		}
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

// GetPortfolio values the authenticated user's active positions.
// GET /api/portfolio
func (h *PositionHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = p.ID
	}

	summary, err := h.positions.Portfolio(r.Context(), p, userID, metalprices.Metals)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: portfolio failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to value portfolio")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
