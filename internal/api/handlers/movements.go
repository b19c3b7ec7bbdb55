package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dvloznov/academy-cashbook/internal/api/middleware"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/rs/zerolog"
)

// MovementLedger is the cash movement surface the handlers use.
type MovementLedger interface {
	ListMovements(ctx context.Context, registerID string) ([]domain.CashMovement, error)
	RecordMovement(ctx context.Context, registerID string, typ domain.MovementType, amount domain.Money, details domain.MovementDetails) (domain.CashMovement, error)
	VoidMovement(ctx context.Context, id string) error
}

// MovementsHandler handles cash movement endpoints.
type MovementsHandler struct {
	ledger MovementLedger
	log    zerolog.Logger
}

// NewMovementsHandler creates a new movements handler.
func NewMovementsHandler(ledger MovementLedger, log zerolog.Logger) *MovementsHandler {
	return &MovementsHandler{ledger: ledger, log: log}
}

// ListMovements handles GET /api/registers/{registerId}/movements
func (h *MovementsHandler) ListMovements(w http.ResponseWriter, r *http.Request, registerID string) {
	movements, err := h.ledger.ListMovements(r.Context(), registerID)
	if err != nil {
		h.log.Error().Err(err).Str("register_id", registerID).Msg("Failed to list movements")
		middleware.WriteDomainError(w, err, "Failed to list movements")
		return
	}

	// Totals come from the same list so both halves of the response agree.
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"movements": movements,
		"totals":    domain.SummarizeMovements(movements),
		"count":     len(movements),
	})
}

// RecordMovement handles POST /api/registers/{registerId}/movements
func (h *MovementsHandler) RecordMovement(w http.ResponseWriter, r *http.Request, registerID string) {
	var req struct {
		Type   domain.MovementType `json:"type"`
		Amount domain.Money        `json:"amount"`
		domain.MovementDetails
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	m, err := h.ledger.RecordMovement(r.Context(), registerID, req.Type, req.Amount, req.MovementDetails)
	if err != nil {
		h.log.Warn().Err(err).Str("register_id", registerID).Msg("Failed to record movement")
		middleware.WriteDomainError(w, err, "Failed to record movement")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, m)
}

// VoidMovement handles DELETE /api/movements/{id}
func (h *MovementsHandler) VoidMovement(w http.ResponseWriter, r *http.Request, movementID string) {
	if err := h.ledger.VoidMovement(r.Context(), movementID); err != nil {
		h.log.Warn().Err(err).Str("movement_id", movementID).Msg("Failed to void movement")
		middleware.WriteDomainError(w, err, "Failed to void movement")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
