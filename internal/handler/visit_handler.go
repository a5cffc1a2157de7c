package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"waypoint/internal/domain"
	"waypoint/internal/service"

	"github.com/go-chi/chi/v5"
)

// VisitHandler exposes the visit ledger: history reads and reflection writes.
type VisitHandler struct {
	gate   *service.GateService
	ledger *service.LedgerService
}

// NewVisitHandler creates a new visit handler
func NewVisitHandler(gate *service.GateService, ledger *service.LedgerService) *VisitHandler {
	return &VisitHandler{gate: gate, ledger: ledger}
}

// ReflectionRequest mirrors the storeReflection message
type ReflectionRequest struct {
	Reflection string `json:"reflection"`
}

// History returns the full visit history. Site filtering and day grouping
// stay with the views.
func (h *VisitHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.ledger.History(r.Context())
	if err != nil {
		http.Error(w, `{"error":"Failed to retrieve visit history"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"history": history,
	})
}

// StoreReflection attaches a post-visit reflection to its visit record
func (h *VisitHandler) StoreReflection(w http.ResponseWriter, r *http.Request) {
	visitID := chi.URLParam(r, "visitID")
	if visitID == "" {
		http.Error(w, `{"success":false,"error":"Visit ID required"}`, http.StatusBadRequest)
		return
	}

	var req ReflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"success":false,"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	found, err := h.gate.CompleteReflection(r.Context(), visitID, req.Reflection)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			http.Error(w, `{"success":false,"error":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
		http.Error(w, `{"success":false,"error":"Failed to store reflection"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": found})
}
