package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"waypoint/internal/domain"
	"waypoint/internal/service"
)

// GateHandler exposes the navigation-gate messages: decide, allowAccess and
// blockSiteTemporarily.
type GateHandler struct {
	gate  *service.GateService
	views *service.ViewURLs
}

// NewGateHandler creates a new gate handler
func NewGateHandler(gate *service.GateService, views *service.ViewURLs) *GateHandler {
	return &GateHandler{gate: gate, views: views}
}

// DecideRequest is the interception layer's question for one navigation
type DecideRequest struct {
	TabID int    `json:"tab_id"`
	URL   string `json:"url"`
}

// DecideResponse carries the verdict and, for non-allow verdicts, the view
// URL the tab should be redirected to
type DecideResponse struct {
	Verdict     domain.Verdict `json:"verdict"`
	RedirectURL string         `json:"redirect_url,omitempty"`
}

// AllowRequest mirrors the allowAccess message
type AllowRequest struct {
	TabID     int    `json:"tab_id"`
	TargetURL string `json:"target_url"`
	Reason    string `json:"reason"`
	Duration  int    `json:"duration"`
}

// BlockRequest mirrors the blockSiteTemporarily message
type BlockRequest struct {
	TargetURL string `json:"target_url"`
	Duration  int    `json:"duration"`
}

// Decide answers one intercepted main-frame navigation. The extension holds
// the request until this returns, so the handler stays free of storage I/O.
func (h *GateHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	resp := DecideResponse{Verdict: h.gate.Decide(req.TabID, req.URL)}
	switch resp.Verdict {
	case domain.VerdictRequireJustification:
		resp.RedirectURL = h.views.Justification(req.URL, req.TabID, false)
	case domain.VerdictTemporaryBlocked:
		resp.RedirectURL = h.views.Justification(req.URL, req.TabID, true)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Allow grants a timed session after a completed justification
func (h *GateHandler) Allow(w http.ResponseWriter, r *http.Request) {
	var req AllowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"success":false,"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	visitID, err := h.gate.Grant(r.Context(), req.TabID, req.TargetURL, req.Reason, req.Duration)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			http.Error(w, `{"success":false,"error":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
		http.Error(w, `{"success":false,"error":"Failed to record visit"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"visit_id": visitID,
	})
}

// Block sets a temporary cool-down on the site a URL belongs to
func (h *GateHandler) Block(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"success":false,"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.gate.BlockTemporarily(r.Context(), req.TargetURL, req.Duration); err != nil {
		http.Error(w, `{"success":false,"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
