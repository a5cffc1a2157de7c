package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"waypoint/internal/domain"
	"waypoint/internal/service"
)

// SiteHandler exposes the watched-site list consumed by the options view.
type SiteHandler struct {
	sites *service.SiteService
}

// NewSiteHandler creates a new site handler
func NewSiteHandler(sites *service.SiteService) *SiteHandler {
	return &SiteHandler{sites: sites}
}

// UpdateSitesRequest mirrors the updateBlockedSites message
type UpdateSitesRequest struct {
	Sites []string `json:"sites"`
}

// List returns the current watched-site list
func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sites": h.sites.List(),
	})
}

// Update replaces the watched-site list
func (h *SiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateSitesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"success":false,"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	sites, err := h.sites.Update(r.Context(), req.Sites)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSite) {
			http.Error(w, `{"success":false,"error":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
		http.Error(w, `{"success":false,"error":"Failed to save sites"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"sites":   sites,
	})
}
