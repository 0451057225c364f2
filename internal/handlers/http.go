package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/incidentfox/incidentfox/internal/api"
	"github.com/incidentfox/incidentfox/internal/services"
)

// HTTPHandler serves the read-only JSON API next to the MCP endpoint
type HTTPHandler struct {
	investigations *services.InvestigationService
	discoveries    *services.DiscoveryService
	version        string
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(investigations *services.InvestigationService, discoveries *services.DiscoveryService, version string) *HTTPHandler {
	return &HTTPHandler{
		investigations: investigations,
		discoveries:    discoveries,
		version:        version,
	}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)

	mux.HandleFunc("GET /api/statistics", h.handleStatistics)
	mux.HandleFunc("GET /api/investigations", h.handleSearchInvestigations)
	mux.HandleFunc("GET /api/investigations/{id}", h.handleGetInvestigation)
	mux.HandleFunc("GET /api/discoveries/pending", h.handlePendingDiscoveries)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

func (h *HTTPHandler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.investigations.Statistics(r.Context())
	if err != nil {
		api.RespondStoreError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// handleSearchInvestigations handles GET /api/investigations?query=&service=&days_ago=&limit=
func (h *HTTPHandler) handleSearchInvestigations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fieldErrors := map[string]string{}

	daysAgo, ok := positiveInt(q.Get("days_ago"), services.DefaultSearchDays)
	if !ok {
		fieldErrors["days_ago"] = "must be a positive integer"
	}
	limit, ok := positiveInt(q.Get("limit"), services.DefaultSearchLimit)
	if !ok {
		fieldErrors["limit"] = "must be a positive integer"
	}
	if len(fieldErrors) > 0 {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	results, err := h.investigations.Search(r.Context(), services.SearchParams{
		Query:   q.Get("query"),
		Service: q.Get("service"),
		DaysAgo: daysAgo,
		Limit:   limit,
	})
	if err != nil {
		api.RespondStoreError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"count":          len(results),
		"investigations": results,
	})
}

func (h *HTTPHandler) handleGetInvestigation(w http.ResponseWriter, r *http.Request) {
	detail, err := h.investigations.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, services.ErrInvestigationNotFound) {
		api.RespondNotFound(w, "Investigation", r.PathValue("id"))
		return
	}
	if err != nil {
		api.RespondStoreError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, detail)
}

func (h *HTTPHandler) handlePendingDiscoveries(w http.ResponseWriter, r *http.Request) {
	pending, err := h.discoveries.Pending(r.Context())
	if err != nil {
		api.RespondStoreError(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, pending)
}

func positiveInt(raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
