package api

import (
	"log/slog"
	"net/http"
	"strings"

	"go.uber.org/multierr"

	"github.com/erazemk/evidenca/internal/search"
	"github.com/erazemk/evidenca/internal/service"
)

// CatalogHandler serves suggestions, lookups, categories and reports.
type CatalogHandler struct {
	Svc *service.Service
}

// Suggest handles GET /api/suggest?q=&limit=.
func (h *CatalogHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", search.DefaultMaxSuggestions, 1, 50)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.Svc.Suggest(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		serviceError(w, r, err, "failed to suggest")
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// Lookup handles GET /api/lookup?q=.
func (h *CatalogHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Lookup(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		serviceError(w, r, err, "failed to look up")
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Categories handles GET /api/categories.
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Categories(r.Context())
	if err != nil {
		serviceError(w, r, err, "failed to list categories")
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// Classify handles GET /api/categories/classify?label=.
func (h *CatalogHandler) Classify(w http.ResponseWriter, r *http.Request) {
	label := strings.TrimSpace(r.URL.Query().Get("label"))
	jsonResponse(w, http.StatusOK, h.Svc.Classify(label))
}

// CategoryTree handles GET /api/categories/tree?q=.
func (h *CatalogHandler) CategoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.Svc.CategoryTree(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		serviceError(w, r, err, "failed to group categories")
		return
	}
	jsonResponse(w, http.StatusOK, tree)
}

// Stats handles GET /api/reports/stats.
func (h *CatalogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		serviceError(w, r, err, "failed to compute stats")
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

type backfillResponse struct {
	Assigned int      `json:"assigned"`
	Errors   []string `json:"errors"`
}

// AssignMissingCodes handles POST /api/maintenance/codes.
func (h *CatalogHandler) AssignMissingCodes(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.AssignMissingCodes(r.Context(), actorID(r))
	errs := multierr.Errors(err)
	if n == 0 && len(errs) > 0 {
		serviceError(w, r, errs[0], "failed to assign codes")
		return
	}

	res := backfillResponse{Assigned: n, Errors: make([]string, 0, len(errs))}
	for _, e := range errs {
		res.Errors = append(res.Errors, e.Error())
	}

	claims := GetClaims(r.Context())
	slog.Info("missing codes assigned", "user", claims.Username, "assigned", n, "failed", len(errs))
	jsonResponse(w, http.StatusOK, res)
}
