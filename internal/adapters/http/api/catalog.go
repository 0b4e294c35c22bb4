package api

import (
	"context"
	"net/http"

	"github.com/okian/movierank/internal/adapters/catalog"
)

// CatalogDependencies defines the interface for external catalog search.
type CatalogDependencies interface {
	SearchCatalog(ctx context.Context, title string) ([]catalog.Result, error)
}

// CatalogHandler proxies title searches to the external catalog.
type CatalogHandler struct {
	deps CatalogDependencies
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps CatalogDependencies) *CatalogHandler {
	return &CatalogHandler{deps: deps}
}

// HandleSearch handles GET /movies/external-api?title=.
func (h *CatalogHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := h.deps.SearchCatalog(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusOK, "Movies retrieved successfully", results)
}
