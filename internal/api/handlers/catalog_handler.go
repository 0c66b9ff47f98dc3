package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tobiadeyemi/Resolva/internal/core"
	"github.com/tobiadeyemi/Resolva/internal/services"
)

// CatalogHandler exposes the troubleshooting catalog: public reads and
// the admin import.
type CatalogHandler struct {
	catalog *services.CatalogService
}

func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	tree, err := h.catalog.Tree(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": tree})
}

// ImportCatalog applies an uploaded catalog graph, upserting by slug.
func (h *CatalogHandler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	var req services.CatalogImport
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %v", core.ErrValidation, err))
		return
	}

	result, err := h.catalog.Import(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
