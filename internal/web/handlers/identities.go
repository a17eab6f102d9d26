package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kozaktomas/fingerprint-matcher/internal/constants"
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
)

// IdentitiesHandler exposes read-only views of the enrolled identities
type IdentitiesHandler struct {
	store  database.IdentityReader
	logger *slog.Logger
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(store database.IdentityReader, logger *slog.Logger) *IdentitiesHandler {
	return &IdentitiesHandler{store: store, logger: logger}
}

// IdentityResponse represents an enrolled identity in API responses. Templates are never exposed.
type IdentityResponse struct {
	ID           int64  `json:"id"`
	FullName     string `json:"full_name"`
	BirthDate    string `json:"birth_date"`
	TemplateSize int    `json:"template_size"`
}

// Count returns the number of enrolled identities.
func (h *IdentitiesHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Error("failed to count identities", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to count identities")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": n})
}

// List returns a page of identities. Query parameters: limit, offset.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 100)
	if !ok || limit <= 0 || limit > constants.DefaultPageSize {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	identities, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list identities", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	result := make([]IdentityResponse, 0, len(identities))
	for _, identity := range identities {
		result = append(result, IdentityResponse{
			ID:           identity.ID,
			FullName:     identity.FullName,
			BirthDate:    identity.BirthDate.Format(constants.BirthDateLayout),
			TemplateSize: len(identity.Template),
		})
	}
	respondJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}
