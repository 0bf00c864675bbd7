package api

import (
	"net/http"
	"strconv"

	"github.com/kmatteson/domainintel/internal/api/shared"
	"github.com/kmatteson/domainintel/internal/store"
)

// Pagination bounds for the companies listing.
const (
	defaultCompanyPageSize = 50
	maxCompanyPageSize     = 500
)

// CompanyHandler handles persisted-profile HTTP requests
type CompanyHandler struct {
	profiles store.ProfileStore
}

// NewCompanyHandler creates a new CompanyHandler
func NewCompanyHandler(profiles store.ProfileStore) *CompanyHandler {
	return &CompanyHandler{profiles: profiles}
}

// ListCompanies handles GET /api/companies requests with limit/offset
// pagination.
func (h *CompanyHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultCompanyPageSize)
	if limit <= 0 || limit > maxCompanyPageSize {
		limit = defaultCompanyPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	total, err := h.profiles.CountProfiles(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to count companies", err)
		return
	}

	profiles, err := h.profiles.ListProfiles(r.Context(), limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to list companies", err)
		return
	}

	response := CompanyListResponse{
		Total:     total,
		Companies: make([]CompanyResponse, 0, len(profiles)),
	}
	for _, stored := range profiles {
		response.Companies = append(response.Companies, CompanyResponse{
			Domain:      stored.Domain,
			CompanyName: stored.Profile.CompanyName(),
			Profile:     stored.Profile,
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// queryInt parses an integer query parameter, falling back to def on
// absence or garbage.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}
