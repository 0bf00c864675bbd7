package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kmatteson/domainintel/internal/api/shared"
	"github.com/kmatteson/domainintel/internal/service"
	"github.com/kmatteson/domainintel/internal/store"
)

// ApprovalHandler handles approval-gate HTTP requests
type ApprovalHandler struct {
	approvalService service.ApprovalService
}

// NewApprovalHandler creates a new ApprovalHandler
func NewApprovalHandler(approvalService service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService}
}

// ListApprovals handles GET /api/jobs/{id}/approvals requests,
// returning every entry for the job, pending and resolved.
func (h *ApprovalHandler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	entries, err := h.approvalService.ListEntries(r.Context(), jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to list approval entries", err)
		return
	}

	response := make([]ApprovalEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, ApprovalEntryResponse{
			Key:        entry.Key,
			State:      string(entry.State),
			CreatedAt:  entry.CreatedAt,
			ResolvedAt: entry.ResolvedAt,
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// ResolveApproval handles POST /api/jobs/{id}/approvals requests.
// Resolution is terminal: a second resolve for the same pair gets 404.
func (h *ApprovalHandler) ResolveApproval(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	var req ResolveApprovalRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	accept := req.Action == "accept"
	if err := h.approvalService.Resolve(r.Context(), jobID, req.Key, accept); err != nil {
		if errors.Is(err, store.ErrApprovalNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound,
				"No pending approval entry for this job and key")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to resolve approval entry", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"job_id": jobID.String(),
		"key":    req.Key,
		"state":  resolvedState(accept),
	})
}

func resolvedState(accept bool) string {
	if accept {
		return "accepted"
	}
	return "rejected"
}
