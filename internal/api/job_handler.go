package api

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kmatteson/domainintel/internal/api/shared"
	"github.com/kmatteson/domainintel/internal/service"
	"github.com/kmatteson/domainintel/internal/store"
)

// maxCSVBodyBytes bounds CSV submissions; a million-domain upload
// belongs in batches.
const maxCSVBodyBytes = 4 << 20

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobService service.JobService
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobService service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// CreateJob handles POST /api/jobs requests
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	h.submit(w, r, req.Domains)
}

// CreateJobFromCSV handles POST /api/jobs/csv requests. The body is a
// CSV document. When the first record is a header naming a domain
// column, only that column is read; otherwise every non-empty field of
// every record is treated as a raw domain entry.
func (h *JobHandler) CreateJobFromCSV(w http.ResponseWriter, r *http.Request) {
	reader := csv.NewReader(io.LimitReader(r.Body, maxCSVBodyBytes))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid CSV document")
		return
	}

	h.submit(w, r, csvDomainEntries(records))
}

// csvDomainEntries extracts raw domain entries from CSV records.
func csvDomainEntries(records [][]string) []string {
	if len(records) == 0 {
		return nil
	}

	column := -1
	for i, field := range records[0] {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "domain", "domains", "website", "url":
			column = i
		}
	}

	rows := records
	if column >= 0 {
		rows = records[1:]
	}

	var entries []string
	for _, record := range rows {
		if column >= 0 {
			if column < len(record) && record[column] != "" {
				entries = append(entries, record[column])
			}
			continue
		}
		for _, field := range record {
			if field != "" {
				entries = append(entries, field)
			}
		}
	}

	return entries
}

// submit registers the entries as a new job and writes the 202
// response. Processing happens asynchronously in the worker pool.
func (h *JobHandler) submit(w http.ResponseWriter, r *http.Request, entries []string) {
	job, err := h.jobService.CreateJob(r.Context(), entries)
	if err != nil {
		if errors.Is(err, service.ErrNoValidDomains) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "No valid domains in submission")
			return
		}
		slog.Error("failed to create job", "error", err)
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to create job", err)
		return
	}

	response := JobCreatedResponse{
		JobID:    job.ID.String(),
		Status:   string(job.Status),
		TaskKeys: job.TaskKeys,
		Total:    len(job.TaskKeys),
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, response)
}

// GetJob handles GET /api/jobs/{id} requests. The response is a
// read-only snapshot: it never blocks on in-flight worker operations.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	snapshot, err := h.jobService.Snapshot(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Job not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load job status", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobSnapshotToResponse(snapshot))
}
