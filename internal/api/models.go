package api

import (
	"time"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/service"
)

// Common request/response structures

// CreateJobRequest defines the payload for the job submission endpoint.
type CreateJobRequest struct {
	// Domains accepts raw entries: bare domains, full URLs, or
	// comma/whitespace separated lists inside one entry. Entries are
	// normalized and deduplicated server-side.
	Domains []string `json:"domains" validate:"required,min=1"`
}

// JobCreatedResponse defines the successful response for job
// submission.
type JobCreatedResponse struct {
	JobID    string   `json:"job_id"`
	Status   string   `json:"status"`
	TaskKeys []string `json:"task_keys"`
	Total    int      `json:"total"`
}

// TaskView is the per-task detail inside a job status response.
type TaskView struct {
	Key          string `json:"key"`
	State        string `json:"state"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// JobStatusResponse defines the response for the job status endpoint.
type JobStatusResponse struct {
	JobID               string     `json:"job_id"`
	Status              string     `json:"status"`
	Total               int        `json:"total"`
	Completed           int        `json:"completed"`
	Failed              int        `json:"failed"`
	PendingApprovalKeys []string   `json:"pending_approval_keys"`
	CreatedAt           time.Time  `json:"created_at"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	Tasks               []TaskView `json:"tasks"`
}

// ResolveApprovalRequest defines the payload for resolving a pending
// approval entry.
type ResolveApprovalRequest struct {
	Key    string `json:"key"    validate:"required"`
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

// ApprovalEntryResponse is one approval entry in a listing.
type ApprovalEntryResponse struct {
	Key        string     `json:"key"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// CompanyResponse is one persisted profile in a listing.
type CompanyResponse struct {
	Domain      string                 `json:"domain"`
	CompanyName string                 `json:"company_name"`
	Profile     *domain.CompanyProfile `json:"profile"`
}

// CompanyListResponse defines the response for the companies listing
// endpoint.
type CompanyListResponse struct {
	Total     int               `json:"total"`
	Companies []CompanyResponse `json:"companies"`
}

// jobSnapshotToResponse converts a service.JobSnapshot to the API
// response shape.
func jobSnapshotToResponse(snapshot *service.JobSnapshot) JobStatusResponse {
	resp := JobStatusResponse{
		JobID:               snapshot.Job.ID.String(),
		Status:              string(snapshot.Job.Status),
		Total:               snapshot.Total,
		Completed:           snapshot.Completed,
		Failed:              snapshot.Failed,
		PendingApprovalKeys: snapshot.PendingApprovalKeys,
		CreatedAt:           snapshot.Job.CreatedAt,
		StartedAt:           snapshot.Job.StartedAt,
		CompletedAt:         snapshot.Job.CompletedAt,
		Tasks:               make([]TaskView, 0, len(snapshot.Tasks)),
	}
	if resp.PendingApprovalKeys == nil {
		resp.PendingApprovalKeys = []string{}
	}

	for _, task := range snapshot.Tasks {
		resp.Tasks = append(resp.Tasks, TaskView{
			Key:          task.Key,
			State:        string(task.State),
			ErrorMessage: task.ErrorMessage,
		})
	}

	return resp
}
