package api

import (
	"net/http"

	"github.com/kmatteson/domainintel/internal/api/shared"
	"github.com/kmatteson/domainintel/internal/worker"
)

// WorkerHandler exposes the pool's advisory progress for operators.
type WorkerHandler struct {
	progress *worker.Progress
}

// NewWorkerHandler creates a new WorkerHandler
func NewWorkerHandler(progress *worker.Progress) *WorkerHandler {
	return &WorkerHandler{progress: progress}
}

// ListWorkers handles GET /api/workers requests. The data is advisory
// only and never consulted by the coordination logic.
func (h *WorkerHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.progress.Snapshot())
}
