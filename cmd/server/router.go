package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kmatteson/domainintel/internal/api"
	apiMiddleware "github.com/kmatteson/domainintel/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	// Create API handlers using the application's services
	jobHandler := api.NewJobHandler(app.jobService)
	approvalHandler := api.NewApprovalHandler(app.approvalService)
	companyHandler := api.NewCompanyHandler(app.profileStore)
	workerHandler := api.NewWorkerHandler(app.pool.Progress())

	// Register routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", jobHandler.CreateJob)
		r.Post("/jobs/csv", jobHandler.CreateJobFromCSV)
		r.Get("/jobs/{id}", jobHandler.GetJob)

		r.Get("/jobs/{id}/approvals", approvalHandler.ListApprovals)
		r.Post("/jobs/{id}/approvals", approvalHandler.ResolveApproval)

		r.Get("/companies", companyHandler.ListCompanies)
		r.Get("/workers", workerHandler.ListWorkers)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
