package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/service"
	"github.com/kmatteson/domainintel/internal/store/memstore"
)

type apiFixture struct {
	router *chi.Mux
	store  *memstore.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := memstore.New()
	jobService := service.NewJobService(s, s, s, logger)
	approvalService := service.NewApprovalService(s, s, logger)

	jobHandler := NewJobHandler(jobService)
	approvalHandler := NewApprovalHandler(approvalService)
	companyHandler := NewCompanyHandler(s)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", jobHandler.CreateJob)
		r.Post("/jobs/csv", jobHandler.CreateJobFromCSV)
		r.Get("/jobs/{id}", jobHandler.GetJob)
		r.Get("/jobs/{id}/approvals", approvalHandler.ListApprovals)
		r.Post("/jobs/{id}/approvals", approvalHandler.ResolveApproval)
		r.Get("/companies", companyHandler.ListCompanies)
	})

	return &apiFixture{router: r, store: s}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateJobEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/jobs",
		CreateJobRequest{Domains: []string{"https://Example.com/about", "other.org"}})

	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decodeBody[JobCreatedResponse](t, w)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, string(domain.JobStatusPending), resp.Status)
	assert.Equal(t, []string{"example.com", "other.org"}, resp.TaskKeys)
	assert.Equal(t, 2, resp.Total)
}

func TestCreateJobEndpointRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader("{nope"))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing domains", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/jobs", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no valid domains", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/jobs", CreateJobRequest{Domains: []string{"", "  "}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateJobFromCSVEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("headerless takes every field", func(t *testing.T) {
		csvBody := "example.com,other.org\nthird.net\n,\n"
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/csv", strings.NewReader(csvBody))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusAccepted, w.Code)
		resp := decodeBody[JobCreatedResponse](t, w)
		assert.ElementsMatch(t, []string{"example.com", "other.org", "third.net"}, resp.TaskKeys)
	})

	t.Run("header selects the domain column", func(t *testing.T) {
		csvBody := "name,Domain,city\nAcme,acme.com,Leeds\nGlobex,globex.co.uk,York\n"
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/csv", strings.NewReader(csvBody))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusAccepted, w.Code)
		resp := decodeBody[JobCreatedResponse](t, w)
		assert.Equal(t, []string{"acme.com", "globex.co.uk"}, resp.TaskKeys)
	})

	t.Run("empty document", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/csv", strings.NewReader(""))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetJobEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	created := decodeBody[JobCreatedResponse](t,
		f.do(t, http.MethodPost, "/api/jobs", CreateJobRequest{Domains: []string{"a.com", "b.com"}}))

	w := f.do(t, http.MethodGet, "/api/jobs/"+created.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeBody[JobStatusResponse](t, w)
	assert.Equal(t, string(domain.JobStatusPending), status.Status)
	assert.Equal(t, 2, status.Total)
	assert.NotNil(t, status.PendingApprovalKeys)
	assert.Len(t, status.Tasks, 2)

	// Drive the tasks to completion through the store and read again.
	claimed, err := f.store.Claim(ctx, 2, "w1")
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	require.NoError(t, f.store.Report(ctx, "a.com", "w1", domain.TaskStateDone, json.RawMessage(`{}`), ""))
	require.NoError(t, f.store.Report(ctx, "b.com", "w1", domain.TaskStateFailed, nil, "dns failure"))

	w = f.do(t, http.MethodGet, "/api/jobs/"+created.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status = decodeBody[JobStatusResponse](t, w)
	assert.Equal(t, string(domain.JobStatusCompleted), status.Status)
	assert.Equal(t, 1, status.Completed)
	assert.Equal(t, 1, status.Failed)

	var failedView *TaskView
	for i := range status.Tasks {
		if status.Tasks[i].Key == "b.com" {
			failedView = &status.Tasks[i]
		}
	}
	require.NotNil(t, failedView)
	assert.Equal(t, "dns failure", failedView.ErrorMessage)
}

func TestGetJobEndpointErrors(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/jobs/7f9c24e5-2c37-4b52-8d7b-90e1a9f0c123", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
