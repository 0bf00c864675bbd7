package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmatteson/domainintel/internal/domain"
)

func seedProfiles(t *testing.T, f *apiFixture, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		profile := &domain.CompanyProfile{}
		profile.CompanyInformation.CompanyName = fmt.Sprintf("Company %02d", i)
		key := fmt.Sprintf("company-%02d.com", i)
		require.NoError(t, f.store.Persist(context.Background(), key, profile))
	}
}

func TestListCompaniesEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	seedProfiles(t, f, 3)

	w := f.do(t, http.MethodGet, "/api/companies", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody[CompanyListResponse](t, w)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Companies, 3)
	assert.Equal(t, "company-00.com", resp.Companies[0].Domain)
	assert.Equal(t, "Company 00", resp.Companies[0].CompanyName)
}

func TestListCompaniesPagination(t *testing.T) {
	f := newAPIFixture(t)
	seedProfiles(t, f, 5)

	w := f.do(t, http.MethodGet, "/api/companies?limit=2&offset=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody[CompanyListResponse](t, w)
	assert.Equal(t, 5, resp.Total)
	require.Len(t, resp.Companies, 2)
	assert.Equal(t, "company-02.com", resp.Companies[0].Domain)
	assert.Equal(t, "company-03.com", resp.Companies[1].Domain)
}

func TestListCompaniesClampsBadParameters(t *testing.T) {
	f := newAPIFixture(t)
	seedProfiles(t, f, 2)

	for _, query := range []string{
		"?limit=0",
		"?limit=-5",
		"?limit=10000",
		"?limit=abc&offset=xyz",
		"?offset=-3",
	} {
		w := f.do(t, http.MethodGet, "/api/companies"+query, nil)
		require.Equal(t, http.StatusOK, w.Code, "query %s", query)
		resp := decodeBody[CompanyListResponse](t, w)
		assert.Len(t, resp.Companies, 2, "query %s", query)
	}
}

func TestListCompaniesEmpty(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/companies", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody[CompanyListResponse](t, w)
	assert.Zero(t, resp.Total)
	assert.NotNil(t, resp.Companies)
	assert.Empty(t, resp.Companies)
}
