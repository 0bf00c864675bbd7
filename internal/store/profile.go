package store

import (
	"context"

	"github.com/kmatteson/domainintel/internal/domain"
)

// ProfileSink durably stores an extracted company profile. Persist must
// be idempotent: re-invoking it with the same key and profile upserts
// rather than duplicates, so a retried persistence after a partial
// failure is always safe.
type ProfileSink interface {
	Persist(ctx context.Context, key string, profile *domain.CompanyProfile) error
}

// ProfileStore extends ProfileSink with read access for the companies
// listing endpoint.
type ProfileStore interface {
	ProfileSink

	// ListProfiles returns persisted profiles ordered by domain,
	// with limit/offset pagination.
	ListProfiles(ctx context.Context, limit, offset int) ([]*StoredProfile, error)

	// CountProfiles returns the total number of persisted profiles.
	CountProfiles(ctx context.Context) (int, error)
}

// StoredProfile pairs a persisted profile with its domain key.
type StoredProfile struct {
	Domain  string                 `json:"domain"`
	Profile *domain.CompanyProfile `json:"profile"`
}
