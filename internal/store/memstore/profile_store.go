package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/store"
)

type profileStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.CompanyProfile
}

func (s *profileStore) init() {
	s.profiles = make(map[string]*domain.CompanyProfile)
}

// Persist upserts the profile for the domain; repeat invocations with
// the same arguments are safe.
func (s *profileStore) Persist(ctx context.Context, key string, profile *domain.CompanyProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *profile
	s.profiles[key] = &p

	return nil
}

func (s *profileStore) ListProfiles(ctx context.Context, limit, offset int) ([]*store.StoredProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	domains := make([]string, 0, len(s.profiles))
	for d := range s.profiles {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	if offset >= len(domains) {
		return nil, nil
	}
	domains = domains[offset:]
	if limit > 0 && limit < len(domains) {
		domains = domains[:limit]
	}

	result := make([]*store.StoredProfile, 0, len(domains))
	for _, d := range domains {
		p := *s.profiles[d]
		result = append(result, &store.StoredProfile{Domain: d, Profile: &p})
	}

	return result, nil
}

func (s *profileStore) CountProfiles(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.profiles), nil
}
