package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/platform/logger"
	"github.com/kmatteson/domainintel/internal/store"
)

// PostgresProfileStore implements store.ProfileStore using PostgreSQL.
// One row per domain; the full profile lives in a JSONB column with a
// few extracted columns for listing. The upsert makes Persist
// idempotent: re-persisting the same domain overwrites rather than
// duplicates.
type PostgresProfileStore struct {
	db store.DBTX
}

// NewPostgresProfileStore creates a new PostgresProfileStore.
func NewPostgresProfileStore(db store.DBTX) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

// Persist upserts the extracted profile for the domain.
func (s *PostgresProfileStore) Persist(ctx context.Context, key string, profile *domain.CompanyProfile) error {
	log := logger.FromContext(ctx)

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
		INSERT INTO company_profiles (domain, company_name, industry, profile, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (domain) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			industry = EXCLUDED.industry,
			profile = EXCLUDED.profile,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		key,
		profile.CompanyName(),
		profile.DescriptionIndustry.Industry,
		data,
		time.Now().UTC(),
	)
	if err != nil {
		log.Error("failed to persist company profile",
			"domain", key,
			"error", err)
		return fmt.Errorf("failed to persist company profile: %w", MapError(err))
	}

	return nil
}

// ListProfiles returns persisted profiles ordered by domain.
func (s *PostgresProfileStore) ListProfiles(ctx context.Context, limit, offset int) ([]*store.StoredProfile, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT domain, profile
		FROM company_profiles
		ORDER BY domain ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		log.Error("failed to list company profiles", "error", err)
		return nil, fmt.Errorf("failed to list company profiles: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var profiles []*store.StoredProfile
	for rows.Next() {
		var sp store.StoredProfile
		var data []byte
		if err := rows.Scan(&sp.Domain, &data); err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}

		var profile domain.CompanyProfile
		if err := json.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile for %s: %w", sp.Domain, err)
		}
		sp.Profile = &profile
		profiles = append(profiles, &sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}

	return profiles, nil
}

// CountProfiles returns the total number of persisted profiles.
func (s *PostgresProfileStore) CountProfiles(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM company_profiles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count company profiles: %w", MapError(err))
	}

	return count, nil
}
