package extract

import (
	"context"

	"github.com/kmatteson/domainintel/internal/domain"
	"github.com/kmatteson/domainintel/internal/fetch"
)

// Extractor defines the interface for extracting a structured company
// profile from fetched website content.
type Extractor interface {
	// Extract builds a CompanyProfile from the given content.
	// It returns a profile or an error if extraction fails (see
	// errors.go for the specific error types).
	Extract(ctx context.Context, content *fetch.Content) (*domain.CompanyProfile, error)
}
