package gemini

import "errors"

// Errors specific to the Gemini extractor. Callers usually match on the
// extract package sentinels these wrap alongside.
var (
	// ErrEmptyContentText is returned when the content to extract from
	// has no text.
	ErrEmptyContentText = errors.New("content text cannot be empty")

	// ErrNilClient is returned when the Gemini client is not initialized.
	ErrNilClient = errors.New("gemini client is not initialized")
)
