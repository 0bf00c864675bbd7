// Package gemini implements the extract.Extractor interface using
// Google's Gemini API. The extractor builds a structured-output prompt
// from the cleaned website text, calls the API with exponential-backoff
// retries for transient errors, and parses the JSON response into a
// domain.CompanyProfile.
package gemini
