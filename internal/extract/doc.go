// Package extract defines the interface for turning fetched website
// content into structured company profiles. This interface serves as a
// boundary between the application core and external AI/LLM services,
// following the hexagonal architecture pattern.
package extract
