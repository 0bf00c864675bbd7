// Package service contains the application services coordinating the
// store contracts: job submission and aggregation, and the approval
// gate between extraction and durable persistence. Services recompute
// derived state from the stores rather than maintaining separate
// mutable counters, so the task store stays the single source of truth.
package service
