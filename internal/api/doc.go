// Package api contains the HTTP handlers for the coordination layer:
// job submission and status, approval resolution, persisted company
// profiles, and advisory worker progress. Handlers translate between
// JSON requests/responses and the service layer; they hold no
// coordination logic of their own.
package api
