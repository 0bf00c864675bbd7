// Package postgres provides PostgreSQL-backed implementations of the
// store contracts. The task table is the durable queue: claiming uses
// FOR UPDATE SKIP LOCKED inside one transaction, and report/reclaim use
// conditional single-statement updates, so every task-state transition
// is serialized at the row level.
package postgres
