// Package store persists runner identities, results, and review entries in
// SQLite and exposes the transactional operations the resolution engine
// builds on.
//
// Three tables mirror the engine's data model: runners (canonical
// identities, never deleted), results (immutable imported rows, unique per
// source provider + source result id), and runner_matches (the review
// queue plus the auto-match audit trail). Review statuses only move
// forward: pending -> approved | rejected; auto_matched entries are
// terminal from creation.
//
// Every resolution outcome is written in a single transaction so a storage
// failure never leaves a half-linked result or an orphaned review entry.
// Treat this package as the single source of truth for persistence
// semantics; schema changes go into schema.sql with a version bump.
package store
