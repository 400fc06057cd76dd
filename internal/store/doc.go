// Package store defines the persistence interfaces for users, tasks and tags,
// the shared store errors, and transaction helpers. Implementations live in
// internal/platform/postgres.
package store
