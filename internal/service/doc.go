// Package service contains the application use cases: task management with
// recurring completion, tag management and account authentication.
//
// Services coordinate the domain types with the store interfaces and own the
// transaction boundaries. Every write that reads before it writes runs inside
// store.RunInTransaction with row locks taken by the store, so concurrent
// status changes surface as ErrConcurrentUpdate instead of lost updates.
//
// Errors callers act on are returned as sentinels (this package's, store's
// not-found and duplicate errors, or domain validation errors). Anything else
// is wrapped in a ServiceError and logged.
//
// The subpackage auth provides token issuing, password hashing and token
// revocation.
package service
