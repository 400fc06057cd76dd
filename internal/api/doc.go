// Package api handles incoming HTTP requests for tasks, tags and accounts.
// Handlers decode and validate JSON, call the services, and map service
// errors to status codes through HandleAPIError.
//
// Listings are paginated with absolute next and previous links. Partial
// updates distinguish absent keys from explicit nulls with Nullable.
package api
