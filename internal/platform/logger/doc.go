// Package logger provides structured logging functionality for the application.
//
// Loggers are JSON slog loggers. Request handlers carry a logger enriched with
// trace and user identifiers in the request context; see WithLogger and
// FromContext.
package logger
