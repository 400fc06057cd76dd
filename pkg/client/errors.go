package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrTransport is returned when the server could not be reached or the
	// connection failed mid-request. Retrying later may succeed.
	ErrTransport = errors.New("could not reach the server, try again")

	// ErrUnauthorized is returned when the stored tokens are missing or
	// rejected and a refresh did not help. Stored tokens are cleared.
	ErrUnauthorized = errors.New("not logged in or session expired")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
	// Fields maps request fields to validation messages. Only set for 400s.
	Fields  map[string]string
	TraceID string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", e.Status, e.Message)
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+": "+e.Fields[name])
		}
		b.WriteString(" (" + strings.Join(parts, "; ") + ")")
	}
	return b.String()
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports whether err is a 409 from the server.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type errorBody struct {
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
	TraceID string            `json:"trace_id"`
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		e.Message, e.Fields, e.TraceID = parsed.Error, parsed.Fields, parsed.TraceID
		return e
	}
	e.Message = genericMessage(status)
	return e
}

func genericMessage(status int) string {
	switch {
	case status >= 500:
		return "The server had a problem, try again later"
	case status == http.StatusTooManyRequests:
		return "Too many requests, slow down"
	case status == http.StatusNotFound:
		return "Not found"
	default:
		return "Request failed"
	}
}
