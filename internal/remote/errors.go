package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxErrorBody bounds how much of a failed response body is read.
const maxErrorBody = 64 << 10

// ErrTransport indicates the request never completed (DNS, dial, TLS, reset,
// context cancellation). No status code is available.
var ErrTransport = errors.New("remote: transport failure")

// StatusError is a failure reported by the service through a non-2xx status.
// Message is the human-readable text extracted from the body, or a
// status-derived fallback.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

// errorShape extracts a human-readable message from a decoded error body.
// It returns "" when the body does not have this shape.
type errorShape struct {
	name    string
	extract func(body map[string]json.RawMessage) string
}

// errorShapes are tried in order; the first non-empty message wins.
var errorShapes = []errorShape{
	{name: "message", extract: fieldMessage("message")},
	{name: "detail", extract: fieldMessage("detail")},
}

// fieldMessage returns an extractor for a top-level field. Strings are used
// as-is; any other non-null value (e.g. a list of validation errors) is
// rendered as compact JSON.
func fieldMessage(field string) func(map[string]json.RawMessage) string {
	return func(body map[string]json.RawMessage) string {
		raw, ok := body[field]
		if !ok {
			return ""
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		trimmed := bytes.TrimSpace(raw)
		switch string(trimmed) {
		case "", "null", "false", "0", `""`:
			return ""
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return ""
		}
		return compact.String()
	}
}

// normalizeError builds a *StatusError from a failed response. Bodies that
// are not JSON objects, or that match no known shape, yield the generic
// status message.
func normalizeError(status int, body io.Reader) *StatusError {
	se := &StatusError{
		Status:  status,
		Message: fmt.Sprintf("request failed with status %d", status),
	}

	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return se
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		return se
	}

	for _, shape := range errorShapes {
		if msg := shape.extract(decoded); msg != "" {
			se.Message = msg
			return se
		}
	}
	return se
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not
// a *StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
