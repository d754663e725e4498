package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnauthorized matches any HTTPError with status 401 via errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// NetworkError indicates the request produced no HTTP response at all
// (connection failure, timeout, cancelled context).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx response. Body holds the raw response body;
// Message is the server-provided human message when the body carried one.
type HTTPError struct {
	Status  int
	Body    []byte
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// Is reports ErrUnauthorized for 401 responses so callers can use errors.Is
// without inspecting the status themselves.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == 401
}

// serverMessage extracts the "error" or "message" field from a JSON error
// body. Returns "" if the body is not JSON or carries neither field.
func serverMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
