package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for well-known failure conditions that cross package
// boundaries. Callers should use [errors.Is] to match these.
var (
	// ErrUnauthorized indicates the server rejected the access credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotAuthenticated means no credential pair is stored locally.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired means the credential could not be refreshed and the
	// session was forcibly cleared.
	ErrSessionExpired = errors.New("session expired")
)

// Error is a structured error decoded from an API response body.
type Error struct {
	Status int    // HTTP status code
	Detail string // server-provided detail message
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("api error (status %d)", e.Status)
}

// Is reports 401 responses as [ErrUnauthorized] so callers can match with
// errors.Is without inspecting status codes.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// IsUnauthorized reports whether err represents a rejected credential.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
