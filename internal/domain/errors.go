package domain

import (
	"errors"
	"fmt"
)

// APIError is returned for any non-2xx response from the weather provider
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("city not found or API error: %d", e.StatusCode)
}

// TransportError covers network failures and undecodable bodies.
// The message stays generic; the cause is kept for logs.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "could not reach weather service"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the provider status from err, or 0 when there is none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
