package gateway

import (
	"errors"
	"net/http"
)

// AuthReason says why a credential was rejected.
type AuthReason string

const (
	AuthMissing   AuthReason = "missing"
	AuthMalformed AuthReason = "malformed"
	AuthInvalid   AuthReason = "invalid"
)

// AuthError rejects a request credential (401).
type AuthError struct{ Reason AuthReason }

func (e AuthError) Error() string {
	switch e.Reason {
	case AuthMissing:
		return "Missing Authorization header"
	case AuthMalformed:
		return "Invalid Authorization header format"
	default:
		return "Invalid API key"
	}
}

func (e AuthError) StatusCode() int { return http.StatusUnauthorized }

// ValidationError reports a malformed or incomplete request (400).
type ValidationError struct{ Msg string }

func (e ValidationError) Error() string   { return e.Msg }
func (e ValidationError) StatusCode() int { return http.StatusBadRequest }

// notReadyError signals the engine has not finished loading (503).
type notReadyError struct{}

func (notReadyError) Error() string   { return "Model not initialized" }
func (notReadyError) StatusCode() int { return http.StatusServiceUnavailable }

// ErrNotReady is returned while the model is still loading.
var ErrNotReady error = notReadyError{}

// IsNotReady reports whether err indicates the engine is not loaded yet.
func IsNotReady(err error) bool {
	var nr notReadyError
	return errors.As(err, &nr)
}

// InferenceError wraps any fault raised by the engine during generation (500).
type InferenceError struct{ Err error }

func (e *InferenceError) Error() string   { return e.Err.Error() }
func (e *InferenceError) Unwrap() error   { return e.Err }
func (e *InferenceError) StatusCode() int { return http.StatusInternalServerError }

// IsInferenceError reports whether err came from a failed generation.
func IsInferenceError(err error) bool {
	var ie *InferenceError
	return errors.As(err, &ie)
}
