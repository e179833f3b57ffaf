// internal/app/system/apierr/apierr.go
//
// Package apierr is the error vocabulary for the JSON API. Handlers and
// stores return *Error values with a Kind; the render helpers map kinds
// to HTTP statuses and emit a consistent {"error": ..., "kind": ...}
// body. Unknown errors render as a generic 500 without leaking detail.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Kind classifies an API error for status mapping and client handling.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindUnauthenticated  Kind = "unauthenticated"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindExpired          Kind = "expired"
	KindTransferRequired Kind = "transfer_required"
	KindDependency       Kind = "dependency_failure"
)

// Error is an API-visible error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, not rendered to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind via sentinel-style comparisons.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func Validation(msg string) *Error       { return &Error{Kind: KindValidation, Message: msg} }
func Unauthenticated(msg string) *Error  { return &Error{Kind: KindUnauthenticated, Message: msg} }
func Forbidden(msg string) *Error        { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error         { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error         { return &Error{Kind: KindConflict, Message: msg} }
func Expired(msg string) *Error          { return &Error{Kind: KindExpired, Message: msg} }
func TransferRequired(msg string) *Error { return &Error{Kind: KindTransferRequired, Message: msg} }

// Dependency wraps an upstream failure (catalog lookups, SMTP) with a
// client-safe message.
func Dependency(msg string, err error) *Error {
	return &Error{Kind: KindDependency, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to its response status. Errors without a
// Kind map to 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindTransferRequired:
		return http.StatusConflict
	case KindExpired:
		return http.StatusGone
	case KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind,omitempty"`
}

// Render writes err as a JSON error response. Internal errors are
// logged and masked with a generic message.
func Render(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	body := errorBody{Error: "Something went wrong.", Kind: ""}

	var e *Error
	if errors.As(err, &e) {
		body.Error = e.Message
		body.Kind = e.Kind
	}
	if status >= http.StatusInternalServerError || KindOf(err) == KindDependency {
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}

	WriteJSON(w, status, body)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response failed", zap.Error(err))
	}
}

// DecodeJSON decodes a request body into dst, rejecting bodies over
// maxBytes. Malformed JSON comes back as a validation error.
func DecodeJSON(r *http.Request, dst any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return Validation("Invalid request body.")
	}
	return nil
}
