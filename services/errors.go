package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
)

// ValidationError carries per-field messages that the caller can correct and resubmit.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records message for field; the first message per field wins.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// OrNil returns nil when no field failed so callers can `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UpstreamUnavailableError means an external service could not be reached or is not configured.
type UpstreamUnavailableError struct {
	Service string
	Err     error
}

func (e *UpstreamUnavailableError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UpstreamRejectedError is a non-success response; Message is the upstream's own text.
type UpstreamRejectedError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *UpstreamRejectedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s responded with status %d: %s", e.Service, e.StatusCode, e.Message)
}
