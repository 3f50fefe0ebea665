// Package errors provides the typed error taxonomy for the VPA pipeline and
// its collaborators.
//
// The core pipeline itself never raises on adverse market conditions —
// DegenerateInput is handled locally (relative measures fall back to 0,
// dependent rules simply don't fire, the risk engine rejects with a
// reason string) and GateBlock/RiskReject are plain struct fields, not
// errors. VPAError exists for the boundary failures that do need to
// propagate: bad config, missing history, and collaborator I/O.
package errors

import (
	"fmt"
	"strings"
)

// ErrorCategory is the closed set of VPA error categories.
type ErrorCategory string

const (
	// ErrorCategoryConfig covers missing files, invalid JSON, and schema violations.
	ErrorCategoryConfig ErrorCategory = "CONFIG"
	// ErrorCategoryInsufficientData covers feature/context requests on an empty or too-short history.
	ErrorCategoryInsufficientData ErrorCategory = "INSUFFICIENT_DATA"
	// ErrorCategoryDegenerate covers locally-handled degenerate input (range=0, non-positive baseline).
	ErrorCategoryDegenerate ErrorCategory = "DEGENERATE"
	// ErrorCategoryStore covers bar-store I/O failures (out of the core pipeline).
	ErrorCategoryStore ErrorCategory = "STORE"
	// ErrorCategoryExecution covers execution-ledger I/O failures (out of the core pipeline).
	ErrorCategoryExecution ErrorCategory = "EXECUTION"
)

// VPAError is a categorized error with operator-facing context.
type VPAError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface.
func (e *VPAError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Component, e.Operation, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *VPAError) Unwrap() error {
	return e.Underlying
}

// Fatal reports whether this category should abort the caller rather than
// be retried (per spec §7: ConfigError is fatal at load).
func (e *VPAError) Fatal() bool {
	return e.Category == ErrorCategoryConfig
}

// WithContext attaches a diagnostic key/value to the error and returns it
// for chaining.
func (e *VPAError) WithContext(key string, value interface{}) *VPAError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewConfigError builds a ConfigError: missing file, invalid JSON, or
// schema violation. Fatal at load per spec §7.
func NewConfigError(component, operation string, err error) *VPAError {
	return &VPAError{
		Category:   ErrorCategoryConfig,
		Component:  component,
		Operation:  operation,
		Message:    "configuration error",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// NewInsufficientDataError builds an InsufficientDataError: features or
// context requested on an empty history. Per spec §7, within the
// pipeline orchestrator this is handled by returning an empty
// PipelineResult rather than surfacing the error — this constructor is
// for boundary callers (CLI, tests) that request features directly.
func NewInsufficientDataError(component, operation string) *VPAError {
	return &VPAError{
		Category:  ErrorCategoryInsufficientData,
		Component: component,
		Operation: operation,
		Message:   "insufficient history for this operation",
		Context:   make(map[string]interface{}),
	}
}

// WrapStoreError wraps a bar-store I/O failure. Never reaches the core pipeline.
func WrapStoreError(component, operation string, err error) *VPAError {
	if err == nil {
		return nil
	}
	return &VPAError{
		Category:   ErrorCategoryStore,
		Component:  component,
		Operation:  operation,
		Message:    "bar store operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// WrapExecutionError wraps an execution-ledger I/O failure. Never reaches the core pipeline.
func WrapExecutionError(component, operation string, err error) *VPAError {
	if err == nil {
		return nil
	}
	return &VPAError{
		Category:   ErrorCategoryExecution,
		Component:  component,
		Operation:  operation,
		Message:    "execution ledger operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// CategorizeError classifies a generic error from a collaborator by
// sniffing its message, mirroring the teacher's string-based classifier
// for cases where the caller didn't construct a typed VPAError directly.
func CategorizeError(err error, component, operation string) *VPAError {
	if err == nil {
		return nil
	}
	if vpaErr, ok := err.(*VPAError); ok {
		return vpaErr
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "config") || strings.Contains(msg, "schema"):
		return NewConfigError(component, operation, err)
	case strings.Contains(msg, "insufficient") || strings.Contains(msg, "not enough"):
		return NewInsufficientDataError(component, operation).WithContext("underlying", err.Error())
	case strings.Contains(msg, "store") || strings.Contains(msg, "sqlite") || strings.Contains(msg, "database"):
		return WrapStoreError(component, operation, err)
	default:
		return WrapExecutionError(component, operation, err)
	}
}
