// Package errors defines stable error codes for the naming engine.
//
// Note that element lookups that simply miss are not errors at the public
// API: resolvers return empty results for those. The codes here cover the
// conditions that do need to be told apart by the CLI and the store layer.
package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ElementNotFound indicates a sub-element reference that resolves to nothing
	ElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	// LineageLost indicates a history walk that hit a deleted producing feature
	LineageLost ErrorCode = "LINEAGE_LOST"
	// ElementCycle indicates a circular generation record during tracing
	ElementCycle ErrorCode = "ELEMENT_CYCLE"
	// TraceTooDeep indicates a link or lineage walk exceeding its depth bound
	TraceTooDeep ErrorCode = "TRACE_TOO_DEEP"
	// KernelFailure indicates the geometry kernel failed a transform or comparison
	KernelFailure ErrorCode = "KERNEL_FAILURE"
	// DocNotFound indicates an unknown document name or id
	DocNotFound ErrorCode = "DOC_NOT_FOUND"
	// ObjectNotFound indicates an unknown object name or tag
	ObjectNotFound ErrorCode = "OBJECT_NOT_FOUND"
	// ObjectDeleted indicates a tag that resolves to a deleted object
	ObjectDeleted ErrorCode = "OBJECT_DELETED"
	// DependencyCycle indicates the feature graph is not a DAG
	DependencyCycle ErrorCode = "DEPENDENCY_CYCLE"
	// StoreCorrupt indicates an unreadable persisted document
	StoreCorrupt ErrorCode = "STORE_CORRUPT"
	// SceneInvalid indicates a scene file that fails validation
	SceneInvalid ErrorCode = "SCENE_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// TopoError represents a topo error with a stable code and message
type TopoError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// New creates a new TopoError
func New(code ErrorCode, message string, cause error) *TopoError {
	return &TopoError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a new TopoError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *TopoError {
	return &TopoError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface
func (e *TopoError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TopoError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *TopoError) WithDetails(details interface{}) *TopoError {
	e.Details = details
	return e
}

// CodeOf extracts the error code from err, or InternalError if err is not a
// TopoError.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var te *TopoError
	for e := err; e != nil; {
		if t, ok := e.(*TopoError); ok {
			te = t
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if te == nil {
		return InternalError
	}
	return te.Code
}
