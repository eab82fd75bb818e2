package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for run control flow.
type ErrorClass string

const (
	// ErrorClassConstruction indicates a provider could not be built from
	// its manifest. Construction errors abort the whole run.
	ErrorClassConstruction ErrorClass = "construction"

	// ErrorClassProviderRuntime indicates a provider failed while dumping
	// or planning. The engine warns and continues with other providers.
	ErrorClassProviderRuntime ErrorClass = "provider_runtime"

	// ErrorClassExternal indicates an external command or remote operation
	// failed. Surfaced as a per-operation result, not a run failure.
	ErrorClassExternal ErrorClass = "external"

	// ErrorClassValidation indicates invalid configuration, manifests, or
	// state documents.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassInternal indicates a broken engine invariant.
	ErrorClassInternal ErrorClass = "internal"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification driving run control flow.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Provider is the provider involved, if applicable.
	Provider string `json:"provider,omitempty"`

	// Fragment is the state fragment involved, if applicable.
	Fragment string `json:"fragment,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Provider != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (provider=%s, operation=%s): %s",
			e.Class, e.Message, e.Provider, e.Operation, e.unwrapMessage())
	}
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s (provider=%s): %s",
			e.Class, e.Message, e.Provider, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// unwrapMessage returns the error message from the underlying error chain.
func (e *EngineError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewConstructionError creates a new provider construction error.
func NewConstructionError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassConstruction,
		Message: message,
		Err:     err,
	}
}

// NewProviderRuntimeError creates a new provider runtime error.
func NewProviderRuntimeError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassProviderRuntime,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external operation error.
func NewExternalError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassExternal,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassValidation,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassInternal,
		Message: message,
		Err:     err,
	}
}

// WithProvider adds provider context to an error.
func (e *EngineError) WithProvider(provider string) *EngineError {
	e.Provider = provider
	return e
}

// WithFragment adds fragment context to an error.
func (e *EngineError) WithFragment(fragment string) *EngineError {
	e.Fragment = fragment
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsConstruction returns true if the error is classified as a construction error.
func IsConstruction(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConstruction
	}
	return false
}

// IsProviderRuntime returns true if the error is classified as a provider runtime error.
func IsProviderRuntime(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassProviderRuntime
	}
	return false
}

// IsExternal returns true if the error is classified as an external operation error.
func IsExternal(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassExternal
	}
	return false
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassValidation
	}
	return false
}

// IsInternal returns true if the error is classified as an internal error.
func IsInternal(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassInternal
	}
	return false
}

// IsFatal returns true if the error must abort the run.
// Construction, validation, and internal errors are fatal; provider
// runtime and external failures degrade to warnings or per-action results.
func IsFatal(err error) bool {
	return IsConstruction(err) || IsValidation(err) || IsInternal(err)
}

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeCommandFailed    = "COMMAND_FAILED"
	ErrCodeProviderFailed   = "PROVIDER_FAILED"
	ErrCodeFragmentConflict = "FRAGMENT_CONFLICT"
	ErrCodePolicyDenied     = "POLICY_DENIED"
	ErrCodeLockHeld         = "LOCK_HELD"
	ErrCodeInternal         = "INTERNAL_ERROR"
)
