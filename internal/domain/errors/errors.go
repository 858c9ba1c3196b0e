package errors

import (
	"net/http"

	"tourplanner/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.details == "" {
		return e.message
	}

	return e.message + ": " + e.details
}

// Is matches errors sharing the same business code, so copies produced by
// WithDetails still compare equal to the predefined values.
func (e *BaseError) Is(target error) bool {
	other, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return e.errorCode == other.errorCode
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Predefined error types
var (
	// Road network and request references
	ErrInvalidReference = NewBaseError(
		http.StatusBadRequest,
		"INVALID_REFERENCE",
		"intersection or request id is not known",
		"",
	)

	ErrUnreachable = NewBaseError(
		http.StatusUnprocessableEntity,
		"UNREACHABLE",
		"no path between two required stops",
		"",
	)

	ErrInfeasible = NewBaseError(
		http.StatusUnprocessableEntity,
		"INFEASIBLE",
		"no ordering satisfies precedence and deadline constraints",
		"",
	)

	// Edit-related errors
	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"edit target is not part of the current tour",
		"",
	)

	ErrNothingToUndo = NewBaseError(
		http.StatusConflict,
		"NOTHING_TO_UNDO",
		"nothing to undo",
		"",
	)

	ErrNothingToRedo = NewBaseError(
		http.StatusConflict,
		"NOTHING_TO_REDO",
		"nothing to redo",
		"",
	)

	ErrPrecedenceViolation = NewBaseError(
		http.StatusUnprocessableEntity,
		"PRECEDENCE_VIOLATION",
		"a delivery would be visited before its pickup",
		"",
	)

	// Session-related errors
	ErrComputationInProgress = NewBaseError(
		http.StatusConflict,
		"COMPUTATION_IN_PROGRESS",
		"a tour computation is running",
		"",
	)

	ErrIllegalAction = NewBaseError(
		http.StatusConflict,
		"ILLEGAL_ACTION",
		"action is not allowed in the current phase",
		"",
	)

	ErrSessionNotFound = NewBaseError(
		http.StatusNotFound,
		"SESSION_NOT_FOUND",
		"session not found",
		"",
	)

	ErrSessionLimitReached = NewBaseError(
		http.StatusTooManyRequests,
		"SESSION_LIMIT_REACHED",
		"too many open sessions",
		"",
	)

	ErrNoTour = NewBaseError(
		http.StatusConflict,
		"NO_TOUR",
		"no tour has been computed yet",
		"",
	)

	// Input errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"input validation failed",
		"",
	)

	ErrLoadFailed = NewBaseError(
		http.StatusBadRequest,
		"LOAD_FAILED",
		"network or request description could not be loaded",
		"",
	)

	// General errors
	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"internal error",
		"",
	)
)
