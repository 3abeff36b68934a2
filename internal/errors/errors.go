package errors

import (
	"net/http"
)

// Error codes returned to API callers.
const (
	CodeInvalidTransition     = "invalid_transition"
	CodeValidation            = "validation_error"
	CodeBadRequest            = "bad_request"
	CodeUnauthorized          = "unauthorized"
	CodeForbidden             = "forbidden"
	CodeNotFound              = "not_found"
	CodeConflict              = "conflict"
	CodeAlreadyClosed         = "already_closed"
	CodeAlreadyWithdrawn      = "already_withdrawn"
	CodeRegistrationTransient = "registration_transient"
	CodeRegistrationPermanent = "registration_permanent"
	CodeInternal              = "internal_error"
)

// APIError represents an application error
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"error"`
	Retryable bool   `json:"retryable"`
	Internal  error  `json:"-"`
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

// Unwrap returns the original error
func (e *APIError) Unwrap() error {
	return e.Internal
}

// WithMessage returns a copy of the APIError with a custom message
func (e *APIError) WithMessage(msg string) *APIError {
	c := *e
	c.Message = msg
	return &c
}

func New(status int, code, message string, err error) *APIError {
	return &APIError{
		Status:   status,
		Code:     code,
		Message:  message,
		Internal: err,
	}
}

func BadRequest(msg string, err error) *APIError {
	return New(http.StatusBadRequest, CodeBadRequest, msg, err)
}

func Unauthorized(msg string, err error) *APIError {
	return New(http.StatusUnauthorized, CodeUnauthorized, msg, err)
}

func Forbidden(msg string, err error) *APIError {
	return New(http.StatusForbidden, CodeForbidden, msg, err)
}

func NotFound(msg string, err error) *APIError {
	return New(http.StatusNotFound, CodeNotFound, msg, err)
}

func Conflict(msg string, err error) *APIError {
	return New(http.StatusConflict, CodeConflict, msg, err)
}

func UnprocessableEntity(msg string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, CodeValidation, msg, err)
}

// NewValidationError wraps a binding or validation failure.
func NewValidationError(err error) *APIError {
	return UnprocessableEntity("Validation failed", err)
}

// InvalidTransition is returned when a status change is not legal from the current state.
func InvalidTransition(msg string) *APIError {
	return New(http.StatusConflict, CodeInvalidTransition, msg, nil)
}

func AlreadyClosed(msg string) *APIError {
	return New(http.StatusConflict, CodeAlreadyClosed, msg, nil)
}

func AlreadyWithdrawn(msg string) *APIError {
	return New(http.StatusConflict, CodeAlreadyWithdrawn, msg, nil)
}

// RegistrationTransient reports an authority failure that is worth retrying later.
func RegistrationTransient(msg string, err error) *APIError {
	e := New(http.StatusServiceUnavailable, CodeRegistrationTransient, msg, err)
	e.Retryable = true
	return e
}

// RegistrationPermanent reports an authority rejection that will not succeed on retry.
func RegistrationPermanent(msg string, err error) *APIError {
	return New(http.StatusBadGateway, CodeRegistrationPermanent, msg, err)
}

func Internal(err error) *APIError {
	return New(http.StatusInternalServerError, CodeInternal, "Internal server error", err)
}
