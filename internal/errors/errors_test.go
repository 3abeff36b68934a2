package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_UnwrapAndAs(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := fmt.Errorf("publish: %w", RegistrationTransient("Registration authority unavailable", cause))

	var apiErr *APIError
	assert.True(t, stdErrors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.True(t, apiErr.Retryable)
	assert.True(t, stdErrors.Is(err, cause))
	assert.Equal(t, "Registration authority unavailable: boom", apiErr.Error())
}

func TestGuardErrorsAreNotRetryable(t *testing.T) {
	for _, e := range []*APIError{
		InvalidTransition("nope"),
		AlreadyClosed("closed"),
		AlreadyWithdrawn("gone"),
		RegistrationPermanent("rejected", nil),
		NewValidationError(nil),
	} {
		assert.False(t, e.Retryable, e.Code)
	}
}

func TestWithMessage_Copies(t *testing.T) {
	orig := NotFound("Version not found", nil)
	other := orig.WithMessage("Publication not found")
	assert.Equal(t, "Version not found", orig.Message)
	assert.Equal(t, "Publication not found", other.Message)
	assert.Equal(t, CodeNotFound, other.Code)
}
