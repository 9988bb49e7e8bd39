package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorKinds(t *testing.T) {
	tests := []struct {
		err    *AppError
		target error
		status int
	}{
		{NotFound("Poll not found"), ErrNotFound, http.StatusNotFound},
		{Forbidden("nope"), ErrForbidden, http.StatusForbidden},
		{Conflict("twice"), ErrConflict, http.StatusConflict},
		{Validationf("bad %d", 1), ErrValidation, http.StatusBadRequest},
		{WrapError(errors.New("disk"), "save"), ErrInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.target)
			assert.Equal(t, tt.status, tt.err.Code)

			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.target)
			assert.Same(t, tt.err, AsAppError(wrapped))
		})
	}
	assert.NotErrorIs(t, NotFound("x"), ErrConflict)
}

func TestAsAppError(t *testing.T) {
	assert.Nil(t, AsAppError(nil))

	cause := errors.New("connection reset")
	got := AsAppError(cause)
	require.NotNil(t, got)
	assert.Equal(t, KindInternal, got.Kind)
	assert.Equal(t, "Internal server error", got.Message)
	assert.ErrorIs(t, got, cause)
}

func TestWithCauseCopies(t *testing.T) {
	base := NotFound("Comment not found")
	withCause := base.WithCause(errors.New("record not found"))

	assert.Nil(t, base.Unwrap())
	assert.Equal(t, "not_found: Comment not found", base.Error())
	assert.Equal(t, "not_found: Comment not found: record not found", withCause.Error())
}
