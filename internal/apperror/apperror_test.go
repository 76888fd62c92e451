package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{InvalidChoice(7, 4), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{AlreadyAnswered(3), http.StatusConflict},
		{Conflict("dup"), http.StatusConflict},
		{Unauthorized("who"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{RateLimited("slow down"), http.StatusTooManyRequests},
		{Provider(errors.New("timeout")), http.StatusBadGateway},
		{Persistence("save", errors.New("disk")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("record answer: %w", AlreadyAnswered(9))
	assert.Equal(t, KindAlreadyAnswered, KindOf(err))
	assert.True(t, Is(err, KindAlreadyAnswered))
	assert.Equal(t, Kind(""), KindOf(errors.New("x")))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(Validation("x")))
	assert.True(t, IsValidation(InvalidChoice(-1, 4)))
	assert.False(t, IsValidation(NotFound("x")))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "question 3 has already been answered", PublicMessage(AlreadyAnswered(3)))
	assert.Equal(t, "internal server error", PublicMessage(Persistence("save question", errors.New("pq: connection refused"))))
	assert.Equal(t, "internal server error", PublicMessage(errors.New("boom")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := Provider(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "question provider failed: timeout", err.Error())
}
