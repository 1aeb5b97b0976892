package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput:       http.StatusBadRequest,
		CodeQuotaExceeded:      http.StatusBadRequest,
		CodeEngagementRequired: http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeConflict:           http.StatusConflict,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus(), code)
	}
}

func TestFromKeepsClassifiedErrors(t *testing.T) {
	inner := New(CodeNotFound, "Task not found")
	got := From(fmt.Errorf("lookup: %w", inner))
	assert.Same(t, inner, got)
}

func TestFromHidesUnclassifiedErrors(t *testing.T) {
	cause := errors.New("pq: connection refused")
	got := From(cause)
	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, "Internal server error", got.Message)
	assert.ErrorIs(t, got, cause)
}
