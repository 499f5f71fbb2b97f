package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: NewError("no record").Mark(ErrNotFound), want: http.StatusNotFound},
		{name: "version conflict", err: NewError("stale").Mark(ErrVersionConflict), want: http.StatusConflict},
		{name: "validation", err: NewError("bad").Mark(ErrValidation), want: http.StatusBadRequest},
		{name: "invalid operation", err: NewError("nope").Mark(ErrInvalidOperation), want: http.StatusBadRequest},
		{name: "unauthenticated", err: NewError("who").Mark(ErrUnauthenticated), want: http.StatusUnauthorized},
		{name: "permission denied", err: NewError("no").Mark(ErrPermissionDenied), want: http.StatusForbidden},
		{name: "provider", err: NewError("down").Mark(ErrHTTPClient), want: http.StatusBadGateway},
		{name: "unclassified", err: fmt.Errorf("plain"), want: http.StatusInternalServerError},
		{name: "wrapped", err: fmt.Errorf("outer: %w", NewError("no record").Mark(ErrNotFound)), want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromErr(tt.err))
		})
	}
}

func TestClassifiers(t *testing.T) {
	err := WithError(fmt.Errorf("boom")).WithHint("Try again").Mark(ErrVersionConflict)

	assert.True(t, IsVersionConflict(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.True(t, Is(err, ErrVersionConflict))
}

func TestNewErrorResponse(t *testing.T) {
	err := NewError("record missing").
		WithHint("Entitlement not found").
		WithAccount("acc_1").
		Mark(ErrNotFound)

	resp := NewErrorResponse(err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Entitlement not found", resp.Error.Display)
	assert.Equal(t, "acc_1", resp.Error.Details["account_id"])
}

func TestNewErrorResponseWithoutHint(t *testing.T) {
	resp := NewErrorResponse(fmt.Errorf("internal detail"))
	assert.Equal(t, "An unexpected error occurred", resp.Error.Display)
	assert.Empty(t, resp.Error.Details)
}

func TestWithAccountSkipsEmpty(t *testing.T) {
	err := NewError("x").WithAccount("").Mark(ErrValidation)
	assert.Empty(t, SafeDetails(err))
}
