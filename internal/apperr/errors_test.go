package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"wrapped capacity", fmt.Errorf("room type 3: %w", ErrCapacityExceeded), KindCapacity},
		{"insufficient funds", ErrInsufficientFunds, KindValidation},
		{"too many attempts", fmt.Errorf("pay: %w", ErrTooManyAttempts), KindAuthorization},
		{"consistency", ErrConsistency, KindConsistency},
		{"unknown", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusCode(ErrEmptyOrderList))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(ErrInvalidSession))
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(ErrTooManyAttempts))
	assert.Equal(t, http.StatusConflict, StatusCode(fmt.Errorf("seat 4: %w", ErrSeatTaken)))
	assert.Equal(t, http.StatusConflict, StatusCode(ErrSettleInProgress))
	assert.Equal(t, http.StatusNotFound, StatusCode(ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("db down")))
}

func TestPublicMessageHidesDetails(t *testing.T) {
	assert.Equal(t, "internal server error", PublicMessage(fmt.Errorf("order 9 vanished: %w", ErrConsistency)))
	assert.Equal(t, "authorization failed", PublicMessage(fmt.Errorf("payment password mismatch: %w", ErrUnauthorized)))
	assert.Equal(t, "too many attempts", PublicMessage(fmt.Errorf("user 3: %w", ErrTooManyAttempts)))
	assert.Equal(t, "room type 1: capacity exceeded", PublicMessage(fmt.Errorf("room type 1: %w", ErrCapacityExceeded)))
}
