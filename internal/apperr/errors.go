// Package apperr holds the error taxonomy shared by the booking core.
// Every failure the core returns wraps one of the sentinels below, and
// each sentinel belongs to exactly one Kind. Handlers translate kinds into
// HTTP status codes with StatusCode.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindCapacity
	KindConsistency
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindCapacity:
		return "capacity"
	case KindConsistency:
		return "consistency"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Validation
var (
	ErrEmptyOrderList          = errors.New("order list is empty")
	ErrInvalidDateRange        = errors.New("invalid date range")
	ErrUnknownResource         = errors.New("unknown resource")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrTransactionNotPayable   = errors.New("transaction is not payable")
	ErrNotRefundable           = errors.New("order cannot be refunded")
	ErrInvalidPaymentPassword  = errors.New("payment password must be 6 digits")
	ErrMissingCredentials      = errors.New("missing credentials")
)

// Authorization. Messages stay generic so callers cannot tell which factor failed.
var (
	ErrInvalidSession  = errors.New("invalid session")
	ErrUnauthorized    = errors.New("authorization failed")
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrForbidden       = errors.New("forbidden")
)

// Capacity
var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrSeatTaken        = errors.New("seat already taken")
	ErrParentNotHeld    = errors.New("parent train order is not held")
)

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrNotFound         = errors.New("not found")
	ErrConsistency      = errors.New("internal consistency error")
	ErrSettleInProgress = errors.New("settlement already in progress")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrEmptyOrderList, KindValidation},
	{ErrInvalidDateRange, KindValidation},
	{ErrUnknownResource, KindValidation},
	{ErrInvalidStatusTransition, KindValidation},
	{ErrInvalidAmount, KindValidation},
	{ErrInsufficientFunds, KindValidation},
	{ErrTransactionNotPayable, KindValidation},
	{ErrNotRefundable, KindValidation},
	{ErrInvalidPaymentPassword, KindValidation},
	{ErrMissingCredentials, KindValidation},
	{ErrResourceNotFound, KindValidation},
	{ErrInvalidSession, KindAuthorization},
	{ErrUnauthorized, KindAuthorization},
	{ErrTooManyAttempts, KindAuthorization},
	{ErrForbidden, KindAuthorization},
	{ErrCapacityExceeded, KindCapacity},
	{ErrSeatTaken, KindCapacity},
	{ErrParentNotHeld, KindCapacity},
	{ErrConsistency, KindConsistency},
	{ErrNotFound, KindNotFound},
	{ErrSettleInProgress, KindConflict},
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		if errors.Is(err, ErrTooManyAttempts) {
			return http.StatusTooManyRequests
		}
		if errors.Is(err, ErrForbidden) {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case KindCapacity, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is what an API client sees. Internal and consistency
// failures never leak their cause.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindInternal, KindConsistency:
		return "internal server error"
	case KindAuthorization:
		for _, s := range []error{ErrInvalidSession, ErrTooManyAttempts, ErrForbidden} {
			if errors.Is(err, s) {
				return s.Error()
			}
		}
		return ErrUnauthorized.Error()
	default:
		return err.Error()
	}
}
