package service

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by the order service. Handlers map them to HTTP status
// codes with errors.Is; wrapped variants carry the offending id or name.
var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrOrderNotFound      = errors.New("order not found")

	ErrCustomerInactive       = errors.New("customer inactive")
	ErrRestaurantUnavailable  = errors.New("restaurant unavailable")
	ErrProductUnavailable     = errors.New("product unavailable")
	ErrProductNotInRestaurant = errors.New("product does not belong to restaurant")
	ErrStatusConflict         = errors.New("order status changed concurrently, please retry")

	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrCannotCancel         = errors.New("order cannot be canceled")
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be between 1 and 50")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrInvalidStatus        = errors.New("invalid status")
)

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	allowed := NextStatuses(e.From)
	if len(allowed) == 0 {
		return fmt.Sprintf("invalid status transition from %s to %s: %s is terminal", e.From, e.To, e.From)
	}
	return fmt.Sprintf("invalid status transition from %s to %s (allowed: %s)", e.From, e.To, strings.Join(allowed, ", "))
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// CancelError reports a cancellation attempted outside PENDING or CONFIRMED.
type CancelError struct {
	Status string
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("order cannot be canceled in status %s", e.Status)
}

func (e *CancelError) Is(target error) bool { return target == ErrCannotCancel }

// IsNotFound reports whether err refers to a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrRestaurantNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsConflict reports whether err is a business-state conflict (HTTP 409).
func IsConflict(err error) bool {
	return errors.Is(err, ErrCustomerInactive) ||
		errors.Is(err, ErrRestaurantUnavailable) ||
		errors.Is(err, ErrProductUnavailable) ||
		errors.Is(err, ErrProductNotInRestaurant) ||
		errors.Is(err, ErrStatusConflict)
}

// IsValidationError reports whether err is a malformed request (HTTP 400).
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyItems) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidPaymentMethod) ||
		errors.Is(err, ErrInvalidStatus)
}
