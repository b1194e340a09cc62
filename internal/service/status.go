package service

import "github.com/deliverytech/api/internal/enum"

// allowedTransitions is the order state machine. DELIVERED and CANCELED are
// terminal and have no entry.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:        {enum.OrderStatusConfirmed, enum.OrderStatusCanceled},
	enum.OrderStatusConfirmed:      {enum.OrderStatusPreparing, enum.OrderStatusCanceled},
	enum.OrderStatusPreparing:      {enum.OrderStatusOutForDelivery},
	enum.OrderStatusOutForDelivery: {enum.OrderStatusDelivered},
}

// ValidateTransition returns a *TransitionError unless next is a legal
// successor of current.
func ValidateTransition(current, next string) error {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return &TransitionError{From: current, To: next}
}

// CanCancel reports whether an order in status may still be canceled.
func CanCancel(status string) bool {
	return status == enum.OrderStatusPending || status == enum.OrderStatusConfirmed
}

// NextStatuses lists the statuses reachable from status in one step.
func NextStatuses(status string) []string {
	next := allowedTransitions[status]
	out := make([]string, len(next))
	copy(out, next)
	return out
}
