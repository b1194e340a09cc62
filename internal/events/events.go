// Package events publishes order lifecycle events to the configured brokers
// and to connected websocket clients.
package events

import (
	"context"
	"errors"
	"time"
)

// OrderEvent is the message emitted when an order is created or changes status.
type OrderEvent struct {
	Type           string    `json:"type"`
	OrderID        int64     `json:"order_id"`
	CustomerID     int64     `json:"customer_id"`
	RestaurantID   int64     `json:"restaurant_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Total          string    `json:"total"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers order events to one destination.
type Publisher interface {
	Publish(ctx context.Context, evt OrderEvent) error
	Close() error
}

// Multi fans an event out to every publisher. All publishers are attempted;
// the returned error joins every failure.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt OrderEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, OrderEvent) error { return nil }
func (Nop) Close() error                              { return nil }
