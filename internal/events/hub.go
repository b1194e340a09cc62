package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/deliverytech/api/internal/ws"
)

// Broadcaster is satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToRestaurant(restaurantID int64, event ws.Event)
}

// HubPublisher pushes order events to websocket clients watching the
// order's restaurant.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, evt OrderEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	p.hub.BroadcastToRestaurant(evt.RestaurantID, ws.Event{
		Type:    evt.Type,
		Payload: payload,
	})
	return nil
}

func (p *HubPublisher) Close() error { return nil }
