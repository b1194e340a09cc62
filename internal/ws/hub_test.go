package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/deliverytech/api/internal/auth"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, restaurantID int64) *Client {
	return &Client{
		hub:          hub,
		restaurantID: restaurantID,
		send:         make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)

	client := mockClient(hub, 7)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[7] == nil {
		t.Fatal("restaurant room not created")
	}
	if !hub.rooms[7][client] {
		t.Fatal("client not registered in restaurant room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := startHub(t)

	client := mockClient(hub, 7)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount(7) != 0 {
		t.Fatal("restaurant room not cleaned up after last client unregistered")
	}

	if _, ok := <-client.send; ok {
		t.Fatal("send channel should be closed after unregister")
	}
}

func TestBroadcastToSingleRestaurant(t *testing.T) {
	hub := startHub(t)

	client1 := mockClient(hub, 1)
	client2 := mockClient(hub, 2)
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"order_id":123}`)
	hub.BroadcastToRestaurant(1, Event{Type: "order.created", Payload: testPayload})

	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "order.created" {
			t.Errorf("expected type 'order.created', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different restaurant")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToMultipleClientsInSameRestaurant(t *testing.T) {
	hub := startHub(t)

	clients := []*Client{mockClient(hub, 5), mockClient(hub, 5), mockClient(hub, 5)}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToRestaurant(5, Event{
		Type:    "order.status_changed",
		Payload: json.RawMessage(`{"status":"PREPARING"}`),
	})

	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "order.status_changed" {
				t.Errorf("client%d: expected type 'order.status_changed', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := startHub(t)

	client1 := mockClient(hub, 3)
	client2 := mockClient(hub, 3)
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	if n := hub.ClientCount(3); n != 2 {
		t.Fatalf("expected 2 clients, got %d", n)
	}

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)
	if n := hub.ClientCount(3); n != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", n)
	}

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms[3] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := startHub(t)

	slow := &Client{hub: hub, restaurantID: 9, send: make(chan []byte)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToRestaurant(9, Event{Type: "order.created", Payload: json.RawMessage(`{}`)})
	time.Sleep(20 * time.Millisecond)

	if n := hub.ClientCount(9); n != 0 {
		t.Fatalf("expected slow client to be dropped, %d remain", n)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := mockClient(hub, 1)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("hub did not stop")
	}

	if _, ok := <-client.send; ok {
		t.Fatal("client send channel should be closed on shutdown")
	}
	if hub.registerClient(mockClient(hub, 1)) {
		t.Fatal("register after shutdown should fail")
	}
	// Must not block once the hub is stopped.
	hub.BroadcastToRestaurant(1, Event{Type: "order.created"})
	hub.unregisterClient(client)
}

func TestCanWatch(t *testing.T) {
	rid := int64(4)
	other := int64(5)
	cases := []struct {
		name   string
		claims auth.Claims
		want   bool
	}{
		{"admin", auth.Claims{Role: "ADMIN"}, true},
		{"own restaurant", auth.Claims{Role: "RESTAURANT", RestaurantID: &rid}, true},
		{"other restaurant", auth.Claims{Role: "RESTAURANT", RestaurantID: &other}, false},
		{"restaurant without id", auth.Claims{Role: "RESTAURANT"}, false},
		{"customer", auth.Claims{Role: "CUSTOMER"}, false},
		{"courier", auth.Claims{Role: "COURIER"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := canWatch(&tc.claims, rid); got != tc.want {
				t.Errorf("canWatch = %v, want %v", got, tc.want)
			}
		})
	}
}
