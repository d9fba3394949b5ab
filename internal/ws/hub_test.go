package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kiwari-pos/restaurant-ops/internal/auth"
	"github.com/kiwari-pos/restaurant-ops/internal/notify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, restaurantID uuid.UUID) *Client {
	return &Client{
		hub:          hub,
		restaurantID: restaurantID,
		send:         make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func orderEvent(t *testing.T, restaurantID uuid.UUID, payload string) notify.Event {
	t.Helper()
	return notify.Event{
		Entity:       notify.EntityOrder,
		Op:           notify.OpUpdate,
		RestaurantID: restaurantID,
		Payload:      json.RawMessage(payload),
		At:           time.Now().UTC(),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)

	restaurantID := uuid.New()
	client := mockClient(hub, restaurantID)
	hub.register <- client

	assert.Eventually(t, func() bool { return hub.Clients(restaurantID) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubUnregistration(t *testing.T) {
	hub := startHub(t)

	restaurantID := uuid.New()
	client := mockClient(hub, restaurantID)
	hub.register <- client
	hub.unregister <- client

	assert.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.rooms[restaurantID]
		return !ok
	}, time.Second, 5*time.Millisecond, "empty room not cleaned up")

	_, open := <-client.send
	assert.False(t, open, "send channel should be closed")
}

func TestPublishToSingleRestaurant(t *testing.T) {
	hub := startHub(t)

	r1 := uuid.New()
	r2 := uuid.New()
	client1 := mockClient(hub, r1)
	client2 := mockClient(hub, r2)
	hub.register <- client1
	hub.register <- client2

	require.NoError(t, hub.Publish(context.Background(), orderEvent(t, r1, `{"id":1,"status":"READY"}`)))

	select {
	case msg := <-client1.send:
		var received notify.Event
		require.NoError(t, json.Unmarshal(msg, &received))
		assert.Equal(t, notify.EntityOrder, received.Entity)
		assert.Equal(t, notify.OpUpdate, received.Op)
		assert.JSONEq(t, `{"id":1,"status":"READY"}`, string(received.Payload))
	case <-time.After(time.Second):
		t.Fatal("client1 did not receive message")
	}

	select {
	case <-client2.send:
		t.Fatal("client2 should not receive events of another restaurant")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishToEveryClientOfRestaurant(t *testing.T) {
	hub := startHub(t)

	restaurantID := uuid.New()
	clients := []*Client{mockClient(hub, restaurantID), mockClient(hub, restaurantID), mockClient(hub, restaurantID)}
	for _, c := range clients {
		hub.register <- c
	}

	require.NoError(t, hub.Publish(context.Background(), orderEvent(t, restaurantID, `{"id":2}`)))

	for i, c := range clients {
		select {
		case <-c.send:
		case <-time.After(time.Second):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := startHub(t)

	restaurantID := uuid.New()
	slow := &Client{hub: hub, restaurantID: restaurantID, send: make(chan []byte)}
	hub.register <- slow

	require.NoError(t, hub.Publish(context.Background(), orderEvent(t, restaurantID, `{}`)))

	assert.Eventually(t, func() bool { return hub.Clients(restaurantID) == 0 }, time.Second, 5*time.Millisecond)
}

func TestPublishHonoursContext(t *testing.T) {
	// hub not running: the queue fills and Publish must give up
	hub := NewHub(zerolog.Nop())
	for i := 0; i < cap(hub.broadcast); i++ {
		hub.broadcast <- notify.Event{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := hub.Publish(ctx, orderEvent(t, uuid.New(), `{}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := mockClient(hub, uuid.New())
	hub.register <- client
	cancel()
	<-done

	_, open := <-client.send
	assert.False(t, open)
}

func TestServeWS(t *testing.T) {
	const secret = "ws-secret"
	hub := startHub(t)

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/ws/restaurants/{rid}/events", NewHandler(hub, secret, []string{"https://pos.example"}))
	srv := httptest.NewServer(r)
	defer srv.Close()

	restaurantID := uuid.New()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/restaurants/" + restaurantID.String() + "/events"

	t.Run("missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(base, nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("other restaurant", func(t *testing.T) {
		token, err := auth.GenerateToken(secret, 1, uuid.New(), "WAITER", time.Minute)
		require.NoError(t, err)
		_, resp, err := websocket.DefaultDialer.Dial(base+"?token="+token, nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("foreign origin", func(t *testing.T) {
		token, err := auth.GenerateToken(secret, 1, restaurantID, "KITCHEN", time.Minute)
		require.NoError(t, err)
		header := http.Header{"Origin": []string{"https://evil.example"}}
		_, resp, err := websocket.DefaultDialer.Dial(base+"?token="+token, header)
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("receives events", func(t *testing.T) {
		token, err := auth.GenerateToken(secret, 1, restaurantID, "KITCHEN", time.Minute)
		require.NoError(t, err)
		conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+token, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool { return hub.Clients(restaurantID) == 1 }, time.Second, 5*time.Millisecond)
		require.NoError(t, hub.Publish(context.Background(), orderEvent(t, restaurantID, `{"id":9}`)))

		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var received notify.Event
		require.NoError(t, json.Unmarshal(msg, &received))
		assert.Equal(t, restaurantID, received.RestaurantID)
	})
}
