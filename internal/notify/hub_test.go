package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubBroadcastsToClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()

	// Give the hub a beat to register the client.
	time.Sleep(50 * time.Millisecond)
	hub.Publish("toast", map[string]string{"message": "hello"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("Malformed event: %v", err)
	}
	if event.Type != "toast" {
		t.Errorf("expected toast event, got %q", event.Type)
	}
}
