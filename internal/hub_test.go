package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBroadcastNeverBlocks(t *testing.T) {
	h := NewHub()
	// No clients, no Run loop: the buffered channel fills and the rest
	// must be dropped without stalling.
	for i := 0; i < 2048; i++ {
		h.BroadcastRaw([]byte("x"))
	}
	if h.ClientCount() != 0 {
		t.Errorf("clients = %d", h.ClientCount())
	}
}

func TestHubDeliversToClient(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for the server side to register the client.
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.BroadcastRaw([]byte(`{"hello":"world"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != `{"hello":"world"}` {
		t.Errorf("msg = %s", msg)
	}
}
