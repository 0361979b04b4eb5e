package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/airpointer/internal/app"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(New(Config{Hub: hub}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev wireEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	return ev
}

func TestHub_DeliversEvents(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)

	hub.Publish(app.Event{Type: app.EventClick, X: 0.5, Y: 0.25, TimestampMs: 1300})
	hub.Publish(app.Event{Type: app.EventScroll, Delta: 11.52, TimestampMs: 1400})

	click := readEvent(t, conn)
	if click.Type != "click" || click.X != 0.5 || click.Y != 0.25 || click.Timestamp != 1300 {
		t.Errorf("unexpected click %+v", click)
	}
	if _, err := uuid.Parse(click.ID); err != nil {
		t.Errorf("event id %q is not a uuid: %v", click.ID, err)
	}

	scroll := readEvent(t, conn)
	if scroll.Type != "scroll" || scroll.Delta != 11.52 {
		t.Errorf("unexpected scroll %+v", scroll)
	}
	if scroll.ID == click.ID {
		t.Error("events share an id")
	}
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub()
	hub.Publish(app.Event{Type: app.EventHover})
	if hub.Clients() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.Clients())
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Publishing after the client left must not panic.
	hub.Publish(app.Event{Type: app.EventClick})
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)

	hub.Close()

	if hub.Clients() != 0 {
		t.Errorf("expected 0 clients after Close, got %d", hub.Clients())
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
}
