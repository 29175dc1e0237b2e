package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/TitanMedia/internal/engine"
	"github.com/AaronLay10/TitanMedia/internal/events"
	"github.com/AaronLay10/TitanMedia/internal/meter"
)

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout waiting for: %s", msg)
}

func dial(t *testing.T, h http.Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var e events.Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	return e
}

func TestWebSocketReceivesRecentEvents(t *testing.T) {
	events.Clear()
	for i := 0; i < 5; i++ {
		events.Emit("info", "scene.created", "", map[string]interface{}{"i": i})
	}

	conn := dial(t, http.HandlerFunc(wsEventsHandler))
	for i := 0; i < 5; i++ {
		if e := readEvent(t, conn); e.Name != "scene.created" {
			t.Errorf("expected 'scene.created', got '%s'", e.Name)
		}
	}
}

func TestWebSocketReceivesNewEvents(t *testing.T) {
	events.Clear()
	conn := dial(t, http.HandlerFunc(wsEventsHandler))

	waitFor(t, time.Second, func() bool { return events.SubscriberCount() > 0 }, "subscriber registered")
	events.Emit("info", "switch.transition", "", map[string]interface{}{"to": "Scene 1"})

	if e := readEvent(t, conn); e.Name != "switch.transition" {
		t.Errorf("expected 'switch.transition', got '%s'", e.Name)
	}
}

func TestWebSocketUnsubscribesOnClose(t *testing.T) {
	events.Clear()
	before := events.SubscriberCount()
	conn := dial(t, http.HandlerFunc(wsEventsHandler))
	waitFor(t, time.Second, func() bool { return events.SubscriberCount() == before+1 }, "subscriber registered")

	conn.Close()
	waitFor(t, 2*time.Second, func() bool { return events.SubscriberCount() == before }, "subscriber removed")
}

func TestWebSocketLevels(t *testing.T) {
	sim := engine.NewSim(nil)
	client := engine.NewClient(sim, time.Second)
	if err := client.Startup(context.Background()); err != nil {
		t.Fatal(err)
	}
	p := meter.New(client, meter.Options{Interval: 10 * time.Millisecond})
	p.Start()
	t.Cleanup(p.Stop)

	s := &server{Deps: Deps{Meter: p}}
	conn := dial(t, http.HandlerFunc(s.wsLevelsHandler))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read reading: %v", err)
	}
	var r meter.Reading
	if err := json.Unmarshal(msg, &r); err != nil {
		t.Fatalf("failed to unmarshal reading: %v", err)
	}
	if r.At.IsZero() {
		t.Error("reading has no timestamp")
	}
	if p.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", p.SubscriberCount())
	}
}

func TestWebSocketLevelsWithoutMeter(t *testing.T) {
	s := &server{}
	w := httptest.NewRecorder()
	s.wsLevelsHandler(w, httptest.NewRequest("GET", "/ws/levels", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
