package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/TitanMedia/internal/events"
)

const (
	// Number of recent events to send on connection
	recentEventsCount = 50

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Control clients run on other origins (overlay pages, local tools).
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEventsHandler streams the event log: the recent backlog, then live
// events.
func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	sub := events.Subscribe()
	for _, e := range events.RecentEvents(recentEventsCount) {
		if err := writeJSONMessage(conn, e); err != nil {
			log.Printf("ws write recent event failed: %v", err)
			events.Unsubscribe(sub)
			conn.Close()
			return
		}
	}
	pump(conn, sub, func() { events.Unsubscribe(sub) })
}

// wsLevelsHandler streams meter readings, starting with the latest one.
func (s *server) wsLevelsHandler(w http.ResponseWriter, r *http.Request) {
	if s.Meter == nil {
		http.Error(w, "metering is off", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	sub := s.Meter.Subscribe()
	if latest := s.Meter.Levels(); !latest.At.IsZero() {
		if err := writeJSONMessage(conn, latest); err != nil {
			s.Meter.Unsubscribe(sub)
			conn.Close()
			return
		}
	}
	pump(conn, sub, func() { s.Meter.Unsubscribe(sub) })
}

func writeJSONMessage(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// pump forwards sub to conn until the peer goes away or sub is closed.
// unsubscribe is called unless the publisher closed sub.
func pump[T any](conn *websocket.Conn, sub <-chan T, unsubscribe func()) {
	done := make(chan struct{})

	// Reader goroutine - handles pongs and close messages
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case <-done:
			unsubscribe()
			return

		case v, ok := <-sub:
			if !ok {
				return
			}
			if err := writeJSONMessage(conn, v); err != nil {
				log.Printf("ws write failed: %v", err)
				unsubscribe()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				unsubscribe()
				return
			}
		}
	}
}
