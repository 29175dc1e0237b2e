package mqtt

import (
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/TitanMedia/internal/events"
)

// EngineState tracks an announced engine's health.
type EngineState struct {
	EngineID     string
	Platform     string
	Types        []string
	LastSeen     time.Time
	HeartbeatSec int
	Connected    bool
	Streaming    bool
	Recording    bool
}

// Monitor tracks engine announcements and heartbeats.
type Monitor struct {
	mu        sync.RWMutex
	engines   map[string]*EngineState
	platform  string
	required  []string
	tolerance float64 // multiplier for heartbeat interval (e.g., 2.0 = 2x heartbeat)
	onChange  func(engineID string, connected bool)
	now       func() time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewMonitor creates a new engine monitor.
// tolerance is the multiplier for heartbeat interval before considering disconnected.
func NewMonitor(platform string, required []string, tolerance float64) *Monitor {
	if tolerance <= 1.0 {
		tolerance = 2.0 // default: miss 1 heartbeat
	}
	return &Monitor{
		engines:   make(map[string]*EngineState),
		platform:  platform,
		required:  required,
		tolerance: tolerance,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// OnChange registers a callback fired when an engine connects or disconnects.
func (m *Monitor) OnChange(fn func(engineID string, connected bool)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Handler returns a message handler for announce and heartbeat topics.
func (m *Monitor) Handler() paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		switch {
		case strings.HasSuffix(msg.Topic(), "/announce"):
			payload, err := ParseAnnouncement(msg.Payload())
			if err != nil {
				events.Emit("error", "engine.error", "invalid announcement", map[string]interface{}{
					"topic": msg.Topic(),
					"error": err.Error(),
				})
				return
			}
			m.HandleAnnouncement(payload)
		case strings.HasSuffix(msg.Topic(), "/heartbeat"):
			hb, err := ParseHeartbeat(msg.Payload())
			if err != nil {
				return
			}
			if id := EngineIDFromTopic(msg.Topic()); id != hb.EngineID {
				return
			}
			m.HandleHeartbeat(hb)
		}
	}
}

// HandleAnnouncement processes an announcement payload.
// Returns validation result and emits appropriate events.
func (m *Monitor) HandleAnnouncement(payload *Announcement) *ValidationResult {
	result := ValidateAnnouncement(payload, m.platform, m.required)

	m.mu.Lock()
	id := payload.Engine.ID
	existing, known := m.engines[id]
	isReconnect := known && existing != nil && !existing.Connected

	if !result.Valid {
		m.mu.Unlock()
		events.Emit("error", "engine.error", "announcement validation failed", map[string]interface{}{
			"engine_id": id,
			"errors":    result.Errors,
		})
		return result
	}

	m.engines[id] = &EngineState{
		EngineID:     id,
		Platform:     payload.Engine.Platform,
		Types:        append([]string{}, payload.Types...),
		LastSeen:     m.now(),
		HeartbeatSec: payload.Engine.HeartbeatSec,
		Connected:    true,
	}
	cb := m.onChange
	m.mu.Unlock()

	events.Emit("info", "engine.connected", "", map[string]interface{}{
		"engine_id": id,
		"platform":  payload.Engine.Platform,
		"types":     len(payload.Types),
		"reconnect": isReconnect,
		"warnings":  result.Warnings,
	})
	if cb != nil {
		cb(id, true)
	}
	return result
}

// HandleHeartbeat refreshes an engine's last-seen time. Heartbeats from
// engines that never announced are ignored.
func (m *Monitor) HandleHeartbeat(hb *Heartbeat) {
	m.mu.Lock()
	state, ok := m.engines[hb.EngineID]
	if !ok {
		m.mu.Unlock()
		return
	}
	state.LastSeen = m.now()
	state.Streaming = hb.Streaming
	state.Recording = hb.Recording
	reconnected := !state.Connected
	state.Connected = true
	cb := m.onChange
	m.mu.Unlock()

	if reconnected {
		events.Emit("info", "engine.connected", "heartbeat resumed", map[string]interface{}{
			"engine_id": hb.EngineID,
			"reconnect": true,
		})
		if cb != nil {
			cb(hb.EngineID, true)
		}
	}
}

// Start begins the background health check loop.
func (m *Monitor) Start(checkInterval time.Duration) {
	m.wg.Add(1)
	go m.healthCheckLoop(checkInterval)
}

// Stop stops the background health check loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) healthCheckLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

func (m *Monitor) checkHealth() {
	m.mu.Lock()
	now := m.now()
	var lost []string

	for id, state := range m.engines {
		if !state.Connected || state.HeartbeatSec <= 0 {
			continue
		}

		// Calculate timeout: heartbeat * tolerance
		timeout := time.Duration(float64(state.HeartbeatSec)*m.tolerance) * time.Second
		if now.Sub(state.LastSeen) > timeout {
			state.Connected = false
			lost = append(lost, id)
			events.Emit("warning", "engine.disconnected", "heartbeat timeout", map[string]interface{}{
				"engine_id":   id,
				"last_seen":   state.LastSeen.Format(time.RFC3339),
				"timeout_sec": timeout.Seconds(),
			})
		}
	}
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		for _, id := range lost {
			cb(id, false)
		}
	}
}

// Engine returns a copy of an engine's state, or nil if unknown.
func (m *Monitor) Engine(engineID string) *EngineState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.engines[engineID]; ok {
		cpy := *state
		cpy.Types = append([]string{}, state.Types...)
		return &cpy
	}
	return nil
}

// ConnectedEngines returns the ids of currently connected engines.
func (m *Monitor) ConnectedEngines() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, state := range m.engines {
		if state.Connected {
			ids = append(ids, id)
		}
	}
	return ids
}
