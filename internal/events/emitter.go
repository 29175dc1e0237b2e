package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

var buffer = newRing[Event](256)

// Appender persists events. The Postgres store implements it.
type Appender interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error
}

var (
	appender       Appender
	sessionID      string
	appMu          sync.RWMutex
	appErrorLogged bool
)

// SetAppender sets the sink for event persistence. nil disables persistence.
func SetAppender(a Appender) {
	appMu.Lock()
	appender = a
	appErrorLogged = false
	appMu.Unlock()
}

// SetSession tags every persisted event with a session id.
func SetSession(id string) {
	appMu.Lock()
	sessionID = id
	appMu.Unlock()
}

// Session returns the current session id.
func Session() string {
	appMu.RLock()
	defer appMu.RUnlock()
	return sessionID
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	hub.Publish(e)

	appMu.RLock()
	sink := appender
	session := sessionID
	errorLogged := appErrorLogged
	appMu.RUnlock()

	if sink != nil {
		if err := sink.Append(ts, level, name, msg, fields, session); err != nil && !errorLogged {
			// Log once. Goes straight to the buffer, not Emit, so a failing
			// store cannot recurse.
			appMu.Lock()
			first := !appErrorLogged
			appErrorLogged = true
			appMu.Unlock()
			if first {
				buffer.Add(Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "event append failed",
					Fields: map[string]interface{}{
						"error": err.Error(),
					},
				})
			}
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}

// TotalCount returns the number of events currently held in the buffer.
func TotalCount() int {
	return buffer.Len()
}
