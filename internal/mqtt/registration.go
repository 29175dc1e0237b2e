package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// Announcement is the v1 message an engine publishes when it comes online.
type Announcement struct {
	Version int        `json:"version"`
	Engine  EngineInfo `json:"engine"`
	// Types lists the source type ids the engine can create.
	Types []string `json:"types"`
}

// EngineInfo contains engine metadata.
type EngineInfo struct {
	ID           string `json:"id"`
	Platform     string `json:"platform"`
	Build        string `json:"build"`
	UptimeMS     int64  `json:"uptime_ms"`
	HeartbeatSec int    `json:"heartbeat_sec"`
}

// Heartbeat is the periodic liveness message.
type Heartbeat struct {
	EngineID  string    `json:"engine_id"`
	Streaming bool      `json:"streaming"`
	Recording bool      `json:"recording"`
	Sent      time.Time `json:"sent"`
}

// ParseAnnouncement parses an announcement payload from JSON bytes.
func ParseAnnouncement(data []byte) (*Announcement, error) {
	var payload Announcement
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid announcement JSON: %w", err)
	}

	if payload.Version != 1 {
		return nil, fmt.Errorf("unsupported announcement version: %d", payload.Version)
	}

	if payload.Engine.ID == "" {
		return nil, fmt.Errorf("engine.id is required")
	}

	return &payload, nil
}

// ParseHeartbeat parses a heartbeat payload.
func ParseHeartbeat(data []byte) (*Heartbeat, error) {
	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return nil, fmt.Errorf("invalid heartbeat JSON: %w", err)
	}
	if hb.EngineID == "" {
		return nil, fmt.Errorf("engine_id is required")
	}
	return &hb, nil
}

// ValidationResult contains validation outcome.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateAnnouncement checks an announcement against the platform the studio
// expects and the type ids it needs.
func ValidateAnnouncement(payload *Announcement, platform string, required []string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if platform != "" && payload.Engine.Platform != "" && payload.Engine.Platform != platform {
		result.Errors = append(result.Errors, fmt.Sprintf("platform mismatch (expected %s, got %s)", platform, payload.Engine.Platform))
		result.Valid = false
	}
	if payload.Engine.HeartbeatSec <= 0 {
		result.Warnings = append(result.Warnings, "heartbeat_sec not set, liveness is not tracked")
	}

	for _, typeID := range required {
		if !containsString(payload.Types, typeID) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("type not offered: %s", typeID))
		}
	}

	return result
}

func containsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
