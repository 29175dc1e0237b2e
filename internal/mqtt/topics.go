package mqtt

import "strings"

const topicRoot = "titan/engine"

// RequestTopic carries engine requests for the engine with the given id.
func RequestTopic(engineID string) string { return topicRoot + "/" + engineID + "/request" }

// ResponseTopic carries engine responses.
func ResponseTopic(engineID string) string { return topicRoot + "/" + engineID + "/response" }

// AnnounceTopic carries the engine announcement published on startup.
func AnnounceTopic(engineID string) string { return topicRoot + "/" + engineID + "/announce" }

// HeartbeatTopic carries periodic engine heartbeats.
func HeartbeatTopic(engineID string) string { return topicRoot + "/" + engineID + "/heartbeat" }

// EngineIDFromTopic extracts the engine id from any engine topic.
func EngineIDFromTopic(topic string) string {
	rest, ok := strings.CutPrefix(topic, topicRoot+"/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}
