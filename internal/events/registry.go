package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// scene
	"scene.created": {},
	"scene.removed": {},

	// switch
	"switch.preview":    {},
	"switch.transition": {},

	// source
	"source.added":      {},
	"source.removed":    {},
	"source.renamed":    {},
	"source.muted":      {},
	"source.visibility": {},
	"source.properties": {},

	// output
	"output.streaming_started": {},
	"output.streaming_stopped": {},
	"output.recording_started": {},
	"output.recording_stopped": {},

	// collection
	"collection.saved":       {},
	"collection.loaded":      {},
	"collection.defaulted":   {},
	"collection.save_failed": {},
	"collection.load_failed": {},

	// engine
	"engine.started":      {},
	"engine.stopped":      {},
	"engine.timeout":      {},
	"engine.resynced":     {},
	"engine.connected":    {},
	"engine.disconnected": {},
	"engine.error":        {},

	// meter
	"meter.poll_failed": {},
	"meter.recovered":   {},

	// platform
	"platform.login":           {},
	"platform.logout":          {},
	"platform.channel_updated": {},
	"platform.error":           {},

	// chat
	"chat.connected":    {},
	"chat.disconnected": {},
	"chat.message":      {},
	"chat.bot_reply":    {},

	// alert
	"alert.shown":   {},
	"alert.hidden":  {},
	"alert.failed":  {},
	"alert.branded": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
