package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/AaronLay10/TitanMedia/internal/events"
	"github.com/AaronLay10/TitanMedia/internal/version"
)

var metricsState = &MetricsState{}

// MetricsState holds process-wide values for the /metrics endpoint.
type MetricsState struct {
	mu        sync.RWMutex
	startTime time.Time
	studioID  string
}

// InitMetrics records the start time and the studio label.
func InitMetrics(studioID string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
	metricsState.studioID = studioID
}

// StudioID returns the studio label used by metrics and alerts.
func StudioID() string {
	metricsState.mu.RLock()
	defer metricsState.mu.RUnlock()
	return metricsState.studioID
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// metricsHandler returns Prometheus text-format metrics.
func (s *server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	metricsState.mu.RLock()
	startTime := metricsState.startTime
	studioID := metricsState.studioID
	metricsState.mu.RUnlock()

	readiness.mu.RLock()
	engineLinked := readiness.engineLinked
	storeConnected := readiness.storeConnected
	readiness.mu.RUnlock()

	snap := s.Studio.Snapshot()
	sourceCount := 0
	for _, sc := range snap.Scenes {
		sourceCount += len(sc.Sources)
	}
	lastSave := int64(-1)
	if t := s.Studio.LastSave(); !t.IsZero() {
		lastSave = t.Unix()
	}

	wsClients := events.SubscriberCount()
	var polls, pollFailures int64
	if s.Meter != nil {
		wsClients += s.Meter.SubscriberCount()
		st := s.Meter.Stats()
		polls, pollFailures = st.Polls, st.Failures
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}
	labels := fmt.Sprintf(`studio=%q,instance=%q,version=%q`, studioID, hostname, version.Version)

	writeMetric("titan_uptime_seconds", "gauge",
		"Seconds since the studio process started", time.Since(startTime).Seconds(), labels)
	writeMetric("titan_events_buffered", "gauge",
		"Events held in the recent event buffer", events.TotalCount(), labels)
	writeMetric("titan_scenes", "gauge",
		"Scenes in the collection", len(snap.Scenes), labels)
	writeMetric("titan_sources", "gauge",
		"Sources across all scenes", sourceCount, labels)
	writeMetric("titan_out_of_sync", "gauge",
		"Whether the model awaits a resync with the engine (1) or not (0)", boolGauge(s.Studio.OutOfSync()), labels)
	writeMetric("titan_engine_connected", "gauge",
		"Whether the engine link is up (1) or not (0)", boolGauge(engineLinked), labels)
	writeMetric("titan_store_connected", "gauge",
		"Whether the collection store is reachable (1) or not (0)", boolGauge(storeConnected), labels)
	writeMetric("titan_ws_clients", "gauge",
		"Active websocket clients", wsClients, labels)
	writeMetric("titan_meter_polls_total", "counter",
		"Level polls since startup", polls, labels)
	writeMetric("titan_meter_poll_failures_total", "counter",
		"Failed level or frame polls since startup", pollFailures, labels)
	writeMetric("titan_collection_last_save_timestamp", "gauge",
		"Unix timestamp of the last successful save (-1 if none)", lastSave, labels)
}
