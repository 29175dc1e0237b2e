package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert event types
const (
	AlertEngineDisconnected = "engine_disconnected"
	AlertStoreUnavailable   = "store_unavailable"
)

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	StudioID  string                 `json:"studio_id"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AlertConfig configures the operator webhook.
type AlertConfig struct {
	WebhookURL  string
	EngineDelay time.Duration // how long the engine link may be down before alerting
	StoreDelay  time.Duration // how long the store may be unreachable before alerting
}

// linkWatch tracks one dependency and decides when to alert.
type linkWatch struct {
	event    string
	severity string
	label    string
	delay    time.Duration

	down time.Time // zero while up
	sent bool
}

// observe returns the alert to send, if any, for the current state.
func (lw *linkWatch) observe(up bool, now time.Time) *AlertPayload {
	if up {
		recovered := lw.sent
		lw.down, lw.sent = time.Time{}, false
		if recovered {
			return &AlertPayload{Event: lw.event, Severity: SeverityInfo, Message: lw.label + " restored",
				Details: map[string]interface{}{"recovered_at": now.UTC().Format(time.RFC3339)}}
		}
		return nil
	}
	if lw.down.IsZero() {
		lw.down = now
	}
	if lw.sent || now.Sub(lw.down) < lw.delay {
		return nil
	}
	lw.sent = true
	return &AlertPayload{Event: lw.event, Severity: lw.severity, Message: lw.label + " unavailable",
		Details: map[string]interface{}{
			"down_since":   lw.down.UTC().Format(time.RFC3339),
			"down_seconds": int(now.Sub(lw.down).Seconds()),
		}}
}

// Alerter posts webhook alerts when the engine link or the store stays down.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client

	mu     sync.Mutex
	engine linkWatch
	store  linkWatch

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewAlerter builds an alerter. Zero delays default to 30s for the engine
// and 5s for the store.
func NewAlerter(cfg AlertConfig) *Alerter {
	if cfg.EngineDelay <= 0 {
		cfg.EngineDelay = 30 * time.Second
	}
	if cfg.StoreDelay <= 0 {
		cfg.StoreDelay = 5 * time.Second
	}
	if cfg.WebhookURL != "" {
		log.Printf("Alerts enabled: webhook URL configured (engine_delay=%s, store_delay=%s)",
			cfg.EngineDelay, cfg.StoreDelay)
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		engine: linkWatch{event: AlertEngineDisconnected, severity: SeverityWarning, label: "engine link", delay: cfg.EngineDelay},
		store:  linkWatch{event: AlertStoreUnavailable, severity: SeverityCritical, label: "collection store", delay: cfg.StoreDelay},
		stopCh: make(chan struct{}),
	}
}

// Check evaluates both links once.
func (a *Alerter) Check(engineUp, storeUp bool) {
	now := time.Now()
	a.mu.Lock()
	pending := []*AlertPayload{a.engine.observe(engineUp, now), a.store.observe(storeUp, now)}
	a.mu.Unlock()
	for _, p := range pending {
		if p != nil {
			a.send(*p)
		}
	}
}

// Start checks the readiness state every interval until Stop.
func (a *Alerter) Start(interval time.Duration) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				readiness.mu.RLock()
				engineUp := readiness.engineLinked || readiness.engineOptional
				storeUp := readiness.storeConnected || readiness.storeOptional
				readiness.mu.RUnlock()
				a.Check(engineUp, storeUp)
			}
		}
	}()
}

// Stop ends the check loop and waits for in-flight webhooks.
func (a *Alerter) Stop() {
	close(a.stopCh)
	a.wg.Wait()
}

// send posts the alert in the background, or logs it without a webhook.
func (a *Alerter) send(p AlertPayload) {
	p.StudioID = StudioID()
	if p.StudioID == "" {
		p.StudioID = "unknown"
	}
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)

	if a.cfg.WebhookURL == "" {
		log.Printf("[ALERT] %s severity=%s msg=%q details=%v", p.Event, p.Severity, p.Message, p.Details)
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.postWebhook(p)
	}()
}

func (a *Alerter) postWebhook(p AlertPayload) {
	body, err := json.Marshal(p)
	if err != nil {
		log.Printf("alert: failed to marshal payload: %v", err)
		return
	}
	resp, err := a.client.Post(a.cfg.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("alert: webhook POST failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("alert: webhook returned status %d", resp.StatusCode)
	}
}
