package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/mqtt"
)

// Responder serves a Backend to remote studios over the broker. It is the
// engine side of MQTTBackend: requests are answered one at a time in arrival
// order, and the engine announces itself and sends heartbeats.
type Responder struct {
	transport Transport
	backend   Backend
	info      mqtt.EngineInfo
	types     []string
	timeout   time.Duration
	started   time.Time

	queue  chan Request
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewResponder creates a responder. info.HeartbeatSec sets the heartbeat
// period; zero disables heartbeats.
func NewResponder(transport Transport, backend Backend, info mqtt.EngineInfo, types []string) *Responder {
	return &Responder{
		transport: transport,
		backend:   backend,
		info:      info,
		types:     types,
		timeout:   DefaultTimeout,
		queue:     make(chan Request, 64),
		stopCh:    make(chan struct{}),
	}
}

// Start subscribes to the request topic, publishes the announcement and
// starts the worker and heartbeat loops.
func (r *Responder) Start() error {
	r.started = time.Now()
	if err := r.transport.Subscribe(mqtt.RequestTopic(r.info.ID), r.handleRequest); err != nil {
		return fmt.Errorf("subscribe engine requests: %w", err)
	}

	r.wg.Add(1)
	go r.worker()

	if err := r.announce(); err != nil {
		log.Printf("engine: announce failed: %v", err)
	}
	if r.info.HeartbeatSec > 0 {
		r.wg.Add(1)
		go r.heartbeatLoop(time.Duration(r.info.HeartbeatSec) * time.Second)
	}
	return nil
}

// Stop stops the worker and heartbeat loops.
func (r *Responder) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Responder) handleRequest(_ paho.Client, msg paho.Message) {
	var req Request
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		log.Printf("engine: dropping malformed request: %v", err)
		return
	}
	select {
	case r.queue <- req:
	default:
		r.reply(Failure(req.ID, apperr.New(apperr.Unavailable, "engine.responder", "engine busy")))
	}
}

func (r *Responder) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stopCh:
			return
		case req := <-r.queue:
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			resp, err := r.backend.Call(ctx, req)
			cancel()
			if err != nil {
				resp = Failure(req.ID, err)
			}
			resp.ID = req.ID
			r.reply(resp)
		}
	}
}

func (r *Responder) reply(resp Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		b, _ = json.Marshal(Failure(resp.ID, err))
	}
	if err := r.transport.Publish(mqtt.ResponseTopic(r.info.ID), b); err != nil {
		log.Printf("engine: reply %s failed: %v", resp.ID, err)
	}
}

func (r *Responder) announce() error {
	info := r.info
	info.UptimeMS = time.Since(r.started).Milliseconds()
	b, err := json.Marshal(mqtt.Announcement{Version: 1, Engine: info, Types: r.types})
	if err != nil {
		return err
	}
	if rt, ok := r.transport.(retainingTransport); ok {
		return rt.PublishRetained(mqtt.AnnounceTopic(r.info.ID), b)
	}
	return r.transport.Publish(mqtt.AnnounceTopic(r.info.ID), b)
}

// retainingTransport keeps the announcement on the broker for studios that
// subscribe after the engine came up. *mqtt.Client implements it.
type retainingTransport interface {
	PublishRetained(topic string, payload []byte) error
}

func (r *Responder) heartbeatLoop(interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.heartbeat()
		}
	}
}

func (r *Responder) heartbeat() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	hb := mqtt.Heartbeat{EngineID: r.info.ID, Sent: time.Now().UTC()}
	if resp, err := r.backend.Call(ctx, Request{Op: OpIsStreaming}); err == nil {
		hb.Streaming = resp.Active
	}
	if resp, err := r.backend.Call(ctx, Request{Op: OpIsRecording}); err == nil {
		hb.Recording = resp.Active
	}
	b, err := json.Marshal(hb)
	if err != nil {
		return
	}
	if err := r.transport.Publish(mqtt.HeartbeatTopic(r.info.ID), b); err != nil {
		log.Printf("engine: heartbeat failed: %v", err)
	}
}
