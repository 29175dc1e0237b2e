package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/AaronLay10/TitanMedia/internal/mqtt"
)

// Transport is the broker surface used by the engine link. *mqtt.Client
// satisfies it.
type Transport interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler paho.MessageHandler) error
}

// MQTTBackend sends requests to a remote engine and matches responses by
// request id.
type MQTTBackend struct {
	transport Transport
	engineID  string

	mu      sync.Mutex
	pending map[string]chan Response
	started bool
}

// NewMQTTBackend creates a backend for the engine with the given id.
func NewMQTTBackend(transport Transport, engineID string) *MQTTBackend {
	return &MQTTBackend{
		transport: transport,
		engineID:  engineID,
		pending:   make(map[string]chan Response),
	}
}

// Start subscribes to the engine's response topic. It is idempotent.
func (b *MQTTBackend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	if err := b.transport.Subscribe(mqtt.ResponseTopic(b.engineID), b.handleResponse); err != nil {
		return fmt.Errorf("subscribe engine responses: %w", err)
	}
	b.started = true
	return nil
}

// Call implements Backend. It blocks until the matching response arrives or
// ctx is done; a late response is dropped.
func (b *MQTTBackend) Call(ctx context.Context, req Request) (Response, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Response{}, fmt.Errorf("request id: %w", err)
	}
	req.ID = id.String()

	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	ch := make(chan Response, 1)
	b.mu.Lock()
	b.pending[req.ID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	if err := b.transport.Publish(mqtt.RequestTopic(b.engineID), payload); err != nil {
		return Response{}, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Pending returns the number of requests awaiting a response.
func (b *MQTTBackend) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *MQTTBackend) handleResponse(_ paho.Client, msg paho.Message) {
	var resp Response
	if err := json.Unmarshal(msg.Payload(), &resp); err != nil || resp.ID == "" {
		return
	}
	b.mu.Lock()
	ch, ok := b.pending[resp.ID]
	b.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- resp:
	default:
	}
}
