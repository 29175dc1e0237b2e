package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/mqtt"
)

// memBroker delivers published messages to exact-topic subscribers.
type memBroker struct {
	mu        sync.Mutex
	handlers  map[string][]paho.MessageHandler
	published map[string]int
	drop      map[string]bool
}

func newMemBroker() *memBroker {
	return &memBroker{
		handlers:  make(map[string][]paho.MessageHandler),
		published: make(map[string]int),
		drop:      make(map[string]bool),
	}
}

func (b *memBroker) Subscribe(topic string, handler paho.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

func (b *memBroker) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	b.published[topic]++
	handlers := append([]paho.MessageHandler(nil), b.handlers[topic]...)
	dropped := b.drop[topic]
	b.mu.Unlock()
	if dropped {
		return nil
	}
	for _, h := range handlers {
		h(nil, &memMessage{topic: topic, payload: payload})
	}
	return nil
}

func (b *memBroker) count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[topic]
}

func (b *memBroker) setDrop(topic string, drop bool) {
	b.mu.Lock()
	b.drop[topic] = drop
	b.mu.Unlock()
}

type memMessage struct {
	topic   string
	payload []byte
}

func (m *memMessage) Duplicate() bool   { return false }
func (m *memMessage) Qos() byte         { return 1 }
func (m *memMessage) Retained() bool    { return false }
func (m *memMessage) Topic() string     { return m.topic }
func (m *memMessage) MessageID() uint16 { return 0 }
func (m *memMessage) Payload() []byte   { return m.payload }
func (m *memMessage) Ack()              {}

func startLink(t *testing.T) (*Client, *MQTTBackend, *memBroker) {
	t.Helper()
	broker := newMemBroker()
	sim := NewSim(nil)

	responder := NewResponder(broker, sim, mqtt.EngineInfo{ID: "e1", Platform: "linux"}, sim.Types())
	require.NoError(t, responder.Start())
	t.Cleanup(responder.Stop)

	backend := NewMQTTBackend(broker, "e1")
	require.NoError(t, backend.Start())
	require.NoError(t, backend.Start())
	return NewClient(backend, time.Second), backend, broker
}

func TestMQTTBackendRoundTrip(t *testing.T) {
	c, backend, broker := startLink(t)
	ctx := context.Background()

	require.NoError(t, c.Startup(ctx))
	require.NoError(t, c.CreateScene(ctx, "Live"))
	assert.Equal(t, apperr.DuplicateName, apperr.CodeOf(c.CreateScene(ctx, "Live")))

	info, err := c.AddSource(ctx, "Live", "browser_source", "Overlay", map[string]any{"width": 1280})
	require.NoError(t, err)
	assert.Equal(t, float64(1280), info.Settings["width"])

	schema, _, err := c.GetSourceProperties(ctx, "Live", "Overlay")
	require.NoError(t, err)
	_, ok := schema.Lookup("url")
	assert.True(t, ok)

	snap, err := c.GetFullSceneData(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Live"}, snap.SceneNames())

	assert.Equal(t, 0, backend.Pending())
	assert.Equal(t, 1, broker.count(mqtt.AnnounceTopic("e1")))
}

func TestMQTTBackendTimeoutWhenNoReply(t *testing.T) {
	c, backend, broker := startLink(t)
	broker.setDrop(mqtt.ResponseTopic("e1"), true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Startup(ctx)
	assert.Equal(t, apperr.Timeout, apperr.CodeOf(err))
	assert.Equal(t, 0, backend.Pending())
}

func TestMQTTBackendIgnoresUnknownResponses(t *testing.T) {
	_, backend, broker := startLink(t)
	b, _ := json.Marshal(Response{ID: "not-pending", OK: true})
	require.NoError(t, broker.Publish(mqtt.ResponseTopic("e1"), b))
	require.NoError(t, broker.Publish(mqtt.ResponseTopic("e1"), []byte("{broken")))
	assert.Equal(t, 0, backend.Pending())
}

func TestResponderAnnouncement(t *testing.T) {
	broker := newMemBroker()
	var got *mqtt.Announcement
	broker.Subscribe(mqtt.AnnounceTopic("e7"), func(_ paho.Client, msg paho.Message) {
		got, _ = mqtt.ParseAnnouncement(msg.Payload())
	})

	sim := NewSim(nil)
	r := NewResponder(broker, sim, mqtt.EngineInfo{ID: "e7", Platform: "darwin"}, sim.Types())
	require.NoError(t, r.Start())
	r.Stop()

	require.NotNil(t, got)
	assert.Equal(t, "darwin", got.Engine.Platform)
	assert.Contains(t, got.Types, "coreaudio_input_capture")
}
