package meter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/TitanMedia/internal/engine"
	"github.com/AaronLay10/TitanMedia/internal/events"
)

type fakeSource struct {
	mu     sync.Mutex
	levels []engine.Level
	err    error
	seq    uint64
}

func (f *fakeSource) GetAudioLevels(context.Context) ([]engine.Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]engine.Level(nil), f.levels...), nil
}

func (f *fakeSource) GetLatestFrame(context.Context) (engine.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return engine.Frame{}, f.err
	}
	f.seq++
	return engine.Frame{Seq: f.seq, Width: 2, Height: 1, Format: "rgba", Data: make([]byte, 8)}, nil
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func countEvents(name string) int {
	n := 0
	for _, e := range events.Snapshot() {
		if e.Name == name {
			n++
		}
	}
	return n
}

func TestPollKeepsLatest(t *testing.T) {
	src := &fakeSource{levels: []engine.Level{{Scene: "A", Source: "Mic", DB: -12}}}
	p := New(src, Options{Frames: true})

	_, ok := p.Frame()
	assert.False(t, ok)
	assert.True(t, p.Levels().At.IsZero())

	p.poll()
	p.poll()

	r := p.Levels()
	require.Len(t, r.Levels, 1)
	assert.Equal(t, -12.0, r.Levels[0].DB)
	f, ok := p.Frame()
	require.True(t, ok)
	assert.Equal(t, uint64(2), f.Seq)
	assert.Equal(t, Stats{Polls: 2}, p.Stats())
}

func TestFailureStreakLoggedOnce(t *testing.T) {
	events.Clear()
	src := &fakeSource{levels: []engine.Level{{Scene: "A", Source: "Mic", DB: -20}}}
	p := New(src, Options{})

	p.poll()
	src.fail(errors.New("engine busy"))
	for i := 0; i < 5; i++ {
		p.poll()
	}

	assert.Equal(t, 1, countEvents("meter.poll_failed"))
	assert.Equal(t, int64(5), p.Stats().Failures)
	// The last good reading survives the failures.
	assert.Equal(t, -20.0, p.Levels().Levels[0].DB)

	src.fail(nil)
	p.poll()
	src.fail(errors.New("engine busy"))
	p.poll()
	assert.Equal(t, 1, countEvents("meter.recovered"))
	assert.Equal(t, 2, countEvents("meter.poll_failed"))
	for _, e := range events.Snapshot() {
		if e.Name == "meter.poll_failed" {
			assert.Equal(t, "warning", e.Level)
		}
	}
}

func TestSlowSubscriberDropsReadings(t *testing.T) {
	src := &fakeSource{}
	p := New(src, Options{})
	slow := p.Subscribe()
	assert.Equal(t, 1, p.SubscriberCount())

	for i := 0; i < subscriberBuf*3; i++ {
		p.poll()
	}
	assert.Len(t, slow, subscriberBuf)

	p.Unsubscribe(slow)
	assert.Equal(t, 0, p.SubscriberCount())
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{levels: []engine.Level{{Scene: "A", Source: "Mic", DB: -3}}}
	p := New(src, Options{Interval: 5 * time.Millisecond})
	sub := p.Subscribe()
	p.Start()

	select {
	case r := <-sub:
		assert.Len(t, r.Levels, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no reading received")
	}

	p.Stop()
	p.Stop()
	for range sub {
	}
	assert.Equal(t, 0, p.SubscriberCount())
}
