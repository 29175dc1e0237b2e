package events

import (
	"testing"
	"time"
)

func TestHubSubscribeUnsubscribe(t *testing.T) {
	h := NewHub[int](4)
	a, b := h.Subscribe(), h.Subscribe()
	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}

	h.Publish(7)
	for _, sub := range []<-chan int{a, b} {
		if v := <-sub; v != 7 {
			t.Errorf("got %d, want 7", v)
		}
	}

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	if h.Len() != 1 {
		t.Errorf("Len() = %d after unsubscribe, want 1", h.Len())
	}
	if _, ok := <-a; ok {
		t.Error("unsubscribed channel still open")
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub[int](1)
	sub := h.Subscribe()
	h.Publish(1)
	h.Publish(2)

	if v := <-sub; v != 1 {
		t.Errorf("got %d, want 1", v)
	}
	select {
	case v := <-sub:
		t.Errorf("full subscriber received %d", v)
	default:
	}
}

func TestHubCloseAll(t *testing.T) {
	h := NewHub[string](1)
	subs := []<-chan string{h.Subscribe(), h.Subscribe()}
	h.CloseAll()
	if h.Len() != 0 {
		t.Errorf("Len() = %d after CloseAll", h.Len())
	}
	for _, sub := range subs {
		if _, ok := <-sub; ok {
			t.Error("channel still open after CloseAll")
		}
	}
}

func TestEmitReachesSubscribers(t *testing.T) {
	sub := Subscribe()
	defer Unsubscribe(sub)

	Emit("info", "scene.created", "", map[string]interface{}{"scene": "Live"})

	select {
	case e := <-sub:
		if e.Name != "scene.created" || e.Fields["scene"] != "Live" {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestRecentEvents(t *testing.T) {
	Clear()
	for i := 0; i < 10; i++ {
		Emit("info", "source.added", "", map[string]interface{}{"i": i})
	}

	if got := RecentEvents(3); len(got) != 3 || got[2].Fields["i"] != 9 {
		t.Errorf("RecentEvents(3) = %+v", got)
	}
	if got := RecentEvents(0); len(got) != 10 {
		t.Errorf("RecentEvents(0) returned %d events, want 10", len(got))
	}
	if got := RecentEvents(50); len(got) != 10 {
		t.Errorf("RecentEvents(50) returned %d events, want 10", len(got))
	}
}
