// Package meter polls the engine for audio levels and program frames on a
// fixed tick and keeps only the latest result of each.
package meter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/TitanMedia/internal/engine"
	"github.com/AaronLay10/TitanMedia/internal/events"
)

const (
	DefaultInterval = 50 * time.Millisecond
	subscriberBuf   = 8
)

// Source is the engine surface the poller reads. *engine.Client satisfies it.
type Source interface {
	GetAudioLevels(ctx context.Context) ([]engine.Level, error)
	GetLatestFrame(ctx context.Context) (engine.Frame, error)
}

// Options configures a Poller. Zero values select defaults.
type Options struct {
	Interval time.Duration
	// Timeout bounds each engine call; it defaults to the interval.
	Timeout time.Duration
	// Frames enables latest-frame polling next to the levels.
	Frames bool
}

// Reading is one set of audio levels.
type Reading struct {
	Levels []engine.Level `json:"levels"`
	At     time.Time      `json:"at"`
}

// Stats counts polls since start.
type Stats struct {
	Polls    int64
	Failures int64
}

// Poller runs the metering loop.
type Poller struct {
	src  Source
	opts Options

	mu      sync.RWMutex
	reading Reading
	frame   *engine.Frame
	failing map[string]bool

	subs *events.Hub[Reading]

	polls    atomic.Int64
	failures atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a poller. Call Start to begin polling.
func New(src Source, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = opts.Interval
	}
	return &Poller{
		src:     src,
		opts:    opts,
		failing: make(map[string]bool),
		subs:    events.NewHub[Reading](subscriberBuf),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the polling loop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.loop()
}

// Stop ends the loop and closes every subscriber channel.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
		p.subs.CloseAll()
	})
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll runs one tick. A failed call is dropped; the next tick tries again.
func (p *Poller) poll() {
	p.polls.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()

	levels, err := p.src.GetAudioLevels(ctx)
	if p.track("levels", err) {
		r := Reading{Levels: levels, At: time.Now()}
		p.mu.Lock()
		p.reading = r
		p.mu.Unlock()
		p.subs.Publish(r)
	}

	if !p.opts.Frames {
		return
	}
	frame, err := p.src.GetLatestFrame(ctx)
	if p.track("frames", err) {
		p.mu.Lock()
		p.frame = &frame
		p.mu.Unlock()
	}
}

// track records the outcome of one call and reports whether it succeeded.
// Only the first failure of a streak and the recovery are logged.
func (p *Poller) track(what string, err error) bool {
	p.mu.Lock()
	was := p.failing[what]
	p.failing[what] = err != nil
	p.mu.Unlock()

	if err != nil {
		p.failures.Add(1)
		if !was {
			events.Emit("warning", "meter.poll_failed", err.Error(), map[string]interface{}{"poll": what})
		}
		return false
	}
	if was {
		events.Emit("info", "meter.recovered", "", map[string]interface{}{"poll": what})
	}
	return true
}

// Levels returns the latest reading. At is zero before the first success.
func (p *Poller) Levels() Reading {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reading
}

// Frame returns the latest program frame, if any has been polled.
func (p *Poller) Frame() (engine.Frame, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.frame == nil {
		return engine.Frame{}, false
	}
	return *p.frame, true
}

// Subscribe returns a channel receiving every new reading. Readings are
// dropped for a subscriber whose buffer is full.
func (p *Poller) Subscribe() <-chan Reading { return p.subs.Subscribe() }

// Unsubscribe removes and closes a subscription.
func (p *Poller) Unsubscribe(sub <-chan Reading) { p.subs.Unsubscribe(sub) }

// SubscriberCount returns the number of active subscribers.
func (p *Poller) SubscriberCount() int { return p.subs.Len() }

// Stats returns poll counters.
func (p *Poller) Stats() Stats {
	return Stats{Polls: p.polls.Load(), Failures: p.failures.Load()}
}
