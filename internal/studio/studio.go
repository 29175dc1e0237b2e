// Package studio owns the scene model and the Program/Preview switcher.
//
// Every mutation runs on a single worker goroutine in submission order. A
// mutation is applied to a clone of the published graph, confirmed by the
// engine and only then published. Readers see the last published view and
// never wait for the queue.
package studio

import (
	"context"
	"sync"
	"time"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/engine"
	"github.com/AaronLay10/TitanMedia/internal/events"
	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
	"github.com/AaronLay10/TitanMedia/internal/sources"
)

// DefaultSceneName is created when bootstrapping finds no saved collection.
const DefaultSceneName = "Scene 1"

// Store persists whole scene collections.
type Store interface {
	SaveSceneCollection(ctx context.Context, snap scenegraph.Snapshot) error
	// LoadSceneCollection returns found=false and no error when nothing has
	// been saved yet.
	LoadSceneCollection(ctx context.Context) (scenegraph.Snapshot, bool, error)
}

// Options tunes a Studio. Zero values select defaults.
type Options struct {
	QueueSize    int
	StreamServer string
	StreamKey    string
}

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Studio coordinates the scene graph, the switcher and the engine.
type Studio struct {
	engine   *engine.Client
	store    Store
	resolver *sources.Resolver
	opts     Options

	mu        sync.RWMutex
	graph     *scenegraph.Graph
	sw        SwitchState
	outOfSync bool
	restored  bool
	lastSave  time.Time

	jobs      chan job
	stopCh    chan struct{}
	exited    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a studio and starts its mutation worker. store may be nil, in
// which case Save and Load fail with Unavailable.
func New(client *engine.Client, store Store, resolver *sources.Resolver, opts Options) *Studio {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if resolver == nil {
		resolver = sources.NewResolver("")
	}
	s := &Studio{
		engine:   client,
		store:    store,
		resolver: resolver,
		opts:     opts,
		graph:    scenegraph.New(),
		jobs:     make(chan job, opts.QueueSize),
		stopCh:   make(chan struct{}),
		exited:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Resolver returns the platform resolver used for source kinds.
func (s *Studio) Resolver() *sources.Resolver {
	return s.resolver
}

func (s *Studio) worker() {
	defer s.wg.Done()
	defer close(s.exited)
	for {
		select {
		case <-s.stopCh:
			s.drain()
			return
		case j := <-s.jobs:
			j.done <- j.fn(j.ctx)
		}
	}
}

// drain fails every job still queued when the worker stops.
func (s *Studio) drain() {
	for {
		select {
		case j := <-s.jobs:
			j.done <- errClosed()
		default:
			return
		}
	}
}

func errClosed() error {
	return apperr.New(apperr.Unavailable, "studio.submit", "studio is closed")
}

// submit queues fn and waits for its result. Once the worker picks a job up
// it runs to completion; cancelling ctx only aborts waiting for a queue
// slot. Jobs still queued when the studio closes fail with Unavailable.
func (s *Studio) submit(ctx context.Context, fn func(ctx context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case <-s.stopCh:
		return errClosed()
	default:
	}
	select {
	case s.jobs <- j:
	case <-s.stopCh:
		return errClosed()
	case <-ctx.Done():
		return apperr.Wrap(apperr.Unavailable, "studio.submit", ctx.Err())
	}
	select {
	case err := <-j.done:
		return err
	case <-s.exited:
		// The worker may have finished this job just before exiting.
		select {
		case err := <-j.done:
			return err
		default:
			return errClosed()
		}
	}
}

// mutate runs one two-phase change. apply validates and edits a clone of the
// published graph and switcher; remote performs the engine call and may
// adjust the clone with what the engine returned. The clone is published
// only when both succeed.
func (s *Studio) mutate(
	ctx context.Context,
	apply func(g *scenegraph.Graph, sw *SwitchState) error,
	remote func(ctx context.Context, g *scenegraph.Graph, sw *SwitchState) error,
) error {
	if err := s.resyncIfNeeded(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	g := s.graph.Clone()
	sw := s.sw
	s.mu.RUnlock()

	if apply != nil {
		if err := apply(g, &sw); err != nil {
			return err
		}
	}
	if remote != nil {
		if err := remote(ctx, g, &sw); err != nil {
			if apperr.Is(err, apperr.Timeout) {
				s.markOutOfSync(err)
			}
			return err
		}
	}

	s.publish(g, sw)
	return nil
}

func (s *Studio) publish(g *scenegraph.Graph, sw SwitchState) {
	s.mu.Lock()
	s.graph = g
	s.sw = sw
	s.mu.Unlock()
}

func (s *Studio) markOutOfSync(cause error) {
	s.mu.Lock()
	s.outOfSync = true
	s.mu.Unlock()
	events.Emit("warning", "engine.timeout", cause.Error(), nil)
}

// resyncIfNeeded rebuilds the model from the engine after a timeout left the
// outcome of an earlier call unknown.
func (s *Studio) resyncIfNeeded(ctx context.Context) error {
	s.mu.RLock()
	stale := s.outOfSync
	s.mu.RUnlock()
	if !stale {
		return nil
	}
	return s.resync(ctx)
}

func (s *Studio) resync(ctx context.Context) error {
	list, err := s.engine.GetSceneList(ctx)
	if err != nil {
		return err
	}
	g := scenegraph.New()
	for _, name := range list.Scenes {
		if _, err := g.AddScene(name); err != nil {
			return err
		}
		infos, err := s.engine.GetSceneSources(ctx, name)
		if err != nil {
			return err
		}
		for _, info := range infos {
			if _, err := g.AddSource(name, s.sourceFromInfo(info)); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	s.graph = g
	s.sw = SwitchState{Program: list.Program, Preview: list.Preview}
	s.outOfSync = false
	s.mu.Unlock()

	s.emitEvent("engine.resynced", map[string]interface{}{"scenes": len(list.Scenes)})
	return nil
}

// Resync forces a rebuild of the model from the engine.
func (s *Studio) Resync(ctx context.Context) error {
	return s.submit(ctx, s.resync)
}

func (s *Studio) sourceFromInfo(info engine.SourceInfo) scenegraph.Source {
	return scenegraph.Source{
		Name:     info.Name,
		Kind:     string(s.resolver.KindOf(info.TypeID)),
		TypeID:   info.TypeID,
		Settings: info.Settings,
		HasAudio: info.HasAudio,
		Muted:    info.Muted,
		Visible:  info.Visible,
	}
}

// OutOfSync reports whether the model awaits a resync with the engine.
func (s *Studio) OutOfSync() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outOfSync
}

// Snapshot returns the published scene graph.
func (s *Studio) Snapshot() scenegraph.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Snapshot()
}

// SceneNames returns scene names in creation order.
func (s *Studio) SceneNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.SceneNames()
}

// Scene returns one scene of the published graph.
func (s *Studio) Scene(name string) (scenegraph.SceneSnapshot, bool) {
	name = scenegraph.NormalizeName(name)
	for _, sc := range s.Snapshot().Scenes {
		if sc.Name == name {
			return sc, true
		}
	}
	return scenegraph.SceneSnapshot{}, false
}

// Source returns one source of the published graph.
func (s *Studio) Source(scene, source string) (scenegraph.SourceSnapshot, bool) {
	sc, ok := s.Scene(scene)
	if !ok {
		return scenegraph.SourceSnapshot{}, false
	}
	source = scenegraph.NormalizeName(source)
	for _, src := range sc.Sources {
		if src.Name == source {
			return src, true
		}
	}
	return scenegraph.SourceSnapshot{}, false
}

// Switch returns the current Program and Preview.
func (s *Studio) Switch() SwitchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sw
}

// State returns the switcher state.
func (s *Studio) State() State {
	return s.Switch().State()
}

// LastSave returns when the collection was last saved, or the zero time.
func (s *Studio) LastSave() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSave
}

func (s *Studio) emitEvent(name string, fields map[string]interface{}) {
	events.Emit("info", name, "", fields)
}
