package engine

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
)

const (
	simFrameWidth  = 16
	simFrameHeight = 9
	simMutedDB     = -100.0
)

// Sim is an in-process engine that implements the full operation contract.
// It backs tests and the "sim" engine transport.
type Sim struct {
	mu        sync.Mutex
	types     map[string]TypeSpec
	started   bool
	scenes    []*simScene
	program   string
	preview   string
	streaming bool
	recording bool
	frameSeq  uint64
	meterTick uint64

	levels    map[[2]string]float64
	failNext  map[Op]error
	dropReply map[Op]bool
	calls     []Op
}

type simScene struct {
	name    string
	sources []*simSource
}

type simSource struct {
	name     string
	typeID   string
	hasAudio bool
	muted    bool
	visible  bool
	settings map[string]any
}

// NewSim returns a stopped simulated engine offering types, or DefaultTypes
// when types is nil.
func NewSim(types map[string]TypeSpec) *Sim {
	if types == nil {
		types = DefaultTypes()
	}
	return &Sim{
		types:     types,
		levels:    map[[2]string]float64{},
		failNext:  map[Op]error{},
		dropReply: map[Op]bool{},
	}
}

// Types returns the offered type ids in sorted order.
func (s *Sim) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.types))
	for id := range s.types {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FailNext makes the next call of op fail with err without applying it.
func (s *Sim) FailNext(op Op, err error) {
	s.mu.Lock()
	s.failNext[op] = err
	s.mu.Unlock()
}

// DropReply makes the next call of op apply and then lose its reply, so the
// caller sees a deadline error with the request already applied.
func (s *Sim) DropReply(op Op) {
	s.mu.Lock()
	s.dropReply[op] = true
	s.mu.Unlock()
}

// SetLevel pins the raw level reported for a source. Values outside the
// reporting range are passed through unclamped.
func (s *Sim) SetLevel(scene, source string, db float64) {
	s.mu.Lock()
	s.levels[[2]string{scene, source}] = db
	s.mu.Unlock()
}

// Calls returns the ops received so far.
func (s *Sim) Calls() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.calls...)
}

// ResetCalls clears the call log.
func (s *Sim) ResetCalls() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// Call implements Backend.
func (s *Sim) Call(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req.Op)
	if err, ok := s.failNext[req.Op]; ok {
		delete(s.failNext, req.Op)
		return Response{}, err
	}

	resp, err := s.dispatch(req)
	if s.dropReply[req.Op] {
		delete(s.dropReply, req.Op)
		return Response{}, context.DeadlineExceeded
	}
	if err != nil {
		return Failure(req.ID, err), nil
	}
	resp.ID = req.ID
	resp.OK = true
	return resp, nil
}

func (s *Sim) dispatch(req Request) (Response, error) {
	op := "sim." + string(req.Op)

	switch req.Op {
	case OpStartup:
		s.started = true
		return Response{}, nil
	case OpShutdown:
		s.started = false
		s.streaming = false
		s.recording = false
		return Response{}, nil
	}

	if !s.started {
		return Response{}, apperr.New(apperr.Unavailable, op, "engine not started")
	}

	switch req.Op {
	case OpCreateScene:
		if req.Scene == "" {
			return Response{}, apperr.New(apperr.InvalidValue, op, "scene name is required")
		}
		if s.scene(req.Scene) != nil {
			return Response{}, apperr.New(apperr.DuplicateName, op, "scene %q already exists", req.Scene)
		}
		s.scenes = append(s.scenes, &simScene{name: req.Scene})
		return Response{}, nil

	case OpRemoveScene:
		idx := s.sceneIndex(req.Scene)
		if idx < 0 {
			return Response{}, apperr.New(apperr.NotFound, op, "scene %q not found", req.Scene)
		}
		if req.Scene == s.program {
			return Response{}, apperr.New(apperr.InUse, op, "scene %q is on program", req.Scene)
		}
		s.scenes = append(s.scenes[:idx], s.scenes[idx+1:]...)
		if s.preview == req.Scene {
			s.preview = ""
		}
		return Response{}, nil

	case OpSetPreviewScene:
		if s.scene(req.Scene) == nil {
			return Response{}, apperr.New(apperr.NotFound, op, "scene %q not found", req.Scene)
		}
		if req.Scene == s.program {
			return Response{}, apperr.New(apperr.InvalidTransition, op, "scene %q is already on program", req.Scene)
		}
		s.preview = req.Scene
		return Response{}, nil

	case OpTransition:
		if s.preview == "" {
			return Response{}, apperr.New(apperr.InvalidTransition, op, "no preview scene")
		}
		s.program = s.preview
		s.preview = ""
		return Response{Program: s.program}, nil

	case OpAddSource:
		sc := s.scene(req.Scene)
		if sc == nil {
			return Response{}, apperr.New(apperr.NotFound, op, "scene %q not found", req.Scene)
		}
		spec, ok := s.types[req.TypeID]
		if !ok {
			return Response{}, apperr.New(apperr.UnsupportedType, op, "type %q is not available", req.TypeID)
		}
		if req.Source == "" {
			return Response{}, apperr.New(apperr.InvalidValue, op, "source name is required")
		}
		if sc.source(req.Source) != nil {
			return Response{}, apperr.New(apperr.DuplicateName, op, "source %q already exists in %q", req.Source, req.Scene)
		}
		if err := spec.Schema.ValidateSettings(req.Settings); err != nil {
			return Response{}, err
		}
		settings, err := scenegraph.NormalizeSettings(req.Settings)
		if err != nil {
			return Response{}, apperr.Wrap(apperr.InvalidValue, op, err)
		}
		src := &simSource{
			name:     req.Source,
			typeID:   req.TypeID,
			hasAudio: spec.HasAudio,
			visible:  true,
			settings: settings,
		}
		sc.sources = append(sc.sources, src)
		info := src.info()
		return Response{Source: &info}, nil

	case OpRemoveSource:
		sc, src, err := s.lookup(op, req.Scene, req.Source)
		if err != nil {
			return Response{}, err
		}
		for i, x := range sc.sources {
			if x == src {
				sc.sources = append(sc.sources[:i], sc.sources[i+1:]...)
				break
			}
		}
		return Response{}, nil

	case OpRenameSource:
		sc, src, err := s.lookup(op, req.Scene, req.Source)
		if err != nil {
			return Response{}, err
		}
		if req.NewName == "" {
			return Response{}, apperr.New(apperr.InvalidValue, op, "new name is required")
		}
		if req.NewName != req.Source && sc.source(req.NewName) != nil {
			return Response{}, apperr.New(apperr.DuplicateName, op, "source %q already exists in %q", req.NewName, req.Scene)
		}
		src.name = req.NewName
		return Response{}, nil

	case OpGetSourceProperties:
		_, src, err := s.lookup(op, req.Scene, req.Source)
		if err != nil {
			return Response{}, err
		}
		settings, _ := scenegraph.NormalizeSettings(src.settings)
		return Response{Schema: s.types[src.typeID].Schema, Settings: settings}, nil

	case OpUpdateSourceProperties:
		_, src, err := s.lookup(op, req.Scene, req.Source)
		if err != nil {
			return Response{}, err
		}
		if err := s.types[src.typeID].Schema.ValidateSettings(req.Settings); err != nil {
			return Response{}, err
		}
		update, err := scenegraph.NormalizeSettings(req.Settings)
		if err != nil {
			return Response{}, apperr.Wrap(apperr.InvalidValue, op, err)
		}
		for k, v := range update {
			src.settings[k] = v
		}
		return Response{}, nil

	case OpSetSourceMuted, OpSetSourceVisible:
		_, src, err := s.lookup(op, req.Scene, req.Source)
		if err != nil {
			return Response{}, err
		}
		if req.Flag == nil {
			return Response{}, apperr.New(apperr.InvalidValue, op, "flag is required")
		}
		if req.Op == OpSetSourceMuted {
			src.muted = *req.Flag
		} else {
			src.visible = *req.Flag
		}
		return Response{}, nil

	case OpGetAudioLevels:
		return Response{Levels: s.audioLevels()}, nil

	case OpGetLatestFrame:
		f := s.frame()
		return Response{Frame: &f}, nil

	case OpStartStreaming:
		if s.streaming {
			return Response{}, apperr.New(apperr.AlreadyActive, op, "already streaming")
		}
		if req.Server == "" {
			return Response{}, apperr.New(apperr.InvalidValue, op, "stream server is required")
		}
		s.streaming = true
		return Response{}, nil
	case OpStopStreaming:
		s.streaming = false
		return Response{}, nil
	case OpIsStreaming:
		return Response{Active: s.streaming}, nil

	case OpStartRecording:
		if s.recording {
			return Response{}, apperr.New(apperr.AlreadyActive, op, "already recording")
		}
		s.recording = true
		return Response{}, nil
	case OpStopRecording:
		s.recording = false
		return Response{}, nil
	case OpIsRecording:
		return Response{Active: s.recording}, nil

	case OpGetSceneList:
		names := make([]string, 0, len(s.scenes))
		for _, sc := range s.scenes {
			names = append(names, sc.name)
		}
		return Response{Scenes: &SceneList{Scenes: names, Program: s.program, Preview: s.preview}}, nil

	case OpGetSceneSources:
		sc := s.scene(req.Scene)
		if sc == nil {
			return Response{}, apperr.New(apperr.NotFound, op, "scene %q not found", req.Scene)
		}
		out := make([]SourceInfo, 0, len(sc.sources))
		for _, src := range sc.sources {
			out = append(out, src.info())
		}
		return Response{Sources: out}, nil

	case OpGetFullSceneData:
		snap := s.snapshot()
		return Response{Snapshot: &snap}, nil

	case OpLoadFullSceneData:
		if req.Snapshot == nil {
			return Response{}, apperr.New(apperr.InvalidValue, op, "snapshot is required")
		}
		return Response{}, s.load(op, *req.Snapshot)
	}

	return Response{}, apperr.New(apperr.Internal, op, "unknown operation")
}

func (s *Sim) scene(name string) *simScene {
	if i := s.sceneIndex(name); i >= 0 {
		return s.scenes[i]
	}
	return nil
}

func (s *Sim) sceneIndex(name string) int {
	for i, sc := range s.scenes {
		if sc.name == name {
			return i
		}
	}
	return -1
}

func (sc *simScene) source(name string) *simSource {
	for _, src := range sc.sources {
		if src.name == name {
			return src
		}
	}
	return nil
}

func (s *Sim) lookup(op, scene, source string) (*simScene, *simSource, error) {
	sc := s.scene(scene)
	if sc == nil {
		return nil, nil, apperr.New(apperr.NotFound, op, "scene %q not found", scene)
	}
	src := sc.source(source)
	if src == nil {
		return nil, nil, apperr.New(apperr.NotFound, op, "source %q not found in %q", source, scene)
	}
	return sc, src, nil
}

func (src *simSource) info() SourceInfo {
	settings, _ := scenegraph.NormalizeSettings(src.settings)
	return SourceInfo{
		Name:     src.name,
		TypeID:   src.typeID,
		HasAudio: src.hasAudio,
		Muted:    src.muted,
		Visible:  src.visible,
		Settings: settings,
	}
}

func (s *Sim) audioLevels() []Level {
	s.meterTick++
	var out []Level
	i := 0
	for _, sc := range s.scenes {
		for _, src := range sc.sources {
			if !src.hasAudio {
				continue
			}
			i++
			db, pinned := s.levels[[2]string{sc.name, src.name}]
			switch {
			case src.muted:
				db = simMutedDB
			case !pinned:
				db = -60 + 48*(0.5+0.5*math.Sin(float64(s.meterTick)*0.7+float64(i)))
			}
			out = append(out, Level{Scene: sc.name, Source: src.name, DB: db})
		}
	}
	return out
}

func (s *Sim) frame() Frame {
	s.frameSeq++
	var r, g, b byte
	if s.program != "" {
		h := fnv.New32a()
		h.Write([]byte(s.program))
		sum := h.Sum32()
		r, g, b = byte(sum>>16), byte(sum>>8), byte(sum)
	}
	data := make([]byte, simFrameWidth*simFrameHeight*4)
	for i := 0; i < len(data); i += 4 {
		data[i], data[i+1], data[i+2], data[i+3] = r, g, b, 0xFF
	}
	return Frame{Seq: s.frameSeq, Width: simFrameWidth, Height: simFrameHeight, Format: "rgba", Data: data}
}

func (s *Sim) snapshot() scenegraph.Snapshot {
	snap := scenegraph.Snapshot{Version: scenegraph.SnapshotVersion, Scenes: []scenegraph.SceneSnapshot{}}
	for _, sc := range s.scenes {
		ss := scenegraph.SceneSnapshot{Name: sc.name, Sources: []scenegraph.SourceSnapshot{}}
		for _, src := range sc.sources {
			settings, _ := scenegraph.NormalizeSettings(src.settings)
			ss.Sources = append(ss.Sources, scenegraph.SourceSnapshot{
				Name:     src.name,
				TypeID:   src.typeID,
				Settings: settings,
				HasAudio: src.hasAudio,
				Muted:    src.muted,
				Visible:  src.visible,
			})
		}
		snap.Scenes = append(snap.Scenes, ss)
	}
	return snap
}

func (s *Sim) load(op string, snap scenegraph.Snapshot) error {
	if _, err := scenegraph.FromSnapshot(snap); err != nil {
		return err
	}
	scenes := make([]*simScene, 0, len(snap.Scenes))
	for _, ss := range snap.Scenes {
		sc := &simScene{name: ss.Name}
		for _, src := range ss.Sources {
			spec, ok := s.types[src.TypeID]
			if !ok {
				return apperr.New(apperr.UnsupportedType, op, "type %q is not available", src.TypeID)
			}
			settings, err := scenegraph.NormalizeSettings(src.Settings)
			if err != nil {
				return apperr.Wrap(apperr.InvalidValue, op, err)
			}
			sc.sources = append(sc.sources, &simSource{
				name:     src.Name,
				typeID:   src.TypeID,
				hasAudio: spec.HasAudio,
				muted:    src.Muted,
				visible:  src.Visible,
				settings: settings,
			})
		}
		scenes = append(scenes, sc)
	}
	s.scenes = scenes
	s.program = ""
	s.preview = ""
	return nil
}
