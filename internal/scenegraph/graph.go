// Package scenegraph is the in-memory model of every scene, its ordered sources
// and their settings. It performs no I/O.
//
// Source order within a scene is back-to-front: index 0 is composited first
// (bottom), the last source is drawn on top. Display order equals composite order.
//
// A Graph published by the studio is never mutated in place. Mutations are
// applied to a Clone, confirmed against the engine, and only then published.
package scenegraph

import (
	"github.com/AaronLay10/TitanMedia/internal/apperr"
)

// Source is a single capturable or renderable input owned by a scene.
type Source struct {
	Name     string
	Kind     string // generic kind, see internal/sources
	TypeID   string // engine type identifier
	Settings map[string]any
	HasAudio bool
	Muted    bool
	Visible  bool
}

// Scene is a named, ordered composite of sources.
type Scene struct {
	Name    string
	Sources []*Source
}

// Graph holds all scenes in creation order.
type Graph struct {
	scenes []*Scene
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// Len returns the number of scenes.
func (g *Graph) Len() int {
	return len(g.scenes)
}

// SceneNames returns scene names in order.
func (g *Graph) SceneNames() []string {
	names := make([]string, 0, len(g.scenes))
	for _, s := range g.scenes {
		names = append(names, s.Name)
	}
	return names
}

// FindScene returns the scene with the given name, or nil.
// The returned pointer belongs to the graph and must only be modified on a clone.
func (g *Graph) FindScene(name string) *Scene {
	name = NormalizeName(name)
	for _, s := range g.scenes {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// FindSource returns the named source within a scene, or nil.
func (g *Graph) FindSource(sceneName, sourceName string) *Source {
	sc := g.FindScene(sceneName)
	if sc == nil {
		return nil
	}
	return sc.find(sourceName)
}

// SourceNames returns the names of a scene's sources in composite order.
func (g *Graph) SourceNames(sceneName string) []string {
	sc := g.FindScene(sceneName)
	if sc == nil {
		return nil
	}
	names := make([]string, 0, len(sc.Sources))
	for _, src := range sc.Sources {
		names = append(names, src.Name)
	}
	return names
}

// AddScene appends a new empty scene.
func (g *Graph) AddScene(name string) (*Scene, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, apperr.New(apperr.InvalidValue, "scenegraph.addScene", "scene name is empty")
	}
	if g.FindScene(name) != nil {
		return nil, apperr.New(apperr.DuplicateName, "scenegraph.addScene", "name conflict: scene %q already exists", name)
	}
	sc := &Scene{Name: name, Sources: []*Source{}}
	g.scenes = append(g.scenes, sc)
	return sc, nil
}

// RemoveScene removes a scene and, with it, all of its sources.
func (g *Graph) RemoveScene(name string) error {
	name = NormalizeName(name)
	for i, s := range g.scenes {
		if s.Name == name {
			g.scenes = append(g.scenes[:i], g.scenes[i+1:]...)
			return nil
		}
	}
	return apperr.New(apperr.NotFound, "scenegraph.removeScene", "scene %q not found", name)
}

// AddSource places src on top of the scene.
func (g *Graph) AddSource(sceneName string, src Source) (*Source, error) {
	sc := g.FindScene(sceneName)
	if sc == nil {
		return nil, apperr.New(apperr.NotFound, "scenegraph.addSource", "scene %q not found", NormalizeName(sceneName))
	}
	src.Name = NormalizeName(src.Name)
	if src.Name == "" {
		return nil, apperr.New(apperr.InvalidValue, "scenegraph.addSource", "source name is empty")
	}
	if sc.find(src.Name) != nil {
		return nil, apperr.New(apperr.DuplicateName, "scenegraph.addSource",
			"name conflict: source %q already exists in scene %q", src.Name, sc.Name)
	}
	settings, err := NormalizeSettings(src.Settings)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidValue, "scenegraph.addSource", err)
	}
	src.Settings = settings
	s := &src
	sc.Sources = append(sc.Sources, s)
	return s, nil
}

// RemoveSource deletes a source from its scene.
func (g *Graph) RemoveSource(sceneName, sourceName string) error {
	sc := g.FindScene(sceneName)
	if sc == nil {
		return apperr.New(apperr.NotFound, "scenegraph.removeSource", "scene %q not found", NormalizeName(sceneName))
	}
	idx := sc.index(sourceName)
	if idx < 0 {
		return apperr.New(apperr.NotFound, "scenegraph.removeSource",
			"source %q not found in scene %q", NormalizeName(sourceName), sc.Name)
	}
	sc.Sources = append(sc.Sources[:idx], sc.Sources[idx+1:]...)
	return nil
}

// RenameSource changes a source's name, keeping its position.
func (g *Graph) RenameSource(sceneName, oldName, newName string) error {
	src, sc, err := g.lookup("scenegraph.renameSource", sceneName, oldName)
	if err != nil {
		return err
	}
	newName = NormalizeName(newName)
	if newName == "" {
		return apperr.New(apperr.InvalidValue, "scenegraph.renameSource", "source name is empty")
	}
	if newName == src.Name {
		return nil
	}
	if sc.find(newName) != nil {
		return apperr.New(apperr.DuplicateName, "scenegraph.renameSource",
			"name conflict: source %q already exists in scene %q", newName, sc.Name)
	}
	src.Name = newName
	return nil
}

// SetSourceSettings merges settings into a source's bag.
func (g *Graph) SetSourceSettings(sceneName, sourceName string, settings map[string]any) error {
	src, _, err := g.lookup("scenegraph.setSourceSettings", sceneName, sourceName)
	if err != nil {
		return err
	}
	norm, err := NormalizeSettings(settings)
	if err != nil {
		return apperr.Wrap(apperr.InvalidValue, "scenegraph.setSourceSettings", err)
	}
	merged := make(map[string]any, len(src.Settings)+len(norm))
	for k, v := range src.Settings {
		merged[k] = v
	}
	for k, v := range norm {
		merged[k] = v
	}
	src.Settings = merged
	return nil
}

// SetMuted sets a source's mute flag.
func (g *Graph) SetMuted(sceneName, sourceName string, muted bool) error {
	src, _, err := g.lookup("scenegraph.setMuted", sceneName, sourceName)
	if err != nil {
		return err
	}
	src.Muted = muted
	return nil
}

// SetVisible sets a source's visibility flag.
func (g *Graph) SetVisible(sceneName, sourceName string, visible bool) error {
	src, _, err := g.lookup("scenegraph.setVisible", sceneName, sourceName)
	if err != nil {
		return err
	}
	src.Visible = visible
	return nil
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := &Graph{scenes: make([]*Scene, 0, len(g.scenes))}
	for _, sc := range g.scenes {
		cs := &Scene{Name: sc.Name, Sources: make([]*Source, 0, len(sc.Sources))}
		for _, src := range sc.Sources {
			cp := *src
			cp.Settings = cloneValue(src.Settings).(map[string]any)
			cs.Sources = append(cs.Sources, &cp)
		}
		out.scenes = append(out.scenes, cs)
	}
	return out
}

// Equal reports whether two graphs hold the same scenes, sources, order and settings.
func (g *Graph) Equal(other *Graph) bool {
	return g.Snapshot().Equal(other.Snapshot())
}

func (g *Graph) lookup(op, sceneName, sourceName string) (*Source, *Scene, error) {
	sc := g.FindScene(sceneName)
	if sc == nil {
		return nil, nil, apperr.New(apperr.NotFound, op, "scene %q not found", NormalizeName(sceneName))
	}
	src := sc.find(sourceName)
	if src == nil {
		return nil, nil, apperr.New(apperr.NotFound, op, "source %q not found in scene %q", NormalizeName(sourceName), sc.Name)
	}
	return src, sc, nil
}

func (s *Scene) find(name string) *Source {
	if i := s.index(name); i >= 0 {
		return s.Sources[i]
	}
	return nil
}

func (s *Scene) index(name string) int {
	name = NormalizeName(name)
	for i, src := range s.Sources {
		if src.Name == name {
			return i
		}
	}
	return -1
}
