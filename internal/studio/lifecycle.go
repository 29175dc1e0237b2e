package studio

import (
	"context"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
	"github.com/AaronLay10/TitanMedia/internal/sources"
)

// AddSourceRequest describes a new source. Either Kind or TypeID is set;
// Kind is resolved to the engine type for the studio's platform.
type AddSourceRequest struct {
	Scene    string         `json:"scene"`
	Kind     sources.Kind   `json:"kind,omitempty"`
	TypeID   string         `json:"type_id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// AddSource creates a source on top of a scene. An empty name picks the kind
// label followed by the smallest unused number.
func (s *Studio) AddSource(ctx context.Context, req AddSourceRequest) (scenegraph.SourceSnapshot, error) {
	kind, typeID, label, err := s.resolveType(req)
	if err != nil {
		return scenegraph.SourceSnapshot{}, err
	}
	sceneName := scenegraph.NormalizeName(req.Scene)
	name := scenegraph.NormalizeName(req.Name)

	err = s.submit(ctx, func(ctx context.Context) error {
		err := s.mutate(ctx,
			func(g *scenegraph.Graph, sw *SwitchState) error {
				if g.FindScene(sceneName) == nil {
					return apperr.New(apperr.NotFound, "studio.addSource", "scene %q not found", sceneName)
				}
				if name == "" {
					name = sources.NextName(label, g.SourceNames(sceneName))
				}
				_, err := g.AddSource(sceneName, scenegraph.Source{
					Name:     name,
					Kind:     string(kind),
					TypeID:   typeID,
					Settings: req.Settings,
					Visible:  true,
				})
				return err
			},
			func(ctx context.Context, g *scenegraph.Graph, sw *SwitchState) error {
				info, err := s.engine.AddSource(ctx, sceneName, typeID, name, req.Settings)
				if err != nil {
					return err
				}
				src := g.FindSource(sceneName, name)
				src.HasAudio = info.HasAudio
				src.Visible = info.Visible
				src.Muted = info.Muted
				if info.Settings != nil {
					norm, err := scenegraph.NormalizeSettings(info.Settings)
					if err != nil {
						return apperr.Wrap(apperr.Internal, "studio.addSource", err)
					}
					src.Settings = norm
				}
				return nil
			})
		if err != nil {
			return err
		}
		s.emitEvent("source.added", map[string]interface{}{
			"scene": sceneName, "source": name, "type_id": typeID,
		})
		return nil
	})
	if err != nil {
		return scenegraph.SourceSnapshot{}, err
	}
	added, _ := s.Source(sceneName, name)
	return added, nil
}

func (s *Studio) resolveType(req AddSourceRequest) (sources.Kind, string, string, error) {
	if req.Kind == "" {
		if req.TypeID == "" {
			return "", "", "", apperr.New(apperr.InvalidValue, "studio.addSource", "kind or type_id is required")
		}
		kind := s.resolver.KindOf(req.TypeID)
		if info, ok := sources.Lookup(kind); ok {
			return kind, req.TypeID, info.Label, nil
		}
		return "", req.TypeID, req.TypeID, nil
	}
	typeID, info, err := s.resolver.Resolve(req.Kind)
	if err != nil {
		return "", "", "", err
	}
	return req.Kind, typeID, info.Label, nil
}

// RemoveSource deletes a source from a scene.
func (s *Studio) RemoveSource(ctx context.Context, scene, source string) error {
	scene, source = scenegraph.NormalizeName(scene), scenegraph.NormalizeName(source)
	return s.submit(ctx, func(ctx context.Context) error {
		err := s.mutate(ctx,
			func(g *scenegraph.Graph, sw *SwitchState) error {
				return g.RemoveSource(scene, source)
			},
			func(ctx context.Context, g *scenegraph.Graph, sw *SwitchState) error {
				return s.engine.RemoveSource(ctx, scene, source)
			})
		if err != nil {
			return err
		}
		s.emitEvent("source.removed", map[string]interface{}{"scene": scene, "source": source})
		return nil
	})
}

// RenameSource renames a source within its scene.
func (s *Studio) RenameSource(ctx context.Context, scene, oldName, newName string) error {
	scene = scenegraph.NormalizeName(scene)
	oldName, newName = scenegraph.NormalizeName(oldName), scenegraph.NormalizeName(newName)
	if oldName == newName {
		if _, ok := s.Source(scene, oldName); !ok {
			return apperr.New(apperr.NotFound, "studio.renameSource", "source %q not found in scene %q", oldName, scene)
		}
		return nil
	}
	return s.submit(ctx, func(ctx context.Context) error {
		err := s.mutate(ctx,
			func(g *scenegraph.Graph, sw *SwitchState) error {
				return g.RenameSource(scene, oldName, newName)
			},
			func(ctx context.Context, g *scenegraph.Graph, sw *SwitchState) error {
				return s.engine.RenameSource(ctx, scene, oldName, newName)
			})
		if err != nil {
			return err
		}
		s.emitEvent("source.renamed", map[string]interface{}{"scene": scene, "from": oldName, "to": newName})
		return nil
	})
}

// SetMuted sets a source's mute flag.
func (s *Studio) SetMuted(ctx context.Context, scene, source string, muted bool) error {
	scene, source = scenegraph.NormalizeName(scene), scenegraph.NormalizeName(source)
	return s.submit(ctx, func(ctx context.Context) error {
		err := s.mutate(ctx,
			func(g *scenegraph.Graph, sw *SwitchState) error {
				return g.SetMuted(scene, source, muted)
			},
			func(ctx context.Context, g *scenegraph.Graph, sw *SwitchState) error {
				return s.engine.SetSourceMuted(ctx, scene, source, muted)
			})
		if err != nil {
			return err
		}
		s.emitEvent("source.muted", map[string]interface{}{"scene": scene, "source": source, "muted": muted})
		return nil
	})
}

// SetVisible shows or hides a source.
func (s *Studio) SetVisible(ctx context.Context, scene, source string, visible bool) error {
	scene, source = scenegraph.NormalizeName(scene), scenegraph.NormalizeName(source)
	return s.submit(ctx, func(ctx context.Context) error {
		err := s.mutate(ctx,
			func(g *scenegraph.Graph, sw *SwitchState) error {
				return g.SetVisible(scene, source, visible)
			},
			func(ctx context.Context, g *scenegraph.Graph, sw *SwitchState) error {
				return s.engine.SetSourceVisible(ctx, scene, source, visible)
			})
		if err != nil {
			return err
		}
		s.emitEvent("source.visibility", map[string]interface{}{"scene": scene, "source": source, "visible": visible})
		return nil
	})
}
