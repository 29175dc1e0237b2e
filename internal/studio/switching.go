package studio

import (
	"context"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/events"
	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
	"github.com/AaronLay10/TitanMedia/internal/sources"
)

// CreateScene adds an empty scene and returns its name. An empty name picks
// "Scene N" with the smallest unused N. The first scene of an empty switcher
// becomes Preview.
func (s *Studio) CreateScene(ctx context.Context, name string) (string, error) {
	var created string
	err := s.submit(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.createScene(ctx, name)
		return err
	})
	return created, err
}

func (s *Studio) createScene(ctx context.Context, name string) (string, error) {
	name = scenegraph.NormalizeName(name)
	err := s.mutate(ctx,
		func(g *scenegraph.Graph, sw *SwitchState) error {
			if name == "" {
				name = sources.NextName("Scene", g.SceneNames())
			}
			_, err := g.AddScene(name)
			return err
		},
		func(ctx context.Context, g *scenegraph.Graph, sw *SwitchState) error {
			if err := s.engine.CreateScene(ctx, name); err != nil {
				return err
			}
			if sw.State() != StateIdle {
				return nil
			}
			if err := s.engine.SetPreviewScene(ctx, name); err != nil {
				// The scene exists on the engine; keep it without a preview.
				if apperr.Is(err, apperr.Timeout) {
					s.markOutOfSync(err)
				}
				events.Emit("warning", "engine.error", err.Error(), map[string]interface{}{"scene": name})
				return nil
			}
			sw.Preview = name
			return nil
		})
	if err != nil {
		return "", err
	}
	s.emitEvent("scene.created", map[string]interface{}{"scene": name})
	return name, nil
}

// RemoveScene deletes a scene with all of its sources. Removing the Preview
// scene clears Preview. The engine refuses to remove the Program scene.
func (s *Studio) RemoveScene(ctx context.Context, name string) error {
	name = scenegraph.NormalizeName(name)
	return s.submit(ctx, func(ctx context.Context) error {
		err := s.mutate(ctx,
			func(g *scenegraph.Graph, sw *SwitchState) error {
				return g.RemoveScene(name)
			},
			func(ctx context.Context, g *scenegraph.Graph, sw *SwitchState) error {
				if err := s.engine.RemoveScene(ctx, name); err != nil {
					return err
				}
				sw.forget(name)
				return nil
			})
		if err != nil {
			return err
		}
		s.emitEvent("scene.removed", map[string]interface{}{"scene": name})
		return nil
	})
}

// SetPreview stages a scene in Preview.
func (s *Studio) SetPreview(ctx context.Context, name string) error {
	name = scenegraph.NormalizeName(name)
	return s.submit(ctx, func(ctx context.Context) error {
		err := s.mutate(ctx,
			func(g *scenegraph.Graph, sw *SwitchState) error {
				if g.FindScene(name) == nil {
					return apperr.New(apperr.NotFound, "studio.setPreview", "scene %q not found", name)
				}
				if name == sw.Program {
					return apperr.New(apperr.InvalidTransition, "studio.setPreview",
						"scene %q is already on program", name)
				}
				sw.Preview = name
				return nil
			},
			func(ctx context.Context, g *scenegraph.Graph, sw *SwitchState) error {
				return s.engine.SetPreviewScene(ctx, name)
			})
		if err != nil {
			return err
		}
		s.emitEvent("switch.preview", map[string]interface{}{"scene": name})
		return nil
	})
}

// Transition promotes Preview to Program and clears Preview. It returns the
// new Program scene.
func (s *Studio) Transition(ctx context.Context) (string, error) {
	var program string
	err := s.submit(ctx, func(ctx context.Context) error {
		var from string
		err := s.mutate(ctx,
			func(g *scenegraph.Graph, sw *SwitchState) error {
				if sw.Preview == "" {
					return apperr.New(apperr.InvalidTransition, "studio.transition", "no scene in preview")
				}
				from = sw.Program
				return nil
			},
			func(ctx context.Context, g *scenegraph.Graph, sw *SwitchState) error {
				got, err := s.engine.Transition(ctx)
				if err != nil {
					return err
				}
				if got == "" {
					got = sw.Preview
				}
				sw.Program = got
				sw.Preview = ""
				program = got
				return nil
			})
		if err != nil {
			return err
		}
		s.emitEvent("switch.transition", map[string]interface{}{"from": from, "to": program})
		return nil
	})
	return program, err
}
