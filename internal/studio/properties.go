package studio

import (
	"context"
	"sort"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/properties"
	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
)

// OpenEditor fetches a source's schema and settings from the engine and
// returns an editor over them.
func (s *Studio) OpenEditor(ctx context.Context, scene, source string) (*properties.Editor, error) {
	scene, source = scenegraph.NormalizeName(scene), scenegraph.NormalizeName(source)
	if _, ok := s.Source(scene, source); !ok {
		return nil, apperr.New(apperr.NotFound, "studio.openEditor", "source %q not found in scene %q", source, scene)
	}
	schema, current, err := s.engine.GetSourceProperties(ctx, scene, source)
	if err != nil {
		return nil, err
	}
	return properties.NewEditor(scene, source, schema, current), nil
}

// CommitProperties sends the editor's staged changes to the engine in one
// call. On success the editor and the scene graph adopt the new values.
func (s *Studio) CommitProperties(ctx context.Context, ed *properties.Editor) error {
	scene, source := ed.Scene(), ed.Source()
	return s.submit(ctx, func(ctx context.Context) error {
		var keys []string
		err := ed.Commit(func(changes map[string]any) error {
			for k := range changes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return s.mutate(ctx,
				func(g *scenegraph.Graph, sw *SwitchState) error {
					return g.SetSourceSettings(scene, source, changes)
				},
				func(ctx context.Context, g *scenegraph.Graph, sw *SwitchState) error {
					return s.engine.UpdateSourceProperties(ctx, scene, source, changes)
				})
		})
		if err != nil || len(keys) == 0 {
			return err
		}
		s.emitEvent("source.properties", map[string]interface{}{"scene": scene, "source": source, "keys": keys})
		return nil
	})
}

// UpdateProperties stages raw values and commits them. Keys are validated
// in sorted order, so the first invalid key reported is stable.
func (s *Studio) UpdateProperties(ctx context.Context, scene, source string, values map[string]any) error {
	ed, err := s.OpenEditor(ctx, scene, source)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ed.StageRaw(name, values[name]); err != nil {
			return err
		}
	}
	return s.CommitProperties(ctx, ed)
}
