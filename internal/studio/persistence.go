package studio

import (
	"context"
	"time"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/events"
	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
)

// Bootstrap starts the engine and restores the saved collection. When
// nothing has been saved, or there is no store, it clears whatever the
// engine still holds and creates DefaultSceneName instead.
func (s *Studio) Bootstrap(ctx context.Context) error {
	return s.submit(ctx, func(ctx context.Context) error {
		if err := s.engine.Startup(ctx); err != nil {
			return err
		}
		s.emitEvent("engine.started", nil)

		if s.store != nil {
			found, err := s.load(ctx)
			if err != nil {
				return err
			}
			if found {
				return nil
			}
		}
		if err := s.restore(ctx, scenegraph.Snapshot{Version: scenegraph.SnapshotVersion}); err != nil {
			return err
		}
		name, err := s.createScene(ctx, DefaultSceneName)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.restored = true
		s.mu.Unlock()
		s.emitEvent("collection.defaulted", map[string]interface{}{"scene": name})
		return nil
	})
}

// Save writes the scene collection to the store. When the model is out of
// sync with the engine the engine's own dump is saved instead.
func (s *Studio) Save(ctx context.Context) error {
	return s.submit(ctx, s.save)
}

func (s *Studio) save(ctx context.Context) error {
	if s.store == nil {
		return apperr.New(apperr.Unavailable, "studio.save", "no store configured")
	}

	var snap scenegraph.Snapshot
	if s.OutOfSync() {
		dump, err := s.engine.GetFullSceneData(ctx)
		if err != nil {
			s.saveFailed(err)
			return err
		}
		for i := range dump.Scenes {
			for j := range dump.Scenes[i].Sources {
				src := &dump.Scenes[i].Sources[j]
				if src.Kind == "" {
					src.Kind = string(s.resolver.KindOf(src.TypeID))
				}
			}
		}
		snap = dump
	} else {
		snap = s.Snapshot()
	}

	if err := s.store.SaveSceneCollection(ctx, snap); err != nil {
		if apperr.CodeOf(err) == apperr.Internal {
			err = apperr.Wrap(apperr.StoreTransactionFailed, "studio.save", err)
		}
		s.saveFailed(err)
		return err
	}

	s.mu.Lock()
	s.lastSave = time.Now()
	s.mu.Unlock()
	s.emitEvent("collection.saved", map[string]interface{}{"scenes": len(snap.Scenes)})
	return nil
}

func (s *Studio) saveFailed(err error) {
	events.Emit("error", "collection.save_failed", err.Error(), nil)
}

// Load replaces the engine's scenes and the model with the saved collection.
// It reports found=false, leaving everything unchanged, when nothing is saved.
func (s *Studio) Load(ctx context.Context) (bool, error) {
	var found bool
	err := s.submit(ctx, func(ctx context.Context) error {
		var err error
		found, err = s.load(ctx)
		return err
	})
	return found, err
}

func (s *Studio) load(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, apperr.New(apperr.Unavailable, "studio.load", "no store configured")
	}
	snap, found, err := s.store.LoadSceneCollection(ctx)
	if err != nil {
		events.Emit("error", "collection.load_failed", err.Error(), nil)
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := s.restore(ctx, snap); err != nil {
		events.Emit("error", "collection.load_failed", err.Error(), nil)
		return false, err
	}
	s.emitEvent("collection.loaded", map[string]interface{}{"scenes": len(snap.Scenes)})
	return true, nil
}

// Restore loads a snapshot into the engine and the model without touching
// the store.
func (s *Studio) Restore(ctx context.Context, snap scenegraph.Snapshot) error {
	return s.submit(ctx, func(ctx context.Context) error {
		return s.restore(ctx, snap)
	})
}

func (s *Studio) restore(ctx context.Context, snap scenegraph.Snapshot) error {
	g, err := scenegraph.FromSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.engine.LoadFullSceneData(ctx, g.Snapshot()); err != nil {
		if apperr.Is(err, apperr.Timeout) {
			s.markOutOfSync(err)
		}
		return err
	}

	var sw SwitchState
	stale := false
	if names := g.SceneNames(); len(names) > 0 {
		if err := s.engine.SetPreviewScene(ctx, names[0]); err != nil {
			stale = apperr.Is(err, apperr.Timeout)
			events.Emit("warning", "engine.error", err.Error(), map[string]interface{}{"scene": names[0]})
		} else {
			sw.Preview = names[0]
		}
	}

	s.mu.Lock()
	s.graph = g
	s.sw = sw
	s.outOfSync = stale
	s.restored = true
	s.mu.Unlock()
	return nil
}

// Close saves the collection, shuts the engine down and stops the worker.
// The engine is shut down even when saving fails. Nothing is saved unless
// the collection was bootstrapped or loaded first.
func (s *Studio) Close(ctx context.Context) error {
	var saveErr error
	s.closeOnce.Do(func() {
		saveErr = s.submit(ctx, func(ctx context.Context) error {
			var err error
			s.mu.RLock()
			restored := s.restored
			s.mu.RUnlock()
			if s.store != nil && restored {
				err = s.save(ctx)
			}
			s.engine.Shutdown(ctx)
			s.emitEvent("engine.stopped", nil)
			return err
		})
		close(s.stopCh)
		s.wg.Wait()
	})
	return saveErr
}
