package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/events"
	"github.com/AaronLay10/TitanMedia/internal/properties"
	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
)

// Audio levels are reported in [MinDB, MaxDB].
const (
	MinDB = -60.0
	MaxDB = 0.0
)

// DefaultTimeout bounds calls whose context has no deadline.
const DefaultTimeout = 5 * time.Second

// Client is the typed engine adapter.
type Client struct {
	backend Backend
	timeout time.Duration
}

// NewClient wraps a backend. A zero timeout uses DefaultTimeout.
func NewClient(backend Backend, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{backend: backend, timeout: timeout}
}

func (c *Client) call(ctx context.Context, req Request) (Response, error) {
	op := "engine." + string(req.Op)
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.backend.Call(ctx, req)
	if err != nil {
		var ae *apperr.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			// The engine may or may not have applied the request.
			return Response{}, apperr.Wrap(apperr.Timeout, op, err)
		case errors.As(err, &ae):
			return Response{}, err
		default:
			return Response{}, apperr.Wrap(apperr.Unavailable, op, err)
		}
	}
	if !resp.OK {
		code := resp.Code
		if code == "" {
			code = apperr.Internal
		}
		return resp, &apperr.Error{Code: code, Op: op, Message: resp.Error}
	}
	return resp, nil
}

// Startup starts the engine. Calling it twice is a no-op.
func (c *Client) Startup(ctx context.Context) error {
	_, err := c.call(ctx, Request{Op: OpStartup})
	return err
}

// Shutdown stops the engine without reporting failure; errors are logged.
func (c *Client) Shutdown(ctx context.Context) {
	if _, err := c.call(ctx, Request{Op: OpShutdown}); err != nil {
		events.Emit("warning", "engine.error", "shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// CreateScene creates an empty scene.
func (c *Client) CreateScene(ctx context.Context, name string) error {
	_, err := c.call(ctx, Request{Op: OpCreateScene, Scene: name})
	return err
}

// RemoveScene removes a scene. The program scene is refused with InUse.
func (c *Client) RemoveScene(ctx context.Context, name string) error {
	_, err := c.call(ctx, Request{Op: OpRemoveScene, Scene: name})
	return err
}

// SetPreviewScene stages a scene for the next transition.
func (c *Client) SetPreviewScene(ctx context.Context, name string) error {
	_, err := c.call(ctx, Request{Op: OpSetPreviewScene, Scene: name})
	return err
}

// Transition promotes preview to program and returns the new program scene.
func (c *Client) Transition(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, Request{Op: OpTransition})
	if err != nil {
		return "", err
	}
	return resp.Program, nil
}

// AddSource creates a source on top of a scene.
func (c *Client) AddSource(ctx context.Context, scene, typeID, name string, settings map[string]any) (SourceInfo, error) {
	resp, err := c.call(ctx, Request{Op: OpAddSource, Scene: scene, TypeID: typeID, Source: name, Settings: settings})
	if err != nil {
		return SourceInfo{}, err
	}
	if resp.Source == nil {
		return SourceInfo{Name: name, TypeID: typeID, Visible: true}, nil
	}
	return *resp.Source, nil
}

// RemoveSource removes a source from a scene.
func (c *Client) RemoveSource(ctx context.Context, scene, source string) error {
	_, err := c.call(ctx, Request{Op: OpRemoveSource, Scene: scene, Source: source})
	return err
}

// RenameSource renames a source within its scene.
func (c *Client) RenameSource(ctx context.Context, scene, oldName, newName string) error {
	_, err := c.call(ctx, Request{Op: OpRenameSource, Scene: scene, Source: oldName, NewName: newName})
	return err
}

// GetSourceProperties returns a source's property schema and current settings.
func (c *Client) GetSourceProperties(ctx context.Context, scene, source string) (properties.Schema, map[string]any, error) {
	resp, err := c.call(ctx, Request{Op: OpGetSourceProperties, Scene: scene, Source: source})
	if err != nil {
		return nil, nil, err
	}
	settings := resp.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	return resp.Schema, settings, nil
}

// UpdateSourceProperties applies settings as one unit. Keys outside the
// source's schema are rejected with UnknownProperty.
func (c *Client) UpdateSourceProperties(ctx context.Context, scene, source string, settings map[string]any) error {
	_, err := c.call(ctx, Request{Op: OpUpdateSourceProperties, Scene: scene, Source: source, Settings: settings})
	return err
}

// SetSourceMuted sets a source's mute flag.
func (c *Client) SetSourceMuted(ctx context.Context, scene, source string, muted bool) error {
	_, err := c.call(ctx, Request{Op: OpSetSourceMuted, Scene: scene, Source: source, Flag: &muted})
	return err
}

// SetSourceVisible shows or hides a source.
func (c *Client) SetSourceVisible(ctx context.Context, scene, source string, visible bool) error {
	_, err := c.call(ctx, Request{Op: OpSetSourceVisible, Scene: scene, Source: source, Flag: &visible})
	return err
}

// GetAudioLevels returns per-source levels clamped to [MinDB, MaxDB].
func (c *Client) GetAudioLevels(ctx context.Context) ([]Level, error) {
	resp, err := c.call(ctx, Request{Op: OpGetAudioLevels})
	if err != nil {
		return nil, err
	}
	levels := make([]Level, len(resp.Levels))
	for i, l := range resp.Levels {
		l.DB = ClampDB(l.DB)
		levels[i] = l
	}
	return levels, nil
}

// ClampDB limits a level to [MinDB, MaxDB].
func ClampDB(db float64) float64 {
	switch {
	case db < MinDB || math.IsNaN(db):
		return MinDB
	case db > MaxDB:
		return MaxDB
	}
	return db
}

// GetLatestFrame returns the most recent program frame.
func (c *Client) GetLatestFrame(ctx context.Context) (Frame, error) {
	resp, err := c.call(ctx, Request{Op: OpGetLatestFrame})
	if err != nil {
		return Frame{}, err
	}
	if resp.Frame == nil {
		return Frame{}, nil
	}
	return *resp.Frame, nil
}

// StartStreaming starts the stream output. AlreadyActive if running.
func (c *Client) StartStreaming(ctx context.Context, server, key string) error {
	_, err := c.call(ctx, Request{Op: OpStartStreaming, Server: server, Key: key})
	return err
}

// StopStreaming stops the stream output. Stopping an idle output is a no-op.
func (c *Client) StopStreaming(ctx context.Context) error {
	_, err := c.call(ctx, Request{Op: OpStopStreaming})
	return err
}

// IsStreaming reports whether the stream output is running.
func (c *Client) IsStreaming(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, Request{Op: OpIsStreaming})
	return resp.Active, err
}

// StartRecording starts the record output. AlreadyActive if running.
func (c *Client) StartRecording(ctx context.Context) error {
	_, err := c.call(ctx, Request{Op: OpStartRecording})
	return err
}

// StopRecording stops the record output. Stopping an idle output is a no-op.
func (c *Client) StopRecording(ctx context.Context) error {
	_, err := c.call(ctx, Request{Op: OpStopRecording})
	return err
}

// IsRecording reports whether the record output is running.
func (c *Client) IsRecording(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, Request{Op: OpIsRecording})
	return resp.Active, err
}

// GetSceneList returns the engine's scenes in order with program and preview.
func (c *Client) GetSceneList(ctx context.Context) (SceneList, error) {
	resp, err := c.call(ctx, Request{Op: OpGetSceneList})
	if err != nil {
		return SceneList{}, err
	}
	if resp.Scenes == nil {
		return SceneList{Scenes: []string{}}, nil
	}
	return *resp.Scenes, nil
}

// GetSceneSources returns a scene's sources back to front.
func (c *Client) GetSceneSources(ctx context.Context, scene string) ([]SourceInfo, error) {
	resp, err := c.call(ctx, Request{Op: OpGetSceneSources, Scene: scene})
	if err != nil {
		return nil, err
	}
	return resp.Sources, nil
}

// GetFullSceneData dumps the whole engine graph.
func (c *Client) GetFullSceneData(ctx context.Context) (scenegraph.Snapshot, error) {
	resp, err := c.call(ctx, Request{Op: OpGetFullSceneData})
	if err != nil {
		return scenegraph.Snapshot{}, err
	}
	if resp.Snapshot == nil {
		return scenegraph.Snapshot{Version: scenegraph.SnapshotVersion, Scenes: []scenegraph.SceneSnapshot{}}, nil
	}
	return *resp.Snapshot, nil
}

// LoadFullSceneData replaces the whole engine graph with snap.
func (c *Client) LoadFullSceneData(ctx context.Context, snap scenegraph.Snapshot) error {
	_, err := c.call(ctx, Request{Op: OpLoadFullSceneData, Snapshot: &snap})
	return err
}
