// Package engine is the typed client for the external media engine.
//
// Every engine operation is a Request answered by a Response. A Backend
// carries them: Sim answers in process, MQTTBackend sends them to a remote
// engine over the broker. Client turns responses into typed results and
// *apperr.Error values.
package engine

import (
	"context"
	"errors"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/properties"
	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
)

// Op names an engine operation on the wire.
type Op string

const (
	OpStartup                Op = "startup"
	OpShutdown               Op = "shutdown"
	OpCreateScene            Op = "create_scene"
	OpRemoveScene            Op = "remove_scene"
	OpSetPreviewScene        Op = "set_preview_scene"
	OpTransition             Op = "transition"
	OpAddSource              Op = "add_source"
	OpRemoveSource           Op = "remove_source"
	OpRenameSource           Op = "rename_source"
	OpGetSourceProperties    Op = "get_source_properties"
	OpUpdateSourceProperties Op = "update_source_properties"
	OpSetSourceMuted         Op = "set_source_muted"
	OpSetSourceVisible       Op = "set_source_visible"
	OpGetAudioLevels         Op = "get_audio_levels"
	OpGetLatestFrame         Op = "get_latest_frame"
	OpStartStreaming         Op = "start_streaming"
	OpStopStreaming          Op = "stop_streaming"
	OpIsStreaming            Op = "is_streaming"
	OpStartRecording         Op = "start_recording"
	OpStopRecording          Op = "stop_recording"
	OpIsRecording            Op = "is_recording"
	OpGetSceneList           Op = "get_scene_list"
	OpGetSceneSources        Op = "get_scene_sources"
	OpGetFullSceneData       Op = "get_full_scene_data"
	OpLoadFullSceneData      Op = "load_full_scene_data"
)

// Request is one engine call.
type Request struct {
	ID       string               `json:"id,omitempty"`
	Op       Op                   `json:"op"`
	Scene    string               `json:"scene,omitempty"`
	Source   string               `json:"source,omitempty"`
	NewName  string               `json:"new_name,omitempty"`
	TypeID   string               `json:"type_id,omitempty"`
	Settings map[string]any       `json:"settings,omitempty"`
	Flag     *bool                `json:"flag,omitempty"`
	Server   string               `json:"server,omitempty"`
	Key      string               `json:"key,omitempty"`
	Snapshot *scenegraph.Snapshot `json:"snapshot,omitempty"`
}

// Response is the engine's answer. OK false carries Code and Error.
type Response struct {
	ID       string               `json:"id,omitempty"`
	OK       bool                 `json:"ok"`
	Code     apperr.Code          `json:"code,omitempty"`
	Error    string               `json:"error,omitempty"`
	Program  string               `json:"program,omitempty"`
	Active   bool                 `json:"active,omitempty"`
	Source   *SourceInfo          `json:"source,omitempty"`
	Sources  []SourceInfo         `json:"sources,omitempty"`
	Schema   properties.Schema    `json:"schema,omitempty"`
	Settings map[string]any       `json:"settings,omitempty"`
	Levels   []Level              `json:"levels,omitempty"`
	Frame    *Frame               `json:"frame,omitempty"`
	Scenes   *SceneList           `json:"scenes,omitempty"`
	Snapshot *scenegraph.Snapshot `json:"snapshot,omitempty"`
}

// Backend delivers requests to an engine.
type Backend interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// SourceInfo is the engine's view of one source.
type SourceInfo struct {
	Name     string         `json:"name"`
	TypeID   string         `json:"type_id"`
	HasAudio bool           `json:"has_audio"`
	Muted    bool           `json:"muted"`
	Visible  bool           `json:"visible"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Level is the current audio level of one source in dBFS.
type Level struct {
	Scene  string  `json:"scene"`
	Source string  `json:"source"`
	DB     float64 `json:"db"`
}

// Frame is the latest composited program frame.
type Frame struct {
	Seq    uint64 `json:"seq"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Data   []byte `json:"data,omitempty"`
}

// SceneList is the engine's authoritative scene order and switch state.
type SceneList struct {
	Scenes  []string `json:"scenes"`
	Program string   `json:"program,omitempty"`
	Preview string   `json:"preview,omitempty"`
}

// Failure builds the error response for err.
func Failure(id string, err error) Response {
	resp := Response{ID: id, Code: apperr.CodeOf(err), Error: err.Error()}
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" {
		resp.Error = ae.Message
	}
	return resp
}
