package api

import (
	"net/http"
	"time"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/properties"
	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
	"github.com/AaronLay10/TitanMedia/internal/sources"
	"github.com/AaronLay10/TitanMedia/internal/studio"
)

func (s *server) studioRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /studio", RequireAnyRole(s.getStudio))

	mux.HandleFunc("GET /scenes", RequireAnyRole(s.listScenes))
	mux.HandleFunc("POST /scenes", RequireAnyRole(s.createScene))
	mux.HandleFunc("GET /scenes/{scene}", RequireAnyRole(s.getScene))
	mux.HandleFunc("DELETE /scenes/{scene}", RequireAnyRole(s.removeScene))

	mux.HandleFunc("POST /scenes/{scene}/sources", RequireAnyRole(s.addSource))
	mux.HandleFunc("GET /scenes/{scene}/sources/{source}", RequireAnyRole(s.getSource))
	mux.HandleFunc("DELETE /scenes/{scene}/sources/{source}", RequireAnyRole(s.removeSource))
	mux.HandleFunc("POST /scenes/{scene}/sources/{source}/rename", RequireAnyRole(s.renameSource))
	mux.HandleFunc("POST /scenes/{scene}/sources/{source}/muted", RequireAnyRole(s.setMuted))
	mux.HandleFunc("POST /scenes/{scene}/sources/{source}/visible", RequireAnyRole(s.setVisible))
	mux.HandleFunc("GET /scenes/{scene}/sources/{source}/properties", RequireAnyRole(s.getProperties))
	mux.HandleFunc("PATCH /scenes/{scene}/sources/{source}/properties", RequireAnyRole(s.updateProperties))
	mux.HandleFunc("GET /source-kinds", RequireAnyRole(s.sourceKinds))

	mux.HandleFunc("GET /switch", RequireAnyRole(s.getSwitch))
	mux.HandleFunc("POST /switch/preview", RequireAnyRole(s.setPreview))
	mux.HandleFunc("POST /switch/transition", RequireAnyRole(s.transition))

	mux.HandleFunc("GET /outputs", RequireAnyRole(s.getOutputs))
	mux.HandleFunc("POST /outputs/streaming/start", RequireAnyRole(s.startStreaming))
	mux.HandleFunc("POST /outputs/streaming/stop", RequireAnyRole(s.stopStreaming))
	mux.HandleFunc("POST /outputs/recording/start", RequireAnyRole(s.startRecording))
	mux.HandleFunc("POST /outputs/recording/stop", RequireAnyRole(s.stopRecording))

	mux.HandleFunc("GET /levels", RequireAnyRole(s.getLevels))
	mux.HandleFunc("GET /frame", RequireAnyRole(s.getFrame))

	mux.HandleFunc("POST /collection/save", RequireAdmin(s.saveCollection))
	mux.HandleFunc("POST /collection/load", RequireAdmin(s.loadCollection))
	mux.HandleFunc("POST /engine/resync", RequireAdmin(s.resync))
}

// StudioView is the GET /studio body.
type StudioView struct {
	Collection scenegraph.Snapshot `json:"collection"`
	Switch     studio.SwitchState  `json:"switch"`
	State      studio.State        `json:"state"`
	OutOfSync  bool                `json:"out_of_sync"`
	LastSave   *time.Time          `json:"last_save,omitempty"`
}

func (s *server) getStudio(w http.ResponseWriter, r *http.Request) {
	v := StudioView{
		Collection: s.Studio.Snapshot(),
		Switch:     s.Studio.Switch(),
		State:      s.Studio.State(),
		OutOfSync:  s.Studio.OutOfSync(),
	}
	if t := s.Studio.LastSave(); !t.IsZero() {
		v.LastSave = &t
	}
	writeOK(w, v)
}

func (s *server) listScenes(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.Studio.SceneNames())
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *server) createScene(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	name, err := s.Studio.CreateScene(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{OK: true, Data: map[string]string{"name": name}})
}

func (s *server) getScene(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("scene")
	sc, ok := s.Studio.Scene(name)
	if !ok {
		writeError(w, apperr.New(apperr.NotFound, "api.getScene", "scene %q not found", name))
		return
	}
	writeOK(w, sc)
}

func (s *server) removeScene(w http.ResponseWriter, r *http.Request) {
	if err := s.Studio.RemoveScene(r.Context(), r.PathValue("scene")); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *server) addSource(w http.ResponseWriter, r *http.Request) {
	var req studio.AddSourceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Scene = r.PathValue("scene")
	src, err := s.Studio.AddSource(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{OK: true, Data: src})
}

func (s *server) getSource(w http.ResponseWriter, r *http.Request) {
	scene, name := r.PathValue("scene"), r.PathValue("source")
	src, ok := s.Studio.Source(scene, name)
	if !ok {
		writeError(w, apperr.New(apperr.NotFound, "api.getSource", "source %q not found in scene %q", name, scene))
		return
	}
	writeOK(w, src)
}

func (s *server) removeSource(w http.ResponseWriter, r *http.Request) {
	if err := s.Studio.RemoveSource(r.Context(), r.PathValue("scene"), r.PathValue("source")); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *server) renameSource(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Studio.RenameSource(r.Context(), r.PathValue("scene"), r.PathValue("source"), req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

type flagRequest struct {
	Value *bool `json:"value"`
}

func (req flagRequest) get(op string) (bool, error) {
	if req.Value == nil {
		return false, apperr.New(apperr.InvalidValue, op, "value required")
	}
	return *req.Value, nil
}

func (s *server) setMuted(w http.ResponseWriter, r *http.Request) {
	var req flagRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	muted, err := req.get("api.setMuted")
	if err == nil {
		err = s.Studio.SetMuted(r.Context(), r.PathValue("scene"), r.PathValue("source"), muted)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *server) setVisible(w http.ResponseWriter, r *http.Request) {
	var req flagRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	visible, err := req.get("api.setVisible")
	if err == nil {
		err = s.Studio.SetVisible(r.Context(), r.PathValue("scene"), r.PathValue("source"), visible)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

// PropertiesView is a source's schema with its current values.
type PropertiesView struct {
	Scene  string            `json:"scene"`
	Source string            `json:"source"`
	Schema properties.Schema `json:"schema"`
	Values map[string]any    `json:"values"`
}

func (s *server) getProperties(w http.ResponseWriter, r *http.Request) {
	ed, err := s.Studio.OpenEditor(r.Context(), r.PathValue("scene"), r.PathValue("source"))
	if err != nil {
		writeError(w, err)
		return
	}
	values := map[string]any{}
	for name, v := range ed.Values() {
		values[name] = v.Raw()
	}
	writeOK(w, PropertiesView{Scene: ed.Scene(), Source: ed.Source(), Schema: ed.Schema(), Values: values})
}

type propertiesRequest struct {
	Values map[string]any `json:"values"`
}

func (s *server) updateProperties(w http.ResponseWriter, r *http.Request) {
	var req propertiesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Values) == 0 {
		writeError(w, apperr.New(apperr.InvalidValue, "api.updateProperties", "values required"))
		return
	}
	scene, source := r.PathValue("scene"), r.PathValue("source")
	if err := s.Studio.UpdateProperties(r.Context(), scene, source, req.Values); err != nil {
		writeError(w, err)
		return
	}
	src, _ := s.Studio.Source(scene, source)
	writeOK(w, src)
}

// KindView is one source kind available on the studio's platform.
type KindView struct {
	Kind   sources.Kind `json:"kind"`
	Label  string       `json:"label"`
	TypeID string       `json:"type_id"`
}

func (s *server) sourceKinds(w http.ResponseWriter, r *http.Request) {
	res := s.Studio.Resolver()
	out := []KindView{}
	for _, k := range res.Available() {
		typeID, info, err := res.Resolve(k)
		if err != nil {
			continue
		}
		out = append(out, KindView{Kind: k, Label: info.Label, TypeID: typeID})
	}
	writeOK(w, out)
}

// SwitchView is the GET /switch body.
type SwitchView struct {
	studio.SwitchState
	State studio.State `json:"state"`
}

func (s *server) getSwitch(w http.ResponseWriter, r *http.Request) {
	writeOK(w, SwitchView{SwitchState: s.Studio.Switch(), State: s.Studio.State()})
}

type sceneRequest struct {
	Scene string `json:"scene"`
}

func (s *server) setPreview(w http.ResponseWriter, r *http.Request) {
	var req sceneRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Studio.SetPreview(r.Context(), req.Scene); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, SwitchView{SwitchState: s.Studio.Switch(), State: s.Studio.State()})
}

func (s *server) transition(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Studio.Transition(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, SwitchView{SwitchState: s.Studio.Switch(), State: s.Studio.State()})
}

func (s *server) getOutputs(w http.ResponseWriter, r *http.Request) {
	out, err := s.Studio.Outputs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, out)
}

type streamRequest struct {
	Server string `json:"server"`
	Key    string `json:"key"`
}

func (s *server) startStreaming(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.outputResult(w, r, s.Studio.StartStreaming(r.Context(), req.Server, req.Key))
}

func (s *server) stopStreaming(w http.ResponseWriter, r *http.Request) {
	s.outputResult(w, r, s.Studio.StopStreaming(r.Context()))
}

func (s *server) startRecording(w http.ResponseWriter, r *http.Request) {
	s.outputResult(w, r, s.Studio.StartRecording(r.Context()))
}

func (s *server) stopRecording(w http.ResponseWriter, r *http.Request) {
	s.outputResult(w, r, s.Studio.StopRecording(r.Context()))
}

func (s *server) outputResult(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	s.getOutputs(w, r)
}

func (s *server) getLevels(w http.ResponseWriter, r *http.Request) {
	if s.Meter == nil {
		writeError(w, apperr.New(apperr.Unavailable, "api.levels", "metering is off"))
		return
	}
	writeOK(w, s.Meter.Levels())
}

func (s *server) getFrame(w http.ResponseWriter, r *http.Request) {
	if s.Meter == nil {
		writeError(w, apperr.New(apperr.Unavailable, "api.frame", "metering is off"))
		return
	}
	f, ok := s.Meter.Frame()
	if !ok {
		writeError(w, apperr.New(apperr.Unavailable, "api.frame", "no frame yet"))
		return
	}
	writeOK(w, f)
}

func (s *server) saveCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.Studio.Save(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]time.Time{"saved_at": s.Studio.LastSave()})
}

func (s *server) loadCollection(w http.ResponseWriter, r *http.Request) {
	found, err := s.Studio.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]bool{"found": found})
}

func (s *server) resync(w http.ResponseWriter, r *http.Request) {
	if err := s.Studio.Resync(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]bool{"out_of_sync": s.Studio.OutOfSync()})
}
