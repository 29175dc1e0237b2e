// Package api is the studio's HTTP control surface. Every route maps to one
// studio or platform operation; errors carry their apperr code.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/events"
	"github.com/AaronLay10/TitanMedia/internal/meter"
	"github.com/AaronLay10/TitanMedia/internal/overlay"
	"github.com/AaronLay10/TitanMedia/internal/platform"
	"github.com/AaronLay10/TitanMedia/internal/studio"
)

// Deps are the components served by the API. Studio is required; routes of
// a nil optional component answer Unavailable.
type Deps struct {
	Studio   *studio.Studio
	Meter    *meter.Poller
	Platform platform.Platform
	Alerts   *overlay.Runner
}

type server struct {
	Deps
}

// NewHandler builds the route table.
func NewHandler(d Deps) http.Handler {
	s := &server{Deps: d}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler)
	mux.HandleFunc("GET /metrics", s.metricsHandler)
	mux.HandleFunc("GET /events", RequireAnyRole(eventsHandler))
	mux.HandleFunc("GET /ws/events", RequireAnyRole(wsEventsHandler))
	mux.HandleFunc("GET /ws/levels", RequireAnyRole(s.wsLevelsHandler))
	s.studioRoutes(mux)
	s.platformRoutes(mux)
	return mux
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "titan",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events.Snapshot())
}

// readinessState tracks the dependencies /ready reports on.
type readinessState struct {
	mu             sync.RWMutex
	studioReady    bool
	engineLinked   bool
	engineOptional bool
	storeConnected bool
	storeOptional  bool
}

var readiness = &readinessState{}

// SetStudioReady marks the studio bootstrapped (or shut down).
func SetStudioReady(ready bool) {
	readiness.mu.Lock()
	readiness.studioReady = ready
	readiness.mu.Unlock()
}

// SetEngineState records the engine link state. optional is true for the
// in-process engine, which has no link to lose.
func SetEngineState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.engineLinked = connected
	readiness.engineOptional = optional
	readiness.mu.Unlock()
}

// SetStoreState records the collection store state. optional is true when
// no store is configured.
func SetStoreState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.storeConnected = connected
	readiness.storeOptional = optional
	readiness.mu.Unlock()
}

// CheckResult is one dependency in a readiness report.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ReadinessResponse is the /ready body.
type ReadinessResponse struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]CheckResult `json:"checks"`
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	studioReady := readiness.studioReady
	engineLinked, engineOptional := readiness.engineLinked, readiness.engineOptional
	storeConnected, storeOptional := readiness.storeConnected, readiness.storeOptional
	readiness.mu.RUnlock()

	resp := ReadinessResponse{Ready: true, Checks: map[string]CheckResult{}}
	check := func(name string, ok, optional bool, msg string) {
		switch {
		case ok:
			resp.Checks[name] = CheckResult{Status: "ok"}
		case optional:
			resp.Checks[name] = CheckResult{Status: "skipped", Message: msg}
		default:
			resp.Ready = false
			resp.Checks[name] = CheckResult{Status: "unavailable", Message: msg}
		}
	}
	check("studio", studioReady, false, "studio not bootstrapped")
	check("engine", engineLinked, engineOptional, "engine link down")
	check("store", storeConnected, storeOptional, "collection store unavailable")

	w.Header().Set("Content-Type", "application/json")
	if !resp.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Response is the envelope of every control route.
type Response struct {
	OK    bool        `json:"ok"`
	Code  apperr.Code `json:"code,omitempty"`
	Error string      `json:"error,omitempty"`
	Data  any         `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	writeJSON(w, statusFor(code), Response{OK: false, Code: code, Error: err.Error()})
}

// statusFor maps an error code to an HTTP status.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.InvalidValue:
		return http.StatusBadRequest
	case apperr.NotAuthenticated:
		return http.StatusUnauthorized
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.DuplicateName, apperr.InUse, apperr.InvalidTransition, apperr.AlreadyActive:
		return http.StatusConflict
	case apperr.UnsupportedOnPlatform, apperr.UnsupportedType, apperr.UnknownProperty:
		return http.StatusUnprocessableEntity
	case apperr.Unavailable:
		return http.StatusServiceUnavailable
	case apperr.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.New(apperr.InvalidValue, "api.decode", "invalid JSON: %v", err)
	}
	return nil
}

// ListenAndServe serves h on addr until ctx is cancelled, using TLS when
// InitTLS found a certificate.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	tc, err := LoadTLSConfig()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         tc,
	}

	errCh := make(chan error, 1)
	go func() {
		if srv.TLSConfig != nil {
			log.Printf("API listening on %s (TLS)", addr)
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		log.Printf("API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
