package studio

import (
	"context"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
)

// Outputs reports whether the engine is streaming and recording.
type Outputs struct {
	Streaming bool `json:"streaming"`
	Recording bool `json:"recording"`
}

// StartStreaming starts the stream output. Empty server and key fall back to
// the configured defaults.
func (s *Studio) StartStreaming(ctx context.Context, server, key string) error {
	if server == "" {
		server = s.opts.StreamServer
	}
	if key == "" {
		key = s.opts.StreamKey
	}
	if server == "" {
		return apperr.New(apperr.InvalidValue, "studio.startStreaming", "stream server is not configured")
	}
	return s.submit(ctx, func(ctx context.Context) error {
		if err := s.engine.StartStreaming(ctx, server, key); err != nil {
			return err
		}
		s.emitEvent("output.streaming_started", map[string]interface{}{"server": server})
		return nil
	})
}

// StopStreaming stops the stream output. Stopping an idle output is a no-op.
func (s *Studio) StopStreaming(ctx context.Context) error {
	return s.submit(ctx, func(ctx context.Context) error {
		if err := s.engine.StopStreaming(ctx); err != nil {
			return err
		}
		s.emitEvent("output.streaming_stopped", nil)
		return nil
	})
}

// StartRecording starts the record output.
func (s *Studio) StartRecording(ctx context.Context) error {
	return s.submit(ctx, func(ctx context.Context) error {
		if err := s.engine.StartRecording(ctx); err != nil {
			return err
		}
		s.emitEvent("output.recording_started", nil)
		return nil
	})
}

// StopRecording stops the record output.
func (s *Studio) StopRecording(ctx context.Context) error {
	return s.submit(ctx, func(ctx context.Context) error {
		if err := s.engine.StopRecording(ctx); err != nil {
			return err
		}
		s.emitEvent("output.recording_stopped", nil)
		return nil
	})
}

// Outputs queries the engine for the state of both outputs.
func (s *Studio) Outputs(ctx context.Context) (Outputs, error) {
	var out Outputs
	var err error
	if out.Streaming, err = s.engine.IsStreaming(ctx); err != nil {
		return Outputs{}, err
	}
	if out.Recording, err = s.engine.IsRecording(ctx); err != nil {
		return Outputs{}, err
	}
	return out, nil
}
