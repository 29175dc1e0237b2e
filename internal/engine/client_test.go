package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/properties"
)

func startedClient(t *testing.T) (*Client, *Sim) {
	t.Helper()
	sim := NewSim(nil)
	c := NewClient(sim, time.Second)
	require.NoError(t, c.Startup(context.Background()))
	return c, sim
}

func TestStartupShutdownIdempotent(t *testing.T) {
	sim := NewSim(nil)
	c := NewClient(sim, 0)
	ctx := context.Background()

	c.Shutdown(ctx) // no startup yet
	require.NoError(t, c.Startup(ctx))
	require.NoError(t, c.Startup(ctx))
	c.Shutdown(ctx)
	c.Shutdown(ctx)

	err := c.CreateScene(ctx, "A")
	assert.Equal(t, apperr.Unavailable, apperr.CodeOf(err))
}

func TestCreateAndRemoveScene(t *testing.T) {
	c, _ := startedClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateScene(ctx, "A"))
	assert.Equal(t, apperr.DuplicateName, apperr.CodeOf(c.CreateScene(ctx, "A")))
	assert.Equal(t, apperr.NotFound, apperr.CodeOf(c.RemoveScene(ctx, "missing")))

	require.NoError(t, c.SetPreviewScene(ctx, "A"))
	program, err := c.Transition(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", program)

	assert.Equal(t, apperr.InUse, apperr.CodeOf(c.RemoveScene(ctx, "A")))
}

func TestTransitionClearsPreview(t *testing.T) {
	c, _ := startedClient(t)
	ctx := context.Background()
	require.NoError(t, c.CreateScene(ctx, "A"))
	require.NoError(t, c.CreateScene(ctx, "B"))

	_, err := c.Transition(ctx)
	assert.Equal(t, apperr.InvalidTransition, apperr.CodeOf(err))

	require.NoError(t, c.SetPreviewScene(ctx, "B"))
	_, err = c.Transition(ctx)
	require.NoError(t, err)

	list, err := c.GetSceneList(ctx)
	require.NoError(t, err)
	assert.Equal(t, SceneList{Scenes: []string{"A", "B"}, Program: "B"}, list)

	assert.Equal(t, apperr.InvalidTransition, apperr.CodeOf(c.SetPreviewScene(ctx, "B")))
}

func TestAddSourceErrors(t *testing.T) {
	c, _ := startedClient(t)
	ctx := context.Background()
	require.NoError(t, c.CreateScene(ctx, "A"))

	info, err := c.AddSource(ctx, "A", "browser_source", "Overlay", map[string]any{"url": "https://x", "width": 1280})
	require.NoError(t, err)
	assert.True(t, info.HasAudio)
	assert.True(t, info.Visible)
	assert.Equal(t, float64(1280), info.Settings["width"])

	_, err = c.AddSource(ctx, "A", "browser_source", "Overlay", nil)
	assert.Equal(t, apperr.DuplicateName, apperr.CodeOf(err))

	_, err = c.AddSource(ctx, "A", "hologram", "H", nil)
	assert.Equal(t, apperr.UnsupportedType, apperr.CodeOf(err))

	_, err = c.AddSource(ctx, "Z", "browser_source", "Overlay", nil)
	assert.Equal(t, apperr.NotFound, apperr.CodeOf(err))

	_, err = c.AddSource(ctx, "A", "browser_source", "Bad", map[string]any{"zoom": 2})
	assert.Equal(t, apperr.UnknownProperty, apperr.CodeOf(err))
}

func TestSourceProperties(t *testing.T) {
	c, _ := startedClient(t)
	ctx := context.Background()
	require.NoError(t, c.CreateScene(ctx, "A"))
	_, err := c.AddSource(ctx, "A", "browser_source", "Overlay", map[string]any{"url": "https://x"})
	require.NoError(t, err)

	schema, settings, err := c.GetSourceProperties(ctx, "A", "Overlay")
	require.NoError(t, err)
	d, ok := schema.Lookup("width")
	require.True(t, ok)
	assert.Equal(t, properties.KindInt, d.Kind)
	assert.Equal(t, "https://x", settings["url"])

	err = c.UpdateSourceProperties(ctx, "A", "Overlay", map[string]any{"width": 1920, "bogus": true})
	assert.Equal(t, apperr.UnknownProperty, apperr.CodeOf(err))

	// Rejected updates leave every key untouched.
	_, settings, err = c.GetSourceProperties(ctx, "A", "Overlay")
	require.NoError(t, err)
	assert.NotContains(t, settings, "width")

	require.NoError(t, c.UpdateSourceProperties(ctx, "A", "Overlay", map[string]any{"width": 1920}))
	_, settings, err = c.GetSourceProperties(ctx, "A", "Overlay")
	require.NoError(t, err)
	assert.Equal(t, float64(1920), settings["width"])
}

func TestAudioLevelsAreClamped(t *testing.T) {
	c, sim := startedClient(t)
	ctx := context.Background()
	require.NoError(t, c.CreateScene(ctx, "A"))
	for _, name := range []string{"Mic", "Desktop", "Music"} {
		_, err := c.AddSource(ctx, "A", "pulse_input_capture", name, nil)
		require.NoError(t, err)
	}
	_, err := c.AddSource(ctx, "A", "image_source", "Logo", nil)
	require.NoError(t, err)
	require.NoError(t, c.SetSourceMuted(ctx, "A", "Music", true))
	sim.SetLevel("A", "Mic", -90)
	sim.SetLevel("A", "Desktop", 6)

	levels, err := c.GetAudioLevels(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, Level{Scene: "A", Source: "Mic", DB: MinDB}, levels[0])
	assert.Equal(t, Level{Scene: "A", Source: "Desktop", DB: MaxDB}, levels[1])
	assert.Equal(t, Level{Scene: "A", Source: "Music", DB: MinDB}, levels[2])
}

func TestOutputs(t *testing.T) {
	c, _ := startedClient(t)
	ctx := context.Background()

	require.NoError(t, c.StopStreaming(ctx))
	require.NoError(t, c.StopRecording(ctx))

	require.NoError(t, c.StartStreaming(ctx, "rtmp://live.example.com/app", "key"))
	assert.Equal(t, apperr.AlreadyActive, apperr.CodeOf(c.StartStreaming(ctx, "rtmp://live.example.com/app", "key")))
	streaming, err := c.IsStreaming(ctx)
	require.NoError(t, err)
	assert.True(t, streaming)

	require.NoError(t, c.StartRecording(ctx))
	assert.Equal(t, apperr.AlreadyActive, apperr.CodeOf(c.StartRecording(ctx)))
	require.NoError(t, c.StopRecording(ctx))
	recording, err := c.IsRecording(ctx)
	require.NoError(t, err)
	assert.False(t, recording)
}

func TestTimeoutAndTransportErrors(t *testing.T) {
	c, sim := startedClient(t)
	ctx := context.Background()

	sim.DropReply(OpCreateScene)
	err := c.CreateScene(ctx, "A")
	assert.Equal(t, apperr.Timeout, apperr.CodeOf(err))

	// The request was applied even though the reply was lost.
	list, err := c.GetSceneList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, list.Scenes)

	sim.FailNext(OpCreateScene, errors.New("socket closed"))
	assert.Equal(t, apperr.Unavailable, apperr.CodeOf(c.CreateScene(ctx, "B")))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, apperr.Timeout, apperr.CodeOf(c.CreateScene(cancelled, "C")))
}

func TestFullSceneDataReplacesGraph(t *testing.T) {
	c, _ := startedClient(t)
	ctx := context.Background()
	require.NoError(t, c.CreateScene(ctx, "A"))
	_, err := c.AddSource(ctx, "A", "color_source", "Background", map[string]any{"color": float64(0xFFFF0000)})
	require.NoError(t, err)
	require.NoError(t, c.SetSourceVisible(ctx, "A", "Background", false))

	snap, err := c.GetFullSceneData(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Scenes, 1)
	assert.False(t, snap.Scenes[0].Sources[0].Visible)

	other, _ := startedClient(t)
	require.NoError(t, other.CreateScene(ctx, "Old"))
	require.NoError(t, other.LoadFullSceneData(ctx, snap))

	got, err := other.GetFullSceneData(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Equal(got))
}

func TestLatestFrame(t *testing.T) {
	c, _ := startedClient(t)
	ctx := context.Background()
	f1, err := c.GetLatestFrame(ctx)
	require.NoError(t, err)
	f2, err := c.GetLatestFrame(ctx)
	require.NoError(t, err)
	assert.Greater(t, f2.Seq, f1.Seq)
	assert.Len(t, f1.Data, f1.Width*f1.Height*4)
}

func TestClampDB(t *testing.T) {
	assert.Equal(t, -60.0, ClampDB(-61))
	assert.Equal(t, 0.0, ClampDB(0.5))
	assert.Equal(t, -12.5, ClampDB(-12.5))
}
