package scenegraph

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
)

func sampleGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	_, err := g.AddScene("Live")
	require.NoError(t, err)
	_, err = g.AddSource("Live", Source{
		Name:     "Overlay",
		Kind:     "browser_source",
		TypeID:   "browser_source",
		Settings: map[string]any{"url": "https://example.com/alert", "width": 1920, "height": 1080},
		HasAudio: true,
		Visible:  true,
	})
	require.NoError(t, err)
	_, err = g.AddSource("Live", Source{
		Name:     "Mic",
		Kind:     "audio_input_capture",
		TypeID:   "pulse_input_capture",
		HasAudio: true,
		Muted:    true,
		Visible:  true,
	})
	require.NoError(t, err)
	_, err = g.AddScene("BRB")
	require.NoError(t, err)
	return g
}

func TestAddScene_RejectsDuplicate(t *testing.T) {
	g := New()
	_, err := g.AddScene("A")
	require.NoError(t, err)

	_, err = g.AddScene("A")
	assert.True(t, apperr.Is(err, apperr.DuplicateName))
	assert.Equal(t, 1, g.Len())
}

func TestAddScene_NormalizesNames(t *testing.T) {
	g := New()
	// "é" precomposed vs "e" + combining acute accent.
	_, err := g.AddScene("Caf\u00e9")
	require.NoError(t, err)

	_, err = g.AddScene("  Cafe\u0301 ")
	assert.True(t, apperr.Is(err, apperr.DuplicateName))
	assert.NotNil(t, g.FindScene("Cafe\u0301"))
}

func TestAddScene_EmptyName(t *testing.T) {
	_, err := New().AddScene("   ")
	assert.True(t, apperr.Is(err, apperr.InvalidValue))
}

func TestRemoveScene_CascadesSources(t *testing.T) {
	g := sampleGraph(t)
	require.NoError(t, g.RemoveScene("Live"))

	assert.Nil(t, g.FindScene("Live"))
	assert.Nil(t, g.FindSource("Live", "Overlay"))
	assert.Equal(t, []string{"BRB"}, g.SceneNames())

	err := g.RemoveScene("Live")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestAddSource_PerSceneUniqueness(t *testing.T) {
	g := sampleGraph(t)

	_, err := g.AddSource("Live", Source{Name: "Overlay", TypeID: "browser_source"})
	assert.True(t, apperr.Is(err, apperr.DuplicateName))

	// Same name in another scene is fine.
	_, err = g.AddSource("BRB", Source{Name: "Overlay", TypeID: "browser_source"})
	assert.NoError(t, err)

	_, err = g.AddSource("Missing", Source{Name: "X"})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestAddSource_OrderIsBackToFront(t *testing.T) {
	g := sampleGraph(t)
	_, err := g.AddSource("Live", Source{Name: "Logo", TypeID: "image_source"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Overlay", "Mic", "Logo"}, g.SourceNames("Live"))
}

func TestRenameSource(t *testing.T) {
	g := sampleGraph(t)

	err := g.RenameSource("Live", "Mic", "Overlay")
	assert.True(t, apperr.Is(err, apperr.DuplicateName))

	require.NoError(t, g.RenameSource("Live", "Mic", "Host Mic"))
	assert.Equal(t, []string{"Overlay", "Host Mic"}, g.SourceNames("Live"))

	err = g.RenameSource("Live", "Mic", "Other")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestSetSourceSettings_Merges(t *testing.T) {
	g := sampleGraph(t)
	require.NoError(t, g.SetSourceSettings("Live", "Overlay", map[string]any{"width": 1280, "css": "body{}"}))

	src := g.FindSource("Live", "Overlay")
	require.NotNil(t, src)
	assert.Equal(t, float64(1280), src.Settings["width"])
	assert.Equal(t, float64(1080), src.Settings["height"])
	assert.Equal(t, "body{}", src.Settings["css"])
}

func TestSetSourceSettings_RejectsUnserializable(t *testing.T) {
	g := sampleGraph(t)
	err := g.SetSourceSettings("Live", "Overlay", map[string]any{"bad": make(chan int)})
	assert.True(t, apperr.Is(err, apperr.InvalidValue))
}

func TestClone_IsDeep(t *testing.T) {
	g := sampleGraph(t)
	c := g.Clone()

	require.NoError(t, c.SetSourceSettings("Live", "Overlay", map[string]any{"url": "changed"}))
	require.NoError(t, c.SetMuted("Live", "Mic", false))
	require.NoError(t, c.RemoveScene("BRB"))

	assert.Equal(t, "https://example.com/alert", g.FindSource("Live", "Overlay").Settings["url"])
	assert.True(t, g.FindSource("Live", "Mic").Muted)
	assert.Equal(t, 2, g.Len())
	assert.False(t, g.Equal(c))
}

// Random add/remove sequences must never produce duplicate scene names or
// duplicate source names within a scene.
func TestRandomSequences_KeepNamesUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	g := New()

	for i := 0; i < 2000; i++ {
		scene := fmt.Sprintf("S%d", rng.Intn(6))
		source := fmt.Sprintf("src%d", rng.Intn(5))
		switch rng.Intn(4) {
		case 0:
			_, _ = g.AddScene(scene)
		case 1:
			_ = g.RemoveScene(scene)
		case 2:
			_, _ = g.AddSource(scene, Source{Name: source, TypeID: "color_source"})
		case 3:
			_ = g.RemoveSource(scene, source)
		}

		seen := map[string]bool{}
		for _, name := range g.SceneNames() {
			require.False(t, seen[name], "duplicate scene %q at step %d", name, i)
			seen[name] = true

			srcSeen := map[string]bool{}
			for _, s := range g.SourceNames(name) {
				require.False(t, srcSeen[s], "duplicate source %q in %q at step %d", s, name, i)
				srcSeen[s] = true
			}
		}
	}
}
