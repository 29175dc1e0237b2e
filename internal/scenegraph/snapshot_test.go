package scenegraph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	g := sampleGraph(t)

	back, err := FromSnapshot(g.Snapshot())
	require.NoError(t, err)

	assert.True(t, g.Equal(back))
	assert.Equal(t, g.SceneNames(), back.SceneNames())
	assert.Equal(t, g.SourceNames("Live"), back.SourceNames("Live"))
}

// A JSON encode/decode of a snapshot is idempotent after the first pass.
func TestSnapshot_JSONRoundTripIsIdempotent(t *testing.T) {
	g := sampleGraph(t)

	pass := func(s Snapshot) Snapshot {
		b, err := json.Marshal(s)
		require.NoError(t, err)
		var out Snapshot
		require.NoError(t, json.Unmarshal(b, &out))
		return out
	}

	once := pass(g.Snapshot())
	twice := pass(once)
	assert.True(t, once.Equal(twice))
	assert.True(t, once.Equal(g.Snapshot()))
}

func TestSnapshot_MutatingDoesNotLeakIntoGraph(t *testing.T) {
	g := sampleGraph(t)
	snap := g.Snapshot()
	snap.Scenes[0].Sources[0].Settings["url"] = "mutated"

	assert.Equal(t, "https://example.com/alert", g.FindSource("Live", "Overlay").Settings["url"])
}

func TestFromSnapshot_RejectsDuplicates(t *testing.T) {
	snap := Snapshot{Version: 1, Scenes: []SceneSnapshot{{Name: "A"}, {Name: "A"}}}
	_, err := FromSnapshot(snap)
	assert.True(t, apperr.Is(err, apperr.DuplicateName))

	snap = Snapshot{Version: 1, Scenes: []SceneSnapshot{{
		Name:    "A",
		Sources: []SourceSnapshot{{Name: "x"}, {Name: "x"}},
	}}}
	_, err = FromSnapshot(snap)
	assert.True(t, apperr.Is(err, apperr.DuplicateName))
}

func TestFromSnapshot_RejectsVersion(t *testing.T) {
	_, err := FromSnapshot(Snapshot{Version: 9})
	assert.True(t, apperr.Is(err, apperr.InvalidValue))
}

func TestSnapshotEqual_NilAndEmptySettings(t *testing.T) {
	a := Snapshot{Scenes: []SceneSnapshot{{Name: "A", Sources: []SourceSnapshot{{Name: "s"}}}}}
	b := Snapshot{Scenes: []SceneSnapshot{{Name: "A", Sources: []SourceSnapshot{{Name: "s", Settings: map[string]any{}}}}}}
	assert.True(t, a.Equal(b))
}

func TestMarshalSnapshot_Golden(t *testing.T) {
	data, err := MarshalSnapshot(sampleGraph(t).Snapshot(), false)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "scene_collection", data)
}

func TestLoadSnapshotFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	want := sampleGraph(t).Snapshot()

	for _, name := range []string{"collection.json", "collection.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteSnapshotFile(path, want))

		got, err := LoadSnapshotFile(path)
		require.NoError(t, err, name)
		assert.True(t, want.Equal(*got), name)
	}
}

func TestLoadSnapshotFile_BadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 2, "scenes": []}`), 0o644))

	_, err := LoadSnapshotFile(path)
	assert.Error(t, err)
}
