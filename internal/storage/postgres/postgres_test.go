package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestConnString_Defaults(t *testing.T) {
	got := ConnString(envFrom(nil), "")
	want := "host=127.0.0.1 port=5432 user=titan dbname=titan sslmode=disable"
	if got != want {
		t.Errorf("ConnString() = %q, want %q", got, want)
	}
}

func TestConnString_EnvOverrides(t *testing.T) {
	env := envFrom(map[string]string{
		"PGHOST":     "db.internal",
		"PGPORT":     "6543",
		"PGUSER":     "studio",
		"PGDATABASE": "media",
		"PGSSLMODE":  "require",
	})
	got := ConnString(env, "")
	want := "host=db.internal port=6543 user=studio dbname=media sslmode=require"
	if got != want {
		t.Errorf("ConnString() = %q, want %q", got, want)
	}
}

func TestConnString_PasswordQuoted(t *testing.T) {
	got := ConnString(envFrom(nil), `it's a \secret`)
	if !strings.HasSuffix(got, ` password='it\'s a \\secret'`) {
		t.Errorf("password not quoted: %q", got)
	}
}

func TestEventQuery_Build(t *testing.T) {
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name      string
		q         EventQuery
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "defaults",
			wantWhere: "WHERE studio_id = $1 ORDER BY ts DESC LIMIT $2",
			wantArgs:  []any{"s1", 200},
		},
		{
			name:      "limit capped",
			q:         EventQuery{Limit: 50000},
			wantWhere: "WHERE studio_id = $1 ORDER BY ts DESC LIMIT $2",
			wantArgs:  []any{"s1", 10000},
		},
		{
			name:      "all filters",
			q:         EventQuery{Limit: 5, Prefix: "switch.", Session: "abc", Since: since},
			wantWhere: "WHERE studio_id = $1 AND event LIKE $2 AND session_id = $3 AND ts >= $4 ORDER BY ts DESC LIMIT $5",
			wantArgs:  []any{"s1", "switch.%", "abc", since, 5},
		},
		{
			name:      "prefix wildcards escaped",
			q:         EventQuery{Prefix: "meter_50%"},
			wantWhere: "WHERE studio_id = $1 AND event LIKE $2 ORDER BY ts DESC LIMIT $3",
			wantArgs:  []any{"s1", `meter\_50\%%`, 200},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := tt.q.build("s1")
			if !strings.HasSuffix(query, tt.wantWhere) {
				t.Errorf("query = %q, want suffix %q", query, tt.wantWhere)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("arg %d = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

// TestIntegration_RoundTrip runs only when TITAN_PG_TEST is set and the PG*
// variables point at a scratch database.
func TestIntegration_RoundTrip(t *testing.T) {
	if os.Getenv("TITAN_PG_TEST") == "" {
		t.Skip("TITAN_PG_TEST not set")
	}
	c, err := New("test-" + t.Name())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	snap := scenegraph.Snapshot{
		Version: scenegraph.SnapshotVersion,
		Scenes: []scenegraph.SceneSnapshot{
			{Name: "Main", Sources: []scenegraph.SourceSnapshot{
				{Name: "Mic", Kind: "audio_input", TypeID: "wasapi_input_capture", Settings: map[string]interface{}{"device_id": "default"}, HasAudio: true, Visible: true},
			}},
			{Name: "BRB", Sources: []scenegraph.SourceSnapshot{}},
		},
	}
	if err := c.SaveSceneCollection(ctx, snap); err != nil {
		t.Fatalf("SaveSceneCollection() error = %v", err)
	}
	got, found, err := c.LoadSceneCollection(ctx)
	if err != nil || !found {
		t.Fatalf("LoadSceneCollection() = found %v, err %v", found, err)
	}
	if !got.Equal(snap) {
		t.Errorf("round trip mismatch: got %+v", got)
	}

	if err := c.Append(time.Now(), "info", "scene.created", "", map[string]interface{}{"scene": "Main"}, ""); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	rows, err := c.Query(ctx, EventQuery{Limit: 10, Prefix: "scene."})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) == 0 || rows[0].Event != "scene.created" {
		t.Errorf("Query() = %+v", rows)
	}
}
