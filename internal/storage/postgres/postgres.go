// Package postgres stores the scene collection and the event log in
// Postgres. Rows are scoped by studio id so several studios can share one
// database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/TitanMedia/internal/config"
	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
	"github.com/AaronLay10/TitanMedia/internal/storage"
)

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	StudioID  string                 `json:"studio_id"`
	SessionID *string                `json:"session_id,omitempty"`
}

// Client manages the Postgres connection.
type Client struct {
	db       *sql.DB
	studioID string
}

// New connects using the PG* environment variables and creates the tables.
func New(studioID string) (*Client, error) {
	password, err := config.ResolveSecret("PGPASSWORD")
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", ConnString(os.Getenv, password))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:       db,
		studioID: studioID,
	}
	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return client, nil
}

// ConnString builds a lib/pq key/value connection string from PGHOST,
// PGPORT, PGUSER, PGDATABASE and PGSSLMODE, read through getenv.
func ConnString(getenv func(string) string, password string) string {
	get := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		get("PGHOST", "127.0.0.1"), get("PGPORT", "5432"), get("PGUSER", "titan"),
		get("PGDATABASE", "titan"), get("PGSSLMODE", "disable"))
	if password != "" {
		connStr += " password=" + quote(password)
	}
	return connStr
}

// quote escapes a value for the key/value connection string format.
func quote(v string) string {
	out := []byte{'\''}
	for i := 0; i < len(v); i++ {
		if v[i] == '\'' || v[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, v[i])
	}
	return string(append(out, '\''))
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			studio_id  TEXT NOT NULL,
			session_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_studio_id ON events(studio_id);

		CREATE TABLE IF NOT EXISTS collection_meta (
			studio_id TEXT PRIMARY KEY,
			version   INTEGER NOT NULL,
			saved_at  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS scenes (
			studio_id TEXT NOT NULL,
			position  INTEGER NOT NULL,
			name      TEXT NOT NULL,
			PRIMARY KEY (studio_id, position),
			UNIQUE (studio_id, name)
		);
		CREATE TABLE IF NOT EXISTS sources (
			studio_id      TEXT NOT NULL,
			scene_position INTEGER NOT NULL,
			position       INTEGER NOT NULL,
			name           TEXT NOT NULL,
			kind           TEXT NOT NULL DEFAULT '',
			type_id        TEXT NOT NULL,
			settings       JSONB NOT NULL DEFAULT '{}',
			has_audio      BOOLEAN NOT NULL DEFAULT FALSE,
			muted          BOOLEAN NOT NULL DEFAULT FALSE,
			visible        BOOLEAN NOT NULL DEFAULT TRUE,
			PRIMARY KEY (studio_id, scene_position, position),
			UNIQUE (studio_id, scene_position, name),
			FOREIGN KEY (studio_id, scene_position) REFERENCES scenes(studio_id, position) ON DELETE CASCADE
		);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append writes one event row. It implements events.Appender.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON []byte
	if len(fields) > 0 {
		b, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("encode event fields: %w", err)
		}
		fieldsJSON = b
	}
	_, err := c.db.Exec(
		`INSERT INTO events (ts, level, event, msg, fields, studio_id, session_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ts, level, event, nullable(msg), fieldsJSON, c.studioID, nullable(sessionID))
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// EventQuery selects rows from the event log. Zero fields do not filter.
type EventQuery struct {
	Limit int
	// Prefix matches event names, e.g. "switch." or "engine.".
	Prefix  string
	Session string
	Since   time.Time
}

const (
	defaultEventLimit = 200
	maxEventLimit     = 10000
)

// build renders the SELECT for this studio, newest first.
func (q EventQuery) build(studioID string) (string, []any) {
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = defaultEventLimit
	case limit > maxEventLimit:
		limit = maxEventLimit
	}

	args := []any{studioID}
	where := []string{"studio_id = $1"}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.Prefix != "" {
		add("event LIKE $%d", escapeLike(q.Prefix)+"%")
	}
	if q.Session != "" {
		add("session_id = $%d", q.Session)
	}
	if !q.Since.IsZero() {
		add("ts >= $%d", q.Since)
	}
	args = append(args, limit)

	return fmt.Sprintf(`SELECT event_id, ts, level, event, msg, fields, studio_id, session_id
		FROM events WHERE %s ORDER BY ts DESC LIMIT $%d`,
		strings.Join(where, " AND "), len(args)), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// Query returns matching events, newest first.
func (c *Client) Query(ctx context.Context, q EventQuery) ([]EventRow, error) {
	query, args := q.build(c.studioID)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var (
			e           EventRow
			fields      []byte
			msg, sessID sql.NullString
		)
		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fields, &e.StudioID, &sessID); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if msg.Valid {
			e.Message = &msg.String
		}
		if sessID.Valid {
			e.SessionID = &sessID.String
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &e.Fields); err != nil {
				return nil, fmt.Errorf("decode event %d fields: %w", e.EventID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveSceneCollection replaces this studio's collection in one transaction.
func (c *Client) SaveSceneCollection(ctx context.Context, snap scenegraph.Snapshot) error {
	const op = "postgres.save"

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.TxFailed(op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM scenes WHERE studio_id = $1", c.studioID); err != nil {
		return storage.TxFailed(op, err)
	}
	for i, sc := range snap.Scenes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO scenes (studio_id, position, name) VALUES ($1, $2, $3)",
			c.studioID, i, sc.Name); err != nil {
			return storage.TxFailed(op, fmt.Errorf("scene %q: %w", sc.Name, err))
		}
		for j, src := range sc.Sources {
			settings, err := storage.EncodeSettings(src.Settings)
			if err != nil {
				return storage.TxFailed(op, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO sources (studio_id, scene_position, position, name, kind, type_id, settings, has_audio, muted, visible)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				c.studioID, i, j, src.Name, src.Kind, src.TypeID, settings, src.HasAudio, src.Muted, src.Visible)
			if err != nil {
				return storage.TxFailed(op, fmt.Errorf("source %q in %q: %w", src.Name, sc.Name, err))
			}
		}
	}

	version := snap.Version
	if version == 0 {
		version = scenegraph.SnapshotVersion
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO collection_meta (studio_id, version, saved_at) VALUES ($1, $2, $3)
		ON CONFLICT (studio_id) DO UPDATE SET version = EXCLUDED.version, saved_at = EXCLUDED.saved_at`,
		c.studioID, version, time.Now().UTC())
	if err != nil {
		return storage.TxFailed(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storage.TxFailed(op, err)
	}
	return nil
}

// LoadSceneCollection reads this studio's collection. found is false when
// nothing has been saved yet.
func (c *Client) LoadSceneCollection(ctx context.Context) (scenegraph.Snapshot, bool, error) {
	var snap scenegraph.Snapshot
	err := c.db.QueryRowContext(ctx,
		"SELECT version FROM collection_meta WHERE studio_id = $1", c.studioID).Scan(&snap.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return scenegraph.Snapshot{}, false, nil
	}
	if err != nil {
		return scenegraph.Snapshot{}, false, fmt.Errorf("read collection meta: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		"SELECT position, name FROM scenes WHERE studio_id = $1 ORDER BY position", c.studioID)
	if err != nil {
		return scenegraph.Snapshot{}, false, fmt.Errorf("read scenes: %w", err)
	}
	index := map[int]int{}
	snap.Scenes = []scenegraph.SceneSnapshot{}
	for rows.Next() {
		var pos int
		var name string
		if err := rows.Scan(&pos, &name); err != nil {
			rows.Close()
			return scenegraph.Snapshot{}, false, err
		}
		index[pos] = len(snap.Scenes)
		snap.Scenes = append(snap.Scenes, scenegraph.SceneSnapshot{Name: name, Sources: []scenegraph.SourceSnapshot{}})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return scenegraph.Snapshot{}, false, err
	}

	rows, err = c.db.QueryContext(ctx, `
		SELECT scene_position, name, kind, type_id, settings, has_audio, muted, visible
		FROM sources WHERE studio_id = $1 ORDER BY scene_position, position`, c.studioID)
	if err != nil {
		return scenegraph.Snapshot{}, false, fmt.Errorf("read sources: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			scenePos int
			src      scenegraph.SourceSnapshot
			settings []byte
		)
		if err := rows.Scan(&scenePos, &src.Name, &src.Kind, &src.TypeID, &settings,
			&src.HasAudio, &src.Muted, &src.Visible); err != nil {
			return scenegraph.Snapshot{}, false, err
		}
		if src.Settings, err = storage.DecodeSettings(settings); err != nil {
			return scenegraph.Snapshot{}, false, err
		}
		i, ok := index[scenePos]
		if !ok {
			return scenegraph.Snapshot{}, false, fmt.Errorf("source %q has no scene", src.Name)
		}
		snap.Scenes[i].Sources = append(snap.Scenes[i].Sources, src)
	}
	if err := rows.Err(); err != nil {
		return scenegraph.Snapshot{}, false, err
	}
	return snap, true, nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
