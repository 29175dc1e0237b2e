// Package sqlite stores the scene collection in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/AaronLay10/TitanMedia/internal/scenegraph"
	"github.com/AaronLay10/TitanMedia/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
// 1 - scenes, sources, collection_meta
// 2 - index on sources.type_id
const currentSchemaVersion = 2

const (
	// DriverCgo is github.com/mattn/go-sqlite3.
	DriverCgo = "sqlite3"
	// DriverPure is modernc.org/sqlite.
	DriverPure = "sqlite"
)

// Store is a SQLite-backed scene collection store.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path with the given driver
// (DriverCgo when empty), applying pragmas and migrations.
func Open(path, driver string) (*Store, error) {
	if driver == "" {
		driver = DriverCgo
	}
	if driver != DriverCgo && driver != DriverPure {
		return nil, fmt.Errorf("unknown sqlite driver %q", driver)
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return runMigrations(db)
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 2 {
		if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_sources_type ON sources(type_id)"); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// SchemaVersion returns the database's user_version.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

// SaveSceneCollection replaces the stored collection in one transaction. On
// failure the previous collection is left intact.
func (s *Store) SaveSceneCollection(ctx context.Context, snap scenegraph.Snapshot) error {
	const op = "sqlite.save"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.TxFailed(op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sources"); err != nil {
		return storage.TxFailed(op, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM scenes"); err != nil {
		return storage.TxFailed(op, err)
	}

	for i, sc := range snap.Scenes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO scenes (position, name) VALUES (?, ?)", i, sc.Name); err != nil {
			return storage.TxFailed(op, fmt.Errorf("scene %q: %w", sc.Name, err))
		}
		for j, src := range sc.Sources {
			settings, err := storage.EncodeSettings(src.Settings)
			if err != nil {
				return storage.TxFailed(op, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO sources (scene_position, position, name, kind, type_id, settings, has_audio, muted, visible)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				i, j, src.Name, src.Kind, src.TypeID, string(settings), src.HasAudio, src.Muted, src.Visible)
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
		INSERT INTO collection_meta (id, version, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, saved_at = excluded.saved_at`,
		version, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return storage.TxFailed(op, err)
	}

	if err := tx.Commit(); err != nil {
		return storage.TxFailed(op, err)
	}
	return nil
}

// LoadSceneCollection reads the stored collection. found is false when
// nothing has been saved yet.
func (s *Store) LoadSceneCollection(ctx context.Context) (scenegraph.Snapshot, bool, error) {
	// One transaction pins a single WAL snapshot for all three reads, so a
	// concurrent save cannot tear the result.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scenegraph.Snapshot{}, false, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	var snap scenegraph.Snapshot
	err = tx.QueryRowContext(ctx, "SELECT version FROM collection_meta WHERE id = 1").Scan(&snap.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return scenegraph.Snapshot{}, false, nil
	}
	if err != nil {
		return scenegraph.Snapshot{}, false, fmt.Errorf("read collection meta: %w", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT position, name FROM scenes ORDER BY position")
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

	rows, err = tx.QueryContext(ctx, `
		SELECT scene_position, name, kind, type_id, settings, has_audio, muted, visible
		FROM sources ORDER BY scene_position, position`)
	if err != nil {
		return scenegraph.Snapshot{}, false, fmt.Errorf("read sources: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			scenePos int
			src      scenegraph.SourceSnapshot
			settings string
		)
		if err := rows.Scan(&scenePos, &src.Name, &src.Kind, &src.TypeID, &settings,
			&src.HasAudio, &src.Muted, &src.Visible); err != nil {
			return scenegraph.Snapshot{}, false, err
		}
		if src.Settings, err = storage.DecodeSettings([]byte(settings)); err != nil {
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
