// Package store is SortAI's embedded relational store (§6 Persisted
// state layout): a single SQLite database file holding the entities,
// relationships, learned_patterns, feedback_queue, and movement_log
// tables, plus the embedding cache and a schema_version row. It plays
// the role the teacher's adapters/vectordb/lancedb.go plays for chunk
// persistence — a thin SQL layer the domain packages (graph, movement,
// feedback, prototype, embedding) query directly, each owning its own
// table the way LanceDBStore owns "chunks".
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is the current embedded-store schema version (§6).
const SchemaVersion = 1

// DB wraps the shared SQLite connection every component queries.
type DB struct {
	Conn *sql.DB
	Path string
}

// Open opens (creating if necessary) the SQLite store at
// <dataDir>/sortai.db and applies the schema migration, mirroring the
// teacher's NewLanceDBStore which MkdirAlls its data directory before
// opening the database.
func Open(dataDir string) (*DB, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sortai.db")
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{Conn: conn, Path: dbPath}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return db, nil
}

// OpenInMemory opens an isolated in-memory instance for tests (§9:
// "tests construct an isolated in-memory instance").
func OpenInMemory() (*DB, error) {
	conn, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	conn.SetMaxOpenConns(1) // :memory: databases are per-connection; pin to one.
	db := &DB{Conn: conn, Path: ":memory:"}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return db, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	key TEXT NOT NULL,
	UNIQUE(type, key)
);

CREATE TABLE IF NOT EXISTS relationships (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_id INTEGER NOT NULL REFERENCES entities(id),
	to_id INTEGER NOT NULL REFERENCES entities(id),
	type TEXT NOT NULL,
	weight REAL NOT NULL,
	created_at DATETIME NOT NULL,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_rel_from ON relationships(from_id, type);
CREATE INDEX IF NOT EXISTS idx_rel_to ON relationships(to_id, type);

CREATE TABLE IF NOT EXISTS learned_patterns (
	category_id TEXT PRIMARY KEY,
	shared_prototype_id TEXT NOT NULL,
	centroid BLOB NOT NULL,
	sample_count INTEGER NOT NULL,
	last_updated DATETIME NOT NULL,
	ema_alpha REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_patterns_shared ON learned_patterns(shared_prototype_id);

CREATE TABLE IF NOT EXISTS feedback_queue (
	file_id TEXT PRIMARY KEY,
	suggested_path TEXT NOT NULL,
	confidence REAL NOT NULL,
	rationale TEXT,
	keywords TEXT,
	status TEXT NOT NULL,
	human_path TEXT,
	reviewed_at DATETIME,
	created_at DATETIME NOT NULL,
	cool_off_until DATETIME
);
CREATE INDEX IF NOT EXISTS idx_feedback_status ON feedback_queue(status);

CREATE TABLE IF NOT EXISTS movement_log (
	id TEXT PRIMARY KEY,
	timestamp DATETIME NOT NULL,
	source TEXT NOT NULL,
	destination TEXT NOT NULL,
	reason TEXT,
	confidence REAL NOT NULL,
	operation TEXT NOT NULL,
	provider_id TEXT,
	provider_version TEXT,
	llm_mode TEXT,
	undoable INTEGER NOT NULL,
	undone_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_movement_ts ON movement_log(timestamp);

CREATE TABLE IF NOT EXISTS embedding_cache (
	cache_key TEXT PRIMARY KEY,
	vector BLOB NOT NULL
);
`

func (db *DB) migrate() error {
	if _, err := db.Conn.Exec(schemaSQL); err != nil {
		return err
	}
	var count int
	if err := db.Conn.QueryRow(`SELECT COUNT(*) FROM schema_meta`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err := db.Conn.Exec(`INSERT INTO schema_meta(version) VALUES (?)`, SchemaVersion)
		return err
	}
	return nil
}

// Version returns the schema version recorded in the store.
func (db *DB) Version() (int, error) {
	var v int
	err := db.Conn.QueryRow(`SELECT version FROM schema_meta LIMIT 1`).Scan(&v)
	return v, err
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.Conn.Close() }
