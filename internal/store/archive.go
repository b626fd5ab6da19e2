// Archive support for the store: a versioned JSON snapshot of every
// table (§6 "portable archive format"), plus the retention and backup
// rotation operations named alongside it.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Manifest describes one exported archive.
type Manifest struct {
	SchemaVersion  int       `json:"schema_version"`
	ExportedAt     time.Time `json:"exported_at"`
	EntityCount    int       `json:"entity_count"`
	RelationCount  int       `json:"relation_count"`
	PatternCount   int       `json:"pattern_count"`
	FeedbackCount  int       `json:"feedback_count"`
	MovementCount  int       `json:"movement_count"`
}

type archiveEntity struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Key  string `json:"key"`
}

type archiveRelationship struct {
	ID        int64   `json:"id"`
	FromID    int64   `json:"from_id"`
	ToID      int64   `json:"to_id"`
	Type      string  `json:"type"`
	Weight    float64 `json:"weight"`
	CreatedAt string  `json:"created_at"`
	Metadata  string  `json:"metadata,omitempty"`
}

type archivePattern struct {
	CategoryID        string  `json:"category_id"`
	SharedPrototypeID string  `json:"shared_prototype_id"`
	Centroid          []byte  `json:"centroid"`
	SampleCount       int     `json:"sample_count"`
	LastUpdated       string  `json:"last_updated"`
	EMAAlpha          float64 `json:"ema_alpha"`
}

type archiveFeedback struct {
	FileID        string  `json:"file_id"`
	SuggestedPath string  `json:"suggested_path"`
	Confidence    float64 `json:"confidence"`
	Rationale     string  `json:"rationale"`
	Keywords      string  `json:"keywords"`
	Status        string  `json:"status"`
	HumanPath     string  `json:"human_path,omitempty"`
	ReviewedAt    string  `json:"reviewed_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
	CoolOffUntil  string  `json:"cool_off_until,omitempty"`
}

type archiveMovement struct {
	ID              string  `json:"id"`
	Timestamp       string  `json:"timestamp"`
	Source          string  `json:"source"`
	Destination     string  `json:"destination"`
	Reason          string  `json:"reason"`
	Confidence      float64 `json:"confidence"`
	Operation       string  `json:"operation"`
	ProviderID      string  `json:"provider_id,omitempty"`
	ProviderVersion string  `json:"provider_version,omitempty"`
	LLMMode         string  `json:"llm_mode,omitempty"`
	Undoable        bool    `json:"undoable"`
	UndoneAt        string  `json:"undone_at,omitempty"`
}

type archive struct {
	Manifest      Manifest              `json:"manifest"`
	Entities      []archiveEntity       `json:"entities"`
	Relationships []archiveRelationship `json:"relationships"`
	Patterns      []archivePattern      `json:"patterns"`
	Feedback      []archiveFeedback     `json:"feedback"`
	Movements     []archiveMovement     `json:"movements"`
}

// Export writes every table to w as a single versioned JSON document
// (§6, §8 "export/import round-trip").
func (db *DB) Export(w io.Writer) (Manifest, error) {
	a := archive{}

	rows, err := db.Conn.Query(`SELECT id, type, key FROM entities`)
	if err != nil {
		return Manifest{}, err
	}
	for rows.Next() {
		var e archiveEntity
		if err := rows.Scan(&e.ID, &e.Type, &e.Key); err != nil {
			rows.Close()
			return Manifest{}, err
		}
		a.Entities = append(a.Entities, e)
	}
	rows.Close()

	rows, err = db.Conn.Query(`SELECT id, from_id, to_id, type, weight, created_at, COALESCE(metadata, '') FROM relationships`)
	if err != nil {
		return Manifest{}, err
	}
	for rows.Next() {
		var r archiveRelationship
		if err := rows.Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &r.Weight, &r.CreatedAt, &r.Metadata); err != nil {
			rows.Close()
			return Manifest{}, err
		}
		a.Relationships = append(a.Relationships, r)
	}
	rows.Close()

	rows, err = db.Conn.Query(`SELECT category_id, shared_prototype_id, centroid, sample_count, last_updated, ema_alpha FROM learned_patterns`)
	if err != nil {
		return Manifest{}, err
	}
	for rows.Next() {
		var p archivePattern
		if err := rows.Scan(&p.CategoryID, &p.SharedPrototypeID, &p.Centroid, &p.SampleCount, &p.LastUpdated, &p.EMAAlpha); err != nil {
			rows.Close()
			return Manifest{}, err
		}
		a.Patterns = append(a.Patterns, p)
	}
	rows.Close()

	rows, err = db.Conn.Query(`SELECT file_id, suggested_path, confidence, COALESCE(rationale,''), COALESCE(keywords,''), status,
		COALESCE(human_path,''), COALESCE(reviewed_at,''), created_at, COALESCE(cool_off_until,'') FROM feedback_queue`)
	if err != nil {
		return Manifest{}, err
	}
	for rows.Next() {
		var f archiveFeedback
		if err := rows.Scan(&f.FileID, &f.SuggestedPath, &f.Confidence, &f.Rationale, &f.Keywords, &f.Status,
			&f.HumanPath, &f.ReviewedAt, &f.CreatedAt, &f.CoolOffUntil); err != nil {
			rows.Close()
			return Manifest{}, err
		}
		a.Feedback = append(a.Feedback, f)
	}
	rows.Close()

	rows, err = db.Conn.Query(`SELECT id, timestamp, source, destination, COALESCE(reason,''), confidence, operation,
		COALESCE(provider_id,''), COALESCE(provider_version,''), COALESCE(llm_mode,''), undoable, COALESCE(undone_at,'') FROM movement_log`)
	if err != nil {
		return Manifest{}, err
	}
	for rows.Next() {
		var m archiveMovement
		var undoable int
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Source, &m.Destination, &m.Reason, &m.Confidence, &m.Operation,
			&m.ProviderID, &m.ProviderVersion, &m.LLMMode, &undoable, &m.UndoneAt); err != nil {
			rows.Close()
			return Manifest{}, err
		}
		m.Undoable = undoable != 0
		a.Movements = append(a.Movements, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Manifest{}, err
	}

	a.Manifest = Manifest{
		SchemaVersion: SchemaVersion, ExportedAt: time.Now(),
		EntityCount: len(a.Entities), RelationCount: len(a.Relationships),
		PatternCount: len(a.Patterns), FeedbackCount: len(a.Feedback), MovementCount: len(a.Movements),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return Manifest{}, err
	}
	return a.Manifest, nil
}

// Import reads a JSON archive produced by Export and upserts every
// row back into the store (§6, §8 "export/import round-trip"). A
// schema version newer than this binary's is rejected rather than
// silently partially applied.
func (db *DB) Import(r io.Reader) error {
	var a archive
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return fmt.Errorf("decoding archive: %w", err)
	}
	if a.Manifest.SchemaVersion > SchemaVersion {
		return fmt.Errorf("archive schema version %d is newer than this binary supports (%d)", a.Manifest.SchemaVersion, SchemaVersion)
	}

	tx, err := db.Conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range a.Entities {
		if _, err := tx.Exec(`INSERT INTO entities(id, type, key) VALUES (?, ?, ?)
			ON CONFLICT(type, key) DO NOTHING`, e.ID, e.Type, e.Key); err != nil {
			return err
		}
	}
	for _, rel := range a.Relationships {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO relationships(id, from_id, to_id, type, weight, created_at, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, rel.ID, rel.FromID, rel.ToID, rel.Type, rel.Weight, rel.CreatedAt, nullIfEmpty(rel.Metadata)); err != nil {
			return err
		}
	}
	for _, p := range a.Patterns {
		if _, err := tx.Exec(`INSERT INTO learned_patterns(category_id, shared_prototype_id, centroid, sample_count, last_updated, ema_alpha)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(category_id) DO UPDATE SET shared_prototype_id=excluded.shared_prototype_id,
				centroid=excluded.centroid, sample_count=excluded.sample_count, last_updated=excluded.last_updated, ema_alpha=excluded.ema_alpha`,
			p.CategoryID, p.SharedPrototypeID, p.Centroid, p.SampleCount, p.LastUpdated, p.EMAAlpha); err != nil {
			return err
		}
	}
	for _, f := range a.Feedback {
		if _, err := tx.Exec(`INSERT INTO feedback_queue(file_id, suggested_path, confidence, rationale, keywords, status, human_path, reviewed_at, created_at, cool_off_until)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(file_id) DO UPDATE SET suggested_path=excluded.suggested_path, confidence=excluded.confidence,
				rationale=excluded.rationale, keywords=excluded.keywords, status=excluded.status,
				human_path=excluded.human_path, reviewed_at=excluded.reviewed_at, cool_off_until=excluded.cool_off_until`,
			f.FileID, f.SuggestedPath, f.Confidence, f.Rationale, f.Keywords, f.Status,
			nullIfEmpty(f.HumanPath), nullIfEmpty(f.ReviewedAt), f.CreatedAt, nullIfEmpty(f.CoolOffUntil)); err != nil {
			return err
		}
	}
	for _, m := range a.Movements {
		undoable := 0
		if m.Undoable {
			undoable = 1
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO movement_log(id, timestamp, source, destination, reason, confidence, operation,
			provider_id, provider_version, llm_mode, undoable, undone_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Timestamp, m.Source, m.Destination, m.Reason, m.Confidence, m.Operation,
			nullIfEmpty(m.ProviderID), nullIfEmpty(m.ProviderVersion), nullIfEmpty(m.LLMMode), undoable, nullIfEmpty(m.UndoneAt)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Prune deletes movement-log rows older than retention relative to
// now, skipping any row still undoable (§6 "90-day movement-log
// retention", never removing an entry the undo stack might still
// reference).
func (db *DB) Prune(now time.Time, retention time.Duration) (int, error) {
	cutoff := now.Add(-retention).Format(time.RFC3339Nano)
	res, err := db.Conn.Exec(`DELETE FROM movement_log WHERE timestamp < ? AND undoable = 0`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// RotateBackups copies the current database file into dir, keeping at
// most generations copies named sortai.db.<k>, where k keeps increasing
// across rotations (§6 "7-generation backup rotation"); the copy with
// the lowest k is evicted first.
func (db *DB) RotateBackups(dir string, generations int) error {
	if db.Path == ":memory:" {
		return fmt.Errorf("cannot back up an in-memory store")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	existing, err := filepath.Glob(filepath.Join(dir, "sortai.db.*"))
	if err != nil {
		return err
	}
	gen := func(p string) int {
		var n int
		fmt.Sscanf(filepath.Base(p), "sortai.db.%d", &n)
		return n
	}
	sort.Slice(existing, func(i, j int) bool { return gen(existing[i]) < gen(existing[j]) })
	for len(existing) >= generations {
		if err := os.Remove(existing[0]); err != nil && !os.IsNotExist(err) {
			return err
		}
		existing = existing[1:]
	}

	next := 1
	for _, e := range existing {
		var n int
		if _, err := fmt.Sscanf(filepath.Base(e), "sortai.db.%d", &n); err == nil && n >= next {
			next = n + 1
		}
	}

	data, err := os.ReadFile(db.Path)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fmt.Sprintf("sortai.db.%d", next)), data, 0o644)
}
