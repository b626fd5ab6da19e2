// Package movement is SortAI's movement log and undo stack (§4.7): an
// append-only journal of every file operation plus a bounded undo/redo
// stack over it, backed by the store package's movement_log table.
package movement

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sortai/sortai/internal/errs"
	"github.com/sortai/sortai/internal/model"
	"github.com/sortai/sortai/internal/store"
)

// Log appends entries to and reads from the movement_log table.
type Log struct {
	db *store.DB
}

// New builds a Log backed by db.
func New(db *store.DB) *Log {
	return &Log{db: db}
}

// Append records a completed file operation (§3 Movement log entry).
// If entry.ID is empty, a random UUID is generated for it.
func (l *Log) Append(ctx context.Context, entry model.MovementLogEntry) (model.MovementLogEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := l.db.Conn.ExecContext(ctx,
		`INSERT INTO movement_log(id, timestamp, source, destination, reason, confidence, operation, provider_id, provider_version, llm_mode, undoable, undone_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp.Format(time.RFC3339Nano), entry.Source, entry.Destination, entry.Reason,
		entry.Confidence, string(entry.Operation), entry.ProviderID, entry.ProviderVersion, string(entry.LLMModeAtDecision),
		boolToInt(entry.Undoable), nil)
	if err != nil {
		return model.MovementLogEntry{}, errs.New(errs.KindPermanentIO, "movement.Append", err)
	}
	return entry, nil
}

// Get fetches a single entry by id.
func (l *Log) Get(ctx context.Context, id string) (model.MovementLogEntry, error) {
	row := l.db.Conn.QueryRowContext(ctx,
		`SELECT id, timestamp, source, destination, reason, confidence, operation, provider_id, provider_version, llm_mode, undoable, undone_at
		 FROM movement_log WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MovementLogEntry{}, errs.ErrNotFound
	}
	return entry, err
}

// Recent returns the most recent limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]model.MovementLogEntry, error) {
	rows, err := l.db.Conn.QueryContext(ctx,
		`SELECT id, timestamp, source, destination, reason, confidence, operation, provider_id, provider_version, llm_mode, undoable, undone_at
		 FROM movement_log ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MovementLogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// MarkUndone stamps an entry with the time it was undone; undone
// entries are never deleted (§3: "undo marks it in place").
func (l *Log) MarkUndone(ctx context.Context, id string, at time.Time) error {
	_, err := l.db.Conn.ExecContext(ctx, `UPDATE movement_log SET undone_at = ? WHERE id = ?`, at.Format(time.RFC3339Nano), id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (model.MovementLogEntry, error) {
	var e model.MovementLogEntry
	var timestamp string
	var operation, llmMode string
	var undoableInt int
	var undoneAt sql.NullString

	err := row.Scan(&e.ID, &timestamp, &e.Source, &e.Destination, &e.Reason, &e.Confidence, &operation,
		&e.ProviderID, &e.ProviderVersion, &llmMode, &undoableInt, &undoneAt)
	if err != nil {
		return model.MovementLogEntry{}, err
	}
	e.Operation = model.OperationKind(operation)
	e.LLMModeAtDecision = model.LLMMode(llmMode)
	e.Undoable = undoableInt != 0
	if t, perr := time.Parse(time.RFC3339Nano, timestamp); perr == nil {
		e.Timestamp = t
	}
	if undoneAt.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, undoneAt.String); perr == nil {
			e.UndoneAt = &t
		}
	}
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
