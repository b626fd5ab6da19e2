// Package feedback is SortAI's feedback manager (§4.12): the queue of
// low-confidence assignments awaiting human review, backed by the
// store package's feedback_queue table.
package feedback

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sortai/sortai/internal/errs"
	"github.com/sortai/sortai/internal/model"
	"github.com/sortai/sortai/internal/store"
)

// Manager owns the feedback_queue table.
type Manager struct {
	db *store.DB
}

// New builds a Manager backed by db.
func New(db *store.DB) *Manager {
	return &Manager{db: db}
}

// Enqueue files a new pending review item (§3 Feedback item).
func (m *Manager) Enqueue(ctx context.Context, item model.FeedbackItem) error {
	if item.Status == "" {
		item.Status = model.FeedbackPending
	}
	_, err := m.db.Conn.ExecContext(ctx,
		`INSERT INTO feedback_queue(file_id, suggested_path, confidence, rationale, keywords, status, human_path, reviewed_at, created_at, cool_off_until)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(file_id) DO UPDATE SET
			suggested_path=excluded.suggested_path,
			confidence=excluded.confidence,
			rationale=excluded.rationale,
			keywords=excluded.keywords,
			status=excluded.status,
			cool_off_until=excluded.cool_off_until`,
		item.FileID, strings.Join(item.SuggestedPath, "/"), item.Confidence, item.Rationale,
		strings.Join(item.ExtractedKeywords, ","), string(item.Status), nullablePath(item.HumanPath),
		nullableTime(item.ReviewedAt), item.CreatedAt.Format(time.RFC3339Nano), nullableTime(item.CoolOffUntil))
	return err
}

// Get fetches a single feedback item.
func (m *Manager) Get(ctx context.Context, fileID string) (model.FeedbackItem, error) {
	row := m.db.Conn.QueryRowContext(ctx,
		`SELECT file_id, suggested_path, confidence, rationale, keywords, status, human_path, reviewed_at, created_at, cool_off_until
		 FROM feedback_queue WHERE file_id = ?`, fileID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FeedbackItem{}, errs.ErrNotFound
	}
	return item, err
}

// Pending lists items awaiting review that are not currently in a
// cool-off period (§4.12 "cool-off retry").
func (m *Manager) Pending(ctx context.Context, now time.Time) ([]model.FeedbackItem, error) {
	rows, err := m.db.Conn.QueryContext(ctx,
		`SELECT file_id, suggested_path, confidence, rationale, keywords, status, human_path, reviewed_at, created_at, cool_off_until
		 FROM feedback_queue WHERE status = ? AND (cool_off_until IS NULL OR cool_off_until <= ?)
		 ORDER BY created_at ASC`, string(model.FeedbackPending), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FeedbackItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Accept marks fileID's suggestion accepted as-is (§4.12 "accept").
func (m *Manager) Accept(ctx context.Context, fileID string, now time.Time) error {
	return m.resolve(ctx, fileID, model.FeedbackHumanAccepted, nil, now)
}

// Correct records a human-chosen path that differs from the
// suggestion (§4.12 "correct").
func (m *Manager) Correct(ctx context.Context, fileID string, humanPath []string, now time.Time) error {
	return m.resolve(ctx, fileID, model.FeedbackHumanCorrected, humanPath, now)
}

// CreateNew is identical to Correct at the storage layer: the human
// path simply names a category that didn't exist before (§4.12
// "create new").
func (m *Manager) CreateNew(ctx context.Context, fileID string, newPath []string, now time.Time) error {
	return m.resolve(ctx, fileID, model.FeedbackHumanCorrected, newPath, now)
}

// Skip marks fileID reviewed without resolving it, available for a
// future pass (§4.12 "skip").
func (m *Manager) Skip(ctx context.Context, fileID string, now time.Time) error {
	return m.resolve(ctx, fileID, model.FeedbackSkipped, nil, now)
}

func (m *Manager) resolve(ctx context.Context, fileID string, status model.FeedbackStatus, humanPath []string, now time.Time) error {
	res, err := m.db.Conn.ExecContext(ctx,
		`UPDATE feedback_queue SET status = ?, human_path = ?, reviewed_at = ? WHERE file_id = ?`,
		string(status), nullablePath(humanPath), now.Format(time.RFC3339Nano), fileID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Retry re-queues fileID after a cool-off period so it surfaces again
// in Pending without the human having to re-review it immediately
// (§4.12 "cool-off retry": e.g. after a provider outage cleared).
func (m *Manager) Retry(ctx context.Context, fileID string, coolOffUntil time.Time) error {
	_, err := m.db.Conn.ExecContext(ctx,
		`UPDATE feedback_queue SET status = ?, cool_off_until = ? WHERE file_id = ?`,
		string(model.FeedbackPending), coolOffUntil.Format(time.RFC3339Nano), fileID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (model.FeedbackItem, error) {
	var item model.FeedbackItem
	var suggestedPath, keywords, status string
	var humanPath, reviewedAt, coolOffUntil sql.NullString
	var createdAt string

	err := row.Scan(&item.FileID, &suggestedPath, &item.Confidence, &item.Rationale, &keywords, &status,
		&humanPath, &reviewedAt, &createdAt, &coolOffUntil)
	if err != nil {
		return model.FeedbackItem{}, err
	}

	item.Status = model.FeedbackStatus(status)
	if suggestedPath != "" {
		item.SuggestedPath = strings.Split(suggestedPath, "/")
	}
	if keywords != "" {
		item.ExtractedKeywords = strings.Split(keywords, ",")
	}
	if humanPath.Valid && humanPath.String != "" {
		item.HumanPath = strings.Split(humanPath.String, "/")
	}
	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		item.CreatedAt = t
	}
	if reviewedAt.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, reviewedAt.String); perr == nil {
			item.ReviewedAt = &t
		}
	}
	if coolOffUntil.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, coolOffUntil.String); perr == nil {
			item.CoolOffUntil = &t
		}
	}
	return item, nil
}

func nullablePath(p []string) sql.NullString {
	if len(p) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.Join(p, "/"), Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}
