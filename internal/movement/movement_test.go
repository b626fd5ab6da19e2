package movement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sortai/sortai/internal/model"
	"github.com/sortai/sortai/internal/store"
)

type fakeInverter struct {
	calls []model.MovementLogEntry
	err   error
}

func (f *fakeInverter) Invert(ctx context.Context, entry model.MovementLogEntry) error {
	f.calls = append(f.calls, entry)
	return f.err
}

func newTestLog(t *testing.T) *Log {
	t.Helper()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestAppend_GeneratesIDWhenMissing(t *testing.T) {
	l := newTestLog(t)
	entry, err := l.Append(context.Background(), model.MovementLogEntry{
		Timestamp: time.Unix(1, 0), Source: "/a", Destination: "/b",
		Operation: model.OpMove, Undoable: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
}

func TestGet_RoundTripsFields(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()
	written, err := l.Append(ctx, model.MovementLogEntry{
		ID: "entry-1", Timestamp: time.Unix(100, 0).UTC(), Source: "/a", Destination: "/b",
		Reason: "keyword match", Confidence: 0.75, Operation: model.OpCopy,
		ProviderID: "local", ProviderVersion: "v1", LLMModeAtDecision: model.ModeFull, Undoable: true,
	})
	require.NoError(t, err)

	got, err := l.Get(ctx, written.ID)
	require.NoError(t, err)
	assert.Equal(t, written.Source, got.Source)
	assert.Equal(t, written.Destination, got.Destination)
	assert.Equal(t, model.OpCopy, got.Operation)
	assert.InDelta(t, 0.75, got.Confidence, 1e-9)
	assert.Nil(t, got.UndoneAt)
}

func TestRecent_OrdersNewestFirst(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()
	_, err := l.Append(ctx, model.MovementLogEntry{ID: "1", Timestamp: time.Unix(1, 0), Operation: model.OpMove})
	require.NoError(t, err)
	_, err = l.Append(ctx, model.MovementLogEntry{ID: "2", Timestamp: time.Unix(2, 0), Operation: model.OpMove})
	require.NoError(t, err)

	entries, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2", entries[0].ID)
}

func TestMarkUndone_SetsUndoneAt(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()
	_, err := l.Append(ctx, model.MovementLogEntry{ID: "1", Timestamp: time.Unix(1, 0), Operation: model.OpMove})
	require.NoError(t, err)

	now := time.Unix(50, 0).UTC()
	require.NoError(t, l.MarkUndone(ctx, "1", now))

	got, err := l.Get(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got.UndoneAt)
	assert.True(t, got.UndoneAt.Equal(now))
}

func TestUndoStack_UndoThenRedo(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()
	entry, err := l.Append(ctx, model.MovementLogEntry{
		ID: "1", Timestamp: time.Unix(1, 0), Source: "/a", Destination: "/b",
		Operation: model.OpMove, Undoable: true,
	})
	require.NoError(t, err)

	stack := NewUndoStack(l, 10)
	stack.Record(entry)
	undoCount, redoCount := stack.Depth()
	assert.Equal(t, 1, undoCount)
	assert.Equal(t, 0, redoCount)

	inv := &fakeInverter{}
	undone, err := stack.Undo(ctx, inv, time.Unix(2, 0))
	require.NoError(t, err)
	assert.Equal(t, "1", undone.ID)
	require.Len(t, inv.calls, 1)

	undoCount, redoCount = stack.Depth()
	assert.Equal(t, 0, undoCount)
	assert.Equal(t, 1, redoCount)

	_, err = stack.Redo(ctx, inv, time.Unix(3, 0))
	require.NoError(t, err)
	undoCount, redoCount = stack.Depth()
	assert.Equal(t, 1, undoCount)
	assert.Equal(t, 0, redoCount)
}

func TestUndoStack_EmptyUndoReturnsError(t *testing.T) {
	l := newTestLog(t)
	stack := NewUndoStack(l, 10)
	_, err := stack.Undo(context.Background(), &fakeInverter{}, time.Unix(1, 0))
	assert.Error(t, err)
}

func TestUndoStack_NonUndoableEntryIsNotPushed(t *testing.T) {
	l := newTestLog(t)
	stack := NewUndoStack(l, 10)
	stack.Record(model.MovementLogEntry{ID: "1", Undoable: false})
	undoCount, _ := stack.Depth()
	assert.Equal(t, 0, undoCount)
}

func TestUndoStack_RespectsMaxDepth(t *testing.T) {
	l := newTestLog(t)
	stack := NewUndoStack(l, 2)
	stack.Record(model.MovementLogEntry{ID: "1", Undoable: true})
	stack.Record(model.MovementLogEntry{ID: "2", Undoable: true})
	stack.Record(model.MovementLogEntry{ID: "3", Undoable: true})
	undoCount, _ := stack.Depth()
	assert.Equal(t, 2, undoCount)
}

func TestUndoStack_NewActionClearsRedo(t *testing.T) {
	l := newTestLog(t)
	stack := NewUndoStack(l, 10)
	stack.Record(model.MovementLogEntry{ID: "1", Undoable: true})
	stack.redo = []string{"stale"}
	stack.Record(model.MovementLogEntry{ID: "2", Undoable: true})
	_, redoCount := stack.Depth()
	assert.Equal(t, 0, redoCount)
}
