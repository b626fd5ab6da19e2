package movement

import (
	"context"
	"time"

	"github.com/sortai/sortai/internal/errs"
	"github.com/sortai/sortai/internal/model"
)

// Inverter performs the filesystem-level inversion of one movement-log
// entry; the organizer package supplies the concrete implementation
// since only it knows how to safely reverse a move/copy/symlink
// (§4.13 Safe Organizer owns all physical file operations).
type Inverter interface {
	Invert(ctx context.Context, entry model.MovementLogEntry) error
}

// UndoStack is a bounded in-memory stack of undoable movement-log
// entry ids layered over the persisted Log (§4.7 "bounded undo/redo
// stacks, default depth 100"). Only one UndoStack should be active per
// store, matching the component table's single-writer-per-store rule.
type UndoStack struct {
	log      *Log
	maxDepth int
	undo     []string // entry ids, most recent last
	redo     []string
}

// NewUndoStack builds an UndoStack backed by log, capped at maxDepth
// entries (<=0 defaults to 100).
func NewUndoStack(log *Log, maxDepth int) *UndoStack {
	if maxDepth <= 0 {
		maxDepth = 100
	}
	return &UndoStack{log: log, maxDepth: maxDepth}
}

// Record pushes a freshly appended entry onto the undo stack and
// clears the redo stack, the same way any fresh action invalidates a
// previously undone branch in a standard editor undo model. Entries
// marked non-undoable (e.g. operations during degraded/offline LLM
// mode the user explicitly opted into) are tracked in the log but
// never pushed.
func (s *UndoStack) Record(entry model.MovementLogEntry) {
	s.redo = nil
	if !entry.Undoable {
		return
	}
	s.undo = append(s.undo, entry.ID)
	if len(s.undo) > s.maxDepth {
		s.undo = s.undo[len(s.undo)-s.maxDepth:]
	}
}

// Undo pops the most recent undoable entry, inverts it via inv, marks
// it undone in the log, and pushes it onto the redo stack.
func (s *UndoStack) Undo(ctx context.Context, inv Inverter, now time.Time) (model.MovementLogEntry, error) {
	if len(s.undo) == 0 {
		return model.MovementLogEntry{}, errs.New(errs.KindGuardrail, "movement.Undo", errs.ErrNotFound)
	}
	id := s.undo[len(s.undo)-1]
	entry, err := s.log.Get(ctx, id)
	if err != nil {
		return model.MovementLogEntry{}, err
	}
	if err := inv.Invert(ctx, entry); err != nil {
		return model.MovementLogEntry{}, err
	}
	if err := s.log.MarkUndone(ctx, id, now); err != nil {
		return model.MovementLogEntry{}, err
	}
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, id)
	if len(s.redo) > s.maxDepth {
		s.redo = s.redo[len(s.redo)-s.maxDepth:]
	}
	entry.UndoneAt = &now
	return entry, nil
}

// Redo re-applies the most recently undone entry by inverting its
// inversion: the caller's Inverter is expected to be idempotent about
// direction (it reads entry.Source/Destination itself), so Redo
// delegates to the same Invert call a fresh Undo would use against the
// entry produced by swapping source/destination; concretely the
// organizer exposes a redo-aware Inverter that replays the original
// operation instead of its inverse.
func (s *UndoStack) Redo(ctx context.Context, inv Inverter, now time.Time) (model.MovementLogEntry, error) {
	if len(s.redo) == 0 {
		return model.MovementLogEntry{}, errs.New(errs.KindGuardrail, "movement.Redo", errs.ErrNotFound)
	}
	id := s.redo[len(s.redo)-1]
	entry, err := s.log.Get(ctx, id)
	if err != nil {
		return model.MovementLogEntry{}, err
	}
	if err := inv.Invert(ctx, entry); err != nil {
		return model.MovementLogEntry{}, err
	}
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, id)
	if len(s.undo) > s.maxDepth {
		s.undo = s.undo[len(s.undo)-s.maxDepth:]
	}
	return entry, nil
}

// Depth reports the current (undo, redo) stack sizes.
func (s *UndoStack) Depth() (undo int, redo int) {
	return len(s.undo), len(s.redo)
}
