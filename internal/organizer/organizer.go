// Package organizer is SortAI's safe organizer (§4.13): the only
// component that touches the filesystem during categorization. It
// never deletes a source file (soft-move keeps the original in place,
// hard-move only removes the source after the destination write
// succeeds), names around destination collisions instead of
// overwriting, and moves a scanned folder as one atomic unit.
package organizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sortai/sortai/internal/config"
	"github.com/sortai/sortai/internal/errs"
	"github.com/sortai/sortai/internal/model"
)

// Organizer executes physical file operations decided elsewhere in
// the pipeline.
type Organizer struct {
	log            *zap.SugaredLogger
	softMove       bool
	preferSymlink  bool
	collisionStyle config.CollisionStyle
	counterLimit   int
}

// New builds an Organizer from config.
func New(log *zap.SugaredLogger, cfg config.Config) *Organizer {
	limit := cfg.CollisionCounterLimit
	if limit <= 0 {
		limit = 9999
	}
	return &Organizer{
		log:            log,
		softMove:       cfg.SoftMove,
		preferSymlink:  cfg.PreferSymlink,
		collisionStyle: cfg.CollisionStyle,
		counterLimit:   limit,
	}
}

// Plan is a single requested file operation.
type Plan struct {
	SourcePath      string
	DestinationDir  string
	DestinationName string // base filename, before collision resolution
}

// Outcome is what the organizer actually did.
type Outcome struct {
	Source      string
	Destination string
	Operation   model.OperationKind
}

// Execute applies plan, choosing the physical operation (§4.13 mode
// selection): symlink when PreferSymlink is set, copy when SoftMove
// keeps the original in place, move otherwise. The destination
// directory is created if missing, and a name collision is resolved
// before anything is written.
func (o *Organizer) Execute(ctx context.Context, plan Plan) (Outcome, error) {
	if err := os.MkdirAll(plan.DestinationDir, 0o755); err != nil {
		return Outcome{}, errs.New(errs.KindPermanentIO, "organizer.Execute", err)
	}

	dest, err := o.resolveCollision(filepath.Join(plan.DestinationDir, plan.DestinationName))
	if err != nil {
		return Outcome{}, err
	}

	op := model.OpMove
	switch {
	case o.preferSymlink:
		op = model.OpSymlink
	case o.softMove:
		op = model.OpCopy
	}

	if err := o.apply(op, plan.SourcePath, dest); err != nil {
		return Outcome{}, err
	}
	return Outcome{Source: plan.SourcePath, Destination: dest, Operation: op}, nil
}

// ExecuteFolder moves every file under plan.SourcePath as one unit
// (§3 Scanned folder: "never split unless the user explicitly requests
// flatten"), placing the folder itself (not its contents individually)
// at the destination.
func (o *Organizer) ExecuteFolder(ctx context.Context, plan Plan) (Outcome, error) {
	if err := os.MkdirAll(plan.DestinationDir, 0o755); err != nil {
		return Outcome{}, errs.New(errs.KindPermanentIO, "organizer.ExecuteFolder", err)
	}
	dest, err := o.resolveCollision(filepath.Join(plan.DestinationDir, plan.DestinationName))
	if err != nil {
		return Outcome{}, err
	}

	op := model.OpMove
	switch {
	case o.preferSymlink:
		op = model.OpSymlink
	case o.softMove:
		op = model.OpCopy
	}

	if err := o.applyDir(op, plan.SourcePath, dest); err != nil {
		return Outcome{}, err
	}
	return Outcome{Source: plan.SourcePath, Destination: dest, Operation: op}, nil
}

func (o *Organizer) apply(op model.OperationKind, src, dst string) error {
	switch op {
	case model.OpSymlink:
		return symlinkAtomic(src, dst)
	case model.OpCopy:
		return copyFileAtomic(src, dst)
	default:
		return moveAtomic(src, dst)
	}
}

func (o *Organizer) applyDir(op model.OperationKind, src, dst string) error {
	switch op {
	case model.OpSymlink:
		return symlinkAtomic(src, dst)
	case model.OpCopy:
		return copyDir(src, dst)
	default:
		return moveAtomic(src, dst)
	}
}

// Invert reverses a previously logged operation for the movement
// package's UndoStack (§4.7's Inverter port): a move is undone by
// moving back, a copy is undone by removing the copy (the original
// source is never touched, preserving the no-delete invariant on the
// user's real files), a symlink is undone by removing the link.
func (o *Organizer) Invert(ctx context.Context, entry model.MovementLogEntry) error {
	switch entry.Operation {
	case model.OpMove:
		return moveAtomic(entry.Destination, entry.Source)
	case model.OpCopy:
		return removeIfUnmodifiedCopy(entry.Source, entry.Destination)
	case model.OpSymlink:
		return os.Remove(entry.Destination)
	default:
		return errs.New(errs.KindGuardrail, "organizer.Invert", errUnknownOperation)
	}
}

// resolveCollision returns a destination path that doesn't yet exist,
// renaming with the configured CollisionStyle (§4.13) if the requested
// path is already taken. It never overwrites.
func (o *Organizer) resolveCollision(wanted string) (string, error) {
	if _, err := os.Stat(wanted); os.IsNotExist(err) {
		return wanted, nil
	}

	ext := filepath.Ext(wanted)
	base := wanted[:len(wanted)-len(ext)]

	for i := 1; i <= o.counterLimit; i++ {
		candidate := base + o.suffix(i) + ext
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", errs.New(errs.KindCollision, "organizer.resolveCollision", errCollisionLimitExceeded)
}

func (o *Organizer) suffix(counter int) string {
	switch o.collisionStyle {
	case config.CollisionHyphenNumber:
		return fmt.Sprintf("-%d", counter)
	case config.CollisionTimestamp:
		return fmt.Sprintf("-%d", time.Now().UnixNano())
	case config.CollisionParenCounter:
		fallthrough
	default:
		return fmt.Sprintf(" (%d)", counter)
	}
}

func moveAtomic(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// os.Rename fails across filesystem boundaries; fall back to
	// copy-then-remove so a move still succeeds across volumes. The
	// source is only unlinked once the copy is verified byte-for-byte,
	// so a failed or truncated cross-volume copy never loses the
	// original (§4.13 invariant 1: unlink gated on hash verification).
	srcHash, err := hashFile(src)
	if err != nil {
		return errs.New(errs.KindPermanentIO, "organizer.moveAtomic", err)
	}
	if err := copyFileAtomic(src, dst); err != nil {
		return err
	}
	dstHash, err := hashFile(dst)
	if err != nil {
		return errs.New(errs.KindPermanentIO, "organizer.moveAtomic", err)
	}
	if dstHash != srcHash {
		return errs.New(errs.KindGuardrail, "organizer.moveAtomic", errCopyVerificationFailed)
	}
	return os.Remove(src)
}

// removeIfUnmodifiedCopy deletes dst only if it still holds the exact
// bytes the copy command wrote: its content hash must still match src,
// the source the copy was made from (copy never touches the source).
// A destination that's since been edited, or a source that's since
// changed, is left alone rather than clobbered (§4.7: copy-undo
// deletes the destination "iff it was created by the command and the
// file content hash still matches").
func removeIfUnmodifiedCopy(src, dst string) error {
	srcHash, err := hashFile(src)
	if err != nil {
		return errs.New(errs.KindPermanentIO, "organizer.Invert", err)
	}
	dstHash, err := hashFile(dst)
	if err != nil {
		return errs.New(errs.KindPermanentIO, "organizer.Invert", err)
	}
	if srcHash != dstHash {
		return errs.New(errs.KindGuardrail, "organizer.Invert", errCopyDestinationModified)
	}
	return os.Remove(dst)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFileAtomic(src, dst string) error {
	tmp := dst + ".sortai-tmp"
	in, err := os.Open(src)
	if err != nil {
		return errs.New(errs.KindPermanentIO, "organizer.copyFile", err)
	}
	defer in.Close()

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errs.New(errs.KindPermanentIO, "organizer.copyFile", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return errs.New(errs.KindTransientIO, "organizer.copyFile", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return errs.New(errs.KindPermanentIO, "organizer.copyFile", err)
	}
	return os.Rename(tmp, dst)
}

func symlinkAtomic(src, dst string) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		return errs.New(errs.KindPermanentIO, "organizer.symlink", err)
	}
	if err := os.Symlink(abs, dst); err != nil {
		return errs.New(errs.KindPermanentIO, "organizer.symlink", err)
	}
	return nil
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFileAtomic(path, target)
	})
}

var errUnknownOperation = fmt.Errorf("unknown movement operation")
var errCollisionLimitExceeded = fmt.Errorf("collision counter limit exceeded")
var errCopyVerificationFailed = fmt.Errorf("copied file does not match source, refusing to delete source")
var errCopyDestinationModified = fmt.Errorf("copy destination no longer matches source, refusing to delete")
