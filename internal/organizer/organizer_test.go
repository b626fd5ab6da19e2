package organizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sortai/sortai/internal/config"
	"github.com/sortai/sortai/internal/model"
	"github.com/sortai/sortai/internal/obs"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExecute_MoveRemovesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "invoice.pdf")
	writeFile(t, src, "data")

	cfg := config.Default()
	o := New(obs.Noop(), cfg)

	outcome, err := o.Execute(context.Background(), Plan{SourcePath: src, DestinationDir: filepath.Join(dir, "Finance"), DestinationName: "invoice.pdf"})
	require.NoError(t, err)
	assert.Equal(t, model.OpMove, outcome.Operation)
	assert.NoFileExists(t, src)
	assert.FileExists(t, outcome.Destination)
}

func TestExecute_SoftMoveKeepsSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "invoice.pdf")
	writeFile(t, src, "data")

	cfg := config.Default()
	cfg.SoftMove = true
	o := New(obs.Noop(), cfg)

	outcome, err := o.Execute(context.Background(), Plan{SourcePath: src, DestinationDir: filepath.Join(dir, "Finance"), DestinationName: "invoice.pdf"})
	require.NoError(t, err)
	assert.Equal(t, model.OpCopy, outcome.Operation)
	assert.FileExists(t, src)
	assert.FileExists(t, outcome.Destination)
}

func TestExecute_PreferSymlink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "invoice.pdf")
	writeFile(t, src, "data")

	cfg := config.Default()
	cfg.PreferSymlink = true
	o := New(obs.Noop(), cfg)

	outcome, err := o.Execute(context.Background(), Plan{SourcePath: src, DestinationDir: filepath.Join(dir, "Finance"), DestinationName: "invoice.pdf"})
	require.NoError(t, err)
	assert.Equal(t, model.OpSymlink, outcome.Operation)
	info, err := os.Lstat(outcome.Destination)
	require.NoError(t, err)
	assert.Equal(t, os.ModeSymlink, info.Mode()&os.ModeSymlink)
}

func TestExecute_CollisionGetsParenCounterSuffix(t *testing.T) {
	dir := t.TempDir()
	destDir := filepath.Join(dir, "Finance")
	require.NoError(t, os.MkdirAll(destDir, 0o755))
	writeFile(t, filepath.Join(destDir, "invoice.pdf"), "existing")

	src := filepath.Join(dir, "invoice.pdf")
	writeFile(t, src, "new")

	cfg := config.Default()
	o := New(obs.Noop(), cfg)
	outcome, err := o.Execute(context.Background(), Plan{SourcePath: src, DestinationDir: destDir, DestinationName: "invoice.pdf"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "invoice (1).pdf"), outcome.Destination)
}

func TestExecute_CollisionHyphenStyle(t *testing.T) {
	dir := t.TempDir()
	destDir := filepath.Join(dir, "Finance")
	require.NoError(t, os.MkdirAll(destDir, 0o755))
	writeFile(t, filepath.Join(destDir, "invoice.pdf"), "existing")

	src := filepath.Join(dir, "invoice.pdf")
	writeFile(t, src, "new")

	cfg := config.Default()
	cfg.CollisionStyle = config.CollisionHyphenNumber
	o := New(obs.Noop(), cfg)
	outcome, err := o.Execute(context.Background(), Plan{SourcePath: src, DestinationDir: destDir, DestinationName: "invoice.pdf"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "invoice-1.pdf"), outcome.Destination)
}

func TestExecuteFolder_MovesDirectoryAsUnit(t *testing.T) {
	dir := t.TempDir()
	srcFolder := filepath.Join(dir, "vacation")
	require.NoError(t, os.MkdirAll(srcFolder, 0o755))
	writeFile(t, filepath.Join(srcFolder, "photo1.jpg"), "a")
	writeFile(t, filepath.Join(srcFolder, "photo2.jpg"), "b")

	cfg := config.Default()
	o := New(obs.Noop(), cfg)
	outcome, err := o.ExecuteFolder(context.Background(), Plan{SourcePath: srcFolder, DestinationDir: filepath.Join(dir, "Photos"), DestinationName: "vacation"})
	require.NoError(t, err)
	assert.NoDirExists(t, srcFolder)
	assert.FileExists(t, filepath.Join(outcome.Destination, "photo1.jpg"))
	assert.FileExists(t, filepath.Join(outcome.Destination, "photo2.jpg"))
}

func TestInvert_MoveReversesOperation(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "invoice.pdf")
	writeFile(t, src, "data")

	cfg := config.Default()
	o := New(obs.Noop(), cfg)
	outcome, err := o.Execute(context.Background(), Plan{SourcePath: src, DestinationDir: filepath.Join(dir, "Finance"), DestinationName: "invoice.pdf"})
	require.NoError(t, err)

	entry := model.MovementLogEntry{Source: src, Destination: outcome.Destination, Operation: model.OpMove}
	require.NoError(t, o.Invert(context.Background(), entry))
	assert.FileExists(t, src)
	assert.NoFileExists(t, outcome.Destination)
}

func TestInvert_CopyRemovesDestinationOnly(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "invoice.pdf")
	writeFile(t, src, "data")

	cfg := config.Default()
	cfg.SoftMove = true
	o := New(obs.Noop(), cfg)
	outcome, err := o.Execute(context.Background(), Plan{SourcePath: src, DestinationDir: filepath.Join(dir, "Finance"), DestinationName: "invoice.pdf"})
	require.NoError(t, err)

	entry := model.MovementLogEntry{Source: src, Destination: outcome.Destination, Operation: model.OpCopy}
	require.NoError(t, o.Invert(context.Background(), entry))
	assert.FileExists(t, src)
	assert.NoFileExists(t, outcome.Destination)
}

func TestInvert_CopyRefusesToDeleteEditedDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "invoice.pdf")
	writeFile(t, src, "data")

	cfg := config.Default()
	cfg.SoftMove = true
	o := New(obs.Noop(), cfg)
	outcome, err := o.Execute(context.Background(), Plan{SourcePath: src, DestinationDir: filepath.Join(dir, "Finance"), DestinationName: "invoice.pdf"})
	require.NoError(t, err)

	writeFile(t, outcome.Destination, "edited by the user after the copy")

	entry := model.MovementLogEntry{Source: src, Destination: outcome.Destination, Operation: model.OpCopy}
	err = o.Invert(context.Background(), entry)
	assert.Error(t, err)
	assert.FileExists(t, outcome.Destination)
}

func TestResolveCollision_RespectsCounterLimit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.txt"), "a")
	writeFile(t, filepath.Join(dir, "x (1).txt"), "b")

	cfg := config.Default()
	cfg.CollisionCounterLimit = 1
	o := New(obs.Noop(), cfg)

	_, err := o.resolveCollision(filepath.Join(dir, "x.txt"))
	assert.Error(t, err)
}
