package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sortai/sortai/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestClassifyExtension_KnownAndUnknown(t *testing.T) {
	assert.Equal(t, model.FileTypeDocument, ClassifyExtension(".pdf"))
	assert.Equal(t, model.FileTypeImage, ClassifyExtension("JPG"))
	assert.Equal(t, model.FileTypeOther, ClassifyExtension(".xyz"))
}

func TestWalk_LooseFilesAtRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "invoice.pdf"), "a")
	writeFile(t, filepath.Join(dir, "notes.txt"), "b")

	res, err := Walk(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Loose, 2)
	assert.Empty(t, res.Folders)
}

func TestWalk_FolderAboveThresholdBecomesUnit(t *testing.T) {
	dir := t.TempDir()
	vac := filepath.Join(dir, "vacation")
	writeFile(t, filepath.Join(vac, "a.jpg"), "1")
	writeFile(t, filepath.Join(vac, "b.jpg"), "2")
	writeFile(t, filepath.Join(vac, "c.jpg"), "3")

	res, err := Walk(context.Background(), dir, Options{FolderMinSize: 3})
	require.NoError(t, err)
	require.Len(t, res.Folders, 1)
	assert.Equal(t, "vacation", res.Folders[0].Path)
	assert.Len(t, res.Folders[0].Files, 3)
	assert.Equal(t, model.FileTypeImage, res.Folders[0].DominantType)
	assert.Empty(t, res.Loose)
}

func TestWalk_FolderBelowThresholdStaysLoose(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "misc")
	writeFile(t, filepath.Join(small, "a.txt"), "1")

	res, err := Walk(context.Background(), dir, Options{FolderMinSize: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Folders)
	require.Len(t, res.Loose, 1)
	assert.Empty(t, res.Loose[0].ParentFolder)
}

func TestWalk_SkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".DS_Store"), "junk")
	writeFile(t, filepath.Join(dir, "visible.txt"), "a")

	res, err := Walk(context.Background(), dir, Options{})
	require.NoError(t, err)
	require.Len(t, res.Loose, 1)
	assert.Equal(t, "visible.txt", filepath.Base(res.Loose[0].Path))
}

func TestWalk_ExcludePatternIsHonored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cache.tmp"), "a")
	writeFile(t, filepath.Join(dir, "keep.txt"), "b")

	res, err := Walk(context.Background(), dir, Options{Excludes: []string{"*.tmp"}})
	require.NoError(t, err)
	require.Len(t, res.Loose, 1)
	assert.Equal(t, "keep.txt", filepath.Base(res.Loose[0].Path))
}

func TestWalk_HashContentPopulatesContentHash(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "doc.txt"), "hello world")

	res, err := Walk(context.Background(), dir, Options{HashContent: true})
	require.NoError(t, err)
	require.Len(t, res.Loose, 1)
	assert.NotEmpty(t, res.Loose[0].ContentHash)
}

func TestContentID_StableAcrossRepeatedScans(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "doc.txt"), "hello world")

	first, err := Walk(context.Background(), dir, Options{})
	require.NoError(t, err)
	second, err := Walk(context.Background(), dir, Options{})
	require.NoError(t, err)

	require.Len(t, first.Loose, 1)
	require.Len(t, second.Loose, 1)
	assert.Equal(t, first.Loose[0].ID, second.Loose[0].ID)
}
