package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sortai/sortai/internal/obs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startManager(t *testing.T, opts Options) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := New(obs.Noop(), opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx, dir)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		m.Stop()
		<-done
	})

	for m.State() != StateWatching {
		time.Sleep(time.Millisecond)
	}
	return m, dir
}

func TestManager_EmitsStableAfterQuietPeriod(t *testing.T) {
	m, dir := startManager(t, Options{QuietPeriod: 30 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("x"), 0o644))

	select {
	case entry := <-m.Stable():
		assert.Equal(t, filepath.Join(dir, "report.pdf"), entry.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stable event")
	}
}

func TestManager_IgnoresPartialDownloadSuffix(t *testing.T) {
	m, dir := startManager(t, Options{QuietPeriod: 20 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "movie.mp4.crdownload"), []byte("x"), 0o644))

	select {
	case entry := <-m.Stable():
		t.Fatalf("expected no stable event, got %+v", entry)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestManager_IgnoresExcludedPattern(t *testing.T) {
	m, dir := startManager(t, Options{QuietPeriod: 20 * time.Millisecond, Excludes: []string{"*.tmp.json"}})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.tmp.json"), []byte("x"), 0o644))

	select {
	case entry := <-m.Stable():
		t.Fatalf("expected no stable event, got %+v", entry)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestManager_SkipsFilesOverMaxSize(t *testing.T) {
	m, dir := startManager(t, Options{QuietPeriod: 20 * time.Millisecond, MaxFileSize: 4})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.bin"), []byte("too big for the limit"), 0o644))

	select {
	case entry := <-m.Stable():
		t.Fatalf("expected no stable event, got %+v", entry)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestManager_RewriteDuringQuietPeriodRestartsTimerAndIncrementsAttempts(t *testing.T) {
	m, dir := startManager(t, Options{QuietPeriod: 80 * time.Millisecond})
	path := filepath.Join(dir, "draft.txt")

	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("ab"), 0o644))

	select {
	case entry := <-m.Stable():
		assert.Equal(t, path, entry.Path)
		assert.Equal(t, 1, entry.Attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stable event")
	}
}

func TestManager_PauseSuppressesStableEvents(t *testing.T) {
	m, dir := startManager(t, Options{QuietPeriod: 20 * time.Millisecond})
	m.Pause()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"), []byte("x"), 0o644))

	select {
	case entry := <-m.Stable():
		t.Fatalf("expected no stable event while paused, got %+v", entry)
	case <-time.After(150 * time.Millisecond):
	}
	assert.Equal(t, StatePaused, m.State())
}

func TestManager_PauseRefusesNewEnqueuesEvenAfterQuietPeriod(t *testing.T) {
	m, dir := startManager(t, Options{QuietPeriod: 20 * time.Millisecond})
	m.Pause()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)

	m.mu.Lock()
	_, pending := m.pending[filepath.Join(dir, "note.md")]
	m.mu.Unlock()
	assert.False(t, pending, "paused manager must not arm a quiet-period timer for a new write")
}

func TestManager_BackpressureDefersRatherThanDropsStableEvent(t *testing.T) {
	m, dir := startManager(t, Options{QuietPeriod: 20 * time.Millisecond, QueueSize: 1})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "first.txt"), []byte("x"), 0o644))
	time.Sleep(60 * time.Millisecond) // first.txt goes stable and sits in the size-1 out channel

	require.NoError(t, os.WriteFile(filepath.Join(dir, "second.txt"), []byte("x"), 0o644))
	time.Sleep(60 * time.Millisecond) // second.txt's promote attempt finds out full and must defer

	first := <-m.Stable()
	assert.Equal(t, filepath.Join(dir, "first.txt"), first.Path)

	select {
	case second := <-m.Stable():
		assert.Equal(t, filepath.Join(dir, "second.txt"), second.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("deferred stable event for second.txt never arrived")
	}
}

func TestManager_RemoveCancelsPendingFile(t *testing.T) {
	m, dir := startManager(t, Options{QuietPeriod: 80 * time.Millisecond})
	path := filepath.Join(dir, "temp.txt")

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	select {
	case entry := <-m.Stable():
		t.Fatalf("expected removed file to never go stable, got %+v", entry)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestManager_QueueSizeDefaultsWhenUnset(t *testing.T) {
	m, err := New(obs.Noop(), Options{})
	require.NoError(t, err)
	defer m.Stop()
	assert.Equal(t, 500, cap(m.out))
	assert.Equal(t, 3*time.Second, m.opts.QuietPeriod)
}
