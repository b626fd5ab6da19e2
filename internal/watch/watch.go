// Package watch is SortAI's watch manager (§4.14), adapted from the
// teacher's FSNotifyWatcher: instead of forwarding every fsnotify
// event straight to a channel, it filters partial downloads and
// excluded paths, enforces a size ceiling, and batches each file
// behind a quiet period before it's considered stable enough to
// categorize.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sortai/sortai/internal/model"
)

// State is the watch manager's lifecycle stage (§4.14 state machine).
type State string

const (
	StateStopped    State = "stopped"
	StateStarting   State = "starting"
	StateWatching   State = "watching"
	StatePaused     State = "paused"
	StateProcessing State = "processing"
)

// partialDownloadSuffixes are extensions browsers and download
// managers use for an in-progress transfer; files ending in one of
// these are ignored until they're renamed away from it.
var partialDownloadSuffixes = []string{".crdownload", ".part", ".download", ".tmp"}

// Options configures a Manager.
type Options struct {
	Excludes    []string // glob patterns matched against the base filename
	MaxFileSize int64    // 0 means unbounded
	QuietPeriod time.Duration
	QueueSize   int // bounded channel capacity; 0 defaults to 500
}

// Manager watches one or more directories and emits a Stable event
// once a file has gone untouched for the configured quiet period
// (§4.14).
type Manager struct {
	log     *zap.SugaredLogger
	opts    Options
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	state   State
	pending map[string]*pendingFile

	out chan model.WatchQueueEntry
}

type pendingFile struct {
	entry model.WatchQueueEntry
	timer *time.Timer
}

// New builds a Manager. The returned Manager owns its own fsnotify
// watcher, started on Start.
func New(log *zap.SugaredLogger, opts Options) (*Manager, error) {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = 3 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 500
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Manager{
		log:     log,
		opts:    opts,
		watcher: w,
		state:   StateStopped,
		pending: make(map[string]*pendingFile),
		out:     make(chan model.WatchQueueEntry, opts.QueueSize),
	}, nil
}

// Stable returns the channel of files that have cleared their quiet
// period and are ready for categorization. Backpressure (§4.14): if
// the consumer falls behind and this channel fills up, a stable entry
// is deferred by re-arming its quiet-period timer rather than blocking
// the watcher goroutine or being dropped.
func (m *Manager) Stable() <-chan model.WatchQueueEntry { return m.out }

// State reports the manager's current lifecycle stage.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins watching dir and blocks processing fsnotify events
// until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context, dir string) error {
	m.setState(StateStarting)
	if err := m.watcher.Add(dir); err != nil {
		m.setState(StateStopped)
		return err
	}
	m.setState(StateWatching)

	for {
		select {
		case <-ctx.Done():
			m.setState(StateStopped)
			return ctx.Err()
		case event, ok := <-m.watcher.Events:
			if !ok {
				m.setState(StateStopped)
				return nil
			}
			m.handleEvent(event)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				m.setState(StateStopped)
				return nil
			}
			m.log.Warnw("watch error", "error", err)
		}
	}
}

// Pause stops emitting stable events without tearing down the
// underlying watch (§4.14 state machine's "paused" stage, e.g. while
// RespectBatteryStatus holds off processing).
func (m *Manager) Pause() { m.setState(StatePaused) }

// Resume returns to the watching stage after Pause.
func (m *Manager) Resume() { m.setState(StateWatching) }

// Stop closes the underlying watcher and any pending quiet-period timers.
func (m *Manager) Stop() error {
	m.mu.Lock()
	for _, p := range m.pending {
		p.timer.Stop()
	}
	m.pending = make(map[string]*pendingFile)
	m.mu.Unlock()
	m.setState(StateStopped)
	return m.watcher.Close()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Remove == fsnotify.Remove || event.Op&fsnotify.Rename == fsnotify.Rename {
		m.cancelPending(event.Name)
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if m.isExcluded(event.Name) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		return
	}
	if m.opts.MaxFileSize > 0 && info.Size() > m.opts.MaxFileSize {
		return
	}

	m.arm(event.Name, info)
}

func (m *Manager) isExcluded(path string) bool {
	base := filepath.Base(path)
	for _, suffix := range partialDownloadSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	for _, pattern := range m.opts.Excludes {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// arm (re)starts the quiet-period timer for path, counting how many
// times it has been re-armed so a pathological write-storm doesn't stay queued
// forever without visibility (§3 Watch queue entry "Attempts").
func (m *Manager) arm(path string, info os.FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StatePaused {
		// Paused refuses new enqueues outright (§4.14); nothing gets a
		// quiet-period timer until Resume.
		return
	}

	now := time.Now()
	p, exists := m.pending[path]
	if !exists {
		p = &pendingFile{entry: model.WatchQueueEntry{Path: path, DetectedAt: now}}
		m.pending[path] = p
	} else {
		p.timer.Stop()
		p.entry.Attempts++
	}
	p.entry.LastModified = info.ModTime()
	p.entry.Size = info.Size()
	p.entry.IsLarge = m.opts.MaxFileSize > 0 && info.Size() > m.opts.MaxFileSize/2

	p.timer = time.AfterFunc(m.opts.QuietPeriod, func() { m.promote(path) })
}

func (m *Manager) cancelPending(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pending[path]; ok {
		p.timer.Stop()
		delete(m.pending, path)
	}
}

func (m *Manager) promote(path string) {
	m.mu.Lock()
	p, ok := m.pending[path]
	if !ok {
		m.mu.Unlock()
		return
	}
	if m.state == StatePaused {
		delete(m.pending, path)
		m.mu.Unlock()
		return
	}
	entry := p.entry
	m.mu.Unlock()

	select {
	case m.out <- entry:
		m.mu.Lock()
		delete(m.pending, path)
		m.mu.Unlock()
	default:
		// Backpressure (§4.14): the consumer hasn't drained Stable() yet.
		// Defer rather than drop, so the ready callback still fires
		// exactly once per queued lifetime instead of silently losing
		// the file.
		m.log.Warnw("watch queue full, deferring stable event", "path", path)
		m.mu.Lock()
		if cur, ok := m.pending[path]; ok {
			cur.timer = time.AfterFunc(m.opts.QuietPeriod, func() { m.promote(path) })
		}
		m.mu.Unlock()
	}
}
