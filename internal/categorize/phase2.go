package categorize

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sortai/sortai/internal/llmrouter"
	"github.com/sortai/sortai/internal/model"
	"github.com/sortai/sortai/internal/taxonomy"
)

// QueueItem is one file awaiting deep Phase 2 analysis, ranked by
// Priority (lower runs first): low-confidence Phase 1 results and
// user-requested re-categorizations jump the queue ahead of routine
// backlog (§4.11 Phase 2 "background queue with priorities").
type QueueItem struct {
	File                model.FileRecord
	Phase1Assignment    model.FileAssignment
	CandidateCategories []string
	Priority            int
	EnqueuedAt          time.Time
}

// Phase2Engine runs bounded-concurrency deep analysis over a priority
// queue, escalating to the LLM router for any candidate the media
// inspector surfaces (§4.11 Phase 2).
type Phase2Engine struct {
	inspector  MediaInspector
	router     *llmrouter.Router
	gatekeeper *taxonomy.Gatekeeper
	maxWorkers int

	mu    sync.Mutex
	items []QueueItem
}

// NewPhase2Engine builds a Phase2Engine. gatekeeper is stored on the
// engine but Run never proposes anything to it, so it may be nil; Phase 2
// results are returned to the caller without gatekeeper approval.
func NewPhase2Engine(inspector MediaInspector, router *llmrouter.Router, gatekeeper *taxonomy.Gatekeeper, maxWorkers int) *Phase2Engine {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Phase2Engine{inspector: inspector, router: router, gatekeeper: gatekeeper, maxWorkers: maxWorkers}
}

// Enqueue adds item to the backlog.
func (e *Phase2Engine) Enqueue(item QueueItem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append(e.items, item)
}

// Len reports the current backlog size.
func (e *Phase2Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

func (e *Phase2Engine) drain() []QueueItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	items := e.items
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return items[i].EnqueuedAt.Before(items[j].EnqueuedAt)
	})
	e.items = nil
	return items
}

// Result is the outcome of running one queued item through Phase 2.
type Result struct {
	FileID     string
	Assignment model.FileAssignment
	Err        error
}

// Run drains the backlog and processes it with up to maxWorkers
// concurrent workers (bounded via golang.org/x/sync/errgroup's SetLimit;
// the cluster package uses errgroup for its k-means restarts too).
// Items whose type the inspector doesn't support fall back to the
// Phase 1 assignment unchanged.
func (e *Phase2Engine) Run(ctx context.Context, now time.Time) ([]Result, error) {
	items := e.drain()
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]Result, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = e.process(gctx, item, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Phase2Engine) process(ctx context.Context, item QueueItem, now time.Time) Result {
	if !e.inspector.Supports(item.File.Type) {
		return Result{FileID: item.File.ID, Assignment: item.Phase1Assignment}
	}

	signals, err := e.inspector.Inspect(ctx, item.File.Path, item.File.Type)
	if err != nil {
		return Result{FileID: item.File.ID, Err: err}
	}

	req := llmrouter.Request{
		Filename:            item.File.Path,
		CandidateCategories: item.CandidateCategories,
		TextExcerpt:         signals.TextCue,
	}
	resp, err := e.router.Classify(ctx, req, now)
	if err != nil {
		return Result{FileID: item.File.ID, Assignment: item.Phase1Assignment, Err: err}
	}

	assignment := model.FileAssignment{
		FileID:     item.File.ID,
		CategoryID: joinPath(resp.CategoryPath),
		Confidence: resp.Confidence,
		Rationale:  resp.Rationale,
		Source:     model.SourcePhase2,
		DecidedAt:  now,
	}
	return Result{FileID: item.File.ID, Assignment: assignment}
}

func joinPath(segments []string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}
