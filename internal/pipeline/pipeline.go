// Package pipeline wires SortAI's fourteen components into the
// end-to-end flow described across spec.md §4: scan, score, route
// through the gatekeeper-guarded taxonomy, move the file, and log the
// move for undo — the same top-level orchestration role the teacher's
// cmd/query.go plays in stitching retriever, reranker, and LLM client
// together behind a single call.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sortai/sortai/internal/categorize"
	"github.com/sortai/sortai/internal/cluster"
	"github.com/sortai/sortai/internal/config"
	"github.com/sortai/sortai/internal/embedding"
	"github.com/sortai/sortai/internal/feedback"
	"github.com/sortai/sortai/internal/graph"
	"github.com/sortai/sortai/internal/keyword"
	"github.com/sortai/sortai/internal/llmrouter"
	"github.com/sortai/sortai/internal/model"
	"github.com/sortai/sortai/internal/movement"
	"github.com/sortai/sortai/internal/organizer"
	"github.com/sortai/sortai/internal/prototype"
	"github.com/sortai/sortai/internal/scan"
	"github.com/sortai/sortai/internal/store"
	"github.com/sortai/sortai/internal/taxonomy"
)

// Pipeline owns the live instances of every component and the single
// SQLite connection they share.
type Pipeline struct {
	cfg config.Config
	log *zap.SugaredLogger
	db  *store.DB

	Extractor  *keyword.Extractor
	Embeddings embedding.Service
	Graph      *graph.Graph
	Prototypes *prototype.Store
	Tree       *taxonomy.Tree
	Enforcer   taxonomy.DepthEnforcer
	Gatekeeper *taxonomy.Gatekeeper
	Router     *llmrouter.Router
	Phase1     *categorize.Phase1Engine
	Phase2     *categorize.Phase2Engine
	Organizer  *organizer.Organizer
	Movement   *movement.Log
	UndoStack  *movement.UndoStack
	Feedback   *feedback.Manager

	destinationRoot string

	mu        sync.Mutex
	snapshot  Snapshot
	listeners []chan Snapshot

	clusterMu     sync.Mutex
	clusterBuffer []cluster.Record
}

// Options carries the pieces of Pipeline construction that can't be
// derived from config alone.
type Options struct {
	DestinationRoot string
	Embeddings      embedding.Service // defaults to a local word-average service
	LLMProviders    []llmrouter.Provider
	Inspector       categorize.MediaInspector
}

// New opens the store and wires every component per cfg.
func New(log *zap.SugaredLogger, cfg config.Config, opts Options) (*Pipeline, error) {
	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	embSvc := opts.Embeddings
	if embSvc == nil {
		embSvc = embedding.NewLocalService(cfg.EmbeddingDimension)
	}
	cached := embedding.NewCachedService(embSvc, embedding.NewSQLiteCache(db))

	g := graph.New(db)
	protos := prototype.New(db)
	tree := taxonomy.NewTree(cfg.MaxTaxonomyDepth)
	enforcer := taxonomy.NewDepthEnforcer(cfg.DepthStrategy, cfg.MaxTaxonomyDepth)
	gatekeeper := taxonomy.NewGatekeeper(tree)

	providers := opts.LLMProviders
	if len(providers) == 0 {
		providers = []llmrouter.Provider{llmrouter.NewHeuristicProvider()}
	}
	router := llmrouter.New(log.Named("llmrouter"), providers)
	router.Order(cfg.LLMPreference)
	router.SetEscalationThreshold(cfg.EscalationThreshold)

	inspector := opts.Inspector
	if inspector == nil {
		inspector = categorize.NewStubInspector()
	}

	phase1 := categorize.NewPhase1Engine(g, protos)
	phase1.PrototypeWeight = cfg.Phase1PrototypeWeight
	phase1.KeywordGraphWeight = cfg.Phase1KeywordGraphWeight
	phase1.ExtensionPriorWeight = cfg.Phase1ExtensionPriorWeight
	phase2 := categorize.NewPhase2Engine(inspector, router, gatekeeper, cfg.MaxConcurrentDeep)

	org := organizer.New(log.Named("organizer"), cfg)
	moveLog := movement.New(db)
	undoStack := movement.NewUndoStack(moveLog, cfg.UndoStackDepth)
	fb := feedback.New(db)

	return &Pipeline{
		cfg: cfg, log: log, db: db,
		Extractor: keyword.NewExtractor(), Embeddings: cached,
		Graph: g, Prototypes: protos, Tree: tree, Enforcer: enforcer, Gatekeeper: gatekeeper,
		Router: router, Phase1: phase1, Phase2: phase2,
		Organizer: org, Movement: moveLog, UndoStack: undoStack, Feedback: fb,
		destinationRoot: opts.DestinationRoot,
	}, nil
}

// Close releases the underlying database connection.
func (p *Pipeline) Close() error { return p.db.Conn.Close() }

// Scan walks root into loose files and folder units.
func (p *Pipeline) Scan(ctx context.Context, root string) (scan.Result, error) {
	return scan.Walk(ctx, root, scan.Options{FolderMinSize: p.cfg.ClusterMinSize})
}

// Decision is the outcome of scoring and, if confident enough, moving
// a single file.
type Decision struct {
	File       model.FileRecord
	Assignment model.FileAssignment
	Outcome    *organizer.Outcome // nil if the file was queued for review or Phase 2
}

// ClassifyAndRoute runs Phase 1 on file and either organizes it
// immediately (confidence >= AutoAcceptThreshold), queues it for
// Phase 2 deep analysis (a candidate category with confidence below
// EscalationThreshold), or files it for human review (confidence
// between the two thresholds, or no candidate at all) (§4.11's
// three-way split).
func (p *Pipeline) ClassifyAndRoute(ctx context.Context, file model.FileRecord, now time.Time) (Decision, error) {
	kw := p.Extractor.Extract(filepath.Base(file.Path))
	tokens := make([]string, 0, len(kw.Keywords))
	for t := range kw.Keywords {
		tokens = append(tokens, t)
	}
	vec, err := p.Embeddings.EmbedFilename(ctx, tokens)
	if err != nil {
		return Decision{}, err
	}

	assignment, err := p.Phase1.Score(ctx, file, kw, vec, now)
	if err != nil {
		return Decision{}, err
	}

	switch {
	case assignment.Confidence >= p.cfg.AutoAcceptThreshold:
		outcome, err := p.organize(ctx, file, assignment, now)
		if err != nil {
			return Decision{}, err
		}
		p.bumpProcessed()
		return Decision{File: file, Assignment: assignment, Outcome: &outcome}, nil

	case assignment.CategoryID != "" && assignment.Confidence < p.cfg.EscalationThreshold:
		p.Phase2.Enqueue(categorize.QueueItem{
			File: file, Phase1Assignment: assignment,
			CandidateCategories: candidatePaths(assignment), Priority: 5, EnqueuedAt: now,
		})
		p.bumpQueued()
		return Decision{File: file, Assignment: assignment}, nil

	case assignment.CategoryID == "":
		// Zero evidence, not just low confidence: Phase 1 found no
		// keyword pattern or prototype at all. Batch it into the
		// similarity clusterer instead of sending it straight to
		// feedback, so a cold store still produces an emergent taxonomy
		// draft for the reviewer to confirm (§4.11, §2 Flow).
		draft := p.proposeEmergentCluster(kw, file)
		assignment.Rationale = "no matching signal; proposed emergent cluster: " + draft
		if err := p.Feedback.Enqueue(ctx, model.FeedbackItem{
			FileID: file.ID, SuggestedPath: []string{draft}, Confidence: assignment.Confidence,
			Rationale: assignment.Rationale, ExtractedKeywords: tokens, Status: model.FeedbackPending, CreatedAt: now,
		}); err != nil {
			return Decision{}, err
		}
		p.bumpReview()
		return Decision{File: file, Assignment: assignment}, nil

	default:
		if err := p.Feedback.Enqueue(ctx, model.FeedbackItem{
			FileID: file.ID, SuggestedPath: splitPath(assignment.CategoryID), Confidence: assignment.Confidence,
			Rationale: assignment.Rationale, ExtractedKeywords: tokens, Status: model.FeedbackPending, CreatedAt: now,
		}); err != nil {
			return Decision{}, err
		}
		p.bumpReview()
		return Decision{File: file, Assignment: assignment}, nil
	}
}

// proposeEmergentCluster batches a zero-evidence file into the
// similarity-clusterer's buffer and names the draft group it falls
// into, the C3 wiring §4.11 and §2's Flow require for files Phase 1
// has no keyword or prototype evidence for. A lone file still gets its
// own single-member draft (forcing MinSize to 1) rather than being
// folded into a generic "Other" bucket before it has any peers.
func (p *Pipeline) proposeEmergentCluster(kw keyword.Result, file model.FileRecord) string {
	p.clusterMu.Lock()
	defer p.clusterMu.Unlock()

	p.clusterBuffer = append(p.clusterBuffer, cluster.Record{
		FileID: file.ID, Filename: filepath.Base(file.Path), Keywords: kw.Keywords, Type: string(kw.Type),
	})

	opt := cluster.SimilarityOptions{
		JaccardThreshold:     p.cfg.JaccardThreshold,
		LevenshteinThreshold: p.cfg.LevenshteinThreshold,
		MinSize:              p.cfg.ClusterMinSize,
		MaxSize:              p.cfg.ClusterMaxSize,
	}
	if len(p.clusterBuffer) < opt.MinSize {
		opt.MinSize = 1
	}

	for _, g := range cluster.ClusterBySimilarity(p.clusterBuffer, opt) {
		for _, m := range g.Members {
			if m.FileID == file.ID {
				return g.Name
			}
		}
	}
	return "Other"
}

// RunPhase2 drains the background queue and organizes every result
// that clears the review threshold.
func (p *Pipeline) RunPhase2(ctx context.Context, now time.Time) ([]Decision, error) {
	results, err := p.Phase2.Run(ctx, now)
	if err != nil {
		return nil, err
	}

	decisions := make([]Decision, 0, len(results))
	for _, r := range results {
		if r.Err != nil || r.Assignment.Confidence < p.cfg.ReviewThreshold {
			continue
		}
		var file model.FileRecord
		file.ID = r.FileID
		outcome, err := p.organize(ctx, file, r.Assignment, now)
		if err != nil {
			return decisions, err
		}
		p.bumpProcessed()
		decisions = append(decisions, Decision{File: file, Assignment: r.Assignment, Outcome: &outcome})
	}
	return decisions, nil
}

// organize resolves a category path through the depth enforcer and
// taxonomy tree, executes the physical move, and records it for undo.
func (p *Pipeline) organize(ctx context.Context, file model.FileRecord, assignment model.FileAssignment, now time.Time) (organizer.Outcome, error) {
	segments := splitPath(assignment.CategoryID)
	resolution, err := p.Enforcer.Enforce(segments)
	if err != nil {
		return organizer.Outcome{}, err
	}
	segments = resolution.Segments

	if _, err := p.Graph.GetOrCreateCategoryPath(ctx, strings.Join(segments, "/"), segments, now); err != nil {
		return organizer.Outcome{}, err
	}

	destDir := filepath.Join(append([]string{p.destinationRoot}, segments...)...)
	plan := organizer.Plan{SourcePath: file.Path, DestinationDir: destDir, DestinationName: filepath.Base(file.Path)}
	outcome, err := p.Organizer.Execute(ctx, plan)
	if err != nil {
		return organizer.Outcome{}, err
	}

	entry, err := p.Movement.Append(ctx, model.MovementLogEntry{
		Timestamp: now, Source: outcome.Source, Destination: outcome.Destination,
		Reason: assignment.Rationale, Confidence: assignment.Confidence, Operation: outcome.Operation,
		LLMModeAtDecision: p.Router.Mode(), Undoable: true,
	})
	if err != nil {
		return outcome, err
	}
	p.UndoStack.Record(entry)

	return outcome, nil
}

// Undo reverses the most recent undoable movement.
func (p *Pipeline) Undo(ctx context.Context, now time.Time) (model.MovementLogEntry, error) {
	return p.UndoStack.Undo(ctx, p.Organizer, now)
}

// Redo re-applies the most recently undone movement.
func (p *Pipeline) Redo(ctx context.Context, now time.Time) (model.MovementLogEntry, error) {
	return p.UndoStack.Redo(ctx, p.Organizer, now)
}

// Maintain prunes stale movement-log rows and rotates a database
// backup into backupDir, keeping at most generations copies (§6:
// "movement log default 90 days", "automatic backups rotated").
func (p *Pipeline) Maintain(now time.Time, retention time.Duration, backupDir string, generations int) error {
	if _, err := p.db.Prune(now, retention); err != nil {
		return fmt.Errorf("pruning movement log: %w", err)
	}
	if backupDir == "" {
		return nil
	}
	if err := p.db.RotateBackups(backupDir, generations); err != nil {
		return fmt.Errorf("rotating backups: %w", err)
	}
	return nil
}

func candidatePaths(a model.FileAssignment) []string {
	if a.CategoryID == "" {
		return nil
	}
	return []string{a.CategoryID}
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
