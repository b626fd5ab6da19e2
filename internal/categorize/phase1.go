// Package categorize is SortAI's two-phase categorization engine
// (§4.11): Phase 1 scores a file instantly from filename-derived
// signals (keywords, embeddings, prototypes, learned graph patterns);
// Phase 2 runs in the background for files that need deeper content
// inspection before a confident assignment can be made.
package categorize

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sortai/sortai/internal/graph"
	"github.com/sortai/sortai/internal/keyword"
	"github.com/sortai/sortai/internal/model"
	"github.com/sortai/sortai/internal/prototype"
)

// Phase1Engine produces a synchronous, filename-only assignment
// (§4.11 Phase 1: instant synchronous scoring).
type Phase1Engine struct {
	Graph      *graph.Graph
	Prototypes *prototype.Store
	TopK       int
	Floor      float64

	// PrototypeWeight, KeywordGraphWeight, and ExtensionPriorWeight are
	// the three blend coefficients from §4.11 ("prototype similarity
	// (0.5), keyword-graph evidence (0.3), extension/parent-folder
	// priors (0.2)"), exposed here so callers can commit §9's open
	// question to config rather than a literal.
	PrototypeWeight      float64
	KeywordGraphWeight   float64
	ExtensionPriorWeight float64
}

// NewPhase1Engine builds a Phase1Engine with the §4.11 default blend.
func NewPhase1Engine(g *graph.Graph, protos *prototype.Store) *Phase1Engine {
	return &Phase1Engine{
		Graph: g, Prototypes: protos, TopK: 3, Floor: 0.3,
		PrototypeWeight:      0.5,
		KeywordGraphWeight:   0.3,
		ExtensionPriorWeight: 0.2,
	}
}

// candidate is one scored category before the best is picked.
type candidate struct {
	categoryPath string
	score        float64
	rationale    string
}

// Score combines keyword-graph suggestions with prototype similarity
// into a single best-guess FileAssignment (§4.11): each signal
// contributes a weighted vote, and the highest-scoring category wins.
func (e *Phase1Engine) Score(ctx context.Context, file model.FileRecord, kw keyword.Result, embedding []float32, now time.Time) (model.FileAssignment, error) {
	totals := make(map[string]float64)
	rationale := make(map[string]string)

	if e.Graph != nil && len(kw.Keywords) > 0 {
		tokens := make([]string, 0, len(kw.Keywords))
		for t := range kw.Keywords {
			tokens = append(tokens, t)
		}
		suggestions, err := e.Graph.SuggestCategoriesForKeywords(ctx, tokens)
		if err != nil {
			return model.FileAssignment{}, err
		}
		for _, s := range suggestions {
			weight := e.KeywordGraphWeight * normalizeWeight(s.Weight)
			totals[s.CategoryKey] += weight
			rationale[s.CategoryKey] = "matched learned keyword pattern"
		}
	}

	if e.Prototypes != nil && len(embedding) > 0 {
		matches, err := e.Prototypes.TopK(ctx, embedding, e.TopK, e.Floor)
		if err != nil {
			return model.FileAssignment{}, err
		}
		for _, m := range matches {
			totals[m.CategoryID] += e.PrototypeWeight * m.Similarity
			if _, ok := rationale[m.CategoryID]; !ok {
				rationale[m.CategoryID] = "similar to existing category prototype"
			}
		}
	}

	if e.Graph != nil {
		priors := extensionFolderPriors(file, kw)
		if len(priors) > 0 {
			suggestions, err := e.Graph.SuggestCategoriesForKeywords(ctx, priors)
			if err != nil {
				return model.FileAssignment{}, err
			}
			for _, s := range suggestions {
				weight := e.ExtensionPriorWeight * normalizeWeight(s.Weight)
				totals[s.CategoryKey] += weight
				if _, ok := rationale[s.CategoryKey]; !ok {
					rationale[s.CategoryKey] = "matched extension or parent-folder prior"
				}
			}
		}
	}

	if len(totals) == 0 {
		return model.FileAssignment{
			FileID:     file.ID,
			CategoryID: "",
			Confidence: 0,
			Rationale:  "no matching keyword pattern or prototype",
			Source:     model.SourcePhase1,
			DecidedAt:  now,
		}, nil
	}

	candidates := make([]candidate, 0, len(totals))
	for cat, score := range totals {
		candidates = append(candidates, candidate{categoryPath: cat, score: score, rationale: rationale[cat]})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].categoryPath < candidates[j].categoryPath
	})

	best := candidates[0]
	confidence := best.score
	if confidence > 1 {
		confidence = 1
	}

	return model.FileAssignment{
		FileID:     file.ID,
		CategoryID: best.categoryPath,
		Confidence: confidence,
		Rationale:  best.rationale,
		Source:     model.SourcePhase1,
		DecidedAt:  now,
	}, nil
}

func normalizeWeight(w float64) float64 {
	// logistic-ish squashing so a handful of confirmations saturate
	// near 1 instead of growing unbounded (§4.11).
	if w <= 0 {
		return 0
	}
	return w / (w + 1)
}

// extensionFolderPriors builds the synthetic entity keys §4.11's third
// term scores against: the file's extension, its coarse type hint, and
// its parent folder name. These reuse the same suggests_category graph
// lookup as real keywords (the entities table keys on type+key
// generically), so a cold store still has somewhere to learn "every
// .pdf that lands in ~/Scans goes to Finance/Invoices" from past human
// confirmations, even before any keyword pattern exists.
func extensionFolderPriors(file model.FileRecord, kw keyword.Result) []string {
	var priors []string
	if file.Ext != "" {
		priors = append(priors, "ext:"+strings.ToLower(file.Ext))
	}
	if kw.Type != "" {
		priors = append(priors, "type:"+string(kw.Type))
	}
	if file.ParentFolder != "" {
		priors = append(priors, "folder:"+strings.ToLower(file.ParentFolder))
	}
	return priors
}
