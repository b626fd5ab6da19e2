package llmrouter

import (
	"context"
	"strings"
)

// HeuristicProvider is the always-available, never-failing fallback
// at the end of the cascade (§4.10): it never calls out to a model,
// just matches keywords against the candidate categories it was
// offered, so the router always has a terminal option even fully
// offline.
type HeuristicProvider struct{}

// NewHeuristicProvider builds the local heuristic provider.
func NewHeuristicProvider() HeuristicProvider { return HeuristicProvider{} }

func (HeuristicProvider) Name() string          { return "local-heuristic" }
func (HeuristicProvider) MaxConfidence() float64 { return 0.85 }

// Classify picks whichever candidate category shares the most
// substrings with the file's keywords, or falls back to "Uncategorized".
func (h HeuristicProvider) Classify(ctx context.Context, req Request) (Response, error) {
	best := ""
	bestScore := 0
	for _, cat := range req.CandidateCategories {
		score := 0
		lowerCat := strings.ToLower(cat)
		for _, kw := range req.Keywords {
			if strings.Contains(lowerCat, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = cat
		}
	}
	if best == "" {
		return Response{CategoryPath: []string{"Uncategorized"}, Confidence: 0.2, Rationale: "no keyword overlap with any candidate category"}, nil
	}
	confidence := 0.4 + 0.1*float64(bestScore)
	if confidence > 0.85 {
		confidence = 0.85
	}
	return Response{
		CategoryPath: strings.Split(best, "/"),
		Confidence:   confidence,
		Rationale:    "keyword overlap with candidate category",
	}, nil
}
