// Package llmrouter is SortAI's LLM router (§4.10): a cascade of
// classification providers ordered by user preference, with
// exponential backoff on failure, periodic health checks, and mode
// transitions between full/degraded/offline. A local heuristic
// provider is always registered and never fails, so the cascade always
// terminates (§4.10 "always-available local-heuristic provider").
package llmrouter

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sortai/sortai/internal/config"
	"github.com/sortai/sortai/internal/errs"
	"github.com/sortai/sortai/internal/model"
)

// Request is a classification request handed to a provider.
type Request struct {
	Filename            string
	Keywords            []string
	CandidateCategories []string
	TextExcerpt         string
}

// Response is a provider's classification result.
type Response struct {
	CategoryPath []string
	Confidence   float64
	Rationale    string
	ProviderID   string
	// Escalated is true when the cascade kept trying providers past this
	// one's success because its confidence fell short of the escalation
	// threshold, and this ended up the best result found (§4.10).
	Escalated bool
}

// Provider is one classification backend in the cascade.
type Provider interface {
	Name() string
	Classify(ctx context.Context, req Request) (Response, error)
	// MaxConfidence caps the confidence this provider is ever trusted
	// to report (§4.10: the local heuristic provider is capped at 0.85
	// since it never saw the actual file content).
	MaxConfidence() float64
}

type providerState struct {
	provider    Provider
	failures    int
	nextRetryAt time.Time
	lastHealthy bool
}

// Router cascades classification requests across registered providers
// in preference order, backing off a provider after repeated failures
// and skipping it until its retry window elapses.
type Router struct {
	log                 *zap.SugaredLogger
	providers           []*providerState
	mode                model.LLMMode
	baseDelay           time.Duration
	maxDelay            time.Duration
	escalationThreshold float64
}

// New builds a Router. providers are cascaded in the order supplied;
// Order can subsequently re-sort them by preference.
func New(log *zap.SugaredLogger, providers []Provider) *Router {
	states := make([]*providerState, len(providers))
	for i, p := range providers {
		states[i] = &providerState{provider: p, lastHealthy: true}
	}
	return &Router{
		log:                 log,
		providers:           states,
		mode:                model.ModeFull,
		baseDelay:           time.Second,
		maxDelay:            2 * time.Minute,
		escalationThreshold: 0.5,
	}
}

// SetEscalationThreshold sets the confidence a provider's result must
// clear for Classify to short-circuit the cascade (§4.10, §9 the
// coefficient is configuration, not a literal).
func (r *Router) SetEscalationThreshold(threshold float64) {
	r.escalationThreshold = threshold
}

func isLocal(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "local") || strings.Contains(lower, "ollama") || strings.Contains(lower, "heuristic")
}

// Order reorders the cascade for a given preference (§4.10): automatic
// keeps registration order; local_only drops every non-local provider;
// prefer_local_large moves local providers to the front without
// dropping the rest; cloud moves non-local providers to the front.
func (r *Router) Order(pref config.LLMPreference) {
	switch pref {
	case config.LLMLocalOnly:
		var kept []*providerState
		for _, p := range r.providers {
			if isLocal(p.provider.Name()) {
				kept = append(kept, p)
			}
		}
		r.providers = kept
	case config.LLMPreferLocalBig:
		sort.SliceStable(r.providers, func(i, j int) bool {
			return isLocal(r.providers[i].provider.Name()) && !isLocal(r.providers[j].provider.Name())
		})
	case config.LLMCloud:
		sort.SliceStable(r.providers, func(i, j int) bool {
			return !isLocal(r.providers[i].provider.Name()) && isLocal(r.providers[j].provider.Name())
		})
	case config.LLMAutomatic:
		// registration order already reflects the desired automatic cascade
	}
}

// Mode reports the router's current health-derived mode.
func (r *Router) Mode() model.LLMMode { return r.mode }

// Classify walks the cascade, skipping any provider currently in its
// backoff window. A provider's returned confidence is clamped to its
// MaxConfidence (§4.10). A result at or above the escalation threshold
// short-circuits the cascade immediately; a result below it is kept as
// a candidate and the cascade keeps escalating to the next provider,
// since a later provider may do better. If the cascade runs out of
// providers without anyone clearing the threshold, the
// highest-confidence candidate seen is returned with Escalated set
// (§4.10, the cascade testable property). Every call re-evaluates Mode
// based on how many providers are currently healthy.
func (r *Router) Classify(ctx context.Context, req Request, now time.Time) (Response, error) {
	var lastErr error
	var best Response
	haveBest := false

	for _, ps := range r.providers {
		if now.Before(ps.nextRetryAt) {
			continue
		}
		resp, err := ps.provider.Classify(ctx, req)
		if err != nil {
			lastErr = err
			r.recordFailure(ps, now)
			continue
		}
		r.recordSuccess(ps)
		if resp.Confidence > ps.provider.MaxConfidence() {
			resp.Confidence = ps.provider.MaxConfidence()
		}
		resp.ProviderID = ps.provider.Name()

		if resp.Confidence >= r.escalationThreshold {
			r.updateMode()
			return resp, nil
		}
		if !haveBest || resp.Confidence > best.Confidence {
			best = resp
			haveBest = true
		}
	}

	r.updateMode()
	if haveBest {
		best.Escalated = true
		return best, nil
	}
	if lastErr != nil {
		return Response{}, errs.New(errs.KindProvider, "llmrouter.Classify", lastErr)
	}
	return Response{}, errs.New(errs.KindProvider, "llmrouter.Classify", errs.ErrAllProvidersFailed)
}

func (r *Router) recordFailure(ps *providerState, now time.Time) {
	ps.failures++
	ps.lastHealthy = false
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(ps.failures-1)),
		float64(r.maxDelay),
	))
	ps.nextRetryAt = now.Add(delay)
}

func (r *Router) recordSuccess(ps *providerState) {
	ps.failures = 0
	ps.lastHealthy = true
	ps.nextRetryAt = time.Time{}
}

// updateMode derives full/degraded/offline from how many non-local
// providers are currently healthy, leaving the always-healthy local
// heuristic provider out of the count (§4.10 mode transitions:
// degraded means the model cascade lost a provider but still has one,
// offline means only the local heuristic remains).
func (r *Router) updateMode() {
	total, healthy := 0, 0
	for _, ps := range r.providers {
		if isLocal(ps.provider.Name()) {
			continue
		}
		total++
		if ps.lastHealthy {
			healthy++
		}
	}
	switch {
	case total == 0:
		r.mode = model.ModeOffline
	case healthy == total:
		r.mode = model.ModeFull
	case healthy > 0:
		r.mode = model.ModeDegraded
	default:
		r.mode = model.ModeOffline
	}
}

// HealthCheck pings every networked provider via a lightweight
// classify call against a synthetic request, refreshing each
// provider's backoff state so Mode reflects reality even when no real
// classification traffic is flowing (§4.10 "health checks").
func (r *Router) HealthCheck(ctx context.Context, now time.Time) {
	probe := Request{Filename: "healthcheck.txt", Keywords: []string{"healthcheck"}}
	for _, ps := range r.providers {
		if isLocal(ps.provider.Name()) {
			continue
		}
		if _, err := ps.provider.Classify(ctx, probe); err != nil {
			r.recordFailure(ps, now)
		} else {
			r.recordSuccess(ps)
		}
	}
	r.updateMode()
}
