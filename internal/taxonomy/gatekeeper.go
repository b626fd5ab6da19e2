package taxonomy

import (
	"strconv"

	"github.com/sortai/sortai/internal/config"
	"github.com/sortai/sortai/internal/errs"
)

// DepthEnforcer resolves an overlong proposed category path down to
// the configured strategy (§4.9 Depth Enforcer):
//
//   - strict:   reject the path outright (KindGuardrail)
//   - advisory: accept the path but flag it for later review
//   - flatten:  truncate the path to MaxTaxonomyDepth segments
type DepthEnforcer struct {
	Strategy config.DepthStrategy
	MaxDepth int
}

// NewDepthEnforcer builds an enforcer from config values.
func NewDepthEnforcer(strategy config.DepthStrategy, maxDepth int) DepthEnforcer {
	if maxDepth <= 0 {
		maxDepth = 4
	}
	return DepthEnforcer{Strategy: strategy, MaxDepth: maxDepth}
}

// Resolution is the outcome of enforcing depth on a proposed path.
type Resolution struct {
	Segments     []string
	NeedsReview  bool
	WasTruncated bool
}

// Enforce applies the configured strategy to segments.
func (e DepthEnforcer) Enforce(segments []string) (Resolution, error) {
	if len(segments) <= e.MaxDepth {
		return Resolution{Segments: segments}, nil
	}

	switch e.Strategy {
	case config.DepthStrict:
		return Resolution{}, errs.New(errs.KindGuardrail, "taxonomy.Enforce",
			errDepthExceeded(len(segments), e.MaxDepth))
	case config.DepthFlatten:
		return Resolution{Segments: segments[:e.MaxDepth], WasTruncated: true}, nil
	case config.DepthAdvisory:
		fallthrough
	default:
		return Resolution{Segments: segments, NeedsReview: true}, nil
	}
}

type depthExceededErr struct {
	got, max int
}

func (e depthExceededErr) Error() string {
	return "taxonomy depth " + strconv.Itoa(e.got) + " exceeds max " + strconv.Itoa(e.max)
}

func errDepthExceeded(got, max int) error { return depthExceededErr{got: got, max: max} }

// SuggestionStatus is a pending structural change's lifecycle stage
// (§4.9 "pending -> approved -> applied suggestion lifecycle").
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionApproved SuggestionStatus = "approved"
	SuggestionApplied  SuggestionStatus = "applied"
	SuggestionRejected SuggestionStatus = "rejected"
)

// SuggestionKind names the structural change a Suggestion proposes.
type SuggestionKind string

const (
	SuggestionMerge  SuggestionKind = "merge"
	SuggestionSplit  SuggestionKind = "split"
	SuggestionRename SuggestionKind = "rename"
	SuggestionPrune  SuggestionKind = "prune"
)

// Suggestion is a proposed structural change to the tree, gated behind
// human approval before Apply mutates anything (§4.9 Merge/Split
// Gatekeeper).
type Suggestion struct {
	ID         string
	Kind       SuggestionKind
	TargetID   string
	SecondID   string // merge destination / split sibling source, as applicable
	NewName    string
	ChildNames []string
	Status     SuggestionStatus
}

// Gatekeeper holds pending structural suggestions and only lets Apply
// mutate the tree once a human has approved them (§4.9).
type Gatekeeper struct {
	tree        *Tree
	suggestions map[string]*Suggestion
	nextID      int
}

// NewGatekeeper builds a Gatekeeper guarding tree.
func NewGatekeeper(tree *Tree) *Gatekeeper {
	return &Gatekeeper{tree: tree, suggestions: make(map[string]*Suggestion)}
}

// Propose records a new pending suggestion and returns its id.
func (g *Gatekeeper) Propose(s Suggestion) string {
	g.nextID++
	s.ID = "sugg-" + strconv.Itoa(g.nextID)
	s.Status = SuggestionPending
	g.suggestions[s.ID] = &s
	return s.ID
}

// Approve marks a pending suggestion approved, a necessary step before
// Apply will act on it.
func (g *Gatekeeper) Approve(id string) error {
	s, ok := g.suggestions[id]
	if !ok {
		return errs.ErrNotFound
	}
	if s.Status != SuggestionPending {
		return errs.New(errs.KindGuardrail, "taxonomy.Approve", errWrongStatus(s.Status))
	}
	s.Status = SuggestionApproved
	return nil
}

// Reject marks a pending suggestion rejected; Apply will refuse it.
func (g *Gatekeeper) Reject(id string) error {
	s, ok := g.suggestions[id]
	if !ok {
		return errs.ErrNotFound
	}
	s.Status = SuggestionRejected
	return nil
}

// Apply executes an approved suggestion against the tree and marks it
// applied. It refuses anything not already approved, and refuses (via
// Tree's own guardrail checks) any suggestion touching a user-edited
// node.
func (g *Gatekeeper) Apply(id string) error {
	s, ok := g.suggestions[id]
	if !ok {
		return errs.ErrNotFound
	}
	if s.Status != SuggestionApproved {
		return errs.New(errs.KindGuardrail, "taxonomy.Apply", errWrongStatus(s.Status))
	}

	var err error
	switch s.Kind {
	case SuggestionMerge:
		err = g.tree.Merge(s.TargetID, s.SecondID)
	case SuggestionSplit:
		_, err = g.tree.Split(s.TargetID, s.ChildNames, s.NewName)
	case SuggestionPrune:
		err = g.tree.Prune(s.TargetID)
	case SuggestionRename:
		err = g.renameLocked(s.TargetID, s.NewName)
	}
	if err != nil {
		return err
	}
	s.Status = SuggestionApplied
	return nil
}

func (g *Gatekeeper) renameLocked(id, newName string) error {
	if !g.tree.CanAutoModify(id) {
		return errs.New(errs.KindGuardrail, "taxonomy.Rename", errs.ErrUserEdited)
	}
	n, err := g.tree.Get(id)
	if err != nil {
		return err
	}
	g.tree.mu.Lock()
	n.Name = newName
	g.tree.mu.Unlock()
	return nil
}

// Get fetches a suggestion by id.
func (g *Gatekeeper) Get(id string) (Suggestion, error) {
	s, ok := g.suggestions[id]
	if !ok {
		return Suggestion{}, errs.ErrNotFound
	}
	return *s, nil
}

// Pending lists every suggestion still awaiting a decision.
func (g *Gatekeeper) Pending() []Suggestion {
	var out []Suggestion
	for _, s := range g.suggestions {
		if s.Status == SuggestionPending {
			out = append(out, *s)
		}
	}
	return out
}

type wrongStatusErr struct{ status SuggestionStatus }

func (e wrongStatusErr) Error() string { return "suggestion is " + string(e.status) }

func errWrongStatus(status SuggestionStatus) error { return wrongStatusErr{status: status} }
