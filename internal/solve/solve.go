package solve

import (
	"fmt"
	"sort"

	"github.com/cruciblehq/spfs/internal/recipe"
)

// Solver is a DPLL-style backtracking resolver over a State. The backtracking shape — a stack of per-request candidate
// queues, advanced forward on acceptance and popped on exhaustion — is
// adapted from golang-dep's gps solver loop, simplified for this
// system's flatter request model (no bimodal project/package split: a
// PkgRequest always resolves exactly one name at a time).
type Solver struct {
	Source CandidateSource

	// Validators overrides the default chain; nil uses
	// DefaultValidators(BinaryOnly).
	Validators []Validator

	BinaryOnly bool

	// PreferredOptions and PromotePatterns feed BuildKey ordering.
	PreferredOptions recipe.OptionMap
	PromotePatterns  []string
}

// NewSolver returns a Solver with the default validator chain against
// the given candidate source.
func NewSolver(source CandidateSource) *Solver {
	return &Solver{Source: source}
}

func (s *Solver) validatorChain() []Validator {
	if s.Validators != nil {
		return s.Validators
	}
	return DefaultValidators(s.BinaryOnly)
}

// frame is one entry of the solver's backtracking stack: the request it
// is trying to resolve, the state it branched from, the ordered
// candidate list, and how far into that list the search has advanced.
type frame struct {
	req        PkgRequest
	base       *State
	candidates []Candidate
	next       int
	notes      []Note
	decision   *Decision // the Decision this frame branches from
}

// Solve runs the solver to completion from initial, returning the final
// State once every PkgRequest is resolved. On
// failure it returns *OutOfOptions describing the request and candidates
// that could not be reconciled.
func (s *Solver) Solve(initial *State) (*State, error) {
	cur := initial.Clone()
	decision := &Decision{State: cur}

	var stack []*frame
	var lastFailure *OutOfOptions

	for {
		if cur.IsSolved() {
			return cur, nil
		}

		reqIdx, req, candidates, err := s.pickNext(cur)
		if err != nil {
			return nil, err
		}

		base := cur.Clone()
		base.popRequest(reqIdx)

		f := &frame{
			req:        req,
			base:       base,
			candidates: orderCandidates(candidates, s.PreferredOptions, s.PromotePatterns),
			decision:   decision,
		}
		stack = append(stack, f)

		if next, nextDecision, ok := s.advance(f); ok {
			cur, decision = next, nextDecision
			continue
		}

		lastFailure = &OutOfOptions{Request: f.req, Notes: f.notes}
		stack = stack[:len(stack)-1]

		if nc, nd, ok := s.backtrack(&stack); ok {
			cur, decision = nc, nd
			continue
		}
		return nil, lastFailure
	}
}

// advance tries candidates from f.next onward, returning the first
// accepted one's resulting state and decision.
func (s *Solver) advance(f *frame) (*State, *Decision, bool) {
	chain := s.validatorChain()
	for f.next < len(f.candidates) {
		c := f.candidates[f.next]
		f.next++

		rejected := false
		for _, v := range chain {
			if ok, reason := v.Validate(f.base, f.req, c); !ok {
				f.notes = append(f.notes, Note{
					RequestName: f.req.Name(),
					Candidate:   c.Package.Ident().String(),
					Validator:   v.Name(),
					Reason:      reason,
				})
				rejected = true
				break
			}
		}
		if rejected {
			continue
		}

		next, err := applyCandidate(f.base, f.req, c)
		if err != nil {
			f.notes = append(f.notes, Note{
				RequestName: f.req.Name(),
				Candidate:   c.Package.Ident().String(),
				Validator:   "RequestMerge",
				Reason:      err.Error(),
			})
			continue
		}

		d := &Decision{
			Change: Change{Kind: ChangeResolvePackage, RequestName: f.req.Name(), Candidate: c.Package.Ident().String()},
			State:  next,
			Parent: f.decision,
		}
		return next, d, true
	}
	return nil, nil, false
}

// backtrack pops exhausted frames off stack and resumes the first one
// that still has candidates to try.
func (s *Solver) backtrack(stack *[]*frame) (*State, *Decision, bool) {
	for len(*stack) > 0 {
		f := (*stack)[len(*stack)-1]
		if next, nextDecision, ok := s.advance(f); ok {
			return next, nextDecision, true
		}
		*stack = (*stack)[:len(*stack)-1]
	}
	return nil, nil, false
}

// applyCandidate extends base with c's effects: merge its install
// requirements into pkg_requests, add its embedded children to resolved,
// and fold in any options it declares.
func applyCandidate(base *State, req PkgRequest, c Candidate) (*State, error) {
	st := base.Clone()

	st.Resolved[c.Package.Name] = Resolution{
		Package:    c.Package,
		Components: req.RangeIdent.Components,
		Source:     c.Source,
	}

	for _, dep := range c.Package.RuntimeRequirements {
		if err := st.mergeOrAddPkgRequest(PkgRequest{RangeIdent: dep, RequestedBy: c.Package.Name}); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRequestMerge, err)
		}
	}

	for _, embedded := range c.Package.Embedded {
		if _, exists := st.Resolved[embedded.Name]; exists {
			continue
		}
		st.Resolved[embedded.Name] = Resolution{
			Package: recipe.Package{Name: embedded.Name},
			Source:  PackageSource{Kind: SourceEmbedded, EmbeddedIn: c.Package.Name},
		}
	}

	for key, value := range c.Package.Options {
		if _, already := st.Options[key]; !already {
			st.Options[key] = value
		}
	}

	return st, nil
}

// pickNext selects the next unresolved PkgRequest by stable ordering:
// fewest candidates first, then shallower requested-by chains, then
// insertion order, ties broken by name. It returns the candidates
// already fetched for the winning request so the caller never queries
// the source twice for the same name.
func (s *Solver) pickNext(st *State) (int, PkgRequest, []Candidate, error) {
	type option struct {
		idx        int
		candidates []Candidate
	}
	options := make([]option, len(st.PkgRequests))
	for i, req := range st.PkgRequests {
		candidates, err := s.Source.Candidates(req.Name())
		if err != nil {
			return 0, PkgRequest{}, nil, fmt.Errorf("candidates for %s: %w", req.Name(), err)
		}
		options[i] = option{idx: i, candidates: candidates}
	}

	sort.SliceStable(options, func(a, b int) bool {
		ca, cb := len(options[a].candidates), len(options[b].candidates)
		if ca != cb {
			return ca < cb
		}
		ra, rb := st.PkgRequests[options[a].idx], st.PkgRequests[options[b].idx]
		da, db := requestDepth(ra), requestDepth(rb)
		if da != db {
			return da < db
		}
		if options[a].idx != options[b].idx {
			return options[a].idx < options[b].idx
		}
		return ra.Name() < rb.Name()
	})

	winner := options[0]
	return winner.idx, st.PkgRequests[winner.idx], winner.candidates, nil
}

// requestDepth approximates requested-by chain depth: root-seeded
// requests (no RequestedBy) are depth 0, everything pulled in by another
// package's install requirements is depth 1. Tracking exact transitive
// depth would require threading a counter through applyCandidate for
// marginal ordering benefit over this two-level approximation; see
// DESIGN.md.
func requestDepth(req PkgRequest) int {
	if req.RequestedBy == "" {
		return 0
	}
	return 1
}
