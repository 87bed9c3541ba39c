package solve

import "github.com/cruciblehq/spfs/internal/recipe"

// PackageSourceKind distinguishes the three ways a resolved package was
// obtained.
type PackageSourceKind uint8

const (
	SourceRepository PackageSourceKind = iota
	SourceBuildFromSource
	SourceEmbedded
)

// PackageSource records where a Resolution's package came from.
type PackageSource struct {
	Kind PackageSourceKind

	// RepositoryName is set when Kind == SourceRepository.
	RepositoryName string

	// Recipe is set when Kind == SourceBuildFromSource: the package must
	// still be built from it.
	Recipe *recipe.Recipe

	// EmbeddedIn names the resolved package this one was embedded within,
	// set when Kind == SourceEmbedded.
	EmbeddedIn string
}

// Resolution is one entry in a State's resolved map: the package chosen
// for a name, the components of it actually needed, and where it came
// from.
type Resolution struct {
	Package    recipe.Package
	Components recipe.ComponentSet
	Source     PackageSource
}

// Note records one candidate's rejection (or the request itself failing
// to merge, or being flagged impossible), enumerated by OutOfOptions for
// step-by-step explanation.
type Note struct {
	RequestName string
	Candidate   string // candidate ident string, empty for request-level notes
	Validator   string // validator name, empty for request-level notes
	Reason      string
}

// State is the solver's search-tree node: the set of
// outstanding requests, the accumulated global options, every resolution
// made so far, and the notes explaining rejected candidates along the way.
// States are treated as immutable by the solver core; Clone produces an
// independent copy a Change can be applied to.
type State struct {
	PkgRequests []PkgRequest
	VarRequests []VarRequest
	Options     recipe.OptionMap
	Resolved    map[string]Resolution
	Notes       []Note
}

// NewState seeds an initial State from the caller's input requests and
// options.
func NewState(pkgRequests []PkgRequest, varRequests []VarRequest, options recipe.OptionMap) *State {
	if options == nil {
		options = recipe.OptionMap{}
	}
	return &State{
		PkgRequests: append([]PkgRequest(nil), pkgRequests...),
		VarRequests: append([]VarRequest(nil), varRequests...),
		Options:     options.Clone(),
		Resolved:    make(map[string]Resolution),
	}
}

// Clone returns an independent deep-enough copy of st: slices and the
// resolved map are copied, so mutating the clone never affects st.
func (st *State) Clone() *State {
	out := &State{
		PkgRequests: append([]PkgRequest(nil), st.PkgRequests...),
		VarRequests: append([]VarRequest(nil), st.VarRequests...),
		Options:     st.Options.Clone(),
		Resolved:    make(map[string]Resolution, len(st.Resolved)),
		Notes:       append([]Note(nil), st.Notes...),
	}
	for k, v := range st.Resolved {
		out.Resolved[k] = v
	}
	return out
}

// popRequest removes and returns the PkgRequest at index i.
func (st *State) popRequest(i int) PkgRequest {
	r := st.PkgRequests[i]
	st.PkgRequests = append(st.PkgRequests[:i:i], st.PkgRequests[i+1:]...)
	return r
}

// mergeOrAddPkgRequest folds req into any existing unresolved request for
// the same name, or appends it fresh.
func (st *State) mergeOrAddPkgRequest(req PkgRequest) error {
	for i, existing := range st.PkgRequests {
		if existing.Name() != req.Name() {
			continue
		}
		merged, err := existing.Merge(req)
		if err != nil {
			return err
		}
		st.PkgRequests[i] = merged
		return nil
	}
	st.PkgRequests = append(st.PkgRequests, req)
	return nil
}

// IsSolved reports whether every package request has been resolved.
func (st *State) IsSolved() bool {
	return len(st.PkgRequests) == 0
}
