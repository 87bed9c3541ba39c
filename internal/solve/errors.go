package solve

import "errors"

var (
	// ErrRequestMerge is returned when two PkgRequests for the same name
	// cannot be merged.
	ErrRequestMerge = errors.New("incompatible request merge")

	// ErrImpossibleRequest is the sentinel for a request that has no legal
	// solution in the configured repository set. The solver keeps no
	// impossibility cache and does not return it.
	ErrImpossibleRequest = errors.New("request has no possible solution")
)

// OutOfOptions is the solver's terminal failure:
// every candidate for a resolvable request was exhausted. Notes enumerates
// each candidate considered for Request and the validator that rejected it,
// in the order they were tried, so a caller can render a step-by-step
// explanation without re-running the search.
type OutOfOptions struct {
	Request PkgRequest
	Notes   []Note
}

func (e *OutOfOptions) Error() string {
	return "out of options for " + e.Request.RangeIdent.Name
}
