package solve

import "github.com/cruciblehq/spfs/internal/recipe"

// PrereleasePolicy controls whether a PkgRequest's candidate search admits
// prerelease versions.
type PrereleasePolicy uint8

const (
	// ExcludePrereleases is the default: only release versions satisfy
	// the request.
	ExcludePrereleases PrereleasePolicy = iota
	// IncludePrereleases admits prerelease versions alongside releases.
	IncludePrereleases
)

// InclusionPolicy labels whether a PkgRequest must be satisfied for the
// solve to succeed. Merge keeps the more restrictive of two policies; the
// solver itself does not consult it, so every request is either resolved
// or fails the solve, whatever its policy.
type InclusionPolicy uint8

const (
	// IncludeRequired means an unsatisfiable request fails the solve.
	IncludeRequired InclusionPolicy = iota
	// IncludeIfAlreadyPresent labels a request that only constrains a
	// package some other request pulls in. The solver resolves it like an
	// IncludeRequired request; it is not dropped when nothing else needs
	// the package.
	IncludeIfAlreadyPresent
)

// PkgRequest asks the solver to resolve a specific package name within a
// version/component range.
type PkgRequest struct {
	RangeIdent recipe.RangeIdent

	Prerelease PrereleasePolicy
	Inclusion  InclusionPolicy

	// RequiredCompat, when non-empty, requires the resolved package's
	// Recipe.Compat declaration to be non-empty.
	RequiredCompat string

	// RequestedBy names the package whose install requirements produced
	// this request, empty for a request seeded directly into the initial
	// State. Used both for rendering ("requested by X") and for the
	// solver's "requested-by depth" ordering heuristic.
	RequestedBy string

	// Build, when non-empty, pins this request to one exact BuildId,
	// exempting the candidate from the Deprecation validator's default
	// rejection.
	Build string
}

func (r PkgRequest) Name() string { return r.RangeIdent.Name }

// Merge combines two requests for the same package name: VersionFilters
// intersect and requested components union via RangeIdent.Merge; the more
// restrictive Inclusion/Prerelease policy wins, and RequiredCompat/Build
// pins from either side are carried forward (a request adding a pin must
// not silently lose it during a merge).
func (r PkgRequest) Merge(o PkgRequest) (PkgRequest, error) {
	merged, err := r.RangeIdent.Merge(o.RangeIdent)
	if err != nil {
		return PkgRequest{}, err
	}

	out := PkgRequest{
		RangeIdent:     merged,
		Prerelease:     r.Prerelease,
		Inclusion:      r.Inclusion,
		RequiredCompat: r.RequiredCompat,
		RequestedBy:    r.RequestedBy,
		Build:          r.Build,
	}
	if o.Prerelease == ExcludePrereleases {
		out.Prerelease = ExcludePrereleases
	}
	if o.Inclusion == IncludeRequired {
		out.Inclusion = IncludeRequired
	}
	if out.RequiredCompat == "" {
		out.RequiredCompat = o.RequiredCompat
	}
	if out.Build == "" {
		out.Build = o.Build
	}
	return out, nil
}

// VarRequest pins or loosely suggests a value for a named build/runtime
// variable.
type VarRequest struct {
	Var string

	// Pinned is the required value when Any is false; ignored when Any
	// is true.
	Pinned string
	Any    bool
}

// Satisfies reports whether value is acceptable for this request.
func (r VarRequest) Satisfies(value string) bool {
	if r.Any {
		return true
	}
	return r.Pinned == value
}
