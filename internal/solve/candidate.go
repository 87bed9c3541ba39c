package solve

import (
	"sort"
	"strings"

	"github.com/cruciblehq/spfs/internal/recipe"
)

// Candidate is one buildable or already-built artifact the solver can try
// for a given request name: the package itself, the source it would come
// from, and (for source builds) the recipe it would be built from.
type Candidate struct {
	Package recipe.Package
	Source  PackageSource

	// Recipe is non-nil when this candidate still requires a build
	// (Source.Kind == SourceBuildFromSource); it is the same pointer as
	// Source.Recipe, kept here too since validators index into it
	// directly (e.g. to read build option declarations ahead of
	// BuildFromRecipe ever running).
	Recipe *recipe.Recipe
}

// CandidateSource obtains candidates for a package name from whatever
// repositories the caller has configured. Decoupling the solver's
// backtracking core from the concrete mechanism of listing tag streams
// and reading recipes/packages out of a Repository mirrors golang-dep's
// gps SourceManager seam, which plays the identical role between its
// solver core and the network/disk source of truth.
type CandidateSource interface {
	Candidates(name string) ([]Candidate, error)
}

// orderCandidates sorts candidates into the order the solver must try
// them in: descending version, then by BuildKey
// within a version, with any PreferredOptions/PromotePatterns nudging
// matching builds to the front.
func orderCandidates(candidates []Candidate, preferred recipe.OptionMap, promote []string) []Candidate {
	out := append([]Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Package, out[j].Package
		if cmp := a.Version.Compare(b.Version); cmp != 0 {
			return cmp > 0
		}

		ap, bp := promotionRank(a, promote), promotionRank(b, promote)
		if ap != bp {
			return ap < bp
		}

		return buildKey(a, preferred) < buildKey(b, preferred)
	})
	return out
}

// promotionRank returns the index of the first promotion pattern (a glob
// prefix matched against the package name) that matches pkg, or
// len(promote) if none do; lower ranks sort first.
func promotionRank(pkg recipe.Package, promote []string) int {
	for i, pattern := range promote {
		if strings.HasPrefix(pkg.Name, pattern) {
			return i
		}
	}
	return len(promote)
}

// buildKey renders a lexicographic composite key of pkg's resolved option
// values against the request's preferred options: for each preferred option name in sorted order, a match
// contributes "0", a mismatch or absence "1", breaking ties by the raw
// BuildId so the order is always total.
func buildKey(pkg recipe.Package, preferred recipe.OptionMap) string {
	var b strings.Builder
	keys := make([]string, 0, len(preferred))
	for k := range preferred {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if pkg.Options[k] == preferred[k] {
			b.WriteByte('0')
		} else {
			b.WriteByte('1')
		}
	}
	b.WriteString(pkg.Build.String())
	return b.String()
}
