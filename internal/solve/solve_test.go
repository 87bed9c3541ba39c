package solve

import (
	"testing"

	"github.com/cruciblehq/spfs/internal/recipe"
)

// fakeSource is an in-memory CandidateSource for exercising the solver
// without touching a real repository.
type fakeSource struct {
	byName map[string][]Candidate
}

func newFakeSource() *fakeSource {
	return &fakeSource{byName: make(map[string][]Candidate)}
}

func (f *fakeSource) add(pkg recipe.Package) {
	f.byName[pkg.Name] = append(f.byName[pkg.Name], Candidate{
		Package: pkg,
		Source:  PackageSource{Kind: SourceRepository, RepositoryName: "test"},
	})
}

func (f *fakeSource) Candidates(name string) ([]Candidate, error) {
	return f.byName[name], nil
}

func mustVersion(t *testing.T, s string) recipe.Version {
	t.Helper()
	v, err := recipe.ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}

func mustRangeIdent(t *testing.T, s string) recipe.RangeIdent {
	t.Helper()
	ident, err := recipe.ParseRangeIdent(s)
	if err != nil {
		t.Fatalf("ParseRangeIdent(%q): %v", s, err)
	}
	return ident
}

func TestSolveSinglePackage(t *testing.T) {
	src := newFakeSource()
	src.add(recipe.Package{Name: "libfoo", Version: mustVersion(t, "1.2.0")})

	st := NewState([]PkgRequest{{RangeIdent: mustRangeIdent(t, "libfoo")}}, nil, nil)
	solver := NewSolver(src)

	final, err := solver.Solve(st)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	res, ok := final.Resolved["libfoo"]
	if !ok {
		t.Fatalf("libfoo not resolved")
	}
	if res.Package.Version.Compare(mustVersion(t, "1.2.0")) != 0 {
		t.Fatalf("resolved version = %s, want 1.2.0", res.Package.Version)
	}
}

func TestSolvePicksHighestVersion(t *testing.T) {
	src := newFakeSource()
	src.add(recipe.Package{Name: "libfoo", Version: mustVersion(t, "1.0.0")})
	src.add(recipe.Package{Name: "libfoo", Version: mustVersion(t, "2.0.0")})
	src.add(recipe.Package{Name: "libfoo", Version: mustVersion(t, "1.5.0")})

	st := NewState([]PkgRequest{{RangeIdent: mustRangeIdent(t, "libfoo")}}, nil, nil)
	final, err := NewSolver(src).Solve(st)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if v := final.Resolved["libfoo"].Package.Version; v.Compare(mustVersion(t, "2.0.0")) != 0 {
		t.Fatalf("resolved version = %s, want 2.0.0", v)
	}
}

func TestSolveTransitiveRequirement(t *testing.T) {
	src := newFakeSource()
	src.add(recipe.Package{
		Name:                "app",
		Version:             mustVersion(t, "1.0.0"),
		RuntimeRequirements: []recipe.RangeIdent{mustRangeIdent(t, "libfoo/>=1.0.0")},
	})
	src.add(recipe.Package{Name: "libfoo", Version: mustVersion(t, "1.1.0")})

	st := NewState([]PkgRequest{{RangeIdent: mustRangeIdent(t, "app")}}, nil, nil)
	final, err := NewSolver(src).Solve(st)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if _, ok := final.Resolved["libfoo"]; !ok {
		t.Fatalf("transitive requirement libfoo was not resolved")
	}
}

func TestSolveBacktracksOnIncompatibleTransitive(t *testing.T) {
	src := newFakeSource()
	// The newest "app" build requires a libfoo version that does not
	// exist; the solver must backtrack to the older app build, whose
	// requirement is satisfiable.
	src.add(recipe.Package{
		Name:                "app",
		Version:             mustVersion(t, "2.0.0"),
		RuntimeRequirements: []recipe.RangeIdent{mustRangeIdent(t, "libfoo/>=9.0.0")},
	})
	src.add(recipe.Package{
		Name:                "app",
		Version:             mustVersion(t, "1.0.0"),
		RuntimeRequirements: []recipe.RangeIdent{mustRangeIdent(t, "libfoo/>=1.0.0")},
	})
	src.add(recipe.Package{Name: "libfoo", Version: mustVersion(t, "1.0.0")})

	st := NewState([]PkgRequest{{RangeIdent: mustRangeIdent(t, "app")}}, nil, nil)
	final, err := NewSolver(src).Solve(st)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if v := final.Resolved["app"].Package.Version; v.Compare(mustVersion(t, "1.0.0")) != 0 {
		t.Fatalf("resolved app version = %s, want 1.0.0 after backtrack", v)
	}
}

func TestSolveOutOfOptions(t *testing.T) {
	src := newFakeSource()
	// No candidates at all for "missing".
	st := NewState([]PkgRequest{{RangeIdent: mustRangeIdent(t, "missing")}}, nil, nil)

	_, err := NewSolver(src).Solve(st)
	if err == nil {
		t.Fatalf("Solve: expected OutOfOptions, got nil")
	}
	ooo, ok := err.(*OutOfOptions)
	if !ok {
		t.Fatalf("err = %T, want *OutOfOptions", err)
	}
	if ooo.Request.Name() != "missing" {
		t.Fatalf("OutOfOptions.Request.Name() = %q, want missing", ooo.Request.Name())
	}
}

func TestSolveRejectsMissingComponent(t *testing.T) {
	src := newFakeSource()
	src.add(recipe.Package{Name: "libfoo", Version: mustVersion(t, "1.0.0")})

	req := PkgRequest{RangeIdent: mustRangeIdent(t, "libfoo")}
	req.RangeIdent.Components = recipe.NewComponentSet("dev")

	st := NewState([]PkgRequest{req}, nil, nil)
	_, err := NewSolver(src).Solve(st)
	if err == nil {
		t.Fatalf("Solve: expected failure for missing dev component")
	}
	ooo, ok := err.(*OutOfOptions)
	if !ok {
		t.Fatalf("err = %T, want *OutOfOptions", err)
	}
	found := false
	for _, n := range ooo.Notes {
		if n.Validator == "Components" {
			found = true
		}
	}
	if !found {
		t.Fatalf("notes did not mention the Components validator: %+v", ooo.Notes)
	}
}

func TestSolveBinaryOnlyRejectsSourceBuild(t *testing.T) {
	src := newFakeSource()
	src.byName["libfoo"] = []Candidate{{
		Package: recipe.Package{Name: "libfoo", Version: mustVersion(t, "1.0.0")},
		Source:  PackageSource{Kind: SourceBuildFromSource, Recipe: &recipe.Recipe{Name: "libfoo"}},
	}}

	st := NewState([]PkgRequest{{RangeIdent: mustRangeIdent(t, "libfoo")}}, nil, nil)
	solver := NewSolver(src)
	solver.BinaryOnly = true

	_, err := solver.Solve(st)
	if err == nil {
		t.Fatalf("Solve: expected binary-only rejection")
	}
}

func TestSolveDeprecatedRequiresExactBuild(t *testing.T) {
	src := newFakeSource()
	src.add(recipe.Package{
		Name:       "libfoo",
		Version:    mustVersion(t, "1.0.0"),
		Deprecated: true,
	})

	st := NewState([]PkgRequest{{RangeIdent: mustRangeIdent(t, "libfoo")}}, nil, nil)
	_, err := NewSolver(src).Solve(st)
	if err == nil {
		t.Fatalf("Solve: expected deprecated package to be rejected without an exact build pin")
	}
}
