package recipe

import "testing"

func TestBuildFromRecipeDerivesBuildId(t *testing.T) {
	r := Recipe{
		Name:    "mypkg",
		Version: mustVersion(t, "1.0.0"),
		Options: []BuildOption{{Kind: BuildOptionVar, Var: VarOpt{Name: "debug", Default: "off"}}},
		Install: []RangeIdent{{Name: "depA", Versions: mustFilter(t, ">=1.0.0")}},
		Components: []Component{
			{Name: "run", Embedded: []AnyIdent{{Name: "depB"}}},
		},
	}

	opts := r.VariantOptions(0, OptionMap{})
	pkg := BuildFromRecipe(r, opts)

	if pkg.Build.Kind != BuildDigest {
		t.Fatalf("expected BuildDigest kind, got %v", pkg.Build.Kind)
	}
	if len(pkg.Build.BuildId) != buildIDLength {
		t.Fatalf("BuildId length = %d, want %d", len(pkg.Build.BuildId), buildIDLength)
	}
	if pkg.Ident().String() != "mypkg/1.0.0/"+pkg.Build.BuildId {
		t.Fatalf("Ident() = %q", pkg.Ident().String())
	}
	if !pkg.ProvidesComponent("run") {
		t.Fatalf("expected package to provide component 'run'")
	}
	if len(pkg.Embedded) != 1 || pkg.Embedded[0].Name != "depB" {
		t.Fatalf("Embedded = %+v", pkg.Embedded)
	}
}

func TestBuildFromRecipeSameOptionsSameBuildId(t *testing.T) {
	r := Recipe{Name: "mypkg", Version: mustVersion(t, "1.0.0")}
	a := BuildFromRecipe(r, NewOptionMap("arch=x64"))
	b := BuildFromRecipe(r, NewOptionMap("arch=x64"))
	if a.Build.BuildId != b.Build.BuildId {
		t.Fatalf("expected identical options to produce identical build ids")
	}
}

func TestPackageComponentSet(t *testing.T) {
	pkg := Package{Components: []Component{{Name: "run"}, {Name: "dev"}}}
	set := pkg.ComponentSet()
	if !set.Contains("run") || !set.Contains("dev") {
		t.Fatalf("ComponentSet() = %+v", set)
	}
}
