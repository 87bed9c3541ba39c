package solve

import (
	"github.com/cruciblehq/spfs/internal/recipe"
)

// Validator is one link in the solver's composable validator chain.
// Validate returns (true, "") when the candidate is Compatible, or
// (false, reason) when Incompatible; the first Incompatible result
// aborts the candidate.
type Validator interface {
	Name() string
	Validate(st *State, req PkgRequest, c Candidate) (bool, string)
}

// DefaultValidators returns the validator chain in canonical order.
// binaryOnly mirrors the solver-wide flag consulted by
// BinaryOnlyValidator.
func DefaultValidators(binaryOnly bool) []Validator {
	return []Validator{
		DeprecationValidator{},
		BinaryOnlyValidator{BinaryOnly: binaryOnly},
		PkgRequestValidator{},
		OptionsValidator{},
		VarRequirementsValidator{},
		PkgRequirementsValidator{},
		ComponentsValidator{},
		EmbeddedPackageValidator{},
	}
}

// DeprecationValidator rejects deprecated packages unless the exact build
// was requested.
type DeprecationValidator struct{}

func (DeprecationValidator) Name() string { return "Deprecation" }

func (DeprecationValidator) Validate(_ *State, req PkgRequest, c Candidate) (bool, string) {
	if !c.Package.Deprecated {
		return true, ""
	}
	if req.Build != "" && req.Build == c.Package.Build.BuildId {
		return true, ""
	}
	return false, "package is deprecated"
}

// BinaryOnlyValidator rejects source builds when binary-only mode is set.
type BinaryOnlyValidator struct {
	BinaryOnly bool
}

func (BinaryOnlyValidator) Name() string { return "BinaryOnly" }

func (v BinaryOnlyValidator) Validate(_ *State, _ PkgRequest, c Candidate) (bool, string) {
	if !v.BinaryOnly {
		return true, ""
	}
	if c.Source.Kind == SourceBuildFromSource {
		return false, "source build rejected in binary-only mode"
	}
	return true, ""
}

// PkgRequestValidator rejects packages whose ident does not satisfy the
// merged request for its name: version, prerelease policy, and (in a
// simplified form, see DESIGN.md) required compat. Requested components
// are checked by ComponentsValidator.
type PkgRequestValidator struct{}

func (PkgRequestValidator) Name() string { return "PkgRequest" }

func (PkgRequestValidator) Validate(_ *State, req PkgRequest, c Candidate) (bool, string) {
	pkg := c.Package
	if req.Prerelease == ExcludePrereleases && pkg.Version.IsPrerelease() {
		return false, "prerelease excluded by request"
	}
	if pkg.Name != req.RangeIdent.Name || !req.RangeIdent.Versions.Matches(pkg.Version) {
		return false, "does not satisfy " + req.RangeIdent.Name + " range"
	}
	if req.RequiredCompat != "" && pkg.Compat == "" {
		return false, "package declares no compat guarantee required by request"
	}
	return true, ""
}

// OptionsValidator rejects packages whose declared options conflict with
// the current OptionMap, namespaced options taking precedence over
// globals. A package's build is pinned at the option
// values it was actually built with (Package.Options); if resolving
// those same option names again against the state's current globals
// would now produce a different value, the two are incompatible.
type OptionsValidator struct{}

func (OptionsValidator) Name() string { return "Options" }

func (OptionsValidator) Validate(st *State, _ PkgRequest, c Candidate) (bool, string) {
	resolved := recipe.ResolveForPackage(c.Package.Name, c.Package.Options, st.Options)
	for key, built := range c.Package.Options {
		if want, ok := resolved[key]; ok && want != built {
			return false, "option " + key + "=" + built + " conflicts with requested " + want
		}
	}
	return true, ""
}

// VarRequirementsValidator rejects packages whose runtime var
// requirements conflict with current options; empty option values never
// conflict.
type VarRequirementsValidator struct{}

func (VarRequirementsValidator) Name() string { return "VarRequirements" }

func (VarRequirementsValidator) Validate(st *State, _ PkgRequest, c Candidate) (bool, string) {
	for _, vr := range c.Package.RuntimeVarRequirements {
		current, ok := st.Options[vr.Var]
		if !ok || current == "" {
			continue
		}
		if !vr.Satisfies(current) {
			return false, "var " + vr.Var + " requirement conflicts with " + current
		}
	}
	return true, ""
}

// PkgRequirementsValidator rejects packages whose runtime pkg
// requirements conflict with already-resolved packages.
type PkgRequirementsValidator struct{}

func (PkgRequirementsValidator) Name() string { return "PkgRequirements" }

func (PkgRequirementsValidator) Validate(st *State, _ PkgRequest, c Candidate) (bool, string) {
	for _, dep := range c.Package.RuntimeRequirements {
		res, ok := st.Resolved[dep.Name]
		if !ok {
			continue
		}
		if !dep.Satisfies(res.Package.Name, res.Package.Version, res.Package.ComponentSet()) {
			return false, "requires " + dep.Name + " incompatible with already-resolved " + res.Package.Version.String()
		}
	}
	return true, ""
}

// ComponentsValidator rejects packages missing any requested component.
type ComponentsValidator struct{}

func (ComponentsValidator) Name() string { return "Components" }

func (ComponentsValidator) Validate(_ *State, req PkgRequest, c Candidate) (bool, string) {
	for _, name := range req.RangeIdent.Components.Names() {
		if !c.Package.ProvidesComponent(name) {
			return false, "missing requested component " + name
		}
	}
	return true, ""
}

// EmbeddedPackageValidator verifies, for each of the candidate's embedded
// children, that either no prior resolution of the same name exists, or
// the existing resolution is itself an embedded stub naming the current
// package.
type EmbeddedPackageValidator struct{}

func (EmbeddedPackageValidator) Name() string { return "EmbeddedPackage" }

func (EmbeddedPackageValidator) Validate(st *State, _ PkgRequest, c Candidate) (bool, string) {
	for _, embedded := range c.Package.Embedded {
		existing, ok := st.Resolved[embedded.Name]
		if !ok {
			continue
		}
		if existing.Source.Kind == SourceEmbedded && existing.Source.EmbeddedIn == c.Package.Name {
			continue
		}
		return false, "embedded package " + embedded.Name + " already resolved from elsewhere"
	}
	return true, ""
}
