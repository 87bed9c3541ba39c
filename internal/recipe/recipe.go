package recipe

// BuildOptionKind distinguishes the two kinds of build option a Recipe
// can declare: Pkg(PkgOpt) or Var(VarOpt).
type BuildOptionKind uint8

const (
	BuildOptionPkg BuildOptionKind = iota
	BuildOptionVar
)

// BuildOption is a single declared build option. Exactly one of Pkg/Var is
// meaningful, selected by Kind; this mirrors the Entry/EntryKind pairing in
// internal/objects rather than a Go-native sum type, since the YAML form
// (build.options: [{pkg: ...}, {var: name/default}]) is itself kind-tagged
// by which key is present.
type BuildOption struct {
	Kind BuildOptionKind
	Pkg  PkgOpt
	Var  VarOpt
}

// PkgOpt declares that a build depends on another package, whose resolved
// version becomes part of this recipe's option map under the package's own
// name.
type PkgOpt struct {
	Name    string
	Default string // version filter string, "*" if unconstrained
}

// VarOpt declares an arbitrary named build variable with a default value
// and, optionally, a closed set of allowed choices.
type VarOpt struct {
	Name    string
	Default string
	Choices []string
}

// Component declares one named, independently-installable slice of a
// package's output.
type Component struct {
	Name         string
	Uses         []string // other component names this one pulls in
	Files        []string // glob patterns selecting this component's files
	Requirements []RangeIdent
	Embedded     []AnyIdent
}

// AnyIdent names an embedded package by name only, with no version or
// build constraint.
type AnyIdent struct {
	Name string
}

// SourceSpec describes where a recipe's source material comes from. Kind
// distinguishes the source variants; only the field matching Kind is
// meaningful.
type SourceSpecKind uint8

const (
	SourceSpecLocal SourceSpecKind = iota
	SourceSpecGit
	SourceSpecTar
	SourceSpecScript
)

type SourceSpec struct {
	Kind   SourceSpecKind
	Path   string   // Local
	Git    string   // Git: repository URL
	Ref    string   // Git: branch/tag/commit
	Tar    string   // Tar: URL or local path
	Script []string // Script: shell commands run to populate the source tree
}

// TestSpec describes a single post-build test invocation.
type TestSpec struct {
	Name         string
	Stage        string // "sources", "build", or "install"
	Script       []string
	Requirements []RangeIdent
}

// Recipe is the immutable source of truth for building a package. One recipe can produce many Packages, one per resolved
// option set (variant).
type Recipe struct {
	Name    string
	Version Version

	Options      []BuildOption
	Variants     []OptionMap // each a full or partial option override set
	BuildScript  []string
	Sources      []SourceSpec
	Tests        []TestSpec
	Install      []RangeIdent
	Components   []Component

	// Compat declares this recipe's compatibility guarantee string,
	// consulted by a Request's RequiredCompat field.
	Compat string

	Meta Meta
}

// Meta carries the free-form descriptive fields of a recipe that never affect solving or building.
type Meta struct {
	Description string
	Homepage    string
	License     string
	Labels      map[string]string
}

// Ident returns the recipe's name/version identifier.
func (r Recipe) Ident() Ident {
	v := r.Version
	return Ident{Name: r.Name, Version: &v}
}

// Defaults collects the declared default value for every build option,
// keyed by option name, forming the base OptionMap passed to
// ResolveForPackage before any variant or global override is applied.
func (r Recipe) Defaults() OptionMap {
	defaults := make(OptionMap, len(r.Options))
	for _, opt := range r.Options {
		switch opt.Kind {
		case BuildOptionPkg:
			defaults[opt.Pkg.Name] = opt.Pkg.Default
		case BuildOptionVar:
			defaults[opt.Var.Name] = opt.Var.Default
		}
	}
	return defaults
}

// VariantOptions returns the resolved option map for the i'th variant: the
// recipe's declared defaults overlaid by that variant's overrides, then
// resolved against the given global options. A recipe with no declared variants has exactly one implicit
// variant equal to its bare defaults.
func (r Recipe) VariantOptions(i int, global OptionMap) OptionMap {
	base := r.Defaults()
	if i >= 0 && i < len(r.Variants) {
		for k, v := range r.Variants[i] {
			base[k] = v
		}
	}
	return ResolveForPackage(r.Name, base, global)
}

// NumVariants returns the number of variants this recipe declares, treating
// zero declared variants as a single implicit variant (the `num-variants`
// CLI command's value).
func (r Recipe) NumVariants() int {
	if len(r.Variants) == 0 {
		return 1
	}
	return len(r.Variants)
}
