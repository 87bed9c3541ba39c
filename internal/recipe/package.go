package recipe

// BuildKind distinguishes the three ways a package's build component of
// its ident can be filled in: Source, Embedded(embedded_source), or
// Digest(BuildId).
type BuildKind uint8

const (
	BuildSource BuildKind = iota
	BuildEmbedded
	BuildDigest
)

// Build identifies which concrete artifact a Package's ident refers to.
type Build struct {
	Kind BuildKind

	// EmbeddedSource names the package this build is embedded within,
	// meaningful only when Kind == BuildEmbedded.
	EmbeddedSource string

	// BuildId is the 8 base32-character option-map digest, meaningful
	// only when Kind == BuildDigest.
	BuildId string
}

func (b Build) String() string {
	switch b.Kind {
	case BuildSource:
		return "src"
	case BuildEmbedded:
		return "embedded(" + b.EmbeddedSource + ")"
	case BuildDigest:
		return b.BuildId
	default:
		return "unknown"
	}
}

// RuntimeVarRequirement declares that a package's runtime behavior
// depends on a named variable holding (or not holding) a specific
// value. Recipe YAML does not currently surface a var-typed install
// requirement (see DESIGN.md), so this is always empty on packages
// built via BuildFromRecipe; it exists so the solver's
// VarRequirementsValidator has a concrete field to check once that YAML
// surface is added.
type RuntimeVarRequirement struct {
	Var    string
	Pinned string
	Any    bool
}

// Satisfies reports whether value is acceptable for this requirement.
func (r RuntimeVarRequirement) Satisfies(value string) bool {
	if r.Any {
		return true
	}
	return r.Pinned == value
}

// Package is a specific built artifact produced from a Recipe at a
// specific option resolution: the recipe's static
// data plus the concrete build identity, any embedded children, the
// compiled component list, and the runtime requirements resolved for this
// particular build.
type Package struct {
	Name    string
	Version Version
	Build   Build

	Options    OptionMap
	Components []Component
	Embedded   []AnyIdent

	// RuntimeRequirements is the install-time request list, copied as-is
	// from the recipe's declared Install requirements.
	RuntimeRequirements []RangeIdent

	// RuntimeVarRequirements is the install-time var requirement list;
	// see RuntimeVarRequirement's doc comment for why it is presently
	// always empty.
	RuntimeVarRequirements []RuntimeVarRequirement

	// Compat carries the recipe's compatibility guarantee string through
	// to the built package, so a solver Request's RequiredCompat can be
	// checked against it without holding onto the originating Recipe.
	Compat string

	// Deprecated marks a published build as deprecated (set by the
	// `deprecate`/`undeprecate` commands against repository metadata,
	// never by BuildFromRecipe); consulted by the solver's Deprecation
	// validator.
	Deprecated bool

	Meta Meta
}

// Ident returns the package's fully-qualified build identifier.
func (p Package) Ident() Ident {
	v := p.Version
	return Ident{Name: p.Name, Version: &v, Build: p.Build.String()}
}

// BuildFromRecipe constructs the Package that results from building recipe
// under the given resolved option map: BuildId is derived from the option
// map's canonical digest, runtime requirements are the
// recipe's install requirements as-is (request merging against other
// packages happens later, in the solver), and components/embedded children
// are carried through from the recipe unchanged.
func BuildFromRecipe(r Recipe, options OptionMap) Package {
	return Package{
		Name:                r.Name,
		Version:             r.Version,
		Build:               Build{Kind: BuildDigest, BuildId: options.BuildId()},
		Options:             options,
		Components:          r.Components,
		Embedded:            collectEmbedded(r.Components),
		RuntimeRequirements: r.Install,
		Compat:              r.Compat,
		Meta:                r.Meta,
	}
}

func collectEmbedded(components []Component) []AnyIdent {
	var out []AnyIdent
	seen := make(map[string]bool)
	for _, c := range components {
		for _, e := range c.Embedded {
			if seen[e.Name] {
				continue
			}
			seen[e.Name] = true
			out = append(out, e)
		}
	}
	return out
}

// ProvidesComponent reports whether p declares a component with the given
// name.
func (p Package) ProvidesComponent(name string) bool {
	for _, c := range p.Components {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ComponentSet returns the set of every component name p provides.
func (p Package) ComponentSet() ComponentSet {
	names := make([]string, len(p.Components))
	for i, c := range p.Components {
		names[i] = c.Name
	}
	return NewComponentSet(names...)
}
