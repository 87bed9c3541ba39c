package recipe

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// The on-disk YAML schema.
// These yamlXxx types are the literal document shape; ParseRecipeYAML and
// Recipe.MarshalYAML convert between them and the in-memory Recipe,
// keeping the wire document shape separate from the domain types.

type yamlRecipe struct {
	API     string            `yaml:"api"`
	Pkg     string            `yaml:"pkg"`
	Meta    *yamlMeta         `yaml:"meta,omitempty"`
	Compat  string            `yaml:"compat,omitempty"`
	Build   *yamlBuild        `yaml:"build,omitempty"`
	Sources []yamlSourceSpec  `yaml:"sources,omitempty"`
	Tests   []yamlTestSpec    `yaml:"tests,omitempty"`
	Install *yamlInstall      `yaml:"install,omitempty"`
}

type yamlMeta struct {
	Description string            `yaml:"description,omitempty"`
	Homepage    string            `yaml:"homepage,omitempty"`
	License     string            `yaml:"license,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
}

type yamlBuild struct {
	Options    []yamlBuildOption `yaml:"options,omitempty"`
	Variants   []map[string]string `yaml:"variants,omitempty"`
	Script     []string          `yaml:"script,omitempty"`
	Components []yamlComponent   `yaml:"components,omitempty"`
}

// yamlBuildOption holds exactly one of Pkg/Var, mirroring the YAML
// "{pkg: ...}" vs "{var: name/default}" discriminated shape.
type yamlBuildOption struct {
	Pkg string `yaml:"pkg,omitempty"`
	Var string `yaml:"var,omitempty"`
}

type yamlComponent struct {
	Name         string   `yaml:"name"`
	Uses         []string `yaml:"uses,omitempty"`
	Files        []string `yaml:"files,omitempty"`
	Requirements []string `yaml:"requirements,omitempty"`
	Embedded     []string `yaml:"embedded,omitempty"`
}

type yamlSourceSpec struct {
	Path   string   `yaml:"path,omitempty"`
	Git    string   `yaml:"git,omitempty"`
	Ref    string   `yaml:"ref,omitempty"`
	Tar    string   `yaml:"tar,omitempty"`
	Script []string `yaml:"script,omitempty"`
}

type yamlTestSpec struct {
	Name         string   `yaml:"name"`
	Stage        string   `yaml:"stage"`
	Script       []string `yaml:"script,omitempty"`
	Requirements []string `yaml:"requirements,omitempty"`
}

type yamlInstall struct {
	Requirements []string `yaml:"requirements,omitempty"`
}

// ParseRecipeYAML decodes a recipe document from its YAML form.
func ParseRecipeYAML(data []byte) (Recipe, error) {
	var doc yamlRecipe
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Recipe{}, fmt.Errorf("%w: %w", ErrInvalidRecipeYAML, err)
	}
	return recipeFromYAML(doc)
}

func recipeFromYAML(doc yamlRecipe) (Recipe, error) {
	ident, err := ParseIdent(doc.Pkg)
	if err != nil {
		return Recipe{}, fmt.Errorf("%w: pkg: %w", ErrInvalidRecipeYAML, err)
	}
	if ident.Version == nil {
		return Recipe{}, fmt.Errorf("%w: pkg %q: recipe requires an exact version", ErrInvalidRecipeYAML, doc.Pkg)
	}

	r := Recipe{Name: ident.Name, Version: *ident.Version, Compat: doc.Compat}

	if doc.Meta != nil {
		r.Meta = Meta{
			Description: doc.Meta.Description,
			Homepage:    doc.Meta.Homepage,
			License:     doc.Meta.License,
			Labels:      doc.Meta.Labels,
		}
	}

	if doc.Build != nil {
		r.BuildScript = doc.Build.Script

		for _, o := range doc.Build.Options {
			opt, err := buildOptionFromYAML(o)
			if err != nil {
				return Recipe{}, err
			}
			r.Options = append(r.Options, opt)
		}

		for _, v := range doc.Build.Variants {
			r.Variants = append(r.Variants, OptionMap(v))
		}

		for _, c := range doc.Build.Components {
			component, err := componentFromYAML(c)
			if err != nil {
				return Recipe{}, err
			}
			r.Components = append(r.Components, component)
		}
	}

	for _, s := range doc.Sources {
		r.Sources = append(r.Sources, sourceSpecFromYAML(s))
	}

	for _, ts := range doc.Tests {
		reqs, err := parseRangeIdents(ts.Requirements)
		if err != nil {
			return Recipe{}, fmt.Errorf("%w: tests[%s]: %w", ErrInvalidRecipeYAML, ts.Name, err)
		}
		r.Tests = append(r.Tests, TestSpec{Name: ts.Name, Stage: ts.Stage, Script: ts.Script, Requirements: reqs})
	}

	if doc.Install != nil {
		reqs, err := parseRangeIdents(doc.Install.Requirements)
		if err != nil {
			return Recipe{}, fmt.Errorf("%w: install: %w", ErrInvalidRecipeYAML, err)
		}
		r.Install = reqs
	}

	return r, nil
}

func buildOptionFromYAML(o yamlBuildOption) (BuildOption, error) {
	switch {
	case o.Pkg != "":
		name, def := splitNameDefault(o.Pkg)
		return BuildOption{Kind: BuildOptionPkg, Pkg: PkgOpt{Name: name, Default: def}}, nil
	case o.Var != "":
		name, def := splitNameDefault(o.Var)
		return BuildOption{Kind: BuildOptionVar, Var: VarOpt{Name: name, Default: def}}, nil
	default:
		return BuildOption{}, fmt.Errorf("%w: build option must set pkg or var", ErrInvalidRecipeYAML)
	}
}

// splitNameDefault parses "name/default", the form used by both PkgOpt and
// VarOpt in the YAML schema.
func splitNameDefault(s string) (name, def string) {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, "*"
}

func componentFromYAML(c yamlComponent) (Component, error) {
	reqs, err := parseRangeIdents(c.Requirements)
	if err != nil {
		return Component{}, fmt.Errorf("%w: components[%s]: %w", ErrInvalidRecipeYAML, c.Name, err)
	}
	embedded := make([]AnyIdent, len(c.Embedded))
	for i, name := range c.Embedded {
		embedded[i] = AnyIdent{Name: name}
	}
	return Component{
		Name:         c.Name,
		Uses:         c.Uses,
		Files:        c.Files,
		Requirements: reqs,
		Embedded:     embedded,
	}, nil
}

func sourceSpecFromYAML(s yamlSourceSpec) SourceSpec {
	switch {
	case s.Git != "":
		return SourceSpec{Kind: SourceSpecGit, Git: s.Git, Ref: s.Ref}
	case s.Tar != "":
		return SourceSpec{Kind: SourceSpecTar, Tar: s.Tar}
	case len(s.Script) > 0:
		return SourceSpec{Kind: SourceSpecScript, Script: s.Script}
	default:
		return SourceSpec{Kind: SourceSpecLocal, Path: s.Path}
	}
}

// parseRangeIdents parses a list of "name[/filter]" strings
// into RangeIdents. A bare name with no
// filter requests any version with no specific component.
func parseRangeIdents(reqs []string) ([]RangeIdent, error) {
	out := make([]RangeIdent, 0, len(reqs))
	for _, s := range reqs {
		ri, err := ParseRangeIdent(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ri)
	}
	return out, nil
}

// ParseRangeIdent parses "name[/filter]" into a RangeIdent with no
// component constraint. Component-qualified requests are expressed
// separately by the solver's request layer, which attaches components
// explicitly rather than through this string grammar.
func ParseRangeIdent(s string) (RangeIdent, error) {
	name, filterStr := s, "*"
	if i := strings.IndexByte(s, '/'); i >= 0 {
		name, filterStr = s[:i], s[i+1:]
	}
	if name == "" {
		return RangeIdent{}, fmt.Errorf("%w: %q: empty package name", ErrInvalidRangeIdent, s)
	}
	filter, err := ParseVersionFilter(filterStr)
	if err != nil {
		return RangeIdent{}, fmt.Errorf("%w: %q: %w", ErrInvalidRangeIdent, s, err)
	}
	return RangeIdent{Name: name, Versions: filter}, nil
}

// MarshalYAML encodes r back into its YAML document form.
func (r Recipe) MarshalYAML() ([]byte, error) {
	doc := yamlRecipe{
		API:    "v1",
		Pkg:    r.Ident().String(),
		Compat: r.Compat,
	}

	if r.Meta.Description != "" || r.Meta.Homepage != "" || r.Meta.License != "" || len(r.Meta.Labels) > 0 {
		doc.Meta = &yamlMeta{
			Description: r.Meta.Description,
			Homepage:    r.Meta.Homepage,
			License:     r.Meta.License,
			Labels:      r.Meta.Labels,
		}
	}

	if len(r.Options) > 0 || len(r.Variants) > 0 || len(r.BuildScript) > 0 || len(r.Components) > 0 {
		build := &yamlBuild{Script: r.BuildScript}
		for _, opt := range r.Options {
			switch opt.Kind {
			case BuildOptionPkg:
				build.Options = append(build.Options, yamlBuildOption{Pkg: opt.Pkg.Name + "/" + opt.Pkg.Default})
			case BuildOptionVar:
				build.Options = append(build.Options, yamlBuildOption{Var: opt.Var.Name + "/" + opt.Var.Default})
			}
		}
		for _, v := range r.Variants {
			build.Variants = append(build.Variants, map[string]string(v))
		}
		for _, c := range r.Components {
			build.Components = append(build.Components, componentToYAML(c))
		}
		doc.Build = build
	}

	for _, s := range r.Sources {
		doc.Sources = append(doc.Sources, sourceSpecToYAML(s))
	}

	for _, ts := range r.Tests {
		doc.Tests = append(doc.Tests, yamlTestSpec{
			Name: ts.Name, Stage: ts.Stage, Script: ts.Script,
			Requirements: rangeIdentsToYAML(ts.Requirements),
		})
	}

	if len(r.Install) > 0 {
		doc.Install = &yamlInstall{Requirements: rangeIdentsToYAML(r.Install)}
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecipeYAML, err)
	}
	return out, nil
}

func componentToYAML(c Component) yamlComponent {
	embedded := make([]string, len(c.Embedded))
	for i, e := range c.Embedded {
		embedded[i] = e.Name
	}
	return yamlComponent{
		Name:         c.Name,
		Uses:         c.Uses,
		Files:        c.Files,
		Requirements: rangeIdentsToYAML(c.Requirements),
		Embedded:     embedded,
	}
}

func sourceSpecToYAML(s SourceSpec) yamlSourceSpec {
	switch s.Kind {
	case SourceSpecGit:
		return yamlSourceSpec{Git: s.Git, Ref: s.Ref}
	case SourceSpecTar:
		return yamlSourceSpec{Tar: s.Tar}
	case SourceSpecScript:
		return yamlSourceSpec{Script: s.Script}
	default:
		return yamlSourceSpec{Path: s.Path}
	}
}

func rangeIdentsToYAML(reqs []RangeIdent) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		if r.Versions.String() == "*" {
			out[i] = r.Name
			continue
		}
		out[i] = r.Name + "/" + r.Versions.String()
	}
	return out
}
