package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cruciblehq/spfs/internal/index"
	"github.com/cruciblehq/spfs/internal/paths"
	"github.com/cruciblehq/spfs/internal/recipe"
	"github.com/cruciblehq/spfs/internal/refs"
	"github.com/cruciblehq/spfs/internal/repo"
	"github.com/cruciblehq/spfs/internal/solve"
)

// errNoBuildEnvironment marks every Package command whose job is to
// actually execute a recipe's build script: building real artifacts
// requires a sandboxed build-script execution environment this module
// does not provide. These commands still parse and validate their
// recipe input rather than being bare stubs.
var errNoBuildEnvironment = errors.New("build-script execution is not available in this environment")

func loadRecipeFile(path string) (recipe.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("read recipe %s: %w", path, err)
	}
	return recipe.ParseRecipeYAML(data)
}

// BuildCmd is "spfs pkg build".
type BuildCmd struct {
	Recipe string `arg:"" help:"Path to a recipe YAML document."`
}

func (c *BuildCmd) Run(ctx context.Context) error {
	r, err := loadRecipeFile(c.Recipe)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d variant(s) declared, build script has %d step(s)\n", r.Ident(), r.NumVariants(), len(r.BuildScript))
	return fmt.Errorf("%w: cannot build %s", errNoBuildEnvironment, r.Ident())
}

// MakeRecipeCmd is "spfs pkg make-recipe", parsing and validating a
// recipe document without building it.
type MakeRecipeCmd struct {
	Recipe string `arg:"" help:"Path to a recipe YAML document."`
}

func (c *MakeRecipeCmd) Run(ctx context.Context) error {
	r, err := loadRecipeFile(c.Recipe)
	if err != nil {
		return err
	}
	fmt.Println(r.Ident())
	return nil
}

// MakeSourceCmd is "spfs pkg make-source".
type MakeSourceCmd struct {
	Recipe string `arg:"" help:"Path to a recipe YAML document."`
}

func (c *MakeSourceCmd) Run(ctx context.Context) error {
	r, err := loadRecipeFile(c.Recipe)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot collect sources for %s", errNoBuildEnvironment, r.Ident())
}

// MakeBinaryCmd is "spfs pkg make-binary".
type MakeBinaryCmd struct {
	Recipe string `arg:"" help:"Path to a recipe YAML document."`
}

func (c *MakeBinaryCmd) Run(ctx context.Context) error {
	r, err := loadRecipeFile(c.Recipe)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot build a binary for %s", errNoBuildEnvironment, r.Ident())
}

// TestCmd is "spfs pkg test".
type TestCmd struct {
	Recipe string `arg:"" help:"Path to a recipe YAML document."`
}

func (c *TestCmd) Run(ctx context.Context) error {
	r, err := loadRecipeFile(c.Recipe)
	if err != nil {
		return err
	}
	if len(r.Tests) == 0 {
		fmt.Printf("%s declares no tests\n", r.Ident())
		return nil
	}
	return fmt.Errorf("%w: cannot run %d test(s) for %s", errNoBuildEnvironment, len(r.Tests), r.Ident())
}

// parseRequests turns a list of "name/filter" strings into merged
// PkgRequests, one per distinct name.
func parseRequests(args []string) ([]solve.PkgRequest, error) {
	byName := make(map[string]solve.PkgRequest)
	var order []string
	for _, arg := range args {
		ri, err := recipe.ParseRangeIdent(arg)
		if err != nil {
			return nil, err
		}
		req := solve.PkgRequest{RangeIdent: ri}
		if existing, ok := byName[ri.Name]; ok {
			merged, err := existing.Merge(req)
			if err != nil {
				return nil, err
			}
			byName[ri.Name] = merged
			continue
		}
		byName[ri.Name] = req
		order = append(order, ri.Name)
	}

	out := make([]solve.PkgRequest, len(order))
	for i, name := range order {
		out[i] = byName[name]
	}
	return out, nil
}

func runSolve(requests []string, binaryOnly bool) (*solve.State, error) {
	r, err := openRepo()
	if err != nil {
		return nil, err
	}
	pkgRequests, err := parseRequests(requests)
	if err != nil {
		return nil, err
	}

	src := index.New(r)
	solver := solve.NewSolver(src)
	solver.BinaryOnly = binaryOnly
	state := solve.NewState(pkgRequests, nil, nil)
	return solver.Solve(state)
}

func printResolved(st *solve.State) {
	names := make([]string, 0, len(st.Resolved))
	for name := range st.Resolved {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res := st.Resolved[name]
		fmt.Printf("%s\t%s\n", res.Package.Ident(), sourceLabel(res.Source))
	}
}

func sourceLabel(src solve.PackageSource) string {
	switch src.Kind {
	case solve.SourceRepository:
		return "repository:" + src.RepositoryName
	case solve.SourceBuildFromSource:
		return "build-from-source"
	case solve.SourceEmbedded:
		return "embedded-in:" + src.EmbeddedIn
	default:
		return "unknown"
	}
}

// InstallCmd is "spfs pkg install", resolving package requests and
// reporting the resulting set (actually materializing the install into a
// runtime happens via `spfs env`/`spfs shell`, since installation is an
// environment mount, not a separate filesystem step).
type InstallCmd struct {
	BinaryOnly bool     `help:"Reject source builds during resolution."`
	Requests   []string `arg:"" help:"Package requests, e.g. my-pkg/1.*."`
}

func (c *InstallCmd) Run(ctx context.Context) error {
	st, err := runSolve(c.Requests, c.BinaryOnly)
	if err != nil {
		return explainSolveError(err)
	}
	printResolved(st)
	return nil
}

// EnvCmd is "spfs pkg env", resolving a set of requests into a solved
// environment and printing it.
type EnvCmd struct {
	BinaryOnly bool     `help:"Reject source builds during resolution."`
	Requests   []string `arg:"" help:"Package requests, e.g. my-pkg/1.*."`
}

func (c *EnvCmd) Run(ctx context.Context) error {
	st, err := runSolve(c.Requests, c.BinaryOnly)
	if err != nil {
		return explainSolveError(err)
	}
	printResolved(st)
	return nil
}

// ExplainCmd is "spfs pkg explain", re-running a solve and printing the
// full step-by-step rejection trail instead of stopping at the first
// failure summary.
type ExplainCmd struct {
	BinaryOnly bool     `help:"Reject source builds during resolution."`
	Requests   []string `arg:"" help:"Package requests, e.g. my-pkg/1.*."`
}

func (c *ExplainCmd) Run(ctx context.Context) error {
	st, err := runSolve(c.Requests, c.BinaryOnly)
	if err == nil {
		fmt.Println("solve succeeded:")
		printResolved(st)
		return nil
	}

	var ooo *solve.OutOfOptions
	if !errors.As(err, &ooo) {
		return err
	}
	fmt.Printf("out of options for %s:\n", ooo.Request.RangeIdent.Name)
	for _, note := range ooo.Notes {
		if note.Candidate == "" {
			fmt.Printf("  %s: %s\n", note.RequestName, note.Reason)
			continue
		}
		fmt.Printf("  %s: rejected by %s: %s\n", note.Candidate, note.Validator, note.Reason)
	}
	return err
}

func explainSolveError(err error) error {
	var ooo *solve.OutOfOptions
	if errors.As(err, &ooo) {
		return fmt.Errorf("%w (see `spfs pkg explain` for details)", err)
	}
	return err
}

// PublishCmd is "spfs pkg publish", tagging a built recipe as published
// in the repository's package index.
type PublishCmd struct {
	Recipe string `arg:"" help:"Path to a recipe YAML document."`
}

func (c *PublishCmd) Run(ctx context.Context) error {
	r, err := loadRecipeFile(c.Recipe)
	if err != nil {
		return err
	}
	repository, err := openRepo()
	if err != nil {
		return err
	}
	idx := index.New(repository)
	tag, err := idx.Publish(r, currentUser())
	if err != nil {
		return err
	}
	fmt.Printf("%s published as %s\n", r.Ident(), tag.Digest())
	return nil
}

// ImportCmd is "spfs pkg import", pulling published recipes and their
// referenced objects from another repository.
type ImportCmd struct {
	Name   string `arg:"" help:"Package name to import."`
	Remote string `arg:"" help:"Path to the source repository."`
}

func (c *ImportCmd) Run(ctx context.Context) error {
	local, err := openRepo()
	if err != nil {
		return err
	}
	remote, err := repo.NewFS(c.Remote, local.Scheme())
	if err != nil {
		return err
	}
	return importExportPackage(ctx, remote, local, c.Name)
}

// ExportCmd is "spfs pkg export", pushing published recipes and their
// referenced objects into another repository.
type ExportCmd struct {
	Name   string `arg:"" help:"Package name to export."`
	Remote string `arg:"" help:"Path to the destination repository."`
}

func (c *ExportCmd) Run(ctx context.Context) error {
	local, err := openRepo()
	if err != nil {
		return err
	}
	remote, err := repo.NewFS(c.Remote, local.Scheme())
	if err != nil {
		return err
	}
	return importExportPackage(ctx, local, remote, c.Name)
}

// importExportPackage syncs every published version of name from source
// to dest by resolving each version's recipe tag into an EnvSpec and
// running it through the same transitive-closure sync used by push/pull.
func importExportPackage(ctx context.Context, source, dest repo.Repository, name string) error {
	idx := index.New(source)
	versions, err := idx.Versions(name)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("%w: no published versions of %s", repo.ErrUnknownReference, name)
	}

	var items []refs.EnvSpecItem
	for _, version := range versions {
		items = append(items, refs.EnvSpecItem{
			Kind: refs.EnvSpecItemTagSpec,
			Tag:  refs.TagSpec{Name: "recipes/" + name + "/" + version},
		})
	}
	spec := refs.EnvSpec{Items: items}
	return runSync(ctx, source, dest, spec.String(), false)
}

// PackageLsCmd is "spfs pkg ls", listing every known package name.
type PackageLsCmd struct{}

func (c *PackageLsCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	names, err := index.New(r).Names()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

// PackageSearchCmd is "spfs pkg search", searching known package names by
// prefix.
type PackageSearchCmd struct {
	Prefix string `arg:"" optional:"" default:"" help:"Package name prefix."`
}

func (c *PackageSearchCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	names, err := index.New(r).Names()
	if err != nil {
		return err
	}
	for _, n := range names {
		if c.Prefix == "" || hasPrefix(n, c.Prefix) {
			fmt.Println(n)
		}
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// DeprecateCmd is "spfs pkg deprecate", marking a specific build
// deprecated.
type DeprecateCmd struct {
	Name    string `arg:"" help:"Package name."`
	Version string `arg:"" help:"Package version."`
	Build   string `arg:"" help:"Build id."`
}

func (c *DeprecateCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	return index.New(r).Deprecate(c.Name, c.Version, c.Build)
}

// UndeprecateCmd is "spfs pkg undeprecate", clearing a build's deprecated
// mark.
type UndeprecateCmd struct {
	Name    string `arg:"" help:"Package name."`
	Version string `arg:"" help:"Package version."`
	Build   string `arg:"" help:"Build id."`
}

func (c *UndeprecateCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	return index.New(r).Undeprecate(c.Name, c.Version, c.Build)
}

// LintCmd is "spfs pkg lint", validating a recipe document without
// building it: an alias of make-recipe's validation with no output
// besides errors, exposed as its own entry point.
type LintCmd struct {
	Recipe string `arg:"" help:"Path to a recipe YAML document."`
}

func (c *LintCmd) Run(ctx context.Context) error {
	_, err := loadRecipeFile(c.Recipe)
	return err
}

// NumVariantsCmd is "spfs pkg num-variants".
type NumVariantsCmd struct {
	Recipe string `arg:"" help:"Path to a recipe YAML document."`
}

func (c *NumVariantsCmd) Run(ctx context.Context) error {
	r, err := loadRecipeFile(c.Recipe)
	if err != nil {
		return err
	}
	fmt.Println(r.NumVariants())
	return nil
}

// NewCmd is "spfs pkg new", scaffolding a fresh recipe document.
type NewCmd struct {
	Name string `arg:"" help:"Package name."`
	Path string `arg:"" optional:"" help:"Output path; defaults to <name>.spfs.yaml."`
}

func (c *NewCmd) Run(ctx context.Context) error {
	path := c.Path
	if path == "" {
		path = c.Name + ".spfs.yaml"
	}

	r := recipe.Recipe{
		Name:        c.Name,
		Version:     recipe.Version{Parts: []uint64{0, 1, 0}},
		BuildScript: []string{"# build commands go here"},
	}
	data, err := r.MarshalYAML()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// RepoUpgradeCmd is "spfs repo upgrade", rewriting a repository's VERSION
// marker to the schema version this build writes.
type RepoUpgradeCmd struct{}

func (c *RepoUpgradeCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	versionPath := filepath.Join(r.Root(), paths.VersionFile)
	if err := os.WriteFile(versionPath, []byte(repo.RepoVersion), 0o644); err != nil {
		return fmt.Errorf("upgrade repository at %s: %w", r.Root(), err)
	}
	fmt.Printf("%s upgraded to version %s\n", r.Root(), repo.RepoVersion)
	return nil
}
