// Package index is the repository-backed package directory the Package
// command family (publish, install, env, explain, ls, search, deprecate)
// reads and writes. It adapts internal/solve.CandidateSource to a
// Repository the same way internal/syncer adapts objects.Resolver: a
// thin seam over tag streams and blob storage, with no state of its own.
//
// Recipes are published as tag streams at "recipes/<name>/<version>",
// each holding a single head tag pointing at the digest of the recipe's
// YAML-encoded blob. Deprecation is tracked the same way, as the mere
// presence of any record at "deprecated/<name>/<version>/<build>" — a
// stream with zero entries means "not deprecated".
package index

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
	"github.com/cruciblehq/spfs/internal/recipe"
	"github.com/cruciblehq/spfs/internal/refs"
	"github.com/cruciblehq/spfs/internal/repo"
	"github.com/cruciblehq/spfs/internal/solve"
)

const (
	recipePrefix     = "recipes"
	deprecatedPrefix = "deprecated"
)

// Index implements solve.CandidateSource against a Repository.
type Index struct {
	Repo repo.Repository
}

// New builds an Index over repository r.
func New(r repo.Repository) *Index {
	return &Index{Repo: r}
}

func recipeStreamPath(name, version string) string {
	return path.Join(recipePrefix, name, version)
}

func deprecatedStreamPath(name, version, build string) string {
	return path.Join(deprecatedPrefix, name, version, build)
}

// readBlob resolves digest to a Blob object and returns its payload bytes.
func readBlob(r repo.Repository, digest encoding.Digest) ([]byte, error) {
	obj, err := r.Object(digest)
	if err != nil {
		return nil, err
	}
	blob, ok := obj.(*objects.Blob)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a blob", repo.ErrUnknownObject, digest)
	}
	rc, _, err := r.OpenPayload(blob.PayloadDigest)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Publish commits r's YAML encoding as a blob and tags it onto its
// recipe stream, making it visible to Candidates, Ls, and Search.
func (i *Index) Publish(r recipe.Recipe, user string) (refs.Tag, error) {
	data, err := r.MarshalYAML()
	if err != nil {
		return refs.Tag{}, fmt.Errorf("marshal recipe %s: %w", r.Ident(), err)
	}
	digest, err := repo.CommitBlob(i.Repo, bytes.NewReader(data))
	if err != nil {
		return refs.Tag{}, fmt.Errorf("commit recipe %s: %w", r.Ident(), err)
	}
	spec := refs.TagSpec{Name: recipeStreamPath(r.Name, r.Version.String())}
	return refs.PushTag(i.Repo, spec, digest, user)
}

// Recipe loads the published recipe at name/version.
func (i *Index) Recipe(name, version string) (recipe.Recipe, error) {
	spec := refs.TagSpec{Name: recipeStreamPath(name, version)}
	tag, err := refs.ResolveTag(i.Repo, spec)
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("resolve published recipe %s/%s: %w", name, version, err)
	}
	data, err := readBlob(i.Repo, tag.Target)
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("read published recipe %s/%s: %w", name, version, err)
	}
	return recipe.ParseRecipeYAML(data)
}

// Names lists every package name with at least one published recipe.
func (i *Index) Names() ([]string, error) {
	listing, err := i.Repo.ListPaths(recipePrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(listing))
	for _, l := range listing {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Versions lists every published version of name.
func (i *Index) Versions(name string) ([]string, error) {
	listing, err := i.Repo.ListPaths(path.Join(recipePrefix, name))
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(listing))
	for _, l := range listing {
		versions = append(versions, l.Name)
	}
	sort.Strings(versions)
	return versions, nil
}

// IsDeprecated reports whether the given build of name/version has been
// marked deprecated.
func (i *Index) IsDeprecated(name, version, build string) (bool, error) {
	stream, err := i.Repo.ListStream(deprecatedStreamPath(name, version, build))
	if err != nil {
		return false, err
	}
	return len(stream) > 0, nil
}

// Deprecate marks a specific build deprecated.
func (i *Index) Deprecate(name, version, build string) error {
	_, err := i.Repo.PushTag(deprecatedStreamPath(name, version, build), []byte("deprecated"))
	return err
}

// Undeprecate clears a build's deprecated mark.
func (i *Index) Undeprecate(name, version, build string) error {
	return i.Repo.RemoveStream(deprecatedStreamPath(name, version, build))
}

// Candidates implements solve.CandidateSource: every published version of
// name, expanded into one build-from-source candidate per declared
// variant. No persisted binary-build mechanism
// exists, so every candidate's Source.Kind is SourceBuildFromSource;
// the solver and the `install`/`env` commands surface what *would* be
// built, not a pre-built artifact.
func (i *Index) Candidates(name string) ([]solve.Candidate, error) {
	versions, err := i.Versions(name)
	if err != nil {
		return nil, err
	}

	var out []solve.Candidate
	for _, version := range versions {
		r, err := i.Recipe(name, version)
		if err != nil {
			return nil, err
		}

		for vi := 0; vi < r.NumVariants(); vi++ {
			opts := r.VariantOptions(vi, recipe.OptionMap{})
			pkg := recipe.BuildFromRecipe(r, opts)

			deprecated, err := i.IsDeprecated(name, version, pkg.Build.BuildId)
			if err != nil {
				return nil, err
			}
			pkg.Deprecated = deprecated

			rc := r
			out = append(out, solve.Candidate{
				Package: pkg,
				Source: solve.PackageSource{
					Kind:   solve.SourceBuildFromSource,
					Recipe: &rc,
				},
				Recipe: &rc,
			})
		}
	}
	return out, nil
}
