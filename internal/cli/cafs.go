package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
	"github.com/cruciblehq/spfs/internal/paths"
	"github.com/cruciblehq/spfs/internal/protocol"
	"github.com/cruciblehq/spfs/internal/refs"
	"github.com/cruciblehq/spfs/internal/repo"
)

// InitCmd is "spfs init".
type InitCmd struct{}

func (c *InitCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	fmt.Println(r.Root())
	return nil
}

// CommitCmd is "spfs commit", committing either a plain directory (the
// common case) or a live runtime's upper into a Layer or Platform.
type CommitCmd struct {
	Path    string `arg:"" optional:"" help:"Directory to commit. Omit when --runtime is set."`
	Runtime string `help:"Commit the named runtime's upper instead of a plain directory."`
	Platform bool  `help:"Commit the runtime's full stack as a Platform instead of a single Layer."`
}

func (c *CommitCmd) Run(ctx context.Context) error {
	if c.Runtime != "" {
		var resp protocol.RuntimeCommitResult
		req := protocol.RuntimeCommitRequest{Name: c.Runtime, Platform: c.Platform}
		if err := call(protocol.CmdRuntimeCommit, req, &resp); err != nil {
			return err
		}
		fmt.Println(resp.Digest)
		return nil
	}

	if c.Path == "" {
		return fmt.Errorf("commit: a directory path or --runtime is required")
	}
	r, err := openRepo()
	if err != nil {
		return err
	}
	digest, err := repo.CommitDir(r, c.Path)
	if err != nil {
		return err
	}
	fmt.Println(digest)
	return nil
}

// DiffCmd is "spfs diff", comparing two manifests path by path.
type DiffCmd struct {
	A        string `arg:"" help:"First ref."`
	B        string `arg:"" help:"Second ref."`
	Unchanged bool  `help:"Also print unchanged paths."`
}

func (c *DiffCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}

	treeA, err := resolveTree(r, c.A)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", c.A, err)
	}
	treeB, err := resolveTree(r, c.B)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", c.B, err)
	}

	manifestA := objects.NewManifest(treeA)
	manifestB := objects.NewManifest(treeB)
	if err := manifestA.BuildIndex(r); err != nil {
		return err
	}
	if err := manifestB.BuildIndex(r); err != nil {
		return err
	}

	entries := objects.Diff(manifestA, manifestB, c.Unchanged)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	for _, d := range entries {
		fmt.Printf("%s %s\n", diffSymbol(d.Kind), d.Path)
	}
	return nil
}

func diffSymbol(k objects.DiffKind) string {
	switch k {
	case objects.DiffAdded:
		return "+"
	case objects.DiffRemoved:
		return "-"
	case objects.DiffChanged:
		return "~"
	default:
		return "="
	}
}

// LsCmd is "spfs ls", listing entries under a path in a committed tree,
// merged Platform stack, or live layer.
type LsCmd struct {
	Ref  string `arg:"" help:"Ref to list (digest, tag spec, or live-layer path)."`
	Path string `arg:"" optional:"" default:"/" help:"Path within the resolved tree."`
}

func (c *LsCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	resolved, err := refs.ResolveRef(r, c.Ref)
	if err != nil {
		return err
	}
	if resolved.Kind == refs.RefLiveLayer {
		return lsLiveLayer(resolved.Path, c.Path)
	}

	entries, err := lsEntries(r, resolved.Digest, c.Path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\n", e.Kind, e.Name)
	}
	return nil
}

// lsEntries resolves digest to a listable view (a Tree, a Manifest's
// root, or a Platform's merged stack) and walks path within it.
func lsEntries(r repo.Repository, digest encoding.Digest, p string) ([]objects.Entry, error) {
	obj, err := r.Object(digest)
	if err != nil {
		return nil, err
	}

	if platform, ok := obj.(*objects.Platform); ok {
		var roots []*objects.Tree
		for _, layerDigest := range platform.Stack.Layers() {
			layerObj, err := r.Object(layerDigest)
			if err != nil {
				return nil, err
			}
			layer, ok := layerObj.(*objects.Layer)
			if !ok || layer.Manifest == nil {
				continue
			}
			tree, err := r.Tree(*layer.Manifest)
			if err != nil {
				return nil, err
			}
			roots = append(roots, tree)
		}
		merged, err := objects.MergeStack(r, roots)
		if err != nil {
			return nil, err
		}
		return entriesUnderPrefix(merged, p), nil
	}

	tree, err := r.Tree(digest)
	if err != nil {
		return nil, err
	}
	return walkTreePath(r, tree, p)
}

func entriesUnderPrefix(flat map[string]objects.Entry, prefix string) []objects.Entry {
	prefix = path.Clean("/" + prefix)
	var out []objects.Entry
	for p, e := range flat {
		dir := path.Dir(p)
		if dir == prefix {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func walkTreePath(r repo.Repository, tree *objects.Tree, p string) ([]objects.Entry, error) {
	p = path.Clean("/" + p)
	if p == "/" {
		return append([]objects.Entry(nil), tree.Entries...), nil
	}

	components := strings.Split(strings.TrimPrefix(p, "/"), "/")
	cur := tree
	for _, name := range components {
		entry, ok := cur.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: no such path component %q", repo.ErrUnknownReference, name)
		}
		if entry.Kind != objects.EntryKindTree {
			return nil, fmt.Errorf("%w: %q is not a directory", repo.ErrUnknownReference, name)
		}
		next, err := r.Tree(entry.Object)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return append([]objects.Entry(nil), cur.Entries...), nil
}

func lsLiveLayer(base, p string) error {
	dir := path.Join(base, p)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		kind := "blob"
		if e.IsDir() {
			kind = "tree"
		}
		fmt.Printf("%s\t%s\n", kind, e.Name())
	}
	return nil
}

// resolveTree resolves ref to the Tree it names, unwrapping a Manifest,
// Layer, or Platform's single top layer as needed. DiffCmd only compares
// two trees, so a Platform ref resolves to its topmost layer's manifest.
func resolveTree(r repo.Repository, ref string) (*objects.Tree, error) {
	resolved, err := refs.ResolveRef(r, ref)
	if err != nil {
		return nil, err
	}
	if resolved.Kind == refs.RefLiveLayer {
		return nil, fmt.Errorf("%w: %s is a live layer, not a committed tree", repo.ErrUnknownReference, ref)
	}

	obj, err := r.Object(resolved.Digest)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case *objects.Tree:
		return o, nil
	case *objects.Manifest:
		return o.Root, nil
	case *objects.Layer:
		if o.Manifest == nil {
			return nil, fmt.Errorf("%w: layer %s has no manifest", repo.ErrUnknownReference, resolved.Digest)
		}
		return r.Tree(*o.Manifest)
	case *objects.Platform:
		top, ok := o.Stack.Top()
		if !ok {
			return nil, fmt.Errorf("%w: platform %s has no layers", repo.ErrUnknownReference, resolved.Digest)
		}
		return resolveTree(r, top.String())
	default:
		return nil, fmt.Errorf("%w: %s is not a tree-bearing object", repo.ErrUnknownReference, resolved.Digest)
	}
}

// LsTagsCmd is "spfs ls-tags".
type LsTagsCmd struct {
	Prefix string `arg:"" optional:"" default:"" help:"Path prefix to list under."`
}

func (c *LsTagsCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	listing, err := r.ListPaths(c.Prefix)
	if err != nil {
		return err
	}
	for _, l := range listing {
		kind := "tag"
		if l.IsFolder {
			kind = "folder"
		}
		fmt.Printf("%s\t%s\n", kind, l.Name)
	}
	return nil
}

// ReadCmd is "spfs read", printing a blob's payload to stdout.
type ReadCmd struct {
	Ref string `arg:"" help:"Ref naming a Blob."`
}

func (c *ReadCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	resolved, err := refs.ResolveRef(r, c.Ref)
	if err != nil {
		return err
	}
	obj, err := r.Object(resolved.Digest)
	if err != nil {
		return err
	}
	blob, ok := obj.(*objects.Blob)
	if !ok {
		return fmt.Errorf("%w: %s is not a blob", repo.ErrUnknownReference, c.Ref)
	}
	rc, _, err := r.OpenPayload(blob.PayloadDigest)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(os.Stdout, rc)
	return err
}

// WriteCmd is "spfs write", writing stdin as a new blob.
type WriteCmd struct{}

func (c *WriteCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	digest, err := repo.CommitBlob(r, os.Stdin)
	if err != nil {
		return err
	}
	fmt.Println(digest)
	return nil
}

// CheckCmd is "spfs check", walking the object graph from a root and
// verifying every transitively referenced object actually exists.
type CheckCmd struct {
	Ref string `arg:"" help:"Root ref to walk."`
}

func (c *CheckCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	resolved, err := refs.ResolveRef(r, c.Ref)
	if err != nil {
		return err
	}
	if err := objects.WalkIntegrity(r, resolved.Digest); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

// LayersCmd is "spfs layers".
type LayersCmd struct{}

func (c *LayersCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	return printDigests(r.IterLayers())
}

// PlatformsCmd is "spfs platforms".
type PlatformsCmd struct{}

func (c *PlatformsCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	return printDigests(r.IterPlatforms())
}

func printDigests(it repo.ObjectIterator) error {
	for {
		d, ok := it.Next()
		if !ok {
			break
		}
		fmt.Println(d)
	}
	return it.Err()
}

// ConfigCmd is "spfs config", printing the effective configuration.
type ConfigCmd struct{}

func (c *ConfigCmd) Run(ctx context.Context) error {
	root := RootCmd.Repo
	if root == "" {
		root = paths.DefaultRepo()
	}
	fmt.Printf("repo\t%s\n", root)
	fmt.Printf("socket\t%s\n", socketPath())
	return nil
}

// MigrateCmd is "spfs migrate", re-encoding every object under the
// repository's configured write scheme.
type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}

	var migrated int
	it := r.IterObjects()
	for {
		d, ok := it.Next()
		if !ok {
			break
		}
		obj, err := r.ReadObject(d)
		if err != nil {
			return fmt.Errorf("read %s: %w", d, err)
		}
		if _, err := r.WriteObject(r.Scheme(), obj); err != nil {
			return fmt.Errorf("rewrite %s: %w", d, err)
		}
		migrated++
	}
	if err := it.Err(); err != nil {
		return err
	}
	fmt.Printf("migrated %d objects to scheme %v\n", migrated, r.Scheme())
	return nil
}

// RenderCmd is "spfs render", materializing a resolved environment's
// merged view to a target directory on disk.
type RenderCmd struct {
	Ref    string `arg:"" help:"Ref to render."`
	Target string `arg:"" help:"Destination directory."`
}

func (c *RenderCmd) Run(ctx context.Context) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	resolved, err := refs.ResolveRef(r, c.Ref)
	if err != nil {
		return err
	}

	entries, err := lsEntries(r, resolved.Digest, "/")
	if err != nil {
		return err
	}
	return renderTree(r, entries, c.Target)
}

func renderTree(r repo.Repository, entries []objects.Entry, dir string) error {
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return err
	}
	for _, e := range entries {
		dest := path.Join(dir, e.Name)
		switch e.Kind {
		case objects.EntryKindMask:
			continue
		case objects.EntryKindTree:
			sub, err := r.Tree(e.Object)
			if err != nil {
				return err
			}
			if err := renderTree(r, sub.Entries, dest); err != nil {
				return err
			}
		case objects.EntryKindBlob:
			obj, err := r.Object(e.Object)
			if err != nil {
				return err
			}
			blob, ok := obj.(*objects.Blob)
			if !ok {
				return fmt.Errorf("%w: %s is not a blob", repo.ErrUnknownObject, e.Object)
			}
			if err := renderBlob(r, blob, dest, os.FileMode(e.Mode)); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderBlob(r repo.Repository, blob *objects.Blob, dest string, mode os.FileMode) error {
	rc, _, err := r.OpenPayload(blob.PayloadDigest)
	if err != nil {
		return err
	}
	defer rc.Close()

	if mode == 0 {
		mode = paths.DefaultFileMode
	}
	fh, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer fh.Close()
	_, err = io.Copy(fh, rc)
	return err
}
