package objects

import (
	"bufio"
	"io"
	"path"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// Manifest is the root Tree of a layer's file content, together with an
// optional flattened index for fast path lookup. A Manifest's
// wire representation is identical to its root Tree's: the invariant
// `manifest.digest() == root_tree.digest()` holds because a
// Manifest is never separately framed — Encode/Decode simply delegate to
// the root Tree, and the index is a derived, unserialized convenience.
type Manifest struct {
	Root *Tree

	// index maps a full POSIX path to the Entry at that path. Built lazily
	// by BuildIndex; nil until then.
	index map[string]Entry
}

// NewManifest wraps a root Tree as a Manifest.
func NewManifest(root *Tree) *Manifest {
	return &Manifest{Root: root}
}

func (m *Manifest) Kind() encoding.ObjectKind { return encoding.KindTree }

// Digest returns the root tree's digest; see the type doc for why a
// Manifest never has a digest distinct from its root Tree.
func (m *Manifest) Digest(scheme encoding.Scheme) encoding.Digest {
	return m.Root.Digest(scheme)
}

func (m *Manifest) Encode(w io.Writer, scheme encoding.Scheme) error {
	return m.Root.Encode(w, scheme)
}

// DecodeManifest reads a framed root Tree and wraps it as a Manifest.
func DecodeManifest(r *bufio.Reader) (*Manifest, error) {
	root, err := DecodeTree(r)
	if err != nil {
		return nil, err
	}
	return &Manifest{Root: root}, nil
}

// TreeResolver looks up a Tree object by digest, used to walk into
// subdirectories while building a flattened path index.
type TreeResolver interface {
	Tree(d encoding.Digest) (*Tree, error)
}

// BuildIndex performs a recursive walk of the manifest, resolving
// directory entries via resolver, and populates a path -> Entry index.
// Masks and blobs terminate recursion; only tree entries are descended
// into.
func (m *Manifest) BuildIndex(resolver TreeResolver) error {
	index := make(map[string]Entry)
	if err := walkIndex(resolver, "/", m.Root, index); err != nil {
		return err
	}
	m.index = index
	return nil
}

func walkIndex(resolver TreeResolver, prefix string, t *Tree, index map[string]Entry) error {
	for _, e := range t.Entries {
		p := path.Join(prefix, e.Name)
		index[p] = e
		if e.Kind != EntryKindTree {
			continue
		}
		sub, err := resolver.Tree(e.Object)
		if err != nil {
			return err
		}
		if err := walkIndex(resolver, p, sub, index); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the entry at the given absolute path, if the index has
// been built and the path exists within it.
func (m *Manifest) Lookup(p string) (Entry, bool) {
	if m.index == nil {
		return Entry{}, false
	}
	e, ok := m.index[path.Clean(p)]
	return e, ok
}

// ChildObjects returns the digests this manifest directly references.
func (m *Manifest) ChildObjects() []encoding.Digest {
	return m.Root.ChildObjects()
}
