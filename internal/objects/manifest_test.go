package objects

import (
	"testing"

	"github.com/cruciblehq/spfs/internal/encoding"
)

func TestManifestDigestEqualsRootTreeDigest(t *testing.T) {
	tree, _ := NewTree([]Entry{{Name: "a", Kind: EntryKindBlob, Object: mustDigest("a")}})
	m := NewManifest(tree)

	if m.Digest(encoding.SchemeV1) != tree.Digest(encoding.SchemeV1) {
		t.Fatal("manifest digest must equal its root tree's digest under v1")
	}
	if m.Digest(encoding.SchemeV2) != tree.Digest(encoding.SchemeV2) {
		t.Fatal("manifest digest must equal its root tree's digest under v2")
	}
}

func TestManifestBuildIndexWalksSubtrees(t *testing.T) {
	store := newFakeTreeStore()
	subDigest := store.put("sub", mustEntries(t, Entry{Name: "inner.txt", Kind: EntryKindBlob, Object: mustDigest("inner")}))

	root, _ := NewTree([]Entry{
		{Name: "top.txt", Kind: EntryKindBlob, Object: mustDigest("top")},
		{Name: "dir", Kind: EntryKindTree, Object: subDigest},
	})
	m := NewManifest(root)

	if err := m.BuildIndex(store); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	if _, ok := m.Lookup("/top.txt"); !ok {
		t.Fatal("expected /top.txt in index")
	}
	if _, ok := m.Lookup("/dir/inner.txt"); !ok {
		t.Fatal("expected /dir/inner.txt in index")
	}
}
