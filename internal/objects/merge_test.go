package objects

import (
	"testing"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// fakeTreeStore is an in-memory TreeResolver used by tests: trees are keyed
// by a digest derived from their content at insertion time.
type fakeTreeStore struct {
	trees map[encoding.Digest]*Tree
}

func newFakeTreeStore() *fakeTreeStore {
	return &fakeTreeStore{trees: map[encoding.Digest]*Tree{}}
}

func (s *fakeTreeStore) put(label string, t *Tree) encoding.Digest {
	d := mustDigest(label)
	s.trees[d] = t
	return d
}

func (s *fakeTreeStore) Tree(d encoding.Digest) (*Tree, error) {
	t, ok := s.trees[d]
	if !ok {
		return nil, ErrUnknownObject
	}
	return t, nil
}

func TestMergeStackUpperFileReplacesLower(t *testing.T) {
	store := newFakeTreeStore()

	lower, _ := NewTree([]Entry{
		{Name: "a.txt", Kind: EntryKindBlob, Object: mustDigest("a-v1")},
	})
	upper, _ := NewTree([]Entry{
		{Name: "a.txt", Kind: EntryKindBlob, Object: mustDigest("a-v2")},
	})

	flat, err := MergeStack(store, []*Tree{lower, upper})
	if err != nil {
		t.Fatalf("MergeStack: %v", err)
	}
	entry, ok := flat["/a.txt"]
	if !ok {
		t.Fatal("expected /a.txt in merged view")
	}
	if entry.Object != mustDigest("a-v2") {
		t.Fatalf("expected upper version to win, got %v", entry.Object)
	}
}

func TestMergeStackMaskHidesLowerEntry(t *testing.T) {
	store := newFakeTreeStore()

	lower, _ := NewTree([]Entry{
		{Name: "a.txt", Kind: EntryKindBlob, Object: mustDigest("a")},
	})
	upper, _ := NewTree([]Entry{
		{Name: "a.txt", Kind: EntryKindMask, Object: encoding.NullDigest},
	})

	flat, err := MergeStack(store, []*Tree{lower, upper})
	if err != nil {
		t.Fatalf("MergeStack: %v", err)
	}
	if _, ok := flat["/a.txt"]; ok {
		t.Fatal("masked path should not appear in merged view")
	}
}

func TestMergeStackDirectoriesUnionAcrossLayers(t *testing.T) {
	store := newFakeTreeStore()

	lowerSubDigest := store.put("lower-sub", mustEntries(t, Entry{Name: "one.txt", Kind: EntryKindBlob, Object: mustDigest("one")}))
	upperSubDigest := store.put("upper-sub", mustEntries(t, Entry{Name: "two.txt", Kind: EntryKindBlob, Object: mustDigest("two")}))

	lower, _ := NewTree([]Entry{
		{Name: "subdir", Kind: EntryKindTree, Object: lowerSubDigest},
	})
	upper, _ := NewTree([]Entry{
		{Name: "subdir", Kind: EntryKindTree, Object: upperSubDigest},
	})

	flat, err := MergeStack(store, []*Tree{lower, upper})
	if err != nil {
		t.Fatalf("MergeStack: %v", err)
	}
	if _, ok := flat["/subdir/one.txt"]; !ok {
		t.Fatal("expected lower-layer file to survive directory union")
	}
	if _, ok := flat["/subdir/two.txt"]; !ok {
		t.Fatal("expected upper-layer file to be present after directory union")
	}
}

func mustEntries(t *testing.T, entries ...Entry) *Tree {
	t.Helper()
	tree, err := NewTree(entries)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	return tree
}
