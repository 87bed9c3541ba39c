package objects

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/cruciblehq/spfs/internal/encoding"
)

func TestDecodeDispatchesByHeader(t *testing.T) {
	b := &Blob{PayloadDigest: mustDigest("p"), Size: 1}
	var buf bytes.Buffer
	b.Encode(&buf, encoding.SchemeV2)

	obj, err := Decode(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if obj.Kind() != encoding.KindBlob {
		t.Fatalf("expected blob kind, got %v", obj.Kind())
	}
}

// fakeObjectStore is an in-memory Resolver for WalkIntegrity tests.
type fakeObjectStore struct {
	objs map[encoding.Digest]Object
}

func (s *fakeObjectStore) Object(d encoding.Digest) (Object, error) {
	o, ok := s.objs[d]
	if !ok {
		return nil, ErrUnknownObject
	}
	return o, nil
}

func TestWalkIntegritySucceedsWhenAllReferencedObjectsExist(t *testing.T) {
	blobDigest := mustDigest("blob")
	blob := &Blob{PayloadDigest: mustDigest("payload"), Size: 1}

	tree, _ := NewTree([]Entry{{Name: "f", Kind: EntryKindBlob, Object: blobDigest}})
	treeDigest := mustDigest("tree")

	store := &fakeObjectStore{objs: map[encoding.Digest]Object{
		treeDigest: tree,
		blobDigest: blob,
	}}

	if err := WalkIntegrity(store, treeDigest); err != nil {
		t.Fatalf("WalkIntegrity: %v", err)
	}
}

func TestWalkIntegrityFailsOnMissingChild(t *testing.T) {
	missing := mustDigest("missing")
	tree, _ := NewTree([]Entry{{Name: "f", Kind: EntryKindBlob, Object: missing}})
	treeDigest := mustDigest("tree")

	store := &fakeObjectStore{objs: map[encoding.Digest]Object{treeDigest: tree}}

	err := WalkIntegrity(store, treeDigest)
	if !errors.Is(err, ErrUnknownObject) {
		t.Fatalf("expected ErrUnknownObject, got %v", err)
	}
}
