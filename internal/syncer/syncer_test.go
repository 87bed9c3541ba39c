package syncer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
	"github.com/cruciblehq/spfs/internal/refs"
	"github.com/cruciblehq/spfs/internal/repo"
)

func newTestRepo(t *testing.T) *repo.FS {
	t.Helper()
	fs, err := repo.NewFS(t.TempDir(), encoding.SchemeV2)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestSyncCopiesTreeAndPayload(t *testing.T) {
	src := newTestRepo(t)
	dst := newTestRepo(t)

	payload := "file contents"
	pd, _, err := src.WritePayload(strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	blob := &objects.Blob{PayloadDigest: pd, Size: uint64(len(payload))}
	blobDigest, err := src.WriteObject(src.Scheme(), blob)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := objects.NewTree([]objects.Entry{{Object: blobDigest, Kind: objects.EntryKindBlob, Name: "hello.txt", Size: uint64(len(payload))}})
	if err != nil {
		t.Fatal(err)
	}
	treeDigest, err := src.WriteObject(src.Scheme(), tree)
	if err != nil {
		t.Fatal(err)
	}

	spec := refs.EnvSpec{Items: []refs.EnvSpecItem{{Kind: refs.EnvSpecItemDigest, Digest: treeDigest}}}

	s := New(src, dst, Options{})
	summary, err := s.Sync(context.Background(), spec)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if summary.Copied != 3 {
		t.Fatalf("Copied = %d, want 3 (tree, blob, payload)", summary.Copied)
	}

	if !dst.HasObject(treeDigest) || !dst.HasObject(blobDigest) {
		t.Fatalf("destination missing objects")
	}
	if !dst.HasPayload(pd) {
		t.Fatalf("destination missing payload")
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	src := newTestRepo(t)
	dst := newTestRepo(t)

	blob := &objects.Blob{PayloadDigest: encoding.EmptyDigest}
	d, err := src.WriteObject(src.Scheme(), blob)
	if err != nil {
		t.Fatal(err)
	}

	spec := refs.EnvSpec{Items: []refs.EnvSpecItem{{Kind: refs.EnvSpecItemDigest, Digest: d}}}
	s := New(src, dst, Options{})

	if _, err := s.Sync(context.Background(), spec); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	summary, err := s.Sync(context.Background(), spec)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if summary.Copied != 0 || summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want all skipped on second sync", summary)
	}
}

func TestSyncTagStreamCopiesHistory(t *testing.T) {
	src := newTestRepo(t)
	dst := newTestRepo(t)

	spec := refs.TagSpec{Org: "acme", Name: "widgets"}
	blobDigest, err := src.WriteObject(src.Scheme(), &objects.Blob{PayloadDigest: encoding.EmptyDigest})
	if err != nil {
		t.Fatal(err)
	}
	pd2, _, err := src.WritePayload(strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	blobDigest2, err := src.WriteObject(src.Scheme(), &objects.Blob{PayloadDigest: pd2, Size: 1})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := refs.PushTag(src, spec, blobDigest, "alice"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, err := refs.PushTag(src, spec, blobDigest2, "bob"); err != nil {
		t.Fatal(err)
	}

	envSpec := refs.EnvSpec{Items: []refs.EnvSpecItem{{Kind: refs.EnvSpecItemTagSpec, Tag: spec}}}
	s := New(src, dst, Options{})
	if _, err := s.Sync(context.Background(), envSpec); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	stream, err := dst.ListStream(spec.StreamPath())
	if err != nil {
		t.Fatal(err)
	}
	if len(stream) != 2 {
		t.Fatalf("len(stream) = %d, want 2", len(stream))
	}
}

func TestSyncFailsOnMissingRoot(t *testing.T) {
	src := newTestRepo(t)
	dst := newTestRepo(t)

	missing := encoding.Hash([]byte("does-not-exist"))
	spec := refs.EnvSpec{Items: []refs.EnvSpecItem{{Kind: refs.EnvSpecItemDigest, Digest: missing}}}

	s := New(src, dst, Options{})
	if _, err := s.Sync(context.Background(), spec); err == nil {
		t.Fatalf("expected closure computation to fail for a missing root")
	}
}
