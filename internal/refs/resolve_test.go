package refs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
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

func pushTestTag(t *testing.T, store repo.TagStore, spec TagSpec, target encoding.Digest, parent encoding.Digest) Tag {
	t.Helper()
	tag := Tag{
		Org:    spec.Org,
		Name:   spec.Name,
		Target: target,
		Parent: parent,
		User:   "tester",
		Time:   time.Now().UTC(),
	}
	if _, err := store.PushTag(spec.StreamPath(), tag.Encode()); err != nil {
		t.Fatalf("PushTag: %v", err)
	}
	return tag
}

func TestResolveRefFullDigest(t *testing.T) {
	r := newTestRepo(t)
	d := encoding.Hash([]byte("x"))

	resolved, err := ResolveRef(r, d.String())
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if resolved.Kind != RefDigest || resolved.Digest != d {
		t.Fatalf("resolved = %+v, want digest %s", resolved, d)
	}
}

func TestResolveRefPartialDigest(t *testing.T) {
	r := newTestRepo(t)
	blob := &objects.Blob{PayloadDigest: encoding.EmptyDigest}
	d, err := r.WriteObject(r.Scheme(), blob)
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := ResolveRef(r, d.String()[:4])
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if resolved.Kind != RefDigest || resolved.Digest != d {
		t.Fatalf("resolved = %+v, want digest %s", resolved, d)
	}
}

func TestResolveRefTagSpec(t *testing.T) {
	r := newTestRepo(t)
	target := encoding.Hash([]byte("target"))
	spec := TagSpec{Org: "acme", Name: "widgets"}
	pushTestTag(t, r, spec, target, encoding.NullDigest)

	resolved, err := ResolveRef(r, spec.String())
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if resolved.Kind != RefDigest || resolved.Digest != target {
		t.Fatalf("resolved = %+v, want digest %s", resolved, target)
	}
}

func TestResolveRefLiveLayerPath(t *testing.T) {
	r := newTestRepo(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "layer.spfs.yaml")
	if err := os.WriteFile(path, []byte("kind: LiveLayer\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resolved, err := ResolveRef(r, path)
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if resolved.Kind != RefLiveLayer || resolved.Path != path {
		t.Fatalf("resolved = %+v, want live layer at %s", resolved, path)
	}
}

func TestResolveRefUnknown(t *testing.T) {
	r := newTestRepo(t)
	if _, err := ResolveRef(r, "does-not-exist"); !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("err = %v, want ErrUnknownReference", err)
	}
}

func TestResolveTagWalksVersions(t *testing.T) {
	r := newTestRepo(t)
	spec := TagSpec{Org: "acme", Name: "widgets"}

	first := pushTestTag(t, r, spec, encoding.Hash([]byte("v0")), encoding.NullDigest)
	time.Sleep(time.Millisecond)
	pushTestTag(t, r, spec, encoding.Hash([]byte("v1")), first.Digest())

	head, err := ResolveTag(r, spec)
	if err != nil {
		t.Fatalf("ResolveTag: %v", err)
	}
	if head.Target != encoding.Hash([]byte("v1")) {
		t.Fatalf("head target = %s, want v1", head.Target)
	}

	prev, err := ResolveTag(r, TagSpec{Org: "acme", Name: "widgets", Version: 1})
	if err != nil {
		t.Fatalf("ResolveTag version 1: %v", err)
	}
	if prev.Target != encoding.Hash([]byte("v0")) {
		t.Fatalf("version 1 target = %s, want v0", prev.Target)
	}
}

func TestResolveTagUnknownStream(t *testing.T) {
	r := newTestRepo(t)
	spec := TagSpec{Org: "acme", Name: "nope"}
	if _, err := ResolveTag(r, spec); !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("err = %v, want ErrUnknownReference", err)
	}
}

func TestPushTagChainsParent(t *testing.T) {
	r := newTestRepo(t)
	spec := TagSpec{Org: "acme", Name: "widgets"}

	first, err := PushTag(r, spec, encoding.Hash([]byte("v0")), "alice")
	if err != nil {
		t.Fatalf("first PushTag: %v", err)
	}
	if !first.Parent.IsNull() {
		t.Fatalf("first tag parent = %s, want null", first.Parent)
	}

	second, err := PushTag(r, spec, encoding.Hash([]byte("v1")), "bob")
	if err != nil {
		t.Fatalf("second PushTag: %v", err)
	}
	if second.Parent != first.Digest() {
		t.Fatalf("second tag parent = %s, want %s", second.Parent, first.Digest())
	}

	head, err := ResolveTag(r, spec)
	if err != nil {
		t.Fatalf("ResolveTag: %v", err)
	}
	if head.Target != second.Target {
		t.Fatalf("head target = %s, want %s", head.Target, second.Target)
	}
}
