package objects

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/cruciblehq/spfs/internal/encoding"
)

func mustDigest(s string) encoding.Digest {
	return encoding.Hash([]byte(s))
}

func TestNewTreeSortsByKindThenName(t *testing.T) {
	entries := []Entry{
		{Name: "zeta", Kind: EntryKindBlob, Object: mustDigest("zeta")},
		{Name: "alpha", Kind: EntryKindTree, Object: mustDigest("alpha")},
		{Name: "beta", Kind: EntryKindBlob, Object: mustDigest("beta")},
	}
	tree, err := NewTree(entries)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	if tree.Entries[0].Name != "alpha" || tree.Entries[0].Kind != EntryKindTree {
		t.Fatalf("expected tree entry alpha first, got %+v", tree.Entries[0])
	}
	if tree.Entries[1].Name != "beta" || tree.Entries[2].Name != "zeta" {
		t.Fatalf("blob entries not sorted by name: %+v", tree.Entries)
	}
}

func TestNewTreeRejectsDuplicateNameAndKind(t *testing.T) {
	entries := []Entry{
		{Name: "dup", Kind: EntryKindBlob, Object: mustDigest("a")},
		{Name: "dup", Kind: EntryKindBlob, Object: mustDigest("b")},
	}
	_, err := NewTree(entries)
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestTreeEncodeDecodeRoundTrip(t *testing.T) {
	tree, err := NewTree([]Entry{
		{Name: "file.txt", Kind: EntryKindBlob, Object: mustDigest("file"), Mode: 0644, Size: 12},
		{Name: "dir", Kind: EntryKindTree, Object: mustDigest("dir"), Mode: 0755},
		{Name: "gone", Kind: EntryKindMask, Object: encoding.NullDigest},
	})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}

	var buf bytes.Buffer
	if err := tree.Encode(&buf, encoding.SchemeV2); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := DecodeTree(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	if len(decoded.Entries) != len(tree.Entries) {
		t.Fatalf("expected %d entries, got %d", len(tree.Entries), len(decoded.Entries))
	}
	for i, e := range tree.Entries {
		if decoded.Entries[i] != e {
			t.Fatalf("entry %d mismatch: got %+v, want %+v", i, decoded.Entries[i], e)
		}
	}
}

func TestTreeDigestDeterministic(t *testing.T) {
	tree, _ := NewTree([]Entry{{Name: "a", Kind: EntryKindBlob, Object: mustDigest("a")}})
	d1 := tree.Digest(encoding.SchemeV2)
	d2 := tree.Digest(encoding.SchemeV2)
	if d1 != d2 {
		t.Fatal("same tree should digest identically")
	}
}

func TestDecodeTreeRejectsOutOfOrderEntries(t *testing.T) {
	var buf bytes.Buffer
	encoding.WriteHeader(&buf, encoding.SchemeV2, encoding.KindTree)
	encoding.WriteUint(&buf, 2)
	// write "zeta" before "alpha" within the same kind — violates ordering
	writeRawEntry(&buf, Entry{Name: "zeta", Kind: EntryKindBlob, Object: mustDigest("z")})
	writeRawEntry(&buf, Entry{Name: "alpha", Kind: EntryKindBlob, Object: mustDigest("a")})

	_, err := DecodeTree(bufio.NewReader(&buf))
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
}

func TestDecodeTreeRejectsDuplicateNames(t *testing.T) {
	var buf bytes.Buffer
	encoding.WriteHeader(&buf, encoding.SchemeV2, encoding.KindTree)
	encoding.WriteUint(&buf, 2)
	writeRawEntry(&buf, Entry{Name: "dup", Kind: EntryKindBlob, Object: mustDigest("a")})
	writeRawEntry(&buf, Entry{Name: "dup", Kind: EntryKindBlob, Object: mustDigest("b")})

	_, err := DecodeTree(bufio.NewReader(&buf))
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
}

func writeRawEntry(buf *bytes.Buffer, e Entry) {
	encoding.WriteDigest(buf, e.Object)
	encoding.WriteUint(buf, uint64(e.Kind))
	encoding.WriteUint(buf, uint64(e.Mode))
	encoding.WriteUint(buf, e.Size)
	encoding.WriteString(buf, e.Name)
}

func TestTreeChildObjects(t *testing.T) {
	a := mustDigest("a")
	b := mustDigest("b")
	tree, _ := NewTree([]Entry{
		{Name: "a", Kind: EntryKindBlob, Object: a},
		{Name: "b", Kind: EntryKindTree, Object: b},
	})
	children := tree.ChildObjects()
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
}
