package objects

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// Tree is an ordered collection of named [Entry] records.
// Entries are always held and encoded sorted by (kind, name); Decode
// rejects input that is out of order or contains duplicate names.
type Tree struct {
	Entries []Entry
}

// NewTree builds a Tree from an unordered set of entries, sorting them and
// erroring on a duplicate name. Use this instead of constructing a Tree
// literal directly so the sortedness invariant always holds.
func NewTree(entries []Entry) (*Tree, error) {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	seen := make(map[string]bool, len(sorted))
	for _, e := range sorted {
		if seen[e.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntry, e.Name)
		}
		seen[e.Name] = true
	}
	return &Tree{Entries: sorted}, nil
}

// Get returns the entry with the given name, if present.
func (t *Tree) Get(name string) (Entry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Kind implements Object.
func (t *Tree) Kind() encoding.ObjectKind { return encoding.KindTree }

// Digest computes the content digest of the tree under the given scheme.
func (t *Tree) Digest(scheme encoding.Scheme) encoding.Digest {
	return encoding.DigestBody(scheme, encoding.KindTree, t.body())
}

func (t *Tree) body() []byte {
	var buf bytes.Buffer
	encoding.WriteUint(&buf, uint64(len(t.Entries)))
	for _, e := range t.Entries {
		e.encode(&buf)
	}
	return buf.Bytes()
}

// Encode writes the tree's framed representation under the given scheme:
// header, entry count, then each entry in sorted order.
func (t *Tree) Encode(w io.Writer, scheme encoding.Scheme) error {
	if err := encoding.WriteHeader(w, scheme, encoding.KindTree); err != nil {
		return err
	}
	_, err := w.Write(t.body())
	return err
}

// DecodeTree reads a framed Tree, validating header, ordering, and
// duplicate-name rejection.
func DecodeTree(r *bufio.Reader) (*Tree, error) {
	if _, err := encoding.ConsumeTypedHeader(r, encoding.KindTree); err != nil {
		return nil, err
	}

	count, err := encoding.ReadUint(r)
	if err != nil {
		return nil, fmt.Errorf("entry count: %w", err)
	}

	entries := make([]Entry, 0, count)
	seen := make(map[string]bool)
	for i := uint64(0); i < count; i++ {
		e, err := decodeEntry(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntry, e.Name)
		}
		seen[e.Name] = true
		if i > 0 {
			prev := entries[i-1]
			if e.Less(prev) {
				return nil, fmt.Errorf("%w: %q before %q", ErrOutOfOrder, e.Name, prev.Name)
			}
		}
		entries = append(entries, e)
	}
	return &Tree{Entries: entries}, nil
}

// ChildObjects returns the digests this tree directly references.
func (t *Tree) ChildObjects() []encoding.Digest {
	out := make([]encoding.Digest, 0, len(t.Entries))
	for _, e := range t.Entries {
		out = append(out, e.Object)
	}
	return out
}
