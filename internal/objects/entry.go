package objects

import (
	"bufio"
	"fmt"
	"io"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// EntryKind distinguishes what an Entry's referenced object is. It is a
// narrower enumeration than [encoding.ObjectKind]: a Tree entry can only
// ever point at a tree, a blob, or a mask.
type EntryKind uint8

const (
	EntryKindTree EntryKind = iota
	EntryKindBlob
	EntryKindMask
)

func (k EntryKind) String() string {
	switch k {
	case EntryKindTree:
		return "tree"
	case EntryKindBlob:
		return "blob"
	case EntryKindMask:
		return "mask"
	default:
		return "unknown"
	}
}

// Entry is a single named member of a [Tree].
type Entry struct {
	Object encoding.Digest
	Kind   EntryKind
	Mode   uint32
	Size   uint64
	Name   string
}

// Less orders entries by (kind ascending, then name ascending), the order
// a Tree must be encoded in.
func (e Entry) Less(o Entry) bool {
	if e.Kind != o.Kind {
		return e.Kind < o.Kind
	}
	return e.Name < o.Name
}

func (e Entry) encode(w io.Writer) error {
	if err := encoding.WriteDigest(w, e.Object); err != nil {
		return err
	}
	if err := encoding.WriteUint(w, uint64(e.Kind)); err != nil {
		return err
	}
	if err := encoding.WriteUint(w, uint64(e.Mode)); err != nil {
		return err
	}
	if err := encoding.WriteUint(w, e.Size); err != nil {
		return err
	}
	return encoding.WriteString(w, e.Name)
}

func decodeEntry(r *bufio.Reader) (Entry, error) {
	obj, err := encoding.ReadDigest(r)
	if err != nil {
		return Entry{}, fmt.Errorf("entry object digest: %w", err)
	}
	kindRaw, err := encoding.ReadUint(r)
	if err != nil {
		return Entry{}, fmt.Errorf("entry kind: %w", err)
	}
	mode, err := encoding.ReadUint(r)
	if err != nil {
		return Entry{}, fmt.Errorf("entry mode: %w", err)
	}
	size, err := encoding.ReadUint(r)
	if err != nil {
		return Entry{}, fmt.Errorf("entry size: %w", err)
	}
	name, err := encoding.ReadString(r)
	if err != nil {
		return Entry{}, fmt.Errorf("entry name: %w", err)
	}
	return Entry{
		Object: obj,
		Kind:   EntryKind(kindRaw),
		Mode:   uint32(mode),
		Size:   size,
		Name:   name,
	}, nil
}

// IsMask reports whether this entry marks its name as deleted in an
// overlay view.
func (e Entry) IsMask() bool {
	return e.Kind == EntryKindMask
}
