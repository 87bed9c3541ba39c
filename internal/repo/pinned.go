package repo

import (
	"fmt"
	"time"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// Pinned wraps a repository and filters its tag listings to a fixed
// instant in time: tags created after At are invisible,
// and "version 0" shifts to mean "most recent version at or before At".
// Pinned is read-only for tags; mutating tag methods return
// ErrPinnedReadOnly. Object and payload access pass through unchanged,
// since objects carry no creation timestamp to pin against.
type Pinned struct {
	Repository
	At time.Time
}

// NewPinned wraps repo, visible only as of at.
func NewPinned(repo Repository, at time.Time) *Pinned {
	return &Pinned{Repository: repo, At: at}
}

// ListStream returns only the records whose encoded Time is at or before
// the pin instant, still newest-first; a caller resolving "version 0"
// against this filtered list gets the most recent tag as of the pin time.
func (p *Pinned) ListStream(streamPath string) ([]StoredTag, error) {
	all, err := p.Repository.ListStream(streamPath)
	if err != nil {
		return nil, err
	}

	visible := make([]StoredTag, 0, len(all))
	for _, t := range all {
		createdAt, ok := decodeTagTime(t.Data)
		if !ok || !createdAt.After(p.At) {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

// ListPaths delegates unchanged: folder/leaf structure does not depend on
// tag history length, only on which streams exist at all, which a pin
// does not hide entirely.
func (p *Pinned) ListPaths(prefix string) ([]TagListing, error) {
	return p.Repository.ListPaths(prefix)
}

var ErrPinnedReadOnly = fmt.Errorf("pinned repository is read-only for tags")

func (p *Pinned) PushTag(streamPath string, data []byte) (encoding.Digest, error) {
	return encoding.Digest{}, ErrPinnedReadOnly
}

func (p *Pinned) RemoveTag(streamPath string, digest encoding.Digest) error {
	return ErrPinnedReadOnly
}

func (p *Pinned) RemoveStream(streamPath string) error {
	return ErrPinnedReadOnly
}

// decodeTagTime extracts the Time field from a serialized Tag record
// without pulling in internal/refs (which depends on internal/repo, not
// the reverse): it reads the same fixed trailer internal/refs.Tag.Encode
// writes, a big-endian unix-nanosecond timestamp as the record's final 8
// bytes.
func decodeTagTime(data []byte) (time.Time, bool) {
	if len(data) < 8 {
		return time.Time{}, false
	}
	trailer := data[len(data)-8:]
	var nanos int64
	for _, b := range trailer {
		nanos = nanos<<8 | int64(b)
	}
	return time.Unix(0, nanos), true
}
