package refs

import (
	"bufio"
	"bytes"
	"fmt"
	"time"

	"github.com/cruciblehq/spfs/internal/encoding"
)

// Tag is a single entry pushed onto a tag stream: the name
// under which it was pushed, the object it points at, the previous head
// of the stream it was pushed onto (if any), who pushed it, and when.
//
// Tag.Target and Tag.Parent may reference any object kind; spfs itself
// only ever tags Platforms and Layers, but the format does not enforce
// that.
type Tag struct {
	Org    string
	Name   string
	Target encoding.Digest
	Parent encoding.Digest // encoding.NullDigest if this is the first tag on the stream
	User   string
	Time   time.Time
}

// Digest is the tag's own content identity: the hash of its encoded
// form, used to address a specific tag for removal.
func (t Tag) Digest() encoding.Digest {
	return encoding.Hash(t.Encode())
}

// Encode serializes t to its on-disk record form. The Time field is
// written last as a fixed-width big-endian unix-nanosecond trailer:
// internal/repo.Pinned relies on this exact layout to filter tag
// visibility by timestamp without importing this package.
func (t Tag) Encode() []byte {
	var buf bytes.Buffer
	_ = encoding.WriteString(&buf, t.Org)
	_ = encoding.WriteString(&buf, t.Name)
	_ = encoding.WriteDigest(&buf, t.Target)
	_ = encoding.WriteDigest(&buf, t.Parent)
	_ = encoding.WriteString(&buf, t.User)
	_ = encoding.WriteInt(&buf, t.Time.UnixNano())
	return buf.Bytes()
}

// DecodeTag parses a record written by [Tag.Encode].
func DecodeTag(data []byte) (Tag, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	org, err := encoding.ReadString(r)
	if err != nil {
		return Tag{}, fmt.Errorf("decode tag: org: %w", err)
	}
	name, err := encoding.ReadString(r)
	if err != nil {
		return Tag{}, fmt.Errorf("decode tag: name: %w", err)
	}
	target, err := encoding.ReadDigest(r)
	if err != nil {
		return Tag{}, fmt.Errorf("decode tag: target: %w", err)
	}
	parent, err := encoding.ReadDigest(r)
	if err != nil {
		return Tag{}, fmt.Errorf("decode tag: parent: %w", err)
	}
	user, err := encoding.ReadString(r)
	if err != nil {
		return Tag{}, fmt.Errorf("decode tag: user: %w", err)
	}
	nanos, err := encoding.ReadInt(r)
	if err != nil {
		return Tag{}, fmt.Errorf("decode tag: time: %w", err)
	}

	return Tag{
		Org:    org,
		Name:   name,
		Target: target,
		Parent: parent,
		User:   user,
		Time:   time.Unix(0, nanos).UTC(),
	}, nil
}

// Spec returns the TagSpec naming this tag's stream at version 0 (its
// own position is only meaningful relative to a stream listing, so
// callers computing a specific version do so against [repo.TagStore.ListStream]
// results, not from the Tag alone).
func (t Tag) Spec() TagSpec {
	return TagSpec{Org: t.Org, Name: t.Name}
}
