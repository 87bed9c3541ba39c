// Package repo implements the repository contract: an ObjectStore, a
// PayloadStore, and a TagStore composed into a Repository, plus the
// fallback-proxy and pinned repository wrappers.
//
// The write-to-temp-then-rename discipline follows the same
// os.Remove-then-create, atomic-permissions pattern
// internal/server/server.go uses for its Unix socket.
package repo

import (
	"bufio"
	"io"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
)

// ObjectStore maps digests to typed objects in the object graph.
type ObjectStore interface {
	// ReadObject decodes and returns the object stored under d.
	ReadObject(d encoding.Digest) (objects.Object, error)

	// HasObject reports whether an object is stored under d.
	HasObject(d encoding.Digest) bool

	// WriteObject stores obj under its own content digest. Writing an
	// object whose digest already exists is a no-op.
	WriteObject(scheme encoding.Scheme, obj objects.Object) (encoding.Digest, error)

	// RemoveObject deletes the object stored under d, if any.
	RemoveObject(d encoding.Digest) error

	// IterObjects returns a lazy, finite sequence of every digest in the
	// store. Objects are not decoded; a stored path that does not parse as
	// a digest is skipped with a recorded warning rather than aborting the
	// walk.
	IterObjects() ObjectIterator

	// IterLayers returns a lazy sequence of every Layer digest.
	IterLayers() ObjectIterator

	// IterPlatforms returns a lazy sequence of every Platform digest.
	IterPlatforms() ObjectIterator

	// ResolvePartial resolves a partial digest against the store's digest
	// index, returning ErrAmbiguousReference (with every matching digest)
	// if more than one object shares the prefix.
	ResolvePartial(p encoding.PartialDigest) (encoding.Digest, error)
}

// ObjectIterator yields digests one at a time. Next returns false once
// exhausted; callers must check Err afterward.
type ObjectIterator interface {
	Next() (encoding.Digest, bool)
	Err() error
}

// PayloadStore maps digests to opaque byte payloads, separate from the
// object graph.
type PayloadStore interface {
	// WritePayload reads r to EOF, hashing while buffering to a temporary
	// location, then atomically renames into place keyed by the computed
	// digest.
	WritePayload(r io.Reader) (encoding.Digest, uint64, error)

	// OpenPayload opens the payload stored under d for reading, along
	// with the filename it is stored under.
	OpenPayload(d encoding.Digest) (io.ReadCloser, string, error)

	// HasPayload reports whether a payload is stored under d.
	HasPayload(d encoding.Digest) bool

	// RemovePayload deletes the payload stored under d, if any.
	RemovePayload(d encoding.Digest) error
}

// StoredTag is one raw record in a tag stream, as persisted by a TagStore.
// The caller (internal/refs) is responsible for interpreting Data as a
// serialized Tag.
type StoredTag struct {
	Digest encoding.Digest // digest of Data, used by RemoveTag
	Data   []byte
}

// TagListing is one entry returned by ListPaths: either a folder
// (intermediate path component) or a concrete tag stream leaf.
type TagListing struct {
	Name     string
	IsFolder bool
}

// TagStore persists append-only, per-path tag histories.
// Writes to the same streamPath are serialized by the store via a
// per-stream lock; writes to independent streams are
// unordered with respect to each other.
type TagStore interface {
	// PushTag prepends data as the new head of the stream at streamPath,
	// returning the digest it was stored under. Pushing the same logical
	// tag twice produces two distinct stream entries — tag pushes are not
	// idempotent by design.
	PushTag(streamPath string, data []byte) (encoding.Digest, error)

	// ListStream returns every stored record at streamPath, newest first.
	ListStream(streamPath string) ([]StoredTag, error)

	// RemoveTag removes one specific record (by its digest) from the
	// stream at streamPath.
	RemoveTag(streamPath string, digest encoding.Digest) error

	// RemoveStream deletes the entire stream at streamPath.
	RemoveStream(streamPath string) error

	// ListPaths returns an unordered sequence of folders and tag leaves
	// directly under prefix.
	ListPaths(prefix string) ([]TagListing, error)
}

// Repository composes the three stores plus a configured write scheme.
// Implementations: [FS] (on-disk), [FallbackProxy], [Pinned].
type Repository interface {
	ObjectStore
	PayloadStore
	TagStore

	// Scheme returns the digest scheme used for new writes.
	Scheme() encoding.Scheme

	// Object resolves an object from its digest, via ReadObject; this
	// method name matches the small [objects.Resolver] seam so a
	// Repository can be passed directly to [objects.WalkIntegrity] and
	// [objects.MergeStack]'s TreeResolver needs (through [Tree]).
	Object(d encoding.Digest) (objects.Object, error)

	// Tree resolves a digest to a *objects.Tree specifically, satisfying
	// [objects.TreeResolver] for manifest index builds and stack merges.
	Tree(d encoding.Digest) (*objects.Tree, error)
}

// decodeObject dispatches a raw, v2-framed byte slice to the matching
// typed decoder. v1-framed bytes are only decodable by a typed accessor
// that already knows the expected kind, since a v1 header carries no kind
// byte — callers holding v1 bytes of unknown kind cannot
// use this helper.
func decodeObject(data []byte) (objects.Object, error) {
	r := bufio.NewReader(newByteReader(data))
	return objects.Decode(r)
}

type byteReaderAt struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) io.Reader {
	return &byteReaderAt{data: data}
}

func (b *byteReaderAt) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}
