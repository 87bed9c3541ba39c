package encoding

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ObjectKind tags the type of an object for the v2 digest scheme and for
// on-disk object headers.
type ObjectKind uint8

const (
	KindBlob ObjectKind = iota
	KindManifest
	KindLayer
	KindPlatform
	KindTree
	KindMask
)

// Returns a human-readable name for the kind, or "unknown" for values
// outside the defined range.
func (k ObjectKind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindManifest:
		return "manifest"
	case KindLayer:
		return "layer"
	case KindPlatform:
		return "platform"
	case KindTree:
		return "tree"
	case KindMask:
		return "mask"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the defined object kinds.
func (k ObjectKind) Valid() bool {
	return k <= KindMask
}

// Scheme selects which digest scheme an object was encoded under. It is the literal on-disk header: "spfs.obj.v1\n" or
// "spfs.obj.v2\n", followed by a kind byte for v2 only. A repository's
// configured scheme picks the scheme used for new writes; reads support
// both, and a single repository may contain a mix, each object carrying
// its scheme in its own header bytes.
type Scheme uint8

const (
	// SchemeV1 hashes only the serialized body. Its header carries no kind
	// byte, so a v1 object's kind must be supplied by the caller's context
	// (e.g. a typed decoder such as objects.DecodeLayer) rather than recovered
	// from the bytes alone.
	SchemeV1 Scheme = iota
	// SchemeV2 hashes an 8-byte little-endian kind discriminant followed
	// by the serialized body, and carries that same kind as a header byte
	// so the object is self-describing.
	SchemeV2
)

var (
	headerV1 = []byte("spfs.obj.v1\n")
	headerV2 = []byte("spfs.obj.v2\n")
)

// WriteHeader writes the fixed ASCII scheme header, followed
// by the kind byte when scheme is v2.
func WriteHeader(w io.Writer, scheme Scheme, kind ObjectKind) error {
	var header []byte
	switch scheme {
	case SchemeV1:
		header = headerV1
	case SchemeV2:
		header = headerV2
	default:
		return fmt.Errorf("%w: unknown scheme %d", ErrInvalidHeader, scheme)
	}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if scheme == SchemeV2 {
		if _, err := w.Write([]byte{byte(kind)}); err != nil {
			return fmt.Errorf("write kind byte: %w", err)
		}
	}
	return nil
}

// ConsumeHeader reads and validates the framing header, returning the
// scheme and, for v2, the kind byte that followed it (zero for v1 — the
// caller must already know the expected kind for v1-framed objects).
// Readers MUST validate the header byte-for-byte.
func ConsumeHeader(r *bufio.Reader) (Scheme, ObjectKind, error) {
	got := make([]byte, len(headerV1))
	if _, err := io.ReadFull(r, got); err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}

	switch {
	case bytes.Equal(got, headerV1):
		return SchemeV1, 0, nil
	case bytes.Equal(got, headerV2):
		kindByte, err := r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("read kind byte: %w", err)
		}
		kind := ObjectKind(kindByte)
		if !kind.Valid() {
			return 0, 0, fmt.Errorf("%w: %d", ErrUnknownKind, kindByte)
		}
		return SchemeV2, kind, nil
	default:
		return 0, 0, fmt.Errorf("%w: got %q", ErrInvalidHeader, got)
	}
}

// ConsumeTypedHeader reads the header like [ConsumeHeader] but additionally
// validates, for v2, that the carried kind byte matches expectedKind —
// the shape a typed decoder (DecodeBlob, DecodeTree, ...) always knows in
// advance. v1 headers carry no kind and are trusted to match.
func ConsumeTypedHeader(r *bufio.Reader, expectedKind ObjectKind) (Scheme, error) {
	scheme, kind, err := ConsumeHeader(r)
	if err != nil {
		return 0, err
	}
	if scheme == SchemeV2 && kind != expectedKind {
		return 0, fmt.Errorf("%w: expected %s, got %s", ErrInvalidHeader, expectedKind, kind)
	}
	return scheme, nil
}

// WriteUint writes a fixed-width, big-endian uint64.
func WriteUint(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint reads a fixed-width, big-endian uint64.
func ReadUint(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read uint: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// WriteInt writes a fixed-width, big-endian int64.
func WriteInt(w io.Writer, v int64) error {
	return WriteUint(w, uint64(v))
}

// ReadInt reads a fixed-width, big-endian int64.
func ReadInt(r io.Reader) (int64, error) {
	v, err := ReadUint(r)
	return int64(v), err
}

// WriteString writes a NUL-terminated UTF-8 string. Encoding fails if s
// contains a NUL byte.
func WriteString(w io.Writer, s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return ErrStringHasNull
		}
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("write string: %w", err)
	}
	_, err := w.Write([]byte{0})
	return err
}

// ReadString reads a NUL-terminated UTF-8 string.
func ReadString(r *bufio.Reader) (string, error) {
	b, err := r.ReadBytes(0)
	if err != nil {
		return "", fmt.Errorf("read string: %w", err)
	}
	return string(b[:len(b)-1]), nil
}

// WriteDigest writes the raw bytes of a digest with no length prefix; the
// fixed [DigestSize] is known to both sides.
func WriteDigest(w io.Writer, d Digest) error {
	_, err := w.Write(d[:])
	return err
}

// ReadDigest reads a fixed-size digest.
func ReadDigest(r io.Reader) (Digest, error) {
	var d Digest
	if _, err := io.ReadFull(r, d[:]); err != nil {
		return Digest{}, fmt.Errorf("read digest: %w", err)
	}
	return d, nil
}

// Computes the digest of an already-encoded object body under the given
// scheme.
//
// The digest is computed over header-less input: scheme v1 hashes body alone; scheme v2 hashes an
// 8-byte little-endian kind discriminant followed by body.
func DigestBody(scheme Scheme, kind ObjectKind, body []byte) Digest {
	h := NewHasher()
	if scheme == SchemeV2 {
		var kindBuf [8]byte
		binary.LittleEndian.PutUint64(kindBuf[:], uint64(kind))
		h.Write(kindBuf[:])
	}
	h.Write(body)
	return h.Digest()
}

// VerifyDigest reports whether want matches body under either scheme,
// returning the scheme that produced the match. It lets a caller holding
// only a body and a digest recover which scheme produced that digest.
func VerifyDigest(kind ObjectKind, body []byte, want Digest) (Scheme, bool) {
	if DigestBody(SchemeV1, kind, body) == want {
		return SchemeV1, true
	}
	if DigestBody(SchemeV2, kind, body) == want {
		return SchemeV2, true
	}
	return 0, false
}
